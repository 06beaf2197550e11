// Package config holds the validated run configuration consumed by the
// mirror and archive packages.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DirMode is the permission mode used for every directory created in the
// thumbnail tree.
const DirMode os.FileMode = 0o740

// MaxSide is the exclusive upper bound for the bounding box width and height.
const MaxSide = 1000

// Config is the immutable configuration of one run.
type Config struct {
	Source        string
	Destination   string
	Width         int
	Height        int
	FramePercents [4]int
	Plain         bool
	Workers       int
}

// Default returns a Config populated with the built-in defaults. Source and
// Destination are left empty.
func Default() Config {
	return Config{
		Width:         200,
		Height:        200,
		FramePercents: [4]int{1, 35, 65, 99},
		Workers:       1,
	}
}

// ThumbnailsDir is the root of the mirrored tree:
// <destination>/<source dir name>-thumbnails.
func (c Config) ThumbnailsDir() string {
	return filepath.Join(c.Destination, filepath.Base(filepath.Clean(c.Source))+"-thumbnails")
}

// ValidationError reports a configuration value that cannot be used.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

// Validate checks value ranges and that source and destination are existing
// directories.
func (c Config) Validate() error {
	if c.Width < 1 || c.Width >= MaxSide {
		return ValidationError{Field: "width", Reason: fmt.Sprintf("must be in [1,%d), got %d", MaxSide, c.Width)}
	}
	if c.Height < 1 || c.Height >= MaxSide {
		return ValidationError{Field: "height", Reason: fmt.Sprintf("must be in [1,%d), got %d", MaxSide, c.Height)}
	}
	for i, p := range c.FramePercents {
		if p < 0 || p > 100 {
			return ValidationError{Field: fmt.Sprintf("frames[%d]", i), Reason: fmt.Sprintf("must be in [0,100], got %d", p)}
		}
	}
	if c.Workers < 1 {
		return ValidationError{Field: "workers", Reason: fmt.Sprintf("must be at least 1, got %d", c.Workers)}
	}
	if err := checkDir("source", c.Source); err != nil {
		return err
	}
	if err := checkDir("destination", c.Destination); err != nil {
		return err
	}
	return nil
}

func checkDir(field, path string) error {
	if path == "" {
		return ValidationError{Field: field, Reason: "path is required"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ValidationError{Field: field, Reason: fmt.Sprintf("directory %q does not exist", path)}
		}
		return fmt.Errorf("stat %s: %w", field, err)
	}
	if !info.IsDir() {
		return ValidationError{Field: field, Reason: fmt.Sprintf("path %q is not a directory", path)}
	}
	return nil
}
