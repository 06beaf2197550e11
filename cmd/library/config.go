package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/tendant/simple-thumbnail-library/internal/config"
)

type appConfig struct {
	Library     config.Config
	NATSURL     string
	NATSSubject string
	MetricsFile string
}

// LoadConfig merges, from lowest to highest priority: built-in defaults, the
// settings file, environment variables and command-line flags. A missing
// destination directory is created when its parent exists.
func LoadConfig(flags *pflag.FlagSet, logger *slog.Logger) (appConfig, error) {
	cfg := appConfig{
		Library:     config.Default(),
		NATSURL:     getenv("NATS_URL", ""),
		NATSSubject: getenv("NATS_SUBJECT", "library.completed"),
		MetricsFile: getenv("METRICS_FILE", ""),
	}
	lib := &cfg.Library

	settingsPath := getenv("LIBRARY_CONFIG", "")
	if flags.Changed("config") {
		settingsPath, _ = flags.GetString("config")
	}
	if settingsPath != "" {
		fs, err := config.LoadFile(settingsPath)
		if err != nil {
			return appConfig{}, err
		}
		fs.Apply(lib)
		logger.Debug("loaded settings file", "path", settingsPath)
	}

	if err := applyEnv(lib); err != nil {
		return appConfig{}, err
	}
	if err := applyFlags(flags, lib); err != nil {
		return appConfig{}, err
	}

	var err error
	if lib.Source, err = absPath(lib.Source); err != nil {
		return appConfig{}, err
	}
	if lib.Destination, err = absPath(lib.Destination); err != nil {
		return appConfig{}, err
	}
	if err := ensureDestination(lib.Destination, logger); err != nil {
		return appConfig{}, err
	}
	if err := lib.Validate(); err != nil {
		return appConfig{}, err
	}

	logger.Debug("source path", "path", lib.Source)
	logger.Debug("destination path", "path", lib.Destination)
	return cfg, nil
}

func applyEnv(lib *config.Config) error {
	lib.Source = getenv("LIBRARY_SOURCE", lib.Source)
	lib.Destination = getenv("LIBRARY_DESTINATION", lib.Destination)

	if v := getenv("THUMB_WIDTH", ""); v != "" {
		w, err := parsePositiveInt(v, "THUMB_WIDTH")
		if err != nil {
			return err
		}
		lib.Width = w
	}
	if v := getenv("THUMB_HEIGHT", ""); v != "" {
		h, err := parsePositiveInt(v, "THUMB_HEIGHT")
		if err != nil {
			return err
		}
		lib.Height = h
	}
	if v := getenv("FRAME_PERCENTS", ""); v != "" {
		frames, err := parseFrames(v)
		if err != nil {
			return fmt.Errorf("parse FRAME_PERCENTS: %w", err)
		}
		lib.FramePercents = frames
	}
	if v := getenv("LIBRARY_PLAIN", ""); v != "" {
		plain, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LIBRARY_PLAIN: %w", err)
		}
		lib.Plain = plain
	}
	if v := getenv("WORKERS", ""); v != "" {
		n, err := parsePositiveInt(v, "WORKERS")
		if err != nil {
			return err
		}
		lib.Workers = n
	}
	return nil
}

func applyFlags(flags *pflag.FlagSet, lib *config.Config) error {
	if flags.Changed("source") {
		lib.Source, _ = flags.GetString("source")
	}
	if flags.Changed("destination") {
		lib.Destination, _ = flags.GetString("destination")
	}
	if flags.Changed("size") {
		v, _ := flags.GetString("size")
		w, h, err := parseSize(v)
		if err != nil {
			return fmt.Errorf("parse --size: %w", err)
		}
		lib.Width, lib.Height = w, h
	}
	if flags.Changed("frames") {
		v, _ := flags.GetString("frames")
		frames, err := parseFrames(v)
		if err != nil {
			return fmt.Errorf("parse --frames: %w", err)
		}
		lib.FramePercents = frames
	}
	if flags.Changed("plain") {
		lib.Plain, _ = flags.GetBool("plain")
	}
	if flags.Changed("workers") {
		lib.Workers, _ = flags.GetInt("workers")
	}
	return nil
}

// resolveLogLevel picks --loglevel, then LOG_LEVEL, defaulting to WARNING.
func resolveLogLevel(flags *pflag.FlagSet) (slog.Level, error) {
	name := getenv("LOG_LEVEL", "WARNING")
	if flags.Changed("loglevel") {
		name, _ = flags.GetString("loglevel")
	}
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARNING", "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level %q (want DEBUG, INFO, WARNING or ERROR)", name)
}

func ensureDestination(path string, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	_, err := os.Stat(path)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if _, perr := os.Stat(filepath.Dir(path)); perr != nil {
		// Validate reports the missing destination.
		return nil
	}
	logger.Warn("creating new destination directory", "path", path)
	if err := os.Mkdir(path, config.DirMode); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	return nil
}

func absPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	return filepath.Abs(p)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parsePositiveInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}

// parseSize parses "WxH", e.g. "200x150".
func parseSize(value string) (int, int, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(value)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected WIDTHxHEIGHT, got %q", value)
	}
	w, err := parsePositiveInt(parts[0], "width")
	if err != nil {
		return 0, 0, err
	}
	h, err := parsePositiveInt(parts[1], "height")
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

// parseFrames parses four comma separated percentages.
func parseFrames(value string) ([4]int, error) {
	var out [4]int
	parts := strings.Split(value, ",")
	if len(parts) != len(out) {
		return out, fmt.Errorf("expected %d comma separated values, got %d", len(out), len(parts))
	}
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return out, fmt.Errorf("invalid frame percentage %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}
