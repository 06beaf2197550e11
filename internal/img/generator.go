package img

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned when a generator cannot produce the output
// format implied by the target suffix.
var ErrUnsupported = errors.New("unsupported media type")

// Generator defines the interface shared by the image and video thumbnailers.
type Generator interface {
	// Generate writes the thumbnail of srcPath to dstPath using the (width, height) bounding box
	Generate(ctx context.Context, srcPath, dstPath string, width, height int) (ThumbnailOutput, error)

	// Name returns the generator name for logging
	Name() string
}

// ThumbnailOutput describes a written thumbnail.
type ThumbnailOutput struct {
	Path         string
	Width        int
	Height       int
	SourceWidth  int
	SourceHeight int
}

// Kind classifies a source file by suffix.
type Kind string

const (
	KindImage       Kind = "image"
	KindVideo       Kind = "video"
	KindUnsupported Kind = "unsupported"
)

// ImageSuffixes lists the lowercase suffixes handled by the image thumbnailer.
var ImageSuffixes = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
}

// VideoSuffixes lists the lowercase suffixes handled by the video thumbnailer.
var VideoSuffixes = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
	".mpg": true,
	".m4v": true,
	".wav": true,
	".mts": true,
	".3gp": true,
}

// Suffix returns the lowercase suffix of name, including the dot.
func Suffix(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// Classify returns the Kind for a suffix, case-insensitively.
func Classify(suffix string) Kind {
	suffix = strings.ToLower(suffix)
	switch {
	case ImageSuffixes[suffix]:
		return KindImage
	case VideoSuffixes[suffix]:
		return KindVideo
	default:
		return KindUnsupported
	}
}

// TargetPath maps a mirrored destination path to the thumbnail file name.
// Video collages are always JPEG, so the original suffix is kept and ".jpg"
// appended (clip.mp4 -> clip.mp4.jpg).
func TargetPath(dstPath string, kind Kind) string {
	if kind == KindVideo {
		return dstPath + ".jpg"
	}
	return dstPath
}
