// Package img turns single media files into thumbnails: images are fitted to
// a bounding box, videos are condensed into a 2x2 collage of sampled frames.
package img

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/disintegration/imaging"
)

// JPEGQuality is used for every JPEG the package writes.
const JPEGQuality = 80

// ImageDecoder decodes images the Go decoders reject, such as truncated
// downloads.
type ImageDecoder interface {
	DecodeImage(ctx context.Context, path string) (image.Image, error)
}

// ImageGenerator implements Generator for still images.
type ImageGenerator struct {
	fallback ImageDecoder
	logger   *slog.Logger
}

// NewImageGenerator creates an image thumbnailer. fallback may be nil.
func NewImageGenerator(fallback ImageDecoder, logger *slog.Logger) *ImageGenerator {
	return &ImageGenerator{fallback: fallback, logger: logger}
}

// Name implements Generator.Name
func (g *ImageGenerator) Name() string {
	return "image"
}

// Generate loads srcPath, fits it into the (boxW, boxH) box preserving the
// aspect ratio and writes it to dstPath in the format implied by dstPath's
// suffix. Images already inside the box are not enlarged. The parent
// directory of dstPath must exist.
func (g *ImageGenerator) Generate(ctx context.Context, srcPath, dstPath string, boxW, boxH int) (ThumbnailOutput, error) {
	format, err := imaging.FormatFromFilename(dstPath)
	if err != nil {
		return ThumbnailOutput{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	src, err := g.open(ctx, srcPath)
	if err != nil {
		return ThumbnailOutput{}, err
	}

	thumb := imaging.Fit(src, boxW, boxH, imaging.Lanczos)

	err = writeFileAtomic(dstPath, func(w io.Writer) error {
		return imaging.Encode(w, thumb, format, imaging.JPEGQuality(JPEGQuality))
	})
	if err != nil {
		return ThumbnailOutput{}, fmt.Errorf("save: %w", err)
	}

	sb, tb := src.Bounds(), thumb.Bounds()
	return ThumbnailOutput{
		Path:         dstPath,
		Width:        tb.Dx(),
		Height:       tb.Dy(),
		SourceWidth:  sb.Dx(),
		SourceHeight: sb.Dy(),
	}, nil
}

func (g *ImageGenerator) open(ctx context.Context, srcPath string) (image.Image, error) {
	src, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err == nil {
		return src, nil
	}
	if g.fallback == nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	g.logger.Debug("go decoder failed, trying fallback decoder", "path", srcPath, "err", err)
	img, ferr := g.fallback.DecodeImage(ctx, srcPath)
	if ferr != nil {
		return nil, fmt.Errorf("open: %w (fallback: %v)", err, ferr)
	}
	g.logger.Info("decoded damaged image with fallback decoder", "path", srcPath)
	return img, nil
}
