package img

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/tendant/simple-thumbnail-library/internal/converters"
)

const collageFrames = 4

var (
	// ErrNoFrames is returned for videos without a single decodable frame.
	ErrNoFrames = errors.New("video has no frames")
	// ErrIncompleteFrames is returned when fewer than four sampled frames
	// could be decoded. No collage is written in that case.
	ErrIncompleteFrames = errors.New("not all sampled frames could be decoded")
)

// FrameSource counts and decodes video frames.
type FrameSource interface {
	FrameCount(ctx context.Context, path string) (int, error)
	Frame(ctx context.Context, path string, index int) (image.Image, error)
}

// VideoGenerator implements Generator for videos by sampling four frames
// and writing them as a 2x2 JPEG collage.
type VideoGenerator struct {
	source   FrameSource
	percents []int
	logger   *slog.Logger
}

// NewVideoGenerator creates a video thumbnailer sampling the frames at the
// given percentages of the video length.
func NewVideoGenerator(source FrameSource, percents [4]int, logger *slog.Logger) *VideoGenerator {
	return &VideoGenerator{
		source:   source,
		percents: percents[:],
		logger:   logger,
	}
}

// Name implements Generator.Name
func (g *VideoGenerator) Name() string {
	return "video"
}

// Generate decodes the sampled frames of srcPath, resizes each to exactly
// (w, h) and writes the (2w, 2h) collage to dstPath as JPEG.
func (g *VideoGenerator) Generate(ctx context.Context, srcPath, dstPath string, w, h int) (ThumbnailOutput, error) {
	count, err := g.source.FrameCount(ctx, srcPath)
	if err != nil {
		g.logDiagnostics(srcPath, err)
		return ThumbnailOutput{}, fmt.Errorf("count frames: %w", err)
	}
	if count < 1 {
		return ThumbnailOutput{}, ErrNoFrames
	}

	indices := FrameIndices(g.percents, count-1)
	g.logger.Debug("sampling video frames", "path", srcPath, "frames", count, "indices", indices)

	frames := make([]image.Image, 0, collageFrames)
	var sourceBounds image.Rectangle
	for _, idx := range indices {
		frame, err := g.source.Frame(ctx, srcPath, idx)
		if err != nil {
			g.logDiagnostics(srcPath, err)
			return ThumbnailOutput{}, fmt.Errorf("%w: frame %d of %d: %v", ErrIncompleteFrames, idx, count, err)
		}
		sourceBounds = frame.Bounds()
		frames = append(frames, imaging.Resize(frame, w, h, imaging.Lanczos))
	}
	collage := Collage(frames, w, h)
	err = writeFileAtomic(dstPath, func(out io.Writer) error {
		return imaging.Encode(out, collage, imaging.JPEG, imaging.JPEGQuality(JPEGQuality))
	})
	if err != nil {
		return ThumbnailOutput{}, fmt.Errorf("save: %w", err)
	}

	b := collage.Bounds()
	return ThumbnailOutput{
		Path:         dstPath,
		Width:        b.Dx(),
		Height:       b.Dy(),
		SourceWidth:  sourceBounds.Dx(),
		SourceHeight: sourceBounds.Dy(),
	}, nil
}

// logDiagnostics surfaces captured decoder output at debug level only.
func (g *VideoGenerator) logDiagnostics(srcPath string, err error) {
	var toolErr *converters.ToolError
	if errors.As(err, &toolErr) && toolErr.Stderr != "" {
		g.logger.Debug("decoder diagnostics", "path", srcPath, "tool", toolErr.Tool, "stderr", toolErr.Stderr)
	}
}
