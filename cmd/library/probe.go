package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-thumbnail-library/internal/config"
	"github.com/tendant/simple-thumbnail-library/internal/converters"
	"github.com/tendant/simple-thumbnail-library/internal/img"
)

func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe FILE...",
		Short: "Show media metadata and the frames a collage would use",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runProbe,
	}
	cmd.Flags().String("frames", "", "Four comma separated frame percentages (default 1,35,65,99)")
	cmd.Flags().Duration("timeout", 30*time.Second, "Timeout per file")
	return cmd
}

func runProbe(cmd *cobra.Command, args []string) error {
	percents := config.Default().FramePercents
	if v, _ := cmd.Flags().GetString("frames"); v != "" {
		p, err := parseFrames(v)
		if err != nil {
			return fmt.Errorf("parse --frames: %w", err)
		}
		percents = p
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	conv := converters.NewFFmpegConverter()
	if err := conv.Available(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, path := range args {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		err := probeFile(ctx, out, conv, path, percents)
		cancel()
		if err != nil {
			return fmt.Errorf("probe %s: %w", path, err)
		}
	}
	return nil
}

// mediaInspector is the part of converters.FFmpegConverter that file
// inspection needs.
type mediaInspector interface {
	Probe(ctx context.Context, input string) (*converters.FileInfo, error)
}

func probeFile(ctx context.Context, out io.Writer, conv mediaInspector, path string, percents [4]int) error {
	kind := img.Classify(img.Suffix(path))
	fmt.Fprintf(out, "%s\n%s\n", filepath.Base(path), strings.Repeat("-", 40))
	fmt.Fprintf(out, "Kind: %s\n", kind)
	if kind == img.KindUnsupported {
		fmt.Fprintln(out)
		return nil
	}

	info, err := conv.Probe(ctx, path)
	if err != nil {
		return err
	}
	printFileInfo(out, info)

	if kind == img.KindVideo {
		fmt.Fprintf(out, "Frames: %d\n", info.Frames)
		if info.FrameRate > 0 {
			fmt.Fprintf(out, "Frame rate: %.3f fps\n", info.FrameRate)
		}
		if info.Frames > 0 {
			fmt.Fprintf(out, "Collage frames: %v\n", img.FrameIndices(percents[:], info.Frames-1))
		}
	}
	fmt.Fprintln(out)
	return nil
}

func printFileInfo(out io.Writer, info *converters.FileInfo) {
	if info.Width > 0 && info.Height > 0 {
		fmt.Fprintf(out, "Dimensions: %dx%d pixels\n", info.Width, info.Height)
	}
	if info.Duration > 0 {
		fmt.Fprintf(out, "Duration: %.2f seconds (%s)\n", info.Duration, formatDuration(info.Duration))
	}
	if info.Size > 0 {
		fmt.Fprintf(out, "File Size: %s\n", formatBytes(info.Size))
	}
}

// formatBytes formats bytes into human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats seconds into MM:SS format
func formatDuration(seconds float64) string {
	mins := int(seconds) / 60
	secs := int(seconds) % 60
	return fmt.Sprintf("%02d:%02d", mins, secs)
}
