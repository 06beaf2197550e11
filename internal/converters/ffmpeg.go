package converters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrNoOutput is returned when ffmpeg exits cleanly but produces no frame,
// typically because the requested frame lies past the end of the stream.
var ErrNoOutput = errors.New("ffmpeg produced no frame")

// FFmpegConverter uses ffprobe and ffmpeg to count and decode video frames.
type FFmpegConverter struct {
	ffmpeg  string
	ffprobe string
}

// NewFFmpegConverter creates a converter that resolves ffmpeg and ffprobe
// from PATH.
func NewFFmpegConverter() *FFmpegConverter {
	return &FFmpegConverter{
		ffmpeg:  "ffmpeg",
		ffprobe: "ffprobe",
	}
}

// Name returns the converter name
func (f *FFmpegConverter) Name() string {
	return "ffmpeg"
}

// Available reports an error when either binary is missing from PATH.
func (f *FFmpegConverter) Available() error {
	for _, bin := range []string{f.ffmpeg, f.ffprobe} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found in PATH: %w", bin, err)
		}
	}
	return nil
}

// Probe returns metadata about the first video stream of input. Frames is
// obtained by counting packets, which does not depend on container metadata
// being present.
func (f *FFmpegConverter) Probe(ctx context.Context, input string) (*FileInfo, error) {
	out, err := f.run(ctx, f.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=width,height,duration,nb_read_packets,avg_frame_rate,r_frame_rate",
		"-show_entries", "format=size",
		"-of", "default=noprint_wrappers=1",
		input,
	)
	if err != nil {
		return nil, err
	}
	return parseProbeOutput(string(out)), nil
}

// FrameCount returns the number of frames in the first video stream, or 0
// when the file has no video stream.
func (f *FFmpegConverter) FrameCount(ctx context.Context, input string) (int, error) {
	info, err := f.Probe(ctx, input)
	if err != nil {
		return 0, err
	}
	return info.Frames, nil
}

// FrameRate returns the frames per second of the first video stream, or 0
// when the container does not declare one. Only stream headers are read.
func (f *FFmpegConverter) FrameRate(ctx context.Context, input string) (float64, error) {
	out, err := f.run(ctx, f.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=avg_frame_rate,r_frame_rate",
		"-of", "default=noprint_wrappers=1",
		input,
	)
	if err != nil {
		return 0, err
	}
	return parseProbeOutput(string(out)).FrameRate, nil
}

// Frame decodes the frame at the 0-based index of the first video stream.
// The input is seeked to the frame's timestamp, so only the frames after the
// preceding keyframe are decoded.
func (f *FFmpegConverter) Frame(ctx context.Context, input string, index int) (image.Image, error) {
	rate, err := f.FrameRate(ctx, input)
	if err != nil {
		return nil, err
	}
	out, err := f.run(ctx, f.ffmpeg, frameArgs(input, index, rate)...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("frame %d: %w", index, ErrNoOutput)
	}
	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode frame %d: %w", index, err)
	}
	return img, nil
}

// DecodeImage decodes a still image through ffmpeg. ffmpeg keeps whatever it
// could read from truncated JPEG and PNG data, so this serves as the fallback
// for files the Go decoders reject.
func (f *FFmpegConverter) DecodeImage(ctx context.Context, input string) (image.Image, error) {
	out, err := f.run(ctx, f.ffmpeg,
		"-v", "error",
		"-nostdin",
		"-i", input,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoOutput
	}
	return imaging.Decode(bytes.NewReader(out))
}

// frameArgs builds the ffmpeg arguments for extracting one frame as PNG on
// stdout.
// -ss before -i: accurate input seek, frames before the timestamp are dropped
// after decoding from the previous keyframe. The timestamp sits half a frame
// before the wanted one so rounding never skips it.
// select=eq(n\,N): fallback when the frame rate is unknown, decodes from the
// start of the stream.
func frameArgs(input string, index int, rate float64) []string {
	args := []string{"-v", "error", "-nostdin"}
	if rate > 0 {
		seek := max(0, float64(index)-0.5) / rate
		args = append(args, "-ss", strconv.FormatFloat(seek, 'f', 6, 64), "-i", input)
	} else {
		args = append(args, "-i", input, "-vf", fmt.Sprintf(`select=eq(n\,%d)`, index), "-vsync", "0")
	}
	return append(args,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
}

// run executes bin with stdout and stderr captured into buffers local to the
// call.
func (f *FFmpegConverter) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ToolError{Tool: bin, Err: err, Stderr: stderr.String()}
	}
	return stdout.Bytes(), nil
}

func parseProbeOutput(output string) *FileInfo {
	info := &FileInfo{}

	for _, line := range strings.Split(output, "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]

		switch key {
		case "width":
			if w, err := strconv.Atoi(value); err == nil {
				info.Width = w
			}
		case "height":
			if h, err := strconv.Atoi(value); err == nil {
				info.Height = h
			}
		case "nb_read_packets":
			if n, err := strconv.Atoi(value); err == nil {
				info.Frames = n
			}
		case "duration":
			if d, err := strconv.ParseFloat(value, 64); err == nil {
				info.Duration = d
			}
		case "avg_frame_rate":
			if r := parseRate(value); r > 0 {
				info.FrameRate = r
			}
		case "r_frame_rate":
			if r := parseRate(value); r > 0 && info.FrameRate == 0 {
				info.FrameRate = r
			}
		case "size":
			if s, err := strconv.ParseInt(value, 10, 64); err == nil {
				info.Size = s
			}
		}
	}

	return info
}

// parseRate parses ffprobe rationals such as "30000/1001". "0/0" yields 0.
func parseRate(value string) float64 {
	num, den, ok := strings.Cut(value, "/")
	if !ok {
		r, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0
		}
		return r
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
