package converters

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseProbeOutput(t *testing.T) {
	out := "width=640\nheight=360\nduration=4.000000\nnb_read_packets=100\nsize=123456\n"
	info := parseProbeOutput(out)

	if info.Width != 640 || info.Height != 360 {
		t.Fatalf("unexpected dimensions: %dx%d", info.Width, info.Height)
	}
	if info.Frames != 100 {
		t.Fatalf("unexpected frame count: %d", info.Frames)
	}
	if info.Duration != 4 {
		t.Fatalf("unexpected duration: %v", info.Duration)
	}
	if info.Size != 123456 {
		t.Fatalf("unexpected size: %d", info.Size)
	}
}

func TestParseProbeOutputNoVideoStream(t *testing.T) {
	info := parseProbeOutput("size=2048\n")
	if info.Frames != 0 {
		t.Fatalf("expected zero frames, got %d", info.Frames)
	}
	if info.Size != 2048 {
		t.Fatalf("unexpected size: %d", info.Size)
	}
}

func TestParseProbeOutputIgnoresUnavailableValues(t *testing.T) {
	info := parseProbeOutput("width=N/A\nnb_read_packets=N/A\n")
	if info.Width != 0 || info.Frames != 0 {
		t.Fatalf("expected zero values, got %+v", info)
	}
}

func TestFrameArgsSeeksBeforeInput(t *testing.T) {
	args := frameArgs("/videos/clip.mp4", 100, 25)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-ss 3.980000 -i /videos/clip.mp4") {
		t.Fatalf("expected input seek to 3.98s before -i: %s", joined)
	}
	if strings.Contains(joined, "select=") {
		t.Fatalf("seeking args must not decode through a select filter: %s", joined)
	}
	if args[len(args)-1] != "-" {
		t.Fatalf("expected stdout output, got %s", args[len(args)-1])
	}
}

func TestFrameArgsFirstFrameSeeksToZero(t *testing.T) {
	joined := strings.Join(frameArgs("clip.mp4", 0, 30), " ")
	if !strings.Contains(joined, "-ss 0.000000 -i clip.mp4") {
		t.Fatalf("unexpected args: %s", joined)
	}
}

func TestFrameArgsUnknownRateFallsBackToSelect(t *testing.T) {
	joined := strings.Join(frameArgs("/videos/clip.mp4", 42, 0), " ")

	if !strings.Contains(joined, `select=eq(n\,42)`) {
		t.Fatalf("select filter missing: %s", joined)
	}
	if strings.Contains(joined, "-ss") {
		t.Fatalf("no seek expected without a frame rate: %s", joined)
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"30000/1001", 30000.0 / 1001},
		{"0/0", 0},
		{"N/A", 0},
		{"24", 24},
	}
	for _, tt := range tests {
		if got := parseRate(tt.in); got != tt.want {
			t.Errorf("parseRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseProbeOutputFrameRate(t *testing.T) {
	info := parseProbeOutput("r_frame_rate=50/1\navg_frame_rate=0/0\n")
	if info.FrameRate != 50 {
		t.Fatalf("expected r_frame_rate fallback, got %v", info.FrameRate)
	}
	info = parseProbeOutput("avg_frame_rate=25/1\nr_frame_rate=50/1\n")
	if info.FrameRate != 25 {
		t.Fatalf("expected avg_frame_rate, got %v", info.FrameRate)
	}
}

func TestToolErrorKeepsDiagnosticsOutOfMessage(t *testing.T) {
	err := &ToolError{Tool: "ffmpeg", Err: errors.New("exit status 1"), Stderr: "moov atom not found\nsecond line\n"}
	msg := err.Error()
	if msg != "ffmpeg failed: exit status 1" {
		t.Fatalf("unexpected message: %s", msg)
	}
	if !strings.Contains(err.Stderr, "moov atom not found") {
		t.Fatal("diagnostics should stay available on the error")
	}
	if !errors.Is(err, err.Err) {
		t.Fatal("ToolError does not unwrap")
	}
}

func TestFFmpegConverterWithGeneratedVideo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ffmpeg test in short mode")
	}
	conv := NewFFmpegConverter()
	if err := conv.Available(); err != nil {
		t.Skipf("required tool not installed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "clip.mp4")
	cmd := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi", "-i", "testsrc=size=64x48:rate=10",
		"-frames:v", "12", "-c:v", "mpeg4", "-y", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot generate sample video: %v: %s", err, out)
	}

	ctx := context.Background()
	n, err := conv.FrameCount(ctx, path)
	if err != nil {
		t.Fatalf("FrameCount failed: %v", err)
	}
	if n != 12 {
		t.Fatalf("FrameCount = %d, want 12", n)
	}

	rate, err := conv.FrameRate(ctx, path)
	if err != nil {
		t.Fatalf("FrameRate failed: %v", err)
	}
	if rate != 10 {
		t.Fatalf("FrameRate = %v, want 10", rate)
	}

	frame, err := conv.Frame(ctx, path, 11)
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if b := frame.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Fatalf("unexpected frame size %dx%d", b.Dx(), b.Dy())
	}

	if _, err := conv.Frame(ctx, path, 500); err == nil {
		t.Fatal("expected error past end of stream")
	}
}

func TestFFmpegConverterRejectsGarbage(t *testing.T) {
	conv := NewFFmpegConverter()
	if err := conv.Available(); err != nil {
		t.Skipf("required tool not installed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "broken.mp4")
	if err := os.WriteFile(path, []byte("definitely not a video"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := conv.FrameCount(context.Background(), path)
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if toolErr.Stderr == "" {
		t.Fatal("expected diagnostics to be captured")
	}
}
