package main

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tendant/simple-thumbnail-library/internal/converters"
)

func TestProbeFileUnsupported(t *testing.T) {
	var out bytes.Buffer
	if err := probeFile(context.Background(), &out, converters.NewFFmpegConverter(), "notes.txt", [4]int{1, 35, 65, 99}); err != nil {
		t.Fatalf("probeFile returned error: %v", err)
	}
	if !strings.Contains(out.String(), "Kind: unsupported") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestProbeFileVideo(t *testing.T) {
	conv := converters.NewFFmpegConverter()
	if err := conv.Available(); err != nil {
		t.Skip(err)
	}
	clip := filepath.Join(t.TempDir(), "clip.mp4")
	gen := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi", "-i", "testsrc=size=64x48:rate=10",
		"-frames:v", "12", "-c:v", "mpeg4", clip)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot create test clip: %v\n%s", err, out)
	}

	var out bytes.Buffer
	if err := probeFile(context.Background(), &out, conv, clip, [4]int{1, 35, 65, 99}); err != nil {
		t.Fatalf("probeFile returned error: %v", err)
	}
	for _, want := range []string{"Kind: video", "Dimensions: 64x48 pixels", "Frames: 12", "Collage frames: [1 4 8 11]"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

type countingInspector struct {
	info  converters.FileInfo
	calls int
}

func (p *countingInspector) Probe(ctx context.Context, input string) (*converters.FileInfo, error) {
	p.calls++
	info := p.info
	return &info, nil
}

func TestVideoFrameCountComesFromStreamInfo(t *testing.T) {
	inspector := &countingInspector{info: converters.FileInfo{Width: 640, Height: 360, Frames: 101, FrameRate: 25}}

	var out bytes.Buffer
	if err := probeFile(context.Background(), &out, inspector, "clip.mov", [4]int{1, 35, 65, 99}); err != nil {
		t.Fatalf("probeFile returned error: %v", err)
	}
	if inspector.calls != 1 {
		t.Fatalf("stream info read %d times, want 1", inspector.calls)
	}
	for _, want := range []string{"Frames: 101", "Frame rate: 25.000 fps", "Collage frames: [1 35 65 99]"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatBytes(512); got != "512 B" {
		t.Fatalf("formatBytes(512) = %s", got)
	}
	if got := formatBytes(1536); got != "1.5 KB" {
		t.Fatalf("formatBytes(1536) = %s", got)
	}
	if got := formatDuration(125.4); got != "02:05" {
		t.Fatalf("formatDuration = %s", got)
	}
}
