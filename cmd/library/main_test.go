package main

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tendant/simple-thumbnail-library/internal/bus"
	"github.com/tendant/simple-thumbnail-library/internal/config"
	"github.com/tendant/simple-thumbnail-library/pkg/schema"
)

type fakePublisher struct {
	subject string
	payload []byte
	closed  bool
}

func (p *fakePublisher) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.subject, p.payload = subject, b
	return nil
}

func (p *fakePublisher) Close() { p.closed = true }

func stubBus(t *testing.T, pub *fakePublisher, err error) {
	t.Helper()
	orig := connectBus
	connectBus = func(url, name string) (bus.Publisher, error) {
		if err != nil {
			return nil, err
		}
		return pub, nil
	}
	t.Cleanup(func() { connectBus = orig })
}

func libraryConfig(t *testing.T) appConfig {
	t.Helper()
	src, dst := dirs(t)
	writePhoto(t, filepath.Join(src, "A.jpg"))
	writePhoto(t, filepath.Join(src, "sub", "B.jpg"))
	if err := os.WriteFile(filepath.Join(src, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	lib := config.Default()
	lib.Source, lib.Destination = src, dst
	return appConfig{Library: lib, NATSSubject: "library.completed"}
}

func writePhoto(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	im := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for x := 0; x < 400; x++ {
		for y := 0; y < 300; y++ {
			im.Set(x, y, color.RGBA{R: 10, G: 120, B: 200, A: 255})
		}
	}
	if err := jpeg.Encode(f, im, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestRunArchivesAndPublishes(t *testing.T) {
	cfg := libraryConfig(t)
	cfg.NATSURL = "nats://example:4222"
	cfg.MetricsFile = filepath.Join(t.TempDir(), "library.prom")
	pub := &fakePublisher{}
	stubBus(t, pub, nil)

	archivePath, err := run(context.Background(), cfg, testLogger(), "run-1")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	tree := cfg.Library.ThumbnailsDir()
	if archivePath != tree+".tar.gz" {
		t.Fatalf("archive path = %s", archivePath)
	}
	if _, err := os.Stat(tree); !os.IsNotExist(err) {
		t.Fatalf("tree should be removed after archiving, stat err: %v", err)
	}

	var evt schema.LibraryCompleted
	if err := json.Unmarshal(pub.payload, &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if pub.subject != "library.completed" || !pub.closed {
		t.Fatalf("unexpected publish: subject=%s closed=%v", pub.subject, pub.closed)
	}
	if evt.RunID != "run-1" || evt.Stage != schema.StageArchived || evt.TotalCreated != 2 || evt.Archive != archivePath {
		t.Fatalf("unexpected event: %+v", evt)
	}

	data, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(data), `thumbnail_library_files_total{kind="image",status="succeeded"} 2`) {
		t.Fatalf("unexpected metrics:\n%s", data)
	}
}

func TestRunPlainKeepsTree(t *testing.T) {
	cfg := libraryConfig(t)
	cfg.Library.Plain = true

	archivePath, err := run(context.Background(), cfg, testLogger(), "run-2")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if archivePath != "" {
		t.Fatalf("plain run produced archive %s", archivePath)
	}
	if _, err := os.Stat(filepath.Join(cfg.Library.ThumbnailsDir(), "sub", "B.jpg")); err != nil {
		t.Fatalf("thumbnail missing: %v", err)
	}
}

func TestRunIgnoresBusFailure(t *testing.T) {
	cfg := libraryConfig(t)
	cfg.Library.Plain = true
	cfg.NATSURL = "nats://example:4222"
	stubBus(t, nil, errors.New("connection refused"))

	if _, err := run(context.Background(), cfg, testLogger(), "run-3"); err != nil {
		t.Fatalf("bus failure should not fail the run: %v", err)
	}
}

func TestRunMissingSourceFails(t *testing.T) {
	cfg := libraryConfig(t)
	cfg.Library.Source = filepath.Join(cfg.Library.Source, "gone")
	pub := &fakePublisher{}
	cfg.NATSURL = "nats://example:4222"
	stubBus(t, pub, nil)

	if _, err := run(context.Background(), cfg, testLogger(), "run-4"); err == nil {
		t.Fatal("expected error")
	}
	var evt schema.LibraryCompleted
	if err := json.Unmarshal(pub.payload, &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.Stage != schema.StageFailed || evt.FailureType != schema.FailureTypeTraversal {
		t.Fatalf("unexpected event: %+v", evt)
	}
}
