// Package mirror walks a source tree and recreates it as a thumbnail library.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-thumbnail-library/internal/config"
	"github.com/tendant/simple-thumbnail-library/internal/converters"
	"github.com/tendant/simple-thumbnail-library/internal/img"
	"github.com/tendant/simple-thumbnail-library/internal/process"
)

// MediaFile is a regular file discovered under the source root.
type MediaFile struct {
	Path    string
	RelPath string
	Suffix  string
	Kind    img.Kind
}

// Observer is notified once per visited file.
type Observer interface {
	ObserveFile(kind string, status process.JobStatus, elapsed time.Duration)
}

// Mirror recreates the source tree under cfg.ThumbnailsDir().
type Mirror struct {
	cfg      config.Config
	logger   *slog.Logger
	images   img.Generator
	videos   img.Generator
	observer Observer
}

// Option customises a Mirror.
type Option func(*Mirror)

// WithGenerators replaces the image and video thumbnailers.
func WithGenerators(images, videos img.Generator) Option {
	return func(m *Mirror) {
		m.images = images
		m.videos = videos
	}
}

// WithObserver registers an Observer for per-file outcomes.
func WithObserver(o Observer) Option {
	return func(m *Mirror) { m.observer = o }
}

// New creates a Mirror. By default images and videos are processed with the
// imaging library backed by ffmpeg.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Mirror {
	conv := converters.NewFFmpegConverter()
	m := &Mirror{
		cfg:    cfg,
		logger: logger,
		images: img.NewImageGenerator(conv, logger),
		videos: img.NewVideoGenerator(conv, cfg.FramePercents, logger),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the destination tree root.
func (m *Mirror) Root() string {
	return m.cfg.ThumbnailsDir()
}

// Run walks the source tree once. Existing thumbnails are never touched.
// Per-file and per-subtree failures are logged and counted in the returned
// Summary; only a failure to read the source root or to create the
// destination root aborts the run. When ctx is cancelled no further file is
// started, in-flight jobs are drained and ctx.Err() is returned.
func (m *Mirror) Run(ctx context.Context) (*process.Summary, error) {
	srcRoot := filepath.Clean(m.cfg.Source)
	dstRoot := m.Root()
	summary := process.NewSummary()

	workers := m.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)

	m.logger.Info("mirror starting", "source", srcRoot, "destination", dstRoot, "workers", workers)

	walkErr := filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			if path == srcRoot {
				return err
			}
			m.logger.Error("cannot read, skipping", "path", path, "err", err)
			summary.AddTraversalError()
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(dstRoot, rel)

		if d.IsDir() {
			if path == dstRoot {
				m.logger.Warn("destination tree lies inside the source, not descending", "path", path)
				return filepath.SkipDir
			}
			if err := ensureDir(dst); err != nil {
				if path == srcRoot {
					return err
				}
				m.logger.Error("cannot create destination directory, skipping subtree", "path", dst, "err", err)
				summary.AddTraversalError()
				return filepath.SkipDir
			}
			summary.AddDir()
			m.removeStaleTemps(dst)
			if path != srcRoot {
				m.logger.Info("iterate through", "dir", rel)
			}
			return nil
		}

		if !m.isRegular(path, d, summary) {
			return nil
		}

		file := MediaFile{Path: path, RelPath: rel, Suffix: img.Suffix(path)}
		file.Kind = img.Classify(file.Suffix)
		m.dispatch(ctx, &g, file, dst, summary)
		return nil
	})

	// Jobs never return errors; waiting only drains the pool.
	_ = g.Wait()

	if walkErr != nil {
		if ctx.Err() != nil && errors.Is(walkErr, ctx.Err()) {
			m.logger.Warn("mirror interrupted", "files", summary.Total())
		}
		return summary, fmt.Errorf("walk %s: %w", srcRoot, walkErr)
	}

	m.logger.Info("mirror finished",
		"files", summary.Total(),
		"created", summary.Count(process.JobStatusSucceeded),
		"skipped", summary.Count(process.JobStatusSkipped),
		"unsupported", summary.Count(process.JobStatusUnsupported),
		"failed", summary.Count(process.JobStatusFailed),
		"dirs", summary.Dirs(),
		"traversal_errors", summary.TraversalErrors(),
	)
	return summary, nil
}

// isRegular reports whether the entry is a regular file, resolving symlinks.
// Symlinked directories are not followed.
func (m *Mirror) isRegular(path string, d fs.DirEntry, summary *process.Summary) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		m.logger.Debug("skipping special file", "path", path, "mode", d.Type().String())
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		m.logger.Error("broken symlink, skipping", "path", path, "err", err)
		summary.AddTraversalError()
		return false
	}
	if !info.Mode().IsRegular() {
		m.logger.Debug("not following symlink", "path", path)
		return false
	}
	return true
}

func (m *Mirror) dispatch(ctx context.Context, g *errgroup.Group, file MediaFile, dst string, summary *process.Summary) {
	if file.Kind == img.KindUnsupported {
		job := process.NewJob(string(file.Kind), file.RelPath, "")
		process.MarkUnsupported(job)
		m.logger.Info("unsupported file, left untouched", "path", file.RelPath)
		m.finish(job, summary, 0)
		return
	}

	target := img.TargetPath(dst, file.Kind)
	job := process.NewJob(string(file.Kind), file.RelPath, target)

	if _, err := os.Lstat(target); err == nil {
		process.MarkSkipped(job)
		m.logger.Debug("skip existing thumbnail", "target", target)
		m.finish(job, summary, 0)
		return
	} else if !errors.Is(err, fs.ErrNotExist) {
		process.MarkFailed(job, err)
		m.logger.Error("cannot check thumbnail", "target", target, "err", err)
		m.finish(job, summary, 0)
		return
	}

	gen := m.images
	if file.Kind == img.KindVideo {
		gen = m.videos
	}

	g.Go(func() error {
		if ctx.Err() != nil {
			return nil
		}
		m.generate(ctx, gen, file, job, summary)
		return nil
	})
}

func (m *Mirror) generate(ctx context.Context, gen img.Generator, file MediaFile, job *process.Job, summary *process.Summary) {
	process.MarkRunning(job)
	start := time.Now()

	out, err := gen.Generate(ctx, file.Path, job.Target, m.cfg.Width, m.cfg.Height)
	elapsed := time.Since(start)
	if err != nil {
		process.MarkFailed(job, err)
		m.logger.Error("thumbnail failed, skipping", "generator", gen.Name(), "path", file.RelPath, "err", err)
	} else {
		process.MarkSucceeded(job)
		m.logger.Debug("created thumbnail", "generator", gen.Name(), "target", out.Path,
			"width", out.Width, "height", out.Height, "elapsed", elapsed)
	}
	m.finish(job, summary, elapsed)
}

func (m *Mirror) finish(job *process.Job, summary *process.Summary, elapsed time.Duration) {
	summary.Record(job)
	if m.observer != nil {
		m.observer.ObserveFile(job.Kind, job.Status, elapsed)
	}
}

// removeStaleTemps deletes unfinished writes of an earlier run. It runs
// before any file of dir is dispatched, so no live write is affected.
func (m *Mirror) removeStaleTemps(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		m.logger.Warn("cannot list destination directory", "path", dir, "err", err)
		return
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || !img.IsTempName(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := os.Remove(p); err != nil {
			m.logger.Warn("cannot remove unfinished thumbnail", "path", p, "err", err)
			continue
		}
		m.logger.Info("removed unfinished thumbnail", "path", p)
	}
}

// ensureDir creates dir with config.DirMode, tolerating an existing directory.
func ensureDir(dir string) error {
	err := os.Mkdir(dir, config.DirMode)
	if err == nil || !errors.Is(err, fs.ErrExist) {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists and is not a directory", dir)
	}
	return nil
}
