// Command library mirrors a media directory into a tree of thumbnails and
// packs the tree into <source>-thumbnails.tar.gz.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-thumbnail-library/internal/archive"
	"github.com/tendant/simple-thumbnail-library/internal/bus"
	"github.com/tendant/simple-thumbnail-library/internal/metrics"
	"github.com/tendant/simple-thumbnail-library/internal/mirror"
	"github.com/tendant/simple-thumbnail-library/pkg/schema"
)

var version = "dev"

// connectBus is replaced in tests.
var connectBus = func(url, name string) (bus.Publisher, error) {
	return bus.Connect(url, name)
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "library",
		Short:        "Build a thumbnail library from a media directory",
		Long:         "Walks the source directory, writes a downsized copy of every image and a 2x2 frame collage of every video\ninto <destination>/<source>-thumbnails and packs the result into a .tar.gz archive.",
		Version:      version,
		SilenceUsage: true,
		RunE:         runLibrary,
	}

	f := cmd.Flags()
	f.StringP("source", "s", "", "Path to source directory (overrides settings file and LIBRARY_SOURCE)")
	f.StringP("destination", "d", "", "Path to destination directory (overrides settings file and LIBRARY_DESTINATION)")
	f.StringP("config", "c", "", "Settings file (.toml with [project-settings], or .yaml)")
	f.String("size", "", "Thumbnail bounding box as WIDTHxHEIGHT (default 200x200)")
	f.String("frames", "", "Four comma separated frame percentages (default 1,35,65,99)")
	f.Bool("plain", false, "Leave the thumbnail tree in place instead of archiving it")
	f.Int("workers", 1, "Files processed concurrently")
	cmd.PersistentFlags().StringP("loglevel", "l", "", "Log level: DEBUG, INFO, WARNING or ERROR (default WARNING)")

	cmd.AddCommand(newProbeCmd())
	return cmd
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))
}

func runLibrary(cmd *cobra.Command, _ []string) error {
	level, err := resolveLogLevel(cmd.Flags())
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	logger := newLogger(level).With("run_id", runID)
	slog.SetDefault(logger)
	logger.Debug("running library", "version", version)

	cfg, err := LoadConfig(cmd.Flags(), logger)
	if err != nil {
		fatal(logger, "load config", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archivePath, err := run(ctx, cfg, logger, runID)
	if err != nil {
		fatal(logger, "build library", err)
	}
	if archivePath != "" {
		logger.Info("library written", "archive", archivePath)
	}
	return nil
}

// run mirrors the source tree, archives it unless plain output was asked
// for, then records metrics and publishes the completion event.
func run(ctx context.Context, cfg appConfig, logger *slog.Logger, runID string) (string, error) {
	start := time.Now()
	rec := metrics.New()

	m := mirror.New(cfg.Library, logger, mirror.WithObserver(rec))
	summary, err := m.Run(ctx)

	var archivePath string
	var failure schema.FailureType
	if err != nil {
		failure = schema.FailureTypeTraversal
	} else {
		archivePath, err = archive.New(logger).Archive(ctx, m.Root(), cfg.Library.Plain)
		if err != nil {
			failure = schema.FailureTypeArchive
		}
	}

	var archiveSize int64
	if archivePath != "" {
		if info, serr := os.Stat(archivePath); serr == nil {
			archiveSize = info.Size()
		}
	}
	rec.ObserveRun(summary, archiveSize, err == nil)
	if cfg.MetricsFile != "" {
		if werr := rec.WriteTextfile(cfg.MetricsFile); werr != nil {
			logger.Warn("write metrics textfile", "path", cfg.MetricsFile, "err", werr)
		}
	}

	if cfg.NATSURL != "" {
		evt := schema.NewLibraryCompleted(runID, cfg.Library.Source, cfg.Library.Destination, archivePath, summary, start, time.Now(), err, failure)
		notify(cfg, evt, logger)
	}
	return archivePath, err
}

// notify publishes evt; delivery problems never fail the run.
func notify(cfg appConfig, evt schema.LibraryCompleted, logger *slog.Logger) {
	nc, err := connectBus(cfg.NATSURL, "thumbnail-library")
	if err != nil {
		logger.Warn("connect to NATS", "nats_url", cfg.NATSURL, "err", err)
		return
	}
	defer nc.Close()

	if err := nc.PublishJSON(cfg.NATSSubject, evt); err != nil {
		logger.Warn("publish completion event", "subject", cfg.NATSSubject, "err", err)
		return
	}
	logger.Info("published completion event", "subject", cfg.NATSSubject, "stage", evt.Stage)
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
