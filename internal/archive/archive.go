// Package archive packs a finished thumbnail tree into a gzip-compressed tar
// file and removes the tree afterwards.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/klauspost/compress/gzip"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/tendant/simple-thumbnail-library/internal/img"
)

// Suffix is appended to the tree path to name the archive.
const Suffix = ".tar.gz"

// FileMode is applied to the finished archive.
const FileMode os.FileMode = 0o640

// ErrInsufficientSpace is returned when the parent filesystem cannot hold
// the archive.
var ErrInsufficientSpace = errors.New("insufficient disk space for archive")

// Archiver writes <tree>.tar.gz next to the tree.
type Archiver struct {
	logger    *slog.Logger
	freeSpace func(path string) (uint64, error)
}

// New creates an Archiver that checks free space with gopsutil.
func New(logger *slog.Logger) *Archiver {
	return &Archiver{logger: logger, freeSpace: diskFree}
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// Archive packs tree into <tree>.tar.gz with entries rooted at the tree's
// base name, leaving out unfinished thumbnail writes, then deletes the tree.
// With plain set it does nothing and returns "". The tree is left in place
// whenever archiving fails.
func (a *Archiver) Archive(ctx context.Context, tree string, plain bool) (string, error) {
	if plain {
		a.logger.Debug("plain output requested, not archiving", "tree", tree)
		return "", nil
	}

	tree = filepath.Clean(tree)
	info, err := os.Stat(tree)
	if err != nil {
		return "", fmt.Errorf("stat tree: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", tree)
	}

	if err := a.preflight(tree); err != nil {
		return "", err
	}

	dst := tree + Suffix
	a.logger.Info("writing archive", "archive", dst)
	if err := writeArchive(ctx, tree, dst); err != nil {
		return "", err
	}

	a.logger.Info("removing archived tree", "tree", tree)
	if err := RemoveTree(tree); err != nil {
		return dst, fmt.Errorf("remove tree: %w", err)
	}
	return dst, nil
}

// preflight compares the uncompressed tree size against the free space on
// the parent filesystem. Thumbnails barely compress, so the tree size is a
// fair upper bound.
func (a *Archiver) preflight(tree string) error {
	need, err := treeSize(tree)
	if err != nil {
		return fmt.Errorf("measure tree: %w", err)
	}
	free, err := a.freeSpace(filepath.Dir(tree))
	if err != nil {
		a.logger.Warn("cannot determine free space, archiving anyway", "err", err)
		return nil
	}
	if free < need {
		return fmt.Errorf("%w: need %d bytes, %d free", ErrInsufficientSpace, need, free)
	}
	return nil
}

func treeSize(root string) (uint64, error) {
	var total uint64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || img.IsTempName(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += uint64(info.Size())
		return nil
	})
	return total, err
}

func writeArchive(ctx context.Context, tree, dst string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	gz := gzip.NewWriter(tmp)
	tw := tar.NewWriter(gz)
	if err = addTree(ctx, tw, tree); err != nil {
		return err
	}
	if err = tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err = gz.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}
	if err = tmp.Chmod(FileMode); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}

func addTree(ctx context.Context, tw *tar.Writer, tree string) error {
	parent := filepath.Dir(tree)
	return filepath.WalkDir(tree, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() && img.IsTempName(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		var link string
		if d.Type()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("header %s: %w", path, err)
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write header %s: %w", hdr.Name, err)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("copy %s: %w", path, err)
		}
		return nil
	})
}

// RemoveTree deletes every file below root, then the directories deepest
// first, then root itself.
func RemoveTree(root string) error {
	var files, dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		} else {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return err
		}
	}
	// WalkDir visits parents before children, so the reverse order is
	// children first and root last.
	slices.Reverse(dirs)
	for _, d := range dirs {
		if err := os.Remove(d); err != nil {
			return err
		}
	}
	return nil
}
