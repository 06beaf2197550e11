package img

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileMode is the permission mode of written thumbnails.
const FileMode os.FileMode = 0o640

const tempMarker = ".tmp-"

// IsTempName reports whether name is an unfinished write of
// writeFileAtomic, left behind when the process died mid-write.
func IsTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, tempMarker)
}

// writeFileAtomic streams encode into a temporary file next to dst and renames
// it into place. dst either does not exist or holds a complete thumbnail.
// The parent directory must exist.
func writeFileAtomic(dst string, encode func(w io.Writer) error) error {
	dir, name := filepath.Split(dst)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+name+tempMarker+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := encode(tmp); err != nil {
		return err
	}
	if err := tmp.Chmod(FileMode); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}
