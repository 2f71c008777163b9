package job

import (
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotFound is the error resulting if a path search failed to find an executable file.
var ErrNotFound = exec.ErrNotFound

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

// LookPath searches for an executable named file in the directories named by
// path, a PATH style list. If file contains a slash, it is tried directly and
// path is not consulted. The result may be an absolute path or a path relative
// to the current directory.
func LookPath(file, path string) (string, error) {
	if strings.Contains(file, "/") {
		err := findExecutable(file)
		if err == nil {
			return file, nil
		}
		return "", err
	}

	sawPermission := false
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := filepath.Join(dir, file)
		switch err := findExecutable(path); {
		case err == nil:
			return path, nil
		case err == fs.ErrPermission:
			sawPermission = true
		}
	}

	if sawPermission {
		return "", fs.ErrPermission
	}
	return "", ErrNotFound
}
