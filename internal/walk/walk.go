// Package walk enumerates the candidate files of a run.
package walk

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// maxRootLinks bounds symlink resolution of the root.
const maxRootLinks = 40

// Files returns the regular files under root in lexical order. Without
// recursive only the direct children of root are listed. Directories,
// symlinks and special files are never returned.
//
// A root that is a symlink is followed; returned paths keep root as their
// prefix. A missing or unreadable root is an error; unreadable entries below
// it are logged and skipped.
func Files(fsys afero.Fs, root string, recursive bool, log logrus.FieldLogger) ([]string, error) {
	info, err := fsys.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", root)
	}
	if _, err := afero.ReadDir(fsys, root); err != nil {
		return nil, err
	}

	resolved, err := resolveRoot(fsys, root)
	if err != nil {
		return nil, err
	}

	var files []string
	err = afero.Walk(fsys, resolved, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			log.WithField("path", path).WithError(err).Warn("skipping unreadable entry")
			return nil
		}

		if info.IsDir() {
			if path != resolved && !recursive {
				return filepath.SkipDir
			}
			return nil
		}

		if info.Mode().IsRegular() {
			files = append(files, rebase(path, resolved, root))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// resolveRoot follows root while it is a symlink. Filesystems without
// symlink support return root unchanged.
func resolveRoot(fsys afero.Fs, root string) (string, error) {
	lstater, ok := fsys.(afero.Lstater)
	if !ok {
		return root, nil
	}
	reader, ok := fsys.(afero.LinkReader)
	if !ok {
		return root, nil
	}

	path := root
	for range maxRootLinks {
		info, _, err := lstater.LstatIfPossible(path)
		if err != nil {
			return "", err
		}
		if info.Mode()&fs.ModeSymlink == 0 {
			return path, nil
		}

		target, err := reader.ReadlinkIfPossible(path)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", root, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		path = target
	}
	return "", fmt.Errorf("resolve %s: too many links", root)
}

func rebase(path, from, to string) string {
	if from == to {
		return path
	}
	rel, err := filepath.Rel(from, path)
	if err != nil {
		return path
	}
	return filepath.Join(to, rel)
}
