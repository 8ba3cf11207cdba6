// Package files discovers input files on the local filesystem.
package files

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// JSONExt is the extension of input data files.
const JSONExt = ".json"

// FindJSON walks root recursively and returns the absolute path of every
// regular file with a .json extension, in lexical order.
func FindJSON(root string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}

	var paths []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && filepath.Ext(path) == JSONExt {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", abs, err)
	}
	return paths, nil
}
