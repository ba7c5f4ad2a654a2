package workspace

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// partial download leftovers that never count as output
var partialSuffixes = []string{".part", ".ytdl", ".temp", ".tmp"}

// ListFiles returns absolute paths of the regular files below dir in lexical
// order of their path relative to dir. Partial download leftovers are skipped.
func ListFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		name := strings.ToLower(d.Name())
		if slices.ContainsFunc(partialSuffixes, func(s string) bool { return strings.HasSuffix(name, s) }) {
			return nil
		}

		files = append(files, path)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", dir, err)
	}

	// WalkDir already visits in lexical order
	return files, nil
}
