// Package workspace allocates per-request scratch directories under a single
// root and guarantees their removal.
package workspace

import (
	"log/slog"
	"path/filepath"
	"sync"
)

// Workspace is a directory exclusively owned by one pipeline execution.
// Archives created for it live next to it in the root and are removed with it.
type Workspace struct {
	ID  string
	Dir string

	root string

	mu       sync.Mutex
	archives []string
	released bool
}

// NewArchivePath returns a path directly under the root, outside Dir, that is
// removed together with the workspace. prefix and ext are used verbatim.
func (w *Workspace) NewArchivePath(prefix, ext string) string {
	path := filepath.Join(w.root, prefix+w.ID+ext)

	w.mu.Lock()
	w.archives = append(w.archives, path)
	w.mu.Unlock()

	return path
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (w *Workspace) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", w.ID),
		slog.String("dir", w.Dir),
	)
}
