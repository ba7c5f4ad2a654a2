package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"jusdown/internal/errs"
	"jusdown/internal/observability"

	"github.com/google/uuid"
)

const dirPerm = 0o750

// Manager owns the temp root and hands out workspaces below it.
type Manager struct {
	log     *slog.Logger
	root    string
	metrics *observability.Metrics
}

// New creates the root directory if needed and returns a Manager for it.
func New(log *slog.Logger, root string, metrics *observability.Metrics) (*Manager, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs root: %w", err)
	}

	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("create root %q: %w", root, err)
	}

	return &Manager{
		log:     log.With(slog.String("package", "workspace")),
		root:    root,
		metrics: metrics,
	}, nil
}

// Root returns the absolute temp root.
func (m *Manager) Root() string {
	return m.root
}

// Acquire creates a new uniquely named workspace.
func (m *Manager) Acquire(ctx context.Context) (*Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire workspace: %w", err)
	}

	id := uuid.NewString()
	dir := filepath.Join(m.root, id)

	// Mkdir, not MkdirAll: an existing directory must fail
	if err := os.Mkdir(dir, dirPerm); err != nil {
		m.metrics.RecordWorkspaceFailure("acquire")

		return nil, fmt.Errorf("create workspace: %w", err)
	}

	m.metrics.RecordWorkspaceAcquired()

	ws := &Workspace{ID: id, Dir: dir, root: m.root}

	m.log.DebugContext(ctx, "workspace acquired", slog.Any("workspace", ws))

	return ws, nil
}

// Release removes the workspace directory and its archives. Missing paths are
// not an error and releasing twice is a no-op.
func (m *Manager) Release(ctx context.Context, ws *Workspace) error {
	if ws == nil {
		return nil
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.released {
		return nil
	}

	if !m.owns(ws.Dir) {
		return fmt.Errorf("release %q: %w", ws.Dir, errs.ErrWorkspaceOutsideRoot)
	}

	ws.released = true
	m.metrics.RecordWorkspaceReleased()

	var errList []error

	if err := os.RemoveAll(ws.Dir); err != nil {
		errList = append(errList, fmt.Errorf("remove dir: %w", err))
	}

	for _, path := range ws.archives {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errList = append(errList, fmt.Errorf("remove archive: %w", err))
		}
	}

	if err := errors.Join(errList...); err != nil {
		m.metrics.RecordWorkspaceFailure("release")
		m.log.ErrorContext(ctx, "workspace release failed", slog.Any("workspace", ws), slog.Any("error", err))

		return err
	}

	m.log.DebugContext(ctx, "workspace released", slog.Any("workspace", ws))

	return nil
}

func (m *Manager) owns(path string) bool {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return false
	}

	return rel != "." && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}
