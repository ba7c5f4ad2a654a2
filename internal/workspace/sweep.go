package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockFileName = ".sweep.lock"

// SweepStale removes root entries older than maxAge, left behind by crashed
// processes. Only one process sweeps a root at a time; if another holds the
// lock the call returns immediately.
func (m *Manager) SweepStale(ctx context.Context, maxAge time.Duration) (int, error) {
	lock := flock.New(filepath.Join(m.root, lockFileName))

	locked, err := lock.TryLock()
	if err != nil {
		return 0, fmt.Errorf("lock root: %w", err)
	}

	if !locked {
		m.log.DebugContext(ctx, "sweep skipped, root locked by another process")

		return 0, nil
	}

	defer lock.Unlock()

	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, fmt.Errorf("read root: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		if entry.Name() == lockFileName {
			continue
		}

		path := filepath.Join(m.root, entry.Name())

		info, err := entry.Info()
		if err != nil {
			m.log.WarnContext(ctx, "stat stale entry", slog.String("path", path), slog.Any("error", err))

			continue
		}

		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			m.log.ErrorContext(ctx, "remove stale entry", slog.String("path", path), slog.Any("error", err))

			continue
		}

		removed++

		m.log.DebugContext(ctx, "stale entry removed", slog.String("path", path))
	}

	m.metrics.RecordSwept(removed)

	return removed, nil
}

// StartSweeper runs SweepStale every interval until ctx is done.
func (m *Manager) StartSweeper(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := m.log.With(slog.String("action", "sweep_stale"), slog.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			removed, err := m.SweepStale(ctx, maxAge)
			if err != nil {
				log.ErrorContext(ctx, "sweep failed", slog.Any("error", err))

				continue
			}

			if removed > 0 {
				log.InfoContext(ctx, "stale entries removed", slog.Int("count", removed))
			}
		case <-ctx.Done():
			log.Info("sweeper stopped")

			return
		}
	}
}
