package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"jusdown/internal/consts"
	"jusdown/internal/entity"
)

// MockExtractor writes fixed files instead of running yt-dlp.
type MockExtractor struct {
	// Files maps names relative to the output dir to their content.
	Files    map[string]string
	Metadata entity.Metadata
	Delay    time.Duration
	Err      error

	// Formats and URL answer ListFormats and ResolveURL.
	Formats []entity.MediaFormat
	URL     string

	calls atomic.Int32
	last  atomic.Pointer[entity.BackendOptions]
}

// Extract implements Extractor.
func (m *MockExtractor) Extract(ctx context.Context, opts entity.BackendOptions, _ string) (*entity.Metadata, error) {
	m.calls.Add(1)
	m.last.Store(&opts)

	if err := simulateDownload(ctx, m.Delay); err != nil {
		return nil, classify(ctx, consts.DownloaderMock, "", err)
	}

	if m.Err != nil {
		return nil, m.Err
	}

	if err := writeFiles(opts.OutputDir, m.Files); err != nil {
		return nil, err
	}

	meta := m.Metadata

	return &meta, nil
}

// ListFormats implements Extractor.
func (m *MockExtractor) ListFormats(ctx context.Context, opts entity.BackendOptions, _ string) ([]entity.MediaFormat, error) {
	if err := m.lookup(ctx, opts); err != nil {
		return nil, err
	}

	return slices.Clone(m.Formats), nil
}

// ResolveURL implements Extractor.
func (m *MockExtractor) ResolveURL(ctx context.Context, opts entity.BackendOptions, _ string) (string, error) {
	if err := m.lookup(ctx, opts); err != nil {
		return "", err
	}

	return m.URL, nil
}

func (m *MockExtractor) lookup(ctx context.Context, opts entity.BackendOptions) error {
	m.calls.Add(1)
	m.last.Store(&opts)

	if err := simulateDownload(ctx, m.Delay); err != nil {
		return classify(ctx, consts.DownloaderMock, "", err)
	}

	return m.Err
}

// Calls reports how many times the extractor ran.
func (m *MockExtractor) Calls() int { return int(m.calls.Load()) }

// LastOptions returns the options of the most recent call.
func (m *MockExtractor) LastOptions() entity.BackendOptions {
	if opts := m.last.Load(); opts != nil {
		return *opts
	}

	return entity.BackendOptions{}
}

// MockGallery writes fixed files instead of running gallery-dl.
type MockGallery struct {
	Files    map[string]string
	ExitCode int
	Err      error

	calls atomic.Int32
	flags atomic.Pointer[[]string]
}

// Run implements Gallery.
func (m *MockGallery) Run(_ context.Context, dir, _ string, flags []string) (int, error) {
	m.calls.Add(1)
	m.flags.Store(&flags)

	if m.Err != nil || m.ExitCode != 0 {
		return m.ExitCode, m.Err
	}

	return 0, writeFiles(dir, m.Files)
}

// Calls reports how many times Run ran.
func (m *MockGallery) Calls() int { return int(m.calls.Load()) }

// LastFlags returns the flags of the most recent call.
func (m *MockGallery) LastFlags() []string {
	if flags := m.flags.Load(); flags != nil {
		return *flags
	}

	return nil
}

func writeFiles(dir string, files map[string]string) error {
	for name, content := range files {
		path := filepath.Join(dir, name)

		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}

		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	return nil
}

func simulateDownload(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
