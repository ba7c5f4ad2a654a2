// Package depmanager provisions the external backend binaries: yt-dlp,
// gallery-dl and ffmpeg. Binaries are either looked up in PATH or downloaded
// into a bins directory and refreshed when the published checksums change.
// Checksums only detect new releases, they do not verify downloads.
package depmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"jusdown/internal/config"
	"jusdown/internal/errs"
)

// BinaryName represents the name of a binary dependency.
type BinaryName string

// Binary dependency names.
const (
	BinaryYTdlp     BinaryName = "yt-dlp"
	BinaryFFmpeg    BinaryName = "ffmpeg"
	BinaryFFprobe   BinaryName = "ffprobe"
	BinaryGalleryDL BinaryName = "gallery-dl"
)

const (
	downloadTimeout    = 10 * time.Minute
	filePermExecutable = 0o755
	filePermReadWrite  = 0o644
	sha256HexLength    = 64
	savedSumsFilename  = ".sha256sums.json"
)

// dependency describes where one release artifact comes from and which
// executables it provides.
type dependency struct {
	name BinaryName
	// asset is the file name as listed in the checksum file
	asset    string
	url      string
	sumsURL  string
	provides []BinaryName
}

// Manager manages binary dependencies.
type Manager struct {
	log    *slog.Logger
	cfg    config.DepManager
	deps   []dependency
	client *http.Client

	mu        sync.RWMutex
	remote    map[string]string // asset -> sha256 (fetched)
	saved     map[string]string // asset -> sha256 (from previous run)
	installed map[BinaryName]string

	updating atomic.Bool
}

// New creates a new dependency manager for the running OS/arch.
func New(log *slog.Logger, cfg *config.Config) *Manager {
	return &Manager{
		log:       log.With(slog.String("package", "depmanager")),
		cfg:       cfg.DepManager,
		deps:      dependencies(cfg.DepManager, runtime.GOARCH),
		client:    &http.Client{Timeout: downloadTimeout},
		remote:    make(map[string]string),
		saved:     make(map[string]string),
		installed: make(map[BinaryName]string),
	}
}

func dependencies(cfg config.DepManager, arch string) []dependency {
	pick := func(arm64, amd64 string) string {
		if arch == "arm64" && arm64 != "" {
			return arm64
		}

		return amd64
	}

	deps := []dependency{
		{
			name:     BinaryFFmpeg,
			url:      pick(cfg.FFmpegLinuxARM64, cfg.FFmpegLinuxAMD64),
			sumsURL:  cfg.FFmpegSHA256SumsURL,
			provides: []BinaryName{BinaryFFmpeg, BinaryFFprobe},
		},
		{
			name:     BinaryYTdlp,
			url:      pick(cfg.YTdlpLinuxARM64, cfg.YTdlpLinuxAMD64),
			sumsURL:  cfg.YTdlpSHA256SumsURL,
			provides: []BinaryName{BinaryYTdlp},
		},
		{
			name:     BinaryGalleryDL,
			url:      pick(cfg.GalleryDLLinuxARM64, cfg.GalleryDLLinuxAMD64),
			sumsURL:  cfg.GalleryDLSHA256SumsURL,
			provides: []BinaryName{BinaryGalleryDL},
		},
	}

	for i := range deps {
		deps[i].asset = filepath.Base(deps[i].url)
	}

	return deps
}

// Start resolves all binaries. Managed binaries are refreshed in the
// background until ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.UseSystemBinaries {
		return m.SetSystemBinaries()
	}

	if runtime.GOOS != "linux" {
		return fmt.Errorf("managed binaries on %s/%s: %w", runtime.GOOS, runtime.GOARCH, errs.ErrUnsupportedPlatform)
	}

	if err := m.InstallAll(ctx); err != nil {
		return err
	}

	go m.StartUpdateChecker(ctx)

	return nil
}

// SetSystemBinaries looks every binary up in PATH.
func (m *Manager) SetSystemBinaries() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, dep := range m.deps {
		for _, bin := range dep.provides {
			path, err := exec.LookPath(string(bin))
			if err != nil {
				return fmt.Errorf("%s: %w", bin, errs.ErrBinaryNotFound)
			}

			m.installed[bin] = path
		}
	}

	return nil
}

// InstallAll downloads every binary that is not present yet and records the
// current checksums for later update checks.
func (m *Manager) InstallAll(ctx context.Context) error {
	log := m.log

	if err := os.MkdirAll(m.cfg.BinsDir, filePermExecutable); err != nil {
		return fmt.Errorf("create bins directory: %w", err)
	}

	if err := m.loadSavedSums(); err != nil {
		log.DebugContext(ctx, "no saved checksums found, first run", slog.Any("error", err))
	}

	for _, dep := range m.deps {
		if m.present(dep) {
			m.markInstalled(dep)

			continue
		}

		if err := m.install(ctx, dep); err != nil {
			return fmt.Errorf("install %s: %w", dep.name, err)
		}
	}

	log.InfoContext(ctx, "all binaries are installed", slog.Any("binaries", m.snapshot()))

	if err := m.FetchSHASums(ctx); err != nil {
		log.WarnContext(ctx, "failed to fetch checksums", slog.Any("error", err))

		return nil
	}

	if err := m.saveSums(); err != nil {
		log.WarnContext(ctx, "failed to save checksums", slog.Any("error", err))
	}

	return nil
}

// Resolve returns the path of an installed binary, or "" when it is unknown
// so callers fall back to PATH lookup.
func (m *Manager) Resolve(name BinaryName) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.installed[name]
}

// StartUpdateChecker periodically reinstalls binaries whose published checksum changed.
func (m *Manager) StartUpdateChecker(ctx context.Context) {
	if m.cfg.UpdateInterval <= 0 {
		return
	}

	ticker := time.NewTicker(m.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkAndUpdate(ctx)
		}
	}
}

// FetchSHASums fetches every configured checksum file.
func (m *Manager) FetchSHASums(ctx context.Context) error {
	for _, dep := range m.deps {
		if dep.sumsURL == "" {
			continue
		}

		body, err := m.get(ctx, dep.sumsURL)
		if err != nil {
			return fmt.Errorf("fetch sums for %s: %w", dep.name, err)
		}

		content, err := io.ReadAll(body)
		body.Close()

		if err != nil {
			return fmt.Errorf("read sums for %s: %w", dep.name, err)
		}

		m.ParseSHASums(string(content))
	}

	return nil
}

// ParseSHASums merges "hash  filename" lines into the fetched checksums.
// Malformed lines are skipped.
func (m *Manager) ParseSHASums(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for line := range strings.SplitSeq(content, "\n") {
		hash, name, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok || len(hash) != sha256HexLength {
			continue
		}

		name = strings.TrimLeft(strings.TrimSpace(name), "*")
		if name == "" || strings.ContainsAny(name, " \t") {
			continue
		}

		m.remote[name] = hash
	}
}

func (m *Manager) checkAndUpdate(ctx context.Context) {
	if !m.updating.CompareAndSwap(false, true) {
		return
	}
	defer m.updating.Store(false)

	log := m.log

	if err := m.FetchSHASums(ctx); err != nil {
		log.WarnContext(ctx, "update check: failed to fetch checksums", slog.Any("error", err))

		return
	}

	updates := m.findUpdates()
	if len(updates) == 0 {
		log.DebugContext(ctx, "update check: no updates available")

		return
	}

	for _, dep := range updates {
		if err := m.install(ctx, dep); err != nil {
			log.ErrorContext(ctx, "update check: failed to update binary",
				slog.String("binary", string(dep.name)), slog.Any("error", err))

			continue
		}

		log.InfoContext(ctx, "update check: binary updated", slog.String("binary", string(dep.name)))
	}

	if err := m.saveSums(); err != nil {
		log.WarnContext(ctx, "update check: failed to save checksums", slog.Any("error", err))
	}
}

func (m *Manager) findUpdates() []dependency {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var updates []dependency

	for _, dep := range m.deps {
		remote, ok := m.remote[dep.asset]
		if ok && m.saved[dep.asset] != remote {
			updates = append(updates, dep)
		}
	}

	return updates
}

func (m *Manager) binPath(name BinaryName) string {
	return filepath.Join(m.cfg.BinsDir, string(name))
}

func (m *Manager) present(dep dependency) bool {
	for _, bin := range dep.provides {
		info, err := os.Stat(m.binPath(bin))
		if err != nil || info.Size() == 0 {
			return false
		}
	}

	return true
}

func (m *Manager) markInstalled(dep dependency) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, bin := range dep.provides {
		m.installed[bin] = m.binPath(bin)
	}
}

func (m *Manager) snapshot() map[BinaryName]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return maps.Clone(m.installed)
}

func (m *Manager) install(ctx context.Context, dep dependency) error {
	if dep.url == "" {
		return fmt.Errorf("no download URL for %s: %w", dep.name, errs.ErrUnsupportedPlatform)
	}

	m.log.InfoContext(ctx, "downloading binary", slog.String("binary", string(dep.name)), slog.String("url", dep.url))

	body, err := m.get(ctx, dep.url)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(m.cfg.BinsDir, "download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, err = io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return fmt.Errorf("write download: %w", err)
	}

	if isArchive(dep.url) {
		if err := extract(tmpPath, dep.url, m.cfg.BinsDir, dep.provides); err != nil {
			return fmt.Errorf("extract: %w", err)
		}
	} else if err := os.Rename(tmpPath, m.binPath(dep.name)); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	for _, bin := range dep.provides {
		if err := os.Chmod(m.binPath(bin), filePermExecutable); err != nil {
			return fmt.Errorf("chmod %s: %w", bin, err)
		}
	}

	m.markInstalled(dep)

	return nil
}

func (m *Manager) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()

		return nil, fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}

	return resp.Body, nil
}

func (m *Manager) loadSavedSums() error {
	data, err := os.ReadFile(filepath.Join(m.cfg.BinsDir, savedSumsFilename))
	if err != nil {
		return fmt.Errorf("read checksums file: %w", err)
	}

	saved := make(map[string]string)
	if err := json.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("unmarshal checksums: %w", err)
	}

	m.mu.Lock()
	m.saved = saved
	m.mu.Unlock()

	return nil
}

func (m *Manager) saveSums() error {
	m.mu.RLock()
	current := maps.Clone(m.remote)
	m.mu.RUnlock()

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checksums: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.cfg.BinsDir, savedSumsFilename), data, filePermReadWrite); err != nil {
		return fmt.Errorf("write checksums file: %w", err)
	}

	m.mu.Lock()
	m.saved = current
	m.mu.Unlock()

	return nil
}
