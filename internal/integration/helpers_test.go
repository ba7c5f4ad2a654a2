//go:build integration
// +build integration

package integration_test

import (
	_ "embed"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"jusdown/internal/assembler"
	"jusdown/internal/billing"
	"jusdown/internal/config"
	"jusdown/internal/depmanager"
	"jusdown/internal/downloader"
	"jusdown/internal/identity"
	httprouter "jusdown/internal/infrastructure/delivery/http"
	"jusdown/internal/observability"
	"jusdown/internal/service"
	"jusdown/internal/subscription"
	"jusdown/internal/validator"
	"jusdown/internal/workspace"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	//go:embed testdata/fake-ytdlp.sh
	fakeYTDLPScript string
	//go:embed testdata/fake-gallery-dl.sh
	fakeGalleryDLScript string
	//go:embed testdata/fake-noop.sh
	fakeNoopScript string
)

type httpIntegrationFixture struct {
	cfg    *config.Config
	root   string
	server *httptest.Server
}

// newHTTPIntegrationFixture serves the full stack with fake backend binaries
// found through PATH. mode selects how the fakes behave.
func newHTTPIntegrationFixture(t *testing.T, mode string, jobTimeout time.Duration) *httpIntegrationFixture {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("integration fake backends are shell scripts")
	}

	baseDir := t.TempDir()
	binsDir := filepath.Join(baseDir, "bins")
	root := filepath.Join(baseDir, "temp_downloads")

	if err := os.MkdirAll(binsDir, 0o755); err != nil {
		t.Fatalf("mkdir bins dir: %v", err)
	}

	scripts := map[depmanager.BinaryName]string{
		depmanager.BinaryYTdlp:     fakeYTDLPScript,
		depmanager.BinaryGalleryDL: fakeGalleryDLScript,
		depmanager.BinaryFFmpeg:    fakeNoopScript,
		depmanager.BinaryFFprobe:   fakeNoopScript,
	}

	for name, script := range scripts {
		if err := os.WriteFile(filepath.Join(binsDir, string(name)), []byte(script), 0o755); err != nil {
			t.Fatalf("write fake %s: %v", name, err)
		}
	}

	t.Setenv("PATH", binsDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	t.Setenv("JUSDOWN_FAKE_MODE", mode)
	t.Setenv("JUSDOWN_DEPMANAGER_USE_SYSTEM_BINARIES", "true")
	t.Setenv("JUSDOWN_DIR_TEMP", root)
	t.Setenv("JUSDOWN_DIR_CACHE", filepath.Join(baseDir, "cache"))
	t.Setenv("JUSDOWN_AUTH_TOKEN_SECRET", "integration-secret")
	t.Setenv("JUSDOWN_BILLING_WEBHOOK_SECRET", "integration-webhook")

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config new: %v", err)
	}

	cfg.Job.Timeout = jobTimeout

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.New(prometheus.NewRegistry())

	depMgr := depmanager.New(log, cfg)
	if err := depMgr.Start(t.Context()); err != nil {
		t.Fatalf("dep manager start: %v", err)
	}

	workspaces, err := workspace.New(log, cfg.Dir.Temp, metrics)
	if err != nil {
		t.Fatalf("workspace new: %v", err)
	}

	subs, err := subscription.New(t.Context(), cfg.Subscription)
	if err != nil {
		t.Fatalf("subscription new: %v", err)
	}
	t.Cleanup(func() { _ = subs.Close() })

	pipeline := service.New(log,
		validator.New(log, cfg, subs),
		workspaces,
		downloader.New(log, cfg, downloader.NewYTdlp(log, cfg, depMgr), downloader.NewGalleryDL(log, depMgr), nil, metrics),
		assembler.New(log, cfg),
		metrics,
	)

	router := httprouter.New(log, cfg, pipeline,
		identity.NewResolver(cfg.Auth),
		subs,
		billing.NewWebhook(log, cfg.Billing, subs, metrics),
		metrics,
	)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &httpIntegrationFixture{cfg: cfg, root: cfg.Dir.Temp, server: server}
}

func (fx *httpIntegrationFixture) postDownload(t *testing.T, body string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Post(fx.server.URL+"/download", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post download: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	return resp, data
}

func (fx *httpIntegrationFixture) assertRootEmpty(t *testing.T) {
	t.Helper()

	entries, err := os.ReadDir(fx.root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}

	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}

		t.Fatalf("workspace root not empty: %v", names)
	}
}
