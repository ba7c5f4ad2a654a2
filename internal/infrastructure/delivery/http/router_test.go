package httprouter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"jusdown/internal/assembler"
	"jusdown/internal/billing"
	"jusdown/internal/config"
	"jusdown/internal/downloader"
	"jusdown/internal/entity"
	"jusdown/internal/errs"
	"jusdown/internal/identity"
	httprouter "jusdown/internal/infrastructure/delivery/http"
	"jusdown/internal/observability"
	"jusdown/internal/service"
	"jusdown/internal/subscription"
	"jusdown/internal/validator"
	"jusdown/internal/workspace"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const (
	tokenSecret   = "token-secret"
	webhookSecret = "webhook-secret"
	cookieName    = "jusdown_session"
)

type harness struct {
	root      string
	extractor *downloader.MockExtractor
	gallery   *downloader.MockGallery
	store     *subscription.Memory
	metrics   *observability.Metrics
	handler   http.Handler
}

func newHarness(t *testing.T, store billing.Store) *harness {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		App:  config.App{Brand: "JusDown"},
		HTTP: config.HTTP{HandlerTimeout: 5 * time.Second, MaxBodyBytes: 1 << 16},
		Job:  config.Job{Workers: 2, Timeout: time.Minute},
		Backend: config.Backend{
			FormatPolicy:        config.FormatPolicyPreferSingle,
			DefaultVideoFormat:  "bestvideo[height<=?1080]+bestaudio/best",
			MergeOutputFormat:   "mp4",
			AudioFormat:         "bestaudio/best",
			AudioCodec:          "mp3",
			DefaultAudioBitrate: 192,
			OutputTemplate:      "%(id)s.%(ext)s",
			MaxNameLength:       230,
		},
		Subscription: config.Subscription{PremiumPlatforms: []string{"vimeo"}},
		Auth:         config.Auth{TokenSecret: tokenSecret, CookieName: cookieName},
		Billing:      config.Billing{WebhookSecret: webhookSecret, DedupeSize: 16, DedupeTTL: time.Hour},
	}

	h := &harness{
		root:      t.TempDir(),
		extractor: &downloader.MockExtractor{},
		gallery:   &downloader.MockGallery{},
		store:     subscription.NewMemory(),
		metrics:   observability.New(prometheus.NewRegistry()),
	}

	if store == nil {
		store = h.store
	}

	workspaces, err := workspace.New(log, h.root, h.metrics)
	if err != nil {
		t.Fatal(err)
	}

	pipeline := service.New(log,
		validator.New(log, cfg, h.store),
		workspaces,
		downloader.New(log, cfg, h.extractor, h.gallery, nil, h.metrics),
		assembler.New(log, cfg),
		h.metrics,
	)

	h.handler = httprouter.New(log, cfg, pipeline,
		identity.NewResolver(cfg.Auth),
		h.store,
		billing.NewWebhook(log, cfg.Billing, store, h.metrics),
		h.metrics,
	)

	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	return rec
}

func bearer(t *testing.T, uid string) string {
	t.Helper()

	token, err := identity.Sign(tokenSecret, identity.Claims{Sub: uid, Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatal(err)
	}

	return "Bearer " + token
}

func downloadRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error string `json:"error"`
	}

	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body %q: %v", rec.Body.String(), err)
	}

	return body.Error
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/v1/readyz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("readyz = %d %q", rec.Code, rec.Body.String())
	}

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestDownloadStreamsArtifact(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.extractor.Files = map[string]string{"abc.mp4": "video-bytes"}
	h.extractor.Metadata = entity.Metadata{ID: "abc", Title: "Café Night"}

	rec := h.do(downloadRequest(`{"url":" https://youtu.be/abc ","type":"mp4","quality":"720p","platform":"YouTube"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}

	if got := rec.Body.String(); got != "video-bytes" {
		t.Errorf("body = %q", got)
	}

	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q", got)
	}

	if got := rec.Header().Get("Content-Length"); got != "11" {
		t.Errorf("Content-Length = %q", got)
	}

	_, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	if err != nil {
		t.Fatalf("Content-Disposition: %v", err)
	}

	// mime decodes filename* in preference to filename
	if want := "JusDown - Cafe Night - MP4 | 720p.mp4"; params["filename"] != want {
		t.Errorf("filename = %q, want %q", params["filename"], want)
	}

	if got := h.extractor.LastOptions().OutputDir; !strings.HasPrefix(got, h.root) {
		t.Errorf("backend ran outside the workspace root: %q", got)
	}

	if entries, _ := os.ReadDir(h.root); len(entries) != 0 {
		t.Errorf("workspace root not empty: %d entries", len(entries))
	}
}

func TestDownloadRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		auth       func(t *testing.T, h *harness, r *http.Request)
		wantStatus int
		wantError  string
	}{
		{
			name:       "empty url",
			body:       `{"url":"","type":"mp4"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "URL is required",
		},
		{
			name:       "malformed body",
			body:       `{"url":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
		{
			name:       "youtube url with instagram selected",
			body:       `{"url":"https://youtu.be/abc","platform":"Instagram"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Please select relevant platform to download content.",
		},
		{
			name:       "images from youtube",
			body:       `{"url":"https://youtu.be/abc","type":"image","platform":"YouTube"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Images cannot be downloaded from this platform.",
		},
		{
			name:       "vimeo anonymous",
			body:       `{"url":"https://vimeo.com/1","platform":"Vimeo"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Login required for premium platforms",
		},
		{
			name: "vimeo with bad token",
			body: `{"url":"https://vimeo.com/1","platform":"Vimeo"}`,
			auth: func(_ *testing.T, _ *harness, r *http.Request) {
				r.Header.Set("Authorization", "Bearer garbage")
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Login required for premium platforms",
		},
		{
			name: "vimeo without subscription",
			body: `{"url":"https://vimeo.com/1","platform":"Vimeo"}`,
			auth: func(t *testing.T, _ *harness, r *http.Request) {
				r.Header.Set("Authorization", bearer(t, "uid-1"))
			},
			wantStatus: http.StatusForbidden,
			wantError:  "Subscription required for premium platforms",
		},
		{
			name:       "nothing downloaded",
			body:       `{"url":"https://www.instagram.com/reel/1"}`,
			wantStatus: http.StatusForbidden,
			wantError: "This platform requires a login and is blocking our server. " +
				"We are working on a solution, but for now, this content cannot be downloaded.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, nil)

			req := downloadRequest(tc.body)
			if tc.auth != nil {
				tc.auth(t, h, req)
			}

			rec := h.do(req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tc.wantStatus, rec.Body.String())
			}

			if got := decodeError(t, rec); got != tc.wantError {
				t.Errorf("error = %q, want %q", got, tc.wantError)
			}

			if entries, _ := os.ReadDir(h.root); len(entries) != 0 {
				t.Errorf("workspace root not empty: %d entries", len(entries))
			}
		})
	}
}

func TestDownloadSubscribedViaCookie(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.extractor.Files = map[string]string{"1.mp4": "v"}

	if err := h.store.SetSubscribed(t.Context(), "uid-1", true); err != nil {
		t.Fatal(err)
	}

	req := downloadRequest(`{"url":"https://vimeo.com/1","platform":"Vimeo"}`)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: strings.TrimPrefix(bearer(t, "uid-1"), "Bearer ")})

	if rec := h.do(req); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	if err := h.store.SetSubscribed(t.Context(), "uid-paid", true); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		auth string
		want httprouter.StatusResponse
	}{
		{name: "anonymous", want: httprouter.StatusResponse{}},
		{name: "logged in", auth: bearer(t, "uid-free"), want: httprouter.StatusResponse{LoggedIn: true}},
		{name: "subscribed", auth: bearer(t, "uid-paid"), want: httprouter.StatusResponse{LoggedIn: true, Subscribed: true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}

			rec := h.do(req)

			var got httprouter.StatusResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode %q: %v", rec.Body.String(), err)
			}

			if rec.Code != http.StatusOK || got != tc.want {
				t.Errorf("status = %d %+v, want %+v", rec.Code, got, tc.want)
			}
		})
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	rec := h.do(httptest.NewRequest(http.MethodPost, "/logout", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != cookieName || cookies[0].MaxAge >= 0 {
		t.Errorf("cookies = %+v", cookies)
	}
}

type failingStore struct{}

func (failingStore) SetSubscribed(context.Context, string, bool) error {
	return errors.New("store down")
}

func webhookRequest(body []byte, signature, eventID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/billing/webhook", bytes.NewReader(body))
	req.Header.Set(httprouter.HeaderWebhookSignature, signature)
	req.Header.Set(httprouter.HeaderWebhookEventID, eventID)

	return req
}

func TestBillingWebhook(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"subscription.charged","payload":{"subscription":{"entity":{"id":"sub_1","notes":{"firebase_uid":"uid-9"}}}}}`)

	t.Run("applied then duplicate", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, nil)

		for i, want := range []string{"event applied", "event already applied"} {
			rec := h.do(webhookRequest(body, billing.Sign(webhookSecret, body), "evt_1"))
			if rec.Code != http.StatusOK {
				t.Fatalf("delivery %d: status = %d", i, rec.Code)
			}

			var resp struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Message != want {
				t.Errorf("delivery %d: message = %q (%v), want %q", i, resp.Message, err, want)
			}
		}

		status, _ := h.store.Status(t.Context(), "uid-9")
		if !status.Subscribed {
			t.Error("charged event did not subscribe the user")
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, nil)

		if rec := h.do(webhookRequest(body, "00", "evt_1")); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("store failure asks for retry", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, failingStore{})

		if rec := h.do(webhookRequest(body, billing.Sign(webhookSecret, body), "evt_1")); rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})
}

func TestMetricsRecorded(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	h.do(httptest.NewRequest(http.MethodGet, "/status", nil))
	h.do(httptest.NewRequest(http.MethodGet, "/nope", nil))

	if got := testutil.ToFloat64(h.metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/status", "200")); got != 1 {
		t.Errorf("/status requests = %v, want 1", got)
	}

	if got := testutil.ToFloat64(h.metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")); got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}

	if rec := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil)); rec.Code != http.StatusOK {
		t.Errorf("/metrics status = %d", rec.Code)
	}
}

func TestContentDisposition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       string
		wantName string
	}{
		{name: "ascii", in: "JusDown - Song - MP3 | 320kb/s.mp3", wantName: "JusDown - Song - MP3 | 320kb/s.mp3"},
		{name: "unicode", in: "JusDown - 東京 - MP4.mp4", wantName: "JusDown - 東京 - MP4.mp4"},
		{name: "quotes", in: `JusDown - "live" - MP4.mp4`, wantName: `JusDown - "live" - MP4.mp4`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			header := httprouter.ContentDisposition(tc.in)
			if !strings.HasPrefix(header, "attachment; filename=") {
				t.Fatalf("header = %q", header)
			}

			disposition, params, err := mime.ParseMediaType(header)
			if err != nil || disposition != "attachment" {
				t.Fatalf("ParseMediaType(%q) = %q, %v", header, disposition, err)
			}

			if params["filename"] != tc.wantName {
				t.Errorf("filename = %q, want %q", params["filename"], tc.wantName)
			}
		})
	}
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	return req
}

func TestFormats(t *testing.T) {
	t.Parallel()

	t.Run("listed", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, nil)
		h.extractor.Formats = []entity.MediaFormat{
			{ID: "251", Ext: "webm", VCodec: "none", ACodec: "opus", ABR: 135},
			{ID: "22", Ext: "mp4", VCodec: "avc1", ACodec: "mp4a", Height: 720},
		}

		rec := h.do(postJSON("/formats", `{"url":"https://www.youtube.com/watch?v=abc"}`))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
		}

		var got []entity.FormatOption
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode %q: %v", rec.Body.String(), err)
		}

		want := []entity.FormatOption{
			{ID: "22", Text: "Video 720p (MP4)", Type: entity.ContentVideo, Quality: 720},
			{ID: "251", Text: "Audio 128k (WEBM)", Type: entity.ContentAudio, Quality: 128},
		}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("formats = %+v, want %+v", got, want)
		}
	})

	t.Run("nothing usable is an empty list", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, nil)

		rec := h.do(postJSON("/formats", `{"url":"https://youtu.be/abc"}`))
		if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Errorf("formats = %d %q, want 200 []", rec.Code, rec.Body.String())
		}
	})

	tests := []struct {
		name       string
		body       string
		backendErr error
		wantStatus int
		wantError  string
	}{
		{"not youtube", `{"url":"https://vimeo.com/1"}`, nil, http.StatusBadRequest, "A valid YouTube URL is required"},
		{"empty url", `{"url":""}`, nil, http.StatusBadRequest, "A valid YouTube URL is required"},
		{"bad body", `[`, nil, http.StatusBadRequest, "invalid request body"},
		{
			"backend broken", `{"url":"https://youtu.be/abc"}`,
			errs.NewBackendError("ytdlp", errs.KindUnavailable, "boom", nil),
			http.StatusInternalServerError, "Could not fetch video formats. The URL might be invalid or private.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, nil)
			h.extractor.Err = tc.backendErr

			rec := h.do(postJSON("/formats", tc.body))
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tc.wantStatus, rec.Body.String())
			}

			if got := decodeError(t, rec); got != tc.wantError {
				t.Errorf("error = %q, want %q", got, tc.wantError)
			}
		})
	}
}

func TestDirectURL(t *testing.T) {
	t.Parallel()

	t.Run("resolved", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, nil)
		h.extractor.URL = "https://media.example/abc/22.mp4"

		rec := h.do(postJSON("/download-url", `{"url":"https://youtu.be/abc","formatId":"22"}`))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
		}

		var got httprouter.DirectURLResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode %q: %v", rec.Body.String(), err)
		}

		if got.DownloadURL != h.extractor.URL {
			t.Errorf("downloadUrl = %q, want %q", got.DownloadURL, h.extractor.URL)
		}

		if h.extractor.LastOptions().Format != "22" {
			t.Errorf("format = %q, want 22", h.extractor.LastOptions().Format)
		}
	})

	tests := []struct {
		name       string
		body       string
		backendErr error
		wantStatus int
		wantError  string
	}{
		{"missing format", `{"url":"https://youtu.be/abc"}`, nil, http.StatusBadRequest, "URL and Format ID are required"},
		{"missing url", `{"formatId":"22"}`, nil, http.StatusBadRequest, "URL and Format ID are required"},
		{
			"premium anonymous", `{"url":"https://vimeo.com/1","formatId":"hls-720","platform":"Vimeo"}`,
			nil, http.StatusUnauthorized, "Login required for premium platforms",
		},
		{
			"backend broken", `{"url":"https://youtu.be/abc","formatId":"22"}`,
			errs.NewBackendError("ytdlp", errs.KindUnavailable, "boom", nil),
			http.StatusInternalServerError, "Could not get download URL.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, nil)
			h.extractor.Err = tc.backendErr

			rec := h.do(postJSON("/download-url", tc.body))
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tc.wantStatus, rec.Body.String())
			}

			if got := decodeError(t, rec); got != tc.wantError {
				t.Errorf("error = %q, want %q", got, tc.wantError)
			}
		})
	}
}
