// Package downloader builds backend options and runs the extraction backends.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"jusdown/internal/config"
	"jusdown/internal/consts"
	"jusdown/internal/entity"
	"jusdown/internal/errs"
	"jusdown/internal/observability"
	"jusdown/internal/workspace"
)

const defaultProgressFreq = 500 * time.Millisecond

// Extractor runs the video/audio backend. Extract writes under opts.OutputDir;
// ListFormats and ResolveURL write nothing.
type Extractor interface {
	Extract(ctx context.Context, opts entity.BackendOptions, url string) (*entity.Metadata, error)
	ListFormats(ctx context.Context, opts entity.BackendOptions, url string) ([]entity.MediaFormat, error)
	ResolveURL(ctx context.Context, opts entity.BackendOptions, url string) (string, error)
}

// Gallery runs the image backend into dir and returns its exit code.
type Gallery interface {
	Run(ctx context.Context, dir, url string, flags []string) (int, error)
}

// ProxyPicker hands out proxies and receives feedback about them.
type ProxyPicker interface {
	GetRandomProxy() string
	MarkFailed(proxy string)
	MarkSuccess(proxy string)
}

// Dispatcher invokes the backend matching a request's content type.
type Dispatcher struct {
	log       *slog.Logger
	cfg       *config.Config
	extractor Extractor
	gallery   Gallery
	proxies   ProxyPicker
	metrics   *observability.Metrics
	slots     chan struct{}
}

// New creates a Dispatcher. proxies may be nil.
func New(
	log *slog.Logger,
	cfg *config.Config,
	extractor Extractor,
	gallery Gallery,
	proxies ProxyPicker,
	metrics *observability.Metrics,
) *Dispatcher {
	return &Dispatcher{
		log:       log.With(slog.String("package", "downloader")),
		cfg:       cfg,
		extractor: extractor,
		gallery:   gallery,
		proxies:   proxies,
		metrics:   metrics,
		slots:     make(chan struct{}, max(cfg.Job.Workers, 1)),
	}
}

// Dispatch runs the backend for req inside ws and returns the files it produced.
// Backend failures are returned as *errs.BackendError.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	req entity.DownloadRequest,
	ws *workspace.Workspace,
) (*entity.ExtractionResult, error) {
	if err := d.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer func() { <-d.slots }()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Job.Timeout)
	defer cancel()

	opts := BuildOptions(d.cfg, req, ws.Dir)
	opts.Proxy = d.pickProxy()

	log := d.log.With(slog.Any("request", req), slog.Any("options", opts))

	backend, meta, err := d.run(ctx, req, opts)
	d.reportProxy(opts.Proxy, err)

	if err != nil {
		var backendErr *errs.BackendError
		if !errors.As(err, &backendErr) {
			backendErr = classify(ctx, backend, "", err)
		}

		d.metrics.RecordDownloaderRequest(backend, "error")
		d.metrics.RecordDownloaderError(backend, backendErr.Kind.String())
		log.ErrorContext(ctx, "backend failed",
			slog.String("backend", backend),
			slog.String("kind", backendErr.Kind.String()),
			slog.String("detail", backendErr.Detail),
			slog.Any("error", backendErr.Err))

		return nil, backendErr
	}

	d.metrics.RecordDownloaderRequest(backend, "success")

	files, err := workspace.ListFiles(ws.Dir)
	if err != nil {
		return nil, fmt.Errorf("list workspace files: %w", err)
	}

	switch req.Type {
	case entity.ContentImage:
		if len(files) == 0 {
			d.metrics.RecordDownloaderError(backend, errs.KindEmpty.String())

			return nil, errs.NewBackendError(backend, errs.KindEmpty, "no images written", nil)
		}
	case entity.ContentAudio:
		converted, err := pickByExt(files, opts.AudioCodec)
		if err != nil {
			log.ErrorContext(ctx, "converted audio missing", slog.Any("files", files))

			return nil, err
		}

		files = []string{converted}
	case entity.ContentVideo:
	}

	res := &entity.ExtractionResult{Dir: ws.Dir, Files: files}
	if meta != nil {
		res.Metadata = *meta
	}

	log.InfoContext(ctx, "backend finished", slog.Any("result", res))

	return res, nil
}

// Formats lists the curated video and audio formats req.URL offers.
func (d *Dispatcher) Formats(ctx context.Context, req entity.DownloadRequest) ([]entity.FormatOption, error) {
	var formats []entity.MediaFormat

	err := d.lookup(ctx, req, "", "list formats", func(ctx context.Context, opts entity.BackendOptions) error {
		var err error
		formats, err = d.extractor.ListFormats(ctx, opts, req.URL)

		return err
	})
	if err != nil {
		return nil, err
	}

	return SelectFormats(formats), nil
}

// DirectURL resolves the media url of formatID for req.URL.
func (d *Dispatcher) DirectURL(ctx context.Context, req entity.DownloadRequest, formatID string) (string, error) {
	var url string

	err := d.lookup(ctx, req, formatID, "resolve url", func(ctx context.Context, opts entity.BackendOptions) error {
		var err error
		url, err = d.extractor.ResolveURL(ctx, opts, req.URL)

		return err
	})

	return url, err
}

// lookup runs fn under a worker slot and the job timeout with a proxy picked
// like Dispatch does.
func (d *Dispatcher) lookup(
	ctx context.Context,
	req entity.DownloadRequest,
	format, op string,
	fn func(ctx context.Context, opts entity.BackendOptions) error,
) error {
	if err := d.acquireSlot(ctx); err != nil {
		return err
	}
	defer func() { <-d.slots }()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Job.Timeout)
	defer cancel()

	opts := LookupOptions(d.cfg, req, format)
	opts.Proxy = d.pickProxy()

	err := fn(ctx, opts)
	d.reportProxy(opts.Proxy, err)

	if err != nil {
		var backendErr *errs.BackendError
		if !errors.As(err, &backendErr) {
			backendErr = classify(ctx, consts.DownloaderYTdlp, "", err)
		}

		d.metrics.RecordDownloaderRequest(consts.DownloaderYTdlp, "error")
		d.metrics.RecordDownloaderError(consts.DownloaderYTdlp, backendErr.Kind.String())
		d.log.ErrorContext(ctx, op+" failed",
			slog.Any("request", req),
			slog.String("kind", backendErr.Kind.String()),
			slog.String("detail", backendErr.Detail),
			slog.Any("error", backendErr.Err))

		return backendErr
	}

	d.metrics.RecordDownloaderRequest(consts.DownloaderYTdlp, "success")

	return nil
}

// acquireSlot waits for a free worker for at most Job.QueueTimeout.
func (d *Dispatcher) acquireSlot(ctx context.Context) error {
	var expired <-chan time.Time

	if d.cfg.Job.QueueTimeout > 0 {
		timer := time.NewTimer(d.cfg.Job.QueueTimeout)
		defer timer.Stop()

		expired = timer.C
	}

	select {
	case d.slots <- struct{}{}:
		return nil
	case <-expired:
		d.metrics.RecordDownloaderError(consts.DownloaderQueue, "busy")

		return fmt.Errorf("wait %s for backend slot: %w", d.cfg.Job.QueueTimeout, errs.ErrBackendBusy)
	case <-ctx.Done():
		return fmt.Errorf("wait for backend slot: %w", ctx.Err())
	}
}

func (d *Dispatcher) run(
	ctx context.Context,
	req entity.DownloadRequest,
	opts entity.BackendOptions,
) (string, *entity.Metadata, error) {
	if req.Type == entity.ContentImage {
		code, err := d.gallery.Run(ctx, opts.OutputDir, req.URL, GalleryFlags(opts))
		if err == nil && code != 0 {
			err = errs.NewBackendError(consts.DownloaderGalleryDL, errs.KindEmpty,
				fmt.Sprintf("exit code %d", code), nil)
		}

		return consts.DownloaderGalleryDL, nil, err
	}

	meta, err := d.extractor.Extract(ctx, opts, req.URL)

	return consts.DownloaderYTdlp, meta, err
}

func (d *Dispatcher) pickProxy() string {
	if d.proxies == nil {
		return ""
	}

	return d.proxies.GetRandomProxy()
}

func (d *Dispatcher) reportProxy(proxy string, err error) {
	if d.proxies == nil || proxy == "" {
		return
	}

	if err == nil {
		d.proxies.MarkSuccess(proxy)

		return
	}

	if kind, ok := errs.BackendKind(err); ok && kind == errs.KindAuthOrRateLimited {
		d.proxies.MarkFailed(proxy)
	}
}

// pickByExt returns the first file carrying the ext extension.
func pickByExt(files []string, ext string) (string, error) {
	for _, f := range files {
		if strings.EqualFold(strings.TrimPrefix(filepath.Ext(f), "."), ext) {
			return f, nil
		}
	}

	return "", fmt.Errorf("%s among %d files: %w", ext, len(files), errs.ErrConvertedFileMissing)
}
