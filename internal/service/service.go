// Package service runs the download pipeline for one request.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"jusdown/internal/entity"
	"jusdown/internal/errs"
	"jusdown/internal/observability"
	"jusdown/internal/workspace"
)

// Validator rejects requests before any resource is allocated.
type Validator interface {
	Validate(ctx context.Context, req entity.DownloadRequest, id entity.Identity) error
	ValidateFormats(url string) error
}

// Workspaces allocates and removes per-request directories.
type Workspaces interface {
	Acquire(ctx context.Context) (*workspace.Workspace, error)
	Release(ctx context.Context, ws *workspace.Workspace) error
}

// Dispatcher runs the extraction backend inside a workspace.
type Dispatcher interface {
	Dispatch(ctx context.Context, req entity.DownloadRequest, ws *workspace.Workspace) (*entity.ExtractionResult, error)
	Formats(ctx context.Context, req entity.DownloadRequest) ([]entity.FormatOption, error)
	DirectURL(ctx context.Context, req entity.DownloadRequest, formatID string) (string, error)
}

// Assembler builds the single artifact returned to the caller.
type Assembler interface {
	Assemble(
		ctx context.Context,
		ws *workspace.Workspace,
		res *entity.ExtractionResult,
		req entity.DownloadRequest,
	) (*entity.OutputArtifact, error)
}

// DeliverFunc streams the artifact to the caller. The artifact is removed as
// soon as it returns.
type DeliverFunc func(art *entity.OutputArtifact) error

// ErrDelivery wraps failures while streaming an artifact to the caller.
var ErrDelivery = errors.New("deliver artifact")

// Pipeline is Validator → Workspace → Dispatcher → Assembler → delivery,
// with the workspace released on every path.
type Pipeline struct {
	log        *slog.Logger
	validator  Validator
	workspaces Workspaces
	dispatcher Dispatcher
	assembler  Assembler
	metrics    *observability.Metrics
}

// New creates a Pipeline.
func New(
	log *slog.Logger,
	validator Validator,
	workspaces Workspaces,
	dispatcher Dispatcher,
	assembler Assembler,
	metrics *observability.Metrics,
) *Pipeline {
	return &Pipeline{
		log:        log.With(slog.String("package", "service")),
		validator:  validator,
		workspaces: workspaces,
		dispatcher: dispatcher,
		assembler:  assembler,
		metrics:    metrics,
	}
}

// Download runs the pipeline for req and hands the artifact to deliver.
// Errors are returned untranslated; errs.Translate maps them for the caller.
func (p *Pipeline) Download(
	ctx context.Context,
	req entity.DownloadRequest,
	id entity.Identity,
	deliver DeliverFunc,
) (err error) {
	log := p.log.With(slog.Any("request", req), slog.Bool("logged_in", id.Present()))
	done := p.metrics.DownloadTimer()

	defer func() {
		status, _ := errs.Translate(err)

		switch {
		case err == nil:
			done("success", 200)
		case errors.Is(err, ErrDelivery):
			log.WarnContext(ctx, "download not delivered", slog.Any("error", err))
			done("aborted", status)
		default:
			log.ErrorContext(ctx, "download failed", slog.Int("status", status), slog.Any("error", err))
			done("failed", status)
		}
	}()

	if err := p.validator.Validate(ctx, req, id); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	ws, err := p.workspaces.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire workspace: %w", err)
	}

	defer func() {
		// removal must happen even when the caller has gone away
		if rerr := p.workspaces.Release(context.WithoutCancel(ctx), ws); rerr != nil {
			log.ErrorContext(ctx, "release workspace", slog.Any("error", rerr))
		}
	}()

	res, err := p.dispatcher.Dispatch(ctx, req, ws)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	art, err := p.assembler.Assemble(ctx, ws, res, req)
	if err != nil {
		return fmt.Errorf("assemble: %w", err)
	}

	log.InfoContext(ctx, "delivering artifact", slog.Any("artifact", art))

	if err := deliver(art); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	p.metrics.RecordArtifact(art.Size)

	return nil
}

// Formats lists the formats a YouTube url offers. Nothing is written to disk.
func (p *Pipeline) Formats(ctx context.Context, req entity.DownloadRequest) ([]entity.FormatOption, error) {
	log := p.log.With(slog.Any("request", req))

	if err := p.validator.ValidateFormats(req.URL); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	formats, err := p.dispatcher.Formats(ctx, req)
	if err != nil {
		log.ErrorContext(ctx, "list formats failed", slog.Any("error", err))

		return nil, fmt.Errorf("list formats: %w", err)
	}

	log.InfoContext(ctx, "formats listed", slog.Int("formats", len(formats)))

	return formats, nil
}

// DirectURL resolves the media url of formatID for req.URL. Premium platforms
// are gated the same way as downloads.
func (p *Pipeline) DirectURL(
	ctx context.Context,
	req entity.DownloadRequest,
	id entity.Identity,
	formatID string,
) (string, error) {
	log := p.log.With(slog.Any("request", req), slog.String("format_id", formatID))

	if strings.TrimSpace(req.URL) == "" || strings.TrimSpace(formatID) == "" {
		return "", errs.ErrFormatIDRequired
	}

	if err := p.validator.Validate(ctx, req, id); err != nil {
		return "", fmt.Errorf("validate: %w", err)
	}

	url, err := p.dispatcher.DirectURL(ctx, req, formatID)
	if err != nil {
		log.ErrorContext(ctx, "resolve url failed", slog.Any("error", err))

		return "", fmt.Errorf("resolve url: %w", err)
	}

	log.InfoContext(ctx, "url resolved")

	return url, nil
}
