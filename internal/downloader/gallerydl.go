package downloader

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"

	"jusdown/internal/consts"
	"jusdown/internal/depmanager"
	"jusdown/internal/errs"
	"jusdown/pkg/shellquote"
)

// GalleryDL runs gallery-dl for image posts.
type GalleryDL struct {
	log  *slog.Logger
	bins Binaries
}

// NewGalleryDL creates a gallery-dl runner. bins may be nil to run gallery-dl from PATH.
func NewGalleryDL(log *slog.Logger, bins Binaries) *GalleryDL {
	return &GalleryDL{
		log:  log.With(slog.String("package", "downloader"), slog.String("downloader", consts.DownloaderGalleryDL)),
		bins: bins,
	}
}

// Run downloads url into dir. A non-zero exit is reported through the exit code;
// the error is only set when gallery-dl could not run, timed out or was refused.
func (d *GalleryDL) Run(ctx context.Context, dir, url string, flags []string) (int, error) {
	bin := string(depmanager.BinaryGalleryDL)
	if d.bins != nil {
		if resolved := d.bins.Resolve(depmanager.BinaryGalleryDL); resolved != "" {
			bin = resolved
		}
	}

	args := make([]string, 0, len(flags)+3)
	args = append(args, "-D", dir)
	args = append(args, flags...)
	args = append(args, url)

	log := d.log.With(slog.String("url", url))
	log.DebugContext(ctx, "executing gallery-dl", slog.String("cmd", shellquote.JoinMasked(bin, args, "--proxy")))

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		log.DebugContext(ctx, "gallery-dl done", slog.String("stdout", stdout.String()))

		return 0, nil
	}

	log.DebugContext(ctx, "gallery-dl failed",
		slog.Any("error", err),
		slog.String("stderr", stderr.String()))

	if ctx.Err() != nil {
		return -1, classify(ctx, consts.DownloaderGalleryDL, stderr.String(), err)
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1, classify(ctx, consts.DownloaderGalleryDL, stderr.String(), err)
	}

	backendErr := classify(ctx, consts.DownloaderGalleryDL, stderr.String(), err)
	if backendErr.Kind == errs.KindAuthOrRateLimited {
		return exitErr.ExitCode(), backendErr
	}

	return exitErr.ExitCode(), nil
}
