package downloader

import (
	"context"
	"errors"
	"strings"

	"jusdown/internal/errs"
)

// backend stderr fragments that mean the source refused us rather than failed
var deniedMarkers = []string{
	"login required",
	"log in to",
	"sign in to confirm",
	"rate-limit",
	"rate limit",
	"http error 429",
	"too many requests",
	"use --cookies",
	"requested content is not available",
}

// classify turns a backend failure into a typed error. Detail is kept for logs only.
func classify(ctx context.Context, backend, stderr string, err error) *errs.BackendError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return errs.NewBackendError(backend, errs.KindTimeout, stderr, context.DeadlineExceeded)
	}

	lower := strings.ToLower(stderr)
	for _, marker := range deniedMarkers {
		if strings.Contains(lower, marker) {
			return errs.NewBackendError(backend, errs.KindAuthOrRateLimited, stderr, err)
		}
	}

	return errs.NewBackendError(backend, errs.KindUnavailable, stderr, err)
}
