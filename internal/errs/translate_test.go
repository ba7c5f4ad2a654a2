package errs_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"jusdown/internal/consts"
	"jusdown/internal/errs"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"missing url", errs.ErrMissingURL, http.StatusBadRequest, consts.RespURLRequired},
		{"wrapped mismatch", fmt.Errorf("validate: %w", errs.ErrPlatformMismatch), http.StatusBadRequest, consts.RespPlatformMismatch},
		{"image from video platform", errs.ErrUnsupportedCombination, http.StatusBadRequest, consts.RespUnsupportedCombination},
		{"unknown type", errs.ErrUnsupportedContentType, http.StatusBadRequest, consts.RespUnsupportedContentType},
		{"bad body", errs.ErrInvalidRequestBody, http.StatusBadRequest, consts.RespInvalidRequestBody},
		{"login", errs.ErrLoginRequired, http.StatusUnauthorized, consts.RespLoginRequired},
		{"subscription", errs.ErrSubscriptionRequired, http.StatusForbidden, consts.RespSubscriptionRequired},
		{"subscription store down", errs.ErrSubscriptionUnavailable, http.StatusInternalServerError, consts.RespUnexpected},
		{"no files", fmt.Errorf("assemble: %w", errs.ErrNoFilesProduced), http.StatusForbidden, consts.RespPlatformBlocked},
		{"converted file missing", errs.ErrConvertedFileMissing, http.StatusInternalServerError, consts.RespUnexpected},
		{"backend busy", errs.ErrBackendBusy, http.StatusInternalServerError, consts.RespUnexpected},
		{"formats for other site", errs.ErrYouTubeURLRequired, http.StatusBadRequest, consts.RespYouTubeURLRequired},
		{"direct url without format", errs.ErrFormatIDRequired, http.StatusBadRequest, consts.RespFormatIDRequired},
		{
			"rate limited",
			fmt.Errorf("dispatch: %w", errs.NewBackendError("ytdlp", errs.KindAuthOrRateLimited, "HTTP Error 429", nil)),
			http.StatusForbidden, consts.RespPlatformBlocked,
		},
		{
			"gallery empty",
			errs.NewBackendError("gallerydl", errs.KindEmpty, "", errors.New("exit status 1")),
			http.StatusForbidden, consts.RespPlatformBlocked,
		},
		{
			"timeout",
			errs.NewBackendError("ytdlp", errs.KindTimeout, "", context.DeadlineExceeded),
			http.StatusInternalServerError, consts.RespUnexpected,
		},
		{
			"unavailable",
			errs.NewBackendError("ytdlp", errs.KindUnavailable, "ERROR: Unsupported URL", nil),
			http.StatusInternalServerError, consts.RespUnexpected,
		},
		{"anything else", errors.New("disk full"), http.StatusInternalServerError, consts.RespUnexpected},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, msg := errs.Translate(tc.err)
			if status != tc.wantStatus {
				t.Errorf("status = %d, want %d", status, tc.wantStatus)
			}

			if msg != tc.wantMsg {
				t.Errorf("message = %q, want %q", msg, tc.wantMsg)
			}
		})
	}
}

func TestBackendErrorIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", errs.NewBackendError("ytdlp", errs.KindTimeout, "", context.DeadlineExceeded))

	if !errors.Is(err, &errs.BackendError{Kind: errs.KindTimeout}) {
		t.Error("errors.Is() did not match same kind")
	}

	if errors.Is(err, &errs.BackendError{Kind: errs.KindEmpty}) {
		t.Error("errors.Is() matched a different kind")
	}

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("errors.Is() did not unwrap to the cause")
	}

	if kind, ok := errs.BackendKind(err); !ok || kind != errs.KindTimeout {
		t.Errorf("BackendKind() = %v, %v; want timeout, true", kind, ok)
	}
}
