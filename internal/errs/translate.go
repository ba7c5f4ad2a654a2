package errs

import (
	"errors"
	"net/http"

	"jusdown/internal/consts"
)

var rejections = []struct {
	err     error
	status  int
	message string
}{
	{ErrInvalidRequestBody, http.StatusBadRequest, consts.RespInvalidRequestBody},
	{ErrMissingURL, http.StatusBadRequest, consts.RespURLRequired},
	{ErrPlatformMismatch, http.StatusBadRequest, consts.RespPlatformMismatch},
	{ErrUnsupportedCombination, http.StatusBadRequest, consts.RespUnsupportedCombination},
	{ErrUnsupportedContentType, http.StatusBadRequest, consts.RespUnsupportedContentType},
	{ErrYouTubeURLRequired, http.StatusBadRequest, consts.RespYouTubeURLRequired},
	{ErrFormatIDRequired, http.StatusBadRequest, consts.RespFormatIDRequired},
	{ErrLoginRequired, http.StatusUnauthorized, consts.RespLoginRequired},
	{ErrSubscriptionRequired, http.StatusForbidden, consts.RespSubscriptionRequired},
	{ErrNoFilesProduced, http.StatusForbidden, consts.RespPlatformBlocked},
}

// Translate maps any pipeline error onto the status code and message returned
// to the caller. Unknown errors become a generic 500.
func Translate(err error) (int, string) {
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			return r.status, r.message
		}
	}

	if kind, ok := BackendKind(err); ok && (kind == KindAuthOrRateLimited || kind == KindEmpty) {
		return http.StatusForbidden, consts.RespPlatformBlocked
	}

	return http.StatusInternalServerError, consts.RespUnexpected
}
