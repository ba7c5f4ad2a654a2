// Package errs defines common error variables used across the application.
package errs

import "errors"

var (
	// ErrInvalidRequestBody indicates that the request body is invalid or cannot be parsed.
	ErrInvalidRequestBody = errors.New("invalid request body")
)

// Request rejections.
var (
	// ErrMissingURL indicates that the url field is empty.
	ErrMissingURL = errors.New("url is required")
	// ErrPlatformMismatch indicates that the url does not belong to the selected platform.
	ErrPlatformMismatch = errors.New("url does not match platform")
	// ErrUnsupportedCombination indicates an image request for a video-only platform.
	ErrUnsupportedCombination = errors.New("content type not supported by platform")
	// ErrUnsupportedContentType indicates an unknown type field.
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrLoginRequired indicates a premium request without identity.
	ErrLoginRequired = errors.New("login required")
	// ErrSubscriptionRequired indicates a premium request without an active subscription.
	ErrSubscriptionRequired = errors.New("subscription required")
	// ErrSubscriptionUnavailable indicates that the subscription store could not be consulted.
	ErrSubscriptionUnavailable = errors.New("subscription store unavailable")
	// ErrYouTubeURLRequired indicates a format listing for a url that is not YouTube.
	ErrYouTubeURLRequired = errors.New("youtube url required")
	// ErrFormatIDRequired indicates a direct url request without a url or format id.
	ErrFormatIDRequired = errors.New("url and format id are required")
)

// Assembly errors.
var (
	// ErrNoFilesProduced indicates that the backend left no files in the workspace.
	ErrNoFilesProduced = errors.New("no files produced")
	// ErrConvertedFileMissing indicates that audio conversion produced no file with the target extension.
	ErrConvertedFileMissing = errors.New("converted file missing")
)

// Dispatch errors.
var (
	// ErrBackendBusy indicates that no worker became free within the queue timeout.
	ErrBackendBusy = errors.New("backend busy")
)

// Workspace errors.
var (
	// ErrWorkspaceOutsideRoot indicates an attempt to release a path not owned by the manager.
	ErrWorkspaceOutsideRoot = errors.New("workspace outside root")
)

// Dependency errors.
var (
	// ErrBinaryNotFound indicates that the required binary was not found.
	ErrBinaryNotFound = errors.New("binary not found")
	// ErrUnsupportedPlatform indicates that the current OS/arch is not supported.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Proxy errors.
var (
	// ErrNoProxiesAvailable indicates that no proxies are available.
	ErrNoProxiesAvailable = errors.New("no proxies available")
)

// Subscription and identity errors.
var (
	// ErrUnknownProvider indicates an unregistered subscription provider name.
	ErrUnknownProvider = errors.New("unknown subscription provider")
	// ErrInvalidToken indicates a malformed or wrongly signed session token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates an expired session token.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidSignature indicates a billing webhook with a bad signature.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrMissingUserID indicates a billing event that names no user.
	ErrMissingUserID = errors.New("missing user id")
)
