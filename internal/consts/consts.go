// Package consts defines application-wide constants.
package consts

const (
	// DefaultDownloadName is used when a title sanitizes to nothing.
	DefaultDownloadName = "download"
	// ArchiveDisplayName is the download name suffix of multi-file archives.
	ArchiveDisplayName = "Image Pack"
	// ArchivePrefix is the on-disk file name prefix of multi-file archives.
	ArchivePrefix = "_Images_"
)

// HTTP response messages shown to the caller.
const (
	// RespInvalidRequestBody is returned when the request body is invalid.
	RespInvalidRequestBody = "invalid request body"
	// RespURLRequired is returned when the url field is empty.
	RespURLRequired = "URL is required"
	// RespPlatformMismatch is returned when the url does not belong to the selected platform.
	RespPlatformMismatch = "Please select relevant platform to download content."
	// RespUnsupportedCombination is returned for image downloads from video-only platforms.
	RespUnsupportedCombination = "Images cannot be downloaded from this platform."
	// RespUnsupportedContentType is returned when the type field is unknown.
	RespUnsupportedContentType = "Unsupported content type."
	// RespLoginRequired is returned for anonymous premium requests.
	RespLoginRequired = "Login required for premium platforms"
	// RespSubscriptionRequired is returned for premium requests without an active subscription.
	RespSubscriptionRequired = "Subscription required for premium platforms"
	// RespPlatformBlocked is returned when the source refuses to serve the content.
	RespPlatformBlocked = "This platform requires a login and is blocking our server. " +
		"We are working on a solution, but for now, this content cannot be downloaded."
	// RespUnexpected is returned for everything else.
	RespUnexpected = "An unexpected error occurred. Please check the link or try again."
	// RespYouTubeURLRequired is returned when formats are requested for a non-YouTube url.
	RespYouTubeURLRequired = "A valid YouTube URL is required"
	// RespFormatIDRequired is returned when a direct url request lacks the url or format id.
	RespFormatIDRequired = "URL and Format ID are required"
	// RespFormatsUnavailable replaces the generic 500 message of format listings.
	RespFormatsUnavailable = "Could not fetch video formats. The URL might be invalid or private."
	// RespDirectURLUnavailable replaces the generic 500 message of direct url requests.
	RespDirectURLUnavailable = "Could not get download URL."
	// RespLoggedOut is returned after the session cookie is cleared.
	RespLoggedOut = "logged out"
	// RespWebhookAccepted is returned when a billing event was applied.
	RespWebhookAccepted = "event applied"
	// RespWebhookDuplicate is returned when a billing event was already applied.
	RespWebhookDuplicate = "event already applied"
	// RespWebhookIgnored is returned for billing events that carry no subscription change.
	RespWebhookIgnored = "event ignored"
	// RespWebhookInvalid is returned when the billing event signature or payload is invalid.
	RespWebhookInvalid = "invalid webhook"
)

// Downloader identifiers.
const (
	// DownloaderYTdlp is the yt-dlp backend identifier.
	DownloaderYTdlp = "ytdlp"
	// DownloaderGalleryDL is the gallery-dl backend identifier.
	DownloaderGalleryDL = "gallerydl"
	// DownloaderMock is the mock backend identifier for testing.
	DownloaderMock = "mock"
	// DownloaderQueue labels waits for a free backend worker.
	DownloaderQueue = "queue"
)
