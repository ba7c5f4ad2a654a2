// Package entity defines the core data structures used across the pipeline.
package entity

import (
	"log/slog"
	"strings"
)

// ContentType is the kind of output the caller wants.
type ContentType string

// Supported content types.
const (
	ContentVideo ContentType = "video"
	ContentAudio ContentType = "audio"
	ContentImage ContentType = "image"
)

// ParseContentType maps the inbound type field onto a ContentType.
// Empty defaults to video. Unknown values are returned as-is and fail Valid.
func ParseContentType(raw string) ContentType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "mp4", "video":
		return ContentVideo
	case "mp3", "audio":
		return ContentAudio
	case "image", "images", "img":
		return ContentImage
	default:
		return ContentType(raw)
	}
}

// Valid reports whether c is one of the supported content types.
func (c ContentType) Valid() bool {
	return c == ContentVideo || c == ContentAudio || c == ContentImage
}

// Label is the upper-case container label used in download names.
func (c ContentType) Label() string {
	switch c {
	case ContentVideo:
		return "MP4"
	case ContentAudio:
		return "MP3"
	default:
		return ""
	}
}

// Platform is a known source site.
type Platform string

// Known platforms.
const (
	PlatformYouTube     Platform = "YouTube"
	PlatformInstagram   Platform = "Instagram"
	PlatformFacebook    Platform = "Facebook"
	PlatformTikTok      Platform = "TikTok"
	PlatformDailymotion Platform = "Dailymotion"
	PlatformTwitter     Platform = "Twitter"
	PlatformVimeo       Platform = "Vimeo"
)

// DownloadRequest is the normalized inbound request. It is not modified after construction.
type DownloadRequest struct {
	URL       string
	Type      ContentType
	Quality   string
	Platform  string
	RequestID string
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r DownloadRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("request_id", r.RequestID),
		slog.String("url", r.URL),
		slog.String("type", string(r.Type)),
		slog.String("quality", r.Quality),
		slog.String("platform", r.Platform),
	)
}

// Identity is the resolved caller identity. The zero value is an anonymous caller.
type Identity struct {
	ID string
}

// Present reports whether the caller is logged in.
func (i Identity) Present() bool { return i.ID != "" }

// SubscriptionStatus is a point-in-time view of a user's subscription.
type SubscriptionStatus struct {
	Exists     bool `json:"exists"`
	Subscribed bool `json:"subscribed"`
}

// BackendOptions is the backend invocation derived from a DownloadRequest.
type BackendOptions struct {
	OutputDir      string
	OutputTemplate string
	Format         string
	MergeFormat    string
	ExtractAudio   bool
	AudioCodec     string
	AudioBitrate   int
	Proxy          string
	CookieFile     string
	// YouTube enables the browser headers, geo bypass and client workarounds YouTube needs.
	YouTube bool
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (o BackendOptions) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("output_template", o.OutputTemplate),
		slog.String("format", o.Format),
		slog.String("merge_format", o.MergeFormat),
		slog.Bool("extract_audio", o.ExtractAudio),
		slog.String("audio_codec", o.AudioCodec),
		slog.Int("audio_bitrate", o.AudioBitrate),
		slog.Bool("proxy", o.Proxy != ""),
		slog.Bool("cookies", o.CookieFile != ""),
		slog.Bool("youtube", o.YouTube),
	)
}

// MediaFormat is one stream variant offered by the source. Codec "none"
// marks a missing video or audio track.
type MediaFormat struct {
	ID     string
	Ext    string
	Height int
	ABR    float64 // kbit/s
	VCodec string
	ACodec string
}

// FormatOption is a format the caller can pick, e.g. "Video 720p (MP4)".
type FormatOption struct {
	ID      string      `json:"id"`
	Text    string      `json:"text"`
	Type    ContentType `json:"type"`
	Quality int         `json:"quality"`
}

// Metadata is what the extraction backend reports about the source.
type Metadata struct {
	ID        string
	Title     string
	Ext       string
	Extractor string
}

// ExtractionResult lists the files a backend left in the workspace.
type ExtractionResult struct {
	Dir      string
	Files    []string
	Metadata Metadata
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r ExtractionResult) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("dir", r.Dir),
		slog.Int("files", len(r.Files)),
		slog.String("source_id", r.Metadata.ID),
		slog.String("title", r.Metadata.Title),
		slog.String("extractor", r.Metadata.Extractor),
	)
}

// OutputArtifact is the single file handed to the response layer.
type OutputArtifact struct {
	Path     string
	Name     string
	MIMEType string
	Size     int64
	Archive  bool
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (a OutputArtifact) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", a.Path),
		slog.String("name", a.Name),
		slog.String("mime_type", a.MIMEType),
		slog.Int64("size", a.Size),
		slog.Bool("archive", a.Archive),
	)
}
