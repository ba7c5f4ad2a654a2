package request

import (
	"strings"

	"jusdown/internal/entity"
	"jusdown/pkg/urls"
)

type Download struct {
	URL      string `json:"url"`
	Type     string `json:"type"`    // "mp4", "mp3" or "image"; empty means mp4
	Quality  string `json:"quality"` // e.g. "720p", "320kb/s"
	Platform string `json:"platform"`
}

// ToEntity normalizes the body into a pipeline request.
func (d *Download) ToEntity(requestID string) entity.DownloadRequest {
	return entity.DownloadRequest{
		URL:       urls.Normalize(d.URL),
		Type:      entity.ParseContentType(d.Type),
		Quality:   strings.TrimSpace(d.Quality),
		Platform:  strings.TrimSpace(d.Platform),
		RequestID: requestID,
	}
}

// Lookup is the body of POST /formats and POST /download-url.
type Lookup struct {
	URL      string `json:"url"`
	FormatID string `json:"formatId"` // only used by /download-url
	Platform string `json:"platform"`
}

// ToEntity normalizes the body into a video request.
func (p *Lookup) ToEntity(requestID string) entity.DownloadRequest {
	return entity.DownloadRequest{
		URL:       urls.Normalize(p.URL),
		Type:      entity.ContentVideo,
		Platform:  strings.TrimSpace(p.Platform),
		RequestID: requestID,
	}
}
