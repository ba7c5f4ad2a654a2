package downloader

import (
	"fmt"
	"regexp"
	"strconv"

	"jusdown/internal/config"
	"jusdown/internal/entity"
	"jusdown/internal/validator"
)

var (
	reDigits = regexp.MustCompile(`\d+`)
	reHeight = regexp.MustCompile(`(?i)^\s*(\d{3,4})\s*p\s*$`)
)

// ParseBitrate extracts the first number from an audio quality such as
// "320kb/s". Missing or zero values yield fallback.
func ParseBitrate(quality string, fallback int) int {
	n, err := strconv.Atoi(reDigits.FindString(quality))
	if err != nil || n <= 0 {
		return fallback
	}

	return n
}

// ParseHeight extracts the frame height from a video quality such as "720p".
func ParseHeight(quality string) (int, bool) {
	m := reHeight.FindStringSubmatch(quality)
	if m == nil {
		return 0, false
	}

	h, err := strconv.Atoi(m[1])
	if err != nil || h <= 0 {
		return 0, false
	}

	return h, true
}

// VideoFormat returns the yt-dlp format selector for a video quality.
// Without a parsable height the configured default is used.
func VideoFormat(cfg config.Backend, quality string) string {
	h, ok := ParseHeight(quality)
	if !ok {
		return cfg.DefaultVideoFormat
	}

	if cfg.FormatPolicy == config.FormatPolicyMerge {
		return fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]/best", h, h)
	}

	return fmt.Sprintf("best[height<=%d]/bestvideo[height<=%d]+bestaudio/best", h, h)
}

// BuildOptions derives the backend invocation for req writing into dir.
func BuildOptions(cfg *config.Config, req entity.DownloadRequest, dir string) entity.BackendOptions {
	opts := entity.BackendOptions{
		OutputDir:      dir,
		OutputTemplate: cfg.Backend.OutputTemplate,
		CookieFile:     cfg.Dir.CookieFile,
	}

	switch req.Type {
	case entity.ContentAudio:
		opts.Format = cfg.Backend.AudioFormat
		opts.ExtractAudio = true
		opts.AudioCodec = cfg.Backend.AudioCodec
		opts.AudioBitrate = ParseBitrate(req.Quality, cfg.Backend.DefaultAudioBitrate)
	case entity.ContentVideo:
		opts.Format = VideoFormat(cfg.Backend, req.Quality)
		opts.MergeFormat = cfg.Backend.MergeOutputFormat
	case entity.ContentImage:
	}

	opts.YouTube = req.Type != entity.ContentImage && validator.IsYouTube(req.Platform, req.URL)

	return opts
}

// LookupOptions derives the options of a format listing or direct url lookup.
func LookupOptions(cfg *config.Config, req entity.DownloadRequest, format string) entity.BackendOptions {
	return entity.BackendOptions{
		Format:     format,
		CookieFile: cfg.Dir.CookieFile,
		YouTube:    validator.IsYouTube(req.Platform, req.URL),
	}
}

// GalleryFlags returns the gallery-dl flags for opts, excluding the target
// directory and url.
func GalleryFlags(opts entity.BackendOptions) []string {
	flags := []string{"-q", "--no-check-certificate", "--no-mtime"}

	if opts.Proxy != "" {
		flags = append(flags, "--proxy", opts.Proxy)
	}

	if opts.CookieFile != "" {
		flags = append(flags, "--cookies", opts.CookieFile)
	}

	return flags
}
