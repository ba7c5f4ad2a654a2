package downloader

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"jusdown/internal/config"
	"jusdown/internal/consts"
	"jusdown/internal/depmanager"
	"jusdown/internal/entity"
	"jusdown/internal/errs"
	"jusdown/pkg/ptr"

	"github.com/lrstanley/go-ytdlp"
)

// Binaries resolves managed backend executables.
type Binaries interface {
	Resolve(name depmanager.BinaryName) string
}

// YTdlp extracts video and audio with yt-dlp.
type YTdlp struct {
	log  *slog.Logger
	cfg  *config.Config
	bins Binaries
}

// NewYTdlp creates a yt-dlp extractor. bins may be nil to use the library defaults.
func NewYTdlp(log *slog.Logger, cfg *config.Config, bins Binaries) *YTdlp {
	return &YTdlp{
		log:  log.With(slog.String("package", "downloader"), slog.String("downloader", consts.DownloaderYTdlp)),
		cfg:  cfg,
		bins: bins,
	}
}

// Extract downloads url into opts.OutputDir.
func (d *YTdlp) Extract(ctx context.Context, opts entity.BackendOptions, url string) (*entity.Metadata, error) {
	log := d.log.With(slog.String("url", url))

	progressFn := func(prog ytdlp.ProgressUpdate) {
		log.DebugContext(ctx, "ytdlp progress", slog.Any("progress_update", ProgressUpdate{&prog}))
	}

	res, err := d.command(opts).
		ProgressFunc(defaultProgressFreq, progressFn).
		Run(ctx, url)
	if err != nil {
		return nil, d.failed(ctx, log, res, err)
	}

	log.DebugContext(ctx, "ytdlp done", slog.Any("result", Result{res}))

	info, err := res.GetExtractedInfo()
	if err != nil || len(info) == 0 {
		log.WarnContext(ctx, "ytdlp extracted info unavailable", slog.Any("error", err))

		return &entity.Metadata{}, nil
	}

	return &entity.Metadata{
		ID:        info[0].ID,
		Title:     ptr.Deref(info[0].Title),
		Extractor: ptr.Deref(info[0].Extractor),
	}, nil
}

// ListFormats reports every format the source offers for url without downloading.
func (d *YTdlp) ListFormats(ctx context.Context, opts entity.BackendOptions, url string) ([]entity.MediaFormat, error) {
	log := d.log.With(slog.String("url", url))

	res, err := d.base(opts).
		DumpJSON().
		SkipDownload().
		Run(ctx, url)
	if err != nil {
		return nil, d.failed(ctx, log, res, err)
	}

	info, err := res.GetExtractedInfo()
	if err != nil || len(info) == 0 {
		log.DebugContext(ctx, "ytdlp format dump", slog.Any("result", Result{res}))

		return nil, errs.NewBackendError(consts.DownloaderYTdlp, errs.KindEmpty, "no format info", err)
	}

	formats := make([]entity.MediaFormat, 0, len(info[0].Formats))

	for _, f := range info[0].Formats {
		if f == nil {
			continue
		}

		formats = append(formats, entity.MediaFormat{
			ID:     ptr.Deref(f.FormatID),
			Ext:    ptr.Deref(f.Extension),
			Height: int(ptr.Deref(f.Height)),
			ABR:    ptr.Deref(f.ABR),
			VCodec: ptr.Deref(f.VCodec),
			ACodec: ptr.Deref(f.ACodec),
		})
	}

	log.DebugContext(ctx, "ytdlp formats listed", slog.Int("formats", len(formats)))

	return formats, nil
}

// ResolveURL returns the direct media url of opts.Format for url.
func (d *YTdlp) ResolveURL(ctx context.Context, opts entity.BackendOptions, url string) (string, error) {
	log := d.log.With(slog.String("url", url), slog.String("format", opts.Format))

	res, err := d.base(opts).
		Format(opts.Format).
		GetURL().
		Run(ctx, url)
	if err != nil {
		return "", d.failed(ctx, log, res, err)
	}

	for line := range strings.Lines(res.Stdout) {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}

	return "", errs.NewBackendError(consts.DownloaderYTdlp, errs.KindEmpty, "no url printed", nil)
}

func (d *YTdlp) failed(ctx context.Context, log *slog.Logger, res *ytdlp.Result, err error) error {
	var stderr string
	if res != nil {
		stderr = res.Stderr
	}

	log.DebugContext(ctx, "ytdlp run", slog.Any("error", err), slog.Any("result", Result{res}))

	return classify(ctx, consts.DownloaderYTdlp, stderr, err)
}

func (d *YTdlp) command(opts entity.BackendOptions) *ytdlp.Command {
	cmd := d.base(opts).
		PrintJSON().
		Output(filepath.Join(opts.OutputDir, opts.OutputTemplate))

	if opts.Format != "" {
		cmd = cmd.Format(opts.Format)
	}

	if opts.MergeFormat != "" {
		cmd = cmd.MergeOutputFormat(opts.MergeFormat)
	}

	if opts.ExtractAudio {
		cmd = cmd.ExtractAudio().
			AudioFormat(opts.AudioCodec).
			AudioQuality(strconv.Itoa(opts.AudioBitrate) + "K")
	}

	if d.bins != nil {
		if ffmpeg := d.bins.Resolve(depmanager.BinaryFFmpeg); ffmpeg != "" {
			cmd = cmd.FFmpegLocation(ffmpeg)
		}
	}

	return cmd
}

// base carries the flags shared by downloads and lookups.
func (d *YTdlp) base(opts entity.BackendOptions) *ytdlp.Command {
	cmd := ytdlp.New().NoPlaylist()

	if d.cfg.Dir.Cache != "" {
		cmd = cmd.CacheDir(d.cfg.Dir.Cache)
	}

	if opts.Proxy != "" {
		cmd = cmd.Proxy(opts.Proxy)
	}

	if opts.CookieFile != "" {
		cmd = cmd.Cookies(opts.CookieFile)
	}

	if opts.YouTube {
		cmd = d.youtube(cmd, opts.CookieFile != "")
	}

	if d.bins != nil {
		if bin := d.bins.Resolve(depmanager.BinaryYTdlp); bin != "" {
			cmd = cmd.SetExecutable(bin)
		}
	}

	return cmd
}

// youtube adds browser headers, US geo bypass and IPv4. Without cookies the
// android player client is used to get past the sign-in check.
func (d *YTdlp) youtube(cmd *ytdlp.Command, cookies bool) *ytdlp.Command {
	b := d.cfg.Backend

	cmd = cmd.ForceIPv4()

	if b.YouTubeUserAgent != "" {
		cmd = cmd.AddHeaders("User-Agent:" + b.YouTubeUserAgent)
	}

	if b.YouTubeReferer != "" {
		cmd = cmd.Referer(b.YouTubeReferer) //nolint:staticcheck // --add-headers holds a single header
	}

	if b.YouTubeGeoCountry != "" {
		cmd = cmd.XFF(b.YouTubeGeoCountry)
	}

	if !cookies && b.YouTubeExtractorArgs != "" {
		cmd = cmd.ExtractorArgs(b.YouTubeExtractorArgs)
	}

	return cmd
}
