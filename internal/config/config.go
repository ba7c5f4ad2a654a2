// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	HTTP         HTTP
	App          App
	Job          Job
	Dir          Dir
	Backend      Backend
	DepManager   DepManager
	Proxy        Proxy
	Subscription Subscription
	Auth         Auth
	Billing      Billing
}

// App holds application-wide configuration.
type App struct {
	LogLevel string `env:"JUSDOWN_APP_LOG_LEVEL" envDefault:"info"`
	// Brand prefixes every download name, e.g. "JusDown - <title> - MP4".
	Brand string `env:"JUSDOWN_APP_BRAND" envDefault:"JusDown"`
}

// Job holds backend invocation limits.
type Job struct {
	Workers int           `env:"JUSDOWN_APP_JOB_WORKERS" envDefault:"2"`
	Timeout time.Duration `env:"JUSDOWN_APP_JOB_TIMEOUT" envDefault:"10m"`
	// QueueTimeout bounds the wait for a free worker.
	QueueTimeout time.Duration `env:"JUSDOWN_APP_JOB_QUEUE_TIMEOUT" envDefault:"2m"`
}

// HTTP holds HTTP server configuration.
type HTTP struct {
	Port              string        `env:"JUSDOWN_HTTP_PORT"                envDefault:":8080"`
	HandlerTimeout    time.Duration `env:"JUSDOWN_HTTP_HANDLER_TIMEOUT"     envDefault:"20s"`
	ReadHeaderTimeout time.Duration `env:"JUSDOWN_HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout   time.Duration `env:"JUSDOWN_HTTP_SHUTDOWN_TIMEOUT"    envDefault:"10s"`
	MaxBodyBytes      int64         `env:"JUSDOWN_HTTP_MAX_BODY_BYTES"      envDefault:"65536"`
}

// Dir holds directory paths for workspaces, yt-dlp cache and cookie file.
type Dir struct {
	Temp  string `env:"JUSDOWN_DIR_TEMP"  envDefault:"./temp_downloads"` // per-request workspaces live here
	Cache string `env:"JUSDOWN_DIR_CACHE" envDefault:"./data/cache"`     // yt-dlp cache (meta, sigs)

	// must contain cookies.txt file
	// see: https://github.com/yt-dlp/yt-dlp/wiki/FAQ#how-do-i-pass-cookies-to-yt-dlp
	CookieFile string `env:"JUSDOWN_DIR_COOKIE_FILE" envDefault:""`

	// leftovers older than this are removed by the sweeper
	StaleMaxAge   time.Duration `env:"JUSDOWN_DIR_STALE_MAX_AGE"   envDefault:"1h"`
	SweepInterval time.Duration `env:"JUSDOWN_DIR_SWEEP_INTERVAL"  envDefault:"15m"`
}

// SetAbsPaths converts all directory paths to absolute paths.
func (c *Dir) SetAbsPaths() error {
	var err error
	if c.Temp, err = filepath.Abs(c.Temp); err != nil {
		return fmt.Errorf("temp: %w", err)
	}

	if c.Cache, err = filepath.Abs(c.Cache); err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	if c.CookieFile != "" {
		if c.CookieFile, err = filepath.Abs(c.CookieFile); err != nil {
			return fmt.Errorf("cookie file: %w", err)
		}
	}

	return nil
}

// Format selector policies for video downloads.
const (
	// FormatPolicyPreferSingle tries a pre-muxed stream at the requested height first.
	FormatPolicyPreferSingle = "prefer_single"
	// FormatPolicyMerge always merges the best video and audio streams.
	FormatPolicyMerge = "merge"
)

// Backend holds the extraction backend options.
type Backend struct {
	FormatPolicy string `env:"JUSDOWN_BACKEND_FORMAT_POLICY" envDefault:"prefer_single"`
	// see: https://github.com/yt-dlp/yt-dlp#format-selection
	DefaultVideoFormat  string `env:"JUSDOWN_BACKEND_DEFAULT_VIDEO_FORMAT"  envDefault:"bestvideo[height<=?1080]+bestaudio/best"`
	MergeOutputFormat   string `env:"JUSDOWN_BACKEND_MERGE_OUTPUT_FORMAT"   envDefault:"mp4"`
	AudioFormat         string `env:"JUSDOWN_BACKEND_AUDIO_FORMAT"          envDefault:"bestaudio/best"`
	AudioCodec          string `env:"JUSDOWN_BACKEND_AUDIO_CODEC"           envDefault:"mp3"`
	DefaultAudioBitrate int    `env:"JUSDOWN_BACKEND_DEFAULT_AUDIO_BITRATE" envDefault:"192"`
	OutputTemplate      string `env:"JUSDOWN_BACKEND_OUTPUT_TEMPLATE"       envDefault:"%(id)s.%(ext)s"`
	MaxNameLength       int    `env:"JUSDOWN_BACKEND_MAX_NAME_LENGTH"       envDefault:"230"`

	// applied to requests that target YouTube
	YouTubeUserAgent     string `env:"JUSDOWN_BACKEND_YOUTUBE_USER_AGENT"     envDefault:"Mozilla/5.0 (Windows NT 10.0; Win64; x64)"`
	YouTubeReferer       string `env:"JUSDOWN_BACKEND_YOUTUBE_REFERER"        envDefault:"https://www.youtube.com/"`
	YouTubeGeoCountry    string `env:"JUSDOWN_BACKEND_YOUTUBE_GEO_COUNTRY"    envDefault:"US"`
	YouTubeExtractorArgs string `env:"JUSDOWN_BACKEND_YOUTUBE_EXTRACTOR_ARGS" envDefault:"youtube:player_client=android;skip=authcheck"` //nolint:lll
}

// New loads configuration from the optional .env file and environment variables.
func New() (*Config, error) {
	// missing .env is fine, real env always wins
	_ = godotenv.Load(".env")

	cfg := &Config{}

	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	err = cfg.Dir.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set absolute paths: %w", err)
	}

	err = cfg.DepManager.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set dep manager absolute paths: %w", err)
	}

	cfg.Proxy.parseList()

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend.FormatPolicy {
	case FormatPolicyPreferSingle, FormatPolicyMerge:
	default:
		return fmt.Errorf("unknown format policy %q", c.Backend.FormatPolicy)
	}

	if c.Job.Workers < 1 {
		return fmt.Errorf("job workers must be positive, got %d", c.Job.Workers)
	}

	if c.Job.QueueTimeout <= 0 {
		return fmt.Errorf("job queue timeout must be positive, got %s", c.Job.QueueTimeout)
	}

	// the sweeper must never catch a workspace that is queued or whose backend is still running
	if held := c.Job.QueueTimeout + c.Job.Timeout; c.Dir.StaleMaxAge > 0 && c.Dir.StaleMaxAge <= held {
		return fmt.Errorf("stale max age %s must exceed job queue timeout plus job timeout %s",
			c.Dir.StaleMaxAge, held)
	}

	if c.Backend.MaxNameLength < 16 {
		return fmt.Errorf("max name length too small: %d", c.Backend.MaxNameLength)
	}

	return nil
}

// DepManager holds binary dependency management configuration.
type DepManager struct {
	// BinsDir is the directory where binaries are stored
	BinsDir string `env:"JUSDOWN_DEPMANAGER_BINS_DIR" envDefault:"./bins"`
	// UseSystemBinaries looks binaries up in PATH instead of downloading them.
	UseSystemBinaries bool `env:"JUSDOWN_DEPMANAGER_USE_SYSTEM_BINARIES" envDefault:"false"`
	// UpdateInterval is how often to check for binary updates
	UpdateInterval time.Duration `env:"JUSDOWN_DEPMANAGER_UPDATE_INTERVAL" envDefault:"24h"`

	FFmpegSHA256SumsURL string `env:"JUSDOWN_DEPMANAGER_FFMPEG_SHA256SUMS_URL" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/checksums.sha256"`                        //nolint:lll
	FFmpegLinuxARM64    string `env:"JUSDOWN_DEPMANAGER_FFMPEG_LINUX_ARM64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linuxarm64-gpl.tar.xz"` //nolint:lll
	FFmpegLinuxAMD64    string `env:"JUSDOWN_DEPMANAGER_FFMPEG_LINUX_AMD64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linux64-gpl.tar.xz"`    //nolint:lll

	YTdlpSHA256SumsURL string `env:"JUSDOWN_DEPMANAGER_YTDLP_SHA256SUMS_URL" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/SHA2-256SUMS"`      //nolint:lll
	YTdlpLinuxARM64    string `env:"JUSDOWN_DEPMANAGER_YTDLP_LINUX_ARM64" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux_aarch64"` //nolint:lll
	YTdlpLinuxAMD64    string `env:"JUSDOWN_DEPMANAGER_YTDLP_LINUX_AMD64" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux"`         //nolint:lll

	GalleryDLSHA256SumsURL string `env:"JUSDOWN_DEPMANAGER_GALLERYDL_SHA256SUMS_URL" envDefault:"https://github.com/gallery-dl-builds/gallery-dl-builds/releases/latest/download/SHA256SUMS.txt"`      //nolint:lll
	GalleryDLLinuxARM64    string `env:"JUSDOWN_DEPMANAGER_GALLERYDL_LINUX_ARM64" envDefault:"https://github.com/gallery-dl-builds/gallery-dl-builds/releases/latest/download/gallery-dl_linux_arm64"` //nolint:lll
	GalleryDLLinuxAMD64    string `env:"JUSDOWN_DEPMANAGER_GALLERYDL_LINUX_AMD64" envDefault:"https://github.com/gallery-dl-builds/gallery-dl-builds/releases/latest/download/gallery-dl_linux_amd64"` //nolint:lll
}

// SetAbsPaths converts the BinsDir path to an absolute path.
func (d *DepManager) SetAbsPaths() error {
	var err error
	if d.BinsDir, err = filepath.Abs(d.BinsDir); err != nil {
		return fmt.Errorf("bins dir: %w", err)
	}

	return nil
}

// Proxy holds proxy configuration for backend invocations.
type Proxy struct {
	// List is a comma-separated list of proxy URLs in socks5h format
	List string `env:"JUSDOWN_PROXY_LIST" envDefault:""`
	// HealthCheckInterval is how often to check proxy health
	HealthCheckInterval time.Duration `env:"JUSDOWN_PROXY_HEALTH_CHECK_INTERVAL" envDefault:"5m"`
	// FailureBackoff is the initial backoff duration for failed proxies
	FailureBackoff time.Duration `env:"JUSDOWN_PROXY_FAILURE_BACKOFF" envDefault:"1m"`
	// MaxFailures is the maximum number of failures before a proxy is temporarily removed
	MaxFailures int `env:"JUSDOWN_PROXY_MAX_FAILURES" envDefault:"3"`

	// Proxies is the parsed list of proxy URLs
	Proxies []string `env:"-"`
}

func (p *Proxy) parseList() {
	if p.List == "" {
		return
	}

	for proxy := range strings.SplitSeq(p.List, ",") {
		proxy = strings.TrimSpace(proxy)
		if proxy != "" {
			p.Proxies = append(p.Proxies, proxy)
		}
	}
}

// Subscription holds the subscription store configuration.
type Subscription struct {
	// Provider is one of: memory, redis, postgres.
	Provider         string        `env:"JUSDOWN_SUBSCRIPTION_PROVIDER"          envDefault:"memory"`
	PremiumPlatforms []string      `env:"JUSDOWN_SUBSCRIPTION_PREMIUM_PLATFORMS" envDefault:"vimeo" envSeparator:","`
	LookupTimeout    time.Duration `env:"JUSDOWN_SUBSCRIPTION_LOOKUP_TIMEOUT"    envDefault:"3s"`

	RedisAddr      string `env:"JUSDOWN_SUBSCRIPTION_REDIS_ADDR"       envDefault:"localhost:6379"`
	RedisPassword  string `env:"JUSDOWN_SUBSCRIPTION_REDIS_PASSWORD"   envDefault:""`
	RedisDB        int    `env:"JUSDOWN_SUBSCRIPTION_REDIS_DB"         envDefault:"0"`
	RedisKeyPrefix string `env:"JUSDOWN_SUBSCRIPTION_REDIS_KEY_PREFIX" envDefault:"jusdown:user:"`

	PostgresDSN      string `env:"JUSDOWN_SUBSCRIPTION_POSTGRES_DSN"       envDefault:""`
	PostgresMaxConns int32  `env:"JUSDOWN_SUBSCRIPTION_POSTGRES_MAX_CONNS" envDefault:"10"`
}

// Auth holds session token verification configuration.
type Auth struct {
	// TokenSecret signs HS256 session tokens. Empty disables identity resolution.
	TokenSecret string `env:"JUSDOWN_AUTH_TOKEN_SECRET" envDefault:""`
	CookieName  string `env:"JUSDOWN_AUTH_COOKIE_NAME"  envDefault:"jusdown_session"`
}

// Billing holds billing webhook configuration.
type Billing struct {
	WebhookSecret string        `env:"JUSDOWN_BILLING_WEBHOOK_SECRET" envDefault:""`
	DedupeSize    int           `env:"JUSDOWN_BILLING_DEDUPE_SIZE"    envDefault:"4096"`
	DedupeTTL     time.Duration `env:"JUSDOWN_BILLING_DEDUPE_TTL"     envDefault:"24h"`
}
