package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"jusdown/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		dotenv  string
		check   func(t *testing.T, cfg *config.Config, wd string)
		wantErr bool
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg *config.Config, wd string) {
				if got, want := cfg.Dir.Temp, filepath.Join(wd, "temp_downloads"); got != want {
					t.Errorf("Dir.Temp = %q, want %q", got, want)
				}

				if cfg.Dir.CookieFile != "" {
					t.Errorf("Dir.CookieFile = %q, want empty", cfg.Dir.CookieFile)
				}

				if cfg.App.Brand != "JusDown" {
					t.Errorf("App.Brand = %q, want JusDown", cfg.App.Brand)
				}

				if cfg.Backend.DefaultAudioBitrate != 192 {
					t.Errorf("Backend.DefaultAudioBitrate = %d, want 192", cfg.Backend.DefaultAudioBitrate)
				}

				if !slices.Equal(cfg.Subscription.PremiumPlatforms, []string{"vimeo"}) {
					t.Errorf("PremiumPlatforms = %v, want [vimeo]", cfg.Subscription.PremiumPlatforms)
				}

				if len(cfg.Proxy.Proxies) != 0 {
					t.Errorf("Proxies = %v, want none", cfg.Proxy.Proxies)
				}
			},
		},
		{
			name: "custom dirs and proxies",
			env: map[string]string{
				"JUSDOWN_DIR_TEMP":        "work/tmp",
				"JUSDOWN_DIR_COOKIE_FILE": "secrets/cookies.txt",
				"JUSDOWN_PROXY_LIST":      " socks5h://a:1080, ,socks5h://b:1080 ",
				"JUSDOWN_APP_JOB_TIMEOUT": "90s",
			},
			check: func(t *testing.T, cfg *config.Config, wd string) {
				if got, want := cfg.Dir.Temp, filepath.Join(wd, "work", "tmp"); got != want {
					t.Errorf("Dir.Temp = %q, want %q", got, want)
				}

				if got, want := cfg.Dir.CookieFile, filepath.Join(wd, "secrets", "cookies.txt"); got != want {
					t.Errorf("Dir.CookieFile = %q, want %q", got, want)
				}

				want := []string{"socks5h://a:1080", "socks5h://b:1080"}
				if !slices.Equal(cfg.Proxy.Proxies, want) {
					t.Errorf("Proxies = %v, want %v", cfg.Proxy.Proxies, want)
				}

				if cfg.Job.Timeout != 90*time.Second {
					t.Errorf("Job.Timeout = %v, want 90s", cfg.Job.Timeout)
				}

				if cfg.Job.QueueTimeout != 2*time.Minute {
					t.Errorf("Job.QueueTimeout = %v, want 2m", cfg.Job.QueueTimeout)
				}
			},
		},
		{
			name:   "dotenv file is loaded",
			dotenv: "JUSDOWN_APP_BRAND=Acme\nJUSDOWN_SUBSCRIPTION_PREMIUM_PLATFORMS=vimeo,tiktok\n",
			check: func(t *testing.T, cfg *config.Config, _ string) {
				if cfg.App.Brand != "Acme" {
					t.Errorf("App.Brand = %q, want Acme", cfg.App.Brand)
				}

				want := []string{"vimeo", "tiktok"}
				if !slices.Equal(cfg.Subscription.PremiumPlatforms, want) {
					t.Errorf("PremiumPlatforms = %v, want %v", cfg.Subscription.PremiumPlatforms, want)
				}
			},
		},
		{
			name:   "env wins over dotenv",
			env:    map[string]string{"JUSDOWN_APP_BRAND": "FromEnv"},
			dotenv: "JUSDOWN_APP_BRAND=FromFile\n",
			check: func(t *testing.T, cfg *config.Config, _ string) {
				if cfg.App.Brand != "FromEnv" {
					t.Errorf("App.Brand = %q, want FromEnv", cfg.App.Brand)
				}
			},
		},
		{
			name:    "unknown format policy",
			env:     map[string]string{"JUSDOWN_BACKEND_FORMAT_POLICY": "fastest"},
			wantErr: true,
		},
		{
			name:    "zero workers",
			env:     map[string]string{"JUSDOWN_APP_JOB_WORKERS": "0"},
			wantErr: true,
		},
		{
			name: "stale age within job timeout",
			env: map[string]string{
				"JUSDOWN_APP_JOB_TIMEOUT":   "30m",
				"JUSDOWN_DIR_STALE_MAX_AGE": "20m",
			},
			wantErr: true,
		},
		{
			name: "stale age within queue wait plus job timeout",
			env: map[string]string{
				"JUSDOWN_APP_JOB_TIMEOUT":       "30m",
				"JUSDOWN_APP_JOB_QUEUE_TIMEOUT": "40m",
				"JUSDOWN_DIR_STALE_MAX_AGE":     "1h",
			},
			wantErr: true,
		},
		{
			name:    "zero queue timeout",
			env:     map[string]string{"JUSDOWN_APP_JOB_QUEUE_TIMEOUT": "0s"},
			wantErr: true,
		},
		{
			name:    "bad duration",
			env:     map[string]string{"JUSDOWN_APP_JOB_TIMEOUT": "soon"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wd := t.TempDir()
			t.Chdir(wd)

			// resolve symlinks so filepath.Abs output matches on macOS tmp dirs
			wd, err := os.Getwd()
			if err != nil {
				t.Fatal(err)
			}

			if tc.dotenv != "" {
				if err := os.WriteFile(filepath.Join(wd, ".env"), []byte(tc.dotenv), 0o600); err != nil {
					t.Fatal(err)
				}

				// godotenv writes to the process env; make sure it is restored afterwards
				for line := range strings.Lines(tc.dotenv) {
					key, _, _ := strings.Cut(strings.TrimSpace(line), "=")
					if _, ok := tc.env[key]; key == "" || ok {
						continue
					}

					t.Setenv(key, "")
					os.Unsetenv(key)
				}
			}

			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := config.New()
			if tc.wantErr {
				if err == nil {
					t.Fatal("New() succeeded unexpectedly")
				}

				return
			}

			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}

			tc.check(t, cfg, wd)
		})
	}
}
