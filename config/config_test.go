package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		check   func(t *testing.T, c *Config)
		wantErr string
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			check: func(t *testing.T, c *Config) {
				if c.APIURL != "http://localhost:4000/graphql" || c.WSURL != "ws://localhost:4000/graphql" {
					t.Errorf("endpoints = %q, %q", c.APIURL, c.WSURL)
				}
				if c.PollInterval != time.Second || c.HTTPTimeout != 10*time.Second {
					t.Errorf("intervals = %v, %v", c.PollInterval, c.HTTPTimeout)
				}
				if c.WSRetries != 5 || c.WSBackoff != 2*time.Second {
					t.Errorf("retry = %d, %v", c.WSRetries, c.WSBackoff)
				}
				if c.LyricsURL != "https://lrclib.net/api/get" || c.LogFile != "" || c.LogLevel != "info" {
					t.Errorf("config = %+v", c)
				}
			},
		},
		{
			name: "host drives both endpoints",
			env:  map[string]string{"JUKEBOX_HOST": "jukebox.lan:8080"},
			check: func(t *testing.T, c *Config) {
				if c.APIURL != "http://jukebox.lan:8080/graphql" || c.WSURL != "ws://jukebox.lan:8080/graphql" {
					t.Errorf("endpoints = %q, %q", c.APIURL, c.WSURL)
				}
			},
		},
		{
			name: "https api gives wss push",
			env:  map[string]string{"JUKEBOX_API_URL": "https://jukebox.example.com/api/graphql"},
			check: func(t *testing.T, c *Config) {
				if c.WSURL != "wss://jukebox.example.com/api/graphql" {
					t.Errorf("WSURL = %q", c.WSURL)
				}
			},
		},
		{
			name: "independent overrides",
			env: map[string]string{
				"JUKEBOX_API_URL":       "http://a/graphql",
				"JUKEBOX_WS_URL":        "ws://b/subscriptions",
				"JUKEBOX_POLL_INTERVAL": "250ms",
				"JUKEBOX_WS_RETRIES":    "0",
			},
			check: func(t *testing.T, c *Config) {
				if c.APIURL != "http://a/graphql" || c.WSURL != "ws://b/subscriptions" {
					t.Errorf("endpoints = %q, %q", c.APIURL, c.WSURL)
				}
				if c.PollInterval != 250*time.Millisecond || c.WSRetries != 0 {
					t.Errorf("config = %+v", c)
				}
			},
		},
		{
			name:    "bad duration",
			env:     map[string]string{"JUKEBOX_POLL_INTERVAL": "soon"},
			wantErr: "JUKEBOX_POLL_INTERVAL",
		},
		{
			name:    "zero duration",
			env:     map[string]string{"JUKEBOX_WS_BACKOFF": "0s"},
			wantErr: "JUKEBOX_WS_BACKOFF",
		},
		{
			name:    "negative retries",
			env:     map[string]string{"JUKEBOX_WS_RETRIES": "-1"},
			wantErr: "JUKEBOX_WS_RETRIES",
		},
		{
			name:    "api url without scheme",
			env:     map[string]string{"JUKEBOX_API_URL": "jukebox/graphql"},
			wantErr: "JUKEBOX_API_URL",
		},
		{
			name:    "http push url",
			env:     map[string]string{"JUKEBOX_WS_URL": "http://a/graphql"},
			wantErr: "JUKEBOX_WS_URL",
		},
		{
			name:    "bad log level",
			env:     map[string]string{"JUKEBOX_LOG_LEVEL": "loud"},
			wantErr: "JUKEBOX_LOG_LEVEL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse(lookup(tt.env))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Parse() error = %v, want mentioning %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			tt.check(t, c)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	const key = "JUKEBOX_HTTP_TIMEOUT"
	if _, set := os.LookupEnv(key); set {
		t.Skipf("%s is set in the environment", key)
	}
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte(key+"=3s\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.HTTPTimeout != 3*time.Second {
		t.Errorf("HTTPTimeout = %v, want 3s", c.HTTPTimeout)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("Load() of a named missing file should fail")
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&Config{LogLevel: "info"})
	if err != nil || logger == nil {
		t.Fatalf("NewLogger() without a file = %v, %v", logger, err)
	}

	path := filepath.Join(t.TempDir(), "jukebox.log")
	logger, err = NewLogger(&Config{LogFile: path, LogLevel: "warn"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("hidden")
	logger.Warn("Queue positions are not contiguous")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(string(data), `"msg":"Queue positions are not contiguous"`) {
		t.Errorf("log file = %s", data)
	}
}
