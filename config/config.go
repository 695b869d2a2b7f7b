package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultHost         = "localhost:4000"
	defaultPollInterval = time.Second
	defaultHTTPTimeout  = 10 * time.Second
	defaultWSRetries    = 5
	defaultWSBackoff    = 2 * time.Second
	defaultLyricsURL    = "https://lrclib.net/api/get"
	defaultLogLevel     = "info"
)

// Config holds the terminal's settings.
type Config struct {
	Host         string
	APIURL       string
	WSURL        string
	PollInterval time.Duration
	HTTPTimeout  time.Duration
	WSRetries    int
	WSBackoff    time.Duration
	LyricsURL    string
	LogFile      string
	LogLevel     string
}

// Load reads the given .env files (".env" when none are named, and only if
// it exists) into the environment, then parses the environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("failed to load %v: %w", files, err)
	}
	return Parse(os.LookupEnv)
}

// Parse builds a Config from lookup, filling in defaults. Both endpoints
// derive from JUKEBOX_HOST unless overridden; the push endpoint follows the
// request endpoint's scheme (http to ws, https to wss).
func Parse(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Host:      get("JUKEBOX_HOST", defaultHost),
		LyricsURL: get("JUKEBOX_LYRICS_URL", defaultLyricsURL),
		LogFile:   get("JUKEBOX_LOG_FILE", ""),
		LogLevel:  get("JUKEBOX_LOG_LEVEL", defaultLogLevel),
	}
	cfg.APIURL = get("JUKEBOX_API_URL", "http://"+cfg.Host+"/graphql")

	api, err := url.Parse(cfg.APIURL)
	if err != nil || (api.Scheme != "http" && api.Scheme != "https") || api.Host == "" {
		return nil, fmt.Errorf("invalid JUKEBOX_API_URL %q: want an http(s) URL", cfg.APIURL)
	}
	cfg.WSURL = get("JUKEBOX_WS_URL", pushURL(api))
	if ws, err := url.Parse(cfg.WSURL); err != nil || (ws.Scheme != "ws" && ws.Scheme != "wss") {
		return nil, fmt.Errorf("invalid JUKEBOX_WS_URL %q: want a ws(s) URL", cfg.WSURL)
	}

	if cfg.PollInterval, err = duration(get, "JUKEBOX_POLL_INTERVAL", defaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = duration(get, "JUKEBOX_HTTP_TIMEOUT", defaultHTTPTimeout); err != nil {
		return nil, err
	}
	if cfg.WSBackoff, err = duration(get, "JUKEBOX_WS_BACKOFF", defaultWSBackoff); err != nil {
		return nil, err
	}

	raw := get("JUKEBOX_WS_RETRIES", strconv.Itoa(defaultWSRetries))
	if cfg.WSRetries, err = strconv.Atoi(raw); err != nil || cfg.WSRetries < 0 {
		return nil, fmt.Errorf("invalid JUKEBOX_WS_RETRIES %q: want a non-negative integer", raw)
	}

	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid JUKEBOX_LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	return cfg, nil
}

func pushURL(api *url.URL) string {
	ws := *api
	if api.Scheme == "https" {
		ws.Scheme = "wss"
	} else {
		ws.Scheme = "ws"
	}
	return ws.String()
}

func duration(get func(string, string) string, key string, fallback time.Duration) (time.Duration, error) {
	raw := get(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive duration such as 1s", key, raw)
	}
	return d, nil
}

// Fields describes the configuration for a log line.
func (c *Config) Fields() []zap.Field {
	return []zap.Field{
		zap.String("apiURL", c.APIURL),
		zap.String("wsURL", c.WSURL),
		zap.Duration("pollInterval", c.PollInterval),
		zap.Duration("httpTimeout", c.HTTPTimeout),
		zap.Int("wsRetries", c.WSRetries),
		zap.Duration("wsBackoff", c.WSBackoff),
		zap.String("lyricsURL", c.LyricsURL),
		zap.String("logLevel", c.LogLevel),
	}
}

// NewLogger writes JSON logs to LogFile. The terminal owns stdout, so
// without a log file nothing is logged.
func NewLogger(c *Config) (*zap.Logger, error) {
	if c.LogFile == "" {
		return zap.NewNop(), nil
	}
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{c.LogFile}
	zc.ErrorOutputPaths = []string{c.LogFile}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logger, nil
}
