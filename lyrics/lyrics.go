package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultLRCLIBURL = "https://lrclib.net/api/get"

// Result is what a provider found for one song.
type Result struct {
	Plain  string
	Synced string // LRC with timestamps
	Source string
	Found  bool
}

// Lines splits the plain lyrics into display lines.
func (r Result) Lines() []string {
	text := strings.TrimRight(strings.ReplaceAll(r.Plain, "\r\n", "\n"), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Provider is one lyrics source.
type Provider interface {
	Lookup(ctx context.Context, title, artist string, duration int) (Result, error)
	Name() string
}

// Client asks each provider in turn until one has the song.
type Client struct {
	providers []Provider
	logger    *zap.Logger
}

// NewClient creates a client whose only provider is LRCLIB at baseURL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}
	return &Client{
		providers: []Provider{&LRCLIB{baseURL: baseURL, client: httpClient}},
		logger:    logger,
	}
}

// NewClientWithProviders creates a client over an explicit provider chain.
func NewClientWithProviders(logger *zap.Logger, providers ...Provider) *Client {
	return &Client{providers: providers, logger: logger}
}

func (c *Client) Lookup(ctx context.Context, title, artist string, duration int) (Result, error) {
	var errs []error
	for _, p := range c.providers {
		res, err := p.Lookup(ctx, title, artist, duration)
		if err == nil && res.Found {
			c.logger.Debug("Lyrics found",
				zap.String("provider", p.Name()),
				zap.String("title", title),
				zap.String("artist", artist))
			return res, nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}

	if len(errs) > 0 {
		return Result{}, fmt.Errorf("no lyrics found from any provider: %w", errors.Join(errs...))
	}
	return Result{}, errors.New("no lyrics found from any provider")
}

// LRCLIB queries the lrclib.net "get" endpoint.
type LRCLIB struct {
	baseURL string
	client  *http.Client
}

func (p *LRCLIB) Name() string { return "LRCLIB" }

type lrclibTrack struct {
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

func (p *LRCLIB) Lookup(ctx context.Context, title, artist string, duration int) (Result, error) {
	params := url.Values{}
	params.Set("track_name", Normalize(title))
	params.Set("artist_name", Normalize(artist))
	if duration > 0 {
		params.Set("duration", fmt.Sprint(duration))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "nerdy-jukebox-terminal/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Result{}, errors.New("lyrics not found")
	case resp.StatusCode != http.StatusOK:
		return Result{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read body: %w", err)
	}
	var track lrclibTrack
	if err := json.Unmarshal(body, &track); err != nil {
		return Result{}, fmt.Errorf("failed to parse response: %w", err)
	}

	if track.Instrumental {
		return Result{Plain: "[Instrumental]", Source: p.Name(), Found: true}, nil
	}
	if track.PlainLyrics == "" && track.SyncedLyrics == "" {
		return Result{}, errors.New("empty lyrics")
	}
	return Result{
		Plain:  track.PlainLyrics,
		Synced: track.SyncedLyrics,
		Source: p.Name(),
		Found:  true,
	}, nil
}

// Normalize strips featuring credits and parenthesized or bracketed
// suffixes ("(Remastered)", "[Live]") that lyrics databases do not index.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, marker := range []string{" feat", " ft.", "(", "["} {
		if idx := strings.Index(lower, marker); idx != -1 {
			s, lower = s[:idx], lower[:idx]
		}
	}
	return strings.TrimSpace(s)
}
