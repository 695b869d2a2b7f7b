package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxResponseSize = 4 * 1024 * 1024

const (
	songsQuery = `query GetSongs {
  songs { id title artist duration }
}`
	queueQuery = `query GetQueue {
  queue { songId position votes queuedAt }
}`
	queueSongMutation = `mutation QueueSong($songId: String!) {
  queueSong(songId: $songId) { songId position votes queuedAt }
}`
	upvoteSongMutation = `mutation UpvoteSong($songId: ID!) {
  upvoteSong(songId: $songId) { songId position votes }
}`
	downvoteSongMutation = `mutation DownvoteSong($songId: ID!) {
  downvoteSong(songId: $songId) { songId position votes }
}`
)

// RemoteError is returned by every request/response operation that fails,
// whatever the cause (network, HTTP status, GraphQL errors, decoding).
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// GraphQLError carries the messages of a GraphQL "errors" array.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return strings.Join(e.Messages, "; ")
}

var errEmptyResult = errors.New("service returned no result")

type graphqlRequest struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (d *Daemon) Songs(ctx context.Context) ([]Song, error) {
	var out struct {
		Songs []Song `json:"songs"`
	}
	if err := d.do(ctx, "GetSongs", songsQuery, nil, &out); err != nil {
		return nil, err
	}
	if out.Songs == nil {
		out.Songs = []Song{}
	}
	return out.Songs, nil
}

func (d *Daemon) Queue(ctx context.Context) ([]QueueItem, error) {
	var out struct {
		Queue []QueueItem `json:"queue"`
	}
	if err := d.do(ctx, "GetQueue", queueQuery, nil, &out); err != nil {
		return nil, err
	}
	if out.Queue == nil {
		out.Queue = []QueueItem{}
	}
	return out.Queue, nil
}

func (d *Daemon) Enqueue(ctx context.Context, songID string) (QueueItem, error) {
	return d.mutate(ctx, "QueueSong", "queueSong", queueSongMutation, songID)
}

func (d *Daemon) Upvote(ctx context.Context, songID string) (QueueItem, error) {
	return d.mutate(ctx, "UpvoteSong", "upvoteSong", upvoteSongMutation, songID)
}

func (d *Daemon) Downvote(ctx context.Context, songID string) (QueueItem, error) {
	return d.mutate(ctx, "DownvoteSong", "downvoteSong", downvoteSongMutation, songID)
}

func (d *Daemon) mutate(ctx context.Context, op, field, query, songID string) (QueueItem, error) {
	if strings.TrimSpace(songID) == "" {
		return QueueItem{}, &RemoteError{Op: op, Err: errors.New("song id is required")}
	}

	var out map[string]*QueueItem
	if err := d.do(ctx, op, query, map[string]any{"songId": songID}, &out); err != nil {
		return QueueItem{}, err
	}
	item := out[field]
	if item == nil {
		return QueueItem{}, &RemoteError{Op: op, Err: errEmptyResult}
	}
	return *item, nil
}

func (d *Daemon) do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{OperationName: op, Query: query, Variables: vars})
	if err != nil {
		return &RemoteError{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiURL, bytes.NewReader(body))
	if err != nil {
		return &RemoteError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := d.http.Do(req)
	if err != nil {
		return &RemoteError{Op: op, Err: fmt.Errorf("network error: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &RemoteError{Op: op, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	var gr graphqlResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &RemoteError{Op: op, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
		}
		return &RemoteError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if len(gr.Errors) > 0 {
		gqlErr := &GraphQLError{}
		for _, e := range gr.Errors {
			gqlErr.Messages = append(gqlErr.Messages, e.Message)
		}
		return &RemoteError{Op: op, Err: gqlErr}
	}
	if resp.StatusCode != http.StatusOK {
		return &RemoteError{Op: op, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}
	if len(gr.Data) == 0 || string(gr.Data) == "null" {
		return &RemoteError{Op: op, Err: errEmptyResult}
	}
	if out != nil {
		if err := json.Unmarshal(gr.Data, out); err != nil {
			return &RemoteError{Op: op, Err: fmt.Errorf("failed to decode %s data: %w", op, err)}
		}
	}

	d.logger.Debug("GraphQL request completed",
		zap.String("op", op),
		zap.String("requestID", requestID),
		zap.Int("bytes", len(raw)))
	return nil
}
