package ui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/calyptra/tunesync/internal/jobs"
	"github.com/calyptra/tunesync/internal/shared"
)

// StreamClient talks to a running server: it consumes the job event stream
// and issues the monitor's job actions.
type StreamClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewStreamClient creates a StreamClient for the server at baseURL.
func NewStreamClient(baseURL string, client *http.Client) *StreamClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &StreamClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: client}
}

// Stream opens the event stream and returns a channel of decoded events.
// The channel closes when the connection drops or ctx is cancelled.
// Heartbeat comment lines are filtered out here.
func (c *StreamClient) Stream(ctx context.Context) (<-chan jobs.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/jobs/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	events := make(chan jobs.Event, 16)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var ev jobs.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				continue
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// CancelJob requests cancellation of the given job.
func (c *StreamClient) CancelJob(ctx context.Context, id string) error {
	return c.post(ctx, "/api/jobs/"+id+"/cancel")
}

// ClearFinished removes all finished jobs.
func (c *StreamClient) ClearFinished(ctx context.Context) error {
	return c.post(ctx, "/api/jobs/clear")
}

func (c *StreamClient) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}
	return nil
}
