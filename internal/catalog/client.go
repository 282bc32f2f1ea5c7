package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/calyptra/tunesync/internal/models"
	"github.com/calyptra/tunesync/internal/shared"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// Client defines the catalog operations the sync engine consumes.
type Client interface {
	// Ping checks catalog reachability.
	Ping(ctx context.Context) error

	// GetPlaylist retrieves playlist metadata without tracks.
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// ExportPlaylist retrieves a playlist with its full track listing,
	// including per-track stream URLs.
	ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error)
}

// HTTPClient implements [Client] against a JSON-over-HTTP catalog API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPClient creates a catalog client from configuration. When token_url
// and client credentials are set, requests carry an OAuth2 client-credentials
// token; otherwise the base client is used as-is.
func NewHTTPClient(cfg shared.CatalogConfig, client *http.Client) *HTTPClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if client == nil {
		client = http.DefaultClient
	}

	if cfg.TokenURL != "" && cfg.ClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		client = cc.Client(context.Background())
	}

	rl := cfg.RateLimit
	if rl <= 0 {
		rl = 5.0
	}

	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(rl), 1),
	}
}

// wire types for the catalog API responses

type playlistPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	TrackCount  int    `json:"track_count"`
}

type trackPayload struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	TrackNo   int    `json:"track_no"`
	Duration  int    `json:"duration"`
	StreamURL string `json:"stream_url"`
}

type exportPayload struct {
	Playlist playlistPayload `json:"playlist"`
	Tracks   []trackPayload  `json:"tracks"`
}

// Ping checks catalog reachability via the health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// GetPlaylist retrieves playlist metadata without tracks.
func (c *HTTPClient) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	var payload playlistPayload
	if err := c.get(ctx, "/api/playlists/"+url.PathEscape(playlistID), &payload); err != nil {
		return nil, err
	}
	pl := payload.toModel()
	return &pl, nil
}

// ExportPlaylist retrieves a playlist with its full track listing.
func (c *HTTPClient) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	var payload exportPayload
	if err := c.get(ctx, "/api/playlists/"+url.PathEscape(playlistID)+"/export", &payload); err != nil {
		return nil, err
	}

	export := &models.PlaylistExport{
		Playlist: payload.Playlist.toModel(),
		Tracks:   make([]models.Track, 0, len(payload.Tracks)),
	}
	for _, tr := range payload.Tracks {
		export.Tracks = append(export.Tracks, models.Track{
			ID:        tr.ID,
			Title:     tr.Title,
			Artist:    tr.Artist,
			Album:     tr.Album,
			TrackNo:   tr.TrackNo,
			Duration:  tr.Duration,
			StreamURL: tr.StreamURL,
		})
	}
	return export, nil
}

func (p playlistPayload) toModel() models.Playlist {
	return models.Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Owner:       p.Owner,
		TrackCount:  p.TrackCount,
	}
}

// get performs a rate-limited GET and decodes the JSON response into out
// (skipped when out is nil). HTTP status codes are mapped onto the shared
// error taxonomy.
func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", shared.ErrAPIRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", shared.ErrAPIRequest, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, path)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", shared.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// PlaylistIDFromURL extracts the playlist identifier from a catalog URL such
// as https://catalog.example/playlist/abc123. A bare identifier passes
// through unchanged.
func PlaylistIDFromURL(raw string) (string, error) {
	if !strings.Contains(raw, "/") {
		if raw == "" {
			return "", fmt.Errorf("%w: empty playlist URL", shared.ErrInvalidInput)
		}
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	id := segments[len(segments)-1]
	if id == "" {
		return "", fmt.Errorf("%w: no playlist id in %q", shared.ErrInvalidInput, raw)
	}
	return id, nil
}
