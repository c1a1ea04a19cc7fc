// Package source defines the upstream presence snapshot contract and the
// HTTP poller implementation.
package source

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tphakala/guildwatch/internal/conf"
	"github.com/tphakala/guildwatch/internal/datastore"
	"github.com/tphakala/guildwatch/internal/errors"
	"github.com/tphakala/guildwatch/internal/logging"
)

const (
	userAgent          = "GuildWatch https://github.com/tphakala/guildwatch"
	apiKeyHeader       = "X-Api-Key"
	sessionTokenHeader = "X-Session-Token"
)

// Snapshot is one observation of who is currently present upstream.
// SourceEmpty distinguishes "nobody online" from a failed fetch; a failed
// fetch is an error, never an empty snapshot.
type Snapshot struct {
	PresentNames []string
	SourceEmpty  bool
	Message      string
}

// Source produces presence snapshots.
type Source interface {
	Fetch(ctx context.Context) (*Snapshot, error)
}

// statusResponse is the JSON shape of the upstream status endpoint.
type statusResponse struct {
	Players []struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	} `json:"players"`
	IsServerEmpty bool   `json:"isServerEmpty"`
	Message       string `json:"message"`
}

// HTTPSource polls a JSON status endpoint. The upstream issues a session
// token on first contact; the token is persisted through the datastore so a
// restart does not have to renegotiate.
type HTTPSource struct {
	settings conf.SourceSettings
	client   *http.Client
	blobs    datastore.Interface
	logger   *slog.Logger

	sessionToken string
}

// NewHTTPSource creates a poller for the configured endpoint. blobs may be
// nil, in which case session tokens are held in memory only.
func NewHTTPSource(settings conf.SourceSettings, blobs datastore.Interface) *HTTPSource {
	return &HTTPSource{
		settings: settings,
		client:   &http.Client{Timeout: settings.Timeout},
		blobs:    blobs,
		logger:   logging.ForService("source"),
	}
}

// Fetch retrieves the current presence snapshot. Names are trimmed and
// de-duplicated; the upstream's empty-server signal maps to SourceEmpty.
func (s *HTTPSource) Fetch(ctx context.Context) (*Snapshot, error) {
	if s.sessionToken == "" {
		s.loadSessionToken(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.settings.URL, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("source").
			Category(errors.CategorySourceFetch).
			Context("url", s.settings.URL).
			Build()
	}

	req.Header.Set("User-Agent", userAgent)
	if s.settings.APIKey != "" {
		req.Header.Set(apiKeyHeader, s.settings.APIKey)
	}
	if s.sessionToken != "" {
		req.Header.Set(sessionTokenHeader, s.sessionToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("source").
			Category(errors.CategorySourceFetch).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("received non-200 response: %d", resp.StatusCode).
			Component("source").
			Category(errors.CategorySourceFetch).
			Context("status_code", resp.StatusCode).
			Build()
	}

	if token := resp.Header.Get(sessionTokenHeader); token != "" && token != s.sessionToken {
		s.sessionToken = token
		s.saveSessionToken(ctx, token)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("source").
			Category(errors.CategorySourceFetch).
			Build()
	}

	var status statusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, errors.Wrap(err).
			Component("source").
			Category(errors.CategorySourceFetch).
			Build()
	}

	names := make([]string, 0, len(status.Players))
	seen := make(map[string]struct{}, len(status.Players))
	for _, p := range status.Players {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	return &Snapshot{
		PresentNames: names,
		SourceEmpty:  status.IsServerEmpty || len(names) == 0,
		Message:      status.Message,
	}, nil
}

// loadSessionToken restores the last persisted token, if any. Failures are
// not fatal; the upstream will simply issue a fresh token.
func (s *HTTPSource) loadSessionToken(ctx context.Context) {
	if s.blobs == nil {
		return
	}
	blob, err := s.blobs.LoadLatestSessionBlob(ctx)
	if err != nil {
		s.logger.Warn("failed to load persisted session token", "error", err)
		return
	}
	if blob != nil {
		s.sessionToken = string(blob.Data)
	}
}

func (s *HTTPSource) saveSessionToken(ctx context.Context, token string) {
	if s.blobs == nil {
		return
	}
	if _, err := s.blobs.SaveSessionBlob(ctx, []byte(token)); err != nil {
		s.logger.Warn("failed to persist session token", "error", err)
	}
}
