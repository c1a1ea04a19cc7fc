package source

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/guildwatch/internal/conf"
	"github.com/tphakala/guildwatch/internal/datastore"
)

const statusURL = "https://panel.example.com/status"

func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

func testSource(blobs datastore.Interface) *HTTPSource {
	return NewHTTPSource(conf.SourceSettings{
		URL:     statusURL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, blobs)
}

func TestFetchParsesPlayers(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", statusURL,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "test-key", req.Header.Get("X-Api-Key"))
			return httpmock.NewStringResponse(http.StatusOK, `{
				"players": [
					{"name": "Alduin", "score": 12},
					{"name": " Brelyna ", "score": 7},
					{"name": "Alduin", "score": 12},
					{"name": "", "score": 0}
				],
				"isServerEmpty": false,
				"message": "Players found online"
			}`), nil
		})

	snap, err := testSource(nil).Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Alduin", "Brelyna"}, snap.PresentNames, "trimmed and de-duplicated")
	assert.False(t, snap.SourceEmpty)
	assert.Equal(t, "Players found online", snap.Message)
}

func TestFetchEmptyServer(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", statusURL,
		httpmock.NewStringResponder(http.StatusOK, `{
			"players": [],
			"isServerEmpty": true,
			"message": "Server is empty"
		}`))

	snap, err := testSource(nil).Fetch(context.Background())
	require.NoError(t, err)

	assert.Empty(t, snap.PresentNames)
	assert.True(t, snap.SourceEmpty)
}

func TestFetchHTTPErrorIsNotEmptySnapshot(t *testing.T) {
	setupHTTPMock(t)

	tests := []struct {
		name       string
		statusCode int
	}{
		{"unauthorized", http.StatusUnauthorized},
		{"server error", http.StatusInternalServerError},
		{"gateway timeout", http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpmock.RegisterResponder("GET", statusURL,
				httpmock.NewStringResponder(tt.statusCode, "nope"))

			snap, err := testSource(nil).Fetch(context.Background())
			require.Error(t, err)
			assert.Nil(t, snap)
		})
	}
}

func TestFetchMalformedBody(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", statusURL,
		httpmock.NewStringResponder(http.StatusOK, "<html>login page</html>"))

	snap, err := testSource(nil).Fetch(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap)
}

func TestFetchHonorsContextCancel(t *testing.T) {
	setupHTTPMock(t)

	// the request must carry the caller's context
	httpmock.RegisterResponder("GET", statusURL,
		func(req *http.Request) (*http.Response, error) {
			if err := req.Context().Err(); err != nil {
				return nil, err
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"players": []}`), nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testSource(nil).Fetch(ctx)
	require.Error(t, err)
}

// blobRecorder is a minimal datastore.Interface capturing session blobs.
type blobRecorder struct {
	datastore.Interface

	mu    sync.Mutex
	blobs [][]byte
}

func (b *blobRecorder) SaveSessionBlob(_ context.Context, data []byte) (uint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs = append(b.blobs, data)
	return uint(len(b.blobs)), nil
}

func (b *blobRecorder) LoadLatestSessionBlob(context.Context) (*datastore.SessionBlob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.blobs) == 0 {
		return nil, nil
	}
	return &datastore.SessionBlob{Data: b.blobs[len(b.blobs)-1]}, nil
}

func TestSessionTokenPersistedAndReplayed(t *testing.T) {
	setupHTTPMock(t)

	blobs := &blobRecorder{}
	src := testSource(blobs)

	httpmock.RegisterResponder("GET", statusURL,
		func(req *http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(http.StatusOK, `{"players": [], "isServerEmpty": true}`)
			if req.Header.Get("X-Session-Token") == "" {
				resp.Header.Set("X-Session-Token", "tok-1")
			}
			return resp, nil
		})

	_, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", src.sessionToken)

	blobs.mu.Lock()
	require.Len(t, blobs.blobs, 1)
	assert.Equal(t, []byte("tok-1"), blobs.blobs[0])
	blobs.mu.Unlock()

	// a fresh source restores the token from the store
	restored := testSource(blobs)
	_, err = restored.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", restored.sessionToken)
}
