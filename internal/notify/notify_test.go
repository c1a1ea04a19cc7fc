package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/guildwatch/internal/conf"
	"github.com/tphakala/guildwatch/internal/tracker"
)

func TestNewDisabledReturnsNil(t *testing.T) {
	n, err := New(conf.NotifySettings{Enabled: false, URL: "generic://example.com"})
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = New(conf.NotifySettings{Enabled: true, URL: "   "})
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestNewRejectsBadURL(t *testing.T) {
	n, err := New(conf.NotifySettings{Enabled: true, URL: "not-a-service-url"})
	require.Error(t, err)
	assert.Nil(t, n)
}

func TestNilNotifierYieldsNilHook(t *testing.T) {
	var n *Notifier
	assert.Nil(t, n.StatusHook())
}

func TestHookIsNonNilWhenConfigured(t *testing.T) {
	n, err := New(conf.NotifySettings{Enabled: true, URL: "generic://example.com/hook"})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.NotNil(t, n.StatusHook())
}

func TestTitleAndBody(t *testing.T) {
	obs := tracker.StatusObservation{
		Timestamp:    time.Now(),
		Count:        2,
		Names:        []string{"Alduin", "Brelyna"},
		WindowActive: true,
		WindowID:     "TUE",
	}
	assert.Equal(t, "Raid in progress (TUE): 2 online", title(obs))
	assert.Equal(t, "Alduin, Brelyna", body(obs))

	quiet := tracker.StatusObservation{Count: 0, WindowActive: false}
	assert.Equal(t, "0 online", title(quiet))
	assert.Equal(t, "Nobody online.", body(quiet))
}
