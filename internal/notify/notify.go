// Package notify pushes presence summaries to operator channels. Sends are
// fire-and-forget; a broken webhook must never stall tracking.
package notify

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/guildwatch/internal/conf"
	"github.com/tphakala/guildwatch/internal/errors"
	"github.com/tphakala/guildwatch/internal/logging"
	"github.com/tphakala/guildwatch/internal/tracker"
)

const sendTimeout = 10 * time.Second

// Notifier sends presence summaries through a shoutrrr service URL.
type Notifier struct {
	sender *router.ServiceRouter
	logger *slog.Logger
}

// New creates a Notifier for the configured URL. Returns (nil, nil) when
// notifications are disabled.
func New(settings conf.NotifySettings) (*Notifier, error) {
	if !settings.Enabled || strings.TrimSpace(settings.URL) == "" {
		return nil, nil
	}

	sender, err := shoutrrr.CreateSender(settings.URL)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("notify").
			Category(errors.CategoryNotification).
			Build()
	}
	sender.Timeout = sendTimeout
	// shoutrrr logs URLs that can carry webhook tokens; keep it quiet
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &Notifier{
		sender: sender,
		logger: logging.ForService("notify"),
	}, nil
}

// StatusHook adapts the Notifier to the tracker's observation callback. A
// nil Notifier yields a nil hook, so the caller can wire it unconditionally.
func (n *Notifier) StatusHook() tracker.StatusHook {
	if n == nil {
		return nil
	}
	return func(obs tracker.StatusObservation) {
		n.send(obs)
	}
}

func (n *Notifier) send(obs tracker.StatusObservation) {
	params := stypes.Params{}
	params.SetTitle(title(obs))

	errs := n.sender.Send(body(obs), &params)
	for _, err := range errs {
		if err != nil {
			n.logger.Error("failed to send status notification", "error", err)
		}
	}
}

func title(obs tracker.StatusObservation) string {
	if obs.WindowActive {
		return fmt.Sprintf("Raid in progress (%s): %d online", obs.WindowID, obs.Count)
	}
	return fmt.Sprintf("%d online", obs.Count)
}

func body(obs tracker.StatusObservation) string {
	if obs.Count == 0 {
		return "Nobody online."
	}
	return strings.Join(obs.Names, ", ")
}
