// Package link observes (and where possible starts) the device's network
// association. The agent only ever asks two questions: start associating,
// and are we connected right now.
package link

import (
	"context"
	"fmt"

	"kneeflexiq/internal/config"
)

type Status int

const (
	Disconnected Status = iota
	Connected
)

func (s Status) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

type Link interface {
	// Begin starts association. It does not wait for it to complete.
	Begin(ctx context.Context) error
	Status() Status
}

// Open builds the driver selected by cfg.LinkDriver.
func Open(cfg config.Agent) (Link, error) {
	switch cfg.LinkDriver {
	case config.LinkDriverNMCLI:
		return NewNMCLI(cfg.LinkInterface, cfg.WiFiSSID, cfg.WiFiPassphrase), nil
	case config.LinkDriverIface:
		return NewInterface(cfg.LinkInterface), nil
	case config.LinkDriverStatic:
		return Static{}, nil
	default:
		return nil, fmt.Errorf("unknown link driver %q", cfg.LinkDriver)
	}
}

// Static is always connected. Used on wired bench setups and in tests.
type Static struct{}

func (Static) Begin(context.Context) error { return nil }
func (Static) Status() Status              { return Connected }
