package link

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// NMCLI asks NetworkManager to join a WiFi network and then watches the
// interface like Interface does.
type NMCLI struct {
	*Interface
	ssid       string
	passphrase string

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewNMCLI(iface, ssid, passphrase string) *NMCLI {
	return &NMCLI{
		Interface:  NewInterface(iface),
		ssid:       ssid,
		passphrase: passphrase,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// Begin issues one connect request. Failures are returned but the caller keeps
// polling Status, so a later association by NetworkManager still counts.
func (n *NMCLI) Begin(ctx context.Context) error {
	out, err := n.run(ctx, "nmcli", "device", "wifi", "connect", n.ssid,
		"password", n.passphrase, "ifname", n.name)
	if err != nil {
		return fmt.Errorf("nmcli connect %q: %w: %s", n.ssid, err, strings.TrimSpace(string(out)))
	}
	slog.Debug("link: nmcli connect issued", "ssid", n.ssid, "interface", n.name)
	return nil
}
