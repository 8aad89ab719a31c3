package link

import (
	"context"
	"log/slog"
	"net"
)

// Interface reports Connected once the named interface is up and carries a
// routable unicast address. Association itself is left to the OS.
type Interface struct {
	name string

	lookup func(name string) (*net.Interface, error)
	addrs  func(*net.Interface) ([]net.Addr, error)
}

func NewInterface(name string) *Interface {
	return &Interface{
		name:   name,
		lookup: net.InterfaceByName,
		addrs:  (*net.Interface).Addrs,
	}
}

func (i *Interface) Begin(context.Context) error {
	slog.Debug("link: association managed by the OS", "interface", i.name)
	return nil
}

func (i *Interface) Status() Status {
	ifi, err := i.lookup(i.name)
	if err != nil {
		slog.Debug("link: interface lookup failed", "interface", i.name, "error", err)
		return Disconnected
	}
	if ifi.Flags&net.FlagUp == 0 {
		return Disconnected
	}
	addrs, err := i.addrs(ifi)
	if err != nil {
		return Disconnected
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipnet.IP
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			continue
		}
		return Connected
	}
	return Disconnected
}
