// Package router implements the frame-processing pipeline: ARP resolution,
// local delivery, and IPv4 forwarding with optional NAT translation.
package router

import (
	"log/slog"

	"github.com/athena-dhcpd/athena-router/internal/arpcache"
	"github.com/athena-dhcpd/athena-router/internal/nat"
	"github.com/athena-dhcpd/athena-router/internal/netif"
)

// Sender is the router's outbound dependency.
type Sender interface {
	SendFrame(iface string, frame []byte) error
}

// Config supplies everything a Router needs. NAT is nil when EnableNAT is
// false; the router never dereferences it in that case.
type Config struct {
	Interfaces       *netif.Set
	Routes           *netif.RouteTable
	ARP              *arpcache.Cache
	NAT              *nat.Table
	EnableNAT        bool
	InsideInterface  string
	OutsideInterface string
	Transport        Sender
	Logger           *slog.Logger
}

// Router holds the router's fixed configuration and subsystem handles. It
// is safe for concurrent use: HandleFrame delegates all mutable state to
// the arp and nat subsystems, which serialize internally.
type Router struct {
	interfaces   *netif.Set
	routes       *netif.RouteTable
	arp          *arpcache.Cache
	nat          *nat.Table
	enableNAT    bool
	insideIface  string
	outsideIface string
	transport    Sender
	logger       *slog.Logger
}

// New builds a Router from cfg.
func New(cfg Config) *Router {
	return &Router{
		interfaces:   cfg.Interfaces,
		routes:       cfg.Routes,
		arp:          cfg.ARP,
		nat:          cfg.NAT,
		enableNAT:    cfg.EnableNAT,
		insideIface:  cfg.InsideInterface,
		outsideIface: cfg.OutsideInterface,
		transport:    cfg.Transport,
		logger:       cfg.Logger,
	}
}

func (r *Router) send(iface string, frame []byte) error {
	if err := r.transport.SendFrame(iface, frame); err != nil {
		if r.logger != nil {
			r.logger.Warn("router: send failed", "interface", iface, "error", err)
		}
		return err
	}
	return nil
}
