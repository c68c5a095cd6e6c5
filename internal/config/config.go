// Package config handles TOML configuration parsing and validation for athena-router.
package config

import (
	"fmt"
	"net"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/athena-dhcpd/athena-router/internal/netif"
)

// Config is the top-level configuration for athena-router.
type Config struct {
	Server     ServerConfig      `toml:"server"`
	Interfaces []InterfaceConfig `toml:"interface"`
	Routes     []RouteConfig     `toml:"route"`
	NAT        NATConfig         `toml:"nat"`
}

// ServerConfig holds core server settings.
type ServerConfig struct {
	LogLevel         string `toml:"log_level"`
	MetricsAddr      string `toml:"metrics_addr"`
	EnableNAT        bool   `toml:"enable_nat"`
	InsideInterface  string `toml:"inside_interface"`
	OutsideInterface string `toml:"outside_interface"`
}

// InterfaceConfig describes one of the router's virtual Ethernet interfaces.
// Device names the underlying OS capture device (e.g. a veth peer); it
// defaults to Name when left empty.
type InterfaceConfig struct {
	Name   string `toml:"name"`
	MAC    string `toml:"mac"`
	IP     string `toml:"ip"`
	Device string `toml:"device"`
}

// Devices maps each configured interface name to its capture device,
// defaulting to the interface name itself when Device is unset.
func (c *Config) Devices() map[string]string {
	out := make(map[string]string, len(c.Interfaces))
	for _, ifc := range c.Interfaces {
		device := ifc.Device
		if device == "" {
			device = ifc.Name
		}
		out[ifc.Name] = device
	}
	return out
}

// RouteConfig describes one static routing-table entry.
type RouteConfig struct {
	Destination string `toml:"destination"`
	Mask        string `toml:"mask"`
	Gateway     string `toml:"gateway"`
	Interface   string `toml:"interface"`
}

// NATConfig holds NAT subsystem tunables. Durations are TOML strings
// parsed with time.ParseDuration ("60s", "2h4m"); zero/empty falls back
// to the package defaults.
type NATConfig struct {
	ICMPTimeout          string `toml:"icmp_timeout"`
	TCPEstablishedTimeout string `toml:"tcp_established_timeout"`
	TCPTransitoryTimeout  string `toml:"tcp_transitory_timeout"`
	ARPCacheSize          int    `toml:"arp_cache_size"`
	ARPCacheTimeout       string `toml:"arp_cache_timeout"`
	ARPMaxRetries         int    `toml:"arp_max_retries"`
}

// Load reads and parses a TOML configuration file, applying defaults and
// validating the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return &cfg, nil
}

// ApplyDefaults fills in zero-valued fields with package defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.Server.MetricsAddr == "" {
		cfg.Server.MetricsAddr = DefaultMetricsAddr
	}
	if cfg.Server.InsideInterface == "" {
		cfg.Server.InsideInterface = DefaultInsideInterface
	}
	if cfg.Server.OutsideInterface == "" {
		cfg.Server.OutsideInterface = DefaultOutsideInterface
	}
	if cfg.NAT.ARPCacheSize == 0 {
		cfg.NAT.ARPCacheSize = DefaultARPCacheSize
	}
	if cfg.NAT.ARPMaxRetries == 0 {
		cfg.NAT.ARPMaxRetries = DefaultARPMaxRetries
	}
}

// Validate checks the configuration for internal consistency — unique
// interface names, well-formed addresses, routes referencing known
// interfaces, and parseable durations.
func (c *Config) Validate() error {
	if len(c.Interfaces) == 0 {
		return fmt.Errorf("at least one [[interface]] is required")
	}

	seen := make(map[string]bool, len(c.Interfaces))
	for _, ifc := range c.Interfaces {
		if ifc.Name == "" {
			return fmt.Errorf("interface entry missing name")
		}
		if seen[ifc.Name] {
			return fmt.Errorf("duplicate interface name %q", ifc.Name)
		}
		seen[ifc.Name] = true

		if _, err := net.ParseMAC(ifc.MAC); err != nil {
			return fmt.Errorf("interface %s: invalid mac %q: %w", ifc.Name, ifc.MAC, err)
		}
		if ip := net.ParseIP(ifc.IP).To4(); ip == nil {
			return fmt.Errorf("interface %s: invalid ipv4 address %q", ifc.Name, ifc.IP)
		}
	}

	if c.Server.EnableNAT {
		if !seen[c.Server.InsideInterface] {
			return fmt.Errorf("inside_interface %q is not a configured interface", c.Server.InsideInterface)
		}
		if !seen[c.Server.OutsideInterface] {
			return fmt.Errorf("outside_interface %q is not a configured interface", c.Server.OutsideInterface)
		}
	}

	for _, r := range c.Routes {
		if net.ParseIP(r.Destination).To4() == nil {
			return fmt.Errorf("route destination %q is not a valid ipv4 address", r.Destination)
		}
		if net.ParseIP(r.Mask).To4() == nil {
			return fmt.Errorf("route mask %q is not a valid ipv4 mask", r.Mask)
		}
		if r.Gateway != "" && r.Gateway != "0.0.0.0" {
			if net.ParseIP(r.Gateway).To4() == nil {
				return fmt.Errorf("route gateway %q is not a valid ipv4 address", r.Gateway)
			}
		}
		if !seen[r.Interface] {
			return fmt.Errorf("route via %s references unknown interface %q", r.Destination, r.Interface)
		}
	}

	for _, d := range []string{c.NAT.ICMPTimeout, c.NAT.TCPEstablishedTimeout, c.NAT.TCPTransitoryTimeout, c.NAT.ARPCacheTimeout} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("invalid duration %q: %w", d, err)
		}
	}

	return nil
}

// BuildInterfaces resolves the configured interfaces into a netif.Set.
func (c *Config) BuildInterfaces() (*netif.Set, error) {
	out := make([]*netif.Interface, 0, len(c.Interfaces))
	for _, ifc := range c.Interfaces {
		mac, err := net.ParseMAC(ifc.MAC)
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", ifc.Name, err)
		}
		out = append(out, &netif.Interface{
			Name: ifc.Name,
			MAC:  mac,
			IP:   net.ParseIP(ifc.IP).To4(),
		})
	}
	return netif.NewSet(out)
}

// BuildRoutes resolves the configured routes into a netif.RouteTable.
func (c *Config) BuildRoutes() *netif.RouteTable {
	entries := make([]netif.RouteEntry, 0, len(c.Routes))
	for _, r := range c.Routes {
		gw := net.ParseIP(r.Gateway).To4()
		if gw == nil {
			gw = net.IPv4zero.To4()
		}
		entries = append(entries, netif.RouteEntry{
			Destination:   net.ParseIP(r.Destination).To4(),
			Mask:          net.IPMask(net.ParseIP(r.Mask).To4()),
			Gateway:       gw,
			InterfaceName: r.Interface,
		})
	}
	return netif.NewRouteTable(entries)
}

// durationOr parses a NATConfig duration field, falling back to def when the
// field is empty (DecodeFile leaves unset TOML strings as "") or unparseable.
func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// ICMPTimeoutDuration returns the configured or default ICMP mapping timeout.
func (n NATConfig) ICMPTimeoutDuration() time.Duration {
	return durationOr(n.ICMPTimeout, DefaultICMPTimeout)
}

// TCPEstablishedTimeoutDuration returns the configured or default established-TCP timeout.
func (n NATConfig) TCPEstablishedTimeoutDuration() time.Duration {
	return durationOr(n.TCPEstablishedTimeout, DefaultTCPEstablishTimeout)
}

// TCPTransitoryTimeoutDuration returns the configured or default transitory-TCP timeout.
func (n NATConfig) TCPTransitoryTimeoutDuration() time.Duration {
	return durationOr(n.TCPTransitoryTimeout, DefaultTCPTransitoryTimeout)
}

// ARPCacheTimeoutDuration returns the configured or default ARP cache entry timeout.
func (n NATConfig) ARPCacheTimeoutDuration() time.Duration {
	return durationOr(n.ARPCacheTimeout, DefaultARPCacheTimeout)
}
