package config

import "time"

// Default configuration values, matching the constants named in the
// router's external-interfaces contract.
const (
	DefaultLogLevel             = "info"
	DefaultMetricsAddr          = "0.0.0.0:9100"
	DefaultInsideInterface      = "eth1"
	DefaultOutsideInterface     = "eth2"
	DefaultARPCacheSize         = 100
	DefaultARPCacheTimeout      = 15 * time.Second
	DefaultARPMaxRetries        = 5
	DefaultICMPTimeout          = 60 * time.Second
	DefaultTCPEstablishTimeout  = 7440 * time.Second
	DefaultTCPTransitoryTimeout = 300 * time.Second
)
