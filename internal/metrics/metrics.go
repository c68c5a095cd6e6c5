// Package metrics defines all Prometheus metrics for athena-router.
// All metrics use the "athena_router_" prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "athena_router"

// --- Frame pipeline metrics ---

var (
	// FramesReceived counts inbound frames by receiving interface and ethertype.
	FramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_received_total",
		Help:      "Total frames received, by interface and ethertype.",
	}, []string{"interface", "ethertype"})

	// FramesSent counts outbound frames by transmitting interface.
	FramesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_sent_total",
		Help:      "Total frames transmitted, by interface.",
	}, []string{"interface"})

	// FramesDropped counts frames dropped during processing, by reason.
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_dropped_total",
		Help:      "Total frames dropped, by reason.",
	}, []string{"reason"})

	// ICMPErrorsSent counts synthesized ICMP error replies by type/code.
	ICMPErrorsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "icmp_errors_sent_total",
		Help:      "Total ICMP error replies sent, by type and code.",
	}, []string{"type", "code"})

	// FrameProcessingDuration tracks handle_frame latency.
	FrameProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "frame_processing_duration_seconds",
		Help:      "Frame processing duration in seconds.",
		Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}, []string{"ethertype"})
)

// --- ARP subsystem metrics ---

var (
	// ARPCacheEntries is a gauge of valid entries currently in the ARP cache.
	ARPCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "arp_cache_entries",
		Help:      "Number of valid entries in the ARP cache.",
	})

	// ARPPendingRequests is a gauge of outstanding ARP requests in the queue.
	ARPPendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "arp_pending_requests",
		Help:      "Number of outstanding ARP requests in the queue.",
	})

	// ARPRequestsSent counts ARP request (re)transmissions.
	ARPRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "arp_requests_sent_total",
		Help:      "Total ARP request packets transmitted, initial requests and sweeper retransmissions.",
	})

	// ARPRequestsAbandoned counts requests abandoned after MAX_ARP_RETRIES.
	ARPRequestsAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "arp_requests_abandoned_total",
		Help:      "Total ARP requests abandoned after exceeding the retry limit.",
	})

	// ARPSweepDuration tracks the ARP sweeper pass latency.
	ARPSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "arp_sweep_duration_seconds",
		Help:      "Duration of each ARP cache sweep pass, in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
)

// --- NAT subsystem metrics ---

var (
	// NATMappings is a gauge of active NAT mappings, by type.
	NATMappings = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "nat_mappings",
		Help:      "Number of active NAT mappings, by type.",
	}, []string{"type"})

	// NATConnections is a gauge of active TCP connection records tracked by NAT.
	NATConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "nat_tcp_connections",
		Help:      "Number of TCP connection records tracked across all NAT mappings.",
	})

	// NATMappingsExpired counts mappings removed by the sweeper, by type.
	NATMappingsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "nat_mappings_expired_total",
		Help:      "Total NAT mappings expired by the sweeper, by type.",
	}, []string{"type"})

	// NATSweepDuration tracks the NAT sweeper pass latency.
	NATSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "nat_sweep_duration_seconds",
		Help:      "Duration of each NAT sweep pass, in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
)

// --- Server metrics ---

var (
	// ServerStartTime records the process start time.
	ServerStartTime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "server_start_time_seconds",
		Help:      "Unix timestamp of the last router start.",
	})

	// ServerInfo carries build/config metadata as labels.
	ServerInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "server_info",
		Help:      "Static router metadata, value always 1.",
	}, []string{"nat_enabled"})
)
