package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistered(t *testing.T) {
	// promauto registers automatically, so we just write a value to a
	// representative metric from each group and read two gauges back.

	FramesReceived.WithLabelValues("eth0", "0x0800").Inc()
	FramesSent.WithLabelValues("eth1").Inc()
	FramesDropped.WithLabelValues("no_route").Inc()
	ICMPErrorsSent.WithLabelValues("3", "1").Inc()

	ARPCacheEntries.Set(7)
	ARPPendingRequests.Set(2)
	ARPRequestsSent.Inc()
	ARPRequestsAbandoned.Inc()

	NATMappings.WithLabelValues("tcp").Set(3)
	NATConnections.Set(5)
	NATMappingsExpired.WithLabelValues("icmp").Inc()

	ServerStartTime.SetToCurrentTime()
	ServerInfo.WithLabelValues("true").Set(1)

	if got := testutil.ToFloat64(ARPCacheEntries); got != 7 {
		t.Errorf("ARPCacheEntries = %v, want 7", got)
	}
	if got := testutil.ToFloat64(NATConnections); got != 5 {
		t.Errorf("NATConnections = %v, want 5", got)
	}
}

func TestMetricsNamespace(t *testing.T) {
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	for _, mf := range mfs {
		name := mf.GetName()
		if strings.HasPrefix(name, "go_") ||
			strings.HasPrefix(name, "process_") ||
			strings.HasPrefix(name, "promhttp_") {
			continue
		}
		if !strings.HasPrefix(name, "athena_router_") {
			t.Errorf("metric %q does not have athena_router_ prefix", name)
		}
	}
}
