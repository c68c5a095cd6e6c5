package nat

import (
	"context"
	"time"

	"github.com/athena-dhcpd/athena-router/internal/metrics"
)

// Sweeper drives the NAT table's once-per-second expiry pass. Unlike the
// C reference implementation's sentinel-node sweeper — which mutates the
// mapping list through a synthetic head node in a way that can free
// unrelated entries — this rebuilds the surviving mapping set directly
// from a single filtering pass under the table lock.
type Sweeper struct {
	table *Table
}

// NewSweeper binds a Sweeper to table.
func NewSweeper(table *Table) *Sweeper {
	return &Sweeper{table: table}
}

// Start launches the sweeper's once-per-second loop in a goroutine. The
// loop exits when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go s.loop(ctx)
}

func (s *Sweeper) loop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	start := time.Now()
	defer func() {
		metrics.NATSweepDuration.Observe(time.Since(start).Seconds())
	}()

	t := s.table
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	survivors := t.mappings[:0:0]

	for _, m := range t.mappings {
		if m.Type == ICMP {
			if now.Sub(m.LastUpdated) >= t.icmpTimeout {
				t.removeMappingLocked(m)
				metrics.NATMappingsExpired.WithLabelValues("icmp").Inc()
				continue
			}
			survivors = append(survivors, m)
			continue
		}

		m.Conns = filterConns(m.Conns, func(c *Conn) bool {
			timeout := t.tcpTransitoryTimeout
			if c.State == StateEstablished {
				timeout = t.tcpEstablishedTimeout
			}
			return now.Sub(c.LastUpdated) < timeout
		})

		if len(m.Conns) == 0 {
			t.removeMappingLocked(m)
			metrics.NATMappingsExpired.WithLabelValues("tcp").Inc()
			continue
		}
		survivors = append(survivors, m)
	}

	t.mappings = survivors

	metrics.NATMappings.WithLabelValues("icmp").Set(float64(countByType(t.mappings, ICMP)))
	metrics.NATMappings.WithLabelValues("tcp").Set(float64(countByType(t.mappings, TCP)))
	metrics.NATConnections.Set(float64(totalConns(t.mappings)))
}

// removeMappingLocked deletes m's index entries and frees its external
// port for reallocation. The caller has already excluded m from the
// rebuilt t.mappings slice.
func (t *Table) removeMappingLocked(m *Mapping) {
	delete(t.byInternal, makeInternalKey(m.InternalIP, m.InternalAux, m.Type))
	delete(t.byExternal, makeExternalKey(m.ExternalAux, m.Type))
	delete(t.usedPorts, m.ExternalAux)
}

func filterConns(conns []*Conn, keep func(*Conn) bool) []*Conn {
	out := conns[:0:0]
	for _, c := range conns {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func countByType(mappings []*Mapping, kind MappingType) int {
	n := 0
	for _, m := range mappings {
		if m.Type == kind {
			n++
		}
	}
	return n
}

func totalConns(mappings []*Mapping) int {
	n := 0
	for _, m := range mappings {
		n += len(m.Conns)
	}
	return n
}
