package arpcache

import (
	"context"
	"log/slog"
	"time"

	"github.com/athena-dhcpd/athena-router/internal/metrics"
	"github.com/athena-dhcpd/athena-router/internal/netif"
	"github.com/athena-dhcpd/athena-router/pkg/wire"
)

// FrameSender is the cache's outbound dependency: retransmitting ARP
// requests and sending ICMP host-unreachable errors on give-up.
type FrameSender interface {
	SendFrame(iface string, frame []byte) error
}

// Sweeper drives the cache's once-per-second maintenance pass: expiring
// stale entries and retrying or abandoning outstanding requests.
type Sweeper struct {
	cache      *Cache
	interfaces *netif.Set
	transport  FrameSender
	logger     *slog.Logger
}

// NewSweeper binds a Sweeper to cache, using interfaces to resolve the
// MAC/IP of the interface a retransmission or error goes out on.
func NewSweeper(cache *Cache, interfaces *netif.Set, transport FrameSender, logger *slog.Logger) *Sweeper {
	return &Sweeper{cache: cache, interfaces: interfaces, transport: transport, logger: logger}
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

// sweep performs one pass: invalidate expired entries, then retry or
// abandon each outstanding request.
func (s *Sweeper) sweep() {
	start := time.Now()
	defer func() {
		metrics.ARPSweepDuration.Observe(time.Since(start).Seconds())
	}()

	s.cache.mu.Lock()
	now := time.Now()
	for i := range s.cache.entries {
		e := &s.cache.entries[i]
		if e.Valid && now.Sub(e.InsertedAt) > s.cache.timeout {
			e.Valid = false
		}
	}
	pending := make([]*Request, len(s.cache.requests))
	copy(pending, s.cache.requests)
	s.cache.mu.Unlock()

	metrics.ARPCacheEntries.Set(float64(s.cache.EntryCount()))
	metrics.ARPPendingRequests.Set(float64(s.cache.PendingRequestCount()))

	if s.logger != nil && s.logger.Enabled(nil, slog.LevelDebug) {
		s.logger.Debug("arp cache contents", "entries", s.cache.Dump())
	}

	for _, req := range pending {
		s.handleRequest(req)
	}
}

func (s *Sweeper) handleRequest(req *Request) {
	s.cache.mu.Lock()
	// A never-sent request (LastSent is the zero Time) has an effectively
	// infinite age, so it always clears the "sent within the last second"
	// guard and is retransmitted on the first sweep that observes it.
	sinceLast := time.Since(req.LastSent)
	timesSent := req.TimesSent
	s.cache.mu.Unlock()

	if sinceLast < time.Second {
		return
	}

	if timesSent >= s.cache.maxRetries {
		s.giveUp(req)
		return
	}

	s.retransmit(req)
}

// retransmit broadcasts an ARP request on the interface of the oldest
// pending frame and bumps the request's retry bookkeeping.
func (s *Sweeper) retransmit(req *Request) {
	s.cache.mu.Lock()
	if len(req.Pending) == 0 {
		s.cache.mu.Unlock()
		return
	}
	iface := req.Pending[0].ReceiveIface
	req.LastSent = time.Now()
	req.TimesSent++
	s.cache.mu.Unlock()

	ifc, ok := s.interfaces.Get(iface)
	if !ok {
		return
	}

	frame := wire.BuildARPRequest(ifc.MAC, ifc.IP, req.TargetIP)
	if err := s.transport.SendFrame(iface, frame); err != nil {
		if s.logger != nil {
			s.logger.Warn("arp sweeper: send failed", "interface", iface, "error", err)
		}
		return
	}
	metrics.ARPRequestsSent.Inc()
}

// giveUp emits ICMP host-unreachable to every pending frame's source and
// destroys the request.
func (s *Sweeper) giveUp(req *Request) {
	s.cache.DestroyRequest(req)
	metrics.ARPRequestsAbandoned.Inc()

	for _, pf := range req.Pending {
		s.sendHostUnreachable(pf)
	}
}

func (s *Sweeper) sendHostUnreachable(pf PendingFrame) {
	eth, err := wire.ParseEthernet(pf.Bytes)
	if err != nil {
		return
	}
	ip, err := wire.ParseIPv4(eth.Payload())
	if err != nil {
		return
	}

	if _, local := s.interfaces.OwnerOf(ip.SrcIP()); local {
		return // Suppressed: offender is the router itself
	}

	ifc, ok := s.interfaces.Get(pf.ReceiveIface)
	if !ok {
		return
	}

	frame, err := wire.BuildICMPErrorFrame(pf.Bytes, ifc.MAC, eth.Src(), ifc.IP, ip.SrcIP(),
		wire.ICMPTypeDestUnreach, wire.ICMPCodeHostUnreachable)
	if err != nil {
		return
	}

	if err := s.transport.SendFrame(pf.ReceiveIface, frame); err != nil {
		if s.logger != nil {
			s.logger.Warn("arp sweeper: host-unreachable send failed", "interface", pf.ReceiveIface, "error", err)
		}
		return
	}
	metrics.ICMPErrorsSent.WithLabelValues("3", "1").Inc()
}
