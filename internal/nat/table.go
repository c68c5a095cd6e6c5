package nat

import (
	"net"
	"sync"
	"time"
)

// Config supplies the NAT table's tunables, matching the init-time
// configuration the router accepts.
type Config struct {
	ExternalIP            net.IP
	ICMPTimeout           time.Duration
	TCPEstablishedTimeout time.Duration
	TCPTransitoryTimeout  time.Duration
}

// Table is the router's NAT mapping set: two indexes over the same
// mappings (by internal key and by external port), serialized by a
// single mutex.
type Table struct {
	mu sync.Mutex

	mappings    []*Mapping
	byInternal  map[internalKey]*Mapping
	byExternal  map[externalKey]*Mapping
	usedPorts   map[uint16]bool
	externalIP  net.IP

	icmpTimeout           time.Duration
	tcpEstablishedTimeout time.Duration
	tcpTransitoryTimeout  time.Duration
}

// New builds an empty NAT table.
func New(cfg Config) *Table {
	return &Table{
		byInternal:            make(map[internalKey]*Mapping),
		byExternal:            make(map[externalKey]*Mapping),
		usedPorts:             make(map[uint16]bool),
		externalIP:            cfg.ExternalIP,
		icmpTimeout:           cfg.ICMPTimeout,
		tcpEstablishedTimeout: cfg.TCPEstablishedTimeout,
		tcpTransitoryTimeout:  cfg.TCPTransitoryTimeout,
	}
}

// LookupInternal finds the mapping for (internalIP, internalAux, kind).
// For TCP, it also advances the peer's connection state machine,
// creating the connection record (in LISTEN, immediately advanced by
// flags) if this peer hasn't been seen on this mapping before. Returns
// a detached copy.
func (t *Table) LookupInternal(internalIP net.IP, internalAux uint16, kind MappingType, peerIP net.IP, peerPort uint16, flags Flags) (*Mapping, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.byInternal[makeInternalKey(internalIP, internalAux, kind)]
	if !ok {
		return nil, false
	}

	if kind == TCP {
		t.observeLocked(m, Internal, peerIP, peerPort, flags)
	}

	return m.clone(), true
}

// LookupExternal is the reply-direction symmetric operation: finds the
// mapping for (externalAux, kind) and, for TCP, advances the peer's
// connection from the external side.
func (t *Table) LookupExternal(externalAux uint16, kind MappingType, peerIP net.IP, peerPort uint16, flags Flags) (*Mapping, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.byExternal[makeExternalKey(externalAux, kind)]
	if !ok {
		return nil, false
	}

	if kind == TCP {
		t.observeLocked(m, External, peerIP, peerPort, flags)
	}

	return m.clone(), true
}

// InsertMapping creates a fresh mapping for (internalIP, internalAux,
// kind), allocating the first unused external port in [1024, 65535].
// For TCP, an initial connection in LISTEN is created for
// (peerIP, peerPort) and immediately advanced by flags. Returns a
// detached copy, or false if the port space is exhausted.
func (t *Table) InsertMapping(internalIP net.IP, internalAux uint16, kind MappingType, peerIP net.IP, peerPort uint16, flags Flags) (*Mapping, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	port, ok := t.allocatePortLocked()
	if !ok {
		return nil, false
	}

	now := time.Now()
	m := &Mapping{
		Type:        kind,
		InternalIP:  cloneIP(internalIP),
		ExternalIP:  cloneIP(t.externalIP),
		InternalAux: internalAux,
		ExternalAux: port,
		LastUpdated: now,
	}

	if kind == TCP {
		conn := &Conn{PeerIP: cloneIP(peerIP), PeerPort: peerPort, State: StateListen, LastUpdated: now}
		conn.advance(Internal, flags, now)
		m.Conns = append(m.Conns, conn)
	}

	t.mappings = append(t.mappings, m)
	t.byInternal[makeInternalKey(internalIP, internalAux, kind)] = m
	t.byExternal[makeExternalKey(port, kind)] = m
	t.usedPorts[port] = true

	return m.clone(), true
}

// observeLocked finds or creates the (peerIP, peerPort) connection on m
// and advances it from dir, stamping m.LastUpdated too.
func (t *Table) observeLocked(m *Mapping, dir Direction, peerIP net.IP, peerPort uint16, flags Flags) {
	now := time.Now()
	m.LastUpdated = now

	conn := m.findConn(peerIP, peerPort)
	if conn == nil {
		conn = &Conn{PeerIP: cloneIP(peerIP), PeerPort: peerPort, State: StateListen, LastUpdated: now}
		m.Conns = append(m.Conns, conn)
	}
	conn.advance(dir, flags, now)
}

// allocatePortLocked enumerates [1024, 65535] linearly and returns the
// first port not already in use by any mapping of any type.
func (t *Table) allocatePortLocked() (uint16, bool) {
	for port := 1024; port <= 65535; port++ {
		p := uint16(port)
		if !t.usedPorts[p] {
			return p, true
		}
	}
	return 0, false
}

// Snapshot returns a detached copy of every active mapping, for test
// assertions and metrics gauges that need to inspect table contents
// without holding its lock.
func (t *Table) Snapshot() []*Mapping {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Mapping, len(t.mappings))
	for i, m := range t.mappings {
		out[i] = m.clone()
	}
	return out
}

// MappingCount returns the number of active mappings, for metrics.
func (t *Table) MappingCount(kind MappingType) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, m := range t.mappings {
		if m.Type == kind {
			n++
		}
	}
	return n
}

// ConnCount returns the total number of tracked TCP connections across
// all mappings, for metrics.
func (t *Table) ConnCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, m := range t.mappings {
		n += len(m.Conns)
	}
	return n
}
