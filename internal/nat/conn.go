// Package nat implements the router's endpoint-independent NAT table:
// IP+port rewriting for ICMP echo and TCP between a designated inside
// and outside interface, with per-flow TCP connection tracking.
package nat

import (
	"net"
	"time"
)

// MappingType distinguishes ICMP echo mappings (keyed by identifier)
// from TCP mappings (keyed by port).
type MappingType int

const (
	ICMP MappingType = iota
	TCP
)

func (t MappingType) String() string {
	if t == TCP {
		return "tcp"
	}
	return "icmp"
}

// ConnState is a NAT-tracked TCP connection's position in the state
// machine described in the router's NAT design (§4.3 of its component
// design, not the C reference implementation's mistaken state table).
type ConnState int

const (
	StateListen ConnState = iota
	StateSynSent
	StateSynReceived
	StateEstablished
	StateFinWait1
	StateFinWait2
	StateCloseWait
	StateClosing
	StateLastAck
	StateTimeWait
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateListen:
		return "LISTEN"
	case StateSynSent:
		return "SYN_SENT"
	case StateSynReceived:
		return "SYN_RECEIVED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait1:
		return "FIN_WAIT_1"
	case StateFinWait2:
		return "FIN_WAIT_2"
	case StateCloseWait:
		return "CLOSE_WAIT"
	case StateClosing:
		return "CLOSING"
	case StateLastAck:
		return "LAST_ACK"
	case StateTimeWait:
		return "TIME_WAIT"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Direction distinguishes which side of the mapping observed a packet,
// since the TCP state machine tracks each endpoint's view separately.
type Direction int

const (
	Internal Direction = iota
	External
)

// Flags is the (ACK, SYN, FIN) triple that drives TCP state transitions.
type Flags struct {
	ACK bool
	SYN bool
	FIN bool
}

// Conn is one TCP peer's connection record within a Mapping.
type Conn struct {
	PeerIP      net.IP
	PeerPort    uint16
	State       ConnState
	LastUpdated time.Time
}

// advance applies the TCP state transition table for one observed
// packet, stamping LastUpdated regardless of whether the state changed.
// Unrecognized (dir, flags, state) combinations leave State unchanged —
// the idempotence property the NAT table is required to uphold.
func (c *Conn) advance(dir Direction, f Flags, now time.Time) {
	c.State = nextState(dir, f, c.State)
	c.LastUpdated = now
}

// nextState is the authoritative TCP state transition table. Every row
// not listed here is a no-op: the state is left unchanged.
func nextState(dir Direction, f Flags, current ConnState) ConnState {
	switch {
	case dir == Internal && !f.ACK && f.SYN && !f.FIN:
		return StateSynSent
	case dir == External && !f.ACK && f.SYN && !f.FIN:
		return StateSynReceived
	case dir == Internal && f.ACK && !f.SYN && !f.FIN && current == StateSynSent:
		return StateEstablished
	case dir == External && f.ACK && !f.SYN && !f.FIN && current == StateSynReceived:
		return StateEstablished
	case dir == Internal && !f.ACK && !f.SYN && f.FIN && current == StateEstablished:
		return StateFinWait1
	case dir == External && !f.ACK && !f.SYN && f.FIN && current == StateEstablished:
		return StateCloseWait
	case dir == Internal && !f.ACK && !f.SYN && f.FIN && current == StateCloseWait:
		return StateLastAck
	case dir == Internal && f.ACK && !f.SYN && !f.FIN && current == StateFinWait1:
		return StateClosing
	case dir == External && f.ACK && !f.SYN && f.FIN && current == StateFinWait1:
		return StateFinWait2
	case dir == External && !f.ACK && !f.SYN && f.FIN && current == StateFinWait1:
		return StateClosing
	case dir == External && !f.ACK && !f.SYN && f.FIN && current == StateFinWait2:
		return StateTimeWait
	case dir == External && f.ACK && !f.SYN && !f.FIN && current == StateClosing:
		return StateTimeWait
	case dir == External && f.ACK && !f.SYN && !f.FIN && current == StateLastAck:
		return StateClosed
	default:
		return current
	}
}
