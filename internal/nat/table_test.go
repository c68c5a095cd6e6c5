package nat

import (
	"net"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		ExternalIP:            net.ParseIP("172.64.3.1").To4(),
		ICMPTimeout:           60 * time.Second,
		TCPEstablishedTimeout: 7440 * time.Second,
		TCPTransitoryTimeout:  300 * time.Second,
	}
}

func TestInsertMappingAllocatesPortInRange(t *testing.T) {
	nt := New(testConfig())
	internalIP := net.ParseIP("10.0.1.11").To4()

	m, ok := nt.InsertMapping(internalIP, 0x1234, ICMP, net.ParseIP("8.8.8.8"), 0, Flags{})
	if !ok {
		t.Fatal("InsertMapping failed")
	}
	if m.ExternalAux < 1024 {
		t.Errorf("ExternalAux = %d, want >= 1024", m.ExternalAux)
	}
	if !m.ExternalIP.Equal(net.ParseIP("172.64.3.1")) {
		t.Errorf("ExternalIP = %v, want 172.64.3.1", m.ExternalIP)
	}
	if len(m.Conns) != 0 {
		t.Errorf("ICMP mapping has %d conns, want 0", len(m.Conns))
	}
}

func TestInsertMappingPicksDistinctPorts(t *testing.T) {
	nt := New(testConfig())
	internalIP := net.ParseIP("10.0.1.11").To4()

	m1, _ := nt.InsertMapping(internalIP, 1, ICMP, net.ParseIP("8.8.8.8"), 0, Flags{})
	m2, _ := nt.InsertMapping(internalIP, 2, ICMP, net.ParseIP("8.8.4.4"), 0, Flags{})

	if m1.ExternalAux == m2.ExternalAux {
		t.Fatalf("both mappings got port %d, want distinct ports", m1.ExternalAux)
	}
}

func TestLookupInternalAndExternalRoundTrip(t *testing.T) {
	nt := New(testConfig())
	internalIP := net.ParseIP("10.0.1.11").To4()
	peerIP := net.ParseIP("8.8.8.8").To4()

	inserted, _ := nt.InsertMapping(internalIP, 0x1234, ICMP, peerIP, 0, Flags{})

	got, ok := nt.LookupInternal(internalIP, 0x1234, ICMP, peerIP, 0, Flags{})
	if !ok {
		t.Fatal("LookupInternal miss after insert")
	}
	if got.ExternalAux != inserted.ExternalAux {
		t.Errorf("ExternalAux = %d, want %d", got.ExternalAux, inserted.ExternalAux)
	}

	got2, ok := nt.LookupExternal(inserted.ExternalAux, ICMP, peerIP, 0, Flags{})
	if !ok {
		t.Fatal("LookupExternal miss after insert")
	}
	if !got2.InternalIP.Equal(internalIP) {
		t.Errorf("InternalIP = %v, want %v", got2.InternalIP, internalIP)
	}
}

func TestLookupReturnsDetachedCopy(t *testing.T) {
	nt := New(testConfig())
	internalIP := net.ParseIP("10.0.1.11").To4()
	peerIP := net.ParseIP("8.8.8.8").To4()
	inserted, _ := nt.InsertMapping(internalIP, 0x1234, ICMP, peerIP, 0, Flags{})

	inserted.ExternalAux = 1 // mutate the caller's copy

	got, ok := nt.LookupInternal(internalIP, 0x1234, ICMP, peerIP, 0, Flags{})
	if !ok {
		t.Fatal("unexpected lookup miss")
	}
	if got.ExternalAux == 1 {
		t.Fatal("mutating a returned copy affected the table's internal state")
	}
}

func TestTCPThreeWayHandshakeAdvancesState(t *testing.T) {
	nt := New(testConfig())
	internalIP := net.ParseIP("10.0.1.11").To4()
	peerIP := net.ParseIP("8.8.8.8").To4()
	peerPort := uint16(80)

	m, ok := nt.InsertMapping(internalIP, 5000, TCP, peerIP, peerPort, Flags{SYN: true})
	if !ok {
		t.Fatal("InsertMapping failed")
	}
	if m.Conns[0].State != StateSynSent {
		t.Fatalf("state after SYN = %v, want SYN_SENT", m.Conns[0].State)
	}

	// SYN+ACK (1,1,0) from the external side is not a row in the table —
	// the connection's state is left at SYN_SENT.
	got, ok := nt.LookupExternal(m.ExternalAux, TCP, peerIP, peerPort, Flags{ACK: true, SYN: true})
	if !ok {
		t.Fatal("LookupExternal miss")
	}
	if got.Conns[0].State != StateSynSent {
		t.Fatalf("state after external SYN+ACK = %v, want SYN_SENT unchanged (row 1,1,0 not in table)", got.Conns[0].State)
	}

	got, ok = nt.LookupInternal(internalIP, 5000, TCP, peerIP, peerPort, Flags{ACK: true})
	if !ok {
		t.Fatal("LookupInternal miss")
	}
	if got.Conns[0].State != StateEstablished {
		t.Fatalf("state after internal ACK = %v, want ESTABLISHED", got.Conns[0].State)
	}
}

func TestConnAdvanceIdempotentOnUnknownTransition(t *testing.T) {
	c := &Conn{State: StateListen}
	before := c.State

	c.advance(Internal, Flags{ACK: true, SYN: true, FIN: true}, time.Now())

	if c.State != before {
		t.Errorf("unknown (A,S,F)=(1,1,1) transition changed state from %v to %v", before, c.State)
	}
}

func TestNextStateTableDriven(t *testing.T) {
	cases := []struct {
		name    string
		dir     Direction
		flags   Flags
		current ConnState
		want    ConnState
	}{
		{"internal SYN from any", Internal, Flags{SYN: true}, StateEstablished, StateSynSent},
		{"external SYN from any", External, Flags{SYN: true}, StateListen, StateSynReceived},
		{"internal ACK in SYN_SENT", Internal, Flags{ACK: true}, StateSynSent, StateEstablished},
		{"external ACK in SYN_RECEIVED", External, Flags{ACK: true}, StateSynReceived, StateEstablished},
		{"internal FIN in ESTABLISHED", Internal, Flags{FIN: true}, StateEstablished, StateFinWait1},
		{"external FIN in ESTABLISHED", External, Flags{FIN: true}, StateEstablished, StateCloseWait},
		{"internal FIN in CLOSE_WAIT", Internal, Flags{FIN: true}, StateCloseWait, StateLastAck},
		{"internal ACK in FIN_WAIT_1", Internal, Flags{ACK: true}, StateFinWait1, StateClosing},
		{"external ACK+FIN in FIN_WAIT_1", External, Flags{ACK: true, FIN: true}, StateFinWait1, StateFinWait2},
		{"external FIN in FIN_WAIT_1", External, Flags{FIN: true}, StateFinWait1, StateClosing},
		{"external FIN in FIN_WAIT_2", External, Flags{FIN: true}, StateFinWait2, StateTimeWait},
		{"external ACK in CLOSING", External, Flags{ACK: true}, StateClosing, StateTimeWait},
		{"external ACK in LAST_ACK", External, Flags{ACK: true}, StateLastAck, StateClosed},
		{"unrelated combination is a no-op", External, Flags{ACK: true, SYN: true}, StateEstablished, StateEstablished},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextState(tc.dir, tc.flags, tc.current)
			if got != tc.want {
				t.Errorf("nextState(%v, %+v, %v) = %v, want %v", tc.dir, tc.flags, tc.current, got, tc.want)
			}
		})
	}
}

func TestSnapshotReturnsDetachedCopyOfAllMappings(t *testing.T) {
	nt := New(testConfig())
	internalIP := net.ParseIP("10.0.1.11").To4()

	if snap := nt.Snapshot(); len(snap) != 0 {
		t.Fatalf("Snapshot of empty table = %d mappings, want 0", len(snap))
	}

	m1, _ := nt.InsertMapping(internalIP, 1, ICMP, net.ParseIP("8.8.8.8"), 0, Flags{})
	nt.InsertMapping(internalIP, 5000, TCP, net.ParseIP("8.8.4.4"), 80, Flags{SYN: true})

	snap := nt.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot = %d mappings, want 2", len(snap))
	}

	for _, m := range snap {
		if m.InternalAux == 1 {
			m.ExternalAux = 1 // mutate the caller's copy
		}
	}
	got, ok := nt.LookupInternal(internalIP, 1, ICMP, net.ParseIP("8.8.8.8"), 0, Flags{})
	if !ok {
		t.Fatal("unexpected lookup miss")
	}
	if got.ExternalAux != m1.ExternalAux {
		t.Fatal("mutating a snapshot entry affected the table's internal state")
	}
}

func TestSweeperExpiresIdleICMPMapping(t *testing.T) {
	cfg := testConfig()
	cfg.ICMPTimeout = 10 * time.Millisecond
	nt := New(cfg)
	sweeper := NewSweeper(nt)

	internalIP := net.ParseIP("10.0.1.11").To4()
	m, _ := nt.InsertMapping(internalIP, 1, ICMP, net.ParseIP("8.8.8.8"), 0, Flags{})

	time.Sleep(20 * time.Millisecond)
	sweeper.sweep()

	if _, ok := nt.LookupExternal(m.ExternalAux, ICMP, net.ParseIP("8.8.8.8"), 0, Flags{}); ok {
		t.Fatal("expected mapping to be expired by sweeper")
	}
}

func TestSweeperFreesPortForReuseAfterExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.ICMPTimeout = 10 * time.Millisecond
	nt := New(cfg)
	sweeper := NewSweeper(nt)

	internalIP := net.ParseIP("10.0.1.11").To4()
	for i := 0; i < 3; i++ {
		nt.InsertMapping(internalIP, uint16(i+1), ICMP, net.ParseIP("8.8.8.8"), 0, Flags{})
	}

	time.Sleep(20 * time.Millisecond)
	sweeper.sweep()

	m, ok := nt.InsertMapping(internalIP, 99, ICMP, net.ParseIP("8.8.8.8"), 0, Flags{})
	if !ok {
		t.Fatal("InsertMapping failed after sweep")
	}
	if m.ExternalAux != 1024 {
		t.Errorf("ExternalAux after port reclaim = %d, want 1024 (first port, now free)", m.ExternalAux)
	}
}

func TestSweeperRetainsEstablishedConnUnderTransitoryTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.TCPTransitoryTimeout = 10 * time.Millisecond
	cfg.TCPEstablishedTimeout = time.Hour
	nt := New(cfg)
	sweeper := NewSweeper(nt)

	internalIP := net.ParseIP("10.0.1.11").To4()
	peerIP := net.ParseIP("8.8.8.8").To4()
	m, _ := nt.InsertMapping(internalIP, 5000, TCP, peerIP, 80, Flags{SYN: true})
	nt.LookupExternal(m.ExternalAux, TCP, peerIP, 80, Flags{ACK: true, SYN: true})
	nt.LookupInternal(internalIP, 5000, TCP, peerIP, 80, Flags{ACK: true})

	time.Sleep(20 * time.Millisecond)
	sweeper.sweep()

	got, ok := nt.LookupExternal(m.ExternalAux, TCP, peerIP, 80, Flags{})
	if !ok {
		t.Fatal("expected ESTABLISHED connection to survive past the transitory timeout")
	}
	if got.Conns[0].State != StateEstablished {
		t.Fatalf("state = %v, want ESTABLISHED", got.Conns[0].State)
	}
}
