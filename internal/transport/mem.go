package transport

import (
	"context"
	"fmt"
	"sync"
)

// MemTransport is an in-memory FrameTransport for tests. SendFrame
// appends to a per-interface outbox instead of touching real hardware;
// Inject feeds a frame into Listen's handler as if it had just arrived
// on the named interface.
type MemTransport struct {
	mu      sync.Mutex
	outbox  map[string][][]byte
	handle  FrameHandler
	closed  bool
}

// NewMemTransport returns an empty MemTransport.
func NewMemTransport() *MemTransport {
	return &MemTransport{outbox: make(map[string][][]byte)}
}

// SendFrame records frame under iface's outbox.
func (m *MemTransport) SendFrame(iface string, frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("transport: send on closed MemTransport")
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	m.outbox[iface] = append(m.outbox[iface], cp)
	return nil
}

// Listen installs handle and blocks until ctx is cancelled.
func (m *MemTransport) Listen(ctx context.Context, handle FrameHandler) error {
	m.mu.Lock()
	m.handle = handle
	m.mu.Unlock()

	<-ctx.Done()
	return ctx.Err()
}

// Close marks the transport closed; further SendFrame calls fail.
func (m *MemTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Inject delivers frame to the installed handler as if it arrived on
// iface. It is a test helper and panics if Listen has not yet installed
// a handler.
func (m *MemTransport) Inject(iface string, frame []byte) {
	m.mu.Lock()
	handle := m.handle
	m.mu.Unlock()
	if handle == nil {
		panic("transport: Inject called before Listen installed a handler")
	}
	handle(iface, frame)
}

// Sent returns the frames recorded for iface, in send order.
func (m *MemTransport) Sent(iface string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.outbox[iface]))
	copy(out, m.outbox[iface])
	return out
}

// Reset clears all recorded outbound frames.
func (m *MemTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = make(map[string][][]byte)
}
