package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// pcapReadTimeout bounds how long ReadPacketData blocks before returning
// pcap.NextErrorTimeoutExpired, keeping readLoop responsive to ctx cancellation.
const pcapReadTimeout = 200 * time.Millisecond

// PcapHandle is the subset of *pcap.Handle the transport depends on,
// injectable for tests that want a real FrameTransport without a real NIC.
type PcapHandle interface {
	WritePacketData(data []byte) error
	ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error)
	Close()
}

// PcapTransport captures and injects raw Ethernet frames on a fixed set
// of named interfaces using libpcap, via gopacket/pcap.
type PcapTransport struct {
	logger  *slog.Logger
	handles map[string]PcapHandle

	mu     sync.Mutex
	closed bool
}

// OpenPcapTransport opens a live capture handle for each of deviceByIface
// (router interface name -> OS device name, e.g. "eth1" -> "veth-eth1")
// in promiscuous mode with a short read timeout so Listen can observe
// context cancellation promptly.
func OpenPcapTransport(deviceByIface map[string]string, logger *slog.Logger) (*PcapTransport, error) {
	handles := make(map[string]PcapHandle, len(deviceByIface))
	for iface, device := range deviceByIface {
		handle, err := pcap.OpenLive(device, 65535, true, pcapReadTimeout)
		if err != nil {
			for _, h := range handles {
				h.Close()
			}
			return nil, fmt.Errorf("opening capture on %s (%s): %w", iface, device, err)
		}
		handles[iface] = handle
	}
	return &PcapTransport{handles: handles, logger: logger}, nil
}

// NewPcapTransportWithHandles builds a PcapTransport from already-open
// handles, for tests that fake PcapHandle without libpcap.
func NewPcapTransportWithHandles(handles map[string]PcapHandle, logger *slog.Logger) *PcapTransport {
	return &PcapTransport{handles: handles, logger: logger}
}

// SendFrame writes frame out the named interface's capture handle.
func (t *PcapTransport) SendFrame(iface string, frame []byte) error {
	handle, ok := t.handles[iface]
	if !ok {
		return fmt.Errorf("transport: unknown interface %q", iface)
	}
	return handle.WritePacketData(frame)
}

// Listen spawns one reader goroutine per interface and fans received
// frames into handle, blocking until ctx is cancelled.
func (t *PcapTransport) Listen(ctx context.Context, handle FrameHandler) error {
	var wg sync.WaitGroup
	for iface, h := range t.handles {
		wg.Add(1)
		go t.readLoop(ctx, &wg, iface, h, handle)
	}
	wg.Wait()
	return ctx.Err()
}

func (t *PcapTransport) readLoop(ctx context.Context, wg *sync.WaitGroup, iface string, h PcapHandle, handle FrameHandler) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, _, err := h.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
		}
		if err != nil {
			if t.logger != nil {
				t.logger.Warn("pcap read error", "interface", iface, "error", err)
			}
			continue
		}

		packet := gopacket.NewPacket(data, layers.LinkTypeEthernet, gopacket.NoCopy)
		if packet.ErrorLayer() != nil {
			continue
		}
		handle(iface, data)
	}
}

// Close closes every capture handle. Safe to call once after Listen returns.
func (t *PcapTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for _, h := range t.handles {
		h.Close()
	}
	return nil
}
