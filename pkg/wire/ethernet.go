package wire

import (
	"encoding/binary"
	"net"
)

// EthernetHeaderLen is the length in bytes of an Ethernet II header
// (destination MAC, source MAC, EtherType). No 802.1Q tags are handled.
const EthernetHeaderLen = 14

// EthernetFrame is a zero-copy view over a raw Ethernet II frame.
type EthernetFrame struct {
	Raw []byte
}

// ParseEthernet validates that b is at least long enough to hold an
// Ethernet header and wraps it without copying.
func ParseEthernet(b []byte) (EthernetFrame, error) {
	if len(b) < EthernetHeaderLen {
		return EthernetFrame{}, ErrMalformed
	}
	return EthernetFrame{Raw: b}, nil
}

// Dst returns the destination MAC address.
func (f EthernetFrame) Dst() net.HardwareAddr { return net.HardwareAddr(f.Raw[0:6]) }

// Src returns the source MAC address.
func (f EthernetFrame) Src() net.HardwareAddr { return net.HardwareAddr(f.Raw[6:12]) }

// EtherType returns the frame's EtherType field.
func (f EthernetFrame) EtherType() uint16 { return binary.BigEndian.Uint16(f.Raw[12:14]) }

// SetDst overwrites the destination MAC in place.
func (f EthernetFrame) SetDst(mac net.HardwareAddr) { copy(f.Raw[0:6], mac) }

// SetSrc overwrites the source MAC in place.
func (f EthernetFrame) SetSrc(mac net.HardwareAddr) { copy(f.Raw[6:12], mac) }

// SetEtherType overwrites the EtherType field in place.
func (f EthernetFrame) SetEtherType(et uint16) { binary.BigEndian.PutUint16(f.Raw[12:14], et) }

// Payload returns the bytes following the Ethernet header.
func (f EthernetFrame) Payload() []byte { return f.Raw[EthernetHeaderLen:] }

// BuildEthernetHeader allocates a new EthernetHeaderLen-byte header with
// the given addresses and EtherType, ready to be followed by a payload.
func BuildEthernetHeader(dst, src net.HardwareAddr, etherType uint16) []byte {
	h := make([]byte, EthernetHeaderLen)
	copy(h[0:6], dst)
	copy(h[6:12], src)
	binary.BigEndian.PutUint16(h[12:14], etherType)
	return h
}

// BroadcastMAC is the Ethernet broadcast address ff:ff:ff:ff:ff:ff.
var BroadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ZeroMAC is the all-zero hardware address used to populate ARP fields
// that are unknown at request time (e.g. the target hardware address of
// an ARP request).
var ZeroMAC = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
