package wire

import "encoding/binary"

// TCPHeaderMinLen is the minimum (no-options) TCP header length. The
// router only inspects fixed fields for NAT state tracking; options are
// treated as opaque trailing bytes before the segment payload.
const TCPHeaderMinLen = 20

// TCPFrame is a zero-copy view over a raw TCP segment (the IPv4 payload
// when Protocol() == ProtocolTCP).
type TCPFrame struct {
	Raw []byte
}

// ParseTCP validates that b is at least long enough to hold the fixed
// TCP header and wraps it without copying.
func ParseTCP(b []byte) (TCPFrame, error) {
	if len(b) < TCPHeaderMinLen {
		return TCPFrame{}, ErrMalformed
	}
	return TCPFrame{Raw: b}, nil
}

func (f TCPFrame) SrcPort() uint16 { return binary.BigEndian.Uint16(f.Raw[0:2]) }
func (f TCPFrame) DstPort() uint16 { return binary.BigEndian.Uint16(f.Raw[2:4]) }

func (f TCPFrame) SetSrcPort(p uint16) { binary.BigEndian.PutUint16(f.Raw[0:2], p) }
func (f TCPFrame) SetDstPort(p uint16) { binary.BigEndian.PutUint16(f.Raw[2:4], p) }

func (f TCPFrame) SeqNum() uint32 { return binary.BigEndian.Uint32(f.Raw[4:8]) }
func (f TCPFrame) AckNum() uint32 { return binary.BigEndian.Uint32(f.Raw[8:12]) }

// DataOffset returns the header length in bytes (the 4-bit data-offset
// field times 4), which may exceed TCPHeaderMinLen when options are
// present.
func (f TCPFrame) DataOffset() int { return int(f.Raw[12]>>4) * 4 }

// Flags returns the whole flags byte; FIN/SYN/RST/PSH/ACK/URG are its
// low 6 bits.
func (f TCPFrame) Flags() byte { return f.Raw[13] }

func (f TCPFrame) HasFlag(flag byte) bool { return f.Flags()&flag != 0 }

func (f TCPFrame) Checksum() uint16     { return binary.BigEndian.Uint16(f.Raw[16:18]) }
func (f TCPFrame) SetChecksum(c uint16) { binary.BigEndian.PutUint16(f.Raw[16:18], c) }

// RecomputeChecksum zeroes the checksum field, recomputes it over the
// full segment using the IPv4 pseudo-header formed from srcIP/dstIP, and
// writes the result back. Required after rewriting a port in a NAT'd
// segment.
func (f TCPFrame) RecomputeChecksum(srcIP, dstIP [4]byte) {
	f.SetChecksum(0)
	f.SetChecksum(TCPChecksum(srcIP, dstIP, f.Raw))
}
