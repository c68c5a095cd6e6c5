package wire

import (
	"encoding/binary"
	"net"
)

// IPv4MinHeaderLen is the minimum (no-options) IPv4 header length.
const IPv4MinHeaderLen = 20

// IPv4Frame is a zero-copy view over a raw IPv4 datagram (the payload
// that follows an Ethernet header carrying EtherTypeIPv4).
type IPv4Frame struct {
	Raw []byte
}

// ParseIPv4 validates that b holds a complete IPv4 header (honoring IHL,
// so options are skipped rather than assumed absent) and wraps it
// without copying. It does not verify the checksum; callers that care
// call VerifyChecksum(f.HeaderBytes()) explicitly.
func ParseIPv4(b []byte) (IPv4Frame, error) {
	if len(b) < IPv4MinHeaderLen {
		return IPv4Frame{}, ErrMalformed
	}
	f := IPv4Frame{Raw: b}
	if f.Version() != 4 {
		return IPv4Frame{}, ErrMalformed
	}
	ihl := f.IHL()
	if ihl < IPv4MinHeaderLen || len(b) < ihl {
		return IPv4Frame{}, ErrMalformed
	}
	return f, nil
}

// Version returns the IP version nibble.
func (f IPv4Frame) Version() byte { return f.Raw[0] >> 4 }

// IHL returns the header length in bytes (the 4-bit IHL field times 4).
func (f IPv4Frame) IHL() int { return int(f.Raw[0]&0x0f) * 4 }

// TotalLen returns the total datagram length field (header + payload).
func (f IPv4Frame) TotalLen() uint16 { return binary.BigEndian.Uint16(f.Raw[2:4]) }

// TTL returns the time-to-live field.
func (f IPv4Frame) TTL() byte { return f.Raw[8] }

// SetTTL overwrites the TTL field in place.
func (f IPv4Frame) SetTTL(ttl byte) { f.Raw[8] = ttl }

// Protocol returns the upper-layer protocol number.
func (f IPv4Frame) Protocol() byte { return f.Raw[9] }

// Checksum returns the header checksum field.
func (f IPv4Frame) Checksum() uint16 { return binary.BigEndian.Uint16(f.Raw[10:12]) }

// SetChecksum overwrites the header checksum field in place.
func (f IPv4Frame) SetChecksum(c uint16) { binary.BigEndian.PutUint16(f.Raw[10:12], c) }

// SrcIP returns the source address.
func (f IPv4Frame) SrcIP() net.IP { return net.IP(f.Raw[12:16]) }

// DstIP returns the destination address.
func (f IPv4Frame) DstIP() net.IP { return net.IP(f.Raw[16:20]) }

// SetSrcIP overwrites the source address in place.
func (f IPv4Frame) SetSrcIP(ip net.IP) { copy(f.Raw[12:16], ip.To4()) }

// SetDstIP overwrites the destination address in place.
func (f IPv4Frame) SetDstIP(ip net.IP) { copy(f.Raw[16:20], ip.To4()) }

// HeaderBytes returns the header region only (length IHL), for checksum
// computation/verification.
func (f IPv4Frame) HeaderBytes() []byte { return f.Raw[:f.IHL()] }

// Payload returns the bytes following the header.
func (f IPv4Frame) Payload() []byte { return f.Raw[f.IHL():] }

// RecomputeChecksum zeroes the checksum field, recomputes it over the
// header, and writes the result back. Per the router's checksum
// contract, this must happen after any in-place header mutation (TTL
// decrement, address rewrite).
func (f IPv4Frame) RecomputeChecksum() {
	f.SetChecksum(0)
	f.SetChecksum(Checksum(f.HeaderBytes()))
}

// BuildIPv4Header allocates a new 20-byte (no options) IPv4 header with
// the given fields. The checksum is left zero; call RecomputeChecksum
// on the result (wrapped with ParseIPv4) once the payload is attached
// and TotalLen is known, or use BuildIPv4Datagram.
func BuildIPv4Header(srcIP, dstIP net.IP, protocol byte, ttl byte, totalLen uint16, id uint16) []byte {
	h := make([]byte, IPv4MinHeaderLen)
	h[0] = 0x45 // version 4, IHL 5 (20 bytes)
	h[1] = 0    // DSCP/ECN
	binary.BigEndian.PutUint16(h[2:4], totalLen)
	binary.BigEndian.PutUint16(h[4:6], id)
	binary.BigEndian.PutUint16(h[6:8], 0) // flags/fragment offset: unfragmented
	h[8] = ttl
	h[9] = protocol
	// checksum at h[10:12] left zero
	copy(h[12:16], srcIP.To4())
	copy(h[16:20], dstIP.To4())
	return h
}

// BuildIPv4Datagram allocates a complete IPv4 datagram (header + payload)
// with the header checksum computed.
func BuildIPv4Datagram(srcIP, dstIP net.IP, protocol byte, ttl byte, id uint16, payload []byte) []byte {
	totalLen := uint16(IPv4MinHeaderLen + len(payload))
	h := BuildIPv4Header(srcIP, dstIP, protocol, ttl, totalLen, id)
	binary.BigEndian.PutUint16(h[10:12], Checksum(h))
	return append(h, payload...)
}
