package wire

import (
	"encoding/binary"
	"net"
)

// ICMPHeaderLen is the length of the fixed ICMP header (type, code,
// checksum, and the 4-byte field whose meaning depends on type —
// identifier/sequence for echo, unused for destination-unreachable and
// time-exceeded).
const ICMPHeaderLen = 8

// ICMPFrame is a zero-copy view over a raw ICMP message (the IPv4
// payload when Protocol() == ProtocolICMP).
type ICMPFrame struct {
	Raw []byte
}

// ParseICMP validates that b is at least long enough to hold the fixed
// ICMP header and wraps it without copying.
func ParseICMP(b []byte) (ICMPFrame, error) {
	if len(b) < ICMPHeaderLen {
		return ICMPFrame{}, ErrMalformed
	}
	return ICMPFrame{Raw: b}, nil
}

func (f ICMPFrame) Type() byte         { return f.Raw[0] }
func (f ICMPFrame) Code() byte         { return f.Raw[1] }
func (f ICMPFrame) Checksum() uint16   { return binary.BigEndian.Uint16(f.Raw[2:4]) }
func (f ICMPFrame) SetChecksum(c uint16) { binary.BigEndian.PutUint16(f.Raw[2:4], c) }

// Identifier returns the echo identifier field (valid for type 0/8 only).
func (f ICMPFrame) Identifier() uint16 { return binary.BigEndian.Uint16(f.Raw[4:6]) }

// Sequence returns the echo sequence number field (valid for type 0/8 only).
func (f ICMPFrame) Sequence() uint16 { return binary.BigEndian.Uint16(f.Raw[6:8]) }

// SetIdentifier overwrites the echo identifier field in place. NAT
// translation uses this to rewrite an echo message's id between the
// internal and external aux values.
func (f ICMPFrame) SetIdentifier(id uint16) { binary.BigEndian.PutUint16(f.Raw[4:6], id) }

// Payload returns the bytes following the fixed header (the echo data,
// or the embedded IP-header-plus-8-bytes for an error message).
func (f ICMPFrame) Payload() []byte { return f.Raw[ICMPHeaderLen:] }

// RecomputeChecksum zeroes the checksum field, recomputes it over the
// whole ICMP message, and writes the result back.
func (f ICMPFrame) RecomputeChecksum() {
	f.SetChecksum(0)
	f.SetChecksum(Checksum(f.Raw))
}

// BuildICMPEcho allocates a complete ICMP echo request/reply message
// (icmpType must be ICMPTypeEchoRequest or ICMPTypeEchoReply) with the
// checksum computed.
func BuildICMPEcho(icmpType byte, identifier, sequence uint16, data []byte) []byte {
	m := make([]byte, ICMPHeaderLen+len(data))
	m[0] = icmpType
	m[1] = 0
	binary.BigEndian.PutUint16(m[4:6], identifier)
	binary.BigEndian.PutUint16(m[6:8], sequence)
	copy(m[ICMPHeaderLen:], data)
	binary.BigEndian.PutUint16(m[2:4], Checksum(m))
	return m
}

// BuildICMPError allocates a complete ICMP destination-unreachable or
// time-exceeded message carrying origIPHeaderAndPayload — the
// originating IP header plus (at least) its first 8 bytes of payload,
// per RFC 792 — with the checksum computed. The caller truncates
// origIPHeaderAndPayload to header+8 bytes before calling this.
func BuildICMPError(icmpType, code byte, origIPHeaderAndPayload []byte) []byte {
	m := make([]byte, ICMPHeaderLen+len(origIPHeaderAndPayload))
	m[0] = icmpType
	m[1] = code
	// bytes 4:8 (unused for these message types) stay zero
	copy(m[ICMPHeaderLen:], origIPHeaderAndPayload)
	binary.BigEndian.PutUint16(m[2:4], Checksum(m))
	return m
}

// BuildICMPErrorFrame constructs a complete Ethernet+IPv4+ICMP error frame
// in reply to origFrame (a full Ethernet frame carrying the offending
// IPv4 datagram). The caller supplies the transmit addresses explicitly,
// since the IP source/destination selection for an ICMP error depends on
// the error type (see the router pipeline's error-construction rule for
// type 3 code 3). Returns ErrMalformed if origFrame does not carry a
// parseable Ethernet+IPv4 header.
func BuildICMPErrorFrame(origFrame []byte, srcMAC, dstMAC net.HardwareAddr, srcIP, dstIP net.IP, icmpType, icmpCode byte) ([]byte, error) {
	eth, err := ParseEthernet(origFrame)
	if err != nil {
		return nil, err
	}
	if _, err := ParseIPv4(eth.Payload()); err != nil {
		return nil, err
	}

	icmpPayload := ICMPErrorPayload(eth.Payload())
	icmpMsg := BuildICMPError(icmpType, icmpCode, icmpPayload)
	datagram := BuildIPv4Datagram(srcIP, dstIP, ProtocolICMP, 255, 0, icmpMsg)

	ethHdr := BuildEthernetHeader(dstMAC, srcMAC, EtherTypeIPv4)
	return append(ethHdr, datagram...), nil
}

// ICMPErrorPayload truncates an original IPv4 datagram to its header plus
// the first 8 bytes of its payload, the region an ICMP error message must
// echo back per RFC 792.
func ICMPErrorPayload(origDatagram []byte) []byte {
	ip, err := ParseIPv4(origDatagram)
	if err != nil {
		if len(origDatagram) > 28 {
			return origDatagram[:28]
		}
		return origDatagram
	}
	end := ip.IHL() + 8
	if end > len(origDatagram) {
		end = len(origDatagram)
	}
	return origDatagram[:end]
}
