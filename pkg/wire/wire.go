package wire

import "errors"

// EtherType values carried in the Ethernet header's type field.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
)

// IPv4 protocol numbers relevant to the router.
const (
	ProtocolICMP byte = 1
	ProtocolTCP  byte = 6
	ProtocolUDP  byte = 17
)

// ARP hardware/protocol constants for Ethernet/IPv4 ARP.
const (
	ARPHardwareEthernet uint16 = 1
	ARPProtocolIPv4      uint16 = 0x0800
	ARPHardwareLen       byte   = 6
	ARPProtocolLen       byte   = 4

	ARPOpRequest uint16 = 1
	ARPOpReply   uint16 = 2
)

// ICMP types and codes the router generates or inspects.
const (
	ICMPTypeEchoReply   byte = 0
	ICMPTypeDestUnreach byte = 3
	ICMPTypeEchoRequest byte = 8
	ICMPTypeTimeExceeded byte = 11

	ICMPCodeEchoReply = 0

	ICMPCodeNetUnreachable  byte = 0
	ICMPCodeHostUnreachable byte = 1
	ICMPCodePortUnreachable byte = 3

	ICMPCodeTTLExceededInTransit byte = 0
)

// TCP control flags (RFC 793 §3.1), as they sit in the low 6 bits of the
// flags byte.
const (
	TCPFlagFIN byte = 1 << 0
	TCPFlagSYN byte = 1 << 1
	TCPFlagRST byte = 1 << 2
	TCPFlagPSH byte = 1 << 3
	TCPFlagACK byte = 1 << 4
	TCPFlagURG byte = 1 << 5
)

// ErrMalformed is returned by the Parse* functions when a byte slice is
// too short, or carries a field combination the router does not accept
// (e.g. an ARP header with an unexpected hardware/protocol length).
var ErrMalformed = errors.New("wire: malformed frame")
