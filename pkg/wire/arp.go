package wire

import (
	"encoding/binary"
	"net"
)

// ARPHeaderLen is the length in bytes of an ARP message for Ethernet/IPv4
// (hardware type, protocol type, hardware/protocol lengths, opcode, and
// the four sender/target address fields).
const ARPHeaderLen = 28

// ARPFrame is a zero-copy view over a raw ARP message (the payload that
// follows an Ethernet header carrying EtherTypeARP).
type ARPFrame struct {
	Raw []byte
}

// ParseARP validates length and the Ethernet/IPv4 field combination the
// router expects, and wraps b without copying.
func ParseARP(b []byte) (ARPFrame, error) {
	if len(b) < ARPHeaderLen {
		return ARPFrame{}, ErrMalformed
	}
	f := ARPFrame{Raw: b}
	if f.HardwareType() != ARPHardwareEthernet || f.ProtocolType() != ARPProtocolIPv4 ||
		f.HardwareLen() != ARPHardwareLen || f.ProtocolLen() != ARPProtocolLen {
		return ARPFrame{}, ErrMalformed
	}
	return f, nil
}

func (f ARPFrame) HardwareType() uint16 { return binary.BigEndian.Uint16(f.Raw[0:2]) }
func (f ARPFrame) ProtocolType() uint16 { return binary.BigEndian.Uint16(f.Raw[2:4]) }
func (f ARPFrame) HardwareLen() byte    { return f.Raw[4] }
func (f ARPFrame) ProtocolLen() byte    { return f.Raw[5] }
func (f ARPFrame) Operation() uint16    { return binary.BigEndian.Uint16(f.Raw[6:8]) }

func (f ARPFrame) SenderHardwareAddr() net.HardwareAddr { return net.HardwareAddr(f.Raw[8:14]) }
func (f ARPFrame) SenderProtocolAddr() net.IP           { return net.IP(f.Raw[14:18]) }
func (f ARPFrame) TargetHardwareAddr() net.HardwareAddr { return net.HardwareAddr(f.Raw[18:24]) }
func (f ARPFrame) TargetProtocolAddr() net.IP           { return net.IP(f.Raw[24:28]) }

func (f ARPFrame) SetOperation(op uint16) { binary.BigEndian.PutUint16(f.Raw[6:8], op) }

// BuildARPRequest allocates a full Ethernet+ARP request frame asking who
// has targetIP, sent from srcMAC/srcIP. The Ethernet destination and ARP
// target hardware address are both broadcast/zero, as required for a
// request.
func BuildARPRequest(srcMAC net.HardwareAddr, srcIP net.IP, targetIP net.IP) []byte {
	eth := BuildEthernetHeader(BroadcastMAC, srcMAC, EtherTypeARP)
	arp := buildARPHeader(ARPOpRequest, srcMAC, srcIP, ZeroMAC, targetIP)
	return append(eth, arp...)
}

// BuildARPReply allocates a full Ethernet+ARP reply frame announcing
// that replyMAC owns replyIP, addressed to requesterMAC/requesterIP.
func BuildARPReply(replyMAC net.HardwareAddr, replyIP net.IP, requesterMAC net.HardwareAddr, requesterIP net.IP) []byte {
	eth := BuildEthernetHeader(requesterMAC, replyMAC, EtherTypeARP)
	arp := buildARPHeader(ARPOpReply, replyMAC, replyIP, requesterMAC, requesterIP)
	return append(eth, arp...)
}

func buildARPHeader(op uint16, senderMAC net.HardwareAddr, senderIP net.IP, targetMAC net.HardwareAddr, targetIP net.IP) []byte {
	b := make([]byte, ARPHeaderLen)
	binary.BigEndian.PutUint16(b[0:2], ARPHardwareEthernet)
	binary.BigEndian.PutUint16(b[2:4], ARPProtocolIPv4)
	b[4] = ARPHardwareLen
	b[5] = ARPProtocolLen
	binary.BigEndian.PutUint16(b[6:8], op)
	copy(b[8:14], senderMAC)
	copy(b[14:18], senderIP.To4())
	copy(b[18:24], targetMAC)
	copy(b[24:28], targetIP.To4())
	return b
}
