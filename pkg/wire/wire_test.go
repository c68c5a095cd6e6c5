package wire

import (
	"net"
	"testing"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	if err != nil {
		t.Fatalf("ParseMAC(%q): %v", s, err)
	}
	return mac
}

func TestChecksumRoundTrip(t *testing.T) {
	data := []byte{0x45, 0x00, 0x00, 0x3c, 0x1c, 0x46, 0x40, 0x00, 0x40, 0x06, 0x00, 0x00, 0xac, 0x10, 0x0a, 0x63, 0xac, 0x10, 0x0a, 0x0c}

	sum := Checksum(data)
	data[10] = byte(sum >> 8)
	data[11] = byte(sum)

	if !VerifyChecksum(data) {
		t.Fatalf("expected checksum to verify after writing it into the field")
	}

	data[0] ^= 0xff
	if VerifyChecksum(data) {
		t.Fatalf("expected checksum to fail to verify after corrupting the header")
	}
}

func TestChecksumOddLength(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	sum := Checksum(data)
	if sum16(data) != ^sum {
		t.Fatalf("checksum %x is not the one's complement of sum16 %x", sum, sum16(data))
	}
}

func TestEthernetParseAndBuild(t *testing.T) {
	dst := mustMAC(t, "aa:aa:aa:aa:aa:01")
	src := mustMAC(t, "bb:bb:bb:bb:bb:02")
	h := BuildEthernetHeader(dst, src, EtherTypeIPv4)
	h = append(h, []byte{0xde, 0xad}...)

	f, err := ParseEthernet(h)
	if err != nil {
		t.Fatalf("ParseEthernet: %v", err)
	}
	if f.Dst().String() != dst.String() {
		t.Errorf("Dst = %v, want %v", f.Dst(), dst)
	}
	if f.Src().String() != src.String() {
		t.Errorf("Src = %v, want %v", f.Src(), src)
	}
	if f.EtherType() != EtherTypeIPv4 {
		t.Errorf("EtherType = %x, want %x", f.EtherType(), EtherTypeIPv4)
	}
	if got := f.Payload(); len(got) != 2 || got[0] != 0xde {
		t.Errorf("Payload = %x, want [de ad]", got)
	}
}

func TestEthernetParseTooShort(t *testing.T) {
	if _, err := ParseEthernet(make([]byte, 13)); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestARPRequestReplyRoundTrip(t *testing.T) {
	srcMAC := mustMAC(t, "aa:aa:aa:aa:aa:01")
	srcIP := net.ParseIP("10.0.1.1").To4()
	targetIP := net.ParseIP("10.0.1.2").To4()

	req := BuildARPRequest(srcMAC, srcIP, targetIP)
	eth, err := ParseEthernet(req)
	if err != nil {
		t.Fatalf("ParseEthernet: %v", err)
	}
	if eth.EtherType() != EtherTypeARP {
		t.Fatalf("EtherType = %x, want ARP", eth.EtherType())
	}
	arp, err := ParseARP(eth.Payload())
	if err != nil {
		t.Fatalf("ParseARP: %v", err)
	}
	if arp.Operation() != ARPOpRequest {
		t.Errorf("Operation = %d, want request", arp.Operation())
	}
	if !arp.SenderProtocolAddr().Equal(srcIP) {
		t.Errorf("SenderProtocolAddr = %v, want %v", arp.SenderProtocolAddr(), srcIP)
	}
	if !arp.TargetProtocolAddr().Equal(targetIP) {
		t.Errorf("TargetProtocolAddr = %v, want %v", arp.TargetProtocolAddr(), targetIP)
	}

	targetMAC := mustMAC(t, "bb:bb:bb:bb:bb:02")
	reply := BuildARPReply(targetMAC, targetIP, srcMAC, srcIP)
	rEth, err := ParseEthernet(reply)
	if err != nil {
		t.Fatalf("ParseEthernet(reply): %v", err)
	}
	rArp, err := ParseARP(rEth.Payload())
	if err != nil {
		t.Fatalf("ParseARP(reply): %v", err)
	}
	if rArp.Operation() != ARPOpReply {
		t.Errorf("reply Operation = %d, want reply", rArp.Operation())
	}
	if rArp.SenderHardwareAddr().String() != targetMAC.String() {
		t.Errorf("reply SenderHardwareAddr = %v, want %v", rArp.SenderHardwareAddr(), targetMAC)
	}
}

func TestARPRejectsWrongHardwareType(t *testing.T) {
	srcMAC := mustMAC(t, "aa:aa:aa:aa:aa:01")
	srcIP := net.ParseIP("10.0.1.1").To4()
	targetIP := net.ParseIP("10.0.1.2").To4()
	req := BuildARPRequest(srcMAC, srcIP, targetIP)
	eth, _ := ParseEthernet(req)
	payload := eth.Payload()
	payload[1] = 0x08 // corrupt hardware type (low byte)
	if _, err := ParseARP(payload); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed for bad hardware type, got %v", err)
	}
}

func TestIPv4HeaderRoundTrip(t *testing.T) {
	src := net.ParseIP("10.0.1.100").To4()
	dst := net.ParseIP("172.64.3.10").To4()
	payload := []byte{0xca, 0xfe, 0xba, 0xbe}

	datagram := BuildIPv4Datagram(src, dst, ProtocolICMP, 64, 1, payload)
	f, err := ParseIPv4(datagram)
	if err != nil {
		t.Fatalf("ParseIPv4: %v", err)
	}
	if f.IHL() != IPv4MinHeaderLen {
		t.Errorf("IHL = %d, want %d", f.IHL(), IPv4MinHeaderLen)
	}
	if f.TTL() != 64 {
		t.Errorf("TTL = %d, want 64", f.TTL())
	}
	if f.Protocol() != ProtocolICMP {
		t.Errorf("Protocol = %d, want %d", f.Protocol(), ProtocolICMP)
	}
	if !f.SrcIP().Equal(src) || !f.DstIP().Equal(dst) {
		t.Errorf("addresses = %v -> %v, want %v -> %v", f.SrcIP(), f.DstIP(), src, dst)
	}
	if !VerifyChecksum(f.HeaderBytes()) {
		t.Errorf("expected header checksum to verify")
	}

	f.SetTTL(f.TTL() - 1)
	f.RecomputeChecksum()
	if !VerifyChecksum(f.HeaderBytes()) {
		t.Errorf("expected header checksum to verify after TTL decrement + recompute")
	}
	if f.TTL() != 63 {
		t.Errorf("TTL after decrement = %d, want 63", f.TTL())
	}
}

func TestIPv4ParseRejectsShortHeader(t *testing.T) {
	if _, err := ParseIPv4(make([]byte, 10)); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestICMPEchoRoundTrip(t *testing.T) {
	data := []byte("ping-payload")
	msg := BuildICMPEcho(ICMPTypeEchoRequest, 0x1234, 1, data)

	f, err := ParseICMP(msg)
	if err != nil {
		t.Fatalf("ParseICMP: %v", err)
	}
	if f.Type() != ICMPTypeEchoRequest {
		t.Errorf("Type = %d, want echo request", f.Type())
	}
	if f.Identifier() != 0x1234 {
		t.Errorf("Identifier = %x, want 1234", f.Identifier())
	}
	if f.Sequence() != 1 {
		t.Errorf("Sequence = %d, want 1", f.Sequence())
	}
	if string(f.Payload()) != string(data) {
		t.Errorf("Payload = %q, want %q", f.Payload(), data)
	}
	if !VerifyChecksum(msg) {
		t.Errorf("expected ICMP checksum to verify")
	}
}

func TestICMPErrorCarriesOriginalHeaderPlus8Bytes(t *testing.T) {
	src := net.ParseIP("10.0.1.100").To4()
	dst := net.ParseIP("172.64.3.10").To4()
	orig := BuildIPv4Datagram(src, dst, ProtocolUDP, 64, 7, []byte("0123456789abcdef"))

	truncated := ICMPErrorPayload(orig)
	if len(truncated) != IPv4MinHeaderLen+8 {
		t.Fatalf("truncated len = %d, want %d", len(truncated), IPv4MinHeaderLen+8)
	}

	errMsg := BuildICMPError(ICMPTypeTimeExceeded, ICMPCodeTTLExceededInTransit, truncated)
	f, err := ParseICMP(errMsg)
	if err != nil {
		t.Fatalf("ParseICMP: %v", err)
	}
	if f.Type() != ICMPTypeTimeExceeded {
		t.Errorf("Type = %d, want time exceeded", f.Type())
	}
	if !VerifyChecksum(errMsg) {
		t.Errorf("expected ICMP error checksum to verify")
	}
	if len(f.Payload()) != IPv4MinHeaderLen+8 {
		t.Errorf("embedded payload len = %d, want %d", len(f.Payload()), IPv4MinHeaderLen+8)
	}
}

func TestTCPFieldsAndChecksum(t *testing.T) {
	seg := make([]byte, TCPHeaderMinLen)
	tf := TCPFrame{Raw: seg}
	tf.SetSrcPort(5000)
	tf.SetDstPort(80)
	seg[12] = 5 << 4 // data offset 20 bytes
	seg[13] = TCPFlagSYN

	if tf.SrcPort() != 5000 || tf.DstPort() != 80 {
		t.Fatalf("ports = %d -> %d, want 5000 -> 80", tf.SrcPort(), tf.DstPort())
	}
	if !tf.HasFlag(TCPFlagSYN) || tf.HasFlag(TCPFlagACK) {
		t.Fatalf("flags = %08b, want SYN set and ACK clear", tf.Flags())
	}
	if tf.DataOffset() != 20 {
		t.Fatalf("DataOffset = %d, want 20", tf.DataOffset())
	}

	srcIP := [4]byte{10, 0, 1, 100}
	dstIP := [4]byte{172, 64, 3, 10}
	tf.RecomputeChecksum(srcIP, dstIP)

	sum := pseudoHeaderSum(srcIP, dstIP, ProtocolTCP, len(seg))
	verify := sum
	n := len(seg)
	i := 0
	for ; i+1 < n; i += 2 {
		verify += uint32(seg[i])<<8 | uint32(seg[i+1])
	}
	for verify>>16 != 0 {
		verify = (verify & 0xFFFF) + (verify >> 16)
	}
	if uint16(verify) != 0xFFFF {
		t.Errorf("pseudo-header checksum did not verify, got residual %x", uint16(verify))
	}
}
