package router

import (
	"net"
	"strconv"
	"time"

	"github.com/athena-dhcpd/athena-router/internal/arpcache"
	"github.com/athena-dhcpd/athena-router/internal/metrics"
	"github.com/athena-dhcpd/athena-router/internal/nat"
	"github.com/athena-dhcpd/athena-router/internal/netif"
	"github.com/athena-dhcpd/athena-router/pkg/wire"
)

// HandleFrame is the router's single entry point: recvIface is the name
// of the interface frame arrived on. Returned errors are purely for
// logging/metrics; the caller never needs to react to them.
func (r *Router) HandleFrame(recvIface string, frame []byte) error {
	start := time.Now()

	eth, err := wire.ParseEthernet(frame)
	if err != nil {
		metrics.FramesDropped.WithLabelValues("malformed_ethernet").Inc()
		return ErrMalformedFrame
	}

	ethertype := eth.EtherType()
	metrics.FramesReceived.WithLabelValues(recvIface, strconv.Itoa(int(ethertype))).Inc()

	var handleErr error
	switch ethertype {
	case wire.EtherTypeARP:
		handleErr = r.handleARP(recvIface, eth)
	case wire.EtherTypeIPv4:
		handleErr = r.handleIPv4(recvIface, eth)
	default:
		metrics.FramesDropped.WithLabelValues("unsupported_ethertype").Inc()
		handleErr = nil
	}

	metrics.FrameProcessingDuration.WithLabelValues(strconv.Itoa(int(ethertype))).Observe(time.Since(start).Seconds())
	return handleErr
}

// handleARP answers ARP requests addressed to one of our interfaces and
// learns bindings from ARP replies, draining any frames that were queued
// waiting on the reply.
func (r *Router) handleARP(recvIface string, eth wire.EthernetFrame) error {
	arp, err := wire.ParseARP(eth.Payload())
	if err != nil {
		metrics.FramesDropped.WithLabelValues("malformed_arp").Inc()
		return ErrMalformedFrame
	}

	ifc, ok := r.interfaces.Get(recvIface)
	if !ok {
		metrics.FramesDropped.WithLabelValues("unknown_interface").Inc()
		return ErrNotForUs
	}
	if !arp.TargetProtocolAddr().Equal(ifc.IP) {
		metrics.FramesDropped.WithLabelValues("arp_not_for_us").Inc()
		return ErrNotForUs
	}

	switch arp.Operation() {
	case wire.ARPOpRequest:
		reply := wire.BuildARPReply(ifc.MAC, ifc.IP, arp.SenderHardwareAddr(), arp.SenderProtocolAddr())
		return r.send(recvIface, reply)

	case wire.ARPOpReply:
		req := r.arp.Insert(arp.SenderHardwareAddr(), arp.SenderProtocolAddr())
		if req != nil {
			r.drainPending(req, arp.SenderHardwareAddr())
			r.arp.DestroyRequest(req)
		}
		return nil
	}

	metrics.FramesDropped.WithLabelValues("unsupported_arp_op").Inc()
	return ErrMalformedFrame
}

// drainPending retransmits every frame a resolved ARP request was
// holding, now that dstMAC is known. Each frame is a full Ethernet frame
// captured at enqueue time; this rewrites its addresses, decrements the
// carried datagram's TTL, and sends it on the interface it was queued on.
func (r *Router) drainPending(req *arpcache.Request, dstMAC net.HardwareAddr) {
	for _, pf := range req.Pending {
		eth, err := wire.ParseEthernet(pf.Bytes)
		if err != nil {
			continue
		}
		ifc, ok := r.interfaces.Get(pf.ReceiveIface)
		if !ok {
			continue
		}
		ip, err := wire.ParseIPv4(eth.Payload())
		if err != nil {
			continue
		}

		if ip.TTL() > 0 {
			ip.SetTTL(ip.TTL() - 1)
		}
		ip.RecomputeChecksum()

		eth.SetDst(dstMAC)
		eth.SetSrc(ifc.MAC)

		if err := r.send(pf.ReceiveIface, pf.Bytes); err == nil {
			metrics.FramesSent.WithLabelValues(pf.ReceiveIface).Inc()
		}
	}
}

// handleIPv4 is the forwarding pipeline's dispatch point: local delivery
// versus forwarding, per isLocal.
func (r *Router) handleIPv4(recvIface string, eth wire.EthernetFrame) error {
	ip, err := wire.ParseIPv4(eth.Payload())
	if err != nil {
		metrics.FramesDropped.WithLabelValues("malformed_ipv4").Inc()
		return ErrMalformedFrame
	}
	if !wire.VerifyChecksum(ip.HeaderBytes()) {
		metrics.FramesDropped.WithLabelValues("bad_ipv4_checksum").Inc()
		return ErrMalformedFrame
	}

	if r.isLocal(recvIface, ip) {
		return r.handleLocal(recvIface, ip)
	}
	return r.handleForward(recvIface, ip)
}

// isLocal reports whether an inbound datagram addresses the router
// itself. Beyond the plain "destination equals one of our interface
// addresses" case, a NAT-enabled router's outside interface treats every
// inbound ICMP echo reply and every inbound TCP segment as "not local" —
// they may be replies to an internal host passing back through — so
// translateInbound gets a chance to rewrite and forward them. Whether a
// mapping exists is not checked here; one without a mapping is answered
// with port-unreachable by the forwarding path.
func (r *Router) isLocal(recvIface string, ip wire.IPv4Frame) bool {
	if _, ok := r.interfaces.OwnerOf(ip.DstIP()); !ok {
		return false
	}

	if r.enableNAT && recvIface == r.outsideIface {
		switch ip.Protocol() {
		case wire.ProtocolICMP:
			if icmp, err := wire.ParseICMP(ip.Payload()); err == nil && icmp.Type() == wire.ICMPTypeEchoReply {
				return false
			}
		case wire.ProtocolTCP:
			return false
		}
	}

	return true
}

// handleLocal answers traffic addressed to the router itself: ICMP goes
// to handleLocalICMP, TCP and UDP get destination-port-unreachable, and
// any other protocol is dropped silently.
func (r *Router) handleLocal(recvIface string, ip wire.IPv4Frame) error {
	switch ip.Protocol() {
	case wire.ProtocolICMP:
		return r.handleLocalICMP(recvIface, ip)
	case wire.ProtocolTCP, wire.ProtocolUDP:
		return r.sendICMPError(recvIface, ip.Raw, ip, wire.ICMPTypeDestUnreach, wire.ICMPCodePortUnreachable)
	default:
		metrics.FramesDropped.WithLabelValues("unsupported_protocol_local").Inc()
		return nil
	}
}

// handleLocalICMP replies to an echo request addressed to the router,
// and silently drops anything else (including echo replies, which reach
// here when NAT is disabled or when they arrive on an interface other
// than the outside one).
func (r *Router) handleLocalICMP(recvIface string, ip wire.IPv4Frame) error {
	icmp, err := wire.ParseICMP(ip.Payload())
	if err != nil {
		metrics.FramesDropped.WithLabelValues("malformed_icmp").Inc()
		return ErrMalformedFrame
	}
	if !wire.VerifyChecksum(icmp.Raw) {
		metrics.FramesDropped.WithLabelValues("bad_icmp_checksum").Inc()
		return ErrMalformedFrame
	}
	if icmp.Type() != wire.ICMPTypeEchoRequest {
		metrics.FramesDropped.WithLabelValues("unsupported_icmp_local").Inc()
		return nil
	}

	reply := wire.BuildICMPEcho(wire.ICMPTypeEchoReply, icmp.Identifier(), icmp.Sequence(), icmp.Payload())
	datagram := wire.BuildIPv4Datagram(ip.DstIP(), ip.SrcIP(), wire.ProtocolICMP, 255, 0, reply)

	return r.routeThenForward(ip.SrcIP(), datagram, false)
}

// handleForward is the transit path: TTL check, NAT translation, a
// single route lookup against the (possibly NAT-rewritten) destination,
// and delivery through the ARP-aware send path.
func (r *Router) handleForward(recvIface string, ip wire.IPv4Frame) error {
	if ip.TTL() <= 1 {
		return r.sendICMPError(recvIface, ip.Raw, ip, wire.ICMPTypeTimeExceeded, wire.ICMPCodeTTLExceededInTransit)
	}

	datagram := make([]byte, len(ip.Raw))
	copy(datagram, ip.Raw)
	df, _ := wire.ParseIPv4(datagram)

	if r.enableNAT {
		if err := r.applyNAT(recvIface, df); err != nil {
			return r.sendICMPError(recvIface, ip.Raw, ip, wire.ICMPTypeDestUnreach, wire.ICMPCodePortUnreachable)
		}
	}

	route, ok := r.routes.Lookup(df.DstIP())
	if !ok {
		if err := r.sendICMPError(recvIface, ip.Raw, ip, wire.ICMPTypeDestUnreach, wire.ICMPCodeNetUnreachable); err != nil {
			return err
		}
		return ErrNoRoute
	}
	txIf, ok := r.interfaces.Get(route.InterfaceName)
	if !ok {
		return r.sendICMPError(recvIface, ip.Raw, ip, wire.ICMPTypeDestUnreach, wire.ICMPCodeNetUnreachable)
	}

	nextHop := route.Gateway
	if nextHop.IsUnspecified() {
		nextHop = df.DstIP()
	}

	return r.forwardDatagram(txIf, nextHop, datagram, true)
}

// applyNAT dispatches a forwarded datagram to the outbound or inbound
// translation path by which interface it arrived on, and is a no-op for
// anything neither path recognizes (UDP, unmapped protocols).
func (r *Router) applyNAT(recvIface string, df wire.IPv4Frame) error {
	switch recvIface {
	case r.insideIface:
		return r.translateOutbound(df)
	case r.outsideIface:
		return r.translateInbound(df)
	default:
		return nil
	}
}

// translateOutbound rewrites a datagram leaving the inside interface:
// source address to the NAT external IP, and source port/ICMP
// identifier to an allocated (or existing) external aux value.
func (r *Router) translateOutbound(df wire.IPv4Frame) error {
	switch df.Protocol() {
	case wire.ProtocolICMP:
		icmp, err := wire.ParseICMP(df.Payload())
		if err != nil || icmp.Type() != wire.ICMPTypeEchoRequest {
			return ErrPortUnreachable
		}

		m, ok := r.nat.LookupInternal(df.SrcIP(), icmp.Identifier(), nat.ICMP, df.DstIP(), 0, nat.Flags{})
		if !ok {
			m, ok = r.nat.InsertMapping(df.SrcIP(), icmp.Identifier(), nat.ICMP, df.DstIP(), 0, nat.Flags{})
			if !ok {
				return ErrPortUnreachable
			}
		}

		df.SetSrcIP(m.ExternalIP)
		icmp.SetIdentifier(m.ExternalAux)
		icmp.RecomputeChecksum()
		df.RecomputeChecksum()
		return nil

	case wire.ProtocolTCP:
		tcp, err := wire.ParseTCP(df.Payload())
		if err != nil {
			return ErrPortUnreachable
		}

		flags := tcpFlags(tcp)
		m, ok := r.nat.LookupInternal(df.SrcIP(), tcp.SrcPort(), nat.TCP, df.DstIP(), tcp.DstPort(), flags)
		if !ok {
			m, ok = r.nat.InsertMapping(df.SrcIP(), tcp.SrcPort(), nat.TCP, df.DstIP(), tcp.DstPort(), flags)
			if !ok {
				return ErrPortUnreachable
			}
		}

		df.SetSrcIP(m.ExternalIP)
		tcp.SetSrcPort(m.ExternalAux)
		tcp.RecomputeChecksum(ipArray(df.SrcIP()), ipArray(df.DstIP()))
		df.RecomputeChecksum()
		return nil

	default:
		return nil
	}
}

// translateInbound rewrites a datagram arriving on the outside interface
// back to its original internal destination, using the mapping the
// external aux value (ICMP identifier or TCP port) was assigned.
func (r *Router) translateInbound(df wire.IPv4Frame) error {
	switch df.Protocol() {
	case wire.ProtocolICMP:
		icmp, err := wire.ParseICMP(df.Payload())
		if err != nil {
			return ErrPortUnreachable
		}

		m, ok := r.nat.LookupExternal(icmp.Identifier(), nat.ICMP, df.SrcIP(), 0, nat.Flags{})
		if !ok {
			return ErrPortUnreachable
		}

		df.SetDstIP(m.InternalIP)
		icmp.SetIdentifier(m.InternalAux)
		icmp.RecomputeChecksum()
		df.RecomputeChecksum()
		return nil

	case wire.ProtocolTCP:
		tcp, err := wire.ParseTCP(df.Payload())
		if err != nil {
			return ErrPortUnreachable
		}

		flags := tcpFlags(tcp)
		m, ok := r.nat.LookupExternal(tcp.DstPort(), nat.TCP, df.SrcIP(), tcp.SrcPort(), flags)
		if !ok {
			return ErrPortUnreachable
		}

		df.SetDstIP(m.InternalIP)
		tcp.SetDstPort(m.InternalAux)
		tcp.RecomputeChecksum(ipArray(df.SrcIP()), ipArray(df.DstIP()))
		df.RecomputeChecksum()
		return nil

	default:
		return nil
	}
}

func tcpFlags(tcp wire.TCPFrame) nat.Flags {
	return nat.Flags{
		ACK: tcp.HasFlag(wire.TCPFlagACK),
		SYN: tcp.HasFlag(wire.TCPFlagSYN),
		FIN: tcp.HasFlag(wire.TCPFlagFIN),
	}
}

func ipArray(ip net.IP) [4]byte {
	var out [4]byte
	copy(out[:], ip.To4())
	return out
}

// routeThenForward performs its own route lookup for a datagram the
// router is originating itself (an echo reply or an ICMP error), then
// hands off to forwardDatagram. decrementTTL is always false for these
// callers: self-originated datagrams carry a fixed TTL of 255 and are
// never decremented on the immediate (cache-hit) send path.
func (r *Router) routeThenForward(dstIP net.IP, datagram []byte, decrementTTL bool) error {
	route, ok := r.routes.Lookup(dstIP)
	if !ok {
		metrics.FramesDropped.WithLabelValues("no_route_for_reply").Inc()
		return ErrNoRoute
	}
	txIf, ok := r.interfaces.Get(route.InterfaceName)
	if !ok {
		metrics.FramesDropped.WithLabelValues("no_route_for_reply").Inc()
		return ErrNoRoute
	}

	nextHop := route.Gateway
	if nextHop.IsUnspecified() {
		nextHop = dstIP
	}

	return r.forwardDatagram(txIf, nextHop, datagram, decrementTTL)
}

// forwardDatagram delivers datagram out txIf toward nextHop: immediately
// on an ARP cache hit, or queued behind a freshly (re)triggered ARP
// request on a miss. decrementTTL governs only the immediate-hit path;
// a queued frame's eventual drainPending always decrements once,
// regardless of what the enqueuing caller passed here — a deliberate
// simplification, since the only caller that ever passes false
// (self-originated replies/errors) essentially never misses the cache
// for its own default gateway in practice.
func (r *Router) forwardDatagram(txIf *netif.Interface, nextHop net.IP, datagram []byte, decrementTTL bool) error {
	if entry, ok := r.arp.Lookup(nextHop); ok {
		df, err := wire.ParseIPv4(datagram)
		if err != nil {
			return ErrMalformedFrame
		}
		if decrementTTL && df.TTL() > 0 {
			df.SetTTL(df.TTL() - 1)
		}
		df.RecomputeChecksum()

		ethHdr := wire.BuildEthernetHeader(entry.MAC, txIf.MAC, wire.EtherTypeIPv4)
		frame := append(ethHdr, datagram...)
		if err := r.send(txIf.Name, frame); err != nil {
			return err
		}
		metrics.FramesSent.WithLabelValues(txIf.Name).Inc()
		return nil
	}

	ethHdr := wire.BuildEthernetHeader(wire.ZeroMAC, txIf.MAC, wire.EtherTypeIPv4)
	frame := append(ethHdr, datagram...)
	r.arp.QueueRequest(nextHop, frame, txIf.Name)

	arpReq := wire.BuildARPRequest(txIf.MAC, txIf.IP, nextHop)
	if err := r.send(txIf.Name, arpReq); err != nil {
		return err
	}
	metrics.ARPRequestsSent.Inc()
	return nil
}

// sendICMPError synthesizes and transmits an ICMP error in response to
// origDatagram, received on recvIface. The suppression check — do not
// reply to our own offending traffic, to avoid error loops — is
// evaluated against the offending packet's original source address,
// before any reply field is computed.
func (r *Router) sendICMPError(recvIface string, origDatagram []byte, ip wire.IPv4Frame, icmpType, icmpCode byte) error {
	if _, ok := r.interfaces.OwnerOf(ip.SrcIP()); ok {
		return ErrSuppressed
	}

	srcIf, ok := r.interfaces.RouteBackTo(ip.SrcIP(), r.routes)
	if !ok {
		srcIf, ok = r.interfaces.Get(recvIface)
		if !ok {
			return ErrNoRoute
		}
	}

	srcIP := srcIf.IP
	if icmpType == wire.ICMPTypeDestUnreach && icmpCode == wire.ICMPCodePortUnreachable {
		srcIP = ip.DstIP()
	}

	payload := wire.ICMPErrorPayload(origDatagram)
	icmpMsg := wire.BuildICMPError(icmpType, icmpCode, payload)
	datagram := wire.BuildIPv4Datagram(srcIP, ip.SrcIP(), wire.ProtocolICMP, 255, 0, icmpMsg)

	if err := r.routeThenForward(ip.SrcIP(), datagram, false); err != nil {
		return err
	}
	metrics.ICMPErrorsSent.WithLabelValues(strconv.Itoa(int(icmpType)), strconv.Itoa(int(icmpCode))).Inc()
	return nil
}
