package netif

import "net"

// RouteEntry is one static route, read-only after construction.
type RouteEntry struct {
	Destination   net.IP
	Mask          net.IPMask
	Gateway       net.IP
	InterfaceName string
}

// RouteTable is an ordered, immutable list of routes searched by
// longest-prefix match.
type RouteTable struct {
	entries []RouteEntry
}

// NewRouteTable builds a route table from the given entries. Entry order is
// irrelevant to lookup — LPM always wins regardless of table order.
func NewRouteTable(entries []RouteEntry) *RouteTable {
	cp := make([]RouteEntry, len(entries))
	copy(cp, entries)
	return &RouteTable{entries: cp}
}

// Lookup performs longest-prefix match: the chosen entry is the one whose
// mask is maximal among those with (dst & mask) == destination. Returns
// false if no entry matches ("no route").
func (t *RouteTable) Lookup(dst net.IP) (RouteEntry, bool) {
	dst4 := dst.To4()
	if dst4 == nil {
		return RouteEntry{}, false
	}

	var (
		best      RouteEntry
		bestFound bool
		bestOnes  int
	)

	for _, e := range t.entries {
		mask4 := e.Mask
		if len(mask4) == 0 {
			continue
		}
		masked := net.IP(applyMask(dst4, mask4))
		if !masked.Equal(e.Destination.Mask(mask4)) {
			continue
		}
		ones, _ := mask4.Size()
		if !bestFound || ones > bestOnes {
			best = e
			bestOnes = ones
			bestFound = true
		}
	}

	return best, bestFound
}

func applyMask(ip net.IP, mask net.IPMask) net.IP {
	ip4 := ip.To4()
	out := make(net.IP, 4)
	for i := range out {
		out[i] = ip4[i] & mask[i]
	}
	return out
}
