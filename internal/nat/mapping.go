package nat

import (
	"net"
	"time"
)

// Mapping is one (internal_ip, internal_aux, type) <-> external_aux
// binding. Conns is always empty for ICMP mappings.
type Mapping struct {
	Type        MappingType
	InternalIP  net.IP
	ExternalIP  net.IP
	InternalAux uint16
	ExternalAux uint16
	LastUpdated time.Time
	Conns       []*Conn
}

// clone returns a detached deep copy, so callers can inspect a mapping
// without holding the table's lock.
func (m *Mapping) clone() *Mapping {
	cp := *m
	cp.InternalIP = cloneIP(m.InternalIP)
	cp.ExternalIP = cloneIP(m.ExternalIP)
	cp.Conns = make([]*Conn, len(m.Conns))
	for i, c := range m.Conns {
		connCopy := *c
		connCopy.PeerIP = cloneIP(c.PeerIP)
		cp.Conns[i] = &connCopy
	}
	return &cp
}

func cloneIP(ip net.IP) net.IP {
	if ip == nil {
		return nil
	}
	cp := make(net.IP, len(ip))
	copy(cp, ip)
	return cp
}

// findConn returns the connection record for (peerIP, peerPort), if any.
func (m *Mapping) findConn(peerIP net.IP, peerPort uint16) *Conn {
	for _, c := range m.Conns {
		if c.PeerIP.Equal(peerIP) && c.PeerPort == peerPort {
			return c
		}
	}
	return nil
}

type internalKey struct {
	ip   string
	aux  uint16
	kind MappingType
}

type externalKey struct {
	aux  uint16
	kind MappingType
}

func makeInternalKey(ip net.IP, aux uint16, kind MappingType) internalKey {
	return internalKey{ip: ip.String(), aux: aux, kind: kind}
}

func makeExternalKey(aux uint16, kind MappingType) externalKey {
	return externalKey{aux: aux, kind: kind}
}
