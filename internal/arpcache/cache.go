// Package arpcache implements the router's ARP resolver: a fixed-capacity
// cache of IP->MAC bindings and an unbounded queue of outstanding ARP
// requests, each holding the frames waiting on that resolution.
package arpcache

import (
	"math/rand"
	"net"
	"sync"
	"time"
)

// Entry is one IP->MAC binding. Entries with Valid == false are
// logically absent; their other fields are not read.
type Entry struct {
	IP         net.IP
	MAC        net.HardwareAddr
	InsertedAt time.Time
	Valid      bool
}

// PendingFrame is a frame queued on an outstanding ARP request, owned by
// its containing Request until the request completes or is abandoned.
type PendingFrame struct {
	Bytes        []byte
	ReceiveIface string
}

// Request is a queue entry for an IP whose MAC address is not yet known.
type Request struct {
	TargetIP    net.IP
	FirstSentAt time.Time
	LastSent    time.Time
	TimesSent   int
	Pending     []PendingFrame
}

// Cache is the ARP resolver's concurrent state: a fixed-size table of
// valid entries plus the request queue. All operations serialize on a
// single mutex. It is not recursive: no caller re-enters this lock while
// holding it.
type Cache struct {
	mu sync.Mutex

	entries  []Entry
	capacity int
	timeout  time.Duration

	maxRetries int
	requests   []*Request

	rng *rand.Rand
}

// Config supplies the cache's tunables.
type Config struct {
	Capacity   int
	Timeout    time.Duration
	MaxRetries int
}

// New builds an empty cache of the configured capacity.
func New(cfg Config) *Cache {
	return &Cache{
		entries:    make([]Entry, cfg.Capacity),
		capacity:   cfg.Capacity,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Lookup scans the table for a valid entry matching ip and returns a
// detached copy, so the caller never holds the lock while using the
// result.
func (c *Cache) Lookup(ip net.IP) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.Valid && e.IP.Equal(ip) {
			return e, true
		}
	}
	return Entry{}, false
}

// QueueRequest finds or creates the outstanding request for ip and
// appends a copy of frame (labeled with the interface it should be
// retransmitted on once resolved).
func (c *Cache) QueueRequest(ip net.IP, frame []byte, iface string) *Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := c.findRequestLocked(ip)
	if req == nil {
		req = &Request{TargetIP: ip, FirstSentAt: time.Now()}
		c.requests = append(c.requests, req)
	}

	cp := make([]byte, len(frame))
	copy(cp, frame)
	req.Pending = append(req.Pending, PendingFrame{Bytes: cp, ReceiveIface: iface})
	return req
}

// Insert records ip -> mac as a valid binding. If a queued request
// exists for ip, it is detached from the queue and returned so the
// caller can drain its pending frames; the caller then calls
// DestroyRequest once the frames are handled.
func (c *Cache) Insert(mac net.HardwareAddr, ip net.IP) *Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.insertEntryLocked(mac, ip)

	for i, req := range c.requests {
		if req.TargetIP.Equal(ip) {
			c.requests = append(c.requests[:i], c.requests[i+1:]...)
			return req
		}
	}
	return nil
}

// DestroyRequest removes req from the queue, if still present. Safe to
// call on a request already detached by Insert.
func (c *Cache) DestroyRequest(req *Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, r := range c.requests {
		if r == req {
			c.requests = append(c.requests[:i], c.requests[i+1:]...)
			return
		}
	}
}

// Dump returns a detached snapshot of every valid entry, for operational
// inspection (e.g. an API/debug endpoint) without exposing the cache's
// internal locking.
func (c *Cache) Dump() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.Valid {
			out = append(out, e)
		}
	}
	return out
}

// EntryCount returns the number of currently valid entries.
func (c *Cache) EntryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if e.Valid {
			n++
		}
	}
	return n
}

// PendingRequestCount returns the number of outstanding requests.
func (c *Cache) PendingRequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *Cache) findRequestLocked(ip net.IP) *Request {
	for _, r := range c.requests {
		if r.TargetIP.Equal(ip) {
			return r
		}
	}
	return nil
}

// insertEntryLocked updates the existing valid entry for ip if one
// exists, otherwise writes mac/ip into the first invalid slot, or — if
// the table is full — a randomly chosen slot. The eviction policy for a
// full table is implementation-defined; random replacement keeps a
// simple, bounded insert path.
func (c *Cache) insertEntryLocked(mac net.HardwareAddr, ip net.IP) {
	macCopy := make(net.HardwareAddr, len(mac))
	copy(macCopy, mac)
	ipCopy := make(net.IP, len(ip))
	copy(ipCopy, ip)

	for i := range c.entries {
		if c.entries[i].Valid && c.entries[i].IP.Equal(ip) {
			c.entries[i].MAC = macCopy
			c.entries[i].InsertedAt = time.Now()
			return
		}
	}

	for i := range c.entries {
		if !c.entries[i].Valid {
			c.entries[i] = Entry{IP: ipCopy, MAC: macCopy, InsertedAt: time.Now(), Valid: true}
			return
		}
	}

	if c.capacity == 0 {
		return
	}
	victim := c.rng.Intn(c.capacity)
	c.entries[victim] = Entry{IP: ipCopy, MAC: macCopy, InsertedAt: time.Now(), Valid: true}
}
