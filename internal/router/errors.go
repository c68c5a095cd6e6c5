package router

import "errors"

// Error classification for handle_frame's internal control flow. Each one
// is mapped to either silence or a single outbound ICMP reply before
// HandleFrame returns; HandleFrame also returns the value, for logging
// and metrics only, and callers never react to it.
var (
	// ErrMalformedFrame: the frame is too short or fails a checksum the
	// wire codec is responsible for verifying. Dropped silently.
	ErrMalformedFrame = errors.New("router: malformed frame")

	// ErrNotForUs: an ARP message whose target protocol address is not
	// one of our interfaces. Dropped silently.
	ErrNotForUs = errors.New("router: arp not for us")

	// ErrNoRoute: longest-prefix match found no route. Answered with
	// ICMP destination-net-unreachable.
	ErrNoRoute = errors.New("router: no route")

	// ErrTtlExpired: inbound TTL was <= 1. Answered with ICMP
	// time-exceeded.
	ErrTtlExpired = errors.New("router: ttl expired")

	// ErrPortUnreachable: TCP/UDP addressed to the router itself, or an
	// inbound NAT packet with no matching mapping. Answered with ICMP
	// destination-port-unreachable.
	ErrPortUnreachable = errors.New("router: port unreachable")

	// ErrHostUnreachable: ARP resolution gave up after the retry limit.
	// Answered with ICMP destination-host-unreachable. The ARP sweeper
	// sends that reply itself and does not use this value; it is listed
	// here to complete the classification.
	ErrHostUnreachable = errors.New("router: host unreachable")

	// ErrSuppressed: the offending packet's source address is one of the
	// router's own interfaces, meaning the router itself is the offender.
	// Dropped silently to avoid reply loops.
	ErrSuppressed = errors.New("router: icmp error suppressed")
)
