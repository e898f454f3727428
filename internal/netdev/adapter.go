// Package netdev defines the Adapter interface a network adapter
// driver must satisfy, and provides a loopback reference
// implementation so the stack is runnable without a real NIC. A
// production Ethernet NIC driver would satisfy the same interface;
// this package is deliberately thin because the driver itself is out
// of scope.
package netdev

import (
	"sync"

	"vnet/internal/parkinglot"
	"vnet/internal/wire"
	"vnet/pkg/addr"
)

// Frame is a fully-built Ethernet frame ready to hand to an adapter,
// or one just dequeued from it.
type Frame []byte

// Adapter is the interface the dispatch loop, ARP resolver, and TCP/
// ICMP/UDP handlers consume. SendIPv4 takes a zero destination MAC to
// mean "resolve via ARP"; the ARP resolver instead calls Send
// directly with an explicit hardware address for replies.
type Adapter interface {
	Name() string
	IPv4Address() addr.IPv4Address
	MACAddress() addr.MACAddress
	HasQueuedPackets() bool
	DequeuePacket() (Frame, bool)
	SendIPv4(destMAC addr.MACAddress, destIP addr.IPv4Address, proto wire.IPv4Protocol, payload []byte) error
	Send(destMAC addr.MACAddress, etherType wire.EtherType, payload []byte) error
}

// Loopback is the always-present adapter checked before the primary
// NIC in dispatch priority. Frames written to it are immediately
// available to DequeuePacket; there is no real wire, so ARP
// resolution is skipped and Send just re-frames the payload with the
// loopback's own MAC on both ends.
type Loopback struct {
	ip      addr.IPv4Address
	mac     addr.MACAddress
	mu      sync.Mutex
	queue   []Frame
	blocker *parkinglot.Blocker
}

// NewLoopback takes the dispatch loop's shared blocker rather than
// owning one itself: the loop parks on a single predicate covering
// every adapter, so every adapter that can produce a frame out of
// thin air (as loopback does, with no real wire to poll) must wake
// the same blocker the dispatch loop waits on.
func NewLoopback(ip addr.IPv4Address, blocker *parkinglot.Blocker) *Loopback {
	return &Loopback{
		ip:      ip,
		mac:     addr.MACAddress{0x00, 0x00, 0x00, 0x00, 0x00, 0x01},
		blocker: blocker,
	}
}

func (l *Loopback) Name() string                  { return "lo" }
func (l *Loopback) IPv4Address() addr.IPv4Address { return l.ip }
func (l *Loopback) MACAddress() addr.MACAddress   { return l.mac }

func (l *Loopback) HasQueuedPackets() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) > 0
}

func (l *Loopback) DequeuePacket() (Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	f := l.queue[0]
	l.queue = l.queue[1:]
	return f, true
}

func (l *Loopback) SendIPv4(_ addr.MACAddress, destIP addr.IPv4Address, proto wire.IPv4Protocol, payload []byte) error {
	hdr := wire.EncodeIPv4Header(wire.IPv4Header{
		TotalLen: uint16(wire.IPv4MinimumSize + len(payload)),
		TTL:      64,
		Protocol: proto,
		Src:      l.ip,
		Dst:      destIP,
	})
	return l.Send(l.mac, wire.EtherTypeIPv4, append(hdr, payload...))
}

func (l *Loopback) Send(_ addr.MACAddress, etherType wire.EtherType, payload []byte) error {
	eth := wire.EncodeEthernetHeader(wire.EthernetHeader{Dst: l.mac, Src: l.mac, Type: etherType})
	frame := append(eth, payload...)
	l.mu.Lock()
	l.queue = append(l.queue, frame)
	l.mu.Unlock()
	l.blocker.Wake()
	return nil
}
