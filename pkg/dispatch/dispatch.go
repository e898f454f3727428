// Package dispatch implements the packet dispatch loop: pull frames
// from adapters, classify by EtherType and then by IPv4 protocol, and
// forward to the ARP/ICMP/UDP/TCP handlers.
package dispatch

import (
	"context"
	"log"

	"vnet/internal/netdev"
	"vnet/internal/parkinglot"
	"vnet/internal/wire"
	"vnet/pkg/addr"
	"vnet/pkg/arp"
	"vnet/pkg/icmp"
	"vnet/pkg/tcp"
	"vnet/pkg/udp"
)

// Locator is implemented by the network subsystem: it's the shared
// "which owned adapter has this address" lookup the ARP resolver and
// ICMP responder both need.
type Locator interface {
	arp.AdapterLocator
	icmp.AdapterLocator
}

// Loop is the single dispatch task. adapters[0] is polled first every
// iteration, giving loopback traffic priority over the primary NIC;
// callers should put the loopback adapter there.
type Loop struct {
	adapters []netdev.Adapter
	blocker  *parkinglot.Blocker

	arpTable *arp.Table
	tcpReg   *tcp.Registry
	icmpResp *icmp.Responder
	udpDisp  *udp.Dispatcher
	locator  Locator

	log *log.Logger
}

func New(adapters []netdev.Adapter, blocker *parkinglot.Blocker, arpTable *arp.Table, tcpReg *tcp.Registry, icmpResp *icmp.Responder, udpDisp *udp.Dispatcher, locator Locator, logger *log.Logger) *Loop {
	return &Loop{
		adapters: adapters,
		blocker:  blocker,
		arpTable: arpTable,
		tcpReg:   tcpReg,
		icmpResp: icmpResp,
		udpDisp:  udpDisp,
		locator:  locator,
		log:      logger,
	}
}

// Run blocks until ctx is cancelled. It is created once at startup and
// runs until shutdown.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		frame, adapter, ok := l.dequeueAny()
		if !ok {
			if !l.blocker.Wait(ctx, l.anyQueued) {
				return ctx.Err()
			}
			continue
		}
		l.handleFrame(adapter, frame)
	}
}

func (l *Loop) anyQueued() bool {
	for _, a := range l.adapters {
		if a.HasQueuedPackets() {
			return true
		}
	}
	return false
}

// dequeueAny tries loopback (the first adapter in the slice) before
// falling through to the rest.
func (l *Loop) dequeueAny() (netdev.Frame, netdev.Adapter, bool) {
	for _, a := range l.adapters {
		if f, ok := a.DequeuePacket(); ok {
			return f, a, true
		}
	}
	return nil, nil, false
}

func (l *Loop) handleFrame(_ netdev.Adapter, frame netdev.Frame) {
	eth, body, ok := wire.ParseEthernetHeader(frame)
	if !ok {
		l.log.Printf("dispatch: frame shorter than an Ethernet header (%d bytes)", len(frame))
		return
	}

	switch eth.Type {
	case wire.EtherTypeARP:
		l.arpTable.HandleFrame(l.locator, body)
	case wire.EtherTypeIPv4:
		l.handleIPv4(eth.Src, body)
	default:
		l.log.Printf("dispatch: unknown EtherType %#x, dropping", uint16(eth.Type))
	}
}

func (l *Loop) handleIPv4(srcMAC addr.MACAddress, ipPacket []byte) {
	ipHdr, payload, ok := wire.ParseIPv4Header(ipPacket)
	if !ok {
		l.log.Printf("dispatch: malformed IPv4 header (%d bytes)", len(ipPacket))
		return
	}

	switch ipHdr.Protocol {
	case wire.IPv4ProtocolICMP:
		l.icmpResp.HandlePacket(l.locator, srcMAC, ipHdr, ipPacket, payload)
	case wire.IPv4ProtocolUDP:
		l.udpDisp.HandlePacket(ipHdr, ipPacket)
	case wire.IPv4ProtocolTCP:
		l.handleTCP(ipHdr, payload)
	default:
		l.log.Printf("dispatch: unsupported IPv4 protocol %d from %s, dropping", ipHdr.Protocol, ipHdr.Src)
	}
}

func (l *Loop) handleTCP(ipHdr wire.IPv4Header, payload []byte) {
	seg, ok := wire.ParseTCPSegment(payload)
	if !ok {
		l.log.Printf("dispatch: malformed TCP segment from %s (%d bytes)", ipHdr.Src, len(payload))
		return
	}

	tuple := addr.NewFourTuple(ipHdr.Dst, seg.DstPort, ipHdr.Src, seg.SrcPort)
	sock, found := l.tcpReg.FromTuple(tuple)
	if !found {
		l.log.Printf("dispatch: no socket for %s, dropping", tuple)
		return
	}
	sock.HandleSegment(seg)
}
