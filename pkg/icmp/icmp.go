// Package icmp implements the echo responder: reply to EchoRequests
// addressed to an owned adapter, and fan out every inbound ICMP
// packet to every live ICMP socket.
package icmp

import (
	"log"

	"vnet/internal/netdev"
	"vnet/internal/wire"
	"vnet/pkg/addr"
	"vnet/pkg/ipsocket"
)

// AdapterLocator resolves the adapter (if any) that owns a destination
// IPv4 address, so a reply can be sent from the right interface.
type AdapterLocator interface {
	AdapterForIPv4(addr.IPv4Address) (netdev.Adapter, bool)
}

// Responder holds the registry of live ICMP sockets it delivers to.
type Responder struct {
	sockets *ipsocket.Registry
	log     *log.Logger
}

func NewResponder(sockets *ipsocket.Registry, logger *log.Logger) *Responder {
	return &Responder{sockets: sockets, log: logger}
}

// HandlePacket delivers the packet to every live ICMP socket, then
// answers with an echo reply if applicable. srcMAC is the frame's
// source hardware address, used as the reply's destination MAC; ip is the
// packet's own IPv4 header, and payload is everything after it
// (an ICMP header, optionally with an echo extension).
func (r *Responder) HandlePacket(locator AdapterLocator, srcMAC addr.MACAddress, ip wire.IPv4Header, ipPacket []byte, payload []byte) {
	for _, s := range r.sockets.AllSockets() {
		if s.Protocol() != ipsocket.ProtocolICMP {
			continue
		}
		s.DidReceive(ip.Src, 0, ipPacket)
	}

	typ, _, ok := wire.ParseICMPType(payload)
	if !ok {
		r.log.Printf("icmp: short packet from %s (%d bytes)", ip.Src, len(payload))
		return
	}
	if typ != wire.ICMPTypeEchoRequest {
		return
	}

	echo, ok := wire.ParseICMPEcho(payload)
	if !ok {
		r.log.Printf("icmp: truncated echo request from %s (%d bytes)", ip.Src, len(payload))
		return
	}

	adapter, owned := locator.AdapterForIPv4(ip.Dst)
	if !owned {
		return
	}

	reply := wire.ICMPEcho{
		Type:       wire.ICMPTypeEchoReply,
		Code:       0,
		Identifier: echo.Identifier,
		SeqNum:     echo.SeqNum,
		Payload:    echo.Payload,
	}
	if err := adapter.SendIPv4(srcMAC, ip.Src, wire.IPv4ProtocolICMP, wire.EncodeICMPEcho(reply)); err != nil {
		r.log.Printf("icmp: failed to send echo reply to %s: %v", ip.Src, err)
	}
}
