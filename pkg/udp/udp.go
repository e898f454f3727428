// Package udp routes inbound UDP datagrams to whatever socket is
// bound to the destination port.
package udp

import (
	"log"

	"vnet/internal/wire"
	"vnet/pkg/ipsocket"
)

type Dispatcher struct {
	sockets *ipsocket.Registry
	log     *log.Logger
}

func NewDispatcher(sockets *ipsocket.Registry, logger *log.Logger) *Dispatcher {
	return &Dispatcher{sockets: sockets, log: logger}
}

// HandlePacket looks the destination port up in the single global
// port table and drops the datagram on a miss. A bound socket receives
// a copy of the whole IPv4 packet, headers included.
func (d *Dispatcher) HandlePacket(ip wire.IPv4Header, ipPacket []byte) {
	hdr, _, ok := wire.ParseUDPHeader(ipPacket[wire.IPv4MinimumSize:])
	if !ok {
		d.log.Printf("udp: short segment from %s (%d bytes)", ip.Src, len(ipPacket))
		return
	}

	s, ok := d.sockets.FromUDPPort(hdr.DstPort)
	if !ok {
		return
	}
	s.DidReceive(ip.Src, hdr.SrcPort, ipPacket)
}
