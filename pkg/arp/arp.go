// Package arp implements the ARP resolver: a process-wide IPv4-to-MAC
// table, request/response handling for the adapters this stack owns,
// and passive learning from responses.
package arp

import (
	"log"
	"sync"

	"vnet/internal/netdev"
	"vnet/internal/wire"
	"vnet/pkg/addr"
)

// Table is the IPv4Address -> MACAddress map, guarded by a single
// lock covering the whole map. It is owned by the network subsystem,
// not a package-level singleton.
type Table struct {
	mu      sync.RWMutex
	entries map[addr.IPv4Address]addr.MACAddress
	log     *log.Logger
}

func NewTable(logger *log.Logger) *Table {
	return &Table{entries: make(map[addr.IPv4Address]addr.MACAddress), log: logger}
}

// Learn inserts or overwrites the entry for ip; last writer wins.
func (t *Table) Learn(ip addr.IPv4Address, mac addr.MACAddress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[ip] = mac
}

// Lookup returns the resolved MAC for ip, if known.
func (t *Table) Lookup(ip addr.IPv4Address) (addr.MACAddress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	mac, ok := t.entries[ip]
	return mac, ok
}

// AdapterLocator resolves which owned adapter (if any) holds a given
// IPv4 address; the network subsystem implements it over its adapter
// set so this package never needs to know how many adapters exist.
type AdapterLocator interface {
	AdapterForIPv4(addr.IPv4Address) (netdev.Adapter, bool)
}

// HandleFrame answers requests for owned addresses, learns from
// responses, and logs and drops anything that isn't a well-formed
// IPv4-over-Ethernet ARP packet.
func (t *Table) HandleFrame(locator AdapterLocator, body []byte) {
	pkt, ok := wire.ParseARPPacket(body)
	if !ok {
		t.log.Printf("arp: frame too short (%d bytes)", len(body))
		return
	}
	if !pkt.IsEthernetIPv4() {
		t.log.Printf("arp: unsupported hardware/protocol type (htype=%d ptype=%#x hlen=%d plen=%d)",
			pkt.HardwareType, pkt.ProtocolType, pkt.HardwareAddrLen, pkt.ProtocolAddrLen)
		return
	}

	switch pkt.Op {
	case wire.ARPRequest:
		adapter, owned := locator.AdapterForIPv4(pkt.TargetProtocol)
		if !owned {
			return
		}
		response := wire.ARPPacket{
			HardwareType:    pkt.HardwareType,
			ProtocolType:    pkt.ProtocolType,
			HardwareAddrLen: pkt.HardwareAddrLen,
			ProtocolAddrLen: pkt.ProtocolAddrLen,
			Op:              wire.ARPResponse,
			SenderHardware:  adapter.MACAddress(),
			SenderProtocol:  adapter.IPv4Address(),
			TargetHardware:  pkt.SenderHardware,
			TargetProtocol:  pkt.SenderProtocol,
		}
		if err := adapter.Send(pkt.SenderHardware, wire.EtherTypeARP, wire.EncodeARPPacket(response)); err != nil {
			t.log.Printf("arp: failed to send response to %s: %v", pkt.SenderProtocol, err)
		}
	case wire.ARPResponse:
		t.Learn(pkt.SenderProtocol, pkt.SenderHardware)
	default:
		t.log.Printf("arp: unknown operation %d, dropping", pkt.Op)
	}
}
