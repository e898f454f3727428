// Package netstack wires the leaf components (wire codecs, ARP
// resolver, socket registries, ICMP/UDP/TCP handlers, dispatch loop)
// into a single owned value instead of package-level singletons: a
// Stack constructed once at startup from configuration, and torn
// down at shutdown.
package netstack

import (
	"context"
	"fmt"
	"log"

	"vnet/internal/config"
	"vnet/internal/netdev"
	"vnet/internal/parkinglot"
	"vnet/pkg/addr"
	"vnet/pkg/arp"
	"vnet/pkg/dispatch"
	"vnet/pkg/icmp"
	"vnet/pkg/ipsocket"
	"vnet/pkg/tcp"
	"vnet/pkg/udp"
)

// Stack is the network subsystem: every adapter it owns, the shared
// tables and registries the handlers read and write, and the
// dispatch loop that drives them.
type Stack struct {
	adapters []netdev.Adapter

	ARP      *arp.Table
	TCP      *tcp.Registry
	IPSocket *ipsocket.Registry

	blocker *parkinglot.Blocker
	loop    *dispatch.Loop

	log *log.Logger
}

// New brings up every adapter named in cfg and wires the handlers that
// will run against them. It does not start the dispatch loop; call
// Run for that.
func New(cfg config.Config, logger *log.Logger) (*Stack, error) {
	if logger == nil {
		logger = log.Default()
	}

	blocker := parkinglot.NewBlocker()
	s := &Stack{
		ARP:      arp.NewTable(logger),
		TCP:      tcp.NewRegistry(),
		IPSocket: ipsocket.NewRegistry(),
		blocker:  blocker,
		log:      logger,
	}

	var loopbackFirst []netdev.Adapter
	var rest []netdev.Adapter
	for _, ifaceCfg := range cfg.Interfaces {
		ip, err := addr.ParseIPv4(ifaceCfg.IP)
		if err != nil {
			return nil, fmt.Errorf("netstack: interface %s: %w", ifaceCfg.Name, err)
		}

		if ifaceCfg.Loopback {
			loopbackFirst = append(loopbackFirst, netdev.NewLoopback(ip, blocker))
			continue
		}

		mac, err := config.ParseMAC(ifaceCfg.MAC)
		if err != nil {
			return nil, fmt.Errorf("netstack: interface %s: %w", ifaceCfg.Name, err)
		}
		var neighbors []netdev.NeighborConfig
		for _, n := range ifaceCfg.Neighbors {
			nmac, err := config.ParseMAC(n.MAC)
			if err != nil {
				return nil, fmt.Errorf("netstack: interface %s neighbor: %w", ifaceCfg.Name, err)
			}
			neighbors = append(neighbors, netdev.NeighborConfig{MAC: nmac, UDPAddr: n.UDPAddr})
		}
		nic, err := netdev.NewUDPAdapter(ifaceCfg.Name, ip, mac, ifaceCfg.ListenAddr, neighbors, blocker, logger)
		if err != nil {
			return nil, fmt.Errorf("netstack: interface %s: %w", ifaceCfg.Name, err)
		}
		rest = append(rest, nic)
	}
	if len(loopbackFirst) == 0 {
		return nil, fmt.Errorf("netstack: config defines no loopback interface")
	}
	s.adapters = append(loopbackFirst, rest...)

	icmpResp := icmp.NewResponder(s.IPSocket, logger)
	udpDisp := udp.NewDispatcher(s.IPSocket, logger)
	s.loop = dispatch.New(s.adapters, blocker, s.ARP, s.TCP, icmpResp, udpDisp, s, logger)

	return s, nil
}

// Run starts the dispatch loop and blocks until ctx is cancelled.
func (s *Stack) Run(ctx context.Context) error {
	return s.loop.Run(ctx)
}

// AdapterForIPv4 implements arp.AdapterLocator and icmp.AdapterLocator:
// the adapter that owns addr, if any.
func (s *Stack) AdapterForIPv4(a addr.IPv4Address) (netdev.Adapter, bool) {
	for _, adapter := range s.adapters {
		if adapter.IPv4Address().Equal(a) {
			return adapter, true
		}
	}
	return nil, false
}

// AdapterForRoute implements tcp.AddressResolver. Real route lookup
// is out of scope: a peer address owned by one of this stack's
// adapters resolves to that adapter (loopback included), and any
// other peer resolves to the first non-loopback adapter, mirroring a
// host with one real NIC and a default route through it.
func (s *Stack) AdapterForRoute(peer addr.IPv4Address) (netdev.Adapter, bool) {
	if adapter, ok := s.AdapterForIPv4(peer); ok {
		return adapter, true
	}
	for _, adapter := range s.adapters {
		if adapter.Name() != "lo" {
			return adapter, true
		}
	}
	return nil, false
}

// NewTCPSocket constructs a socket bound to this stack's registry and
// resolver, ready for Bind/Listen/Connect.
func (s *Stack) NewTCPSocket() *tcp.Socket {
	return tcp.NewSocket(s.TCP, s, s.log)
}

// PrimaryAddress returns the address a caller should bind to when it
// has no particular local address in mind: the same first
// non-loopback adapter AdapterForRoute falls back to, or the loopback
// address if that's the only adapter configured.
func (s *Stack) PrimaryAddress() addr.IPv4Address {
	for _, adapter := range s.adapters {
		if adapter.Name() != "lo" {
			return adapter.IPv4Address()
		}
	}
	return s.adapters[0].IPv4Address()
}

// NewICMPSocket constructs a raw ICMP socket registered for delivery.
func (s *Stack) NewICMPSocket() *ipsocket.Socket {
	sock := ipsocket.New(ipsocket.TypeRaw, ipsocket.ProtocolICMP, 64)
	s.IPSocket.Add(sock)
	return sock
}

// NewUDPSocket constructs a UDP socket bound to localPort.
func (s *Stack) NewUDPSocket(localPort uint16) *ipsocket.Socket {
	sock := ipsocket.New(ipsocket.TypeDgram, ipsocket.ProtocolUDP, 64)
	sock.SetLocalPort(localPort)
	s.IPSocket.Add(sock)
	s.IPSocket.BindUDP(localPort, sock)
	return sock
}
