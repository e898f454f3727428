package netdev

import (
	"fmt"
	"log"
	"net"
	"sync"

	"vnet/internal/parkinglot"
	"vnet/internal/wire"
	"vnet/pkg/addr"
)

// UDPAdapter is the primary-NIC driver: it simulates an Ethernet
// segment over UDP datagrams, with each neighbor reached at a UDP
// endpoint rather than a real MAC-addressed wire. It satisfies
// Adapter so the dispatch loop, ARP resolver, and TCP/ICMP/UDP
// handlers never know the difference between it and Loopback.
type UDPAdapter struct {
	name string
	ip   addr.IPv4Address
	mac  addr.MACAddress

	conn      *net.UDPConn
	neighbors map[addr.MACAddress]*net.UDPAddr

	mu      sync.Mutex
	queue   []Frame
	blocker *parkinglot.Blocker

	log *log.Logger
}

// NeighborConfig is one directly-reachable peer on this simulated
// segment: its MAC (used only to pick the outbound UDP endpoint,
// since this driver has no real Ethernet broadcast domain) and the
// UDP address it listens on.
type NeighborConfig struct {
	MAC     addr.MACAddress
	UDPAddr string
}

// NewUDPAdapter binds listenAddr and starts a background reader that
// queues frames for the dispatch loop, waking blocker on arrival.
func NewUDPAdapter(name string, ip addr.IPv4Address, mac addr.MACAddress, listenAddr string, neighbors []NeighborConfig, blocker *parkinglot.Blocker, logger *log.Logger) (*UDPAdapter, error) {
	laddr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("netdev: resolve %s: %w", listenAddr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("netdev: listen %s: %w", listenAddr, err)
	}

	a := &UDPAdapter{
		name:      name,
		ip:        ip,
		mac:       mac,
		conn:      conn,
		neighbors: make(map[addr.MACAddress]*net.UDPAddr, len(neighbors)),
		blocker:   blocker,
		log:       logger,
	}
	for _, n := range neighbors {
		raddr, err := net.ResolveUDPAddr("udp", n.UDPAddr)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("netdev: resolve neighbor %s: %w", n.UDPAddr, err)
		}
		a.neighbors[n.MAC] = raddr
	}

	go a.readLoop()
	return a, nil
}

func (a *UDPAdapter) readLoop() {
	buf := make([]byte, 65535)
	for {
		n, _, err := a.conn.ReadFromUDP(buf)
		if err != nil {
			return // conn closed
		}
		frame := make(Frame, n)
		copy(frame, buf[:n])

		a.mu.Lock()
		a.queue = append(a.queue, frame)
		a.mu.Unlock()
		a.blocker.Wake()
	}
}

func (a *UDPAdapter) Close() error { return a.conn.Close() }

func (a *UDPAdapter) Name() string                  { return a.name }
func (a *UDPAdapter) IPv4Address() addr.IPv4Address { return a.ip }
func (a *UDPAdapter) MACAddress() addr.MACAddress   { return a.mac }

func (a *UDPAdapter) HasQueuedPackets() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue) > 0
}

func (a *UDPAdapter) DequeuePacket() (Frame, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) == 0 {
		return nil, false
	}
	f := a.queue[0]
	a.queue = a.queue[1:]
	return f, true
}

// SendIPv4 wraps payload in an IPv4 header and hands it to Send.
// destMAC of addr.ZeroMAC means "broadcast to every configured
// neighbor", standing in for the ARP-resolved-then-flooded send this
// driver has no real hardware to narrow down; the simulated segment
// satisfies that trivially since it only ever has a handful of
// neighbors.
func (a *UDPAdapter) SendIPv4(destMAC addr.MACAddress, destIP addr.IPv4Address, proto wire.IPv4Protocol, payload []byte) error {
	hdr := wire.EncodeIPv4Header(wire.IPv4Header{
		TotalLen: uint16(wire.IPv4MinimumSize + len(payload)),
		TTL:      64,
		Protocol: proto,
		Src:      a.ip,
		Dst:      destIP,
	})
	return a.Send(destMAC, wire.EtherTypeIPv4, append(hdr, payload...))
}

func (a *UDPAdapter) Send(destMAC addr.MACAddress, etherType wire.EtherType, payload []byte) error {
	eth := wire.EncodeEthernetHeader(wire.EthernetHeader{Dst: destMAC, Src: a.mac, Type: etherType})
	frame := append(eth, payload...)

	if destMAC.IsZero() || destMAC == addr.BroadcastMAC {
		var firstErr error
		for _, raddr := range a.neighbors {
			if _, err := a.conn.WriteToUDP(frame, raddr); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	raddr, ok := a.neighbors[destMAC]
	if !ok {
		return fmt.Errorf("netdev: no neighbor for %s", destMAC)
	}
	_, err := a.conn.WriteToUDP(frame, raddr)
	return err
}
