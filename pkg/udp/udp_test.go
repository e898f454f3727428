package udp

import (
	"bytes"
	"io"
	"log"
	"testing"

	"vnet/internal/wire"
	"vnet/pkg/addr"
	"vnet/pkg/ipsocket"
)

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func buildDatagram(t *testing.T, src, dst addr.IPv4Address, srcPort, dstPort uint16, payload []byte) (wire.IPv4Header, []byte) {
	t.Helper()
	udpHdr := wire.EncodeUDPHeader(wire.UDPHeader{
		SrcPort: srcPort,
		DstPort: dstPort,
		Length:  uint16(wire.UDPHeaderSize + len(payload)),
	})
	segment := append(udpHdr, payload...)
	ip := wire.IPv4Header{Src: src, Dst: dst, Protocol: wire.IPv4ProtocolUDP}
	ipHdr := wire.EncodeIPv4Header(wire.IPv4Header{
		TotalLen: uint16(wire.IPv4MinimumSize + len(segment)),
		Protocol: wire.IPv4ProtocolUDP,
		Src:      src,
		Dst:      dst,
	})
	return ip, append(ipHdr, segment...)
}

func TestHandlePacketDeliversToBoundPort(t *testing.T) {
	registry := ipsocket.NewRegistry()
	sock := ipsocket.New(ipsocket.TypeDgram, ipsocket.ProtocolUDP, 8)
	registry.BindUDP(9000, sock)
	dispatcher := NewDispatcher(registry, testLogger())

	src := addr.IPv4FromBytes(10, 0, 0, 5)
	dst := addr.IPv4FromBytes(10, 0, 0, 1)
	ip, ipPacket := buildDatagram(t, src, dst, 5000, 9000, []byte("hello"))

	dispatcher.HandlePacket(ip, ipPacket)

	d, ok := sock.Receive()
	if !ok {
		t.Fatalf("expected a buffered datagram, got none")
	}
	if !d.SrcAddr.Equal(src) || d.SrcPort != 5000 {
		t.Fatalf("datagram source: got %s:%d, want %s:%d", d.SrcAddr, d.SrcPort, src, 5000)
	}
	if !bytes.Equal(d.Payload, ipPacket) {
		t.Fatalf("payload: got %q, want the whole IPv4 packet %q", d.Payload, ipPacket)
	}
}

func TestHandlePacketDropsOnPortMiss(t *testing.T) {
	registry := ipsocket.NewRegistry()
	sock := ipsocket.New(ipsocket.TypeDgram, ipsocket.ProtocolUDP, 8)
	registry.BindUDP(9000, sock)
	dispatcher := NewDispatcher(registry, testLogger())

	src := addr.IPv4FromBytes(10, 0, 0, 5)
	dst := addr.IPv4FromBytes(10, 0, 0, 1)
	ip, ipPacket := buildDatagram(t, src, dst, 5000, 9999, []byte("nobody home"))

	dispatcher.HandlePacket(ip, ipPacket)

	if _, ok := sock.Receive(); ok {
		t.Fatalf("socket bound to a different port received a datagram meant for another port")
	}
}

func TestHandlePacketDropsShortSegment(t *testing.T) {
	registry := ipsocket.NewRegistry()
	sock := ipsocket.New(ipsocket.TypeDgram, ipsocket.ProtocolUDP, 8)
	registry.BindUDP(9000, sock)
	dispatcher := NewDispatcher(registry, testLogger())

	dst := addr.IPv4FromBytes(10, 0, 0, 1)
	ip := wire.IPv4Header{Src: addr.IPv4FromBytes(10, 0, 0, 5), Dst: dst}
	ipHdr := wire.EncodeIPv4Header(wire.IPv4Header{
		TotalLen: uint16(wire.IPv4MinimumSize + 3),
		Protocol: wire.IPv4ProtocolUDP,
		Src:      ip.Src,
		Dst:      dst,
	})
	ipPacket := append(ipHdr, []byte{1, 2, 3}...)

	dispatcher.HandlePacket(ip, ipPacket)

	if _, ok := sock.Receive(); ok {
		t.Fatalf("a short segment should have been dropped, not delivered")
	}
}
