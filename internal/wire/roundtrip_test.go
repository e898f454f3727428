package wire

import (
	"bytes"
	"testing"

	"vnet/pkg/addr"
)

func TestEthernetHeaderRoundTrip(t *testing.T) {
	want := EthernetHeader{
		Dst:  addr.MACAddress{1, 2, 3, 4, 5, 6},
		Src:  addr.MACAddress{6, 5, 4, 3, 2, 1},
		Type: EtherTypeIPv4,
	}
	encoded := EncodeEthernetHeader(want)
	got, rest, ok := ParseEthernetHeader(encoded)
	if !ok {
		t.Fatalf("parse failed")
	}
	if got != want {
		t.Fatalf("round trip: got %+v, want %+v", got, want)
	}
	if len(rest) != 0 {
		t.Fatalf("unexpected trailing bytes: %d", len(rest))
	}
}

func TestParseEthernetHeaderTooShort(t *testing.T) {
	if _, _, ok := ParseEthernetHeader(make([]byte, EthernetMinimumSize-1)); ok {
		t.Fatalf("expected parse failure for undersized buffer")
	}
}

func TestARPPacketRoundTrip(t *testing.T) {
	want := NewIPv4ARPRequest(
		addr.MACAddress{1, 2, 3, 4, 5, 6},
		addr.IPv4FromBytes(10, 0, 0, 1),
		addr.IPv4FromBytes(10, 0, 0, 2),
	)
	got, ok := ParseARPPacket(EncodeARPPacket(want))
	if !ok {
		t.Fatalf("parse failed")
	}
	if got != want {
		t.Fatalf("round trip: got %+v, want %+v", got, want)
	}
	if !got.IsEthernetIPv4() {
		t.Fatalf("IsEthernetIPv4() = false for a well-formed request")
	}
}

func TestIPv4HeaderRoundTrip(t *testing.T) {
	want := IPv4Header{
		TotalLen: IPv4MinimumSize + 5,
		TTL:      64,
		Protocol: IPv4ProtocolTCP,
		Src:      addr.IPv4FromBytes(192, 168, 5, 2),
		Dst:      addr.IPv4FromBytes(192, 168, 5, 3),
	}
	encoded := EncodeIPv4Header(want)
	got, _, ok := ParseIPv4Header(encoded)
	if !ok {
		t.Fatalf("parse failed")
	}
	if got.TotalLen != want.TotalLen || got.TTL != want.TTL || got.Protocol != want.Protocol ||
		!got.Src.Equal(want.Src) || !got.Dst.Equal(want.Dst) {
		t.Fatalf("round trip: got %+v, want %+v", got, want)
	}
}

func TestICMPEchoRoundTrip(t *testing.T) {
	want := ICMPEcho{
		Type:       ICMPTypeEchoRequest,
		Identifier: 42,
		SeqNum:     7,
		Payload:    []byte("ping"),
	}
	got, ok := ParseICMPEcho(EncodeICMPEcho(want))
	if !ok {
		t.Fatalf("parse failed")
	}
	if got.Type != want.Type || got.Identifier != want.Identifier || got.SeqNum != want.SeqNum ||
		!bytes.Equal(got.Payload, want.Payload) {
		t.Fatalf("round trip: got %+v, want %+v", got, want)
	}
}

func TestUDPHeaderRoundTrip(t *testing.T) {
	want := UDPHeader{SrcPort: 12345, DstPort: 53, Length: UDPHeaderSize}
	got, _, ok := ParseUDPHeader(EncodeUDPHeader(want))
	if !ok {
		t.Fatalf("parse failed")
	}
	if got != want {
		t.Fatalf("round trip: got %+v, want %+v", got, want)
	}
}

func TestTCPSegmentRoundTrip(t *testing.T) {
	src := addr.IPv4FromBytes(10, 0, 0, 2)
	dst := addr.IPv4FromBytes(10, 0, 0, 3)
	payload := []byte("hello")

	encoded := EncodeTCPSegment(src, dst, 49152, 80, 1, 1001, TCPFlagPsh|TCPFlagAck, payload)
	got, ok := ParseTCPSegment(encoded)
	if !ok {
		t.Fatalf("parse failed")
	}
	if got.SrcPort != 49152 || got.DstPort != 80 || got.SeqNum != 1 || got.AckNum != 1001 ||
		got.Flags != TCPFlagPsh|TCPFlagAck || !bytes.Equal(got.Payload, payload) {
		t.Fatalf("round trip: got %+v", got)
	}
}
