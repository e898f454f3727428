package tcp

import (
	"context"
	"io"
	"log"
	"testing"

	"vnet/internal/netdev"
	"vnet/internal/wire"
	"vnet/pkg/addr"
)

// fakeAdapter records every segment handed to SendIPv4 instead of
// putting it on a wire, so tests can assert on exactly what the state
// machine emitted.
type fakeAdapter struct {
	ip   addr.IPv4Address
	mac  addr.MACAddress
	sent []wire.TCPSegment
}

func (f *fakeAdapter) Name() string                  { return "fake" }
func (f *fakeAdapter) IPv4Address() addr.IPv4Address { return f.ip }
func (f *fakeAdapter) MACAddress() addr.MACAddress   { return f.mac }
func (f *fakeAdapter) HasQueuedPackets() bool        { return false }
func (f *fakeAdapter) DequeuePacket() (netdev.Frame, bool) { return nil, false }

func (f *fakeAdapter) SendIPv4(_ addr.MACAddress, _ addr.IPv4Address, _ wire.IPv4Protocol, payload []byte) error {
	seg, ok := wire.ParseTCPSegment(payload)
	if !ok {
		panic("fakeAdapter: emitted an unparseable TCP segment")
	}
	f.sent = append(f.sent, seg)
	return nil
}

func (f *fakeAdapter) Send(addr.MACAddress, wire.EtherType, []byte) error { return nil }

func (f *fakeAdapter) last() wire.TCPSegment { return f.sent[len(f.sent)-1] }

// fakeResolver hands out one adapter for both bind and routing, which
// is all a single-interface test scenario needs.
type fakeResolver struct{ adapter *fakeAdapter }

func (r *fakeResolver) AdapterForIPv4(ip addr.IPv4Address) (netdev.Adapter, bool) {
	if ip.Equal(r.adapter.ip) {
		return r.adapter, true
	}
	return nil, false
}

func (r *fakeResolver) AdapterForRoute(addr.IPv4Address) (netdev.Adapter, bool) {
	return r.adapter, true
}

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

// newEstablishedSocket drives an active open to completion and
// returns the resulting socket plus its adapter for further
// assertions.
func newEstablishedSocket(t *testing.T) (*Socket, *fakeAdapter) {
	t.Helper()

	localIP := addr.IPv4FromBytes(10, 0, 0, 2)
	peerIP := addr.IPv4FromBytes(10, 0, 0, 3)
	adapter := &fakeAdapter{ip: localIP, mac: addr.MACAddress{1, 2, 3, 4, 5, 6}}
	resolver := &fakeResolver{adapter: adapter}

	s := NewSocket(NewRegistry(), resolver, testLogger())
	if err := s.Bind(localIP, 49152); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := s.Connect(context.Background(), peerIP, 80, false); err != ErrInProgress {
		t.Fatalf("connect: got %v, want ErrInProgress", err)
	}

	syn := adapter.last()
	if syn.Flags != wire.TCPFlagSyn || syn.SeqNum != 0 {
		t.Fatalf("initial SYN: got flags=%#x seq=%d, want SYN seq=0", syn.Flags, syn.SeqNum)
	}

	s.HandleSegment(wire.TCPSegment{
		Flags:  wire.TCPFlagSyn | wire.TCPFlagAck,
		SeqNum: 1000,
		AckNum: 1,
	})

	ack := adapter.last()
	if ack.Flags != wire.TCPFlagAck || ack.SeqNum != 1 || ack.AckNum != 1001 {
		t.Fatalf("handshake ACK: got flags=%#x seq=%d ack=%d, want ACK seq=1 ack=1001", ack.Flags, ack.SeqNum, ack.AckNum)
	}
	if s.State() != StateEstablished {
		t.Fatalf("state: got %s, want Established", s.State())
	}
	if !s.Connected() {
		t.Fatalf("connected: got false, want true")
	}
	return s, adapter
}

func TestActiveOpen(t *testing.T) {
	newEstablishedSocket(t)
}

func TestDataTransfer(t *testing.T) {
	s, adapter := newEstablishedSocket(t)

	n, err := s.Send([]byte("hi"))
	if err != nil || n != 2 {
		t.Fatalf("send: n=%d err=%v", n, err)
	}
	push := adapter.last()
	if push.Flags != wire.TCPFlagPsh|wire.TCPFlagAck || push.SeqNum != 1 || push.AckNum != 1001 || string(push.Payload) != "hi" {
		t.Fatalf("send segment: got %+v", push)
	}
	if s.SequenceNumber() != 3 {
		t.Fatalf("sequence_number after send: got %d, want 3", s.SequenceNumber())
	}

	s.HandleSegment(wire.TCPSegment{
		Flags:   wire.TCPFlagAck,
		SeqNum:  1001,
		AckNum:  3,
		Payload: []byte("ok"),
	})

	ack := adapter.last()
	if ack.Flags != wire.TCPFlagAck || ack.SeqNum != 3 || ack.AckNum != 1003 {
		t.Fatalf("reply ACK: got %+v", ack)
	}

	buf := make([]byte, 2)
	got, err := s.Receive(buf)
	if err != nil || string(buf[:got]) != "ok" {
		t.Fatalf("receive: got %q err=%v, want \"ok\"", buf[:got], err)
	}
}

func TestPeerClose(t *testing.T) {
	s, adapter := newEstablishedSocket(t)
	s.Send([]byte("hi"))
	s.HandleSegment(wire.TCPSegment{Flags: wire.TCPFlagAck, SeqNum: 1001, AckNum: 3, Payload: []byte("ok")})

	s.HandleSegment(wire.TCPSegment{
		Flags:  wire.TCPFlagFin,
		SeqNum: 1003,
		AckNum: 3,
	})

	ack := adapter.last()
	if ack.Flags != wire.TCPFlagAck || ack.SeqNum != 3 || ack.AckNum != 1004 {
		t.Fatalf("FIN ack: got %+v", ack)
	}
	if s.State() != StateCloseWait {
		t.Fatalf("state: got %s, want CloseWait", s.State())
	}
	if s.Connected() {
		t.Fatalf("connected: got true, want false")
	}
	if !s.ProtocolIsDisconnected() {
		t.Fatalf("protocol_is_disconnected: got false, want true")
	}
}

// TestUnexpectedFlagsInEstablished checks that a lone SYN with a
// correct ack number in Established takes the non-FIN branch.
func TestUnexpectedFlagsInEstablished(t *testing.T) {
	s, adapter := newEstablishedSocket(t)

	s.HandleSegment(wire.TCPSegment{
		Flags:  wire.TCPFlagSyn,
		SeqNum: 1001,
		AckNum: 1,
	})

	ack := adapter.last()
	if ack.Flags != wire.TCPFlagAck || ack.AckNum != 1001 {
		t.Fatalf("lone SYN reply: got %+v, want ack=seq (no +1)", ack)
	}
	if s.State() != StateEstablished {
		t.Fatalf("state: got %s, want Established (unchanged)", s.State())
	}
}

func TestGuardDropsMismatchedAck(t *testing.T) {
	s, adapter := newEstablishedSocket(t)
	before := len(adapter.sent)

	s.HandleSegment(wire.TCPSegment{
		Flags:  wire.TCPFlagAck,
		SeqNum: 1001,
		AckNum: 999, // does not match socket.sequence_number (1)
	})

	if len(adapter.sent) != before {
		t.Fatalf("guard: segment with wrong ack was not dropped, sent %d more segments", len(adapter.sent)-before)
	}
}
