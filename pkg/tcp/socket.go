// Package tcp implements the TCP socket, the four-tuple registry, and
// the state machine that together form the connection-oriented half
// of the stack.
package tcp

import (
	"context"
	"log"
	"sync"

	"github.com/smallnest/ringbuffer"

	"vnet/internal/netdev"
	"vnet/internal/parkinglot"
	"vnet/internal/wire"
	"vnet/pkg/addr"
)

// receiveWindow is the fixed advertised window; the per-socket
// receive buffer is sized to match it since this stack never
// advertises anything else.
const receiveWindow = 1024

// AddressResolver locates the adapter that owns a local address, and
// the adapter that has a route to a peer, without pkg/tcp needing to
// know how many adapters exist or how routing works. The network
// subsystem implements this over its adapter set.
type AddressResolver interface {
	AdapterForIPv4(addr.IPv4Address) (netdev.Adapter, bool)
	AdapterForRoute(peer addr.IPv4Address) (netdev.Adapter, bool)
}

// Socket is a single TCP connection's control block.
type Socket struct {
	mu sync.Mutex

	tuple     addr.FourTuple
	state     State
	seqNum    uint32
	ackNum    uint32
	connected bool
	adapter   netdev.Adapter // weak: never closed or owned by Socket

	recvBuf *ringbuffer.RingBuffer
	gate    *parkinglot.ConnectGate

	registry *Registry
	resolver AddressResolver
	log      *log.Logger
}

// NewSocket creates a socket in the Closed state.
func NewSocket(registry *Registry, resolver AddressResolver, logger *log.Logger) *Socket {
	return &Socket{
		state:    StateClosed,
		recvBuf:  ringbuffer.New(receiveWindow),
		gate:     parkinglot.NewConnectGate(),
		registry: registry,
		resolver: resolver,
		log:      logger,
	}
}

func (s *Socket) Tuple() addr.FourTuple {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tuple
}

func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Socket) SequenceNumber() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqNum
}

func (s *Socket) AckNumber() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ackNum
}

func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// ProtocolIsDisconnected reports whether this socket's current state
// counts as disconnected.
func (s *Socket) ProtocolIsDisconnected() bool {
	return ProtocolIsDisconnected(s.State())
}

// Close removes the socket from the registry under its current tuple
// and marks it Closed. It does not attempt a graceful FIN exchange;
// callers that want one should let the state machine drive the
// connection to CloseWait/TimeWait first and Close only once it's
// already disconnected.
func (s *Socket) Close() {
	s.mu.Lock()
	tuple := s.tuple
	s.state = StateClosed
	s.connected = false
	s.mu.Unlock()

	s.registry.Remove(tuple)
}

// Bind resolves the adapter that owns the socket's local IP, failing
// ErrAddressNotAvailable if none does.
func (s *Socket) Bind(localIP addr.IPv4Address, localPort uint16) error {
	adapter, ok := s.resolver.AdapterForIPv4(localIP)
	if !ok {
		return ErrAddressNotAvailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapter = adapter
	s.tuple.LocalAddr = localIP
	s.tuple.LocalPort = localPort
	return nil
}

// Listen registers the socket under its current tuple and transitions
// to Listen. Passive accept past Listen is out of scope.
func (s *Socket) Listen() error {
	s.mu.Lock()
	tuple := s.tuple
	s.mu.Unlock()

	if err := s.registry.Listen(tuple, s); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = StateListen
	s.mu.Unlock()
	return nil
}

// Connect sends a SYN and, when blocking is true, parks the calling
// goroutine until the state machine marks the connection
// Established, returning ErrInterrupted if ctx is cancelled first;
// when false it returns ErrInProgress immediately after handing the
// SYN off to the state machine.
func (s *Socket) Connect(ctx context.Context, peerIP addr.IPv4Address, peerPort uint16, blocking bool) error {
	s.mu.Lock()
	if s.adapter == nil {
		adapter, ok := s.resolver.AdapterForRoute(peerIP)
		if !ok {
			s.mu.Unlock()
			return ErrHostUnreachable
		}
		s.adapter = adapter
		s.tuple.LocalAddr = adapter.IPv4Address()
	}
	s.tuple.PeerAddr = peerIP
	s.tuple.PeerPort = peerPort
	localPort := s.tuple.LocalPort
	tupleSoFar := s.tuple
	s.mu.Unlock()

	if localPort == 0 {
		port, err := s.registry.AllocateEphemeral(s, tupleSoFar.LocalAddr, peerIP, peerPort)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.tuple.LocalPort = port
		s.mu.Unlock()
	} else {
		if err := s.registry.Register(tupleSoFar, s); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.seqNum = 0
	s.ackNum = 0
	s.mu.Unlock()

	if err := s.sendSegment(wire.TCPFlagSyn, nil); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = StateSynSent
	s.mu.Unlock()

	if !blocking {
		return ErrInProgress
	}

	if !s.gate.Wait(ctx, 0) {
		return ErrInterrupted
	}
	if !s.Connected() {
		return errNotConnected
	}
	return nil
}

// Send transmits payload as a PUSH|ACK segment and returns the
// number of bytes sent.
func (s *Socket) Send(payload []byte) (int, error) {
	if s.ProtocolIsDisconnected() {
		return 0, errClosed
	}
	if err := s.sendSegment(wire.TCPFlagPsh|wire.TCPFlagAck, payload); err != nil {
		return 0, err
	}
	return len(payload), nil
}

// Receive copies every byte currently buffered into out, returning
// the number of bytes copied (0 when nothing is buffered). Payloads of
// separate segments are concatenated in arrival order; segment
// boundaries are not kept, so when several segments are buffered one
// call returns all of them, not a single segment's payload. It is a
// programming error to pass a buffer smaller than what is queued,
// treated as a bug in the caller rather than a recoverable condition.
func (s *Socket) Receive(out []byte) (int, error) {
	available := s.recvBuf.Length()
	if available == 0 {
		return 0, nil
	}
	if len(out) < available {
		panic("tcp: receive buffer too small for buffered payload")
	}
	n, err := s.recvBuf.Read(out[:available])
	if err != nil {
		return 0, err
	}
	return n, nil
}

// didReceive is called by the state machine to buffer a payload for
// Receive to drain.
func (s *Socket) didReceive(payload []byte) {
	if len(payload) == 0 {
		return
	}
	if _, err := s.recvBuf.Write(payload); err != nil {
		s.log.Printf("tcp: dropping %d bytes, receive buffer full: %v", len(payload), err)
	}
}

// sendSegment builds and transmits one TCP segment using the
// socket's current sequence/ack numbers, then advances the sequence
// number: a bare SYN consumes one sequence number, anything else
// advances by the payload length.
func (s *Socket) sendSegment(flags uint8, payload []byte) error {
	s.mu.Lock()
	adapter := s.adapter
	tuple := s.tuple
	seq := s.seqNum
	ack := s.ackNum
	s.mu.Unlock()

	if adapter == nil {
		return ErrAddressNotAvailable
	}

	segment := wire.EncodeTCPSegment(tuple.LocalAddr, tuple.PeerAddr, tuple.LocalPort, tuple.PeerPort, seq, ack, flags, payload)
	if err := adapter.SendIPv4(addr.ZeroMAC, tuple.PeerAddr, wire.IPv4ProtocolTCP, segment); err != nil {
		return err
	}

	s.mu.Lock()
	if flags == wire.TCPFlagSyn {
		s.seqNum++
	} else {
		s.seqNum += uint32(len(payload))
	}
	s.mu.Unlock()
	return nil
}
