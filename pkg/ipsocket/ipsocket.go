// Package ipsocket implements a generic IPv4 socket base: receive
// buffering, port/address accessors, the set of all live sockets,
// and the UDP port registry. TCP sockets (pkg/tcp) have their own
// socket type and receive path with TCP-specific sequencing and are
// not registered here; the ICMP and UDP sockets are.
package ipsocket

import (
	"sync"

	"vnet/pkg/addr"
)

// Type mirrors the socket type constants a BSD-style socket() call
// would take.
type Type int

const (
	TypeStream Type = iota // SOCK_STREAM
	TypeDgram              // SOCK_DGRAM
	TypeRaw                // SOCK_RAW, used for ICMP sockets
)

// Protocol is the IPv4 protocol number the socket speaks.
type Protocol uint8

const (
	ProtocolICMP Protocol = 1
	ProtocolTCP  Protocol = 6
	ProtocolUDP  Protocol = 17
)

// Datagram is one buffered inbound delivery: source endpoint plus a
// private copy of the payload, since a Go slice would otherwise alias
// the dispatcher's working buffer.
type Datagram struct {
	SrcAddr addr.IPv4Address
	SrcPort uint16
	Payload []byte
}

// Socket is the generic IPv4 socket base. It is embedded by protocol-
// specific sockets that need nothing fancier than "buffer whatever
// arrives, let the owner drain it".
type Socket struct {
	mu         sync.Mutex
	localAddr  addr.IPv4Address
	localPort  uint16
	peerAddr   addr.IPv4Address
	peerPort   uint16
	typ        Type
	proto      Protocol
	recvQueue  []Datagram
	maxBuffered int
}

// New creates a socket base. maxBuffered bounds the receive queue;
// once full, DidReceive drops the oldest buffered datagram rather than
// blocking the dispatcher, which must never block on socket delivery.
func New(typ Type, proto Protocol, maxBuffered int) *Socket {
	return &Socket{typ: typ, proto: proto, maxBuffered: maxBuffered}
}

func (s *Socket) Lock()   { s.mu.Lock() }
func (s *Socket) Unlock() { s.mu.Unlock() }

func (s *Socket) LocalAddress() addr.IPv4Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localAddr
}

func (s *Socket) LocalPort() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localPort
}

func (s *Socket) PeerAddress() addr.IPv4Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerAddr
}

func (s *Socket) PeerPort() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerPort
}

func (s *Socket) SetLocalAddress(a addr.IPv4Address) {
	s.mu.Lock()
	s.localAddr = a
	s.mu.Unlock()
}

func (s *Socket) SetLocalPort(p uint16) {
	s.mu.Lock()
	s.localPort = p
	s.mu.Unlock()
}

func (s *Socket) SetPeerAddress(a addr.IPv4Address) {
	s.mu.Lock()
	s.peerAddr = a
	s.mu.Unlock()
}

func (s *Socket) SetPeerPort(p uint16) {
	s.mu.Lock()
	s.peerPort = p
	s.mu.Unlock()
}

func (s *Socket) Type() Type         { return s.typ }
func (s *Socket) Protocol() Protocol { return s.proto }

// DidReceive buffers a copy of buffer for later draining by Receive.
func (s *Socket) DidReceive(srcAddr addr.IPv4Address, srcPort uint16, buffer []byte) {
	cp := make([]byte, len(buffer))
	copy(cp, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxBuffered > 0 && len(s.recvQueue) >= s.maxBuffered {
		s.recvQueue = s.recvQueue[1:]
	}
	s.recvQueue = append(s.recvQueue, Datagram{SrcAddr: srcAddr, SrcPort: srcPort, Payload: cp})
}

// Receive pops the oldest buffered datagram, if any.
func (s *Socket) Receive() (Datagram, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recvQueue) == 0 {
		return Datagram{}, false
	}
	d := s.recvQueue[0]
	s.recvQueue = s.recvQueue[1:]
	return d, true
}
