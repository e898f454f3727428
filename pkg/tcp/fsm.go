package tcp

import "vnet/internal/wire"

// HandleSegment applies the connection's state transition table to an
// inbound segment already matched to s by its FourTuple. The guard
// applies uniformly first: a segment whose ack number doesn't match
// our outstanding sequence number is dropped in every state.
func (s *Socket) HandleSegment(seg wire.TCPSegment) {
	s.mu.Lock()
	if seg.AckNum != s.seqNum {
		s.mu.Unlock()
		return
	}
	state := s.state
	s.mu.Unlock()

	payload := uint32(len(seg.Payload))
	flags := seg.Flags
	finSet := flags&wire.TCPFlagFin != 0

	switch state {
	case StateClosed, StateTimeWait:
		s.reset()

	case StateListen:
		// Passive accept past LISTEN is out of scope; a SYN is a
		// no-op, anything else is dropped. Either way the state
		// doesn't move.

	case StateSynSent:
		switch flags {
		case wire.TCPFlagSyn:
			s.ackAndReply(seg, StateSynReceived, wire.TCPFlagAck, false)
		case wire.TCPFlagSyn | wire.TCPFlagAck:
			s.ackAndReply(seg, StateEstablished, wire.TCPFlagAck, true)
		default:
			s.reset()
		}

	case StateSynReceived:
		if flags == wire.TCPFlagAck {
			s.advanceAck(seg)
			s.setConnected(true)
			s.transition(StateEstablished)
		} else {
			s.reset()
		}

	case StateCloseWait:
		s.reset()

	case StateLastAck:
		if flags == wire.TCPFlagAck {
			s.advanceAck(seg)
			s.transition(StateClosed)
		} else {
			s.reset()
		}

	case StateFinWait1:
		switch flags {
		case wire.TCPFlagAck:
			s.advanceAck(seg)
			s.transition(StateFinWait2)
		case wire.TCPFlagFin:
			s.advanceAck(seg)
			s.transition(StateClosing)
		default:
			s.reset()
		}

	case StateFinWait2:
		if flags == wire.TCPFlagFin {
			s.advanceAck(seg)
			s.transition(StateTimeWait)
		} else {
			s.reset()
		}

	case StateClosing:
		if flags == wire.TCPFlagAck {
			s.advanceAck(seg)
			s.transition(StateTimeWait)
		} else {
			s.reset()
		}

	case StateEstablished:
		if finSet {
			if payload > 0 {
				s.didReceive(seg.Payload)
			}
			s.setAckNum(seg.SeqNum + payload + 1)
			s.setConnected(false)
			s.sendReply(wire.TCPFlagAck)
			s.transition(StateCloseWait)
		} else {
			s.setAckNum(seg.SeqNum + payload)
			s.sendReply(wire.TCPFlagAck)
			if payload > 0 {
				s.didReceive(seg.Payload)
			}
		}
	}
}

// advanceAck applies the handshake/teardown ack rule (seq + payload +
// 1, consuming the flag octet) without sending a reply, per the table
// rows that carry no explicit "send" action.
func (s *Socket) advanceAck(seg wire.TCPSegment) {
	s.setAckNum(seg.SeqNum + uint32(len(seg.Payload)) + 1)
}

// ackAndReply advances ack_number by the handshake rule, optionally
// marks the connection established, sends flags with no payload, and
// transitions to next. Used by the two SynSent rows that both reply
// and move state.
func (s *Socket) ackAndReply(seg wire.TCPSegment, next State, flags uint8, establishing bool) {
	s.advanceAck(seg)
	if establishing {
		s.setConnected(true)
	}
	s.sendReply(flags)
	s.transition(next)
}

// reset sends RST and drops the connection to Closed, the response to
// every unexpected segment in any state.
func (s *Socket) reset() {
	s.sendReply(wire.TCPFlagRst)
	s.transition(StateClosed)
}

// sendReply transmits a reply segment with no payload, logging rather
// than propagating failure: the dispatcher has nowhere to return an
// error to.
func (s *Socket) sendReply(flags uint8) {
	if err := s.sendSegment(flags, nil); err != nil {
		s.log.Printf("tcp: failed to send flags=%#x on %s: %v", flags, s.Tuple(), err)
	}
}

func (s *Socket) setAckNum(v uint32) {
	s.mu.Lock()
	s.ackNum = v
	s.mu.Unlock()
}

func (s *Socket) transition(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	// A blocking connect only ever waits on SynSent's outcome; wake it
	// whether that outcome was Established or a reset straight back to
	// Closed, so a refused connection doesn't hang forever.
	if next == StateEstablished || next == StateClosed {
		s.gate.Signal()
	}
}

func (s *Socket) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
