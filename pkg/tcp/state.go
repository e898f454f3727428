package tcp

// State is a TCP connection's position in the state machine. The
// zero value is Closed, matching a connection's initial state.
type State int

const (
	StateClosed State = iota
	StateListen
	StateSynSent
	StateSynReceived
	StateEstablished
	StateCloseWait
	StateLastAck
	StateFinWait1
	StateFinWait2
	StateClosing
	StateTimeWait
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateListen:
		return "Listen"
	case StateSynSent:
		return "SynSent"
	case StateSynReceived:
		return "SynReceived"
	case StateEstablished:
		return "Established"
	case StateCloseWait:
		return "CloseWait"
	case StateLastAck:
		return "LastAck"
	case StateFinWait1:
		return "FinWait1"
	case StateFinWait2:
		return "FinWait2"
	case StateClosing:
		return "Closing"
	case StateTimeWait:
		return "TimeWait"
	default:
		return "Unknown"
	}
}

// ProtocolIsDisconnected reports whether s counts as disconnected:
// any state past the point where the local side can still send or
// receive new application data.
func ProtocolIsDisconnected(s State) bool {
	switch s {
	case StateClosed, StateCloseWait, StateLastAck, StateFinWait1, StateFinWait2, StateClosing, StateTimeWait:
		return true
	default:
		return false
	}
}
