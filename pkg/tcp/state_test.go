package tcp

import "testing"

func TestProtocolIsDisconnected(t *testing.T) {
	disconnected := map[State]bool{
		StateClosed:       true,
		StateListen:       false,
		StateSynSent:      false,
		StateSynReceived:  false,
		StateEstablished:  false,
		StateCloseWait:    true,
		StateLastAck:      true,
		StateFinWait1:     true,
		StateFinWait2:     true,
		StateClosing:      true,
		StateTimeWait:     true,
	}
	for state, want := range disconnected {
		if got := ProtocolIsDisconnected(state); got != want {
			t.Errorf("ProtocolIsDisconnected(%s) = %v, want %v", state, got, want)
		}
	}
}
