package tcp

import (
	"math/rand"
	"sync"

	"vnet/pkg/addr"
)

const (
	firstEphemeralPort = 32768
	lastEphemeralPort  = 60999
	ephemeralRangeSize = lastEphemeralPort - firstEphemeralPort + 1
)

// Registry maps FourTuple -> *Socket under one lock covering lookup,
// insertion, and the ephemeral-port scan.
type Registry struct {
	mu      sync.Mutex
	byTuple map[addr.FourTuple]*Socket
}

func NewRegistry() *Registry {
	return &Registry{byTuple: make(map[addr.FourTuple]*Socket)}
}

// FromTuple returns the socket registered under t, if any. The lock is
// held only for the lookup.
func (r *Registry) FromTuple(t addr.FourTuple) (*Socket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byTuple[t]
	return s, ok
}

// Listen registers s under its current tuple, failing ErrAddressInUse
// if that tuple is already occupied.
func (r *Registry) Listen(t addr.FourTuple, s *Socket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byTuple[t]; exists {
		return ErrAddressInUse
	}
	r.byTuple[t] = s
	return nil
}

// Register inserts s under t if free, failing ErrAddressInUse
// otherwise. Connect uses it when the socket already has a non-zero
// local port bound: every
// connecting socket ends up in the registry regardless of how its
// local port was chosen, since the state machine can only find it by
// tuple lookup otherwise (see DESIGN.md).
func (r *Registry) Register(t addr.FourTuple, s *Socket) error {
	return r.Listen(t, s)
}

// Remove drops t's entry. Destroying a socket must call this exactly
// once.
func (r *Registry) Remove(t addr.FourTuple) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byTuple, t)
}

// AllocateEphemeral picks a uniformly random start port in [32768,
// 60999], linearly probes forward (wrapping within the range) until
// a free tuple is found, inserts s there, and returns the chosen
// port. The whole scan-and-insert happens under one lock acquisition
// so it is atomic.
func (r *Registry) AllocateEphemeral(s *Socket, localIP addr.IPv4Address, peerIP addr.IPv4Address, peerPort uint16) (uint16, error) {
	start := uint16(firstEphemeralPort + rand.Intn(ephemeralRangeSize))

	r.mu.Lock()
	defer r.mu.Unlock()

	port := start
	for {
		tuple := addr.NewFourTuple(localIP, port, peerIP, peerPort)
		if _, occupied := r.byTuple[tuple]; !occupied {
			r.byTuple[tuple] = s
			return port, nil
		}
		port++
		if port > lastEphemeralPort {
			port = firstEphemeralPort
		}
		if port == start {
			return 0, ErrAddressInUse
		}
	}
}
