package ipsocket

import (
	"sort"
	"sync"
)

// Registry is the process-wide, but explicitly owned rather than a
// lazy-initialized singleton, collection of every live IPv4 socket
// plus the single global UDP port table. It is constructed once by
// the network subsystem and handed to the ICMP and UDP handlers.
type Registry struct {
	mu   sync.Mutex
	all  map[*Socket]struct{}
	udp  map[uint16]*Socket
}

func NewRegistry() *Registry {
	return &Registry{
		all: make(map[*Socket]struct{}),
		udp: make(map[uint16]*Socket),
	}
}

// Add registers a socket in the all-sockets set. Every ICMP socket
// must be added here to receive echo/error deliveries.
func (r *Registry) Add(s *Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all[s] = struct{}{}
}

// Remove drops a socket from the all-sockets set and, if bound, the
// UDP port table.
func (r *Registry) Remove(s *Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.all, s)
	for port, bound := range r.udp {
		if bound == s {
			delete(r.udp, port)
		}
	}
}

// AllSockets returns a snapshot slice of every live socket, taken
// under the registry lock so callers (the ICMP responder) can iterate
// and deliver without holding the registry lock across delivery; each
// socket's own lock is taken only for the delivery itself. The slice
// is sorted by local address then local port; sockets that share both
// (such as ICMP sockets, which never set either) come out in no
// defined order.
func (r *Registry) AllSockets() []*Socket {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Socket, 0, len(r.all))
	for s := range r.all {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LocalAddress(), out[j].LocalAddress()
		if !a.Equal(b) {
			return a.Less(b)
		}
		return out[i].LocalPort() < out[j].LocalPort()
	})
	return out
}

// BindUDP registers s as the receiver for port. Overwrites any
// previous binding; port collisions are a UDP-layer concern outside
// this core's scope.
func (r *Registry) BindUDP(port uint16, s *Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.udp[port] = s
}

// FromUDPPort looks up the socket bound to port, if any.
func (r *Registry) FromUDPPort(port uint16) (*Socket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.udp[port]
	return s, ok
}
