package tcp

import (
	"testing"

	"vnet/pkg/addr"
)

func TestListenRejectsDuplicateTuple(t *testing.T) {
	r := NewRegistry()
	tuple := addr.NewFourTuple(addr.IPv4FromBytes(10, 0, 0, 1), 8080, addr.ZeroIPv4, 0)

	if err := r.Listen(tuple, &Socket{}); err != nil {
		t.Fatalf("first listen: %v", err)
	}
	if err := r.Listen(tuple, &Socket{}); err != ErrAddressInUse {
		t.Fatalf("second listen: got %v, want ErrAddressInUse", err)
	}
}

func TestFromTupleRoundTrip(t *testing.T) {
	r := NewRegistry()
	tuple := addr.NewFourTuple(addr.IPv4FromBytes(10, 0, 0, 1), 8080, addr.ZeroIPv4, 0)
	s := &Socket{}

	if err := r.Listen(tuple, s); err != nil {
		t.Fatalf("listen: %v", err)
	}
	got, ok := r.FromTuple(tuple)
	if !ok || got != s {
		t.Fatalf("from_tuple: got (%v, %v), want (%v, true)", got, ok, s)
	}

	r.Remove(tuple)
	if _, ok := r.FromTuple(tuple); ok {
		t.Fatalf("from_tuple after remove: entry still present")
	}
}

// TestAllocateEphemeralExhaustion checks that exactly
// ephemeralRangeSize consecutive calls succeed with distinct in-range
// ports, and the next one fails.
func TestAllocateEphemeralExhaustion(t *testing.T) {
	r := NewRegistry()
	localIP := addr.IPv4FromBytes(10, 0, 0, 1)
	peerIP := addr.IPv4FromBytes(10, 0, 0, 2)

	seen := make(map[uint16]bool, ephemeralRangeSize)
	for i := 0; i < ephemeralRangeSize; i++ {
		port, err := r.AllocateEphemeral(&Socket{}, localIP, peerIP, 80)
		if err != nil {
			t.Fatalf("allocation %d: unexpected error %v", i, err)
		}
		if port < firstEphemeralPort || port > lastEphemeralPort {
			t.Fatalf("allocation %d: port %d out of range", i, port)
		}
		if seen[port] {
			t.Fatalf("allocation %d: duplicate port %d", i, port)
		}
		seen[port] = true
	}
	if len(seen) != ephemeralRangeSize {
		t.Fatalf("allocated %d distinct ports, want %d", len(seen), ephemeralRangeSize)
	}

	if _, err := r.AllocateEphemeral(&Socket{}, localIP, peerIP, 80); err != ErrAddressInUse {
		t.Fatalf("allocation %d (exhausted): got %v, want ErrAddressInUse", ephemeralRangeSize, err)
	}
}
