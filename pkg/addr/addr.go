// Package addr defines the value types that identify hosts, links, and
// TCP connections in the stack: IPv4 addresses, MAC addresses, and the
// four-tuple that names a connection end to end.
package addr

import (
	"fmt"
	"net/netip"
)

// IPv4Address is a 4-octet address with decimal-dotted text form.
// It is a thin alias over netip.Addr, which already gives us equality,
// ordering (via Compare), and hashing for free when used as a map key.
type IPv4Address struct {
	addr netip.Addr
}

// ZeroIPv4 is the unspecified 0.0.0.0 address.
var ZeroIPv4 = IPv4Address{addr: netip.IPv4Unspecified()}

// IPv4FromBytes builds an IPv4Address from four octets.
func IPv4FromBytes(a, b, c, d byte) IPv4Address {
	return IPv4Address{addr: netip.AddrFrom4([4]byte{a, b, c, d})}
}

// IPv4FromSlice builds an IPv4Address from a 4-byte slice.
func IPv4FromSlice(b []byte) (IPv4Address, bool) {
	if len(b) != 4 {
		return IPv4Address{}, false
	}
	return IPv4Address{addr: netip.AddrFrom4([4]byte{b[0], b[1], b[2], b[3]})}, true
}

// ParseIPv4 parses a dotted-decimal string.
func ParseIPv4(s string) (IPv4Address, error) {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return IPv4Address{}, err
	}
	if !a.Is4() {
		return IPv4Address{}, fmt.Errorf("addr: %q is not an IPv4 address", s)
	}
	return IPv4Address{addr: a}, nil
}

// AsSlice returns the four octets, most-significant first. The zero
// value yields 0.0.0.0, matching String.
func (a IPv4Address) AsSlice() []byte {
	if a.IsZero() {
		return make([]byte, 4)
	}
	b := a.addr.As4()
	return b[:]
}

// Std returns the underlying netip.Addr.
func (a IPv4Address) Std() netip.Addr { return a.addr }

// IsZero reports whether the address is the zero value (uninitialized,
// distinct from 0.0.0.0 which is IsUnspecified).
func (a IPv4Address) IsZero() bool { return !a.addr.IsValid() }

// IsUnspecified reports whether the address is 0.0.0.0.
func (a IPv4Address) IsUnspecified() bool { return a.addr == netip.IPv4Unspecified() }

func (a IPv4Address) Equal(b IPv4Address) bool { return a.addr == b.addr }

// Less orders addresses numerically; gives IPv4Address a total order
// for deterministic sorted output such as ipsocket.Registry.AllSockets.
func (a IPv4Address) Less(b IPv4Address) bool { return a.addr.Less(b.addr) }

func (a IPv4Address) String() string {
	if a.IsZero() {
		return "0.0.0.0"
	}
	return a.addr.String()
}

// MACAddress is a 6-octet Ethernet hardware address.
type MACAddress [6]byte

// BroadcastMAC is the all-ones Ethernet broadcast address.
var BroadcastMAC = MACAddress{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ZeroMAC means "unresolved, ask the adapter to ARP-resolve it".
var ZeroMAC = MACAddress{}

func MACFromSlice(b []byte) (MACAddress, bool) {
	if len(b) != 6 {
		return MACAddress{}, false
	}
	var m MACAddress
	copy(m[:], b)
	return m, true
}

func (m MACAddress) IsZero() bool { return m == ZeroMAC }

func (m MACAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// FourTuple identifies a TCP connection end to end. Two tuples are
// equal iff all four fields match; it is comparable so it can be used
// directly as a map key.
type FourTuple struct {
	LocalAddr  IPv4Address
	LocalPort  uint16
	PeerAddr   IPv4Address
	PeerPort   uint16
}

func NewFourTuple(localAddr IPv4Address, localPort uint16, peerAddr IPv4Address, peerPort uint16) FourTuple {
	return FourTuple{LocalAddr: localAddr, LocalPort: localPort, PeerAddr: peerAddr, PeerPort: peerPort}
}

func (t FourTuple) String() string {
	return fmt.Sprintf("%s:%d <-> %s:%d", t.LocalAddr, t.LocalPort, t.PeerAddr, t.PeerPort)
}
