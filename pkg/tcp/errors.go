package tcp

import "github.com/pkg/errors"

// Error taxonomy surfaced from TCP socket operations.
var (
	ErrAddressInUse       = errors.New("tcp: address in use")
	ErrAddressNotAvailable = errors.New("tcp: address not available")
	ErrHostUnreachable    = errors.New("tcp: no route to host")
	ErrInterrupted        = errors.New("tcp: connect interrupted by signal")
	ErrInProgress         = errors.New("tcp: connection attempt in progress")

	// errNotConnected is returned by a blocking Connect that woke up
	// for a reason other than reaching Established (see DESIGN.md).
	errNotConnected = errors.New("tcp: connect woke without reaching established")

	// errClosed is what Send reports once the connection has left the
	// data-transfer-permitted state. Receive does not check the state.
	errClosed = errors.New("tcp: connection is closed")
)
