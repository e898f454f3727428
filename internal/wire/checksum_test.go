package wire

import (
	"testing"

	"vnet/pkg/addr"
)

// For payload "abc" the trailing 'c' is treated as the high byte of
// a zero-padded word (0x6300), and appending the resulting checksum
// as one more word after that zero pad makes the whole thing validate
// back to zero.
func TestInternetChecksumOddLength(t *testing.T) {
	data := []byte("abc")
	sum := InternetChecksum(data)

	const want = 0x3b9d // ^(0x6162 + 0x6300) & 0xffff
	if sum != want {
		t.Fatalf("checksum of %q = %#04x, want %#04x", data, sum, want)
	}

	withChecksum := append(append([]byte{}, data...), 0, byte(sum>>8), byte(sum))
	if verify := InternetChecksum(withChecksum); verify != 0 {
		t.Fatalf("checksum did not validate to zero: got %#04x", verify)
	}
}

func TestTCPChecksumValidatesToZero(t *testing.T) {
	src := addr.IPv4FromBytes(10, 0, 0, 2)
	dst := addr.IPv4FromBytes(10, 0, 0, 3)

	segment := EncodeTCPSegment(src, dst, 49152, 80, 0, 0, TCPFlagSyn, []byte("abc"))
	if got := TCPChecksum(src, dst, segment); got != 0 {
		t.Fatalf("checksum over an already-stamped segment did not validate to zero: got %#04x", got)
	}
}
