package wire

import "vnet/pkg/addr"

// IPv4MinimumSize is the length of a header carrying no options.
const IPv4MinimumSize = 20

// IPv4Protocol identifies the transport protocol field.
type IPv4Protocol uint8

const (
	IPv4ProtocolICMP IPv4Protocol = 1
	IPv4ProtocolTCP  IPv4Protocol = 6
	IPv4ProtocolUDP  IPv4Protocol = 17
)

// IPv4Header is a parsed view of an IPv4 header without options.
type IPv4Header struct {
	Version   uint8
	IHL       uint8 // header length in 32-bit words
	TOS       uint8
	TotalLen  uint16
	ID        uint16
	Flags     uint8
	FragOff   uint16
	TTL       uint8
	Protocol  IPv4Protocol
	Checksum  uint16
	Src       addr.IPv4Address
	Dst       addr.IPv4Address
}

// ParseIPv4Header length-checks b and returns the header plus the
// remaining bytes (options + payload, or just payload since this
// stack never emits options and none of the upstream handlers ever
// see one in practice).
func ParseIPv4Header(b []byte) (IPv4Header, []byte, bool) {
	if len(b) < IPv4MinimumSize {
		return IPv4Header{}, nil, false
	}
	var h IPv4Header
	h.Version = b[0] >> 4
	h.IHL = b[0] & 0x0f
	h.TOS = b[1]
	h.TotalLen = uint16(b[2])<<8 | uint16(b[3])
	h.ID = uint16(b[4])<<8 | uint16(b[5])
	h.Flags = b[6] >> 5
	h.FragOff = (uint16(b[6]&0x1f) << 8) | uint16(b[7])
	h.TTL = b[8]
	h.Protocol = IPv4Protocol(b[9])
	h.Checksum = uint16(b[10])<<8 | uint16(b[11])
	src, _ := addr.IPv4FromSlice(b[12:16])
	dst, _ := addr.IPv4FromSlice(b[16:20])
	h.Src, h.Dst = src, dst

	hdrLen := int(h.IHL) * 4
	if hdrLen < IPv4MinimumSize || len(b) < hdrLen {
		return IPv4Header{}, nil, false
	}
	return h, b[hdrLen:], true
}

// EncodeIPv4Header serializes h (options-free, IHL fixed at 5 words)
// and stamps the header checksum.
func EncodeIPv4Header(h IPv4Header) []byte {
	buf := make([]byte, IPv4MinimumSize)
	buf[0] = (4 << 4) | 5
	buf[1] = h.TOS
	buf[2], buf[3] = byte(h.TotalLen>>8), byte(h.TotalLen)
	buf[4], buf[5] = byte(h.ID>>8), byte(h.ID)
	flagsFrag := (uint16(h.Flags) << 13) | (h.FragOff & 0x1fff)
	buf[6], buf[7] = byte(flagsFrag>>8), byte(flagsFrag)
	buf[8] = h.TTL
	buf[9] = byte(h.Protocol)
	buf[10], buf[11] = 0, 0
	copy(buf[12:16], h.Src.AsSlice())
	copy(buf[16:20], h.Dst.AsSlice())
	sum := InternetChecksum(buf)
	buf[10], buf[11] = byte(sum>>8), byte(sum)
	return buf
}
