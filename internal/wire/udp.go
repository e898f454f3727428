package wire

// UDPHeaderSize is the fixed UDP header: 2 src port + 2 dst port +
// 2 length + 2 checksum.
const UDPHeaderSize = 8

// UDPHeader is a parsed UDP header.
type UDPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16
}

func ParseUDPHeader(b []byte) (UDPHeader, []byte, bool) {
	if len(b) < UDPHeaderSize {
		return UDPHeader{}, nil, false
	}
	h := UDPHeader{
		SrcPort:  uint16(b[0])<<8 | uint16(b[1]),
		DstPort:  uint16(b[2])<<8 | uint16(b[3]),
		Length:   uint16(b[4])<<8 | uint16(b[5]),
		Checksum: uint16(b[6])<<8 | uint16(b[7]),
	}
	return h, b[UDPHeaderSize:], true
}

func EncodeUDPHeader(h UDPHeader) []byte {
	buf := make([]byte, UDPHeaderSize)
	buf[0], buf[1] = byte(h.SrcPort>>8), byte(h.SrcPort)
	buf[2], buf[3] = byte(h.DstPort>>8), byte(h.DstPort)
	buf[4], buf[5] = byte(h.Length>>8), byte(h.Length)
	buf[6], buf[7] = byte(h.Checksum>>8), byte(h.Checksum)
	return buf
}
