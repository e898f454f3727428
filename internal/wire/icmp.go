package wire

// ICMPHeaderSize is the fixed ICMP header before the echo extension:
// 1 type + 1 code + 2 checksum.
const ICMPHeaderSize = 4

// ICMPEchoHeaderSize adds the echo extension: 2 identifier +
// 2 sequence number.
const ICMPEchoHeaderSize = ICMPHeaderSize + 4

type ICMPType uint8

const (
	ICMPTypeEchoReply   ICMPType = 0
	ICMPTypeEchoRequest ICMPType = 8
)

// ICMPEcho is a parsed ICMP echo request/reply.
type ICMPEcho struct {
	Type       ICMPType
	Code       uint8
	Checksum   uint16
	Identifier uint16
	SeqNum     uint16
	Payload    []byte
}

// ParseICMPEcho length-checks b before reading any field. The caller
// is expected to have already confirmed the ICMP type warrants echo
// parsing.
func ParseICMPEcho(b []byte) (ICMPEcho, bool) {
	if len(b) < ICMPEchoHeaderSize {
		return ICMPEcho{}, false
	}
	return ICMPEcho{
		Type:       ICMPType(b[0]),
		Code:       b[1],
		Checksum:   uint16(b[2])<<8 | uint16(b[3]),
		Identifier: uint16(b[4])<<8 | uint16(b[5]),
		SeqNum:     uint16(b[6])<<8 | uint16(b[7]),
		Payload:    b[8:],
	}, true
}

// ParseICMPType reads just the type/code, for packets (like plain
// ICMP delivered to sockets) that don't need full echo parsing.
func ParseICMPType(b []byte) (ICMPType, uint8, bool) {
	if len(b) < ICMPHeaderSize {
		return 0, 0, false
	}
	return ICMPType(b[0]), b[1], true
}

// EncodeICMPEcho serializes e and stamps the Internet checksum over
// the whole ICMP segment with the checksum field zeroed first.
func EncodeICMPEcho(e ICMPEcho) []byte {
	buf := make([]byte, ICMPEchoHeaderSize+len(e.Payload))
	buf[0] = byte(e.Type)
	buf[1] = e.Code
	buf[2], buf[3] = 0, 0
	buf[4], buf[5] = byte(e.Identifier>>8), byte(e.Identifier)
	buf[6], buf[7] = byte(e.SeqNum>>8), byte(e.SeqNum)
	copy(buf[8:], e.Payload)
	sum := InternetChecksum(buf)
	buf[2], buf[3] = byte(sum>>8), byte(sum)
	return buf
}
