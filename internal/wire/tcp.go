package wire

import (
	"encoding/binary"

	"github.com/google/netstack/tcpip/header"

	"vnet/pkg/addr"
)

// TCPHeaderLen is the fixed TCP header length this stack emits: no
// options, so data offset is always 5 words / 20 bytes.
const TCPHeaderLen = header.TCPMinimumSize

// TCP flag values, re-exported from google/netstack so callers outside
// this package never need to import it directly.
const (
	TCPFlagFin = header.TCPFlagFin
	TCPFlagSyn = header.TCPFlagSyn
	TCPFlagRst = header.TCPFlagRst
	TCPFlagPsh = header.TCPFlagPsh
	TCPFlagAck = header.TCPFlagAck
)

// TCPSegment is a parsed TCP header plus its payload.
type TCPSegment struct {
	SrcPort  uint16
	DstPort  uint16
	SeqNum   uint32
	AckNum   uint32
	Flags    uint8
	Window   uint16
	Checksum uint16
	Payload  []byte
}

// ParseTCPSegment length-checks b, then decodes the header through
// google/netstack's header.TCP view and slices off the payload
// starting at the header's own reported data offset.
func ParseTCPSegment(b []byte) (TCPSegment, bool) {
	if len(b) < header.TCPMinimumSize {
		return TCPSegment{}, false
	}
	td := header.TCP(b)
	hdrLen := int(td.DataOffset())
	if hdrLen < header.TCPMinimumSize || hdrLen > len(b) {
		return TCPSegment{}, false
	}
	return TCPSegment{
		SrcPort:  td.SourcePort(),
		DstPort:  td.DestinationPort(),
		SeqNum:   td.SequenceNumber(),
		AckNum:   td.AckNumber(),
		Flags:    td.Flags(),
		Window:   td.WindowSize(),
		Checksum: td.Checksum(),
		Payload:  b[hdrLen:],
	}, true
}

// EncodeTCPSegment builds the wire bytes for a segment (header +
// payload) with the checksum already computed and stamped. Window is
// fixed at 1024, data offset is fixed at TCPHeaderLen/4, and the ack
// field is populated whenever the ACK flag is set.
func EncodeTCPSegment(srcAddr, dstAddr addr.IPv4Address, srcPort, dstPort uint16, seq, ack uint32, flags uint8, payload []byte) []byte {
	fields := header.TCPFields{
		SrcPort:    srcPort,
		DstPort:    dstPort,
		SeqNum:     seq,
		DataOffset: header.TCPMinimumSize,
		Flags:      flags,
		WindowSize: 1024,
	}
	if flags&header.TCPFlagAck != 0 {
		fields.AckNum = ack
	}

	hdr := make(header.TCP, header.TCPMinimumSize)
	hdr.Encode(&fields)

	segment := make([]byte, 0, header.TCPMinimumSize+len(payload))
	segment = append(segment, hdr...)
	segment = append(segment, payload...)

	checksum := TCPChecksum(srcAddr, dstAddr, segment)
	header.TCP(segment).SetChecksum(checksum)
	return segment
}

// TCPChecksum computes the pseudo-header + header + payload checksum,
// treating an odd trailing payload byte as the high byte of a
// zero-padded word. Over a segment whose checksum field is zeroed the
// result is the checksum to stamp; over a segment that already carries
// a correct checksum the result is 0, which is how a segment is
// verified.
func TCPChecksum(srcAddr, dstAddr addr.IPv4Address, segment []byte) uint16 {
	pseudo := make([]byte, 12)
	copy(pseudo[0:4], srcAddr.AsSlice())
	copy(pseudo[4:8], dstAddr.AsSlice())
	pseudo[8] = 0
	pseudo[9] = byte(IPv4ProtocolTCP)
	binary.BigEndian.PutUint16(pseudo[10:12], uint16(len(segment)))

	sum := checksumAccumulate(pseudo, 0)
	// The checksum field is summed as it stands: zero when computing,
	// the stamped value when verifying.
	sum = checksumAccumulate(segment, sum)
	return ^uint16(sum)
}
