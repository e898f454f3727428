package wire

import "vnet/pkg/addr"

// ARPMinimumSize is the size of an ARP packet for IPv4-over-Ethernet:
// 2 hardware type + 2 protocol type + 1 hlen + 1 plen + 2 operation +
// 2*(6+4) sender/target hardware+protocol addresses.
const ARPMinimumSize = 28

const (
	arpHardwareEthernet = 1
	arpProtocolIPv4     = uint16(EtherTypeIPv4)
	arpHardwareLen      = 6
	arpProtocolLen      = 4
)

// ARPOperation is the ARP opcode field.
type ARPOperation uint16

const (
	ARPRequest  ARPOperation = 1
	ARPResponse ARPOperation = 2
)

// ARPPacket is a parsed ARP-over-Ethernet packet, laid out the same
// way as google/netstack's header.ARP view (see the field order in
// that package's own source), but exposed as a value type rather than
// a byte-slice view since the core only ever needs to read or build
// one packet at a time.
type ARPPacket struct {
	HardwareType     uint16
	ProtocolType     uint16
	HardwareAddrLen  uint8
	ProtocolAddrLen  uint8
	Op               ARPOperation
	SenderHardware   addr.MACAddress
	SenderProtocol   addr.IPv4Address
	TargetHardware   addr.MACAddress
	TargetProtocol   addr.IPv4Address
}

// ParseARPPacket length-checks b before reading any field.
func ParseARPPacket(b []byte) (ARPPacket, bool) {
	if len(b) < ARPMinimumSize {
		return ARPPacket{}, false
	}
	var p ARPPacket
	p.HardwareType = uint16(b[0])<<8 | uint16(b[1])
	p.ProtocolType = uint16(b[2])<<8 | uint16(b[3])
	p.HardwareAddrLen = b[4]
	p.ProtocolAddrLen = b[5]
	p.Op = ARPOperation(uint16(b[6])<<8 | uint16(b[7]))
	senderHW, _ := addr.MACFromSlice(b[8:14])
	senderPA, _ := addr.IPv4FromSlice(b[14:18])
	targetHW, _ := addr.MACFromSlice(b[18:24])
	targetPA, _ := addr.IPv4FromSlice(b[24:28])
	p.SenderHardware = senderHW
	p.SenderProtocol = senderPA
	p.TargetHardware = targetHW
	p.TargetProtocol = targetPA
	return p, true
}

// IsEthernetIPv4 reports whether the packet is exactly the shape this
// resolver accepts: hardware type Ethernet, protocol type IPv4, and
// matching address lengths.
func (p ARPPacket) IsEthernetIPv4() bool {
	return p.HardwareType == arpHardwareEthernet &&
		p.ProtocolType == arpProtocolIPv4 &&
		p.HardwareAddrLen == arpHardwareLen &&
		p.ProtocolAddrLen == arpProtocolLen
}

// EncodeARPPacket serializes p.
func EncodeARPPacket(p ARPPacket) []byte {
	buf := make([]byte, ARPMinimumSize)
	buf[0], buf[1] = byte(p.HardwareType>>8), byte(p.HardwareType)
	buf[2], buf[3] = byte(p.ProtocolType>>8), byte(p.ProtocolType)
	buf[4] = p.HardwareAddrLen
	buf[5] = p.ProtocolAddrLen
	buf[6], buf[7] = byte(p.Op>>8), byte(p.Op)
	copy(buf[8:14], p.SenderHardware[:])
	copy(buf[14:18], p.SenderProtocol.AsSlice())
	copy(buf[18:24], p.TargetHardware[:])
	copy(buf[24:28], p.TargetProtocol.AsSlice())
	return buf
}

// NewIPv4ARPRequest builds a well-formed ARP request for targetProtocol.
func NewIPv4ARPRequest(senderHW addr.MACAddress, senderPA addr.IPv4Address, targetPA addr.IPv4Address) ARPPacket {
	return ARPPacket{
		HardwareType:    arpHardwareEthernet,
		ProtocolType:    arpProtocolIPv4,
		HardwareAddrLen: arpHardwareLen,
		ProtocolAddrLen: arpProtocolLen,
		Op:              ARPRequest,
		SenderHardware:  senderHW,
		SenderProtocol:  senderPA,
		TargetProtocol:  targetPA,
	}
}
