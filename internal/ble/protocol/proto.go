// Package protocol implements the command/notification framing used by
// MXW01-class thermal printers.
//
// Every frame on the wire has the shape
//
//	0x22 0x21 <command> 0x00 <len lo> <len hi> <payload...> <crc8> 0xFF
//
// Command frames are written to the control characteristic; the printer
// answers on the notify characteristic using the same header.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// Command is the command id carried at offset 2 of every frame.
type Command byte

const (
	CmdGetStatus     Command = 0xA1
	CmdSetIntensity  Command = 0xA2
	CmdPrintRequest  Command = 0xA9
	CmdPrintComplete Command = 0xAA
	CmdGetBattery    Command = 0xAB
	CmdCancelPrint   Command = 0xAC
	CmdFlushData     Command = 0xAD
	CmdGetVersion    Command = 0xB1
)

func (c Command) String() string {
	switch c {
	case CmdGetStatus:
		return "GetStatus"
	case CmdSetIntensity:
		return "SetIntensity"
	case CmdPrintRequest:
		return "PrintRequest"
	case CmdPrintComplete:
		return "PrintComplete"
	case CmdGetBattery:
		return "GetBattery"
	case CmdCancelPrint:
		return "CancelPrint"
	case CmdFlushData:
		return "FlushData"
	case CmdGetVersion:
		return "GetVersion"
	default:
		return fmt.Sprintf("Command(0x%02X)", byte(c))
	}
}

// Frame constants.
const (
	Header0    = 0x22
	Header1    = 0x21
	Terminator = 0xFF

	// HeaderLen is the number of bytes preceding the payload.
	HeaderLen = 6
	// MaxPayload is the largest payload the 16-bit length field can describe.
	MaxPayload = 0xFFFF
)

// Notification is a decoded inbound frame.
type Notification struct {
	Command Command
	Payload []byte
}

// BuildCommand encodes a command frame. The checksum covers the payload only.
func BuildCommand(cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("protocol: payload of %d bytes exceeds %d", len(payload), MaxPayload)
	}
	buf := make([]byte, 0, HeaderLen+len(payload)+2)
	buf = append(buf, Header0, Header1, byte(cmd), 0x00)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, CRC8(payload), Terminator)
	return buf, nil
}

// ParseNotification decodes a notification frame. It reports false for
// anything that does not start with the frame header or whose declared
// length runs past the end of data; such frames are meant to be dropped.
// The trailing checksum and terminator are not verified.
func ParseNotification(data []byte) (Notification, bool) {
	if len(data) < HeaderLen || data[0] != Header0 || data[1] != Header1 {
		return Notification{}, false
	}
	n := int(binary.LittleEndian.Uint16(data[4:6]))
	if HeaderLen+n > len(data) {
		return Notification{}, false
	}
	payload := make([]byte, n)
	copy(payload, data[HeaderLen:HeaderLen+n])
	return Notification{Command: Command(data[2]), Payload: payload}, true
}
