package protocol

// CRC-8 with polynomial 0x07, initial value 0x00, no reflection and no
// output xor. This matches captures from the device but has not been
// checked against every firmware revision.
const crcPoly = 0x07

var crcTable = makeCRCTable(crcPoly)

func makeCRCTable(poly byte) [256]byte {
	var t [256]byte
	for i := range t {
		crc := byte(i)
		for range 8 {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// CRC8 returns the frame checksum of data.
func CRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc = crcTable[crc^b]
	}
	return crc
}
