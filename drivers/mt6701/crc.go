package mt6701

// crcTable holds i·x^6 mod (x^6 + x + 1) for every 6-bit i
var crcTable = [64]uint8{
	0x00, 0x03, 0x06, 0x05, 0x0C, 0x0F, 0x0A, 0x09,
	0x18, 0x1B, 0x1E, 0x1D, 0x14, 0x17, 0x12, 0x11,
	0x30, 0x33, 0x36, 0x35, 0x3C, 0x3F, 0x3A, 0x39,
	0x28, 0x2B, 0x2E, 0x2D, 0x24, 0x27, 0x22, 0x21,
	0x23, 0x20, 0x25, 0x26, 0x2F, 0x2C, 0x29, 0x2A,
	0x3B, 0x38, 0x3D, 0x3E, 0x37, 0x34, 0x31, 0x32,
	0x13, 0x10, 0x15, 0x16, 0x1F, 0x1C, 0x19, 0x1A,
	0x0B, 0x08, 0x0D, 0x0E, 0x07, 0x04, 0x01, 0x02,
}

// CRC6 computes the frame checksum over the low 18 bits of data (the angle
// and status bits of a frame, i.e. frame >> 6). The three 6-bit groups are
// folded most significant first.
func CRC6(data uint32) uint8 {
	idx := uint8(data>>12) & 0x3F
	idx = (uint8(data>>6) & 0x3F) ^ crcTable[idx]
	idx = (uint8(data) & 0x3F) ^ crcTable[idx]
	return crcTable[idx]
}

// Status bits of a frame
type Status uint8

const (
	StatusFieldTooStrong Status = 0x1
	StatusFieldTooWeak   Status = 0x2
	StatusPressed        Status = 0x4
	StatusLossOfTrack    Status = 0x8
)

// EncodeFrame builds the frame the sensor would send for a 14-bit angle
// count and status bits, CRC included
func EncodeFrame(raw uint16, status Status) [FrameLen]byte {
	data := uint32(raw&(Counts-1))<<4 | uint32(status&0x0F)
	w := data<<6 | uint32(CRC6(data))
	return [FrameLen]byte{byte(w >> 16), byte(w >> 8), byte(w)}
}
