package codec

import "encoding/binary"

// writeDiscriminant stores idx in the width VariantLayout computed for this
// type (1, 2, or 4 bytes, little-endian).
func writeDiscriminant(buf []byte, offset, size uint32, idx uint32) {
	switch size {
	case 1:
		buf[offset] = byte(idx)
	case 2:
		binary.LittleEndian.PutUint16(buf[offset:], uint16(idx))
	default:
		binary.LittleEndian.PutUint32(buf[offset:], idx)
	}
}

// readDiscriminant is writeDiscriminant's inverse.
func readDiscriminant(buf []byte, offset, size uint32) uint32 {
	switch size {
	case 1:
		return uint32(buf[offset])
	case 2:
		return uint32(binary.LittleEndian.Uint16(buf[offset:]))
	default:
		return binary.LittleEndian.Uint32(buf[offset:])
	}
}
