package proof

// EncodeHeader packs hdr into its 2-byte wire form: a NUL byte (the content
// terminator the proof is appended after) followed by the bitfield byte
// length:4 | complexity:2 | algorithm:2.
func EncodeHeader(hdr Header) [2]byte {
	lengthField := byte((hdr.Length - lengthBias) / 2 & 0x0F)
	complexityField := byte((hdr.Complexity - complexityBias) & 0x03)
	algorithmField := byte(hdr.Algorithm & 0x03)
	return [2]byte{
		0x00,
		lengthField | complexityField<<4 | algorithmField<<6,
	}
}

// DecodeHeader unpacks a 2-byte wire header. ok is false if the first byte
// isn't the expected NUL content terminator.
func DecodeHeader(b [2]byte) (Header, bool) {
	if b[0] != 0x00 {
		return Header{}, false
	}
	field := b[1]
	return Header{
		Length:     int(field&0x0F)*2 + lengthBias,
		Complexity: int((field>>4)&0x03) + complexityBias,
		Algorithm:  Algorithm((field >> 6) & 0x03),
	}, true
}
