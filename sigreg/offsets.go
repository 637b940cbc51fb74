package sigreg

// SecpOffsetsSize is the encoded size of a SecpSignatureOffsets record.
const SecpOffsetsSize = 11

// SecpSignatureOffsets describes where the recovery program's inputs live
// inside the batch's raw instruction stream: which instruction and byte
// offset hold the signature, the recovered address and the message.
//
// Each u16 is wire-encoded as a (remainder, quotient) byte pair with
// quotient = value/256. The pair coincides with little-endian order but is
// defined by the division split, which downstream consumers reproduce
// bit-for-bit.
type SecpSignatureOffsets struct {
	SignatureOffset           uint16
	SignatureInstructionIndex uint8
	AddressOffset             uint16
	AddressInstructionIndex   uint8
	MessageOffset             uint16
	MessageSize               uint16
	MessageInstructionIndex   uint8
}

func splitU16(v uint16) (remainder, quotient byte) {
	if v >= 256 {
		return byte(v % 256), byte(v / 256)
	}
	return byte(v), 0
}

func joinU16(remainder, quotient byte) uint16 {
	return uint16(remainder) + 256*uint16(quotient)
}

// Encode packs the offsets into their fixed 11-byte wire form.
func (o SecpSignatureOffsets) Encode() []byte {
	buf := make([]byte, SecpOffsetsSize)
	buf[0], buf[1] = splitU16(o.SignatureOffset)
	buf[2] = o.SignatureInstructionIndex
	buf[3], buf[4] = splitU16(o.AddressOffset)
	buf[5] = o.AddressInstructionIndex
	buf[6], buf[7] = splitU16(o.MessageOffset)
	buf[8], buf[9] = splitU16(o.MessageSize)
	buf[10] = o.MessageInstructionIndex
	return buf
}

// DecodeSecpSignatureOffsets unpacks the leading 11 bytes of data. Shorter
// buffers fail with ErrMalformedOffsets; trailing bytes belong to the packed
// payload that follows the descriptor and are left alone.
func DecodeSecpSignatureOffsets(data []byte) (SecpSignatureOffsets, error) {
	if len(data) < SecpOffsetsSize {
		return SecpSignatureOffsets{}, ErrMalformedOffsets
	}
	return SecpSignatureOffsets{
		SignatureOffset:           joinU16(data[0], data[1]),
		SignatureInstructionIndex: data[2],
		AddressOffset:             joinU16(data[3], data[4]),
		AddressInstructionIndex:   data[5],
		MessageOffset:             joinU16(data[6], data[7]),
		MessageSize:               joinU16(data[8], data[9]),
		MessageInstructionIndex:   data[10],
	}, nil
}
