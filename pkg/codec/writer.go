package codec

import "encoding/binary"

// AppendUint32 appends v in little-endian order.
func AppendUint32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

// AppendString appends a length-prefixed string.
func AppendString(dst []byte, s string) []byte {
	dst = AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}

// AppendOptional appends an optional string; nil is written as "".
func AppendOptional(dst []byte, s *string) []byte {
	if s == nil {
		return AppendString(dst, "")
	}
	return AppendString(dst, *s)
}
