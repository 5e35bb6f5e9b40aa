package codec

import (
	"encoding/binary"
	"unicode/utf8"
)

// Reader is a bounds-checked cursor over an encoded buffer.
// It never reads past the end of its input.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the current position.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32(field string) (uint32, error) {
	if r.Remaining() < 4 {
		return 0, r.fail(field, 4, ErrTruncated)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// String reads a length-prefixed string.
func (r *Reader) String(field string) (string, error) {
	start := r.off
	n, err := r.Uint32(field)
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(r.Remaining()) {
		return "", &DecodeError{Field: field, Offset: start, Need: int(n) + 4, Have: r.Remaining() + 4, Err: ErrTruncated}
	}
	b := r.buf[r.off : r.off+int(n)]
	if !utf8.Valid(b) {
		return "", &DecodeError{Field: field, Offset: start, Err: ErrInvalidString}
	}
	r.off += int(n)
	return string(b), nil
}

// Optional reads a length-prefixed string that may be absent. A zero length
// yields nil. An exhausted input yields ErrUnexpectedEnd.
func (r *Reader) Optional(field string) (*string, error) {
	if r.Remaining() == 0 {
		return nil, r.fail(field, 0, ErrUnexpectedEnd)
	}
	s, err := r.String(field)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

// Bytes reads n raw bytes without copying.
func (r *Reader) Bytes(field string, n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, r.fail(field, n, ErrTruncated)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) fail(field string, need int, err error) error {
	return &DecodeError{Field: field, Offset: r.off, Need: need, Have: r.Remaining(), Err: err}
}
