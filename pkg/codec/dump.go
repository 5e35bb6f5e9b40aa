package codec

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/matzehuels/crateindex/pkg/crates"
)

// EncodeDump returns the dump artifact for pkgs, preserving their order.
func EncodeDump(pkgs []crates.Package) []byte {
	var buf bytes.Buffer
	_ = WriteDump(&buf, pkgs) // bytes.Buffer writes do not fail
	return buf.Bytes()
}

// WriteDump streams the dump artifact for pkgs to w.
func WriteDump(w io.Writer, pkgs []crates.Package) error {
	bw := bufio.NewWriter(w)
	var hdr [4]byte
	var rec []byte
	for i := range pkgs {
		rec = AppendPackage(rec[:0], &pkgs[i])
		AppendUint32(hdr[:0], uint32(len(rec)))
		if _, err := bw.Write(hdr[:]); err != nil {
			return err
		}
		if _, err := bw.Write(rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DecodeDump decodes every record of a dump artifact.
func DecodeDump(b []byte) ([]crates.Package, error) {
	idx, err := NewIndex(b)
	if err != nil {
		return nil, err
	}
	pkgs := make([]crates.Package, idx.Len())
	for i := range pkgs {
		if pkgs[i], err = idx.Package(i); err != nil {
			return nil, err
		}
	}
	return pkgs, nil
}

// Index provides random access to the records of a dump artifact.
type Index struct {
	buf    []byte
	frames []frame
}

type frame struct {
	off, n int
}

// NewIndex scans the framing of a dump artifact without decoding records.
func NewIndex(b []byte) (*Index, error) {
	idx := &Index{buf: b}
	r := NewReader(b)
	for r.Remaining() > 0 {
		field := fmt.Sprintf("record[%d]", len(idx.frames))
		n, err := r.Uint32(field + ".length")
		if err != nil {
			return nil, err
		}
		start := r.Offset()
		if _, err := r.Bytes(field, int(n)); err != nil {
			return nil, err
		}
		idx.frames = append(idx.frames, frame{off: start, n: int(n)})
	}
	return idx, nil
}

// Len returns the number of records.
func (idx *Index) Len() int { return len(idx.frames) }

// Record returns the raw bytes of record i.
func (idx *Index) Record(i int) []byte {
	f := idx.frames[i]
	return idx.buf[f.off : f.off+f.n]
}

// Package decodes record i. Errors report offsets relative to the whole
// artifact.
func (idx *Index) Package(i int) (crates.Package, error) {
	p, err := DecodePackage(idx.Record(i))
	if err != nil {
		return p, idx.rebase(i, err)
	}
	return p, nil
}

// Name decodes only the name of record i.
func (idx *Index) Name(i int) (string, error) {
	name, err := PeekName(idx.Record(i))
	if err != nil {
		return "", idx.rebase(i, err)
	}
	return name, nil
}

func (idx *Index) rebase(i int, err error) error {
	if de, ok := err.(*DecodeError); ok {
		cp := *de
		cp.Field = fmt.Sprintf("record[%d].%s", i, de.Field)
		cp.Offset += idx.frames[i].off
		return &cp
	}
	return err
}
