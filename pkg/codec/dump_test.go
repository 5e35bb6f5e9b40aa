package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/matzehuels/crateindex/pkg/crates"
)

func samplePackages() []crates.Package {
	a := fullPackage()
	b := crates.Package{
		Order:      3,
		Name:       "tokio",
		Keywords:   []crates.KeywordID{},
		Categories: []crates.CategoryID{5},
	}
	c := crates.Package{
		Name:          "anyhow",
		Keywords:      []crates.KeywordID{},
		Categories:    []crates.CategoryID{},
		Documentation: str("https://docs.rs/anyhow"),
	}
	return []crates.Package{a, b, c}
}

func TestDumpFraming(t *testing.T) {
	pkgs := samplePackages()
	dump := EncodeDump(pkgs)

	off := 0
	for i := range pkgs {
		n := int(binary.LittleEndian.Uint32(dump[off:]))
		rec := EncodePackage(&pkgs[i])
		if n != len(rec) {
			t.Fatalf("record %d length prefix = %d, want %d", i, n, len(rec))
		}
		if !bytes.Equal(dump[off+4:off+4+n], rec) {
			t.Fatalf("record %d bytes differ", i)
		}
		off += 4 + n
	}
	if off != len(dump) {
		t.Errorf("consumed %d bytes, dump has %d", off, len(dump))
	}
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestWriteDumpError(t *testing.T) {
	boom := errors.New("disk full")
	if err := WriteDump(failingWriter{boom}, samplePackages()); !errors.Is(err, boom) {
		t.Fatalf("WriteDump = %v, want %v", err, boom)
	}
}

func TestEncodeDumpEmpty(t *testing.T) {
	if b := EncodeDump(nil); len(b) != 0 {
		t.Errorf("EncodeDump(nil) = %v, want empty", b)
	}
}

func TestDumpRoundTrip(t *testing.T) {
	pkgs := samplePackages()
	got, err := DecodeDump(EncodeDump(pkgs))
	if err != nil {
		t.Fatalf("DecodeDump: %v", err)
	}
	if !reflect.DeepEqual(got, pkgs) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, pkgs)
	}
}

func TestDecodeDumpEmpty(t *testing.T) {
	got, err := DecodeDump(nil)
	if err != nil {
		t.Fatalf("DecodeDump(nil): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestDecodeDumpTruncatedFrame(t *testing.T) {
	dump := EncodeDump(samplePackages())

	tests := []struct {
		name string
		cut  int
	}{
		{"partial length prefix", 2},
		{"partial record", 10},
		{"last byte missing", len(dump) - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDump(dump[:tt.cut])
			if !errors.Is(err, ErrTruncated) {
				t.Errorf("err = %v, want ErrTruncated", err)
			}
		})
	}
}

func TestIndexRandomAccess(t *testing.T) {
	pkgs := samplePackages()
	idx, err := NewIndex(EncodeDump(pkgs))
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	if idx.Len() != len(pkgs) {
		t.Fatalf("Len = %d, want %d", idx.Len(), len(pkgs))
	}

	name, err := idx.Name(2)
	if err != nil {
		t.Fatalf("Name(2): %v", err)
	}
	if name != "anyhow" {
		t.Errorf("Name(2) = %q, want anyhow", name)
	}

	p, err := idx.Package(1)
	if err != nil {
		t.Fatalf("Package(1): %v", err)
	}
	if !reflect.DeepEqual(p, pkgs[1]) {
		t.Errorf("Package(1) = %+v, want %+v", p, pkgs[1])
	}
}

func TestIndexErrorOffsetsAreAbsolute(t *testing.T) {
	good := EncodeDump(samplePackages()[:1])
	// Second frame claims 4 bytes that only hold a truncated order field.
	bad := append(append([]byte{}, good...), 4, 0, 0, 0, 1, 0, 0, 0)

	idx, err := NewIndex(bad)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	_, err = idx.Package(1)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
	if de.Offset != len(good)+4+4 {
		t.Errorf("Offset = %d, want %d", de.Offset, len(good)+8)
	}
	if de.Field != "record[1].num_versions" {
		t.Errorf("Field = %q", de.Field)
	}
}
