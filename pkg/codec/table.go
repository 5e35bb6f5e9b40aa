package codec

import (
	"cmp"
	"fmt"
	"slices"
)

// Entry is one id→name pair of a lookup table.
type Entry struct {
	ID   uint32
	Name string
}

// EncodeTable returns the lookup-table artifact for m, entries in ascending
// id order.
func EncodeTable[K ~uint32](m map[K]string) []byte {
	var out []byte
	for _, e := range SortedEntries(m) {
		out = AppendUint32(out, e.ID)
		out = AppendString(out, e.Name)
	}
	return out
}

// DecodeTableEntries decodes a lookup-table artifact in stored order.
func DecodeTableEntries(b []byte) ([]Entry, error) {
	var entries []Entry
	r := NewReader(b)
	for r.Remaining() > 0 {
		field := fmt.Sprintf("entry[%d]", len(entries))
		id, err := r.Uint32(field + ".id")
		if err != nil {
			return nil, err
		}
		name, err := r.String(field + ".name")
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{ID: id, Name: name})
	}
	return entries, nil
}

// DecodeTable decodes a lookup-table artifact into a map. If an id repeats,
// the first entry wins.
func DecodeTable[K ~uint32](b []byte) (map[K]string, error) {
	entries, err := DecodeTableEntries(b)
	if err != nil {
		return nil, err
	}
	m := make(map[K]string, len(entries))
	for _, e := range entries {
		if _, ok := m[K(e.ID)]; !ok {
			m[K(e.ID)] = e.Name
		}
	}
	return m, nil
}

// SortedEntries returns the entries of m in ascending id order.
func SortedEntries[K ~uint32](m map[K]string) []Entry {
	entries := make([]Entry, 0, len(m))
	for id, name := range m {
		entries = append(entries, Entry{ID: uint32(id), Name: name})
	}
	slices.SortFunc(entries, func(a, b Entry) int { return cmp.Compare(a.ID, b.ID) })
	return entries
}
