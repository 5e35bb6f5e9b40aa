package codec

import (
	"fmt"

	"github.com/matzehuels/crateindex/pkg/crates"
)

// AppendPackage appends the record encoding of p to dst.
func AppendPackage(dst []byte, p *crates.Package) []byte {
	dst = AppendUint32(dst, p.Order)
	dst = AppendUint32(dst, p.NumVersions)
	dst = AppendUint32(dst, uint32(len(p.Keywords)))
	for _, id := range p.Keywords {
		dst = AppendUint32(dst, uint32(id))
	}
	dst = AppendUint32(dst, uint32(len(p.Categories)))
	for _, id := range p.Categories {
		dst = AppendUint32(dst, uint32(id))
	}
	dst = AppendString(dst, p.Name)
	dst = AppendString(dst, p.Description)
	dst = AppendOptional(dst, p.Repository)
	dst = AppendOptional(dst, p.Homepage)
	dst = AppendOptional(dst, p.Documentation)
	dst = AppendOptional(dst, p.LatestStableVersion)
	dst = AppendOptional(dst, p.LatestVersion)
	return dst
}

// EncodePackage returns the record encoding of p.
func EncodePackage(p *crates.Package) []byte {
	return AppendPackage(make([]byte, 0, recordSizeHint(p)), p)
}

// DecodePackage decodes a single record. Bytes following latest_version are
// ignored.
func DecodePackage(b []byte) (crates.Package, error) {
	var p crates.Package
	r := NewReader(b)

	var err error
	if p.Order, err = r.Uint32("order"); err != nil {
		return p, err
	}
	if p.NumVersions, err = r.Uint32("num_versions"); err != nil {
		return p, err
	}

	keywords, err := readIDs(r, "keywords")
	if err != nil {
		return p, err
	}
	p.Keywords = make([]crates.KeywordID, len(keywords))
	for i, id := range keywords {
		p.Keywords[i] = crates.KeywordID(id)
	}

	categories, err := readIDs(r, "categories")
	if err != nil {
		return p, err
	}
	p.Categories = make([]crates.CategoryID, len(categories))
	for i, id := range categories {
		p.Categories[i] = crates.CategoryID(id)
	}

	if p.Name, err = r.String("name"); err != nil {
		return p, err
	}
	if p.Description, err = r.String("description"); err != nil {
		return p, err
	}

	optionals := []struct {
		field string
		dst   **string
	}{
		{"repository", &p.Repository},
		{"homepage", &p.Homepage},
		{"documentation", &p.Documentation},
		{"latest_stable_version", &p.LatestStableVersion},
		{"latest_version", &p.LatestVersion},
	}
	for _, o := range optionals {
		if *o.dst, err = r.Optional(o.field); err != nil {
			return p, err
		}
	}
	return p, nil
}

// PeekName decodes only the name of a record, skipping the fixed fields and
// the id arrays.
func PeekName(b []byte) (string, error) {
	r := NewReader(b)
	if _, err := r.Bytes("order+num_versions", 8); err != nil {
		return "", err
	}
	for _, field := range []string{"keywords", "categories"} {
		n, err := r.Uint32(field + ".count")
		if err != nil {
			return "", err
		}
		if uint64(n)*4 > uint64(r.Remaining()) {
			return "", r.fail(field, int(n)*4, ErrTruncated)
		}
		r.off += int(n) * 4
	}
	return r.String("name")
}

func readIDs(r *Reader, field string) ([]uint32, error) {
	n, err := r.Uint32(field + ".count")
	if err != nil {
		return nil, err
	}
	// The count is bounded by the remaining input before allocating.
	if uint64(n)*4 > uint64(r.Remaining()) {
		return nil, r.fail(field, int(n)*4, ErrTruncated)
	}
	ids := make([]uint32, n)
	for i := range ids {
		if ids[i], err = r.Uint32(fmt.Sprintf("%s[%d]", field, i)); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func recordSizeHint(p *crates.Package) int {
	n := 4*6 + 4*len(p.Keywords) + 4*len(p.Categories) + 4*5
	n += len(p.Name) + len(p.Description)
	for _, s := range []*string{p.Repository, p.Homepage, p.Documentation, p.LatestStableVersion, p.LatestVersion} {
		n += len(crates.Deref(s))
	}
	return n
}
