package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/matzehuels/crateindex/pkg/crates"
)

// ReadJSON decodes the format written by [WriteJSON]. Lookup tables are
// returned as an Index without a dump; use the returned packages instead.
//
// Empty optional strings are normalised to nil and missing id lists to empty
// slices so that packages compare equal to what the binary codec would
// produce.
func ReadJSON(r io.Reader) ([]crates.Package, *Index, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("decode: %w", err)
	}

	for i := range doc.Packages {
		p := &doc.Packages[i]
		for _, s := range []**string{&p.Repository, &p.Homepage, &p.Documentation, &p.LatestStableVersion, &p.LatestVersion} {
			*s = crates.Optional(crates.Deref(*s))
		}
		if p.Keywords == nil {
			p.Keywords = []crates.KeywordID{}
		}
		if p.Categories == nil {
			p.Categories = []crates.CategoryID{}
		}
	}

	kw, err := parseKeys[crates.KeywordID](doc.Keywords)
	if err != nil {
		return nil, nil, fmt.Errorf("keywords: %w", err)
	}
	cat, err := parseKeys[crates.CategoryID](doc.Categories)
	if err != nil {
		return nil, nil, fmt.Errorf("categories: %w", err)
	}
	return doc.Packages, &Index{Keywords: kw, Categories: cat, LastUpdated: doc.LastUpdated}, nil
}

// ImportJSON reads a JSON file at path. See [ReadJSON].
func ImportJSON(path string) ([]crates.Package, *Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

func parseKeys[K ~uint32](m map[string]string) (map[K]string, error) {
	out := make(map[K]string, len(m))
	for k, v := range m {
		n, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("id %q: %w", k, err)
		}
		out[K(n)] = v
	}
	return out, nil
}
