package io

import (
	"context"

	"github.com/matzehuels/crateindex/pkg/codec"
	"github.com/matzehuels/crateindex/pkg/crates"
	errs "github.com/matzehuels/crateindex/pkg/errors"
)

// Artifact names, used as file names, Redis key suffixes and object names.
const (
	DumpName        = "dump"
	KeywordsName    = "keywords"
	CategoriesName  = "categories"
	LastUpdatedName = "last_updated"
)

// Artifacts is the complete output of one build.
type Artifacts struct {
	Dump        []byte
	Keywords    []byte
	Categories  []byte
	LastUpdated string // RFC 2822; empty when unknown
}

// Encode builds the artifacts for a ranked package list and its lookup
// tables.
func Encode(pkgs []crates.Package, keywords map[crates.KeywordID]string, categories map[crates.CategoryID]string) Artifacts {
	return Artifacts{
		Dump:       codec.EncodeDump(pkgs),
		Keywords:   codec.EncodeTable(keywords),
		Categories: codec.EncodeTable(categories),
	}
}

// Size returns the total number of bytes across the binary artifacts.
func (a Artifacts) Size() int {
	return len(a.Dump) + len(a.Keywords) + len(a.Categories)
}

// files lists the artifacts in publishing order, dump last. last_updated is
// omitted when unknown.
func (a Artifacts) files() []file {
	fs := []file{
		{KeywordsName, a.Keywords},
		{CategoriesName, a.Categories},
	}
	if a.LastUpdated != "" {
		fs = append(fs, file{LastUpdatedName, []byte(a.LastUpdated)})
	}
	return append(fs, file{DumpName, a.Dump})
}

type file struct {
	name string
	data []byte
}

// Sink publishes a complete set of artifacts.
type Sink interface {
	Write(ctx context.Context, a Artifacts) error
}

// Index is a decoded view of a set of artifacts. Package records are decoded
// on demand.
type Index struct {
	Packages    *codec.Index
	Keywords    map[crates.KeywordID]string
	Categories  map[crates.CategoryID]string
	LastUpdated string
}

// Open decodes the lookup tables and frames the dump. Malformed input is
// reported as a DECODE error.
func (a Artifacts) Open() (*Index, error) {
	pkgs, err := codec.NewIndex(a.Dump)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeDecode, err, "decode %s", DumpName)
	}
	kw, err := codec.DecodeTable[crates.KeywordID](a.Keywords)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeDecode, err, "decode %s", KeywordsName)
	}
	cat, err := codec.DecodeTable[crates.CategoryID](a.Categories)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeDecode, err, "decode %s", CategoriesName)
	}
	return &Index{Packages: pkgs, Keywords: kw, Categories: cat, LastUpdated: a.LastUpdated}, nil
}

// All decodes every package record in ranked order.
func (idx *Index) All() ([]crates.Package, error) {
	out := make([]crates.Package, 0, idx.Packages.Len())
	for i := 0; i < idx.Packages.Len(); i++ {
		p, err := idx.Packages.Package(i)
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeDecode, err, "decode package %d", i)
		}
		out = append(out, p)
	}
	return out, nil
}

// KeywordNames resolves ids to names, skipping unknown ids.
func (idx *Index) KeywordNames(ids []crates.KeywordID) []string {
	return names(idx.Keywords, ids)
}

// CategoryNames resolves ids to names, skipping unknown ids.
func (idx *Index) CategoryNames(ids []crates.CategoryID) []string {
	return names(idx.Categories, ids)
}

func names[K comparable](m map[K]string, ids []K) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := m[id]; ok {
			out = append(out, n)
		}
	}
	return out
}
