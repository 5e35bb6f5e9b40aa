package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/crateindex/pkg/crates"
)

type document struct {
	LastUpdated string            `json:"last_updated,omitempty"`
	Packages    []crates.Package  `json:"packages"`
	Keywords    map[string]string `json:"keywords,omitempty"`
	Categories  map[string]string `json:"categories,omitempty"`
}

// WriteJSON encodes pkgs, with the lookup tables of idx when idx is non-nil,
// as indented JSON.
func WriteJSON(w io.Writer, pkgs []crates.Package, idx *Index) error {
	doc := document{Packages: pkgs}
	if doc.Packages == nil {
		doc.Packages = []crates.Package{}
	}
	if idx != nil {
		doc.LastUpdated = idx.LastUpdated
		doc.Keywords = stringKeys(idx.Keywords)
		doc.Categories = stringKeys(idx.Categories)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes the JSON form of pkgs to path.
// This is a convenience wrapper around [WriteJSON] for file-based output.
func ExportJSON(pkgs []crates.Package, idx *Index, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(f, pkgs, idx)
}

func stringKeys[K ~uint32](m map[K]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[fmt.Sprint(uint32(k))] = v
	}
	return out
}
