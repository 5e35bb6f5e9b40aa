package io

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/matzehuels/crateindex/pkg/codec"
	"github.com/matzehuels/crateindex/pkg/crates"
	errs "github.com/matzehuels/crateindex/pkg/errors"
)

func samplePackages() []crates.Package {
	return []crates.Package{
		{
			Order:               3,
			Name:                "serde",
			Description:         "A serialization framework",
			Repository:          crates.Optional("https://github.com/serde-rs/serde"),
			LatestStableVersion: crates.Optional("1.0.200"),
			Keywords:            []crates.KeywordID{1, 2},
			Categories:          []crates.CategoryID{5},
			NumVersions:         300,
		},
		{Order: 0, Name: "tiny", Keywords: []crates.KeywordID{}, Categories: []crates.CategoryID{}},
	}
}

func sampleArtifacts() Artifacts {
	a := Encode(samplePackages(),
		map[crates.KeywordID]string{1: "serde", 2: "serialization"},
		map[crates.CategoryID]string{5: "Encoding"})
	a.LastUpdated = "Mon, 03 Jun 2024 02:00:46 +0000"
	return a
}

func TestDirSinkRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	want := sampleArtifacts()

	if err := (DirSink{Dir: dir}).Write(context.Background(), want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if !bytes.Equal(got.Dump, want.Dump) || !bytes.Equal(got.Keywords, want.Keywords) || !bytes.Equal(got.Categories, want.Categories) {
		t.Error("binary artifacts differ after round trip")
	}
	if got.LastUpdated != want.LastUpdated {
		t.Errorf("LastUpdated = %q, want %q", got.LastUpdated, want.LastUpdated)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
	if len(entries) != 4 {
		t.Errorf("dir has %d entries, want 4", len(entries))
	}
}

func TestDirSinkWithoutLastUpdated(t *testing.T) {
	dir := t.TempDir()
	a := sampleArtifacts()
	a.LastUpdated = ""
	if err := (DirSink{Dir: dir}).Write(context.Background(), a); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LastUpdatedName)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("last_updated written for empty value: %v", err)
	}
	got, err := ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if got.LastUpdated != "" {
		t.Errorf("LastUpdated = %q, want empty", got.LastUpdated)
	}
}

func TestDirSinkCancelledKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	old := sampleArtifacts()
	if err := (DirSink{Dir: dir}).Write(context.Background(), old); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := Artifacts{Dump: []byte{1}, Keywords: []byte{2}, Categories: []byte{3}}
	if err := (DirSink{Dir: dir}).Write(ctx, next); !errors.Is(err, context.Canceled) {
		t.Fatalf("Write = %v, want context.Canceled", err)
	}

	got, err := ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if !bytes.Equal(got.Dump, old.Dump) {
		t.Error("previous dump was replaced")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 4 {
		t.Errorf("dir has %d entries, want 4", len(entries))
	}
}

func TestDirSinkFileMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on windows")
	}
	dir := t.TempDir()
	if err := (DirSink{Dir: dir}).Write(context.Background(), sampleArtifacts()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for _, name := range []string{DumpName, KeywordsName, CategoriesName, LastUpdatedName} {
		fi, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if got := fi.Mode().Perm(); got != 0o644 {
			t.Errorf("%s mode = %v, want %v", name, got, os.FileMode(0o644))
		}
	}

	path := filepath.Join(dir, "marker")
	if err := WriteFileAtomic(path, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if fi, _ := os.Stat(path); fi.Mode().Perm() != 0o644 {
		t.Errorf("WriteFileAtomic mode = %v", fi.Mode().Perm())
	}
}

func TestDirSinkFailedDumpRename(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, DumpName)
	if err := os.MkdirAll(filepath.Join(blocker, "child"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := (DirSink{Dir: dir}).Write(context.Background(), sampleArtifacts()); err == nil {
		t.Fatal("expected error renaming over a non-empty directory")
	}
	if fi, err := os.Stat(blocker); err != nil || !fi.IsDir() {
		t.Errorf("dump replaced after failed rename: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestDirSinkNotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := (DirSink{Dir: path}).Write(context.Background(), sampleArtifacts()); err == nil {
		t.Fatal("expected error writing into a regular file")
	}
}

func TestReadDirMissing(t *testing.T) {
	if _, err := ReadDir(t.TempDir()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("ReadDir = %v, want ErrNotExist", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), LastUpdatedName)
	for _, v := range []string{"first", "second"} {
		if err := WriteFileAtomic(path, []byte(v)); err != nil {
			t.Fatalf("WriteFileAtomic: %v", err)
		}
	}
	b, _ := os.ReadFile(path)
	if string(b) != "second" {
		t.Errorf("content = %q, want second", b)
	}
}

func TestOpen(t *testing.T) {
	idx, err := sampleArtifacts().Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if idx.Packages.Len() != 2 {
		t.Fatalf("Len = %d, want 2", idx.Packages.Len())
	}
	pkgs, err := idx.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if pkgs[0].Name != "serde" || pkgs[1].Name != "tiny" {
		t.Errorf("names = %s, %s", pkgs[0].Name, pkgs[1].Name)
	}
	if got := idx.KeywordNames(pkgs[0].Keywords); len(got) != 2 || got[1] != "serialization" {
		t.Errorf("KeywordNames = %v", got)
	}
	if got := idx.CategoryNames([]crates.CategoryID{5, 99}); len(got) != 1 || got[0] != "Encoding" {
		t.Errorf("CategoryNames = %v", got)
	}
}

func TestOpenCorrupt(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Artifacts)
	}{
		{"dump", func(a *Artifacts) { a.Dump = a.Dump[:len(a.Dump)-1] }},
		{"keywords", func(a *Artifacts) { a.Keywords = a.Keywords[:3] }},
		{"categories", func(a *Artifacts) { a.Categories = append(a.Categories, 0xff) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := sampleArtifacts()
			tt.mutate(&a)
			_, err := a.Open()
			if !errs.Is(err, errs.ErrCodeDecode) {
				t.Fatalf("Open = %v, want DECODE", err)
			}
			var de *codec.DecodeError
			if !errors.As(err, &de) {
				t.Errorf("error does not carry a DecodeError: %v", err)
			}
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	a := sampleArtifacts()
	idx, err := a.Open()
	if err != nil {
		t.Fatal(err)
	}
	pkgs, err := idx.All()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, pkgs, idx); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"name": "serde"`) {
		t.Errorf("unexpected JSON: %s", buf.String())
	}

	got, gotIdx, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if len(got) != 2 || got[0].Name != "serde" || crates.Deref(got[0].Repository) != "https://github.com/serde-rs/serde" {
		t.Errorf("packages = %+v", got)
	}
	if got[1].Homepage != nil {
		t.Errorf("absent homepage decoded as %q", *got[1].Homepage)
	}
	if gotIdx.Keywords[2] != "serialization" || gotIdx.Categories[5] != "Encoding" {
		t.Errorf("tables = %v / %v", gotIdx.Keywords, gotIdx.Categories)
	}
	if gotIdx.LastUpdated != a.LastUpdated {
		t.Errorf("LastUpdated = %q", gotIdx.LastUpdated)
	}
}

func TestExportImportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	if err := ExportJSON(samplePackages(), nil, path); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	got, _, err := ImportJSON(path)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if len(got) != 2 || got[0].NumVersions != 300 {
		t.Errorf("packages = %+v", got)
	}
}

func TestReadJSONMissingLists(t *testing.T) {
	in := `{"packages": [{"order": 1, "name": "bare", "description": "", "keywords": null, "num_versions": 1}]}`
	got, _, err := ReadJSON(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	want := crates.Package{Order: 1, Name: "bare", NumVersions: 1, Keywords: []crates.KeywordID{}, Categories: []crates.CategoryID{}}
	if len(got) != 1 || !reflect.DeepEqual(got[0], want) {
		t.Errorf("packages = %#v, want %#v", got, want)
	}
}

func TestReadJSONInvalid(t *testing.T) {
	tests := []string{
		`{"packages": [`,
		`{"packages": [], "keywords": {"x": "bad"}}`,
	}
	for _, in := range tests {
		if _, _, err := ReadJSON(strings.NewReader(in)); err == nil {
			t.Errorf("ReadJSON(%q) succeeded", in)
		}
	}
}
