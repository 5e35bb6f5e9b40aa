// Package snapshottest builds small crates.io dump archives for tests.
package snapshottest

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// Root is the top-level directory used inside generated archives, matching
// the timestamped directory of real dumps.
const Root = "2024-06-01-020046"

// Tables maps a table name ("crates", "versions", ...) to CSV contents,
// header row included.
type Tables map[string]string

// Bytes returns a gzip-compressed tar archive holding tables under
// Root/data/<name>.csv, plus a README member outside the data directory.
func Bytes(t testing.TB, tables Tables) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)

	add := func(name, body string) {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	if err := tw.WriteHeader(&tar.Header{Name: Root + "/data/", Mode: 0o755, Typeflag: tar.TypeDir}); err != nil {
		t.Fatalf("write dir header: %v", err)
	}
	add(Root+"/README.md", "crates.io database dump\n")

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		add(Root+"/data/"+name+".csv", tables[name])
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

// Write stores the archive for tables in dir and returns its path.
func Write(t testing.TB, dir string, tables Tables) string {
	t.Helper()
	path := filepath.Join(dir, "db-dump.tar.gz")
	if err := os.WriteFile(path, Bytes(t, tables), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return path
}

// Scenario returns a small snapshot with three crates:
//
//   - alpha (id 1): library, versions 1.0.0 (id 10) and 1.1.0 (id 11, newest)
//   - beta (id 2): library, version 2.0.0 (id 20)
//   - gamma (id 3): binary only, version 0.1.0 (id 30)
//
// alpha 1.1.0 depends on beta twice (normal and dev); alpha 1.0.0 depends on
// gamma. beta therefore has one dependent, alpha none, and gamma is excluded.
func Scenario() Tables {
	return Tables{
		"crates": "id,name,description,homepage,repository,documentation,created_at,readme\n" +
			"1,alpha,First crate,,https://github.com/x/alpha,,2020-01-01 00:00:00.000000+00,\"multi\nline\"\n" +
			"2,beta,Second crate,https://beta.rs,,https://docs.rs/beta,2020-01-02 00:00:00+00,\n" +
			"3,gamma,A tool,,,,2020-01-03 00:00:00+00,\n",
		"versions": "id,crate_id,num,created_at,has_lib,yanked\n" +
			"10,1,1.0.0,2021-01-01 10:00:00.123456+00,t,f\n" +
			"11,1,1.1.0,2021-06-01 10:00:00+00,t,f\n" +
			"20,2,2.0.0,2021-03-01 10:00:00+00,t,f\n" +
			"30,3,0.1.0,2021-04-01 10:00:00+00,f,f\n",
		"dependencies": "id,version_id,crate_id,kind,optional,req\n" +
			"100,11,2,0,f,^2\n" +
			"101,11,2,2,f,^2\n" +
			"102,10,3,0,f,^0.1\n",
		"default_versions": "crate_id,version_id,num_versions\n" +
			"1,11,2\n" +
			"2,20,1\n" +
			"3,30,\n",
		"crates_keywords":   "crate_id,keyword_id\n1,7\n2,7\n2,8\n",
		"crates_categories": "category_id,crate_id\n4,2\n",
		"keywords":          "crates_cnt,created_at,id,keyword\n2,2020-01-01 00:00:00+00,7,serde\n1,2020-01-01 00:00:00+00,8,async\n",
		"categories":        "category,crates_cnt,created_at,description,id,path,slug\nEncoding,1,2020-01-01 00:00:00+00,,4,root.encoding,encoding\n",
	}
}
