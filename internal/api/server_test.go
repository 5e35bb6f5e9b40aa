package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matzehuels/crateindex/pkg/crates"
	cio "github.com/matzehuels/crateindex/pkg/io"
	"github.com/matzehuels/crateindex/pkg/observability"
)

func testIndex(t *testing.T) *cio.Index {
	t.Helper()
	pkgs := []crates.Package{
		{Order: 10, Name: "serde", Description: "serialization", Keywords: []crates.KeywordID{1}, Categories: []crates.CategoryID{4}, LatestVersion: crates.Optional("1.0.0"), NumVersions: 3},
		{Order: 2, Name: "tokio", Keywords: []crates.KeywordID{2}, Categories: []crates.CategoryID{}},
		{Order: 0, Name: "tiny", Keywords: []crates.KeywordID{}, Categories: []crates.CategoryID{}},
	}
	a := cio.Encode(pkgs,
		map[crates.KeywordID]string{1: "serde", 2: "async"},
		map[crates.CategoryID]string{4: "Encoding"})
	a.LastUpdated = "Mon, 03 Jun 2024 02:00:46 +0000"
	idx, err := a.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return idx
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(testIndex(t), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	var got healthStatus
	if code := getJSON(t, ts.URL+"/healthz", &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got.Status != "ok" || got.Packages != 3 || got.LastUpdated == "" {
		t.Errorf("health = %+v", got)
	}
}

func TestListPackages(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name   string
		query  string
		status int
		names  []string
	}{
		{"default page", "", http.StatusOK, []string{"serde", "tokio", "tiny"}},
		{"offset", "?offset=1", http.StatusOK, []string{"tokio", "tiny"}},
		{"limit", "?limit=2", http.StatusOK, []string{"serde", "tokio"}},
		{"past end", "?offset=10", http.StatusOK, nil},
		{"negative offset", "?offset=-1", http.StatusBadRequest, nil},
		{"zero limit", "?limit=0", http.StatusBadRequest, nil},
		{"bad limit", "?limit=x", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var page Page
			code := getJSON(t, ts.URL+"/packages"+tt.query, &page)
			if code != tt.status {
				t.Fatalf("status = %d, want %d", code, tt.status)
			}
			if code != http.StatusOK {
				return
			}
			if page.Total != 3 {
				t.Errorf("Total = %d", page.Total)
			}
			if len(page.Packages) != len(tt.names) {
				t.Fatalf("got %d packages, want %d", len(page.Packages), len(tt.names))
			}
			for i, want := range tt.names {
				if page.Packages[i].Name != want {
					t.Errorf("packages[%d] = %q, want %q", i, page.Packages[i].Name, want)
				}
			}
		})
	}
}

func TestGetPackage(t *testing.T) {
	_, ts := newTestServer(t)

	var v PackageView
	if code := getJSON(t, ts.URL+"/packages/serde", &v); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if v.Rank != 1 || v.Order != 10 || v.NumVersions != 3 {
		t.Errorf("view = %+v", v)
	}
	if len(v.KeywordNames) != 1 || v.KeywordNames[0] != "serde" {
		t.Errorf("KeywordNames = %v", v.KeywordNames)
	}
	if len(v.CategoryNames) != 1 || v.CategoryNames[0] != "Encoding" {
		t.Errorf("CategoryNames = %v", v.CategoryNames)
	}
	if crates.Deref(v.LatestVersion) != "1.0.0" || v.LatestStableVersion != nil {
		t.Errorf("versions = %v / %v", v.LatestVersion, v.LatestStableVersion)
	}

	var e apiError
	if code := getJSON(t, ts.URL+"/packages/missing", &e); code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
	if e.Code != "NOT_FOUND" {
		t.Errorf("code = %q", e.Code)
	}

	if code := getJSON(t, ts.URL+"/packages/9lives", &e); code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if e.Code != "INVALID_PACKAGE" {
		t.Errorf("code = %q", e.Code)
	}
}

func TestLookupTables(t *testing.T) {
	_, ts := newTestServer(t)

	var kw map[string]string
	getJSON(t, ts.URL+"/keywords", &kw)
	if kw["1"] != "serde" || kw["2"] != "async" || len(kw) != 2 {
		t.Errorf("keywords = %v", kw)
	}
	var cat map[string]string
	getJSON(t, ts.URL+"/categories", &cat)
	if cat["4"] != "Encoding" || len(cat) != 1 {
		t.Errorf("categories = %v", cat)
	}
}

type countingCache struct {
	observability.NoopCacheHooks
	hits, misses, sets int
}

func (c *countingCache) OnCacheHit(context.Context, string)      { c.hits++ }
func (c *countingCache) OnCacheMiss(context.Context, string)     { c.misses++ }
func (c *countingCache) OnCacheSet(context.Context, string, int) { c.sets++ }

func TestPackageCache(t *testing.T) {
	hooks := &countingCache{}
	observability.SetCacheHooks(hooks)
	t.Cleanup(observability.Reset)

	s, err := New(testIndex(t), WithCacheSize(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	for _, i := range []int{0, 0, 1, 0} {
		if _, err := s.Package(ctx, i); err != nil {
			t.Fatalf("Package(%d): %v", i, err)
		}
	}
	// size 1: 0 miss, 0 hit, 1 miss evicts 0, 0 miss
	if hooks.hits != 1 || hooks.misses != 3 || hooks.sets != 3 {
		t.Errorf("hits=%d misses=%d sets=%d", hooks.hits, hooks.misses, hooks.sets)
	}
}

func TestLookup(t *testing.T) {
	s, _ := newTestServer(t)
	if i, ok := s.Lookup("tiny"); !ok || i != 2 {
		t.Errorf("Lookup(tiny) = %d, %v", i, ok)
	}
	if _, ok := s.Lookup("nope"); ok {
		t.Error("Lookup(nope) found")
	}
}

func TestNewRequiresIndex(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("New(nil) succeeded")
	}
}

func TestNewCorruptName(t *testing.T) {
	idx := testIndex(t)
	a := cio.Artifacts{Dump: []byte{4, 0, 0, 0, 1, 0, 0, 0}}
	bad, err := a.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	bad.Keywords, bad.Categories = idx.Keywords, idx.Categories
	if _, err := New(bad); err == nil {
		t.Error("New on corrupt record succeeded")
	}
}
