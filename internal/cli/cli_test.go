package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/crateindex/pkg/errors"
	"github.com/matzehuels/crateindex/pkg/fetch"
	cio "github.com/matzehuels/crateindex/pkg/io"
	"github.com/matzehuels/crateindex/pkg/snapshot/snapshottest"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"not modified", errs.Wrap(errs.ErrCodeNotModified, fetch.ErrNotModified, "check"), ExitNotModified},
		{"no last modified", errs.Wrap(errs.ErrCodeNoLastModified, fetch.ErrNoLastModified, "check"), ExitNoLastModified},
		{"wrapped not modified", fmt.Errorf("update: %w", errs.New(errs.ErrCodeNotModified, "current")), ExitNotModified},
		{"cancelled", fmt.Errorf("load: %w", context.Canceled), ExitCancelled},
		{"source load", errs.New(errs.ErrCodeSourceLoad, "bad archive"), ExitError},
		{"plain", errors.New("boom"), ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestQuiet(t *testing.T) {
	if !Quiet(errs.New(errs.ErrCodeNotModified, "current")) {
		t.Error("NOT_MODIFIED should be quiet")
	}
	if Quiet(errs.New(errs.ErrCodeNoLastModified, "no header")) {
		t.Error("NO_LAST_MODIFIED should be reported")
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	for _, name := range []string{"fetch", "build", "update", "inspect", "browse", "serve", "completion"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("--config flag missing")
	}
}

func TestCompletion(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"completion", "bash"})
	if err := root.Execute(); err != nil {
		t.Fatalf("completion: %v", err)
	}
	if !strings.Contains(out.String(), "crateindex") {
		t.Error("bash completion does not mention the program")
	}
}

// snapshotServer serves archive at / with the given Last-Modified time.
func snapshotServer(t *testing.T, archive []byte, modified time.Time) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", modified.UTC().Format(http.TimeFormat))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := New(io.Discard, log.ErrorLevel).RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFetchCommand(t *testing.T) {
	dir := t.TempDir()
	archive := snapshottest.Bytes(t, snapshottest.Scenario())
	modified := time.Date(2024, 6, 3, 2, 0, 46, 0, time.UTC)
	srv := snapshotServer(t, archive, modified)

	dest := filepath.Join(dir, "dl", "db-dump.tar.gz")
	out := filepath.Join(dir, "out")
	args := []string{"fetch", "--url", srv.URL, "--archive", dest, "--out", out}

	if _, err := execute(t, args...); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil || !bytes.Equal(got, archive) {
		t.Fatalf("archive not downloaded: %v", err)
	}
	if marker := fetch.ReadLastUpdated(filepath.Join(out, cio.LastUpdatedName)); !marker.Equal(modified) {
		t.Errorf("last_updated = %v, want %v", marker, modified)
	}

	_, err = execute(t, args...)
	if ExitCode(err) != ExitNotModified {
		t.Errorf("second fetch exit code = %d (%v), want %d", ExitCode(err), err, ExitNotModified)
	}

	_, err = execute(t, append(args, "--since", "Mon, 01 Jan 2024 00:00:00 +0000")...)
	if err != nil {
		t.Errorf("fetch with older --since: %v", err)
	}

	_, err = execute(t, append(args, "--since", "yesterday")...)
	if !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("bad --since error = %v, want INVALID_INPUT", err)
	}
}

func TestFetchRejectsNonHTTPURL(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "fetch", "--url", "ftp://example.com/db-dump.tar.gz", "--archive", filepath.Join(dir, "a.tar.gz"), "--out", dir)
	if !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
}

func TestFetchNoLastModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)
	dir := t.TempDir()

	_, err := execute(t, "fetch", "--url", srv.URL, "--archive", filepath.Join(dir, "a.tar.gz"), "--out", dir)
	if ExitCode(err) != ExitNoLastModified {
		t.Errorf("exit code = %d (%v), want %d", ExitCode(err), err, ExitNoLastModified)
	}
}

func TestBuildAndInspect(t *testing.T) {
	dir := t.TempDir()
	archive := snapshottest.Write(t, dir, snapshottest.Scenario())
	out := filepath.Join(dir, "out")

	if _, err := execute(t, "build", "--archive", archive, "--out", out); err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, name := range []string{cio.DumpName, cio.KeywordsName, cio.CategoriesName} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	table, err := execute(t, "inspect", "--dir", out)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if strings.Index(table, "beta") < 0 || strings.Index(table, "beta") > strings.Index(table, "alpha") {
		t.Errorf("inspect output does not rank beta before alpha:\n%s", table)
	}
	if strings.Contains(table, "gamma") {
		t.Error("binary-only crate listed")
	}

	one, err := execute(t, "inspect", "--dir", out, "alpha")
	if err != nil {
		t.Fatalf("inspect alpha: %v", err)
	}
	if !strings.Contains(one, "alpha") || strings.Contains(one, "beta") {
		t.Errorf("inspect alpha output:\n%s", one)
	}

	if _, err := execute(t, "inspect", "--dir", out, "nope"); !errs.Is(err, errs.ErrCodeNotFound) {
		t.Errorf("inspect unknown name error = %v, want NOT_FOUND", err)
	}

	if _, err := execute(t, "inspect", "--dir", out, "../etc"); !errs.Is(err, errs.ErrCodeInvalidPackage) {
		t.Errorf("inspect invalid name error = %v, want INVALID_PACKAGE", err)
	}

	js, err := execute(t, "inspect", "--dir", out, "--json")
	if err != nil {
		t.Fatalf("inspect --json: %v", err)
	}
	pkgs, idx, err := cio.ReadJSON(strings.NewReader(js))
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if len(pkgs) != 2 || pkgs[0].Name != "beta" || pkgs[0].Order != 1 {
		t.Errorf("json packages = %+v", pkgs)
	}
	if idx.Keywords[7] != "serde" {
		t.Errorf("json keywords = %v", idx.Keywords)
	}
}

func TestInspectExportAndImportJSON(t *testing.T) {
	dir := t.TempDir()
	archive := snapshottest.Write(t, dir, snapshottest.Scenario())
	out := filepath.Join(dir, "out")
	if _, err := execute(t, "build", "--archive", archive, "--out", out); err != nil {
		t.Fatalf("build: %v", err)
	}

	export := filepath.Join(dir, "index.json")
	if _, err := execute(t, "inspect", "--dir", out, "--json", "--out", export); err != nil {
		t.Fatalf("inspect --json --out: %v", err)
	}
	fi, err := os.Stat(export)
	if err != nil || fi.Size() == 0 {
		t.Fatalf("export not written: %v", err)
	}

	table, err := execute(t, "inspect", "--from-json", export)
	if err != nil {
		t.Fatalf("inspect --from-json: %v", err)
	}
	if strings.Index(table, "beta") < 0 || strings.Index(table, "beta") > strings.Index(table, "alpha") {
		t.Errorf("imported ranking differs:\n%s", table)
	}

	a, err := cio.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	b, err := importArtifacts(export)
	if err != nil {
		t.Fatalf("importArtifacts: %v", err)
	}
	if !bytes.Equal(a.Dump, b.Dump) || !bytes.Equal(a.Keywords, b.Keywords) || !bytes.Equal(a.Categories, b.Categories) {
		t.Error("re-encoded export differs from the published artifacts")
	}

	if _, err := execute(t, "inspect", "--from-json", filepath.Join(dir, "missing.json")); !errs.Is(err, errs.ErrCodeNotFound) {
		t.Errorf("missing export error = %v, want NOT_FOUND", err)
	}
	if err := os.WriteFile(export, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "inspect", "--from-json", export); !errs.Is(err, errs.ErrCodeDecode) {
		t.Errorf("corrupt export error = %v, want DECODE", err)
	}
}

func TestBuildMissingArchive(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "build", "--archive", filepath.Join(dir, "missing.tar.gz"), "--out", dir)
	if !errs.Is(err, errs.ErrCodeSourceLoad) {
		t.Errorf("error = %v, want SOURCE_LOAD", err)
	}
	if ExitCode(err) != ExitError {
		t.Errorf("exit code = %d", ExitCode(err))
	}
}

func TestInspectMissingIndex(t *testing.T) {
	_, err := execute(t, "inspect", "--dir", t.TempDir())
	if !errs.Is(err, errs.ErrCodeNotFound) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

func TestUpdateCommand(t *testing.T) {
	dir := t.TempDir()
	archive := snapshottest.Bytes(t, snapshottest.Scenario())
	modified := time.Date(2024, 6, 3, 2, 0, 46, 0, time.UTC)
	srv := snapshotServer(t, archive, modified)

	out := filepath.Join(dir, "out")
	args := []string{"update", "--url", srv.URL, "--archive", filepath.Join(dir, "db-dump.tar.gz"), "--out", out}

	if _, err := execute(t, args...); err != nil {
		t.Fatalf("update: %v", err)
	}
	a, err := cio.ReadDir(out)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if a.LastUpdated != fetch.FormatLastUpdated(modified) {
		t.Errorf("LastUpdated = %q", a.LastUpdated)
	}
	if _, err := a.Open(); err != nil {
		t.Errorf("Open: %v", err)
	}

	_, err = execute(t, args...)
	if ExitCode(err) != ExitNotModified {
		t.Errorf("second update exit code = %d (%v)", ExitCode(err), err)
	}
}
