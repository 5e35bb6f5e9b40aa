package snapshot

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"

	"github.com/matzehuels/crateindex/pkg/crates"
	errs "github.com/matzehuels/crateindex/pkg/errors"
)

// Table names as they appear in the archive (without the .csv suffix).
const (
	TableCrates           = "crates"
	TableVersions         = "versions"
	TableDependencies     = "dependencies"
	TableDefaultVersions  = "default_versions"
	TableCratesKeywords   = "crates_keywords"
	TableCratesCategories = "crates_categories"
	TableKeywords         = "keywords"
	TableCategories       = "categories"
)

// checkEvery is how many rows are read between context checks.
const checkEvery = 1 << 16

// Loader streams the rows of a dump archive to registered callbacks.
// A Loader is not safe for concurrent use.
type Loader struct {
	tables map[string]*table
	logger *log.Logger
}

// NewLoader returns a Loader with no callbacks registered.
func NewLoader() *Loader {
	return &Loader{
		tables: make(map[string]*table),
		logger: log.New(io.Discard),
	}
}

// WithLogger sets the logger used for per-table debug output.
func (l *Loader) WithLogger(logger *log.Logger) *Loader {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// Crates registers the callback for the crates table.
func (l *Loader) Crates(fn func(crates.CrateRow) error) *Loader {
	return register(l, TableCrates, crateColumns, decodeCrate, fn)
}

// Versions registers the callback for the versions table.
func (l *Loader) Versions(fn func(crates.VersionRow) error) *Loader {
	return register(l, TableVersions, versionColumns, decodeVersion, fn)
}

// Dependencies registers the callback for the dependencies table.
func (l *Loader) Dependencies(fn func(crates.DependencyRow) error) *Loader {
	return register(l, TableDependencies, dependencyColumns, decodeDependency, fn)
}

// DefaultVersions registers the callback for the default_versions table.
func (l *Loader) DefaultVersions(fn func(crates.DefaultVersionRow) error) *Loader {
	return register(l, TableDefaultVersions, defaultVersionColumns, decodeDefaultVersion, fn)
}

// CratesKeywords registers the callback for the crates_keywords table.
func (l *Loader) CratesKeywords(fn func(crates.CrateKeywordRow) error) *Loader {
	return register(l, TableCratesKeywords, crateKeywordColumns, decodeCrateKeyword, fn)
}

// CratesCategories registers the callback for the crates_categories table.
func (l *Loader) CratesCategories(fn func(crates.CrateCategoryRow) error) *Loader {
	return register(l, TableCratesCategories, crateCategoryColumns, decodeCrateCategory, fn)
}

// Keywords registers the callback for the keywords table.
func (l *Loader) Keywords(fn func(crates.KeywordRow) error) *Loader {
	return register(l, TableKeywords, keywordColumns, decodeKeyword, fn)
}

// Categories registers the callback for the categories table.
func (l *Loader) Categories(fn func(crates.CategoryRow) error) *Loader {
	return register(l, TableCategories, categoryColumns, decodeCategory, fn)
}

// Load opens the archive at path and streams it. See [Loader.LoadReader].
func (l *Loader) Load(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.Wrap(errs.ErrCodeSourceLoad, err, "open snapshot")
	}
	defer f.Close()
	return l.LoadReader(ctx, f)
}

// LoadReader streams a gzip-compressed tar archive from r, invoking the
// registered callbacks once per row.
func (l *Loader) LoadReader(ctx context.Context, r io.Reader) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return errs.Wrap(errs.ErrCodeSourceLoad, err, "read gzip header")
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errs.Wrap(errs.ErrCodeSourceLoad, err, "read archive")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		t := l.tables[tableName(hdr.Name)]
		if t == nil {
			continue
		}
		if err := l.stream(ctx, t, tr); err != nil {
			return err
		}
	}
}

type table struct {
	name    string
	columns []string
	emit    func(*rowDecoder) error
}

func register[R any](l *Loader, name string, columns []string, decode func(*rowDecoder) R, fn func(R) error) *Loader {
	l.tables[name] = &table{
		name:    name,
		columns: columns,
		emit: func(d *rowDecoder) error {
			row := decode(d)
			if d.err != nil {
				return d.err
			}
			return fn(row)
		},
	}
	return l
}

func (l *Loader) stream(ctx context.Context, t *table, r io.Reader) error {
	d, err := newRowDecoder(t.name, r, t.columns)
	if err != nil {
		return err
	}

	rows := 0
	for {
		ok, err := d.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if rows++; rows%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := t.emit(d); err != nil {
			return err
		}
	}

	l.logger.Debug("Loaded table", "table", t.name, "rows", rows)
	return nil
}

// tableName maps an archive member such as
// "2024-06-01-020046/data/crates.csv" to "crates". Members outside a data
// directory map to "".
func tableName(name string) string {
	dir, file := path.Split(name)
	if path.Base(strings.TrimSuffix(dir, "/")) != "data" || !strings.HasSuffix(file, ".csv") {
		return ""
	}
	return strings.TrimSuffix(file, ".csv")
}

// errColumn is wrapped by rowDecoder for unparseable column values.
var errColumn = errors.New("invalid column value")

func columnError(table string, line int, column, value string, cause error) error {
	return errs.Wrap(errs.ErrCodeSourceLoad, fmt.Errorf("%w %q: %w", errColumn, value, cause), "%s.csv line %d column %s", table, line, column)
}
