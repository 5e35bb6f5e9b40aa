package snapshot

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"time"
	"unicode/utf8"

	errs "github.com/matzehuels/crateindex/pkg/errors"
)

// timeLayouts are tried in order for timestamp columns. PostgreSQL CSV
// exports omit the "T" separator and may carry an hour-only zone offset.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

var errInvalidUTF8 = errors.New("invalid UTF-8")

// rowDecoder reads one CSV table and exposes typed accessors for the current
// record. The first accessor failure is kept in err; later accessors return
// zero values.
type rowDecoder struct {
	table string
	r     *csv.Reader
	cols  map[string]int
	rec   []string
	line  int
	err   error
}

func newRowDecoder(table string, r io.Reader, required []string) (*rowDecoder, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		header = nil
	} else if err != nil {
		return nil, errs.Wrap(errs.ErrCodeSourceLoad, err, "%s.csv header", table)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	if header != nil {
		for _, name := range required {
			if _, ok := cols[name]; !ok {
				return nil, errs.New(errs.ErrCodeSourceLoad, "%s.csv is missing column %q", table, name)
			}
		}
	}
	return &rowDecoder{table: table, r: cr, cols: cols, line: 1}, nil
}

// next advances to the next record. It returns false at end of input.
func (d *rowDecoder) next() (bool, error) {
	if len(d.cols) == 0 {
		return false, nil
	}
	rec, err := d.r.Read()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, errs.Wrap(errs.ErrCodeSourceLoad, err, "read %s.csv", d.table)
	}
	d.rec = rec
	d.line++
	return true, nil
}

func (d *rowDecoder) raw(column string) string {
	i, ok := d.cols[column]
	if !ok || i >= len(d.rec) {
		return ""
	}
	return d.rec[i]
}

func (d *rowDecoder) fail(column, value string, cause error) {
	if d.err == nil {
		d.err = columnError(d.table, d.line, column, value, cause)
	}
}

// str returns a text column. Invalid UTF-8 fails the row, as the binary
// index only carries valid strings.
func (d *rowDecoder) str(column string) string {
	v := d.raw(column)
	if !utf8.ValidString(v) {
		d.fail(column, v, errInvalidUTF8)
		return ""
	}
	return v
}

// optional returns nil for an empty (NULL) column.
func (d *rowDecoder) optional(column string) *string {
	v := d.str(column)
	if v == "" {
		return nil
	}
	return &v
}

func (d *rowDecoder) u32(column string) uint32 {
	v := d.raw(column)
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		d.fail(column, v, err)
		return 0
	}
	return uint32(n)
}

// optionalUint32 returns nil for an empty (NULL) column.
func (d *rowDecoder) optionalUint32(column string) *uint32 {
	if d.raw(column) == "" {
		return nil
	}
	n := d.u32(column)
	return &n
}

func (d *rowDecoder) boolean(column string) bool {
	switch v := d.raw(column); v {
	case "t", "true":
		return true
	case "f", "false", "":
		return false
	default:
		d.fail(column, v, errors.New("want t or f"))
		return false
	}
}

func (d *rowDecoder) timestamp(column string) time.Time {
	v := d.raw(column)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	d.fail(column, v, errors.New("unrecognised timestamp"))
	return time.Time{}
}
