// Package snapshot reads crates.io database dumps.
//
// A dump is a gzip-compressed tar archive whose data directory holds one CSV
// file per table (crates.csv, versions.csv, dependencies.csv, ...), each with
// a header row. A [Loader] registers one callback per table of interest and
// streams every row of those tables through it during a single [Loader.Load]
// call. Tables without a callback are skipped without being parsed.
//
//	err := snapshot.NewLoader().
//	    Crates(func(r crates.CrateRow) error { ...; return nil }).
//	    Versions(func(r crates.VersionRow) error { ...; return nil }).
//	    Load(ctx, "db-dump.tar.gz")
//
// Any problem with the archive itself (missing file, bad gzip stream, bad
// CSV, unparseable column) is reported as a SOURCE_LOAD error. An error
// returned by a callback stops loading and is returned unchanged.
//
// Row order within a table follows the archive; the order in which tables are
// visited is unspecified.
package snapshot
