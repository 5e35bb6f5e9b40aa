// Package ingest aggregates snapshot rows into per-package state.
//
// An [Ingestor] receives rows in any order, within and across tables, and
// keeps running aggregates: which packages ship a library, the most recently
// published version of each package, the highest stable and pre-release
// versions, keyword and category associations, and the id to name lookup
// tables. [Ingestor.Snapshot] hands the result over as a [Snapshot] value
// that later stages only read.
//
// The usual wiring goes through a snapshot loader:
//
//	in := ingest.New()
//	if err := in.Register(snapshot.NewLoader()).Load(ctx, path); err != nil {
//	    return err
//	}
//	snap := in.Snapshot()
//
// A version row whose number is not a valid semantic version aborts
// ingestion with a VERSION_PARSE error.
package ingest
