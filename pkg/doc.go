// Package pkg provides the libraries behind crateindex.
//
// # Overview
//
// crateindex turns the crates.io database dump into a ranked binary index of
// library crates. The pkg directory is organized by stage:
//
//  1. [snapshot] - Streams the tables of db-dump.tar.gz to callbacks
//  2. [ingest] - Folds rows into a [ingest.Snapshot]
//  3. [rank] - Counts dependents and orders libraries
//  4. [codec] - The dump, keywords and categories wire format
//  5. [io] - Artifact sinks (directory, Redis, S3) and JSON export
//  6. [pipeline] - Runs the stages above in order
//  7. [fetch] - Conditional download of the dump
//
// # Architecture
//
//	db-dump.tar.gz
//	     ↓
//	[snapshot] Loader (per-table callbacks)
//	     ↓
//	[ingest] Ingestor → Snapshot
//	     ↓
//	[rank] Reduce → Counts → Rank
//	     ↓
//	[io] Encode → Artifacts → Sinks
//
// # Quick Start
//
//	res, err := pipeline.NewRunner(logger).Run(ctx, pipeline.Options{
//	    Source: pipeline.ArchiveSource{Path: "db-dump.tar.gz"},
//	    Sinks:  []io.Sink{io.DirSink{Dir: "index"}},
//	})
package pkg
