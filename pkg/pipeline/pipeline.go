// Package pipeline turns a crates.io snapshot into published index artifacts.
//
// This package composes the stages that the CLI and tests share:
//
//  1. Load: stream snapshot rows into an [ingest.Ingestor]
//  2. Rank: count dependents and order library packages by popularity
//  3. Encode: produce the dump, keywords and categories artifacts
//  4. Publish: hand the artifacts to every configured [cio.Sink]
//
// Nothing is published unless every earlier stage succeeded, and the context
// is checked between stages.
//
// # Usage
//
//	runner := pipeline.NewRunner(logger)
//	result, err := runner.Run(ctx, pipeline.Options{
//	    Source: pipeline.ArchiveSource{Path: "db-dump.tar.gz"},
//	    Sinks:  []cio.Sink{cio.DirSink{Dir: "out"}},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(len(result.Packages), "packages")
//
// [cio.Sink]: github.com/matzehuels/crateindex/pkg/io.Sink
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/crateindex/pkg/crates"
	errs "github.com/matzehuels/crateindex/pkg/errors"
	cio "github.com/matzehuels/crateindex/pkg/io"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Config
// =============================================================================

const (
	// DefaultArchive is the snapshot path used when none is configured.
	DefaultArchive = "db-dump.tar.gz"

	// DefaultOutputDir is the artifact directory used when none is configured.
	DefaultOutputDir = "."
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures one pipeline run.
type Options struct {
	// Source provides the snapshot rows. Required.
	Source Source

	// Sinks receive the artifacts. A run without sinks still computes the
	// result, which is useful for inspection and tests.
	Sinks []cio.Sink

	// LastUpdated is stored alongside the artifacts (RFC 2822).
	LastUpdated string

	// Logger overrides the runner's logger for this run.
	Logger *log.Logger
}

// Validate checks required fields and applies defaults.
func (o *Options) Validate() error {
	if o.Source == nil {
		return errs.New(errs.ErrCodeInvalidInput, "source is required")
	}
	for i, s := range o.Sinks {
		if s == nil {
			return errs.New(errs.ErrCodeInvalidInput, "sink %d is nil", i)
		}
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID identifies the run in logs.
	RunID string

	// Packages is the ranked package list.
	Packages []crates.Package

	// Keywords and Categories are the lookup tables.
	Keywords   map[crates.KeywordID]string
	Categories map[crates.CategoryID]string

	// Artifacts are the encoded outputs handed to the sinks.
	Artifacts cio.Artifacts

	// Stats contains counts and timings.
	Stats Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Rows        int
	Libraries   int
	Packages    int
	Bytes       int
	LoadTime    time.Duration
	RankTime    time.Duration
	PublishTime time.Duration
}
