package pipeline

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/crateindex/pkg/crates"
	"github.com/matzehuels/crateindex/pkg/ingest"
	"github.com/matzehuels/crateindex/pkg/snapshot"
)

// Source feeds snapshot rows into an ingestor.
type Source interface {
	// Name describes the source in logs and hooks.
	Name() string
	// Load delivers every row to in.
	Load(ctx context.Context, in *ingest.Ingestor) error
}

// ArchiveSource reads a db-dump.tar.gz file.
type ArchiveSource struct {
	Path   string
	Logger *log.Logger
}

// Name returns the archive path.
func (s ArchiveSource) Name() string { return s.Path }

// Load streams the archive through a snapshot loader.
func (s ArchiveSource) Load(ctx context.Context, in *ingest.Ingestor) error {
	return in.Register(snapshot.NewLoader().WithLogger(s.Logger)).Load(ctx, s.Path)
}

// Rows is an in-memory Source. Tables are delivered in declaration order.
type Rows struct {
	Crates           []crates.CrateRow
	Versions         []crates.VersionRow
	Dependencies     []crates.DependencyRow
	DefaultVersions  []crates.DefaultVersionRow
	CratesKeywords   []crates.CrateKeywordRow
	CratesCategories []crates.CrateCategoryRow
	Keywords         []crates.KeywordRow
	Categories       []crates.CategoryRow
}

// Name implements Source.
func (Rows) Name() string { return "memory" }

// Load implements Source.
func (r Rows) Load(ctx context.Context, in *ingest.Ingestor) error {
	steps := []func() error{
		func() error { return feed(r.Crates, in.AddCrate) },
		func() error { return feed(r.Versions, in.AddVersion) },
		func() error { return feed(r.Dependencies, in.AddDependency) },
		func() error { return feed(r.DefaultVersions, in.AddDefaultVersion) },
		func() error { return feed(r.CratesKeywords, in.AddCrateKeyword) },
		func() error { return feed(r.CratesCategories, in.AddCrateCategory) },
		func() error { return feed(r.Keywords, in.AddKeyword) },
		func() error { return feed(r.Categories, in.AddCategory) },
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func feed[R any](rows []R, fn func(R) error) error {
	for _, r := range rows {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}
