package ingest

import (
	"time"

	"github.com/matzehuels/crateindex/pkg/crates"
	errs "github.com/matzehuels/crateindex/pkg/errors"
	"github.com/matzehuels/crateindex/pkg/snapshot"
)

// Snapshot is the aggregated state of one dump. It is built once by an
// [Ingestor] and must not be modified afterwards.
type Snapshot struct {
	// HasLib holds every package with at least one library version.
	HasLib map[crates.PackageID]struct{}
	// MostRecent maps a package to its version with the greatest created_at.
	MostRecent map[crates.PackageID]crates.VersionID
	// StableLatest and PrereleaseLatest are the highest versions without and
	// with a pre-release tag.
	StableLatest     map[crates.PackageID]crates.Version
	PrereleaseLatest map[crates.PackageID]crates.Version
	// VersionCount is the source-reported number of versions.
	VersionCount map[crates.PackageID]uint32

	KeywordAssoc  map[crates.PackageID][]crates.KeywordID
	CategoryAssoc map[crates.PackageID][]crates.CategoryID
	KeywordNames  map[crates.KeywordID]string
	CategoryNames map[crates.CategoryID]string

	// Crates holds package metadata rows by id.
	Crates map[crates.PackageID]crates.CrateRow
	// Edges are the dependency rows in the order they were received.
	Edges []crates.DependencyRow

	Stats Stats
}

// Stats counts the rows received per table.
type Stats struct {
	Crates           int
	Versions         int
	Dependencies     int
	DefaultVersions  int
	CratesKeywords   int
	CratesCategories int
	Keywords         int
	Categories       int
}

// Rows returns the total number of rows received.
func (s Stats) Rows() int {
	return s.Crates + s.Versions + s.Dependencies + s.DefaultVersions +
		s.CratesKeywords + s.CratesCategories + s.Keywords + s.Categories
}

// MostRecentVersions returns the set of version ids that are the most
// recently published version of their package.
func (s *Snapshot) MostRecentVersions() map[crates.VersionID]struct{} {
	set := make(map[crates.VersionID]struct{}, len(s.MostRecent))
	for _, v := range s.MostRecent {
		set[v] = struct{}{}
	}
	return set
}

// Ingestor accumulates rows into a [Snapshot]. It is not safe for concurrent
// use; the loader calls it from a single goroutine.
type Ingestor struct {
	snap   *Snapshot
	latest map[crates.PackageID]published
}

type published struct {
	id        crates.VersionID
	createdAt time.Time
}

// New returns an empty Ingestor.
func New() *Ingestor {
	return &Ingestor{
		snap: &Snapshot{
			HasLib:           make(map[crates.PackageID]struct{}),
			MostRecent:       make(map[crates.PackageID]crates.VersionID),
			StableLatest:     make(map[crates.PackageID]crates.Version),
			PrereleaseLatest: make(map[crates.PackageID]crates.Version),
			VersionCount:     make(map[crates.PackageID]uint32),
			KeywordAssoc:     make(map[crates.PackageID][]crates.KeywordID),
			CategoryAssoc:    make(map[crates.PackageID][]crates.CategoryID),
			KeywordNames:     make(map[crates.KeywordID]string),
			CategoryNames:    make(map[crates.CategoryID]string),
			Crates:           make(map[crates.PackageID]crates.CrateRow),
		},
		latest: make(map[crates.PackageID]published),
	}
}

// Register installs the ingestor's callbacks for every table on l and
// returns l.
func (in *Ingestor) Register(l *snapshot.Loader) *snapshot.Loader {
	return l.
		Crates(in.AddCrate).
		Versions(in.AddVersion).
		Dependencies(in.AddDependency).
		DefaultVersions(in.AddDefaultVersion).
		CratesKeywords(in.AddCrateKeyword).
		CratesCategories(in.AddCrateCategory).
		Keywords(in.AddKeyword).
		Categories(in.AddCategory)
}

// Snapshot returns the aggregated state. The Ingestor must not be used
// afterwards.
func (in *Ingestor) Snapshot() *Snapshot {
	s := in.snap
	in.snap, in.latest = nil, nil
	return s
}

// AddCrate records package metadata. A later row for the same id replaces
// the earlier one.
func (in *Ingestor) AddCrate(r crates.CrateRow) error {
	in.snap.Stats.Crates++
	in.snap.Crates[r.ID] = r
	return nil
}

// AddVersion updates the library flag, the most recent version and the
// stable or pre-release maximum of the row's package.
func (in *Ingestor) AddVersion(r crates.VersionRow) error {
	v, err := crates.ParseVersion(r.Num)
	if err != nil {
		return errs.Wrap(errs.ErrCodeVersionParse, err, "version %d of crate %d", r.ID, r.CrateID)
	}
	s := in.snap
	s.Stats.Versions++

	latest := s.StableLatest
	if v.IsPrerelease() {
		latest = s.PrereleaseLatest
	}
	if cur, ok := latest[r.CrateID]; !ok || cur.Less(v) {
		latest[r.CrateID] = v
	}

	if r.HasLib {
		s.HasLib[r.CrateID] = struct{}{}
	}

	// Ties keep the first row seen.
	if cur, ok := in.latest[r.CrateID]; !ok || r.CreatedAt.After(cur.createdAt) {
		in.latest[r.CrateID] = published{id: r.ID, createdAt: r.CreatedAt}
		s.MostRecent[r.CrateID] = r.ID
	}
	return nil
}

// AddDependency keeps the edge for the reducer.
func (in *Ingestor) AddDependency(r crates.DependencyRow) error {
	in.snap.Stats.Dependencies++
	in.snap.Edges = append(in.snap.Edges, r)
	return nil
}

// AddDefaultVersion records the package's version count; an empty count is
// stored as zero.
func (in *Ingestor) AddDefaultVersion(r crates.DefaultVersionRow) error {
	in.snap.Stats.DefaultVersions++
	var n uint32
	if r.NumVersions != nil {
		n = *r.NumVersions
	}
	in.snap.VersionCount[r.CrateID] = n
	return nil
}

// AddCrateKeyword appends a keyword to the package's association list.
func (in *Ingestor) AddCrateKeyword(r crates.CrateKeywordRow) error {
	in.snap.Stats.CratesKeywords++
	in.snap.KeywordAssoc[r.CrateID] = append(in.snap.KeywordAssoc[r.CrateID], r.KeywordID)
	return nil
}

// AddCrateCategory appends a category to the package's association list.
func (in *Ingestor) AddCrateCategory(r crates.CrateCategoryRow) error {
	in.snap.Stats.CratesCategories++
	in.snap.CategoryAssoc[r.CrateID] = append(in.snap.CategoryAssoc[r.CrateID], r.CategoryID)
	return nil
}

// AddKeyword names a keyword. The first name seen for an id wins.
func (in *Ingestor) AddKeyword(r crates.KeywordRow) error {
	in.snap.Stats.Keywords++
	if _, ok := in.snap.KeywordNames[r.ID]; !ok {
		in.snap.KeywordNames[r.ID] = r.Keyword
	}
	return nil
}

// AddCategory names a category. The first name seen for an id wins.
func (in *Ingestor) AddCategory(r crates.CategoryRow) error {
	in.snap.Stats.Categories++
	if _, ok := in.snap.CategoryNames[r.ID]; !ok {
		in.snap.CategoryNames[r.ID] = r.Category
	}
	return nil
}
