package crates

import "time"

// Identifiers assigned by the snapshot source.
type (
	PackageID  uint32
	VersionID  uint32
	KeywordID  uint32
	CategoryID uint32
)

// DependencyKind is the kind column of a dependency row.
type DependencyKind uint8

// Dependency kinds as numbered by crates.io.
const (
	KindNormal DependencyKind = 0
	KindBuild  DependencyKind = 1
	KindDev    DependencyKind = 2
)

// String returns the Cargo.toml section name for the kind.
func (k DependencyKind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindBuild:
		return "build"
	case KindDev:
		return "dev"
	default:
		return "unknown"
	}
}

// =============================================================================
// Snapshot Rows
// =============================================================================

// CrateRow is one row of the crates table.
type CrateRow struct {
	ID            PackageID
	Name          string
	Description   string
	Homepage      *string
	Repository    *string
	Documentation *string
	CreatedAt     time.Time
}

// VersionRow is one row of the versions table. Num is kept as published;
// parsing it is the ingestor's job.
type VersionRow struct {
	ID        VersionID
	CrateID   PackageID
	Num       string
	CreatedAt time.Time
	HasLib    bool
}

// DependencyRow is one edge of the dependency table: version VersionID of
// some crate depends on crate CrateID.
type DependencyRow struct {
	VersionID VersionID
	CrateID   PackageID
	Kind      DependencyKind
}

// DefaultVersionRow carries the per-crate aggregate version count.
// NumVersions is nil when the snapshot left the column empty.
type DefaultVersionRow struct {
	CrateID     PackageID
	VersionID   VersionID
	NumVersions *uint32
}

// CrateKeywordRow associates a crate with a keyword.
type CrateKeywordRow struct {
	CrateID   PackageID
	KeywordID KeywordID
}

// CrateCategoryRow associates a crate with a category.
type CrateCategoryRow struct {
	CrateID    PackageID
	CategoryID CategoryID
}

// KeywordRow names a keyword.
type KeywordRow struct {
	ID      KeywordID
	Keyword string
}

// CategoryRow names a category.
type CategoryRow struct {
	ID       CategoryID
	Category string
}

// =============================================================================
// Package Aggregate
// =============================================================================

// Package is the ranked, serializable view of a library crate.
//
// Optional string fields are nil when absent. The binary encoding cannot tell
// nil from a pointer to "", so decoders always produce nil for empty values.
// Likewise Keywords and Categories are empty, never nil, when a package has
// none.
type Package struct {
	Order               uint32       `json:"order"`
	Name                string       `json:"name"`
	Description         string       `json:"description"`
	Repository          *string      `json:"repository,omitempty"`
	Homepage            *string      `json:"homepage,omitempty"`
	Documentation       *string      `json:"documentation,omitempty"`
	LatestStableVersion *string      `json:"latest_stable_version,omitempty"`
	LatestVersion       *string      `json:"latest_version,omitempty"`
	Categories          []CategoryID `json:"categories"`
	Keywords            []KeywordID  `json:"keywords"`
	NumVersions         uint32       `json:"num_versions"`
}

// Optional returns a pointer to s, or nil when s is empty.
func Optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the value behind p, or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
