// Package crates defines the data model shared by the index pipeline.
//
// The model has two halves. Row types (CrateRow, VersionRow, DependencyRow,
// ...) mirror the tables of a crates.io database snapshot and are produced by
// a dump source such as [github.com/matzehuels/crateindex/pkg/snapshot]. The
// [Package] aggregate is what the pipeline ranks and the binary codec emits.
//
// # Identifiers
//
// [PackageID], [VersionID], [KeywordID] and [CategoryID] are opaque 32-bit
// identifiers assigned by the snapshot. They are unique within their table
// and stable for the duration of a single run, nothing more.
//
// # Versions
//
// [Version] wraps a strictly parsed semantic version. A version is stable when
// its pre-release component is empty; the pipeline tracks the greatest stable
// and the greatest pre-release version of each package separately.
package crates
