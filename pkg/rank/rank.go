// Package rank turns an ingested snapshot into the ordered package list.
//
// Popularity is the number of distinct packages whose newest release depends
// on a package. [CountDependents] computes it from the raw dependency edges
// and [Rank] joins the counts with the snapshot's metadata.
package rank

import (
	"sort"

	"github.com/matzehuels/crateindex/pkg/crates"
	"github.com/matzehuels/crateindex/pkg/ingest"
)

// Counts maps a package to its number of dependents.
type Counts map[crates.PackageID]uint32

type edgeKey struct {
	version crates.VersionID
	target  crates.PackageID
}

// CountDependents counts, per target package, the edges whose consuming
// version is in mostRecent. Several edges from one version to one target
// (normal, build and dev entries) count once.
func CountDependents(edges []crates.DependencyRow, mostRecent map[crates.VersionID]struct{}) Counts {
	counts := make(Counts)
	seen := make(map[edgeKey]struct{})
	for _, e := range edges {
		if _, ok := mostRecent[e.VersionID]; !ok {
			continue
		}
		k := edgeKey{e.VersionID, e.CrateID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		counts[e.CrateID]++
	}
	return counts
}

// FillZero adds an explicit zero for every package in ids that has no count.
func (c Counts) FillZero(ids map[crates.PackageID]struct{}) {
	for id := range ids {
		if _, ok := c[id]; !ok {
			c[id] = 0
		}
	}
}

// Reduce counts the dependents of every package in s and zero-fills the
// library-capable ones.
func Reduce(s *ingest.Snapshot) Counts {
	c := CountDependents(s.Edges, s.MostRecentVersions())
	c.FillZero(s.HasLib)
	return c
}

// Rank builds one Package per library-capable package with a metadata row,
// sorted by dependent count descending and then by name ascending. Packages
// missing from counts rank with zero. Keyword and category lists are never
// nil.
func Rank(s *ingest.Snapshot, counts Counts) []crates.Package {
	out := make([]crates.Package, 0, len(s.HasLib))
	for id := range s.HasLib {
		row, ok := s.Crates[id]
		if !ok {
			continue
		}
		p := crates.Package{
			Order:         counts[id],
			Name:          row.Name,
			Description:   row.Description,
			Repository:    row.Repository,
			Homepage:      row.Homepage,
			Documentation: row.Documentation,
			Keywords:      append([]crates.KeywordID{}, s.KeywordAssoc[id]...),
			Categories:    append([]crates.CategoryID{}, s.CategoryAssoc[id]...),
			NumVersions:   s.VersionCount[id],
		}
		if v, ok := s.StableLatest[id]; ok {
			p.LatestStableVersion = crates.Optional(v.String())
		}
		if v, ok := s.PrereleaseLatest[id]; ok {
			p.LatestVersion = crates.Optional(v.String())
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order > out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out
}
