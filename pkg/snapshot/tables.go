package snapshot

import "github.com/matzehuels/crateindex/pkg/crates"

// Required columns per table. Other columns are ignored.
var (
	crateColumns          = []string{"id", "name", "description", "homepage", "repository", "documentation", "created_at"}
	versionColumns        = []string{"id", "crate_id", "num", "created_at", "has_lib"}
	dependencyColumns     = []string{"version_id", "crate_id", "kind"}
	defaultVersionColumns = []string{"crate_id", "version_id", "num_versions"}
	crateKeywordColumns   = []string{"crate_id", "keyword_id"}
	crateCategoryColumns  = []string{"crate_id", "category_id"}
	keywordColumns        = []string{"id", "keyword"}
	categoryColumns       = []string{"id", "category"}
)

func decodeCrate(d *rowDecoder) crates.CrateRow {
	return crates.CrateRow{
		ID:            crates.PackageID(d.u32("id")),
		Name:          d.str("name"),
		Description:   d.str("description"),
		Homepage:      d.optional("homepage"),
		Repository:    d.optional("repository"),
		Documentation: d.optional("documentation"),
		CreatedAt:     d.timestamp("created_at"),
	}
}

func decodeVersion(d *rowDecoder) crates.VersionRow {
	return crates.VersionRow{
		ID:        crates.VersionID(d.u32("id")),
		CrateID:   crates.PackageID(d.u32("crate_id")),
		Num:       d.str("num"),
		CreatedAt: d.timestamp("created_at"),
		HasLib:    d.boolean("has_lib"),
	}
}

func decodeDependency(d *rowDecoder) crates.DependencyRow {
	return crates.DependencyRow{
		VersionID: crates.VersionID(d.u32("version_id")),
		CrateID:   crates.PackageID(d.u32("crate_id")),
		Kind:      crates.DependencyKind(d.u32("kind")),
	}
}

func decodeDefaultVersion(d *rowDecoder) crates.DefaultVersionRow {
	return crates.DefaultVersionRow{
		CrateID:     crates.PackageID(d.u32("crate_id")),
		VersionID:   crates.VersionID(d.u32("version_id")),
		NumVersions: d.optionalUint32("num_versions"),
	}
}

func decodeCrateKeyword(d *rowDecoder) crates.CrateKeywordRow {
	return crates.CrateKeywordRow{
		CrateID:   crates.PackageID(d.u32("crate_id")),
		KeywordID: crates.KeywordID(d.u32("keyword_id")),
	}
}

func decodeCrateCategory(d *rowDecoder) crates.CrateCategoryRow {
	return crates.CrateCategoryRow{
		CrateID:    crates.PackageID(d.u32("crate_id")),
		CategoryID: crates.CategoryID(d.u32("category_id")),
	}
}

func decodeKeyword(d *rowDecoder) crates.KeywordRow {
	return crates.KeywordRow{
		ID:      crates.KeywordID(d.u32("id")),
		Keyword: d.str("keyword"),
	}
}

func decodeCategory(d *rowDecoder) crates.CategoryRow {
	return crates.CategoryRow{
		ID:       crates.CategoryID(d.u32("id")),
		Category: d.str("category"),
	}
}
