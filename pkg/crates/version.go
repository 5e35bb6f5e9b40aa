package crates

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is a parsed semantic version. The zero value is not valid; obtain
// one from [ParseVersion].
type Version struct {
	v *semver.Version
}

// ParseVersion parses s as a strict semantic version (MAJOR.MINOR.PATCH with
// optional pre-release and build metadata, no "v" prefix).
func ParseVersion(s string) (Version, error) {
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("parse version %q: %w", s, err)
	}
	return Version{v: v}, nil
}

// MustParseVersion is like ParseVersion but panics on error. Intended for tests
// and static tables.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsPrerelease reports whether the version carries a pre-release tag.
func (v Version) IsPrerelease() bool { return v.v.Prerelease() != "" }

// Less reports whether v has strictly lower precedence than o.
func (v Version) Less(o Version) bool { return v.v.LessThan(o.v) }

// String returns the canonical form, e.g. "1.2.3-beta.1".
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}
