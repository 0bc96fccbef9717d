// Package version compares dotted numeric versions, Go toolchain versions and module pseudo-versions.
package version

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Status classifies a current version against a reference version
type Status string

const (
	// StatusCurrent indicates the versions are equal in the compared components
	StatusCurrent Status = "current"
	// StatusOutdated indicates the current version is older than the reference
	StatusOutdated Status = "outdated"
	// StatusAhead indicates the current version is newer than the reference
	StatusAhead Status = "ahead"
)

// pseudoPattern matches 0.0.0-<timestamp>-<hash> pseudo-versions
var pseudoPattern = regexp.MustCompile(`^v?0\.0\.0-(\d+)-([0-9A-Za-z]+)$`)

// parsed is either a release version or a pseudo-version timestamp
type parsed struct {
	raw    string
	pseudo bool
	stamp  string
	v      *semver.Version
}

// parse accepts an optional "v" or "go" prefix and pads missing components with zero
func parse(s string) (parsed, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "go")

	if m := pseudoPattern.FindStringSubmatch(trimmed); m != nil {
		return parsed{raw: s, pseudo: true, stamp: m[1]}, nil
	}

	v, err := semver.NewVersion(trimmed)
	if err != nil {
		return parsed{}, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return parsed{raw: s, v: v}, nil
}

// order returns <0, 0, >0 as a is older than, equal to or newer than b.
// Pseudo-versions sort below every release and compare by timestamp among themselves.
func order(a, b parsed, majorOnly bool) int {
	switch {
	case a.pseudo && b.pseudo:
		return strings.Compare(a.stamp, b.stamp)
	case a.pseudo:
		return -1
	case b.pseudo:
		return 1
	}

	if !majorOnly {
		return a.v.Compare(b.v)
	}

	if c := compareUint(a.v.Major(), b.v.Major()); c != 0 {
		return c
	}
	return compareUint(a.v.Minor(), b.v.Minor())
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Order compares two versions on all three components
func Order(a, b string) (int, error) {
	return orderStrings(a, b, false)
}

func orderStrings(a, b string, majorOnly bool) (int, error) {
	pa, err := parse(a)
	if err != nil {
		return 0, err
	}
	pb, err := parse(b)
	if err != nil {
		return 0, err
	}
	return order(pa, pb, majorOnly), nil
}

func statusFromOrder(c int) Status {
	switch {
	case c < 0:
		return StatusOutdated
	case c > 0:
		return StatusAhead
	default:
		return StatusCurrent
	}
}

// Compare classifies current against latest using major.minor.patch
func Compare(current, latest string) (Status, error) {
	c, err := orderStrings(current, latest, false)
	if err != nil {
		return "", err
	}
	return statusFromOrder(c), nil
}

// CompareMajorOnly classifies current against latest using only major.minor, so a point
// release on a supported line is never outdated
func CompareMajorOnly(current, latest string) (Status, error) {
	c, err := orderStrings(current, latest, true)
	if err != nil {
		return "", err
	}
	return statusFromOrder(c), nil
}

// IsNewer reports whether a is strictly newer than b. Unparseable input is never newer.
func IsNewer(a, b string) bool {
	c, err := Order(a, b)
	if err != nil {
		return false
	}
	return c > 0
}

// IsPseudo reports whether v is a 0.0.0-<timestamp>-<hash> pseudo-version
func IsPseudo(v string) bool {
	return pseudoPattern.MatchString(strings.TrimSpace(v))
}

// Latest returns the newest parseable version of the list, or "" when none parse
func Latest(versions []string) string {
	var best *parsed
	for _, raw := range versions {
		p, err := parse(raw)
		if err != nil {
			continue
		}
		if best == nil || order(p, *best, false) > 0 {
			cp := p
			best = &cp
		}
	}
	if best == nil {
		return ""
	}
	return best.raw
}

// Recommend returns the lowest stable version strictly newer than current in the compared
// components. Within a major.minor line in major-only mode the newest patch is preferred.
// The second return value is false when current is already at or above every stable version.
func Recommend(current string, stable []string, majorOnly bool) (string, bool) {
	cur, err := parse(current)
	if err != nil {
		return "", false
	}

	var best *parsed
	for _, raw := range stable {
		candidate, err := parse(raw)
		if err != nil || candidate.pseudo {
			continue
		}
		if order(candidate, cur, majorOnly) <= 0 {
			continue
		}
		if best == nil {
			cp := candidate
			best = &cp
			continue
		}
		c := order(candidate, *best, majorOnly)
		if c < 0 || (c == 0 && order(candidate, *best, false) > 0) {
			cp := candidate
			best = &cp
		}
	}

	if best == nil {
		return "", false
	}
	return best.raw, true
}

// InStableLine reports whether current shares its major.minor release line with a stable version
func InStableLine(current string, stable []string) bool {
	line, err := MajorMinor(current)
	if err != nil {
		return false
	}
	for _, s := range stable {
		if mm, err := MajorMinor(s); err == nil && mm == line {
			return true
		}
	}
	return false
}

// MajorMinor renders a version as "major.minor"
func MajorMinor(v string) (string, error) {
	p, err := parse(v)
	if err != nil {
		return "", err
	}
	if p.pseudo {
		return "", fmt.Errorf("pseudo-version %q has no release line", v)
	}
	return fmt.Sprintf("%d.%d", p.v.Major(), p.v.Minor()), nil
}
