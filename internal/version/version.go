// Package version orders the version strings attached to registrations.
//
// Versions that are valid semantic versions (with or without a leading "v")
// follow semver precedence via golang.org/x/mod/semver: missing minor and
// patch components count as zero, a pre-release sorts below its release and
// build metadata is ignored. Anything else, such as four-component versions
// like "1.2.3.4", is compared component by component.
package version

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Compare returns -1, 0 or +1 depending on whether a sorts before, equal to
// or after b.
func Compare(a, b string) int {
	ca, cb := canonical(a), canonical(b)
	if semver.IsValid(ca) && semver.IsValid(cb) {
		return semver.Compare(ca, cb)
	}
	return compareLoose(a, b)
}

// Greater reports whether a is strictly greater than b.
func Greater(a, b string) bool {
	return Compare(a, b) > 0
}

// canonical adds the "v" prefix semver expects.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || v[0] == 'v' {
		return v
	}
	return "v" + v
}

// compareLoose compares dot-separated numeric cores pairwise with missing
// components treated as zero. A "-suffix" ranks below the same core without
// one; two suffixes compare identifier by identifier. "+build" metadata is
// dropped.
func compareLoose(a, b string) int {
	coreA, preA := split(a)
	coreB, preB := split(b)

	partsA := strings.Split(coreA, ".")
	partsB := strings.Split(coreB, ".")
	n := max(len(partsA), len(partsB))
	for i := 0; i < n; i++ {
		if c := compareComponent(component(partsA, i), component(partsB, i)); c != 0 {
			return c
		}
	}

	switch {
	case preA == preB:
		return 0
	case preA == "":
		return 1
	case preB == "":
		return -1
	default:
		return comparePrerelease(preA, preB)
	}
}

// comparePrerelease orders dot-separated pre-release identifiers the way
// semver does: numeric identifiers compare as numbers and rank below
// alphanumeric ones, and a shorter list ranks below a longer one it prefixes.
func comparePrerelease(a, b string) int {
	idsA := strings.Split(a, ".")
	idsB := strings.Split(b, ".")
	for i := 0; i < min(len(idsA), len(idsB)); i++ {
		if c := compareComponent(idsA[i], idsB[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(idsA) < len(idsB):
		return -1
	case len(idsA) > len(idsB):
		return 1
	}
	return 0
}

func split(v string) (core, pre string) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexByte(v, '+'); i >= 0 {
		v = v[:i]
	}
	if i := strings.IndexByte(v, '-'); i >= 0 {
		return v[:i], v[i+1:]
	}
	return v, ""
}

func component(parts []string, i int) string {
	if i >= len(parts) || parts[i] == "" {
		return "0"
	}
	return parts[i]
}

func compareComponent(a, b string) int {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case errA == nil:
		// numeric identifiers have lower precedence than alphanumeric ones
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
