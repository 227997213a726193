package boot

import (
	"path"
	"strings"

	"snapset/src/snapset"
)

// resolveProfile picks the profile for a host. Resolution order:
//
//  1. explicit profile name
//  2. exact uname match
//  3. pattern match, most specific pattern first (specificity is the
//     length of the literal prefix before the first glob metacharacter)
//  4. the configured default profile
//
// A tie between equally specific patterns breaks by profile name ascending
// so resolution is reproducible.
func resolveProfile(profiles []snapset.Profile, explicit, uname, defaultName string) (snapset.Profile, error) {
	byName := make(map[string]snapset.Profile, len(profiles))
	for _, p := range profiles {
		byName[p.Name] = p
	}

	if explicit != "" {
		if p, ok := byName[explicit]; ok {
			return p, nil
		}
		return snapset.Profile{}, &snapset.ProfileNotFoundError{Name: explicit}
	}

	for _, p := range profiles {
		if p.UnamePattern == uname {
			return p, nil
		}
	}

	best := snapset.Profile{}
	bestLen := -1
	for _, p := range profiles {
		if p.UnamePattern == "" {
			continue
		}
		ok, err := path.Match(p.UnamePattern, uname)
		if err != nil || !ok {
			continue
		}
		l := literalPrefixLen(p.UnamePattern)
		if l > bestLen || (l == bestLen && p.Name < best.Name) {
			best, bestLen = p, l
		}
	}
	if bestLen >= 0 {
		return best, nil
	}

	if defaultName != "" {
		if p, ok := byName[defaultName]; ok {
			return p, nil
		}
	}
	return snapset.Profile{}, &snapset.ProfileNotFoundError{Uname: uname}
}

// literalPrefixLen returns the length of the pattern prefix before the
// first glob metacharacter.
func literalPrefixLen(pattern string) int {
	if i := strings.IndexAny(pattern, "*?["); i >= 0 {
		return i
	}
	return len(pattern)
}
