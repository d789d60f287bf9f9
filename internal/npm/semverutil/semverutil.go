// Package semverutil adapts npm-style version requirements to
// Masterminds/semver constraints and picks a highest-satisfying version
// with a stable tie-break rule.
package semverutil

import (
	"sort"

	"github.com/Masterminds/semver"
)

// Satisfies reports whether version satisfies the npm-style range req
// ("^1.2.3", "~1.2", ">=1.0.0 <2.0.0", "*", "1.x", an exact version, or
// "" which is treated as "*").
func Satisfies(version, req string) (bool, error) {
	if req == "" || req == "*" || req == "latest" {
		if _, err := semver.NewVersion(version); err != nil {
			return false, err
		}
		return true, nil
	}
	c, err := semver.NewConstraint(req)
	if err != nil {
		return false, err
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, err
	}
	return c.Check(v), nil
}

// HighestSatisfying picks the greatest version in available that satisfies
// req. When preferred is non-empty and present in available and satisfies
// req, it wins over a strictly higher version (the "prefer what's already
// in the snapshot" tie-break); otherwise the highest valid match wins.
func HighestSatisfying(available []string, req string, preferred string) (string, error) {
	var candidates []*semver.Version
	byString := map[string]*semver.Version{}

	for _, raw := range available {
		ok, err := Satisfies(raw, req)
		if err != nil || !ok {
			continue
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		candidates = append(candidates, v)
		byString[v.Original()] = v
	}
	if len(candidates) == 0 {
		return "", errNoMatch{req: req}
	}

	if preferred != "" {
		if _, ok := byString[preferred]; ok {
			return preferred, nil
		}
	}

	sort.Sort(semver.Collection(candidates))
	return candidates[len(candidates)-1].Original(), nil
}

type errNoMatch struct{ req string }

func (e errNoMatch) Error() string { return "no version satisfies " + e.req }
