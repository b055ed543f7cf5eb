package extension

import (
	"github.com/Masterminds/semver/v3"
)

// checkDependencies verifies that every declared dependency is already
// present among currently loaded instances, and that any declared semver
// constraint matches the loaded version. This is a presence check against
// load order, not a global topological resolution.
func checkDependencies(manifest *Manifest, loaded func(id string) (*Manifest, bool)) error {
	for _, dep := range manifest.Dependencies {
		depManifest, ok := loaded(dep.ID)
		if !ok {
			return &DependencyError{
				ID:         manifest.ID,
				Missing:    dep.ID,
				Constraint: dep.Version,
				Reason:     "not loaded",
			}
		}

		if dep.Version == "" {
			continue
		}

		constraint, err := semver.NewConstraint(dep.Version)
		if err != nil {
			return &DependencyError{
				ID:         manifest.ID,
				Missing:    dep.ID,
				Constraint: dep.Version,
				Reason:     "invalid version constraint",
			}
		}
		version, err := semver.NewVersion(depManifest.Version)
		if err != nil {
			return &DependencyError{
				ID:         manifest.ID,
				Missing:    dep.ID,
				Constraint: dep.Version,
				Reason:     "dependency has unparsable version " + depManifest.Version,
			}
		}
		if !constraint.Check(version) {
			return &DependencyError{
				ID:         manifest.ID,
				Missing:    dep.ID,
				Constraint: dep.Version,
				Reason:     "loaded version " + depManifest.Version + " does not satisfy constraint",
			}
		}
	}
	return nil
}

// sortByDependencies orders discovered extensions so dependencies come
// before dependents (Kahn's algorithm, stable over discovery order).
// Extensions caught in a dependency cycle are returned in the failure map
// and excluded from the order. Dependencies on ids outside the discovered
// set are left to the per-load presence check.
func sortByDependencies(discovered []DiscoveredExtension, manifests map[string]*Manifest) ([]DiscoveredExtension, map[string]error) {
	byID := make(map[string]DiscoveredExtension, len(discovered))
	indegree := make(map[string]int, len(discovered))
	dependents := make(map[string][]string, len(discovered))

	order := make([]string, 0, len(discovered))
	for _, d := range discovered {
		manifest, ok := manifests[d.DirID]
		if !ok {
			continue
		}
		byID[manifest.ID] = d
		indegree[manifest.ID] = 0
		order = append(order, manifest.ID)
	}

	for _, id := range order {
		manifest := manifests[byID[id].DirID]
		for _, dep := range manifest.Dependencies {
			if _, inSet := byID[dep.ID]; !inSet {
				continue
			}
			indegree[id]++
			dependents[dep.ID] = append(dependents[dep.ID], id)
		}
	}

	var queue []string
	for _, id := range order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var sorted []DiscoveredExtension
	resolved := make(map[string]bool, len(order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		resolved[id] = true
		sorted = append(sorted, byID[id])

		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	failures := make(map[string]error)
	for _, id := range order {
		if !resolved[id] {
			failures[id] = &DependencyError{
				ID:      id,
				Missing: id,
				Reason:  "extension is part of a dependency cycle",
			}
		}
	}

	return sorted, failures
}
