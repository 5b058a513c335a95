package bus

import (
	"github.com/grovetools/prodtrack/errors"
)

// order sorts handlers so every handler runs after the ones named in its
// After list. Ties keep registration order. Names outside the group are
// ignored. On a cycle the unresolved handlers follow in registration order
// and an error is returned.
func order(kind Kind, group []registered) ([]registered, *errors.Error) {
	if len(group) < 2 {
		return group, nil
	}

	byName := make(map[string][]int, len(group))
	for i, r := range group {
		byName[r.name] = append(byName[r.name], i)
	}

	// deps[i] lists indexes that must run before i.
	deps := make([][]int, len(group))
	for i, r := range group {
		for _, name := range r.after {
			for _, j := range byName[name] {
				if j != i {
					deps[i] = append(deps[i], j)
				}
			}
		}
	}

	done := make([]bool, len(group))
	out := make([]registered, 0, len(group))
	for len(out) < len(group) {
		progressed := false
		for i := range group {
			if done[i] || !ready(deps[i], done) {
				continue
			}
			done[i] = true
			out = append(out, group[i])
			progressed = true
			// Restart from the front so earlier registrations win ties.
			break
		}
		if !progressed {
			break
		}
	}

	if len(out) == len(group) {
		return out, nil
	}

	var stuck []string
	for i, r := range group {
		if !done[i] {
			stuck = append(stuck, r.name)
			out = append(out, r)
		}
	}
	return out, errors.DependencyCycle(kind.String(), stuck)
}

func ready(deps []int, done []bool) bool {
	for _, j := range deps {
		if !done[j] {
			return false
		}
	}
	return true
}
