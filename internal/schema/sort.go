package schema

import (
	"strings"

	"db-relay/internal/logger"
)

// dependencies lists the relations of set referenced by r, itself excluded.
func dependencies(r *Relation, set map[*Relation]bool) []*Relation {
	var deps []*Relation
	seen := make(map[*Relation]bool)
	for _, fk := range r.foreignKeys {
		f := fk.ForeignRelation()
		if f == r || !set[f] || seen[f] {
			continue
		}
		seen[f] = true
		deps = append(deps, f)
	}
	return deps
}

// SortByDependencies orders relations so that a referenced relation comes
// before the relations referencing it. Foreign keys to relations outside
// the slice are ignored. Cycles are broken with a score: relations with
// fewer pending dependencies win, and a relation that is part of a two-way
// cycle gets a boost. Ties go to the lower name.
func SortByDependencies(relations []*Relation) []*Relation {
	set := make(map[*Relation]bool, len(relations))
	for _, r := range relations {
		set[r] = true
	}
	deps := make(map[*Relation][]*Relation, len(relations))
	for _, r := range relations {
		deps[r] = dependencies(r, set)
	}

	sorted := make([]*Relation, 0, len(relations))
	processed := make(map[*Relation]bool, len(relations))

	for len(sorted) < len(relations) {
		added := false

		for _, r := range relations {
			if processed[r] {
				continue
			}
			ready := true
			for _, d := range deps[r] {
				if !processed[d] {
					ready = false
					break
				}
			}
			if ready {
				sorted = append(sorted, r)
				processed[r] = true
				added = true
			}
		}
		if added {
			continue
		}

		var best *Relation
		bestScore := 0
		for _, r := range relations {
			if processed[r] {
				continue
			}
			score := 0
			circular := false
			for _, d := range deps[r] {
				if processed[d] {
					continue
				}
				score -= 100
				for _, back := range deps[d] {
					if back == r {
						circular = true
					}
				}
			}
			if circular {
				score += 500
			}
			if best == nil || score > bestScore ||
				(score == bestScore && strings.ToLower(r.Name()) < strings.ToLower(best.Name())) {
				best, bestScore = r, score
			}
		}
		sorted = append(sorted, best)
		processed[best] = true
		logger.L().Debugf("breaking a foreign key cycle at %s (score %d)", best, bestScore)
	}
	return sorted
}
