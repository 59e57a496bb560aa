package scoring

// FrontierCandidate is a listing scored across the six breakdown dimensions.
type FrontierCandidate struct {
	ID        string    `json:"id"`
	Breakdown Breakdown `json:"breakdown"`
}

// ComputeFrontier returns the Pareto-optimal candidates from the input set,
// preserving input order. Every breakdown dimension is higher-is-better, so a
// candidate is dominated if another is >= on all six and strictly better on
// at least one. O(n^2), fine for a user's favorites list.
func ComputeFrontier(candidates []FrontierCandidate) []FrontierCandidate {
	if len(candidates) <= 1 {
		return candidates
	}

	var frontier []FrontierCandidate
	for i := range candidates {
		dominated := false
		for j := range candidates {
			if i == j {
				continue
			}
			if dominates(candidates[j].Breakdown, candidates[i].Breakdown) {
				dominated = true
				break
			}
		}
		if !dominated {
			frontier = append(frontier, candidates[i])
		}
	}
	return frontier
}

func dominates(a, b Breakdown) bool {
	av, bv := a.Values(), b.Values()
	strictly := false
	for i := range av {
		if av[i] < bv[i] {
			return false
		}
		if av[i] > bv[i] {
			strictly = true
		}
	}
	return strictly
}
