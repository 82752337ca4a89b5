package match

import (
	"sort"
	"strings"
)

// Rank returns the candidates within maxDistance of query, closest first.
// Candidates are compared case-insensitively and returned verbatim; ties on
// distance keep the original candidate order. An empty slice means no
// candidate qualified.
func Rank(query string, candidates []string, maxDistance int) []string {
	lowered := strings.ToLower(query)

	type scored struct {
		candidate string
		distance  int
	}
	results := make([]scored, 0, len(candidates))
	for _, candidate := range candidates {
		d := Distance(lowered, strings.ToLower(candidate))
		if d <= maxDistance {
			results = append(results, scored{candidate: candidate, distance: d})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].distance < results[j].distance
	})

	ranked := make([]string, 0, len(results))
	for _, r := range results {
		ranked = append(ranked, r.candidate)
	}
	return ranked
}
