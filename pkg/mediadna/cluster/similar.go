package cluster

import (
	"sort"

	"github.com/himanishpuri/MediaDNA/pkg/models"
)

// Similar clusters records whose 64-bit perceptual tokens lie within
// threshold bits of each other. Neighbourhoods are followed transitively,
// so raising the threshold only ever merges clusters. Threshold 0 is exact
// perceptual matching. Content tokens are ignored.
func Similar(records []models.FileRecord, threshold int, matchCaptureTime bool) []models.DuplicateCluster {
	if threshold < 0 {
		threshold = 0
	}

	owners := make(map[uint64][]int)
	tree := &BKTree{}
	for i, r := range records {
		for _, tok := range r.Tokens {
			if tok.Family != models.FamilyPerceptual {
				continue
			}
			v, ok := tok.Uint64()
			if !ok {
				continue
			}
			tree.Add(v)
			owners[v] = append(owners[v], i)
		}
	}

	values := make([]uint64, 0, len(owners))
	for v := range owners {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	assigned := make(map[uint64]bool, len(values))
	var out []models.DuplicateCluster

	for _, start := range values {
		if assigned[start] {
			continue
		}
		component := []uint64{start}
		assigned[start] = true
		for q := 0; q < len(component); q++ {
			for _, n := range tree.Search(component[q], threshold) {
				if !assigned[n] {
					assigned[n] = true
					component = append(component, n)
				}
			}
		}

		seen := make(map[int]bool)
		var items []models.FileRecord
		rep := component[0]
		for _, v := range component {
			if v < rep {
				rep = v
			}
			for _, i := range owners[v] {
				if !seen[i] {
					seen[i] = true
					items = append(items, records[i])
				}
			}
		}
		if len(items) < 2 {
			continue
		}
		out = append(out, models.DuplicateCluster{
			Token:  models.NewPerceptualToken(rep).Key(),
			Family: models.FamilyPerceptual,
			Items:  items,
		})
	}

	return Finalize(out, matchCaptureTime)
}
