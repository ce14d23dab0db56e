// Package cluster groups file records into duplicate clusters, either by
// exact token equality or by bounded Hamming distance between perceptual
// tokens.
package cluster

import (
	"sort"
	"strings"

	"github.com/himanishpuri/MediaDNA/pkg/models"
)

// Exact groups records sharing a token. A group needs two distinct files.
func Exact(records []models.FileRecord, matchCaptureTime bool) []models.DuplicateCluster {
	owners := make(map[string][]int)
	var order []string
	for i, r := range records {
		for _, tok := range r.Tokens {
			k := tok.Key()
			if _, ok := owners[k]; !ok {
				order = append(order, k)
			}
			owners[k] = append(owners[k], i)
		}
	}

	var out []models.DuplicateCluster
	for _, k := range order {
		idx := owners[k]
		if len(idx) < 2 {
			continue
		}
		items := make([]models.FileRecord, 0, len(idx))
		for _, i := range idx {
			items = append(items, records[i])
		}
		out = append(out, models.DuplicateCluster{Token: k, Items: items})
	}
	return Finalize(out, matchCaptureTime)
}

// Finalize normalizes raw groups so every backend reports the same result:
// members are unique and sorted by path, groups below two members are
// dropped, groups with identical member sets collapse onto the smallest
// token key, the capture-time filter is applied and the output is ordered
// by token key.
func Finalize(clusters []models.DuplicateCluster, matchCaptureTime bool) []models.DuplicateCluster {
	byMembers := make(map[string]int)
	var out []models.DuplicateCluster

	for _, c := range clusters {
		c.Items = uniqueByPath(c.Items)
		if len(c.Items) < 2 {
			continue
		}
		sort.Slice(c.Items, func(i, j int) bool { return c.Items[i].Path < c.Items[j].Path })

		c.Total = len(c.Items)
		c.MaxFileSize = 0
		for _, it := range c.Items {
			if s := it.Metadata.FileSize(); s > c.MaxFileSize {
				c.MaxFileSize = s
			}
		}
		if c.Family == "" {
			if fam, _, ok := strings.Cut(c.Token, ":"); ok {
				c.Family = models.Family(fam)
			}
		}

		key := strings.Join(c.Paths(), "\x00")
		if at, ok := byMembers[key]; ok {
			if c.Token < out[at].Token {
				out[at] = c
			}
			continue
		}
		byMembers[key] = len(out)
		out = append(out, c)
	}

	if matchCaptureTime {
		kept := out[:0]
		for _, c := range out {
			if SameCaptureTime(c) {
				kept = append(kept, c)
			}
		}
		out = kept
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

// SameCaptureTime reports whether the known capture times of the members
// agree. An unknown capture time is compatible with any other.
func SameCaptureTime(c models.DuplicateCluster) bool {
	known := ""
	for _, it := range c.Items {
		ct := it.Metadata.CaptureTime()
		if ct == models.UnknownCaptureTime {
			continue
		}
		if known == "" {
			known = ct
			continue
		}
		if ct != known {
			return false
		}
	}
	return true
}

func uniqueByPath(items []models.FileRecord) []models.FileRecord {
	seen := make(map[string]struct{}, len(items))
	out := make([]models.FileRecord, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.Path]; ok {
			continue
		}
		seen[it.Path] = struct{}{}
		out = append(out, it)
	}
	return out
}
