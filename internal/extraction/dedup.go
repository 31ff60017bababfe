package extraction

import (
	"strings"

	"github.com/jonathan/resume-tailor/internal/types"
)

// Dedup collapses requirements whose normalized text matches, keeping the
// higher-weight entry. Order follows first occurrence, so a later duplicate
// never moves a requirement down the list.
func Dedup(requirements []types.JobRequirement) []types.JobRequirement {
	kept := make([]types.JobRequirement, 0, len(requirements))
	index := make(map[string]int, len(requirements))

	for _, req := range requirements {
		key := normalizeKey(req.Text)
		if pos, seen := index[key]; seen {
			if req.Weight > kept[pos].Weight {
				req.ID = kept[pos].ID
				kept[pos] = req
			}
			continue
		}
		index[key] = len(kept)
		kept = append(kept, req)
	}

	return kept
}

// normalizeKey lowercases and collapses whitespace so formatting differences
// do not defeat deduplication.
func normalizeKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// isBlank reports whether s has no visible characters.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
