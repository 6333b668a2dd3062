package anonymizer

import (
	"sort"
	"strings"
)

// applyMappings rewrites text by substituting every mapping's original with
// its tag. Replacement is whole-document: every occurrence of an original
// is replaced, so detectors that only localize one occurrence still yield a
// consistent result. Longer originals are applied first so a short original
// never clobbers part of a longer one containing it.
func applyMappings(text string, mappings []Mapping) string {
	if len(mappings) == 0 {
		return text
	}

	ordered := make([]Mapping, len(mappings))
	copy(ordered, mappings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Original) > len(ordered[j].Original)
	})

	for _, m := range ordered {
		// Literal replacement; originals never pass through a regex, so no
		// metacharacter escaping is needed.
		text = strings.ReplaceAll(text, m.Original, m.Anonymized)
	}

	return text
}
