package syncer

import (
	"sort"
	"strings"
)

// keywordTags maps assignment-name keywords to task tags. Keys must appear as
// whole whitespace-separated words; "presentation:" covers the common case of
// a name like "Presentation: group 4".
var keywordTags = map[string]string{
	"quiz":          "quiz",
	"lab":           "lab",
	"assignment":    "hw",
	"homework":      "hw",
	"midterm":       "exam",
	"midtermexam":   "exam",
	"mid":           "exam",
	"final":         "exam",
	"finalexam":     "exam",
	"presentation":  "pre",
	"presentation:": "pre",
}

// Classify derives category tags from an assignment name. The result is
// sorted, de-duplicated, and never empty: "hw" is the fallback, and "exam" is
// dropped whenever any other tag also matched (exam is a fallback label, not
// an additive one).
func Classify(name string) []string {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(name)) {
		words[w] = true
	}

	tags := make(map[string]bool)
	for keyword, tag := range keywordTags {
		if words[keyword] {
			tags[tag] = true
		}
	}

	if tags["exam"] && len(tags) > 1 {
		delete(tags, "exam")
	}
	if len(tags) == 0 {
		return []string{"hw"}
	}

	out := make([]string, 0, len(tags))
	for tag := range tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
