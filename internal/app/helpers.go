package app

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Hashtags derives tags from the niche name and the topic.
func Hashtags(nicheName, topic string) []string {
	var tags []string
	for _, s := range []string{nicheName, topic} {
		tag := nonAlnum.ReplaceAllString(strings.ToLower(s), "")
		if tag == "" {
			continue
		}
		tags = mergeTags(tags, []string{"#" + tag})
	}
	return tags
}

func mergeTags(tags, extra []string) []string {
	seen := make(map[string]bool, len(tags)+len(extra))
	out := make([]string, 0, len(tags)+len(extra))
	for _, t := range append(append([]string(nil), tags...), extra...) {
		key := strings.ToLower(strings.TrimPrefix(t, "#"))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
