package domain

import "strings"

// MaxTags caps the number of tags stored per link.
const MaxTags = 10

// NormalizeTags parses a raw comma-separated tag string into an ordered
// list: segments are trimmed, lower-cased and empty entries dropped.
// Duplicates are preserved and the result is truncated to MaxTags.
func NormalizeTags(raw string) []string {
	if raw == "" {
		return nil
	}

	var tags []string
	for _, segment := range strings.Split(raw, ",") {
		tag := strings.ToLower(strings.TrimSpace(segment))
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
		if len(tags) == MaxTags {
			break
		}
	}
	return tags
}

// JoinTags builds the stored comma-joined representation.
func JoinTags(tags []string) string {
	return strings.Join(tags, ",")
}

// SplitTags is the inverse of JoinTags for already-normalized storage.
func SplitTags(stored string) []string {
	if stored == "" {
		return nil
	}
	return strings.Split(stored, ",")
}
