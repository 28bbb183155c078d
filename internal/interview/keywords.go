package interview

import "strings"

// MatchKeywords returns the terms (in their original spelling) that appear
// case-insensitively in content, without duplicates.
//
// Called when a transcript arrives without keywords: the job post's skills
// are matched against the utterance.
func MatchKeywords(content string, terms []string) []string {
	if len(terms) == 0 || content == "" {
		return nil
	}
	lowered := strings.ToLower(content)
	seen := make(map[string]struct{}, len(terms))
	var matched []string
	for _, term := range terms {
		key := strings.ToLower(strings.TrimSpace(term))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		if strings.Contains(lowered, key) {
			seen[key] = struct{}{}
			matched = append(matched, strings.TrimSpace(term))
		}
	}
	return matched
}
