package category

import "strings"

// Match filters a full account list down to entries matching a
// colon-segmented partial query.
//
// The query is split on ':'. A candidate matches when some contiguous
// window of its own segments has the same length as the query and every
// query segment is a case-insensitive prefix of the corresponding window
// segment. Typing "groc" matches "Expenses:Groceries:Produce" and
// "exp:groc" narrows on two segments at once.
//
// An empty query, or a query with an empty segment, matches nothing so a
// blank input never selects the whole list. Input order is preserved.
func Match(categories []string, query string) []string {
	if query == "" {
		return nil
	}

	want := strings.Split(query, ":")
	for _, segment := range want {
		if segment == "" {
			return nil
		}
	}

	var matches []string
	for _, candidate := range categories {
		if matchSegments(strings.Split(candidate, ":"), want) {
			matches = append(matches, candidate)
		}
	}
	return matches
}

// matchSegments reports whether any window of have aligns with want.
func matchSegments(have, want []string) bool {
	if len(want) > len(have) {
		return false
	}

	for start := 0; start+len(want) <= len(have); start++ {
		ok := true
		for i, prefix := range want {
			if !hasPrefixFold(have[start+i], prefix) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// hasPrefixFold reports whether s starts with prefix under simple case
// folding. Comparison is rune-wise so multi-byte account names fold safely.
func hasPrefixFold(s, prefix string) bool {
	rs := []rune(s)
	rp := []rune(prefix)
	if len(rs) < len(rp) {
		return false
	}
	return strings.EqualFold(string(rs[:len(rp)]), prefix)
}
