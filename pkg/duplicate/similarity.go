package duplicate

import (
	"sort"
	"strings"
)

// TokenSetRatio scores how alike two titles are on a scale of 0 to 1, ignoring token order, repetition
// and case. Titles that share every token of the shorter one score 1.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var sect, diffAB, diffBA []string
	for t := range ta {
		if _, ok := tb[t]; ok {
			sect = append(sect, t)
		} else {
			diffAB = append(diffAB, t)
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			diffBA = append(diffBA, t)
		}
	}

	if len(sect) > 0 && (len(diffAB) == 0 || len(diffBA) == 0) {
		return 1
	}

	sort.Strings(sect)
	sort.Strings(diffAB)
	sort.Strings(diffBA)

	sectStr := strings.Join(sect, " ")
	abStr := strings.Join(diffAB, " ")
	baStr := strings.Join(diffBA, " ")

	best := normalizedIndel(abStr, baStr)
	if len(sect) == 0 {
		return best
	}

	sectLen := len([]rune(sectStr))
	abLen := len([]rune(abStr))
	baLen := len([]rune(baStr))

	// Comparing "sect" against "sect diff" only costs the diff and its joining space.
	sectAB := 1 - float64(abLen+1)/float64(2*sectLen+abLen+1)
	sectBA := 1 - float64(baLen+1)/float64(2*sectLen+baLen+1)

	return max(best, sectAB, sectBA)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// normalizedIndel returns 1 minus the insert/delete edit distance of a and b over their combined length.
func normalizedIndel(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	dist := total - 2*lcs(ra, rb)
	return 1 - float64(dist)/float64(total)
}

// lcs returns the length of the longest common subsequence of a and b.
func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
