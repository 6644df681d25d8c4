package duplicate

// DefaultThreshold is the score at which a title is reported as a possible duplicate.
const DefaultThreshold = 0.78

// RecentWindow is the number of recent titles a candidate is compared against.
const RecentWindow = 25

// Match is the closest existing title to a candidate.
type Match struct {
	Title string
	Score float64
}

// Best returns the most similar title that scores at least threshold. Ties go to the more recent title,
// which comes first in recent.
func Best(candidate string, recent []string, threshold float64) (*Match, bool) {
	var best *Match
	for _, title := range recent {
		score := TokenSetRatio(candidate, title)
		if score < threshold {
			continue
		}
		if best == nil || score > best.Score {
			best = &Match{Title: title, Score: score}
		}
	}
	return best, best != nil
}
