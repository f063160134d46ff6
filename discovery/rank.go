package discovery

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultFuzzyThreshold is the minimum normalized similarity for a fuzzy
// match to be included in results.
const DefaultFuzzyThreshold = 0.6

// Match tiers. Fuzzy scores are scaled below the substring tier so the
// ordering exact > substring > description > fuzzy always holds.
const (
	scoreExact     = 1.0
	scoreSubstring = 0.75
	scoreDescMatch = 0.6
	scoreFuzzyBase = 0.5
)

// Candidate is a name/description pair to be ranked against a keyword.
type Candidate struct {
	Name        string
	Description string
}

// Ranked is a candidate with its relevance score.
type Ranked struct {
	Candidate
	Score float64
}

// Rank orders candidates by relevance to keyword: exact name match, then
// name substring, then description substring, then fuzzy name match at or
// above threshold. Ties break alphabetically by name. Candidates that match
// nothing are omitted; an empty result is valid.
func Rank(keyword string, candidates []Candidate, threshold float64) []Ranked {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(keyword))
	if needle == "" {
		return nil
	}

	var out []Ranked
	for _, c := range candidates {
		name := fold.String(c.Name)
		desc := fold.String(c.Description)

		var score float64
		switch {
		case name == needle:
			score = scoreExact
		case strings.Contains(name, needle):
			score = scoreSubstring
		case desc != "" && strings.Contains(desc, needle):
			score = scoreDescMatch
		default:
			if sim := similarity(name, needle); sim >= threshold {
				score = scoreFuzzyBase * sim
			}
		}
		if score > 0 {
			out = append(out, Ranked{Candidate: c, Score: score})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// similarity returns normalized Levenshtein similarity in [0, 1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes edit distance with a two-row table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
