// Package match scores and ranks entities against queries: exact name
// lookup, fuzzy name search, and structural tag similarity. Scores are
// integers on a 0-100 scale.
package match

import (
	"sort"
	"strings"

	"github.com/c360studio/tagmirror/entity"
)

// Match is one scored result.
type Match struct {
	Header entity.Header `json:"header"`
	Score  int           `json:"score"`
}

// Options bound a ranked search.
type Options struct {
	// TopK caps the result count. Zero means no cap.
	TopK int
	// Threshold drops results scoring below it.
	Threshold int
}

// SearchTagsByName ranks tags by fuzzy name similarity to the query.
// Results sort by descending score, ties by name.
func SearchTagsByName(tags []*entity.Tag, query string, opts Options) []Match {
	var matches []Match
	for _, t := range tags {
		score := NameScore(query, t.Name)
		if score < opts.Threshold {
			continue
		}
		matches = append(matches, Match{Header: t.Header(), Score: score})
	}
	return rank(matches, opts.TopK)
}

// SearchVariablesByName ranks variables by fuzzy name similarity.
func SearchVariablesByName(vars []*entity.Variable, query string, opts Options) []Match {
	var matches []Match
	for _, v := range vars {
		score := NameScore(query, v.Name)
		if score < opts.Threshold {
			continue
		}
		matches = append(matches, Match{Header: v.Header(), Score: score})
	}
	return rank(matches, opts.TopK)
}

// FindGA4TagsByEventName returns tags that push the given event, sorted by
// name.
func FindGA4TagsByEventName(tags []*entity.Tag, eventName string) []*entity.Tag {
	var out []*entity.Tag
	for _, t := range tags {
		if t.EventName() == eventName {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Structural similarity weights. Name dominates; type and parameter overlap
// separate tags whose names tie.
const (
	weightName   = 50
	weightType   = 20
	weightParams = 30
)

// FindSimilarTags ranks candidate tags by structural similarity to a
// reference tag: weighted name score, exact type match, and parameter key
// overlap. The reference itself is excluded by id.
func FindSimilarTags(reference *entity.Tag, candidates []*entity.Tag, opts Options) []Match {
	refKeys := parameterKeys(reference.Parameter)

	var matches []Match
	for _, c := range candidates {
		if c.TagID != "" && c.TagID == reference.TagID {
			continue
		}
		score := weightName * NameScore(reference.Name, c.Name) / 100
		if c.Type == reference.Type {
			score += weightType
		}
		score += weightParams * subsetScore(refKeys, parameterKeys(c.Parameter)) / 100
		if score < opts.Threshold {
			continue
		}
		matches = append(matches, Match{Header: c.Header(), Score: score})
	}
	return rank(matches, opts.TopK)
}

// NameScore computes fuzzy similarity between two names on a 0-100 scale:
// token Jaccard overlap with a bonus when one name prefixes the other.
// Comparison is case-insensitive.
func NameScore(a, b string) int {
	la, lb := strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if la == "" || lb == "" {
		return 0
	}
	if la == lb {
		return 100
	}

	ta, tb := tokens(la), tokens(lb)
	inter := 0
	seen := make(map[string]bool, len(ta))
	for _, tok := range ta {
		seen[tok] = true
	}
	union := len(seen)
	for _, tok := range tb {
		if seen[tok] {
			inter++
			seen[tok] = false
			continue
		}
		if _, ok := seen[tok]; !ok {
			union++
			seen[tok] = false
		}
	}
	score := 0
	if union > 0 {
		score = 80 * inter / union
	}
	if strings.HasPrefix(la, lb) || strings.HasPrefix(lb, la) {
		score += 20
	}
	if score > 100 {
		score = 100
	}
	return score
}

// tokens splits a lowered name on the separators that appear in tag naming
// conventions.
func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', '-', '_', '.', '|', '/', ':', '>':
			return true
		}
		return false
	})
}

// subsetScore measures how much of the reference key set the candidate
// covers, 0-100.
func subsetScore(ref, candidate map[string]bool) int {
	if len(ref) == 0 {
		return 0
	}
	covered := 0
	for key := range ref {
		if candidate[key] {
			covered++
		}
	}
	return 100 * covered / len(ref)
}

func parameterKeys(params []*entity.Parameter) map[string]bool {
	keys := make(map[string]bool)
	entity.WalkParameters(params, func(p *entity.Parameter) {
		if p.Key != "" {
			keys[p.Key] = true
		}
	})
	return keys
}

func rank(matches []Match, topK int) []Match {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Header.Name < matches[j].Header.Name
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
