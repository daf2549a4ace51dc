// Package naming learns the naming convention of an existing workspace and
// generates names that conform to it. A pattern is a separator plus a run
// of slots; slots are either literal (one observed value) or variable.
package naming

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// separatorCandidates are tried in order when learning a pattern. Longer,
// spaced separators come first so " - " wins over a bare "-" inside tokens.
var separatorCandidates = []string{" - ", "_", " | ", ".", " > ", " / ", " : "}

// minSeparatorScore is the floor a separator's score (coverage times shape
// plausibility) must clear to be adopted.
const minSeparatorScore = 0.5

// Slot value policy thresholds.
const (
	maxEnumValues = 5  // at most this many distinct values to keep the full set
	maxSampled    = 10 // sample size kept when a slot is open-ended
)

// Segment is one slot of a pattern. Exactly one of Literal or Variable is
// set. For variable slots, Values carries observed values; Exhaustive marks
// Values as the complete observed set rather than a sample.
type Segment struct {
	Literal    string   `json:"literal,omitempty"`
	Variable   string   `json:"variable,omitempty"`
	Values     []string `json:"values,omitempty"`
	Exhaustive bool     `json:"exhaustive,omitempty"`
}

// IsVariable reports whether the slot is variable.
func (s Segment) IsVariable() bool { return s.Variable != "" }

// Pattern is a learned naming convention. Confidence is the fraction of
// input names that re-match the inferred template exactly.
type Pattern struct {
	Separator  string    `json:"separator"`
	Segments   []Segment `json:"segments"`
	Confidence float64   `json:"confidence"`
	SampleSize int       `json:"sampleSize"`
}

// Template renders the pattern with {slot} placeholders, e.g.
// "GA4 - {event}".
func (p *Pattern) Template() string {
	parts := make([]string, 0, len(p.Segments))
	for _, s := range p.Segments {
		if s.IsVariable() {
			parts = append(parts, "{"+s.Variable+"}")
		} else {
			parts = append(parts, s.Literal)
		}
	}
	return strings.Join(parts, p.Separator)
}

// ExtractPattern learns a pattern from observed names. Each separator
// candidate is scored by the fraction of names it splits consistently,
// weighted by how plausible the resulting shape is; the best one wins if it
// clears the score floor, otherwise a common-prefix fallback applies.
func ExtractPattern(names []string) *Pattern {
	names = dedupNonEmpty(names)
	if len(names) == 0 {
		return &Pattern{Segments: []Segment{{Variable: "name"}}}
	}

	var best *Pattern
	bestScore := 0.0
	for _, sep := range separatorCandidates {
		if p, score := tryPattern(names, sep); p != nil && score > bestScore {
			best, bestScore = p, score
		}
	}
	if best != nil && bestScore >= minSeparatorScore {
		return best
	}
	return prefixFallback(names)
}

// tryPattern evaluates one separator. Names must agree on the part count
// for the separator to be usable. The returned score drives separator
// selection; the pattern's Confidence is the exact re-match fraction.
func tryPattern(names []string, sep string) (*Pattern, float64) {
	counts := make(map[int]int)
	for _, n := range names {
		if strings.Contains(n, sep) {
			counts[len(strings.Split(n, sep))]++
		}
	}
	bestParts, bestCount := 0, 0
	for parts, count := range counts {
		if count > bestCount || (count == bestCount && parts < bestParts) {
			bestParts, bestCount = parts, count
		}
	}
	if bestParts < 2 {
		return nil, 0
	}

	coverage := float64(bestCount) / float64(len(names))
	score := coverage * shapePlausibility(bestParts)
	if score == 0 {
		return nil, 0
	}

	// Collect per-slot values from the names that fit the shape.
	slotValues := make([]map[string]int, bestParts)
	for i := range slotValues {
		slotValues[i] = make(map[string]int)
	}
	fitting := 0
	for _, n := range names {
		parts := strings.Split(n, sep)
		if len(parts) != bestParts {
			continue
		}
		fitting++
		for i, part := range parts {
			slotValues[i][part]++
		}
	}

	segments := make([]Segment, bestParts)
	for i, values := range slotValues {
		segments[i] = classifySlot(i, values, fitting)
	}

	p := &Pattern{
		Separator:  sep,
		Segments:   segments,
		SampleSize: fitting,
	}
	rematched := 0
	for _, n := range names {
		if p.Validate(n) {
			rematched++
		}
	}
	p.Confidence = float64(rematched) / float64(len(names))
	return p, score
}

// shapePlausibility favors the 2-6 part shapes real naming conventions use.
func shapePlausibility(parts int) float64 {
	switch {
	case parts >= 2 && parts <= 6:
		return 1.0
	case parts == 7 || parts == 8:
		return 0.5
	default:
		return 0.1
	}
}

// classifySlot decides literal vs variable for one slot. A slot with a
// single observed value is literal. A slot with few distinct values
// relative to the sample is an enum variable carrying the full value set;
// anything wider keeps only a sample.
func classifySlot(index int, values map[string]int, sampleSize int) Segment {
	distinct := sortedByFrequency(values)
	if len(distinct) == 1 {
		return Segment{Literal: distinct[0]}
	}

	seg := Segment{Variable: slotName(index, distinct)}
	if len(distinct) <= maxEnumValues && float64(len(distinct)) < 0.5*float64(sampleSize) {
		seg.Values = distinct
		seg.Exhaustive = true
		return seg
	}
	if len(distinct) > maxSampled {
		distinct = distinct[:maxSampled]
	}
	seg.Values = distinct
	return seg
}

var snakeCaseRe = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)+$`)

var platformTokens = map[string]bool{
	"ga4": true, "ua": true, "gtag": true, "gtm": true,
	"fb": true, "meta": true, "gads": true, "awct": true, "flc": true,
}

var actionTokens = map[string]bool{
	"click": true, "view": true, "submit": true, "scroll": true,
	"load": true, "impression": true, "open": true,
}

// slotName picks a semantic slot name from the observed values. Inference
// is position-independent: values outside the vocabulary fall back to the
// slot index.
func slotName(index int, values []string) string {
	first := strings.ToLower(values[0])
	switch {
	case snakeCaseRe.MatchString(first):
		return "event"
	case platformTokens[first]:
		return "platform"
	case actionTokens[first]:
		return "action"
	default:
		return fmt.Sprintf("segment%d", index)
	}
}

// prefixFallback builds a pattern from the longest common prefix or suffix
// when no separator clears the score floor.
func prefixFallback(names []string) *Pattern {
	prefix := commonPrefix(names)
	if prefix != "" {
		return &Pattern{
			Segments:   []Segment{{Literal: prefix}, {Variable: "name"}},
			Confidence: 1.0,
			SampleSize: len(names),
		}
	}
	suffix := commonSuffix(names)
	if suffix != "" {
		return &Pattern{
			Segments:   []Segment{{Variable: "name"}, {Literal: suffix}},
			Confidence: 1.0,
			SampleSize: len(names),
		}
	}
	return &Pattern{
		Segments:   []Segment{{Variable: "name"}},
		SampleSize: len(names),
	}
}

// Generate renders a name from slot values. Literal slots need no input;
// variable slots without a supplied value render as {slot} placeholders so
// the caller can see what is missing.
func (p *Pattern) Generate(values map[string]string) (string, error) {
	parts := make([]string, 0, len(p.Segments))
	for _, s := range p.Segments {
		if !s.IsVariable() {
			parts = append(parts, s.Literal)
			continue
		}
		v, ok := values[s.Variable]
		if !ok || v == "" {
			parts = append(parts, "{"+s.Variable+"}")
			continue
		}
		if p.Separator != "" && strings.Contains(v, p.Separator) {
			return "", fmt.Errorf("value for slot %q contains the separator %q", s.Variable, p.Separator)
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, p.Separator), nil
}

// Validate reports whether a name conforms to the pattern: the part count
// matches and every literal slot holds its exact value.
func (p *Pattern) Validate(name string) bool {
	parts, ok := p.split(name)
	if !ok {
		return false
	}
	for i, s := range p.Segments {
		if !s.IsVariable() && parts[i] != s.Literal {
			return false
		}
	}
	return true
}

// Validation is the detailed result of checking a name against a pattern.
type Validation struct {
	Valid      bool     `json:"valid"`
	Issues     []string `json:"issues,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Check validates a name and, when it fails, explains why and suggests a
// correction built from whatever slots could still be recovered.
func (p *Pattern) Check(name string) Validation {
	parts, ok := p.split(name)
	if !ok {
		v := Validation{Issues: []string{fmt.Sprintf(
			"expected %d parts separated by %q", len(p.Segments), p.Separator)}}
		v.Suggestion, _ = p.Generate(nil)
		return v
	}

	v := Validation{Valid: true}
	recovered := make(map[string]string)
	for i, s := range p.Segments {
		if s.IsVariable() {
			recovered[s.Variable] = parts[i]
			continue
		}
		if parts[i] != s.Literal {
			v.Valid = false
			v.Issues = append(v.Issues, fmt.Sprintf(
				"part %d is %q, expected %q", i+1, parts[i], s.Literal))
		}
	}
	if !v.Valid {
		v.Suggestion, _ = p.Generate(recovered)
	}
	return v
}

// ExtractVariables parses a conforming name back into slot values.
func (p *Pattern) ExtractVariables(name string) (map[string]string, error) {
	parts, ok := p.split(name)
	if !ok {
		return nil, fmt.Errorf("name %q does not match pattern %q", name, p.Template())
	}
	values := make(map[string]string)
	for i, s := range p.Segments {
		if s.IsVariable() {
			values[s.Variable] = parts[i]
			continue
		}
		if parts[i] != s.Literal {
			return nil, fmt.Errorf("name %q does not match pattern %q", name, p.Template())
		}
	}
	return values, nil
}

// split carves a name into as many parts as the pattern has slots.
// Separator-less patterns use the literal prefix/suffix as the carve point.
func (p *Pattern) split(name string) ([]string, bool) {
	if p.Separator != "" {
		parts := strings.Split(name, p.Separator)
		if len(parts) != len(p.Segments) {
			return nil, false
		}
		return parts, true
	}

	switch {
	case len(p.Segments) == 1:
		return []string{name}, true
	case len(p.Segments) == 2 && !p.Segments[0].IsVariable():
		if !strings.HasPrefix(name, p.Segments[0].Literal) {
			return nil, false
		}
		return []string{p.Segments[0].Literal, name[len(p.Segments[0].Literal):]}, true
	case len(p.Segments) == 2 && !p.Segments[1].IsVariable():
		if !strings.HasSuffix(name, p.Segments[1].Literal) {
			return nil, false
		}
		return []string{name[:len(name)-len(p.Segments[1].Literal)], p.Segments[1].Literal}, true
	}
	return nil, false
}

func dedupNonEmpty(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func sortedByFrequency(values map[string]int) []string {
	out := make([]string, 0, len(values))
	for v := range values {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if values[out[i]] != values[out[j]] {
			return values[out[i]] > values[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func commonPrefix(names []string) string {
	prefix := names[0]
	for _, n := range names[1:] {
		for !strings.HasPrefix(n, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	if len(prefix) < 3 || prefix == names[0] {
		return ""
	}
	return prefix
}

func commonSuffix(names []string) string {
	suffix := names[0]
	for _, n := range names[1:] {
		for !strings.HasSuffix(n, suffix) {
			suffix = suffix[1:]
			if suffix == "" {
				return ""
			}
		}
	}
	if len(suffix) < 3 || suffix == names[0] {
		return ""
	}
	return suffix
}
