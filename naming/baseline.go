package naming

import "strings"

// Baseline returns the conventional default pattern for a workspace with no
// learnable convention: "{platform} - {event}".
func Baseline() *Pattern {
	return &Pattern{
		Separator: " - ",
		Segments: []Segment{
			{Variable: "platform"},
			{Variable: "event"},
		},
	}
}

// platformTypes maps leading name tokens to the tag type they conventionally
// denote.
var platformTypes = map[string]string{
	"ga4":        "gaawe",
	"ga":         "ua",
	"gads":       "awct",
	"adwords":    "awct",
	"fb":         "html",
	"meta":       "html",
	"floodlight": "flc",
	"html":       "html",
	"conv":       "awct",
}

// InferTypeFromName guesses a tag type from the leading token of a name,
// e.g. "GA4 - Purchase" suggests a GA4 event tag. Empty when nothing
// matches.
func InferTypeFromName(name string) string {
	toks := tokens(strings.ToLower(name))
	if len(toks) == 0 {
		return ""
	}
	return platformTypes[toks[0]]
}

// tokens splits on the separators naming conventions use.
func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', '-', '_', '.', '|', '/', ':', '>':
			return true
		}
		return false
	})
}
