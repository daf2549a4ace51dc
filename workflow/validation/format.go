package validation

import (
	"fmt"
	"strings"
)

// FormatReport renders a report in the stable text layout used by the CLI:
// a PASSED/FAILED banner, per-section counts, and bulleted findings.
func FormatReport(r *Report) string {
	var b strings.Builder

	banner := "VALIDATION PASSED"
	if !r.Success {
		banner = "VALIDATION FAILED"
	}
	line := strings.Repeat("=", len(banner)+8)
	fmt.Fprintf(&b, "%s\n    %s\n%s\n\n", line, banner, line)

	fmt.Fprintf(&b, "Expected entities: %d\n", r.Summary.ExpectedCount)
	fmt.Fprintf(&b, "Found in target:   %d\n", r.Summary.ActualCount)
	fmt.Fprintf(&b, "Missing:           %d\n", r.Summary.MissingCount)
	fmt.Fprintf(&b, "Broken references: %d\n", r.Summary.BrokenRefCount)

	if len(r.Missing) > 0 {
		b.WriteString("\nMissing entities:\n")
		for _, m := range r.Missing {
			fmt.Fprintf(&b, "  - %s %q (source %s", m.Kind, m.Name, m.SourceID)
			if m.TargetID != "" {
				fmt.Fprintf(&b, ", mapped to %s", m.TargetID)
			}
			b.WriteString(")\n")
		}
	}

	if len(r.BrokenReferences) > 0 {
		b.WriteString("\nBroken references:\n")
		for _, br := range r.BrokenReferences {
			fmt.Fprintf(&b, "  - %s %q -> %s: %s\n", br.Kind, br.Name, br.Reference, br.Details)
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}

	fmt.Fprintf(&b, "\nValidated at %s\n", r.Timestamp.Format("2006-01-02 15:04:05 MST"))
	return b.String()
}
