package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/profile-enrich/internal/model"
)

// RenderReport formats a terminal run as a human-readable text summary for
// CLI output. Fields print in alphabetical order so reports diff cleanly
// between runs.
func RenderReport(run *model.EnrichmentRun) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s — %s\n", run.ID, run.Status)
	if subject := subjectLine(run.Seed); subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", subject)
	}
	if run.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", run.Error)
	}

	if len(run.ProfileFields) > 0 {
		b.WriteString("\nProfile fields:\n")
		keys := make([]string, 0, len(run.ProfileFields))
		for k := range run.ProfileFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			f := run.ProfileFields[k]
			fmt.Fprintf(&b, "  %-14s %v\n", k, f.Value)
			fmt.Fprintf(&b, "  %-14s confidence %.2f, %d source(s), %s\n",
				"", f.Confidence, len(f.SourceURLs), f.Provenance)
			for _, u := range f.SourceURLs {
				fmt.Fprintf(&b, "  %-14s - %s\n", "", u)
			}
		}
	} else {
		b.WriteString("\nNo profile fields passed the confidence gate.\n")
	}

	if len(run.Failures) > 0 {
		fmt.Fprintf(&b, "\nFailures (%d):\n", len(run.Failures))
		for _, f := range run.Failures {
			fmt.Fprintf(&b, "  [%s] %s", f.ErrorKind, f.SourceURL)
			if f.Detail != "" {
				fmt.Fprintf(&b, ": %s", f.Detail)
			}
			b.WriteString("\n")
		}
	}

	if run.StartedAt != nil && run.FinishedAt != nil {
		fmt.Fprintf(&b, "\nDuration: %s\n", run.FinishedAt.Sub(*run.StartedAt).Round(time.Millisecond))
	}
	return b.String()
}

func subjectLine(seed model.IdentitySeed) string {
	var parts []string
	if seed.Email != "" {
		parts = append(parts, seed.Email)
	}
	if seed.PrimaryURL != "" {
		parts = append(parts, seed.PrimaryURL)
	}
	return strings.Join(parts, " / ")
}
