// Package prompts builds the system prompts and structured-output contracts
// for every engine stage. Prompt text is assembled with fmt; message history
// is passed separately to the completion service.
package prompts

import (
	"fmt"
	"strings"
	"time"

	"github.com/open-democracy/em/go/orchestrator/internal/models"
)

const dateLayout = "January 2, 2006"

// FormatDocuments renders retrieved chunks as an indexed source block. The
// indices are the citation ids the answer prompts refer to.
func FormatDocuments(docs []models.DocumentChunk) string {
	if len(docs) == 0 {
		return "No documents available."
	}
	var b strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&b, "<document>\nindex: %d\n# %s\n%s\n</document>\n", i, doc.Title, doc.Text)
	}
	return b.String()
}

// FormatWebSources renders normalized web sources for prompt grounding.
func FormatWebSources(sources []models.WebSource) string {
	var b strings.Builder
	for _, s := range sources {
		fmt.Fprintf(&b, "<web_source>\nTitle: %s\nURL: %s\n", s.Title, s.URL)
		if s.Snippet != "" {
			fmt.Fprintf(&b, "Snippet: %s\n", s.Snippet)
		}
		if s.PublishedAt != "" {
			fmt.Fprintf(&b, "Published: %s\n", s.PublishedAt)
		}
		b.WriteString("</web_source>\n")
	}
	return b.String()
}

// PartyList renders "Short (Full name)" joined by commas.
func PartyList(parties []models.Party) string {
	names := make([]string, len(parties))
	for i, p := range parties {
		names[i] = fmt.Sprintf("%s (%s)", p.ShortName, p.FullName)
	}
	return strings.Join(names, ", ")
}

// PartyOverview renders a one-line-per-party roster block.
func PartyOverview(parties []models.Party) string {
	var b strings.Builder
	for _, p := range parties {
		fmt.Fprintf(&b, "- %s (%s): %s\n", p.ShortName, p.FullName, p.Description)
	}
	return b.String()
}

func candidateName(p models.Party) string {
	return strings.TrimSpace(p.Candidate.GivenName + " " + p.Candidate.FamilyName)
}

func formatDate(t time.Time) string { return t.Format(dateLayout) }
