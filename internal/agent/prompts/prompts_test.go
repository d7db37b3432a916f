package prompts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/open-democracy/em/go/orchestrator/internal/models"
)

func testParty() models.Party {
	return models.Party{
		ID:          uuid.New(),
		ShortName:   "SPD",
		FullName:    "Social Democratic Party",
		Description: "Centre-left party.",
		URL:         "https://spd.example",
		Candidate:   models.Candidate{GivenName: "Erika", FamilyName: "Mustermann"},
	}
}

func testElection() models.Election {
	return models.Election{
		ID:      uuid.New(),
		Name:    "Federal Election",
		Country: "Germany",
		Year:    2025,
		Date:    time.Date(2025, 9, 28, 0, 0, 0, 0, time.UTC),
		URL:     "https://election.example",
	}
}

func TestFormatDocumentsIndexesChunks(t *testing.T) {
	docs := []models.DocumentChunk{
		{Title: "Climate", Text: "Reduce emissions by 2030."},
		{Title: "Housing", Text: "Build 400k homes."},
	}
	out := FormatDocuments(docs)
	assert.Contains(t, out, "index: 0")
	assert.Contains(t, out, "index: 1")
	assert.Contains(t, out, "# Climate")
	assert.Contains(t, out, "Build 400k homes.")
}

func TestFormatDocumentsEmpty(t *testing.T) {
	assert.Equal(t, "No documents available.", FormatDocuments(nil))
}

func TestFormatWebSourcesOmitsEmptyFields(t *testing.T) {
	out := FormatWebSources([]models.WebSource{
		{Title: "News", URL: "https://news.example"},
		{Title: "Report", URL: "https://report.example", Snippet: "A snippet", PublishedAt: "2025-08-01"},
	})
	assert.Contains(t, out, "Title: News")
	assert.Contains(t, out, "Snippet: A snippet")
	assert.Contains(t, out, "Published: 2025-08-01")
	assert.Equal(t, 1, countOccurrences(out, "Snippet:"))
}

func TestSingleTargetAnswerEmbedsPartyMetadata(t *testing.T) {
	p := testParty()
	e := testElection()
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	docs := []models.DocumentChunk{{Title: "Climate", Text: "Reduce emissions."}}

	out := SingleTargetAnswer(e, p, docs, "", nil, now, models.Language{Code: "en", Name: "English"})

	assert.Contains(t, out, "SPD")
	assert.Contains(t, out, "Social Democratic Party")
	assert.Contains(t, out, "Erika Mustermann")
	assert.Contains(t, out, "Federal Election")
	assert.Contains(t, out, "September 28, 2025")
	assert.Contains(t, out, "September 1, 2025")
	assert.Contains(t, out, "Reduce emissions.")
	assert.Contains(t, out, "answer only in English")
	assert.NotContains(t, out, "Recent web information")
}

func TestSingleTargetAnswerIncludesWebSummary(t *testing.T) {
	out := SingleTargetAnswer(testElection(), testParty(), nil, "Recent summary.",
		[]models.WebSource{{Title: "News", URL: "https://news.example"}},
		time.Now(), models.Language{Name: "English"})
	assert.Contains(t, out, "Recent web information about SPD")
	assert.Contains(t, out, "Recent summary.")
	assert.Contains(t, out, "https://news.example")
}

func TestComparisonAnswerListsAllParties(t *testing.T) {
	spd := testParty()
	cdu := models.Party{ShortName: "CDU", FullName: "Christian Democratic Union"}
	blocks := ComparisonPartyBlock(spd, nil, nil) + ComparisonPartyBlock(cdu, nil, nil)

	out := ComparisonAnswer(testElection(), []models.Party{spd, cdu}, blocks, time.Now(), models.Language{Name: "German"})

	assert.Contains(t, out, "SPD (Social Democratic Party)")
	assert.Contains(t, out, "CDU (Christian Democratic Union)")
	assert.Contains(t, out, "answer only in German")
	assert.Equal(t, 2, countOccurrences(out, "<party>"))
	assert.Equal(t, 2, countOccurrences(out, "</party>"))
}

func TestResolveTargetsListsSelectedAndRemaining(t *testing.T) {
	selected := []models.Party{testParty()}
	out := ResolveTargets(selected, []string{"CDU", "FDP"})
	assert.Contains(t, out, "Social Democratic Party")
	assert.Contains(t, out, "CDU")
	assert.Contains(t, out, "FDP")
}

func TestRephraseNamesLanguage(t *testing.T) {
	out := Rephrase(models.Language{Code: "de", Name: "German"})
	assert.Contains(t, out, "German")
}

func TestGenericAnswerIncludesRoster(t *testing.T) {
	out := GenericAnswer(testElection(), []models.Party{testParty()}, "", nil,
		time.Now(), models.Language{Name: "English"})
	assert.Contains(t, out, "- SPD (Social Democratic Party): Centre-left party.")
	assert.NotContains(t, out, "Live web search summary")
}

func TestSchemasRequireAllFields(t *testing.T) {
	for _, schema := range []struct {
		name   string
		fields []string
		def    map[string]any
	}{
		{"resolve", []string{"selected_targets", "all_targets", "meta_question"}, ResolveTargetsSchema.Definition},
		{"rephrase", []string{"rephrased_question", "is_comparison_question"}, RephraseSchema.Definition},
		{"decision", []string{"use_web_search", "reason"}, WebSearchDecisionSchema.Definition},
		{"rerank", []string{"reranked_doc_indices"}, RerankSchema.Definition},
		{"title", []string{"conversation_title", "follow_up_one", "follow_up_two", "follow_up_three"}, TitleSchema.Definition},
	} {
		t.Run(schema.name, func(t *testing.T) {
			required, ok := schema.def["required"].([]string)
			assert.True(t, ok)
			assert.ElementsMatch(t, schema.fields, required)
			props, ok := schema.def["properties"].(map[string]any)
			assert.True(t, ok)
			for _, f := range schema.fields {
				assert.Contains(t, props, f)
			}
		})
	}
}

func countOccurrences(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}
