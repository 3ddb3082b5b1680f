package ai

import (
	"fmt"
	"strings"

	"github.com/aimee/backend/internal/models"
)

const analyzePrompt = `Analyse the message and answer with JSON only, no explanation.

Message: %s

{
  "intent_type": "one of the types below",
  "urgency": "high/medium/low",
  "requires_action": true/false,
  "entities": {
    "location": null,
    "business_category": null,
    "business_name": null,
    "process_category": null,
    "process_name": null,
    "deadline_offset_minutes": null,
    "target_people_count": null
  }
}

intent_type:
- deadline_optimization: asks for an allocation or staffing plan, possibly "N minutes before" a deadline
- completion_time_prediction: only asks when work will finish
- delay_risk_detection: asks whether a delay or risk is expected
- impact_analysis: asks about the impact of a move or whether the source is okay
- cross_business_transfer: asks to move people from another business
- process_optimization: asks how many people each process needs
- delay_resolution: reports a delay or a shortage to fix
- status_check: only asks for the current status
- general_inquiry: anything else

Entities follow the four-level hierarchy: business_category (SS, Non-SS, AHK, Collection),
business_name, process_category (OCR, non-OCR, visual), process_name (entry-1, entry-2,
correction, supervisor-correction, visual). location is a site name.
deadline_offset_minutes is the number in "N minutes before"; target_people_count the number in "N people".
Never guess: a value not written in the message must be null.`

// Phrases that override the model's classification when they appear.
var (
	impactPhrases     = []string{"any impact", "no impact", "is it okay", "is it ok", "source location", "where they move from"}
	completionPhrases = []string{"what time will", "when will it finish", "when will it be done", "finish by what time"}
	allocationPhrases = []string{"want to allocate", "optimal allocation", "best allocation", "staffing plan", "tell me the allocation"}
)

func buildAnalyzePrompt(message string) string {
	return fmt.Sprintf(analyzePrompt, message)
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// applyOverrides corrects obvious misclassifications. Impact questions win
// over everything; a completion-time question only wins when the message
// does not also ask for an allocation.
func applyOverrides(message string, a models.Analysis) models.Analysis {
	text := strings.ToLower(message)
	entities := models.EntitiesOf(a.Intent)
	switch {
	case containsAny(text, impactPhrases):
		a.Intent = models.NewIntent(string(models.IntentImpactAnalysis), entities)
		a.RequiresAction = false
	case containsAny(text, completionPhrases):
		if !containsAny(text, allocationPhrases) {
			a.Intent = models.NewIntent(string(models.IntentCompletionTimePrediction), entities)
			a.RequiresAction = false
		} else {
			a.Intent = models.NewIntent(string(models.IntentDeadlineOptimization), entities)
			a.RequiresAction = true
		}
	case containsAny(text, allocationPhrases):
		a.Intent = models.NewIntent(string(models.IntentDeadlineOptimization), entities)
		a.RequiresAction = true
	}
	return a
}

func buildNarratePrompt(in NarrationInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a workforce allocation advisor for a document processing operation.\nRequest: %s\n", in.Message)
	fmt.Fprintf(&b, "Intent: %s (urgency %s)\n", in.Analysis.Kind(), in.Analysis.Urgency)

	if len(in.History) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, t := range in.History {
			fmt.Fprintf(&b, "- user: %s\n  advisor: %s\n", t.Message, t.Response)
		}
	}
	if len(in.Knowledge) > 0 {
		b.WriteString("\nManager know-how:\n")
		for _, k := range in.Knowledge {
			fmt.Fprintf(&b, "- %s\n", k)
		}
	}
	if in.Headcount > 0 {
		fmt.Fprintf(&b, "\nPeople on shift: %d\n", in.Headcount)
	}
	writeGaps(&b, "Short buckets", in.Shortage, func(g models.GapEntry) int { return g.Shortage })
	writeGaps(&b, "Buckets with spare people", in.Surplus, func(g models.GapEntry) int { return g.Surplus })
	if len(in.Candidates) > 0 {
		b.WriteString("\nPeople able to cover the top shortage:\n")
		for _, c := range in.Candidates {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	if in.Suggestion != nil && len(in.Suggestion.Changes) > 0 {
		b.WriteString("\nProposed moves:\n")
		for _, c := range in.Suggestion.Changes {
			to := c.ToLocation
			if to == "" {
				to = "a site chosen at approval"
			}
			fmt.Fprintf(&b, "- %d from %s %s/%s to %s %s/%s\n", c.Count, c.FromLocation, c.FromBusinessName, c.FromProcessName, to, c.ToBusinessName, c.ToProcessName)
		}
		fmt.Fprintf(&b, "Expected impact: productivity %s, delay %s, quality %s\n", in.Suggestion.Impact.Productivity, in.Suggestion.Impact.Delay, in.Suggestion.Impact.Quality)
		b.WriteString("\nExplain the proposal briefly and say it is waiting for approval.")
	} else {
		b.WriteString("\nAnswer briefly using only the data above. If the data is not enough, say the current resources can handle it.")
	}
	return b.String()
}

func writeGaps(b *strings.Builder, title string, gaps []models.GapEntry, need func(models.GapEntry) int) {
	if len(gaps) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, g := range gaps {
		fmt.Fprintf(b, "- %s %s/%s/%s: %d people, need %d\n", g.Location, g.BusinessName, g.ProcessCategory, g.ProcessName, g.CurrentCount, need(g))
	}
}
