package ai

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aimee/backend/internal/models"
)

// MockInterpreter classifies by keyword and narrates from a template. It is
// used when no model endpoint is configured.
type MockInterpreter struct {
	Locations  []string
	Processes  []string
	Categories []string
}

func NewMockInterpreter(locations []string) MockInterpreter {
	return MockInterpreter{
		Locations:  locations,
		Processes:  []string{"supervisor-correction", "correction", "entry-1", "entry-2", "visual"},
		Categories: []string{"Non-SS", "SS", "AHK", "Collection"},
	}
}

var (
	minutesBefore = regexp.MustCompile(`(\d+)\s*min(?:ute)?s?\s+before`)
	peopleCount   = regexp.MustCompile(`(\d+)\s*(?:people|persons|operators)`)

	crossPhrases  = []string{"from non-ss", "from another business", "cross-business", "cross business"}
	perProcess    = []string{"each process", "per process", "how many people"}
	riskPhrases   = []string{"risk", "expected delay", "will it be late", "likely to be late"}
	delayPhrases  = []string{"delay", "behind", "short", "backlog", "unprocessed", "late"}
	statusPhrases = []string{"status", "how is", "situation"}
	urgentPhrases = []string{"urgent", "asap", "immediately", "right now"}
)

func (m MockInterpreter) Analyze(_ context.Context, text string) (models.Analysis, error) {
	lower := strings.ToLower(text)
	e := m.entities(text, lower)

	kind := models.IntentGeneralInquiry
	requires := false
	switch {
	case containsAny(lower, impactPhrases):
		kind = models.IntentImpactAnalysis
	case containsAny(lower, completionPhrases) && !containsAny(lower, allocationPhrases):
		kind = models.IntentCompletionTimePrediction
	case containsAny(lower, allocationPhrases):
		kind, requires = models.IntentDeadlineOptimization, true
	case containsAny(lower, crossPhrases):
		kind, requires = models.IntentCrossBusinessTransfer, true
	case containsAny(lower, perProcess):
		kind = models.IntentProcessOptimization
	case containsAny(lower, riskPhrases):
		kind = models.IntentDelayRiskDetection
	case containsAny(lower, delayPhrases):
		kind, requires = models.IntentDelayResolution, true
	case containsAny(lower, statusPhrases):
		kind = models.IntentStatusCheck
	}

	urgency := models.UrgencyMedium
	if kind == models.IntentDelayResolution || containsAny(lower, urgentPhrases) {
		urgency = models.UrgencyHigh
	}
	return models.Analysis{
		Intent:         models.NewIntent(string(kind), e),
		Urgency:        urgency,
		RequiresAction: requires,
	}, nil
}

func (m MockInterpreter) entities(text, lower string) models.Entities {
	var e models.Entities
	for _, loc := range m.Locations {
		if loc != "" && strings.Contains(lower, strings.ToLower(loc)) {
			e.Location = loc
			break
		}
	}
	for _, p := range m.Processes {
		if strings.Contains(lower, p) {
			e.ProcessName = p
			break
		}
	}
	for _, c := range m.Categories {
		if strings.Contains(text, c) {
			e.BusinessCategory = c
			break
		}
	}
	if v, ok := firstInt(minutesBefore, lower); ok {
		e.DeadlineOffsetMinutes = &v
	}
	if v, ok := firstInt(peopleCount, lower); ok {
		e.TargetPeopleCount = &v
	}
	return e
}

func firstInt(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

func (m MockInterpreter) Narrate(_ context.Context, in NarrationInput) (string, error) {
	var b strings.Builder
	switch {
	case in.Analysis.Kind() == models.IntentImpactAnalysis && in.Suggestion != nil:
		fmt.Fprintf(&b, "The last proposal (%s) keeps at least two people in every source bucket, so the source sites keep running. %s", in.Suggestion.ID, in.Suggestion.Reason)
	case in.Suggestion != nil && len(in.Suggestion.Changes) > 0:
		people := 0
		for _, c := range in.Suggestion.Changes {
			people += c.Count
		}
		fmt.Fprintf(&b, "I propose %d move(s) covering %d people. %s", len(in.Suggestion.Changes), people, in.Suggestion.Reason)
		fmt.Fprintf(&b, " Expected impact: productivity %s, delay %s. The proposal is waiting for approval.", in.Suggestion.Impact.Productivity, in.Suggestion.Impact.Delay)
	case len(in.Shortage) > 0:
		fmt.Fprintf(&b, "%d bucket(s) are short and no transfer could be matched right now. Keep monitoring progress.", len(in.Shortage))
	default:
		b.WriteString("The current resources can handle the workload.")
	}
	if len(in.Candidates) > 0 {
		fmt.Fprintf(&b, " People who can cover it: %s.", strings.Join(in.Candidates, ", "))
	}
	if len(in.Knowledge) > 0 {
		fmt.Fprintf(&b, " Related know-how: %s", in.Knowledge[0])
	}
	return b.String(), nil
}
