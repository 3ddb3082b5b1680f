package models

import (
	"encoding/json"
	"strings"
)

type IntentKind string

const (
	IntentDelayResolution          IntentKind = "delay_resolution"
	IntentDeadlineOptimization     IntentKind = "deadline_optimization"
	IntentCrossBusinessTransfer    IntentKind = "cross_business_transfer"
	IntentProcessOptimization      IntentKind = "process_optimization"
	IntentDelayRiskDetection       IntentKind = "delay_risk_detection"
	IntentCompletionTimePrediction IntentKind = "completion_time_prediction"
	IntentImpactAnalysis           IntentKind = "impact_analysis"
	IntentStatusCheck              IntentKind = "status_check"
	IntentGeneralInquiry           IntentKind = "general_inquiry"
)

// Intent is a closed set: only the variants below implement it.
type Intent interface {
	Kind() IntentKind
	isIntent()
}

// Target names a bucket the user is talking about. Every field is optional.
type Target struct {
	Location         string `json:"location,omitempty"`
	BusinessCategory string `json:"business_category,omitempty"`
	BusinessName     string `json:"business_name,omitempty"`
	ProcessCategory  string `json:"process_category,omitempty"`
	ProcessName      string `json:"process_name,omitempty"`
}

type DelayResolution struct{ Target }

type DeadlineOptimization struct {
	Target
	DeadlineOffsetMinutes *int
	TargetPeopleCount     *int
}

type CrossBusinessTransfer struct {
	SourceBusinessCategory string
	SourceBusinessName     string
	TargetPeopleCount      *int
}

type ProcessOptimization struct{ Target }

type DelayRiskDetection struct{ Location string }

type CompletionTimePrediction struct{ Target }

type ImpactAnalysis struct{}

type StatusCheck struct{ Location string }

type GeneralInquiry struct{}

func (DelayResolution) Kind() IntentKind          { return IntentDelayResolution }
func (DeadlineOptimization) Kind() IntentKind     { return IntentDeadlineOptimization }
func (CrossBusinessTransfer) Kind() IntentKind    { return IntentCrossBusinessTransfer }
func (ProcessOptimization) Kind() IntentKind      { return IntentProcessOptimization }
func (DelayRiskDetection) Kind() IntentKind       { return IntentDelayRiskDetection }
func (CompletionTimePrediction) Kind() IntentKind { return IntentCompletionTimePrediction }
func (ImpactAnalysis) Kind() IntentKind           { return IntentImpactAnalysis }
func (StatusCheck) Kind() IntentKind              { return IntentStatusCheck }
func (GeneralInquiry) Kind() IntentKind           { return IntentGeneralInquiry }

func (DelayResolution) isIntent()          {}
func (DeadlineOptimization) isIntent()     {}
func (CrossBusinessTransfer) isIntent()    {}
func (ProcessOptimization) isIntent()      {}
func (DelayRiskDetection) isIntent()       {}
func (CompletionTimePrediction) isIntent() {}
func (ImpactAnalysis) isIntent()           {}
func (StatusCheck) isIntent()              {}
func (GeneralInquiry) isIntent()           {}

// Entities is the flat wire shape the interpreter emits.
type Entities struct {
	Location              string `json:"location,omitempty"`
	BusinessCategory      string `json:"business_category,omitempty"`
	BusinessName          string `json:"business_name,omitempty"`
	ProcessCategory       string `json:"process_category,omitempty"`
	ProcessName           string `json:"process_name,omitempty"`
	DeadlineOffsetMinutes *int   `json:"deadline_offset_minutes,omitempty"`
	TargetPeopleCount     *int   `json:"target_people_count,omitempty"`
}

func (e Entities) target() Target {
	return Target{
		Location:         strings.TrimSpace(e.Location),
		BusinessCategory: strings.TrimSpace(e.BusinessCategory),
		BusinessName:     strings.TrimSpace(e.BusinessName),
		ProcessCategory:  strings.TrimSpace(e.ProcessCategory),
		ProcessName:      strings.TrimSpace(e.ProcessName),
	}
}

// NewIntent builds the variant for kind, keeping only the entity fields that
// variant carries. Unknown kinds become GeneralInquiry.
func NewIntent(kind string, e Entities) Intent {
	t := e.target()
	switch IntentKind(strings.ToLower(strings.TrimSpace(kind))) {
	case IntentDelayResolution:
		return DelayResolution{Target: t}
	case IntentDeadlineOptimization:
		return DeadlineOptimization{Target: t, DeadlineOffsetMinutes: e.DeadlineOffsetMinutes, TargetPeopleCount: e.TargetPeopleCount}
	case IntentCrossBusinessTransfer:
		return CrossBusinessTransfer{SourceBusinessCategory: t.BusinessCategory, SourceBusinessName: t.BusinessName, TargetPeopleCount: e.TargetPeopleCount}
	case IntentProcessOptimization:
		return ProcessOptimization{Target: t}
	case IntentDelayRiskDetection:
		return DelayRiskDetection{Location: t.Location}
	case IntentCompletionTimePrediction:
		return CompletionTimePrediction{Target: t}
	case IntentImpactAnalysis:
		return ImpactAnalysis{}
	case IntentStatusCheck:
		return StatusCheck{Location: t.Location}
	default:
		return GeneralInquiry{}
	}
}

// EntitiesOf flattens an intent back to the wire shape.
func EntitiesOf(i Intent) Entities {
	fromTarget := func(t Target) Entities {
		return Entities{
			Location:         t.Location,
			BusinessCategory: t.BusinessCategory,
			BusinessName:     t.BusinessName,
			ProcessCategory:  t.ProcessCategory,
			ProcessName:      t.ProcessName,
		}
	}
	switch v := i.(type) {
	case DelayResolution:
		return fromTarget(v.Target)
	case DeadlineOptimization:
		e := fromTarget(v.Target)
		e.DeadlineOffsetMinutes = v.DeadlineOffsetMinutes
		e.TargetPeopleCount = v.TargetPeopleCount
		return e
	case CrossBusinessTransfer:
		return Entities{BusinessCategory: v.SourceBusinessCategory, BusinessName: v.SourceBusinessName, TargetPeopleCount: v.TargetPeopleCount}
	case ProcessOptimization:
		return fromTarget(v.Target)
	case DelayRiskDetection:
		return Entities{Location: v.Location}
	case CompletionTimePrediction:
		return fromTarget(v.Target)
	case StatusCheck:
		return Entities{Location: v.Location}
	default:
		return Entities{}
	}
}

// Analysis is the interpreter's verdict on one message.
type Analysis struct {
	Intent         Intent
	Urgency        string
	RequiresAction bool
}

// DefaultAnalysis is what callers fall back to when interpretation fails.
func DefaultAnalysis() Analysis {
	return Analysis{Intent: GeneralInquiry{}, Urgency: UrgencyMedium}
}

func (a Analysis) Kind() IntentKind {
	if a.Intent == nil {
		return IntentGeneralInquiry
	}
	return a.Intent.Kind()
}

// Proactive reports whether the intent asks for optimisation even when no
// bucket is short.
func (a Analysis) Proactive() bool {
	switch a.Kind() {
	case IntentDeadlineOptimization, IntentCrossBusinessTransfer:
		return true
	}
	return false
}

func (a Analysis) WantsSuggestion() bool {
	switch a.Kind() {
	case IntentImpactAnalysis:
		return false
	case IntentDelayResolution, IntentDeadlineOptimization, IntentCrossBusinessTransfer:
		return true
	}
	return a.RequiresAction
}

// Reported returns the location+process pair the user explicitly named, if any.
func (a Analysis) Reported() (string, string, bool) {
	var t Target
	switch v := a.Intent.(type) {
	case DelayResolution:
		t = v.Target
	case DeadlineOptimization:
		t = v.Target
	case ProcessOptimization:
		t = v.Target
	default:
		return "", "", false
	}
	if t.Location == "" || t.ProcessName == "" {
		return "", "", false
	}
	return t.Location, t.ProcessName, true
}

type analysisWire struct {
	IntentType     string   `json:"intent_type"`
	Urgency        string   `json:"urgency"`
	RequiresAction bool     `json:"requires_action"`
	Entities       Entities `json:"entities"`
}

func (a Analysis) MarshalJSON() ([]byte, error) {
	return json.Marshal(analysisWire{
		IntentType:     string(a.Kind()),
		Urgency:        a.Urgency,
		RequiresAction: a.RequiresAction,
		Entities:       EntitiesOf(a.Intent),
	})
}

func (a *Analysis) UnmarshalJSON(data []byte) error {
	var w analysisWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a.Intent = NewIntent(w.IntentType, w.Entities)
	a.Urgency = NormalizeUrgency(w.Urgency)
	a.RequiresAction = w.RequiresAction
	return nil
}

func NormalizeUrgency(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case UrgencyLow:
		return UrgencyLow
	case UrgencyHigh:
		return UrgencyHigh
	case UrgencyCritical:
		return UrgencyCritical
	default:
		return UrgencyMedium
	}
}
