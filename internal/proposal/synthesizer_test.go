package proposal

import (
	"strings"
	"testing"
	"time"

	"github.com/aimee/backend/internal/models"
)

func fixedSynth() *Synthesizer {
	return &Synthesizer{Now: func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }}
}

func TestSynthesizeWithChanges(t *testing.T) {
	changes := []models.TransferChange{
		{FromLocation: "Shinagawa", ToLocation: "Sapporo", Count: 2},
		{FromLocation: "Osaka", ToLocation: "Sapporo", Count: 1},
	}
	sg := fixedSynth().Synthesize(changes)

	if !strings.HasPrefix(sg.ID, "SGT20260301093000-") {
		t.Fatalf("expected time-based id, got %s", sg.ID)
	}
	if sg.Impact.Productivity != "+20%" || sg.Impact.Delay != "-30min" || sg.Impact.Quality != "maintained" {
		t.Fatalf("unexpected impact: %+v", sg.Impact)
	}
	if sg.ConfidenceScore != 0.85 {
		t.Fatalf("expected confidence 0.85, got %f", sg.ConfidenceScore)
	}
	if !strings.Contains(sg.Reason, "3 people from 2 location") {
		t.Fatalf("unexpected reason: %s", sg.Reason)
	}
	if strings.Contains(sg.Reason, "large reallocation") || strings.Contains(sg.Reason, "Several sites") {
		t.Fatalf("did not expect escalation: %s", sg.Reason)
	}
}

func TestSynthesizeEmptyStillAnswers(t *testing.T) {
	sg := fixedSynth().Synthesize(nil)
	if sg.Changes == nil || len(sg.Changes) != 0 {
		t.Fatalf("expected empty, non-nil changes")
	}
	if sg.Impact.Productivity != "+0%" || sg.Impact.Delay != "-0min" {
		t.Fatalf("unexpected impact: %+v", sg.Impact)
	}
	if sg.ConfidenceScore != 0.5 {
		t.Fatalf("expected confidence 0.5, got %f", sg.ConfidenceScore)
	}
	if sg.Reason == "" {
		t.Fatalf("expected neutral reason")
	}
}

func TestReasonEscalates(t *testing.T) {
	changes := []models.TransferChange{
		{FromLocation: "A", Count: 2},
		{FromLocation: "B", Count: 2},
		{FromLocation: "C", Count: 2},
	}
	reason := Reason(changes)
	if !strings.Contains(reason, "large reallocation") {
		t.Fatalf("expected headcount escalation: %s", reason)
	}
	if !strings.Contains(reason, "Several sites") {
		t.Fatalf("expected source escalation: %s", reason)
	}
}

func TestSynthesizeIsDeterministicApartFromID(t *testing.T) {
	changes := []models.TransferChange{{FromLocation: "A", ToLocation: "B", Count: 1}}
	a := fixedSynth().Synthesize(changes)
	b := fixedSynth().Synthesize(changes)
	if a.Impact != b.Impact || a.Reason != b.Reason || a.ConfidenceScore != b.ConfidenceScore {
		t.Fatalf("expected identical content: %+v vs %+v", a, b)
	}
}
