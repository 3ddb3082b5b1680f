package proposal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aimee/backend/internal/models"
)

const (
	ConfidenceWithChanges = 0.85
	ConfidenceEmpty       = 0.5

	productivityPerChange = 10
	delayMinutesPerChange = 15
	qualityMaintained     = "maintained"

	// Past these the reason text asks for extra coordination.
	largeMoveThreshold  = 5
	manySourceThreshold = 2
)

type Synthesizer struct {
	Now func() time.Time
}

func NewSynthesizer() *Synthesizer {
	return &Synthesizer{Now: time.Now}
}

// Synthesize packages transfers into a Suggestion. It never fails: with no
// changes it still answers with a low-confidence, neutral proposal.
func (s *Synthesizer) Synthesize(changes []models.TransferChange) models.Suggestion {
	if changes == nil {
		changes = []models.TransferChange{}
	}
	n := len(changes)
	sg := models.Suggestion{
		ID:      s.newID(),
		Changes: changes,
		Impact: models.Impact{
			Productivity: fmt.Sprintf("+%d%%", productivityPerChange*n),
			Delay:        fmt.Sprintf("-%dmin", delayMinutesPerChange*n),
			Quality:      qualityMaintained,
		},
		ConfidenceScore: ConfidenceEmpty,
		Reason:          Reason(changes),
	}
	if n > 0 {
		sg.ConfidenceScore = ConfidenceWithChanges
	}
	return sg
}

func (s *Synthesizer) newID() string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("SGT%s-%s", now().UTC().Format("20060102150405"), suffix)
}

// Reason renders the rationale from total headcount and distinct sources.
func Reason(changes []models.TransferChange) string {
	if len(changes) == 0 {
		return "No viable transfer was found for the current shortages. Keep the current allocation and keep monitoring progress."
	}
	people := 0
	sources := map[string]struct{}{}
	for _, c := range changes {
		people += c.Count
		sources[c.FromLocation] = struct{}{}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Moving %d people from %d location(s) covers the most urgent gaps while every source keeps its minimum staffing.", people, len(sources))
	if people > largeMoveThreshold {
		b.WriteString(" This is a large reallocation; brief the receiving supervisors before the move.")
	}
	if len(sources) > manySourceThreshold {
		b.WriteString(" Several sites are involved, so confirm the timing with each source location.")
	}
	return b.String()
}
