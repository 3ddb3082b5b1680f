package ai

import (
	"context"
	"errors"

	"github.com/aimee/backend/internal/models"
)

var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedResponse   = errors.New("malformed upstream response")
)

// Interpreter turns free text into a structured Analysis and turns a
// finished pipeline run back into prose.
type Interpreter interface {
	Analyze(ctx context.Context, text string) (models.Analysis, error)
	Narrate(ctx context.Context, in NarrationInput) (string, error)
}

// NarrationInput is everything the narrator may mention.
type NarrationInput struct {
	Message    string
	Analysis   models.Analysis
	Knowledge  []string
	Shortage   []models.GapEntry
	Surplus    []models.GapEntry
	Headcount  int
	// Candidates are people able to cover the top shortage, already
	// formatted for display.
	Candidates []string
	Suggestion *models.Suggestion
	History    []models.ConversationTurn
}
