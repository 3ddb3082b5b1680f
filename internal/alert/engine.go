package alert

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/aimee/backend/internal/metrics"
	"github.com/aimee/backend/internal/models"
)

//go:embed rules.yaml
var defaultRules []byte

const (
	CompareGTE = "gte"
	CompareLTE = "lte"
)

type Rule struct {
	ID         string  `yaml:"id"`
	Type       string  `yaml:"type"`
	Priority   string  `yaml:"priority"`
	Title      string  `yaml:"title"`
	Metric     string  `yaml:"metric"`
	Location   string  `yaml:"location"`
	Threshold  float64 `yaml:"threshold"`
	Comparison string  `yaml:"comparison"`
	Message    string  `yaml:"message"`
	Request    string  `yaml:"request"`
	RuleSource string  `yaml:"rule_source"`
}

type RuleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Observation is one measured value, optionally scoped to a location.
type Observation struct {
	Metric   string  `json:"metric"`
	Location string  `json:"location,omitempty"`
	Value    float64 `json:"value"`
}

type Engine struct {
	rules  []Rule
	logger zerolog.Logger
}

// NewEngine loads rules from path. An empty or missing path falls back to the
// embedded defaults.
func NewEngine(path string, logger zerolog.Logger) (*Engine, error) {
	data := defaultRules
	source := "embedded"
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			data, source = raw, path
		case errors.Is(err, os.ErrNotExist):
			logger.Warn().Str("path", path).Msg("alert rules file not found, using defaults")
		default:
			return nil, err
		}
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("load alert rules from %s: %w", source, err)
	}
	logger.Info().Str("source", source).Int("rules", len(rules)).Msg("alert rules loaded")
	return &Engine{rules: rules, logger: logger}, nil
}

func ParseRules(data []byte) ([]Rule, error) {
	var f RuleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	for i := range f.Rules {
		r := &f.Rules[i]
		if r.ID == "" || r.Metric == "" {
			return nil, fmt.Errorf("rule %d: id and metric are required", i)
		}
		if r.Type == "" {
			r.Type = r.ID
		}
		switch strings.ToLower(r.Comparison) {
		case "", CompareGTE:
			r.Comparison = CompareGTE
		case CompareLTE:
			r.Comparison = CompareLTE
		default:
			return nil, fmt.Errorf("rule %s: unknown comparison %q", r.ID, r.Comparison)
		}
		r.Priority = models.NormalizeUrgency(r.Priority)
	}
	return f.Rules, nil
}

func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate returns one alert per (rule, observation) pair that crosses the
// rule's threshold, in rule order.
func (e *Engine) Evaluate(observations []Observation) []models.Alert {
	alerts := []models.Alert{}
	for _, r := range e.rules {
		for _, o := range observations {
			if o.Metric != r.Metric {
				continue
			}
			if r.Location != "" && !strings.EqualFold(r.Location, o.Location) {
				continue
			}
			if !r.crossed(o.Value) {
				continue
			}
			alerts = append(alerts, r.alert(o))
			metrics.ObserveAlert(r.Type)
		}
	}
	if len(alerts) > 0 {
		e.logger.Info().Int("alerts", len(alerts)).Msg("alert evaluation finished")
	}
	return alerts
}

// RequestText turns an alert into a free-text request for the advisor.
func (e *Engine) RequestText(a models.Alert) string {
	for _, r := range e.rules {
		if r.ID == ruleID(a.ID) && r.Request != "" {
			return render(r.Request, a.Location, a.CurrentValue, a.Threshold)
		}
	}
	for _, r := range e.rules {
		if r.Type == a.Type && r.Request != "" {
			return render(r.Request, a.Location, a.CurrentValue, a.Threshold)
		}
	}
	if a.Message != "" {
		return a.Message
	}
	return "An alert has been raised. Please propose a countermeasure."
}

func (r Rule) crossed(v float64) bool {
	if r.Comparison == CompareLTE {
		return v <= r.Threshold
	}
	return v >= r.Threshold
}

func (r Rule) alert(o Observation) models.Alert {
	id := r.ID
	if o.Location != "" {
		id = r.ID + "@" + o.Location
	}
	return models.Alert{
		ID:           id,
		Type:         r.Type,
		Priority:     r.Priority,
		Title:        r.Title,
		Message:      render(r.Message, o.Location, o.Value, r.Threshold),
		Location:     o.Location,
		Threshold:    r.Threshold,
		CurrentValue: o.Value,
		RuleSource:   r.RuleSource,
	}
}

func ruleID(alertID string) string {
	id, _, _ := strings.Cut(alertID, "@")
	return id
}

func render(tmpl, location string, value, threshold float64) string {
	if location == "" {
		location = "All sites"
	}
	return strings.NewReplacer(
		"{location}", location,
		"{value}", formatNumber(value),
		"{threshold}", formatNumber(threshold),
	).Replace(tmpl)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
