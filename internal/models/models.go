package models

import "time"

type CapabilityRecord struct {
	PersonID         string `json:"person_id"`
	PersonName       string `json:"person_name"`
	Location         string `json:"location"`
	BusinessCategory string `json:"business_category"`
	BusinessName     string `json:"business_name"`
	ProcessCategory  string `json:"process_category"`
	ProcessName      string `json:"process_name"`
	SkillLevel       int    `json:"skill_level"`
}

// HierarchyKey buckets capability and gap data by site plus the 4-level
// business classification.
type HierarchyKey struct {
	Location         string `json:"location"`
	BusinessCategory string `json:"business_category"`
	BusinessName     string `json:"business_name"`
	ProcessCategory  string `json:"process_category"`
	ProcessName      string `json:"process_name"`
}

type SimpleKey struct {
	Location    string `json:"location"`
	ProcessName string `json:"process_name"`
}

func (r CapabilityRecord) HierarchyKey() HierarchyKey {
	return HierarchyKey{
		Location:         r.Location,
		BusinessCategory: r.BusinessCategory,
		BusinessName:     r.BusinessName,
		ProcessCategory:  r.ProcessCategory,
		ProcessName:      r.ProcessName,
	}
}

func (r CapabilityRecord) SimpleKey() SimpleKey {
	return SimpleKey{Location: r.Location, ProcessName: r.ProcessName}
}

type SnapshotRow struct {
	SnapshotTime      time.Time `json:"snapshot_time"`
	TotalWaiting      int       `json:"total_waiting"`
	Processing        int       `json:"processing"`
	EntryCount        int       `json:"entry_count"`
	CorrectionWaiting int       `json:"correction_waiting"`
}

type GapEntry struct {
	Location         string `json:"location"`
	BusinessCategory string `json:"business_category"`
	BusinessName     string `json:"business_name"`
	ProcessCategory  string `json:"process_category"`
	ProcessName      string `json:"process_name"`
	CurrentCount     int    `json:"current_count"`
	Surplus          int    `json:"surplus,omitempty"`
	Shortage         int    `json:"shortage,omitempty"`
	Forced           bool   `json:"forced,omitempty"`
}

func (g GapEntry) Key() HierarchyKey {
	return HierarchyKey{
		Location:         g.Location,
		BusinessCategory: g.BusinessCategory,
		BusinessName:     g.BusinessName,
		ProcessCategory:  g.ProcessCategory,
		ProcessName:      g.ProcessName,
	}
}

type TransferChange struct {
	FromLocation         string   `json:"from_location"`
	FromBusinessCategory string   `json:"from_business_category"`
	FromBusinessName     string   `json:"from_business_name"`
	FromProcessCategory  string   `json:"from_process_category"`
	FromProcessName      string   `json:"from_process_name"`
	ToLocation           string   `json:"to_location"`
	ToBusinessCategory   string   `json:"to_business_category"`
	ToBusinessName       string   `json:"to_business_name"`
	ToProcessCategory    string   `json:"to_process_category"`
	ToProcessName        string   `json:"to_process_name"`
	Count                int      `json:"count"`
	Operators            []string `json:"operators"`
	IsCrossBusiness      bool     `json:"is_cross_business"`
}

type Impact struct {
	Productivity string `json:"productivity"`
	Delay        string `json:"delay"`
	Quality      string `json:"quality"`
}

type Suggestion struct {
	ID              string           `json:"id"`
	Changes         []TransferChange `json:"changes"`
	Impact          Impact           `json:"impact"`
	Reason          string           `json:"reason"`
	ConfidenceScore float64          `json:"confidence_score"`
}

const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
	ApprovalExpired  = "expired"
)

type PendingApproval struct {
	ID              string           `json:"id"`
	Timestamp       time.Time        `json:"timestamp"`
	Changes         []TransferChange `json:"changes"`
	Impact          Impact           `json:"impact"`
	Reason          string           `json:"reason"`
	ConfidenceScore float64          `json:"confidence_score"`
	Urgency         string           `json:"urgency"`
	Status          string           `json:"status"`
	ExpiresAt       time.Time        `json:"expires_at"`
	RequestedBy     string           `json:"requested_by"`
}

type ApprovalHistoryRecord struct {
	SuggestionID    string           `json:"suggestion_id"`
	SuggestionType  string           `json:"suggestion_type"`
	Changes         []TransferChange `json:"changes"`
	Impact          Impact           `json:"impact"`
	Reason          string           `json:"reason"`
	ConfidenceScore float64          `json:"confidence_score"`
	ActionType      string           `json:"action_type"`
	ActionUser      string           `json:"action_user"`
	ActionUserID    string           `json:"action_user_id"`
	ActionTimestamp time.Time        `json:"action_timestamp"`
	FeedbackReason  string           `json:"feedback_reason"`
	FeedbackNotes   string           `json:"feedback_notes"`
	ExecutionStatus string           `json:"execution_status"`
}

type ConversationTurn struct {
	Timestamp  time.Time   `json:"timestamp"`
	Message    string      `json:"message"`
	Response   string      `json:"response"`
	Suggestion *Suggestion `json:"suggestion,omitempty"`
	Intent     *Analysis   `json:"intent,omitempty"`
}

type Alert struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Priority     string  `json:"priority"`
	Title        string  `json:"title"`
	Message      string  `json:"message"`
	Location     string  `json:"location,omitempty"`
	Threshold    float64 `json:"threshold"`
	CurrentValue float64 `json:"current_value"`
	RuleSource   string  `json:"rule_source"`
}

type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Process struct {
	BusinessCategory string `json:"business_category"`
	BusinessName     string `json:"business_name"`
	ProcessCategory  string `json:"process_category"`
	ProcessName      string `json:"process_name"`
}
