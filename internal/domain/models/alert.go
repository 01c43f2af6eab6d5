package models

import "time"

// Severity grades an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank orders severities from most to least urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Alert is a threshold condition raised for one batch by one rule.
type Alert struct {
	Key         string    `json:"key"`
	RuleID      string    `json:"ruleId"`
	BatchID     string    `json:"batchId"`
	BatchName   string    `json:"batchName,omitempty"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Read        bool      `json:"read"`
	Dismissed   bool      `json:"dismissed"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AlertKey builds the stable identity of an alert or insight.
func AlertKey(ruleID, scope string) string {
	return ruleID + ":" + scope
}

// AlertState is the consumer-controlled part of an alert, persisted by key
// independently of the scans that generate it.
type AlertState struct {
	Read        bool      `json:"read"`
	Dismissed   bool      `json:"dismissed"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}
