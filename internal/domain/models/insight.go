package models

import "time"

// InsightType classifies an insight for presentation.
type InsightType string

const (
	InsightCritical InsightType = "critical"
	InsightWarning  InsightType = "warning"
	InsightInfo     InsightType = "info"
	InsightSuccess  InsightType = "success"
)

// Priority orders insights for the consumer.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities from high to low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Insight is a recommendation-bearing classification of farm state.
type Insight struct {
	Key            string      `json:"key"`
	RuleID         string      `json:"ruleId"`
	Scope          string      `json:"scope"`
	Type           InsightType `json:"type"`
	Priority       Priority    `json:"priority"`
	Title          string      `json:"title"`
	Message        string      `json:"message"`
	Recommendation string      `json:"recommendation"`
	Read           bool        `json:"read"`
	Dismissed      bool        `json:"dismissed"`
	FirstSeenAt    time.Time   `json:"firstSeenAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// FarmScope is the insight scope for farm-wide findings.
const FarmScope = "farm"
