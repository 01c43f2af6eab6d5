package models

import "time"

// ReportType enumerates the kinds of field report staff can submit.
type ReportType string

const (
	ReportMortality   ReportType = "mortality"
	ReportDaily       ReportType = "daily"
	ReportHealth      ReportType = "health"
	ReportFeed        ReportType = "feed"
	ReportVaccination ReportType = "vaccination"
)

// ReportTypes lists every supported kind in a stable order.
var ReportTypes = []ReportType{ReportMortality, ReportDaily, ReportHealth, ReportFeed, ReportVaccination}

// UrgencyLevel tags how quickly a report needs attention.
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "Low"
	UrgencyMedium   UrgencyLevel = "Medium"
	UrgencyHigh     UrgencyLevel = "High"
	UrgencyCritical UrgencyLevel = "Critical"
)

// Report is one immutable observation submitted against a batch. Only the
// resolution flag is ever updated after creation.
type Report struct {
	ID            string         `bson:"_id" json:"id"`
	BatchID       string         `bson:"batch_id" json:"batchId"`
	ReportType    ReportType     `bson:"report_type" json:"reportType"`
	Fields        map[string]any `bson:"fields" json:"fields"`
	ProcessedData DerivedMetrics `bson:"processed_data" json:"processedData"`
	UrgencyLevel  UrgencyLevel   `bson:"urgency_level" json:"urgencyLevel"`
	SubmittedBy   string         `bson:"submitted_by,omitempty" json:"submittedBy,omitempty"`
	Resolved      bool           `bson:"resolved" json:"resolved"`
	ResolvedAt    *time.Time     `bson:"resolved_at,omitempty" json:"resolvedAt,omitempty"`
	CreatedAt     time.Time      `bson:"created_at" json:"createdAt"`
}

// IsPendingCritical reports whether the report is critical and not yet handled.
func (r Report) IsPendingCritical() bool {
	return r.UrgencyLevel == UrgencyCritical && !r.Resolved
}

// DerivedMetrics is the calculator output stored on the report for audit.
type DerivedMetrics struct {
	ReportedDeaths    *int          `bson:"reported_deaths,omitempty" json:"reportedDeaths,omitempty"`
	TotalMortality    *int          `bson:"total_mortality,omitempty" json:"totalMortality,omitempty"`
	RemainingBirds    *int          `bson:"remaining_birds,omitempty" json:"remainingBirds,omitempty"`
	MortalityRate     *float64      `bson:"mortality_rate,omitempty" json:"mortalityRate,omitempty"`
	HealthScore       *int          `bson:"health_score,omitempty" json:"healthScore,omitempty"`
	HealthStatus      *HealthStatus `bson:"health_status,omitempty" json:"healthStatus,omitempty"`
	FeedUsed          *float64      `bson:"feed_used,omitempty" json:"feedUsed,omitempty"`
	TotalFeedUsed     *float64      `bson:"total_feed_used,omitempty" json:"totalFeedUsed,omitempty"`
	TotalWeight       *float64      `bson:"total_weight,omitempty" json:"totalWeight,omitempty"`
	FeedEfficiency    *float64      `bson:"feed_efficiency,omitempty" json:"feedEfficiency,omitempty"`
	AverageWeight     *float64      `bson:"average_weight,omitempty" json:"averageWeight,omitempty"`
	Vaccinations      *int          `bson:"vaccinations,omitempty" json:"vaccinations,omitempty"`
	TotalVaccinations *int          `bson:"total_vaccinations,omitempty" json:"totalVaccinations,omitempty"`
	Temperature       *float64      `bson:"temperature,omitempty" json:"temperature,omitempty"`
	Humidity          *float64      `bson:"humidity,omitempty" json:"humidity,omitempty"`
}

// Merge overlays the non-nil values of other onto m.
func (m DerivedMetrics) Merge(other DerivedMetrics) DerivedMetrics {
	m.ReportedDeaths = pick(m.ReportedDeaths, other.ReportedDeaths)
	m.TotalMortality = pick(m.TotalMortality, other.TotalMortality)
	m.RemainingBirds = pick(m.RemainingBirds, other.RemainingBirds)
	m.MortalityRate = pick(m.MortalityRate, other.MortalityRate)
	m.HealthScore = pick(m.HealthScore, other.HealthScore)
	m.HealthStatus = pick(m.HealthStatus, other.HealthStatus)
	m.FeedUsed = pick(m.FeedUsed, other.FeedUsed)
	m.TotalFeedUsed = pick(m.TotalFeedUsed, other.TotalFeedUsed)
	m.TotalWeight = pick(m.TotalWeight, other.TotalWeight)
	m.FeedEfficiency = pick(m.FeedEfficiency, other.FeedEfficiency)
	m.AverageWeight = pick(m.AverageWeight, other.AverageWeight)
	m.Vaccinations = pick(m.Vaccinations, other.Vaccinations)
	m.TotalVaccinations = pick(m.TotalVaccinations, other.TotalVaccinations)
	m.Temperature = pick(m.Temperature, other.Temperature)
	m.Humidity = pick(m.Humidity, other.Humidity)
	return m
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func pick[T any](current, override *T) *T {
	if override != nil {
		return override
	}
	return current
}
