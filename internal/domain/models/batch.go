package models

import "time"

// BatchStatus is the lifecycle stage of a batch.
type BatchStatus string

const (
	BatchPlanning  BatchStatus = "Planning"
	BatchActive    BatchStatus = "Active"
	BatchCompleted BatchStatus = "Completed"
)

// HealthStatus is the label derived from a health score.
type HealthStatus string

const (
	HealthExcellent HealthStatus = "Excellent"
	HealthGood      HealthStatus = "Good"
	HealthFair      HealthStatus = "Fair"
	HealthPoor      HealthStatus = "Poor"
)

// HealthStatusForScore bands a 0-100 score into its label.
func HealthStatusForScore(score int) HealthStatus {
	switch {
	case score >= 90:
		return HealthExcellent
	case score >= 70:
		return HealthGood
	case score >= 50:
		return HealthFair
	default:
		return HealthPoor
	}
}

// Batch is the aggregate snapshot of a cohort of birds.
type Batch struct {
	ID                    string       `bson:"_id" json:"id"`
	Name                  string       `bson:"name" json:"name"`
	BirdCount             int          `bson:"bird_count" json:"birdCount"`
	TotalMortality        int          `bson:"total_mortality" json:"totalMortality"`
	RemainingBirds        int          `bson:"remaining_birds" json:"remainingBirds"`
	MortalityRate         float64      `bson:"mortality_rate" json:"mortalityRate"`
	HealthScore           int          `bson:"health_score" json:"healthScore"`
	HealthStatus          HealthStatus `bson:"health_status" json:"healthStatus"`
	FeedUsed              float64      `bson:"feed_used" json:"feedUsed"`
	FeedEfficiency        float64      `bson:"feed_efficiency" json:"feedEfficiency"`
	CurrentWeight         float64      `bson:"current_weight" json:"currentWeight"`
	InitialWeight         float64      `bson:"initial_weight" json:"initialWeight"`
	Vaccinations          int          `bson:"vaccinations" json:"vaccinations"`
	Temperature           *float64     `bson:"temperature,omitempty" json:"temperature,omitempty"`
	Humidity              *float64     `bson:"humidity,omitempty" json:"humidity,omitempty"`
	Status                BatchStatus  `bson:"status" json:"status"`
	StartDate             time.Time    `bson:"start_date" json:"startDate"`
	LastMortalityUpdate   *time.Time   `bson:"last_mortality_update,omitempty" json:"lastMortalityUpdate,omitempty"`
	LastFeedUpdate        *time.Time   `bson:"last_feed_update,omitempty" json:"lastFeedUpdate,omitempty"`
	LastHealthCheck       *time.Time   `bson:"last_health_check,omitempty" json:"lastHealthCheck,omitempty"`
	LastVaccinationUpdate *time.Time   `bson:"last_vaccination_update,omitempty" json:"lastVaccinationUpdate,omitempty"`
	Version               int64        `bson:"version" json:"version"`
	CreatedAt             time.Time    `bson:"created_at" json:"createdAt"`
	UpdatedAt             time.Time    `bson:"updated_at" json:"updatedAt"`
}

// AgeInDays returns the number of whole days since the batch started.
func (b Batch) AgeInDays(now time.Time) int {
	if b.StartDate.IsZero() || now.Before(b.StartDate) {
		return 0
	}
	return int(now.Sub(b.StartDate).Hours() / 24)
}

// IsActive reports whether the batch is still being raised.
func (b Batch) IsActive() bool {
	return b.Status == BatchActive
}

// Reconcile re-derives the dependent fields so the batch invariants hold:
// remaining birds and mortality rate follow the counters, the health score is
// clamped to [0,100] and the health label always matches the score.
func (b *Batch) Reconcile() {
	b.RemainingBirds = b.BirdCount - b.TotalMortality
	if b.RemainingBirds < 0 {
		b.RemainingBirds = 0
	}

	if b.BirdCount > 0 {
		b.MortalityRate = roundRate(float64(b.TotalMortality) / float64(b.BirdCount) * 100)
	} else {
		b.MortalityRate = 0
	}

	if b.HealthScore < 0 {
		b.HealthScore = 0
	}
	if b.HealthScore > 100 {
		b.HealthScore = 100
	}
	b.HealthStatus = HealthStatusForScore(b.HealthScore)
}
