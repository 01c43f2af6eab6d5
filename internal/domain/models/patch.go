package models

import "time"

// BatchPatch is a partial update of a batch. Nil fields leave the batch value untouched.
type BatchPatch struct {
	TotalMortality        *int
	RemainingBirds        *int
	MortalityRate         *float64
	HealthScore           *int
	HealthStatus          *HealthStatus
	FeedUsed              *float64
	FeedEfficiency        *float64
	CurrentWeight         *float64
	Vaccinations          *int
	Temperature           *float64
	Humidity              *float64
	LastMortalityUpdate   *time.Time
	LastFeedUpdate        *time.Time
	LastHealthCheck       *time.Time
	LastVaccinationUpdate *time.Time
}

// Merge overlays other on p; fields set in other win.
func (p BatchPatch) Merge(other BatchPatch) BatchPatch {
	p.TotalMortality = pick(p.TotalMortality, other.TotalMortality)
	p.RemainingBirds = pick(p.RemainingBirds, other.RemainingBirds)
	p.MortalityRate = pick(p.MortalityRate, other.MortalityRate)
	p.HealthScore = pick(p.HealthScore, other.HealthScore)
	p.HealthStatus = pick(p.HealthStatus, other.HealthStatus)
	p.FeedUsed = pick(p.FeedUsed, other.FeedUsed)
	p.FeedEfficiency = pick(p.FeedEfficiency, other.FeedEfficiency)
	p.CurrentWeight = pick(p.CurrentWeight, other.CurrentWeight)
	p.Vaccinations = pick(p.Vaccinations, other.Vaccinations)
	p.Temperature = pick(p.Temperature, other.Temperature)
	p.Humidity = pick(p.Humidity, other.Humidity)
	p.LastMortalityUpdate = pick(p.LastMortalityUpdate, other.LastMortalityUpdate)
	p.LastFeedUpdate = pick(p.LastFeedUpdate, other.LastFeedUpdate)
	p.LastHealthCheck = pick(p.LastHealthCheck, other.LastHealthCheck)
	p.LastVaccinationUpdate = pick(p.LastVaccinationUpdate, other.LastVaccinationUpdate)
	return p
}

// Apply returns a copy of b with the patch merged in and whether any
// aggregate field actually changed value. Timestamps alone do not count.
func (p BatchPatch) Apply(b Batch) (Batch, bool) {
	changed := false

	set(&b.TotalMortality, p.TotalMortality, &changed)
	set(&b.RemainingBirds, p.RemainingBirds, &changed)
	set(&b.MortalityRate, p.MortalityRate, &changed)
	set(&b.HealthScore, p.HealthScore, &changed)
	set(&b.HealthStatus, p.HealthStatus, &changed)
	set(&b.FeedUsed, p.FeedUsed, &changed)
	set(&b.FeedEfficiency, p.FeedEfficiency, &changed)
	set(&b.CurrentWeight, p.CurrentWeight, &changed)
	set(&b.Vaccinations, p.Vaccinations, &changed)
	setOptional(&b.Temperature, p.Temperature, &changed)
	setOptional(&b.Humidity, p.Humidity, &changed)

	var ignored bool
	setOptional(&b.LastMortalityUpdate, p.LastMortalityUpdate, &ignored)
	setOptional(&b.LastFeedUpdate, p.LastFeedUpdate, &ignored)
	setOptional(&b.LastHealthCheck, p.LastHealthCheck, &ignored)
	setOptional(&b.LastVaccinationUpdate, p.LastVaccinationUpdate, &ignored)

	return b, changed
}

func set[T comparable](dst *T, src *T, changed *bool) {
	if src == nil {
		return
	}
	if *dst != *src {
		*dst = *src
		*changed = true
	}
}

func setOptional[T comparable](dst **T, src *T, changed *bool) {
	if src == nil {
		return
	}
	if *dst == nil || **dst != *src {
		v := *src
		*dst = &v
		*changed = true
	}
}
