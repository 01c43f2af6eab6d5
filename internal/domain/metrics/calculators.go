// Package metrics holds the per-report-kind calculators. Every calculator is a
// pure function of the normalized report fields and the current batch
// snapshot; none of them mutates its inputs.
package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/mamadbah2/flockwatch/internal/domain/models"
	"github.com/mamadbah2/flockwatch/internal/domain/normalize"
)

const (
	defaultTemperature = 30.0
	defaultHumidity    = 65.0
)

// Result is what a calculator hands to the aggregation applier.
type Result struct {
	Metrics models.DerivedMetrics
	Patch   models.BatchPatch
}

func (r Result) merge(other Result) Result {
	return Result{
		Metrics: r.Metrics.Merge(other.Metrics),
		Patch:   r.Patch.Merge(other.Patch),
	}
}

// Calculator computes the effect of one report on a batch.
type Calculator func(fields normalize.Fields, batch models.Batch, now time.Time) Result

var calculators = map[models.ReportType]Calculator{
	models.ReportMortality:   Mortality,
	models.ReportDaily:       Daily,
	models.ReportHealth:      Health,
	models.ReportFeed:        Feed,
	models.ReportVaccination: Vaccination,
}

// Calculate dispatches to the calculator registered for kind.
func Calculate(kind models.ReportType, fields normalize.Fields, batch models.Batch, now time.Time) (Result, error) {
	calc, ok := calculators[kind]
	if !ok {
		return Result{}, fmt.Errorf("no calculator for report type %q", kind)
	}
	return calc(fields, batch, now), nil
}

// Mortality accumulates reported deaths and re-derives the mortality based
// health score: max(0, 100 - rate*10).
func Mortality(fields normalize.Fields, batch models.Batch, now time.Time) Result {
	return mortality(fields.Int(normalize.DeathCount), batch, now)
}

func mortality(deaths int, batch models.Batch, now time.Time) Result {
	total := batch.TotalMortality + deaths

	remaining := batch.BirdCount - total
	if remaining < 0 {
		remaining = 0
	}

	rate := 0.0
	if batch.BirdCount > 0 {
		rate = models.RoundHalfAwayFromZero(float64(total)/float64(batch.BirdCount)*100, 2)
	}

	raw := 100 - rate*10
	if raw < 0 {
		raw = 0
	}
	score := models.RoundScore(raw)
	status := models.HealthStatusForScore(score)

	return Result{
		Metrics: models.DerivedMetrics{
			ReportedDeaths: models.Ptr(deaths),
			TotalMortality: models.Ptr(total),
			RemainingBirds: models.Ptr(remaining),
			MortalityRate:  models.Ptr(rate),
			HealthScore:    models.Ptr(score),
			HealthStatus:   models.Ptr(status),
		},
		Patch: models.BatchPatch{
			TotalMortality:      models.Ptr(total),
			RemainingBirds:      models.Ptr(remaining),
			MortalityRate:       models.Ptr(rate),
			HealthScore:         models.Ptr(score),
			HealthStatus:        models.Ptr(status),
			LastMortalityUpdate: models.Ptr(now),
		},
	}
}

// Feed accumulates feed usage and recomputes the conversion ratio against the
// live weight of the remaining flock.
func Feed(fields normalize.Fields, batch models.Batch, now time.Time) Result {
	weight := batch.CurrentWeight
	if fields.Has(normalize.AverageWeight) {
		weight = fields.Number(normalize.AverageWeight)
	}

	res := feed(fields.Number(normalize.FeedAmount), weight, batch.RemainingBirds, batch, now)
	if fields.Has(normalize.AverageWeight) {
		res.Patch.CurrentWeight = models.Ptr(weight)
		res.Metrics.AverageWeight = models.Ptr(weight)
	}
	return res
}

func feed(amount, weight float64, remaining int, batch models.Batch, now time.Time) Result {
	total := batch.FeedUsed + amount
	totalWeight := weight * float64(remaining)

	efficiency := 0.0
	if totalWeight > 0 {
		efficiency = models.RoundHalfAwayFromZero(total/totalWeight, 2)
	}

	return Result{
		Metrics: models.DerivedMetrics{
			FeedUsed:       models.Ptr(amount),
			TotalFeedUsed:  models.Ptr(total),
			TotalWeight:    models.Ptr(totalWeight),
			FeedEfficiency: models.Ptr(efficiency),
		},
		Patch: models.BatchPatch{
			FeedUsed:       models.Ptr(total),
			FeedEfficiency: models.Ptr(efficiency),
			LastFeedUpdate: models.Ptr(now),
		},
	}
}

// Health scores a health check with a short-circuiting priority chain; the
// first matching condition wins.
func Health(fields normalize.Fields, batch models.Batch, now time.Time) Result {
	temperature := defaultTemperature
	if batch.Temperature != nil {
		temperature = *batch.Temperature
	}
	if fields.Has(normalize.Temperature) {
		temperature = fields.Number(normalize.Temperature)
	}

	humidity := defaultHumidity
	if batch.Humidity != nil {
		humidity = *batch.Humidity
	}
	if fields.Has(normalize.Humidity) {
		humidity = fields.Number(normalize.Humidity)
	}

	var score int
	switch {
	case fields.Text(normalize.Disease) != "" || fields.Text(normalize.Medication) != "":
		score = 30
	case len(fields.List(normalize.HealthIssues)) > 0:
		score = 60
	case temperature >= 35 || temperature <= 25:
		score = 70
	case humidity >= 80 || humidity <= 40:
		score = 80
	default:
		score = 100
	}
	status := models.HealthStatusForScore(score)

	res := Result{
		Metrics: models.DerivedMetrics{
			HealthScore:  models.Ptr(score),
			HealthStatus: models.Ptr(status),
			Temperature:  models.Ptr(temperature),
			Humidity:     models.Ptr(humidity),
		},
		Patch: models.BatchPatch{
			HealthScore:     models.Ptr(score),
			HealthStatus:    models.Ptr(status),
			LastHealthCheck: models.Ptr(now),
		},
	}
	if fields.Has(normalize.Temperature) {
		res.Patch.Temperature = models.Ptr(temperature)
	}
	if fields.Has(normalize.Humidity) {
		res.Patch.Humidity = models.Ptr(humidity)
	}
	return res
}

// Vaccination accumulates vaccinations; the health score improves
// monotonically with the cumulative count.
func Vaccination(fields normalize.Fields, batch models.Batch, now time.Time) Result {
	added := fields.Int(normalize.VaccinationCount)
	total := batch.Vaccinations + added

	score := 100
	switch {
	case total > 5:
		score = 100
	case total > 2:
		score = 90
	case total > 0:
		score = 80
	}
	status := models.HealthStatusForScore(score)

	return Result{
		Metrics: models.DerivedMetrics{
			Vaccinations:      models.Ptr(added),
			TotalVaccinations: models.Ptr(total),
			HealthScore:       models.Ptr(score),
			HealthStatus:      models.Ptr(status),
		},
		Patch: models.BatchPatch{
			Vaccinations:          models.Ptr(total),
			HealthScore:           models.Ptr(score),
			HealthStatus:          models.Ptr(status),
			LastVaccinationUpdate: models.Ptr(now),
		},
	}
}

// Daily applies each sub-calculation only when its section is present, so
// absent sections never overwrite existing batch values.
func Daily(fields normalize.Fields, batch models.Batch, now time.Time) Result {
	var res Result
	remaining := batch.RemainingBirds

	if fields.Has(normalize.DeathCount) {
		m := mortality(fields.Int(normalize.DeathCount), batch, now)
		remaining = *m.Patch.RemainingBirds
		res = res.merge(m)
	}

	if fields.Has(normalize.FeedAmount) {
		weight := batch.CurrentWeight
		if fields.Has(normalize.AverageWeight) {
			weight = fields.Number(normalize.AverageWeight)
		}
		res = res.merge(feed(fields.Number(normalize.FeedAmount), weight, remaining, batch, now))
	}

	if fields.Has(normalize.OverallHealth) {
		score := overallHealthScore(fields.Text(normalize.OverallHealth))
		status := models.HealthStatusForScore(score)
		res = res.merge(Result{
			Metrics: models.DerivedMetrics{HealthScore: models.Ptr(score), HealthStatus: models.Ptr(status)},
			Patch: models.BatchPatch{
				HealthScore:     models.Ptr(score),
				HealthStatus:    models.Ptr(status),
				LastHealthCheck: models.Ptr(now),
			},
		})
	}

	if fields.Has(normalize.Temperature) {
		v := fields.Number(normalize.Temperature)
		res.Patch.Temperature = models.Ptr(v)
		res.Metrics.Temperature = models.Ptr(v)
	}
	if fields.Has(normalize.Humidity) {
		v := fields.Number(normalize.Humidity)
		res.Patch.Humidity = models.Ptr(v)
		res.Metrics.Humidity = models.Ptr(v)
	}
	if fields.Has(normalize.AverageWeight) {
		v := fields.Number(normalize.AverageWeight)
		res.Patch.CurrentWeight = models.Ptr(v)
		res.Metrics.AverageWeight = models.Ptr(v)
	}

	return res
}

func overallHealthScore(label string) int {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "excellent":
		return 100
	case "good":
		return 80
	case "fair":
		return 60
	default:
		return 40
	}
}
