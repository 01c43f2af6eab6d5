package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/flockwatch/internal/domain/models"
	"github.com/mamadbah2/flockwatch/internal/domain/normalize"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func freshBatch() models.Batch {
	b := models.Batch{ID: "B-1", BirdCount: 1000, HealthScore: 100, Status: models.BatchActive}
	b.Reconcile()
	return b
}

func fieldsOf(kind models.ReportType, raw map[string]any) normalize.Fields {
	return normalize.Normalize(kind, raw)
}

func TestMortality_TwentyDeathsOnThousand(t *testing.T) {
	res := Mortality(fieldsOf(models.ReportMortality, map[string]any{"mortalityCount": 20}), freshBatch(), testNow)

	p := res.Patch
	assert.Equal(t, 20, *p.TotalMortality)
	assert.Equal(t, 980, *p.RemainingBirds)
	assert.Equal(t, 2.0, *p.MortalityRate)
	assert.Equal(t, 80, *p.HealthScore)
	assert.Equal(t, models.HealthGood, *p.HealthStatus)
	assert.Equal(t, testNow, *p.LastMortalityUpdate)
	assert.Equal(t, 20, *res.Metrics.ReportedDeaths)
}

func TestMortality_TenPercentSaturatesScore(t *testing.T) {
	res := Mortality(fieldsOf(models.ReportMortality, map[string]any{"deathCount": 100}), freshBatch(), testNow)

	assert.Equal(t, 10.0, *res.Patch.MortalityRate)
	assert.Equal(t, 0, *res.Patch.HealthScore)
	assert.Equal(t, models.HealthPoor, *res.Patch.HealthStatus)
}

func TestMortality_Accumulates(t *testing.T) {
	b := freshBatch()
	b.TotalMortality = 15
	b.Reconcile()

	res := Mortality(fieldsOf(models.ReportMortality, map[string]any{"death_count": "5"}), b, testNow)
	assert.Equal(t, 20, *res.Patch.TotalMortality)
	assert.Equal(t, 15, b.TotalMortality, "input must not change")
}

func TestMortality_ZeroBirdCount(t *testing.T) {
	b := models.Batch{ID: "empty"}
	res := Mortality(fieldsOf(models.ReportMortality, map[string]any{"deathCount": 3}), b, testNow)

	assert.Equal(t, 0.0, *res.Patch.MortalityRate)
	assert.Equal(t, 0, *res.Patch.RemainingBirds)
	assert.Equal(t, 100, *res.Patch.HealthScore)
}

func TestMortality_RoundsScoreHalfAwayFromZero(t *testing.T) {
	b := models.Batch{BirdCount: 2000}
	// 11/2000 = 0.55% -> 100 - 5.5 = 94.5 -> 95
	res := Mortality(fieldsOf(models.ReportMortality, map[string]any{"deathCount": 11}), b, testNow)
	assert.Equal(t, 0.55, *res.Patch.MortalityRate)
	assert.Equal(t, 95, *res.Patch.HealthScore)
	assert.Equal(t, models.HealthExcellent, *res.Patch.HealthStatus)
}

func TestFeed_Efficiency(t *testing.T) {
	b := freshBatch()
	b.TotalMortality = 20
	b.CurrentWeight = 2.0
	b.Reconcile()

	res := Feed(fieldsOf(models.ReportFeed, map[string]any{"feedUsed": 50}), b, testNow)
	assert.Equal(t, 50.0, *res.Patch.FeedUsed)
	assert.Equal(t, 0.03, *res.Patch.FeedEfficiency)
	assert.Nil(t, res.Patch.CurrentWeight)
	assert.Equal(t, 1960.0, *res.Metrics.TotalWeight)
}

func TestFeed_AccumulatesAndZeroWeight(t *testing.T) {
	b := freshBatch()
	b.FeedUsed = 120

	res := Feed(fieldsOf(models.ReportFeed, map[string]any{"quantity_used": 30}), b, testNow)
	assert.Equal(t, 150.0, *res.Patch.FeedUsed)
	assert.Equal(t, 0.0, *res.Patch.FeedEfficiency)
}

func TestFeed_ReportedWeightUpdatesBatch(t *testing.T) {
	b := freshBatch()
	res := Feed(fieldsOf(models.ReportFeed, map[string]any{"feedAmount": 2000, "averageWeight": 1.0}), b, testNow)

	assert.Equal(t, 2.0, *res.Patch.FeedEfficiency)
	assert.Equal(t, 1.0, *res.Patch.CurrentWeight)
}

func TestHealth_PriorityChain(t *testing.T) {
	cases := []struct {
		name   string
		raw    map[string]any
		batch  func(*models.Batch)
		score  int
		status models.HealthStatus
	}{
		{"disease wins over everything", map[string]any{"disease": "coccidiosis", "symptoms": []any{"cough"}, "temperature": 40}, nil, 30, models.HealthPoor},
		{"medication", map[string]any{"medication": "amprolium"}, nil, 30, models.HealthPoor},
		{"issues", map[string]any{"healthIssues": []any{"cough"}, "temperature": 40}, nil, 60, models.HealthFair},
		{"hot", map[string]any{"temperature": 35}, nil, 70, models.HealthGood},
		{"cold", map[string]any{"temperature": 25}, nil, 70, models.HealthGood},
		{"humid", map[string]any{"humidity": 80}, nil, 80, models.HealthGood},
		{"dry", map[string]any{"humidity": 40}, nil, 80, models.HealthGood},
		{"defaults are healthy", map[string]any{}, nil, 100, models.HealthExcellent},
		{"batch temperature used when not reported", map[string]any{}, func(b *models.Batch) { b.Temperature = models.Ptr(36.0) }, 70, models.HealthGood},
		{"reported temperature overrides batch", map[string]any{"temp": 30}, func(b *models.Batch) { b.Temperature = models.Ptr(36.0) }, 100, models.HealthExcellent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := freshBatch()
			if tc.batch != nil {
				tc.batch(&b)
			}
			res := Health(fieldsOf(models.ReportHealth, tc.raw), b, testNow)
			assert.Equal(t, tc.score, *res.Patch.HealthScore)
			assert.Equal(t, tc.status, *res.Patch.HealthStatus)
			assert.Equal(t, testNow, *res.Patch.LastHealthCheck)
		})
	}
}

func TestHealth_OnlyPatchesReportedEnvironment(t *testing.T) {
	res := Health(fieldsOf(models.ReportHealth, map[string]any{"humidity": 70}), freshBatch(), testNow)

	assert.Nil(t, res.Patch.Temperature)
	require.NotNil(t, res.Patch.Humidity)
	assert.Equal(t, 70.0, *res.Patch.Humidity)
	assert.Equal(t, 30.0, *res.Metrics.Temperature)
}

func TestVaccination_MonotonicScores(t *testing.T) {
	cases := map[int]int{0: 100, 1: 80, 3: 90, 6: 100}
	for count, score := range cases {
		res := Vaccination(fieldsOf(models.ReportVaccination, map[string]any{"vaccinationCount": count}), freshBatch(), testNow)
		assert.Equal(t, score, *res.Patch.HealthScore, "count %d", count)
		assert.Equal(t, models.HealthStatusForScore(score), *res.Patch.HealthStatus)
		assert.Equal(t, count, *res.Patch.Vaccinations)
	}
}

func TestVaccination_UsesCumulativeCount(t *testing.T) {
	b := freshBatch()
	b.Vaccinations = 2
	res := Vaccination(fieldsOf(models.ReportVaccination, map[string]any{"vaccinations": 1}), b, testNow)

	assert.Equal(t, 3, *res.Patch.Vaccinations)
	assert.Equal(t, 90, *res.Patch.HealthScore)
}

func TestDaily_TemperatureOnlyIsIsolated(t *testing.T) {
	b := freshBatch()
	b.FeedUsed = 75
	b.TotalMortality = 12
	b.Vaccinations = 4
	b.Reconcile()

	res := Daily(fieldsOf(models.ReportDaily, map[string]any{"temperature": 29.5}), b, testNow)

	assert.Nil(t, res.Patch.TotalMortality)
	assert.Nil(t, res.Patch.FeedUsed)
	assert.Nil(t, res.Patch.Vaccinations)
	assert.Nil(t, res.Patch.HealthScore)

	patched, changed := res.Patch.Apply(b)
	assert.True(t, changed)
	assert.Equal(t, 75.0, patched.FeedUsed)
	assert.Equal(t, 12, patched.TotalMortality)
	assert.Equal(t, 4, patched.Vaccinations)
	assert.Equal(t, 29.5, *patched.Temperature)
}

func TestDaily_Composite(t *testing.T) {
	b := freshBatch()
	b.CurrentWeight = 1.5

	res := Daily(fieldsOf(models.ReportDaily, map[string]any{
		"deathCount":    20,
		"feedAmount":    98,
		"averageWeight": 2.0,
		"overallHealth": "Fair",
		"humidity":      60,
	}), b, testNow)

	p := res.Patch
	assert.Equal(t, 20, *p.TotalMortality)
	assert.Equal(t, 980, *p.RemainingBirds)
	// 98 / (2.0 * 980) = 0.05
	assert.Equal(t, 0.05, *p.FeedEfficiency)
	assert.Equal(t, 98.0, *p.FeedUsed)
	assert.Equal(t, 60, *p.HealthScore, "overall health overrides the mortality score")
	assert.Equal(t, models.HealthFair, *p.HealthStatus)
	assert.Equal(t, 2.0, *p.CurrentWeight)
	assert.Equal(t, 60.0, *p.Humidity)
	assert.Nil(t, p.Temperature)
}

func TestDaily_OverallHealthMapping(t *testing.T) {
	cases := map[string]int{"Excellent": 100, "good": 80, "FAIR": 60, "Poor": 40, "unknown": 40}
	for label, score := range cases {
		res := Daily(fieldsOf(models.ReportDaily, map[string]any{"overallHealth": label}), freshBatch(), testNow)
		assert.Equal(t, score, *res.Patch.HealthScore, label)
	}
}

func TestCalculate_Dispatch(t *testing.T) {
	res, err := Calculate(models.ReportMortality, fieldsOf(models.ReportMortality, map[string]any{"deathCount": 1}), freshBatch(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, *res.Patch.TotalMortality)

	_, err = Calculate("eggs", normalize.Fields{}, freshBatch(), testNow)
	require.Error(t, err)
}
