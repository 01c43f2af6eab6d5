package alerts

import (
	"fmt"
	"time"

	"github.com/mamadbah2/flockwatch/internal/config"
	"github.com/mamadbah2/flockwatch/internal/domain/models"
	"github.com/mamadbah2/flockwatch/internal/domain/normalize"
)

// Rule identifiers. They are part of the alert key and must stay stable.
const (
	RuleMortalityRate   = "mortality_rate"
	RuleFeedConversion  = "feed_conversion"
	RulePoorHealth      = "poor_health"
	RuleHarvestWindow   = "harvest_window"
	RuleHarvestOverdue  = "harvest_overdue"
	RuleMortalitySpike  = "mortality_spike"
	RuleCriticalReports = "critical_reports"
)

type rule func(b models.Batch, recent []models.Report, r config.AlertRules, now time.Time) (models.Severity, string, string, bool)

var ruleTable = []struct {
	id   string
	eval rule
}{
	{RuleMortalityRate, mortalityRate},
	{RuleFeedConversion, feedConversion},
	{RulePoorHealth, poorHealth},
	{RuleHarvestWindow, harvestWindow},
	{RuleHarvestOverdue, harvestOverdue},
	{RuleMortalitySpike, mortalitySpike},
	{RuleCriticalReports, criticalReports},
}

// Evaluate runs every rule against one batch and its recent reports (newest
// first). It has no side effects; state merging is the engine's job.
func Evaluate(batch models.Batch, recent []models.Report, rules config.AlertRules, now time.Time) []models.Alert {
	var out []models.Alert
	for _, rl := range ruleTable {
		severity, title, message, ok := rl.eval(batch, recent, rules, now)
		if !ok {
			continue
		}
		out = append(out, models.Alert{
			Key:       models.AlertKey(rl.id, batch.ID),
			RuleID:    rl.id,
			BatchID:   batch.ID,
			BatchName: batch.Name,
			Severity:  severity,
			Title:     title,
			Message:   message,
			UpdatedAt: now,
		})
	}
	return out
}

func mortalityRate(b models.Batch, _ []models.Report, r config.AlertRules, _ time.Time) (models.Severity, string, string, bool) {
	switch {
	case b.MortalityRate > r.MortalityCritical:
		return models.SeverityCritical, "Very high mortality",
			fmt.Sprintf("%s has lost %.2f%% of its birds (%d deaths).", b.Name, b.MortalityRate, b.TotalMortality), true
	case b.MortalityRate > r.MortalityWarning:
		return models.SeverityWarning, "High mortality",
			fmt.Sprintf("%s mortality reached %.2f%% (%d deaths).", b.Name, b.MortalityRate, b.TotalMortality), true
	}
	return "", "", "", false
}

func feedConversion(b models.Batch, _ []models.Report, r config.AlertRules, _ time.Time) (models.Severity, string, string, bool) {
	if b.FeedEfficiency <= r.FeedConversionWarning {
		return "", "", "", false
	}
	return models.SeverityWarning, "Poor feed conversion",
		fmt.Sprintf("%s feed conversion ratio is %.2f, above %.2f.", b.Name, b.FeedEfficiency, r.FeedConversionWarning), true
}

func poorHealth(b models.Batch, _ []models.Report, _ config.AlertRules, _ time.Time) (models.Severity, string, string, bool) {
	if b.HealthStatus != models.HealthPoor {
		return "", "", "", false
	}
	return models.SeverityCritical, "Poor flock health",
		fmt.Sprintf("%s health score dropped to %d.", b.Name, b.HealthScore), true
}

func harvestWindow(b models.Batch, _ []models.Report, r config.AlertRules, now time.Time) (models.Severity, string, string, bool) {
	age := b.AgeInDays(now)
	if !b.IsActive() || age < r.HarvestWindowStartDay || age > r.HarvestWindowEndDay {
		return "", "", "", false
	}
	return models.SeverityInfo, "Harvest window approaching",
		fmt.Sprintf("%s is %d days old. Plan the harvest.", b.Name, age), true
}

func harvestOverdue(b models.Batch, _ []models.Report, r config.AlertRules, now time.Time) (models.Severity, string, string, bool) {
	age := b.AgeInDays(now)
	if !b.IsActive() || age <= r.HarvestOverdueDay {
		return "", "", "", false
	}
	return models.SeverityWarning, "Overdue for harvest",
		fmt.Sprintf("%s is %d days old and still active.", b.Name, age), true
}

func mortalitySpike(b models.Batch, recent []models.Report, r config.AlertRules, _ time.Time) (models.Severity, string, string, bool) {
	var deaths []float64
	for _, rep := range recent {
		fields := normalize.Normalize(rep.ReportType, rep.Fields)
		if !fields.Has(normalize.DeathCount) {
			continue
		}
		deaths = append(deaths, fields.Number(normalize.DeathCount))
		if len(deaths) == r.SpikeMaxReports {
			break
		}
	}
	if len(deaths) < r.SpikeMinReports {
		return "", "", "", false
	}

	var sum float64
	for _, d := range deaths {
		sum += d
	}
	avg := sum / float64(len(deaths))
	if avg <= r.SpikeAverageDeaths {
		return "", "", "", false
	}
	return models.SeverityCritical, "Mortality spike",
		fmt.Sprintf("%s averaged %.1f deaths over its last %d reports.", b.Name, avg, len(deaths)), true
}

func criticalReports(b models.Batch, recent []models.Report, _ config.AlertRules, _ time.Time) (models.Severity, string, string, bool) {
	pending := 0
	for _, rep := range recent {
		if rep.IsPendingCritical() {
			pending++
		}
	}
	if pending == 0 {
		return "", "", "", false
	}
	return models.SeverityCritical, "Unresolved critical reports",
		fmt.Sprintf("%s has %d critical report(s) awaiting action.", b.Name, pending), true
}
