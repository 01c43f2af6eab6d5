package insights

import (
	"fmt"
	"sort"
	"time"

	"github.com/mamadbah2/flockwatch/internal/config"
	"github.com/mamadbah2/flockwatch/internal/domain/models"
	"github.com/mamadbah2/flockwatch/internal/domain/normalize"
)

const (
	RuleMortalityBand          = "mortality_band"
	RuleFCRBand                = "fcr_band"
	RuleHarvestPlanning        = "harvest_planning"
	RulePoorHealthFarm         = "poor_health_farm"
	RuleReportCadence          = "report_cadence"
	RuleFarmMortalityExcellent = "farm_mortality_excellent"
	RulePendingCritical        = "pending_critical_reports"
	RuleReportDeathSpike       = "report_death_spike"
	RuleUrgentHealthReport     = "urgent_health_report"
)

// Input is the snapshot one insight scan reads.
type Input struct {
	Batches []models.Batch
	// Reports holds every report inside the cadence window.
	Reports []models.Report
	// Unresolved holds the Critical reports not yet resolved.
	Unresolved []models.Report
}

// Evaluate derives the farm's insights from one snapshot, sorted by priority.
func Evaluate(in Input, rules config.InsightRules, now time.Time) []models.Insight {
	var out []models.Insight
	add := func(rule, scope string, typ models.InsightType, prio models.Priority, title, message, recommendation string) {
		out = append(out, models.Insight{
			Key:            models.AlertKey(rule, scope),
			RuleID:         rule,
			Scope:          scope,
			Type:           typ,
			Priority:       prio,
			Title:          title,
			Message:        message,
			Recommendation: recommendation,
			UpdatedAt:      now,
		})
	}

	var (
		counted   int
		poor      []string
		rateSum   float64
		countedID = make(map[string]bool, len(in.Batches))
	)
	for _, b := range in.Batches {
		if b.BirdCount <= 0 {
			continue
		}
		counted++
		countedID[b.ID] = true
		rateSum += b.MortalityRate
		if b.HealthStatus == models.HealthPoor {
			poor = append(poor, b.Name)
		}

		switch {
		case b.MortalityRate > rules.MortalityCritical:
			add(RuleMortalityBand, b.ID, models.InsightCritical, models.PriorityHigh,
				"Critical mortality in "+b.Name,
				fmt.Sprintf("Mortality is %.2f%%, above %.0f%%.", b.MortalityRate, rules.MortalityCritical),
				"Isolate sick birds, call the veterinarian and review ventilation and water today.")
		case b.MortalityRate >= rules.MortalityWarning:
			add(RuleMortalityBand, b.ID, models.InsightWarning, models.PriorityMedium,
				"Elevated mortality in "+b.Name,
				fmt.Sprintf("Mortality is %.2f%%.", b.MortalityRate),
				"Check temperature, litter and feed quality, and watch the next reports closely.")
		case b.MortalityRate < rules.MortalityGood:
			add(RuleMortalityBand, b.ID, models.InsightSuccess, models.PriorityLow,
				"Low mortality in "+b.Name,
				fmt.Sprintf("Mortality is only %.2f%%.", b.MortalityRate),
				"Document the practices used on this batch so other houses can follow them.")
		}

		switch {
		case b.FeedEfficiency > rules.FeedConversionWarning:
			add(RuleFCRBand, b.ID, models.InsightWarning, models.PriorityMedium,
				"Poor feed conversion in "+b.Name,
				fmt.Sprintf("Feed conversion ratio is %.2f.", b.FeedEfficiency),
				"Check for feed wastage and review the ration with the supplier.")
		case b.FeedEfficiency > 0 && b.FeedEfficiency < rules.FeedConversionGood:
			add(RuleFCRBand, b.ID, models.InsightSuccess, models.PriorityLow,
				"Efficient feed conversion in "+b.Name,
				fmt.Sprintf("Feed conversion ratio is %.2f.", b.FeedEfficiency),
				"Keep the current feeding schedule.")
		}

		if age := b.AgeInDays(now); b.IsActive() && age >= rules.HarvestPlanningDay {
			add(RuleHarvestPlanning, b.ID, models.InsightInfo, models.PriorityMedium,
				"Plan harvest for "+b.Name,
				fmt.Sprintf("%s is %d days old.", b.Name, age),
				"Book buyers and transport for the coming week.")
		}
	}

	if len(poor) > 0 {
		add(RulePoorHealthFarm, models.FarmScope, models.InsightCritical, models.PriorityHigh,
			"Batches in poor health",
			fmt.Sprintf("%d batch(es) are in poor health: %v.", len(poor), poor),
			"Schedule a veterinary visit for the affected houses.")
	}

	if counted > 0 {
		submitted := 0
		for _, r := range in.Reports {
			if countedID[r.BatchID] {
				submitted++
			}
		}
		expected := rules.MinReportsPerBatch * counted
		if submitted < expected {
			add(RuleReportCadence, models.FarmScope, models.InsightWarning, models.PriorityMedium,
				"Few reports submitted",
				fmt.Sprintf("%d report(s) in the last %d days for %d batch(es); expected at least %d.",
					submitted, rules.CadenceWindowDays, counted, expected),
				"Remind staff to send daily reports for every house.")
		}

		if avg := rateSum / float64(counted); avg < rules.FarmMortalityExcellent {
			add(RuleFarmMortalityExcellent, models.FarmScope, models.InsightSuccess, models.PriorityLow,
				"Farm mortality is excellent",
				fmt.Sprintf("Average mortality across %d batch(es) is %.2f%%.", counted, avg),
				"Keep the current biosecurity routine.")
		}
	}

	if n := len(in.Unresolved); n > 0 {
		add(RulePendingCritical, models.FarmScope, models.InsightWarning, models.PriorityHigh,
			"Critical reports pending",
			fmt.Sprintf("%d critical report(s) have not been resolved.", n),
			"Review and resolve the critical reports.")
	}

	since := now.Add(-time.Duration(rules.RecentWindowHours) * time.Hour)
	for _, r := range in.Reports {
		if r.CreatedAt.Before(since) {
			continue
		}

		fields := normalize.Normalize(r.ReportType, r.Fields)
		if deaths := fields.Int(normalize.DeathCount); deaths > rules.ReportDeathSpike {
			add(RuleReportDeathSpike, r.ID, models.InsightCritical, models.PriorityHigh,
				"High deaths reported",
				fmt.Sprintf("A report on batch %s recorded %d deaths.", r.BatchID, deaths),
				"Inspect the house now and send a health report.")
		}

		if r.ReportType == models.ReportHealth && (r.UrgencyLevel == models.UrgencyHigh || r.UrgencyLevel == models.UrgencyCritical) {
			add(RuleUrgentHealthReport, r.ID, models.InsightWarning, models.PriorityHigh,
				"Urgent health report",
				fmt.Sprintf("A %s urgency health report was filed for batch %s.", r.UrgencyLevel, r.BatchID),
				"Follow up with the house keeper and record the treatment.")
		}
	}

	sortInsights(out)
	return out
}

func sortInsights(in []models.Insight) {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Priority.Rank() != in[j].Priority.Rank() {
			return in[i].Priority.Rank() < in[j].Priority.Rank()
		}
		return in[i].Key < in[j].Key
	})
}
