package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules holds the thresholds the alert and insight scans evaluate.
type Rules struct {
	Alerts   AlertRules   `yaml:"alerts"`
	Insights InsightRules `yaml:"insights"`
}

// AlertRules are the thresholds of the periodic alert scan.
type AlertRules struct {
	MortalityCritical     float64 `yaml:"mortalityCritical"`
	MortalityWarning      float64 `yaml:"mortalityWarning"`
	FeedConversionWarning float64 `yaml:"feedConversionWarning"`
	HarvestWindowStartDay int     `yaml:"harvestWindowStartDay"`
	HarvestWindowEndDay   int     `yaml:"harvestWindowEndDay"`
	HarvestOverdueDay     int     `yaml:"harvestOverdueDay"`
	SpikeAverageDeaths    float64 `yaml:"spikeAverageDeaths"`
	SpikeMinReports       int     `yaml:"spikeMinReports"`
	SpikeMaxReports       int     `yaml:"spikeMaxReports"`
}

// InsightRules are the thresholds of the broader insight scan.
type InsightRules struct {
	MortalityCritical      float64 `yaml:"mortalityCritical"`
	MortalityWarning       float64 `yaml:"mortalityWarning"`
	MortalityGood          float64 `yaml:"mortalityGood"`
	FeedConversionWarning  float64 `yaml:"feedConversionWarning"`
	FeedConversionGood     float64 `yaml:"feedConversionGood"`
	FarmMortalityExcellent float64 `yaml:"farmMortalityExcellent"`
	HarvestPlanningDay     int     `yaml:"harvestPlanningDay"`
	CadenceWindowDays      int     `yaml:"cadenceWindowDays"`
	MinReportsPerBatch     int     `yaml:"minReportsPerBatch"`
	RecentWindowHours      int     `yaml:"recentWindowHours"`
	ReportDeathSpike       int     `yaml:"reportDeathSpike"`
}

// DefaultRules returns the stock thresholds.
func DefaultRules() Rules {
	return Rules{
		Alerts: AlertRules{
			MortalityCritical:     15,
			MortalityWarning:      10,
			FeedConversionWarning: 2.2,
			HarvestWindowStartDay: 35,
			HarvestWindowEndDay:   42,
			HarvestOverdueDay:     45,
			SpikeAverageDeaths:    20,
			SpikeMinReports:       2,
			SpikeMaxReports:       3,
		},
		Insights: InsightRules{
			MortalityCritical:      10,
			MortalityWarning:       5,
			MortalityGood:          3,
			FeedConversionWarning:  2.0,
			FeedConversionGood:     1.7,
			FarmMortalityExcellent: 5,
			HarvestPlanningDay:     35,
			CadenceWindowDays:      7,
			MinReportsPerBatch:     2,
			RecentWindowHours:      24,
			ReportDeathSpike:       20,
		},
	}
}

// LoadRules layers the YAML file at path over DefaultRules. An empty path
// returns the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	return rules, nil
}

// Validate checks the thresholds are coherent.
func (r Rules) Validate() error {
	a := r.Alerts
	switch {
	case a.MortalityWarning <= 0 || a.MortalityCritical < a.MortalityWarning:
		return errors.New("alerts: mortalityCritical must be >= mortalityWarning > 0")
	case a.HarvestWindowStartDay > a.HarvestWindowEndDay:
		return errors.New("alerts: harvestWindowStartDay must not exceed harvestWindowEndDay")
	case a.HarvestOverdueDay < a.HarvestWindowEndDay:
		return errors.New("alerts: harvestOverdueDay must not precede the harvest window end")
	case a.SpikeMinReports < 1 || a.SpikeMaxReports < a.SpikeMinReports:
		return errors.New("alerts: spikeMaxReports must be >= spikeMinReports >= 1")
	}

	i := r.Insights
	switch {
	case i.MortalityGood > i.MortalityWarning || i.MortalityWarning > i.MortalityCritical:
		return errors.New("insights: mortality bands must be ordered good <= warning <= critical")
	case i.FeedConversionGood > i.FeedConversionWarning:
		return errors.New("insights: feedConversionGood must not exceed feedConversionWarning")
	case i.CadenceWindowDays < 1 || i.RecentWindowHours < 1:
		return errors.New("insights: windows must be positive")
	}

	return nil
}
