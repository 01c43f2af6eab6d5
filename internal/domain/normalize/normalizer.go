// Package normalize maps the free-form field set of a submitted report onto
// one canonical schema per report kind.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/mamadbah2/flockwatch/internal/domain/models"
)

// Field is a canonical semantic quantity carried by a report.
type Field string

const (
	DeathCount       Field = "deathCount"
	MortalityCause   Field = "mortalityCause"
	FeedAmount       Field = "feedAmount"
	FeedType         Field = "feedType"
	VaccinationCount Field = "vaccinationCount"
	VaccineName      Field = "vaccineName"
	Temperature      Field = "temperature"
	Humidity         Field = "humidity"
	AverageWeight    Field = "averageWeight"
	OverallHealth    Field = "overallHealth"
	Disease          Field = "disease"
	Medication       Field = "medication"
	HealthIssues     Field = "healthIssues"
)

type valueKind int

const (
	numberValue valueKind = iota
	textValue
	listValue
)

type fieldSpec struct {
	field    Field
	keys     []string
	kind     valueKind
	required bool
}

// synonyms lists every accepted key per canonical field, in lookup order.
var synonyms = map[Field][]string{
	DeathCount:       {"mortalityCount", "deathCount", "death_count", "deaths"},
	MortalityCause:   {"cause", "mortalityCause", "reason"},
	FeedAmount:       {"feedAmount", "feedUsed", "quantity_used", "feed_amount"},
	FeedType:         {"feedType", "feed_type"},
	VaccinationCount: {"vaccinationCount", "vaccinations", "vaccination_count"},
	VaccineName:      {"vaccineName", "vaccine", "vaccine_name"},
	Temperature:      {"temperature", "temp"},
	Humidity:         {"humidity"},
	AverageWeight:    {"averageWeight", "avgWeight", "average_weight", "weight"},
	OverallHealth:    {"overallHealth", "overall_health", "healthStatus"},
	Disease:          {"disease", "diseaseDetected", "disease_name"},
	Medication:       {"medication", "medicationGiven", "treatment"},
	HealthIssues:     {"healthIssues", "health_issues", "symptoms"},
}

func def(field Field, kind valueKind, required bool) fieldSpec {
	return fieldSpec{field: field, keys: synonyms[field], kind: kind, required: required}
}

// schemas is the normalization table: one explicit field list per report kind.
var schemas = map[models.ReportType][]fieldSpec{
	models.ReportMortality: {
		def(DeathCount, numberValue, true),
		def(MortalityCause, textValue, false),
	},
	models.ReportFeed: {
		def(FeedAmount, numberValue, true),
		def(FeedType, textValue, false),
		def(AverageWeight, numberValue, false),
	},
	models.ReportVaccination: {
		def(VaccinationCount, numberValue, true),
		def(VaccineName, textValue, false),
	},
	models.ReportHealth: {
		def(Temperature, numberValue, false),
		def(Humidity, numberValue, false),
		def(Disease, textValue, false),
		def(Medication, textValue, false),
		def(HealthIssues, listValue, false),
	},
	models.ReportDaily: {
		def(DeathCount, numberValue, false),
		def(MortalityCause, textValue, false),
		def(FeedAmount, numberValue, false),
		def(AverageWeight, numberValue, false),
		def(Temperature, numberValue, false),
		def(Humidity, numberValue, false),
		def(OverallHealth, textValue, false),
	},
}

// Supports reports whether kind has a normalization schema.
func Supports(kind models.ReportType) bool {
	_, ok := schemas[kind]
	return ok
}

// Fields is the canonical view of a report's raw payload.
type Fields struct {
	numbers map[Field]float64
	texts   map[Field]string
	lists   map[Field][]string
	present map[Field]bool
	missing []Field
}

// Normalize reads raw through the schema for kind. It never fails: unknown
// kinds produce an empty view, unparseable numbers become 0, and required
// fields that are absent are listed by Missing.
func Normalize(kind models.ReportType, raw map[string]any) Fields {
	f := Fields{
		numbers: make(map[Field]float64),
		texts:   make(map[Field]string),
		lists:   make(map[Field][]string),
		present: make(map[Field]bool),
	}

	for _, s := range schemas[kind] {
		value, ok := lookup(raw, s.keys)
		if !ok {
			if s.required {
				f.missing = append(f.missing, s.field)
			}
			continue
		}

		f.present[s.field] = true
		switch s.kind {
		case numberValue:
			f.numbers[s.field] = toNumber(value)
		case textValue:
			f.texts[s.field] = toText(value)
		case listValue:
			f.lists[s.field] = toList(value)
		}
	}

	return f
}

// Has reports whether any synonym of field was supplied.
func (f Fields) Has(field Field) bool {
	return f.present[field]
}

// Number returns the numeric value of field, 0 when absent.
func (f Fields) Number(field Field) float64 {
	return f.numbers[field]
}

// Int returns the numeric value of field truncated to an integer.
func (f Fields) Int(field Field) int {
	return int(f.numbers[field])
}

// Text returns the trimmed text value of field.
func (f Fields) Text(field Field) string {
	return f.texts[field]
}

// List returns the list value of field.
func (f Fields) List(field Field) []string {
	return f.lists[field]
}

// Missing lists the required fields that were absent.
func (f Fields) Missing() []Field {
	return f.missing
}

func lookup(raw map[string]any, keys []string) (any, bool) {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok || value == nil {
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return value, true
	}
	return nil, false
}

// toNumber coerces value to a finite float. NaN and infinities become 0
// like any other unparseable input.
func toNumber(value any) float64 {
	var n float64
	switch v := value.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		n = f
	default:
		return 0
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

func toText(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case bool:
		if v {
			return "yes"
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func toList(value any) []string {
	var out []string
	switch v := value.(type) {
	case []string:
		for _, item := range v {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	case string:
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	default:
		// Covers []any as well as named slice types such as bson arrays.
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice {
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if text := toText(rv.Index(i).Interface()); text != "" {
				out = append(out, text)
			}
		}
	}
	return out
}
