package agent

import (
	"fmt"
	"math"
	"strings"
)

// Fixed check names recorded in pass/fail lists.
const (
	checkDaysCount    = "days_count"
	checkActivities   = "activities_exist"
	checkHoneymoon    = "honeymoon_romantic"
	checkBudgetFit    = "budget_fit"
	minActivitiesDay  = 2
	fillerActivity    = "Local sightseeing and exploration"
	fillerActivityFee = 500
)

var romanticKeywords = []string{"romantic", "candlelight", "couple", "honeymoon", "sunset", "spa", "cruise", "private"}

// Quality runs a fixed battery of structural and business checks against the
// itinerary, auto-repairing specific defects on a deep copy. Never fails.
type Quality struct{}

// NewQuality returns the quality gate.
func NewQuality() *Quality { return &Quality{} }

// Inspect checks the itinerary and returns the corrected copy plus a pass-rate
// score. The input itinerary is never mutated.
func (q *Quality) Inspect(sup SupervisorResult, plan PlannerResult, price PriceResult) QualityResult {
	it := deepCopyItinerary(plan.Itinerary)
	result := QualityResult{}

	// days_count: recorded only, never repaired here.
	if len(it.Days) == sup.Params.DurationDays {
		result.PassedChecks = append(result.PassedChecks, checkDaysCount)
	} else {
		result.FailedChecks = append(result.FailedChecks, checkDaysCount)
		result.Issues = append(result.Issues, fmt.Sprintf("itinerary has %d days, requirement asked for %d", len(it.Days), sup.Params.DurationDays))
	}

	// activities_exist: pad every short day with generic filler.
	short := false
	for i := range it.Days {
		for len(it.Days[i].Activities) < minActivitiesDay {
			short = true
			it.Days[i].Activities = append(it.Days[i].Activities, ItineraryActivity{
				Time:     "15:00",
				Activity: fillerActivity,
				Cost:     fillerActivityFee,
			})
			result.Fixes = append(result.Fixes, fmt.Sprintf("added filler activity to day %d", it.Days[i].DayNumber))
		}
	}
	if short {
		result.FailedChecks = append(result.FailedChecks, checkActivities)
		result.Issues = append(result.Issues, "one or more days had fewer than 2 activities")
	} else {
		result.PassedChecks = append(result.PassedChecks, checkActivities)
	}

	// honeymoon_romantic: literal trip-type match only.
	if strings.EqualFold(sup.Params.TripType, "Honeymoon") {
		if hasRomanticActivity(it) {
			result.PassedChecks = append(result.PassedChecks, checkHoneymoon)
		} else {
			result.FailedChecks = append(result.FailedChecks, checkHoneymoon)
			result.Issues = append(result.Issues, "honeymoon itinerary has no romantic activity")
			if n := len(it.Days); n > 0 {
				it.Days[n-1].Activities = append(it.Days[n-1].Activities, ItineraryActivity{
					Time:     "19:30",
					Activity: "Candlelight dinner for the couple",
					Cost:     2500,
				})
				result.Fixes = append(result.Fixes, fmt.Sprintf("added candlelight dinner to day %d", it.Days[n-1].DayNumber))
			}
		}
	}

	// budget_fit: pricing already attempted its own fit, record only.
	if price.FinalCost <= sup.Params.Budget {
		result.PassedChecks = append(result.PassedChecks, checkBudgetFit)
	} else {
		result.FailedChecks = append(result.FailedChecks, checkBudgetFit)
		result.Issues = append(result.Issues, fmt.Sprintf("final cost %.0f exceeds budget %.0f", price.FinalCost, sup.Params.Budget))
	}

	total := len(result.PassedChecks) + len(result.FailedChecks)
	if total > 0 {
		result.QualityScore = int(math.Round(100 * float64(len(result.PassedChecks)) / float64(total)))
	}
	result.AutoFixed = len(result.Fixes) > 0
	result.FinalItinerary = it
	return result
}

func hasRomanticActivity(it Itinerary) bool {
	for _, d := range it.Days {
		for _, a := range d.Activities {
			text := strings.ToLower(a.Activity)
			for _, kw := range romanticKeywords {
				if strings.Contains(text, kw) {
					return true
				}
			}
		}
	}
	return false
}

func deepCopyItinerary(it Itinerary) Itinerary {
	out := it
	out.Days = make([]ItineraryDay, len(it.Days))
	for i, d := range it.Days {
		out.Days[i] = d
		out.Days[i].Activities = append([]ItineraryActivity(nil), d.Activities...)
	}
	if it.CostBreakdown != nil {
		out.CostBreakdown = make(map[string]float64, len(it.CostBreakdown))
		for k, v := range it.CostBreakdown {
			out.CostBreakdown[k] = v
		}
	}
	out.Highlights = append([]string(nil), it.Highlights...)
	out.Notes = append([]string(nil), it.Notes...)
	return out
}
