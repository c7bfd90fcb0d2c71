package agent

import (
	"testing"
)

func qualityInputs(tripType string, days int) (SupervisorResult, PlannerResult, PriceResult) {
	params := researchParams()
	params.TripType = tripType
	sup := SupervisorResult{Params: params}

	var itDays []ItineraryDay
	for i := 1; i <= days; i++ {
		itDays = append(itDays, ItineraryDay{
			DayNumber: i,
			Activities: []ItineraryActivity{
				{Time: "09:00", Activity: "Beach walk", Cost: 0},
				{Time: "15:00", Activity: "Fort visit", Cost: 800},
			},
		})
	}
	plan := PlannerResult{Itinerary: Itinerary{
		Summary:       "Coastal escape",
		SelectedHotel: SelectedHotel{Name: "Sea Breeze"},
		Days:          itDays,
	}}
	price := PriceResult{FinalCost: 40000}
	return sup, plan, price
}

func TestInspect_AllChecksPass(t *testing.T) {
	sup, plan, price := qualityInputs("Leisure", 4)
	got := NewQuality().Inspect(sup, plan, price)

	if got.QualityScore != 100 {
		t.Fatalf("expected score 100, got %d", got.QualityScore)
	}
	if got.AutoFixed {
		t.Fatalf("expected no fixes, got %v", got.Fixes)
	}
	// honeymoon check is skipped for non-honeymoon trips
	if len(got.PassedChecks) != 3 {
		t.Fatalf("expected 3 checks evaluated, got %v", got.PassedChecks)
	}
}

func TestInspect_PadsShortDaysWithFiller(t *testing.T) {
	sup, plan, price := qualityInputs("Leisure", 4)
	plan.Itinerary.Days[1].Activities = plan.Itinerary.Days[1].Activities[:1]
	plan.Itinerary.Days[3].Activities = nil

	got := NewQuality().Inspect(sup, plan, price)

	if !got.AutoFixed {
		t.Fatal("expected auto-fix")
	}
	for _, day := range got.FinalItinerary.Days {
		if len(day.Activities) < 2 {
			t.Fatalf("day %d still short: %d activities", day.DayNumber, len(day.Activities))
		}
	}
	filler := got.FinalItinerary.Days[3].Activities[0]
	if filler.Activity != "Local sightseeing and exploration" || filler.Cost != 500 || filler.Time != "15:00" {
		t.Fatalf("unexpected filler activity %+v", filler)
	}
	// input itinerary is untouched
	if len(plan.Itinerary.Days[3].Activities) != 0 {
		t.Fatal("input itinerary was mutated")
	}
	if got.QualityScore != 67 {
		t.Fatalf("expected score 67 (2/3 passed), got %d", got.QualityScore)
	}
}

func TestInspect_HoneymoonGetsCandlelightDinner(t *testing.T) {
	sup, plan, price := qualityInputs("Honeymoon", 4)
	got := NewQuality().Inspect(sup, plan, price)

	if len(got.FailedChecks) != 1 || got.FailedChecks[0] != "honeymoon_romantic" {
		t.Fatalf("expected honeymoon_romantic failure, got %v", got.FailedChecks)
	}
	last := got.FinalItinerary.Days[3].Activities
	added := last[len(last)-1]
	if added.Activity != "Candlelight dinner for the couple" || added.Time != "19:30" || added.Cost != 2500 {
		t.Fatalf("unexpected romantic fix %+v", added)
	}
}

func TestInspect_HoneymoonWithRomanticActivityPasses(t *testing.T) {
	sup, plan, price := qualityInputs("Honeymoon", 4)
	plan.Itinerary.Days[2].Activities = append(plan.Itinerary.Days[2].Activities, ItineraryActivity{
		Time: "18:00", Activity: "Sunset cruise on the Mandovi", Cost: 3000,
	})
	got := NewQuality().Inspect(sup, plan, price)

	if got.AutoFixed {
		t.Fatalf("expected no fixes, got %v", got.Fixes)
	}
	if got.QualityScore != 100 {
		t.Fatalf("expected score 100, got %d", got.QualityScore)
	}
}

func TestInspect_RecordsBudgetAndDayCountFailures(t *testing.T) {
	sup, plan, price := qualityInputs("Leisure", 3) // requirement asks for 4
	price.FinalCost = 70000                         // over the 60000 budget

	got := NewQuality().Inspect(sup, plan, price)

	failed := map[string]bool{}
	for _, c := range got.FailedChecks {
		failed[c] = true
	}
	if !failed["days_count"] || !failed["budget_fit"] {
		t.Fatalf("expected days_count and budget_fit failures, got %v", got.FailedChecks)
	}
	// neither failure is repairable here
	if len(got.FinalItinerary.Days) != 3 {
		t.Fatalf("day count must not be padded, got %d days", len(got.FinalItinerary.Days))
	}
	if got.QualityScore != 33 {
		t.Fatalf("expected score 33 (1/3), got %d", got.QualityScore)
	}
}
