package agent

import (
	"strings"
	"testing"
	"time"
)

func completedRun(t *testing.T) *AgentRun {
	t.Helper()
	run := &AgentRun{
		ID:            "run-1",
		RequirementID: "req-1",
		Status:        RunDone,
		Steps:         NewSteps(),
		Provider:      "openai",
		Model:         "test-model",
	}

	sup := SupervisorResult{Params: researchParams()}
	price := PriceResult{
		NetCost:       35000,
		MarginPercent: 12,
		MarginAmount:  4200,
		FinalCost:     39200,
		PerHeadCost:   19600,
		SelectedHotel: HotelOption{Name: "Sea Breeze", PricePerNight: 4000},
		Breakdown:     CostBreakdown{Hotel: 16000, Activities: 6000, Transport: 5000, Meals: 6000, Misc: 2000},
	}
	quality := QualityResult{FinalItinerary: Itinerary{
		Summary:       "Coastal escape",
		SelectedHotel: SelectedHotel{Name: "Sea Breeze", PricePerNight: 4000},
		Days: []ItineraryDay{
			{DayNumber: 1, Theme: "Arrival", Activities: []ItineraryActivity{
				{Time: "09:00", Activity: "Beach walk", Cost: 0},
				{Time: "19:30", Activity: "Welcome dinner", Cost: 1200},
			}},
		},
	}}

	now := time.Now()
	for _, name := range StepOrder() {
		if err := run.StartStep(name, now); err != nil {
			t.Fatalf("start %s: %v", name, err)
		}
		var out *StepOutput
		switch name {
		case StepSupervisor:
			out = &StepOutput{Supervisor: &sup}
		case StepPrice:
			out = &StepOutput{Price: &price}
		case StepQuality:
			out = &StepOutput{Quality: &quality}
		default:
			out = &StepOutput{}
		}
		if err := run.CompleteStep(name, now, out); err != nil {
			t.Fatalf("complete %s: %v", name, err)
		}
	}
	return run
}

func TestQuoteBuild_DerivesSectionsAndCosts(t *testing.T) {
	run := completedRun(t)
	req := validRequirement()
	q, err := NewQuoteMapper().Build(run, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.RequirementID != "req-1" || q.AgentRunID != "run-1" {
		t.Fatalf("unexpected linkage %+v", q)
	}
	if q.Status != QuoteReady {
		t.Fatalf("expected READY, got %s", q.Status)
	}
	if q.Title != "4-day Leisure trip to Goa" {
		t.Fatalf("unexpected title %q", q.Title)
	}

	if len(q.Sections.Hotels) != 1 {
		t.Fatalf("expected one hotel line, got %d", len(q.Sections.Hotels))
	}
	hotel := q.Sections.Hotels[0]
	if hotel.Name != "Sea Breeze" || hotel.Quantity != 4 || hotel.Total != 16000 {
		t.Fatalf("unexpected hotel line %+v", hotel)
	}
	if len(q.Sections.Transport) != 1 || q.Sections.Transport[0].Total != 5000 {
		t.Fatalf("unexpected transport section %+v", q.Sections.Transport)
	}
	// only costed activities become lines
	if len(q.Sections.Activities) != 1 || q.Sections.Activities[0].Name != "Welcome dinner" {
		t.Fatalf("unexpected activity lines %+v", q.Sections.Activities)
	}

	if q.Costs.Net != 35000 || q.Costs.Final != 39200 || q.Costs.PerHead != 19600 || q.Costs.MarginPercent != 12 {
		t.Fatalf("unexpected costs %+v", q.Costs)
	}
	if q.ID == "" {
		t.Fatal("expected generated quote id")
	}
}

func TestQuoteBuild_FailsWithoutPricingOutput(t *testing.T) {
	run := &AgentRun{ID: "run-x", Steps: NewSteps()}
	if _, err := NewQuoteMapper().Build(run, validRequirement()); err == nil {
		t.Fatal("expected error without pricing output")
	}
}

func TestRenderItineraryText_Uses12HourClock(t *testing.T) {
	text := RenderItineraryText(Itinerary{
		Summary: "Coastal escape",
		Days: []ItineraryDay{{
			DayNumber: 1,
			Theme:     "Arrival",
			Activities: []ItineraryActivity{
				{Time: "09:00", Activity: "Beach walk"},
				{Time: "19:30", Activity: "Dinner", Cost: 1200},
			},
		}},
	})
	if !strings.Contains(text, "9:00 AM - ") {
		t.Fatalf("expected 12-hour morning time, got:\n%s", text)
	}
	if !strings.Contains(text, "7:30 PM") {
		t.Fatalf("expected 12-hour evening time, got:\n%s", text)
	}
	if !strings.Contains(text, "Day 1") {
		t.Fatalf("expected day header, got:\n%s", text)
	}
}
