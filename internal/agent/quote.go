package agent

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// mock weather flavor for itinerary text rendering; rotated by day number
var weatherFlavor = []string{
	"Sunny, around 29°C",
	"Partly cloudy, around 27°C",
	"Clear skies, around 30°C",
	"Light breeze, around 28°C",
}

// QuoteMapper transforms a completed run into a persisted sellable quote.
// Pure transform; consumed only by the orchestrator's terminal transition.
type QuoteMapper struct{}

// NewQuoteMapper returns the quote mapper.
func NewQuoteMapper() *QuoteMapper { return &QuoteMapper{} }

// Build derives a READY quote from the run's pricing and quality outputs,
// preferring the quality gate's corrected itinerary. Fails if either the
// itinerary or the pricing output is absent.
func (m *QuoteMapper) Build(run *AgentRun, req Requirement) (Quote, error) {
	var price *PriceResult
	if out := run.Steps.Price.Output; out != nil {
		price = out.Price
	}
	if price == nil {
		return Quote{}, fmt.Errorf("run %s has no pricing output", run.ID)
	}

	var itinerary *Itinerary
	if out := run.Steps.Quality.Output; out != nil && out.Quality != nil {
		it := out.Quality.FinalItinerary
		itinerary = &it
	} else if run.FinalResult != nil {
		itinerary = run.FinalResult
	}
	if itinerary == nil {
		return Quote{}, fmt.Errorf("run %s has no itinerary", run.ID)
	}

	duration := req.DurationDays
	tripType := req.TripType
	destination := req.Destination
	if out := run.Steps.Supervisor.Output; out != nil && out.Supervisor != nil {
		p := out.Supervisor.Params
		duration = p.DurationDays
		tripType = p.TripType
		destination = p.Destination
	}

	sections := QuoteSections{
		Hotels: []QuoteLineItem{{
			Name:      price.SelectedHotel.Name,
			UnitPrice: price.SelectedHotel.PricePerNight,
			Quantity:  duration,
			Unit:      "night",
			Total:     price.SelectedHotel.PricePerNight * float64(duration),
		}},
		Transport: []QuoteLineItem{{
			Name:      "Local transport and transfers",
			UnitPrice: price.Breakdown.Transport,
			Quantity:  1,
			Unit:      "trip",
			Total:     price.Breakdown.Transport,
		}},
	}
	for _, d := range itinerary.Days {
		for _, a := range d.Activities {
			if a.Cost <= 0 {
				continue
			}
			sections.Activities = append(sections.Activities, QuoteLineItem{
				Name:      a.Activity,
				UnitPrice: a.Cost,
				Quantity:  1,
				Unit:      "activity",
				Total:     a.Cost,
			})
		}
	}

	now := time.Now()
	it := *itinerary
	return Quote{
		ID:            uuid.NewString(),
		RequirementID: req.ID,
		Title:         fmt.Sprintf("%d-day %s trip to %s", duration, tripType, destination),
		Sections:      sections,
		Costs: QuoteCosts{
			Net:           price.NetCost,
			MarginPercent: price.MarginPercent,
			Final:         price.FinalCost,
			PerHead:       price.PerHeadCost,
		},
		Status:        QuoteReady,
		ItineraryText: RenderItineraryText(it),
		Itinerary:     &it,
		AgentRunID:    run.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// RenderItineraryText renders a human-readable day-by-day itinerary for
// display and PDF purposes.
func RenderItineraryText(it Itinerary) string {
	var b strings.Builder
	if it.Summary != "" {
		b.WriteString(it.Summary)
		b.WriteString("\n\n")
	}
	if it.SelectedHotel.Name != "" {
		fmt.Fprintf(&b, "Stay: %s (%.0f per night)\n\n", it.SelectedHotel.Name, it.SelectedHotel.PricePerNight)
	}
	for i, d := range it.Days {
		fmt.Fprintf(&b, "Day %d", d.DayNumber)
		if d.Date != "" {
			fmt.Fprintf(&b, " - %s", d.Date)
		}
		if d.Theme != "" {
			fmt.Fprintf(&b, ": %s", d.Theme)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "Weather: %s\n", weatherFlavor[i%len(weatherFlavor)])
		for _, a := range d.Activities {
			fmt.Fprintf(&b, "  %s - %s", to12Hour(a.Time), a.Activity)
			if a.Cost > 0 {
				fmt.Fprintf(&b, " (%.0f)", a.Cost)
			}
			b.WriteString("\n")
		}
		if d.Meals != "" {
			fmt.Fprintf(&b, "  Meals: %s\n", d.Meals)
		}
		b.WriteString("\n")
	}
	if it.TotalEstimatedCost > 0 {
		fmt.Fprintf(&b, "Estimated total: %.0f\n", it.TotalEstimatedCost)
	}
	return b.String()
}

// to12Hour converts "HH:MM" to 12-hour clock; unknown formats pass through.
func to12Hour(t string) string {
	parts := strings.SplitN(strings.TrimSpace(t), ":", 2)
	if len(parts) != 2 {
		return t
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return t
	}
	suffix := "AM"
	switch {
	case hour == 0:
		hour = 12
	case hour == 12:
		suffix = "PM"
	case hour > 12:
		hour -= 12
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%s %s", hour, parts[1], suffix)
}
