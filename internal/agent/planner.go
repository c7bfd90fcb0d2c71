package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/safar-labs/safar/provider"
)

// RetryPolicy bounds the planner's provider loop. Parameterized independently
// of the generation call so tests can assert exact attempt counts.
type RetryPolicy struct {
	MaxAttempts int
}

// DefaultRetryPolicy is two attempts total, no feedback injection.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 2}

// Planner drives the generative provider with a constrained prompt contract
// and validates the structured itinerary it returns.
type Planner struct {
	llm    provider.Provider
	retry  RetryPolicy
	logger *log.Logger
}

// NewPlanner creates the itinerary generator.
func NewPlanner(llm provider.Provider, retry RetryPolicy) *Planner {
	if retry.MaxAttempts < 1 {
		retry = DefaultRetryPolicy
	}
	return &Planner{
		llm:    llm,
		retry:  retry,
		logger: log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// Generate produces a day-by-day itinerary for the normalized trip. Parsed but
// structurally imperfect output is tolerated with warnings after the final
// attempt; unparsable output across all attempts is the only terminal failure.
func (p *Planner) Generate(ctx context.Context, params NormalizedParams, research ResearchResult) (PlannerResult, error) {
	prompt := p.buildPrompt(params, research)

	var (
		lastParsed *Itinerary
		lastIssues []string
		lastErr    error
	)

	for attempt := 1; attempt <= p.retry.MaxAttempts; attempt++ {
		response, err := p.llm.Generate(ctx, prompt)
		if err != nil {
			p.logger.Printf("attempt %d: provider call failed: %v", attempt, err)
			lastErr = err
			continue
		}

		itinerary, err := parseItinerary(response)
		if err != nil {
			p.logger.Printf("attempt %d: %v", attempt, err)
			lastErr = err
			continue
		}

		issues := validateItinerary(*itinerary, params.DurationDays)
		if len(issues) == 0 {
			return PlannerResult{Itinerary: *itinerary, Attempts: attempt}, nil
		}
		p.logger.Printf("attempt %d: itinerary failed validation: %s", attempt, strings.Join(issues, "; "))
		lastParsed = itinerary
		lastIssues = issues
	}

	if lastParsed != nil {
		return PlannerResult{
			Itinerary:      *lastParsed,
			Warnings:       lastIssues,
			Attempts:       p.retry.MaxAttempts,
			PartialSuccess: true,
		}, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no usable response")
	}
	return PlannerResult{}, ProviderError{Provider: "itinerary provider", Err: fmt.Errorf("unparsable output after %d attempts: %w", p.retry.MaxAttempts, lastErr)}
}

func (p *Planner) buildPrompt(params NormalizedParams, research ResearchResult) string {
	var hotels strings.Builder
	for _, h := range research.Hotels {
		fmt.Fprintf(&hotels, "- %s (%s, %.0f %s/night, rating %.1f)\n", h.Name, h.Source, h.PricePerNight, params.Currency, h.Rating)
	}
	if hotels.Len() == 0 {
		hotels.WriteString("- none found; choose a realistic mid-range hotel for the destination\n")
	}

	prefs := "none"
	if len(params.Preferences) > 0 {
		prefs = strings.Join(params.Preferences, ", ")
	}

	return fmt.Sprintf(`You are a travel itinerary planner for a travel agency.

TRIP PARAMETERS:
Destination: %s
Trip type: %s
Start date: %s
Duration: %d days
Travelers: %d adults, %d children
Total budget: %.0f %s
Preferences: %s

CANDIDATE HOTELS:
%s
PLANNING REQUIREMENTS:
1. Pick exactly one hotel, preferring the candidate list above.
2. Produce exactly %d days, each with a theme and scheduled activities.
3. Keep the total estimated cost near or under the budget.
4. Every activity carries a 24-hour time and a cost in %s (0 for free).

OUTPUT FORMAT (respond with ONE JSON object only, no prose, no code fences):
{
  "summary": "one-paragraph trip overview",
  "selectedHotel": {"name": "...", "pricePerNight": 0, "totalCost": 0},
  "days": [
    {
      "dayNumber": 1,
      "date": "YYYY-MM-DD",
      "theme": "...",
      "activities": [{"time": "09:00", "activity": "...", "cost": 0}],
      "meals": "...",
      "dailyCost": 0
    }
  ],
  "totalEstimatedCost": 0,
  "costBreakdown": {"hotel": 0, "activities": 0, "transport": 0, "meals": 0, "misc": 0},
  "highlights": ["..."],
  "notes": ["..."]
}`,
		params.Destination, params.TripType, params.StartDate.Format("2006-01-02"),
		params.DurationDays, params.Pax.Adults, params.Pax.Children,
		params.Budget, params.Currency, prefs, hotels.String(),
		params.DurationDays, params.Currency)
}

// parseItinerary strips code fences, extracts the substring between the first
// '{' and the last '}', and unmarshals it.
func parseItinerary(response string) (*Itinerary, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in provider response")
	}

	var itinerary Itinerary
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &itinerary); err != nil {
		return nil, fmt.Errorf("failed to parse itinerary JSON: %w", err)
	}
	return &itinerary, nil
}

// validateItinerary enumerates every violated structural rule, not just the first.
func validateItinerary(it Itinerary, duration int) []string {
	var issues []string
	if strings.TrimSpace(it.Summary) == "" {
		issues = append(issues, "summary is missing")
	}
	if strings.TrimSpace(it.SelectedHotel.Name) == "" {
		issues = append(issues, "selectedHotel is missing")
	}
	if len(it.Days) != duration {
		issues = append(issues, fmt.Sprintf("expected %d days, got %d", duration, len(it.Days)))
	}
	for _, d := range it.Days {
		if len(d.Activities) == 0 {
			issues = append(issues, fmt.Sprintf("day %d has no activities", d.DayNumber))
		}
	}
	if it.TotalEstimatedCost <= 0 {
		issues = append(issues, "totalEstimatedCost is missing")
	}
	return issues
}
