package agent

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Platform-wide defaults applied by the supervisor.
const (
	DefaultDurationDays = 5
	DefaultAdults       = 2
	DefaultTripType     = "Leisure"
	PlatformCurrency    = "INR"
)

// Supervisor validates and canonicalizes a raw trip request into a strict
// parameter set. Pure function over its input; no I/O, no side effects.
type Supervisor struct{}

// NewSupervisor returns the normalizer.
func NewSupervisor() *Supervisor { return &Supervisor{} }

// Normalize returns the normalized parameter set plus soft-default warnings,
// or a ValidationError for hard failures that abort the run.
func (s *Supervisor) Normalize(req Requirement) (SupervisorResult, error) {
	var warnings []string

	destination := strings.TrimSpace(req.Destination)
	if destination == "" {
		return SupervisorResult{}, ValidationError{Msg: "destination is required"}
	}
	if req.Budget <= 0 || math.IsNaN(req.Budget) || math.IsInf(req.Budget, 0) {
		return SupervisorResult{}, ValidationError{Msg: "budget must be a finite number greater than zero"}
	}
	if req.StartDate.IsZero() {
		return SupervisorResult{}, ValidationError{Msg: "start date must be a valid calendar date"}
	}

	duration := req.DurationDays
	if duration <= 0 {
		warnings = append(warnings, fmt.Sprintf("duration missing or invalid, defaulted to %d days", DefaultDurationDays))
		duration = DefaultDurationDays
	}

	adults := req.Adults
	if adults <= 0 {
		warnings = append(warnings, fmt.Sprintf("adult count missing or invalid, defaulted to %d", DefaultAdults))
		adults = DefaultAdults
	}

	children := req.Children
	if children < 0 {
		warnings = append(warnings, "negative child count clamped to 0")
		children = 0
	}

	tripType := strings.TrimSpace(req.TripType)
	if tripType == "" {
		warnings = append(warnings, fmt.Sprintf("trip type missing, defaulted to %q", DefaultTripType))
		tripType = DefaultTripType
	}

	star := req.HotelStar
	if star != 0 && (star < 1 || star > 5) {
		warnings = append(warnings, fmt.Sprintf("hotel star %d outside 1-5, dropped", star))
		star = 0
	}

	params := NormalizedParams{
		Destination:  titleCase(destination),
		TripType:     titleCase(tripType),
		Budget:       req.Budget,
		Currency:     PlatformCurrency,
		StartDate:    req.StartDate,
		EndDate:      req.StartDate.AddDate(0, 0, duration),
		DurationDays: duration,
		Pax:          Pax{Adults: adults, Children: children},
		HotelStar:    star,
		Preferences:  normalizePreferences(req.Preferences),
	}
	return SupervisorResult{Params: params, Warnings: warnings}, nil
}

// normalizePreferences lower-cases, trims, and deduplicates preserving
// first-seen order.
func normalizePreferences(prefs []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(prefs))
	for _, p := range prefs {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
