package agent

import (
	"math"
	"sort"
	"strings"
)

// Budget-share estimates used when the itinerary carries no cost breakdown.
const (
	estActivitiesShare = 0.15
	estTransportShare  = 0.10
	estMealsShare      = 0.12
	estMiscShare       = 0.05
)

const fallbackHotelName = "Standard Hotel (estimate)"

// Pricer derives net/margin/final/per-head cost from the itinerary and
// research data. Pure computation; never fails, falling back to defaults for
// missing fields.
type Pricer struct {
	marginPercent float64
	fallbackRate  float64
}

// NewPricer builds the pricing engine. marginPercent is the platform margin
// (12 by default); fallbackRate the nightly rate used when no hotel is known.
func NewPricer(marginPercent, fallbackRate float64) *Pricer {
	if marginPercent <= 0 {
		marginPercent = 12
	}
	if fallbackRate <= 0 {
		fallbackRate = 5000
	}
	return &Pricer{marginPercent: marginPercent, fallbackRate: fallbackRate}
}

// Price computes the full pricing breakdown, attempting a bounded hotel
// substitution when the final cost exceeds the budget.
func (p *Pricer) Price(sup SupervisorResult, research ResearchResult, plan PlannerResult) PriceResult {
	params := sup.Params
	it := plan.Itinerary

	selected := p.selectHotel(it, research)
	breakdown := p.breakdown(selected, params, it)
	net, margin, final := p.totals(breakdown)

	result := PriceResult{
		MarginPercent: p.marginPercent,
		OriginalHotel: selected.Name,
		SelectedHotel: selected,
		Budget:        params.Budget,
	}

	if final > params.Budget && len(research.Hotels) > 1 {
		if alt, ok := p.substitute(selected, research.Hotels, params, breakdown); ok {
			selected = alt
			breakdown.Hotel = alt.PricePerNight * float64(params.DurationDays)
			net, margin, final = p.totals(breakdown)
			name := alt.Name
			result.AdjustedHotel = &name
			result.SelectedHotel = alt
		}
	}

	result.NetCost = net
	result.MarginAmount = margin
	result.FinalCost = final
	result.PerHeadCost = math.Round(final / float64(params.Pax.Total()))
	result.BudgetFit = final <= params.Budget
	result.Breakdown = breakdown
	if result.BudgetFit {
		result.Savings = params.Budget - final
	}
	return result
}

// selectHotel prefers the itinerary's chosen hotel, then the first research
// candidate, then the hardcoded fallback rate.
func (p *Pricer) selectHotel(it Itinerary, research ResearchResult) HotelOption {
	name := strings.TrimSpace(it.SelectedHotel.Name)
	if name != "" {
		for _, h := range research.Hotels {
			if strings.EqualFold(strings.TrimSpace(h.Name), name) {
				return h
			}
		}
		rate := it.SelectedHotel.PricePerNight
		if rate <= 0 {
			rate = p.fallbackRate
		}
		return HotelOption{Name: name, PricePerNight: rate}
	}
	if len(research.Hotels) > 0 {
		return research.Hotels[0]
	}
	return HotelOption{Name: fallbackHotelName, PricePerNight: p.fallbackRate}
}

// breakdown takes per-bucket costs from the itinerary's cost breakdown when
// present, estimating fixed budget shares otherwise.
func (p *Pricer) breakdown(hotel HotelOption, params NormalizedParams, it Itinerary) CostBreakdown {
	bucket := func(key string, share float64) float64 {
		if v, ok := it.CostBreakdown[key]; ok && v > 0 {
			return v
		}
		return math.Round(params.Budget * share)
	}
	return CostBreakdown{
		Hotel:      hotel.PricePerNight * float64(params.DurationDays),
		Activities: bucket("activities", estActivitiesShare),
		Transport:  bucket("transport", estTransportShare),
		Meals:      bucket("meals", estMealsShare),
		Misc:       bucket("misc", estMiscShare),
	}
}

func (p *Pricer) totals(b CostBreakdown) (net, margin, final float64) {
	net = b.Hotel + b.Activities + b.Transport + b.Meals + b.Misc
	margin = math.Round(net * p.marginPercent / 100)
	final = net + margin
	return net, margin, final
}

// substitute walks non-selected candidates ascending by price and accepts the
// first whose recomputed final cost fits the budget.
func (p *Pricer) substitute(selected HotelOption, candidates []HotelOption, params NormalizedParams, base CostBreakdown) (HotelOption, bool) {
	var rest []HotelOption
	for _, h := range candidates {
		if strings.EqualFold(strings.TrimSpace(h.Name), strings.TrimSpace(selected.Name)) {
			continue
		}
		rest = append(rest, h)
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].PricePerNight < rest[j].PricePerNight })

	for _, h := range rest {
		b := base
		b.Hotel = h.PricePerNight * float64(params.DurationDays)
		if _, _, final := p.totals(b); final <= params.Budget {
			return h, true
		}
	}
	return HotelOption{}, false
}
