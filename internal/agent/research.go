package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/safar-labs/safar/internal/market"
)

// partner coverage below this triggers the external market-data lookup
const minPartnerCoverage = 3

// Research merges partner inventory with live market data into a ranked
// candidate hotel list. It never fails: provider errors degrade to empty
// result sets for that provider.
type Research struct {
	inventory PartnerInventory
	market    market.Client
	cache     *redis.Client
	cacheTTL  time.Duration
	maxHotels int
	logger    *log.Logger
}

// NewResearch builds the research adapter. cache may be nil; cache errors are
// always silent.
func NewResearch(inventory PartnerInventory, mkt market.Client, cache *redis.Client, cacheTTL time.Duration, maxHotels int) *Research {
	if maxHotels <= 0 {
		maxHotels = 10
	}
	return &Research{
		inventory: inventory,
		market:    mkt,
		cache:     cache,
		cacheTTL:  cacheTTL,
		maxHotels: maxHotels,
		logger:    log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags),
	}
}

// Run researches hotels for the normalized trip parameters.
func (r *Research) Run(ctx context.Context, params NormalizedParams) ResearchResult {
	if res, ok := r.fromCache(ctx, params); ok {
		return res
	}

	var logs []string
	var sources []string
	var partnerHotels []HotelOption

	hotels, err := r.inventory.HotelsByDestination(ctx, params.Destination, params.HotelStar)
	if err != nil {
		r.logger.Printf("partner inventory lookup failed for %q: %v", params.Destination, err)
		logs = append(logs, fmt.Sprintf("partner inventory unavailable: %v", err))
	} else {
		for _, h := range hotels {
			partnerHotels = append(partnerHotels, HotelOption{
				Name:          h.Name,
				PricePerNight: h.CheapestRate(),
				Source:        SourcePartner,
				PartnerID:     h.PartnerID,
				PartnerName:   h.PartnerName,
				Rating:        h.Rating,
				Location:      h.Location,
				Amenities:     h.Amenities,
			})
		}
		sources = append(sources, "partner_inventory")
		logs = append(logs, fmt.Sprintf("partner inventory matched %d hotels for %q", len(partnerHotels), params.Destination))
	}

	var externalHotels []HotelOption
	if len(partnerHotels) < minPartnerCoverage {
		listings, err := r.market.SearchHotels(ctx, params.Destination, params.StartDate, params.EndDate, params.Pax.Adults)
		if err != nil {
			r.logger.Printf("market data lookup failed for %q: %v", params.Destination, err)
			logs = append(logs, fmt.Sprintf("market data provider unavailable: %v", err))
		} else {
			for _, l := range listings {
				externalHotels = append(externalHotels, HotelOption{
					Name:          l.Name,
					PricePerNight: l.PricePerNight,
					Source:        SourceSerpAPI,
					Rating:        l.Rating,
					Location:      l.Location,
					Amenities:     l.Amenities,
				})
			}
			sources = append(sources, "serpapi")
			logs = append(logs, fmt.Sprintf("market data returned %d live listings", len(externalHotels)))
		}
	}

	merged := dedupeHotels(append(partnerHotels, externalHotels...))
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].PricePerNight < merged[j].PricePerNight })
	if len(merged) > r.maxHotels {
		merged = merged[:r.maxHotels]
	}

	result := ResearchResult{
		Hotels:         merged,
		PriceRange:     priceRange(merged),
		Suggestions:    suggestions(params, merged),
		DataConfidence: confidence(merged),
		Sources:        sources,
		Logs:           append(logs, fmt.Sprintf("final candidate list: %d hotels", len(merged))),
	}
	r.toCache(ctx, params, result)
	return result
}

// dedupeHotels drops later entries sharing a case-insensitive trimmed name.
func dedupeHotels(hotels []HotelOption) []HotelOption {
	out := make([]HotelOption, 0, len(hotels))
	seen := make(map[string]struct{}, len(hotels))
	for _, h := range hotels {
		key := strings.ToLower(strings.TrimSpace(h.Name))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}

func priceRange(hotels []HotelOption) PriceRange {
	if len(hotels) == 0 {
		return PriceRange{}
	}
	pr := PriceRange{Min: hotels[0].PricePerNight, Max: hotels[0].PricePerNight}
	for _, h := range hotels[1:] {
		if h.PricePerNight < pr.Min {
			pr.Min = h.PricePerNight
		}
		if h.PricePerNight > pr.Max {
			pr.Max = h.PricePerNight
		}
	}
	return pr
}

func confidence(hotels []HotelOption) float64 {
	partner := 0
	for _, h := range hotels {
		if h.Source == SourcePartner {
			partner++
		}
	}
	switch {
	case partner >= minPartnerCoverage:
		return 0.9
	case partner > 0:
		return 0.7
	case len(hotels) > 0:
		return 0.5
	default:
		return 0.1
	}
}

func suggestions(params NormalizedParams, hotels []HotelOption) []string {
	var out []string
	if len(hotels) < minPartnerCoverage {
		out = append(out, "Few matching properties found; consider widening the search to nearby destinations or relaxing the star preference.")
	}
	for _, h := range hotels {
		if h.Source == SourcePartner {
			out = append(out, "Partner inventory covers this destination; negotiated rates may beat listed prices.")
			break
		}
	}
	switch strings.ToLower(params.TripType) {
	case "honeymoon":
		out = append(out, "Honeymoon trip: prioritize properties with couple-friendly amenities such as private dining and spa access.")
	case "family":
		out = append(out, "Family trip: prefer hotels with family rooms and child-friendly activities nearby.")
	}
	return out
}

func (r *Research) cacheKey(params NormalizedParams) string {
	return fmt.Sprintf("research:%s:%s:%s:%d",
		strings.ToLower(params.Destination), params.StartDate.Format("2006-01-02"),
		params.EndDate.Format("2006-01-02"), params.HotelStar)
}

func (r *Research) fromCache(ctx context.Context, params NormalizedParams) (ResearchResult, bool) {
	if r.cache == nil {
		return ResearchResult{}, false
	}
	raw, err := r.cache.Get(ctx, r.cacheKey(params)).Bytes()
	if err != nil {
		return ResearchResult{}, false
	}
	var res ResearchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return ResearchResult{}, false
	}
	res.Logs = append(res.Logs, "served from research cache")
	return res, true
}

func (r *Research) toCache(ctx context.Context, params NormalizedParams, res ResearchResult) {
	if r.cache == nil || r.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, r.cacheKey(params), raw, r.cacheTTL).Err(); err != nil {
		r.logger.Printf("research cache write failed: %v", err)
	}
}
