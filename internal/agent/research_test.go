package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/safar-labs/safar/internal/market"
)

type fakeInventory struct {
	hotels []PartnerHotel
	err    error
	calls  int
}

func (f *fakeInventory) HotelsByDestination(_ context.Context, _ string, _ int) ([]PartnerHotel, error) {
	f.calls++
	return f.hotels, f.err
}

type fakeMarket struct {
	listings []market.Listing
	err      error
	calls    int
}

func (f *fakeMarket) SearchHotels(_ context.Context, _ string, _, _ time.Time, _ int) ([]market.Listing, error) {
	f.calls++
	return f.listings, f.err
}

func partnerHotel(name string, rate float64) PartnerHotel {
	return PartnerHotel{
		ID:          "ph-" + name,
		PartnerID:   "p-1",
		PartnerName: "Goa Travels",
		Name:        name,
		Destination: "Goa",
		Star:        4,
		RoomTypes:   []RoomType{{Type: "Deluxe", PricePerNight: rate + 1000}, {Type: "Standard", PricePerNight: rate}},
	}
}

func researchParams() NormalizedParams {
	return NormalizedParams{
		Destination:  "Goa",
		TripType:     "Leisure",
		Budget:       60000,
		Currency:     "INR",
		StartDate:    time.Date(2026, 11, 10, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC),
		DurationDays: 4,
		Pax:          Pax{Adults: 2},
	}
}

func TestResearch_SkipsMarketWhenPartnerCoverageSufficient(t *testing.T) {
	inv := &fakeInventory{hotels: []PartnerHotel{
		partnerHotel("Sea Breeze", 4000),
		partnerHotel("Palm Grove", 3000),
		partnerHotel("Sunset Bay", 5000),
	}}
	mkt := &fakeMarket{listings: []market.Listing{{Name: "External", PricePerNight: 2000}}}

	res := NewResearch(inv, mkt, nil, 0, 10).Run(context.Background(), researchParams())

	if mkt.calls != 0 {
		t.Fatalf("expected market provider untouched, got %d calls", mkt.calls)
	}
	if len(res.Hotels) != 3 {
		t.Fatalf("expected 3 hotels, got %d", len(res.Hotels))
	}
	// cheapest room type, ascending
	if res.Hotels[0].Name != "Palm Grove" || res.Hotels[0].PricePerNight != 3000 {
		t.Fatalf("expected Palm Grove at 3000 first, got %+v", res.Hotels[0])
	}
	if res.DataConfidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", res.DataConfidence)
	}
	if res.PriceRange.Min != 3000 || res.PriceRange.Max != 5000 {
		t.Fatalf("unexpected price range %+v", res.PriceRange)
	}
}

func TestResearch_FallsBackToMarketOnThinPartnerCoverage(t *testing.T) {
	inv := &fakeInventory{hotels: []PartnerHotel{partnerHotel("Sea Breeze", 4000)}}
	mkt := &fakeMarket{listings: []market.Listing{
		{Name: "City Stay", PricePerNight: 2500, Rating: 4.1},
		{Name: "sea breeze", PricePerNight: 3900}, // duplicate of the partner hotel
	}}

	res := NewResearch(inv, mkt, nil, 0, 10).Run(context.Background(), researchParams())

	if mkt.calls != 1 {
		t.Fatalf("expected one market call, got %d", mkt.calls)
	}
	if len(res.Hotels) != 2 {
		t.Fatalf("expected duplicate dropped, got %d hotels: %+v", len(res.Hotels), res.Hotels)
	}
	// first-wins dedupe keeps the partner entry
	for _, h := range res.Hotels {
		if h.Name == "Sea Breeze" && h.Source != SourcePartner {
			t.Fatalf("expected partner entry to win dedupe, got source %s", h.Source)
		}
	}
	if res.DataConfidence != 0.7 {
		t.Fatalf("expected confidence 0.7 with partial partner coverage, got %v", res.DataConfidence)
	}
}

func TestResearch_NeverFailsWhenAllProvidersError(t *testing.T) {
	inv := &fakeInventory{err: errors.New("db down")}
	mkt := &fakeMarket{err: errors.New("quota exceeded")}

	res := NewResearch(inv, mkt, nil, 0, 10).Run(context.Background(), researchParams())

	if len(res.Hotels) != 0 {
		t.Fatalf("expected empty candidate list, got %d", len(res.Hotels))
	}
	if res.DataConfidence != 0.1 {
		t.Fatalf("expected floor confidence 0.1, got %v", res.DataConfidence)
	}
	if len(res.Suggestions) == 0 {
		t.Fatal("expected a widen-the-search suggestion")
	}
}

func TestResearch_CapsCandidateList(t *testing.T) {
	var hotels []PartnerHotel
	for i := 0; i < 15; i++ {
		hotels = append(hotels, partnerHotel(string(rune('A'+i))+" Hotel", float64(1000+i*100)))
	}
	inv := &fakeInventory{hotels: hotels}

	res := NewResearch(inv, &fakeMarket{}, nil, 0, 10).Run(context.Background(), researchParams())

	if len(res.Hotels) != 10 {
		t.Fatalf("expected cap at 10, got %d", len(res.Hotels))
	}
	if res.Hotels[0].PricePerNight != 1000 {
		t.Fatalf("expected cheapest kept after cap, got %v", res.Hotels[0].PricePerNight)
	}
}

func TestResearch_MarketOnlyConfidence(t *testing.T) {
	inv := &fakeInventory{}
	mkt := &fakeMarket{listings: []market.Listing{{Name: "City Stay", PricePerNight: 2500}}}

	res := NewResearch(inv, mkt, nil, 0, 10).Run(context.Background(), researchParams())

	if res.DataConfidence != 0.5 {
		t.Fatalf("expected confidence 0.5 for market-only data, got %v", res.DataConfidence)
	}
	if res.Hotels[0].Source != SourceSerpAPI {
		t.Fatalf("expected SERPAPI source, got %s", res.Hotels[0].Source)
	}
}

func TestResearch_CacheKeyVariesWithStayWindow(t *testing.T) {
	r := NewResearch(&fakeInventory{}, &fakeMarket{}, nil, 0, 10)

	a := researchParams()
	b := researchParams()
	b.EndDate = b.EndDate.AddDate(0, 0, 3)

	if r.cacheKey(a) == r.cacheKey(b) {
		t.Fatalf("same key for different check-out dates: %s", r.cacheKey(a))
	}

	c := researchParams()
	if r.cacheKey(a) != r.cacheKey(c) {
		t.Fatalf("identical trips produced different keys: %s vs %s", r.cacheKey(a), r.cacheKey(c))
	}
}
