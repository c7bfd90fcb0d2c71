package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/safar-labs/safar/config"
)

// Listing is one live hotel offer from the market-data provider.
type Listing struct {
	Name          string   `json:"name"`
	PricePerNight float64  `json:"price_per_night"`
	Rating        float64  `json:"rating"`
	Location      string   `json:"location"`
	Amenities     []string `json:"amenities,omitempty"`
}

// Client searches live hotel listings for a destination and date window.
// Implementations must never surface provider errors as panics; callers treat
// any error as "no listings".
type Client interface {
	SearchHotels(ctx context.Context, destination string, checkIn, checkOut time.Time, adults int) ([]Listing, error)
}

// SerpAPI queries the SerpApi google_hotels engine.
type SerpAPI struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

// New builds a market client from config. Absence of credentials yields a
// disabled client that always returns empty results.
func New(cfg config.SerpAPIConfig) Client {
	if cfg.APIKey == "" {
		return Disabled{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://serpapi.com/search"
	}
	return &SerpAPI{apiKey: cfg.APIKey, endpoint: endpoint, http: &http.Client{Timeout: timeout}}
}

// Disabled is a market client without credentials.
type Disabled struct{}

func (Disabled) SearchHotels(ctx context.Context, destination string, checkIn, checkOut time.Time, adults int) ([]Listing, error) {
	return nil, nil
}

func (s *SerpAPI) SearchHotels(ctx context.Context, destination string, checkIn, checkOut time.Time, adults int) ([]Listing, error) {
	// https://serpapi.com/google-hotels-api docs
	q := url.Values{}
	q.Set("engine", "google_hotels")
	q.Set("q", destination)
	q.Set("check_in_date", checkIn.Format("2006-01-02"))
	q.Set("check_out_date", checkOut.Format("2006-01-02"))
	q.Set("adults", strconv.Itoa(adults))
	q.Set("currency", "INR")
	q.Set("api_key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi returned status: %d", resp.StatusCode)
	}

	var raw struct {
		Properties []struct {
			Name         string `json:"name"`
			RatePerNight struct {
				ExtractedLowest float64 `json:"extracted_lowest"`
			} `json:"rate_per_night"`
			OverallRating float64  `json:"overall_rating"`
			Neighborhood  string   `json:"neighborhood"`
			Amenities     []string `json:"amenities"`
		} `json:"properties"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	out := make([]Listing, 0, len(raw.Properties))
	for _, p := range raw.Properties {
		if p.Name == "" {
			continue
		}
		out = append(out, Listing{
			Name:          p.Name,
			PricePerNight: p.RatePerNight.ExtractedLowest,
			Rating:        p.OverallRating,
			Location:      p.Neighborhood,
			Amenities:     p.Amenities,
		})
	}
	return out, nil
}
