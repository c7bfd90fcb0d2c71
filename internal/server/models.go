package server

import "github.com/safar-labs/safar/internal/agent"

// HTTPError is the uniform JSON error envelope.
type HTTPError struct {
	Error string `json:"error"`
}

type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// IntakeRequest is the public trip-request form payload.
type IntakeRequest struct {
	Destination  string         `json:"destination"`
	TripType     string         `json:"trip_type"`
	Budget       float64        `json:"budget"`
	StartDate    string         `json:"start_date"` // YYYY-MM-DD
	DurationDays int            `json:"duration_days"`
	Adults       int            `json:"adults"`
	Children     int            `json:"children"`
	HotelStar    int            `json:"hotel_star"`
	Preferences  []string       `json:"preferences"`
	Contact      ContactPayload `json:"contact"`
}

type ContactPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type IntakeResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AgentStatus string `json:"agent_status"`
}

// StartRunRequest optionally names who triggered the run.
type StartRunRequest struct {
	TriggeredBy string `json:"triggered_by"`
}

// StartRunResponse summarizes a finished run for the start endpoint. The full
// snapshot stays behind GET /agent-runs/{id}.
type StartRunResponse struct {
	AgentRunID     string   `json:"agent_run_id"`
	Status         string   `json:"status"`
	StepsCompleted []string `json:"steps_completed"`
	QuoteID        *string  `json:"quote_id"`
	QuoteStatus    string   `json:"quote_status"`
	FinalCost      float64  `json:"final_cost"`
	BudgetFit      bool     `json:"budget_fit"`
	QualityScore   int      `json:"quality_score"`
	Error          string   `json:"error,omitempty"`
}

func newStartRunResponse(run *agent.AgentRun) StartRunResponse {
	resp := StartRunResponse{
		AgentRunID:  run.ID,
		Status:      string(run.Status),
		QuoteStatus: string(run.QuoteStatus),
	}
	if run.QuoteID != "" {
		id := run.QuoteID
		resp.QuoteID = &id
	}
	for _, step := range run.Steps.Ordered() {
		if step.Status == agent.StepDone {
			resp.StepsCompleted = append(resp.StepsCompleted, string(step.Name))
		}
	}
	if out := run.Steps.Price.Output; out != nil && out.Price != nil {
		resp.FinalCost = out.Price.FinalCost
		resp.BudgetFit = out.Price.BudgetFit
	}
	if out := run.Steps.Quality.Output; out != nil && out.Quality != nil {
		resp.QualityScore = out.Quality.QualityScore
	}
	resp.Error = run.Error
	return resp
}

// QuoteCreateRequest is the manual curation payload: an agent building a
// quote by hand rather than from a pipeline run.
type QuoteCreateRequest struct {
	RequirementID string              `json:"requirement_id"`
	Title         string              `json:"title"`
	PartnerID     string              `json:"partner_id"`
	Sections      agent.QuoteSections `json:"sections"`
	MarginPercent float64             `json:"margin_percent"`
	ItineraryText string              `json:"itinerary_text"`
}

// QuoteUpdateRequest carries the editable quote fields; nil means unchanged.
type QuoteUpdateRequest struct {
	Title         *string              `json:"title"`
	Status        *string              `json:"status"`
	ItineraryText *string              `json:"itinerary_text"`
	Sections      *agent.QuoteSections `json:"sections"`
	Costs         *agent.QuoteCosts    `json:"costs"`
}

// PartnerCreateRequest registers a supplier.
type PartnerCreateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// PartnerHotelRequest adds one property to a partner's inventory.
type PartnerHotelRequest struct {
	Name        string           `json:"name"`
	Destination string           `json:"destination"`
	Star        int              `json:"star"`
	Location    string           `json:"location"`
	Amenities   []string         `json:"amenities"`
	RoomTypes   []agent.RoomType `json:"room_types"`
	Rating      float64          `json:"rating"`
}

// PartnerTransportRequest adds one vehicle offering to a partner's catalog.
type PartnerTransportRequest struct {
	Mode        string  `json:"mode"`
	Destination string  `json:"destination"`
	PricePerDay float64 `json:"price_per_day"`
	Capacity    int     `json:"capacity"`
}

// PartnerActivityRequest adds one bookable activity to a partner's catalog.
type PartnerActivityRequest struct {
	Name          string  `json:"name"`
	Destination   string  `json:"destination"`
	Price         float64 `json:"price"`
	DurationHours float64 `json:"duration_hours"`
}

type createdResponse struct {
	ID string `json:"id"`
}
