package agent

import (
	"context"
	"fmt"
	"time"
)

// StepName identifies one of the five fixed pipeline stages.
type StepName string

const (
	StepSupervisor StepName = "SUPERVISOR"
	StepResearch   StepName = "RESEARCH"
	StepPlanner    StepName = "PLANNER"
	StepPrice      StepName = "PRICE"
	StepQuality    StepName = "QUALITY"
)

// StepOrder returns the canonical execution order. Steps are addressed by
// name, never renumbered.
func StepOrder() [5]StepName {
	return [5]StepName{StepSupervisor, StepResearch, StepPlanner, StepPrice, StepQuality}
}

// Display renders the step name the way operators see it in run errors,
// e.g. "Planner failed: ...".
func (n StepName) Display() string {
	switch n {
	case StepSupervisor:
		return "Supervisor"
	case StepResearch:
		return "Research"
	case StepPlanner:
		return "Planner"
	case StepPrice:
		return "Price"
	case StepQuality:
		return "Quality"
	}
	return string(n)
}

// StepStatus tracks one step's lifecycle: PENDING -> RUNNING -> {DONE|FAILED}.
type StepStatus string

const (
	StepPending StepStatus = "PENDING"
	StepRunning StepStatus = "RUNNING"
	StepDone    StepStatus = "DONE"
	StepFailed  StepStatus = "FAILED"
)

// RunStatus tracks the overall run.
type RunStatus string

const (
	RunPending RunStatus = "PENDING"
	RunRunning RunStatus = "RUNNING"
	RunDone    RunStatus = "DONE"
	RunFailed  RunStatus = "FAILED"
)

// RunQuoteStatus reports the post-completion quote materialization phase so
// callers can tell "pipeline succeeded, quote failed" apart without parsing logs.
type RunQuoteStatus string

const (
	QuoteNone    RunQuoteStatus = "NONE"
	QuoteCreated RunQuoteStatus = "CREATED"
	QuoteFailed  RunQuoteStatus = "FAILED"
)

// AgentStatus is the requirement-side view of pipeline activity.
type AgentStatus string

const (
	AgentNew       AgentStatus = "NEW"
	AgentInAgent   AgentStatus = "IN_AGENT"
	AgentCompleted AgentStatus = "COMPLETED"
	AgentFailed    AgentStatus = "FAILED"
)

// RequirementStatus is the commercial lifecycle of a trip request.
type RequirementStatus string

const (
	RequirementNew         RequirementStatus = "NEW"
	RequirementQuotesReady RequirementStatus = "QUOTES_READY"
)

// QuoteState is the sellable quote's own lifecycle.
type QuoteState string

const (
	QuoteDraft      QuoteState = "DRAFT"
	QuoteReady      QuoteState = "READY"
	QuoteSentToUser QuoteState = "SENT_TO_USER"
)

// Contact holds the traveler's required contact details.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Requirement is a traveler's submitted trip request.
type Requirement struct {
	ID             string            `json:"id"`
	Destination    string            `json:"destination"`
	TripType       string            `json:"trip_type"`
	Budget         float64           `json:"budget"`
	StartDate      time.Time         `json:"start_date"`
	DurationDays   int               `json:"duration_days"`
	Adults         int               `json:"adults"`
	Children       int               `json:"children"`
	HotelStar      int               `json:"hotel_star,omitempty"` // 0 = unset
	Preferences    []string          `json:"preferences,omitempty"`
	Contact        Contact           `json:"contact"`
	Status         RequirementStatus `json:"status"`
	AgentStatus    AgentStatus       `json:"agent_status"`
	LastAgentRunID string            `json:"last_agent_run_id,omitempty"`
	LastAgentRunAt *time.Time        `json:"last_agent_run_at,omitempty"`
	LatestQuoteID  string            `json:"latest_quote_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Pax is the party composition.
type Pax struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
}

// Total returns the head count used for per-head pricing.
func (p Pax) Total() int { return p.Adults + p.Children }

// NormalizedParams is the strict parameter set the supervisor derives from a
// raw requirement.
type NormalizedParams struct {
	Destination  string    `json:"destination"`
	TripType     string    `json:"trip_type"`
	Budget       float64   `json:"budget"`
	Currency     string    `json:"currency"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	DurationDays int       `json:"duration_days"`
	Pax          Pax       `json:"pax"`
	HotelStar    int       `json:"hotel_star,omitempty"` // 0 = unset
	Preferences  []string  `json:"preferences,omitempty"`
}

// SupervisorResult is the normalizer's output.
type SupervisorResult struct {
	Params   NormalizedParams `json:"params"`
	Warnings []string         `json:"warnings,omitempty"`
}

// HotelSource tags where a hotel candidate came from.
type HotelSource string

const (
	SourcePartner HotelSource = "PARTNER"
	SourceSerpAPI HotelSource = "SERPAPI"
)

// HotelOption is the common hotel shape research normalizes every provider into.
type HotelOption struct {
	Name          string      `json:"name"`
	PricePerNight float64     `json:"price_per_night"`
	Source        HotelSource `json:"source"`
	PartnerID     string      `json:"partner_id,omitempty"`
	PartnerName   string      `json:"partner_name,omitempty"`
	Rating        float64     `json:"rating,omitempty"`
	Location      string      `json:"location,omitempty"`
	Amenities     []string    `json:"amenities,omitempty"`
}

// PriceRange spans the final candidate prices.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ResearchResult is the research adapter's output.
type ResearchResult struct {
	Hotels         []HotelOption `json:"hotels"`
	PriceRange     PriceRange    `json:"price_range"`
	Suggestions    []string      `json:"suggestions,omitempty"`
	DataConfidence float64       `json:"data_confidence"`
	Sources        []string      `json:"sources,omitempty"`
	Logs           []string      `json:"logs,omitempty"`
}

// ItineraryActivity is one scheduled activity within a day.
type ItineraryActivity struct {
	Time     string  `json:"time"`
	Activity string  `json:"activity"`
	Cost     float64 `json:"cost"`
}

// ItineraryDay is one day of the generated plan.
type ItineraryDay struct {
	DayNumber  int                 `json:"dayNumber"`
	Date       string              `json:"date"`
	Theme      string              `json:"theme"`
	Activities []ItineraryActivity `json:"activities"`
	Meals      string              `json:"meals,omitempty"`
	DailyCost  float64             `json:"dailyCost"`
}

// SelectedHotel is the itinerary's chosen hotel.
type SelectedHotel struct {
	Name          string  `json:"name"`
	PricePerNight float64 `json:"pricePerNight"`
	TotalCost     float64 `json:"totalCost"`
}

// Itinerary is the structured plan the generative provider must return. Field
// names mirror the prompt contract exactly.
type Itinerary struct {
	Summary            string             `json:"summary"`
	SelectedHotel      SelectedHotel      `json:"selectedHotel"`
	Days               []ItineraryDay     `json:"days"`
	TotalEstimatedCost float64            `json:"totalEstimatedCost"`
	CostBreakdown      map[string]float64 `json:"costBreakdown,omitempty"`
	Highlights         []string           `json:"highlights,omitempty"`
	Notes              []string           `json:"notes,omitempty"`
}

// PlannerResult is the itinerary generator's output.
type PlannerResult struct {
	Itinerary      Itinerary `json:"itinerary"`
	Warnings       []string  `json:"warnings,omitempty"`
	Attempts       int       `json:"attempts"`
	PartialSuccess bool      `json:"partial_success,omitempty"`
}

// CostBreakdown splits a priced trip into its five buckets.
type CostBreakdown struct {
	Hotel      float64 `json:"hotel"`
	Activities float64 `json:"activities"`
	Transport  float64 `json:"transport"`
	Meals      float64 `json:"meals"`
	Misc       float64 `json:"misc"`
}

// PriceResult is the pricing engine's output.
type PriceResult struct {
	NetCost       float64       `json:"net_cost"`
	MarginPercent float64       `json:"margin_percent"`
	MarginAmount  float64       `json:"margin_amount"`
	FinalCost     float64       `json:"final_cost"`
	PerHeadCost   float64       `json:"per_head_cost"`
	BudgetFit     bool          `json:"budget_fit"`
	OriginalHotel string        `json:"original_hotel"`
	AdjustedHotel *string       `json:"adjusted_hotel"` // nil unless substitution happened
	SelectedHotel HotelOption   `json:"selected_hotel"`
	Breakdown     CostBreakdown `json:"breakdown"`
	Budget        float64       `json:"budget"`
	Savings       float64       `json:"savings"`
}

// QualityResult is the quality gate's output.
type QualityResult struct {
	QualityScore   int       `json:"quality_score"`
	Issues         []string  `json:"issues,omitempty"`
	Fixes          []string  `json:"fixes,omitempty"`
	PassedChecks   []string  `json:"passed_checks"`
	FailedChecks   []string  `json:"failed_checks,omitempty"`
	FinalItinerary Itinerary `json:"final_itinerary"`
	AutoFixed      bool      `json:"auto_fixed"`
}

// StepOutput is a tagged union: exactly one field is set, matching the step
// that produced it. The orchestrator treats it as opaque.
type StepOutput struct {
	Supervisor *SupervisorResult `json:"supervisor,omitempty"`
	Research   *ResearchResult   `json:"research,omitempty"`
	Planner    *PlannerResult    `json:"planner,omitempty"`
	Price      *PriceResult      `json:"price,omitempty"`
	Quality    *QualityResult    `json:"quality,omitempty"`
}

// StepRecord is one step's persisted state within a run.
type StepRecord struct {
	Name      StepName    `json:"name"`
	Status    StepStatus  `json:"status"`
	StartedAt *time.Time  `json:"started_at,omitempty"`
	EndedAt   *time.Time  `json:"ended_at,omitempty"`
	Logs      []string    `json:"logs,omitempty"`
	Output    *StepOutput `json:"output,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Steps is the fixed ordered record of the five pipeline steps. Fields are
// addressed by name; there is no index arithmetic anywhere.
type Steps struct {
	Supervisor StepRecord `json:"supervisor"`
	Research   StepRecord `json:"research"`
	Planner    StepRecord `json:"planner"`
	Price      StepRecord `json:"price"`
	Quality    StepRecord `json:"quality"`
}

// NewSteps returns all five steps in PENDING state.
func NewSteps() Steps {
	return Steps{
		Supervisor: StepRecord{Name: StepSupervisor, Status: StepPending},
		Research:   StepRecord{Name: StepResearch, Status: StepPending},
		Planner:    StepRecord{Name: StepPlanner, Status: StepPending},
		Price:      StepRecord{Name: StepPrice, Status: StepPending},
		Quality:    StepRecord{Name: StepQuality, Status: StepPending},
	}
}

// Get returns the step record for a name, or nil for an unknown name.
func (s *Steps) Get(name StepName) *StepRecord {
	switch name {
	case StepSupervisor:
		return &s.Supervisor
	case StepResearch:
		return &s.Research
	case StepPlanner:
		return &s.Planner
	case StepPrice:
		return &s.Price
	case StepQuality:
		return &s.Quality
	}
	return nil
}

// Ordered returns the step records in canonical execution order.
func (s *Steps) Ordered() []*StepRecord {
	return []*StepRecord{&s.Supervisor, &s.Research, &s.Planner, &s.Price, &s.Quality}
}

// AgentRun is one execution attempt of the pipeline for a requirement.
type AgentRun struct {
	ID            string         `json:"id"`
	RequirementID string         `json:"requirement_id"`
	TriggeredBy   string         `json:"triggered_by"`
	Status        RunStatus      `json:"status"`
	Steps         Steps          `json:"steps"`
	FinalResult   *Itinerary     `json:"final_result,omitempty"`
	Error         string         `json:"error,omitempty"`
	QuoteID       string         `json:"quote_id,omitempty"`
	QuoteStatus   RunQuoteStatus `json:"quote_status"`
	Provider      string         `json:"provider"`
	Model         string         `json:"model"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// advance is the single writer over step state. It enforces the strict
// PENDING -> RUNNING -> {DONE|FAILED} transition order; no step is revisited
// within one run.
func (r *AgentRun) advance(name StepName, to StepStatus, at time.Time) (*StepRecord, error) {
	step := r.Steps.Get(name)
	if step == nil {
		return nil, fmt.Errorf("unknown step: %s", name)
	}
	switch {
	case to == StepRunning && step.Status == StepPending:
		step.Status = StepRunning
		step.StartedAt = &at
	case (to == StepDone || to == StepFailed) && step.Status == StepRunning:
		step.Status = to
		step.EndedAt = &at
	default:
		return nil, fmt.Errorf("invalid step transition %s: %s -> %s", name, step.Status, to)
	}
	return step, nil
}

// StartStep marks a pending step RUNNING and appends a start log line.
func (r *AgentRun) StartStep(name StepName, at time.Time, logs ...string) error {
	step, err := r.advance(name, StepRunning, at)
	if err != nil {
		return err
	}
	step.Logs = append(step.Logs, logs...)
	return nil
}

// CompleteStep marks a running step DONE with its typed output and summary logs.
func (r *AgentRun) CompleteStep(name StepName, at time.Time, out *StepOutput, logs ...string) error {
	step, err := r.advance(name, StepDone, at)
	if err != nil {
		return err
	}
	step.Output = out
	step.Logs = append(step.Logs, logs...)
	return nil
}

// FailStep marks a running step FAILED and mirrors the error onto the run with
// a step-name prefix so operators can see exactly which stage failed.
func (r *AgentRun) FailStep(name StepName, at time.Time, stepErr error) error {
	step, err := r.advance(name, StepFailed, at)
	if err != nil {
		return err
	}
	step.Error = stepErr.Error()
	r.Status = RunFailed
	r.Error = fmt.Sprintf("%s failed: %v", name.Display(), stepErr)
	return nil
}

// CompletedSteps lists the names of steps that reached DONE, in order.
func (r *AgentRun) CompletedSteps() []StepName {
	var out []StepName
	for _, s := range r.Steps.Ordered() {
		if s.Status == StepDone {
			out = append(out, s.Name)
		}
	}
	return out
}

// QuoteLineItem is one sellable line within a quote section.
type QuoteLineItem struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Unit      string  `json:"unit"` // night, day, activity
	Total     float64 `json:"total"`
}

// QuoteSections groups a quote's line items.
type QuoteSections struct {
	Hotels     []QuoteLineItem `json:"hotels,omitempty"`
	Transport  []QuoteLineItem `json:"transport,omitempty"`
	Activities []QuoteLineItem `json:"activities,omitempty"`
}

// QuoteCosts is the priced summary on a quote.
type QuoteCosts struct {
	Net           float64 `json:"net"`
	MarginPercent float64 `json:"margin_percent"`
	Final         float64 `json:"final"`
	PerHead       float64 `json:"per_head"`
}

// Quote is a priced, sellable trip proposal.
type Quote struct {
	ID            string        `json:"id"`
	RequirementID string        `json:"requirement_id"`
	PartnerID     string        `json:"partner_id,omitempty"`
	AgentID       string        `json:"agent_id,omitempty"`
	Title         string        `json:"title"`
	Sections      QuoteSections `json:"sections"`
	Costs         QuoteCosts    `json:"costs"`
	Status        QuoteState    `json:"status"`
	ItineraryText string        `json:"itinerary_text,omitempty"`
	Itinerary     *Itinerary    `json:"itinerary,omitempty"`
	AgentRunID    string        `json:"agent_run_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// RoomType is one bookable room category on a partner hotel.
type RoomType struct {
	Type          string  `json:"type"`
	PricePerNight float64 `json:"price_per_night"`
}

// PartnerHotel is partner inventory consumed read-only by research.
type PartnerHotel struct {
	ID          string     `json:"id"`
	PartnerID   string     `json:"partner_id"`
	PartnerName string     `json:"partner_name"`
	Name        string     `json:"name"`
	Destination string     `json:"destination"`
	Star        int        `json:"star"`
	Location    string     `json:"location,omitempty"`
	Amenities   []string   `json:"amenities,omitempty"`
	RoomTypes   []RoomType `json:"room_types"`
	Rating      float64    `json:"rating,omitempty"`
}

// CheapestRate returns the lowest listed room-type price, or 0 when none.
func (h PartnerHotel) CheapestRate() float64 {
	var min float64
	for i, rt := range h.RoomTypes {
		if i == 0 || rt.PricePerNight < min {
			min = rt.PricePerNight
		}
	}
	return min
}

// Store is the persistence surface the orchestrator depends on. The Postgres
// implementation lives in internal/store.
type Store interface {
	GetRequirement(ctx context.Context, id string) (Requirement, error)
	// ClaimRequirement atomically sets agent_status=IN_AGENT and stamps the
	// new run id, only when the requirement is not already IN_AGENT; returns
	// false on a lost claim (duplicate-run guard).
	ClaimRequirement(ctx context.Context, id, runID string, at time.Time) (bool, error)
	SetRequirementAgentStatus(ctx context.Context, id string, status AgentStatus) error
	MarkRequirementQuoted(ctx context.Context, id, quoteID string) error

	CreateAgentRun(ctx context.Context, run *AgentRun) error
	SaveAgentRun(ctx context.Context, run *AgentRun) error
	GetAgentRun(ctx context.Context, id string) (AgentRun, error)
	LatestAgentRun(ctx context.Context, requirementID string) (AgentRun, error)
	AttachQuote(ctx context.Context, runID, quoteID string) error

	CreateQuote(ctx context.Context, q *Quote) error
}

// PartnerInventory is the read-only partner hotel lookup research depends on.
type PartnerInventory interface {
	HotelsByDestination(ctx context.Context, destination string, star int) ([]PartnerHotel, error)
}
