package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/safar-labs/safar/internal/agent/telemetry"
)

// memStore is an in-memory Store for pipeline tests.
type memStore struct {
	mu           sync.Mutex
	requirements map[string]*Requirement
	runs         map[string]*AgentRun
	quotes       map[string]*Quote
	saveCalls    int
	quoteErr     error
}

func newMemStore(reqs ...Requirement) *memStore {
	s := &memStore{
		requirements: map[string]*Requirement{},
		runs:         map[string]*AgentRun{},
		quotes:       map[string]*Quote{},
	}
	for i := range reqs {
		r := reqs[i]
		s.requirements[r.ID] = &r
	}
	return s
}

func (s *memStore) GetRequirement(_ context.Context, id string) (Requirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requirements[id]
	if !ok {
		return Requirement{}, ErrRequirementNotFound
	}
	return *r, nil
}

func (s *memStore) ClaimRequirement(_ context.Context, id, runID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requirements[id]
	if !ok {
		return false, ErrRequirementNotFound
	}
	if r.AgentStatus == AgentInAgent {
		return false, nil
	}
	r.AgentStatus = AgentInAgent
	r.LastAgentRunID = runID
	r.LastAgentRunAt = &at
	return true, nil
}

func (s *memStore) SetRequirementAgentStatus(_ context.Context, id string, status AgentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.requirements[id]; ok {
		r.AgentStatus = status
	}
	return nil
}

func (s *memStore) MarkRequirementQuoted(_ context.Context, id, quoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.requirements[id]; ok {
		r.LatestQuoteID = quoteID
		r.Status = RequirementQuotesReady
	}
	return nil
}

func (s *memStore) CreateAgentRun(_ context.Context, run *AgentRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *memStore) SaveAgentRun(_ context.Context, run *AgentRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *memStore) GetAgentRun(_ context.Context, id string) (AgentRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return AgentRun{}, ErrRunNotFound
	}
	return *r, nil
}

func (s *memStore) LatestAgentRun(_ context.Context, requirementID string) (AgentRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *AgentRun
	for _, r := range s.runs {
		if r.RequirementID != requirementID {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return AgentRun{}, ErrRunNotFound
	}
	return *latest, nil
}

func (s *memStore) AttachQuote(_ context.Context, runID, quoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[runID]; ok && (r.QuoteID == "" || r.QuoteID == quoteID) {
		r.QuoteID = quoteID
	}
	return nil
}

func (s *memStore) CreateQuote(_ context.Context, q *Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quoteErr != nil {
		return s.quoteErr
	}
	cp := *q
	s.quotes[q.ID] = &cp
	return nil
}

func newTestOrchestrator(store Store, llm *scriptedProvider, inv PartnerInventory) *Orchestrator {
	research := NewResearch(inv, &fakeMarket{}, nil, 0, 10)
	planner := NewPlanner(llm, RetryPolicy{MaxAttempts: 2})
	tele := telemetry.New(prometheus.NewRegistry())
	return NewOrchestrator(store, NewSupervisor(), research, planner, NewPricer(12, 5000), NewQuality(), NewQuoteMapper(), tele, "openai", "test-model")
}

func TestStartRun_HappyPathProducesQuote(t *testing.T) {
	store := newMemStore(validRequirement())
	inv := &fakeInventory{hotels: []PartnerHotel{
		partnerHotel("Sea Breeze", 4000),
		partnerHotel("Palm Grove", 3000),
		partnerHotel("Sunset Bay", 5000),
	}}
	llm := &scriptedProvider{responses: []string{goodItineraryJSON(4)}}

	run, err := newTestOrchestrator(store, llm, inv).StartRun(context.Background(), "req-1", "agent@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != RunDone {
		t.Fatalf("expected DONE, got %s (error %q)", run.Status, run.Error)
	}
	for _, step := range run.Steps.Ordered() {
		if step.Status != StepDone {
			t.Fatalf("expected step %s DONE, got %s", step.Name, step.Status)
		}
		if step.StartedAt == nil || step.EndedAt == nil {
			t.Fatalf("step %s missing timestamps", step.Name)
		}
	}
	if run.FinalResult == nil || len(run.FinalResult.Days) != 4 {
		t.Fatalf("expected final itinerary with 4 days, got %+v", run.FinalResult)
	}
	if run.QuoteStatus != QuoteCreated || run.QuoteID == "" {
		t.Fatalf("expected quote created, got %s %q", run.QuoteStatus, run.QuoteID)
	}

	req, _ := store.GetRequirement(context.Background(), "req-1")
	if req.AgentStatus != AgentCompleted {
		t.Fatalf("expected requirement COMPLETED, got %s", req.AgentStatus)
	}
	if req.LastAgentRunID != run.ID {
		t.Fatalf("expected run %s stamped on requirement at claim time, got %q", run.ID, req.LastAgentRunID)
	}
	if req.Status != RequirementQuotesReady || req.LatestQuoteID != run.QuoteID {
		t.Fatalf("expected requirement quoted, got %+v", req)
	}
	if len(store.quotes) != 1 {
		t.Fatalf("expected 1 persisted quote, got %d", len(store.quotes))
	}
}

func TestStartRun_UnknownRequirement(t *testing.T) {
	store := newMemStore()
	llm := &scriptedProvider{}
	_, err := newTestOrchestrator(store, llm, &fakeInventory{}).StartRun(context.Background(), "missing", "agent@example.com")
	if !errors.Is(err, ErrRequirementNotFound) {
		t.Fatalf("expected ErrRequirementNotFound, got %v", err)
	}
	if len(store.runs) != 0 {
		t.Fatal("no run record may be created for a missing requirement")
	}
}

func TestStartRun_DuplicateRunConflict(t *testing.T) {
	req := validRequirement()
	req.AgentStatus = AgentInAgent
	store := newMemStore(req)

	_, err := newTestOrchestrator(store, &scriptedProvider{}, &fakeInventory{}).StartRun(context.Background(), "req-1", "agent@example.com")
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if len(store.runs) != 0 {
		t.Fatal("lost claim must not create a run record")
	}
}

func TestStartRun_ValidationFailureStopsAtSupervisor(t *testing.T) {
	req := validRequirement()
	req.Budget = 0
	store := newMemStore(req)

	run, err := newTestOrchestrator(store, &scriptedProvider{}, &fakeInventory{}).StartRun(context.Background(), "req-1", "agent@example.com")
	if err != nil {
		t.Fatalf("step failures surface on the run, not as errors: %v", err)
	}
	if run.Status != RunFailed {
		t.Fatalf("expected FAILED, got %s", run.Status)
	}
	if run.Steps.Supervisor.Status != StepFailed {
		t.Fatalf("expected supervisor FAILED, got %s", run.Steps.Supervisor.Status)
	}
	for _, name := range []StepName{StepResearch, StepPlanner, StepPrice, StepQuality} {
		if got := run.Steps.Get(name).Status; got != StepPending {
			t.Fatalf("expected %s untouched, got %s", name, got)
		}
	}
	if run.Error != "Supervisor failed: budget must be a finite number greater than zero" {
		t.Fatalf("unexpected run error %q", run.Error)
	}

	req2, _ := store.GetRequirement(context.Background(), "req-1")
	if req2.AgentStatus != AgentFailed {
		t.Fatalf("expected requirement FAILED, got %s", req2.AgentStatus)
	}
}

func TestStartRun_PlannerFailureRecordsStepError(t *testing.T) {
	store := newMemStore(validRequirement())
	llm := &scriptedProvider{responses: []string{"garbage", "more garbage"}}

	run, err := newTestOrchestrator(store, llm, &fakeInventory{}).StartRun(context.Background(), "req-1", "agent@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != RunFailed {
		t.Fatalf("expected FAILED, got %s", run.Status)
	}
	if run.Steps.Supervisor.Status != StepDone || run.Steps.Research.Status != StepDone {
		t.Fatal("earlier steps must stay DONE")
	}
	if run.Steps.Planner.Status != StepFailed {
		t.Fatalf("expected planner FAILED, got %s", run.Steps.Planner.Status)
	}
	if run.Steps.Price.Status != StepPending || run.Steps.Quality.Status != StepPending {
		t.Fatal("later steps must stay PENDING")
	}
	if run.QuoteStatus != QuoteNone {
		t.Fatalf("failed run must not attempt a quote, got %s", run.QuoteStatus)
	}

	// the persisted copy matches the returned one
	saved, err := store.GetAgentRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("run not persisted: %v", err)
	}
	if saved.Status != RunFailed || saved.Error == "" {
		t.Fatalf("persisted run out of date: %+v", saved)
	}
}

func TestStartRun_QuoteFailureKeepsRunDone(t *testing.T) {
	store := newMemStore(validRequirement())
	store.quoteErr = errors.New("quotes table unavailable")
	inv := &fakeInventory{hotels: []PartnerHotel{partnerHotel("Sea Breeze", 4000)}}
	llm := &scriptedProvider{responses: []string{goodItineraryJSON(4)}}

	run, err := newTestOrchestrator(store, llm, inv).StartRun(context.Background(), "req-1", "agent@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != RunDone {
		t.Fatalf("quote failure must not fail the run, got %s", run.Status)
	}
	if run.QuoteStatus != QuoteFailed {
		t.Fatalf("expected quote status FAILED, got %s", run.QuoteStatus)
	}
	req, _ := store.GetRequirement(context.Background(), "req-1")
	if req.AgentStatus != AgentCompleted {
		t.Fatalf("requirement must stay COMPLETED, got %s", req.AgentStatus)
	}
	if req.LatestQuoteID != "" {
		t.Fatal("failed quote must not be linked on the requirement")
	}
}

func TestStartRun_RunIsRetryableAfterFailure(t *testing.T) {
	store := newMemStore(validRequirement())
	inv := &fakeInventory{hotels: []PartnerHotel{partnerHotel("Sea Breeze", 4000)}}

	bad := &scriptedProvider{responses: []string{"garbage", "garbage"}}
	run1, err := newTestOrchestrator(store, bad, inv).StartRun(context.Background(), "req-1", "agent@example.com")
	if err != nil || run1.Status != RunFailed {
		t.Fatalf("expected failed first run, got %v %v", run1, err)
	}

	good := &scriptedProvider{responses: []string{goodItineraryJSON(4)}}
	run2, err := newTestOrchestrator(store, good, inv).StartRun(context.Background(), "req-1", "agent@example.com")
	if err != nil {
		t.Fatalf("retry after failure must be allowed: %v", err)
	}
	if run2.Status != RunDone {
		t.Fatalf("expected second run DONE, got %s", run2.Status)
	}
	if run2.ID == run1.ID {
		t.Fatal("retry must create a fresh run record")
	}

	latest, err := store.LatestAgentRun(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("latest run lookup: %v", err)
	}
	if latest.ID != run2.ID {
		t.Fatalf("expected latest run %s, got %s", run2.ID, latest.ID)
	}
}
