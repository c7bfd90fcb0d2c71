package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/safar-labs/safar/internal/agent/telemetry"
)

var orchestratorTracer = otel.Tracer("safar/internal/agent")

// Orchestrator drives the five-step pipeline over a persisted AgentRun and
// owns the requirement-side bookkeeping around it.
type Orchestrator struct {
	store      Store
	supervisor *Supervisor
	research   *Research
	planner    *Planner
	pricer     *Pricer
	quality    *Quality
	quotes     *QuoteMapper
	telemetry  *telemetry.Telemetry
	provider   string
	model      string
	logger     *log.Logger
}

// NewOrchestrator wires the pipeline stages together. telemetry may be nil.
func NewOrchestrator(store Store, supervisor *Supervisor, research *Research, planner *Planner, pricer *Pricer, quality *Quality, quotes *QuoteMapper, tele *telemetry.Telemetry, provider, model string) *Orchestrator {
	return &Orchestrator{
		store:      store,
		supervisor: supervisor,
		research:   research,
		planner:    planner,
		pricer:     pricer,
		quality:    quality,
		quotes:     quotes,
		telemetry:  tele,
		provider:   provider,
		model:      model,
		logger:     log.New(log.Writer(), "[ORCHESTRATOR] ", log.LstdFlags),
	}
}

// StartRun executes the full pipeline for a requirement, synchronously, and
// returns the run in whatever terminal state it reached. A failed step is not
// an error from this method: the failure lives on the returned run. Errors are
// reserved for cases where no run could be (or remain) persisted, plus the
// duplicate-run guard (ErrRunInProgress).
func (o *Orchestrator) StartRun(ctx context.Context, requirementID, triggeredBy string) (run *AgentRun, err error) {
	ctx, span := orchestratorTracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("requirement.id", requirementID),
	))
	defer span.End()

	req, err := o.store.GetRequirement(ctx, requirementID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	runID := uuid.New().String()
	// Stamping the run id inside the claim keeps requirement-side writes to
	// one per run start.
	claimed, err := o.store.ClaimRequirement(ctx, req.ID, runID, started)
	if err != nil {
		return nil, fmt.Errorf("claiming requirement: %w", err)
	}
	if !claimed {
		return nil, ErrRunInProgress
	}

	run = &AgentRun{
		ID:            runID,
		RequirementID: req.ID,
		TriggeredBy:   triggeredBy,
		Status:        RunRunning,
		Steps:         NewSteps(),
		QuoteStatus:   QuoteNone,
		Provider:      o.provider,
		Model:         o.model,
		CreatedAt:     started,
		UpdatedAt:     started,
	}
	span.SetAttributes(attribute.String("run.id", run.ID))

	if err := o.store.CreateAgentRun(ctx, run); err != nil {
		// Release the claim so the requirement is not wedged in IN_AGENT.
		if relErr := o.store.SetRequirementAgentStatus(ctx, req.ID, AgentFailed); relErr != nil {
			o.logger.Printf("releasing claim for %s: %v", req.ID, relErr)
		}
		return nil, fmt.Errorf("creating agent run: %w", err)
	}
	o.telemetry.RecordRunStart()

	// Whatever panics below, the run and the requirement must not stay stuck
	// in RUNNING/IN_AGENT.
	defer func() {
		if rec := recover(); rec != nil {
			panicErr := fmt.Errorf("internal error: %v", rec)
			o.logger.Printf("run %s panicked: %v", run.ID, rec)
			span.RecordError(panicErr)
			span.SetStatus(codes.Error, "panic")
			run.Status = RunFailed
			if run.Error == "" {
				run.Error = panicErr.Error()
			}
			run.UpdatedAt = time.Now()
			o.persist(ctx, run)
			if sErr := o.store.SetRequirementAgentStatus(ctx, req.ID, AgentFailed); sErr != nil {
				o.logger.Printf("marking requirement %s failed: %v", req.ID, sErr)
			}
			o.telemetry.RecordRunEnd(string(RunFailed), time.Since(started))
			err = nil
		}
	}()

	sup, ok := o.runSupervisor(ctx, run, req)
	if !ok {
		return o.finishFailed(ctx, run, req.ID, started), nil
	}
	research := o.runResearch(ctx, run, sup.Params)
	plan, ok := o.runPlanner(ctx, run, sup.Params, research)
	if !ok {
		return o.finishFailed(ctx, run, req.ID, started), nil
	}
	price := o.runPricer(ctx, run, sup, research, plan)
	quality := o.runQuality(ctx, run, sup, plan, price)

	final := quality.FinalItinerary
	run.FinalResult = &final
	run.Status = RunDone
	run.UpdatedAt = time.Now()
	o.persist(ctx, run)
	if err := o.store.SetRequirementAgentStatus(ctx, req.ID, AgentCompleted); err != nil {
		o.logger.Printf("marking requirement %s completed: %v", req.ID, err)
	}
	o.telemetry.RecordRunEnd(string(RunDone), time.Since(started))
	span.SetStatus(codes.Ok, "")

	o.materializeQuote(ctx, run, req)
	return run, nil
}

// GetRun returns a run by id.
func (o *Orchestrator) GetRun(ctx context.Context, id string) (AgentRun, error) {
	return o.store.GetAgentRun(ctx, id)
}

// LatestRun returns the most recent run for a requirement.
func (o *Orchestrator) LatestRun(ctx context.Context, requirementID string) (AgentRun, error) {
	return o.store.LatestAgentRun(ctx, requirementID)
}

func (o *Orchestrator) runSupervisor(ctx context.Context, run *AgentRun, req Requirement) (SupervisorResult, bool) {
	end := o.beginStep(ctx, run, StepSupervisor, fmt.Sprintf("normalizing requirement %s", req.ID))
	sup, err := o.supervisor.Normalize(req)
	if err != nil {
		end(ctx, run, nil, err)
		return SupervisorResult{}, false
	}
	end(ctx, run, &StepOutput{Supervisor: &sup}, nil,
		fmt.Sprintf("normalized: %s, %d days, %d pax, budget %.0f %s",
			sup.Params.Destination, sup.Params.DurationDays, sup.Params.Pax.Total(), sup.Params.Budget, sup.Params.Currency))
	return sup, true
}

func (o *Orchestrator) runResearch(ctx context.Context, run *AgentRun, params NormalizedParams) ResearchResult {
	end := o.beginStep(ctx, run, StepResearch, fmt.Sprintf("searching hotels in %s", params.Destination))
	res := o.research.Run(ctx, params)
	logs := append([]string{}, res.Logs...)
	logs = append(logs, fmt.Sprintf("%d candidates, confidence %.1f", len(res.Hotels), res.DataConfidence))
	end(ctx, run, &StepOutput{Research: &res}, nil, logs...)
	return res
}

func (o *Orchestrator) runPlanner(ctx context.Context, run *AgentRun, params NormalizedParams, research ResearchResult) (PlannerResult, bool) {
	end := o.beginStep(ctx, run, StepPlanner, "generating itinerary")
	plan, err := o.planner.Generate(ctx, params, research)
	if err != nil {
		end(ctx, run, nil, err)
		return PlannerResult{}, false
	}
	logs := []string{fmt.Sprintf("itinerary generated in %d attempt(s)", plan.Attempts)}
	if plan.PartialSuccess {
		logs = append(logs, "accepted with validation warnings")
	}
	end(ctx, run, &StepOutput{Planner: &plan}, nil, logs...)
	return plan, true
}

func (o *Orchestrator) runPricer(ctx context.Context, run *AgentRun, sup SupervisorResult, research ResearchResult, plan PlannerResult) PriceResult {
	end := o.beginStep(ctx, run, StepPrice, "pricing itinerary")
	price := o.pricer.Price(sup, research, plan)
	logs := []string{fmt.Sprintf("net %.0f + margin %.0f = %.0f (budget fit: %t)",
		price.NetCost, price.MarginAmount, price.FinalCost, price.BudgetFit)}
	if price.AdjustedHotel != nil {
		logs = append(logs, fmt.Sprintf("hotel substituted: %s -> %s", price.OriginalHotel, *price.AdjustedHotel))
	}
	end(ctx, run, &StepOutput{Price: &price}, nil, logs...)
	return price
}

func (o *Orchestrator) runQuality(ctx context.Context, run *AgentRun, sup SupervisorResult, plan PlannerResult, price PriceResult) QualityResult {
	end := o.beginStep(ctx, run, StepQuality, "inspecting itinerary")
	quality := o.quality.Inspect(sup, plan, price)
	logs := []string{fmt.Sprintf("quality score %d, %d/%d checks passed",
		quality.QualityScore, len(quality.PassedChecks), len(quality.PassedChecks)+len(quality.FailedChecks))}
	if quality.AutoFixed {
		logs = append(logs, fmt.Sprintf("auto-fixed: %v", quality.Fixes))
	}
	end(ctx, run, &StepOutput{Quality: &quality}, nil, logs...)
	return quality
}

// beginStep marks a step RUNNING, persists, opens a span and returns the
// closure that records the terminal transition. The closure takes either an
// output (DONE) or an error (FAILED), never both.
func (o *Orchestrator) beginStep(ctx context.Context, run *AgentRun, name StepName, startLog string) func(context.Context, *AgentRun, *StepOutput, error, ...string) {
	_, span := orchestratorTracer.Start(ctx, "agent.step."+string(name))
	stepStart := time.Now()
	if err := run.StartStep(name, stepStart, startLog); err != nil {
		// Transition bugs are programmer errors; the recover guard turns the
		// panic into a failed run instead of a stuck one.
		panic(err)
	}
	run.UpdatedAt = stepStart
	o.persist(ctx, run)

	return func(ctx context.Context, run *AgentRun, out *StepOutput, stepErr error, logs ...string) {
		defer span.End()
		now := time.Now()
		if stepErr != nil {
			span.RecordError(stepErr)
			span.SetStatus(codes.Error, stepErr.Error())
			if err := run.FailStep(name, now, stepErr); err != nil {
				panic(err)
			}
			o.telemetry.RecordStep(string(name), string(StepFailed), now.Sub(stepStart))
		} else {
			if err := run.CompleteStep(name, now, out, logs...); err != nil {
				panic(err)
			}
			o.telemetry.RecordStep(string(name), string(StepDone), now.Sub(stepStart))
		}
		run.UpdatedAt = now
		o.persist(ctx, run)
	}
}

// finishFailed closes out the requirement bookkeeping after a failed step. The
// step itself already moved the run to FAILED and persisted it.
func (o *Orchestrator) finishFailed(ctx context.Context, run *AgentRun, requirementID string, started time.Time) *AgentRun {
	if err := o.store.SetRequirementAgentStatus(ctx, requirementID, AgentFailed); err != nil {
		o.logger.Printf("marking requirement %s failed: %v", requirementID, err)
	}
	o.telemetry.RecordRunEnd(string(RunFailed), time.Since(started))
	o.logger.Printf("run %s failed: %s", run.ID, run.Error)
	return run
}

// materializeQuote turns a successful run into a sellable quote. Quote
// problems never fail the run; they only flip its quote status.
func (o *Orchestrator) materializeQuote(ctx context.Context, run *AgentRun, req Requirement) {
	quote, err := o.quotes.Build(run, req)
	if err == nil {
		err = o.store.CreateQuote(ctx, &quote)
	}
	if err != nil {
		o.logger.Printf("quote for run %s: %v", run.ID, err)
		run.QuoteStatus = QuoteFailed
		run.UpdatedAt = time.Now()
		o.persist(ctx, run)
		o.telemetry.RecordQuote(string(QuoteFailed))
		return
	}

	run.QuoteID = quote.ID
	run.QuoteStatus = QuoteCreated
	run.UpdatedAt = time.Now()
	o.persist(ctx, run)
	if err := o.store.AttachQuote(ctx, run.ID, quote.ID); err != nil {
		o.logger.Printf("attaching quote %s to run %s: %v", quote.ID, run.ID, err)
	}
	if err := o.store.MarkRequirementQuoted(ctx, req.ID, quote.ID); err != nil {
		o.logger.Printf("marking requirement %s quoted: %v", req.ID, err)
	}
	o.telemetry.RecordQuote(string(QuoteCreated))
}

// persist saves the run and logs on failure. Step execution keeps going on a
// save error; the in-memory run stays authoritative and later saves retry the
// full row.
func (o *Orchestrator) persist(ctx context.Context, run *AgentRun) {
	if err := o.store.SaveAgentRun(ctx, run); err != nil {
		o.logger.Printf("saving run %s: %v", run.ID, err)
	}
}
