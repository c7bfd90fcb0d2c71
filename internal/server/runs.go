package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/safar-labs/safar/internal/agent"
)

// runService is the pipeline surface the HTTP layer depends on.
type runService interface {
	StartRun(ctx context.Context, requirementID, triggeredBy string) (*agent.AgentRun, error)
	GetRun(ctx context.Context, id string) (agent.AgentRun, error)
	LatestRun(ctx context.Context, requirementID string) (agent.AgentRun, error)
}

type RunsHandler struct {
	Runs runService
}

func (h *RunsHandler) Register(api *echo.Group, secret []byte) {
	g := api.Group("")
	g.Use(authMiddleware(secret))
	g.POST("/requirements/:id/agent-run", h.start)
	g.GET("/requirements/:id/agent-runs/latest", h.latest)
	g.GET("/agent-runs/:id", h.get)
}

// Start run
//
//	@Summary		Start an agent run
//	@Description	Runs the five-step pipeline synchronously for a requirement
//	@Tags			agent-runs
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"requirement id"
//	@Param			payload	body		StartRunRequest	false	"trigger metadata"
//	@Success		200		{object}	StartRunResponse
//	@Failure		400		{object}	StartRunResponse	"run failed at validation"
//	@Failure		404		{object}	HTTPError
//	@Failure		409		{object}	HTTPError
//	@Failure		500		{object}	HTTPError
//	@Failure		502		{object}	StartRunResponse	"run failed past validation"
//	@Router			/api/requirements/{id}/agent-run [post]
func (h *RunsHandler) start(c echo.Context) error {
	var req StartRunRequest
	_ = c.Bind(&req)
	triggeredBy := req.TriggeredBy
	if triggeredBy == "" {
		if uid, ok := c.Get("user_id").(string); ok {
			triggeredBy = uid
		}
	}

	run, err := h.Runs.StartRun(c.Request().Context(), c.Param("id"), triggeredBy)
	switch {
	case errors.Is(err, agent.ErrRequirementNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "requirement not found")
	case errors.Is(err, agent.ErrRunInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// Failed runs still return the run summary, but under a status code the
	// caller can branch on: bad input is theirs to fix, anything later is not.
	code := http.StatusOK
	if run.Status == agent.RunFailed {
		if run.Steps.Supervisor.Status == agent.StepFailed {
			code = http.StatusBadRequest
		} else {
			code = http.StatusBadGateway
		}
	}
	return c.JSON(code, newStartRunResponse(run))
}

// Get run
//
//	@Summary	Get an agent run
//	@Tags		agent-runs
//	@Produce	json
//	@Param		id	path		string	true	"run id"
//	@Success	200	{object}	agent.AgentRun
//	@Failure	404	{object}	HTTPError
//	@Router		/api/agent-runs/{id} [get]
func (h *RunsHandler) get(c echo.Context) error {
	run, err := h.Runs.GetRun(c.Request().Context(), c.Param("id"))
	if errors.Is(err, agent.ErrRunNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "agent run not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, run)
}

// Latest run
//
//	@Summary	Get the latest agent run for a requirement
//	@Tags		agent-runs
//	@Produce	json
//	@Param		id	path		string	true	"requirement id"
//	@Success	200	{object}	agent.AgentRun
//	@Failure	404	{object}	HTTPError
//	@Router		/api/requirements/{id}/agent-runs/latest [get]
func (h *RunsHandler) latest(c echo.Context) error {
	run, err := h.Runs.LatestRun(c.Request().Context(), c.Param("id"))
	if errors.Is(err, agent.ErrRunNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no agent runs for this requirement")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, run)
}
