package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/safar-labs/safar/internal/agent"
	"github.com/safar-labs/safar/internal/store"
)

type RequirementsHandler struct {
	Store *store.Store
}

// RegisterPublic mounts the unauthenticated intake endpoint.
func (h *RequirementsHandler) RegisterPublic(g *echo.Group) {
	g.POST("", h.intake)
}

// Register mounts the staff-facing requirement endpoints.
func (h *RequirementsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(authMiddleware(secret))
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

// Intake
//
//	@Summary		Submit a trip requirement
//	@Description	Public traveler intake form; creates a NEW requirement
//	@Tags			requirements
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		IntakeRequest	true	"Trip request"
//	@Success		201		{object}	IntakeResponse
//	@Failure		400		{object}	HTTPError
//	@Failure		500		{object}	HTTPError
//	@Router			/api/requirements [post]
func (h *RequirementsHandler) intake(c echo.Context) error {
	var req IntakeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Destination == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "destination is required")
	}
	if req.Budget <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "budget must be greater than zero")
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start_date must be YYYY-MM-DD")
	}
	if req.Contact.Name == "" || req.Contact.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "contact name and email are required")
	}

	now := time.Now()
	r := agent.Requirement{
		ID:           uuid.NewString(),
		Destination:  req.Destination,
		TripType:     req.TripType,
		Budget:       req.Budget,
		StartDate:    startDate,
		DurationDays: req.DurationDays,
		Adults:       req.Adults,
		Children:     req.Children,
		HotelStar:    req.HotelStar,
		Preferences:  req.Preferences,
		Contact:      agent.Contact(req.Contact),
		Status:       agent.RequirementNew,
		AgentStatus:  agent.AgentNew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.Store.CreateRequirement(c.Request().Context(), &r); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, IntakeResponse{ID: r.ID, Status: string(r.Status), AgentStatus: string(r.AgentStatus)})
}

// List requirements
//
//	@Summary	List trip requirements
//	@Tags		requirements
//	@Produce	json
//	@Param		limit	query		int	false	"max rows"
//	@Success	200		{array}		agent.Requirement
//	@Failure	500		{object}	HTTPError
//	@Router		/api/requirements [get]
func (h *RequirementsHandler) list(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	reqs, err := h.Store.ListRequirements(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if reqs == nil {
		reqs = []agent.Requirement{}
	}
	return c.JSON(http.StatusOK, reqs)
}

// Get requirement
//
//	@Summary	Get one trip requirement
//	@Tags		requirements
//	@Produce	json
//	@Param		id	path		string	true	"requirement id"
//	@Success	200	{object}	agent.Requirement
//	@Failure	404	{object}	HTTPError
//	@Router		/api/requirements/{id} [get]
func (h *RequirementsHandler) get(c echo.Context) error {
	r, err := h.Store.GetRequirement(c.Request().Context(), c.Param("id"))
	if err == agent.ErrRequirementNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "requirement not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, r)
}
