package server

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/safar-labs/safar/internal/agent"
	"github.com/safar-labs/safar/internal/store"
)

type QuotesHandler struct {
	Store *store.Store
}

func (h *QuotesHandler) Register(api *echo.Group, secret []byte) {
	g := api.Group("")
	g.Use(authMiddleware(secret))
	g.POST("/quotes", h.create)
	g.GET("/requirements/:id/quotes", h.listByRequirement)
	g.GET("/quotes/:id", h.get)
	g.PUT("/quotes/:id", h.update)
	g.POST("/quotes/:id/send", h.send)
}

// recalcQuote recomputes every line total and the net/final summary from the
// quote's sections. PerHead is left to the caller; a manual quote has no pax.
func recalcQuote(q *agent.Quote) {
	net := 0.0
	for _, items := range [][]agent.QuoteLineItem{q.Sections.Hotels, q.Sections.Transport, q.Sections.Activities} {
		for i := range items {
			items[i].Total = items[i].UnitPrice * float64(items[i].Quantity)
			net += items[i].Total
		}
	}
	q.Costs.Net = net
	q.Costs.Final = net + math.Round(net*q.Costs.MarginPercent/100)
}

// Create quote
//
//	@Summary		Create a quote by hand
//	@Description	Manual curation flow; line totals and costs are computed server-side
//	@Tags			quotes
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		QuoteCreateRequest	true	"quote"
//	@Success		201		{object}	agent.Quote
//	@Failure		400		{object}	HTTPError
//	@Failure		404		{object}	HTTPError
//	@Router			/api/quotes [post]
func (h *QuotesHandler) create(c echo.Context) error {
	var req QuoteCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.RequirementID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "requirement_id is required")
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	ctx := c.Request().Context()
	if _, err := h.Store.GetRequirement(ctx, req.RequirementID); err != nil {
		if errors.Is(err, agent.ErrRequirementNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "requirement not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	now := time.Now()
	q := agent.Quote{
		ID:            uuid.NewString(),
		RequirementID: req.RequirementID,
		PartnerID:     req.PartnerID,
		Title:         req.Title,
		Sections:      req.Sections,
		Costs:         agent.QuoteCosts{MarginPercent: req.MarginPercent},
		Status:        agent.QuoteDraft,
		ItineraryText: req.ItineraryText,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	recalcQuote(&q)
	if err := h.Store.CreateQuote(ctx, &q); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, q)
}

// List quotes
//
//	@Summary	List quotes for a requirement
//	@Tags		quotes
//	@Produce	json
//	@Param		id	path		string	true	"requirement id"
//	@Success	200	{array}		agent.Quote
//	@Failure	500	{object}	HTTPError
//	@Router		/api/requirements/{id}/quotes [get]
func (h *QuotesHandler) listByRequirement(c echo.Context) error {
	quotes, err := h.Store.ListQuotesByRequirement(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if quotes == nil {
		quotes = []agent.Quote{}
	}
	return c.JSON(http.StatusOK, quotes)
}

// Get quote
//
//	@Summary	Get one quote
//	@Tags		quotes
//	@Produce	json
//	@Param		id	path		string	true	"quote id"
//	@Success	200	{object}	agent.Quote
//	@Failure	404	{object}	HTTPError
//	@Router		/api/quotes/{id} [get]
func (h *QuotesHandler) get(c echo.Context) error {
	q, ok, err := h.Store.GetQuote(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "quote not found")
	}
	return c.JSON(http.StatusOK, q)
}

// Update quote
//
//	@Summary		Edit a quote
//	@Description	Manual agent adjustments before sending to the traveler
//	@Tags			quotes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"quote id"
//	@Param			payload	body		QuoteUpdateRequest	true	"fields to change"
//	@Success		200		{object}	agent.Quote
//	@Failure		400		{object}	HTTPError
//	@Failure		404		{object}	HTTPError
//	@Router			/api/quotes/{id} [put]
func (h *QuotesHandler) update(c echo.Context) error {
	var req QuoteUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	q, ok, err := h.Store.GetQuote(ctx, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "quote not found")
	}

	if req.Title != nil {
		q.Title = *req.Title
	}
	if req.Status != nil {
		switch agent.QuoteState(*req.Status) {
		case agent.QuoteDraft, agent.QuoteReady, agent.QuoteSentToUser:
			q.Status = agent.QuoteState(*req.Status)
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "invalid quote status")
		}
	}
	if req.ItineraryText != nil {
		q.ItineraryText = *req.ItineraryText
	}
	if req.Costs != nil {
		q.Costs = *req.Costs
	}
	if req.Sections != nil {
		q.Sections = *req.Sections
		recalcQuote(&q)
	}

	if err := h.Store.UpdateQuote(ctx, &q); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, q)
}

// Send quote
//
//	@Summary	Mark a quote as sent to the traveler
//	@Tags		quotes
//	@Produce	json
//	@Param		id	path		string	true	"quote id"
//	@Success	200	{object}	agent.Quote
//	@Failure	404	{object}	HTTPError
//	@Router		/api/quotes/{id}/send [post]
func (h *QuotesHandler) send(c echo.Context) error {
	ctx := c.Request().Context()
	q, ok, err := h.Store.GetQuote(ctx, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "quote not found")
	}
	q.Status = agent.QuoteSentToUser
	if err := h.Store.UpdateQuote(ctx, &q); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, q)
}
