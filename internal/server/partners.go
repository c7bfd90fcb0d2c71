package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/safar-labs/safar/internal/agent"
	"github.com/safar-labs/safar/internal/store"
)

type PartnersHandler struct {
	Store *store.Store
}

func (h *PartnersHandler) Register(g *echo.Group, secret []byte) {
	g.Use(authMiddleware(secret))
	g.POST("", h.create)
	g.GET("", h.list)
	g.POST("/:id/hotels", h.addHotel)
	g.GET("/:id/hotels", h.listHotels)
	g.POST("/:id/transport", h.addTransport)
	g.GET("/:id/transport", h.listTransport)
	g.POST("/:id/activities", h.addActivity)
	g.GET("/:id/activities", h.listActivities)
}

// Create partner
//
//	@Summary	Register a supplier partner
//	@Tags		partners
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		PartnerCreateRequest	true	"partner"
//	@Success	201		{object}	createdResponse
//	@Failure	400		{object}	HTTPError
//	@Router		/api/partners [post]
func (h *PartnersHandler) create(c echo.Context) error {
	var req PartnerCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	id, err := h.Store.CreatePartner(c.Request().Context(), req.Name, req.Email, req.Phone)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

// List partners
//
//	@Summary	List supplier partners
//	@Tags		partners
//	@Produce	json
//	@Success	200	{array}		store.Partner
//	@Failure	500	{object}	HTTPError
//	@Router		/api/partners [get]
func (h *PartnersHandler) list(c echo.Context) error {
	partners, err := h.Store.ListPartners(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if partners == nil {
		partners = []store.Partner{}
	}
	return c.JSON(http.StatusOK, partners)
}

// Add partner hotel
//
//	@Summary	Add a hotel to a partner's inventory
//	@Tags		partners
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"partner id"
//	@Param		payload	body		PartnerHotelRequest	true	"hotel"
//	@Success	201		{object}	createdResponse
//	@Failure	400		{object}	HTTPError
//	@Router		/api/partners/{id}/hotels [post]
func (h *PartnersHandler) addHotel(c echo.Context) error {
	var req PartnerHotelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" || req.Destination == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and destination are required")
	}
	if len(req.RoomTypes) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one room type is required")
	}
	id, err := h.Store.CreatePartnerHotel(c.Request().Context(), agent.PartnerHotel{
		PartnerID:   c.Param("id"),
		Name:        req.Name,
		Destination: req.Destination,
		Star:        req.Star,
		Location:    req.Location,
		Amenities:   req.Amenities,
		RoomTypes:   req.RoomTypes,
		Rating:      req.Rating,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

// List partner hotels
//
//	@Summary	List a partner's hotel inventory
//	@Tags		partners
//	@Produce	json
//	@Param		id	path		string	true	"partner id"
//	@Success	200	{array}		agent.PartnerHotel
//	@Failure	500	{object}	HTTPError
//	@Router		/api/partners/{id}/hotels [get]
func (h *PartnersHandler) listHotels(c echo.Context) error {
	hotels, err := h.Store.ListPartnerHotels(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if hotels == nil {
		hotels = []agent.PartnerHotel{}
	}
	return c.JSON(http.StatusOK, hotels)
}

// Add partner transport
//
//	@Summary	Add a vehicle offering to a partner's catalog
//	@Tags		partners
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"partner id"
//	@Param		payload	body		PartnerTransportRequest	true	"transport"
//	@Success	201		{object}	createdResponse
//	@Failure	400		{object}	HTTPError
//	@Router		/api/partners/{id}/transport [post]
func (h *PartnersHandler) addTransport(c echo.Context) error {
	var req PartnerTransportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Mode == "" || req.Destination == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "mode and destination are required")
	}
	id, err := h.Store.CreatePartnerTransport(c.Request().Context(), store.PartnerTransport{
		PartnerID:   c.Param("id"),
		Mode:        req.Mode,
		Destination: req.Destination,
		PricePerDay: req.PricePerDay,
		Capacity:    req.Capacity,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

// List partner transport
//
//	@Summary	List a partner's vehicle offerings
//	@Tags		partners
//	@Produce	json
//	@Param		id	path		string	true	"partner id"
//	@Success	200	{array}		store.PartnerTransport
//	@Failure	500	{object}	HTTPError
//	@Router		/api/partners/{id}/transport [get]
func (h *PartnersHandler) listTransport(c echo.Context) error {
	transport, err := h.Store.ListPartnerTransport(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if transport == nil {
		transport = []store.PartnerTransport{}
	}
	return c.JSON(http.StatusOK, transport)
}

// Add partner activity
//
//	@Summary	Add a bookable activity to a partner's catalog
//	@Tags		partners
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"partner id"
//	@Param		payload	body		PartnerActivityRequest	true	"activity"
//	@Success	201		{object}	createdResponse
//	@Failure	400		{object}	HTTPError
//	@Router		/api/partners/{id}/activities [post]
func (h *PartnersHandler) addActivity(c echo.Context) error {
	var req PartnerActivityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" || req.Destination == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and destination are required")
	}
	id, err := h.Store.CreatePartnerActivity(c.Request().Context(), store.PartnerActivity{
		PartnerID:     c.Param("id"),
		Name:          req.Name,
		Destination:   req.Destination,
		Price:         req.Price,
		DurationHours: req.DurationHours,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

// List partner activities
//
//	@Summary	List a partner's bookable activities
//	@Tags		partners
//	@Produce	json
//	@Param		id	path		string	true	"partner id"
//	@Success	200	{array}		store.PartnerActivity
//	@Failure	500	{object}	HTTPError
//	@Router		/api/partners/{id}/activities [get]
func (h *PartnersHandler) listActivities(c echo.Context) error {
	activities, err := h.Store.ListPartnerActivities(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if activities == nil {
		activities = []store.PartnerActivity{}
	}
	return c.JSON(http.StatusOK, activities)
}
