package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/safar-labs/safar/internal/store"
)

func newPartnersEcho(t *testing.T, secret []byte) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	e := echo.New()
	h := &PartnersHandler{Store: &store.Store{DB: db}}
	h.Register(e.Group("/api/partners"), secret)
	return e, mock
}

func TestAddPartnerTransport(t *testing.T) {
	secret := []byte("test-secret")
	e, mock := newPartnersEcho(t, secret)

	mock.ExpectQuery(`INSERT INTO partner_transport`).
		WithArgs("p-1", "Sedan", "Goa", 2000.0, 4).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("t-1"))

	body := `{"mode":"Sedan","destination":"Goa","price_per_day":2000,"capacity":4}`
	req := httptest.NewRequest(http.MethodPost, "/api/partners/p-1/transport", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", bearer(t, secret))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp createdResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.ID != "t-1" {
		t.Fatalf("unexpected id %q", resp.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddPartnerTransport_RequiresModeAndDestination(t *testing.T) {
	secret := []byte("test-secret")
	e, _ := newPartnersEcho(t, secret)

	req := httptest.NewRequest(http.MethodPost, "/api/partners/p-1/transport", strings.NewReader(`{"price_per_day":2000}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", bearer(t, secret))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListPartnerActivities(t *testing.T) {
	secret := []byte("test-secret")
	e, mock := newPartnersEcho(t, secret)

	cols := []string{"id", "partner_id", "name", "destination", "price", "duration_hours"}
	mock.ExpectQuery(`SELECT .+ FROM partner_activities WHERE partner_id=\$1`).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a-1", "p-1", "Sunset cruise", "Goa", 2000.0, 2.0))

	req := httptest.NewRequest(http.MethodGet, "/api/partners/p-1/activities", nil)
	req.Header.Set("Authorization", bearer(t, secret))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got []store.PartnerActivity
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Sunset cruise" || got[0].Price != 2000 {
		t.Fatalf("unexpected activities %+v", got)
	}
}
