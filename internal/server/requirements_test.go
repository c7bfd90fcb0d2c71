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

func newIntakeEcho(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	e := echo.New()
	h := &RequirementsHandler{Store: &store.Store{DB: db}}
	h.RegisterPublic(e.Group("/api/requirements"))
	return e, mock
}

func TestIntake_CreatesRequirement(t *testing.T) {
	e, mock := newIntakeEcho(t)

	mock.ExpectExec(`INSERT INTO requirements`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{
		"destination": "Goa",
		"trip_type": "Honeymoon",
		"budget": 60000,
		"start_date": "2026-11-10",
		"duration_days": 4,
		"adults": 2,
		"hotel_star": 4,
		"preferences": ["beach", "spa"],
		"contact": {"name": "A Kumar", "email": "a@example.com", "phone": "999"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/requirements", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp IntakeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.ID == "" || resp.Status != "NEW" || resp.AgentStatus != "NEW" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIntake_RejectsBadPayloads(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing destination", `{"budget":1000,"start_date":"2026-11-10","contact":{"name":"A","email":"a@example.com"}}`},
		{"zero budget", `{"destination":"Goa","budget":0,"start_date":"2026-11-10","contact":{"name":"A","email":"a@example.com"}}`},
		{"bad date", `{"destination":"Goa","budget":1000,"start_date":"tomorrow","contact":{"name":"A","email":"a@example.com"}}`},
		{"missing contact", `{"destination":"Goa","budget":1000,"start_date":"2026-11-10"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newIntakeEcho(t)
			req := httptest.NewRequest(http.MethodPost, "/api/requirements", strings.NewReader(tc.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}
