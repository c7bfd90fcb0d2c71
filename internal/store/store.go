package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/safar-labs/safar/config"
	"github.com/safar-labs/safar/internal/agent"
)

// Store is the Postgres persistence layer. It implements agent.Store and
// agent.PartnerInventory.
type Store struct {
	DB *sql.DB
}

// New opens a Postgres connection from config and verifies it.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN opens a Postgres connection from an explicit DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// ---- requirements ----

// CreateRequirement persists a new trip request.
func (s *Store) CreateRequirement(ctx context.Context, r *agent.Requirement) error {
	prefs, err := json.Marshal(r.Preferences)
	if err != nil {
		return err
	}
	contact, err := json.Marshal(r.Contact)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO requirements (id, destination, trip_type, budget, start_date, duration_days, adults, children, hotel_star, preferences, contact, status, agent_status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)`,
		r.ID, r.Destination, r.TripType, r.Budget, r.StartDate, r.DurationDays, r.Adults, r.Children, r.HotelStar,
		prefs, contact, r.Status, r.AgentStatus, r.CreatedAt)
	return err
}

const requirementColumns = `id, destination, trip_type, budget, start_date, duration_days, adults, children, hotel_star, preferences, contact, status, agent_status, last_agent_run_id, last_agent_run_at, latest_quote_id, created_at, updated_at`

func scanRequirement(row interface{ Scan(...any) error }) (agent.Requirement, error) {
	var (
		r             agent.Requirement
		prefs         []byte
		contact       []byte
		lastRunID     sql.NullString
		lastRunAt     sql.NullTime
		latestQuoteID sql.NullString
	)
	err := row.Scan(&r.ID, &r.Destination, &r.TripType, &r.Budget, &r.StartDate, &r.DurationDays, &r.Adults, &r.Children, &r.HotelStar,
		&prefs, &contact, &r.Status, &r.AgentStatus, &lastRunID, &lastRunAt, &latestQuoteID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return agent.Requirement{}, err
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &r.Preferences); err != nil {
			return agent.Requirement{}, fmt.Errorf("decoding preferences: %w", err)
		}
	}
	if len(contact) > 0 {
		if err := json.Unmarshal(contact, &r.Contact); err != nil {
			return agent.Requirement{}, fmt.Errorf("decoding contact: %w", err)
		}
	}
	r.LastAgentRunID = lastRunID.String
	if lastRunAt.Valid {
		t := lastRunAt.Time
		r.LastAgentRunAt = &t
	}
	r.LatestQuoteID = latestQuoteID.String
	return r, nil
}

// GetRequirement returns one requirement, or agent.ErrRequirementNotFound.
func (s *Store) GetRequirement(ctx context.Context, id string) (agent.Requirement, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+requirementColumns+` FROM requirements WHERE id=$1`, id)
	r, err := scanRequirement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return agent.Requirement{}, agent.ErrRequirementNotFound
	}
	return r, err
}

// ListRequirements returns requirements newest first.
func (s *Store) ListRequirements(ctx context.Context, limit int) ([]agent.Requirement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+requirementColumns+` FROM requirements ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []agent.Requirement
	for rows.Next() {
		r, err := scanRequirement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClaimRequirement is a conditional update: it flips agent_status to IN_AGENT
// and stamps the new run in the same write, only when the requirement is not
// already IN_AGENT. A lost claim returns false, nil.
func (s *Store) ClaimRequirement(ctx context.Context, id, runID string, at time.Time) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
UPDATE requirements SET agent_status=$2, last_agent_run_id=$3, last_agent_run_at=$4, updated_at=$4
WHERE id=$1 AND agent_status <> $2`,
		id, agent.AgentInAgent, runID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetRequirementAgentStatus moves the requirement's pipeline phase.
func (s *Store) SetRequirementAgentStatus(ctx context.Context, id string, status agent.AgentStatus) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE requirements SET agent_status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	return err
}

// MarkRequirementQuoted links the freshly created quote and moves the
// commercial status to QUOTES_READY.
func (s *Store) MarkRequirementQuoted(ctx context.Context, id, quoteID string) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE requirements SET latest_quote_id=$2, status=$3, updated_at=NOW() WHERE id=$1`,
		id, quoteID, agent.RequirementQuotesReady)
	return err
}

// ---- agent runs ----

// CreateAgentRun inserts the initial RUNNING row with all steps PENDING.
func (s *Store) CreateAgentRun(ctx context.Context, run *agent.AgentRun) error {
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO agent_runs (id, requirement_id, triggered_by, status, steps, quote_status, provider, model, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`,
		run.ID, run.RequirementID, run.TriggeredBy, run.Status, steps, run.QuoteStatus, run.Provider, run.Model, run.CreatedAt)
	return err
}

// SaveAgentRun replaces the run's mutable columns. quote_id is deliberately
// excluded; AttachQuote owns that column.
func (s *Store) SaveAgentRun(ctx context.Context, run *agent.AgentRun) error {
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return err
	}
	var finalResult []byte
	if run.FinalResult != nil {
		if finalResult, err = json.Marshal(run.FinalResult); err != nil {
			return err
		}
	}
	_, err = s.DB.ExecContext(ctx, `
UPDATE agent_runs SET status=$2, steps=$3, final_result=$4, error=$5, quote_status=$6, updated_at=$7 WHERE id=$1`,
		run.ID, run.Status, steps, finalResult, nullString(run.Error), run.QuoteStatus, run.UpdatedAt)
	return err
}

const agentRunColumns = `id, requirement_id, triggered_by, status, steps, final_result, error, quote_id, quote_status, provider, model, created_at, updated_at`

func scanAgentRun(row interface{ Scan(...any) error }) (agent.AgentRun, error) {
	var (
		run         agent.AgentRun
		steps       []byte
		finalResult []byte
		runErr      sql.NullString
		quoteID     sql.NullString
	)
	err := row.Scan(&run.ID, &run.RequirementID, &run.TriggeredBy, &run.Status, &steps, &finalResult, &runErr,
		&quoteID, &run.QuoteStatus, &run.Provider, &run.Model, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return agent.AgentRun{}, err
	}
	if err := json.Unmarshal(steps, &run.Steps); err != nil {
		return agent.AgentRun{}, fmt.Errorf("decoding steps: %w", err)
	}
	if len(finalResult) > 0 {
		var it agent.Itinerary
		if err := json.Unmarshal(finalResult, &it); err != nil {
			return agent.AgentRun{}, fmt.Errorf("decoding final result: %w", err)
		}
		run.FinalResult = &it
	}
	run.Error = runErr.String
	run.QuoteID = quoteID.String
	return run, nil
}

// GetAgentRun returns one run, or agent.ErrRunNotFound.
func (s *Store) GetAgentRun(ctx context.Context, id string) (agent.AgentRun, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+agentRunColumns+` FROM agent_runs WHERE id=$1`, id)
	run, err := scanAgentRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return agent.AgentRun{}, agent.ErrRunNotFound
	}
	return run, err
}

// LatestAgentRun returns the newest run for a requirement, or agent.ErrRunNotFound.
func (s *Store) LatestAgentRun(ctx context.Context, requirementID string) (agent.AgentRun, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+agentRunColumns+` FROM agent_runs WHERE requirement_id=$1 ORDER BY created_at DESC LIMIT 1`, requirementID)
	run, err := scanAgentRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return agent.AgentRun{}, agent.ErrRunNotFound
	}
	return run, err
}

// AttachQuote links the quote to the run once. Re-attaching the same quote is
// a no-op; attaching a different one affects zero rows.
func (s *Store) AttachQuote(ctx context.Context, runID, quoteID string) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE agent_runs SET quote_id=$2, updated_at=NOW()
WHERE id=$1 AND (quote_id IS NULL OR quote_id=$2)`, runID, quoteID)
	return err
}

// ListStuckRuns returns RUNNING runs whose last persisted progress predates
// the cutoff. The sweeper force-fails them.
func (s *Store) ListStuckRuns(ctx context.Context, cutoff time.Time) ([]agent.AgentRun, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+agentRunColumns+` FROM agent_runs WHERE status=$1 AND updated_at < $2`,
		agent.RunRunning, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []agent.AgentRun
	for rows.Next() {
		run, err := scanAgentRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// ---- quotes ----

// CreateQuote persists a quote.
func (s *Store) CreateQuote(ctx context.Context, q *agent.Quote) error {
	sections, err := json.Marshal(q.Sections)
	if err != nil {
		return err
	}
	costs, err := json.Marshal(q.Costs)
	if err != nil {
		return err
	}
	var itinerary []byte
	if q.Itinerary != nil {
		if itinerary, err = json.Marshal(q.Itinerary); err != nil {
			return err
		}
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO quotes (id, requirement_id, partner_id, agent_id, title, sections, costs, status, itinerary_text, itinerary, agent_run_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)`,
		q.ID, q.RequirementID, nullString(q.PartnerID), nullString(q.AgentID), q.Title, sections, costs, q.Status,
		nullString(q.ItineraryText), itinerary, nullString(q.AgentRunID), q.CreatedAt)
	return err
}

const quoteColumns = `id, requirement_id, partner_id, agent_id, title, sections, costs, status, itinerary_text, itinerary, agent_run_id, created_at, updated_at`

func scanQuote(row interface{ Scan(...any) error }) (agent.Quote, error) {
	var (
		q             agent.Quote
		partnerID     sql.NullString
		agentID       sql.NullString
		sections      []byte
		costs         []byte
		itineraryText sql.NullString
		itinerary     []byte
		runID         sql.NullString
	)
	err := row.Scan(&q.ID, &q.RequirementID, &partnerID, &agentID, &q.Title, &sections, &costs, &q.Status,
		&itineraryText, &itinerary, &runID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return agent.Quote{}, err
	}
	if err := json.Unmarshal(sections, &q.Sections); err != nil {
		return agent.Quote{}, fmt.Errorf("decoding sections: %w", err)
	}
	if err := json.Unmarshal(costs, &q.Costs); err != nil {
		return agent.Quote{}, fmt.Errorf("decoding costs: %w", err)
	}
	if len(itinerary) > 0 {
		var it agent.Itinerary
		if err := json.Unmarshal(itinerary, &it); err != nil {
			return agent.Quote{}, fmt.Errorf("decoding itinerary: %w", err)
		}
		q.Itinerary = &it
	}
	q.PartnerID = partnerID.String
	q.AgentID = agentID.String
	q.ItineraryText = itineraryText.String
	q.AgentRunID = runID.String
	return q, nil
}

// GetQuote returns one quote; ok is false when it does not exist.
func (s *Store) GetQuote(ctx context.Context, id string) (agent.Quote, bool, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id=$1`, id)
	q, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return agent.Quote{}, false, nil
	}
	if err != nil {
		return agent.Quote{}, false, err
	}
	return q, true, nil
}

// ListQuotesByRequirement returns a requirement's quotes newest first.
func (s *Store) ListQuotesByRequirement(ctx context.Context, requirementID string) ([]agent.Quote, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE requirement_id=$1 ORDER BY created_at DESC`, requirementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []agent.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// UpdateQuote replaces a quote's editable fields.
func (s *Store) UpdateQuote(ctx context.Context, q *agent.Quote) error {
	sections, err := json.Marshal(q.Sections)
	if err != nil {
		return err
	}
	costs, err := json.Marshal(q.Costs)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
UPDATE quotes SET title=$2, sections=$3, costs=$4, status=$5, itinerary_text=$6, updated_at=NOW() WHERE id=$1`,
		q.ID, q.Title, sections, costs, q.Status, nullString(q.ItineraryText))
	return err
}

// ---- users ----

// CreateUser stores a platform user with a bcrypt password hash.
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

// GetUserByEmail returns the user's id and password hash.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// ---- partners ----

// Partner is a supplier whose inventory research can draw on.
type Partner struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// CreatePartner registers a supplier.
func (s *Store) CreatePartner(ctx context.Context, name, email, phone string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO partners (name, email, phone) VALUES ($1,$2,$3) RETURNING id`, name, email, phone).Scan(&id)
	return id, err
}

// ListPartners returns all suppliers.
func (s *Store) ListPartners(ctx context.Context) ([]Partner, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, name, email, phone, created_at FROM partners ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Partner
	for rows.Next() {
		var p Partner
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreatePartnerHotel adds a property to a partner's inventory.
func (s *Store) CreatePartnerHotel(ctx context.Context, h agent.PartnerHotel) (string, error) {
	amenities, err := json.Marshal(h.Amenities)
	if err != nil {
		return "", err
	}
	roomTypes, err := json.Marshal(h.RoomTypes)
	if err != nil {
		return "", err
	}
	var id string
	err = s.DB.QueryRowContext(ctx, `
INSERT INTO partner_hotels (partner_id, name, destination, star, location, amenities, room_types, rating)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		h.PartnerID, h.Name, h.Destination, h.Star, h.Location, amenities, roomTypes, h.Rating).Scan(&id)
	return id, err
}

const partnerHotelColumns = `h.id, h.partner_id, p.name, h.name, h.destination, h.star, h.location, h.amenities, h.room_types, h.rating`

func scanPartnerHotel(row interface{ Scan(...any) error }) (agent.PartnerHotel, error) {
	var (
		h         agent.PartnerHotel
		location  sql.NullString
		amenities []byte
		roomTypes []byte
	)
	err := row.Scan(&h.ID, &h.PartnerID, &h.PartnerName, &h.Name, &h.Destination, &h.Star, &location, &amenities, &roomTypes, &h.Rating)
	if err != nil {
		return agent.PartnerHotel{}, err
	}
	h.Location = location.String
	if len(amenities) > 0 {
		if err := json.Unmarshal(amenities, &h.Amenities); err != nil {
			return agent.PartnerHotel{}, fmt.Errorf("decoding amenities: %w", err)
		}
	}
	if len(roomTypes) > 0 {
		if err := json.Unmarshal(roomTypes, &h.RoomTypes); err != nil {
			return agent.PartnerHotel{}, fmt.Errorf("decoding room types: %w", err)
		}
	}
	return h, nil
}

// HotelsByDestination is the research lookup: case-insensitive destination
// substring match, optionally narrowed to one star above or below the
// preferred rating. star 0 means any.
func (s *Store) HotelsByDestination(ctx context.Context, destination string, star int) ([]agent.PartnerHotel, error) {
	query := `SELECT ` + partnerHotelColumns + ` FROM partner_hotels h JOIN partners p ON p.id = h.partner_id WHERE h.destination ILIKE '%'||$1||'%'`
	args := []any{destination}
	if star > 0 {
		query += ` AND h.star BETWEEN $2-1 AND $2+1`
		args = append(args, star)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []agent.PartnerHotel
	for rows.Next() {
		h, err := scanPartnerHotel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListPartnerHotels returns one partner's full inventory.
func (s *Store) ListPartnerHotels(ctx context.Context, partnerID string) ([]agent.PartnerHotel, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+partnerHotelColumns+` FROM partner_hotels h JOIN partners p ON p.id = h.partner_id WHERE h.partner_id=$1 ORDER BY h.name`, partnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []agent.PartnerHotel
	for rows.Next() {
		h, err := scanPartnerHotel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// PartnerTransport is one vehicle offering in a partner's catalog.
type PartnerTransport struct {
	ID          string  `json:"id"`
	PartnerID   string  `json:"partner_id"`
	Mode        string  `json:"mode"`
	Destination string  `json:"destination"`
	PricePerDay float64 `json:"price_per_day"`
	Capacity    int     `json:"capacity"`
}

func (s *Store) CreatePartnerTransport(ctx context.Context, t PartnerTransport) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO partner_transport (partner_id, mode, destination, price_per_day, capacity)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		t.PartnerID, t.Mode, t.Destination, t.PricePerDay, t.Capacity).Scan(&id)
	return id, err
}

func (s *Store) ListPartnerTransport(ctx context.Context, partnerID string) ([]PartnerTransport, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, partner_id, mode, destination, price_per_day, capacity FROM partner_transport WHERE partner_id=$1 ORDER BY mode`, partnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PartnerTransport
	for rows.Next() {
		var t PartnerTransport
		if err := rows.Scan(&t.ID, &t.PartnerID, &t.Mode, &t.Destination, &t.PricePerDay, &t.Capacity); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PartnerActivity is one bookable activity in a partner's catalog.
type PartnerActivity struct {
	ID            string  `json:"id"`
	PartnerID     string  `json:"partner_id"`
	Name          string  `json:"name"`
	Destination   string  `json:"destination"`
	Price         float64 `json:"price"`
	DurationHours float64 `json:"duration_hours"`
}

func (s *Store) CreatePartnerActivity(ctx context.Context, a PartnerActivity) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO partner_activities (partner_id, name, destination, price, duration_hours)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		a.PartnerID, a.Name, a.Destination, a.Price, a.DurationHours).Scan(&id)
	return id, err
}

func (s *Store) ListPartnerActivities(ctx context.Context, partnerID string) ([]PartnerActivity, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, partner_id, name, destination, price, duration_hours FROM partner_activities WHERE partner_id=$1 ORDER BY name`, partnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PartnerActivity
	for rows.Next() {
		var a PartnerActivity
		if err := rows.Scan(&a.ID, &a.PartnerID, &a.Name, &a.Destination, &a.Price, &a.DurationHours); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
