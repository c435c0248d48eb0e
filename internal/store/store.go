// Package store persists formulation submissions in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/formulation-studio/internal/formulation"
	"github.com/joelkehle/formulation-studio/internal/insights"
)

var (
	ErrNotFound          = errors.New("submission not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type NewSubmission struct {
	Prompt   string
	Category string
	Location string
	City     string
}

type Submission struct {
	ID          string                         `json:"id"`
	Prompt      string                         `json:"prompt"`
	Category    string                         `json:"category,omitempty"`
	Location    string                         `json:"location,omitempty"`
	City        string                         `json:"city,omitempty"`
	Status      Status                         `json:"status"`
	Formulation *formulation.Formulation       `json:"formulation,omitempty"`
	Assessment  *formulation.QualityAssessment `json:"assessment,omitempty"`
	Insights    *insights.Insights             `json:"insights,omitempty"`
	Error       string                         `json:"error,omitempty"`
	CreatedAt   time.Time                      `json:"createdAt"`
	UpdatedAt   time.Time                      `json:"updatedAt"`
}

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	id          TEXT PRIMARY KEY,
	prompt      TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	city        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending',
	formulation TEXT,
	assessment  TEXT,
	insights    TEXT,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS submissions_created_at ON submissions (created_at DESC);
`

type row struct {
	ID          string         `db:"id"`
	Prompt      string         `db:"prompt"`
	Category    string         `db:"category"`
	Location    string         `db:"location"`
	City        string         `db:"city"`
	Status      string         `db:"status"`
	Formulation sql.NullString `db:"formulation"`
	Assessment  sql.NullString `db:"assessment"`
	Insights    sql.NullString `db:"insights"`
	Error       string         `db:"error"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

const selectColumns = `id, prompt, category, location, city, status, formulation, assessment, insights, error, created_at, updated_at`

type Store struct {
	db    *sqlx.DB
	clock func() time.Time
	newID func() string
}

type Option func(*Store)

func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// Open creates the database file if needed and applies the schema.
func Open(dbPath string, opts ...Option) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := New(db, opts...)
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection without touching the schema.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		clock: func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Create(ctx context.Context, in NewSubmission) (Submission, error) {
	now := s.clock()
	sub := Submission{
		ID:        s.newID(),
		Prompt:    in.Prompt,
		Category:  strings.TrimSpace(in.Category),
		Location:  strings.TrimSpace(in.Location),
		City:      strings.TrimSpace(in.City),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, prompt, category, location, city, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Prompt, sub.Category, sub.Location, sub.City, string(sub.Status),
		formatTime(now), formatTime(now))
	if err != nil {
		return Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	return sub, nil
}

func (s *Store) MarkGenerating(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusGenerating, []Status{StatusPending},
		`UPDATE submissions SET status = ?, updated_at = ? WHERE id = ? AND status IN (?)`,
		string(StatusGenerating), formatTime(s.clock()), id, string(StatusPending))
}

// Complete stores the generated results. Assessment may be nil.
func (s *Store) Complete(ctx context.Context, id string, f formulation.Formulation, a *formulation.QualityAssessment, ins insights.Insights) error {
	fJSON, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode formulation: %w", err)
	}
	insJSON, err := json.Marshal(ins)
	if err != nil {
		return fmt.Errorf("encode insights: %w", err)
	}
	var aJSON sql.NullString
	if a != nil {
		raw, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode assessment: %w", err)
		}
		aJSON = sql.NullString{String: string(raw), Valid: true}
	}
	return s.transition(ctx, id, StatusCompleted, []Status{StatusPending, StatusGenerating},
		`UPDATE submissions SET status = ?, formulation = ?, assessment = ?, insights = ?, error = '', updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		string(StatusCompleted), string(fJSON), aJSON, string(insJSON), formatTime(s.clock()),
		id, string(StatusPending), string(StatusGenerating))
}

func (s *Store) Fail(ctx context.Context, id, reason string) error {
	return s.transition(ctx, id, StatusFailed, []Status{StatusPending, StatusGenerating},
		`UPDATE submissions SET status = ?, error = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		string(StatusFailed), reason, formatTime(s.clock()), id, string(StatusPending), string(StatusGenerating))
}

func (s *Store) transition(ctx context.Context, id string, to Status, from []Status, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update submission %s to %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update submission %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Status.Terminal() {
		return fmt.Errorf("%w: submission %s is already %s", ErrInvalidTransition, id, current.Status)
	}
	return fmt.Errorf("%w: %s -> %s (allowed from %v)", ErrInvalidTransition, current.Status, to, from)
}

func (s *Store) Get(ctx context.Context, id string) (Submission, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT `+selectColumns+` FROM submissions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	if err != nil {
		return Submission{}, fmt.Errorf("get submission %s: %w", id, err)
	}
	return r.submission()
}

// List returns at most limit submissions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Submission, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var rows []row
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT `+selectColumns+` FROM submissions ORDER BY created_at DESC, id DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	out := make([]Submission, 0, len(rows))
	for _, r := range rows {
		sub, err := r.submission()
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func (r row) submission() (Submission, error) {
	sub := Submission{
		ID:       r.ID,
		Prompt:   r.Prompt,
		Category: r.Category,
		Location: r.Location,
		City:     r.City,
		Status:   Status(r.Status),
		Error:    r.Error,
	}
	sub.CreatedAt, _ = time.Parse(timeLayout, r.CreatedAt)
	sub.UpdatedAt, _ = time.Parse(timeLayout, r.UpdatedAt)
	if r.Formulation.Valid && r.Formulation.String != "" {
		var f formulation.Formulation
		if err := json.Unmarshal([]byte(r.Formulation.String), &f); err != nil {
			return Submission{}, fmt.Errorf("decode formulation for %s: %w", r.ID, err)
		}
		sub.Formulation = &f
	}
	if r.Assessment.Valid && r.Assessment.String != "" {
		var a formulation.QualityAssessment
		if err := json.Unmarshal([]byte(r.Assessment.String), &a); err != nil {
			return Submission{}, fmt.Errorf("decode assessment for %s: %w", r.ID, err)
		}
		sub.Assessment = &a
	}
	if r.Insights.Valid && r.Insights.String != "" {
		var ins insights.Insights
		if err := json.Unmarshal([]byte(r.Insights.String), &ins); err != nil {
			return Submission{}, fmt.Errorf("decode insights for %s: %w", r.ID, err)
		}
		sub.Insights = &ins
	}
	return sub, nil
}

// Fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
