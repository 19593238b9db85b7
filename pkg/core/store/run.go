// Package store archives settlement runs: the settlements, validation
// results and warnings produced for a period. Runs go to Postgres when a
// pool is configured and to a directory of JSON files otherwise.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duneshique/sharex-settlement/pkg/models"
)

// ErrRunNotFound is returned when no archived run matches a lookup.
var ErrRunNotFound = errors.New("settlement run not found")

// Run is one archived settlement run.
type Run struct {
	ID        string    `json:"id"`
	Period    string    `json:"period"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`

	Settlements []models.CompanySettlement `json:"settlements"`
	Validation  []models.ValidationResult  `json:"validation,omitempty"`
	Warnings    []string                   `json:"warnings,omitempty"`
	Sources     []string                   `json:"sources,omitempty"`

	TotalPayout float64 `json:"total_payout"`
	Passed      bool    `json:"passed"`
}

// NewRun starts a run record with a fresh id.
func NewRun(period, mode string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Period:    period,
		Mode:      mode,
		CreatedAt: time.Now().UTC(),
	}
}

// RunRepository persists settlement runs.
type RunRepository interface {
	Save(ctx context.Context, run *Run) error
	Load(ctx context.Context, id string) (*Run, error)
	// Latest returns the most recent run for a period.
	Latest(ctx context.Context, period string) (*Run, error)
	// List returns the runs of a period, oldest first.
	List(ctx context.Context, period string) ([]*Run, error)
}

// NewRepository picks the Postgres archive when pool is set and the file
// archive in dir otherwise.
func NewRepository(pool *pgxpool.Pool, dir string) (RunRepository, error) {
	if pool != nil {
		return NewPostgresRunRepo(pool), nil
	}
	return NewFileRunRepo(dir)
}
