package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/domain/donations"
	"github.com/outreach-portal/server/internal/domain/events"
	"github.com/outreach-portal/server/internal/domain/milestones"
	"github.com/outreach-portal/server/internal/domain/surveys"
	"github.com/outreach-portal/server/internal/domain/users"
	"github.com/outreach-portal/server/internal/storage"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements storage.Repository with a PostgreSQL backend
type Repository struct {
	pool *pgxpool.Pool

	users      *UserRepository
	sessions   *SessionRepository
	events     *EventRepository
	donations  *DonationRepository
	surveys    *SurveyRepository
	milestones *MilestoneRepository
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new PostgreSQL-backed repository
func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	return &Repository{
		pool:       pool,
		users:      &UserRepository{pool: pool},
		sessions:   &SessionRepository{pool: pool},
		events:     &EventRepository{pool: pool},
		donations:  &DonationRepository{pool: pool},
		surveys:    &SurveyRepository{pool: pool},
		milestones: &MilestoneRepository{pool: pool},
	}, nil
}

func (r *Repository) Users() users.Repository           { return r.users }
func (r *Repository) Sessions() auth.SessionRepository  { return r.sessions }
func (r *Repository) Events() events.Repository         { return r.events }
func (r *Repository) Donations() donations.Repository   { return r.donations }
func (r *Repository) Surveys() surveys.Repository       { return r.surveys }
func (r *Repository) Milestones() milestones.Repository { return r.milestones }
func (r *Repository) Ping(ctx context.Context) error    { return r.pool.Ping(ctx) }

// Pool exposes the underlying pool for metrics collection.
func (r *Repository) Pool() *pgxpool.Pool { return r.pool }

// txCommitter implements commit/rollback for a repository-scoped transaction
type txCommitter struct {
	tx pgx.Tx
}

func (tc *txCommitter) Commit(ctx context.Context) error {
	return tc.tx.Commit(ctx)
}

// Rollback is a no-op after Commit.
func (tc *txCommitter) Rollback(ctx context.Context) error {
	return tc.tx.Rollback(ctx)
}

func beginTx(ctx context.Context, pool *pgxpool.Pool, current pgx.Tx) (pgx.Tx, error) {
	if current != nil {
		return nil, fmt.Errorf("repository already in transaction")
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}
