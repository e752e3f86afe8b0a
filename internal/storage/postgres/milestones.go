package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outreach-portal/server/internal/domain/milestones"
	"github.com/outreach-portal/server/internal/metrics"
	"github.com/outreach-portal/server/internal/storage/listquery"
)

// MilestoneRepository implements milestones.Repository.
type MilestoneRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ milestones.Repository = (*MilestoneRepository)(nil)

func (r *MilestoneRepository) queryer() DBTX {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

var milestoneListSpec = listquery.Spec{
	Fields: []listquery.Field{
		{Param: "search", Columns: []string{"ms.title", "u.first_name", "u.last_name"}, Match: listquery.Contains},
	},
	OrderBy:  "ms.milestone_date DESC, ms.milestone_id DESC",
	PageSize: milestones.PageSize,
}

func collectMilestone(row pgx.CollectableRow) (milestones.Milestone, error) {
	var m milestones.Milestone
	err := row.Scan(&m.ID, &m.UserID, &m.FirstName, &m.LastName, &m.Title, &m.Date)
	return m, err
}

func (r *MilestoneRepository) ListMilestones(ctx context.Context, opts milestones.ListOptions) (milestones.ListResult, error) {
	page := pageOrFirst(opts.Page)
	list, total, err := listPage(ctx, r.queryer(), "list_milestones", milestoneListSpec, opts.Filters, page,
		ownerScope("ms.user_id", opts.OwnerID),
		`SELECT COUNT(*) FROM milestones ms JOIN users u ON u.user_id = ms.user_id`,
		`SELECT ms.milestone_id, ms.user_id, u.first_name, u.last_name, ms.title, ms.milestone_date
  FROM milestones ms
  JOIN users u ON u.user_id = ms.user_id`,
		collectMilestone,
	)
	if err != nil {
		return milestones.ListResult{}, err
	}
	return milestones.ListResult{Milestones: list, Total: total, Page: page, PageSize: milestones.PageSize}, nil
}

func insertMilestone(ctx context.Context, db DBTX, p milestones.Params) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
INSERT INTO milestones (user_id, title, milestone_date)
VALUES ($1, $2, $3)
RETURNING milestone_id`, p.UserID, p.Title, p.Date).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, milestones.ErrOwnerNotFound
		}
		return 0, fmt.Errorf("insert milestone: %w", err)
	}
	return id, nil
}

func (r *MilestoneRepository) CreateMilestone(ctx context.Context, p milestones.Params) (_ int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("create_milestone", start, err) }()
	return insertMilestone(ctx, r.queryer(), p)
}

func (r *MilestoneRepository) DeleteMilestone(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("delete_milestone", start, err) }()

	tag, err := r.queryer().Exec(ctx, `DELETE FROM milestones WHERE milestone_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete milestone: %w", err)
	}
	return affectedOne(tag, milestones.ErrNotFound)
}

func (r *MilestoneRepository) CountMilestones(ctx context.Context, ownerID int64) (_ int, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("count_milestones", start, err) }()

	var n int
	if err = r.queryer().QueryRow(ctx,
		`SELECT COUNT(*) FROM milestones WHERE $1::bigint = 0 OR user_id = $1`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count milestones: %w", err)
	}
	return n, nil
}
