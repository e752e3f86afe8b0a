package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outreach-portal/server/internal/domain/donations"
	"github.com/outreach-portal/server/internal/metrics"
	"github.com/outreach-portal/server/internal/storage/listquery"
)

// DonationRepository implements donations.Repository.
type DonationRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ donations.Repository = (*DonationRepository)(nil)

func (r *DonationRepository) queryer() DBTX {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const donationSelect = `
SELECT d.donation_id, d.user_id, u.first_name, u.last_name, u.email, d.amount, d.donation_date
  FROM donations d
  JOIN users u ON u.user_id = d.user_id`

const donationCount = `
SELECT COUNT(*)
  FROM donations d
  JOIN users u ON u.user_id = d.user_id`

var donationListSpec = listquery.Spec{
	Fields: []listquery.Field{
		{Param: "search", Columns: []string{
			"u.first_name", "u.last_name", "u.email",
			"CAST(d.amount AS TEXT)", "CAST(d.donation_date AS TEXT)",
		}, Match: listquery.Contains},
	},
	OrderBy:  "d.donation_date DESC NULLS LAST, d.donation_id DESC",
	PageSize: donations.PageSize,
}

func collectDonation(row pgx.CollectableRow) (donations.Donation, error) {
	var d donations.Donation
	err := row.Scan(&d.ID, &d.UserID, &d.FirstName, &d.LastName, &d.Email, &d.Amount, &d.Date)
	return d, err
}

func ownerScope(column string, ownerID int64) []listquery.Scope {
	if ownerID == 0 {
		return nil
	}
	return []listquery.Scope{listquery.ScopeEqual(column, ownerID)}
}

func (r *DonationRepository) ListDonations(ctx context.Context, opts donations.ListOptions) (donations.ListResult, error) {
	page := pageOrFirst(opts.Page)
	list, total, err := listPage(ctx, r.queryer(), "list_donations", donationListSpec, opts.Filters, page,
		ownerScope("d.user_id", opts.OwnerID), donationCount, donationSelect, collectDonation)
	if err != nil {
		return donations.ListResult{}, err
	}
	return donations.ListResult{Donations: list, Total: total, Page: page, PageSize: donations.PageSize}, nil
}

func (r *DonationRepository) GetDonation(ctx context.Context, id int64) (_ *donations.Donation, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_donation", start, err) }()

	rows, err := r.queryer().Query(ctx, donationSelect+` WHERE d.donation_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get donation: %w", err)
	}
	d, err := pgx.CollectExactlyOneRow(rows, collectDonation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, donations.ErrNotFound
		}
		return nil, fmt.Errorf("get donation: %w", err)
	}
	return &d, nil
}

func (r *DonationRepository) CreateDonation(ctx context.Context, p donations.Params) (_ int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("create_donation", start, err) }()

	var id int64
	err = r.queryer().QueryRow(ctx, `
INSERT INTO donations (user_id, amount, donation_date)
VALUES ($1, $2, $3)
RETURNING donation_id`, p.UserID, p.Amount, p.Date).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, donations.ErrDonorNotFound
		}
		return 0, fmt.Errorf("insert donation: %w", err)
	}
	return id, nil
}

func (r *DonationRepository) UpdateDonation(ctx context.Context, id int64, p donations.Params) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("update_donation", start, err) }()

	tag, err := r.queryer().Exec(ctx, `
UPDATE donations
   SET user_id = $2, amount = $3, donation_date = $4
 WHERE donation_id = $1`, id, p.UserID, p.Amount, p.Date)
	if err != nil {
		if isForeignKeyViolation(err) {
			return donations.ErrDonorNotFound
		}
		return fmt.Errorf("update donation: %w", err)
	}
	return affectedOne(tag, donations.ErrNotFound)
}

func (r *DonationRepository) DeleteDonation(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("delete_donation", start, err) }()

	tag, err := r.queryer().Exec(ctx, `DELETE FROM donations WHERE donation_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete donation: %w", err)
	}
	return affectedOne(tag, donations.ErrNotFound)
}

func (r *DonationRepository) Summarize(ctx context.Context, ownerID int64) (_ donations.Summary, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("summarize_donations", start, err) }()

	var s donations.Summary
	err = r.queryer().QueryRow(ctx, `
SELECT COUNT(*), COALESCE(SUM(amount), 0)::float8
  FROM donations
 WHERE $1::bigint = 0 OR user_id = $1`, ownerID).Scan(&s.Count, &s.Amount)
	if err != nil {
		return donations.Summary{}, fmt.Errorf("summarize donations: %w", err)
	}
	return s, nil
}
