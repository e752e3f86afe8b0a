package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outreach-portal/server/internal/domain/milestones"
	"github.com/outreach-portal/server/internal/domain/surveys"
	"github.com/outreach-portal/server/internal/metrics"
	"github.com/outreach-portal/server/internal/storage/listquery"
	"github.com/outreach-portal/server/internal/validation"
)

// SurveyRepository implements surveys.Repository over registrations.
type SurveyRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ surveys.Repository = (*SurveyRepository)(nil)

func (r *SurveyRepository) queryer() DBTX {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *SurveyRepository) BeginTx(ctx context.Context) (surveys.Repository, surveys.TxCommitter, error) {
	tx, err := beginTx(ctx, r.pool, r.tx)
	if err != nil {
		return nil, nil, err
	}
	return &SurveyRepository{pool: r.pool, tx: tx}, &txCommitter{tx: tx}, nil
}

const registrationFrom = `
  FROM registrations r
  JOIN users u ON u.user_id = r.user_id
  JOIN event_instances ei ON ei.event_instance_id = r.event_instance_id
  JOIN master_events me ON me.master_event_id = ei.master_event_id`

const registrationSelect = `
SELECT r.registration_id, r.user_id, u.first_name, u.last_name, r.event_instance_id,
       me.event_name, ei.start_time, r.status, r.check_in_time,
       r.survey_satisfaction, r.survey_usefulness, r.survey_instructor, r.survey_recommendation,
       COALESCE(r.survey_comments, ''), r.created_at` + registrationFrom

func parseRating(raw string) (any, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("must be a number from 1 to 5 or %s", surveys.NullRating)
	}
	return n, nil
}

func parseDay(raw string) (any, error) {
	return validation.ParseDate(raw)
}

func surveyFields(searchColumns []string) []listquery.Field {
	return []listquery.Field{
		{Param: "search", Columns: searchColumns, Match: listquery.Contains},
		{Param: "date", Columns: []string{"DATE(ei.start_time)"}, Match: listquery.Exact, Convert: parseDay},
		{
			Param:     "satisfaction",
			Columns:   []string{"r.survey_satisfaction"},
			Match:     listquery.Exact,
			AnyValue:  "All",
			NullToken: surveys.NullRating,
			Convert:   parseRating,
		},
	}
}

var (
	adminSurveySpec = listquery.Spec{
		Fields: surveyFields([]string{
			"u.first_name", "u.last_name", "me.event_name", "r.status",
			"CAST(r.registration_id AS TEXT)", "r.survey_comments",
		}),
		OrderBy:  "r.created_at DESC, r.registration_id DESC",
		PageSize: surveys.PageSize,
	}
	ownSurveySpec = listquery.Spec{
		Fields: surveyFields([]string{
			"me.event_name", "r.status", "CAST(r.registration_id AS TEXT)", "r.survey_comments",
		}),
		OrderBy:  "r.created_at DESC, r.registration_id DESC",
		PageSize: surveys.PageSize,
	}
)

func collectRegistration(row pgx.CollectableRow) (surveys.Registration, error) {
	var (
		reg    surveys.Registration
		status string
		rating [4]*int16
	)
	err := row.Scan(
		&reg.ID, &reg.UserID, &reg.FirstName, &reg.LastName, &reg.EventInstanceID,
		&reg.EventTitle, &reg.EventDate, &status, &reg.CheckInTime,
		&rating[0], &rating[1], &rating[2], &rating[3],
		&reg.Comments, &reg.CreatedAt,
	)
	reg.Status = surveys.Status(status)
	reg.Satisfaction = widen(rating[0])
	reg.Usefulness = widen(rating[1])
	reg.Instructor = widen(rating[2])
	reg.Recommendation = widen(rating[3])
	return reg, err
}

func widen(v *int16) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

func (r *SurveyRepository) ListRegistrations(ctx context.Context, opts surveys.ListOptions) (surveys.ListResult, error) {
	page := pageOrFirst(opts.Page)
	spec := adminSurveySpec
	if opts.OwnerID != 0 {
		spec = ownSurveySpec
	}
	list, total, err := listPage(ctx, r.queryer(), "list_registrations", spec, opts.Filters, page,
		ownerScope("r.user_id", opts.OwnerID),
		`SELECT COUNT(*)`+registrationFrom, registrationSelect, collectRegistration)
	if err != nil {
		return surveys.ListResult{}, err
	}
	return surveys.ListResult{Registrations: list, Total: total, Page: page, PageSize: surveys.PageSize}, nil
}

func (r *SurveyRepository) GetRegistration(ctx context.Context, id int64) (_ *surveys.Registration, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_registration", start, err) }()

	rows, err := r.queryer().Query(ctx, registrationSelect+` WHERE r.registration_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	reg, err := pgx.CollectExactlyOneRow(rows, collectRegistration)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, surveys.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &reg, nil
}

// EnsureRegistration upserts on (user_id, event_instance_id) so a repeated
// submission reuses the existing row.
func (r *SurveyRepository) EnsureRegistration(ctx context.Context, userID, instanceID int64) (_ int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("ensure_registration", start, err) }()

	var id int64
	err = r.queryer().QueryRow(ctx, `
INSERT INTO registrations (user_id, event_instance_id, status)
VALUES ($1, $2, 'registered')
ON CONFLICT (user_id, event_instance_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING registration_id`, userID, instanceID).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, surveys.ErrEventNotFound
		}
		return 0, fmt.Errorf("ensure registration: %w", err)
	}
	return id, nil
}

func (r *SurveyRepository) UpdateAnswers(ctx context.Context, id int64, a surveys.Answers) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("update_survey_answers", start, err) }()

	tag, err := r.queryer().Exec(ctx, `
UPDATE registrations
   SET survey_satisfaction = $2, survey_usefulness = $3, survey_instructor = $4,
       survey_recommendation = $5, survey_comments = $6
 WHERE registration_id = $1`,
		id, a.Satisfaction, a.Usefulness, a.Instructor, a.Recommendation, nullIfEmpty(a.Comments))
	if err != nil {
		return fmt.Errorf("update survey answers: %w", err)
	}
	return affectedOne(tag, surveys.ErrNotFound)
}

func (r *SurveyRepository) UpdateRegistration(ctx context.Context, id int64, status surveys.Status, a surveys.Answers) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("update_registration", start, err) }()

	tag, err := r.queryer().Exec(ctx, `
UPDATE registrations
   SET status = $2,
       check_in_time = CASE WHEN $2 = 'attended' THEN COALESCE(check_in_time, NOW()) ELSE check_in_time END,
       survey_satisfaction = $3, survey_usefulness = $4, survey_instructor = $5,
       survey_recommendation = $6, survey_comments = $7
 WHERE registration_id = $1`,
		id, string(status), a.Satisfaction, a.Usefulness, a.Instructor, a.Recommendation, nullIfEmpty(a.Comments))
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	return affectedOne(tag, surveys.ErrNotFound)
}

// DeleteRegistration leaves milestones created from the survey in place.
func (r *SurveyRepository) DeleteRegistration(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("delete_registration", start, err) }()

	tag, err := r.queryer().Exec(ctx, `DELETE FROM registrations WHERE registration_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	return affectedOne(tag, surveys.ErrNotFound)
}

func (r *SurveyRepository) CountRegistrations(ctx context.Context, ownerID int64) (_ int, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("count_registrations", start, err) }()

	var n int
	if err = r.queryer().QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE $1::bigint = 0 OR user_id = $1`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

func (r *SurveyRepository) CreateMilestone(ctx context.Context, p milestones.Params) (_ int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("create_milestone", start, err) }()
	return insertMilestone(ctx, r.queryer(), p)
}
