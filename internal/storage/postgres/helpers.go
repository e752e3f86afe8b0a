package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/outreach-portal/server/internal/metrics"
	"github.com/outreach-portal/server/internal/storage/listquery"
	"github.com/outreach-portal/server/internal/validation"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == foreignKeyViolation
}

// listPage runs the count and page queries for a list view. selectBase and
// countBase end before any WHERE clause.
func listPage[T any](
	ctx context.Context,
	db DBTX,
	operation string,
	spec listquery.Spec,
	filters url.Values,
	page int,
	scopes []listquery.Scope,
	countBase, selectBase string,
	scan pgx.RowToFunc[T],
) (items []T, total int, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery(operation, start, err) }()

	q, err := spec.Build(filters, page, scopes...)
	if err != nil {
		var fieldErr listquery.FieldError
		if errors.As(err, &fieldErr) {
			return nil, 0, validation.Field(fieldErr.Field, fieldErr.Message)
		}
		return nil, 0, err
	}

	countSQL, countArgs := q.CountSQL(countBase)
	if err = db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s count: %w", operation, err)
	}

	pageSQL, pageArgs := q.SQL(selectBase)
	rows, err := db.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", operation, err)
	}
	items, err = pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, 0, fmt.Errorf("%s scan: %w", operation, err)
	}
	return items, total, nil
}

// affectedOne maps a zero-row command to notFound.
func affectedOne(tag pgconn.CommandTag, notFound error) error {
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

func pageOrFirst(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
