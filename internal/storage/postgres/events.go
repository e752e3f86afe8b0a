package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outreach-portal/server/internal/domain/events"
	"github.com/outreach-portal/server/internal/metrics"
	"github.com/outreach-portal/server/internal/storage/listquery"
)

// EventRepository implements events.Repository over master_events and
// event_instances.
type EventRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ events.Repository = (*EventRepository)(nil)

func (r *EventRepository) queryer() DBTX {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *EventRepository) BeginTx(ctx context.Context) (events.Repository, events.TxCommitter, error) {
	tx, err := beginTx(ctx, r.pool, r.tx)
	if err != nil {
		return nil, nil, err
	}
	return &EventRepository{pool: r.pool, tx: tx}, &txCommitter{tx: tx}, nil
}

const instanceSelect = `
SELECT ei.event_instance_id, ei.master_event_id, m.event_name, m.event_type, m.event_description,
       ei.start_time, ei.end_time, ei.location, ei.capacity
  FROM event_instances ei
  JOIN master_events m ON m.master_event_id = ei.master_event_id`

const instanceCount = `
SELECT COUNT(*)
  FROM event_instances ei
  JOIN master_events m ON m.master_event_id = ei.master_event_id`

var eventListSpec = listquery.Spec{
	Fields: []listquery.Field{
		{Param: "search", Columns: []string{"m.event_name", "m.event_description", "ei.location"}, Match: listquery.Contains},
		{Param: "category", Columns: []string{"m.event_type"}, Match: listquery.Exact, AnyValue: "All"},
	},
	OrderBy:  "ei.start_time ASC, ei.event_instance_id ASC",
	PageSize: events.PageSize,
}

func collectInstance(row pgx.CollectableRow) (events.Instance, error) {
	var i events.Instance
	err := row.Scan(
		&i.ID, &i.MasterID, &i.Title, &i.Category, &i.Description,
		&i.StartTime, &i.EndTime, &i.Location, &i.Capacity,
	)
	return i, err
}

func (r *EventRepository) ListInstances(ctx context.Context, opts events.ListOptions) (events.ListResult, error) {
	page := pageOrFirst(opts.Page)
	list, total, err := listPage(ctx, r.queryer(), "list_event_instances", eventListSpec, opts.Filters, page, nil,
		instanceCount, instanceSelect, collectInstance)
	if err != nil {
		return events.ListResult{}, err
	}
	return events.ListResult{Instances: list, Total: total, Page: page, PageSize: events.PageSize}, nil
}

// ListAllInstances feeds the survey event picker.
func (r *EventRepository) ListAllInstances(ctx context.Context) (_ []events.Instance, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("list_all_event_instances", start, err) }()

	rows, err := r.queryer().Query(ctx, instanceSelect+` ORDER BY m.event_name, ei.start_time`)
	if err != nil {
		return nil, fmt.Errorf("list event instances: %w", err)
	}
	return pgx.CollectRows(rows, collectInstance)
}

func (r *EventRepository) ListCategories(ctx context.Context) (_ []string, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("list_event_categories", start, err) }()

	rows, err := r.queryer().Query(ctx,
		`SELECT DISTINCT event_type FROM master_events WHERE event_type <> '' ORDER BY event_type`)
	if err != nil {
		return nil, fmt.Errorf("list event categories: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *EventRepository) GetInstance(ctx context.Context, id int64) (_ *events.Instance, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_event_instance", start, err) }()

	rows, err := r.queryer().Query(ctx, instanceSelect+` WHERE ei.event_instance_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get event instance: %w", err)
	}
	i, err := pgx.CollectExactlyOneRow(rows, collectInstance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event instance: %w", err)
	}
	return &i, nil
}

func (r *EventRepository) CountUpcoming(ctx context.Context, after time.Time) (_ int, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("count_upcoming_events", start, err) }()

	var n int
	if err = r.queryer().QueryRow(ctx,
		`SELECT COUNT(*) FROM event_instances WHERE start_time > $1`, after).Scan(&n); err != nil {
		return 0, fmt.Errorf("count upcoming events: %w", err)
	}
	return n, nil
}

func collectMaster(row pgx.CollectableRow) (events.MasterEvent, error) {
	var m events.MasterEvent
	err := row.Scan(&m.ID, &m.Name, &m.Type, &m.Description)
	return m, err
}

func (r *EventRepository) ListMasters(ctx context.Context) (_ []events.MasterEvent, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("list_master_events", start, err) }()

	rows, err := r.queryer().Query(ctx, `
SELECT master_event_id, event_name, event_type, event_description
  FROM master_events
 ORDER BY event_name, master_event_id`)
	if err != nil {
		return nil, fmt.Errorf("list master events: %w", err)
	}
	return pgx.CollectRows(rows, collectMaster)
}

func (r *EventRepository) GetMaster(ctx context.Context, id int64) (_ *events.MasterEvent, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_master_event", start, err) }()

	rows, err := r.queryer().Query(ctx, `
SELECT master_event_id, event_name, event_type, event_description
  FROM master_events
 WHERE master_event_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get master event: %w", err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, collectMaster)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrMasterNotFound
		}
		return nil, fmt.Errorf("get master event: %w", err)
	}
	return &m, nil
}

func (r *EventRepository) CreateMaster(ctx context.Context, p events.MasterParams) (_ int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("create_master_event", start, err) }()

	var id int64
	err = r.queryer().QueryRow(ctx, `
INSERT INTO master_events (event_name, event_type, event_description)
VALUES ($1, $2, $3)
RETURNING master_event_id`, p.Name, p.Type, p.Description).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert master event: %w", err)
	}
	return id, nil
}

func (r *EventRepository) UpdateMaster(ctx context.Context, id int64, p events.MasterParams) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("update_master_event", start, err) }()

	tag, err := r.queryer().Exec(ctx, `
UPDATE master_events
   SET event_name = $2, event_type = $3, event_description = $4
 WHERE master_event_id = $1`, id, p.Name, p.Type, p.Description)
	if err != nil {
		return fmt.Errorf("update master event: %w", err)
	}
	return affectedOne(tag, events.ErrMasterNotFound)
}

func (r *EventRepository) CreateInstance(ctx context.Context, masterID int64, p events.InstanceParams) (_ int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("create_event_instance", start, err) }()

	var id int64
	err = r.queryer().QueryRow(ctx, `
INSERT INTO event_instances (master_event_id, start_time, end_time, location, capacity)
VALUES ($1, $2, $3, $4, $5)
RETURNING event_instance_id`, masterID, p.StartTime, p.EndTime, p.Location, p.Capacity).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, events.ErrMasterNotFound
		}
		return 0, fmt.Errorf("insert event instance: %w", err)
	}
	return id, nil
}

func (r *EventRepository) UpdateInstance(ctx context.Context, id int64, p events.InstanceParams) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("update_event_instance", start, err) }()

	tag, err := r.queryer().Exec(ctx, `
UPDATE event_instances
   SET start_time = $2, end_time = $3, location = $4, capacity = $5
 WHERE event_instance_id = $1`, id, p.StartTime, p.EndTime, p.Location, p.Capacity)
	if err != nil {
		return fmt.Errorf("update event instance: %w", err)
	}
	return affectedOne(tag, events.ErrNotFound)
}

// DeleteInstance removes one occurrence. The master event and any sibling
// instances are kept.
func (r *EventRepository) DeleteInstance(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("delete_event_instance", start, err) }()

	tag, err := r.queryer().Exec(ctx, `DELETE FROM event_instances WHERE event_instance_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event instance: %w", err)
	}
	return affectedOne(tag, events.ErrNotFound)
}
