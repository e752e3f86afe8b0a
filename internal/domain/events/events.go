package events

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	ErrNotFound       = errors.New("event not found")
	ErrMasterNotFound = errors.New("master event not found")
)

// PageSize is the number of instances per events list page.
const PageSize = 20

// MasterEvent is a reusable event description. Deleting its instances leaves
// it in place.
type MasterEvent struct {
	ID          int64  `json:"master_event_id"`
	Name        string `json:"event_name"`
	Type        string `json:"event_type"`
	Description string `json:"event_description"`
}

// Instance is one scheduled occurrence of a MasterEvent, joined with the
// master's descriptive fields.
type Instance struct {
	ID          int64      `json:"event_instance_id"`
	MasterID    int64      `json:"master_event_id"`
	Title       string     `json:"title"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"start_at"`
	EndTime     *time.Time `json:"end_at"`
	Location    string     `json:"location_name"`
	Capacity    *int       `json:"capacity"`
}

// Label is how an instance is offered in pickers: "<name> - MM/DD/YYYY".
func (i Instance) Label() string {
	return fmt.Sprintf("%s - %s", i.Title, i.StartTime.Format("01/02/2006"))
}

type MasterParams struct {
	Name        string
	Type        string
	Description string
}

type InstanceParams struct {
	StartTime time.Time
	EndTime   *time.Time
	Location  string
	Capacity  *int
}

// ListOptions carries the raw list query: "search", "category" and the page.
type ListOptions struct {
	Filters url.Values
	Page    int
}

type ListResult struct {
	Instances []Instance
	Total     int
	Page      int
	PageSize  int
}

// Repository is the storage contract for master events and their instances.
type Repository interface {
	ListInstances(ctx context.Context, opts ListOptions) (ListResult, error)
	ListAllInstances(ctx context.Context) ([]Instance, error)
	ListCategories(ctx context.Context) ([]string, error)
	GetInstance(ctx context.Context, id int64) (*Instance, error)
	CountUpcoming(ctx context.Context, after time.Time) (int, error)

	ListMasters(ctx context.Context) ([]MasterEvent, error)
	GetMaster(ctx context.Context, id int64) (*MasterEvent, error)
	CreateMaster(ctx context.Context, params MasterParams) (int64, error)
	UpdateMaster(ctx context.Context, id int64, params MasterParams) error

	CreateInstance(ctx context.Context, masterID int64, params InstanceParams) (int64, error)
	UpdateInstance(ctx context.Context, id int64, params InstanceParams) error
	DeleteInstance(ctx context.Context, id int64) error

	BeginTx(ctx context.Context) (Repository, TxCommitter, error)
}

// TxCommitter finishes a transaction started with BeginTx.
type TxCommitter interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
