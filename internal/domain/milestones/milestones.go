package milestones

import (
	"context"
	"errors"
	"net/url"
	"time"
)

var (
	ErrNotFound      = errors.New("milestone not found")
	ErrOwnerNotFound = errors.New("milestone owner not found")
)

const PageSize = 50

type Milestone struct {
	ID        int64     `json:"milestone_id"`
	UserID    int64     `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Title     string    `json:"title"`
	Date      time.Time `json:"milestone_date"`
}

type Params struct {
	UserID int64
	Title  string
	Date   time.Time
}

type ListOptions struct {
	Filters url.Values
	Page    int
	OwnerID int64
}

type ListResult struct {
	Milestones []Milestone
	Total      int
	Page       int
	PageSize   int
}

type Repository interface {
	ListMilestones(ctx context.Context, opts ListOptions) (ListResult, error)
	CreateMilestone(ctx context.Context, params Params) (int64, error)
	DeleteMilestone(ctx context.Context, id int64) error
	CountMilestones(ctx context.Context, ownerID int64) (int, error)
}
