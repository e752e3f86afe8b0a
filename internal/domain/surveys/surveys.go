package surveys

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/outreach-portal/server/internal/domain/milestones"
)

var (
	ErrNotFound      = errors.New("registration not found")
	ErrEventNotFound = errors.New("event instance not found")
)

const PageSize = 50

// Status is the attendance state of a registration.
type Status string

const (
	StatusRegistered Status = "registered"
	StatusAttended   Status = "attended"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
)

// Statuses lists every Status in display order.
var Statuses = []Status{StatusRegistered, StatusAttended, StatusCancelled, StatusNoShow}

func ValidStatus(s string) bool {
	for _, st := range Statuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

// NullRating is the filter token selecting registrations without a
// satisfaction rating.
const NullRating = "N/A"

// Answers are the survey fields stored on a registration. Ratings are 1 to 5.
type Answers struct {
	Satisfaction   *int   `json:"survey_satisfaction"`
	Usefulness     *int   `json:"survey_usefulness"`
	Instructor     *int   `json:"survey_instructor"`
	Recommendation *int   `json:"survey_recommendation"`
	Comments       string `json:"survey_comments"`
}

// Registration links a user to an event instance and carries their survey.
type Registration struct {
	ID              int64      `json:"registration_id"`
	UserID          int64      `json:"user_id"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	EventInstanceID int64      `json:"event_instance_id"`
	EventTitle      string     `json:"event_title"`
	EventDate       time.Time  `json:"event_date"`
	Status          Status     `json:"registration_status"`
	CheckInTime     *time.Time `json:"check_in_time"`
	Answers
	CreatedAt time.Time `json:"created_at"`
}

type ListOptions struct {
	Filters url.Values
	Page    int
	OwnerID int64
}

type ListResult struct {
	Registrations []Registration
	Total         int
	Page          int
	PageSize      int
}

type Repository interface {
	ListRegistrations(ctx context.Context, opts ListOptions) (ListResult, error)
	GetRegistration(ctx context.Context, id int64) (*Registration, error)
	// EnsureRegistration returns the id of the (user, instance) registration,
	// inserting one with StatusRegistered when absent.
	EnsureRegistration(ctx context.Context, userID, instanceID int64) (int64, error)
	UpdateAnswers(ctx context.Context, id int64, answers Answers) error
	UpdateRegistration(ctx context.Context, id int64, status Status, answers Answers) error
	DeleteRegistration(ctx context.Context, id int64) error
	CountRegistrations(ctx context.Context, ownerID int64) (int, error)
	CreateMilestone(ctx context.Context, params milestones.Params) (int64, error)

	BeginTx(ctx context.Context) (Repository, TxCommitter, error)
}

type TxCommitter interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
