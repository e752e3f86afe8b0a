package donations

import (
	"context"
	"errors"
	"net/url"
	"time"
)

var (
	ErrNotFound      = errors.New("donation not found")
	ErrDonorNotFound = errors.New("donor not found")
)

const PageSize = 50

type Donation struct {
	ID        int64      `json:"donation_id"`
	UserID    int64      `json:"user_id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	Amount    float64    `json:"amount"`
	Date      *time.Time `json:"donation_date"`
}

func (d Donation) DonorName() string {
	return d.FirstName + " " + d.LastName
}

type Params struct {
	UserID int64
	Amount float64
	Date   *time.Time
}

// ListOptions carries the raw "search" filter and page. A non-zero OwnerID
// restricts the list to one donor.
type ListOptions struct {
	Filters url.Values
	Page    int
	OwnerID int64
}

type ListResult struct {
	Donations []Donation
	Total     int
	Page      int
	PageSize  int
}

// Summary is a count and sum of donations.
type Summary struct {
	Count  int
	Amount float64
}

type Repository interface {
	ListDonations(ctx context.Context, opts ListOptions) (ListResult, error)
	GetDonation(ctx context.Context, id int64) (*Donation, error)
	CreateDonation(ctx context.Context, params Params) (int64, error)
	UpdateDonation(ctx context.Context, id int64, params Params) error
	DeleteDonation(ctx context.Context, id int64) error
	// Summarize totals every donation, or those of ownerID when non-zero.
	Summarize(ctx context.Context, ownerID int64) (Summary, error)
}
