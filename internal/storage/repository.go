package storage

import (
	"context"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/domain/donations"
	"github.com/outreach-portal/server/internal/domain/events"
	"github.com/outreach-portal/server/internal/domain/milestones"
	"github.com/outreach-portal/server/internal/domain/surveys"
	"github.com/outreach-portal/server/internal/domain/users"
)

// Repository groups data access by domain.
type Repository interface {
	Users() users.Repository
	Sessions() auth.SessionRepository
	Events() events.Repository
	Donations() donations.Repository
	Surveys() surveys.Repository
	Milestones() milestones.Repository

	Ping(ctx context.Context) error
}
