package dashboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/domain/donations"
	"github.com/outreach-portal/server/internal/domain/users"
)

type UserStats interface {
	Stats(ctx context.Context) (users.Stats, error)
}

type DonationSummary interface {
	Summary(ctx context.Context, actor auth.Identity) (donations.Summary, error)
}

type UpcomingEvents interface {
	Upcoming(ctx context.Context) (int, error)
}

// ScopedCounter counts the rows visible to actor.
type ScopedCounter interface {
	Count(ctx context.Context, actor auth.Identity) (int, error)
}

// Stats is what the dashboard shows. Users is only filled for
// administrators.
type Stats struct {
	Users          users.Stats
	Donations      donations.Summary
	UpcomingEvents int
	Surveys        int
	Milestones     int
}

type Service struct {
	users      UserStats
	donations  DonationSummary
	events     UpcomingEvents
	surveys    ScopedCounter
	milestones ScopedCounter
}

func NewService(u UserStats, d DonationSummary, e UpcomingEvents, s ScopedCounter, m ScopedCounter) *Service {
	return &Service{users: u, donations: d, events: e, surveys: s, milestones: m}
}

// Stats gathers the dashboard figures for actor concurrently. The first
// failure cancels the rest.
func (s *Service) Stats(ctx context.Context, actor auth.Identity) (Stats, error) {
	var stats Stats
	g, ctx := errgroup.WithContext(ctx)

	if actor.IsAdmin() {
		g.Go(func() error {
			u, err := s.users.Stats(ctx)
			stats.Users = u
			return err
		})
	}
	g.Go(func() error {
		d, err := s.donations.Summary(ctx, actor)
		stats.Donations = d
		return err
	})
	g.Go(func() error {
		n, err := s.events.Upcoming(ctx)
		stats.UpcomingEvents = n
		return err
	})
	g.Go(func() error {
		n, err := s.surveys.Count(ctx, actor)
		stats.Surveys = n
		return err
	})
	g.Go(func() error {
		n, err := s.milestones.Count(ctx, actor)
		stats.Milestones = n
		return err
	})

	if err := g.Wait(); err != nil {
		return Stats{}, fmt.Errorf("failed to load dashboard: %w", err)
	}
	return stats, nil
}
