package milestones

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/sanitize"
	"github.com/outreach-portal/server/internal/validation"
)

// MaxTitleLength bounds milestone titles.
const MaxTitleLength = 255

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "milestones").Logger(),
		now:    time.Now,
	}
}

// List returns a page of milestones, all of them for administrators and the
// actor's own otherwise.
func (s *Service) List(ctx context.Context, actor auth.Identity, opts ListOptions) (ListResult, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if !actor.IsAdmin() {
		opts.OwnerID = actor.UserID
	}
	result, err := s.repo.ListMilestones(ctx, opts)
	if err != nil {
		return ListResult{}, fmt.Errorf("failed to list milestones: %w", err)
	}
	return result, nil
}

// Create records a milestone for p.UserID. A zero date means today.
func (s *Service) Create(ctx context.Context, p Params) (int64, error) {
	p.Title = sanitize.Trimmed(p.Title)

	errs := validation.Errors{}
	if p.UserID <= 0 {
		errs.Add("user_id", "This field is required")
	}
	if p.Title == "" {
		errs.Add("title", "This field is required")
	} else if len(p.Title) > MaxTitleLength {
		errs.Add("title", fmt.Sprintf("Must be at most %d characters long", MaxTitleLength))
	}
	if err := errs.Err(); err != nil {
		return 0, err
	}
	if p.Date.IsZero() {
		p.Date = s.now().UTC().Truncate(24 * time.Hour)
	}

	id, err := s.repo.CreateMilestone(ctx, p)
	if err != nil {
		if errors.Is(err, ErrOwnerNotFound) {
			return 0, validation.Field("user_id", "Unknown participant")
		}
		return 0, fmt.Errorf("failed to create milestone: %w", err)
	}

	s.logger.Info().Int64("milestone_id", id).Int64("user_id", p.UserID).Msg("milestone created")
	return id, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteMilestone(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete milestone: %w", err)
	}
	s.logger.Info().Int64("milestone_id", id).Msg("milestone deleted")
	return nil
}

// Count returns how many milestones the actor can see.
func (s *Service) Count(ctx context.Context, actor auth.Identity) (int, error) {
	var owner int64
	if !actor.IsAdmin() {
		owner = actor.UserID
	}
	n, err := s.repo.CountMilestones(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("failed to count milestones: %w", err)
	}
	return n, nil
}
