package donations

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/metrics"
	"github.com/outreach-portal/server/internal/validation"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "donations").Logger(),
	}
}

func checkParams(p Params) error {
	errs := validation.Errors{}
	if p.UserID <= 0 {
		errs.Add("user_id", "This field is required")
	}
	if p.Amount <= 0 || math.IsNaN(p.Amount) || math.IsInf(p.Amount, 0) {
		errs.Add("amount", "Must be greater than 0")
	}
	return errs.Err()
}

// List returns a page of donations. Administrators see every donation;
// anyone else sees only their own.
func (s *Service) List(ctx context.Context, actor auth.Identity, opts ListOptions) (ListResult, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if !actor.IsAdmin() {
		opts.OwnerID = actor.UserID
	}
	result, err := s.repo.ListDonations(ctx, opts)
	if err != nil {
		return ListResult{}, fmt.Errorf("failed to list donations: %w", err)
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Donation, error) {
	d, err := s.repo.GetDonation(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get donation: %w", err)
	}
	return d, nil
}

// Record stores a donation. Administrators may record one for any donor;
// everyone else donates as themselves whatever UserID says.
func (s *Service) Record(ctx context.Context, actor auth.Identity, p Params) (int64, error) {
	enteredBy := "admin"
	if !actor.IsAdmin() {
		p.UserID = actor.UserID
		enteredBy = "self"
	}
	if err := checkParams(p); err != nil {
		return 0, err
	}

	id, err := s.repo.CreateDonation(ctx, p)
	if err != nil {
		if errors.Is(err, ErrDonorNotFound) {
			return 0, validation.Field("user_id", "Unknown participant")
		}
		return 0, fmt.Errorf("failed to record donation: %w", err)
	}

	metrics.DonationsRecorded.WithLabelValues(enteredBy).Inc()
	s.logger.Info().Int64("donation_id", id).Int64("user_id", p.UserID).Int64("actor_id", actor.UserID).Msg("donation recorded")
	return id, nil
}

func (s *Service) Update(ctx context.Context, id int64, p Params) error {
	if err := checkParams(p); err != nil {
		return err
	}
	if err := s.repo.UpdateDonation(ctx, id, p); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return err
		case errors.Is(err, ErrDonorNotFound):
			return validation.Field("user_id", "Unknown participant")
		}
		return fmt.Errorf("failed to update donation: %w", err)
	}
	s.logger.Info().Int64("donation_id", id).Msg("donation updated")
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteDonation(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete donation: %w", err)
	}
	s.logger.Info().Int64("donation_id", id).Msg("donation deleted")
	return nil
}

// Summary totals all donations for administrators and the actor's own
// otherwise.
func (s *Service) Summary(ctx context.Context, actor auth.Identity) (Summary, error) {
	var owner int64
	if !actor.IsAdmin() {
		owner = actor.UserID
	}
	sum, err := s.repo.Summarize(ctx, owner)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to summarize donations: %w", err)
	}
	return sum, nil
}
