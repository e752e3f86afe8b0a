package surveys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/domain/milestones"
	"github.com/outreach-portal/server/internal/metrics"
	"github.com/outreach-portal/server/internal/sanitize"
	"github.com/outreach-portal/server/internal/validation"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "surveys").Logger(),
		now:    time.Now,
	}
}

// SubmitRequest is a survey filled in by a participant.
type SubmitRequest struct {
	EventInstanceID int64
	Answers
	Milestone string
}

func checkRating(errs validation.Errors, field string, v *int) {
	if v != nil && (*v < 1 || *v > 5) {
		errs.Add(field, "Must be between 1 and 5")
	}
}

func (a *Answers) clean(errs validation.Errors) {
	a.Comments = sanitize.Trimmed(a.Comments)
	checkRating(errs, "satisfaction", a.Satisfaction)
	checkRating(errs, "usefulness", a.Usefulness)
	checkRating(errs, "instructor", a.Instructor)
	checkRating(errs, "recommendation", a.Recommendation)
}

// List returns a page of registrations, all of them for administrators and
// the actor's own otherwise.
func (s *Service) List(ctx context.Context, actor auth.Identity, opts ListOptions) (ListResult, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if !actor.IsAdmin() {
		opts.OwnerID = actor.UserID
	}
	result, err := s.repo.ListRegistrations(ctx, opts)
	if err != nil {
		return ListResult{}, fmt.Errorf("failed to list surveys: %w", err)
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Registration, error) {
	reg, err := s.repo.GetRegistration(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get survey: %w", err)
	}
	return reg, nil
}

// Submit stores the actor's survey for an event instance. A registration is
// created when the actor has none for the instance, so the pair always ends
// with exactly one row. The instructor rating defaults to satisfaction, and
// non-empty milestone text becomes a milestone dated today. Everything is
// written in one transaction.
func (s *Service) Submit(ctx context.Context, actor auth.Identity, req SubmitRequest) (int64, error) {
	errs := validation.Errors{}
	if req.EventInstanceID <= 0 {
		errs.Add("event_id", "This field is required")
	}
	req.Answers.clean(errs)
	req.Milestone = sanitize.Trimmed(req.Milestone)
	if len(req.Milestone) > milestones.MaxTitleLength {
		errs.Add("milestones", fmt.Sprintf("Must be at most %d characters long", milestones.MaxTitleLength))
	}
	if err := errs.Err(); err != nil {
		return 0, err
	}
	if req.Instructor == nil {
		req.Instructor = req.Satisfaction
	}

	txRepo, tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	id, err := txRepo.EnsureRegistration(ctx, actor.UserID, req.EventInstanceID)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return 0, validation.Field("event_id", "Unknown event")
		}
		return 0, fmt.Errorf("failed to register for event: %w", err)
	}
	if err := txRepo.UpdateAnswers(ctx, id, req.Answers); err != nil {
		return 0, fmt.Errorf("failed to save survey: %w", err)
	}
	if req.Milestone != "" {
		if _, err := txRepo.CreateMilestone(ctx, milestones.Params{
			UserID: actor.UserID,
			Title:  req.Milestone,
			Date:   s.now().UTC().Truncate(24 * time.Hour),
		}); err != nil {
			return 0, fmt.Errorf("failed to save milestone: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	metrics.SurveySubmissions.Inc()
	s.logger.Info().Int64("registration_id", id).Int64("user_id", actor.UserID).Bool("milestone", req.Milestone != "").Msg("survey submitted")
	return id, nil
}

// Update is an administrator's edit of a registration's status and answers.
func (s *Service) Update(ctx context.Context, id int64, status Status, answers Answers) error {
	errs := validation.Errors{}
	if !ValidStatus(string(status)) {
		errs.Add("status", "Must be one of: registered, attended, cancelled, no-show")
	}
	answers.clean(errs)
	if err := errs.Err(); err != nil {
		return err
	}

	if err := s.repo.UpdateRegistration(ctx, id, status, answers); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update survey: %w", err)
	}
	s.logger.Info().Int64("registration_id", id).Str("status", string(status)).Msg("survey updated")
	return nil
}

// Delete removes a registration. Milestones created from it stay.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteRegistration(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete survey: %w", err)
	}
	s.logger.Info().Int64("registration_id", id).Msg("survey deleted")
	return nil
}

// Count returns how many registrations the actor can see.
func (s *Service) Count(ctx context.Context, actor auth.Identity) (int, error) {
	var owner int64
	if !actor.IsAdmin() {
		owner = actor.UserID
	}
	n, err := s.repo.CountRegistrations(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("failed to count surveys: %w", err)
	}
	return n, nil
}
