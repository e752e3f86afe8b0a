package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

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
		logger: logger.With().Str("component", "events").Logger(),
		now:    time.Now,
	}
}

// WriteRequest is an add or edit of an instance together with its master
// event. MasterID selects an existing master on add; zero creates Master.
type WriteRequest struct {
	MasterID int64
	Master   MasterParams
	Instance InstanceParams
}

func (req *WriteRequest) clean() validation.Errors {
	req.Master.Name = sanitize.Trimmed(req.Master.Name)
	req.Master.Type = sanitize.Trimmed(req.Master.Type)
	req.Master.Description = sanitize.Trimmed(req.Master.Description)
	req.Instance.Location = sanitize.Trimmed(req.Instance.Location)

	errs := validation.Errors{}
	if req.MasterID == 0 && req.Master.Name == "" {
		errs.Add("title", "This field is required")
	}
	if req.Instance.StartTime.IsZero() {
		errs.Add("start_time", "This field is required")
	}
	if req.Instance.EndTime != nil && req.Instance.EndTime.Before(req.Instance.StartTime) {
		errs.Add("end_time", "Must be after the start time")
	}
	if req.Instance.Capacity != nil && *req.Instance.Capacity < 0 {
		errs.Add("capacity", "Must be at least 0")
	}
	return errs
}

// List returns one page of instances ordered by start time.
func (s *Service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	result, err := s.repo.ListInstances(ctx, opts)
	if err != nil {
		return ListResult{}, fmt.Errorf("failed to list events: %w", err)
	}
	return result, nil
}

// Options returns every instance for the survey picker, ordered by name and
// start time.
func (s *Service) Options(ctx context.Context) ([]Instance, error) {
	list, err := s.repo.ListAllInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list event options: %w", err)
	}
	return list, nil
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	list, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return list, nil
}

func (s *Service) Masters(ctx context.Context) ([]MasterEvent, error) {
	list, err := s.repo.ListMasters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list master events: %w", err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Instance, error) {
	inst, err := s.repo.GetInstance(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return inst, nil
}

// Upcoming counts instances starting after now.
func (s *Service) Upcoming(ctx context.Context) (int, error) {
	n, err := s.repo.CountUpcoming(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to count upcoming events: %w", err)
	}
	return n, nil
}

// Create schedules a new instance. The master event, when new, and the
// instance are written in one transaction.
func (s *Service) Create(ctx context.Context, req WriteRequest) (*Instance, error) {
	if err := req.clean().Err(); err != nil {
		return nil, err
	}

	txRepo, tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	masterID := req.MasterID
	if masterID == 0 {
		masterID, err = txRepo.CreateMaster(ctx, req.Master)
		if err != nil {
			return nil, fmt.Errorf("failed to create master event: %w", err)
		}
	} else if _, err := txRepo.GetMaster(ctx, masterID); err != nil {
		if errors.Is(err, ErrMasterNotFound) {
			return nil, validation.Field("master_event_id", "Unknown event")
		}
		return nil, fmt.Errorf("failed to get master event: %w", err)
	}

	id, err := txRepo.CreateInstance(ctx, masterID, req.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create event instance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Info().Int64("event_instance_id", id).Int64("master_event_id", masterID).Msg("event created")
	return s.Get(ctx, id)
}

// Update edits instance id and its master event in one transaction. Edits to
// the master are visible on every instance that shares it.
func (s *Service) Update(ctx context.Context, id int64, req WriteRequest) (*Instance, error) {
	req.MasterID = 0
	if err := req.clean().Err(); err != nil {
		return nil, err
	}

	txRepo, tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	existing, err := txRepo.GetInstance(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if err := txRepo.UpdateMaster(ctx, existing.MasterID, req.Master); err != nil {
		return nil, fmt.Errorf("failed to update master event: %w", err)
	}
	if err := txRepo.UpdateInstance(ctx, id, req.Instance); err != nil {
		return nil, fmt.Errorf("failed to update event instance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Info().Int64("event_instance_id", id).Msg("event updated")
	return s.Get(ctx, id)
}

// Delete removes instance id. Its master event stays.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteInstance(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete event: %w", err)
	}
	s.logger.Info().Int64("event_instance_id", id).Msg("event deleted")
	return nil
}
