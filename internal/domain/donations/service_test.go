package donations

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/validation"
)

type stubRepo struct {
	listFn    func(ctx context.Context, opts ListOptions) (ListResult, error)
	createFn  func(ctx context.Context, p Params) (int64, error)
	updateFn  func(ctx context.Context, id int64, p Params) error
	deleteFn  func(ctx context.Context, id int64) error
	summaryFn func(ctx context.Context, ownerID int64) (Summary, error)
}

func (s *stubRepo) ListDonations(ctx context.Context, opts ListOptions) (ListResult, error) {
	return s.listFn(ctx, opts)
}

func (s *stubRepo) GetDonation(context.Context, int64) (*Donation, error) {
	return nil, ErrNotFound
}

func (s *stubRepo) CreateDonation(ctx context.Context, p Params) (int64, error) {
	return s.createFn(ctx, p)
}

func (s *stubRepo) UpdateDonation(ctx context.Context, id int64, p Params) error {
	return s.updateFn(ctx, id, p)
}

func (s *stubRepo) DeleteDonation(ctx context.Context, id int64) error {
	return s.deleteFn(ctx, id)
}

func (s *stubRepo) Summarize(ctx context.Context, ownerID int64) (Summary, error) {
	return s.summaryFn(ctx, ownerID)
}

var (
	admin = auth.Identity{UserID: 1, Role: auth.RoleAdmin}
	donor = auth.Identity{UserID: 7, Role: auth.RoleUser}
)

func TestList_ScopesNonAdminsToOwnDonations(t *testing.T) {
	var seen []ListOptions
	repo := &stubRepo{listFn: func(_ context.Context, opts ListOptions) (ListResult, error) {
		seen = append(seen, opts)
		return ListResult{Page: opts.Page}, nil
	}}
	svc := NewService(repo, zerolog.Nop())

	_, err := svc.List(context.Background(), admin, ListOptions{Page: 0})
	require.NoError(t, err)
	_, err = svc.List(context.Background(), donor, ListOptions{Page: 2, OwnerID: 99})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, int64(0), seen[0].OwnerID)
	assert.Equal(t, 1, seen[0].Page)
	assert.Equal(t, int64(7), seen[1].OwnerID)
}

func TestRecord_UserDonatesAsSelf(t *testing.T) {
	var got Params
	repo := &stubRepo{createFn: func(_ context.Context, p Params) (int64, error) {
		got = p
		return 10, nil
	}}
	svc := NewService(repo, zerolog.Nop())
	date := time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)

	id, err := svc.Record(context.Background(), donor, Params{UserID: 3, Amount: 25.5, Date: &date})
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, 25.5, got.Amount)
}

func TestRecord_AdminPicksDonor(t *testing.T) {
	var got Params
	repo := &stubRepo{createFn: func(_ context.Context, p Params) (int64, error) {
		got = p
		return 11, nil
	}}
	svc := NewService(repo, zerolog.Nop())

	_, err := svc.Record(context.Background(), admin, Params{UserID: 3, Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.UserID)
}

func TestRecord_Validation(t *testing.T) {
	called := false
	repo := &stubRepo{createFn: func(context.Context, Params) (int64, error) {
		called = true
		return 0, nil
	}}
	svc := NewService(repo, zerolog.Nop())

	_, err := svc.Record(context.Background(), admin, Params{Amount: -5})
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Contains(t, errs, "amount")
	assert.Contains(t, errs, "user_id")
	assert.False(t, called)
}

func TestRecord_UnknownDonorIsValidationFailure(t *testing.T) {
	repo := &stubRepo{createFn: func(context.Context, Params) (int64, error) {
		return 0, ErrDonorNotFound
	}}
	svc := NewService(repo, zerolog.Nop())

	_, err := svc.Record(context.Background(), admin, Params{UserID: 404, Amount: 5})
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Contains(t, errs, "user_id")
}

func TestUpdateAndDelete_NotFound(t *testing.T) {
	repo := &stubRepo{
		updateFn: func(context.Context, int64, Params) error { return ErrNotFound },
		deleteFn: func(context.Context, int64) error { return ErrNotFound },
	}
	svc := NewService(repo, zerolog.Nop())

	assert.ErrorIs(t, svc.Update(context.Background(), 5, Params{UserID: 1, Amount: 1}), ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), 5), ErrNotFound)
}

func TestSummary_Scope(t *testing.T) {
	var owners []int64
	repo := &stubRepo{summaryFn: func(_ context.Context, ownerID int64) (Summary, error) {
		owners = append(owners, ownerID)
		return Summary{Count: 2, Amount: 30}, nil
	}}
	svc := NewService(repo, zerolog.Nop())

	_, err := svc.Summary(context.Background(), admin)
	require.NoError(t, err)
	sum, err := svc.Summary(context.Background(), donor)
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 7}, owners)
	assert.Equal(t, Summary{Count: 2, Amount: 30}, sum)
}
