package events

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreach-portal/server/internal/validation"
)

// memoryRepo keeps masters and instances in maps and records transaction use.
type memoryRepo struct {
	masters   map[int64]MasterEvent
	instances map[int64]Instance
	nextID    int64

	createInstanceErr error

	committed  bool
	rolledBack bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{masters: map[int64]MasterEvent{}, instances: map[int64]Instance{}}
}

func (m *memoryRepo) ListInstances(_ context.Context, opts ListOptions) (ListResult, error) {
	all, _ := m.ListAllInstances(context.Background())
	sort.Slice(all, func(i, j int) bool { return all[i].StartTime.Before(all[j].StartTime) })
	return ListResult{Instances: all, Total: len(all), Page: opts.Page, PageSize: PageSize}, nil
}

func (m *memoryRepo) ListAllInstances(context.Context) ([]Instance, error) {
	out := make([]Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		master := m.masters[inst.MasterID]
		inst.Title, inst.Category, inst.Description = master.Name, master.Type, master.Description
		out = append(out, inst)
	}
	return out, nil
}

func (m *memoryRepo) ListCategories(context.Context) ([]string, error) { return nil, nil }

func (m *memoryRepo) GetInstance(_ context.Context, id int64) (*Instance, error) {
	inst, ok := m.instances[id]
	if !ok {
		return nil, ErrNotFound
	}
	master := m.masters[inst.MasterID]
	inst.Title, inst.Category, inst.Description = master.Name, master.Type, master.Description
	return &inst, nil
}

func (m *memoryRepo) CountUpcoming(_ context.Context, after time.Time) (int, error) {
	n := 0
	for _, inst := range m.instances {
		if inst.StartTime.After(after) {
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) ListMasters(context.Context) ([]MasterEvent, error) { return nil, nil }

func (m *memoryRepo) GetMaster(_ context.Context, id int64) (*MasterEvent, error) {
	master, ok := m.masters[id]
	if !ok {
		return nil, ErrMasterNotFound
	}
	return &master, nil
}

func (m *memoryRepo) CreateMaster(_ context.Context, p MasterParams) (int64, error) {
	m.nextID++
	m.masters[m.nextID] = MasterEvent{ID: m.nextID, Name: p.Name, Type: p.Type, Description: p.Description}
	return m.nextID, nil
}

func (m *memoryRepo) UpdateMaster(_ context.Context, id int64, p MasterParams) error {
	if _, ok := m.masters[id]; !ok {
		return ErrMasterNotFound
	}
	m.masters[id] = MasterEvent{ID: id, Name: p.Name, Type: p.Type, Description: p.Description}
	return nil
}

func (m *memoryRepo) CreateInstance(_ context.Context, masterID int64, p InstanceParams) (int64, error) {
	if m.createInstanceErr != nil {
		return 0, m.createInstanceErr
	}
	m.nextID++
	m.instances[m.nextID] = Instance{ID: m.nextID, MasterID: masterID, StartTime: p.StartTime, EndTime: p.EndTime, Location: p.Location, Capacity: p.Capacity}
	return m.nextID, nil
}

func (m *memoryRepo) UpdateInstance(_ context.Context, id int64, p InstanceParams) error {
	inst, ok := m.instances[id]
	if !ok {
		return ErrNotFound
	}
	inst.StartTime, inst.EndTime, inst.Location, inst.Capacity = p.StartTime, p.EndTime, p.Location, p.Capacity
	m.instances[id] = inst
	return nil
}

func (m *memoryRepo) DeleteInstance(_ context.Context, id int64) error {
	if _, ok := m.instances[id]; !ok {
		return ErrNotFound
	}
	delete(m.instances, id)
	return nil
}

func (m *memoryRepo) BeginTx(context.Context) (Repository, TxCommitter, error) {
	return m, &memoryTx{repo: m}, nil
}

type memoryTx struct {
	repo *memoryRepo
	done bool
}

func (t *memoryTx) Commit(context.Context) error {
	t.repo.committed = true
	t.done = true
	return nil
}

func (t *memoryTx) Rollback(context.Context) error {
	if !t.done {
		t.repo.rolledBack = true
	}
	return nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func intPtr(v int) *int { return &v }

func TestService_CreateWithNewMaster(t *testing.T) {
	svc, repo := newTestService()
	start := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)

	inst, err := svc.Create(context.Background(), WriteRequest{
		Master:   MasterParams{Name: " Resume Workshop ", Type: "Workshop", Description: "Bring a draft"},
		Instance: InstanceParams{StartTime: start, Location: "Library", Capacity: intPtr(25)},
	})
	require.NoError(t, err)

	assert.True(t, repo.committed)
	assert.False(t, repo.rolledBack)
	assert.Equal(t, "Resume Workshop", inst.Title)
	assert.Equal(t, "Workshop", inst.Category)
	assert.Equal(t, 25, *inst.Capacity)
	assert.Equal(t, "Resume Workshop - 05/01/2024", inst.Label())
	assert.Len(t, repo.masters, 1)
}

func TestService_CreateWithExistingMaster(t *testing.T) {
	svc, repo := newTestService()
	masterID, _ := repo.CreateMaster(context.Background(), MasterParams{Name: "Mentoring", Type: "Meetup"})

	inst, err := svc.Create(context.Background(), WriteRequest{
		MasterID: masterID,
		Instance: InstanceParams{StartTime: time.Now().Add(time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, masterID, inst.MasterID)
	assert.Len(t, repo.masters, 1)
}

func TestService_CreateWithUnknownMaster(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.Create(context.Background(), WriteRequest{
		MasterID: 99,
		Instance: InstanceParams{StartTime: time.Now()},
	})
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Contains(t, errs, "master_event_id")
	assert.False(t, repo.committed)
	assert.True(t, repo.rolledBack)
	assert.Empty(t, repo.instances)
}

func TestService_CreateRollsBackWhenInstanceFails(t *testing.T) {
	svc, repo := newTestService()
	repo.createInstanceErr = errors.New("connection reset")

	_, err := svc.Create(context.Background(), WriteRequest{
		Master:   MasterParams{Name: "Career Fair"},
		Instance: InstanceParams{StartTime: time.Now()},
	})
	require.Error(t, err)
	assert.False(t, repo.committed)
	assert.True(t, repo.rolledBack)
}

func TestService_CreateValidation(t *testing.T) {
	svc, repo := newTestService()
	start := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	_, err := svc.Create(context.Background(), WriteRequest{
		Master:   MasterParams{Name: "<script></script>"},
		Instance: InstanceParams{StartTime: start, EndTime: &end, Capacity: intPtr(-1)},
	})
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Contains(t, errs, "title")
	assert.Contains(t, errs, "end_time")
	assert.Contains(t, errs, "capacity")
	assert.False(t, repo.committed)
}

func TestService_Update(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	created, err := svc.Create(ctx, WriteRequest{
		Master:   MasterParams{Name: "Orientation", Type: "Meetup"},
		Instance: InstanceParams{StartTime: start, Location: "Room 1"},
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, WriteRequest{
		Master:   MasterParams{Name: "New Volunteer Orientation", Type: "Training"},
		Instance: InstanceParams{StartTime: start.Add(24 * time.Hour), Location: "Room 2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "New Volunteer Orientation", updated.Title)
	assert.Equal(t, "Room 2", updated.Location)
	assert.Equal(t, created.MasterID, updated.MasterID)
	assert.Len(t, repo.masters, 1)
}

func TestService_UpdateMissing(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Update(context.Background(), 404, WriteRequest{
		Master:   MasterParams{Name: "X"},
		Instance: InstanceParams{StartTime: time.Now()},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_DeleteKeepsMaster(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, WriteRequest{
		Master:   MasterParams{Name: "Tutoring"},
		Instance: InstanceParams{StartTime: time.Now()},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.Empty(t, repo.instances)

	master, err := repo.GetMaster(ctx, created.MasterID)
	require.NoError(t, err)
	assert.Equal(t, "Tutoring", master.Name)

	assert.ErrorIs(t, svc.Delete(ctx, created.ID), ErrNotFound)
}

func TestService_ListClampsPage(t *testing.T) {
	svc, _ := newTestService()

	result, err := svc.List(context.Background(), ListOptions{Page: -3})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
}

func TestService_Upcoming(t *testing.T) {
	svc, repo := newTestService()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	masterID, _ := repo.CreateMaster(context.Background(), MasterParams{Name: "A"})
	_, _ = repo.CreateInstance(context.Background(), masterID, InstanceParams{StartTime: now.Add(-time.Hour)})
	_, _ = repo.CreateInstance(context.Background(), masterID, InstanceParams{StartTime: now.Add(time.Hour)})

	n, err := svc.Upcoming(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
