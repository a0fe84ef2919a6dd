package departments_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrflow/hrflow/internal/departments"
	"github.com/hrflow/hrflow/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	depts   map[int64]departments.Department
	users   map[int64]string
	members map[int64]int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		depts:   map[int64]departments.Department{},
		users:   map[int64]string{1: "Admin", 2: "Morgan"},
		members: map[int64]int64{},
	}
}

func (m *memoryRepo) decorate(d departments.Department) departments.Department {
	d.ManagerName = nil
	if d.ManagerID != nil {
		name := m.users[*d.ManagerID]
		d.ManagerName = &name
	}
	d.EmployeeCount = 0
	for _, dept := range m.members {
		if dept == d.ID {
			d.EmployeeCount++
		}
	}
	return d
}

func (m *memoryRepo) nameTaken(name string, except int64) bool {
	for id, d := range m.depts {
		if id != except && d.Name == name {
			return true
		}
	}
	return false
}

func (m *memoryRepo) ListDepartments(context.Context) ([]departments.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []departments.Department
	for _, d := range m.depts {
		out = append(out, m.decorate(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepo) GetDepartment(_ context.Context, id int64) (departments.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.depts[id]
	if !ok {
		return departments.Department{}, departments.ErrDepartmentNotFound
	}
	return m.decorate(d), nil
}

func (m *memoryRepo) InsertDepartment(_ context.Context, in departments.CreateInput) (departments.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTaken(in.Name, 0) {
		return departments.Department{}, departments.ErrNameTaken
	}
	if in.ManagerID != nil {
		if _, ok := m.users[*in.ManagerID]; !ok {
			return departments.Department{}, departments.ErrUnknownManager
		}
	}
	m.nextID++
	now := time.Now().UTC()
	d := departments.Department{ID: m.nextID, Name: in.Name, ManagerID: in.ManagerID, CreatedAt: now, UpdatedAt: now}
	m.depts[d.ID] = d
	return m.decorate(d), nil
}

func (m *memoryRepo) UpdateDepartment(_ context.Context, id int64, in departments.UpdateInput) (departments.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.depts[id]
	if !ok {
		return departments.Department{}, departments.ErrDepartmentNotFound
	}
	if in.Name != nil {
		if m.nameTaken(*in.Name, id) {
			return departments.Department{}, departments.ErrNameTaken
		}
		d.Name = *in.Name
	}
	if in.ManagerSet {
		if in.ManagerID != nil {
			if _, ok := m.users[*in.ManagerID]; !ok {
				return departments.Department{}, departments.ErrUnknownManager
			}
		}
		d.ManagerID = in.ManagerID
	}
	d.UpdatedAt = time.Now().UTC()
	m.depts[id] = d
	return m.decorate(d), nil
}

func (m *memoryRepo) DeleteDepartment(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.depts[id]; !ok {
		return departments.ErrDepartmentNotFound
	}
	for _, dept := range m.members {
		if dept == id {
			return departments.ErrHasEmployees
		}
	}
	delete(m.depts, id)
	return nil
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }

func TestCreateDepartment(t *testing.T) {
	ctx := context.Background()
	svc := departments.NewService(newMemoryRepo(), nil)

	d, err := svc.Create(ctx, departments.CreateInput{Name: "  Sales ", ManagerID: int64Ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, "Sales", d.Name)
	require.NotNil(t, d.ManagerName)
	assert.Equal(t, "Morgan", *d.ManagerName)

	_, err = svc.Create(ctx, departments.CreateInput{Name: "Sales"})
	assert.ErrorIs(t, err, departments.ErrNameTaken)
	assert.True(t, errors.Is(err, shared.ErrConflict))

	_, err = svc.Create(ctx, departments.CreateInput{Name: "   "})
	assert.ErrorIs(t, err, departments.ErrNameRequired)

	_, err = svc.Create(ctx, departments.CreateInput{Name: "Ops", ManagerID: int64Ptr(99)})
	assert.ErrorIs(t, err, departments.ErrUnknownManager)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestUpdateDepartment(t *testing.T) {
	ctx := context.Background()
	svc := departments.NewService(newMemoryRepo(), nil)
	sales, err := svc.Create(ctx, departments.CreateInput{Name: "Sales", ManagerID: int64Ptr(2)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, departments.CreateInput{Name: "Ops"})
	require.NoError(t, err)

	got, err := svc.Update(ctx, sales.ID, departments.UpdateInput{Name: strPtr("Field Sales")})
	require.NoError(t, err)
	assert.Equal(t, "Field Sales", got.Name)
	assert.Equal(t, int64Ptr(2), got.ManagerID, "manager kept when manager_id absent")

	got, err = svc.Update(ctx, sales.ID, departments.UpdateInput{ManagerSet: true})
	require.NoError(t, err)
	assert.Nil(t, got.ManagerID)
	assert.Nil(t, got.ManagerName)

	_, err = svc.Update(ctx, sales.ID, departments.UpdateInput{Name: strPtr("Ops")})
	assert.ErrorIs(t, err, departments.ErrNameTaken)

	_, err = svc.Update(ctx, sales.ID, departments.UpdateInput{Name: strPtr(" ")})
	assert.ErrorIs(t, err, departments.ErrNameRequired)

	_, err = svc.Update(ctx, 404, departments.UpdateInput{Name: strPtr("Nope")})
	assert.ErrorIs(t, err, departments.ErrDepartmentNotFound)
}

func TestDeleteDepartmentWithMembers(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := departments.NewService(repo, nil)
	d, err := svc.Create(ctx, departments.CreateInput{Name: "Sales"})
	require.NoError(t, err)
	repo.members[2] = d.ID

	got, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.EmployeeCount)

	err = svc.Delete(ctx, d.ID)
	assert.ErrorIs(t, err, departments.ErrHasEmployees)
	assert.True(t, errors.Is(err, shared.ErrValidation))

	delete(repo.members, 2)
	require.NoError(t, svc.Delete(ctx, d.ID))
	_, err = svc.Get(ctx, d.ID)
	assert.ErrorIs(t, err, departments.ErrDepartmentNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, d.ID), departments.ErrDepartmentNotFound)
}
