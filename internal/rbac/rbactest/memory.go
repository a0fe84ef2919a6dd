// Package rbactest provides an in-memory rbac.Repository for tests.
package rbactest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hrflow/hrflow/internal/rbac"
)

type state struct {
	nextPermissionID int64
	nextRoleID       int64
	permissions      map[int64]rbac.Permission
	roles            map[int64]rbac.Role
	rolePermissions  map[int64]map[int64]struct{}
	users            map[int64]string
	accounts         map[int64]rbac.Account
	userRoles        map[int64]int64
}

func (s *state) clone() *state {
	out := &state{
		nextPermissionID: s.nextPermissionID,
		nextRoleID:       s.nextRoleID,
		permissions:      make(map[int64]rbac.Permission, len(s.permissions)),
		roles:            make(map[int64]rbac.Role, len(s.roles)),
		rolePermissions:  make(map[int64]map[int64]struct{}, len(s.rolePermissions)),
		users:            make(map[int64]string, len(s.users)),
		accounts:         make(map[int64]rbac.Account, len(s.accounts)),
		userRoles:        make(map[int64]int64, len(s.userRoles)),
	}
	for k, v := range s.permissions {
		out.permissions[k] = v
	}
	for k, v := range s.roles {
		out.roles[k] = v
	}
	for k, v := range s.rolePermissions {
		set := make(map[int64]struct{}, len(v))
		for id := range v {
			set[id] = struct{}{}
		}
		out.rolePermissions[k] = set
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.userRoles {
		out.userRoles[k] = v
	}
	return out
}

// Memory implements rbac.Repository. Transactions run one at a time against a
// copy of the state that replaces the original only when fn succeeds.
type Memory struct {
	mu           sync.Mutex
	st           *state
	readErr      error
	reads        int
	betweenReads func()
	failOn       map[string]error
}

// NewMemory returns an empty repository.
func NewMemory() *Memory {
	return &Memory{st: &state{
		permissions:     make(map[int64]rbac.Permission),
		roles:           make(map[int64]rbac.Role),
		rolePermissions: make(map[int64]map[int64]struct{}),
		users:           make(map[int64]string),
		accounts:        make(map[int64]rbac.Account),
		userRoles:       make(map[int64]int64),
	}}
}

// NewSeeded returns a repository holding the catalog and the system roles.
func NewSeeded(ctx context.Context) (*Memory, error) {
	repo := NewMemory()
	if err := rbac.NewService(repo, nil, nil).Seed(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// AddUser registers a user with the employee label and no role.
func (m *Memory) AddUser(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.users[userID] = "employee"
}

// SetReadError makes AssignedRole fail with err until cleared with nil.
func (m *Memory) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// BetweenAssignedRoleReads makes the next AssignedRole call read the role id
// and the role separately, running fn in between without holding the lock.
func (m *Memory) BetweenAssignedRoleReads(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.betweenReads = fn
}

// FailOn makes the named transactional operation return err.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == nil {
		m.failOn = make(map[string]error)
	}
	m.failOn[op] = err
}

// AssignedRoleReads reports how many times AssignedRole hit the store.
func (m *Memory) AssignedRoleReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// UserRoleID returns the role row held by the user.
func (m *Memory) UserRoleID(userID int64) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.st.userRoles[userID]
	return id, ok
}

// UserLabel returns the coarse label stored on the user.
func (m *Memory) UserLabel(userID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.users[userID]
}

// Account returns the stored account row.
func (m *Memory) Account(userID int64) (rbac.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.st.accounts[userID]
	return a, ok
}

// AccountIDs lists accounts in id order.
func (m *Memory) AccountIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.st.accounts))
	for id := range m.st.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// UpdateAccount applies fn to the stored account, keeping emails unique.
func (m *Memory) UpdateAccount(userID int64, fn func(*rbac.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.st.accounts[userID]
	if !ok {
		return rbac.ErrUserNotFound
	}
	fn(&a)
	for id, other := range m.st.accounts {
		if id != userID && other.Email == a.Email {
			return rbac.ErrEmailTaken
		}
	}
	m.st.accounts[userID] = a
	return nil
}

// RemoveUser deletes the user and its assignment.
func (m *Memory) RemoveUser(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.users[userID]; !ok {
		return false
	}
	delete(m.st.users, userID)
	delete(m.st.accounts, userID)
	delete(m.st.userRoles, userID)
	return true
}

// RolePermissionCount reports permission rows attached to roleID.
func (m *Memory) RolePermissionCount(roleID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.st.rolePermissions[roleID])
}

func (m *Memory) ListPermissions(context.Context) ([]rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rbac.Permission, 0, len(m.st.permissions))
	for _, p := range m.st.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) ListRoles(context.Context) ([]rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rbac.Role, 0, len(m.st.roles))
	for id := range m.st.roles {
		out = append(out, m.st.role(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) GetRole(_ context.Context, id int64) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.roles[id]; !ok {
		return rbac.Role{}, rbac.ErrRoleNotFound
	}
	return m.st.role(id), nil
}

func (m *Memory) GetRoleByName(_ context.Context, name string) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.st.roleID(name)
	if !ok {
		return rbac.Role{}, rbac.ErrRoleNotFound
	}
	return m.st.role(id), nil
}

func (m *Memory) AssignedRole(_ context.Context, userID int64) (rbac.Role, bool, error) {
	m.mu.Lock()
	m.reads++
	if m.readErr != nil {
		m.mu.Unlock()
		return rbac.Role{}, false, m.readErr
	}
	roleID, ok := m.st.userRoles[userID]
	hook := m.betweenReads
	m.betweenReads = nil
	if !ok {
		m.mu.Unlock()
		return rbac.Role{}, false, nil
	}
	if hook != nil {
		m.mu.Unlock()
		hook()
		m.mu.Lock()
	}
	defer m.mu.Unlock()
	if _, exists := m.st.roles[roleID]; !exists {
		return rbac.Role{}, false, rbac.ErrRoleNotFound
	}
	return m.st.role(roleID), true, nil
}

func (m *Memory) UsersWithPermission(_ context.Context, permission string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for userID, roleID := range m.st.userRoles {
		for _, name := range m.st.role(roleID).Permissions {
			if name == permission {
				ids = append(ids, userID)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) WithTx(ctx context.Context, fn func(context.Context, rbac.TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft := m.st.clone()
	if err := fn(ctx, &memoryTx{st: draft, failOn: m.failOn}); err != nil {
		return err
	}
	m.st = draft
	return nil
}

func (s *state) roleID(name string) (int64, bool) {
	for id, r := range s.roles {
		if r.Name == name {
			return id, true
		}
	}
	return 0, false
}

func (s *state) role(id int64) rbac.Role {
	r := s.roles[id]
	names := make([]string, 0, len(s.rolePermissions[id]))
	for pid := range s.rolePermissions[id] {
		names = append(names, s.permissions[pid].Name)
	}
	sort.Strings(names)
	r.Permissions = names
	return r
}

type memoryTx struct {
	st     *state
	failOn map[string]error
}

func (t *memoryTx) fail(op string) error {
	return t.failOn[op]
}

func (t *memoryTx) LockRole(_ context.Context, id int64) (rbac.Role, error) {
	r, ok := t.st.roles[id]
	if !ok {
		return rbac.Role{}, rbac.ErrRoleNotFound
	}
	return r, nil
}

func (t *memoryTx) RoleNameExists(_ context.Context, name string, excludeID int64) (bool, error) {
	id, ok := t.st.roleID(name)
	return ok && id != excludeID, nil
}

func (t *memoryTx) InsertRole(_ context.Context, name string, system bool) (rbac.Role, error) {
	if _, ok := t.st.roleID(name); ok {
		return rbac.Role{}, rbac.ErrRoleNameTaken
	}
	t.st.nextRoleID++
	now := time.Now().UTC()
	r := rbac.Role{ID: t.st.nextRoleID, Name: name, IsSystem: system, CreatedAt: now, UpdatedAt: now}
	t.st.roles[r.ID] = r
	return r, nil
}

func (t *memoryTx) SaveRole(_ context.Context, id int64, name string) (rbac.Role, error) {
	r, ok := t.st.roles[id]
	if !ok {
		return rbac.Role{}, rbac.ErrRoleNotFound
	}
	if other, taken := t.st.roleID(name); taken && other != id {
		return rbac.Role{}, rbac.ErrRoleNameTaken
	}
	r.Name = name
	r.UpdatedAt = time.Now().UTC()
	t.st.roles[id] = r
	return r, nil
}

func (t *memoryTx) DeleteRole(_ context.Context, id int64) error {
	if _, ok := t.st.roles[id]; !ok {
		return rbac.ErrRoleNotFound
	}
	delete(t.st.rolePermissions, id)
	delete(t.st.roles, id)
	return nil
}

func (t *memoryTx) EnsureRole(ctx context.Context, name string, system bool) (rbac.Role, error) {
	if id, ok := t.st.roleID(name); ok {
		r := t.st.roles[id]
		r.IsSystem = system
		t.st.roles[id] = r
		return r, nil
	}
	return t.InsertRole(ctx, name, system)
}

func (t *memoryTx) PermissionIDs(_ context.Context, names []string) (map[string]int64, error) {
	out := make(map[string]int64, len(names))
	for _, name := range names {
		for id, p := range t.st.permissions {
			if p.Name == name {
				out[name] = id
			}
		}
	}
	return out, nil
}

func (t *memoryTx) ReplaceRolePermissions(_ context.Context, roleID int64, permissionIDs []int64) error {
	set := make(map[int64]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		set[id] = struct{}{}
	}
	t.st.rolePermissions[roleID] = set
	return nil
}

func (t *memoryTx) UpsertPermission(_ context.Context, name, category string) (int64, error) {
	for id, p := range t.st.permissions {
		if p.Name == name {
			p.Category = category
			t.st.permissions[id] = p
			return id, nil
		}
	}
	t.st.nextPermissionID++
	id := t.st.nextPermissionID
	t.st.permissions[id] = rbac.Permission{ID: id, Name: name, Category: category}
	return id, nil
}

func (t *memoryTx) InsertAccount(_ context.Context, acct rbac.Account, label string) (int64, error) {
	if err := t.fail("InsertAccount"); err != nil {
		return 0, err
	}
	var id int64
	for userID, other := range t.st.accounts {
		if other.Email == acct.Email {
			return 0, rbac.ErrEmailTaken
		}
		if userID > id {
			id = userID
		}
	}
	for userID := range t.st.users {
		if userID > id {
			id = userID
		}
	}
	id++
	t.st.users[id] = label
	t.st.accounts[id] = acct
	return id, nil
}

func (t *memoryTx) DetachRoleUsers(_ context.Context, roleID int64) (int64, error) {
	var n int64
	for userID, rid := range t.st.userRoles {
		if rid == roleID {
			delete(t.st.userRoles, userID)
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) LockUser(_ context.Context, userID int64) error {
	if _, ok := t.st.users[userID]; !ok {
		return rbac.ErrUserNotFound
	}
	return nil
}

func (t *memoryTx) ReplaceUserRole(_ context.Context, userID, roleID int64) error {
	if err := t.fail("ReplaceUserRole"); err != nil {
		return err
	}
	if _, ok := t.st.roles[roleID]; !ok {
		return rbac.ErrRoleNotFound
	}
	t.st.userRoles[userID] = roleID
	return nil
}

func (t *memoryTx) SetUserRoleLabel(_ context.Context, userID int64, label string) error {
	t.st.users[userID] = label
	return nil
}
