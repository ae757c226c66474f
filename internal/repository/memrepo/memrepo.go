// Package memrepo is a thread-safe in-memory implementation of the user
// and role repositories, used by tests and local experiments in place of
// MySQL. It mirrors the MySQL semantics the services rely on: emails are
// unique and case-insensitive, missing rows yield repository.ErrNotFound,
// and updates are last-write-wins.
package memrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/bookshelf-auth/internal/model"
	"github.com/iliyamo/bookshelf-auth/internal/repository"
)

// Repo stores users, roles and permissions in maps.
type Repo struct {
	mu sync.RWMutex

	nextID  uint64
	users   map[uint64]*model.User
	byEmail map[string]uint64

	roles  map[string]model.Role
	perms  map[uint64]model.Permission
	grants map[uint64][]uint64
}

// New returns an empty repository.
func New() *Repo {
	return &Repo{
		users:   make(map[uint64]*model.User),
		byEmail: make(map[string]uint64),
		roles:   make(map[string]model.Role),
		perms:   make(map[uint64]model.Permission),
		grants:  make(map[uint64][]uint64),
	}
}

// AddRole registers a role granting the named permissions, creating the
// permissions as needed.
func (r *Repo) AddRole(name string, permissions ...string) model.Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	role := model.Role{ID: uint64(len(r.roles) + 1), Name: name}
	r.roles[name] = role
	for _, p := range permissions {
		r.grants[role.ID] = append(r.grants[role.ID], r.permissionLocked(p).ID)
	}
	return role
}

// AddPermission registers a permission not granted to any role.
func (r *Repo) AddPermission(name string) model.Permission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.permissionLocked(name)
}

func (r *Repo) permissionLocked(name string) model.Permission {
	for _, p := range r.perms {
		if p.Name == name {
			return p
		}
	}
	p := model.Permission{ID: uint64(len(r.perms) + 1), Name: name}
	r.perms[p.ID] = p
	return p
}

// AssignRole changes the role of a user without touching any cache.
func (r *Repo) AssignRole(userID uint64, roleName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return
	}
	role, ok := r.roles[roleName]
	if !ok {
		u.RoleID, u.RoleName = nil, ""
		return
	}
	id := role.ID
	u.RoleID, u.RoleName = &id, role.Name
}

// SetActive flips the active flag of a user.
func (r *Repo) SetActive(userID uint64, status model.ActiveStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.Active = status
	}
}

func (r *Repo) FindByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return *r.users[id], nil
}

func (r *Repo) FindByID(_ context.Context, id uint64) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return *u, nil
}

func (r *Repo) FindByPublicID(_ context.Context, publicID string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.PublicID == publicID {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (r *Repo) Insert(_ context.Context, u *model.User, roleName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, exists := r.byEmail[email]; exists {
		return repository.ErrEmailExists
	}
	r.nextID++
	now := time.Now().UTC()
	cp := *u
	cp.ID = r.nextID
	cp.Email = email
	cp.CreatedAt, cp.UpdatedAt = now, now
	if role, ok := r.roles[roleName]; ok {
		id := role.ID
		cp.RoleID, cp.RoleName = &id, role.Name
	}
	r.users[cp.ID] = &cp
	r.byEmail[email] = cp.ID
	*u = cp
	return nil
}

func (r *Repo) UpdatePasswordHash(_ context.Context, id uint64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repo) UpdateProfile(_ context.Context, id uint64, name, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if other, exists := r.byEmail[email]; exists && other != id {
		return repository.ErrEmailExists
	}
	delete(r.byEmail, u.Email)
	u.Name, u.Email = name, email
	u.UpdatedAt = time.Now().UTC()
	r.byEmail[email] = id
	return nil
}

func (r *Repo) EmailTakenByOther(_ context.Context, email string, id uint64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	other, exists := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	return exists && other != id, nil
}

func (r *Repo) PermissionsForRole(_ context.Context, roleID uint64) ([]model.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []model.Permission{}
	for _, pid := range r.grants[roleID] {
		out = append(out, r.perms[pid])
	}
	sortPermissions(out)
	return out, nil
}

func (r *Repo) AllPermissions(context.Context) ([]model.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Permission, 0, len(r.perms))
	for _, p := range r.perms {
		out = append(out, p)
	}
	sortPermissions(out)
	return out, nil
}

func sortPermissions(ps []model.Permission) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
}
