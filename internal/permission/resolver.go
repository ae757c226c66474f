// Package permission resolves the effective permissions of a user from
// their role and caches the result in Redis.
package permission

import (
	"context"
	"time"

	"github.com/iliyamo/bookshelf-auth/internal/cache"
	"github.com/iliyamo/bookshelf-auth/internal/model"
)

// Repository reads the role/permission catalogue.
type Repository interface {
	PermissionsForRole(ctx context.Context, roleID uint64) ([]model.Permission, error)
	AllPermissions(ctx context.Context) ([]model.Permission, error)
}

// Set is the resolved authorization data of one user. Role is nil when
// the user has no role.
type Set struct {
	Role        *string            `json:"role"`
	Permissions []model.Permission `json:"permissions"`
}

// Allows reports whether set grants capability. The super role is
// granted everything regardless of its explicit grants.
func Allows(superRole string, set Set, capability string) bool {
	if set.Role != nil && *set.Role == superRole {
		return true
	}
	for _, p := range set.Permissions {
		if p.Name == capability {
			return true
		}
	}
	return false
}

// Resolver computes permission sets with a read-through cache keyed by
// user id. Role reassignment does not invalidate entries; callers that
// change a role must call Invalidate or accept staleness up to the TTL.
type Resolver struct {
	repo      Repository
	cache     *cache.Cache
	ttl       time.Duration
	superRole string
}

func NewResolver(repo Repository, c *cache.Cache, ttl time.Duration, superRole string) *Resolver {
	return &Resolver{repo: repo, cache: c, ttl: ttl, superRole: superRole}
}

func (r *Resolver) key(userID uint64) string {
	return r.cache.Key("user_permissions", userID)
}

// Resolve returns the permission set of u.
func (r *Resolver) Resolve(ctx context.Context, u model.User) (Set, error) {
	set, _, err := cache.Remember(ctx, r.cache, r.key(u.ID), r.ttl, func(ctx context.Context) (Set, error) {
		return r.compute(ctx, u)
	})
	return set, err
}

func (r *Resolver) compute(ctx context.Context, u model.User) (Set, error) {
	if u.RoleID == nil {
		return Set{Permissions: []model.Permission{}}, nil
	}
	role := u.RoleName
	var (
		perms []model.Permission
		err   error
	)
	if role == r.superRole {
		perms, err = r.repo.AllPermissions(ctx)
	} else {
		perms, err = r.repo.PermissionsForRole(ctx, *u.RoleID)
	}
	if err != nil {
		return Set{}, err
	}
	if perms == nil {
		perms = []model.Permission{}
	}
	return Set{Role: &role, Permissions: perms}, nil
}

// Can resolves u's permissions and checks capability.
func (r *Resolver) Can(ctx context.Context, u model.User, capability string) (bool, error) {
	set, err := r.Resolve(ctx, u)
	if err != nil {
		return false, err
	}
	return Allows(r.superRole, set, capability), nil
}

// Invalidate drops the cached set of userID.
func (r *Resolver) Invalidate(ctx context.Context, userID uint64) error {
	return r.cache.Forget(ctx, r.key(userID))
}
