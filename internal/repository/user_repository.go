package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/bookshelf-auth/internal/model"
)

// UserRepo persists users. The role name is read through a LEFT JOIN so a
// user without a role still loads.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const selectUser = `SELECT u.id, u.uuid, u.name, u.email, u.password_hash, u.role_id,
	COALESCE(r.name, ''), u.active, COALESCE(u.avatar, ''), u.email_verified_at,
	u.created_at, u.updated_at
	FROM users u LEFT JOIN roles r ON r.id = u.role_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u        model.User
		roleID   sql.NullInt64
		active   string
		verified sql.NullTime
	)
	err := row.Scan(&u.ID, &u.PublicID, &u.Name, &u.Email, &u.PasswordHash, &roleID,
		&u.RoleName, &active, &u.Avatar, &verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	if roleID.Valid {
		id := uint64(roleID.Int64)
		u.RoleID = &id
	}
	if verified.Valid {
		t := verified.Time
		u.EmailVerifiedAt = &t
	}
	u.Active = model.ActiveStatus(active)
	return u, nil
}

// FindByEmail fetches a user by normalized email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx, selectUser+" WHERE u.email = ? LIMIT 1", email))
}

// FindByID fetches a user by surrogate id.
func (r *UserRepo) FindByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, selectUser+" WHERE u.id = ? LIMIT 1", id))
}

// FindByPublicID fetches a user by uuid.
func (r *UserRepo) FindByPublicID(ctx context.Context, publicID string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, selectUser+" WHERE u.uuid = ? LIMIT 1", publicID))
}

// Insert creates the user with the named role (NULL when the role does not
// exist) and reloads it so timestamps and the role name are populated.
func (r *UserRepo) Insert(ctx context.Context, u *model.User, roleName string) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (uuid, name, email, password_hash, role_id, active)
		 VALUES (?, ?, ?, ?, (SELECT id FROM roles WHERE name = ? LIMIT 1), ?)`,
		u.PublicID, u.Name, strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash, roleName, string(u.Active))
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	created, err := r.FindByID(ctx, uint64(id))
	if err != nil {
		return fmt.Errorf("reload user %d: %w", id, err)
	}
	*u = created
	return nil
}

// UpdatePasswordHash replaces the stored hash.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uint64, hash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = NOW() WHERE id = ?", hash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// UpdateProfile overwrites name and email. Concurrent writers are not
// serialized; the last statement wins.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, name, email string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name = ?, email = ?, updated_at = NOW() WHERE id = ?",
		name, strings.ToLower(strings.TrimSpace(email)), id)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// EmailTakenByOther reports whether email belongs to a user other than id.
func (r *UserRepo) EmailTakenByOther(ctx context.Context, email string, id uint64) (bool, error) {
	var taken bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE email = ? AND id <> ?)",
		strings.ToLower(strings.TrimSpace(email)), id).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return taken, nil
}
