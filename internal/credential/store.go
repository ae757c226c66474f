// Package credential owns user identity records: creation with a hashed
// password and default role, lookups, password verification and the two
// mutations the auth flows need.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/bookshelf-auth/internal/apperr"
	"github.com/iliyamo/bookshelf-auth/internal/model"
	"github.com/iliyamo/bookshelf-auth/internal/repository"
	"github.com/iliyamo/bookshelf-auth/internal/validation"
)

// Repository is the persistence the store needs. Lookups return
// repository.ErrNotFound for missing rows and writes return
// repository.ErrEmailExists on a unique email collision.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id uint64) (model.User, error)
	FindByPublicID(ctx context.Context, publicID string) (model.User, error)
	Insert(ctx context.Context, u *model.User, roleName string) error
	UpdatePasswordHash(ctx context.Context, id uint64, hash string) error
	UpdateProfile(ctx context.Context, id uint64, name, email string) error
	EmailTakenByOther(ctx context.Context, email string, id uint64) (bool, error)
}

const (
	msgEmailTaken      = "Email is already registered."
	msgEmailTakenOther = "Email is already taken."
	msgSamePassword    = "New password must be different from current password."
)

// Store implements the credential contract on top of a Repository.
type Store struct {
	repo        Repository
	cost        int
	defaultRole string
}

func NewStore(repo Repository, bcryptCost int, defaultRole string) *Store {
	return &Store{repo: repo, cost: bcryptCost, defaultRole: defaultRole}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, what+" not found")
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// FindByEmail looks a user up by case-insensitive email.
func (s *Store) FindByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return model.User{}, notFound(err, "user")
	}
	return u, nil
}

// FindByID looks a user up by surrogate id.
func (s *Store) FindByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return model.User{}, notFound(err, "user")
	}
	return u, nil
}

// FindByPublicID looks a user up by uuid.
func (s *Store) FindByPublicID(ctx context.Context, publicID string) (model.User, error) {
	if _, err := uuid.Parse(publicID); err != nil {
		return model.User{}, apperr.New(apperr.KindNotFound, "user not found")
	}
	u, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return model.User{}, notFound(err, "user")
	}
	return u, nil
}

type newUser struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Create validates the fields, rejects a registered email, hashes the
// password and persists the user with the default role.
func (s *Store) Create(ctx context.Context, name, email, password string) (model.User, error) {
	in := newUser{Name: strings.TrimSpace(name), Email: normalizeEmail(email), Password: password}
	if errs := validation.Struct(&in, nil); errs != nil {
		return model.User{}, apperr.Validation(errs)
	}
	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return model.User{}, apperr.Validation(apperr.Fields{"email": {msgEmailTaken}})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, fmt.Errorf("check email: %w", err)
	}

	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := model.User{
		PublicID:     uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Active:       model.StatusActive,
	}
	if err := s.repo.Insert(ctx, &u, s.defaultRole); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, apperr.Validation(apperr.Fields{"email": {msgEmailTaken}})
		}
		return model.User{}, err
	}
	return u, nil
}

// VerifyPassword checks candidate against the stored hash.
func (s *Store) VerifyPassword(u model.User, candidate string) bool {
	return VerifyPassword(u.PasswordHash, candidate)
}

// UpdatePassword stores a new hash for u. A password that verifies against
// the current hash is rejected before anything is written.
func (s *Store) UpdatePassword(ctx context.Context, u model.User, newPlain string) error {
	if VerifyPassword(u.PasswordHash, newPlain) {
		return apperr.Validation(apperr.Fields{"new_password": {msgSamePassword}})
	}
	hash, err := HashPassword(newPlain, s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePasswordHash(ctx, u.ID, hash)
}

// UpdateProfile sets name and email, rejecting an email owned by someone
// else. There is no version check: concurrent updates are last-write-wins.
func (s *Store) UpdateProfile(ctx context.Context, u model.User, name, email string) (model.User, error) {
	email = normalizeEmail(email)
	taken, err := s.repo.EmailTakenByOther(ctx, email, u.ID)
	if err != nil {
		return model.User{}, err
	}
	if taken {
		return model.User{}, apperr.Validation(apperr.Fields{"email": {msgEmailTakenOther}})
	}
	if err := s.repo.UpdateProfile(ctx, u.ID, strings.TrimSpace(name), email); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, apperr.Validation(apperr.Fields{"email": {msgEmailTakenOther}})
		}
		return model.User{}, err
	}
	return s.FindByID(ctx, u.ID)
}
