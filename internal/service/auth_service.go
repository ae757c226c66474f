// Package service holds the auth orchestrator. AuthService validates every
// request, applies the login throttle and coordinates the credential
// store, token service, permission resolver and caches. Every error it
// returns is an *apperr.Error.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bookshelf-auth/internal/apperr"
	"github.com/iliyamo/bookshelf-auth/internal/cache"
	"github.com/iliyamo/bookshelf-auth/internal/model"
	"github.com/iliyamo/bookshelf-auth/internal/permission"
	"github.com/iliyamo/bookshelf-auth/internal/queue"
	"github.com/iliyamo/bookshelf-auth/internal/token"
	"github.com/iliyamo/bookshelf-auth/internal/validation"
)

// CapabilityEditUser lets a caller update another user's profile.
const CapabilityEditUser = "edit-user"

// Credentials is implemented by credential.Store.
type Credentials interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id uint64) (model.User, error)
	FindByPublicID(ctx context.Context, publicID string) (model.User, error)
	Create(ctx context.Context, name, email, password string) (model.User, error)
	VerifyPassword(u model.User, candidate string) bool
	UpdatePassword(ctx context.Context, u model.User, newPlain string) error
	UpdateProfile(ctx context.Context, u model.User, name, email string) (model.User, error)
}

// Tokens is implemented by token.Service.
type Tokens interface {
	Issue(userID uint64) (token.Token, error)
	Verify(ctx context.Context, raw string) (uint64, error)
	Refresh(ctx context.Context, raw string) (token.Token, error)
	Revoke(ctx context.Context, raw string) error
}

// Limiter is implemented by ratelimit.Limiter.
type Limiter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
	AvailableIn(ctx context.Context, key string) (time.Duration, error)
}

// Permissions is implemented by permission.Resolver.
type Permissions interface {
	Resolve(ctx context.Context, u model.User) (permission.Set, error)
	Can(ctx context.Context, u model.User, capability string) (bool, error)
	Invalidate(ctx context.Context, userID uint64) error
}

// ResetTokens is implemented by token.ResetStore.
type ResetTokens interface {
	Create(ctx context.Context, userID uint64) (string, error)
	Consume(ctx context.Context, raw string) (uint64, error)
}

// Events is implemented by queue.Publisher and queue.Discard.
type Events interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// Options carries the tunables of AuthService.
type Options struct {
	LoginMaxAttempts int
	LoginDecay       time.Duration
	ProfileTTL       time.Duration
	AvatarBaseURL    string
}

// Deps groups the collaborators of AuthService.
type Deps struct {
	Credentials Credentials
	Tokens      Tokens
	Limiter     Limiter
	Permissions Permissions
	Resets      ResetTokens
	Cache       *cache.Cache
	Events      Events
	Log         logrus.FieldLogger
}

type AuthService struct {
	creds   Credentials
	tokens  Tokens
	limiter Limiter
	perms   Permissions
	resets  ResetTokens
	cache   *cache.Cache
	events  Events
	log     logrus.FieldLogger
	opts    Options
	now     func() time.Time
}

func NewAuthService(d Deps, opts Options) *AuthService {
	if d.Events == nil {
		d.Events = queue.Discard{}
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if opts.LoginMaxAttempts < 1 {
		opts.LoginMaxAttempts = 5
	}
	if opts.LoginDecay <= 0 {
		opts.LoginDecay = time.Minute
	}
	if opts.ProfileTTL <= 0 {
		opts.ProfileTTL = time.Hour
	}
	return &AuthService{
		creds:   d.Credentials,
		tokens:  d.Tokens,
		limiter: d.Limiter,
		perms:   d.Permissions,
		resets:  d.Resets,
		cache:   d.Cache,
		events:  d.Events,
		log:     d.Log,
		opts:    opts,
		now:     time.Now,
	}
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User  UserView    `json:"user"`
	Token token.Token `json:"token"`
}

// fail passes classified errors through and turns anything else into an
// Unexpected error after logging it.
func (s *AuthService) fail(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	s.log.WithError(err).WithField("op", op).Error("auth operation failed")
	return apperr.Unexpected(err)
}

func (s *AuthService) profileKey(userID uint64) string {
	return s.cache.Key("user_profile", userID)
}

// publish never fails the caller; a lost event is only logged.
func (s *AuthService) publish(ctx context.Context, typ string, u model.User, resetToken string) {
	ev := queue.AuthEvent{
		Type:       typ,
		UserID:     u.ID,
		PublicID:   u.PublicID,
		Email:      u.Email,
		ResetToken: resetToken,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithField("event", typ).Warn("publish auth event")
	}
}

// ----- register -----

type RegisterInput struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required,min=6,max=72"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

var registerMessages = validation.Messages{
	"name.required":                  "Name is required.",
	"email.required":                 "Email is required.",
	"email.email":                    "Email format is invalid.",
	"password.required":              "Password is required.",
	"password.min":                   "Password must be at least 6 characters.",
	"password_confirmation.required": "Password confirmation does not match.",
	"password_confirmation.eqfield":  "Password confirmation does not match.",
}

// Register creates a user with the default role and signs them in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if errs := validation.Struct(&in, registerMessages); errs != nil {
		return AuthResult{}, apperr.Validation(errs)
	}
	u, err := s.creds.Create(ctx, in.Name, in.Email, in.Password)
	if err != nil {
		return AuthResult{}, s.fail("register", err)
	}
	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return AuthResult{}, s.fail("register", err)
	}
	s.log.WithField("user_id", u.ID).Info("user registered")
	s.publish(ctx, queue.EventUserRegistered, u, "")
	return AuthResult{User: s.view(u), Token: tok}, nil
}

// ----- login -----

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=3"`
}

const (
	msgUnknownEmail  = "This email is not registered. Please sign up first."
	msgInactive      = "This account is inactive."
	msgWrongPassword = "Password is incorrect."
)

// Login authenticates by email and password. Every attempt is counted per
// client key before validation, so malformed requests are throttled too.
// The count returned by the increment is the gate; no password is checked
// once it passes the limit.
func (s *AuthService) Login(ctx context.Context, clientKey string, in LoginInput) (AuthResult, error) {
	n, err := s.limiter.Hit(ctx, clientKey, s.opts.LoginDecay)
	if err != nil {
		return AuthResult{}, s.fail("login", err)
	}
	if n > int64(s.opts.LoginMaxAttempts) {
		retry, err := s.limiter.AvailableIn(ctx, clientKey)
		if err != nil {
			s.log.WithError(err).WithField("client", clientKey).Warn("rate limit ttl")
		}
		s.log.WithField("client", clientKey).Warn("login rate limited")
		return AuthResult{}, &apperr.Error{
			Kind:       apperr.KindRateLimited,
			Message:    apperr.ErrRateLimited.Message,
			RetryAfter: retry,
		}
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if errs := validation.Struct(&in, nil); errs != nil {
		return AuthResult{}, apperr.Validation(errs)
	}

	u, err := s.creds.FindByEmail(ctx, in.Email)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return AuthResult{}, apperr.AuthFailed("email", msgUnknownEmail)
	}
	if err != nil {
		return AuthResult{}, s.fail("login", err)
	}
	if !u.IsActive() {
		return AuthResult{}, apperr.AuthFailed("email", msgInactive)
	}
	if !s.creds.VerifyPassword(u, in.Password) {
		return AuthResult{}, apperr.AuthFailed("password", msgWrongPassword)
	}

	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return AuthResult{}, s.fail("login", err)
	}
	return AuthResult{User: s.view(u), Token: tok}, nil
}

// ----- token lifecycle -----

// Logout revokes raw. It is idempotent.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	if err := s.tokens.Revoke(ctx, raw); err != nil {
		return s.fail("logout", err)
	}
	return nil
}

// Refresh issues a new token for the subject of raw. raw stays valid until
// it expires or is revoked.
func (s *AuthService) Refresh(ctx context.Context, raw string) (token.Token, error) {
	tok, err := s.tokens.Refresh(ctx, raw)
	if err != nil {
		return token.Token{}, s.fail("refresh", err)
	}
	return tok, nil
}

// Session reports whether raw is a valid token. It never fails.
func (s *AuthService) Session(ctx context.Context, raw string) bool {
	if raw == "" {
		return false
	}
	_, err := s.tokens.Verify(ctx, raw)
	if err != nil && apperr.KindOf(err) == apperr.KindUnexpected {
		s.log.WithError(err).Warn("session check failed")
	}
	return err == nil
}

// ----- profile -----

// subject loads the authenticated user. A token whose user has vanished
// is treated as unauthorized.
func (s *AuthService) subject(ctx context.Context, op string, userID uint64) (model.User, error) {
	u, err := s.creds.FindByID(ctx, userID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return model.User{}, apperr.ErrUnauthorized
	}
	if err != nil {
		return model.User{}, s.fail(op, err)
	}
	return u, nil
}

// Me returns the profile view of userID through the profile cache.
func (s *AuthService) Me(ctx context.Context, userID uint64) (UserView, error) {
	v, hit, err := cache.Remember(ctx, s.cache, s.profileKey(userID), s.opts.ProfileTTL,
		func(ctx context.Context) (UserView, error) {
			u, err := s.subject(ctx, "me", userID)
			if err != nil {
				return UserView{}, err
			}
			return s.view(u), nil
		})
	if err != nil {
		return UserView{}, s.fail("me", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "cache_hit": hit}).Debug("profile loaded")
	return v, nil
}

type UpdatePasswordInput struct {
	CurrentPassword         string `json:"current_password" validate:"required"`
	NewPassword             string `json:"new_password" validate:"required,min=6,max=72,nefield=CurrentPassword"`
	NewPasswordConfirmation string `json:"new_password_confirmation" validate:"required,eqfield=NewPassword"`
}

var updatePasswordMessages = validation.Messages{
	"new_password.nefield":               "New password must be different from current password.",
	"new_password_confirmation.required": "The new password confirmation does not match.",
	"new_password_confirmation.eqfield":  "The new password confirmation does not match.",
}

// UpdatePassword changes the password of userID after checking the
// current one.
func (s *AuthService) UpdatePassword(ctx context.Context, userID uint64, in UpdatePasswordInput) error {
	if errs := validation.Struct(&in, updatePasswordMessages); errs != nil {
		return apperr.Validation(errs)
	}
	u, err := s.subject(ctx, "update-password", userID)
	if err != nil {
		return err
	}
	if !s.creds.VerifyPassword(u, in.CurrentPassword) {
		return apperr.AuthFailed("current_password", "Current password does not match.")
	}
	if err := s.creds.UpdatePassword(ctx, u, in.NewPassword); err != nil {
		return s.fail("update-password", err)
	}
	s.forgetProfile(ctx, userID)
	s.publish(ctx, queue.EventPasswordChanged, u, "")
	return nil
}

type UpdateProfileInput struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
}

// UpdateProfile sets name and email of the user identified by publicID.
// The actor must be that user or hold the edit-user capability.
func (s *AuthService) UpdateProfile(ctx context.Context, actorID uint64, publicID string, in UpdateProfileInput) (UserView, error) {
	target, err := s.creds.FindByPublicID(ctx, publicID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return UserView{}, apperr.New(apperr.KindNotFound, "User not found")
	}
	if err != nil {
		return UserView{}, s.fail("update-profile", err)
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if errs := validation.Struct(&in, nil); errs != nil {
		return UserView{}, apperr.Validation(errs)
	}

	if target.ID != actorID {
		actor, err := s.subject(ctx, "update-profile", actorID)
		if err != nil {
			return UserView{}, err
		}
		ok, err := s.perms.Can(ctx, actor, CapabilityEditUser)
		if err != nil {
			return UserView{}, s.fail("update-profile", err)
		}
		if !ok {
			return UserView{}, apperr.ErrForbidden
		}
	}

	updated, err := s.creds.UpdateProfile(ctx, target, in.Name, in.Email)
	if err != nil {
		return UserView{}, s.fail("update-profile", err)
	}
	s.forgetProfile(ctx, target.ID)
	if err := s.perms.Invalidate(ctx, target.ID); err != nil {
		s.log.WithError(err).WithField("user_id", target.ID).Warn("invalidate permission cache")
	}
	s.publish(ctx, queue.EventProfileUpdated, updated, "")
	return s.view(updated), nil
}

func (s *AuthService) forgetProfile(ctx context.Context, userID uint64) {
	if err := s.cache.Forget(ctx, s.profileKey(userID)); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("invalidate profile cache")
	}
}

// Permission resolves the permission set of userID.
func (s *AuthService) Permission(ctx context.Context, userID uint64) (permission.Set, error) {
	u, err := s.subject(ctx, "permission", userID)
	if err != nil {
		return permission.Set{}, err
	}
	set, err := s.perms.Resolve(ctx, u)
	if err != nil {
		return permission.Set{}, s.fail("permission", err)
	}
	return set, nil
}
