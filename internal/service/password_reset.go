package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/bookshelf-auth/internal/apperr"
	"github.com/iliyamo/bookshelf-auth/internal/queue"
	"github.com/iliyamo/bookshelf-auth/internal/token"
	"github.com/iliyamo/bookshelf-auth/internal/validation"
)

type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword issues a one-time reset token and hands it to the event
// stream for delivery. Unknown emails succeed silently so the endpoint
// cannot be used to probe for accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, in ForgotPasswordInput) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if errs := validation.Struct(&in, nil); errs != nil {
		return apperr.Validation(errs)
	}
	u, err := s.creds.FindByEmail(ctx, in.Email)
	if apperr.KindOf(err) == apperr.KindNotFound {
		s.log.Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return s.fail("forgot-password", err)
	}
	if !u.IsActive() {
		return nil
	}
	raw, err := s.resets.Create(ctx, u.ID)
	if err != nil {
		return s.fail("forgot-password", err)
	}
	s.publish(ctx, queue.EventPasswordResetRequested, u, raw)
	return nil
}

type ResetPasswordInput struct {
	Token                string `json:"token" validate:"required"`
	Password             string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

var resetPasswordMessages = validation.Messages{
	"password_confirmation.required": "The password confirmation does not match.",
	"password_confirmation.eqfield":  "The password confirmation does not match.",
}

const msgResetTokenInvalid = "This password reset token is invalid."

// ResetPassword consumes a reset token and sets a new password. The token
// is spent even when the new password is rejected afterwards.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	in.Token = strings.TrimSpace(in.Token)
	if errs := validation.Struct(&in, resetPasswordMessages); errs != nil {
		return apperr.Validation(errs)
	}
	userID, err := s.resets.Consume(ctx, in.Token)
	if errors.Is(err, token.ErrResetTokenInvalid) {
		return apperr.Validation(apperr.Fields{"token": {msgResetTokenInvalid}})
	}
	if err != nil {
		return s.fail("reset-password", err)
	}
	u, err := s.creds.FindByID(ctx, userID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.Validation(apperr.Fields{"token": {msgResetTokenInvalid}})
	}
	if err != nil {
		return s.fail("reset-password", err)
	}
	if err := s.creds.UpdatePassword(ctx, u, in.Password); err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Kind == apperr.KindValidation {
			return apperr.Validation(apperr.Fields{"password": ae.Fields["new_password"]})
		}
		return s.fail("reset-password", err)
	}
	s.forgetProfile(ctx, u.ID)
	s.publish(ctx, queue.EventPasswordChanged, u, "")
	return nil
}
