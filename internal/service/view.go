package service

import (
	"time"

	"github.com/iliyamo/bookshelf-auth/internal/model"
)

// UserView is the public JSON shape of a user.
type UserView struct {
	ID              uint64     `json:"id"`
	UUID            string     `json:"uuid"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Avatar          *string    `json:"avatar"`
	AvatarURL       *string    `json:"avatar_url"`
	Role            *string    `json:"role"`
	Active          bool       `json:"active"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (s *AuthService) view(u model.User) UserView {
	v := UserView{
		ID:              u.ID,
		UUID:            u.PublicID,
		Name:            u.Name,
		Email:           u.Email,
		Active:          u.IsActive(),
		EmailVerifiedAt: u.EmailVerifiedAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
	if u.Avatar != "" {
		avatar := u.Avatar
		v.Avatar = &avatar
		if s.opts.AvatarBaseURL != "" {
			url := s.opts.AvatarBaseURL + "/" + u.Avatar
			v.AvatarURL = &url
		}
	}
	if u.RoleID != nil && u.RoleName != "" {
		role := u.RoleName
		v.Role = &role
	}
	return v
}
