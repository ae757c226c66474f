package model

import "time"

// ActiveStatus is the users.active enum.
type ActiveStatus string

const (
	StatusActive   ActiveStatus = "active"
	StatusInactive ActiveStatus = "inactive"
)

// User represents a row in the `users` table. A user holds at most one
// role through the nullable role_id column; RoleName is filled by the
// repository from a join and is empty when no role is assigned.
//
// Fields:
//
//	ID              – surrogate primary key, never exposed in URLs.
//	PublicID        – users.uuid, the identifier used in routes.
//	Email           – unique, stored lower-cased.
//	PasswordHash    – bcrypt hash.
//	Active          – active/inactive flag.
//	Avatar          – stored avatar file name, empty when unset.
//	EmailVerifiedAt – nil while the address is unverified.
type User struct {
	ID              uint64
	PublicID        string
	Name            string
	Email           string
	PasswordHash    string
	RoleID          *uint64
	RoleName        string
	Active          ActiveStatus
	Avatar          string
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActive reports whether the account may sign in.
func (u User) IsActive() bool { return u.Active != StatusInactive }

// Role represents a row in the `roles` table.
type Role struct {
	ID   uint64
	Name string
}

// Permission is a named capability granted to roles through the
// `role_permissions` join table.
type Permission struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}
