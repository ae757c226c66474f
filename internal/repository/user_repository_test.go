package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bookshelf-auth/internal/model"
)

var userColumns = []string{"id", "uuid", "name", "email", "password_hash", "role_id",
	"role_name", "active", "avatar", "email_verified_at", "created_at", "updated_at"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func TestUserRepo_FindByEmail(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users u LEFT JOIN roles r ON r.id = u.role_id WHERE u.email = ?")).
		WithArgs("a@a.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(7, "0b6e3c1e-3f57-4a43-9f0c-5b1f5d1f2a11", "Alice", "a@a.com", "hash", 3,
				"User", "active", "", nil, now, now))

	u, err := NewUserRepo(db).FindByEmail(context.Background(), " A@A.com ")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), u.ID)
	require.NotNil(t, u.RoleID)
	assert.Equal(t, uint64(3), *u.RoleID)
	assert.Equal(t, "User", u.RoleName)
	assert.Equal(t, model.StatusActive, u.Active)
	assert.Nil(t, u.EmailVerifiedAt)
}

func TestUserRepo_FindByID_NoRole(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE u.id = ?")).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(9, "uuid", "Bob", "b@b.com", "hash", nil, "", "inactive", "me.png", now, now, now))

	u, err := NewUserRepo(db).FindByID(context.Background(), 9)
	require.NoError(t, err)
	assert.Nil(t, u.RoleID)
	assert.False(t, u.IsActive())
	assert.Equal(t, "me.png", u.Avatar)
	require.NotNil(t, u.EmailVerifiedAt)
}

func TestUserRepo_NotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE u.uuid = ?")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := NewUserRepo(db).FindByPublicID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_Insert(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (uuid, name, email, password_hash, role_id, active)")).
		WithArgs("uuid-1", "Alice", "a@a.com", "hash", "User", "active").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE u.id = ?")).
		WithArgs(uint64(11)).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(11, "uuid-1", "Alice", "a@a.com", "hash", 3, "User", "active", "", nil, now, now))

	u := model.User{PublicID: "uuid-1", Name: "Alice", Email: "A@a.com", PasswordHash: "hash", Active: model.StatusActive}
	require.NoError(t, NewUserRepo(db).Insert(context.Background(), &u, "User"))
	assert.Equal(t, uint64(11), u.ID)
	assert.Equal(t, "User", u.RoleName)
	assert.Equal(t, now, u.CreatedAt)
}

func TestUserRepo_InsertDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	u := model.User{PublicID: "uuid-1", Email: "a@a.com", Active: model.StatusActive}
	err := NewUserRepo(db).Insert(context.Background(), &u, "User")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_UpdateProfile(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET name = ?, email = ?, updated_at = NOW() WHERE id = ?")).
		WithArgs("Alicia", "alicia@a.com", uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET name = ?")).
		WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET name = ?")).
		WillReturnError(errors.New("connection reset"))

	repo := NewUserRepo(db)
	ctx := context.Background()
	require.NoError(t, repo.UpdateProfile(ctx, 7, "Alicia", "Alicia@a.com"))
	assert.ErrorIs(t, repo.UpdateProfile(ctx, 7, "Alicia", "b@b.com"), ErrEmailExists)

	err := repo.UpdateProfile(ctx, 7, "Alicia", "c@c.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_UpdatePasswordHash(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = ?")).
		WithArgs("new-hash", uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, NewUserRepo(db).UpdatePasswordHash(context.Background(), 7, "new-hash"))
}

func TestUserRepo_EmailTakenByOther(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM users WHERE email = ? AND id <> ?)")).
		WithArgs("b@b.com", uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"taken"}).AddRow(true))

	taken, err := NewUserRepo(db).EmailTakenByOther(context.Background(), "B@b.com", 7)
	require.NoError(t, err)
	assert.True(t, taken)
}
