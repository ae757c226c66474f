package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/bookshelf-auth/internal/cache"
	"github.com/iliyamo/bookshelf-auth/internal/credential"
	"github.com/iliyamo/bookshelf-auth/internal/handler"
	"github.com/iliyamo/bookshelf-auth/internal/permission"
	"github.com/iliyamo/bookshelf-auth/internal/ratelimit"
	"github.com/iliyamo/bookshelf-auth/internal/repository/memrepo"
	"github.com/iliyamo/bookshelf-auth/internal/service"
	"github.com/iliyamo/bookshelf-auth/internal/token"
)

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

type server struct {
	t *testing.T
	e *echo.Echo
}

func newServer(t *testing.T) *server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	log, _ := test.NewNullLogger()

	repo := memrepo.New()
	repo.AddRole("Super Admin")
	repo.AddRole("User", "get-user", "show-user")

	c := cache.New(rdb, "")
	tokens := token.NewService(rdb, "router-secret", time.Hour)
	auth := service.NewAuthService(service.Deps{
		Credentials: credential.NewStore(repo, bcrypt.MinCost, "User"),
		Tokens:      tokens,
		Limiter:     ratelimit.New(rdb, "login"),
		Permissions: permission.NewResolver(repo, c, time.Hour, "Super Admin"),
		Resets:      token.NewResetStore(rdb, 15*time.Minute),
		Cache:       c,
		Log:         log,
	}, service.Options{})

	e := echo.New()
	e.HTTPErrorHandler = handler.ErrorHandler(log, true)
	RegisterRoutes(e, nil)
	RegisterAuth(e, handler.NewAuthHandler(auth), tokens)
	return &server{t: t, e: e}
}

func (s *server) do(method, path, bearer, ip, body string) (int, envelope) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	if ip != "" {
		req.Header.Set(echo.HeaderXRealIP, ip)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func accessToken(t *testing.T, env envelope) string {
	t.Helper()
	var data struct {
		Token token.Token `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token.AccessToken)
	return data.Token.AccessToken
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)

	code, env := s.do(http.MethodPost, "/auth/register", "", "",
		`{"name":"A","email":"a@a.com","password":"secret1","password_confirmation":"secret1"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)
	t1 := accessToken(t, env)

	code, env = s.do(http.MethodPost, "/auth/login", "", "198.51.100.1", `{"email":"a@a.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, code)
	t2 := accessToken(t, env)

	code, env = s.do(http.MethodGet, "/auth/me", t2, "", "")
	require.Equal(t, http.StatusOK, code)
	var me service.UserView
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "a@a.com", me.Email)

	code, env = s.do(http.MethodGet, "/auth/permission", t2, "", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"role":"User","permissions":[{"id":1,"name":"get-user"},{"id":2,"name":"show-user"}]}`, string(env.Data))

	code, _ = s.do(http.MethodPost, "/auth/logout", t2, "", "")
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodGet, "/auth/me", t2, "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, env = s.do(http.MethodGet, "/auth/session", t2, "", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"authenticated":false}`, string(env.Data))

	code, env = s.do(http.MethodGet, "/auth/session", t1, "", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"authenticated":true}`, string(env.Data))

	code, env = s.do(http.MethodGet, "/auth/session", "", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"authenticated":false}`, string(env.Data))

	code, env = s.do(http.MethodPost, "/auth/refresh", t1, "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"token_type":"bearer"`)
}

func TestAuthFlow_ErrorsAndRateLimit(t *testing.T) {
	s := newServer(t)
	s.do(http.MethodPost, "/auth/register", "", "",
		`{"name":"A","email":"a@a.com","password":"secret1","password_confirmation":"secret1"}`)

	code, env := s.do(http.MethodPost, "/auth/register", "", "",
		`{"name":"B","email":"a@a.com","password":"secret1","password_confirmation":"secret1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, []string{"Email is already registered."}, env.Errors["email"])

	code, env = s.do(http.MethodPost, "/auth/login", "", "203.0.113.7", `{"email":"nobody@a.com","password":"secret1"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Authentication failed", env.Message)
	assert.Contains(t, env.Errors, "email")

	for i := 0; i < 4; i++ {
		code, env = s.do(http.MethodPost, "/auth/login", "", "203.0.113.7", `{"email":"a@a.com","password":"wrong1"}`)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Contains(t, env.Errors, "password")
	}
	code, env = s.do(http.MethodPost, "/auth/login", "", "203.0.113.7", `{"email":"a@a.com","password":"secret1"}`)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Empty(t, env.Errors)

	code, _ = s.do(http.MethodPost, "/auth/login", "", "203.0.113.8", `{"email":"a@a.com","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodGet, "/auth/me", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Unauthenticated.", env.Message)

	code, _ = s.do(http.MethodPost, "/auth/login", "", "203.0.113.9", `{not json`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestAuthFlow_UpdateProfileAndPassword(t *testing.T) {
	s := newServer(t)
	_, env := s.do(http.MethodPost, "/auth/register", "", "",
		`{"name":"A","email":"a@a.com","password":"secret1","password_confirmation":"secret1"}`)
	tok := accessToken(t, env)
	var data struct {
		User service.UserView `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	_, env = s.do(http.MethodPost, "/auth/register", "", "",
		`{"name":"B","email":"b@b.com","password":"secret1","password_confirmation":"secret1"}`)
	other := accessToken(t, env)

	code, env := s.do(http.MethodPost, "/auth/update/"+data.User.UUID, tok, "", `{"name":"Alice","email":"alice@a.com"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"name":"Alice"`)

	code, _ = s.do(http.MethodPost, "/auth/update/"+data.User.UUID, other, "", `{"name":"Mallory","email":"alice@a.com"}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodPost, "/auth/update/00000000-0000-0000-0000-000000000000", tok, "", `{"name":"X","email":"x@a.com"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(http.MethodPost, "/auth/update-password", tok, "",
		`{"current_password":"secret1","new_password":"secret1","new_password_confirmation":"secret1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "new_password")

	code, _ = s.do(http.MethodPost, "/auth/update-password", tok, "",
		`{"current_password":"secret1","new_password":"secret2","new_password_confirmation":"secret2"}`)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodPost, "/auth/login", "", "198.51.100.2", `{"email":"alice@a.com","password":"secret2"}`)
	assert.Equal(t, http.StatusOK, code)
}

func TestForgotPassword_SameAnswerForUnknownEmail(t *testing.T) {
	s := newServer(t)
	s.do(http.MethodPost, "/auth/register", "", "",
		`{"name":"A","email":"a@a.com","password":"secret1","password_confirmation":"secret1"}`)

	codeKnown, known := s.do(http.MethodPost, "/auth/forgot-password", "", "", `{"email":"a@a.com"}`)
	codeUnknown, unknown := s.do(http.MethodPost, "/auth/forgot-password", "", "", `{"email":"ghost@a.com"}`)
	assert.Equal(t, http.StatusOK, codeKnown)
	assert.Equal(t, codeKnown, codeUnknown)
	assert.Equal(t, known.Message, unknown.Message)

	code, env := s.do(http.MethodPost, "/auth/reset-password", "", "",
		`{"token":"made-up","password":"longenough","password_confirmation":"longenough"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "token")
}
