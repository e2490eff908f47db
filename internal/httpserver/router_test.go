package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"authcore/internal/password"
	"authcore/internal/session"
	"authcore/internal/users"
)

type memDirectory struct {
	byID   map[string]*users.User
	nextID int
}

func newMemDirectory() *memDirectory {
	return &memDirectory{byID: map[string]*users.User{}}
}

func (m *memDirectory) Create(ctx context.Context, u *users.User) error {
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return users.ErrEmailTaken
		}
	}
	m.nextID++
	u.ID = "user-" + strconv.Itoa(m.nextID)
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memDirectory) GetByID(ctx context.Context, id string) (*users.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memDirectory) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, users.ErrNotFound
}

func (m *memDirectory) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memDirectory) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	u, ok := m.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.MustChangePassword = false
	return nil
}

func (m *memDirectory) UpdateEmail(ctx context.Context, id, email string) error {
	u, ok := m.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	u.Email = email
	return nil
}

func (m *memDirectory) Delete(ctx context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return users.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *session.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewService("router-test-secret", time.Hour)
	hasher := password.NewHasher(bcrypt.MinCost)
	return NewRouter(logger, sessions, newMemDirectory(), hasher), sessions
}

func do(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

// Full forced-password-change lifecycle: register with the flag set, hit the
// wall on /profile, rotate the password, and get back in with fresh
// credentials only.
func TestForcedPasswordChangeFlow(t *testing.T) {
	router, sessions := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/register", "", map[string]interface{}{
		"email": "a@x.com", "password": "pw1", "username": "a",
		"role": "user", "mustChangePassword": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "/login", "", map[string]string{
		"email": "a@x.com", "password": "pw1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	tok := token(t, rec)

	claims, err := sessions.Parse(tok)
	require.NoError(t, err)
	assert.True(t, claims.MustChangePassword)

	rec = do(t, router, http.MethodGet, "/profile", tok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, http.MethodPost, "/change-password", tok, map[string]string{
		"password": "pw2",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "/login", "", map[string]string{
		"email": "a@x.com", "password": "pw1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/login", "", map[string]string{
		"email": "a@x.com", "password": "pw2",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	fresh := token(t, rec)

	claims, err = sessions.Parse(fresh)
	require.NoError(t, err)
	assert.False(t, claims.MustChangePassword)

	rec = do(t, router, http.MethodGet, "/profile", fresh, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDuplicateRegistration(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/register", "", map[string]interface{}{
		"email": "a@x.com", "password": "pw1", "username": "a",
		"role": "user", "mustChangePassword": false,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Same email, different everything else.
	rec = do(t, router, http.MethodPost, "/register", "", map[string]interface{}{
		"email": "a@x.com", "password": "pw9", "username": "b",
		"role": "admin", "mustChangePassword": true,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGatedRoutesRejectBadTokens(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/profile", "/change-password", "/delete-account", "/change-email", "/admin"} {
		method := http.MethodPost
		if path == "/profile" || path == "/admin" {
			method = http.MethodGet
		}

		rec := do(t, router, method, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s without token", path)

		rec = do(t, router, method, path, "bogus", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s with bad token", path)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := password.NewHasher(bcrypt.MinCost)
	sessions := session.NewService("router-test-secret", time.Hour)
	expired := session.NewService("router-test-secret", -time.Minute)
	router := NewRouter(logger, sessions, newMemDirectory(), hasher)

	tok, err := expired.Issue(&users.User{ID: "id-1", Email: "a@x.com"})
	require.NoError(t, err)

	rec := do(t, router, http.MethodGet, "/profile", tok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRequiresRole(t *testing.T) {
	router, _ := newTestRouter(t)

	register := func(email, role string) string {
		rec := do(t, router, http.MethodPost, "/register", "", map[string]interface{}{
			"email": email, "password": "pw", "username": "u",
			"role": role, "mustChangePassword": false,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		rec = do(t, router, http.MethodPost, "/login", "", map[string]string{
			"email": email, "password": "pw",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		return token(t, rec)
	}

	userTok := register("u@x.com", "user")
	adminTok := register("root@x.com", "admin")

	rec := do(t, router, http.MethodGet, "/admin", userTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, http.MethodGet, "/admin", adminTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := do(t, router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := do(t, router, http.MethodOptions, "/login", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
