package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"log/slog"

	"authcore/internal/httpjson"
	"authcore/internal/password"
	"authcore/internal/session"
	"authcore/internal/users"
)

// Directory is what the handlers need from the user store.
type Directory interface {
	Create(ctx context.Context, u *users.User) error
	GetByID(ctx context.Context, id string) (*users.User, error)
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateEmail(ctx context.Context, id, email string) error
	Delete(ctx context.Context, id string) error
}

type RegisterHandler struct {
	Store  Directory
	Hasher *password.Hasher
	Logger *slog.Logger
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email              string     `json:"email"`
		Password           string     `json:"password"`
		Username           string     `json:"username"`
		Role               users.Role `json:"role"`
		MustChangePassword *bool      `json:"mustChangePassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.Error(w,http.StatusForbidden, "validation_error", "all fields are required")
		return
	}
	if req.Email == "" || req.Password == "" || req.Username == "" || req.Role == "" || req.MustChangePassword == nil {
		httpjson.Error(w,http.StatusForbidden, "validation_error", "all fields are required")
		return
	}

	// Fast path only; the users table carries a unique constraint that
	// catches the race between two concurrent registrations.
	exists, err := h.Store.EmailExists(r.Context(), req.Email)
	if err != nil {
		h.Logger.Error("check email", "err", err)
		httpjson.InternalError(w)
		return
	}
	if exists {
		httpjson.Error(w,http.StatusConflict, "email_taken", "a user with this email already exists")
		return
	}

	hash, err := h.Hasher.Hash(req.Password)
	if err != nil {
		h.Logger.Error("hash password", "err", err)
		httpjson.InternalError(w)
		return
	}
	u := &users.User{
		Email:              req.Email,
		Username:           req.Username,
		PasswordHash:       hash,
		Role:               req.Role,
		MustChangePassword: *req.MustChangePassword,
	}
	if err := h.Store.Create(r.Context(), u); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			httpjson.Error(w,http.StatusConflict, "email_taken", "a user with this email already exists")
			return
		}
		h.Logger.Error("create user", "err", err)
		httpjson.InternalError(w)
		return
	}
	httpjson.Write(w,http.StatusCreated, map[string]string{
		"message": "user was successfully registered",
		"user":    u.Username,
	})
}

type LoginHandler struct {
	Store    Directory
	Hasher   *password.Hasher
	Sessions *session.Service
	Logger   *slog.Logger
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		httpjson.Error(w,http.StatusForbidden, "validation_error", "email and password are required")
		return
	}

	u, err := h.Store.GetByEmail(r.Context(), req.Email)
	if errors.Is(err, users.ErrNotFound) {
		httpjson.Error(w,http.StatusNotFound, "not_found", "user was not found")
		return
	}
	if err != nil {
		h.Logger.Error("lookup user", "err", err)
		httpjson.InternalError(w)
		return
	}
	if !h.Hasher.Verify(req.Password, u.PasswordHash) {
		httpjson.Error(w,http.StatusBadRequest, "bad_credentials", "incorrect password")
		return
	}

	token, err := h.Sessions.Issue(u)
	if err != nil {
		h.Logger.Error("issue token", "err", err)
		httpjson.InternalError(w)
		return
	}
	httpjson.Write(w,http.StatusOK, map[string]string{
		"message": fmt.Sprintf("user %s was logged in", u.Username),
		"token":   token,
	})
}

type ProfileHandler struct {
	Store  Directory
	Logger *slog.Logger
}

func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	claims, ok := session.IdentityFromContext(r.Context())
	if !ok {
		httpjson.Error(w,http.StatusUnauthorized, "unauthenticated", "no token provided")
		return
	}

	u, err := h.Store.GetByID(r.Context(), claims.UserID)
	if errors.Is(err, users.ErrNotFound) {
		// The account can vanish while a token for it is still live.
		httpjson.Error(w,http.StatusNotFound, "not_found", "user not found")
		return
	}
	if err != nil {
		h.Logger.Error("lookup user", "err", err)
		httpjson.InternalError(w)
		return
	}
	httpjson.Write(w,http.StatusOK, map[string]interface{}{"user": u})
}

type ChangePasswordHandler struct {
	Store  Directory
	Hasher *password.Hasher
	Logger *slog.Logger
}

func (h *ChangePasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	claims, ok := session.IdentityFromContext(r.Context())
	if !ok {
		httpjson.Error(w,http.StatusUnauthorized, "unauthenticated", "no token provided")
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		httpjson.Error(w,http.StatusForbidden, "validation_error", "password is required")
		return
	}

	hash, err := h.Hasher.Hash(req.Password)
	if err != nil {
		h.Logger.Error("hash password", "err", err)
		httpjson.InternalError(w)
		return
	}
	err = h.Store.UpdatePassword(r.Context(), claims.UserID, hash)
	if errors.Is(err, users.ErrNotFound) {
		httpjson.Error(w,http.StatusNotFound, "not_found", "user was not found")
		return
	}
	if err != nil {
		h.Logger.Error("update password", "err", err)
		httpjson.InternalError(w)
		return
	}
	httpjson.Write(w,http.StatusCreated, map[string]string{"message": "password was updated"})
}

type DeleteAccountHandler struct {
	Store  Directory
	Hasher *password.Hasher
	Logger *slog.Logger
}

func (h *DeleteAccountHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	claims, ok := session.IdentityFromContext(r.Context())
	if !ok {
		httpjson.Error(w,http.StatusUnauthorized, "unauthenticated", "no token provided")
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		httpjson.Error(w,http.StatusForbidden, "validation_error", "password is required")
		return
	}

	u, err := h.Store.GetByID(r.Context(), claims.UserID)
	if errors.Is(err, users.ErrNotFound) {
		httpjson.Error(w,http.StatusNotFound, "not_found", "user was not found")
		return
	}
	if err != nil {
		h.Logger.Error("lookup user", "err", err)
		httpjson.InternalError(w)
		return
	}
	if !h.Hasher.Verify(req.Password, u.PasswordHash) {
		httpjson.Error(w,http.StatusBadRequest, "bad_credentials", "incorrect password")
		return
	}

	err = h.Store.Delete(r.Context(), claims.UserID)
	if errors.Is(err, users.ErrNotFound) {
		httpjson.Error(w,http.StatusNotFound, "not_found", "user was not found")
		return
	}
	if err != nil {
		h.Logger.Error("delete user", "err", err)
		httpjson.InternalError(w)
		return
	}
	httpjson.Write(w,http.StatusOK, map[string]string{
		"message": fmt.Sprintf("user %s was deleted", claims.UserID),
	})
}

type ChangeEmailHandler struct {
	Store  Directory
	Hasher *password.Hasher
	Logger *slog.Logger
}

func (h *ChangeEmailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	claims, ok := session.IdentityFromContext(r.Context())
	if !ok {
		httpjson.Error(w,http.StatusUnauthorized, "unauthenticated", "no token provided")
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		httpjson.Error(w,http.StatusForbidden, "validation_error", "email and password are required")
		return
	}

	exists, err := h.Store.EmailExists(r.Context(), req.Email)
	if err != nil {
		h.Logger.Error("check email", "err", err)
		httpjson.InternalError(w)
		return
	}
	if exists {
		httpjson.Error(w,http.StatusConflict, "email_taken", "this email is already in use")
		return
	}

	u, err := h.Store.GetByID(r.Context(), claims.UserID)
	if errors.Is(err, users.ErrNotFound) {
		httpjson.Error(w,http.StatusNotFound, "not_found", "user was not found")
		return
	}
	if err != nil {
		h.Logger.Error("lookup user", "err", err)
		httpjson.InternalError(w)
		return
	}
	if !h.Hasher.Verify(req.Password, u.PasswordHash) {
		httpjson.Error(w,http.StatusBadRequest, "bad_credentials", "incorrect password")
		return
	}

	err = h.Store.UpdateEmail(r.Context(), claims.UserID, req.Email)
	if errors.Is(err, users.ErrEmailTaken) {
		httpjson.Error(w,http.StatusConflict, "email_taken", "this email is already in use")
		return
	}
	if errors.Is(err, users.ErrNotFound) {
		httpjson.Error(w,http.StatusNotFound, "not_found", "user was not found")
		return
	}
	if err != nil {
		h.Logger.Error("update email", "err", err)
		httpjson.InternalError(w)
		return
	}
	httpjson.Write(w,http.StatusOK, map[string]string{
		"message": fmt.Sprintf("user %s was updated", claims.UserID),
	})
}

type AdminHandler struct{}

func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	httpjson.Write(w,http.StatusOK, map[string]string{"message": "hey admin"})
}
