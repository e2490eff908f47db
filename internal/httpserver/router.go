package httpserver

import (
	"encoding/json"
	"net/http"

	"log/slog"

	"authcore/internal/accounts"
	"authcore/internal/password"
	"authcore/internal/session"
	"authcore/internal/users"
)

func NewRouter(
	logger *slog.Logger,
	sessions *session.Service,
	store accounts.Directory,
	hasher *password.Hasher,
) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// Open endpoints
	mux.Handle("/register", &accounts.RegisterHandler{
		Store:  store,
		Hasher: hasher,
		Logger: logger,
	})
	mux.Handle("/login", &accounts.LoginHandler{
		Store:    store,
		Hasher:   hasher,
		Sessions: sessions,
		Logger:   logger,
	})

	// Gated endpoints: auth always first, then the route-specific stages.
	secured := session.Authenticate(sessions)

	mux.Handle("/profile", secured(session.RequireFreshPassword(&accounts.ProfileHandler{
		Store:  store,
		Logger: logger,
	})))
	mux.Handle("/change-password", secured(&accounts.ChangePasswordHandler{
		Store:  store,
		Hasher: hasher,
		Logger: logger,
	}))
	mux.Handle("/delete-account", secured(&accounts.DeleteAccountHandler{
		Store:  store,
		Hasher: hasher,
		Logger: logger,
	}))
	mux.Handle("/change-email", secured(&accounts.ChangeEmailHandler{
		Store:  store,
		Hasher: hasher,
		Logger: logger,
	}))
	mux.Handle("/admin", secured(session.RequireRole(&accounts.AdminHandler{}, users.RoleAdmin)))

	// CORS wrapper (simple, for local UI/tools).
	return withCORS(mux)
}
