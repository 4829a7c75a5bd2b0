package server

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivetune/internal/shared"
)

const stateCookie = "drivetune_oauth_state"

// Authenticator is the token manager as seen by the auth endpoints.
type Authenticator interface {
	Exchanger
	HasCredential() bool
	AuthCodeURL(state string) string
}

// AuthHandler serves the browser consent flow while the server is running:
//
//	GET /api/auth/status    {"authenticated": bool}
//	GET /api/auth/login     {"authUrl": "..."} and a state cookie
//	GET <callback path>     exchanges the code and stores the token
type AuthHandler struct {
	auth     Authenticator
	callback string
	logger   *log.Logger
}

// NewAuthHandler creates an AuthHandler whose callback lives at callbackPath.
func NewAuthHandler(auth Authenticator, callbackPath string, logger *log.Logger) *AuthHandler {
	if callbackPath == "" {
		callbackPath = DefaultCallbackPath
	}
	return &AuthHandler{auth: auth, callback: callbackPath, logger: shared.WithLogger(logger, "component", "auth")}
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []string {
	return []string{"GET /api/auth/status", "GET /api/auth/login", "GET " + h.callback}
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/auth/status":
		writeJSON(w, http.StatusOK, map[string]bool{"authenticated": h.auth.HasCredential()})
	case "/api/auth/login":
		h.login(w, r)
	case h.callback:
		h.complete(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"authUrl": h.auth.AuthCodeURL(state)})
}

func (h *AuthHandler) complete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != q.Get("state") {
		writeError(w, fmt.Errorf("%w: invalid state parameter", shared.ErrInvalidRequest))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	code := q.Get("code")
	if code == "" {
		writeError(w, fmt.Errorf("%w: authorization code missing: %s", shared.ErrInvalidRequest, q.Get("error")))
		return
	}

	if _, err := h.auth.Exchange(r.Context(), code); err != nil {
		h.logger.Error("code exchange failed", "error", err)
		writeError(w, err)
		return
	}

	h.logger.Info("stored new credential")
	writeAuthComplete(w)
}
