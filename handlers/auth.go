package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"reelist/models"
	"reelist/services/sessions"
	"reelist/services/users"
)

type accountsService interface {
	SignUp(username, email, password string) (models.User, error)
	Authenticate(username, password string) (models.User, error)
	Get(id string) (models.User, bool)
}

var _ accountsService = (*users.Service)(nil)

type sessionsService interface {
	Create(userID string) (sessions.Session, error)
	Resolve(token string) (sessions.Session, error)
	Destroy(token string)
}

var _ sessionsService = (*sessions.Service)(nil)

type AuthHandler struct {
	Accounts accountsService
	Sessions sessionsService
}

func NewAuthHandler(accounts accountsService, sessionSvc sessionsService) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Sessions: sessionSvc}
}

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.Accounts.SignUp(body.Username, body.Email, body.Password)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, users.ErrUsernameRequired),
			errors.Is(err, users.ErrEmailRequired),
			errors.Is(err, users.ErrEmailInvalid),
			errors.Is(err, users.ErrPasswordRequired),
			errors.Is(err, users.ErrPasswordTooShort):
			status = http.StatusBadRequest
		case errors.Is(err, users.ErrUsernameTaken), errors.Is(err, users.ErrEmailTaken):
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	session, err := h.Sessions.Create(user.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(authResponse{Token: session.Token, User: user})
}

func (h *AuthHandler) LogIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.Accounts.Authenticate(body.Username, body.Password)
	if err != nil {
		if errors.Is(err, users.ErrBadCredentials) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	session, err := h.Sessions.Create(user.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(authResponse{Token: session.Token, User: user})
}

func (h *AuthHandler) LogOut(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		h.Sessions.Destroy(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the account behind the current session.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	user, ok := h.Accounts.Get(session.UserID)
	if !ok {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

type sessionKeyType struct{}

var sessionKey sessionKeyType

// SessionFrom extracts the session placed in the context by RequireSession.
func SessionFrom(ctx context.Context) (sessions.Session, bool) {
	session, ok := ctx.Value(sessionKey).(sessions.Session)
	return session, ok
}

// WithSession returns a context carrying the session. Exposed for tests.
func WithSession(ctx context.Context, session sessions.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// RequireSession resolves the bearer token and passes the session down via
// the request context. Requests without a valid token are rejected.
func (h *AuthHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		session, err := h.Sessions.Resolve(token)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
