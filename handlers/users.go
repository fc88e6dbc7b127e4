package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"reelist/models"
	"reelist/services/users"
)

type usersService interface {
	Get(id string) (models.User, bool)
	GetByUsername(username string) (models.User, bool)
	SearchByUsername(query, excludeID string) []models.Profile
	Friends(id string) ([]models.Profile, error)
	Unfriend(aID, bID string) error
}

var _ usersService = (*users.Service)(nil)

type UsersHandler struct {
	Service usersService
}

func NewUsersHandler(service usersService) *UsersHandler {
	return &UsersHandler{Service: service}
}

// Search finds users by username substring. The searching user is excluded
// from the results.
func (h *UsersHandler) Search(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "query parameter q is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Service.SearchByUsername(query, session.UserID))
}

// Profile returns the public profile for a user id.
func (h *UsersHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["userID"])
	if id == "" {
		http.Error(w, "user id is required", http.StatusBadRequest)
		return
	}

	user, ok := h.Service.Get(id)
	if !ok {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user.PublicProfile())
}

// Friends lists the public profiles of the user's friends. Only the user
// themselves may list their friends.
func (h *UsersHandler) Friends(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	id := strings.TrimSpace(mux.Vars(r)["userID"])
	if id != session.UserID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	profiles, err := h.Service.Friends(id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, users.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profiles)
}

// Unfriend removes a friendship between the session user and the named user.
func (h *UsersHandler) Unfriend(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	friendID := strings.TrimSpace(mux.Vars(r)["friendID"])
	if friendID == "" {
		http.Error(w, "friend id is required", http.StatusBadRequest)
		return
	}

	if err := h.Service.Unfriend(session.UserID, friendID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, users.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
