package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"reelist/models"
	"reelist/services/activity"
	"reelist/services/users"
)

type activityService interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]models.Activity, error)
	ListFeed(ctx context.Context, userIDs []string, limit int) ([]models.Activity, error)
}

var _ activityService = (*activity.Service)(nil)

type activityUserSource interface {
	Get(id string) (models.User, bool)
}

var _ activityUserSource = (*users.Service)(nil)

type ActivityHandler struct {
	Service activityService
	Users   activityUserSource
}

func NewActivityHandler(service activityService, userSvc activityUserSource) *ActivityHandler {
	return &ActivityHandler{Service: service, Users: userSvc}
}

// Recent returns the session user's own newest activity entries.
func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	entries, err := h.Service.ListRecent(r.Context(), session.UserID, queryLimit(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// Feed merges the newest activity of the session user's friends.
func (h *ActivityHandler) Feed(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	user, ok := h.Users.Get(session.UserID)
	if !ok {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	entries, err := h.Service.ListFeed(r.Context(), user.Friends, queryLimit(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}
