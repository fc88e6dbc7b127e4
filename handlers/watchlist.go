package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"reelist/models"
	"reelist/services/watchlist"
)

type watchlistService interface {
	Document(userID, kind string) (*models.WatchlistDocument, error)
	MoveToList(ctx context.Context, userID string, entry models.WatchlistEntry, targetList string) (string, error)
	Remove(userID, kind string, mediaID int64, list string) error
	UpdateRating(userID, kind string, mediaID int64, list string, rating float64) error
	StepEpisode(ctx context.Context, userID string, mediaID int64, list string, direction int) (watchlist.StepResult, error)
}

var _ watchlistService = (*watchlist.Service)(nil)

type friendChecker interface {
	Get(id string) (models.User, bool)
}

type WatchlistHandler struct {
	Service watchlistService
	Users   friendChecker
}

func NewWatchlistHandler(service watchlistService, userSvc friendChecker) *WatchlistHandler {
	return &WatchlistHandler{Service: service, Users: userSvc}
}

// Get returns a user's watchlist document for one kind. Users can read their
// own document and their friends'.
func (h *WatchlistHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	ownerID := strings.TrimSpace(vars["userID"])
	kind := vars["kind"]

	if ownerID != session.UserID {
		owner, ok := h.Users.Get(ownerID)
		if !ok {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		if !owner.IsFriend(session.UserID) {
			http.Error(w, "watchlists are visible to friends only", http.StatusForbidden)
			return
		}
	}

	doc, err := h.Service.Document(ownerID, kind)
	if err != nil {
		writeWatchlistError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// Move adds the entry to a list, moving it from its previous list if it was
// already tracked.
func (h *WatchlistHandler) Move(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var body struct {
		List  string                `json:"list"`
		Entry models.WatchlistEntry `json:"entry"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if kind := mux.Vars(r)["kind"]; kind != "" {
		body.Entry.Kind = kind
	}

	previous, err := h.Service.MoveToList(r.Context(), session.UserID, body.Entry, body.List)
	if err != nil {
		writeWatchlistError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"list":         body.List,
		"previousList": previous,
	})
}

// Remove deletes an entry from a list.
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	mediaID, err := strconv.ParseInt(vars["mediaID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid media id", http.StatusBadRequest)
		return
	}

	if err := h.Service.Remove(session.UserID, vars["kind"], mediaID, vars["list"]); err != nil {
		writeWatchlistError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Rate sets the user rating for an entry.
func (h *WatchlistHandler) Rate(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	mediaID, err := strconv.ParseInt(vars["mediaID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid media id", http.StatusBadRequest)
		return
	}

	var body struct {
		Rating float64 `json:"rating"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.UpdateRating(session.UserID, vars["kind"], mediaID, vars["list"], body.Rating); err != nil {
		writeWatchlistError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Step moves episode progress forward or backward by one.
func (h *WatchlistHandler) Step(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	mediaID, err := strconv.ParseInt(vars["mediaID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid media id", http.StatusBadRequest)
		return
	}

	var body struct {
		Direction int `json:"direction"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.Service.StepEpisode(r.Context(), session.UserID, mediaID, vars["list"], body.Direction)
	if err != nil {
		writeWatchlistError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func writeWatchlistError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, watchlist.ErrUserIDRequired),
		errors.Is(err, watchlist.ErrIDRequired),
		errors.Is(err, watchlist.ErrTitleRequired),
		errors.Is(err, watchlist.ErrUnknownKind),
		errors.Is(err, watchlist.ErrUnknownList),
		errors.Is(err, watchlist.ErrRatingOutOfRange),
		errors.Is(err, watchlist.ErrInvalidStep):
		status = http.StatusBadRequest
	case errors.Is(err, watchlist.ErrEntryNotFound):
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}
