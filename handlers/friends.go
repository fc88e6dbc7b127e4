package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"reelist/models"
	"reelist/services/friends"
)

type friendsService interface {
	Send(senderID, receiverID string) (models.FriendRequest, error)
	Accept(requestID, receiverID string) error
	Decline(requestID, receiverID string) error
	ListIncoming(userID string) []models.FriendRequestView
	ListOutgoing(userID string) []models.FriendRequestView
}

var _ friendsService = (*friends.Service)(nil)

type FriendsHandler struct {
	Service friendsService
}

func NewFriendsHandler(service friendsService) *FriendsHandler {
	return &FriendsHandler{Service: service}
}

// Send creates a friend request from the session user to the receiver.
func (h *FriendsHandler) Send(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var body struct {
		ReceiverID string `json:"receiverId"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	request, err := h.Service.Send(session.UserID, body.ReceiverID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, friends.ErrUserIDRequired), errors.Is(err, friends.ErrSelfRequest):
			status = http.StatusBadRequest
		case errors.Is(err, friends.ErrAlreadyFriends), errors.Is(err, friends.ErrRequestExists):
			status = http.StatusConflict
		case strings.Contains(err.Error(), "user not found"):
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(request)
}

// Incoming lists pending requests addressed to the session user.
func (h *FriendsHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Service.ListIncoming(session.UserID))
}

// Outgoing lists pending requests the session user has sent.
func (h *FriendsHandler) Outgoing(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Service.ListOutgoing(session.UserID))
}

// Accept resolves a pending request addressed to the session user.
func (h *FriendsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.Service.Accept)
}

// Decline removes a pending request addressed to the session user.
func (h *FriendsHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.Service.Decline)
}

func (h *FriendsHandler) resolve(w http.ResponseWriter, r *http.Request, fn func(requestID, receiverID string) error) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	requestID := strings.TrimSpace(mux.Vars(r)["requestID"])
	if requestID == "" {
		http.Error(w, "request id is required", http.StatusBadRequest)
		return
	}

	if err := fn(requestID, session.UserID); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, friends.ErrRequestNotFound):
			status = http.StatusNotFound
		case errors.Is(err, friends.ErrNotReceiver):
			status = http.StatusForbidden
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
