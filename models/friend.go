package models

import "time"

// Friend request states. Accepted and declined are terminal: accept flips the
// status before the friendship write, decline removes the record entirely.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
)

// FriendRequest is a pending or resolved connection between two users.
type FriendRequest struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// FriendRequestView decorates a request with the counterpart's username for
// list rendering.
type FriendRequestView struct {
	FriendRequest
	SenderUsername   string `json:"senderUsername,omitempty"`
	ReceiverUsername string `json:"receiverUsername,omitempty"`
}
