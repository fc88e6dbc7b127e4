package models

import "time"

// Activity is one append-only entry in a user's activity log, created as a
// side effect of a watchlist mutation. Never updated or deleted.
type Activity struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"userId"`
	MediaID    int64     `json:"mediaId"`
	Kind       string    `json:"kind"` // movie | tv
	Title      string    `json:"title"`
	PosterPath string    `json:"posterPath,omitempty"`
	Action     string    `json:"action"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Ref returns the media identity the activity refers to.
func (a Activity) Ref() MediaRef {
	return MediaRef{ID: a.MediaID, Kind: a.Kind}
}
