package models

import (
	"strconv"
	"strings"
)

// Media kinds understood by the catalog and watchlist layers.
const (
	KindMovie = "movie"
	KindTV    = "tv"
)

// MediaRef identifies a piece of content across the whole system.
type MediaRef struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"` // movie | tv
}

// Key returns a stable identifier combining kind and numeric id.
func (m MediaRef) Key() string {
	return m.Kind + ":" + strconv.FormatInt(m.ID, 10)
}

// NormalizeKind lowercases and validates a media kind, mapping the aliases
// clients tend to send. Returns "" for anything unrecognized.
func NormalizeKind(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "movie", "movies", "film":
		return KindMovie
	case "tv", "series", "show", "shows":
		return KindTV
	}
	return ""
}
