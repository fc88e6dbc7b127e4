package models

import "time"

// Watchlist list names. An entry lives in exactly one of these at a time.
const (
	ListWatching  = "watching"
	ListCompleted = "completed"
	ListPlanned   = "planned"
)

// ListNames returns the three list names in scan order.
func ListNames() []string {
	return []string{ListWatching, ListCompleted, ListPlanned}
}

// ValidList reports whether name is one of the three watchlist lists.
func ValidList(name string) bool {
	return name == ListWatching || name == ListCompleted || name == ListPlanned
}

// WatchlistEntry is a media item saved to one of the user's lists, carrying
// enough denormalized metadata to render without a catalog round trip.
type WatchlistEntry struct {
	ID          int64    `json:"id"`
	Kind        string   `json:"kind"` // movie | tv
	Title       string   `json:"title"`
	PosterPath  string   `json:"posterPath,omitempty"`
	ReleaseDate string   `json:"releaseDate,omitempty"` // movie release or tv first air date
	VoteAverage float64  `json:"voteAverage,omitempty"`
	GenreIDs    []int64  `json:"genreIds,omitempty"`
	Overview    string   `json:"overview,omitempty"`
	Rating      *float64 `json:"rating,omitempty"` // user rating, 0-10

	// Episode progress, tv entries only.
	CurrentSeason    int `json:"currentSeason,omitempty"`
	CurrentEpisode   int `json:"currentEpisode,omitempty"`
	TotalSeasons     int `json:"totalSeasons,omitempty"`
	EpisodesInSeason int `json:"episodesInSeason,omitempty"` // episode count of the current season

	AddedAt time.Time `json:"addedAt"`
}

// Ref returns the entry's media identity.
func (e WatchlistEntry) Ref() MediaRef {
	return MediaRef{ID: e.ID, Kind: e.Kind}
}

// WatchlistDocument holds one user's three lists for a single media kind.
type WatchlistDocument struct {
	UserID    string           `json:"userId"`
	Watching  []WatchlistEntry `json:"watching"`
	Completed []WatchlistEntry `json:"completed"`
	Planned   []WatchlistEntry `json:"planned"`
}

// List returns the named list, or nil for an unknown name.
func (d *WatchlistDocument) List(name string) []WatchlistEntry {
	switch name {
	case ListWatching:
		return d.Watching
	case ListCompleted:
		return d.Completed
	case ListPlanned:
		return d.Planned
	}
	return nil
}

// SetList replaces the named list.
func (d *WatchlistDocument) SetList(name string, entries []WatchlistEntry) {
	switch name {
	case ListWatching:
		d.Watching = entries
	case ListCompleted:
		d.Completed = entries
	case ListPlanned:
		d.Planned = entries
	}
}

// Find locates a media id across all three lists, returning the list name and
// index, or "" and -1 when absent.
func (d *WatchlistDocument) Find(mediaID int64) (string, int) {
	for _, name := range ListNames() {
		for idx, entry := range d.List(name) {
			if entry.ID == mediaID {
				return name, idx
			}
		}
	}
	return "", -1
}

// Clone deep-copies the document so mutations can be staged before persisting.
func (d *WatchlistDocument) Clone() *WatchlistDocument {
	out := &WatchlistDocument{UserID: d.UserID}
	out.Watching = cloneEntries(d.Watching)
	out.Completed = cloneEntries(d.Completed)
	out.Planned = cloneEntries(d.Planned)
	return out
}

func cloneEntries(in []WatchlistEntry) []WatchlistEntry {
	out := make([]WatchlistEntry, len(in))
	copy(out, in)
	for i := range out {
		if in[i].Rating != nil {
			r := *in[i].Rating
			out[i].Rating = &r
		}
		if len(in[i].GenreIDs) > 0 {
			out[i].GenreIDs = append([]int64(nil), in[i].GenreIDs...)
		}
	}
	return out
}
