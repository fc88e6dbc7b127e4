package models

// CatalogItem is one normalized row from a TMDB list endpoint (search,
// discover, trending, similar). Kind is always set explicitly at the query
// boundary, never inferred from which title field happened to be present.
type CatalogItem struct {
	ID           int64   `json:"id"`
	Kind         string  `json:"kind"` // movie | tv
	Title        string  `json:"title"`
	Overview     string  `json:"overview,omitempty"`
	PosterPath   string  `json:"posterPath,omitempty"`
	BackdropPath string  `json:"backdropPath,omitempty"`
	ReleaseDate  string  `json:"releaseDate,omitempty"` // YYYY-MM-DD, movie release or tv first air
	VoteAverage  float64 `json:"voteAverage"`
	VoteCount    int64   `json:"voteCount"`
	Popularity   float64 `json:"popularity,omitempty"`
	GenreIDs     []int64 `json:"genreIds,omitempty"`
}

// Ref returns the item's media identity.
func (c CatalogItem) Ref() MediaRef {
	return MediaRef{ID: c.ID, Kind: c.Kind}
}

// ResultPage is a merged, deduplicated page of catalog items.
type ResultPage struct {
	Items      []CatalogItem `json:"items"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
}

// Genre is a TMDB genre for one media kind.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Season carries the per-season episode count needed for progress tracking.
type Season struct {
	SeasonNumber int    `json:"seasonNumber"`
	EpisodeCount int    `json:"episodeCount"`
	Name         string `json:"name,omitempty"`
	AirDate      string `json:"airDate,omitempty"`
}

// MediaDetails is the full detail record for a movie or tv show.
type MediaDetails struct {
	CatalogItem
	Runtime      int      `json:"runtime,omitempty"` // minutes, movies
	Genres       []Genre  `json:"genres,omitempty"`
	Tagline      string   `json:"tagline,omitempty"`
	Status       string   `json:"status,omitempty"`
	Seasons      []Season `json:"seasons,omitempty"`      // tv only
	TotalSeasons int      `json:"totalSeasons,omitempty"` // tv only
}

// CastMember is one credited cast entry.
type CastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character,omitempty"`
	ProfilePath string `json:"profilePath,omitempty"`
	Order       int    `json:"order"`
}

// WatchProvider is a streaming service offering a title in some region.
type WatchProvider struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	LogoPath string `json:"logoPath,omitempty"`
}

// ProviderRegion groups watch providers by availability type for one region.
type ProviderRegion struct {
	Link     string          `json:"link,omitempty"`
	Flatrate []WatchProvider `json:"flatrate,omitempty"`
	Rent     []WatchProvider `json:"rent,omitempty"`
	Buy      []WatchProvider `json:"buy,omitempty"`
}
