package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"reelist/models"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

var (
	ErrNotConfigured = errors.New("tmdb api key not configured")
	ErrTitleNotFound = errors.New("title not found")
)

// tmdbClient is a thin TMDB v3 API client. All endpoints take the API key as
// a query parameter and wrap list payloads in a results/total_pages envelope.
type tmdbClient struct {
	apiKey   string
	language string
	baseURL  string
	httpc    *http.Client

	// Rate limiting
	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

func newTMDBClient(apiKey, language string, httpc *http.Client) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	if strings.TrimSpace(language) == "" {
		language = "en-US"
	}
	return &tmdbClient{
		apiKey:      strings.TrimSpace(apiKey),
		language:    language,
		baseURL:     defaultBaseURL,
		httpc:       httpc,
		minInterval: 20 * time.Millisecond, // TMDB has generous rate limits
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

// doGET performs a GET with rate limiting and retry with exponential backoff.
// 4xx responses other than 429 are not retried.
func (c *tmdbClient) doGET(ctx context.Context, apiPath string, params url.Values, v any) error {
	if !c.isConfigured() {
		return ErrNotConfigured
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if params.Get("language") == "" {
		params.Set("language", c.language)
	}
	endpoint := c.baseURL + "/" + strings.TrimPrefix(apiPath, "/") + "?" + params.Encode()

	return retry.Do(
		func() error {
			c.throttle()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.httpc.Do(req)
			if err != nil {
				return fmt.Errorf("tmdb %s: %w", apiPath, err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(fmt.Errorf("tmdb %s: %w", apiPath, ErrTitleNotFound))
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				return fmt.Errorf("tmdb %s: %s", apiPath, resp.Status)
			case resp.StatusCode >= 400:
				return retry.Unrecoverable(fmt.Errorf("tmdb %s: %s", apiPath, resp.Status))
			}

			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				return retry.Unrecoverable(fmt.Errorf("tmdb %s: decode: %w", apiPath, err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

func (c *tmdbClient) throttle() {
	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()
	if since := time.Since(c.lastRequest); since < c.minInterval {
		time.Sleep(c.minInterval - since)
	}
	c.lastRequest = time.Now()
}

type tmdbListItem struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"` // movies
	Name         string  `json:"name"`  // tv
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int64   `json:"vote_count"`
	Popularity   float64 `json:"popularity"`
	GenreIDs     []int64 `json:"genre_ids"`
}

type tmdbListResponse struct {
	Page       int            `json:"page"`
	Results    []tmdbListItem `json:"results"`
	TotalPages int            `json:"total_pages"`
}

type listPage struct {
	items      []models.CatalogItem
	totalPages int
}

// list fetches one list endpoint and normalizes every row, tagging each item
// with the kind that was queried rather than sniffing it from field presence.
func (c *tmdbClient) list(ctx context.Context, apiPath, kind string, params url.Values) (listPage, error) {
	var payload tmdbListResponse
	if err := c.doGET(ctx, apiPath, params, &payload); err != nil {
		return listPage{}, err
	}

	items := make([]models.CatalogItem, 0, len(payload.Results))
	for _, r := range payload.Results {
		items = append(items, normalizeListItem(kind, r))
	}

	totalPages := payload.TotalPages
	if totalPages < 1 {
		totalPages = 1
	}
	return listPage{items: items, totalPages: totalPages}, nil
}

func normalizeListItem(kind string, r tmdbListItem) models.CatalogItem {
	title := r.Title
	date := r.ReleaseDate
	if kind == models.KindTV {
		title = r.Name
		date = r.FirstAirDate
	}
	if title == "" {
		// Trending rows mix kinds; fall back to whichever field is populated.
		if r.Title != "" {
			title = r.Title
		} else {
			title = r.Name
		}
	}
	if date == "" {
		if r.ReleaseDate != "" {
			date = r.ReleaseDate
		} else {
			date = r.FirstAirDate
		}
	}

	return models.CatalogItem{
		ID:           r.ID,
		Kind:         kind,
		Title:        title,
		Overview:     r.Overview,
		PosterPath:   r.PosterPath,
		BackdropPath: r.BackdropPath,
		ReleaseDate:  date,
		VoteAverage:  math.Round(r.VoteAverage*10) / 10,
		VoteCount:    r.VoteCount,
		Popularity:   r.Popularity,
		GenreIDs:     r.GenreIDs,
	}
}

type tmdbGenreResponse struct {
	Genres []models.Genre `json:"genres"`
}

func (c *tmdbClient) genres(ctx context.Context, kind string) ([]models.Genre, error) {
	var payload tmdbGenreResponse
	if err := c.doGET(ctx, "genre/"+kind+"/list", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Genres, nil
}

type tmdbDetailsResponse struct {
	tmdbListItem
	Runtime         int            `json:"runtime"`
	Tagline         string         `json:"tagline"`
	Status          string         `json:"status"`
	Genres          []models.Genre `json:"genres"`
	NumberOfSeasons int            `json:"number_of_seasons"`
	Seasons         []struct {
		SeasonNumber int    `json:"season_number"`
		EpisodeCount int    `json:"episode_count"`
		Name         string `json:"name"`
		AirDate      string `json:"air_date"`
	} `json:"seasons"`
}

func (c *tmdbClient) details(ctx context.Context, kind string, id int64) (models.MediaDetails, error) {
	var payload tmdbDetailsResponse
	if err := c.doGET(ctx, fmt.Sprintf("%s/%d", kind, id), nil, &payload); err != nil {
		return models.MediaDetails{}, err
	}

	details := models.MediaDetails{
		CatalogItem:  normalizeListItem(kind, payload.tmdbListItem),
		Runtime:      payload.Runtime,
		Tagline:      payload.Tagline,
		Status:       payload.Status,
		Genres:       payload.Genres,
		TotalSeasons: payload.NumberOfSeasons,
	}
	for _, s := range payload.Seasons {
		// Season 0 is specials; progress tracking only counts real seasons.
		if s.SeasonNumber < 1 {
			continue
		}
		details.Seasons = append(details.Seasons, models.Season{
			SeasonNumber: s.SeasonNumber,
			EpisodeCount: s.EpisodeCount,
			Name:         s.Name,
			AirDate:      s.AirDate,
		})
	}
	return details, nil
}

type tmdbSeasonResponse struct {
	SeasonNumber int `json:"season_number"`
	Episodes     []struct {
		EpisodeNumber int    `json:"episode_number"`
		Name          string `json:"name"`
	} `json:"episodes"`
}

// seasonEpisodeCount returns the number of episodes in one season of a show.
// Empty seasons count as 1 so progress arithmetic never divides by zero.
func (c *tmdbClient) seasonEpisodeCount(ctx context.Context, tvID int64, season int) (int, error) {
	var payload tmdbSeasonResponse
	if err := c.doGET(ctx, fmt.Sprintf("tv/%d/season/%d", tvID, season), nil, &payload); err != nil {
		return 0, err
	}
	if len(payload.Episodes) == 0 {
		return 1, nil
	}
	return len(payload.Episodes), nil
}

type tmdbCreditsResponse struct {
	Cast []struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Character   string `json:"character"`
		ProfilePath string `json:"profile_path"`
		Order       int    `json:"order"`
	} `json:"cast"`
}

func (c *tmdbClient) credits(ctx context.Context, kind string, id int64) ([]models.CastMember, error) {
	var payload tmdbCreditsResponse
	if err := c.doGET(ctx, fmt.Sprintf("%s/%d/credits", kind, id), nil, &payload); err != nil {
		return nil, err
	}

	cast := make([]models.CastMember, 0, len(payload.Cast))
	for _, m := range payload.Cast {
		cast = append(cast, models.CastMember{
			ID:          m.ID,
			Name:        m.Name,
			Character:   m.Character,
			ProfilePath: m.ProfilePath,
			Order:       m.Order,
		})
	}
	return cast, nil
}

type tmdbProvidersResponse struct {
	Results map[string]struct {
		Link     string             `json:"link"`
		Flatrate []tmdbProviderItem `json:"flatrate"`
		Rent     []tmdbProviderItem `json:"rent"`
		Buy      []tmdbProviderItem `json:"buy"`
	} `json:"results"`
}

type tmdbProviderItem struct {
	ProviderID   int64  `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	LogoPath     string `json:"logo_path"`
}

func (c *tmdbClient) watchProviders(ctx context.Context, kind string, id int64, region string) (models.ProviderRegion, error) {
	var payload tmdbProvidersResponse
	if err := c.doGET(ctx, fmt.Sprintf("%s/%d/watch/providers", kind, id), nil, &payload); err != nil {
		return models.ProviderRegion{}, err
	}

	r, ok := payload.Results[strings.ToUpper(region)]
	if !ok {
		return models.ProviderRegion{}, nil
	}
	return models.ProviderRegion{
		Link:     r.Link,
		Flatrate: mapProviders(r.Flatrate),
		Rent:     mapProviders(r.Rent),
		Buy:      mapProviders(r.Buy),
	}, nil
}

func mapProviders(in []tmdbProviderItem) []models.WatchProvider {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.WatchProvider, 0, len(in))
	for _, p := range in {
		out = append(out, models.WatchProvider{ID: p.ProviderID, Name: p.ProviderName, LogoPath: p.LogoPath})
	}
	return out
}
