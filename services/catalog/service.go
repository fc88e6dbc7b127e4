package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/iter"

	"reelist/models"
)

// Sort modes accepted by Discover and applied as a second pass after merging.
const (
	SortPopularity = "popularity.desc"
	SortTopRated   = "vote_average.desc"
	SortNewest     = "release_date.desc"
	SortOldest     = "release_date.asc"
	SortTrending   = "trending"
)

// FormatAny requests both movie and tv results.
const FormatAny = "any"

const cacheTTL = 6 * time.Hour

// Filters narrows a catalog query. Zero values mean "no filter".
type Filters struct {
	Query      string
	Format     string // movie | tv | any
	Sort       string
	GenreID    int64
	Year       int
	ProviderID int64
}

func (f Filters) kinds() []string {
	switch models.NormalizeKind(f.Format) {
	case models.KindMovie:
		return []string{models.KindMovie}
	case models.KindTV:
		return []string{models.KindTV}
	}
	return []string{models.KindMovie, models.KindTV}
}

// Service composes TMDB queries: it issues one request per media kind,
// merges the responses in call order, deduplicates by (id, kind) and applies
// the client-side sort and filter passes the remote API cannot express.
type Service struct {
	client      *tmdbClient
	watchRegion string

	cacheMu     sync.RWMutex
	genreCache  map[string]cachedGenres
	seasonCache map[string]cachedCount
}

type cachedGenres struct {
	genres  []models.Genre
	expires time.Time
}

type cachedCount struct {
	count   int
	expires time.Time
}

// NewService creates a catalog service backed by TMDB.
func NewService(apiKey, language, watchRegion string) *Service {
	if strings.TrimSpace(watchRegion) == "" {
		watchRegion = "US"
	}
	return &Service{
		client:      newTMDBClient(apiKey, language, nil),
		watchRegion: watchRegion,
		genreCache:  make(map[string]cachedGenres),
		seasonCache: make(map[string]cachedCount),
	}
}

// SetHTTPClient swaps the underlying HTTP client. Used by tests.
func (s *Service) SetHTTPClient(httpc *http.Client) {
	s.client.httpc = httpc
}

// SetBaseURL points the client at a different TMDB endpoint. Used by tests.
func (s *Service) SetBaseURL(base string) {
	s.client.baseURL = strings.TrimRight(base, "/")
}

type listQuery struct {
	path   string
	kind   string
	params url.Values
}

// Search issues one search query per kind allowed by f.Format. Search cannot
// express genre or year natively, so both are applied client-side afterwards.
func (s *Service) Search(ctx context.Context, f Filters, page int) (models.ResultPage, error) {
	q := strings.TrimSpace(f.Query)
	if q == "" {
		return models.ResultPage{Page: normalizePage(page), TotalPages: 1, Items: []models.CatalogItem{}}, nil
	}
	page = normalizePage(page)

	queries := make([]listQuery, 0, 2)
	for _, kind := range f.kinds() {
		params := url.Values{}
		params.Set("query", q)
		params.Set("page", strconv.Itoa(page))
		queries = append(queries, listQuery{path: "search/" + kind, kind: kind, params: params})
	}

	return s.fetchMerged(ctx, queries, f, page, true)
}

// Trending fetches the weekly trending feeds. Like search, trending has no
// native filter support, so genre/year are post-filtered.
func (s *Service) Trending(ctx context.Context, f Filters, page int) (models.ResultPage, error) {
	page = normalizePage(page)

	queries := make([]listQuery, 0, 2)
	for _, kind := range f.kinds() {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		queries = append(queries, listQuery{path: "trending/" + kind + "/week", kind: kind, params: params})
	}

	return s.fetchMerged(ctx, queries, f, page, true)
}

// Discover builds one discover query per kind with every filter the endpoint
// supports natively. Top-rated mode blends a high-vote-count rating query with
// a first-page popularity query so well known titles surface, then the merged
// set is re-sorted by vote average as the correctness pass.
func (s *Service) Discover(ctx context.Context, f Filters, page int) (models.ResultPage, error) {
	if f.Sort == SortTrending {
		return s.Trending(ctx, f, page)
	}
	page = normalizePage(page)

	queries := make([]listQuery, 0, 4)
	for _, kind := range f.kinds() {
		if f.Sort == SortTopRated {
			params := s.discoverParams(f, kind, page)
			params.Set("sort_by", SortTopRated)
			params.Set("vote_count.gte", "500")
			queries = append(queries, listQuery{path: "discover/" + kind, kind: kind, params: params})

			// Mix in popular titles on the first page only, to avoid
			// re-fetching the same blend on every load-more.
			if page == 1 {
				popular := s.discoverParams(f, kind, 1)
				popular.Set("sort_by", SortPopularity)
				queries = append(queries, listQuery{path: "discover/" + kind, kind: kind, params: popular})
			}
			continue
		}

		params := s.discoverParams(f, kind, page)
		if f.Sort != "" {
			params.Set("sort_by", f.Sort)
		}
		params.Set("vote_count.gte", "100")
		queries = append(queries, listQuery{path: "discover/" + kind, kind: kind, params: params})
	}

	return s.fetchMerged(ctx, queries, f, page, false)
}

func (s *Service) discoverParams(f Filters, kind string, page int) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	if f.GenreID > 0 {
		params.Set("with_genres", strconv.FormatInt(f.GenreID, 10))
	}
	if f.Year > 0 {
		if kind == models.KindMovie {
			params.Set("year", strconv.Itoa(f.Year))
		} else {
			params.Set("first_air_date_year", strconv.Itoa(f.Year))
		}
	}
	if f.ProviderID > 0 {
		params.Set("with_watch_providers", strconv.FormatInt(f.ProviderID, 10))
		params.Set("watch_region", s.watchRegion)
	}
	return params
}

// Similar returns titles similar to the given one, tagged with its kind.
func (s *Service) Similar(ctx context.Context, kind string, id int64, page int) (models.ResultPage, error) {
	page = normalizePage(page)
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	queries := []listQuery{{path: fmt.Sprintf("%s/%d/similar", kind, id), kind: kind, params: params}}
	return s.fetchMerged(ctx, queries, Filters{}, page, false)
}

// fetchMerged runs all queries in parallel, merges responses preserving call
// and response order, applies post filters when the endpoints could not, and
// keeps the first occurrence of every (id, kind) pair.
func (s *Service) fetchMerged(ctx context.Context, queries []listQuery, f Filters, page int, postFilter bool) (models.ResultPage, error) {
	pages, err := iter.MapErr(queries, func(q *listQuery) (listPage, error) {
		return s.client.list(ctx, q.path, q.kind, q.params)
	})
	if err != nil {
		return models.ResultPage{}, err
	}

	merged := make([]models.CatalogItem, 0, 40)
	totalPages := 1
	for _, p := range pages {
		merged = append(merged, p.items...)
		if p.totalPages > totalPages {
			totalPages = p.totalPages
		}
	}

	if postFilter {
		merged = applyPostFilters(merged, f)
	}
	merged = dedupe(merged)
	sortItems(merged, f.Sort)

	return models.ResultPage{Items: merged, Page: page, TotalPages: totalPages}, nil
}

// applyPostFilters handles genre and year for endpoints without native
// support. Items with no date at all are dropped by the year filter.
func applyPostFilters(items []models.CatalogItem, f Filters) []models.CatalogItem {
	if f.GenreID == 0 && f.Year == 0 {
		return items
	}

	filtered := items[:0]
	for _, item := range items {
		if f.GenreID > 0 && !containsGenre(item.GenreIDs, f.GenreID) {
			continue
		}
		if f.Year > 0 && releaseYear(item.ReleaseDate) != f.Year {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

func containsGenre(ids []int64, want int64) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}

// dedupe keeps the first occurrence of each (id, kind) pair, preserving the
// merged encounter order.
func dedupe(items []models.CatalogItem) []models.CatalogItem {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		key := item.Ref().Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func sortItems(items []models.CatalogItem, mode string) {
	switch mode {
	case SortTopRated:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].VoteAverage > items[j].VoteAverage
		})
	case SortNewest:
		sort.SliceStable(items, func(i, j int) bool {
			return parseReleaseDate(items[i].ReleaseDate).After(parseReleaseDate(items[j].ReleaseDate))
		})
	case SortOldest:
		sort.SliceStable(items, func(i, j int) bool {
			return parseReleaseDate(items[i].ReleaseDate).Before(parseReleaseDate(items[j].ReleaseDate))
		})
	}
}

// parseReleaseDate parses a TMDB date string. Missing or malformed dates sort
// as the zero time, i.e. before everything real.
func parseReleaseDate(date string) time.Time {
	if date == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}
	}
	return t
}

func releaseYear(date string) int {
	t := parseReleaseDate(date)
	if t.IsZero() {
		return 0
	}
	return t.Year()
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// Details fetches the full detail record for one title.
func (s *Service) Details(ctx context.Context, kind string, id int64) (models.MediaDetails, error) {
	return s.client.details(ctx, kind, id)
}

// Credits fetches the cast list for one title.
func (s *Service) Credits(ctx context.Context, kind string, id int64) ([]models.CastMember, error) {
	return s.client.credits(ctx, kind, id)
}

// Providers fetches streaming availability in the configured watch region.
func (s *Service) Providers(ctx context.Context, kind string, id int64) (models.ProviderRegion, error) {
	return s.client.watchProviders(ctx, kind, id, s.watchRegion)
}

// Genres returns the genre list for a kind, cached for a few hours since the
// list changes essentially never.
func (s *Service) Genres(ctx context.Context, kind string) ([]models.Genre, error) {
	s.cacheMu.RLock()
	if cached, ok := s.genreCache[kind]; ok && time.Now().Before(cached.expires) {
		s.cacheMu.RUnlock()
		return cached.genres, nil
	}
	s.cacheMu.RUnlock()

	genres, err := s.client.genres(ctx, kind)
	if err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.genreCache[kind] = cachedGenres{genres: genres, expires: time.Now().Add(cacheTTL)}
	s.cacheMu.Unlock()

	return genres, nil
}

// SeasonEpisodeCount returns how many episodes a season has, cached per
// (show, season). The watchlist manager calls this on every season rollover.
func (s *Service) SeasonEpisodeCount(ctx context.Context, tvID int64, season int) (int, error) {
	key := strconv.FormatInt(tvID, 10) + ":" + strconv.Itoa(season)

	s.cacheMu.RLock()
	if cached, ok := s.seasonCache[key]; ok && time.Now().Before(cached.expires) {
		s.cacheMu.RUnlock()
		return cached.count, nil
	}
	s.cacheMu.RUnlock()

	count, err := s.client.seasonEpisodeCount(ctx, tvID, season)
	if err != nil {
		return 0, err
	}

	s.cacheMu.Lock()
	s.seasonCache[key] = cachedCount{count: count, expires: time.Now().Add(cacheTTL)}
	s.cacheMu.Unlock()

	return count, nil
}
