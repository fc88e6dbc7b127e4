package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"reelist/models"
)

type fakeTMDB struct {
	mu       sync.Mutex
	requests map[string]int
	handlers map[string]any // path -> response payload
}

func newFakeTMDB() *fakeTMDB {
	return &fakeTMDB{
		requests: make(map[string]int),
		handlers: make(map[string]any),
	}
}

func (f *fakeTMDB) respond(path string, payload any) {
	f.handlers[path] = payload
}

func (f *fakeTMDB) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeTMDB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests[r.URL.Path]++
	f.mu.Unlock()

	payload, ok := f.handlers[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func listResponse(totalPages int, results ...map[string]any) map[string]any {
	return map[string]any{
		"page":        1,
		"results":     results,
		"total_pages": totalPages,
	}
}

func movieRow(id int64, title, date string, vote float64, genres ...int64) map[string]any {
	return map[string]any{
		"id":           id,
		"title":        title,
		"release_date": date,
		"vote_average": vote,
		"genre_ids":    genres,
	}
}

func tvRow(id int64, name, date string, vote float64, genres ...int64) map[string]any {
	return map[string]any{
		"id":             id,
		"name":           name,
		"first_air_date": date,
		"vote_average":   vote,
		"genre_ids":      genres,
	}
}

func newTestService(t *testing.T, fake *fakeTMDB) *Service {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	svc := NewService("test-key", "en-US", "US")
	svc.SetBaseURL(server.URL)
	svc.SetHTTPClient(server.Client())
	svc.client.minInterval = 0
	return svc
}

func keys(items []models.CatalogItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Ref().Key())
	}
	return out
}

func TestSearchMergesKindsWithExplicitTags(t *testing.T) {
	fake := newFakeTMDB()
	// Same numeric id on both sides must stay two distinct items.
	fake.respond("/search/movie", listResponse(2, movieRow(42, "Alpha", "2020-01-01", 7.0)))
	fake.respond("/search/tv", listResponse(5, tvRow(42, "Alpha Show", "2021-01-01", 8.0)))
	svc := newTestService(t, fake)

	page, err := svc.Search(context.Background(), Filters{Query: "alpha", Format: FormatAny}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	got := keys(page.Items)
	want := []string{"movie:42", "tv:42"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if page.TotalPages != 5 {
		t.Fatalf("expected max total pages 5, got %d", page.TotalPages)
	}
}

func TestSearchDeduplicatesKeepingFirstOccurrence(t *testing.T) {
	fake := newFakeTMDB()
	fake.respond("/search/movie", listResponse(1,
		movieRow(1, "First", "2020-01-01", 7.0),
		movieRow(2, "Second", "2020-02-01", 6.0),
		movieRow(1, "First Again", "2020-01-01", 7.0),
	))
	svc := newTestService(t, fake)

	page, err := svc.Search(context.Background(), Filters{Query: "first", Format: "movie"}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(page.Items) != 2 {
		t.Fatalf("expected duplicate dropped, got %d items", len(page.Items))
	}
	if page.Items[0].Title != "First" {
		t.Fatalf("expected first occurrence kept, got %q", page.Items[0].Title)
	}
}

func TestSearchEmptyQueryReturnsEmptyPage(t *testing.T) {
	fake := newFakeTMDB()
	svc := newTestService(t, fake)

	page, err := svc.Search(context.Background(), Filters{Query: "   "}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(page.Items) != 0 || page.TotalPages != 1 {
		t.Fatalf("expected empty page, got %+v", page)
	}
	if fake.count("/search/movie") != 0 || fake.count("/search/tv") != 0 {
		t.Fatal("no requests should be issued for an empty query")
	}
}

func TestSearchPostFiltersGenreAndYear(t *testing.T) {
	fake := newFakeTMDB()
	fake.respond("/search/movie", listResponse(1,
		movieRow(1, "Action 2020", "2020-05-01", 7.0, 28),
		movieRow(2, "Drama 2020", "2020-06-01", 7.0, 18),
		movieRow(3, "Action 2019", "2019-05-01", 7.0, 28),
		movieRow(4, "Undated Action", "", 7.0, 28),
	))
	svc := newTestService(t, fake)

	page, err := svc.Search(context.Background(), Filters{Query: "action", Format: "movie", GenreID: 28, Year: 2020}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(page.Items) != 1 || page.Items[0].ID != 1 {
		t.Fatalf("expected only the 2020 action title, got %v", keys(page.Items))
	}
}

func TestSearchPartialFailureFailsWholeCall(t *testing.T) {
	fake := newFakeTMDB()
	fake.respond("/search/movie", listResponse(1, movieRow(1, "Alpha", "2020-01-01", 7.0)))
	// No /search/tv handler: that half 404s.
	svc := newTestService(t, fake)

	if _, err := svc.Search(context.Background(), Filters{Query: "alpha", Format: FormatAny}, 1); err == nil {
		t.Fatal("expected error when one kind's fetch fails")
	}
}

func TestDiscoverSortsByReleaseDate(t *testing.T) {
	fake := newFakeTMDB()
	fake.respond("/discover/movie", listResponse(1,
		movieRow(1, "Old", "1999-01-01", 7.0),
		movieRow(2, "New", "2023-01-01", 7.0),
		movieRow(3, "Undated", "", 7.0),
		movieRow(4, "Mid", "2010-01-01", 7.0),
	))
	svc := newTestService(t, fake)

	page, err := svc.Discover(context.Background(), Filters{Format: "movie", Sort: SortNewest}, 1)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	got := keys(page.Items)
	want := []string{"movie:2", "movie:4", "movie:1", "movie:3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestDiscoverTopRatedBlendsPopularOnFirstPage(t *testing.T) {
	fake := newFakeTMDB()
	// Both the rating query and the popularity blend hit the same path; the
	// handler returns overlapping rows so the dedupe pass matters.
	fake.respond("/discover/movie", listResponse(1,
		movieRow(1, "Nine", "2020-01-01", 9.0),
		movieRow(2, "Seven", "2020-01-01", 7.0),
		movieRow(3, "Eight", "2020-01-01", 8.0),
	))
	svc := newTestService(t, fake)

	page, err := svc.Discover(context.Background(), Filters{Format: "movie", Sort: SortTopRated}, 1)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	if fake.count("/discover/movie") != 2 {
		t.Fatalf("expected rating query plus popularity blend, got %d requests", fake.count("/discover/movie"))
	}
	got := keys(page.Items)
	want := []string{"movie:1", "movie:3", "movie:2"}
	if len(got) != 3 {
		t.Fatalf("expected blended rows deduplicated to 3, got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected vote order %v, got %v", want, got)
		}
	}

	fake.mu.Lock()
	fake.requests = map[string]int{}
	fake.mu.Unlock()

	if _, err := svc.Discover(context.Background(), Filters{Format: "movie", Sort: SortTopRated}, 2); err != nil {
		t.Fatalf("discover page 2: %v", err)
	}
	if fake.count("/discover/movie") != 1 {
		t.Fatalf("expected no popularity blend past page 1, got %d requests", fake.count("/discover/movie"))
	}
}

func TestDiscoverRoutesTrendingSort(t *testing.T) {
	fake := newFakeTMDB()
	fake.respond("/trending/movie/week", listResponse(1, movieRow(1, "Hot", "2023-01-01", 7.0)))
	svc := newTestService(t, fake)

	page, err := svc.Discover(context.Background(), Filters{Format: "movie", Sort: SortTrending}, 1)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if fake.count("/trending/movie/week") != 1 || fake.count("/discover/movie") != 0 {
		t.Fatal("expected trending sort to hit the trending endpoint")
	}
	if len(page.Items) != 1 || page.Items[0].Kind != models.KindMovie {
		t.Fatalf("expected one movie-tagged item, got %+v", page.Items)
	}
}

func TestVoteAveragesAreRounded(t *testing.T) {
	fake := newFakeTMDB()
	fake.respond("/search/movie", listResponse(1, movieRow(1, "Precise", "2020-01-01", 7.456)))
	svc := newTestService(t, fake)

	page, err := svc.Search(context.Background(), Filters{Query: "precise", Format: "movie"}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := page.Items[0].VoteAverage; got != 7.5 {
		t.Fatalf("expected vote average rounded to 7.5, got %v", got)
	}
}

func TestSeasonEpisodeCountIsCached(t *testing.T) {
	fake := newFakeTMDB()
	fake.respond("/tv/1399/season/2", map[string]any{
		"season_number": 2,
		"episodes": []map[string]any{
			{"episode_number": 1, "name": "One"},
			{"episode_number": 2, "name": "Two"},
		},
	})
	svc := newTestService(t, fake)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		count, err := svc.SeasonEpisodeCount(ctx, 1399, 2)
		if err != nil {
			t.Fatalf("season episode count: %v", err)
		}
		if count != 2 {
			t.Fatalf("expected 2 episodes, got %d", count)
		}
	}

	if fake.count("/tv/1399/season/2") != 1 {
		t.Fatalf("expected one upstream fetch, got %d", fake.count("/tv/1399/season/2"))
	}
}

func TestGenresAreCachedPerKind(t *testing.T) {
	fake := newFakeTMDB()
	fake.respond("/genre/movie/list", map[string]any{
		"genres": []map[string]any{{"id": 28, "name": "Action"}},
	})
	svc := newTestService(t, fake)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		genres, err := svc.Genres(ctx, models.KindMovie)
		if err != nil {
			t.Fatalf("genres: %v", err)
		}
		if len(genres) != 1 || genres[0].Name != "Action" {
			t.Fatalf("unexpected genres %+v", genres)
		}
	}
	if fake.count("/genre/movie/list") != 1 {
		t.Fatalf("expected one upstream fetch, got %d", fake.count("/genre/movie/list"))
	}
}

func TestDiscoverSendsNativeFilterParams(t *testing.T) {
	var captured []string
	fake := newFakeTMDB()
	fake.respond("/discover/tv", listResponse(1, tvRow(1, "Filtered", "2021-01-01", 7.0, 18)))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = append(captured, r.URL.RawQuery)
		fake.ServeHTTP(w, r)
	}))
	defer server.Close()

	svc := NewService("test-key", "en-US", "US")
	svc.SetBaseURL(server.URL)
	svc.SetHTTPClient(server.Client())
	svc.client.minInterval = 0

	_, err := svc.Discover(context.Background(), Filters{Format: "tv", GenreID: 18, Year: 2021, ProviderID: 8}, 1)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	if len(captured) != 1 {
		t.Fatalf("expected one request, got %d", len(captured))
	}
	query := captured[0]
	for _, want := range []string{"with_genres=18", "first_air_date_year=2021", "with_watch_providers=8", "watch_region=US", "vote_count.gte=100"} {
		if !strings.Contains(query, want) {
			t.Fatalf("expected query to contain %s, got %s", want, query)
		}
	}
}

func TestClientFailsWithoutAPIKey(t *testing.T) {
	svc := NewService("", "en-US", "US")
	if _, err := svc.Search(context.Background(), Filters{Query: "x", Format: "movie"}, 1); err == nil {
		t.Fatal("expected error without an api key")
	} else if !strings.Contains(fmt.Sprint(err), ErrNotConfigured.Error()) {
		t.Fatalf("expected not-configured error, got %v", err)
	}
}
