package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"reelist/models"
)

type fakeEpisodeSource struct {
	mu     sync.Mutex
	counts map[string]int
	calls  int
}

func (f *fakeEpisodeSource) SeasonEpisodeCount(_ context.Context, tvID int64, season int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	count, ok := f.counts[fmt.Sprintf("%d:%d", tvID, season)]
	if !ok {
		return 0, errors.New("season not found")
	}
	return count, nil
}

type fakeRecorder struct {
	mu         sync.Mutex
	activities []models.Activity
}

func (f *fakeRecorder) Record(_ context.Context, a models.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = append(f.activities, a)
	return nil
}

func (f *fakeRecorder) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.activities))
	for _, a := range f.activities {
		out = append(out, a.Action)
	}
	return out
}

func newTestService(t *testing.T, episodes *fakeEpisodeSource, recorder *fakeRecorder) *Service {
	t.Helper()
	if episodes == nil {
		episodes = &fakeEpisodeSource{counts: map[string]int{}}
	}
	var rec Recorder
	if recorder != nil {
		rec = recorder
	}
	svc, err := NewService(t.TempDir(), episodes, rec)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func movieEntry(id int64, title string) models.WatchlistEntry {
	return models.WatchlistEntry{ID: id, Kind: models.KindMovie, Title: title}
}

func tvEntry(id int64, title string, totalSeasons, episodesInSeason int) models.WatchlistEntry {
	return models.WatchlistEntry{
		ID:               id,
		Kind:             models.KindTV,
		Title:            title,
		TotalSeasons:     totalSeasons,
		EpisodesInSeason: episodesInSeason,
	}
}

func TestMoveToListEnforcesSingleMembership(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	prev, err := svc.MoveToList(ctx, "alice", movieEntry(550, "Fight Club"), models.ListWatching)
	if err != nil {
		t.Fatalf("move to watching: %v", err)
	}
	if prev != "" {
		t.Fatalf("expected fresh add, got previous list %q", prev)
	}

	prev, err = svc.MoveToList(ctx, "alice", movieEntry(550, "Fight Club"), models.ListCompleted)
	if err != nil {
		t.Fatalf("move to completed: %v", err)
	}
	if prev != models.ListWatching {
		t.Fatalf("expected previous list %q, got %q", models.ListWatching, prev)
	}

	doc, err := svc.Document("alice", models.KindMovie)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if len(doc.Watching) != 0 {
		t.Fatalf("expected empty watching list, got %d entries", len(doc.Watching))
	}
	if len(doc.Completed) != 1 || doc.Completed[0].ID != 550 {
		t.Fatalf("expected one completed entry with id 550, got %+v", doc.Completed)
	}
}

func TestMoveToListIsIdempotentPerTarget(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.MoveToList(ctx, "alice", movieEntry(603, "The Matrix"), models.ListPlanned); err != nil {
		t.Fatalf("first add: %v", err)
	}
	prev, err := svc.MoveToList(ctx, "alice", movieEntry(603, "The Matrix"), models.ListPlanned)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if prev != models.ListPlanned {
		t.Fatalf("expected previous list planned, got %q", prev)
	}

	doc, err := svc.Document("alice", models.KindMovie)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if len(doc.Planned) != 1 {
		t.Fatalf("expected exactly one planned entry after re-add, got %d", len(doc.Planned))
	}
}

func TestMoveToListValidation(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.MoveToList(ctx, "", movieEntry(1, "X"), models.ListWatching); !errors.Is(err, ErrUserIDRequired) {
		t.Fatalf("expected ErrUserIDRequired, got %v", err)
	}
	if _, err := svc.MoveToList(ctx, "alice", movieEntry(0, "X"), models.ListWatching); !errors.Is(err, ErrIDRequired) {
		t.Fatalf("expected ErrIDRequired, got %v", err)
	}
	entry := movieEntry(1, "X")
	entry.Kind = "radio"
	if _, err := svc.MoveToList(ctx, "alice", entry, models.ListWatching); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if _, err := svc.MoveToList(ctx, "alice", movieEntry(1, "X"), "favorites"); !errors.Is(err, ErrUnknownList) {
		t.Fatalf("expected ErrUnknownList, got %v", err)
	}
}

func TestMoveToListInitializesTVProgress(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.MoveToList(ctx, "alice", tvEntry(1396, "Breaking Bad", 5, 7), models.ListWatching); err != nil {
		t.Fatalf("move: %v", err)
	}

	doc, err := svc.Document("alice", models.KindTV)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	got := doc.Watching[0]
	if got.CurrentSeason != 1 || got.CurrentEpisode != 1 {
		t.Fatalf("expected fresh add at S1E1, got S%dE%d", got.CurrentSeason, got.CurrentEpisode)
	}
}

func TestMoveToCompletedMarksShowFinished(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.MoveToList(ctx, "alice", tvEntry(1396, "Breaking Bad", 5, 16), models.ListCompleted); err != nil {
		t.Fatalf("move: %v", err)
	}

	doc, err := svc.Document("alice", models.KindTV)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	got := doc.Completed[0]
	if got.CurrentSeason != 5 || got.CurrentEpisode != 16 {
		t.Fatalf("expected progress at final episode, got S%dE%d", got.CurrentSeason, got.CurrentEpisode)
	}
}

func TestMovePreservesProgressAndRating(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.MoveToList(ctx, "alice", tvEntry(1396, "Breaking Bad", 5, 7), models.ListWatching); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.UpdateRating("alice", models.KindTV, 1396, models.ListWatching, 9.5); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if _, err := svc.StepEpisode(ctx, "alice", 1396, models.ListWatching, 1); err != nil {
		t.Fatalf("step: %v", err)
	}

	if _, err := svc.MoveToList(ctx, "alice", tvEntry(1396, "Breaking Bad", 0, 0), models.ListPlanned); err != nil {
		t.Fatalf("move to planned: %v", err)
	}

	doc, err := svc.Document("alice", models.KindTV)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	got := doc.Planned[0]
	if got.CurrentSeason != 1 || got.CurrentEpisode != 2 {
		t.Fatalf("expected progress carried over to S1E2, got S%dE%d", got.CurrentSeason, got.CurrentEpisode)
	}
	if got.Rating == nil || *got.Rating != 9.5 {
		t.Fatalf("expected rating 9.5 carried over, got %v", got.Rating)
	}
}

func TestRemove(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.MoveToList(ctx, "alice", movieEntry(550, "Fight Club"), models.ListWatching); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := svc.Remove("alice", models.KindMovie, 550, models.ListWatching); err != nil {
		t.Fatalf("remove: %v", err)
	}
	doc, err := svc.Document("alice", models.KindMovie)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if len(doc.Watching) != 0 {
		t.Fatalf("expected empty watching list, got %d entries", len(doc.Watching))
	}

	if err := svc.Remove("alice", models.KindMovie, 550, models.ListWatching); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound on second remove, got %v", err)
	}
}

func TestUpdateRating(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.MoveToList(ctx, "alice", movieEntry(603, "The Matrix"), models.ListCompleted); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := svc.UpdateRating("alice", models.KindMovie, 603, models.ListCompleted, 10.5); !errors.Is(err, ErrRatingOutOfRange) {
		t.Fatalf("expected ErrRatingOutOfRange above scale, got %v", err)
	}
	if err := svc.UpdateRating("alice", models.KindMovie, 603, models.ListCompleted, -1); !errors.Is(err, ErrRatingOutOfRange) {
		t.Fatalf("expected ErrRatingOutOfRange below scale, got %v", err)
	}
	if err := svc.UpdateRating("alice", models.KindMovie, 99, models.ListCompleted, 8); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound for unknown id, got %v", err)
	}

	if err := svc.UpdateRating("alice", models.KindMovie, 603, models.ListCompleted, 9); err != nil {
		t.Fatalf("rate: %v", err)
	}
	doc, err := svc.Document("alice", models.KindMovie)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if doc.Completed[0].Rating == nil || *doc.Completed[0].Rating != 9 {
		t.Fatalf("expected rating 9, got %v", doc.Completed[0].Rating)
	}
}

func TestStepEpisodeWithinSeason(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.MoveToList(ctx, "alice", tvEntry(1399, "Game of Thrones", 8, 10), models.ListWatching); err != nil {
		t.Fatalf("add: %v", err)
	}

	res, err := svc.StepEpisode(ctx, "alice", 1399, models.ListWatching, 1)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if res.Season != 1 || res.Episode != 2 || res.Completed {
		t.Fatalf("expected S1E2, got %+v", res)
	}
}

func TestStepEpisodeRollsIntoNextSeason(t *testing.T) {
	episodes := &fakeEpisodeSource{counts: map[string]int{"1399:2": 10}}
	svc := newTestService(t, episodes, nil)
	ctx := context.Background()

	entry := tvEntry(1399, "Game of Thrones", 8, 10)
	entry.CurrentSeason = 1
	entry.CurrentEpisode = 10
	if _, err := svc.MoveToList(ctx, "alice", entry, models.ListWatching); err != nil {
		t.Fatalf("add: %v", err)
	}

	res, err := svc.StepEpisode(ctx, "alice", 1399, models.ListWatching, 1)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if res.Season != 2 || res.Episode != 1 {
		t.Fatalf("expected rollover to S2E1, got S%dE%d", res.Season, res.Episode)
	}
	if res.EpisodesInSeason != 10 {
		t.Fatalf("expected fetched episode count 10, got %d", res.EpisodesInSeason)
	}
	if episodes.calls != 1 {
		t.Fatalf("expected one episode count fetch, got %d", episodes.calls)
	}
}

func TestStepEpisodeCompletesShow(t *testing.T) {
	recorder := &fakeRecorder{}
	svc := newTestService(t, nil, recorder)
	ctx := context.Background()

	entry := tvEntry(1396, "Breaking Bad", 5, 16)
	entry.CurrentSeason = 5
	entry.CurrentEpisode = 16
	if _, err := svc.MoveToList(ctx, "alice", entry, models.ListWatching); err != nil {
		t.Fatalf("add: %v", err)
	}

	res, err := svc.StepEpisode(ctx, "alice", 1396, models.ListWatching, 1)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if !res.Completed {
		t.Fatalf("expected completion, got %+v", res)
	}

	doc, err := svc.Document("alice", models.KindTV)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if len(doc.Watching) != 0 {
		t.Fatalf("expected show removed from watching, got %d entries", len(doc.Watching))
	}
	if len(doc.Completed) != 1 || doc.Completed[0].ID != 1396 {
		t.Fatalf("expected show in completed, got %+v", doc.Completed)
	}

	actions := recorder.actions()
	if len(actions) != 2 || actions[1] != "completed" {
		t.Fatalf("expected completion activity, got %v", actions)
	}
}

func TestStepEpisodeDecrement(t *testing.T) {
	episodes := &fakeEpisodeSource{counts: map[string]int{"1399:1": 10}}
	svc := newTestService(t, episodes, nil)
	ctx := context.Background()

	entry := tvEntry(1399, "Game of Thrones", 8, 10)
	entry.CurrentSeason = 2
	entry.CurrentEpisode = 1
	if _, err := svc.MoveToList(ctx, "alice", entry, models.ListWatching); err != nil {
		t.Fatalf("add: %v", err)
	}

	res, err := svc.StepEpisode(ctx, "alice", 1399, models.ListWatching, -1)
	if err != nil {
		t.Fatalf("step back: %v", err)
	}
	if res.Season != 1 || res.Episode != 10 {
		t.Fatalf("expected rollback to S1E10, got S%dE%d", res.Season, res.Episode)
	}
}

func TestStepEpisodeClampsAtStart(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.MoveToList(ctx, "alice", tvEntry(1399, "Game of Thrones", 8, 10), models.ListWatching); err != nil {
		t.Fatalf("add: %v", err)
	}

	res, err := svc.StepEpisode(ctx, "alice", 1399, models.ListWatching, -1)
	if err != nil {
		t.Fatalf("step back: %v", err)
	}
	if res.Season != 1 || res.Episode != 1 {
		t.Fatalf("expected clamp at S1E1, got S%dE%d", res.Season, res.Episode)
	}
}

func TestStepEpisodeSerializesPerUser(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.MoveToList(ctx, "alice", tvEntry(1399, "Game of Thrones", 8, 10), models.ListWatching); err != nil {
		t.Fatalf("add: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.StepEpisode(ctx, "alice", 1399, models.ListWatching, 1); err != nil {
				t.Errorf("step: %v", err)
			}
		}()
	}
	wg.Wait()

	doc, err := svc.Document("alice", models.KindTV)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if got := doc.Watching[0].CurrentEpisode; got != 3 {
		t.Fatalf("expected two concurrent steps to land at episode 3, got %d", got)
	}
}

func TestActivityActionsForMoves(t *testing.T) {
	recorder := &fakeRecorder{}
	svc := newTestService(t, nil, recorder)
	ctx := context.Background()

	if _, err := svc.MoveToList(ctx, "alice", movieEntry(603, "The Matrix"), models.ListPlanned); err != nil {
		t.Fatalf("add to planned: %v", err)
	}
	if _, err := svc.MoveToList(ctx, "alice", movieEntry(603, "The Matrix"), models.ListWatching); err != nil {
		t.Fatalf("move to watching: %v", err)
	}
	if _, err := svc.MoveToList(ctx, "alice", movieEntry(603, "The Matrix"), models.ListCompleted); err != nil {
		t.Fatalf("move to completed: %v", err)
	}
	if _, err := svc.MoveToList(ctx, "alice", movieEntry(680, "Pulp Fiction"), models.ListCompleted); err != nil {
		t.Fatalf("fresh completed add: %v", err)
	}

	want := []string{"added to plan to watch", "moved to watching", "marked as completed", "completed"}
	got := recorder.actions()
	if len(got) != len(want) {
		t.Fatalf("expected %d activities, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("activity %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestDocumentsPersistAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	episodes := &fakeEpisodeSource{counts: map[string]int{}}
	ctx := context.Background()

	svc, err := NewService(dir, episodes, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := svc.MoveToList(ctx, "alice", movieEntry(550, "Fight Club"), models.ListWatching); err != nil {
		t.Fatalf("add movie: %v", err)
	}
	if _, err := svc.MoveToList(ctx, "alice", tvEntry(1396, "Breaking Bad", 5, 7), models.ListPlanned); err != nil {
		t.Fatalf("add show: %v", err)
	}
	if err := svc.UpdateRating("alice", models.KindMovie, 550, models.ListWatching, 8.5); err != nil {
		t.Fatalf("rate: %v", err)
	}

	reloaded, err := NewService(dir, episodes, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	movies, err := reloaded.Document("alice", models.KindMovie)
	if err != nil {
		t.Fatalf("movie document: %v", err)
	}
	if len(movies.Watching) != 1 || movies.Watching[0].Rating == nil || *movies.Watching[0].Rating != 8.5 {
		t.Fatalf("expected rated movie to survive reload, got %+v", movies.Watching)
	}

	shows, err := reloaded.Document("alice", models.KindTV)
	if err != nil {
		t.Fatalf("tv document: %v", err)
	}
	if len(shows.Planned) != 1 || shows.Planned[0].CurrentSeason != 1 {
		t.Fatalf("expected planned show at S1 to survive reload, got %+v", shows.Planned)
	}
}
