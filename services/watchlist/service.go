package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"reelist/models"
)

var (
	ErrStorageDirRequired = errors.New("storage directory not provided")
	ErrUserIDRequired     = errors.New("user id is required")
	ErrIDRequired         = errors.New("media id is required")
	ErrUnknownKind        = errors.New("unknown media kind")
	ErrUnknownList        = errors.New("unknown watchlist")
	ErrEntryNotFound      = errors.New("entry not found in watchlist")
	ErrRatingOutOfRange   = errors.New("rating must be between 0 and 10")
	ErrTitleRequired      = errors.New("title is required")
	ErrInvalidStep        = errors.New("step direction must be +1 or -1")
)

// EpisodeSource provides per-season episode counts for season rollovers.
type EpisodeSource interface {
	SeasonEpisodeCount(ctx context.Context, tvID int64, season int) (int, error)
}

// Recorder appends activity entries. Recording happens only after a
// watchlist write has landed; a recorder failure never fails the mutation.
type Recorder interface {
	Record(ctx context.Context, a models.Activity) error
}

// Service owns the per-user watchlist documents and enforces the core
// invariant: a media id lives in at most one of watching/completed/planned.
// Every mutation is staged on a clone, persisted, and only then swapped into
// memory, so a failed write leaves memory matching disk.
type Service struct {
	mu   sync.Mutex
	path map[string]string                               // kind -> store file
	docs map[string]map[string]*models.WatchlistDocument // kind -> userID -> doc

	userMu map[string]*sync.Mutex // serializes mutations per user

	episodes EpisodeSource
	recorder Recorder
}

// NewService creates a watchlist service storing documents inside the
// provided directory, one JSON store per media kind.
func NewService(storageDir string, episodes EpisodeSource, recorder Recorder) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create watchlist dir: %w", err)
	}

	svc := &Service{
		path: map[string]string{
			models.KindMovie: filepath.Join(storageDir, "moviewatchlist.json"),
			models.KindTV:    filepath.Join(storageDir, "tvwatchlist.json"),
		},
		docs:     make(map[string]map[string]*models.WatchlistDocument),
		userMu:   make(map[string]*sync.Mutex),
		episodes: episodes,
		recorder: recorder,
	}

	for kind := range svc.path {
		if err := svc.load(kind); err != nil {
			return nil, err
		}
	}

	return svc, nil
}

// Document returns a copy of the user's document for one kind. Users who
// never added anything get an empty document.
func (s *Service) Document(userID, kind string) (*models.WatchlistDocument, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	kind = models.NormalizeKind(kind)
	if kind == "" {
		return nil, ErrUnknownKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc, ok := s.docs[kind][userID]; ok {
		return doc.Clone(), nil
	}
	return emptyDocument(userID), nil
}

// MoveToList places the entry in targetList, removing it from whichever list
// it previously occupied, and returns that previous list name ("" for a
// fresh add). The matching activity entry is recorded after the write lands.
func (s *Service) MoveToList(ctx context.Context, userID string, entry models.WatchlistEntry, targetList string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrUserIDRequired
	}
	if entry.ID <= 0 {
		return "", ErrIDRequired
	}
	if strings.TrimSpace(entry.Title) == "" {
		return "", ErrTitleRequired
	}
	kind := models.NormalizeKind(entry.Kind)
	if kind == "" {
		return "", ErrUnknownKind
	}
	entry.Kind = kind
	if !models.ValidList(targetList) {
		return "", ErrUnknownList
	}

	var previousList string
	err := s.mutate(userID, kind, func(doc *models.WatchlistDocument) error {
		previousList = ""
		var prev *models.WatchlistEntry
		if name, idx := doc.Find(entry.ID); name != "" {
			previousList = name
			found := doc.List(name)[idx]
			prev = &found
			doc.SetList(name, removeAt(doc.List(name), idx))
		}

		entry.AddedAt = time.Now().UTC()
		if prev != nil && entry.Rating == nil {
			entry.Rating = prev.Rating
		}
		if kind == models.KindTV {
			prepareTVEntry(&entry, prev, targetList)
		}

		doc.SetList(targetList, append(doc.List(targetList), entry))
		return nil
	})
	if err != nil {
		return "", err
	}

	s.record(ctx, models.Activity{
		UserID:     userID,
		MediaID:    entry.ID,
		Kind:       kind,
		Title:      entry.Title,
		PosterPath: entry.PosterPath,
		Action:     actionFor(previousList, targetList),
	})

	return previousList, nil
}

// prepareTVEntry carries progress over from a previous entry, starts fresh
// adds at S1E1, and applies the mark-as-finished shortcut when the target is
// the completed list.
func prepareTVEntry(entry *models.WatchlistEntry, prev *models.WatchlistEntry, targetList string) {
	if prev != nil {
		if entry.CurrentSeason == 0 {
			entry.CurrentSeason = prev.CurrentSeason
		}
		if entry.CurrentEpisode == 0 {
			entry.CurrentEpisode = prev.CurrentEpisode
		}
		if entry.TotalSeasons == 0 {
			entry.TotalSeasons = prev.TotalSeasons
		}
		if entry.EpisodesInSeason == 0 {
			entry.EpisodesInSeason = prev.EpisodesInSeason
		}
	}

	if targetList == models.ListCompleted {
		if entry.TotalSeasons > 0 {
			entry.CurrentSeason = entry.TotalSeasons
		}
		if entry.EpisodesInSeason > 0 {
			entry.CurrentEpisode = entry.EpisodesInSeason
		}
		return
	}

	if entry.CurrentSeason == 0 {
		entry.CurrentSeason = 1
	}
	if entry.CurrentEpisode == 0 {
		entry.CurrentEpisode = 1
	}
}

// Remove deletes the entry from the named list. Removing something that is
// not there is an error, so no unrelated state ever gets persisted.
func (s *Service) Remove(userID, kind string, mediaID int64, list string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	kind = models.NormalizeKind(kind)
	if kind == "" {
		return ErrUnknownKind
	}
	if !models.ValidList(list) {
		return ErrUnknownList
	}

	return s.mutate(userID, kind, func(doc *models.WatchlistDocument) error {
		entries := doc.List(list)
		for idx := range entries {
			if entries[idx].ID == mediaID {
				doc.SetList(list, removeAt(entries, idx))
				return nil
			}
		}
		return ErrEntryNotFound
	})
}

// UpdateRating sets the user rating for an entry in the named list.
// Ratings use the 0-10 display scale.
func (s *Service) UpdateRating(userID, kind string, mediaID int64, list string, rating float64) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	kind = models.NormalizeKind(kind)
	if kind == "" {
		return ErrUnknownKind
	}
	if !models.ValidList(list) {
		return ErrUnknownList
	}
	if rating < 0 || rating > 10 {
		return ErrRatingOutOfRange
	}

	return s.mutate(userID, kind, func(doc *models.WatchlistDocument) error {
		entries := doc.List(list)
		for idx := range entries {
			if entries[idx].ID == mediaID {
				r := rating
				entries[idx].Rating = &r
				doc.SetList(list, entries)
				return nil
			}
		}
		return ErrEntryNotFound
	})
}

// StepResult is the progress state after an episode step.
type StepResult struct {
	Season           int  `json:"season"`
	Episode          int  `json:"episode"`
	EpisodesInSeason int  `json:"episodesInSeason"`
	Completed        bool `json:"completed"`
}

// StepEpisode advances or rewinds episode progress for a tv entry by one.
// Incrementing past the last episode rolls into the next season and fetches
// its episode count; past the final season while watching, the entry moves to
// completed in the same write. Decrementing below episode one rolls back a
// season, clamping at S1E1. Steps for one user are serialized, so a rapid
// double tap advances twice rather than twice from the same snapshot.
func (s *Service) StepEpisode(ctx context.Context, userID string, mediaID int64, list string, direction int) (StepResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return StepResult{}, ErrUserIDRequired
	}
	if !models.ValidList(list) {
		return StepResult{}, ErrUnknownList
	}
	if direction != 1 && direction != -1 {
		return StepResult{}, ErrInvalidStep
	}

	var (
		result   StepResult
		finished *models.WatchlistEntry
	)
	err := s.mutate(userID, models.KindTV, func(doc *models.WatchlistDocument) error {
		finished = nil
		entries := doc.List(list)
		idx := -1
		for i := range entries {
			if entries[i].ID == mediaID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrEntryNotFound
		}

		entry := entries[idx]
		if err := s.ensureEpisodeCount(ctx, &entry); err != nil {
			return err
		}

		totalSeasons := entry.TotalSeasons
		if totalSeasons < 1 {
			totalSeasons = 1
		}

		if direction > 0 {
			switch {
			case entry.CurrentEpisode+1 <= entry.EpisodesInSeason:
				entry.CurrentEpisode++
			case entry.CurrentSeason < totalSeasons:
				entry.CurrentSeason++
				entry.CurrentEpisode = 1
				count, err := s.episodes.SeasonEpisodeCount(ctx, entry.ID, entry.CurrentSeason)
				if err != nil {
					return fmt.Errorf("fetch season %d of %d: %w", entry.CurrentSeason, entry.ID, err)
				}
				entry.EpisodesInSeason = count
			case list == models.ListWatching:
				// Past the final episode of the final season: the show is done.
				doc.SetList(list, removeAt(entries, idx))
				doc.Completed = append(doc.Completed, entry)
				finished = &entry
				result = StepResult{
					Season:           entry.CurrentSeason,
					Episode:          entry.CurrentEpisode,
					EpisodesInSeason: entry.EpisodesInSeason,
					Completed:        true,
				}
				return nil
			default:
				// Already at the end outside of watching; nothing to advance.
				result = StepResult{
					Season:           entry.CurrentSeason,
					Episode:          entry.CurrentEpisode,
					EpisodesInSeason: entry.EpisodesInSeason,
				}
				return nil
			}
		} else {
			switch {
			case entry.CurrentEpisode > 1:
				entry.CurrentEpisode--
			case entry.CurrentSeason > 1:
				entry.CurrentSeason--
				count, err := s.episodes.SeasonEpisodeCount(ctx, entry.ID, entry.CurrentSeason)
				if err != nil {
					return fmt.Errorf("fetch season %d of %d: %w", entry.CurrentSeason, entry.ID, err)
				}
				entry.EpisodesInSeason = count
				entry.CurrentEpisode = count
			}
			// At S1E1 the decrement clamps in place.
		}

		entries[idx] = entry
		doc.SetList(list, entries)
		result = StepResult{
			Season:           entry.CurrentSeason,
			Episode:          entry.CurrentEpisode,
			EpisodesInSeason: entry.EpisodesInSeason,
		}
		return nil
	})
	if err != nil {
		return StepResult{}, err
	}

	if finished != nil {
		s.record(ctx, models.Activity{
			UserID:     userID,
			MediaID:    finished.ID,
			Kind:       models.KindTV,
			Title:      finished.Title,
			PosterPath: finished.PosterPath,
			Action:     "completed",
		})
	}

	return result, nil
}

// ensureEpisodeCount backfills EpisodesInSeason for entries persisted before
// the field existed.
func (s *Service) ensureEpisodeCount(ctx context.Context, entry *models.WatchlistEntry) error {
	if entry.CurrentSeason < 1 {
		entry.CurrentSeason = 1
	}
	if entry.CurrentEpisode < 1 {
		entry.CurrentEpisode = 1
	}
	if entry.EpisodesInSeason >= 1 {
		return nil
	}
	count, err := s.episodes.SeasonEpisodeCount(ctx, entry.ID, entry.CurrentSeason)
	if err != nil {
		return fmt.Errorf("fetch season %d of %d: %w", entry.CurrentSeason, entry.ID, err)
	}
	entry.EpisodesInSeason = count
	return nil
}

// actionFor maps a move to its activity feed wording. Fresh adds and moves
// between lists read differently in the feed.
func actionFor(previousList, targetList string) string {
	moved := previousList != ""
	switch targetList {
	case models.ListWatching:
		if moved {
			return "moved to watching"
		}
		return "started watching"
	case models.ListCompleted:
		if moved {
			return "marked as completed"
		}
		return "completed"
	case models.ListPlanned:
		if moved {
			return "moved to plan to watch"
		}
		return "added to plan to watch"
	}
	return "updated status"
}

func (s *Service) record(ctx context.Context, a models.Activity) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, a); err != nil {
		log.Printf("[watchlist] record activity user=%s media=%d: %v", a.UserID, a.MediaID, err)
	}
}

// mutate stages fn on a clone of the user's document, persists the kind's
// store, and swaps the clone in only once the write succeeded. All mutations
// for one user run under that user's lock.
func (s *Service) mutate(userID, kind string, fn func(doc *models.WatchlistDocument) error) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	current, existed := s.docs[kind][userID]
	s.mu.Unlock()

	var staged *models.WatchlistDocument
	if existed {
		staged = current.Clone()
	} else {
		staged = emptyDocument(userID)
	}

	if err := fn(staged); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	perUser, ok := s.docs[kind]
	if !ok {
		perUser = make(map[string]*models.WatchlistDocument)
		s.docs[kind] = perUser
	}
	perUser[userID] = staged

	if err := s.saveLocked(kind); err != nil {
		// Roll the swap back so memory keeps matching disk.
		if existed {
			perUser[userID] = current
		} else {
			delete(perUser, userID)
		}
		return fmt.Errorf("persist %s watchlist: %w", kind, err)
	}

	return nil
}

func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userMu[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userMu[userID] = lock
	}
	return lock
}

func emptyDocument(userID string) *models.WatchlistDocument {
	return &models.WatchlistDocument{
		UserID:    userID,
		Watching:  []models.WatchlistEntry{},
		Completed: []models.WatchlistEntry{},
		Planned:   []models.WatchlistEntry{},
	}
}

func removeAt(entries []models.WatchlistEntry, idx int) []models.WatchlistEntry {
	out := make([]models.WatchlistEntry, 0, len(entries)-1)
	out = append(out, entries[:idx]...)
	return append(out, entries[idx+1:]...)
}

func (s *Service) load(kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path[kind])
	if errors.Is(err, os.ErrNotExist) {
		s.docs[kind] = make(map[string]*models.WatchlistDocument)
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s watchlist: %w", kind, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read %s watchlist: %w", kind, err)
	}
	if len(data) == 0 {
		s.docs[kind] = make(map[string]*models.WatchlistDocument)
		return nil
	}

	var stored map[string]*models.WatchlistDocument
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("decode %s watchlist: %w", kind, err)
	}

	perUser := make(map[string]*models.WatchlistDocument, len(stored))
	for userID, doc := range stored {
		userID = strings.TrimSpace(userID)
		if userID == "" || doc == nil {
			continue
		}
		doc.UserID = userID
		perUser[userID] = doc
	}
	s.docs[kind] = perUser

	return nil
}

func (s *Service) saveLocked(kind string) error {
	path := s.path[kind]

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create watchlist temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.docs[kind]); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode watchlist: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close watchlist temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace watchlist file: %w", err)
	}

	return nil
}
