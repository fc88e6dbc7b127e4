package activity

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"reelist/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	ErrPathRequired   = errors.New("database path not provided")
	ErrUserIDRequired = errors.New("user id is required")
	ErrActionRequired = errors.New("action is required")
)

// Service is the append-only activity log. Entries are written as a side
// effect of watchlist mutations and only ever read back, never edited.
type Service struct {
	db *sql.DB
}

// NewService opens (or creates) the SQLite database at dbPath and applies
// pending migrations.
func NewService(dbPath string) (*Service, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, ErrPathRequired
	}

	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open activity database: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply activity migrations: %w", err)
	}

	return &Service{db: db}, nil
}

// Close closes the underlying database.
func (s *Service) Close() error {
	return s.db.Close()
}

// Record appends one activity entry. CreatedAt defaults to now when unset.
func (s *Service) Record(ctx context.Context, a models.Activity) error {
	a.UserID = strings.TrimSpace(a.UserID)
	if a.UserID == "" {
		return ErrUserIDRequired
	}
	if strings.TrimSpace(a.Action) == "" {
		return ErrActionRequired
	}
	kind := models.NormalizeKind(a.Kind)
	if kind == "" {
		return fmt.Errorf("record activity: unknown kind %q", a.Kind)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (user_id, media_id, kind, title, poster_path, action, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.MediaID, kind, a.Title, a.PosterPath, a.Action, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListRecent returns the user's newest entries, newest first.
func (s *Service) ListRecent(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	return s.query(ctx,
		`SELECT id, user_id, media_id, kind, title, poster_path, action, created_at
		 FROM activities WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, normalizeLimit(limit),
	)
}

// ListFeed returns the newest entries across a set of users, newest first.
// Used for the friends activity feed.
func (s *Service) ListFeed(ctx context.Context, userIDs []string, limit int) ([]models.Activity, error) {
	ids := make([]any, 0, len(userIDs))
	for _, id := range userIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []models.Activity{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := append(ids, normalizeLimit(limit))

	return s.query(ctx,
		`SELECT id, user_id, media_id, kind, title, poster_path, action, created_at
		 FROM activities WHERE user_id IN (`+placeholders+`)
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		args...,
	)
}

func (s *Service) query(ctx context.Context, q string, args ...any) ([]models.Activity, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	activities := make([]models.Activity, 0)
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.MediaID, &a.Kind, &a.Title, &a.PosterPath, &a.Action, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}

	return activities, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
