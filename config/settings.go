package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server   ServerSettings  `json:"server"`
	TMDB     TMDBSettings    `json:"tmdb"`
	Storage  StorageSettings `json:"storage"`
	Sessions SessionSettings `json:"sessions"`
	Log      LogSettings     `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type TMDBSettings struct {
	APIKey      string `json:"apiKey"`
	Language    string `json:"language"`
	WatchRegion string `json:"watchRegion"`
}

type StorageSettings struct {
	// Directory holds the JSON document stores (users, watchlists, requests).
	Directory string `json:"directory"`
	// DatabasePath is the SQLite file backing the activity log.
	DatabasePath string `json:"databasePath"`
}

type SessionSettings struct {
	TTLHours int `json:"ttlHours"`
}

type LogSettings struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"` // megabytes
	MaxBackups int    `json:"maxBackups"`
	MaxAge     int    `json:"maxAge"` // days
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns the configuration written on first run.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 8480,
		},
		TMDB: TMDBSettings{
			Language:    "en-US",
			WatchRegion: "US",
		},
		Storage: StorageSettings{
			Directory:    "data",
			DatabasePath: filepath.Join("data", "activity.db"),
		},
		Sessions: SessionSettings{
			TTLHours: 72,
		},
		Log: LogSettings{
			File:       filepath.Join("data", "logs", "reelist.log"),
			MaxSize:    20,
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		},
	}
}

// Manager loads and saves the settings file, creating defaults when missing.
type Manager struct {
	mu   sync.Mutex
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// Load reads settings from disk or creates defaults if the file is missing.
func (m *Manager) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(m.path) == "" {
		return Settings{}, errors.New("config path not set")
	}

	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.saveLocked(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}

	// Backfill defaults for settings introduced after the config was written.
	defaults := DefaultSettings()
	if strings.TrimSpace(s.Server.Host) == "" {
		s.Server.Host = defaults.Server.Host
	}
	if s.Server.Port == 0 {
		s.Server.Port = defaults.Server.Port
	}
	if strings.TrimSpace(s.TMDB.Language) == "" {
		s.TMDB.Language = defaults.TMDB.Language
	}
	if strings.TrimSpace(s.TMDB.WatchRegion) == "" {
		s.TMDB.WatchRegion = defaults.TMDB.WatchRegion
	}
	if strings.TrimSpace(s.Storage.Directory) == "" {
		s.Storage.Directory = defaults.Storage.Directory
	}
	if strings.TrimSpace(s.Storage.DatabasePath) == "" {
		s.Storage.DatabasePath = filepath.Join(s.Storage.Directory, "activity.db")
	}
	if s.Sessions.TTLHours <= 0 {
		s.Sessions.TTLHours = defaults.Sessions.TTLHours
	}
	if s.Log.MaxSize <= 0 {
		s.Log.MaxSize = defaults.Log.MaxSize
	}

	return s, nil
}

// Save writes settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(s)
}

func (m *Manager) saveLocked(s Settings) error {
	dir := filepath.Dir(m.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, m.path)
}
