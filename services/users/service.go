package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"reelist/models"
)

var (
	ErrStorageDirRequired = errors.New("storage directory not provided")
	ErrUsernameRequired   = errors.New("username is required")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrEmailRequired      = errors.New("email is required")
	ErrEmailInvalid       = errors.New("email is not valid")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrUserNotFound       = errors.New("user not found")
	ErrBadCredentials     = errors.New("invalid username or password")
)

// Service manages persistence of user accounts and their friendships.
type Service struct {
	mu    sync.RWMutex
	path  string
	users map[string]models.User
}

// NewService creates a users service storing data inside the provided directory.
func NewService(storageDir string) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create users dir: %w", err)
	}

	svc := &Service{
		path:  filepath.Join(storageDir, "users.json"),
		users: make(map[string]models.User),
	}

	if err := svc.load(); err != nil {
		return nil, err
	}

	return svc, nil
}

// SignUp registers a new account. Usernames are stored lowercased and must be
// unique, as must emails.
func (s *Service) SignUp(username, email, password string) (models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return models.User{}, ErrUsernameRequired
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return models.User{}, ErrEmailRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.User{}, ErrEmailInvalid
	}
	if password == "" {
		return models.User{}, ErrPasswordRequired
	}
	if len(password) < 6 {
		return models.User{}, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return models.User{}, ErrUsernameTaken
		}
		if u.Email == email {
			return models.User{}, ErrEmailTaken
		}
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[user.ID] = user

	if err := s.saveLocked(); err != nil {
		delete(s.users, user.ID)
		return models.User{}, err
	}

	return user, nil
}

// Authenticate checks a username/password pair. Unknown usernames and wrong
// passwords return the same error.
func (s *Service) Authenticate(username, password string) (models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username != username {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
			return models.User{}, ErrBadCredentials
		}
		return u, nil
	}
	return models.User{}, ErrBadCredentials
}

// Get returns the user with the given ID if present.
func (s *Service) Get(id string) (models.User, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.User{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	return user, ok
}

// Exists reports whether a user with the provided ID is registered.
func (s *Service) Exists(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// GetByUsername looks a user up by exact username, case insensitively.
func (s *Service) GetByUsername(username string) (models.User, bool) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return models.User{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, true
		}
	}
	return models.User{}, false
}

// SearchByUsername returns public profiles whose username contains the query,
// case insensitively, excluding the searching user. Results are sorted by
// username for stable paging.
func (s *Service) SearchByUsername(query, excludeID string) []models.Profile {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []models.Profile{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]models.Profile, 0)
	for _, u := range s.users {
		if u.ID == excludeID {
			continue
		}
		if strings.Contains(u.Username, query) {
			profiles = append(profiles, u.PublicProfile())
		}
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Username < profiles[j].Username
	})

	return profiles
}

// Friends returns the public profiles of a user's friends.
func (s *Service) Friends(id string) ([]models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrUserNotFound
	}

	profiles := make([]models.Profile, 0, len(user.Friends))
	for _, friendID := range user.Friends {
		if friend, ok := s.users[friendID]; ok {
			profiles = append(profiles, friend.PublicProfile())
		}
	}
	return profiles, nil
}

// Befriend links two users in both directions under one lock and one write,
// so a crash can never leave a one-sided friendship.
func (s *Service) Befriend(aID, bID string) error {
	aID = strings.TrimSpace(aID)
	bID = strings.TrimSpace(bID)
	if aID == "" || bID == "" || aID == bID {
		return ErrUserNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.users[aID]
	if !ok {
		return ErrUserNotFound
	}
	b, ok := s.users[bID]
	if !ok {
		return ErrUserNotFound
	}

	if a.IsFriend(bID) && b.IsFriend(aID) {
		return nil
	}

	now := time.Now().UTC()
	if !a.IsFriend(bID) {
		a.Friends = append(a.Friends, bID)
		a.UpdatedAt = now
	}
	if !b.IsFriend(aID) {
		b.Friends = append(b.Friends, aID)
		b.UpdatedAt = now
	}
	s.users[aID] = a
	s.users[bID] = b

	return s.saveLocked()
}

// Unfriend removes the link in both directions.
func (s *Service) Unfriend(aID, bID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.users[strings.TrimSpace(aID)]
	if !ok {
		return ErrUserNotFound
	}
	b, ok := s.users[strings.TrimSpace(bID)]
	if !ok {
		return ErrUserNotFound
	}

	now := time.Now().UTC()
	a.Friends = removeID(a.Friends, b.ID)
	a.UpdatedAt = now
	b.Friends = removeID(b.Friends, a.ID)
	b.UpdatedAt = now
	s.users[a.ID] = a
	s.users[b.ID] = b

	return s.saveLocked()
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (s *Service) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open users file: %w", err)
	}
	defer file.Close()

	var stored []json.RawMessage
	if err := json.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("decode users: %w", err)
	}

	s.users = make(map[string]models.User, len(stored))
	for _, raw := range stored {
		var user models.User
		if err := user.UnmarshalStored(raw); err != nil {
			return fmt.Errorf("decode user record: %w", err)
		}
		if strings.TrimSpace(user.ID) == "" {
			continue
		}
		s.users[user.ID] = user
	}

	return nil
}

func (s *Service) saveLocked() error {
	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Username < users[j].Username
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})

	records := make([]json.RawMessage, 0, len(users))
	for _, user := range users {
		raw, err := user.MarshalStored()
		if err != nil {
			return fmt.Errorf("encode user record: %w", err)
		}
		records = append(records, raw)
	}

	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create users temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode users: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync users: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close users temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace users file: %w", err)
	}

	return nil
}
