package friends

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelist/models"
)

var (
	ErrStorageDirRequired = errors.New("storage directory not provided")
	ErrUserIDRequired     = errors.New("user id is required")
	ErrSelfRequest        = errors.New("cannot send a friend request to yourself")
	ErrAlreadyFriends     = errors.New("users are already friends")
	ErrRequestExists      = errors.New("a pending request already exists")
	ErrRequestNotFound    = errors.New("friend request not found")
	ErrNotReceiver        = errors.New("only the receiver can resolve a request")
)

// Directory answers identity questions the request flow needs and applies the
// friendship once a request is accepted. Backed by the users service.
type Directory interface {
	Exists(id string) bool
	Get(id string) (models.User, bool)
	Befriend(aID, bID string) error
}

// Service manages friend requests. Accepting a request flips its status and
// writes the friendship through the directory as one logical step: the status
// flip is only kept when the friendship write succeeds.
type Service struct {
	mu       sync.Mutex
	path     string
	requests map[string]models.FriendRequest
	users    Directory
}

// NewService creates a friends service storing requests inside the provided
// directory.
func NewService(storageDir string, users Directory) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create friends dir: %w", err)
	}

	svc := &Service{
		path:     filepath.Join(storageDir, "friend_requests.json"),
		requests: make(map[string]models.FriendRequest),
		users:    users,
	}

	if err := svc.load(); err != nil {
		return nil, err
	}

	return svc, nil
}

// Send creates a pending request from sender to receiver. Duplicate pending
// requests in either direction and requests between existing friends are
// rejected.
func (s *Service) Send(senderID, receiverID string) (models.FriendRequest, error) {
	senderID = strings.TrimSpace(senderID)
	receiverID = strings.TrimSpace(receiverID)
	if senderID == "" || receiverID == "" {
		return models.FriendRequest{}, ErrUserIDRequired
	}
	if senderID == receiverID {
		return models.FriendRequest{}, ErrSelfRequest
	}

	sender, ok := s.users.Get(senderID)
	if !ok {
		return models.FriendRequest{}, fmt.Errorf("sender %s: user not found", senderID)
	}
	if !s.users.Exists(receiverID) {
		return models.FriendRequest{}, fmt.Errorf("receiver %s: user not found", receiverID)
	}
	if sender.IsFriend(receiverID) {
		return models.FriendRequest{}, ErrAlreadyFriends
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.requests {
		if r.Status != models.RequestPending {
			continue
		}
		if (r.SenderID == senderID && r.ReceiverID == receiverID) ||
			(r.SenderID == receiverID && r.ReceiverID == senderID) {
			return models.FriendRequest{}, ErrRequestExists
		}
	}

	request := models.FriendRequest{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.RequestPending,
		CreatedAt:  time.Now().UTC(),
	}
	s.requests[request.ID] = request

	if err := s.saveLocked(); err != nil {
		delete(s.requests, request.ID)
		return models.FriendRequest{}, err
	}

	return request, nil
}

// Accept resolves a pending request and links both users. The receiver must
// be the accepting user. If the friendship write fails the request stays
// pending, so the two stores never disagree.
func (s *Service) Accept(requestID, receiverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[strings.TrimSpace(requestID)]
	if !ok || request.Status != models.RequestPending {
		return ErrRequestNotFound
	}
	if request.ReceiverID != strings.TrimSpace(receiverID) {
		return ErrNotReceiver
	}

	if err := s.users.Befriend(request.SenderID, request.ReceiverID); err != nil {
		return fmt.Errorf("apply friendship: %w", err)
	}

	request.Status = models.RequestAccepted
	s.requests[request.ID] = request

	if err := s.saveLocked(); err != nil {
		// The friendship is already applied; keep the accepted status in
		// memory and let the next save retry the file.
		return err
	}

	return nil
}

// Decline removes a pending request. Only the receiver can decline.
func (s *Service) Decline(requestID, receiverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[strings.TrimSpace(requestID)]
	if !ok || request.Status != models.RequestPending {
		return ErrRequestNotFound
	}
	if request.ReceiverID != strings.TrimSpace(receiverID) {
		return ErrNotReceiver
	}

	delete(s.requests, request.ID)

	if err := s.saveLocked(); err != nil {
		s.requests[request.ID] = request
		return err
	}

	return nil
}

// ListIncoming returns pending requests addressed to the user, newest first,
// decorated with the sender's username.
func (s *Service) ListIncoming(userID string) []models.FriendRequestView {
	return s.list(func(r models.FriendRequest) bool {
		return r.ReceiverID == userID && r.Status == models.RequestPending
	})
}

// ListOutgoing returns pending requests the user has sent, newest first.
func (s *Service) ListOutgoing(userID string) []models.FriendRequestView {
	return s.list(func(r models.FriendRequest) bool {
		return r.SenderID == userID && r.Status == models.RequestPending
	})
}

func (s *Service) list(match func(models.FriendRequest) bool) []models.FriendRequestView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]models.FriendRequestView, 0)
	for _, r := range s.requests {
		if !match(r) {
			continue
		}
		view := models.FriendRequestView{FriendRequest: r}
		if sender, ok := s.users.Get(r.SenderID); ok {
			view.SenderUsername = sender.Username
		}
		if receiver, ok := s.users.Get(r.ReceiverID); ok {
			view.ReceiverUsername = receiver.Username
		}
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].ID < views[j].ID
		}
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})

	return views
}

func (s *Service) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open friend requests file: %w", err)
	}
	defer file.Close()

	var stored []models.FriendRequest
	if err := json.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("decode friend requests: %w", err)
	}

	s.requests = make(map[string]models.FriendRequest, len(stored))
	for _, r := range stored {
		if strings.TrimSpace(r.ID) == "" {
			continue
		}
		s.requests[r.ID] = r
	}

	return nil
}

func (s *Service) saveLocked() error {
	requests := make([]models.FriendRequest, 0, len(s.requests))
	for _, r := range s.requests {
		requests = append(requests, r)
	}

	sort.Slice(requests, func(i, j int) bool {
		if requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].ID < requests[j].ID
		}
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})

	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create friend requests temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(requests); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode friend requests: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close friend requests temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace friend requests file: %w", err)
	}

	return nil
}
