package sessions

import (
	"errors"
	"testing"
	"time"
)

func TestCreateAndResolve(t *testing.T) {
	svc := NewService(time.Hour)

	session, err := svc.Create("user-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected a token")
	}

	resolved, err := svc.Resolve(session.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.UserID != "user-1" {
		t.Fatalf("expected user-1, got %q", resolved.UserID)
	}
}

func TestResolveRejectsUnknownToken(t *testing.T) {
	svc := NewService(time.Hour)

	if _, err := svc.Resolve("nope"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := svc.Resolve(""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for empty token, got %v", err)
	}
}

func TestResolveEvictsExpiredSessions(t *testing.T) {
	svc := NewService(time.Hour)

	session, err := svc.Create("user-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Force expiry.
	svc.mu.Lock()
	stale := svc.sessions[session.Token]
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	svc.sessions[session.Token] = stale
	svc.mu.Unlock()

	if _, err := svc.Resolve(session.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected expired token to be invalid, got %v", err)
	}

	svc.mu.RLock()
	_, still := svc.sessions[session.Token]
	svc.mu.RUnlock()
	if still {
		t.Fatal("expected expired session to be evicted")
	}
}

func TestDestroy(t *testing.T) {
	svc := NewService(time.Hour)

	session, err := svc.Create("user-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.Destroy(session.Token)

	if _, err := svc.Resolve(session.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected destroyed token to be invalid, got %v", err)
	}
}

func TestDestroyAllForUser(t *testing.T) {
	svc := NewService(time.Hour)

	first, _ := svc.Create("user-1")
	second, _ := svc.Create("user-1")
	other, _ := svc.Create("user-2")

	svc.DestroyAllForUser("user-1")

	if _, err := svc.Resolve(first.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected first session destroyed, got %v", err)
	}
	if _, err := svc.Resolve(second.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected second session destroyed, got %v", err)
	}
	if _, err := svc.Resolve(other.Token); err != nil {
		t.Fatalf("expected other user's session to survive: %v", err)
	}
}
