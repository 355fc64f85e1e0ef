package broadcast

import (
	"context"
	"fmt"

	"github.com/m3rciful/membergate/internal/session"
)

// Scope is the session scope of the armed-broadcast marker.
const Scope session.Scope = "broadcast"

const armedValue = "1"

// Session tracks whether the admin's next message is broadcast content.
type Session struct {
	store session.Store
}

// NewSession wraps a session store.
func NewSession(store session.Store) *Session {
	return &Session{store: store}
}

// Arm marks the admin's next message as broadcast content.
func (s *Session) Arm(ctx context.Context, admin int64) error {
	if err := s.store.Put(ctx, Scope, admin, armedValue); err != nil {
		return fmt.Errorf("arm broadcast: %w", err)
	}
	return nil
}

// Consume reports whether a broadcast was armed and disarms it in the same step.
func (s *Session) Consume(ctx context.Context, admin int64) (bool, error) {
	_, ok, err := s.store.Take(ctx, Scope, admin)
	if err != nil {
		return false, fmt.Errorf("consume broadcast: %w", err)
	}
	return ok, nil
}
