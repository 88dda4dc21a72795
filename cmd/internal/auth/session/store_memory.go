package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory behind a single mutex.
// Used in dev mode and unit tests.
type MemoryStore struct {
	opts storeOptions

	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	return &MemoryStore{
		opts:     defaultStoreOptions(opts),
		sessions: make(map[string]Session),
	}
}

func (s *MemoryStore) Create(ctx context.Context, in NewSession) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := in.validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[in.ID]; exists {
		return "", ErrSessionExists
	}
	s.sessions[in.ID] = in.record()
	return in.ID, nil
}

func (s *MemoryStore) Find(ctx context.Context, sessionID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return cloneSession(row), nil
}

func (s *MemoryStore) Revoke(ctx context.Context, now time.Time, sessionID string, successorID *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	s.sessions[sessionID] = revokeRecord(row, now, successorID)
	return nil
}

func (s *MemoryStore) Rotate(ctx context.Context, now time.Time, oldID, presentedHash string, successor NewSession) (RotateOutcome, error) {
	if err := ctx.Err(); err != nil {
		return RotateOutcome{}, err
	}
	if err := successor.validate(); err != nil {
		return RotateOutcome{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.sessions[oldID]
	if !ok {
		return RotateOutcome{}, ErrSessionNotFound
	}
	out := RotateOutcome{Predecessor: cloneSession(prev)}

	reuse, err := checkRotatable(prev, now, presentedHash, successor)
	if err != nil {
		out.ReuseDetected = reuse
		if reuse && s.opts.revokeOnReuse {
			for id, row := range s.sessions {
				if row.UserID == prev.UserID && row.RevokedAt == nil {
					s.sessions[id] = revokeRecord(row, now, nil)
					out.RevokedCount++
				}
			}
		}
		return out, err
	}

	if _, exists := s.sessions[successor.ID]; exists {
		return out, ErrSessionExists
	}

	s.sessions[successor.ID] = successor.record()
	s.sessions[oldID] = revokeRecord(prev, now, &successor.ID)
	out.SuccessorID = successor.ID
	return out, nil
}

func (s *MemoryStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, row := range s.sessions {
		if row.UserID == userID {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// revokeRecord applies Revoke to a copy of row. A successor is only linked by
// the write that revokes; an already revoked row is returned unchanged.
func revokeRecord(row Session, now time.Time, successorID *string) Session {
	out := cloneSession(row)
	if out.RevokedAt != nil {
		return out
	}
	t := now.UTC()
	out.RevokedAt = &t
	if successorID != nil {
		id := *successorID
		out.SupersededBy = &id
	}
	return out
}
