package audit

import (
	"context"
	"sync"
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/pagination"
)

const defaultRingSize = 10000

// MemoryStore is a bounded in-memory audit store. When the ring is full the
// oldest entries are discarded on append. All methods are safe for
// concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	entries  []domain.AuditLogEntry
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultRingSize
	}
	return &MemoryStore{
		capacity: capacity,
		entries:  make([]domain.AuditLogEntry, 0, capacity),
	}
}

func (s *MemoryStore) Save(_ context.Context, entry domain.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if len(s.entries) > s.capacity {
		overflow := len(s.entries) - s.capacity
		s.entries = append(s.entries[:0], s.entries[overflow:]...)
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, filters Filters) (*pagination.PageResult[domain.AuditLogEntry], error) {
	cursor, err := pagination.DecodeCursor(filters.Cursor)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid audit cursor")
	}

	matched := s.filtered(filters)
	matched = pagination.SkipPast(matched, cursor, entryID)
	return pagination.NewPage(matched, filters.Limit, entryID, entryCreatedAt), nil
}

func (s *MemoryStore) All(_ context.Context, filters Filters) ([]domain.AuditLogEntry, error) {
	return s.filtered(filters), nil
}

// Trim drops the oldest entries until at most keep remain.
func (s *MemoryStore) Trim(_ context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) <= keep {
		return 0, nil
	}
	dropped := len(s.entries) - keep
	s.entries = append(s.entries[:0], s.entries[dropped:]...)
	return dropped, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// filtered returns matching entries newest-first.
func (s *MemoryStore) filtered(filters Filters) []domain.AuditLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.AuditLogEntry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		if filters.Matches(s.entries[i]) {
			matched = append(matched, s.entries[i])
		}
	}
	return matched
}

func entryID(entry domain.AuditLogEntry) string {
	return entry.ID
}

func entryCreatedAt(entry domain.AuditLogEntry) time.Time {
	return entry.CreatedAt
}
