package audit

import (
	"context"
	"log"
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/pagination"
	"github.com/google/uuid"
)

// Filters narrows an audit query. Zero values disable a filter; the time
// bounds are inclusive.
type Filters struct {
	UserID        string
	TaskType      domain.TaskType
	State         domain.RequestState
	From          time.Time
	To            time.Time
	MinConfidence float64
	ReviewOnly    bool
	Cursor        string
	Limit         int
}

// Matches reports whether an entry passes every active filter.
func (f Filters) Matches(entry domain.AuditLogEntry) bool {
	if f.UserID != "" && entry.UserID != f.UserID {
		return false
	}
	if f.TaskType != "" && entry.TaskType != f.TaskType {
		return false
	}
	if f.State != "" && entry.State != f.State {
		return false
	}
	if !f.From.IsZero() && entry.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && entry.CreatedAt.After(f.To) {
		return false
	}
	if entry.Confidence < f.MinConfidence {
		return false
	}
	if f.ReviewOnly && !entry.Compliance.RequiresHumanReview {
		return false
	}
	return true
}

// Storage persists audit entries. Implementations must be safe for
// concurrent use; Query returns entries newest-first.
type Storage interface {
	Save(ctx context.Context, entry domain.AuditLogEntry) error
	Query(ctx context.Context, filters Filters) (*pagination.PageResult[domain.AuditLogEntry], error)
	All(ctx context.Context, filters Filters) ([]domain.AuditLogEntry, error)
	Trim(ctx context.Context, keep int) (int, error)
}

// CaptureFunc receives storage failures for out-of-band reporting.
type CaptureFunc func(err error)

// Logger writes one immutable entry per pipeline execution. Storage
// failures never reach the pipeline: a request that produced a valid
// result is not failed because the audit write did not land.
type Logger struct {
	store   Storage
	capture CaptureFunc
	now     func() time.Time
}

func NewLogger(store Storage) *Logger {
	return &Logger{store: store, now: time.Now}
}

// NewLoggerWithCapture reports swallowed storage errors through capture.
func NewLoggerWithCapture(store Storage, capture CaptureFunc) *Logger {
	logger := NewLogger(store)
	logger.capture = capture
	return logger
}

// Record finalizes and stores an entry: it assigns the entry ID and created
// timestamp, derives the input/output content hashes, and saves. The
// returned entry is the stored copy.
func (l *Logger) Record(ctx context.Context, entry domain.AuditLogEntry, input, output string) domain.AuditLogEntry {
	entry.ID = uuid.New().String()
	if entry.RequestID == "" {
		entry.RequestID = entry.ID
	}
	entry.CreatedAt = l.now().UTC()
	entry.InputHash = domain.ContentHash(input)
	entry.OutputHash = domain.ContentHash(output)

	if err := l.store.Save(ctx, entry); err != nil {
		wrapped := domain.NewDomainErrorWithCause(domain.ErrCodeAuditWrite, "failed to persist audit entry", err)
		log.Printf("audit: %v", wrapped)
		if l.capture != nil {
			l.capture(wrapped)
		}
	}
	return entry
}

// Query returns one page of entries matching the filters, newest-first.
func (l *Logger) Query(ctx context.Context, filters Filters) (*pagination.PageResult[domain.AuditLogEntry], error) {
	return l.store.Query(ctx, filters)
}

// Stats aggregates matching entries into pipeline quality statistics.
func (l *Logger) Stats(ctx context.Context, filters Filters) (*Stats, error) {
	entries, err := l.store.All(ctx, filters)
	if err != nil {
		return nil, err
	}
	return ComputeStats(entries), nil
}

// Export renders matching entries in the requested format.
func (l *Logger) Export(ctx context.Context, filters Filters, format ExportFormat) (string, error) {
	entries, err := l.store.All(ctx, filters)
	if err != nil {
		return "", err
	}
	return Export(entries, format)
}

// Trim enforces the retention bound, returning how many entries were dropped.
func (l *Logger) Trim(ctx context.Context, keep int) (int, error) {
	return l.store.Trim(ctx, keep)
}
