package jobs

import (
	"context"
	"fmt"
	"log"
)

// CacheEvicter drops expired retrieval cache entries.
type CacheEvicter interface {
	EvictExpiredCache() int
}

// AuditTrimmer bounds the audit log to its retention window.
type AuditTrimmer interface {
	Trim(ctx context.Context, keep int) (int, error)
}

// MaintenanceWorker periodically evicts stale retrieval cache entries and
// trims the audit log down to its configured retention size.
type MaintenanceWorker struct {
	cache     CacheEvicter
	audit     AuditTrimmer
	retention int
}

// NewMaintenanceWorker creates a new MaintenanceWorker instance. Either
// dependency may be nil, in which case that maintenance step is skipped.
func NewMaintenanceWorker(cache CacheEvicter, audit AuditTrimmer, retention int) *MaintenanceWorker {
	return &MaintenanceWorker{
		cache:     cache,
		audit:     audit,
		retention: retention,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *MaintenanceWorker) ProcessJobs(ctx context.Context) error {
	if w.cache != nil {
		if evicted := w.cache.EvictExpiredCache(); evicted > 0 {
			log.Printf("Evicted %d expired retrieval cache entries", evicted)
		}
	}

	if w.audit != nil && w.retention > 0 {
		trimmed, err := w.audit.Trim(ctx, w.retention)
		if err != nil {
			return fmt.Errorf("failed to trim audit log: %w", err)
		}
		if trimmed > 0 {
			log.Printf("Trimmed %d audit entries beyond retention of %d", trimmed, w.retention)
		}
	}

	return nil
}
