package audit

import (
	"sort"
	"strings"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
)

// DayStats is one day's slice of the quality trend.
type DayStats struct {
	Date           string  `json:"date"`
	Requests       int     `json:"requests"`
	SuccessRate    float64 `json:"success_rate"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// Stats aggregates audit entries into pipeline quality metrics.
type Stats struct {
	TotalRequests    int                     `json:"total_requests"`
	Completed        int                     `json:"completed"`
	Failed           int                     `json:"failed"`
	NeedsReview      int                     `json:"needs_review"`
	SuccessRate      float64                 `json:"success_rate"`
	ReviewRate       float64                 `json:"review_rate"`
	MeanConfidence   float64                 `json:"mean_confidence"`
	MeanDurationMS   float64                 `json:"mean_duration_ms"`
	MeanRetries      float64                 `json:"mean_retries"`
	ByTaskType       map[domain.TaskType]int `json:"by_task_type"`
	ErrorCounts      map[string]int          `json:"error_counts,omitempty"`
	VerifiedFieldPct float64                 `json:"verified_field_pct"`
	DailyTrend       []DayStats              `json:"daily_trend,omitempty"`
}

// ComputeStats derives aggregate statistics from a set of audit entries.
// The entries may be in any order.
func ComputeStats(entries []domain.AuditLogEntry) *Stats {
	stats := &Stats{
		TotalRequests: len(entries),
		ByTaskType:    make(map[domain.TaskType]int),
		ErrorCounts:   make(map[string]int),
	}
	if len(entries) == 0 {
		return stats
	}

	type dayAccum struct {
		requests   int
		completed  int
		confidence float64
	}
	days := make(map[string]*dayAccum)

	var confidenceSum, durationSum, retrySum float64
	var verifiedFields, totalFields int

	for _, entry := range entries {
		stats.ByTaskType[entry.TaskType]++
		confidenceSum += entry.Confidence
		durationSum += float64(entry.DurationMS)
		retrySum += float64(entry.RetryCount)
		verifiedFields += entry.VerifiedFields
		totalFields += entry.TotalFields

		switch entry.State {
		case domain.StateCompleted:
			stats.Completed++
		case domain.StateFailed:
			stats.Failed++
		case domain.StateNeedsReview:
			stats.NeedsReview++
		}
		if entry.Error != "" {
			stats.ErrorCounts[errorBucket(entry.Error)]++
		}

		day := entry.CreatedAt.UTC().Format("2006-01-02")
		accum := days[day]
		if accum == nil {
			accum = &dayAccum{}
			days[day] = accum
		}
		accum.requests++
		accum.confidence += entry.Confidence
		if entry.Succeeded() {
			accum.completed++
		}
	}

	total := float64(len(entries))
	stats.SuccessRate = float64(stats.Completed) / total
	stats.ReviewRate = float64(stats.NeedsReview) / total
	stats.MeanConfidence = confidenceSum / total
	stats.MeanDurationMS = durationSum / total
	stats.MeanRetries = retrySum / total
	if totalFields > 0 {
		stats.VerifiedFieldPct = float64(verifiedFields) / float64(totalFields)
	}

	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	for _, date := range dates {
		accum := days[date]
		stats.DailyTrend = append(stats.DailyTrend, DayStats{
			Date:           date,
			Requests:       accum.requests,
			SuccessRate:    float64(accum.completed) / float64(accum.requests),
			MeanConfidence: accum.confidence / float64(accum.requests),
		})
	}

	return stats
}

// errorBucket extracts the "[CODE]" prefix produced by DomainError.Error so
// the histogram groups failures by cause rather than by message text.
func errorBucket(message string) string {
	if strings.HasPrefix(message, "[") {
		if end := strings.Index(message, "]"); end > 1 {
			return message[1:end]
		}
	}
	return "UNCLASSIFIED"
}
