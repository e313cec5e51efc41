package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTaskType(t *testing.T) {
	tests := []struct {
		name     string
		taskType TaskType
		wantErr  bool
	}{
		{"extraction", TaskTypeExtraction, false},
		{"analysis", TaskTypeAnalysis, false},
		{"composition", TaskTypeComposition, false},
		{"default", TaskTypeDefault, false},
		{"empty", TaskType(""), true},
		{"unknown", TaskType("summarize"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTaskType(tt.taskType)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeTaskType(t *testing.T) {
	assert.Equal(t, TaskTypeExtraction, NormalizeTaskType(TaskTypeExtraction))
	assert.Equal(t, TaskTypeDefault, NormalizeTaskType(TaskType("")))
	assert.Equal(t, TaskTypeDefault, NormalizeTaskType(TaskType("nonsense")))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from RequestState
		to   RequestState
		want bool
	}{
		{"pending to grounding", StatePending, StateGrounding, true},
		{"grounding to generating", StateGrounding, StateGenerating, true},
		{"validating to retrying", StateValidating, StateRetrying, true},
		{"retrying to generating", StateRetrying, StateGenerating, true},
		{"validating to needs review", StateValidating, StateNeedsReview, true},
		{"verifying to completed", StateVerifying, StateCompleted, true},
		{"verifying to consensus", StateVerifying, StateConsensus, true},
		{"consensus to completed", StateConsensus, StateCompleted, true},
		{"any stage to failed", StateGenerating, StateFailed, true},
		{"pending straight to completed", StatePending, StateCompleted, false},
		{"completed is terminal", StateCompleted, StateGrounding, false},
		{"failed is terminal", StateFailed, StatePending, false},
		{"grounding skips generation", StateGrounding, StateVerifying, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestRequestStateIsTerminal(t *testing.T) {
	assert.True(t, StateCompleted.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.True(t, StateNeedsReview.IsTerminal())
	assert.False(t, StatePending.IsTerminal())
	assert.False(t, StateVerifying.IsTerminal())
}

func TestValidateKnowledgeEntry(t *testing.T) {
	valid := &KnowledgeEntry{
		Topic:        "acme-corp",
		Content:      "Acme Corp reported $10M revenue in 2025.",
		Reliability:  0.9,
		SourceType:   SourceTypePrimary,
		LastVerified: time.Now(),
	}
	require.NoError(t, ValidateKnowledgeEntry(valid))

	t.Run("nil entry", func(t *testing.T) {
		assert.Error(t, ValidateKnowledgeEntry(nil))
	})

	t.Run("missing topic", func(t *testing.T) {
		e := *valid
		e.Topic = ""
		assert.Error(t, ValidateKnowledgeEntry(&e))
	})

	t.Run("reliability out of range", func(t *testing.T) {
		e := *valid
		e.Reliability = 1.5
		assert.Error(t, ValidateKnowledgeEntry(&e))
	})

	t.Run("bad source type", func(t *testing.T) {
		e := *valid
		e.SourceType = SourceType("rumor")
		assert.Error(t, ValidateKnowledgeEntry(&e))
	})
}

func TestContentHash(t *testing.T) {
	h1 := ContentHash("Acme revenue")
	h2 := ContentHash("Acme revenue")
	h3 := ContentHash("Acme profit")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
	assert.Empty(t, ContentHash(""))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrMalformedOutput))
	assert.True(t, IsRetryable(ErrSchemaViolation))
	assert.True(t, IsRetryable(ErrLowConfidence))
	assert.True(t, IsRetryable(ErrModelUnavailable))
	assert.False(t, IsRetryable(ErrCriticalUnsupported))
	assert.False(t, IsRetryable(ErrInvalidTaskType))
	assert.False(t, IsRetryable(assert.AnError))
}

func TestDomainErrorUnwrap(t *testing.T) {
	cause := assert.AnError
	err := NewDomainErrorWithCause(ErrCodeExternalService, "model call failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "EXTERNAL_SERVICE_ERROR")
}
