package prompt

import (
	"strings"
	"testing"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groundingFixture() *domain.GroundingResult {
	return &domain.GroundingResult{
		Query: "acme revenue",
		Sources: []domain.GroundingSource{
			{
				ID:             "kb-abc123",
				Title:          "Acme revenue",
				Content:        "Acme Corp reported $10M revenue in fiscal 2025.",
				Reliability:    0.9,
				RelevanceScore: 0.8,
				SourceType:     domain.SourceTypePrimary,
			},
		},
		Snippets: []domain.Snippet{
			{SourceID: "kb-abc123", Text: "Acme Corp reported $10M revenue in fiscal 2025.", Score: 1.0},
		},
	}
}

func TestAssembleWithGrounding(t *testing.T) {
	assembler := NewAssembler(0)
	prompt := assembler.Assemble(domain.TaskTypeExtraction, "Extract Acme's revenue.", groundingFixture())

	assert.Contains(t, prompt, "Evidence sources (cite by id):")
	assert.Contains(t, prompt, "kb-abc123")
	assert.Contains(t, prompt, "$10M revenue")
	assert.Contains(t, prompt, "Key snippets:")
	assert.Contains(t, prompt, "Extract Acme's revenue.")
	assert.Contains(t, prompt, `set it to "UNKNOWN"`)
	assert.True(t, strings.HasSuffix(prompt, "Respond with valid JSON and nothing else."))
}

func TestAssembleWithoutGroundingEmitsBasePrompt(t *testing.T) {
	// Scenario D: no grounding block when there are no sources.
	assembler := NewAssembler(0)

	prompt := assembler.Assemble(domain.TaskTypeDefault, "What is the answer?", nil)
	assert.NotContains(t, prompt, "Evidence sources")
	assert.Contains(t, prompt, "What is the answer?")
	assert.Contains(t, prompt, "Rules:")

	empty := &domain.GroundingResult{Query: "q"}
	promptEmpty := assembler.Assemble(domain.TaskTypeDefault, "What is the answer?", empty)
	assert.Equal(t, prompt, promptEmpty)
}

func TestAssembleTruncationPreservesSuffix(t *testing.T) {
	assembler := NewAssembler(600)

	long := strings.Repeat("evidence text ", 500)
	grounding := groundingFixture()
	grounding.Sources[0].Content = long

	prompt := assembler.Assemble(domain.TaskTypeAnalysis, "Analyze.", grounding)
	assert.LessOrEqual(t, len(prompt), 600+len(antiHallucinationRules))
	assert.True(t, strings.HasSuffix(prompt, "Respond with valid JSON and nothing else."))
}

func TestAssembleDeterministic(t *testing.T) {
	assembler := NewAssembler(0)
	g := groundingFixture()
	first := assembler.Assemble(domain.TaskTypeExtraction, "Extract revenue.", g)
	second := assembler.Assemble(domain.TaskTypeExtraction, "Extract revenue.", g)
	assert.Equal(t, first, second)
}

func TestEveryTaskTypeHasTemplate(t *testing.T) {
	for _, taskType := range domain.AllTaskTypes() {
		tpl, ok := baseTemplates[taskType]
		require.True(t, ok, "missing template for %s", taskType)
		assert.NotEmpty(t, tpl)
	}
}
