// Package prompt assembles the model prompt from the task instruction,
// grounding evidence, and the anti-hallucination rules block.
package prompt

import (
	"fmt"
	"strings"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
)

const defaultMaxContextLength = 16000

// Assembler builds prompts deterministically.
type Assembler struct {
	maxContextLength int
}

// NewAssembler creates an Assembler with the given maximum prompt length.
func NewAssembler(maxContextLength int) *Assembler {
	if maxContextLength <= 0 {
		maxContextLength = defaultMaxContextLength
	}
	return &Assembler{maxContextLength: maxContextLength}
}

// Assemble merges the grounding block (when sources exist), the task's base
// instruction, the task input, and the rules block. The combined prompt is
// truncated to the configured maximum, always preserving the rules suffix.
func (a *Assembler) Assemble(taskType domain.TaskType, taskInput string, grounding *domain.GroundingResult) string {
	var b strings.Builder

	if grounding != nil && len(grounding.Sources) > 0 {
		b.WriteString(renderGroundingBlock(grounding))
		b.WriteString("\n")
	}

	b.WriteString(templateFor(taskType))
	b.WriteString("\n\nTask:\n")
	b.WriteString(strings.TrimSpace(taskInput))

	body := b.String()
	suffix := antiHallucinationRules

	if len(body)+len(suffix) > a.maxContextLength {
		keep := a.maxContextLength - len(suffix)
		if keep < 0 {
			keep = 0
		}
		body = body[:keep]
	}

	return body + suffix
}

// renderGroundingBlock formats the evidence sources with their metadata and
// citation instructions.
func renderGroundingBlock(grounding *domain.GroundingResult) string {
	var b strings.Builder
	b.WriteString("Evidence sources (cite by id):\n")
	for _, source := range grounding.Sources {
		fmt.Fprintf(&b, "--- source id=%s title=%q type=%s reliability=%.2f relevance=%.2f",
			source.ID, source.Title, source.SourceType, source.Reliability, source.RelevanceScore)
		if source.URL != "" {
			fmt.Fprintf(&b, " url=%s", source.URL)
		}
		b.WriteString(" ---\n")
		b.WriteString(strings.TrimSpace(source.Content))
		b.WriteString("\n")
	}
	if len(grounding.Snippets) > 0 {
		b.WriteString("Key snippets:\n")
		for _, snippet := range grounding.Snippets {
			fmt.Fprintf(&b, "- [%s] %s\n", snippet.SourceID, snippet.Text)
		}
	}
	return b.String()
}
