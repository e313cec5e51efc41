package prompt

import "github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"

// baseTemplates are the per-task-type instruction blocks. The table is
// keyed by the TaskType enum; adding a task type without a template is a
// compile-visible gap covered by TestEveryTaskTypeHasTemplate.
var baseTemplates = map[domain.TaskType]string{
	domain.TaskTypeExtraction: `You are a business data extraction assistant.
Extract the requested fields from the task description below and respond
with a single JSON object. Use exact values from the evidence; do not
normalize units or round numbers.`,

	domain.TaskTypeAnalysis: `You are a business analysis assistant.
Analyze the task described below and respond with a single JSON object
containing your findings. Base every conclusion on the provided evidence.`,

	domain.TaskTypeComposition: `You are a business writing assistant.
Compose the requested document for the task below and respond with a
single JSON object containing the composed parts. Ground every factual
claim in the provided evidence.`,

	domain.TaskTypeDefault: `You are a business assistant.
Complete the task described below and respond with a single JSON object.`,
}

// antiHallucinationRules is always appended, with or without grounding.
const antiHallucinationRules = `
Rules:
- Use ONLY the evidence provided above. Do not rely on outside knowledge.
- If a field cannot be determined from the evidence, set it to "UNKNOWN".
- Attach a "confidence" value in [0,1] to the output.
- Cite evidence sources by their id in a "sources" array where applicable.
- Respond with valid JSON and nothing else.`

// templateFor returns the base instruction text for a task type.
func templateFor(t domain.TaskType) string {
	if tpl, ok := baseTemplates[domain.NormalizeTaskType(t)]; ok {
		return tpl
	}
	return baseTemplates[domain.TaskTypeDefault]
}
