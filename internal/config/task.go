package config

import "github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"

// TaskConfig is the per-task-type generation and validation surface.
type TaskConfig struct {
	Temperature         float32
	TopP                float32
	MaxOutputTokens     int
	MaxRetries          int
	ConfidenceThreshold float64
	CriticalFields      []string
}

// taskConfigs enumerates the configuration per task category. The table is
// keyed by the TaskType enum so adding a category is a compile-checked
// change alongside the schema registry.
var taskConfigs = map[domain.TaskType]TaskConfig{
	domain.TaskTypeExtraction: {
		Temperature:         0.0,
		TopP:                0.1,
		MaxOutputTokens:     2048,
		MaxRetries:          3,
		ConfidenceThreshold: 0.85,
		CriticalFields:      []string{"company_name", "revenue", "registration_number"},
	},
	domain.TaskTypeAnalysis: {
		Temperature:         0.2,
		TopP:                0.5,
		MaxOutputTokens:     4096,
		MaxRetries:          3,
		ConfidenceThreshold: 0.75,
		CriticalFields:      []string{"summary", "risk_level"},
	},
	domain.TaskTypeComposition: {
		Temperature:         0.4,
		TopP:                0.8,
		MaxOutputTokens:     4096,
		MaxRetries:          2,
		ConfidenceThreshold: 0.7,
		CriticalFields:      []string{"subject", "body"},
	},
	domain.TaskTypeDefault: {
		Temperature:         0.1,
		TopP:                0.3,
		MaxOutputTokens:     2048,
		MaxRetries:          3,
		ConfidenceThreshold: 0.8,
		CriticalFields:      []string{"answer"},
	},
}

// TaskConfigFor returns the configuration for a task type. Unknown types
// fall back to the default category.
func TaskConfigFor(t domain.TaskType) TaskConfig {
	if cfg, ok := taskConfigs[domain.NormalizeTaskType(t)]; ok {
		return cfg
	}
	return taskConfigs[domain.TaskTypeDefault]
}
