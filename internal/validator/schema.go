package validator

import (
	"fmt"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
)

// FieldKind is the expected JSON kind of a schema field.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "bool"
	KindArray  FieldKind = "array"
	KindObject FieldKind = "object"
	KindAny    FieldKind = "any"
)

// FieldSpec describes one expected output field.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Required bool
}

// Schema is the structural contract for one task type's output.
type Schema struct {
	TaskType domain.TaskType
	Fields   []FieldSpec
}

// schemas is the enum-keyed schema registry. Every task type must have an
// entry; the reserved control fields (confidence, needs_review,
// unverified_fields, sources) are allowed on top of any schema.
var schemas = map[domain.TaskType]Schema{
	domain.TaskTypeExtraction: {
		TaskType: domain.TaskTypeExtraction,
		Fields: []FieldSpec{
			{Name: "company_name", Kind: KindString, Required: true},
			{Name: "revenue", Kind: KindString, Required: true},
			{Name: "registration_number", Kind: KindString, Required: false},
			{Name: "address", Kind: KindString, Required: false},
			{Name: "industry", Kind: KindString, Required: false},
		},
	},
	domain.TaskTypeAnalysis: {
		TaskType: domain.TaskTypeAnalysis,
		Fields: []FieldSpec{
			{Name: "summary", Kind: KindString, Required: true},
			{Name: "risk_level", Kind: KindString, Required: true},
			{Name: "findings", Kind: KindArray, Required: false},
			{Name: "recommendation", Kind: KindString, Required: false},
		},
	},
	domain.TaskTypeComposition: {
		TaskType: domain.TaskTypeComposition,
		Fields: []FieldSpec{
			{Name: "subject", Kind: KindString, Required: true},
			{Name: "body", Kind: KindString, Required: true},
			{Name: "tone", Kind: KindString, Required: false},
		},
	},
	domain.TaskTypeDefault: {
		TaskType: domain.TaskTypeDefault,
		Fields: []FieldSpec{
			{Name: "answer", Kind: KindAny, Required: true},
		},
	},
}

// controlFields carry validator metadata rather than task output.
var controlFields = map[string]struct{}{
	"confidence":        {},
	"needs_review":      {},
	"unverified_fields": {},
	"sources":           {},
}

// SchemaFor returns the registered schema for a task type.
func SchemaFor(t domain.TaskType) Schema {
	if s, ok := schemas[domain.NormalizeTaskType(t)]; ok {
		return s
	}
	return schemas[domain.TaskTypeDefault]
}

// checkSchema validates parsed data against the schema, returning
// field-path error messages for violations.
func checkSchema(schema Schema, data map[string]any) []string {
	var errs []string
	for _, field := range schema.Fields {
		value, present := data[field.Name]
		if !present {
			if field.Required {
				errs = append(errs, fmt.Sprintf("%s: required field is missing", field.Name))
			}
			continue
		}
		if value == nil {
			continue
		}
		if !kindMatches(field.Kind, value) {
			errs = append(errs, fmt.Sprintf("%s: expected %s, got %T", field.Name, field.Kind, value))
		}
	}
	return errs
}

func kindMatches(kind FieldKind, value any) bool {
	switch kind {
	case KindString:
		_, ok := value.(string)
		return ok
	case KindNumber:
		_, ok := value.(float64)
		return ok
	case KindBool:
		_, ok := value.(bool)
		return ok
	case KindArray:
		_, ok := value.([]any)
		return ok
	case KindObject:
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

// TaskFields returns the names of the data fields in data, excluding the
// control fields.
func TaskFields(data map[string]any) []string {
	fields := make([]string, 0, len(data))
	for name := range data {
		if _, ok := controlFields[name]; ok {
			continue
		}
		fields = append(fields, name)
	}
	return fields
}
