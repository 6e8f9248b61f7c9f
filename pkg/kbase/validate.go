// pkg/kbase/validate.go
package kbase

import (
	"fmt"
	"strings"

	"inquiry-core/internal/common/validation"
)

func stringEnum(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

var documentSchema = validation.MustCompile(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"version", "entities", "relations"},
	"properties": map[string]interface{}{
		"version": map[string]interface{}{"type": "string", "minLength": 1},
		"entities": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"id", "name", "type"},
				"properties": map[string]interface{}{
					"id":   map[string]interface{}{"type": "string", "minLength": 1},
					"name": map[string]interface{}{"type": "string", "minLength": 1},
					"type": map[string]interface{}{"enum": stringEnum(EntityTypes)},
					"properties": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"pregnancyCaution": map[string]interface{}{"enum": []interface{}{PregnancyForbidden, PregnancyCaution}},
							"severityScore":    map[string]interface{}{"type": "number", "minimum": 0, "maximum": 10},
							"minAge":           map[string]interface{}{"type": "integer", "minimum": 0},
						},
					},
				},
			},
		},
		"relations": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"source", "target", "kind", "weight"},
				"properties": map[string]interface{}{
					"source": map[string]interface{}{"type": "string", "minLength": 1},
					"target": map[string]interface{}{"type": "string", "minLength": 1},
					"kind":   map[string]interface{}{"enum": stringEnum(RelationKinds)},
					"weight": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
				},
			},
		},
		"diseases": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"id", "name", "typicalSymptoms", "prevalence", "severityScore"},
				"properties": map[string]interface{}{
					"id":            map[string]interface{}{"type": "string", "minLength": 1},
					"name":          map[string]interface{}{"type": "string", "minLength": 1},
					"prevalence":    map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
					"severityScore": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 10},
					"typicalSymptoms": map[string]interface{}{
						"type":     "array",
						"minItems": 1,
						"items": map[string]interface{}{
							"type":     "object",
							"required": []interface{}{"name"},
							"properties": map[string]interface{}{
								"membership": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
							},
						},
					},
					"contextRules": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type":     "object",
							"required": []interface{}{"kind", "factor"},
							"properties": map[string]interface{}{
								"kind":   map[string]interface{}{"enum": []interface{}{RuleAgeOver, RuleAgeUnder, RuleGender}},
								"factor": map[string]interface{}{"type": "number", "minimum": 0},
							},
						},
					},
				},
			},
		},
	},
})

// Validate checks d against the document schema and then the cross-reference
// rules the schema cannot express: unique ids and relation endpoints that exist.
func Validate(d *Document) (*validation.ValidationResult, error) {
	result, err := documentSchema.Validate(d)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return result, nil
	}

	fail := func(field, format string, args ...interface{}) {
		result.Valid = false
		result.Errors = append(result.Errors, validation.ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    "REFERENCE",
		})
	}

	ids := make(map[string]struct{}, len(d.Entities))
	for i, e := range d.Entities {
		if _, dup := ids[e.ID]; dup {
			fail(fmt.Sprintf("entities.%d.id", i), "duplicate entity id %q", e.ID)
		}
		ids[e.ID] = struct{}{}
	}

	relIDs := make(map[string]struct{}, len(d.Relations))
	for i, r := range d.Relations {
		if r.ID != "" {
			if _, dup := relIDs[r.ID]; dup {
				fail(fmt.Sprintf("relations.%d.id", i), "duplicate relation id %q", r.ID)
			}
			relIDs[r.ID] = struct{}{}
		}
		if _, ok := ids[r.Source]; !ok {
			fail(fmt.Sprintf("relations.%d.source", i), "unknown entity %q", r.Source)
		}
		if _, ok := ids[r.Target]; !ok {
			fail(fmt.Sprintf("relations.%d.target", i), "unknown entity %q", r.Target)
		}
		if r.Kind == KindContraindication && strings.TrimSpace(r.Reason) == "" {
			fail(fmt.Sprintf("relations.%d.reason", i), "contraindication %s -> %s has no reason", r.Source, r.Target)
		}
	}

	diseaseIDs := make(map[string]struct{}, len(d.Diseases))
	for i, dis := range d.Diseases {
		if _, dup := diseaseIDs[dis.ID]; dup {
			fail(fmt.Sprintf("diseases.%d.id", i), "duplicate disease id %q", dis.ID)
		}
		diseaseIDs[dis.ID] = struct{}{}
	}

	return result, nil
}
