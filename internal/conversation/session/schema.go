package session

import "inquiry-core/internal/common/validation"

var startSchema = validation.MustCompile(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"patientId"},
	"properties": map[string]interface{}{
		"patientId": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
			"maxLength": 128,
		},
		"patient": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"age": map[string]interface{}{
					"type":    "integer",
					"minimum": 0,
					"maximum": 150,
				},
				"gender": map[string]interface{}{
					"type": "string",
					"enum": []interface{}{"male", "female", "other"},
				},
				"pregnant":         map[string]interface{}{"type": "boolean"},
				"allergies":        stringArray,
				"activeConditions": stringArray,
				"medicalHistory":   stringArray,
				"familyHistory":    stringArray,
				"constitution":     map[string]interface{}{"type": "string"},
			},
		},
		"initialData": map[string]interface{}{
			"type": "object",
			"additionalProperties": map[string]interface{}{
				"type":      "string",
				"maxLength": 2000,
			},
		},
	},
})

var stringArray = map[string]interface{}{
	"type":  "array",
	"items": map[string]interface{}{"type": "string"},
}
