package flowcontroller

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

type validationRule struct {
	kind     string
	min, max float64
}

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

func parseValidationRule(rule string) (validationRule, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(rule), ":")
	switch kind {
	case "required":
		return validationRule{kind: kind}, nil
	case "range":
		lo, hi, ok := strings.Cut(arg, "-")
		if !ok {
			return validationRule{}, fmt.Errorf("range rule %q needs min-max", rule)
		}
		lower, err1 := strconv.ParseFloat(lo, 64)
		upper, err2 := strconv.ParseFloat(hi, 64)
		if err1 != nil || err2 != nil || lower > upper {
			return validationRule{}, fmt.Errorf("invalid range rule %q", rule)
		}
		return validationRule{kind: kind, min: lower, max: upper}, nil
	case "min_length", "max_length":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return validationRule{}, fmt.Errorf("invalid length rule %q", rule)
		}
		return validationRule{kind: kind, min: float64(n), max: float64(n)}, nil
	}
	return validationRule{}, fmt.Errorf("unknown validation rule %q", rule)
}

// validateAnswer applies the template's validation rules. Range rules only
// constrain answers that contain a number; descriptive answers are left to
// the extractor.
func validateAnswer(t QuestionTemplate, answer string) error {
	for _, raw := range t.Validation {
		rule, err := parseValidationRule(raw)
		if err != nil {
			return err
		}
		switch rule.kind {
		case "required":
			if strings.TrimSpace(answer) == "" {
				return fmt.Errorf("an answer is required")
			}
		case "range":
			if v, ok := leadingNumber(answer); ok && (v < rule.min || v > rule.max) {
				return fmt.Errorf("%v is outside %v-%v", v, rule.min, rule.max)
			}
		case "min_length":
			if utf8.RuneCountInString(strings.TrimSpace(answer)) < int(rule.min) {
				return fmt.Errorf("answer shorter than %d characters", int(rule.min))
			}
		case "max_length":
			if utf8.RuneCountInString(answer) > int(rule.max) {
				return fmt.Errorf("answer longer than %d characters", int(rule.max))
			}
		}
	}
	return nil
}

func leadingNumber(answer string) (float64, bool) {
	m := numberPattern.FindString(answer)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	return v, err == nil
}
