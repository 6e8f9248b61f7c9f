package diagnosticreasoning

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	"inquiry-core/internal/models"
	"inquiry-core/pkg/kbase"
)

// Engine scores the reference diseases against a symptom list. It holds no
// mutable state; every method is a pure function of its arguments.
type Engine struct {
	config   *Config
	diseases []kbase.Disease
	rules    []Rule
	logger   logger.Logger
}

func NewEngine(config *Config, diseases []kbase.Disease, log logger.Logger) *Engine {
	if config == nil {
		config = LoadConfig()
	}
	return &Engine{
		config:   config,
		diseases: diseases,
		rules:    DefaultRules(),
		logger:   log.WithFields(map[string]interface{}{"component": "diagnostic-engine"}),
	}
}

// WithRules replaces the diagnostic rule set.
func (e *Engine) WithRules(rules []Rule) *Engine {
	e.rules = rules
	return e
}

func (e *Engine) Diseases() []kbase.Disease {
	return e.diseases
}

// Differentials scores every disease, drops the ones under MinProbability and
// returns the rest by probability, highest first. A disease that fails to
// score is left out on its own.
func (e *Engine) Differentials(symptoms []models.Symptom, patient *models.PatientContext) []DiagnosisResult {
	present := make(map[string]models.Symptom, len(symptoms))
	for _, s := range symptoms {
		present[s.Name] = s
	}

	results := make([]DiagnosisResult, 0, len(e.diseases))
	for _, d := range e.diseases {
		res, err := e.evaluate(d, symptoms, present, patient)
		if err != nil {
			e.logger.Warn("candidate excluded", map[string]interface{}{
				"candidate": d.ID,
				"error":     errors.NewReasoningFailedError(d.ID, err).Error(),
			})
			continue
		}
		if res == nil || res.Probability < e.config.MinProbability {
			continue
		}
		results = append(results, *res)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Probability > results[j].Probability })
	if len(results) > e.config.MaxDifferentials {
		results = results[:e.config.MaxDifferentials]
	}
	return results
}

// evaluate scores one disease. A nil result means the disease is ruled out by
// its exclusion or required symptoms, or that no observed symptom is typical
// of it.
func (e *Engine) evaluate(d kbase.Disease, symptoms []models.Symptom, present map[string]models.Symptom, patient *models.PatientContext) (res *DiagnosisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	for _, name := range d.ExclusionSymptoms {
		if _, ok := present[name]; ok {
			return nil, nil
		}
	}
	for _, name := range d.RequiredSymptoms {
		if _, ok := present[name]; !ok {
			return nil, nil
		}
	}

	typical := make(map[string]struct{}, len(d.TypicalSymptoms))
	for _, t := range d.TypicalSymptoms {
		typical[t.Name] = struct{}{}
	}
	supporting := []string{}
	for _, s := range symptoms {
		if _, ok := typical[s.Name]; ok {
			supporting = append(supporting, s.Name)
		}
	}
	if len(supporting) == 0 {
		return nil, nil
	}

	contextFactor, err := e.contextFactor(d, patient)
	if err != nil {
		return nil, err
	}
	probability := math.Min(1, d.Prevalence*e.likelihood(d, symptoms)*contextFactor)
	probability = math.Round(probability*10000) / 10000
	var missing []string
	for _, t := range d.TypicalSymptoms {
		if _, ok := present[t.Name]; !ok {
			missing = append(missing, t.Name)
		}
	}

	requiredMatched := len(d.RequiredSymptoms) > 0
	return &DiagnosisResult{
		DiseaseID:          d.ID,
		Name:               d.Name,
		ICDCode:            d.ICDCode,
		Category:           d.Category,
		Probability:        probability,
		Confidence:         e.confidenceTier(probability, requiredMatched),
		SupportingSymptoms: supporting,
		MissingSymptoms:    missing,
		RequiredMatched:    requiredMatched,
		RiskLevel:          e.diseaseRisk(d, symptoms, patient),
		Reasoning:          diseaseReasoning(d, symptoms, probability, supporting),
	}, nil
}

// likelihood multiplies, per observed symptom, membership x severity/10
// relative to BaselineRate for typical symptoms and AtypicalPenalty otherwise.
func (e *Engine) likelihood(d kbase.Disease, symptoms []models.Symptom) float64 {
	membership := make(map[string]float64, len(d.TypicalSymptoms))
	for _, t := range d.TypicalSymptoms {
		m := t.Membership
		if m <= 0 {
			m = e.config.DefaultMembership
		}
		membership[t.Name] = m
	}

	likelihood := 1.0
	for _, s := range symptoms {
		m, ok := membership[s.Name]
		if !ok {
			likelihood *= e.config.AtypicalPenalty
			continue
		}
		likelihood *= m * (e.severityOf(s) / 10) / e.config.BaselineRate
	}
	return likelihood
}

func (e *Engine) severityOf(s models.Symptom) float64 {
	if s.Severity > 0 {
		return math.Min(10, s.Severity)
	}
	switch s.SeverityLevel {
	case models.SeverityMild:
		return 3
	case models.SeverityModerate:
		return 5
	case models.SeveritySevere:
		return 7
	}
	return e.config.DefaultSeverity
}

// contextFactor is neutral without a patient. Rules of unknown kind are an
// error for this disease only.
func (e *Engine) contextFactor(d kbase.Disease, patient *models.PatientContext) (float64, error) {
	if patient == nil {
		return 1, nil
	}
	factor := 1.0
	for _, rule := range d.ContextRules {
		switch rule.Kind {
		case kbase.RuleAgeOver:
			if patient.Age > 0 && patient.Age > rule.Age {
				factor *= rule.Factor
			}
		case kbase.RuleAgeUnder:
			if patient.Age > 0 && patient.Age < rule.Age {
				factor *= rule.Factor
			}
		case kbase.RuleGender:
			if rule.Gender != "" && strings.EqualFold(patient.Gender, rule.Gender) {
				factor *= rule.Factor
			}
		default:
			return 0, fmt.Errorf("unknown context rule %q", rule.Kind)
		}
	}
	if patient.HasCondition(d.Name) {
		factor *= e.config.MedicalHistoryFactor
	}
	if patient.HasFamilyHistory(d.Name) {
		factor *= e.config.FamilyHistoryFactor
	}
	return factor, nil
}

// confidenceTier bands the probability and moves one tier up when the
// disease defines required symptoms and all of them were observed.
func (e *Engine) confidenceTier(probability float64, requiredMatched bool) ConfidenceTier {
	var tier ConfidenceTier
	switch {
	case probability >= 0.8:
		tier = ConfidenceVeryHigh
	case probability >= 0.6:
		tier = ConfidenceHigh
	case probability >= 0.4:
		tier = ConfidenceModerate
	case probability >= 0.2:
		tier = ConfidenceLow
	default:
		tier = ConfidenceVeryLow
	}
	if requiredMatched {
		tier = tier.bump()
	}
	return tier
}

func (e *Engine) diseaseRisk(d kbase.Disease, symptoms []models.Symptom, patient *models.PatientContext) RiskLevel {
	var risk RiskLevel
	switch {
	case d.SeverityScore >= 8:
		risk = RiskCritical
	case d.SeverityScore >= 6:
		risk = RiskHigh
	case d.SeverityScore >= 4:
		risk = RiskModerate
	case d.SeverityScore >= 2:
		risk = RiskLow
	default:
		risk = RiskMinimal
	}

	maxSeverity := maxObservedSeverity(symptoms)
	if maxSeverity >= 8 {
		risk = RiskCritical
	} else if maxSeverity >= 6 && (risk == RiskMinimal || risk == RiskLow) {
		risk = RiskModerate
	}

	if patient.IsExtremeAge() && (risk == RiskMinimal || risk == RiskLow) {
		risk = risk.raise()
	}
	return risk
}

func maxObservedSeverity(symptoms []models.Symptom) float64 {
	maxSeverity := 0.0
	for _, s := range symptoms {
		maxSeverity = math.Max(maxSeverity, s.Severity)
	}
	return maxSeverity
}

// emergencySymptoms raise the overall risk to critical at severity 7 or more.
var emergencySymptoms = []string{"胸痛", "呼吸困难", "意识障碍", "意识丧失", "大出血"}

// OverallRisk combines emergency symptoms, triggered rules, the riskiest
// differential and, without any differential, the raw symptom severity.
func (e *Engine) OverallRisk(symptoms []models.Symptom, differentials []DiagnosisResult, triggered []RuleMatch) RiskLevel {
	for _, s := range symptoms {
		for _, name := range emergencySymptoms {
			if s.Name == name && s.Severity >= 7 {
				return RiskCritical
			}
		}
	}

	risk := RiskMinimal
	for _, m := range triggered {
		switch m.Action {
		case RecommendImmediateAttention:
			return RiskCritical
		case RecommendUrgentEvaluation:
			risk = maxRisk(risk, RiskHigh)
		}
	}

	if len(differentials) > 0 {
		for _, d := range differentials {
			risk = maxRisk(risk, d.RiskLevel)
		}
		return risk
	}

	maxSeverity := maxObservedSeverity(symptoms)
	switch {
	case maxSeverity >= 8:
		return maxRisk(risk, RiskHigh)
	case maxSeverity >= 6:
		return maxRisk(risk, RiskModerate)
	case maxSeverity >= 4:
		return maxRisk(risk, RiskLow)
	}
	return risk
}

// Primary returns the first differential that clears PrimaryProbability with a
// high or very high tier.
func (e *Engine) Primary(differentials []DiagnosisResult) *DiagnosisResult {
	for i := range differentials {
		d := differentials[i]
		if d.Probability >= e.config.PrimaryProbability && d.Confidence.AtLeast(ConfidenceHigh) {
			return &d
		}
	}
	return nil
}

// OverallConfidence discounts the best probability by the number of competing
// differentials and by how complete the symptom picture is.
func (e *Engine) OverallConfidence(differentials []DiagnosisResult, symptoms []models.Symptom) float64 {
	if len(differentials) == 0 {
		return 0
	}
	countFactor := math.Max(0.5, 1-float64(len(differentials)-1)*0.05)
	completeness := 1.0
	if n := e.config.CompleteSymptomCount; n > 0 {
		completeness = math.Min(1, float64(len(symptoms))/float64(n))
	}
	return math.Round(math.Min(1, differentials[0].Probability*countFactor*completeness)*1000) / 1000
}
