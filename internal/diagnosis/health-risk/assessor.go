package healthrisk

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	knowledgegraph "inquiry-core/internal/knowledge/knowledge-graph"
	"inquiry-core/internal/models"
)

const ComponentName = "health-risk"

// ConstitutionSource lists the syndromes a constitution is prone to.
type ConstitutionSource interface {
	ProneSyndromes(ctx context.Context, constitution string) ([]knowledgegraph.ProneSyndrome, error)
}

type Assessor struct {
	config        *Config
	rules         *Rules
	constitutions ConstitutionSource
	logger        logger.Logger
	now           func() time.Time
}

// NewAssessor builds an assessor. constitutions is optional; without it no
// constitution risks are derived.
func NewAssessor(config *Config, rules *Rules, constitutions ConstitutionSource, log logger.Logger) *Assessor {
	if config == nil {
		config = LoadConfig()
	}
	if rules == nil {
		rules = DefaultRules()
	}
	return &Assessor{
		config:        config,
		rules:         rules,
		constitutions: constitutions,
		logger:        log.WithFields(map[string]interface{}{"component": ComponentName}),
		now:           time.Now,
	}
}

// Execute assesses the input. A failing constitution lookup degrades the
// assessment instead of failing it.
func (a *Assessor) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, errors.NewValidationError("health risk input is required")
	}

	out := &Output{}
	var prone []knowledgegraph.ProneSyndrome
	if constitution := constitutionOf(input.Patient); constitution != "" && a.constitutions != nil {
		var err error
		prone, err = a.constitutions.ProneSyndromes(ctx, constitution)
		if err != nil {
			a.logger.WithError(err).Warn("constitution lookup failed", map[string]interface{}{
				"constitution": constitution,
			})
			out.ConstitutionUnavailable = true
			prone = nil
		}
	}

	out.Assessment = a.Assess(input, prone)
	a.logger.Debug("health risks assessed", map[string]interface{}{
		"immediate":    len(out.Assessment.ImmediateRisks),
		"longTerm":     len(out.Assessment.LongTermRisks),
		"overallScore": out.Assessment.OverallScore,
	})
	return out, nil
}

// Assess combines symptom, history and constitution risks into one
// assessment. It performs no lookups.
func (a *Assessor) Assess(input *Input, prone []knowledgegraph.ProneSyndrome) *Assessment {
	var risks []Risk
	risks = append(risks, a.symptomRisks(input.Symptoms)...)
	risks = append(risks, a.historyRisks(input.Patient, input.RiskFactors)...)
	risks = append(risks, a.constitutionRisks(prone, input.Symptoms)...)

	immediate, longTerm := a.split(merge(risks))
	all := append(append([]Risk{}, immediate...), longTerm...)
	return &Assessment{
		ImmediateRisks:       immediate,
		LongTermRisks:        longTerm,
		PreventionStrategies: a.strategies(all, constitutionOf(input.Patient)),
		OverallScore:         a.overallScore(immediate, longTerm),
		Confidence:           a.confidence(input.Symptoms),
		AssessedAt:           a.now(),
	}
}

func constitutionOf(p *models.PatientContext) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.Constitution)
}

func (a *Assessor) severityFactor(s models.Symptom) float64 {
	switch {
	case s.Severity >= a.config.ExtremeSeverity:
		return a.config.ExtremeFactor
	case s.Severity >= a.config.SevereSeverity || s.SeverityLevel == models.SeveritySevere:
		return a.config.SevereFactor
	default:
		return 1
	}
}

func (a *Assessor) symptomRisks(symptoms []models.Symptom) []Risk {
	byName := make(map[string]models.Symptom, len(symptoms))
	for _, s := range symptoms {
		byName[s.Name] = s
	}

	var risks []Risk
	for _, rule := range a.rules.Combinations {
		var matched []string
		factor := 1.0
		for _, name := range rule.Symptoms {
			if s, ok := byName[name]; ok {
				matched = append(matched, name)
				factor *= a.severityFactor(s)
			}
		}
		if len(matched) == 0 || float64(len(matched)) < float64(len(rule.Symptoms))*a.config.CombinationMatchRatio {
			continue
		}
		p := math.Min(rule.Probability*factor, a.config.MaxProbability)
		timeframe := TimeframeShortTerm
		if p > a.config.ImmediateProbability {
			timeframe = TimeframeImmediate
		}
		risks = append(risks, Risk{
			Name:                rule.Risk,
			Probability:         p,
			Timeframe:           timeframe,
			ContributingFactors: matched,
			Sources:             []string{SourceSymptom},
		})
	}

	for _, rule := range a.rules.Symptoms {
		s, ok := byName[rule.Symptom]
		if !ok {
			continue
		}
		if rule.MinDurationDays > 0 && s.DurationDays < rule.MinDurationDays {
			continue
		}
		if rule.MinSeverity > 0 && s.Severity < rule.MinSeverity {
			continue
		}
		risks = append(risks, Risk{
			Name:                rule.Risk,
			Probability:         rule.Probability,
			Timeframe:           TimeframeImmediate,
			ContributingFactors: []string{rule.Symptom},
			Sources:             []string{SourceSymptom},
		})
	}
	return risks
}

func (a *Assessor) historyRisks(p *models.PatientContext, riskFactors []string) []Risk {
	var conditions []string
	if p != nil {
		conditions = append(conditions, p.MedicalHistory...)
		conditions = append(conditions, p.ActiveConditions...)
	}
	conditions = append(conditions, riskFactors...)

	var risks []Risk
	for _, condition := range models.UnionStrings(nil, conditions) {
		for _, rule := range a.rules.History {
			if !strings.Contains(condition, rule.Condition) {
				continue
			}
			risks = append(risks, Risk{
				Name:                rule.Risk,
				Probability:         rule.Probability,
				Timeframe:           TimeframeLongTerm,
				ContributingFactors: []string{rule.Condition + "病史"},
				Sources:             []string{SourceHistory},
			})
			break
		}
	}

	if p != nil {
		for _, relative := range p.FamilyHistory {
			relative = strings.TrimSpace(relative)
			if relative == "" {
				continue
			}
			risks = append(risks, Risk{
				Name:                relative,
				Probability:         a.config.FamilyHistoryProbability,
				Timeframe:           TimeframeLongTerm,
				ContributingFactors: []string{"家族史"},
				Sources:             []string{SourceHistory},
			})
		}
	}
	return risks
}

// constitutionRisks starts every prone syndrome at the base probability and
// raises it by the ConstitutionProne weight when an indicating symptom is
// present. Only raised risks clear the threshold.
func (a *Assessor) constitutionRisks(prone []knowledgegraph.ProneSyndrome, symptoms []models.Symptom) []Risk {
	present := make(map[string]bool, len(symptoms))
	for _, s := range symptoms {
		present[s.Name] = true
	}

	var risks []Risk
	for _, ps := range prone {
		p := a.config.ConstitutionBase
		factors := []string{ps.Constitution}
		for _, indicator := range ps.Indicators {
			if present[indicator] {
				p = a.config.ConstitutionBase * (1 + ps.Weight*a.config.ConstitutionWeightFactor)
				factors = append(factors, indicator)
			}
		}
		if p <= a.config.ConstitutionThreshold {
			continue
		}
		risks = append(risks, Risk{
			Name:                ps.Name,
			Probability:         math.Min(p, a.config.ConstitutionCap),
			Timeframe:           TimeframeLongTerm,
			ContributingFactors: factors,
			Sources:             []string{SourceConstitution},
		})
	}
	return risks
}

// merge folds risks of the same name: the highest probability and the most
// urgent timeframe win, factors and sources are unioned.
func merge(risks []Risk) []Risk {
	index := make(map[string]int, len(risks))
	var out []Risk
	for _, r := range risks {
		i, ok := index[r.Name]
		if !ok {
			index[r.Name] = len(out)
			out = append(out, r)
			continue
		}
		m := &out[i]
		m.Probability = math.Max(m.Probability, r.Probability)
		if r.Timeframe.urgency() > m.Timeframe.urgency() {
			m.Timeframe = r.Timeframe
		}
		m.ContributingFactors = models.UnionStrings(m.ContributingFactors, r.ContributingFactors)
		m.Sources = models.UnionStrings(m.Sources, r.Sources)
	}
	return out
}

func (a *Assessor) split(risks []Risk) (immediate, longTerm []Risk) {
	for _, r := range risks {
		r.Probability = round2(r.Probability)
		r.Severity = a.config.severity(r.Probability)
		if r.Timeframe == TimeframeLongTerm {
			longTerm = append(longTerm, r)
		} else {
			immediate = append(immediate, r)
		}
	}
	return a.top(immediate), a.top(longTerm)
}

func (a *Assessor) top(risks []Risk) []Risk {
	sort.SliceStable(risks, func(i, j int) bool {
		if risks[i].Probability != risks[j].Probability {
			return risks[i].Probability > risks[j].Probability
		}
		return risks[i].Name < risks[j].Name
	})
	if a.config.MaxRisks > 0 && len(risks) > a.config.MaxRisks {
		risks = risks[:a.config.MaxRisks]
	}
	return risks
}

func (a *Assessor) strategies(risks []Risk, constitution string) []Strategy {
	index := make(map[string]int)
	var out []Strategy
	add := func(s Strategy, target string) {
		i, ok := index[s.Name]
		if !ok {
			s.ActionItems = append([]string{}, s.ActionItems...)
			s.Targets = nil
			index[s.Name] = len(out)
			out = append(out, s)
			i = len(out) - 1
		}
		out[i].Targets = models.UnionStrings(out[i].Targets, []string{target})
	}

	for _, r := range risks {
		if rule, ok := a.strategyFor(r.Name); ok {
			add(rule.Strategy, r.Name)
		}
	}
	if constitution != "" && constitution != a.config.BalancedConstitution {
		if s, ok := a.rules.constitutionStrategy(constitution); ok {
			add(s, constitution+"相关疾病")
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Effectiveness != out[j].Effectiveness {
			return out[i].Effectiveness > out[j].Effectiveness
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (a *Assessor) strategyFor(risk string) (StrategyRule, bool) {
	for _, rule := range a.rules.Strategies {
		for _, m := range rule.Match {
			if strings.Contains(risk, m) {
				return rule, true
			}
		}
	}
	return StrategyRule{}, false
}

func (a *Assessor) overallScore(immediate, longTerm []Risk) float64 {
	if len(immediate) == 0 && len(longTerm) == 0 {
		return 0
	}
	score := a.config.ImmediateWeight*meanProbability(immediate) +
		(1-a.config.ImmediateWeight)*meanProbability(longTerm)
	return round2(score)
}

func meanProbability(risks []Risk) float64 {
	if len(risks) == 0 {
		return 0
	}
	var sum float64
	for _, r := range risks {
		sum += r.Probability
	}
	return sum / float64(len(risks))
}

func (a *Assessor) confidence(symptoms []models.Symptom) float64 {
	if len(symptoms) == 0 {
		return a.config.EmptyConfidence
	}
	var sum float64
	for _, s := range symptoms {
		c := s.Confidence
		if c <= 0 {
			c = a.config.DefaultSymptomConfidence
		}
		sum += c
	}
	avg := sum / float64(len(symptoms))
	quantity := math.Min(float64(len(symptoms))/float64(a.config.CompleteSymptomCount), 1)
	return round2(0.7*avg + 0.3*quantity)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
