package healthrisk

import (
	"context"
	"fmt"
	"testing"
	"time"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	knowledgegraph "inquiry-core/internal/knowledge/knowledge-graph"
	"inquiry-core/internal/models"
	"inquiry-core/pkg/kbase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAssessor(t *testing.T, source ConstitutionSource) *Assessor {
	a := NewAssessor(LoadConfig(), DefaultRules(), source, logger.NewTestLogger(t))
	a.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	return a
}

func sym(name string, severity float64) models.Symptom {
	return models.Symptom{Name: name, Severity: severity}
}

func findRisk(t *testing.T, risks []Risk, name string) Risk {
	t.Helper()
	for _, r := range risks {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("risk %s not in %v", name, riskNames(risks))
	return Risk{}
}

func riskNames(risks []Risk) []string {
	names := make([]string, len(risks))
	for i, r := range risks {
		names[i] = r.Name
	}
	return names
}

type staticSource struct {
	prone []knowledgegraph.ProneSyndrome
	err   error
	asked []string
}

func (s *staticSource) ProneSyndromes(_ context.Context, constitution string) ([]knowledgegraph.ProneSyndrome, error) {
	s.asked = append(s.asked, constitution)
	return s.prone, s.err
}

var qiDeficientProne = []knowledgegraph.ProneSyndrome{
	{Constitution: "气虚质", SyndromeID: "syn_qi_deficiency", Name: "气虚证", Weight: 0.8, Indicators: []string{"乏力", "气短", "汗出"}},
	{Constitution: "气虚质", SyndromeID: "syn_spleen_qi_deficiency", Name: "脾气虚证", Weight: 0.6, Indicators: []string{"乏力", "食欲不振", "腹胀", "腹泻"}},
}

// ==========================
// Symptom risks
// ==========================

func TestAssess_SymptomCombinations(t *testing.T) {
	tests := []struct {
		name          string
		symptoms      []models.Symptom
		wantRisk      string
		wantProb      float64
		wantTimeframe Timeframe
		wantSeverity  Severity
		wantFactors   []string
	}{
		{
			name:          "full cardiovascular set with extreme pain is capped",
			symptoms:      []models.Symptom{sym("胸痛", 9), sym("气短", 5), sym("心悸", 0)},
			wantRisk:      "心血管疾病",
			wantProb:      0.95,
			wantTimeframe: TimeframeImmediate,
			wantSeverity:  SeverityCritical,
			wantFactors:   []string{"胸痛", "气短", "心悸"},
		},
		{
			name:          "two of three hypertension symptoms",
			symptoms:      []models.Symptom{sym("头痛", 4), sym("头晕", 3)},
			wantRisk:      "高血压",
			wantProb:      0.6,
			wantTimeframe: TimeframeShortTerm,
			wantSeverity:  SeverityModerate,
			wantFactors:   []string{"头痛", "头晕"},
		},
		{
			name:          "severe level raises the combination",
			symptoms:      []models.Symptom{sym("头痛", 0), {Name: "耳鸣", SeverityLevel: models.SeveritySevere}},
			wantRisk:      "高血压",
			wantProb:      0.72,
			wantTimeframe: TimeframeImmediate,
			wantSeverity:  SeverityHigh,
			wantFactors:   []string{"头痛", "耳鸣"},
		},
		{
			name:          "three of four respiratory symptoms",
			symptoms:      []models.Symptom{sym("咳嗽", 3), sym("咳痰", 3), sym("胸闷", 3)},
			wantRisk:      "呼吸系统疾病",
			wantProb:      0.55,
			wantTimeframe: TimeframeShortTerm,
			wantSeverity:  SeverityModerate,
			wantFactors:   []string{"咳嗽", "咳痰", "胸闷"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAssessor(t, nil).Assess(&Input{Symptoms: tt.symptoms}, nil)
			r := findRisk(t, a.ImmediateRisks, tt.wantRisk)
			assert.InDelta(t, tt.wantProb, r.Probability, 1e-9)
			assert.Equal(t, tt.wantTimeframe, r.Timeframe)
			assert.Equal(t, tt.wantSeverity, r.Severity)
			assert.Equal(t, tt.wantFactors, r.ContributingFactors)
			assert.Equal(t, []string{SourceSymptom}, r.Sources)
		})
	}
}

func TestAssess_PartialCombinationBelowRatio(t *testing.T) {
	tests := []struct {
		name     string
		symptoms []models.Symptom
	}{
		{name: "one of three", symptoms: []models.Symptom{sym("头痛", 5)}},
		{name: "two of four", symptoms: []models.Symptom{sym("口干", 3), sym("乏力", 3)}},
		{name: "no symptoms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAssessor(t, nil).Assess(&Input{Symptoms: tt.symptoms}, nil)
			assert.Empty(t, a.ImmediateRisks)
			assert.Empty(t, a.LongTermRisks)
			assert.Zero(t, a.OverallScore)
		})
	}
}

func TestAssess_SingleSymptomRules(t *testing.T) {
	tests := []struct {
		name     string
		symptom  models.Symptom
		wantRisk string
	}{
		{name: "persistent chest pain", symptom: models.Symptom{Name: "胸痛", Severity: 5, DurationDays: 2}, wantRisk: "心脏疾病"},
		{name: "fresh chest pain", symptom: models.Symptom{Name: "胸痛", Severity: 5}},
		{name: "high fever", symptom: sym("发热", 8), wantRisk: "感染性疾病"},
		{name: "mild fever", symptom: sym("发热", 4)},
		{name: "loss of consciousness", symptom: sym("意识丧失", 0), wantRisk: "神经系统疾病"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAssessor(t, nil).Assess(&Input{Symptoms: []models.Symptom{tt.symptom}}, nil)
			if tt.wantRisk == "" {
				assert.Empty(t, a.ImmediateRisks)
				return
			}
			require.Len(t, a.ImmediateRisks, 1)
			r := a.ImmediateRisks[0]
			assert.Equal(t, tt.wantRisk, r.Name)
			assert.Equal(t, TimeframeImmediate, r.Timeframe)
			assert.Equal(t, []string{tt.symptom.Name}, r.ContributingFactors)
		})
	}
}

// ==========================
// History risks
// ==========================

func TestAssess_HistoryRisks(t *testing.T) {
	input := &Input{
		Patient: &models.PatientContext{
			MedicalHistory: []string{"2型糖尿病"},
			FamilyHistory:  []string{"冠心病", " "},
		},
		RiskFactors: []string{"高血压", "饮酒"},
	}

	a := newTestAssessor(t, nil).Assess(input, nil)
	assert.Empty(t, a.ImmediateRisks)
	assert.Equal(t, []string{"心脑血管疾病", "糖尿病并发症", "冠心病"}, riskNames(a.LongTermRisks))

	diabetes := findRisk(t, a.LongTermRisks, "糖尿病并发症")
	assert.Equal(t, []string{"糖尿病病史"}, diabetes.ContributingFactors)
	assert.Equal(t, SeverityModerate, diabetes.Severity)

	family := findRisk(t, a.LongTermRisks, "冠心病")
	assert.Equal(t, 0.55, family.Probability)
	assert.Equal(t, []string{"家族史"}, family.ContributingFactors)
	assert.Equal(t, []string{SourceHistory}, family.Sources)

	// 0.3 * mean(0.65, 0.6, 0.55)
	assert.InDelta(t, 0.18, a.OverallScore, 1e-9)
}

func TestAssess_MergesRisksOfTheSameName(t *testing.T) {
	input := &Input{
		Symptoms: []models.Symptom{sym("胸痛", 0), sym("气短", 0)},
		Patient:  &models.PatientContext{ActiveConditions: []string{"心脏病"}},
	}

	a := newTestAssessor(t, nil).Assess(input, nil)
	require.Len(t, a.ImmediateRisks, 1)
	assert.Empty(t, a.LongTermRisks, "the short term timeframe wins over long term")

	r := a.ImmediateRisks[0]
	assert.Equal(t, "心血管疾病", r.Name)
	assert.Equal(t, 0.7, r.Probability)
	assert.Equal(t, TimeframeShortTerm, r.Timeframe)
	assert.Equal(t, []string{"胸痛", "气短", "心脏病病史"}, r.ContributingFactors)
	assert.Equal(t, []string{SourceSymptom, SourceHistory}, r.Sources)
}

// ==========================
// Constitution risks
// ==========================

func TestAssess_ConstitutionRisks(t *testing.T) {
	tests := []struct {
		name      string
		symptoms  []models.Symptom
		wantNames []string
		wantProbs []float64
	}{
		{name: "no indicating symptom", symptoms: []models.Symptom{sym("头痛", 3)}},
		{
			name:      "shared indicator raises both",
			symptoms:  []models.Symptom{sym("乏力", 4)},
			wantNames: []string{"气虚证", "脾气虚证"},
			wantProbs: []float64{0.42, 0.39},
		},
		{
			name:      "indicator of one syndrome",
			symptoms:  []models.Symptom{sym("腹胀", 4)},
			wantNames: []string{"脾气虚证"},
			wantProbs: []float64{0.39},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := &Input{Symptoms: tt.symptoms, Patient: &models.PatientContext{Constitution: "气虚质"}}
			a := newTestAssessor(t, nil).Assess(input, qiDeficientProne)

			var constitutional []Risk
			for _, r := range a.LongTermRisks {
				if len(r.Sources) == 1 && r.Sources[0] == SourceConstitution {
					constitutional = append(constitutional, r)
				}
			}
			require.Len(t, constitutional, len(tt.wantNames))
			for i, r := range constitutional {
				assert.Equal(t, tt.wantNames[i], r.Name)
				assert.InDelta(t, tt.wantProbs[i], r.Probability, 1e-9)
				assert.Equal(t, "气虚质", r.ContributingFactors[0])
				assert.Equal(t, SeverityLow, r.Severity)
			}
		})
	}
}

func TestAssess_ConstitutionRiskIsCapped(t *testing.T) {
	cfg := LoadConfig()
	cfg.ConstitutionWeightFactor = 5
	a := NewAssessor(cfg, nil, nil, logger.NewNoOpLogger())

	out := a.Assess(&Input{Symptoms: []models.Symptom{sym("气短", 3)}}, qiDeficientProne)
	r := findRisk(t, out.LongTermRisks, "气虚证")
	assert.Equal(t, cfg.ConstitutionCap, r.Probability)
	assert.Equal(t, []string{"气虚质", "气短"}, r.ContributingFactors)
}

// ==========================
// Strategies and scoring
// ==========================

func TestAssess_PreventionStrategies(t *testing.T) {
	tests := []struct {
		name         string
		input        *Input
		wantNames    []string
		wantTargets  map[string][]string
		wantNoAction bool
	}{
		{
			name: "cardiovascular risks share one strategy",
			input: &Input{Symptoms: []models.Symptom{
				{Name: "胸痛", Severity: 9, DurationDays: 2}, sym("气短", 5), sym("心悸", 3),
			}},
			wantNames:   []string{"心血管疾病预防"},
			wantTargets: map[string][]string{"心血管疾病预防": {"心血管疾病", "心脏疾病"}},
		},
		{
			name: "history and constitution ordered by effectiveness",
			input: &Input{
				Patient:     &models.PatientContext{Constitution: "阴虚质", MedicalHistory: []string{"糖尿病"}},
				RiskFactors: []string{"高血压"},
			},
			wantNames: []string{"心血管疾病预防", "糖尿病预防", "阴虚质调理"},
			wantTargets: map[string][]string{
				"心血管疾病预防": {"心脑血管疾病"},
				"阴虚质调理":   {"阴虚质相关疾病"},
			},
		},
		{
			name:        "unlisted constitution gets the general strategy",
			input:       &Input{Patient: &models.PatientContext{Constitution: "痰湿质"}},
			wantNames:   []string{"体质调理"},
			wantTargets: map[string][]string{"体质调理": {"痰湿质相关疾病"}},
		},
		{
			name:  "balanced constitution needs none",
			input: &Input{Patient: &models.PatientContext{Constitution: "平和质"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAssessor(t, nil).Assess(tt.input, nil)
			var names []string
			for _, s := range a.PreventionStrategies {
				names = append(names, s.Name)
				assert.NotEmpty(t, s.ActionItems)
				if want, ok := tt.wantTargets[s.Name]; ok {
					assert.Equal(t, want, s.Targets, s.Name)
				}
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestAssess_ScoresAndConfidence(t *testing.T) {
	input := &Input{Symptoms: []models.Symptom{
		{Name: "胸痛", Severity: 9, DurationDays: 2}, sym("气短", 5), sym("心悸", 0),
	}}
	a := newTestAssessor(t, nil).Assess(input, nil)

	assert.Equal(t, []string{"心血管疾病", "心脏疾病"}, riskNames(a.ImmediateRisks))
	// 0.7 * mean(0.95, 0.7)
	assert.InDelta(t, 0.58, a.OverallScore, 1e-9)
	// 0.7 * 0.8 + 0.3 * 3/10
	assert.InDelta(t, 0.65, a.Confidence, 1e-9)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), a.AssessedAt)

	empty := newTestAssessor(t, nil).Assess(&Input{}, nil)
	assert.Equal(t, 0.5, empty.Confidence)
	assert.Empty(t, empty.PreventionStrategies)
}

func TestAssess_KeepsTopRisks(t *testing.T) {
	cfg := LoadConfig()
	cfg.MaxRisks = 2
	a := NewAssessor(cfg, nil, nil, logger.NewNoOpLogger())

	var family []string
	for i := 0; i < 4; i++ {
		family = append(family, fmt.Sprintf("遗传病%d", i))
	}
	out := a.Assess(&Input{Patient: &models.PatientContext{
		MedicalHistory: []string{"高血压"},
		FamilyHistory:  family,
	}}, nil)
	assert.Equal(t, []string{"心脑血管疾病", "遗传病0"}, riskNames(out.LongTermRisks))
}

// ==========================
// Execute
// ==========================

func TestExecute_ConstitutionLookup(t *testing.T) {
	tests := []struct {
		name            string
		patient         *models.PatientContext
		source          *staticSource
		wantAsked       []string
		wantUnavailable bool
		wantSyndrome    bool
	}{
		{
			name:         "prone syndromes feed the assessment",
			patient:      &models.PatientContext{Constitution: " 气虚质 "},
			source:       &staticSource{prone: qiDeficientProne},
			wantAsked:    []string{"气虚质"},
			wantSyndrome: true,
		},
		{
			name:            "failing lookup degrades",
			patient:         &models.PatientContext{Constitution: "气虚质"},
			source:          &staticSource{prone: qiDeficientProne, err: errors.NewKnowledgeBaseUnavailableError(fmt.Errorf("down"))},
			wantAsked:       []string{"气虚质"},
			wantUnavailable: true,
		},
		{
			name:   "no constitution, no lookup",
			source: &staticSource{prone: qiDeficientProne},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAssessor(t, tt.source)
			out, err := a.Execute(context.Background(), &Input{
				Symptoms: []models.Symptom{sym("乏力", 4)},
				Patient:  tt.patient,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAsked, tt.source.asked)
			assert.Equal(t, tt.wantUnavailable, out.ConstitutionUnavailable)

			var found bool
			for _, r := range out.Assessment.LongTermRisks {
				found = found || r.Name == "气虚证"
			}
			assert.Equal(t, tt.wantSyndrome, found)
		})
	}
}

func TestExecute_InvalidCalls(t *testing.T) {
	a := newTestAssessor(t, nil)

	_, err := a.Execute(context.Background(), nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Execute(ctx, &Input{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_WithKnowledgeGraph(t *testing.T) {
	g, err := knowledgegraph.FromDocument(kbase.Default())
	require.NoError(t, err)
	kg := knowledgegraph.NewHandler(nil, g, nil, nil, logger.NewTestLogger(t))

	out, err := newTestAssessor(t, kg).Execute(context.Background(), &Input{
		Symptoms: []models.Symptom{sym("失眠", 5), sym("头痛", 4), sym("头晕", 4)},
		Patient:  &models.PatientContext{Constitution: "阴虚质"},
	})
	require.NoError(t, err)
	assert.False(t, out.ConstitutionUnavailable)

	yin := findRisk(t, out.Assessment.LongTermRisks, "阴虚证")
	assert.InDelta(t, 0.42, yin.Probability, 1e-9)
	assert.Equal(t, []string{"阴虚质", "失眠"}, yin.ContributingFactors)

	// weight 0.4: 0.3 * 1.2
	rising := findRisk(t, out.Assessment.LongTermRisks, "肝阳上亢证")
	assert.InDelta(t, 0.36, rising.Probability, 1e-9)

	assert.Equal(t, "高血压", out.Assessment.ImmediateRisks[0].Name)
	var names []string
	for _, s := range out.Assessment.PreventionStrategies {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"阴虚质调理", "高血压预防"}, names, "equal effectiveness falls back to name order")
}
