package diagnosticreasoning

import (
	"context"
	"fmt"
	"testing"
	"time"

	"inquiry-core/internal/common/cache"
	"inquiry-core/internal/common/logger"
	knowledgegraph "inquiry-core/internal/knowledge/knowledge-graph"
	"inquiry-core/internal/models"
	"inquiry-core/pkg/kbase"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sym(name string, severity float64) models.Symptom {
	return models.Symptom{Name: name, Severity: severity}
}

func newTestHandler(t *testing.T, c cache.Cache, history History) *Handler {
	return NewHandler(LoadConfig(), kbase.Default().Diseases, nil, c, history, logger.NewTestLogger(t))
}

func probabilityOf(results []DiagnosisResult, id string) float64 {
	for _, r := range results {
		if r.DiseaseID == id {
			return r.Probability
		}
	}
	return 0
}

func findResult(t *testing.T, results []DiagnosisResult, id string) DiagnosisResult {
	t.Helper()
	for _, r := range results {
		if r.DiseaseID == id {
			return r
		}
	}
	t.Fatalf("%s not in differential", id)
	return DiagnosisResult{}
}

// ==========================
// Scoring
// ==========================

func TestExecute_Influenza(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	out, err := h.Execute(context.Background(), &Input{
		Symptoms: []models.Symptom{sym("发热", 8), sym("肌肉酸痛", 7), sym("头痛", 6), sym("乏力", 5)},
	})
	require.NoError(t, err)
	a := out.Assessment

	require.Len(t, a.Differentials, 2)
	flu := a.Differentials[0]
	assert.Equal(t, "dis_influenza", flu.DiseaseID)
	assert.Equal(t, "J11", flu.ICDCode)
	assert.Equal(t, 1.0, flu.Probability)
	assert.Equal(t, ConfidenceVeryHigh, flu.Confidence)
	assert.True(t, flu.RequiredMatched)
	assert.Equal(t, RiskCritical, flu.RiskLevel)
	assert.Equal(t, []string{"发热", "肌肉酸痛", "头痛", "乏力"}, flu.SupportingSymptoms)
	assert.Equal(t, []string{"咳嗽", "咽痛"}, flu.MissingSymptoms)
	assert.Contains(t, flu.Reasoning, "流行性感冒的可能性为100.0%")

	htn := a.Differentials[1]
	assert.Equal(t, "dis_hypertension", htn.DiseaseID)
	assert.InDelta(t, 0.192, htn.Probability, 1e-9)
	assert.Equal(t, ConfidenceVeryLow, htn.Confidence)

	require.NotNil(t, a.Primary)
	assert.Equal(t, "dis_influenza", a.Primary.DiseaseID)
	assert.False(t, a.Ambiguous)
	assert.Equal(t, RiskCritical, a.OverallRisk)
	assert.InDelta(t, 0.76, a.Confidence, 1e-9)
	assert.Empty(t, a.TriggeredRules)

	require.Len(t, a.Recommendations, 3)
	assert.Equal(t, "立即就医", a.Recommendations[0].Description)
	assert.Equal(t, 10, a.Recommendations[0].Urgency)
	assert.Equal(t, "condition:dis_influenza", a.Recommendations[1].Source)
	assert.Equal(t, "头痛症状监测", a.Recommendations[2].Description)

	assert.NotEmpty(t, a.ID)
	assert.Contains(t, a.Summary, "最可能的诊断是流行性感冒")
}

func TestExecute_AmbiguousIsNotEmpty(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	out, err := h.Execute(context.Background(), &Input{Symptoms: []models.Symptom{sym("鼻塞", 5), sym("流涕", 5)}})
	require.NoError(t, err)
	a := out.Assessment

	require.Len(t, a.Differentials, 1)
	cold := a.Differentials[0]
	assert.InDelta(t, 0.384, cold.Probability, 1e-9)
	assert.Equal(t, ConfidenceModerate, cold.Confidence, "low bumped by the matched required set")
	assert.Equal(t, RiskLow, cold.RiskLevel)
	assert.Nil(t, a.Primary)
	assert.True(t, a.Ambiguous)
	assert.InDelta(t, 0.154, a.Confidence, 1e-9)
	require.Len(t, a.Recommendations, 1)
	assert.Equal(t, "休息和对症治疗", a.Recommendations[0].Description)

	out, err = h.Execute(context.Background(), &Input{Symptoms: []models.Symptom{sym("咳嗽", 6), sym("腹胀", 6)}})
	require.NoError(t, err)
	a = out.Assessment
	assert.Empty(t, a.Differentials)
	assert.Nil(t, a.Primary)
	assert.False(t, a.Ambiguous)
	assert.Equal(t, RiskModerate, a.OverallRisk)
	assert.Equal(t, 0.0, a.Confidence)
	assert.Contains(t, a.Summary, "未匹配到符合条件的诊断")
	require.NotEmpty(t, a.Recommendations)
	assert.Equal(t, "监测症状并考虑就医", a.Recommendations[0].Description)
}

func TestExecute_NoSymptoms(t *testing.T) {
	h := newTestHandler(t, nil, nil)
	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Empty(t, out.Assessment.Differentials)
	assert.False(t, out.Assessment.Ambiguous)
	assert.Equal(t, RiskMinimal, out.Assessment.OverallRisk)
	assert.Empty(t, out.Assessment.Recommendations)
}

func TestDifferentials_ExclusionAndRequired(t *testing.T) {
	e := NewEngine(nil, kbase.Default().Diseases, logger.NewTestLogger(t))

	base := []models.Symptom{sym("头痛", 6), sym("颈痛", 4)}
	tension := findResult(t, e.Differentials(base, nil), "dis_tension_headache")
	assert.InDelta(t, 0.2488, tension.Probability, 1e-4)
	assert.Equal(t, ConfidenceModerate, tension.Confidence)

	withExclusion := append(append([]models.Symptom{}, base...), sym("呕吐", 3))
	assert.Zero(t, probabilityOf(e.Differentials(withExclusion, nil), "dis_tension_headache"))

	assert.Zero(t, probabilityOf(e.Differentials([]models.Symptom{sym("鼻塞", 5)}, nil), "dis_common_cold"))
}

func TestDifferentials_RequiredSymptomsNeverLowerProbability(t *testing.T) {
	e := NewEngine(nil, kbase.Default().Diseases, logger.NewTestLogger(t))

	for _, severity := range []float64{0, 2, 5, 9} {
		for _, d := range kbase.Default().Diseases {
			if len(d.RequiredSymptoms) == 0 {
				continue
			}
			t.Run(fmt.Sprintf("%s/severity-%v", d.ID, severity), func(t *testing.T) {
				required := map[string]bool{}
				for _, r := range d.RequiredSymptoms {
					required[r] = true
				}
				var symptoms []models.Symptom
				for _, ts := range d.TypicalSymptoms {
					if !required[ts.Name] {
						symptoms = append(symptoms, sym(ts.Name, severity))
					}
				}

				prev := probabilityOf(e.Differentials(symptoms, nil), d.ID)
				for _, r := range d.RequiredSymptoms {
					symptoms = append(symptoms, sym(r, severity))
					next := probabilityOf(e.Differentials(symptoms, nil), d.ID)
					assert.GreaterOrEqual(t, next, prev)
					prev = next
				}
			})
		}
	}
}

func TestDifferentials_ProbabilitiesAreIndependent(t *testing.T) {
	e := NewEngine(nil, kbase.Default().Diseases, logger.NewTestLogger(t))
	results := e.Differentials([]models.Symptom{sym("头痛", 7), sym("头晕", 6), sym("乏力", 5), sym("发热", 8), sym("肌肉酸痛", 6)}, nil)

	sum := 0.0
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Probability, 0.0)
		assert.LessOrEqual(t, r.Probability, 1.0)
		sum += r.Probability
	}
	assert.Greater(t, sum, 1.0, "scores are not normalised across candidates")
}

func TestDifferentials_SortedAndCapped(t *testing.T) {
	config := LoadConfig()
	config.MaxDifferentials = 1
	e := NewEngine(config, kbase.Default().Diseases, logger.NewTestLogger(t))

	results := e.Differentials([]models.Symptom{sym("发热", 8), sym("肌肉酸痛", 7), sym("头痛", 6)}, nil)
	require.Len(t, results, 1)
	assert.Equal(t, "dis_influenza", results[0].DiseaseID)
}

func TestDifferentials_FailingCandidateExcludedAlone(t *testing.T) {
	diseases := append(kbase.Default().Diseases, kbase.Disease{
		ID:              "dis_broken",
		Name:            "坏数据",
		TypicalSymptoms: []kbase.TypicalSymptom{{Name: "鼻塞"}},
		Prevalence:      0.9,
		ContextRules:    []kbase.ContextRule{{Kind: "zodiac", Factor: 2}},
	})
	e := NewEngine(nil, diseases, logger.NewTestLogger(t))

	results := e.Differentials([]models.Symptom{sym("鼻塞", 5), sym("流涕", 5)}, &models.PatientContext{Age: 30})
	assert.Zero(t, probabilityOf(results, "dis_broken"))
	assert.Positive(t, probabilityOf(results, "dis_common_cold"))
}

// ==========================
// Context, tiers, risk
// ==========================

func TestContextFactor(t *testing.T) {
	e := NewEngine(nil, kbase.Default().Diseases, logger.NewTestLogger(t))
	byID := map[string]kbase.Disease{}
	for _, d := range kbase.Default().Diseases {
		byID[d.ID] = d
	}

	tests := []struct {
		name    string
		disease string
		patient *models.PatientContext
		want    float64
	}{
		{"no context is neutral", "dis_hypertension", nil, 1},
		{"age over", "dis_hypertension", &models.PatientContext{Age: 60}, 1.5},
		{"age boundary is exclusive", "dis_hypertension", &models.PatientContext{Age: 50}, 1},
		{"history and family history", "dis_hypertension", &models.PatientContext{
			Age: 60, MedicalHistory: []string{"高血压"}, FamilyHistory: []string{"高血压"},
		}, 1.5 * 1.4 * 1.2},
		{"gender", "dis_migraine", &models.PatientContext{Gender: "female"}, 1.3},
		{"child", "dis_common_cold", &models.PatientContext{Age: 10}, 1.2},
		{"unknown age is ignored", "dis_common_cold", &models.PatientContext{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.contextFactor(byID[tt.disease], tt.patient)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestConfidenceTier(t *testing.T) {
	e := NewEngine(nil, nil, logger.NewTestLogger(t))

	tests := []struct {
		probability float64
		required    bool
		want        ConfidenceTier
	}{
		{0.05, false, ConfidenceVeryLow},
		{0.2, false, ConfidenceLow},
		{0.4, false, ConfidenceModerate},
		{0.6, false, ConfidenceHigh},
		{0.8, false, ConfidenceVeryHigh},
		{0.1, true, ConfidenceLow},
		{0.65, true, ConfidenceVeryHigh},
		{0.95, true, ConfidenceVeryHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.confidenceTier(tt.probability, tt.required), "p=%v required=%v", tt.probability, tt.required)
	}
}

func TestPrimary_RequiresProbabilityAndTier(t *testing.T) {
	e := NewEngine(nil, nil, logger.NewTestLogger(t))

	assert.Nil(t, e.Primary(nil))
	assert.Nil(t, e.Primary([]DiagnosisResult{{DiseaseID: "a", Probability: 0.75, Confidence: ConfidenceModerate}}))
	assert.Nil(t, e.Primary([]DiagnosisResult{{DiseaseID: "a", Probability: 0.65, Confidence: ConfidenceVeryHigh}}))

	p := e.Primary([]DiagnosisResult{
		{DiseaseID: "a", Probability: 0.9, Confidence: ConfidenceModerate},
		{DiseaseID: "b", Probability: 0.7, Confidence: ConfidenceHigh},
	})
	require.NotNil(t, p)
	assert.Equal(t, "b", p.DiseaseID)
}

func TestDiseaseRisk(t *testing.T) {
	e := NewEngine(nil, nil, logger.NewTestLogger(t))
	mild := kbase.Disease{SeverityScore: 2}

	assert.Equal(t, RiskLow, e.diseaseRisk(mild, []models.Symptom{sym("咳嗽", 3)}, nil))
	assert.Equal(t, RiskModerate, e.diseaseRisk(mild, []models.Symptom{sym("咳嗽", 6)}, nil))
	assert.Equal(t, RiskCritical, e.diseaseRisk(mild, []models.Symptom{sym("咳嗽", 8)}, nil))
	assert.Equal(t, RiskModerate, e.diseaseRisk(mild, nil, &models.PatientContext{Age: 70}))
	assert.Equal(t, RiskLow, e.diseaseRisk(kbase.Disease{}, nil, &models.PatientContext{Age: 3}))
	assert.Equal(t, RiskHigh, e.diseaseRisk(kbase.Disease{SeverityScore: 6}, nil, &models.PatientContext{Age: 70}))
}

// ==========================
// Rules and recommendations
// ==========================

func TestRules(t *testing.T) {
	tests := []struct {
		name      string
		symptoms  []models.Symptom
		wantRules []string
		wantRisk  RiskLevel
	}{
		{"chest pain", []models.Symptom{sym("胸痛", 9)}, []string{"emergency_chest_pain"}, RiskCritical},
		{"mild chest pain", []models.Symptom{sym("胸痛", 3)}, nil, RiskMinimal},
		{"respiratory distress", []models.Symptom{sym("呼吸困难", 6)}, []string{"respiratory_distress"}, RiskCritical},
		{"headache with fever", []models.Symptom{sym("头痛", 8), sym("发热", 5)}, []string{"severe_headache_with_fever"}, RiskCritical},
		{"meningism pattern", []models.Symptom{sym("头痛", 5), sym("发热", 5), sym("颈痛", 5)}, []string{"headache_fever_stiff_neck"}, RiskHigh},
		{"abdominal pain with vomiting", []models.Symptom{sym("腹痛", 5), sym("呕吐", 5)}, []string{"abdominal_pain_vomiting"}, RiskLow},
	}

	h := newTestHandler(t, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := h.Assess(tt.symptoms, nil)
			var names []string
			for _, m := range a.TriggeredRules {
				names = append(names, m.Name)
			}
			assert.Equal(t, tt.wantRules, names)
			assert.Equal(t, tt.wantRisk, a.OverallRisk)
		})
	}
}

func TestRules_PanickingConditionIsSkipped(t *testing.T) {
	e := NewEngine(nil, nil, logger.NewTestLogger(t)).WithRules([]Rule{
		{Name: "broken", Priority: 10, Condition: func(map[string]models.Symptom) bool { panic("boom") }},
		{Name: "ok", Priority: 1, Action: RecommendMonitor, Condition: func(map[string]models.Symptom) bool { return true }},
	})
	matches, recs := e.evaluateRules([]models.Symptom{sym("咳嗽", 3)})
	require.Len(t, matches, 1)
	assert.Equal(t, "ok", matches[0].Name)
	assert.Equal(t, "rule:ok", recs[0].Source)
}

func TestRecommendations_MergedByUrgency(t *testing.T) {
	h := newTestHandler(t, nil, nil)
	a := h.Assess([]models.Symptom{sym("胸痛", 9), sym("呼吸困难", 8)}, nil)

	require.NotEmpty(t, a.Recommendations)
	for i := 1; i < len(a.Recommendations); i++ {
		assert.GreaterOrEqual(t, a.Recommendations[i-1].Urgency, a.Recommendations[i].Urgency)
	}
	sources := map[string]bool{}
	for _, r := range a.Recommendations {
		sources[r.Source] = true
	}
	assert.True(t, sources["risk:critical"])
	assert.True(t, sources["rule:emergency_chest_pain"])
	assert.True(t, sources["rule:respiratory_distress"])
	assert.True(t, sources["rule:chest_pain_with_dyspnea"])
	assert.Equal(t, 10, a.TriggeredRules[0].Priority)
}

// ==========================
// Normalisation
// ==========================

func TestPreprocess(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	got := h.preprocess(context.Background(), []models.Symptom{
		sym(" 头疼 ", 4), sym("发烧", 15), sym("头痛", 7), sym("", 3), sym("奇怪的感觉", -2),
	})
	require.Len(t, got, 3)
	assert.Equal(t, "头痛", got[0].Name)
	assert.Equal(t, 7.0, got[0].Severity, "later mention wins")
	assert.Equal(t, "发热", got[1].Name)
	assert.Equal(t, 10.0, got[1].Severity)
	assert.Equal(t, "奇怪的感觉", got[2].Name)
	assert.Equal(t, 0.0, got[2].Severity)
}

func TestGraphNormalizer(t *testing.T) {
	g, err := knowledgegraph.FromDocument(kbase.Default())
	require.NoError(t, err)
	resolver := knowledgegraph.NewResolver(g, nil, nil, logger.NewTestLogger(t))
	n := NewGraphNormalizer(resolver)
	ctx := context.Background()

	assert.Equal(t, "头痛", n.Normalize(ctx, "脑袋疼"))
	assert.Equal(t, "乏力", n.Normalize(ctx, "疲倦"))
	// Not a graph entity; the lexicon still knows it.
	assert.Equal(t, "呼吸困难", n.Normalize(ctx, "喘不过气"))
	assert.Equal(t, "未知症状", n.Normalize(ctx, "未知症状"))
}

// ==========================
// Cache and history
// ==========================

func TestExecute_Cache(t *testing.T) {
	h := newTestHandler(t, cache.NewMemoryCache("diagnosis", time.Minute), nil)
	input := &Input{PatientID: "p-1", Symptoms: []models.Symptom{sym("鼻塞", 5), sym("流涕", 5)}}

	first, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.NotEqual(t, first.Assessment.ID, second.Assessment.ID)
	assert.Equal(t, "p-1", second.Assessment.PatientID)
	assert.Equal(t, first.Assessment.Differentials, second.Assessment.Differentials)
}

func TestExecute_CacheUnavailable(t *testing.T) {
	client, mock := redismock.NewClientMock()
	h := newTestHandler(t, cache.NewRedisCache(client, "diagnosis", "dx:", time.Minute), nil)
	mock.Regexp().ExpectGet(`dx:.*`).SetErr(fmt.Errorf("i/o timeout"))

	out, err := h.Execute(context.Background(), &Input{Symptoms: []models.Symptom{sym("鼻塞", 5), sym("流涕", 5)}})
	require.NoError(t, err)
	assert.True(t, out.CacheUnavailable)
	assert.False(t, out.Cached)
	assert.Len(t, out.Assessment.Differentials, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_RecordsHistory(t *testing.T) {
	history := NewMemoryHistory(2)
	h := newTestHandler(t, nil, history)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		out, err := h.Execute(ctx, &Input{PatientID: "p-9", Symptoms: []models.Symptom{sym("头痛", float64(3+i))}})
		require.NoError(t, err)
		ids = append(ids, out.Assessment.ID)
	}

	list, err := h.History(ctx, "p-9", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[1], list[1].ID)

	_, err = h.History(ctx, " ", 5)
	assert.Error(t, err)
}

func TestExecute_InvalidInput(t *testing.T) {
	h := newTestHandler(t, nil, nil)
	_, err := h.Execute(context.Background(), nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Execute(ctx, &Input{})
	assert.ErrorIs(t, err, context.Canceled)
}
