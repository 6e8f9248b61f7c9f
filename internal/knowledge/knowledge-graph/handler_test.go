package knowledgegraph

import (
	"context"
	"fmt"
	"testing"
	"time"

	"inquiry-core/internal/common/cache"
	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	"inquiry-core/internal/models"
	"inquiry-core/pkg/kbase"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := FromDocument(kbase.Default())
	require.NoError(t, err)
	return g
}

func newTestHandler(t *testing.T, c cache.Cache) *Handler {
	return NewHandler(LoadConfig(), defaultGraph(t), nil, c, logger.NewTestLogger(t))
}

func symptoms(pairs ...interface{}) []models.Symptom {
	var out []models.Symptom
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.Symptom{Name: pairs[i].(string), Severity: float64(pairs[i+1].(int))})
	}
	return out
}

func remedyNames(remedies []Remedy) []string {
	names := make([]string, len(remedies))
	for i, r := range remedies {
		names[i] = r.Name
	}
	return names
}

func findRemedy(t *testing.T, remedies []Remedy, name string) Remedy {
	t.Helper()
	for _, r := range remedies {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("remedy %s not in %v", name, remedyNames(remedies))
	return Remedy{}
}

// ==========================
// Symptom -> syndrome -> remedy
// ==========================

func TestMapSymptomsToCandidates_HeartBloodDeficiency(t *testing.T) {
	h := newTestHandler(t, nil)
	ctx := context.Background()

	candidates := h.MapSymptomsToCandidates(ctx, symptoms("乏力", 6, "失眠", 5), nil)
	require.Len(t, candidates, 2)

	top := candidates[0]
	assert.Equal(t, "syn_heart_blood_deficiency", top.SyndromeID)
	assert.Equal(t, "心血虚证", top.Name)
	assert.Equal(t, 1.0, top.Score)
	assert.InDelta(t, 1.3, top.RawScore, 1e-9)
	assert.Equal(t, []string{"乏力", "失眠"}, top.SupportingSymptoms)
	assert.Equal(t, "养心安神", top.TreatmentPrinciple)

	assert.Equal(t, "气虚证", candidates[1].Name)
	assert.InDelta(t, 0.6154, candidates[1].Score, 1e-4)

	remedies := h.RecommendRemediesFor(candidates, nil)
	assert.Equal(t, []string{"归脾汤", "甘麦大枣汤"}, remedyNames(remedies))
	assert.Equal(t, 1.0, remedies[0].Score)
	assert.InDelta(t, 0.6319, remedies[1].Score, 1e-4)
	assert.Equal(t, []string{"心血虚证", "气虚证"}, remedies[0].Syndromes)
	assert.Len(t, remedies[0].Herbs, 7)
	for _, r := range remedies {
		assert.False(t, r.Contraindicated)
		assert.Empty(t, r.Contraindications)
	}

	treats := h.Graph().Outgoing("syn_heart_blood_deficiency", kbase.KindSyndromeTreats)
	linked := map[string]bool{}
	for _, rel := range treats {
		linked[rel.Target] = true
	}
	assert.True(t, linked[remedies[0].FormulaID])
}

func TestMapSymptomsToCandidates_Edges(t *testing.T) {
	h := newTestHandler(t, nil)
	ctx := context.Background()

	assert.Empty(t, h.MapSymptomsToCandidates(ctx, nil, nil))
	assert.Empty(t, h.MapSymptomsToCandidates(ctx, symptoms("不存在的症状", 3), nil))
	assert.Empty(t, h.RecommendRemediesFor(nil, nil))

	// Aliases resolve to the canonical entity and are counted once.
	candidates := h.MapSymptomsToCandidates(ctx, symptoms("疲劳", 5, "乏力", 6, "睡不着", 4), nil)
	require.NotEmpty(t, candidates)
	assert.Equal(t, []string{"乏力", "失眠"}, candidates[0].SupportingSymptoms)
}

func TestMapSymptomsToCandidates_ConstitutionBonus(t *testing.T) {
	h := newTestHandler(t, nil)
	patient := &models.PatientContext{Constitution: "气虚质"}

	candidates := h.MapSymptomsToCandidates(context.Background(), symptoms("乏力", 6, "失眠", 5), patient)
	require.Len(t, candidates, 3)
	assert.Equal(t, "心血虚证", candidates[0].Name)
	assert.Equal(t, "气虚证", candidates[1].Name)
	assert.InDelta(t, 0.7385, candidates[1].Score, 1e-4)
	assert.Equal(t, "脾气虚证", candidates[2].Name)
	assert.InDelta(t, 0.6308, candidates[2].Score, 1e-4)
}

func TestChain_IsIdempotent(t *testing.T) {
	h := newTestHandler(t, nil)
	ctx := context.Background()
	input := symptoms("头晕", 6, "烦躁", 5, "头痛", 7, "失眠", 4)
	patient := &models.PatientContext{Age: 58, ActiveConditions: []string{"高血压"}}

	first := h.RecommendRemediesFor(h.MapSymptomsToCandidates(ctx, input, patient), patient)
	for i := 0; i < 5; i++ {
		again := h.RecommendRemediesFor(h.MapSymptomsToCandidates(ctx, input, patient), patient)
		assert.Equal(t, first, again)
	}
}

// ==========================
// Contraindications
// ==========================

func TestHandler_RankingWhileGraphGrows(t *testing.T) {
	h := newTestHandler(t, nil)
	ctx := context.Background()
	input := symptoms("乏力", 6, "失眠", 5)
	want := h.RecommendRemediesFor(h.MapSymptomsToCandidates(ctx, input, nil), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = h.graph.AddEntity(Entity{ID: fmt.Sprintf("herb_extra_%d", i), Name: fmt.Sprintf("附加药%d", i), Type: kbase.TypeHerb})
		}
	}()

	for i := 0; i < 50; i++ {
		remedies := h.RecommendRemediesFor(h.MapSymptomsToCandidates(ctx, input, nil), nil)
		assert.Equal(t, want, remedies)
		h.AnalyzeMeridians(remedies)
	}
	<-done
	assert.Equal(t, 200, len(h.graph.EntitiesByType(kbase.TypeHerb))-len(defaultGraph(t).EntitiesByType(kbase.TypeHerb)))
}

func TestRecommendRemediesFor_Contraindications(t *testing.T) {
	tests := []struct {
		name        string
		symptoms    []models.Symptom
		patient     *models.PatientContext
		remedy      string
		wantReasons []string
	}{
		{
			name:     "hypertension flags liquorice and ginseng",
			symptoms: symptoms("乏力", 6, "失眠", 5),
			patient:  &models.PatientContext{ActiveConditions: []string{"高血压"}},
			remedy:   "归脾汤",
			wantReasons: []string{
				"人参：人参温补升阳，肝阳上亢或高血压患者慎用",
				"甘草：甘草久服可致水钠潴留、血压升高，高血压患者慎用",
			},
		},
		{
			name:        "allergy against an herb alias",
			symptoms:    symptoms("乏力", 6, "失眠", 5),
			patient:     &models.PatientContext{Allergies: []string{"炙甘草"}},
			remedy:      "甘麦大枣汤",
			wantReasons: []string{"甘草：患者对炙甘草过敏"},
		},
		{
			name:     "pregnancy cautions on formula and herbs",
			symptoms: symptoms("面色苍白", 5, "头晕", 4),
			patient:  &models.PatientContext{Gender: "female", Age: 30, Pregnant: true},
			remedy:   "四物汤",
			wantReasons: []string{
				"四物汤：孕妇慎用",
				"当归：孕妇慎用",
				"川芎：孕妇慎用",
			},
		},
		{
			name:     "minimum age and constitution",
			symptoms: symptoms("手脚冰凉", 5, "腰膝酸软", 5),
			patient:  &models.PatientContext{Age: 8, Constitution: "阴虚质"},
			remedy:   "金匮肾气丸",
			wantReasons: []string{
				"附子：附子大热，阴虚内热体质忌用",
				"附子：不适用于12岁以下患者",
			},
		},
		{
			name:        "condition matched through history",
			symptoms:    symptoms("乏力", 6, "失眠", 5),
			patient:     &models.PatientContext{MedicalHistory: []string{"腹泻"}},
			remedy:      "归脾汤",
			wantReasons: []string{"当归：当归润肠通便，大便溏泻者慎用"},
		},
	}

	h := newTestHandler(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := h.MapSymptomsToCandidates(context.Background(), tt.symptoms, tt.patient)
			remedies := h.RecommendRemediesFor(candidates, tt.patient)

			r := findRemedy(t, remedies, tt.remedy)
			assert.True(t, r.Contraindicated)
			assert.Equal(t, tt.wantReasons, r.Contraindications)
		})
	}
}

func TestRecommendRemediesFor_NeverFlagsWithoutReason(t *testing.T) {
	h := newTestHandler(t, nil)
	patients := []*models.PatientContext{
		nil,
		{Pregnant: true, Age: 28, Gender: "female"},
		{Age: 3},
		{ActiveConditions: []string{"高血压"}, Constitution: "阴虚质", Allergies: []string{"人参"}},
	}
	inputs := [][]models.Symptom{
		symptoms("乏力", 6, "失眠", 5),
		symptoms("手脚冰凉", 5, "畏寒", 6),
		symptoms("面色苍白", 5, "头晕", 4),
		symptoms("发热", 7, "咽痛", 5),
	}

	for _, p := range patients {
		for _, in := range inputs {
			for _, r := range h.RecommendRemediesFor(h.MapSymptomsToCandidates(context.Background(), in, p), p) {
				assert.Equal(t, r.Contraindicated, len(r.Contraindications) > 0, r.Name)
			}
		}
	}
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute(t *testing.T) {
	h := newTestHandler(t, nil)

	out, err := h.Execute(context.Background(), &Input{
		Symptoms: symptoms("失眠", 5, "乏力", 6, "莫名其妙", 3),
	})
	require.NoError(t, err)

	assert.Equal(t, "心血虚证", out.Candidates[0].Name)
	assert.Equal(t, []string{"归脾汤", "甘麦大枣汤"}, remedyNames(out.Remedies))
	assert.Equal(t, []string{"养心安神", "补气健脾"}, out.TreatmentPrinciples)
	assert.Equal(t, []string{"莫名其妙"}, out.Unresolved)
	assert.Empty(t, out.Constitutions)
	require.NotEmpty(t, out.Meridians)
	assert.Equal(t, "足太阴脾经", out.Meridians[0].Name)
	assert.Equal(t, "脾", out.Meridians[0].Organ)
	assert.Equal(t, 1.0, out.Meridians[0].Score)
	assert.InDelta(t, 0.811, out.Confidence, 1e-3)
	assert.False(t, out.CacheUnavailable)
}

func TestHandler_Execute_DeclaredConstitution(t *testing.T) {
	h := newTestHandler(t, nil)
	out, err := h.Execute(context.Background(), &Input{
		Symptoms: symptoms("口干", 4, "盗汗", 5, "潮热", 5),
		Patient:  &models.PatientContext{Constitution: "气虚质"},
	})
	require.NoError(t, err)

	require.Len(t, out.Constitutions, 2)
	assert.Equal(t, "阴虚质", out.Constitutions[0].Name)
	assert.Equal(t, 0.6, out.Constitutions[0].Score)
	assert.Equal(t, []string{"口干", "盗汗", "潮热"}, out.Constitutions[0].Indicators)
	assert.Equal(t, "气虚质", out.Constitutions[1].Name)
	assert.True(t, out.Constitutions[1].Declared)
	assert.Equal(t, 0.0, out.Constitutions[1].Score)
}

func TestHandler_ProneSyndromes(t *testing.T) {
	h := newTestHandler(t, nil)
	tests := []struct {
		name           string
		constitution   string
		wantSyndromes  map[string]float64
		wantIndicators map[string][]string
	}{
		{
			name:          "qi deficient",
			constitution:  "气虚质",
			wantSyndromes: map[string]float64{"气虚证": 0.8, "脾气虚证": 0.6},
			wantIndicators: map[string][]string{
				"气虚证":  {"乏力", "气短", "汗出"},
				"脾气虚证": {"乏力", "食欲不振", "腹胀", "腹泻"},
			},
		},
		{
			name:          "yin deficient",
			constitution:  "阴虚质",
			wantSyndromes: map[string]float64{"阴虚证": 0.8, "肝阳上亢证": 0.4},
			wantIndicators: map[string][]string{
				"肝阳上亢证": {"头晕", "烦躁", "头痛", "耳鸣"},
			},
		},
		{name: "unknown constitution", constitution: "xyz"},
		{name: "blank", constitution: "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prone, err := h.ProneSyndromes(context.Background(), tt.constitution)
			require.NoError(t, err)
			if tt.wantSyndromes == nil {
				assert.Empty(t, prone)
				return
			}
			got := make(map[string]float64, len(prone))
			for _, p := range prone {
				got[p.Name] = p.Weight
				assert.Equal(t, tt.constitution, p.Constitution)
				if want, ok := tt.wantIndicators[p.Name]; ok {
					assert.ElementsMatch(t, want, p.Indicators, p.Name)
				}
			}
			assert.Equal(t, tt.wantSyndromes, got)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.ProneSyndromes(ctx, "气虚质")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	h := newTestHandler(t, nil)

	_, err := h.Execute(context.Background(), nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Execute(ctx, &Input{Symptoms: symptoms("乏力", 5)})
	assert.ErrorIs(t, err, context.Canceled)

	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Empty(t, out.Candidates)
	assert.Equal(t, 0.0, out.Confidence)
}

func TestHandler_Execute_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	h := newTestHandler(t, cache.NewRedisCache(client, "knowledge-graph", "kg:", time.Minute))
	ctx := context.Background()

	first, err := h.Execute(ctx, &Input{Symptoms: symptoms("乏力", 6, "失眠", 5)})
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1)

	// Order of the input symptoms does not change the key.
	second, err := h.Execute(ctx, &Input{Symptoms: symptoms("失眠", 5, "乏力", 6)})
	require.NoError(t, err)
	assert.Equal(t, first.Candidates, second.Candidates)
	assert.Equal(t, remedyNames(first.Remedies), remedyNames(second.Remedies))
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Len(t, mr.Keys(), 1)
}

func TestHandler_Execute_CacheUnavailable(t *testing.T) {
	client, mock := redismock.NewClientMock()
	h := newTestHandler(t, cache.NewRedisCache(client, "knowledge-graph", "kg:", time.Minute))

	mock.Regexp().ExpectGet(`kg:.*`).SetErr(fmt.Errorf("dial tcp: connection refused"))

	out, err := h.Execute(context.Background(), &Input{Symptoms: symptoms("乏力", 6, "失眠", 5)})
	require.NoError(t, err)
	assert.True(t, out.CacheUnavailable)
	assert.Equal(t, "心血虚证", out.Candidates[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
