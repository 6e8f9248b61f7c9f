package diagnosticreasoning

import (
	"sort"

	"inquiry-core/internal/models"
)

// Rule is a symptom pattern that demands action regardless of the
// differential.
type Rule struct {
	Name           string
	Priority       int
	Action         RecommendationType
	Condition      func(symptoms map[string]models.Symptom) bool
	Recommendation Recommendation
}

func severityAtLeast(symptoms map[string]models.Symptom, name string, min float64) bool {
	s, ok := symptoms[name]
	return ok && s.Severity >= min
}

func allPresent(symptoms map[string]models.Symptom, names ...string) bool {
	for _, n := range names {
		if _, ok := symptoms[n]; !ok {
			return false
		}
	}
	return true
}

func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "emergency_chest_pain",
			Priority: 10,
			Action:   RecommendImmediateAttention,
			Condition: func(s map[string]models.Symptom) bool {
				return severityAtLeast(s, "胸痛", 7)
			},
			Recommendation: Recommendation{
				Description: "立即排除急性心血管事件",
				Urgency:     10,
				Rationale:   "剧烈胸痛可能提示急性冠脉综合征",
				Actions:     []string{"立即前往急诊科", "拨打120急救电话", "保持静息"},
				Timeframe:   "立即",
			},
		},
		{
			Name:     "respiratory_distress",
			Priority: 10,
			Action:   RecommendImmediateAttention,
			Condition: func(s map[string]models.Symptom) bool {
				return severityAtLeast(s, "呼吸困难", 6)
			},
			Recommendation: Recommendation{
				Description: "呼吸困难需紧急处理",
				Urgency:     10,
				Rationale:   "明显呼吸困难可能危及生命",
				Actions:     []string{"立即前往急诊科", "保持坐位呼吸"},
				Timeframe:   "立即",
			},
		},
		{
			Name:     "chest_pain_with_dyspnea",
			Priority: 10,
			Action:   RecommendImmediateAttention,
			Condition: func(s map[string]models.Symptom) bool {
				return allPresent(s, "胸痛", "呼吸困难")
			},
			Recommendation: Recommendation{
				Description: "胸痛伴呼吸困难需立即就医",
				Urgency:     10,
				Rationale:   "胸痛合并呼吸困难提示心肺急症",
				Actions:     []string{"拨打120急救电话"},
				Timeframe:   "立即",
			},
		},
		{
			Name:     "severe_headache_with_fever",
			Priority: 9,
			Action:   RecommendUrgentEvaluation,
			Condition: func(s map[string]models.Symptom) bool {
				return severityAtLeast(s, "头痛", 8) && allPresent(s, "发热")
			},
			Recommendation: Recommendation{
				Description: "剧烈头痛伴发热需紧急评估",
				Urgency:     9,
				Rationale:   "需排除中枢神经系统感染",
				Actions:     []string{"当日就诊神经内科或急诊", "观察有无颈项强直"},
				Timeframe:   "当日",
			},
		},
		{
			Name:     "headache_fever_stiff_neck",
			Priority: 9,
			Action:   RecommendUrgentEvaluation,
			Condition: func(s map[string]models.Symptom) bool {
				return allPresent(s, "头痛", "发热", "颈痛")
			},
			Recommendation: Recommendation{
				Description: "头痛、发热伴颈部不适需排除脑膜炎",
				Urgency:     9,
				Rationale:   "该症状组合为脑膜刺激征的常见表现",
				Actions:     []string{"当日就诊急诊"},
				Timeframe:   "当日",
			},
		},
		{
			Name:     "abdominal_pain_vomiting",
			Priority: 6,
			Action:   RecommendAppointment,
			Condition: func(s map[string]models.Symptom) bool {
				return allPresent(s, "腹痛", "呕吐")
			},
			Recommendation: Recommendation{
				Description: "腹痛伴呕吐建议尽快就诊",
				Urgency:     6,
				Rationale:   "需排除急腹症并评估脱水风险",
				Actions:     []string{"暂时禁食", "少量多次补液", "腹痛加剧立即就医"},
				Timeframe:   "24小时内",
			},
		},
	}
}

// evaluateRules returns every rule whose condition holds, highest priority
// first. A panicking condition counts as not matched.
func (e *Engine) evaluateRules(symptoms []models.Symptom) ([]RuleMatch, []Recommendation) {
	present := make(map[string]models.Symptom, len(symptoms))
	for _, s := range symptoms {
		present[s.Name] = s
	}

	var matched []Rule
	for _, r := range e.rules {
		if r.Condition != nil && safeCondition(r, present) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Priority > matched[j].Priority })

	matches := make([]RuleMatch, 0, len(matched))
	recs := make([]Recommendation, 0, len(matched))
	for _, r := range matched {
		matches = append(matches, RuleMatch{Name: r.Name, Action: r.Action, Priority: r.Priority})
		rec := r.Recommendation
		rec.Type = r.Action
		rec.Source = "rule:" + r.Name
		recs = append(recs, rec)
	}
	return matches, recs
}

func safeCondition(r Rule, present map[string]models.Symptom) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return r.Condition(present)
}
