package diagnosticreasoning

import (
	"fmt"
	"sort"
	"strings"

	"inquiry-core/internal/models"
	"inquiry-core/pkg/kbase"
)

var riskRecommendations = map[RiskLevel]Recommendation{
	RiskCritical: {
		Type:        RecommendImmediateAttention,
		Description: "立即就医",
		Urgency:     10,
		Rationale:   "症状提示可能存在紧急情况",
		Actions:     []string{"立即前往急诊科", "拨打120急救电话"},
		Timeframe:   "立即",
	},
	RiskHigh: {
		Type:        RecommendAppointment,
		Description: "尽快就医",
		Urgency:     8,
		Rationale:   "症状需要专业医生评估",
		Actions:     []string{"24小时内预约医生", "密切监测症状变化"},
		Timeframe:   "24小时内",
	},
	RiskModerate: {
		Type:        RecommendMonitor,
		Description: "监测症状并考虑就医",
		Urgency:     5,
		Rationale:   "症状需要观察，如有恶化应及时就医",
		Actions:     []string{"记录症状变化", "如症状加重立即就医"},
		Timeframe:   "48-72小时",
	},
}

// Recommendations merges the risk tier advice, triggered rules, the advice of
// the leading differential and symptom specific advice, most urgent first.
// Entries with the same description are kept once.
func (e *Engine) Recommendations(symptoms []models.Symptom, differentials []DiagnosisResult, overall RiskLevel, ruleRecs []Recommendation) []Recommendation {
	var recs []Recommendation
	if rec, ok := riskRecommendations[overall]; ok {
		rec.Source = "risk:" + string(overall)
		recs = append(recs, rec)
	}
	recs = append(recs, ruleRecs...)

	if len(differentials) > 0 {
		top := differentials[0]
		for _, d := range e.diseases {
			if d.ID != top.DiseaseID {
				continue
			}
			for _, a := range d.Advice {
				recs = append(recs, adviceRecommendation(d, a))
			}
		}
	}

	for _, s := range symptoms {
		if s.Name == "头痛" && s.Severity >= 6 {
			recs = append(recs, Recommendation{
				Type:        RecommendMonitor,
				Description: "头痛症状监测",
				Urgency:     4,
				Rationale:   "严重头痛需要密切观察",
				Actions:     []string{"记录头痛发作时间和诱因", "避免已知诱发因素"},
				Timeframe:   "持续监测",
				Source:      "symptom:头痛",
			})
		}
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Urgency > recs[j].Urgency })
	seen := make(map[string]struct{}, len(recs))
	out := make([]Recommendation, 0, len(recs))
	for _, r := range recs {
		if _, dup := seen[r.Description]; dup {
			continue
		}
		seen[r.Description] = struct{}{}
		out = append(out, r)
	}
	return out
}

func adviceRecommendation(d kbase.Disease, a kbase.Advice) Recommendation {
	typ := RecommendationType(a.Type)
	if typ == "" {
		typ = RecommendMonitor
	}
	return Recommendation{
		Type:        typ,
		Description: a.Text,
		Urgency:     a.Urgency,
		Rationale:   a.Rationale,
		Actions:     a.Actions,
		Timeframe:   a.Timeframe,
		Source:      "condition:" + d.ID,
	}
}

func diseaseReasoning(d kbase.Disease, symptoms []models.Symptom, probability float64, supporting []string) string {
	parts := []string{fmt.Sprintf("基于症状分析，%s的可能性为%.1f%%", d.Name, probability*100)}
	if len(supporting) > 0 {
		parts = append(parts, "支持该诊断的症状包括："+strings.Join(supporting, "、"))
	}
	if maxObservedSeverity(symptoms) >= 7 {
		parts = append(parts, "症状严重程度较高，需要密切关注")
	}
	if d.Category != "" {
		parts = append(parts, "该疾病属于"+d.Category)
	}
	return strings.Join(parts, "。") + "。"
}

func summarize(symptoms []models.Symptom, differentials []DiagnosisResult, primary *DiagnosisResult) string {
	if len(symptoms) == 0 {
		return "未提供可评估的症状。"
	}
	names := make([]string, len(symptoms))
	for i, s := range symptoms {
		names[i] = s.Name
	}
	parts := []string{"患者主要症状包括：" + strings.Join(names, "、")}

	switch {
	case primary != nil:
		parts = append(parts, fmt.Sprintf("最可能的诊断是%s，可能性为%.1f%%", primary.Name, primary.Probability*100))
	case len(differentials) > 0:
		parts = append(parts, "现有信息不足以确定主要诊断")
	default:
		parts = append(parts, "未匹配到符合条件的诊断")
	}

	if len(differentials) > 1 {
		var others []string
		for _, d := range differentials[1:min(3, len(differentials))] {
			others = append(others, d.Name)
		}
		parts = append(parts, "需要考虑的其他可能诊断包括："+strings.Join(others, "、"))
	}
	if maxObservedSeverity(symptoms) >= 7 {
		parts = append(parts, "症状较为严重，建议及时就医")
	}
	return strings.Join(parts, "。") + "。"
}
