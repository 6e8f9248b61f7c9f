package healthrisk

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CombinationRule raises Risk when enough of Symptoms are present together.
type CombinationRule struct {
	Risk        string   `yaml:"risk"`
	Symptoms    []string `yaml:"symptoms"`
	Probability float64  `yaml:"probability"`
}

// SymptomRule raises an immediate Risk from a single symptom. The minimums
// apply only when set.
type SymptomRule struct {
	Symptom         string  `yaml:"symptom"`
	Risk            string  `yaml:"risk"`
	Probability     float64 `yaml:"probability"`
	MinDurationDays float64 `yaml:"min_duration_days"`
	MinSeverity     float64 `yaml:"min_severity"`
}

// HistoryRule raises a long term Risk when a reported condition contains
// Condition.
type HistoryRule struct {
	Condition   string  `yaml:"condition"`
	Risk        string  `yaml:"risk"`
	Probability float64 `yaml:"probability"`
}

// StrategyRule applies Strategy to every risk whose name contains one of
// Match. The first matching rule wins.
type StrategyRule struct {
	Match    []string `yaml:"match"`
	Strategy Strategy `yaml:"strategy"`
}

type ConstitutionStrategy struct {
	Constitution string   `yaml:"constitution"`
	Strategy     Strategy `yaml:"strategy"`
}

type Rules struct {
	Combinations  []CombinationRule      `yaml:"combinations"`
	Symptoms      []SymptomRule          `yaml:"symptoms"`
	History       []HistoryRule          `yaml:"history"`
	Strategies    []StrategyRule         `yaml:"strategies"`
	Constitutions []ConstitutionStrategy `yaml:"constitutions"`
	// DefaultConstitution covers any declared constitution without its own
	// strategy.
	DefaultConstitution *Strategy `yaml:"default_constitution"`
}

func (r *Rules) constitutionStrategy(constitution string) (Strategy, bool) {
	for _, cs := range r.Constitutions {
		if cs.Constitution == constitution {
			return cs.Strategy, true
		}
	}
	if r.DefaultConstitution != nil {
		return *r.DefaultConstitution, true
	}
	return Strategy{}, false
}

func DefaultRules() *Rules {
	return &Rules{
		Combinations: []CombinationRule{
			{Risk: "心血管疾病", Symptoms: []string{"胸痛", "气短", "心悸"}, Probability: 0.7},
			{Risk: "高血压", Symptoms: []string{"头痛", "头晕", "耳鸣"}, Probability: 0.6},
			{Risk: "糖尿病", Symptoms: []string{"口干", "多饮", "多尿", "乏力"}, Probability: 0.65},
			{Risk: "消化系统疾病", Symptoms: []string{"腹痛", "腹泻", "便血"}, Probability: 0.6},
			{Risk: "呼吸系统疾病", Symptoms: []string{"咳嗽", "咳痰", "胸闷", "呼吸困难"}, Probability: 0.55},
		},
		Symptoms: []SymptomRule{
			{Symptom: "胸痛", Risk: "心脏疾病", Probability: 0.7, MinDurationDays: 1},
			{Symptom: "便血", Risk: "消化道出血", Probability: 0.75},
			{Symptom: "黄疸", Risk: "肝胆疾病", Probability: 0.7},
			{Symptom: "发热", Risk: "感染性疾病", Probability: 0.65, MinSeverity: 7},
			{Symptom: "意识丧失", Risk: "神经系统疾病", Probability: 0.8},
		},
		History: []HistoryRule{
			{Condition: "糖尿病", Risk: "糖尿病并发症", Probability: 0.6},
			{Condition: "高血压", Risk: "心脑血管疾病", Probability: 0.65},
			{Condition: "心脏病", Risk: "心血管疾病", Probability: 0.6},
			{Condition: "吸烟", Risk: "呼吸系统疾病", Probability: 0.5},
			{Condition: "肥胖", Risk: "代谢综合征", Probability: 0.5},
		},
		Strategies: []StrategyRule{
			{
				Match: []string{"心血管", "心脑血管", "心脏"},
				Strategy: Strategy{
					Name:        "心血管疾病预防",
					Description: "通过生活方式调整降低心血管疾病风险",
					ActionItems: []string{
						"每周至少150分钟中等强度有氧运动",
						"低盐低脂饮食，多吃蔬菜水果",
						"戒烟限酒",
						"定期监测血压血脂",
						"保持健康体重",
					},
					Effectiveness: 0.8,
				},
			},
			{
				Match: []string{"糖尿病"},
				Strategy: Strategy{
					Name:        "糖尿病预防",
					Description: "通过饮食控制和运动预防糖尿病",
					ActionItems: []string{
						"控制碳水化合物摄入",
						"规律运动，每天至少30分钟",
						"保持健康体重",
						"定期检测血糖",
						"避免高糖饮食",
					},
					Effectiveness: 0.75,
				},
			},
			{
				Match: []string{"高血压"},
				Strategy: Strategy{
					Name:        "高血压预防",
					Description: "通过生活方式管理预防高血压",
					ActionItems: []string{
						"限制钠盐摄入，每日少于6克",
						"增加钾摄入，多吃香蕉、橙子",
						"规律运动",
						"减轻精神压力",
						"定期监测血压",
					},
					Effectiveness: 0.7,
				},
			},
		},
		Constitutions: []ConstitutionStrategy{
			{
				Constitution: "气虚质",
				Strategy: Strategy{
					Name:        "气虚质调理",
					Description: "通过补气养生改善气虚体质",
					ActionItems: []string{
						"适量运动，避免过度劳累",
						"多吃补气食物：山药、大枣、黄芪",
						"保证充足睡眠",
						"练习八段锦或太极拳",
						"避免生冷食物",
					},
					Effectiveness: 0.7,
				},
			},
			{
				Constitution: "阳虚质",
				Strategy: Strategy{
					Name:        "阳虚质调理",
					Description: "通过温阳养生改善阳虚体质",
					ActionItems: []string{
						"注意保暖，特别是腰部和腹部",
						"多吃温性食物：羊肉、生姜、韭菜",
						"适当晒太阳",
						"艾灸关元、命门等穴位",
						"避免寒凉食物和环境",
					},
					Effectiveness: 0.7,
				},
			},
			{
				Constitution: "阴虚质",
				Strategy: Strategy{
					Name:        "阴虚质调理",
					Description: "通过滋阴养生改善阴虚体质",
					ActionItems: []string{
						"保证充足睡眠，避免熬夜",
						"多吃滋阴食物：银耳、百合、枸杞",
						"保持情绪平和",
						"适量饮水",
						"避免辛辣刺激食物",
					},
					Effectiveness: 0.7,
				},
			},
		},
		DefaultConstitution: &Strategy{
			Name:          "体质调理",
			Description:   "通过生活方式调理改善体质",
			ActionItems:   []string{"均衡饮食", "规律作息", "适量运动", "情志调养"},
			Effectiveness: 0.6,
		},
	}
}

// LoadRules reads risk rules from a YAML file. An empty path returns the
// built-in rules.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read risk rules: %w", err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse risk rules: %w", err)
	}
	if err := ValidateRules(&rules); err != nil {
		return nil, err
	}
	return &rules, nil
}

func validProbability(p float64) bool {
	return p > 0 && p <= 1
}

// ValidateRules reports every malformed rule at once.
func ValidateRules(r *Rules) error {
	if r == nil || len(r.Combinations)+len(r.Symptoms)+len(r.History) == 0 {
		return fmt.Errorf("risk rules: no rules defined")
	}
	var problems []string
	for i, c := range r.Combinations {
		label := fmt.Sprintf("combinations[%d]", i)
		if c.Risk == "" {
			problems = append(problems, label+": risk is required")
		}
		if len(c.Symptoms) < 2 {
			problems = append(problems, label+": at least two symptoms are required")
		}
		if !validProbability(c.Probability) {
			problems = append(problems, fmt.Sprintf("%s: probability %v outside (0,1]", label, c.Probability))
		}
	}
	for i, s := range r.Symptoms {
		label := fmt.Sprintf("symptoms[%d]", i)
		if s.Symptom == "" || s.Risk == "" {
			problems = append(problems, label+": symptom and risk are required")
		}
		if !validProbability(s.Probability) {
			problems = append(problems, fmt.Sprintf("%s: probability %v outside (0,1]", label, s.Probability))
		}
		if s.MinSeverity < 0 || s.MinSeverity > 10 {
			problems = append(problems, fmt.Sprintf("%s: min_severity %v outside [0,10]", label, s.MinSeverity))
		}
	}
	for i, h := range r.History {
		label := fmt.Sprintf("history[%d]", i)
		if h.Condition == "" || h.Risk == "" {
			problems = append(problems, label+": condition and risk are required")
		}
		if !validProbability(h.Probability) {
			problems = append(problems, fmt.Sprintf("%s: probability %v outside (0,1]", label, h.Probability))
		}
	}
	for i, s := range r.Strategies {
		label := fmt.Sprintf("strategies[%d]", i)
		if len(s.Match) == 0 {
			problems = append(problems, label+": match is required")
		}
		if s.Strategy.Name == "" {
			problems = append(problems, label+": strategy name is required")
		}
	}
	for i, cs := range r.Constitutions {
		if cs.Constitution == "" || cs.Strategy.Name == "" {
			problems = append(problems, fmt.Sprintf("constitutions[%d]: constitution and strategy name are required", i))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid risk rules: %s", strings.Join(problems, "; "))
	}
	return nil
}
