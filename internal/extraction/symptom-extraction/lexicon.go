package symptomextraction

import (
	"strings"

	"inquiry-core/internal/extraction/textutil"
)

type symptomDef struct {
	name     string
	aliases  []string
	bodyPart string
}

// symptomDefs is the built-in symptom lexicon. Names are the canonical
// symptom names used by the knowledge base.
var symptomDefs = []symptomDef{
	{"头痛", []string{"头疼", "脑袋疼", "脑袋痛", "头部疼痛"}, "头"},
	{"偏头痛", []string{"一侧头痛", "半边头痛"}, "头"},
	{"头晕", []string{"头昏", "眩晕", "头晕目眩"}, "头"},
	{"头重", []string{"头沉", "头重如裹"}, "头"},
	{"发热", []string{"发烧", "体温高", "高烧", "高热", "低烧", "身上发烫"}, ""},
	{"畏寒", []string{"怕冷", "恶寒", "发冷"}, ""},
	{"咳嗽", []string{"干咳", "咳个不停"}, "胸"},
	{"咳痰", []string{"有痰", "痰多", "吐痰"}, "胸"},
	{"流涕", []string{"流鼻涕", "流鼻水", "清鼻涕"}, "鼻"},
	{"鼻塞", []string{"鼻子不通", "鼻子堵", "鼻子不通气"}, "鼻"},
	{"咽痛", []string{"喉咙痛", "喉咙疼", "嗓子疼", "嗓子痛", "咽喉痛"}, "咽"},
	{"恶心", []string{"想吐", "反胃"}, "腹"},
	{"呕吐", []string{"吐了"}, "腹"},
	{"腹泻", []string{"拉肚子", "拉稀", "腹泄", "大便稀"}, "腹"},
	{"腹痛", []string{"肚子疼", "肚子痛", "腹部疼痛"}, "腹"},
	{"腹胀", []string{"肚子胀", "胀气"}, "腹"},
	{"胃痛", []string{"胃疼", "胃部疼痛"}, "腹"},
	{"食欲不振", []string{"没胃口", "胃口差", "胃口不好", "不想吃饭"}, ""},
	{"便秘", []string{"大便干", "排便困难"}, "腹"},
	{"胸闷", []string{"胸口闷", "憋气", "胸口发闷"}, "胸"},
	{"胸痛", []string{"胸口痛", "胸口疼", "胸部疼痛"}, "胸"},
	{"心悸", []string{"心慌", "心跳快", "心跳加速"}, "胸"},
	{"气短", []string{"气不够用", "上气不接下气"}, "胸"},
	{"呼吸困难", []string{"喘不过气", "喘不上气", "呼吸急促"}, "胸"},
	{"乏力", []string{"没力气", "没有力气", "没劲", "疲劳", "疲倦", "疲乏", "浑身无力"}, ""},
	{"失眠", []string{"睡不着", "睡不好", "入睡困难", "睡眠不好"}, ""},
	{"多梦", []string{"做梦多", "老做梦"}, ""},
	{"汗出", []string{"出汗", "自汗", "多汗", "爱出汗"}, "皮肤"},
	{"盗汗", []string{"夜间出汗", "晚上出汗", "睡着出汗"}, "皮肤"},
	{"口干", []string{"口渴", "嘴干"}, "口"},
	{"口苦", []string{"嘴苦", "嘴里发苦"}, "口"},
	{"肌肉酸痛", []string{"全身酸痛", "浑身酸痛", "身体酸痛", "肌肉疼"}, ""},
	{"关节痛", []string{"关节疼", "关节疼痛"}, "腿"},
	{"腰痛", []string{"腰疼", "腰酸"}, "腰"},
	{"背痛", []string{"背疼", "后背痛", "后背疼"}, "背"},
	{"颈痛", []string{"脖子疼", "脖子痛", "颈部疼痛"}, "颈"},
	{"耳鸣", []string{"耳朵嗡嗡响", "耳朵响"}, "耳"},
	{"畏光", []string{"怕光"}, "眼"},
	{"视物模糊", []string{"看不清", "视力模糊", "眼花"}, "眼"},
	{"手脚冰凉", []string{"手脚发凉", "四肢冰冷", "手脚冰冷"}, "手"},
	{"腰膝酸软", []string{"腰腿酸软"}, "腰"},
	{"潮热", []string{"阵阵发热", "一阵阵发热"}, ""},
	{"面色苍白", []string{"脸色苍白", "脸色发白"}, ""},
	{"烦躁", []string{"心烦", "易怒", "急躁"}, ""},
	{"焦虑", []string{"担心害怕", "心神不宁"}, ""},
	{"抽搐", []string{"抽筋", "痉挛"}, ""},
	{"意识丧失", []string{"昏迷", "晕倒", "昏倒", "意识不清", "不省人事"}, ""},
	{"皮疹", []string{"起疹子", "出疹子", "红疹"}, "皮肤"},
	{"瘙痒", []string{"发痒", "皮肤痒"}, "皮肤"},
}

var (
	defsByName = func() map[string]symptomDef {
		out := make(map[string]symptomDef, len(symptomDefs))
		for _, d := range symptomDefs {
			out[d.name] = d
		}
		return out
	}()

	symptomTerms = func() []textutil.Entry[string] {
		var out []textutil.Entry[string]
		for _, d := range symptomDefs {
			out = append(out, textutil.Entry[string]{Term: d.name, Value: d.name})
			for _, a := range d.aliases {
				out = append(out, textutil.Entry[string]{Term: a, Value: d.name})
			}
		}
		return out
	}()

	symptomLexicon = textutil.NewLexicon(symptomTerms)

	aliasIndex = func() map[string]string {
		out := make(map[string]string, len(symptomTerms))
		for _, e := range symptomTerms {
			out[e.Term] = e.Value
		}
		return out
	}()
)

// Terms returns every surface form of the built-in lexicon with its canonical name.
func Terms() []textutil.Entry[string] {
	out := make([]textutil.Entry[string], len(symptomTerms))
	copy(out, symptomTerms)
	return out
}

// Canonical maps a surface form onto its canonical symptom name.
func Canonical(term string) (string, bool) {
	name, ok := aliasIndex[strings.TrimSpace(term)]
	return name, ok
}

// ==========================
// Body locations
// ==========================

var bodyParts = []struct {
	name     string
	synonyms []string
}{
	{"头", []string{"头部", "脑袋", "头顶", "额头", "太阳穴"}},
	{"胸", []string{"胸部", "胸口", "胸腔"}},
	{"腹", []string{"腹部", "肚子", "腹腔", "胃部", "胃"}},
	{"背", []string{"背部", "脊椎", "后背"}},
	{"腰", []string{"腰部", "腰间"}},
	{"手", []string{"手部", "手腕", "手指", "手掌"}},
	{"脚", []string{"脚部", "脚踝", "脚趾", "脚掌"}},
	{"颈", []string{"颈部", "脖子"}},
	{"肩", []string{"肩部", "肩膀"}},
	{"腿", []string{"腿部", "大腿", "小腿", "膝盖"}},
	{"眼", []string{"眼睛", "眼球", "眼皮"}},
	{"耳", []string{"耳朵", "耳廓"}},
	{"鼻", []string{"鼻子", "鼻腔"}},
	{"口", []string{"嘴巴", "嘴唇", "口腔", "嘴"}},
	{"咽", []string{"喉咙", "嗓子", "咽喉"}},
	{"皮肤", []string{"肌肤"}},
}

var bodyPartLexicon = func() *textutil.Lexicon[string] {
	var entries []textutil.Entry[string]
	for _, p := range bodyParts {
		entries = append(entries, textutil.Entry[string]{Term: p.name, Value: p.name})
		for _, s := range p.synonyms {
			entries = append(entries, textutil.Entry[string]{Term: s, Value: p.name})
		}
	}
	return textutil.NewLexicon(entries)
}()

var bodyPartOrder = func() map[string]int {
	out := make(map[string]int, len(bodyParts))
	for i, p := range bodyParts {
		out[p.name] = i
	}
	return out
}()

// ==========================
// Temporal factors
// ==========================

var temporalFamilies = []struct {
	kind     string
	keywords []string
}{
	{"diurnal", []string{"早上", "上午", "中午", "下午", "晚上", "夜间", "凌晨"}},
	{"seasonal", []string{"春天", "夏天", "秋天", "冬天", "春季", "夏季", "秋季", "冬季"}},
	{"durational", []string{"持续", "一直", "长期", "短期", "几天", "几周", "几个月", "几年"}},
	{"frequency", []string{"经常", "偶尔", "有时", "时常", "总是", "频繁", "很少", "从不"}},
	{"trigger", []string{"吃完", "吃后", "饭后", "运动后", "劳累", "熬夜", "情绪", "受凉"}},
}

// ==========================
// TCM classification
// ==========================

var tcmPatterns = []struct {
	pattern  string
	symptoms []string
	organs   []string
	nature   string
	factors  []string
}{
	{"气虚", []string{"乏力", "气短", "汗出", "食欲不振"}, []string{"脾", "肺"}, "虚", nil},
	{"血虚", []string{"头晕", "失眠", "心悸", "面色苍白", "视物模糊", "多梦"}, []string{"脾", "肺"}, "虚", nil},
	{"阴虚", []string{"口干", "潮热", "盗汗", "失眠", "烦躁"}, []string{"肾", "肝"}, "虚热", nil},
	{"阳虚", []string{"畏寒", "手脚冰凉", "腰膝酸软", "腹泻"}, []string{"肾", "脾"}, "虚寒", nil},
	{"痰湿", []string{"咳痰", "胸闷", "恶心", "呕吐", "腹胀", "头重"}, []string{"脾", "肺"}, "实", []string{"痰湿"}},
	{"湿热", []string{"口苦", "皮疹", "瘙痒"}, []string{"脾", "肝胆"}, "实热", []string{"湿", "热"}},
	{"气滞", []string{"腹胀", "胸闷", "烦躁", "焦虑"}, []string{"肝", "脾"}, "实", []string{"气滞"}},
	{"血瘀", []string{"胸痛", "偏头痛"}, []string{"肝", "心"}, "实", []string{"血瘀"}},
}

var symptomCharacteristics = []struct {
	char    string
	organs  []string
	factors []string
	nature  string
}{
	{"痛", []string{"肝"}, []string{"气滞", "血瘀"}, "实"},
	{"胀", []string{"脾", "肝"}, []string{"气滞"}, "实"},
	{"痒", []string{"肺", "肝"}, []string{"风", "血虚"}, "虚"},
	{"麻", []string{"肝", "肾"}, []string{"血虚", "痰湿"}, "虚"},
	{"热", []string{"心", "肺"}, []string{"热", "火"}, "热"},
	{"冷", []string{"肾", "脾"}, []string{"阳虚", "寒"}, "寒"},
	{"寒", []string{"肾", "脾"}, []string{"阳虚", "寒"}, "寒"},
}
