package negationdetection

import "inquiry-core/internal/extraction/textutil"

var cueEntries = []textutil.Entry[cue]{
	{Term: "没有", Value: cue{CueDirect, 0.9}},
	{Term: "没", Value: cue{CueDirect, 0.85}},
	{Term: "不", Value: cue{CueDirect, 0.8}},
	{Term: "无", Value: cue{CueDirect, 0.85}},
	{Term: "未", Value: cue{CueDirect, 0.8}},
	{Term: "否认", Value: cue{CueDirect, 0.95}},
	{Term: "排除", Value: cue{CueDirect, 0.9}},
	{Term: "并非", Value: cue{CueDirect, 0.9}},
	{Term: "不是", Value: cue{CueDirect, 0.85}},
	{Term: "尚未", Value: cue{CueDirect, 0.8}},
	{Term: "从未", Value: cue{CueDirect, 0.95}},
	{Term: "不曾", Value: cue{CueDirect, 0.9}},
	{Term: "不再", Value: cue{CueDirect, 0.85}},

	{Term: "从不", Value: cue{CueAbsolute, 1.0}},
	{Term: "从来不", Value: cue{CueAbsolute, 1.0}},
	{Term: "从来没有", Value: cue{CueAbsolute, 1.0}},
	{Term: "完全没有", Value: cue{CueAbsolute, 1.0}},
	{Term: "根本没有", Value: cue{CueAbsolute, 1.0}},
	{Term: "绝对没有", Value: cue{CueAbsolute, 1.0}},
	{Term: "一点也不", Value: cue{CueAbsolute, 1.0}},
	{Term: "一点都没有", Value: cue{CueAbsolute, 1.0}},
	{Term: "毫无", Value: cue{CueAbsolute, 0.95}},

	{Term: "不太", Value: cue{CuePartial, 0.6}},
	{Term: "不怎么", Value: cue{CuePartial, 0.55}},
	{Term: "不一定", Value: cue{CuePartial, 0.4}},
	{Term: "不确定", Value: cue{CuePartial, 0.4}},
	{Term: "不能确定", Value: cue{CuePartial, 0.4}},
	{Term: "不敢说", Value: cue{CuePartial, 0.35}},
	{Term: "几乎没有", Value: cue{CuePartial, 0.75}},
	{Term: "很少", Value: cue{CuePartial, 0.45}},

	{Term: "哪有", Value: cue{CueRhetorical, 0.7}},
	{Term: "哪里有", Value: cue{CueRhetorical, 0.7}},
	{Term: "怎么会", Value: cue{CueRhetorical, 0.6}},
	{Term: "何来", Value: cue{CueRhetorical, 0.6}},
	{Term: "难道", Value: cue{CueRhetorical, 0.5}},
}

// exceptionTerms contain a cue character but do not negate what follows.
var exceptionTerms = []string{
	"不适", "不舒服", "不停", "不断", "不止", "不好", "不了", "受不了", "忍不住", "不住",
	"不过", "不错", "不少", "不良", "不振", "不畅", "不清", "不安", "不规律", "不足",
	"无力", "无法", "睡不着", "吃不下", "喘不上", "喘不过", "说不出", "控制不住",
	"没劲", "没力气", "没胃口", "没精神",
}

var contrastTerms = []string{"但是", "但", "可是", "不过", "然而", "却", "只是", "而是"}

var (
	cueLexicon       = textutil.NewLexicon(cueEntries)
	exceptionLexicon = textutil.NewLexicon(toEntries(exceptionTerms))
	contrastLexicon  = textutil.NewLexicon(toEntries(contrastTerms))
)

func toEntries(terms []string) []textutil.Entry[struct{}] {
	out := make([]textutil.Entry[struct{}], len(terms))
	for i, t := range terms {
		out[i] = textutil.Entry[struct{}]{Term: t}
	}
	return out
}
