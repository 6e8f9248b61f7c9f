package severityanalysis

import (
	"regexp"

	"inquiry-core/internal/extraction/textutil"
	"inquiry-core/internal/models"
)

type termGroup struct {
	effect effect
	terms  []string
}

var termGroups = []termGroup{
	{effect{mild: 0.5}, []string{"轻微", "轻度", "些许", "隐隐", "微微", "不太严重", "不严重", "还能忍", "还好"}},
	{effect{moderate: 0.5}, []string{"明显", "中度", "较重", "挺难受", "比较难受", "有些难受"}},
	{effect{severe: 0.6}, []string{"严重", "剧烈", "剧痛", "重度", "难以忍受", "厉害", "要命", "撕裂", "刀割"}},
	{effect{severe: 0.35, functional: true}, []string{"无法", "不能", "没法", "影响睡眠", "影响工作", "起不来", "下不了床", "动不了", "睡不着"}},
	{effect{severe: 0.95, functional: true}, []string{"无法忍受", "受不了", "忍不了"}},

	// intensity modifiers: very high, high, medium, low
	{effect{severe: 0.4}, []string{"极其", "极度", "非常", "特别", "超级", "异常"}},
	{effect{severe: 0.25, moderate: 0.1}, []string{"十分", "很", "相当"}},
	{effect{moderate: 0.3}, []string{"比较", "较为", "还挺", "挺", "蛮"}},
	{effect{mild: 0.35}, []string{"有点", "有点儿", "稍微", "一点", "略微", "有些", "稍", "略"}},

	// frequency adverbs: always, often, sometimes, rarely
	{effect{severe: 0.15, moderate: 0.1}, []string{"总是", "一直", "始终", "持续", "天天", "每天"}},
	{effect{moderate: 0.2}, []string{"经常", "常常", "时常", "频繁", "老是"}},
	{effect{mild: 0.15}, []string{"有时", "有时候", "时不时", "偶尔会"}},
	{effect{mild: 0.2}, []string{"偶尔", "很少"}},

	// consumed so their characters do not count as modifiers
	{effect{}, []string{"一点也不", "一点都不", "好一点", "好一些", "差不多"}},
}

var bands = map[string]band{
	models.SeverityMild:     {lo: 2, hi: 4},
	models.SeverityModerate: {lo: 4, hi: 7},
	models.SeveritySevere:   {lo: 7, hi: 10},
}

var (
	lexicon = textutil.NewLexicon(buildEntries())

	ratingPattern     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(分钟|分|/\s*10)`)
	bareRatingPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*分?\s*[。.!！]?\s*$`)
)

func buildEntries() []textutil.Entry[effect] {
	var entries []textutil.Entry[effect]
	for _, g := range termGroups {
		for _, term := range g.terms {
			entries = append(entries, textutil.Entry[effect]{Term: term, Value: g.effect})
		}
	}
	return entries
}
