package flowcontroller

import (
	"strings"
	"unicode/utf8"
)

var riskKeywords = []struct {
	factor   string
	keywords []string
}{
	{"高血压", []string{"血压高", "高血压"}},
	{"糖尿病", []string{"血糖高", "糖尿病"}},
	{"心脏病", []string{"心脏病", "冠心病", "心梗"}},
	{"吸烟", []string{"吸烟", "抽烟"}},
	{"饮酒", []string{"喝酒", "饮酒", "酗酒"}},
	{"肥胖", []string{"肥胖", "超重"}},
}

var riskNegators = []string{"不", "没", "无", "未", "戒"}

// identifyRiskFactors returns the risk factors named in an answer. A keyword
// directly preceded by a negator ("不吸烟", "没有糖尿病") does not count.
func identifyRiskFactors(answer string) []string {
	var out []string
	for _, rk := range riskKeywords {
		for _, kw := range rk.keywords {
			if mentionedAffirmatively(answer, kw) {
				out = append(out, rk.factor)
				break
			}
		}
	}
	return out
}

func mentionedAffirmatively(text, keyword string) bool {
	offset := 0
	for {
		i := strings.Index(text[offset:], keyword)
		if i < 0 {
			return false
		}
		pos := offset + i
		if !negatedBefore(text[:pos]) {
			return true
		}
		offset = pos + len(keyword)
	}
}

// negatedBefore looks at the last two runes before a mention.
func negatedBefore(prefix string) bool {
	window := prefix
	for n := 0; n < 2 && window != ""; n++ {
		_, size := utf8.DecodeLastRuneInString(window)
		window = window[:len(window)-size]
	}
	tail := prefix[len(window):]
	for _, neg := range riskNegators {
		if strings.Contains(tail, neg) {
			return true
		}
	}
	return false
}
