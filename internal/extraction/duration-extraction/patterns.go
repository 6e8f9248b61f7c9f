package durationextraction

import (
	"regexp"
	"sort"
	"strings"

	"inquiry-core/internal/models"
)

const unitPattern = `(年|月|周|星期|礼拜|天|日|小时|钟头|分钟)`

var unitDays = map[string]float64{
	"年":  365,
	"月":  30,
	"周":  7,
	"星期": 7,
	"礼拜": 7,
	"天":  1,
	"日":  1,
	"小时": 1.0 / 24,
	"钟头": 1.0 / 24,
	"分钟": 1.0 / 1440,
}

var (
	numericRangePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:到|至|-|~|～|—)\s*(\d+(?:\.\d+)?)\s*个?\s*` + unitPattern)
	numeralRangePattern = regexp.MustCompile(`([一二两三四五六七八九十]+)\s*(?:到|至)\s*([一二两三四五六七八九十]+)\s*个?\s*` + unitPattern)
	adjacentPattern     = regexp.MustCompile(`([一两二三四五六七八])([二三四五六七八九])\s*个?\s*` + unitPattern)
	numericPattern      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*多?\s*个?\s*(半)?\s*` + unitPattern + `(以后|之后|后)?`)
	numeralPattern      = regexp.MustCompile(`([零一二两三四五六七八九十百几]+)\s*多?\s*个?\s*(半)?\s*` + unitPattern + `(以后|之后|后)?`)
)

var fuzzyDays = map[string]float64{
	"最近": 7, "近期": 7, "近来": 7, "这段时间": 14, "前段时间": 21,
	"这几天": 3, "前几天": 3, "这两天": 2,
	"今天": 1, "今早": 1, "今天早上": 1, "刚才": 1.0 / 24, "刚刚": 1.0 / 24,
	"昨天": 1, "昨晚": 1, "前天": 2,
	"上周": 7, "上个星期": 7, "上个礼拜": 7, "上个月": 30, "去年": 365,
	"半个月": 15, "半年": 182.5, "好几个月": 90, "好几年": 730,
	"很久": 180, "好久": 180, "长期": 365, "慢性": 365, "多年": 730,

	"明天": -1, "后天": -2, "下周": -7, "下个星期": -7, "下个月": -30, "明年": -365,
}

var fuzzyPattern = buildFuzzyPattern()

func buildFuzzyPattern() *regexp.Regexp {
	terms := make([]string, 0, len(fuzzyDays))
	for term := range fuzzyDays {
		terms = append(terms, term)
	}
	// longest alternative first so leftmost-first matching prefers it
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(strings.Join(quoted, "|"))
}

var (
	suddenCues       = []string{"突然", "忽然", "骤然", "一下子", "猛然", "突发"}
	gradualCues      = []string{"逐渐", "慢慢", "渐渐", "越来越", "日益", "逐步"}
	intermittentCues = []string{"间歇", "时好时坏", "反复", "阵发", "时有时无", "断断续续", "一阵一阵", "有时", "偶尔"}
	continuousCues   = []string{"持续", "一直", "不停", "始终", "整天", "没停过"}
)

var onsetOrder = []struct {
	value string
	cues  []string
}{
	{models.OnsetSudden, suddenCues},
	{models.OnsetGradual, gradualCues},
}

var periodicityOrder = []struct {
	value string
	cues  []string
}{
	{models.PeriodicityIntermittent, intermittentCues},
	{models.PeriodicityContinuous, continuousCues},
}

var numeralDigits = map[rune]float64{
	'零': 0, '一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

// parseNumeral reads Chinese numerals up to the hundreds. 几 reads as 3 on its
// own, 5 after 十 and 3 tens before it.
func parseNumeral(s string) (float64, bool) {
	switch s {
	case "":
		return 0, false
	case "几":
		return 3, true
	case "十几":
		return 15, true
	case "几十":
		return 30, true
	}

	total, current := 0.0, 0.0
	seen := false
	for _, r := range s {
		switch r {
		case '十':
			if current == 0 {
				current = 1
			}
			total += current * 10
			current = 0
			seen = true
		case '百':
			if current == 0 {
				current = 1
			}
			total += current * 100
			current = 0
			seen = true
		case '几':
			current = 3
			seen = true
		default:
			d, ok := numeralDigits[r]
			if !ok {
				return 0, false
			}
			current = d
			seen = true
		}
	}
	return total + current, seen
}
