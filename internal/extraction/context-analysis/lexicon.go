package contextanalysis

import (
	"regexp"

	"inquiry-core/internal/extraction/textutil"
)

const notBoundary = `[^，,。！？；;!?.\s]`

// Positional families. Group 1 is the indicator, group 2 the result word.
var (
	causeEffectPattern = regexp.MustCompile(
		`(吃了?` + notBoundary + `{0,6}?|喝了?` + notBoundary + `{0,6}?|饮酒|运动|劳累|受凉|着凉|生气|着急|熬夜|吹风|淋雨|久坐|久站|干活|爬楼)(之后|以后|后)`)
	effectReliefPattern = regexp.MustCompile(
		`(休息|按摩|热敷|服药|吃药|睡一觉|睡觉|躺下|喝热水|揉一揉|保暖)` + notBoundary + `{0,6}?(好转|缓解|减轻|舒服|好些|好一些|消失)`)
	causeAggravationPattern = regexp.MustCompile(
		`(活动|运动|劳累|饭后|夜间|晚上|天冷|受凉|情绪激动|生气|走路|弯腰|咳嗽时|吃东西)` + notBoundary + `{0,6}?(加重|更严重|严重|加剧|更痛|更厉害|明显)`)
)

var categoryTerms = []textutil.Entry[string]{
	{Term: "吃", Value: CategoryDiet},
	{Term: "喝", Value: CategoryDiet},
	{Term: "饮酒", Value: CategoryDiet},
	{Term: "饭后", Value: CategoryDiet},
	{Term: "吃东西", Value: CategoryDiet},
	{Term: "生冷", Value: CategoryDiet},
	{Term: "辛辣", Value: CategoryDiet},
	{Term: "油腻", Value: CategoryDiet},
	{Term: "运动", Value: CategoryExertion},
	{Term: "劳累", Value: CategoryExertion},
	{Term: "活动", Value: CategoryExertion},
	{Term: "干活", Value: CategoryExertion},
	{Term: "爬楼", Value: CategoryExertion},
	{Term: "走路", Value: CategoryExertion},
	{Term: "受凉", Value: CategoryWeather},
	{Term: "着凉", Value: CategoryWeather},
	{Term: "吹风", Value: CategoryWeather},
	{Term: "淋雨", Value: CategoryWeather},
	{Term: "天冷", Value: CategoryWeather},
	{Term: "变天", Value: CategoryWeather},
	{Term: "生气", Value: CategoryEmotion},
	{Term: "着急", Value: CategoryEmotion},
	{Term: "情绪激动", Value: CategoryEmotion},
	{Term: "紧张", Value: CategoryEmotion},
	{Term: "焦虑", Value: CategoryEmotion},
	{Term: "压力大", Value: CategoryEmotion},
	{Term: "熬夜", Value: CategorySleep},
	{Term: "睡眠不足", Value: CategorySleep},
	{Term: "久坐", Value: CategoryPosture},
	{Term: "久站", Value: CategoryPosture},
	{Term: "弯腰", Value: CategoryPosture},
	{Term: "休息", Value: CategoryRest},
	{Term: "睡觉", Value: CategoryRest},
	{Term: "睡一觉", Value: CategoryRest},
	{Term: "躺下", Value: CategoryRest},
	{Term: "按摩", Value: CategoryTherapy},
	{Term: "热敷", Value: CategoryTherapy},
	{Term: "服药", Value: CategoryTherapy},
	{Term: "吃药", Value: CategoryTherapy},
	{Term: "揉一揉", Value: CategoryTherapy},
	{Term: "喝热水", Value: CategoryTherapy},
	{Term: "保暖", Value: CategoryTherapy},
	{Term: "夜间", Value: CategoryTiming},
	{Term: "晚上", Value: CategoryTiming},
	{Term: "咳嗽时", Value: CategoryOther},
}

// triggerKeywords are standalone triggers reported without a result word.
var triggerKeywords = textutil.NewLexicon([]textutil.Entry[string]{
	{Term: "受凉", Value: CategoryWeather},
	{Term: "着凉", Value: CategoryWeather},
	{Term: "吹风", Value: CategoryWeather},
	{Term: "淋雨", Value: CategoryWeather},
	{Term: "变天", Value: CategoryWeather},
	{Term: "熬夜", Value: CategorySleep},
	{Term: "劳累", Value: CategoryExertion},
	{Term: "生气", Value: CategoryEmotion},
	{Term: "压力大", Value: CategoryEmotion},
	{Term: "生冷", Value: CategoryDiet},
	{Term: "辛辣", Value: CategoryDiet},
	{Term: "油腻", Value: CategoryDiet},
	{Term: "饮酒", Value: CategoryDiet},
	{Term: "久坐", Value: CategoryPosture},
})

var timingFeatures = []struct {
	feature string
	terms   []string
}{
	{"morning", []string{"早上", "早晨", "清晨", "凌晨"}},
	{"afternoon", []string{"下午", "午后"}},
	{"evening", []string{"晚上", "傍晚", "夜间", "深夜", "半夜"}},
	{"meal_related", []string{"饭前", "饭后", "空腹", "餐后"}},
}

var qualityFeatures = []struct {
	kind  string
	terms []string
}{
	{"pain_quality", []string{"刺痛", "胀痛", "隐痛", "剧痛", "钝痛", "绞痛", "灼痛", "酸痛"}},
	{"sensation", []string{"麻木", "发凉", "发热", "沉重", "紧绷"}},
	{"characteristics", []string{"持续", "间歇", "阵发", "游走", "固定"}},
}

// defaultSymptomTerms is the fallback accompanying-symptom list.
var defaultSymptomTerms = []textutil.Entry[string]{
	{Term: "头痛", Value: "头痛"},
	{Term: "头疼", Value: "头痛"},
	{Term: "头晕", Value: "头晕"},
	{Term: "发烧", Value: "发热"},
	{Term: "发热", Value: "发热"},
	{Term: "咳嗽", Value: "咳嗽"},
	{Term: "咳痰", Value: "咳痰"},
	{Term: "流鼻涕", Value: "流涕"},
	{Term: "流涕", Value: "流涕"},
	{Term: "鼻塞", Value: "鼻塞"},
	{Term: "咽痛", Value: "咽痛"},
	{Term: "喉咙痛", Value: "咽痛"},
	{Term: "恶心", Value: "恶心"},
	{Term: "呕吐", Value: "呕吐"},
	{Term: "腹泻", Value: "腹泻"},
	{Term: "拉肚子", Value: "腹泻"},
	{Term: "腹痛", Value: "腹痛"},
	{Term: "胃痛", Value: "胃痛"},
	{Term: "胸闷", Value: "胸闷"},
	{Term: "胸痛", Value: "胸痛"},
	{Term: "心悸", Value: "心悸"},
	{Term: "乏力", Value: "乏力"},
	{Term: "失眠", Value: "失眠"},
	{Term: "出汗", Value: "汗出"},
	{Term: "怕冷", Value: "畏寒"},
	{Term: "畏寒", Value: "畏寒"},
	{Term: "口干", Value: "口干"},
	{Term: "肌肉酸痛", Value: "肌肉酸痛"},
	{Term: "畏光", Value: "畏光"},
}
