package flowcontroller

type Config struct {
	// AdequacyThreshold is the fraction of a stage's required data that lets
	// the conversation advance.
	AdequacyThreshold float64
	// MaxQuestionsPerStage forces advancement after that many answers in a stage.
	MaxQuestionsPerStage map[Stage]int
	// DefaultMaxQuestions applies to stages missing from MaxQuestionsPerStage.
	DefaultMaxQuestions int
	// EmergencyKeywords escalate a turn whenever they appear in the answer.
	EmergencyKeywords []string
	// EmergencySeverity escalates a turn when any reported severity reaches it.
	EmergencySeverity float64
	// BranchMinUncharacterized is the number of symptoms lacking duration or
	// severity that opens a branch during symptom exploration.
	BranchMinUncharacterized int
	// QuestionsPerTurn is used when NextQuestions is called without a limit.
	QuestionsPerTurn        int
	PersonalizationEnabled  bool
	DefaultAnswerConfidence float64
}

func LoadConfig() *Config {
	return &Config{
		AdequacyThreshold: 0.7,
		MaxQuestionsPerStage: map[Stage]int{
			StageChiefComplaint:     5,
			StageSymptomExploration: 15,
			StageSystemReview:       10,
			StageHistoryTaking:      8,
			StageRiskAssessment:     5,
		},
		DefaultMaxQuestions: 10,
		EmergencyKeywords: []string{
			"胸痛", "呼吸困难", "意识丧失", "意识障碍", "大出血",
			"剧烈头痛", "高热", "抽搐", "昏迷", "休克", "心悸",
		},
		EmergencySeverity:        8,
		BranchMinUncharacterized: 2,
		QuestionsPerTurn:         3,
		PersonalizationEnabled:   true,
		DefaultAnswerConfidence:  1.0,
	}
}

func (c *Config) maxQuestions(stage Stage) int {
	if n, ok := c.MaxQuestionsPerStage[stage]; ok && n > 0 {
		return n
	}
	return c.DefaultMaxQuestions
}
