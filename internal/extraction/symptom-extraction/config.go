package symptomextraction

import "time"

type Config struct {
	// AnalyzerTimeout bounds each negation, severity, duration and context run.
	AnalyzerTimeout time.Duration
	// MaxSymptoms caps the mentions analysed per utterance.
	MaxSymptoms int
	// MentionConfidence is the base confidence of a lexicon mention.
	MentionConfidence float64
	// FailurePenalty is subtracted from a mention's confidence per degraded analyzer.
	FailurePenalty float64
}

func LoadConfig() *Config {
	return &Config{
		AnalyzerTimeout:   200 * time.Millisecond,
		MaxSymptoms:       30,
		MentionConfidence: 0.8,
		FailurePenalty:    0.1,
	}
}
