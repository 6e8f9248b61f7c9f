package diagnosticreasoning

import "time"

type Config struct {
	MaxDifferentials int

	// MinProbability filters candidates before ranking.
	MinProbability float64
	// PrimaryProbability is the probability the best candidate must reach,
	// together with a high or very high tier, to become the primary diagnosis.
	PrimaryProbability float64

	DefaultSeverity   float64
	DefaultMembership float64
	// BaselineRate is the membership x severity product that leaves the score
	// unchanged; stronger evidence raises it, weaker evidence lowers it.
	BaselineRate    float64
	AtypicalPenalty float64

	MedicalHistoryFactor float64
	FamilyHistoryFactor  float64

	// CompleteSymptomCount is the number of symptoms treated as a complete
	// picture by the overall confidence.
	CompleteSymptomCount int
	HistoryLimit         int
	HistoryTTL           time.Duration
	CacheTTL             time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxDifferentials:     10,
		MinProbability:       0.1,
		PrimaryProbability:   0.7,
		DefaultSeverity:      5,
		DefaultMembership:    0.8,
		BaselineRate:         0.25,
		AtypicalPenalty:      0.5,
		MedicalHistoryFactor: 1.4,
		FamilyHistoryFactor:  1.2,
		CompleteSymptomCount: 5,
		HistoryLimit:         10,
		HistoryTTL:           30 * 24 * time.Hour,
		CacheTTL:             10 * time.Minute,
	}
}
