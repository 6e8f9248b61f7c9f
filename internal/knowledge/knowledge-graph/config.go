package knowledgegraph

import "time"

type Config struct {
	// MatchThreshold is the minimum normalised syndrome score kept by
	// MapSymptomsToCandidates.
	MatchThreshold float64
	// RemedyThreshold is the minimum normalised formula score kept by
	// RecommendRemediesFor.
	RemedyThreshold float64
	// SimilarityThreshold is the minimum rune-set Jaccard similarity for a
	// fuzzy entity resolution.
	SimilarityThreshold float64
	// ConstitutionBonus scales ConstitutionProne weights for the patient's
	// declared constitution.
	ConstitutionBonus float64
	// ConstitutionThreshold is the minimum indicator overlap reported by
	// constitution analysis.
	ConstitutionThreshold float64
	MaxCandidates         int
	MaxRemedies           int
	SearchTimeout         time.Duration
	CacheTTL              time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MatchThreshold:        0.6,
		RemedyThreshold:       0.6,
		SimilarityThreshold:   0.7,
		ConstitutionBonus:     0.2,
		ConstitutionThreshold: 0.3,
		MaxCandidates:         10,
		MaxRemedies:           5,
		SearchTimeout:         500 * time.Millisecond,
		CacheTTL:              10 * time.Minute,
	}
}
