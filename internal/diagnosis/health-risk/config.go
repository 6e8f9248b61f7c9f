package healthrisk

type Config struct {
	// Probability thresholds of the severity grades.
	ModerateThreshold float64
	HighThreshold     float64
	CriticalThreshold float64
	// ConstitutionThreshold is the probability a constitution risk must
	// exceed to be reported.
	ConstitutionThreshold float64

	// CombinationMatchRatio is the share of a combination's symptoms that
	// must be present.
	CombinationMatchRatio float64
	SevereSeverity        float64
	SevereFactor          float64
	ExtremeSeverity       float64
	ExtremeFactor         float64
	MaxProbability        float64
	// ImmediateProbability separates immediate from short term combination
	// risks.
	ImmediateProbability float64

	ConstitutionBase float64
	ConstitutionCap  float64
	// ConstitutionWeightFactor scales the ConstitutionProne weight into the
	// multiplier applied when an indicating symptom is present.
	ConstitutionWeightFactor float64
	FamilyHistoryProbability float64
	BalancedConstitution     string

	MaxRisks        int
	ImmediateWeight float64

	DefaultSymptomConfidence float64
	EmptyConfidence          float64
	CompleteSymptomCount     int
}

func LoadConfig() *Config {
	return &Config{
		ModerateThreshold:        0.5,
		HighThreshold:            0.7,
		CriticalThreshold:        0.9,
		ConstitutionThreshold:    0.3,
		CombinationMatchRatio:    0.6,
		SevereSeverity:           7,
		SevereFactor:             1.2,
		ExtremeSeverity:          9,
		ExtremeFactor:            1.4,
		MaxProbability:           0.95,
		ImmediateProbability:     0.7,
		ConstitutionBase:         0.3,
		ConstitutionCap:          0.85,
		ConstitutionWeightFactor: 0.5,
		FamilyHistoryProbability: 0.55,
		BalancedConstitution:     "平和质",
		MaxRisks:                 5,
		ImmediateWeight:          0.7,
		DefaultSymptomConfidence: 0.8,
		EmptyConfidence:          0.5,
		CompleteSymptomCount:     10,
	}
}

func (c *Config) severity(p float64) Severity {
	switch {
	case p >= c.CriticalThreshold:
		return SeverityCritical
	case p >= c.HighThreshold:
		return SeverityHigh
	case p >= c.ModerateThreshold:
		return SeverityModerate
	default:
		return SeverityLow
	}
}
