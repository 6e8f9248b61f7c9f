package contextanalysis

import "inquiry-core/internal/extraction/textutil"

type Config struct {
	// Window is the rune radius around the mention that is searched.
	Window int

	MaxTriggers     int
	MaxReliefs      int
	MaxAggravators  int
	MaxAccompanying int

	// SymptomTerms maps surface forms to canonical symptom names for
	// accompanying symptom detection. Nil uses the built-in list.
	SymptomTerms []textutil.Entry[string]
}

func LoadConfig() *Config {
	return &Config{
		Window:          50,
		MaxTriggers:     5,
		MaxReliefs:      5,
		MaxAggravators:  5,
		MaxAccompanying: 8,
	}
}
