package durationextraction

type Config struct {
	// MaxPlausibleDays caps what counts as a real symptom duration.
	MaxPlausibleDays float64
}

func LoadConfig() *Config {
	return &Config{MaxPlausibleDays: 36500}
}
