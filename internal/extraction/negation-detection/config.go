package negationdetection

type Config struct {
	// Window is how many runes before a mention a cue may end.
	Window int
	// Threshold is the minimum confidence for a mention to count as negated.
	Threshold float64
	// ContrastPenalty multiplies confidence when a contrastive conjunction
	// sits between the cue and the mention.
	ContrastPenalty float64
}

func LoadConfig() *Config {
	return &Config{
		Window:          12,
		Threshold:       0.5,
		ContrastPenalty: 0.5,
	}
}
