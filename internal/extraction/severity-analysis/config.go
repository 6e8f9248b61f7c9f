package severityanalysis

type Config struct {
	// Window clips the mention's sentence to this many runes on each side.
	Window int
	// Floor is the minimum tier score for a level to be reported.
	Floor float64
	// Saturation is the tier score at which the numeric score reaches the top of its band.
	Saturation float64
}

func LoadConfig() *Config {
	return &Config{
		Window:     10,
		Floor:      0.3,
		Saturation: 1.2,
	}
}
