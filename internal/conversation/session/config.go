package session

import "time"

type Config struct {
	// TurnTimeout bounds symptom extraction for one answer. On expiry the turn
	// continues with an empty extraction.
	TurnTimeout time.Duration
	// GraphTimeout bounds the knowledge graph analysis of a diagnosis.
	GraphTimeout time.Duration
	// ArchiveTimeout bounds archive writes, which never fail the caller.
	ArchiveTimeout time.Duration
	// MaxQuestions caps the max parameter of NextQuestions.
	MaxQuestions int
}

func LoadConfig() *Config {
	return &Config{
		TurnTimeout:    2 * time.Second,
		GraphTimeout:   2 * time.Second,
		ArchiveTimeout: 3 * time.Second,
		MaxQuestions:   10,
	}
}
