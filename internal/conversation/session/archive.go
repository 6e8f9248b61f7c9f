package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	diagnosticreasoning "inquiry-core/internal/diagnosis/diagnostic-reasoning"
	"inquiry-core/internal/models"

	"github.com/lib/pq"
)

// Archive keeps finished sessions and their assessments beyond the session TTL.
type Archive interface {
	SaveSummary(ctx context.Context, summary *models.SessionSummary) error
	SaveAssessment(ctx context.Context, sessionID string, a *diagnosticreasoning.Assessment) error
}

// PostgresArchive writes to the inquiry_sessions and inquiry_assessments
// tables created by the migrations. Writes are upserts so a retried call
// overwrites instead of failing.
type PostgresArchive struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresArchive(db *sql.DB, log logger.Logger) *PostgresArchive {
	return &PostgresArchive{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "session-archive"}),
	}
}

const upsertSummary = `
	INSERT INTO inquiry_sessions (
		session_id, patient_id, final_stage, stage_history, questions_answered,
		symptoms, risk_factors, average_confidence, emergency_detected,
		assessment_id, patient, started_at, ended_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (session_id) DO UPDATE SET
		final_stage = EXCLUDED.final_stage,
		stage_history = EXCLUDED.stage_history,
		questions_answered = EXCLUDED.questions_answered,
		symptoms = EXCLUDED.symptoms,
		risk_factors = EXCLUDED.risk_factors,
		average_confidence = EXCLUDED.average_confidence,
		emergency_detected = EXCLUDED.emergency_detected,
		assessment_id = EXCLUDED.assessment_id,
		patient = EXCLUDED.patient,
		ended_at = EXCLUDED.ended_at`

func (a *PostgresArchive) SaveSummary(ctx context.Context, s *models.SessionSummary) error {
	symptomsJSON, err := json.Marshal(s.Symptoms)
	if err != nil {
		return errors.NewProcessingError("session-archive", err)
	}
	var patientJSON []byte
	if s.Patient != nil {
		if patientJSON, err = json.Marshal(s.Patient); err != nil {
			return errors.NewProcessingError("session-archive", err)
		}
	}

	_, err = a.db.ExecContext(ctx, upsertSummary,
		s.SessionID,
		s.PatientID,
		s.FinalStage,
		pq.Array(s.StageHistory),
		s.QuestionsAnswered,
		symptomsJSON,
		pq.Array(s.RiskFactors),
		s.AverageConfidence,
		s.EmergencyDetected,
		nullString(s.AssessmentID),
		patientJSON,
		s.StartedAt,
		s.EndedAt,
	)
	if err != nil {
		return errors.NewArchiveUnavailableError(err)
	}

	a.logger.Info("session archived", map[string]interface{}{
		"sessionId": s.SessionID,
		"stage":     s.FinalStage,
		"duration":  s.Duration().String(),
	})
	return nil
}

const upsertAssessment = `
	INSERT INTO inquiry_assessments (
		id, session_id, patient_id, overall_risk, primary_disease,
		confidence, payload, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		overall_risk = EXCLUDED.overall_risk,
		primary_disease = EXCLUDED.primary_disease,
		confidence = EXCLUDED.confidence,
		payload = EXCLUDED.payload`

func (a *PostgresArchive) SaveAssessment(ctx context.Context, sessionID string, as *diagnosticreasoning.Assessment) error {
	payload, err := json.Marshal(as)
	if err != nil {
		return errors.NewProcessingError("session-archive", err)
	}
	primary := ""
	if as.Primary != nil {
		primary = as.Primary.DiseaseID
	}

	_, err = a.db.ExecContext(ctx, upsertAssessment,
		as.ID,
		sessionID,
		as.PatientID,
		string(as.OverallRisk),
		nullString(primary),
		as.Confidence,
		payload,
		as.CreatedAt,
	)
	if err != nil {
		return errors.NewArchiveUnavailableError(err)
	}
	return nil
}

const selectSummary = `
	SELECT session_id, patient_id, final_stage, stage_history, questions_answered,
		symptoms, risk_factors, average_confidence, emergency_detected,
		assessment_id, patient, started_at, ended_at
	FROM inquiry_sessions
	WHERE session_id = $1`

// GetSummary loads an archived session.
func (a *PostgresArchive) GetSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	var (
		s            models.SessionSummary
		symptomsJSON []byte
		patientJSON  []byte
		assessmentID sql.NullString
		startedAt    time.Time
		endedAt      time.Time
	)
	err := a.db.QueryRowContext(ctx, selectSummary, sessionID).Scan(
		&s.SessionID,
		&s.PatientID,
		&s.FinalStage,
		pq.Array(&s.StageHistory),
		&s.QuestionsAnswered,
		&symptomsJSON,
		pq.Array(&s.RiskFactors),
		&s.AverageConfidence,
		&s.EmergencyDetected,
		&assessmentID,
		&patientJSON,
		&startedAt,
		&endedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewSessionNotFoundError(sessionID)
	}
	if err != nil {
		return nil, errors.NewArchiveUnavailableError(err)
	}

	if err := json.Unmarshal(symptomsJSON, &s.Symptoms); err != nil {
		return nil, errors.NewProcessingError("session-archive", err)
	}
	if len(patientJSON) > 0 {
		s.Patient = &models.PatientContext{}
		if err := json.Unmarshal(patientJSON, s.Patient); err != nil {
			return nil, errors.NewProcessingError("session-archive", err)
		}
	}
	s.AssessmentID = assessmentID.String
	s.StartedAt = startedAt.UTC()
	s.EndedAt = endedAt.UTC()
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
