package session

import (
	"context"
	"database/sql"
	stderrors "errors"
	"testing"
	"time"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	diagnosticreasoning "inquiry-core/internal/diagnosis/diagnostic-reasoning"
	"inquiry-core/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArchive(t *testing.T) (*PostgresArchive, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresArchive(db, logger.NewTestLogger(t)), mock
}

func testSummary() *models.SessionSummary {
	return &models.SessionSummary{
		SessionID:         "s-1",
		PatientID:         "p-1",
		FinalStage:        "conclusion",
		StageHistory:      []string{"initialization", "chief_complaint", "conclusion"},
		QuestionsAnswered: 4,
		Symptoms:          []models.Symptom{{Name: "头痛", Severity: 6}},
		RiskFactors:       []string{"高血压"},
		AverageConfidence: 0.9,
		AssessmentID:      "a-1",
		Patient:           &models.PatientContext{Age: 40},
		StartedAt:         fixedNow,
		EndedAt:           fixedNow.Add(5 * time.Minute),
	}
}

// ==========================
// Summaries
// ==========================

func TestPostgresArchive_SaveSummary(t *testing.T) {
	archive, mock := newTestArchive(t)
	s := testSummary()

	mock.ExpectExec(`INSERT INTO inquiry_sessions .* ON CONFLICT \(session_id\) DO UPDATE`).
		WithArgs(
			"s-1", "p-1", "conclusion",
			sqlmock.AnyArg(), // stage_history text[]
			4,
			sqlmock.AnyArg(), // symptoms JSONB
			sqlmock.AnyArg(), // risk_factors text[]
			0.9, false,
			sqlmock.AnyArg(), // assessment_id
			sqlmock.AnyArg(), // patient JSONB
			s.StartedAt, s.EndedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, archive.SaveSummary(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive_SaveSummaryFailure(t *testing.T) {
	archive, mock := newTestArchive(t)
	mock.ExpectExec(`INSERT INTO inquiry_sessions`).WillReturnError(stderrors.New("connection reset"))

	err := archive.SaveSummary(context.Background(), testSummary())
	assert.True(t, errors.HasCode(err, errors.ErrCodeArchiveUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive_GetSummary(t *testing.T) {
	archive, mock := newTestArchive(t)
	columns := []string{
		"session_id", "patient_id", "final_stage", "stage_history", "questions_answered",
		"symptoms", "risk_factors", "average_confidence", "emergency_detected",
		"assessment_id", "patient", "started_at", "ended_at",
	}

	mock.ExpectQuery(`SELECT .* FROM inquiry_sessions WHERE session_id = \$1`).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"s-1", "p-1", "emergency", "{initialization,chief_complaint,emergency}", 2,
			[]byte(`[{"name":"胸痛","severity":9,"severityLevel":"severe","durationDays":0,"confidence":0.8}]`),
			"{}", 0.75, true,
			nil, []byte(`{"age":70}`), fixedNow, fixedNow.Add(time.Minute),
		))

	got, err := archive.GetSummary(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "emergency", got.FinalStage)
	assert.Equal(t, []string{"initialization", "chief_complaint", "emergency"}, got.StageHistory)
	assert.Empty(t, got.RiskFactors)
	require.Len(t, got.Symptoms, 1)
	assert.Equal(t, "胸痛", got.Symptoms[0].Name)
	assert.True(t, got.EmergencyDetected)
	assert.Empty(t, got.AssessmentID)
	require.NotNil(t, got.Patient)
	assert.Equal(t, 70, got.Patient.Age)
	assert.Equal(t, time.Minute, got.Duration())

	mock.ExpectQuery(`SELECT .* FROM inquiry_sessions`).WithArgs("missing").WillReturnError(sql.ErrNoRows)
	_, err = archive.GetSummary(context.Background(), "missing")
	assert.True(t, errors.HasCode(err, errors.ErrCodeSessionNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Assessments
// ==========================

func TestPostgresArchive_SaveAssessment(t *testing.T) {
	archive, mock := newTestArchive(t)
	a := &diagnosticreasoning.Assessment{
		ID:          "a-1",
		PatientID:   "p-1",
		OverallRisk: diagnosticreasoning.RiskHigh,
		Primary:     &diagnosticreasoning.DiagnosisResult{DiseaseID: "dis_influenza"},
		Confidence:  0.76,
		CreatedAt:   fixedNow,
	}

	mock.ExpectExec(`INSERT INTO inquiry_assessments .* ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("a-1", "s-1", "p-1", "high", sqlmock.AnyArg(), 0.76, sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, archive.SaveAssessment(context.Background(), "s-1", a))

	mock.ExpectExec(`INSERT INTO inquiry_assessments`).WillReturnError(stderrors.New("disk full"))
	err := archive.SaveAssessment(context.Background(), "s-1", a)
	assert.True(t, errors.HasCode(err, errors.ErrCodeArchiveUnavailable))

	assert.NoError(t, mock.ExpectationsWereMet())
}
