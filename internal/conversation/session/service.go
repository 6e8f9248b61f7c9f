package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	"inquiry-core/internal/common/metrics"
	"inquiry-core/internal/common/observability"
	flowcontroller "inquiry-core/internal/conversation/flow-controller"
	diagnosticreasoning "inquiry-core/internal/diagnosis/diagnostic-reasoning"
	healthrisk "inquiry-core/internal/diagnosis/health-risk"
	symptomextraction "inquiry-core/internal/extraction/symptom-extraction"
	knowledgegraph "inquiry-core/internal/knowledge/knowledge-graph"
	"inquiry-core/internal/models"

	"github.com/google/uuid"
)

const ComponentName = "session-service"

// Dependencies are the collaborators of a Service. Graph, HealthRisk, Archive
// and Observability are optional.
type Dependencies struct {
	Store         Store
	Extractor     Extractor
	Flow          *flowcontroller.Controller
	Graph         GraphAnalyzer
	Diagnosis     Diagnoser
	HealthRisk    RiskAssessor
	Archive       Archive
	Observability *observability.Observability
}

// Service is the boundary of the inquiry core. Every operation that changes a
// session runs under the session's lock, so turns of one session never
// interleave.
type Service struct {
	config *Config
	deps   Dependencies
	logger logger.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(config *Config, deps Dependencies, log logger.Logger) (*Service, error) {
	if config == nil {
		config = LoadConfig()
	}
	switch {
	case deps.Store == nil:
		return nil, errors.NewValidationError("session store is required")
	case deps.Extractor == nil:
		return nil, errors.NewValidationError("symptom extractor is required")
	case deps.Flow == nil:
		return nil, errors.NewValidationError("flow controller is required")
	case deps.Diagnosis == nil:
		return nil, errors.NewValidationError("diagnosis handler is required")
	}
	return &Service{
		config: config,
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": ComponentName}),
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// StartSession validates the request, opens a session in ChiefComplaint and
// returns its first questions. A chief complaint in the initial data is
// extracted into the profile straight away and screened for emergencies, so a
// session can open directly in Emergency.
func (s *Service) StartSession(ctx context.Context, req *StartRequest) (*StartResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.NewValidationError("start request is required")
	}
	result, err := startSchema.Validate(req)
	if err != nil {
		return nil, errors.NewProcessingError(ComponentName, err)
	}
	if !result.Valid {
		return nil, errors.NewValidationError(result.Summary())
	}

	id := s.newID()
	ic, err := s.deps.Flow.Start(id, strings.TrimSpace(req.PatientID), req.Patient, req.InitialData)
	if err != nil {
		return nil, err
	}
	if complaint := strings.TrimSpace(req.InitialData[flowcontroller.DataChiefComplaint]); complaint != "" {
		x, _ := s.extract(ctx, ic, complaint, flowcontroller.AnswerText)
		for _, sym := range x.Symptoms {
			ic.Profile.Upsert(sym)
		}
		if _, err := s.deps.Flow.Screen(ctx, ic, complaint, &flowcontroller.Extraction{
			Symptoms:       x.Symptoms,
			ProfileUpdates: x.ProfileUpdates,
		}); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	sess := &Session{ID: id, Inquiry: ic, CreatedAt: now, UpdatedAt: now}
	if err := s.deps.Store.Put(ctx, sess); err != nil {
		return nil, err
	}
	metrics.ActiveSessions.Inc()

	s.logger.Info("session started", map[string]interface{}{
		"sessionId": id,
		"patientId": ic.PatientID,
		"stage":     ic.Stage,
		"symptoms":  ic.Profile.Len(),
		"emergency": ic.EmergencyDetected,
	})
	return &StartResult{
		SessionID:         id,
		Stage:             ic.Stage,
		Questions:         s.deps.Flow.NextQuestions(ic, 0),
		Decision:          ic.LastDecision,
		EmergencyDetected: ic.EmergencyDetected,
		CreatedAt:         now,
	}, nil
}

// SubmitAnswer processes one patient answer. Extraction runs under the turn
// timeout and degrades to an empty result; a rejected answer leaves the
// stored session untouched.
func (s *Service) SubmitAnswer(ctx context.Context, sessionID, questionID, answer string) (*TurnResult, error) {
	start := time.Now()
	unlock, err := s.deps.Store.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Closed {
		return nil, errors.NewSessionClosedError(sessionID)
	}
	ic := sess.Inquiry

	template, ok := s.deps.Flow.Template(questionID)
	if !ok {
		return nil, errors.NewQuestionNotFoundError(questionID)
	}
	if strings.TrimSpace(answer) == "" {
		return nil, errors.NewInvalidAnswerError(questionID, "answer is empty")
	}

	x, degraded := s.extract(ctx, ic, answer, template.AnswerType)
	decision, err := s.deps.Flow.ProcessAnswer(ctx, ic, flowcontroller.Turn{
		QuestionID: questionID,
		Answer:     answer,
		Confidence: x.Confidence,
		Extraction: &flowcontroller.Extraction{
			Symptoms:        x.Symptoms,
			ProfileUpdates:  x.ProfileUpdates,
			NegatedSymptoms: x.NegatedSymptoms,
		},
	})
	if err != nil {
		return nil, err
	}

	sess.UpdatedAt = s.now().UTC()
	if err := s.deps.Store.Put(ctx, sess); err != nil {
		return nil, err
	}

	s.deps.Observability.RecordTurnProcessed(ctx, string(decision.Kind))
	s.deps.Observability.RecordTurnDuration(ctx, time.Since(start), string(decision.Kind))

	contributed := append(append([]models.Symptom{}, x.Symptoms...), x.ProfileUpdates...)
	return &TurnResult{
		SessionID:          sessionID,
		Decision:           decision,
		Stage:              ic.Stage,
		Questions:          s.deps.Flow.NextQuestions(ic, 0),
		Symptoms:           contributed,
		NegatedSymptoms:    x.NegatedSymptoms,
		ExtractionDegraded: degraded,
		EmergencyDetected:  ic.EmergencyDetected,
		Concluded:          ic.Concluded,
	}, nil
}

// NextQuestions returns up to limit questions for the current stage. limit <= 0
// uses the controller default and larger values are capped.
func (s *Service) NextQuestions(ctx context.Context, sessionID string, limit int) ([]flowcontroller.Question, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Closed {
		return nil, errors.NewSessionClosedError(sessionID)
	}
	if limit > s.config.MaxQuestions {
		limit = s.config.MaxQuestions
	}
	return s.deps.Flow.NextQuestions(sess.Inquiry, limit), nil
}

// GenerateDiagnosis assesses the session's symptom profile. A failing
// knowledge graph leaves the rule-based assessment in place and flags the
// report; archive failures are logged only.
func (s *Service) GenerateDiagnosis(ctx context.Context, sessionID string) (*DiagnosisReport, error) {
	unlock, err := s.deps.Store.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ic := sess.Inquiry
	symptoms := ic.Profile.List()

	out, err := s.deps.Diagnosis.Execute(ctx, &diagnosticreasoning.Input{
		PatientID: ic.PatientID,
		Symptoms:  symptoms,
		Patient:   ic.Patient,
	})
	if err != nil {
		return nil, err
	}

	report := &DiagnosisReport{
		SessionID:         sessionID,
		Stage:             ic.Stage,
		Assessment:        out.Assessment,
		Syndromes:         []knowledgegraph.Candidate{},
		Remedies:          []knowledgegraph.Remedy{},
		EmergencyDetected: ic.EmergencyDetected,
	}
	s.applyGraph(ctx, report, symptoms, ic.Patient)
	s.applyHealthRisk(ctx, report, ic, symptoms)

	if s.deps.Archive != nil {
		actx, cancel := context.WithTimeout(ctx, s.config.ArchiveTimeout)
		if err := s.deps.Archive.SaveAssessment(actx, sessionID, out.Assessment); err != nil {
			s.logger.Warn("assessment archive failed", map[string]interface{}{
				"sessionId":    sessionID,
				"assessmentId": out.Assessment.ID,
				"error":        err.Error(),
			})
		}
		cancel()
	}

	sess.LastAssessmentID = out.Assessment.ID
	sess.UpdatedAt = s.now().UTC()
	if err := s.deps.Store.Put(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("diagnosis generated", map[string]interface{}{
		"sessionId":        sessionID,
		"assessmentId":     out.Assessment.ID,
		"differentials":    len(out.Assessment.Differentials),
		"syndromes":        len(report.Syndromes),
		"graphUnavailable": report.GraphUnavailable,
		"healthRisk":       report.HealthRisk != nil,
	})
	return report, nil
}

// applyHealthRisk attaches the risk assessment. A failing assessor leaves the
// report without one.
func (s *Service) applyHealthRisk(ctx context.Context, report *DiagnosisReport, ic *flowcontroller.InquiryContext, symptoms []models.Symptom) {
	if s.deps.HealthRisk == nil {
		return
	}
	out, err := s.deps.HealthRisk.Execute(ctx, &healthrisk.Input{
		Symptoms:    symptoms,
		Patient:     ic.Patient,
		RiskFactors: ic.RiskFactors,
	})
	if err != nil {
		s.logger.Warn("health risk assessment failed", map[string]interface{}{
			"sessionId": report.SessionID,
			"error":     err.Error(),
		})
		return
	}
	report.HealthRisk = out.Assessment
}

func (s *Service) applyGraph(ctx context.Context, report *DiagnosisReport, symptoms []models.Symptom, patient *models.PatientContext) {
	if s.deps.Graph == nil {
		report.GraphUnavailable = true
		return
	}
	gctx, cancel := context.WithTimeout(ctx, s.config.GraphTimeout)
	defer cancel()

	out, err := s.deps.Graph.Execute(gctx, &knowledgegraph.Input{Symptoms: symptoms, Patient: patient})
	if err != nil {
		report.GraphUnavailable = true
		s.logger.Warn("knowledge graph unavailable, reporting rule-based assessment only", map[string]interface{}{
			"sessionId": report.SessionID,
			"error":     err.Error(),
		})
		return
	}
	if out.Candidates != nil {
		report.Syndromes = out.Candidates
	}
	if out.Remedies != nil {
		report.Remedies = out.Remedies
	}
	report.Constitutions = out.Constitutions
	report.TreatmentPrinciples = out.TreatmentPrinciples
}

// EndSession closes the session, archives its summary and returns it. A
// closed session stays readable until its TTL runs out.
func (s *Service) EndSession(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	unlock, err := s.deps.Store.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Closed {
		return nil, errors.NewSessionClosedError(sessionID)
	}

	now := s.now().UTC()
	summary := s.summarize(sess, now)

	sess.Closed = true
	sess.UpdatedAt = now
	if err := s.deps.Store.Put(ctx, sess); err != nil {
		return nil, err
	}
	metrics.ActiveSessions.Dec()

	if s.deps.Archive != nil {
		actx, cancel := context.WithTimeout(ctx, s.config.ArchiveTimeout)
		if err := s.deps.Archive.SaveSummary(actx, summary); err != nil {
			s.logger.Warn("session archive failed", map[string]interface{}{
				"sessionId": sessionID,
				"error":     err.Error(),
			})
		}
		cancel()
	}

	s.logger.Info("session ended", map[string]interface{}{
		"sessionId": sessionID,
		"stage":     summary.FinalStage,
		"answers":   summary.QuestionsAnswered,
		"emergency": summary.EmergencyDetected,
	})
	return summary, nil
}

func (s *Service) summarize(sess *Session, endedAt time.Time) *models.SessionSummary {
	ic := sess.Inquiry
	fs := s.deps.Flow.Summary(ic)
	history := make([]string, len(fs.StageHistory))
	for i, e := range fs.StageHistory {
		history[i] = string(e.Stage)
	}
	return &models.SessionSummary{
		SessionID:         sess.ID,
		PatientID:         ic.PatientID,
		FinalStage:        string(fs.Stage),
		StageHistory:      history,
		QuestionsAnswered: fs.AnsweredQuestions,
		Symptoms:          fs.Symptoms,
		RiskFactors:       fs.RiskFactors,
		AverageConfidence: fs.AverageConfidence,
		EmergencyDetected: fs.EmergencyDetected,
		AssessmentID:      sess.LastAssessmentID,
		Patient:           ic.Patient,
		StartedAt:         ic.StartedAt,
		EndedAt:           endedAt,
	}
}

// load reads a session and checks that its stored state is usable.
func (s *Service) load(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.NewValidationError("sessionId is required")
	}
	sess, err := s.deps.Store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Inquiry == nil {
		return nil, errors.NewProcessingError(ComponentName, fmt.Errorf("session %s has no inquiry state", sessionID))
	}
	if _, err := flowcontroller.ParseStage(string(sess.Inquiry.Stage)); err != nil {
		return nil, errors.NewProcessingError(ComponentName, err)
	}
	if sess.Inquiry.Profile == nil {
		sess.Inquiry.Profile = models.NewSymptomProfile()
	}
	return sess, nil
}

type extraction struct {
	out *symptomextraction.Output
	err error
}

// extract runs the symptom extractor under the turn timeout. A failure, a
// panic or the timeout yields an empty extraction reported as degraded.
func (s *Service) extract(ctx context.Context, ic *flowcontroller.InquiryContext, text, answerType string) (*symptomextraction.Output, bool) {
	xctx, cancel := context.WithTimeout(ctx, s.config.TurnTimeout)
	defer cancel()

	input := &symptomextraction.Input{
		Text:         text,
		Profile:      ic.Profile.Clone(),
		FocusSymptom: ic.BranchFocus,
		AnswerType:   answerType,
	}
	done := make(chan extraction, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- extraction{err: fmt.Errorf("extractor panic: %v", r)}
			}
		}()
		out, err := s.deps.Extractor.Execute(xctx, input)
		done <- extraction{out: out, err: err}
	}()

	var res extraction
	select {
	case res = <-done:
	case <-xctx.Done():
		res.err = xctx.Err()
	}
	if res.err == nil && res.out != nil {
		return res.out, len(res.out.Degraded) > 0
	}

	reason := "empty result"
	if res.err != nil {
		reason = res.err.Error()
	}
	metrics.ExtractorFailures.WithLabelValues("turn", failureReason(res.err)).Inc()
	s.logger.Warn("symptom extraction failed, continuing without it", map[string]interface{}{
		"sessionId": ic.SessionID,
		"stage":     ic.Stage,
		"error":     reason,
	})
	return &symptomextraction.Output{
		Symptoms:        []models.Symptom{},
		BodyLocations:   []models.BodyLocation{},
		TemporalFactors: []models.TemporalFactor{},
	}, true
}

func failureReason(err error) string {
	switch {
	case err == nil:
		return "empty"
	case stderrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "error"
}
