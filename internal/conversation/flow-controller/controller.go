package flowcontroller

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	"inquiry-core/internal/common/metrics"
	"inquiry-core/internal/models"
)

const ComponentName = "flow-controller"

// Controller drives the staged inquiry. It keeps no per-session state: every
// call operates on the InquiryContext it is given, which the caller must own
// exclusively for the duration of the call.
type Controller struct {
	config    *Config
	templates []QuestionTemplate
	byID      map[string]QuestionTemplate
	rules     map[Stage][]Rule
	detector  EmergencyDetector
	logger    logger.Logger
	now       func() time.Time
}

// NewController validates the templates; nil templates use DefaultTemplates.
func NewController(config *Config, templates []QuestionTemplate, log logger.Logger) (*Controller, error) {
	if config == nil {
		config = LoadConfig()
	}
	if templates == nil {
		templates = DefaultTemplates()
	}
	if err := ValidateTemplates(templates); err != nil {
		return nil, err
	}

	byID := make(map[string]QuestionTemplate, len(templates))
	for _, t := range templates {
		byID[t.ID] = t
	}
	rules := make(map[Stage][]Rule)
	for stage, list := range DefaultRules(config) {
		rules[stage] = sortedRules(list)
	}

	return &Controller{
		config:    config,
		templates: templates,
		byID:      byID,
		rules:     rules,
		detector:  NewKeywordDetector(config.EmergencyKeywords, config.EmergencySeverity),
		logger:    log.WithFields(map[string]interface{}{"component": ComponentName}),
		now:       time.Now,
	}, nil
}

func (c *Controller) WithDetector(d EmergencyDetector) *Controller {
	c.detector = d
	return c
}

// WithRules replaces the transition rules of one stage.
func (c *Controller) WithRules(stage Stage, rules []Rule) *Controller {
	c.rules[stage] = sortedRules(rules)
	return c
}

func (c *Controller) Template(id string) (QuestionTemplate, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// Start creates the context of a new session and moves it into ChiefComplaint.
func (c *Controller) Start(sessionID, patientID string, patient *models.PatientContext, initial map[string]string) (*InquiryContext, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.NewValidationError("sessionId is required")
	}
	now := c.now().UTC()
	ic := &InquiryContext{
		SessionID:   sessionID,
		PatientID:   patientID,
		Patient:     patient,
		Collected:   make(map[string]string, len(initial)),
		Profile:     models.NewSymptomProfile(),
		RiskFactors: []string{},
		Answers:     []AnswerRecord{},
		StartedAt:   now,
		UpdatedAt:   now,
	}
	for k, v := range initial {
		ic.Collected[k] = v
	}
	ic.enter(StageInitialization, now)

	decision := c.decide(ic, c.completion(ic, nil))
	c.execute(ic, &decision, now)
	c.skipEmptyStages(ic, &decision, now)
	c.finish(ic, StageInitialization, &decision)
	return ic, nil
}

// ProcessAnswer records one answer and decides how the conversation moves on.
// Emergency detection runs on the raw answer before it is checked against the
// template, so a keyword inside an otherwise invalid answer still escalates and
// the answer is recorded. Any other invalid input is rejected before anything
// is recorded. A failing detector escalates.
func (c *Controller) ProcessAnswer(ctx context.Context, ic *InquiryContext, turn Turn) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ic == nil {
		return nil, errors.NewValidationError("inquiry context is required")
	}
	if strings.TrimSpace(turn.QuestionID) == "" {
		return nil, errors.NewValidationError("questionId is required")
	}
	template, ok := c.byID[turn.QuestionID]
	if !ok {
		return nil, errors.NewQuestionNotFoundError(turn.QuestionID)
	}
	answer := strings.TrimSpace(turn.Answer)
	if answer == "" {
		return nil, errors.NewInvalidAnswerError(turn.QuestionID, "answer is empty")
	}

	observed := observedSeverities(ic, template, answer, turn.Extraction)
	sig, detectErr := detectSafely(ctx, c.detector, answer, observed)
	if !sig.Triggered {
		if err := admit(ic, template, answer); err != nil {
			return nil, err
		}
	}

	if ic.Profile == nil {
		ic.Profile = models.NewSymptomProfile()
	}
	if ic.Collected == nil {
		ic.Collected = make(map[string]string)
	}

	now := c.now().UTC()
	stage := ic.Stage
	newSymptoms := c.record(ic, template, answer, turn, now)

	var decision Decision
	switch {
	case sig.Triggered:
		decision = c.emergency(ic, sig, detectErr)
	case stage.Absorbing():
		decision = Decision{
			Kind:       EmergencyProtocol,
			NextStage:  StageEmergency,
			Reasoning:  "紧急处理流程进行中",
			Confidence: 1.0,
		}
	default:
		decision = c.decide(ic, c.completion(ic, newSymptoms))
	}

	c.execute(ic, &decision, now)
	c.skipEmptyStages(ic, &decision, now)
	c.finish(ic, stage, &decision)
	return &decision, nil
}

// Screen runs emergency detection over text that did not answer a question,
// such as the chief complaint supplied when a session opens. A hit moves the
// conversation into Emergency and returns the decision; otherwise the context
// is left alone and the decision is nil.
func (c *Controller) Screen(ctx context.Context, ic *InquiryContext, text string, x *Extraction) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ic == nil {
		return nil, errors.NewValidationError("inquiry context is required")
	}
	var observed []models.Symptom
	if x != nil {
		observed = append(observed, x.Symptoms...)
		observed = append(observed, x.ProfileUpdates...)
	}
	sig, detectErr := detectSafely(ctx, c.detector, strings.TrimSpace(text), observed)
	if !sig.Triggered {
		return nil, nil
	}

	now := c.now().UTC()
	stage := ic.Stage
	decision := c.emergency(ic, sig, detectErr)
	c.execute(ic, &decision, now)
	c.finish(ic, stage, &decision)
	return &decision, nil
}

// admit checks that the answer fits the current stage and the template's
// validation rules. Outside the questioning stages any known question is
// accepted and only recorded.
func admit(ic *InquiryContext, t QuestionTemplate, answer string) error {
	if ic.Stage.Questioning() && t.Stage != ic.Stage {
		return errors.NewInvalidAnswerError(t.ID, fmt.Sprintf("question belongs to stage %s, not %s", t.Stage, ic.Stage))
	}
	if err := validateAnswer(t, answer); err != nil {
		return errors.NewInvalidAnswerError(t.ID, err.Error())
	}
	return nil
}

// record stores the answer and folds the extraction into the profile. It
// returns the symptoms first mentioned in this turn.
func (c *Controller) record(ic *InquiryContext, t QuestionTemplate, answer string, turn Turn, now time.Time) []string {
	confidence := turn.Confidence
	if confidence <= 0 {
		confidence = c.config.DefaultAnswerConfidence
	}
	ic.Answers = append(ic.Answers, AnswerRecord{
		QuestionID: t.ID,
		Stage:      ic.Stage,
		Answer:     answer,
		Confidence: math.Min(1, confidence),
		AnsweredAt: now,
	})
	ic.StageAnswers++

	if t.Collects != "" {
		if prev := ic.Collected[t.Collects]; prev != "" && prev != answer {
			ic.Collected[t.Collects] = prev + "；" + answer
		} else {
			ic.Collected[t.Collects] = answer
		}
	}

	var added []string
	if x := turn.Extraction; x != nil {
		for _, s := range x.Symptoms {
			if ic.Profile.Upsert(s) {
				added = append(added, s.Name)
			}
		}
		for _, s := range x.ProfileUpdates {
			if ic.Profile.Upsert(s) {
				added = append(added, s.Name)
			}
		}
	}
	ic.RiskFactors = models.UnionStrings(ic.RiskFactors, identifyRiskFactors(answer))
	return added
}

// observedSeverities gathers the severities reported in this turn, including
// a number given to a scale question when it lies within the scale.
func observedSeverities(ic *InquiryContext, t QuestionTemplate, answer string, x *Extraction) []models.Symptom {
	var observed []models.Symptom
	if x != nil {
		observed = append(observed, x.Symptoms...)
		observed = append(observed, x.ProfileUpdates...)
	}
	if t.AnswerType == AnswerScale && validateAnswer(t, answer) == nil {
		if v, ok := leadingNumber(answer); ok {
			name := ic.BranchFocus
			if main, found := ic.Profile.Main(); name == "" && found {
				name = main.Name
			}
			observed = append(observed, models.Symptom{Name: name, Severity: v})
		}
	}
	return observed
}

func (c *Controller) emergency(ic *InquiryContext, sig EmergencySignal, detectErr error) Decision {
	metrics.EmergencyTriggers.WithLabelValues(sig.Source).Inc()
	fields := map[string]interface{}{
		"sessionId": ic.SessionID,
		"stage":     ic.Stage,
		"source":    sig.Source,
		"trigger":   sig.Trigger,
	}
	reasoning := "检测到紧急情况，启动紧急处理流程"
	if detectErr != nil {
		fields["error"] = detectErr.Error()
		reasoning = "紧急情况检测失败，按紧急情况处理"
	}
	c.logger.Warn("emergency protocol triggered", fields)

	return Decision{
		Kind:       EmergencyProtocol,
		NextStage:  StageEmergency,
		Reasoning:  reasoning,
		Confidence: 1.0,
		Metadata: map[string]string{
			MetaEmergencySource: sig.Source,
			MetaEmergencyMatch:  sig.Trigger,
		},
	}
}

func (c *Controller) completion(ic *InquiryContext, newSymptoms []string) StageCompletion {
	return StageCompletion{
		Adequacy:          adequacy(ic),
		AnsweredInStage:   ic.StageAnswers,
		MaxQuestions:      c.config.maxQuestions(ic.Stage),
		AverageConfidence: ic.AverageConfidence(),
		NewSymptoms:       newSymptoms,
	}
}

// decide runs the stage rules in order. A failing rule ends evaluation with
// ContinueCurrent so a broken rule cannot wedge the session.
func (c *Controller) decide(ic *InquiryContext, sc StageCompletion) Decision {
	for _, rule := range c.rules[ic.Stage] {
		ok, err := evaluateRule(rule, ic, sc)
		if err != nil {
			flowErr := errors.NewFlowDecisionError(string(ic.Stage), fmt.Errorf("rule %s: %w", rule.Name, err))
			c.logger.Warn("flow rule failed", map[string]interface{}{
				"sessionId": ic.SessionID,
				"stage":     ic.Stage,
				"rule":      rule.Name,
				"error":     flowErr.Error(),
			})
			d := continueCurrent(ic, "流程规则执行失败，继续当前阶段")
			d.Metadata = map[string]string{MetaRule: rule.Name, MetaError: err.Error()}
			return d
		}
		if ok {
			return rule.Decide(ic, sc)
		}
	}
	return continueCurrent(ic, "继续当前阶段收集信息")
}

func evaluateRule(rule Rule, ic *InquiryContext, sc StageCompletion) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("panic: %v", r)
		}
	}()
	if rule.Condition == nil || rule.Decide == nil {
		return false, fmt.Errorf("rule is incomplete")
	}
	return rule.Condition(ic, sc)
}

func (c *Controller) execute(ic *InquiryContext, d *Decision, now time.Time) {
	switch d.Kind {
	case AdvanceStage:
		if d.NextStage != "" && d.NextStage != ic.Stage {
			ic.enter(d.NextStage, now)
		}
	case BranchExploration:
		ic.BranchFocus = d.Metadata[MetaBranchFocus]
	case EmergencyProtocol:
		ic.EmergencyDetected = true
		if ic.Stage != StageEmergency {
			ic.enter(StageEmergency, now)
		}
	case ConcludeInquiry:
		ic.Concluded = true
		if ic.Stage != StageConclusion {
			ic.enter(StageConclusion, now)
		}
	case ContinueCurrent:
	}
	ic.UpdatedAt = now
}

// skipEmptyStages moves past questioning stages that have no question whose
// conditions hold, so the conversation never waits on a question it will not
// offer. Running out of stages concludes the inquiry.
func (c *Controller) skipEmptyStages(ic *InquiryContext, d *Decision, now time.Time) {
	var skipped []string
	for ic.Stage.Questioning() && !c.hasQuestions(ic) {
		next, _ := ic.Stage.Next()
		skipped = append(skipped, string(ic.Stage))
		ic.enter(next, now)
	}
	if len(skipped) == 0 {
		return
	}

	if d.Kind == ContinueCurrent {
		d.Reasoning = "当前阶段没有可提问的问题，进入下一阶段"
		d.Confidence = 0.6
	}
	d.Kind = AdvanceStage
	if ic.Stage == StageConclusion {
		d.Kind = ConcludeInquiry
		ic.Concluded = true
	}
	d.NextStage = ic.Stage
	if d.Metadata == nil {
		d.Metadata = make(map[string]string)
	}
	d.Metadata[MetaSkippedStages] = strings.Join(skipped, ",")

	c.logger.Debug("skipped stages without questions", map[string]interface{}{
		"sessionId": ic.SessionID,
		"skipped":   skipped,
		"stage":     ic.Stage,
	})
}

// finish fills the decision's next questions, stores it on the context and
// records the metric under the stage the decision was taken in.
func (c *Controller) finish(ic *InquiryContext, stage Stage, d *Decision) {
	d.NextQuestions = []string{}
	for _, q := range c.NextQuestions(ic, c.config.QuestionsPerTurn) {
		d.NextQuestions = append(d.NextQuestions, q.ID)
	}
	ic.LastDecision = d

	metrics.FlowDecisions.WithLabelValues(string(stage), string(d.Kind)).Inc()
	c.logger.Info("flow decision", map[string]interface{}{
		"sessionId":  ic.SessionID,
		"stage":      stage,
		"nextStage":  ic.Stage,
		"decision":   d.Kind,
		"confidence": d.Confidence,
	})
}

// Summary reports the state of a conversation.
func (c *Controller) Summary(ic *InquiryContext) Summary {
	keys := make([]string, 0, len(ic.Collected))
	for k, v := range ic.Collected {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	history := make([]StageEntry, len(ic.StageHistory))
	copy(history, ic.StageHistory)
	return Summary{
		SessionID:         ic.SessionID,
		PatientID:         ic.PatientID,
		Stage:             ic.Stage,
		AnsweredQuestions: ic.AnsweredCount(),
		CollectedKeys:     keys,
		SymptomCount:      ic.Profile.Len(),
		Symptoms:          ic.Profile.List(),
		RiskFactors:       append([]string{}, ic.RiskFactors...),
		StageHistory:      history,
		AverageConfidence: math.Round(ic.AverageConfidence()*1000) / 1000,
		EmergencyDetected: ic.EmergencyDetected,
	}
}
