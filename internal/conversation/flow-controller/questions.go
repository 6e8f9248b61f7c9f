package flowcontroller

import (
	"sort"
	"strings"
)

const (
	hintElderly    = "可由家属协助回答"
	hintPaediatric = "请由家长或监护人代为回答"
)

type rankedTemplate struct {
	template QuestionTemplate
	score    float64
}

// NextQuestions returns up to limit unanswered questions of the current stage
// whose conditions hold, best first. When every such question has been
// answered the stage's questions are offered again, so the patient can add
// detail until the stage cap moves the conversation on. limit <= 0 uses
// QuestionsPerTurn.
func (c *Controller) NextQuestions(ic *InquiryContext, limit int) []Question {
	out := []Question{}
	if ic == nil || !ic.Stage.Questioning() {
		return out
	}
	if limit <= 0 {
		limit = c.config.QuestionsPerTurn
	}

	ranked := c.rank(ic, false)
	if len(ranked) == 0 {
		ranked = c.rank(ic, true)
	}
	for _, r := range ranked {
		if len(out) == limit {
			break
		}
		out = append(out, c.render(ic, r))
	}
	return out
}

func (c *Controller) rank(ic *InquiryContext, includeAnswered bool) []rankedTemplate {
	var ranked []rankedTemplate
	for _, t := range c.templates {
		if t.Stage != ic.Stage || !conditionsHold(ic, t) {
			continue
		}
		if !includeAnswered && ic.Answered(t.ID) {
			continue
		}
		base, _ := t.Priority.baseScore()
		ranked = append(ranked, rankedTemplate{template: t, score: base + c.relevance(ic, t)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	return ranked
}

// hasQuestions reports whether the current stage has any question whose
// conditions hold, answered or not.
func (c *Controller) hasQuestions(ic *InquiryContext) bool {
	for _, t := range c.templates {
		if t.Stage == ic.Stage && conditionsHold(ic, t) {
			return true
		}
	}
	return false
}

func conditionsHold(ic *InquiryContext, t QuestionTemplate) bool {
	for _, cond := range t.Conditions {
		var ok bool
		switch cond {
		case CondHasSymptom, CondMainSymptom:
			ok = ic.Profile.Len() > 0
		case CondBranchActive:
			ok = ic.BranchFocus != ""
		case CondFemale:
			ok = ic.Patient.IsFemale()
		case CondPregnancyAge:
			ok = ic.Patient.IsFemale() && ic.Patient.Age >= 15 && ic.Patient.Age <= 50
		case CondElderly:
			ok = ic.Patient != nil && ic.Patient.Age > 65
		}
		if !ok {
			return false
		}
	}
	return true
}

// relevance is the contextual bonus added to a template's priority base.
func (c *Controller) relevance(ic *InquiryContext, t QuestionTemplate) float64 {
	score := 0.0
	for _, key := range requiredData(t.Stage) {
		if ic.Collected[key] != "" {
			score += 10
			break
		}
	}
	if ic.Profile.Len() > 0 {
		score += 5
	}
	if ic.BranchFocus != "" && t.hasTag("branch") {
		score += 15
	}
	if c.config.PersonalizationEnabled && ic.Patient != nil {
		if ic.Patient.Age > 65 && t.hasTag("elderly") {
			score += 10
		}
		if ic.Patient.IsFemale() && ic.Patient.Age >= 15 && ic.Patient.Age <= 50 && t.hasTag("reproductive") {
			score += 10
		}
	}
	return score
}

func (c *Controller) render(ic *InquiryContext, r rankedTemplate) Question {
	t := r.template
	main := "症状"
	if s, ok := ic.Profile.Main(); ok {
		main = s.Name
	}
	focus := ic.BranchFocus
	if focus == "" {
		focus = main
	}
	text := strings.NewReplacer("{main_symptom}", main, "{branch_symptom}", focus).Replace(t.Text)

	q := Question{
		ID:         t.ID,
		Text:       text,
		Stage:      t.Stage,
		Priority:   t.Priority,
		AnswerType: t.AnswerType,
		Validation: t.Validation,
		Score:      r.score,
	}
	if c.config.PersonalizationEnabled && ic.Patient != nil && ic.Patient.Age > 0 {
		switch {
		case ic.Patient.Age < 14:
			q.Text = strings.NewReplacer("您的", "孩子的", "您", "孩子").Replace(q.Text)
			q.Hint = hintPaediatric
		case ic.Patient.Age > 65:
			q.Hint = hintElderly
		}
	}
	return q
}
