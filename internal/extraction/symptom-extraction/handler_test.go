package symptomextraction

import (
	"context"
	"fmt"
	"testing"
	"time"

	"inquiry-core/internal/common/logger"
	durationextraction "inquiry-core/internal/extraction/duration-extraction"
	negationdetection "inquiry-core/internal/extraction/negation-detection"
	severityanalysis "inquiry-core/internal/extraction/severity-analysis"
	"inquiry-core/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) *Handler {
	return NewHandler(LoadConfig(), logger.NewTestLogger(t))
}

type panicSeverity struct{}

func (panicSeverity) Execute(context.Context, *severityanalysis.Input) (*severityanalysis.Output, error) {
	panic("lexicon corrupted")
}

type blockingDuration struct{}

func (blockingDuration) Execute(ctx context.Context, _ *durationextraction.Input) (*durationextraction.Output, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingNegation struct{}

func (failingNegation) Execute(context.Context, *negationdetection.Input) (*negationdetection.Output, error) {
	return nil, fmt.Errorf("negation lexicon unavailable")
}

// ==========================
// Mentions
// ==========================

func TestHandler_Execute_SingleMention(t *testing.T) {
	out, err := newTestHandler(t).Execute(context.Background(), &Input{Text: "头痛三天了，很严重"})
	require.NoError(t, err)

	require.Len(t, out.Symptoms, 1)
	s := out.Symptoms[0]
	assert.Equal(t, "头痛", s.Name)
	assert.Equal(t, models.SeveritySevere, s.SeverityLevel)
	assert.Equal(t, 9.1, s.Severity)
	assert.Equal(t, 3.0, s.DurationDays)
	assert.Equal(t, "头", s.BodyLocation)
	assert.Equal(t, "头痛三天了，很严重", s.Context)
	assert.Equal(t, 0.8, s.Confidence)

	require.Len(t, out.BodyLocations, 1)
	assert.Equal(t, models.BodyLocation{Name: "头", Side: SideCentral, Symptoms: []string{"头痛"}}, out.BodyLocations[0])
	assert.Empty(t, out.TemporalFactors)
	assert.Equal(t, 0.65, out.Confidence)
	assert.Empty(t, out.Degraded)
}

func TestHandler_Execute_NegatedMentionDropped(t *testing.T) {
	out, err := newTestHandler(t).Execute(context.Background(), &Input{Text: "头痛，没有发烧"})
	require.NoError(t, err)

	require.Len(t, out.Symptoms, 1)
	assert.Equal(t, "头痛", out.Symptoms[0].Name)
	assert.Empty(t, out.Symptoms[0].Accompanying)
	assert.Equal(t, []string{"发热"}, out.NegatedSymptoms)
}

func TestHandler_Execute_RepeatedMentionsMerge(t *testing.T) {
	out, err := newTestHandler(t).Execute(context.Background(), &Input{Text: "头痛，头疼得很厉害"})
	require.NoError(t, err)

	require.Len(t, out.Symptoms, 1)
	assert.Equal(t, "头痛", out.Symptoms[0].Name)
	assert.Equal(t, models.SeveritySevere, out.Symptoms[0].SeverityLevel)
}

func TestHandler_Execute_UnrecognisedInput(t *testing.T) {
	h := newTestHandler(t)
	for _, text := range []string{"", "   ", "今天天气不错"} {
		out, err := h.Execute(context.Background(), &Input{Text: text})
		require.NoError(t, err, text)
		assert.True(t, out.Empty(), text)
		assert.Zero(t, out.Confidence, text)
		assert.NotNil(t, out.Symptoms)
	}
}

// ==========================
// Focus symptom updates
// ==========================

func TestHandler_Execute_DurationAnswerUpdatesFocus(t *testing.T) {
	out, err := newTestHandler(t).Execute(context.Background(), &Input{
		Text:         "大概两周了",
		FocusSymptom: "头痛",
		AnswerType:   AnswerTypeDuration,
	})
	require.NoError(t, err)

	assert.Empty(t, out.Symptoms)
	require.Len(t, out.ProfileUpdates, 1)
	assert.Equal(t, "头痛", out.ProfileUpdates[0].Name)
	assert.Equal(t, 14.0, out.ProfileUpdates[0].DurationDays)
	assert.Equal(t, 0.54, out.Confidence)
}

func TestHandler_Execute_ScaleAnswerUsesProfileMain(t *testing.T) {
	profile := models.NewSymptomProfile()
	profile.Upsert(models.Symptom{Name: "胸闷"})

	out, err := newTestHandler(t).Execute(context.Background(), &Input{
		Text:       "8",
		Profile:    profile,
		AnswerType: AnswerTypeScale,
	})
	require.NoError(t, err)

	require.Len(t, out.ProfileUpdates, 1)
	u := out.ProfileUpdates[0]
	assert.Equal(t, "胸闷", u.Name)
	assert.Equal(t, 8.0, u.Severity)
	assert.Equal(t, models.SeveritySevere, u.SeverityLevel)
	assert.Equal(t, 0.95, u.Confidence)
}

func TestHandler_Execute_NoFocusUpdateWithoutInformation(t *testing.T) {
	out, err := newTestHandler(t).Execute(context.Background(), &Input{Text: "不知道", FocusSymptom: "头痛"})
	require.NoError(t, err)
	assert.Empty(t, out.ProfileUpdates)
}

// ==========================
// Locations and temporal factors
// ==========================

func TestHandler_Execute_BodyLocationSide(t *testing.T) {
	out, err := newTestHandler(t).Execute(context.Background(), &Input{Text: "左腰疼"})
	require.NoError(t, err)

	require.Len(t, out.Symptoms, 1)
	assert.Equal(t, "腰痛", out.Symptoms[0].Name)
	require.Len(t, out.BodyLocations, 1)
	assert.Equal(t, SideLeft, out.BodyLocations[0].Side)
	assert.Equal(t, []string{"腰痛"}, out.BodyLocations[0].Symptoms)
}

func TestHandler_Execute_NegatedMentionHasNoLocation(t *testing.T) {
	out, err := newTestHandler(t).Execute(context.Background(), &Input{Text: "没有胸痛"})
	require.NoError(t, err)
	assert.Empty(t, out.Symptoms)
	assert.Empty(t, out.BodyLocations)
}

func TestHandler_Execute_TemporalFactors(t *testing.T) {
	out, err := newTestHandler(t).Execute(context.Background(), &Input{Text: "晚上经常咳嗽"})
	require.NoError(t, err)

	require.Len(t, out.TemporalFactors, 2)
	assert.Equal(t, "diurnal", out.TemporalFactors[0].Type)
	assert.Equal(t, "frequency", out.TemporalFactors[1].Type)
	assert.Equal(t, []string{"咳嗽"}, out.TemporalFactors[0].Symptoms)
	assert.Equal(t, 0.875, out.Confidence)
}

// ==========================
// Partial failure tolerance
// ==========================

func TestHandler_Execute_AnalyzerFailuresDegrade(t *testing.T) {
	cfg := LoadConfig()
	cfg.AnalyzerTimeout = 50 * time.Millisecond
	h := NewHandler(cfg, logger.NewTestLogger(t))
	h.severity = panicSeverity{}
	h.duration = blockingDuration{}

	out, err := h.Execute(context.Background(), &Input{Text: "头痛三天，很严重"})
	require.NoError(t, err)

	require.Len(t, out.Symptoms, 1)
	s := out.Symptoms[0]
	assert.Equal(t, "头痛", s.Name)
	assert.Equal(t, models.SeverityUnknown, s.SeverityLevel)
	assert.Zero(t, s.DurationDays)
	assert.Equal(t, 0.6, s.Confidence)
	assert.Equal(t, []string{durationextraction.AnalyzerName, severityanalysis.AnalyzerName}, out.Degraded)
}

func TestHandler_Execute_NegationFailureKeepsMention(t *testing.T) {
	h := newTestHandler(t)
	h.negation = failingNegation{}

	out, err := h.Execute(context.Background(), &Input{Text: "没有发烧"})
	require.NoError(t, err)
	require.Len(t, out.Symptoms, 1)
	assert.Equal(t, "发热", out.Symptoms[0].Name)
	assert.Equal(t, []string{negationdetection.AnalyzerName}, out.Degraded)
}

func TestHandler_Execute_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestHandler(t).Execute(ctx, &Input{Text: "头痛"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCanonical(t *testing.T) {
	name, ok := Canonical("拉肚子")
	require.True(t, ok)
	assert.Equal(t, "腹泻", name)

	_, ok = Canonical("头发")
	assert.False(t, ok)
}
