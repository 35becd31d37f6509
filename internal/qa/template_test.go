package qa

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/opslens/internal/model"
)

func inputFor(es *model.EnrichedSnapshot, question string) Input {
	intent := NewClassifier().Classify(question)
	return Input{
		Question:  question,
		Intent:    intent,
		Project:   es.Project,
		Selection: Select(es, intent),
	}
}

func TestSelect_OnlyIntentSections(t *testing.T) {
	sel := Select(fullSnapshot(), NewClassifier().Classify("how much did we spend"))
	require.Len(t, sel.Required, 3)
	assert.Equal(t, model.SectionAWS, sel.Required[0].Section)
	assert.Equal(t, model.SectionInsights, sel.Required[1].Section)
	assert.Equal(t, model.SectionOpenAI, sel.Required[2].Section)
	assert.Empty(t, sel.Missing)
	assert.Equal(t, 3, sel.OK())

	_, hasGitHub := sel.Find(model.SectionGitHub)
	assert.False(t, hasGitHub)
}

func TestSelect_DisabledIsMissingNotFailed(t *testing.T) {
	es := fullSnapshot()
	es.Project.Integrations.Jira.Enabled = false
	delete(es.Snapshot.Results, model.PlatformJira)

	sel := Select(es, NewClassifier().Classify("commits"))
	require.Len(t, sel.Required, 1)
	assert.Equal(t, model.SectionGitHub, sel.Required[0].Section)
	assert.Equal(t, []model.Section{model.SectionJira}, sel.Missing)
}

func TestSelect_FailedCarriesFailure(t *testing.T) {
	sel := Select(failedSnapshot(), NewClassifier().Classify("aws costs"))
	require.Len(t, sel.Required, 3)
	for _, d := range sel.Required {
		assert.Equal(t, SectionFailed, d.State)
		require.NotNil(t, d.Failure)
		assert.Equal(t, model.KindUnauthorized, d.Failure.Kind)
	}
}

func TestConfidence(t *testing.T) {
	ok := SectionData{State: SectionOK}
	bad := SectionData{State: SectionFailed}

	tests := []struct {
		name   string
		intent model.IntentCategory
		sel    Selection
		want   float64
	}{
		{"all ok", model.IntentCost, Selection{Required: []SectionData{ok, ok, ok}}, 0.9},
		{"all failed", model.IntentCost, Selection{Required: []SectionData{bad, bad}}, 0.2},
		{"half", model.IntentActivity, Selection{Required: []SectionData{ok, bad}}, 0.55},
		{"nothing configured", model.IntentActivity, Selection{Missing: []model.Section{model.SectionGitHub}}, 0.15},
		{"unknown capped", model.IntentUnknown, Selection{Required: []SectionData{ok}}, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Confidence(tt.intent, tt.sel), 1e-9)
		})
	}
}

func TestTemplate_Cost(t *testing.T) {
	out, err := NewTemplateSynthesizer().Synthesize(context.Background(), inputFor(fullSnapshot(), "what are our aws costs?"))
	require.NoError(t, err)
	assert.Equal(t, model.StrategyTemplate, out.Strategy)
	assert.Contains(t, out.Text, "AWS costs for the last 30 days: $51.00 (daily average $1.70). Trend: Decreasing (-25.0% week over week).")
	assert.Contains(t, out.Text, "Top services: Amazon Lightsail $30.60.")
	assert.Contains(t, out.Text, "Permission denied listing RDS databases")
	assert.Contains(t, out.Text, "• Release 1 unattached Elastic IP(s).")
	assert.Contains(t, out.Text, "OpenAI: $3.46 since Oct 1 across 120 requests (1500 tokens).")
	assert.NotContains(t, out.Text, "GitHub")
	assert.Equal(t, []string{"aws", "insights", "openai"}, out.Sources)
}

func TestTemplate_Activity(t *testing.T) {
	out, err := NewTemplateSynthesizer().Synthesize(context.Background(), inputFor(fullSnapshot(), "show me github activity"))
	require.NoError(t, err)
	assert.Contains(t, out.Text, "GitHub (acme): 52 commits and 9 pull requests across 2 repos in the last 30 days; 5 open issues.")
	assert.Contains(t, out.Text, "Most active: api (40 commits, 2 open PRs), web (12 commits, 1 open PRs).")
	assert.Contains(t, out.Text, "Jira Acme (ACME): 20 issues created and 15 resolved in the last 30 days (75.0% resolution rate); 7 open.")
}

func TestTemplate_HealthMixesOkAndFailed(t *testing.T) {
	es := fullSnapshot()
	es.Snapshot.Results[model.PlatformJira] = model.Failed(model.PlatformJira, model.KindTimeout, "jira did not respond within 30s")

	out, err := NewTemplateSynthesizer().Synthesize(context.Background(), inputFor(es, "is everything healthy?"))
	require.NoError(t, err)
	assert.Contains(t, out.Text, "Railway acme-api: 9 of 10 recent deployments succeeded (90.0%). Last deployment: SUCCESS")
	assert.Contains(t, out.Text, "Jira data is unavailable (timeout: jira did not respond within 30s).")
	assert.Contains(t, out.Text, "AWS (us-east-1): responding, 0 resources listed.")
	assert.NotContains(t, out.Sources, "jira")
}

func TestTemplate_TeamAndProject(t *testing.T) {
	synth := NewTemplateSynthesizer()

	team, _ := synth.Synthesize(context.Background(), inputFor(fullSnapshot(), "who is on the team?"))
	assert.Contains(t, team.Text, "Acme Portal has a team of 4 (backend, devops, frontend).")
	assert.NotContains(t, team.Text, "Most active")

	meta, _ := synth.Synthesize(context.Background(), inputFor(fullSnapshot(), "what is the burn rate?"))
	assert.Equal(t, "Acme Portal for Acme Corp is Active. Monthly burn rate: $42000.00. Tech stack: Go, React.", meta.Text)
}

func TestTemplate_InsufficientData(t *testing.T) {
	out, err := NewTemplateSynthesizer().Synthesize(context.Background(), inputFor(failedSnapshot(), "what did we spend?"))
	require.NoError(t, err)
	assert.Contains(t, out.Text, "I don't have enough data to answer that")
	assert.Contains(t, out.Text, "AWS data is unavailable (unauthorized: bad credentials).")
	assert.Empty(t, out.Sources)
}

func TestTemplate_NotConfigured(t *testing.T) {
	out, err := NewTemplateSynthesizer().Synthesize(context.Background(), inputFor(bareSnapshot(), "show me GitHub activity"))
	require.NoError(t, err)
	assert.Equal(t, "GitHub and Jira are not configured for this project.", out.Text)
}

func TestTemplate_Unknown(t *testing.T) {
	out, err := NewTemplateSynthesizer().Synthesize(context.Background(), inputFor(fullSnapshot(), "hello there"))
	require.NoError(t, err)
	assert.Contains(t, out.Text, "I'm not sure what you're asking.")
	assert.Contains(t, out.Text, "Acme Portal is Active with GitHub, Jira, AWS, Railway and OpenAI connected.")
}

func TestJoinAnd(t *testing.T) {
	assert.Equal(t, "", joinAnd(nil))
	assert.Equal(t, "a", joinAnd([]string{"a"}))
	assert.Equal(t, "a and b", joinAnd([]string{"a", "b"}))
	assert.Equal(t, "a, b and c", joinAnd([]string{"a", "b", "c"}))
}
