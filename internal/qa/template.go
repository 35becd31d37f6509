package qa

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/opslens/internal/model"
)

var sectionTitles = map[model.Section]string{
	model.SectionProject:  "Project details",
	model.SectionGitHub:   "GitHub",
	model.SectionJira:     "Jira",
	model.SectionAWS:      "AWS",
	model.SectionRailway:  "Railway",
	model.SectionOpenAI:   "OpenAI",
	model.SectionInsights: "AWS cost insights",
}

func title(sec model.Section) string {
	if t, ok := sectionTitles[sec]; ok {
		return t
	}
	return string(sec)
}

// TemplateSynthesizer renders answers from fixed templates. It never fails
// and is the fallback for every other strategy.
type TemplateSynthesizer struct{}

// NewTemplateSynthesizer creates a TemplateSynthesizer.
func NewTemplateSynthesizer() *TemplateSynthesizer {
	return &TemplateSynthesizer{}
}

// titleCase builds a fresh Caser per call; Casers keep state and must not
// be shared between goroutines.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func (t *TemplateSynthesizer) Synthesize(_ context.Context, in Input) (Output, error) {
	return Output{
		Text:     t.Render(in),
		Sources:  sources(in.Selection),
		Strategy: model.StrategyTemplate,
	}, nil
}

// Render builds the answer text. It is exported so other strategies can
// reuse the section summaries as grounding context.
func (t *TemplateSynthesizer) Render(in Input) string {
	sel := in.Selection
	if in.Intent.Category == model.IntentUnknown {
		return t.unknown(in)
	}
	if len(sel.Required) == 0 {
		return notConfigured(sel.Missing)
	}

	var b strings.Builder
	if sel.OK() == 0 {
		b.WriteString("I don't have enough data to answer that right now.")
		for _, d := range sel.Required {
			b.WriteString("\n• ")
			b.WriteString(failureLine(d))
		}
	} else {
		first := true
		for _, d := range sel.Required {
			line := t.section(in, d)
			if line == "" {
				continue
			}
			if !first {
				b.WriteString("\n")
			}
			b.WriteString(line)
			first = false
		}
	}
	if len(sel.Missing) > 0 {
		b.WriteString("\n")
		b.WriteString(notConfigured(sel.Missing))
	}
	return b.String()
}

func (t *TemplateSynthesizer) unknown(in Input) string {
	var b strings.Builder
	b.WriteString("I'm not sure what you're asking. I can answer questions about costs, service health, GitHub and Jira activity, the team, and project details.")
	p := in.Project
	if p.ID != "" {
		fmt.Fprintf(&b, "\n%s is %s", projectName(p), titleCase(string(orActive(p.Status))))
		if enabled := p.EnabledPlatforms(); len(enabled) > 0 {
			names := make([]string, 0, len(enabled))
			for _, pl := range enabled {
				names = append(names, title(model.Section(pl)))
			}
			fmt.Fprintf(&b, " with %s connected.", joinAnd(names))
		} else {
			b.WriteString(" with no platforms connected.")
		}
	}
	return b.String()
}

func (t *TemplateSynthesizer) section(in Input, d SectionData) string {
	if d.State != SectionOK {
		return failureLine(d)
	}
	switch d.Section {
	case model.SectionProject:
		p, _ := d.Payload.(model.ProjectConfig)
		if in.Intent.Category == model.IntentTeam {
			return teamLine(p)
		}
		return t.projectLine(p)
	case model.SectionGitHub:
		if g, ok := d.Payload.(model.GitHubActivity); ok {
			return githubLine(g, in.Intent.Category == model.IntentTeam)
		}
	case model.SectionJira:
		if j, ok := d.Payload.(model.JiraActivity); ok {
			return jiraLine(j)
		}
	case model.SectionRailway:
		if r, ok := d.Payload.(model.RailwayStatus); ok {
			return railwayLine(r)
		}
	case model.SectionOpenAI:
		if u, ok := d.Payload.(model.OpenAIUsage); ok {
			return openAILine(u)
		}
	case model.SectionAWS:
		if r, ok := d.Payload.(model.AWSReport); ok {
			return awsLine(r, in.Intent.Category)
		}
	case model.SectionInsights:
		if ins, ok := d.Payload.(*model.CostInsights); ok {
			return t.insightsLine(ins)
		}
	}
	return fmt.Sprintf("%s: data is available but could not be summarized.", title(d.Section))
}

func failureLine(d SectionData) string {
	if d.Failure == nil {
		return fmt.Sprintf("%s data is unavailable.", title(d.Section))
	}
	return fmt.Sprintf("%s data is unavailable (%s: %s).", title(d.Section), d.Failure.Kind, d.Failure.Message)
}

func notConfigured(missing []model.Section) string {
	if len(missing) == 0 {
		return "Nothing needed for that question is configured for this project."
	}
	names := make([]string, 0, len(missing))
	for _, m := range missing {
		names = append(names, title(m))
	}
	verb := "is"
	if len(names) > 1 {
		verb = "are"
	}
	return fmt.Sprintf("%s %s not configured for this project.", joinAnd(names), verb)
}

func (t *TemplateSynthesizer) projectLine(p model.ProjectConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", projectName(p))
	if p.Client != "" {
		fmt.Fprintf(&b, " for %s", p.Client)
	}
	fmt.Fprintf(&b, " is %s.", titleCase(string(orActive(p.Status))))
	if !p.MonthlyBurnRate.IsZero() {
		fmt.Fprintf(&b, " Monthly burn rate: $%s.", p.MonthlyBurnRate.StringFixed(2))
	}
	if len(p.Team.TechStack) > 0 {
		fmt.Fprintf(&b, " Tech stack: %s.", strings.Join(p.Team.TechStack, ", "))
	}
	return b.String()
}

func teamLine(p model.ProjectConfig) string {
	if p.Team.Size == 0 && len(p.Team.Roles) == 0 {
		return fmt.Sprintf("No team details are recorded for %s.", projectName(p))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s has a team of %d", projectName(p), p.Team.Size)
	if len(p.Team.Roles) > 0 {
		roles := append([]string(nil), p.Team.Roles...)
		sort.Strings(roles)
		fmt.Fprintf(&b, " (%s)", strings.Join(roles, ", "))
	}
	b.WriteString(".")
	return b.String()
}

func githubLine(g model.GitHubActivity, brief bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "GitHub (%s): %d commits and %d pull requests across %d repos in the last 30 days; %d open issues.",
		g.Org, g.TotalCommits, g.TotalPRs, len(g.Repos), g.TotalOpenIssues)
	repos := append([]model.RepoActivity(nil), g.Repos...)
	sort.SliceStable(repos, func(i, j int) bool { return repos[i].Commits > repos[j].Commits })
	if len(repos) > 3 {
		repos = repos[:3]
	}
	if len(repos) > 0 && !brief {
		parts := make([]string, 0, len(repos))
		for _, r := range repos {
			parts = append(parts, fmt.Sprintf("%s (%d commits, %d open PRs)", r.Name, r.Commits, r.OpenPRs))
		}
		fmt.Fprintf(&b, " Most active: %s.", strings.Join(parts, ", "))
	}
	return b.String()
}

func jiraLine(j model.JiraActivity) string {
	name := j.ProjectKey
	if j.ProjectName != "" {
		name = fmt.Sprintf("%s (%s)", j.ProjectName, j.ProjectKey)
	}
	return fmt.Sprintf("Jira %s: %d issues created and %d resolved in the last 30 days (%.1f%% resolution rate); %d open.",
		name, j.Created30d, j.Resolved30d, j.ResolutionRate, j.Open)
}

func railwayLine(r model.RailwayStatus) string {
	name := r.ProjectName
	if name == "" {
		name = r.ProjectID
	}
	if r.Deployments == 0 {
		return fmt.Sprintf("Railway %s: no recent deployments.", name)
	}
	line := fmt.Sprintf("Railway %s: %d of %d recent deployments succeeded (%.1f%%).", name, r.Successful, r.Deployments, r.SuccessRate)
	if r.LastStatus != "" {
		line += " Last deployment: " + r.LastStatus
		if r.LastDeployedAt != nil {
			line += " at " + r.LastDeployedAt.UTC().Format(time.RFC822)
		}
		line += "."
	}
	return line
}

func openAILine(u model.OpenAIUsage) string {
	return fmt.Sprintf("OpenAI: $%s since %s across %d requests (%d tokens).",
		u.Cost.StringFixed(2), u.PeriodStart.UTC().Format("Jan 2"), u.Requests, u.TotalTokens())
}

func awsLine(r model.AWSReport, intent model.IntentCategory) string {
	if intent == model.IntentCost {
		return ""
	}
	listed, failed := 0, 0
	for _, cat := range model.ResourceCategories {
		res, ok := r.Resources[cat]
		if !ok {
			continue
		}
		if res.Status == model.StatusOK {
			listed += len(res.Entries)
		} else {
			failed++
		}
	}
	line := fmt.Sprintf("AWS (%s): responding, %d resources listed.", r.Region, listed)
	if failed > 0 {
		line += fmt.Sprintf(" %d resource categories could not be listed.", failed)
	}
	return line
}

func (t *TemplateSynthesizer) insightsLine(ins *model.CostInsights) string {
	var b strings.Builder
	fmt.Fprintf(&b, "AWS costs for the last %d days: $%s (daily average $%s). Trend: %s",
		ins.Days, ins.Total.StringFixed(2), ins.Trend.DailyAverage.StringFixed(2), titleCase(string(ins.Trend.Direction)))
	if !ins.Trend.PriorWeek.IsZero() {
		fmt.Fprintf(&b, " (%s%% week over week)", ins.Trend.ChangePct.StringFixed(1))
	}
	b.WriteString(".")
	if len(ins.TopServices) > 0 {
		parts := make([]string, 0, len(ins.TopServices))
		for _, s := range ins.TopServices {
			parts = append(parts, fmt.Sprintf("%s $%s", s.Service, s.Amount.StringFixed(2)))
		}
		fmt.Fprintf(&b, "\nTop services: %s.", strings.Join(parts, ", "))
	}
	for _, g := range ins.Inventory {
		if !g.Available {
			fmt.Fprintf(&b, "\n%s.", g.Placeholder)
		}
	}
	recs := ins.Recommendations
	if len(recs) > 3 {
		recs = recs[:3]
	}
	if len(recs) > 0 {
		b.WriteString("\nRecommendations:")
		for _, r := range recs {
			fmt.Fprintf(&b, "\n• %s", r.Text)
		}
	}
	return b.String()
}

func projectName(p model.ProjectConfig) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

func orActive(s model.ProjectStatus) model.ProjectStatus {
	if s == "" {
		return model.ProjectActive
	}
	return s
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
