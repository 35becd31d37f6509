// Package qa answers operator questions about a project snapshot. A request
// moves through classification, data selection, synthesis and recording.
package qa

import (
	"sort"
	"strings"
	"unicode"

	"github.com/sells-group/opslens/internal/model"
)

// categoryOrder breaks score ties: earlier categories win.
var categoryOrder = []model.IntentCategory{
	model.IntentCost,
	model.IntentServiceHealth,
	model.IntentActivity,
	model.IntentTeam,
	model.IntentProjectMeta,
}

var keywords = map[model.IntentCategory][]string{
	model.IntentCost: {
		"cost", "costs", "spend", "spending", "spent", "budget", "bill", "billing",
		"expensive", "cheap", "optimize", "optimise", "savings", "save", "money",
		"price", "pricing", "invoice", "aws", "openai", "tokens", "dollars", "recommendations",
	},
	model.IntentServiceHealth: {
		"status", "health", "healthy", "working", "broken", "down", "outage",
		"deploy", "deploys", "deployment", "deployments", "railway", "failing",
		"failed", "errors", "uptime", "problem", "problems",
	},
	model.IntentActivity: {
		"activity", "commit", "commits", "pr", "prs", "pull request", "pull requests",
		"github", "jira", "issue", "issues", "ticket", "tickets", "velocity",
		"resolved", "sprint", "repo", "repos", "repository", "merged", "progress",
	},
	model.IntentTeam: {
		"team", "developer", "developers", "engineer", "engineers", "staff",
		"people", "roles", "role", "headcount", "team size", "who",
	},
	model.IntentProjectMeta: {
		"project", "client", "engagement", "assignment", "burn rate", "burn",
		"tech", "technology", "tech stack", "stack", "framework", "language",
		"languages", "about", "overview",
	},
}

// intentSections lists the snapshot sections each intent draws on.
var intentSections = map[model.IntentCategory][]model.Section{
	model.IntentCost:          {model.SectionAWS, model.SectionInsights, model.SectionOpenAI},
	model.IntentProjectMeta:   {model.SectionProject},
	model.IntentTeam:          {model.SectionProject, model.SectionGitHub},
	model.IntentServiceHealth: {model.SectionGitHub, model.SectionJira, model.SectionAWS, model.SectionRailway, model.SectionOpenAI},
	model.IntentActivity:      {model.SectionGitHub, model.SectionJira},
	model.IntentUnknown:       nil,
}

// Classifier maps a question onto the closed intent taxonomy by keyword
// hits. It is deterministic and safe for concurrent use.
type Classifier struct {
	keywords map[model.IntentCategory][]string
}

// NewClassifier creates a Classifier with the built-in keyword table.
func NewClassifier() *Classifier {
	return &Classifier{keywords: keywords}
}

// Classify scores each category by its number of distinct keyword hits.
// The highest score wins, ties go to the earlier category in categoryOrder,
// and a question with no hits is unknown.
func (c *Classifier) Classify(question string) model.QuestionIntent {
	text := " " + normalize(question) + " "

	best := model.IntentUnknown
	bestScore := 0
	var bestHits []string
	for _, cat := range categoryOrder {
		var hits []string
		for _, kw := range c.keywords[cat] {
			if strings.Contains(text, " "+kw+" ") {
				hits = append(hits, kw)
			}
		}
		if len(hits) > bestScore {
			best, bestScore, bestHits = cat, len(hits), hits
		}
	}

	sort.Strings(bestHits)
	return model.QuestionIntent{
		Category: best,
		Sections: append([]model.Section(nil), intentSections[best]...),
		Keywords: bestHits,
	}
}

// normalize lowercases the question and collapses everything that is not a
// letter or digit into single spaces.
func normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
