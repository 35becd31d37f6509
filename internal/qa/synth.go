package qa

import (
	"context"

	"github.com/sells-group/opslens/internal/model"
)

const (
	confidenceFloor      = 0.2
	confidenceSpan       = 0.7
	confidenceUnconfig   = 0.15
	confidenceUnknownCap = 0.25
)

// Input is everything a synthesizer may use for one answer.
type Input struct {
	Question  string
	Intent    model.QuestionIntent
	Project   model.ProjectConfig
	Selection Selection
	// History holds earlier turns of the operator, oldest first.
	History []model.ConversationTurn
}

// Output is a synthesized answer before it is recorded.
type Output struct {
	Text     string
	Sources  []string
	Strategy model.AnswerStrategy
}

// Synthesizer turns selected data into answer text.
type Synthesizer interface {
	Synthesize(ctx context.Context, in Input) (Output, error)
}

// Confidence derives the answer confidence from the share of required
// sections that carried data. Unknown intents are capped low.
func Confidence(intent model.IntentCategory, sel Selection) float64 {
	n := len(sel.Required)
	c := confidenceUnconfig
	if n > 0 {
		c = confidenceFloor + confidenceSpan*float64(sel.OK())/float64(n)
	}
	if intent == model.IntentUnknown && c > confidenceUnknownCap {
		c = confidenceUnknownCap
	}
	return c
}

func sources(sel Selection) []string {
	out := []string{}
	for _, d := range sel.Required {
		if d.State == SectionOK {
			out = append(out, string(d.Section))
		}
	}
	return out
}
