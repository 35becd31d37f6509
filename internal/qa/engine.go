package qa

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/opslens/internal/history"
	"github.com/sells-group/opslens/internal/model"
	"github.com/sells-group/opslens/internal/monitoring"
)

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = eris.New("qa: question is empty")

// contextWanter is implemented by synthesizers that use earlier turns.
type contextWanter interface {
	ContextTurns() int
}

// Engine runs the question pipeline and records every answer.
type Engine struct {
	classifier *Classifier
	synth      Synthesizer
	history    history.Store
	metrics    *monitoring.Metrics
	now        func() time.Time
}

// NewEngine creates an Engine. A nil synth uses the template strategy.
func NewEngine(synth Synthesizer, store history.Store, metrics *monitoring.Metrics) *Engine {
	if synth == nil {
		synth = NewTemplateSynthesizer()
	}
	return &Engine{
		classifier: NewClassifier(),
		synth:      synth,
		history:    store,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Ask answers a question about an enriched snapshot. It returns an error
// only for malformed requests; missing or failed data lowers confidence
// instead.
func (e *Engine) Ask(ctx context.Context, operatorID string, es *model.EnrichedSnapshot, question string) (*model.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if strings.TrimSpace(operatorID) == "" {
		return nil, history.ErrMissingOperator
	}
	if es == nil {
		es = &model.EnrichedSnapshot{}
	}
	log := zap.L().With(zap.String("operator_id", operatorID), zap.String("project_id", es.Project.ID))
	log.Debug("qa: received", zap.Int("length", len(question)))

	intent := e.classifier.Classify(question)
	log.Debug("qa: classified", zap.String("intent", string(intent.Category)), zap.Strings("keywords", intent.Keywords))

	sel := Select(es, intent)
	log.Debug("qa: data selected", zap.Int("required", len(sel.Required)), zap.Int("ok", sel.OK()), zap.Int("missing", len(sel.Missing)))

	in := Input{
		Question:  question,
		Intent:    intent,
		Project:   es.Project,
		Selection: sel,
		History:   e.recentTurns(ctx, operatorID, log),
	}
	out, err := e.synth.Synthesize(ctx, in)
	if err != nil || strings.TrimSpace(out.Text) == "" {
		log.Warn("qa: synthesizer failed, using template", zap.Error(err))
		out, _ = NewTemplateSynthesizer().Synthesize(ctx, in)
	}
	log.Debug("qa: synthesized", zap.String("strategy", string(out.Strategy)))

	ans := &model.Answer{
		Text:       out.Text,
		Confidence: Confidence(intent.Category, sel),
		Sources:    out.Sources,
		Intent:     intent.Category,
		Strategy:   out.Strategy,
		Timestamp:  e.now().UTC(),
	}

	turn := model.ConversationTurn{
		ID:         uuid.New().String(),
		Timestamp:  ans.Timestamp,
		OperatorID: operatorID,
		ProjectID:  es.Project.ID,
		Question:   question,
		Answer:     ans.Text,
		Confidence: ans.Confidence,
		Sources:    ans.Sources,
		Intent:     ans.Intent,
		Strategy:   ans.Strategy,
	}
	if e.history != nil {
		if err := e.history.Append(ctx, turn); err != nil {
			log.Error("qa: record turn failed", zap.Error(err))
		} else {
			log.Debug("qa: recorded", zap.String("turn_id", turn.ID))
		}
	}

	e.metrics.ObserveAnswer(ans.Intent, ans.Strategy)
	return ans, nil
}

// recentTurns loads the earlier turns the synthesizer asked for, oldest
// first. Failures are logged and yield no context.
func (e *Engine) recentTurns(ctx context.Context, operatorID string, log *zap.Logger) []model.ConversationTurn {
	cw, ok := e.synth.(contextWanter)
	if !ok || cw.ContextTurns() == 0 || e.history == nil {
		return nil
	}
	turns, err := e.history.History(ctx, operatorID, cw.ContextTurns())
	if err != nil {
		log.Warn("qa: load conversation context failed", zap.Error(err))
		return nil
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns
}
