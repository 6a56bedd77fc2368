package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/54b3r/ragchat-go/internal/budget"
	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/store"
)

// Stage is a step of the ask state machine.
type Stage string

// Ask stages in execution order. A failing stage jumps straight to
// StageResponding with an error.
const (
	StageIdle           Stage = "idle"
	StageEmbedding      Stage = "embedding"
	StageRetrieving     Stage = "retrieving"
	StagePromptBuilding Stage = "prompt_building"
	StageGenerating     Stage = "generating"
	StageResponding     Stage = "responding"
)

// AskRequest is one user message.
type AskRequest struct {
	// SessionID selects the conversation. Empty starts a new one.
	SessionID string
	// Message is the user's question.
	Message string
}

// Source identifies a retrieved chunk used for an answer.
type Source struct {
	Source string
	Seq    int
	Score  float32
}

// Answer is the reply to an AskRequest.
type Answer struct {
	// SessionID is the conversation the turn was recorded in.
	SessionID string
	// Response is the generated text.
	Response string
	// Sources lists the retrieved chunks, best first.
	Sources []Source
}

// StageError reports the stage an ask failed in. It unwraps to the typed
// component error.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return "orchestrator: " + string(e.Stage) + ": " + e.Err.Error() }

// Unwrap returns the component error.
func (e *StageError) Unwrap() error { return e.Err }

// Ask answers req. An empty message is rejected with ErrValidation before
// any backend is called. Every remote call is bounded by its client's
// timeout; failures come back typed so the caller can show
// rag.UserMessage(err) and report rag.CodeOf(err).
func (o *Orchestrator) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	log := logging.FromContextOr(ctx, o.log)
	question := strings.TrimSpace(req.Message)
	if question == "" {
		o.metrics.askTotal.WithLabelValues(rag.KindValidation.Code()).Inc()
		return nil, rag.E(rag.KindValidation, "orchestrator.ask", "Please enter a question.", nil)
	}
	session := req.SessionID
	if session == "" {
		session = uuid.NewString()
	}
	log = log.With(slog.String("session_id", session))

	run := &askRun{o: o, log: log, stage: StageIdle, started: time.Now()}
	answer, err := run.execute(ctx, session, question)
	run.enter(StageResponding)

	if err != nil {
		o.metrics.askTotal.WithLabelValues(rag.CodeOf(err)).Inc()
		o.logFailure("orchestrator: ask failed", err, slog.String("session_id", session), slog.String("stage", string(run.failed)))
		return nil, &StageError{Stage: run.failed, Err: err}
	}
	o.metrics.askTotal.WithLabelValues("ok").Inc()
	log.Info("orchestrator: ask complete",
		slog.Int("sources", len(answer.Sources)),
		slog.Duration("duration", time.Since(run.started)),
	)
	return answer, nil
}

// askRun tracks the stage timings of a single ask.
type askRun struct {
	o       *Orchestrator
	log     *slog.Logger
	stage   Stage
	failed  Stage
	started time.Time
	since   time.Time
}

// enter closes the current stage and starts next.
func (r *askRun) enter(next Stage) {
	now := time.Now()
	if r.stage != StageIdle {
		d := now.Sub(r.since)
		r.o.metrics.stageDurationSeconds.WithLabelValues(string(r.stage)).Observe(d.Seconds())
		r.log.Debug("orchestrator: stage complete", slog.String("stage", string(r.stage)), slog.Duration("duration", d))
	}
	r.stage = next
	r.since = now
}

func (r *askRun) fail(err error) error {
	r.failed = r.stage
	return err
}

func (r *askRun) execute(ctx context.Context, session, question string) (*Answer, error) {
	o := r.o

	history, err := o.sessions.Window(ctx, session)
	if err != nil {
		r.log.Warn("orchestrator: failed to load history, continuing without it", slog.String("error", err.Error()))
		history = nil
	}

	var results []rag.Result
	if o.cfg.TopK > 0 {
		r.enter(StageEmbedding)
		vec, err := o.retriever.EmbedQuery(ctx, question)
		if err != nil {
			return nil, r.fail(err)
		}

		r.enter(StageRetrieving)
		results, err = o.search(ctx, vec)
		if err != nil {
			return nil, r.fail(err)
		}
	}

	r.enter(StagePromptBuilding)
	msgs, err := o.assemble(r.log, Prompt{
		System:    o.system,
		Context:   results,
		History:   history,
		Question:  question,
		Retrieval: o.cfg.TopK > 0,
	})
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageGenerating)
	reply, err := o.generator.Generate(ctx, msgs, o.cfg.Generation)
	if err != nil {
		return nil, r.fail(err)
	}

	now := time.Now()
	if err := o.sessions.Append(ctx, session,
		store.Turn{Role: store.RoleUser, Content: question, CreatedAt: now},
		store.Turn{Role: store.RoleAssistant, Content: reply, CreatedAt: now},
	); err != nil {
		r.log.Warn("orchestrator: failed to record turn", slog.String("error", err.Error()))
	}

	answer := &Answer{SessionID: session, Response: reply}
	for _, res := range results {
		answer.Sources = append(answer.Sources, Source{Source: res.Chunk.Source, Seq: res.Chunk.Seq, Score: res.Score})
	}
	return answer, nil
}

// assemble renders p and trims its history to the token budget.
func (o *Orchestrator) assemble(log *slog.Logger, p Prompt) ([]*schema.Message, error) {
	msgs, err := p.Messages()
	if err != nil {
		return nil, err
	}
	system, user := msgs[0], msgs[len(msgs)-1]
	history := msgs[1 : len(msgs)-1]

	fixed := []*schema.Message{system, user}
	trimmed := budget.TrimHistory(fixed, history, o.cfg.MaxContextTokens)
	if dropped := len(history) - len(trimmed); dropped > 0 {
		log.Warn("budget: dropped history messages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(trimmed)),
			slog.Int("max_tokens", o.cfg.MaxContextTokens),
		)
	}
	if over := budget.EstimateMessages(fixed); over > o.cfg.MaxContextTokens {
		log.Warn("budget: prompt exceeds context window without history",
			slog.Int("estimated_tokens", over),
			slog.Int("max_tokens", o.cfg.MaxContextTokens),
		)
	}
	out := make([]*schema.Message, 0, len(trimmed)+2)
	out = append(out, system)
	out = append(out, trimmed...)
	out = append(out, user)
	return out, nil
}
