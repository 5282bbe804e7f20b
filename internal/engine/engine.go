// Package engine runs the throttled, single-flight decision cycle: load the
// screenshot, assemble the prompt from memory and telemetry, call the LLM,
// and apply the resulting actions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chaiso-krit/LLM-Pokemon-Red/internal/llm"
	"github.com/chaiso-krit/LLM-Pokemon-Red/internal/memory"
)

// ErrScreenshotMissing reports a screenshot path the emulator sent but the
// engine cannot read. Recoverable; the session skips the reply.
var ErrScreenshotMissing = errors.New("screenshot not found")

// ErrDecisionInFlight reports a decision request that arrived while an
// earlier one was still being processed.
var ErrDecisionInFlight = errors.New("decision already in flight")

// ErrCooldownActive reports a decision trigger that arrived before the
// cooldown since the last successful decision elapsed.
var ErrCooldownActive = errors.New("decision cooldown active")

// SuggestionSource supplies optional chat suggestions for the prompt.
type SuggestionSource interface {
	Summary(n int) string
}

// Decision is the outcome of one cycle. Button is nil when the model pressed
// nothing, which is a normal pass.
type Decision struct {
	Button *llm.Button
	Text   string
}

// Engine coordinates one decision cycle at a time.
type Engine struct {
	client    *llm.Client
	store     *memory.Store
	chat      SuggestionSource
	cooldown  time.Duration
	maxTokens int
	logger    *zap.Logger
	now       func() time.Time

	mu           sync.Mutex
	deciding     bool
	lastDecision time.Time
	telemetry    *memory.Position
}

// Option configures an Engine.
type Option func(*Engine)

// WithSuggestionSource attaches a chat suggestion source.
func WithSuggestionSource(src SuggestionSource) Option {
	return func(e *Engine) { e.chat = src }
}

// WithMaxTokens overrides the per-decision token budget.
func WithMaxTokens(n int) Option {
	return func(e *Engine) { e.maxTokens = n }
}

// WithClock overrides the time source. Only for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(client *llm.Client, store *memory.Store, cooldown time.Duration, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		client:    client,
		store:     store,
		cooldown:  cooldown,
		maxTokens: 1024,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetTelemetry records the latest player position reported by the emulator.
func (e *Engine) SetTelemetry(pos memory.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.telemetry = &pos
}

// CooldownRemaining returns how long until the next decision is allowed.
func (e *Engine) CooldownRemaining() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastDecision.IsZero() {
		return 0
	}
	remaining := e.cooldown - e.now().Sub(e.lastDecision)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Busy reports whether a decision is currently in flight.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deciding
}

// Decide runs one decision cycle for the given screenshot. It is
// single-flight: a second call while one is running fails fast with
// ErrDecisionInFlight, and triggers inside the cooldown window fail fast
// with ErrCooldownActive. The last-decision timestamp advances only when
// the provider call succeeds.
func (e *Engine) Decide(ctx context.Context, screenshotPath string) (*Decision, error) {
	e.mu.Lock()
	if e.deciding {
		e.mu.Unlock()
		return nil, ErrDecisionInFlight
	}
	if !e.lastDecision.IsZero() && e.now().Sub(e.lastDecision) < e.cooldown {
		e.mu.Unlock()
		return nil, ErrCooldownActive
	}
	e.deciding = true
	pos := e.telemetry
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.deciding = false
		e.mu.Unlock()
	}()

	image, err := os.ReadFile(screenshotPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrScreenshotMissing, screenshotPath)
	}

	notepad, err := e.store.ReadNotepad()
	if err != nil {
		return nil, err
	}

	chatSummary := ""
	if e.chat != nil {
		chatSummary = e.chat.Summary(5)
	}

	prompt := buildPrompt(notepad, e.store.RecentActionsText(), pos, chatSummary)

	e.logger.Info("requesting decision", zap.String("screenshot", screenshotPath))

	text, actions, err := e.client.Decide(ctx, llm.Request{
		Prompt:    prompt,
		System:    systemInstruction,
		Images:    [][]byte{image},
		Tools:     llm.GameTools(),
		MaxTokens: e.maxTokens,
	})
	if err != nil {
		e.logger.Error("provider call failed", zap.Error(err))
		return nil, err
	}

	decision := e.apply(ctx, text, actions, pos)

	e.mu.Lock()
	e.lastDecision = e.now()
	e.mu.Unlock()

	return decision, nil
}

// apply walks the action list in order. The first press wins and any further
// presses are discarded; every notepad update is appended.
func (e *Engine) apply(ctx context.Context, text string, actions []llm.Action, pos *memory.Position) *Decision {
	decision := &Decision{Text: text}

	for _, action := range actions {
		switch action.Kind {
		case llm.ActionPress:
			if decision.Button != nil {
				e.logger.Warn("discarding extra button press",
					zap.String("button", string(action.Button)))
				continue
			}
			button := action.Button
			decision.Button = &button

			e.store.RecordAction(memory.ActionRecord{
				Time:      e.now(),
				Button:    string(button),
				Reasoning: text,
				Position:  pos,
			})
			e.logger.Info("model pressed button", zap.String("button", string(button)))

		case llm.ActionNote:
			if err := e.store.Append(ctx, action.Note); err != nil {
				e.logger.Error("failed to update notepad", zap.Error(err))
			}
		}
	}

	if decision.Button == nil {
		e.logger.Warn("no press_button tool call found")
	}

	if err := e.store.AppendThinking(text); err != nil {
		e.logger.Warn("failed to append thinking history", zap.Error(err))
	}
	return decision
}
