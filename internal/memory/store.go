// Package memory holds the agent's long-term notepad, the short-term action
// ring, and the thinking history. All state is serialized through one mutex.
package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RingCapacity bounds the short-term action ring.
const RingCapacity = 10

// thinkingKeepEntries is how many recent entries survive a thinking-history trim.
const thinkingKeepEntries = 20

const timestampLayout = "2006-01-02 15:04:05"

// Summarizer compacts notepad text. Satisfied by llm.Client.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Position is the player telemetry attached to an action, when known.
type Position struct {
	Direction string
	X, Y      int
	MapID     int
}

// ActionRecord is one entry in the short-term ring.
type ActionRecord struct {
	Time      time.Time
	Button    string
	Reasoning string
	Position  *Position
}

// Store owns the notepad file, the thinking history file, and the in-memory
// action ring.
type Store struct {
	notepadPath  string
	thinkingPath string
	maxChars     int
	summarizer   Summarizer
	logger       *zap.Logger

	mu      sync.Mutex
	actions []ActionRecord

	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source. Only for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store, creating parent directories and seeding the
// notepad skeleton on first run.
func NewStore(notepadPath, thinkingPath string, maxChars int, summarizer Summarizer, logger *zap.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		notepadPath:  notepadPath,
		thinkingPath: thinkingPath,
		maxChars:     maxChars,
		summarizer:   summarizer,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, path := range []string{notepadPath, thinkingPath} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	if err := s.initializeNotepad(); err != nil {
		return nil, err
	}
	return s, nil
}

// initializeNotepad seeds the notepad with the starting objectives if the
// file does not exist yet.
func (s *Store) initializeNotepad() error {
	if _, err := os.Stat(s.notepadPath); err == nil {
		return nil
	}
	timestamp := s.now().Format(timestampLayout)
	var b strings.Builder
	b.WriteString("# Pokémon Red Game Progress\n\n")
	b.WriteString("Game started: " + timestamp + "\n\n")
	b.WriteString("## Current Objectives\n- Find Professor Oak to get first Pokémon\n- Start Pokémon journey\n\n")
	b.WriteString("## Current Location\n- Starting in player's house in Pallet Town\n\n")
	b.WriteString("## Game Progress\n- Just beginning the adventure\n\n")
	b.WriteString("## Items\n- None yet\n\n")
	b.WriteString("## Pokémon Team\n- None yet\n\n")

	if err := os.WriteFile(s.notepadPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to initialize notepad: %w", err)
	}
	return nil
}

// ReadNotepad returns the current notepad content.
func (s *Store) ReadNotepad() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readNotepadLocked()
}

func (s *Store) readNotepadLocked() (string, error) {
	data, err := os.ReadFile(s.notepadPath)
	if err != nil {
		return "", fmt.Errorf("failed to read notepad: %w", err)
	}
	return string(data), nil
}

// Append adds a timestamped update to the notepad. When the notepad grows
// past the configured threshold, a summarization pass compacts it; a failed
// summarization leaves the current content untouched.
func (s *Store) Append(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readNotepadLocked()
	if err != nil {
		return err
	}

	timestamp := s.now().Format(timestampLayout)
	updated := current + fmt.Sprintf("\n## Update %s\n%s\n", timestamp, text)

	if err := os.WriteFile(s.notepadPath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("failed to write notepad: %w", err)
	}
	s.logger.Debug("notepad updated", zap.Int("size", len(updated)))

	if len(updated) > s.maxChars {
		s.summarizeLocked(ctx, updated)
	}
	return nil
}

// summarizeLocked compacts the notepad through the summarizer. Errors are
// logged and the notepad keeps its pre-compaction content.
func (s *Store) summarizeLocked(ctx context.Context, content string) {
	if s.summarizer == nil {
		return
	}
	s.logger.Info("notepad is getting large, summarizing", zap.Int("size", len(content)))

	prompt := `Please summarize the following game notes into a more concise format.
Maintain these key sections:
- Current Status
- Game Progress
- Important Items
- Pokemon Team
Remove redundant information while preserving all important game state details.
Format the response as a well-structured markdown document.
Here are the notes to summarize:

` + content

	summary, err := s.summarizer.Summarize(ctx, prompt)
	if err != nil {
		s.logger.Warn("notepad summarization failed, keeping current content", zap.Error(err))
		return
	}
	if summary == "" {
		s.logger.Warn("notepad summarization returned empty text, keeping current content")
		return
	}

	timestamp := s.now().Format(timestampLayout)
	replacement := "# Pokémon Game AI Notepad (Summarized)\n\n" +
		"Last summarized: " + timestamp + "\n\n" + summary

	if err := os.WriteFile(s.notepadPath, []byte(replacement), 0o644); err != nil {
		s.logger.Warn("failed to write summarized notepad", zap.Error(err))
		return
	}
	s.logger.Info("notepad summarized", zap.Int("size", len(replacement)))
}

// RecordAction pushes an action into the short-term ring, evicting the oldest
// entry when the ring is full.
func (s *Store) RecordAction(record ActionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, record)
	if len(s.actions) > RingCapacity {
		s.actions = s.actions[len(s.actions)-RingCapacity:]
	}
}

// RecentActions returns a copy of the ring, oldest first.
func (s *Store) RecentActions() []ActionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActionRecord, len(s.actions))
	copy(out, s.actions)
	return out
}

// RecentActionsText formats the ring for prompt inclusion.
func (s *Store) RecentActionsText() string {
	actions := s.RecentActions()
	if len(actions) == 0 {
		return "No recent actions."
	}

	var b strings.Builder
	b.WriteString("## Short-term Memory (Recent Actions and Reasoning):\n")
	for i, a := range actions {
		ts := a.Time.Format("15:04:05")
		if a.Position != nil {
			fmt.Fprintf(&b, "%d. [%s] Pressed %s while facing %s at position (%d, %d) on map %d\n",
				i+1, ts, a.Button, a.Position.Direction, a.Position.X, a.Position.Y, a.Position.MapID)
		} else {
			fmt.Fprintf(&b, "%d. [%s] Pressed %s\n", i+1, ts, a.Button)
		}
		if a.Reasoning != "" {
			fmt.Fprintf(&b, "   Reasoning: %s\n\n", strings.TrimSpace(a.Reasoning))
		}
	}
	return b.String()
}

const thinkingHeader = "# Thinking History\n\n"

// AppendThinking adds a timestamped entry to the thinking history file. When
// the file grows past the notepad threshold, only the most recent entries are
// kept under the header.
func (s *Store) AppendThinking(text string) error {
	if s.thinkingPath == "" || text == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current := ""
	if data, err := os.ReadFile(s.thinkingPath); err == nil {
		current = string(data)
	}
	if current == "" {
		current = thinkingHeader
	}

	timestamp := s.now().Format(timestampLayout)
	updated := current + fmt.Sprintf("## %s\n%s\n\n", timestamp, strings.TrimSpace(text))

	if len(updated) > s.maxChars {
		updated = trimThinking(updated)
	}

	if err := os.WriteFile(s.thinkingPath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("failed to write thinking history: %w", err)
	}
	return nil
}

// trimThinking keeps the header plus the most recent entries.
func trimThinking(content string) string {
	body := strings.TrimPrefix(content, thinkingHeader)
	entries := strings.Split(body, "## ")
	var kept []string
	for _, e := range entries {
		if strings.TrimSpace(e) != "" {
			kept = append(kept, e)
		}
	}
	if len(kept) > thinkingKeepEntries {
		kept = kept[len(kept)-thinkingKeepEntries:]
	}
	return thinkingHeader + "## " + strings.Join(kept, "## ")
}
