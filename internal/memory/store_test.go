package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSummarizer struct {
	summary string
	err     error
	prompt  string
}

func (s *stubSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	s.prompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.summary, nil
}

func newTestStore(t *testing.T, maxChars int, summarizer Summarizer) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(
		filepath.Join(dir, "notepad.md"),
		filepath.Join(dir, "thinking.md"),
		maxChars,
		summarizer,
		zap.NewNop(),
		WithClock(func() time.Time {
			return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		}),
	)
	require.NoError(t, err)
	return store
}

func TestNewStoreSeedsNotepad(t *testing.T) {
	store := newTestStore(t, 10000, nil)

	content, err := store.ReadNotepad()
	require.NoError(t, err)
	assert.Contains(t, content, "# Pokémon Red Game Progress")
	assert.Contains(t, content, "## Current Objectives")
	assert.Contains(t, content, "## Current Location")
	assert.Contains(t, content, "## Game Progress")
	assert.Contains(t, content, "## Items")
	assert.Contains(t, content, "## Pokémon Team")
}

func TestNewStoreKeepsExistingNotepad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notepad.md")
	require.NoError(t, os.WriteFile(path, []byte("existing notes"), 0o644))

	store, err := NewStore(path, "", 10000, nil, zap.NewNop())
	require.NoError(t, err)

	content, err := store.ReadNotepad()
	require.NoError(t, err)
	assert.Equal(t, "existing notes", content)
}

func TestAppendAddsTimestampedUpdate(t *testing.T) {
	store := newTestStore(t, 10000, nil)

	require.NoError(t, store.Append(context.Background(), "found a Potion"))

	content, err := store.ReadNotepad()
	require.NoError(t, err)
	assert.Contains(t, content, "## Update 2026-08-30 12:00:00")
	assert.Contains(t, content, "found a Potion")
}

func TestAppendTriggersSummarization(t *testing.T) {
	summarizer := &stubSummarizer{summary: "- everything is fine"}
	store := newTestStore(t, 200, summarizer)

	require.NoError(t, store.Append(context.Background(), strings.Repeat("x", 300)))

	content, err := store.ReadNotepad()
	require.NoError(t, err)
	assert.Contains(t, content, "# Pokémon Game AI Notepad (Summarized)")
	assert.Contains(t, content, "Last summarized: 2026-08-30 12:00:00")
	assert.Contains(t, content, "- everything is fine")
	assert.Contains(t, summarizer.prompt, "Here are the notes to summarize")
}

func TestSummarizationFailureKeepsContent(t *testing.T) {
	summarizer := &stubSummarizer{err: errors.New("provider down")}
	store := newTestStore(t, 200, summarizer)

	require.NoError(t, store.Append(context.Background(), strings.Repeat("x", 300)))

	content, err := store.ReadNotepad()
	require.NoError(t, err)
	assert.NotContains(t, content, "(Summarized)")
	assert.Contains(t, content, strings.Repeat("x", 300))
}

func TestSummarizationEmptyResultKeepsContent(t *testing.T) {
	summarizer := &stubSummarizer{summary: ""}
	store := newTestStore(t, 200, summarizer)

	require.NoError(t, store.Append(context.Background(), strings.Repeat("x", 300)))

	content, err := store.ReadNotepad()
	require.NoError(t, err)
	assert.NotContains(t, content, "(Summarized)")
}

func TestRecordActionRingCapacity(t *testing.T) {
	store := newTestStore(t, 10000, nil)

	for i := 0; i < RingCapacity+1; i++ {
		store.RecordAction(ActionRecord{
			Time:   time.Now(),
			Button: fmt.Sprintf("A%d", i),
		})
	}

	actions := store.RecentActions()
	require.Len(t, actions, RingCapacity)
	// Oldest entry was evicted.
	assert.Equal(t, "A1", actions[0].Button)
	assert.Equal(t, fmt.Sprintf("A%d", RingCapacity), actions[RingCapacity-1].Button)
}

func TestRecentActionsText(t *testing.T) {
	store := newTestStore(t, 10000, nil)
	assert.Equal(t, "No recent actions.", store.RecentActionsText())

	store.RecordAction(ActionRecord{
		Time:      time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC),
		Button:    "UP",
		Reasoning: "heading north to Route 1",
		Position:  &Position{Direction: "UP", X: 5, Y: 7, MapID: 0},
	})
	store.RecordAction(ActionRecord{
		Time:   time.Date(2026, 8, 30, 9, 30, 5, 0, time.UTC),
		Button: "A",
	})

	text := store.RecentActionsText()
	assert.Contains(t, text, "1. [09:30:00] Pressed UP while facing UP at position (5, 7) on map 0")
	assert.Contains(t, text, "Reasoning: heading north to Route 1")
	assert.Contains(t, text, "2. [09:30:05] Pressed A")
}

func TestAppendThinkingTrims(t *testing.T) {
	store := newTestStore(t, 600, nil)

	for i := 0; i < 40; i++ {
		require.NoError(t, store.AppendThinking(fmt.Sprintf("thought number %d", i)))
	}

	data, err := os.ReadFile(store.thinkingPath)
	require.NoError(t, err)
	content := string(data)

	assert.True(t, strings.HasPrefix(content, thinkingHeader))
	assert.NotContains(t, content, "thought number 0")
	assert.Contains(t, content, "thought number 39")
}
