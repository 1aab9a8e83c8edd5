package chat

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dino-runner/internal/domain"
)

func newTestLedger() *Ledger {
	now := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	return NewLedger(DefaultConfig(), func() time.Time { return now })
}

func TestPostRejectsBlankText(t *testing.T) {
	l := newTestLedger()
	for _, text := range []string{"", "  \t"} {
		_, ok := l.Post("a", "Rex", text)
		assert.False(t, ok)
	}
	assert.Equal(t, 0, l.Len())
}

func TestPostAssignsSequentialIDs(t *testing.T) {
	l := newTestLedger()

	m1, ok := l.Post("a", "Rex", "hello")
	require.True(t, ok)
	m2, _ := l.Post("b", "Blue", "hi")

	assert.Equal(t, int64(1), m1.ID)
	assert.Equal(t, int64(2), m2.ID)
	assert.Equal(t, domain.ConnID("a"), m1.SenderID)
	assert.Equal(t, "hello", m1.Text)
	assert.NotNil(t, m1.Reactions)
}

func TestPostCapsLengthsAndDefaultsName(t *testing.T) {
	l := newTestLedger()

	m, ok := l.Post("a", "", strings.Repeat("🦖", 150))
	require.True(t, ok)
	assert.Equal(t, DefaultSenderName, m.PlayerName)
	assert.Equal(t, 100, len([]rune(m.Text)))
}

func TestLedgerEvictsOldestBeyondLimit(t *testing.T) {
	l := newTestLedger()

	for i := 1; i <= 51; i++ {
		_, ok := l.Post("a", "Rex", fmt.Sprintf("msg %d", i))
		require.True(t, ok)
	}

	history := l.History()
	require.Len(t, history, 50)
	assert.Equal(t, int64(2), history[0].ID, "smallest id must be evicted")
	assert.Equal(t, int64(51), history[49].ID)

	_, ok := l.ToggleReaction(1, "🔥", "a")
	assert.False(t, ok, "evicted message is unknown")
}

func TestLedgerNeverExceedsLimit(t *testing.T) {
	l := NewLedger(Config{HistoryLimit: 5, Emojis: domain.DefaultEmojis}, nil)
	for i := 0; i < 40; i++ {
		l.Post("a", "Rex", "spam")
		assert.LessOrEqual(t, l.Len(), 5)
	}
	history := l.History()
	for i := 1; i < len(history); i++ {
		assert.Less(t, history[i-1].ID, history[i].ID)
	}
}

func TestToggleReactionIgnoresUnknowns(t *testing.T) {
	l := newTestLedger()
	m, _ := l.Post("a", "Rex", "hello")

	_, ok := l.ToggleReaction(m.ID+1, "🔥", "a")
	assert.False(t, ok)

	_, ok = l.ToggleReaction(m.ID, "💩", "a")
	assert.False(t, ok)
}

func TestToggleReactionScenario(t *testing.T) {
	l := newTestLedger()

	m, _ := l.Post("A", "Rex", "hello")
	require.Equal(t, int64(1), m.ID)

	reactions, ok := l.ToggleReaction(1, "🔥", "A")
	require.True(t, ok)
	assert.Equal(t, []domain.ConnID{"A"}, reactions["🔥"])

	reactions, ok = l.ToggleReaction(1, "🔥", "A")
	require.True(t, ok)
	_, present := reactions["🔥"]
	assert.False(t, present, "empty emoji key must be deleted")
}

func TestToggleReactionIsAnInvolution(t *testing.T) {
	l := newTestLedger()
	m, _ := l.Post("a", "Rex", "hello")

	l.ToggleReaction(m.ID, "👍", "a")
	l.ToggleReaction(m.ID, "👍", "b")
	l.ToggleReaction(m.ID, "😂", "c")
	before := asSets(l.History()[0].Reactions)

	for _, reactor := range []domain.ConnID{"a", "b", "c", "d"} {
		for _, emoji := range domain.DefaultEmojis {
			l.ToggleReaction(m.ID, emoji, reactor)
			l.ToggleReaction(m.ID, emoji, reactor)
			assert.Equal(t, before, asSets(l.History()[0].Reactions), "reactor %s emoji %s", reactor, emoji)
		}
	}
}

func asSets(r domain.Reactions) map[string]map[domain.ConnID]bool {
	out := make(map[string]map[domain.ConnID]bool, len(r))
	for emoji, reactors := range r {
		set := make(map[domain.ConnID]bool, len(reactors))
		for _, id := range reactors {
			set[id] = true
		}
		out[emoji] = set
	}
	return out
}

func TestReactorAppearsOncePerEmoji(t *testing.T) {
	l := newTestLedger()
	m, _ := l.Post("a", "Rex", "hello")

	l.ToggleReaction(m.ID, "🎉", "a")
	l.ToggleReaction(m.ID, "🎉", "b")
	reactions, _ := l.ToggleReaction(m.ID, "🎉", "a")

	assert.Equal(t, []domain.ConnID{"b"}, reactions["🎉"])
}

func TestHistoryReturnsCopies(t *testing.T) {
	l := newTestLedger()
	m, _ := l.Post("a", "Rex", "hello")
	l.ToggleReaction(m.ID, "👍", "a")

	history := l.History()
	history[0].Reactions["👍"][0] = "mallory"
	history[0].Text = "changed"

	fresh := l.History()
	assert.Equal(t, "hello", fresh[0].Text)
	assert.Equal(t, []domain.ConnID{"a"}, fresh[0].Reactions["👍"])
}
