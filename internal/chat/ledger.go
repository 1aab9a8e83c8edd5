// Package chat keeps the bounded in-memory chat history and its reactions.
package chat

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dino-runner/internal/domain"
)

// DefaultSenderName is used when a message arrives without a name.
const DefaultSenderName = "Ghost Runner"

// Config bounds the ledger.
type Config struct {
	HistoryLimit     int
	MaxMessageLength int
	MaxNameLength    int
	Emojis           []string
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		HistoryLimit:     50,
		MaxMessageLength: 100,
		MaxNameLength:    32,
		Emojis:           domain.DefaultEmojis,
	}
}

// Ledger is a FIFO of the most recent chat messages. It is owned by the game
// event loop and is not safe for concurrent use.
type Ledger struct {
	cfg      Config
	emojis   map[string]struct{}
	messages []*domain.ChatMessage
	nextID   int64
	now      func() time.Time
}

// NewLedger creates an empty ledger.
func NewLedger(cfg Config, now func() time.Time) *Ledger {
	def := DefaultConfig()
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = def.MaxMessageLength
	}
	if cfg.MaxNameLength <= 0 {
		cfg.MaxNameLength = def.MaxNameLength
	}
	if len(cfg.Emojis) == 0 {
		cfg.Emojis = def.Emojis
	}
	if now == nil {
		now = time.Now
	}
	emojis := make(map[string]struct{}, len(cfg.Emojis))
	for _, e := range cfg.Emojis {
		emojis[e] = struct{}{}
	}
	return &Ledger{
		cfg:      cfg,
		emojis:   emojis,
		messages: make([]*domain.ChatMessage, 0, cfg.HistoryLimit),
		nextID:   1,
		now:      now,
	}
}

// Post appends a message and evicts the oldest ones beyond the history limit.
// Blank text is rejected.
func (l *Ledger) Post(senderID domain.ConnID, playerName, text string) (domain.ChatMessage, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, false
	}
	name := strings.TrimSpace(playerName)
	if name == "" {
		name = DefaultSenderName
	}

	msg := &domain.ChatMessage{
		ID:         l.nextID,
		SenderID:   senderID,
		PlayerName: capRunes(name, l.cfg.MaxNameLength),
		Text:       capRunes(text, l.cfg.MaxMessageLength),
		TimeStamp:  l.now(),
		Reactions:  domain.Reactions{},
	}
	l.nextID++

	l.messages = append(l.messages, msg)
	if over := len(l.messages) - l.cfg.HistoryLimit; over > 0 {
		for i := 0; i < over; i++ {
			l.messages[i] = nil
		}
		l.messages = l.messages[over:]
	}
	return msg.Clone(), true
}

// ToggleReaction adds reactorID to the emoji's reactor set, or removes it if
// already present. Unknown messages and emojis are ignored.
func (l *Ledger) ToggleReaction(messageID int64, emoji string, reactorID domain.ConnID) (domain.Reactions, bool) {
	if _, ok := l.emojis[emoji]; !ok {
		return nil, false
	}
	msg := l.find(messageID)
	if msg == nil {
		return nil, false
	}

	reactors := msg.Reactions[emoji]
	for i, id := range reactors {
		if id == reactorID {
			reactors = append(reactors[:i:i], reactors[i+1:]...)
			if len(reactors) == 0 {
				delete(msg.Reactions, emoji)
			} else {
				msg.Reactions[emoji] = reactors
			}
			return msg.Reactions.Clone(), true
		}
	}
	msg.Reactions[emoji] = append(reactors, reactorID)
	return msg.Reactions.Clone(), true
}

// History returns copies of all retained messages in creation order.
func (l *Ledger) History() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(l.messages))
	for i, m := range l.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of retained messages.
func (l *Ledger) Len() int {
	return len(l.messages)
}

// find scans from the newest end; ids increase with position.
func (l *Ledger) find(id int64) *domain.ChatMessage {
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].ID == id {
			return l.messages[i]
		}
		if l.messages[i].ID < id {
			return nil
		}
	}
	return nil
}

func capRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
