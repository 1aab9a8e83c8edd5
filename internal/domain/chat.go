package domain

import "time"

// DefaultEmojis is the accepted reaction set.
var DefaultEmojis = []string{"👍", "🔥", "😂", "🎉"}

// Reactions maps an emoji to the ordered set of reactor connection ids.
type Reactions map[string][]ConnID

// Clone returns a deep copy of r. A nil receiver yields an empty map so the
// wire form is always an object.
func (r Reactions) Clone() Reactions {
	out := make(Reactions, len(r))
	for emoji, reactors := range r {
		cp := make([]ConnID, len(reactors))
		copy(cp, reactors)
		out[emoji] = cp
	}
	return out
}

// ChatMessage is the canonical chat message shape on the wire.
type ChatMessage struct {
	ID         int64     `json:"id"`
	SenderID   ConnID    `json:"senderId"`
	PlayerName string    `json:"playerName"`
	Text       string    `json:"text"`
	TimeStamp  time.Time `json:"timeStamp"`
	Reactions  Reactions `json:"reactions"`
}

// Clone returns a copy of m that shares no mutable state with it.
func (m ChatMessage) Clone() ChatMessage {
	m.Reactions = m.Reactions.Clone()
	return m
}
