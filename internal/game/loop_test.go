package game

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dino-runner/internal/domain"
	"github.com/dino-runner/internal/protocol"
	"github.com/dino-runner/internal/websocket"
)

type fakeConn struct {
	id     domain.ConnID
	mu     sync.Mutex
	sent   [][]byte
	closed bool
	full   bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: domain.ConnID(id)}
}

func (c *fakeConn) ID() domain.ConnID { return c.id }

func (c *fakeConn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full || c.closed {
		return false
	}
	c.sent = append(c.sent, data)
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) envelopes(t *testing.T) []protocol.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(c.sent))
	for _, b := range c.sent {
		env, err := protocol.Decode(b)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) events(t *testing.T, name string) []protocol.Envelope {
	t.Helper()
	var out []protocol.Envelope
	for _, env := range c.envelopes(t) {
		if env.Event == name {
			out = append(out, env)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.sent = nil
	c.mu.Unlock()
}

func frame(t *testing.T, event string, payload any) []byte {
	t.Helper()
	b, err := protocol.Encode(event, payload)
	require.NoError(t, err)
	return b
}

func decode[T any](t *testing.T, env protocol.Envelope) T {
	t.Helper()
	v, err := protocol.DecodeData[T](env)
	require.NoError(t, err)
	return v
}

type harness struct {
	loop *Loop
	now  time.Time
}

func newHarness(mode domain.ObstacleMode) *harness {
	h := &harness{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.loop = NewLoop(Config{
		TickRate:      60,
		SpawnInterval: 1500 * time.Millisecond,
		GameWidth:     800,
		ObstacleMode:  mode,
		Now:           func() time.Time { return h.now },
		Rand:          rand.New(rand.NewSource(1)),
	}, websocket.NewHub(logger), logger)
	return h
}

func (h *harness) connect(c *fakeConn) { h.loop.handle(event{kind: eventConnect, conn: c}) }

func (h *harness) disconnect(c *fakeConn) { h.loop.handle(event{kind: eventDisconnect, conn: c}) }

func (h *harness) send(c *fakeConn, b []byte) {
	h.loop.handle(event{kind: eventFrame, conn: c, frame: b})
}

func TestConnectSendsInitThenHistory(t *testing.T) {
	h := newHarness(domain.ObstacleModeServer)
	a := newFakeConn("a")
	h.connect(a)
	h.send(a, frame(t, protocol.EventChatMessage, protocol.ChatRequest{Text: "hello", PlayerName: "Rex"}))

	b := newFakeConn("b")
	h.connect(b)

	envs := b.envelopes(t)
	require.Len(t, envs, 2)
	assert.Equal(t, protocol.EventSessionInit, envs[0].Event)
	assert.Equal(t, protocol.EventChatHistory, envs[1].Event)

	init := decode[protocol.SessionInit](t, envs[0])
	assert.Equal(t, domain.ConnID("b"), init.SocketID)
	assert.Equal(t, domain.ObstacleModeServer, init.ObstacleMode)
	assert.Equal(t, 800.0, init.GameWidth)

	history := decode[[]domain.ChatMessage](t, envs[1])
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Text)
	assert.Equal(t, 2, h.loop.Connections())
}

func TestJoinUpdateLeave(t *testing.T) {
	h := newHarness(domain.ObstacleModeServer)
	rex, blue := newFakeConn("rex"), newFakeConn("blue")
	h.connect(rex)
	h.connect(blue)

	h.send(rex, frame(t, protocol.EventPlayerJoin, protocol.JoinRequest{PlayerName: "Rex"}))
	h.send(blue, frame(t, protocol.EventPlayerJoin, protocol.JoinRequest{PlayerName: "Blue"}))

	joins := blue.events(t, protocol.EventPlayerJoin)
	require.Len(t, joins, 2)
	assert.Equal(t, protocol.PlayerJoined{SocketID: "rex", PlayerName: "Rex"}, decode[protocol.PlayerJoined](t, joins[0]))
	counts := blue.events(t, protocol.EventPlayersCount)
	assert.Equal(t, 2, decode[int](t, counts[len(counts)-1]))
	assert.Equal(t, 2, h.loop.ActivePlayers())

	rex.reset()
	blue.reset()
	h.send(rex, frame(t, protocol.EventPlayerUpdate, protocol.UpdateRequest{Score: 42, IsJumping: true}))

	assert.Empty(t, rex.events(t, protocol.EventPlayerUpdate))
	updates := blue.events(t, protocol.EventPlayerUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, domain.GhostUpdate{SocketID: "rex", Score: 42, IsJumping: true},
		decode[domain.GhostUpdate](t, updates[0]))

	h.disconnect(rex)
	h.disconnect(rex)

	leaves := blue.events(t, protocol.EventPlayerLeave)
	require.Len(t, leaves, 1)
	assert.Equal(t, domain.ConnID("rex"), decode[domain.ConnID](t, leaves[0]))
	assert.True(t, rex.isClosed())
	assert.Equal(t, 1, h.loop.ActivePlayers())
	assert.Equal(t, 1, h.loop.Connections())
}

func TestIgnoredPlayerEvents(t *testing.T) {
	h := newHarness(domain.ObstacleModeServer)
	a, b := newFakeConn("a"), newFakeConn("b")
	h.connect(a)
	h.connect(b)
	b.reset()

	h.send(a, frame(t, protocol.EventPlayerJoin, protocol.JoinRequest{PlayerName: "   "}))
	h.send(a, frame(t, protocol.EventPlayerUpdate, protocol.UpdateRequest{Score: 5}))
	h.disconnect(a)

	assert.Empty(t, b.envelopes(t))
	assert.Equal(t, 0, h.loop.ActivePlayers())
}

func TestUnjoinedDisconnectDoesNotAnnounceLeave(t *testing.T) {
	h := newHarness(domain.ObstacleModeServer)
	a, b := newFakeConn("a"), newFakeConn("b")
	h.connect(a)
	h.connect(b)
	h.disconnect(a)

	assert.Empty(t, b.events(t, protocol.EventPlayerLeave))
}

func TestMalformedFrameGetsErrorReply(t *testing.T) {
	h := newHarness(domain.ObstacleModeServer)
	a, b := newFakeConn("a"), newFakeConn("b")
	h.connect(a)
	h.connect(b)
	a.reset()
	b.reset()

	h.send(a, []byte("{not json"))
	h.send(a, frame(t, "player:dance", map[string]string{"style": "moonwalk"}))

	errs := a.events(t, protocol.EventError)
	require.Len(t, errs, 1)
	assert.NotEmpty(t, decode[protocol.ErrorPayload](t, errs[0]).Error)
	assert.Empty(t, b.envelopes(t))
}

func TestCoalescedFrameIsRoutedInOrder(t *testing.T) {
	h := newHarness(domain.ObstacleModeServer)
	a, b := newFakeConn("a"), newFakeConn("b")
	h.connect(a)
	h.connect(b)
	b.reset()

	joined := frame(t, protocol.EventPlayerJoin, protocol.JoinRequest{PlayerName: "Rex"})
	update := frame(t, protocol.EventPlayerUpdate, protocol.UpdateRequest{Score: 7})
	h.send(a, append(append(joined, '\n'), update...))

	var names []string
	for _, env := range b.envelopes(t) {
		names = append(names, env.Event)
	}
	assert.Equal(t, []string{
		protocol.EventPlayerJoin,
		protocol.EventPlayersCount,
		protocol.EventPlayerCountAlias,
		protocol.EventPlayerUpdate,
	}, names)
}

func TestChatAndReactions(t *testing.T) {
	h := newHarness(domain.ObstacleModeServer)
	a, b := newFakeConn("a"), newFakeConn("b")
	h.connect(a)
	h.connect(b)

	h.send(a, frame(t, protocol.EventChatMessage, protocol.ChatRequest{Text: "  nice jump  ", PlayerName: ""}))
	h.send(a, frame(t, protocol.EventChatMessage, protocol.ChatRequest{Text: "   "}))

	msgs := b.events(t, protocol.EventChatMessage)
	require.Len(t, msgs, 1)
	msg := decode[domain.ChatMessage](t, msgs[0])
	assert.Equal(t, int64(1), msg.ID)
	assert.Equal(t, "nice jump", msg.Text)
	assert.Equal(t, "Ghost Runner", msg.PlayerName)
	assert.Equal(t, domain.ConnID("a"), msg.SenderID)

	h.send(b, frame(t, protocol.EventChatReact, protocol.ReactRequest{MessageID: 1, Emoji: "🔥"}))
	h.send(a, frame(t, protocol.EventChatReact, protocol.ReactRequest{MessageID: 1, Emoji: "🔥"}))
	h.send(b, frame(t, protocol.EventChatReact, protocol.ReactRequest{MessageID: 1, Emoji: "🔥"}))
	h.send(b, frame(t, protocol.EventChatReact, protocol.ReactRequest{MessageID: 99, Emoji: "🔥"}))
	h.send(b, frame(t, protocol.EventChatReact, protocol.ReactRequest{MessageID: 1, Emoji: "💩"}))

	reacts := a.events(t, protocol.EventChatReact)
	require.Len(t, reacts, 3)
	last := decode[protocol.ReactionsChanged](t, reacts[2])
	assert.Equal(t, int64(1), last.MessageID)
	assert.Equal(t, domain.Reactions{"🔥": {"a"}}, last.Reactions)

	h.send(a, frame(t, protocol.EventChatReact, protocol.ReactRequest{MessageID: 1, Emoji: "🔥"}))
	reacts = b.events(t, protocol.EventChatReact)
	raw := reacts[len(reacts)-1].Data
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.JSONEq(t, `{}`, string(body["reactions"]))
}

func TestTickSpawnsAndCounts(t *testing.T) {
	h := newHarness(domain.ObstacleModeServer)
	a := newFakeConn("a")
	h.connect(a)
	a.reset()

	start := h.now
	for i := 1; i <= 200; i++ {
		h.now = start.Add(time.Duration(i) * time.Second / 60)
		h.loop.tick(h.now)
	}

	counts := a.events(t, protocol.EventPlayersCount)
	assert.Len(t, counts, 200)
	aliases := a.events(t, protocol.EventPlayerCountAlias)
	require.Len(t, aliases, 200)
	assert.Equal(t, decode[int](t, counts[0]), decode[int](t, aliases[0]))
	spawns := a.events(t, protocol.EventObstacleSpawn)
	require.Len(t, spawns, 2)
	first := decode[domain.Obstacle](t, spawns[0])
	second := decode[domain.Obstacle](t, spawns[1])
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, 800.0, first.X)
}

func TestPlayersRosterRefreshesOnTick(t *testing.T) {
	h := newHarness(domain.ObstacleModeServer)
	assert.Empty(t, h.loop.Players())

	rex, blue := newFakeConn("rex"), newFakeConn("blue")
	h.connect(rex)
	h.connect(blue)
	h.send(rex, frame(t, protocol.EventPlayerJoin, protocol.JoinRequest{PlayerName: "Rex"}))
	h.now = h.now.Add(time.Millisecond)
	h.send(blue, frame(t, protocol.EventPlayerJoin, protocol.JoinRequest{PlayerName: "Blue"}))
	h.send(rex, frame(t, protocol.EventPlayerUpdate, protocol.UpdateRequest{Score: 42}))
	assert.Empty(t, h.loop.Players(), "roster is published by the tick")

	h.loop.tick(h.now)
	players := h.loop.Players()
	require.Len(t, players, 2)
	assert.Equal(t, "Rex", players[0].PlayerName)
	assert.Equal(t, 42.0, players[0].Score)
	assert.Equal(t, "Blue", players[1].PlayerName)

	h.disconnect(rex)
	h.loop.tick(h.now)
	require.Len(t, h.loop.Players(), 1)
}

func TestClientModeNeverSpawns(t *testing.T) {
	h := newHarness(domain.ObstacleModeClient)
	a := newFakeConn("a")
	h.connect(a)

	start := h.now
	for i := 1; i <= 300; i++ {
		h.now = start.Add(time.Duration(i) * time.Second / 60)
		h.loop.tick(h.now)
	}
	assert.Empty(t, a.events(t, protocol.EventObstacleSpawn))
}

func TestFullBufferOnlyAffectsThatConnection(t *testing.T) {
	h := newHarness(domain.ObstacleModeServer)
	a, b := newFakeConn("a"), newFakeConn("b")
	h.connect(a)
	h.connect(b)
	a.reset()
	b.reset()

	a.mu.Lock()
	a.full = true
	a.mu.Unlock()

	require.NoError(t, h.loop.Publish(protocol.EventScoreNew, domain.ScoreAnnouncement{PlayerName: "Rex", Score: 10}))
	h.loop.handle(<-h.loop.inbox)

	assert.Empty(t, a.envelopes(t))
	assert.Len(t, b.events(t, protocol.EventScoreNew), 1)
}

func TestRunServesInboxAndStops(t *testing.T) {
	h := newHarness(domain.ObstacleModeServer)
	ticks := make(chan time.Time)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		h.loop.run(ctx, ticks)
		close(done)
	}()

	a := newFakeConn("a")
	h.loop.Connect(a)
	h.loop.Deliver(a, frame(t, protocol.EventPlayerJoin, protocol.JoinRequest{PlayerName: "Rex"}))
	assert.Eventually(t, func() bool {
		return h.loop.ActivePlayers() == 1
	}, time.Second, 5*time.Millisecond)
	ticks <- h.now

	assert.Eventually(t, func() bool {
		return len(a.events(t, protocol.EventPlayersCount)) == 2
	}, time.Second, 5*time.Millisecond)

	h.loop.Stop()
	<-done

	assert.True(t, a.isClosed())
	assert.ErrorIs(t, h.loop.Publish(protocol.EventScoreNew, nil), ErrStopped)

	late := newFakeConn("late")
	h.loop.Connect(late)
	assert.True(t, late.isClosed())
}
