// Package game runs the authoritative shared world. One goroutine owns the
// session registry, obstacle authority and chat ledger; connections, inbound
// frames, published events and ticks are all serialized through its inbox.
package game

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dino-runner/internal/chat"
	"github.com/dino-runner/internal/domain"
	"github.com/dino-runner/internal/obstacle"
	"github.com/dino-runner/internal/protocol"
	"github.com/dino-runner/internal/session"
	"github.com/dino-runner/internal/websocket"
)

// ErrStopped is returned when an event is offered to a stopped loop.
var ErrStopped = errors.New("game loop stopped")

const inboxSize = 1024

// Config holds the loop settings.
type Config struct {
	TickRate      int
	SpawnInterval time.Duration
	GameWidth     float64
	ObstacleMode  domain.ObstacleMode
	PlayerNameMax int
	Chat          chat.Config

	// Now and Rand may be nil.
	Now  func() time.Time
	Rand *rand.Rand
}

type eventKind int

const (
	eventConnect eventKind = iota
	eventDisconnect
	eventFrame
	eventPublish
)

type event struct {
	kind    eventKind
	conn    websocket.Conn
	frame   []byte
	name    string
	payload any
}

// Loop is the single writer of all shared game state.
type Loop struct {
	cfg       Config
	hub       *websocket.Hub
	registry  *session.Registry
	authority *obstacle.Authority
	ledger    *chat.Ledger
	logger    *slog.Logger
	now       func() time.Time

	inbox    chan event
	quit     chan struct{}
	stopOnce sync.Once

	activePlayers atomic.Int64
	roster        atomic.Pointer[[]domain.PlayerSession]
}

// NewLoop creates a loop broadcasting through hub. The obstacle authority
// only exists in server obstacle mode.
func NewLoop(cfg Config, hub *websocket.Hub, logger *slog.Logger) *Loop {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 60
	}
	if cfg.ObstacleMode == "" {
		cfg.ObstacleMode = domain.ObstacleModeServer
	}
	if cfg.PlayerNameMax <= 0 {
		cfg.PlayerNameMax = 32
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	l := &Loop{
		cfg:      cfg,
		hub:      hub,
		registry: session.NewRegistry(session.WithClock(now), session.WithMaxNameLength(cfg.PlayerNameMax)),
		ledger:   chat.NewLedger(cfg.Chat, now),
		logger:   logger,
		now:      now,
		inbox:    make(chan event, inboxSize),
		quit:     make(chan struct{}),
	}
	if cfg.ObstacleMode == domain.ObstacleModeServer {
		l.authority = obstacle.NewAuthority(cfg.SpawnInterval, cfg.GameWidth, now(), cfg.Rand)
	}
	return l
}

// Connect hands a new connection to the loop. It must be called before any
// Deliver for the same connection.
func (l *Loop) Connect(c websocket.Conn) {
	if err := l.offer(event{kind: eventConnect, conn: c}); err != nil {
		c.Close()
	}
}

// Deliver queues an inbound frame from c.
func (l *Loop) Deliver(c websocket.Conn, frame []byte) {
	l.offer(event{kind: eventFrame, conn: c, frame: frame})
}

// Disconnect queues the departure of c.
func (l *Loop) Disconnect(c websocket.Conn) {
	l.offer(event{kind: eventDisconnect, conn: c})
}

// Publish broadcasts an event to every connection from the loop goroutine.
func (l *Loop) Publish(name string, payload any) error {
	return l.offer(event{kind: eventPublish, name: name, payload: payload})
}

// ActivePlayers returns the number of joined sessions. Safe from any goroutine.
func (l *Loop) ActivePlayers() int {
	return int(l.activePlayers.Load())
}

// Players returns the joined sessions as of the last tick, ordered by join
// time. Safe from any goroutine.
func (l *Loop) Players() []domain.PlayerSession {
	if p := l.roster.Load(); p != nil {
		return append([]domain.PlayerSession(nil), (*p)...)
	}
	return []domain.PlayerSession{}
}

// Connections returns the number of registered connections.
func (l *Loop) Connections() int {
	return l.hub.GetTotalConnections()
}

func (l *Loop) offer(ev event) error {
	select {
	case <-l.quit:
		return ErrStopped
	default:
	}
	select {
	case l.inbox <- ev:
		return nil
	case <-l.quit:
		return ErrStopped
	}
}

// Run processes events and ticks until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(l.cfg.TickRate))
	defer ticker.Stop()
	l.run(ctx, ticker.C)
}

func (l *Loop) run(ctx context.Context, ticks <-chan time.Time) {
	l.logger.Info("game loop started",
		"tick_rate", l.cfg.TickRate,
		"obstacle_mode", l.cfg.ObstacleMode,
	)
	defer func() {
		l.Stop()
		l.hub.CloseAll()
		l.logger.Info("game loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.quit:
			return
		case ev := <-l.inbox:
			l.handle(ev)
		case <-ticks:
			l.tick(l.now())
		}
	}
}

// Stop ends Run. Further events are refused.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
}

func (l *Loop) handle(ev event) {
	switch ev.kind {
	case eventConnect:
		l.connect(ev.conn)
	case eventDisconnect:
		l.disconnect(ev.conn)
	case eventFrame:
		l.receive(ev.conn, ev.frame)
	case eventPublish:
		l.hub.Broadcast(ev.name, ev.payload)
	}
}

// connect greets c and only then registers it, so history precedes any live
// chat broadcast on that connection.
func (l *Loop) connect(c websocket.Conn) {
	l.hub.SendTo(c, protocol.EventSessionInit, protocol.SessionInit{
		SocketID:     c.ID(),
		ObstacleMode: l.cfg.ObstacleMode,
		GameWidth:    l.cfg.GameWidth,
	})
	l.hub.SendTo(c, protocol.EventChatHistory, l.ledger.History())
	l.hub.Add(c)
}

func (l *Loop) disconnect(c websocket.Conn) {
	if _, ok := l.hub.Remove(c.ID()); !ok {
		return
	}
	c.Close()

	if _, ok := l.registry.Leave(c.ID()); ok {
		l.activePlayers.Store(int64(l.registry.Len()))
		l.hub.Broadcast(protocol.EventPlayerLeave, c.ID())
		l.broadcastCount()
		l.logger.Info("player left", "conn_id", c.ID())
	}
}

func (l *Loop) receive(c websocket.Conn, frame []byte) {
	envs, err := protocol.DecodeFrame(frame)
	if err != nil {
		l.logger.Debug("malformed frame", "conn_id", c.ID(), "error", err)
		l.hub.SendTo(c, protocol.EventError, protocol.ErrorPayload{Error: err.Error()})
	}
	for _, env := range envs {
		l.route(c, env)
	}
}

func (l *Loop) route(c websocket.Conn, env protocol.Envelope) {
	id := c.ID()
	switch env.Event {
	case protocol.EventPlayerJoin:
		req, err := protocol.DecodeData[protocol.JoinRequest](env)
		if err != nil {
			l.logger.Debug("bad join payload", "conn_id", id, "error", err)
			return
		}
		s, ok := l.registry.Join(id, req.PlayerName)
		if !ok {
			return
		}
		l.activePlayers.Store(int64(l.registry.Len()))
		l.hub.Broadcast(protocol.EventPlayerJoin, protocol.PlayerJoined{SocketID: id, PlayerName: s.PlayerName})
		l.broadcastCount()
		l.logger.Info("player joined", "conn_id", id, "player_id", s.PlayerID, "player_name", s.PlayerName)

	case protocol.EventPlayerUpdate:
		req, err := protocol.DecodeData[protocol.UpdateRequest](env)
		if err != nil {
			l.logger.Debug("bad update payload", "conn_id", id, "error", err)
			return
		}
		s, ok := l.registry.Update(id, req.Score, req.IsJumping)
		if !ok {
			return
		}
		l.hub.BroadcastExcept(id, protocol.EventPlayerUpdate, domain.GhostUpdate{
			SocketID:  id,
			Score:     s.Score,
			IsJumping: s.IsJumping,
		})

	case protocol.EventChatMessage:
		req, err := protocol.DecodeData[protocol.ChatRequest](env)
		if err != nil {
			l.logger.Debug("bad chat payload", "conn_id", id, "error", err)
			return
		}
		msg, ok := l.ledger.Post(id, req.PlayerName, req.Text)
		if !ok {
			return
		}
		l.hub.Broadcast(protocol.EventChatMessage, msg)

	case protocol.EventChatReact:
		req, err := protocol.DecodeData[protocol.ReactRequest](env)
		if err != nil {
			l.logger.Debug("bad react payload", "conn_id", id, "error", err)
			return
		}
		reactions, ok := l.ledger.ToggleReaction(req.MessageID, req.Emoji, id)
		if !ok {
			return
		}
		l.hub.Broadcast(protocol.EventChatReact, protocol.ReactionsChanged{
			MessageID: req.MessageID,
			Reactions: reactions,
		})

	default:
		l.logger.Debug("unknown event", "conn_id", id, "event", env.Event)
	}
}

// broadcastCount announces the session count under both names browser
// clients listen for.
func (l *Loop) broadcastCount() {
	n := l.registry.Len()
	l.hub.Broadcast(protocol.EventPlayersCount, n)
	l.hub.Broadcast(protocol.EventPlayerCountAlias, n)
}

// tick runs the liveness sweep, then the obstacle spawn, then the count
// broadcast.
func (l *Loop) tick(now time.Time) {
	if idle := l.registry.Sweep(now); idle > 0 {
		l.logger.Debug("idle sessions", "count", idle)
	}
	roster := l.registry.Snapshot()
	l.roster.Store(&roster)
	if l.authority != nil {
		if o, ok := l.authority.MaybeSpawn(now); ok {
			l.hub.Broadcast(protocol.EventObstacleSpawn, o)
		}
	}
	l.broadcastCount()
}
