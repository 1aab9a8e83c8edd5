// Package client is a Go peer for the game server. It dials the socket,
// folds inbound events into local mirrors and sends the player's own events.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dino-runner/internal/domain"
	"github.com/dino-runner/internal/ghost"
	"github.com/dino-runner/internal/protocol"
)

const (
	writeWait       = 10 * time.Second
	obstacleBuffer  = 64
	chatMirrorLimit = 50
)

// ErrClosed is returned when sending on a closed client.
var ErrClosed = errors.New("client closed")

// Client is one connected player.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	ghosts    *ghost.Table
	obstacles chan domain.Obstacle

	mu          sync.RWMutex
	init        protocol.SessionInit
	chat        []domain.ChatMessage
	leaderboard []domain.LeaderboardEntry
	playerCount int

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	err       error
}

// Dial connects to the server's socket endpoint at url.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	c := &Client{
		conn:      conn,
		logger:    logger,
		ghosts:    ghost.NewTable(""),
		obstacles: make(chan domain.Obstacle, obstacleBuffer),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// WaitReady blocks until the server has sent session:init and the chat
// history that follows it.
func (c *Client) WaitReady(ctx context.Context) (protocol.SessionInit, error) {
	select {
	case <-c.ready:
		return c.Session(), nil
	case <-c.done:
		return protocol.SessionInit{}, c.Err()
	case <-ctx.Done():
		return protocol.SessionInit{}, ctx.Err()
	}
}

// Join starts a run under name.
func (c *Client) Join(name string) error {
	return c.send(protocol.EventPlayerJoin, protocol.JoinRequest{PlayerName: name})
}

// SendUpdate reports the local run state.
func (c *Client) SendUpdate(score int64, isJumping bool) error {
	return c.send(protocol.EventPlayerUpdate, protocol.UpdateRequest{Score: float64(score), IsJumping: isJumping})
}

// SendChat posts a chat message.
func (c *Client) SendChat(text, playerName string) error {
	return c.send(protocol.EventChatMessage, protocol.ChatRequest{Text: text, PlayerName: playerName})
}

// React toggles emoji on a chat message.
func (c *Client) React(messageID int64, emoji string) error {
	return c.send(protocol.EventChatReact, protocol.ReactRequest{MessageID: messageID, Emoji: emoji})
}

func (c *Client) send(event string, payload any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	data, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("sending %s: %w", event, err)
	}
	return nil
}

// Obstacles streams server-spawned obstacles. Spawns are dropped when the
// reader falls behind.
func (c *Client) Obstacles() <-chan domain.Obstacle {
	return c.obstacles
}

// Ghosts returns the remote player mirror.
func (c *Client) Ghosts() *ghost.Table {
	return c.ghosts
}

// Session returns the server greeting.
func (c *Client) Session() protocol.SessionInit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.init
}

// Chat returns the mirrored chat history.
func (c *Client) Chat() []domain.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.ChatMessage, len(c.chat))
	for i, m := range c.chat {
		out[i] = m.Clone()
	}
	return out
}

// Leaderboard returns the last broadcast top list.
func (c *Client) Leaderboard() []domain.LeaderboardEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.LeaderboardEntry(nil), c.leaderboard...)
}

// PlayerCount returns the last announced number of active sessions.
func (c *Client) PlayerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerCount
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended.
func (c *Client) Err() error {
	<-c.done
	return c.err
}

// Close sends a close frame and tears the connection down.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.err = err
			}
			return
		}
		envs, err := protocol.DecodeFrame(frame)
		if err != nil {
			c.logger.Warn("malformed frame from server", "error", err)
		}
		for _, env := range envs {
			if err := c.apply(env); err != nil {
				c.logger.Debug("dropping event", "event", env.Event, "error", err)
			}
		}
	}
}

func (c *Client) apply(env protocol.Envelope) error {
	switch env.Event {
	case protocol.EventSessionInit:
		init, err := protocol.DecodeData[protocol.SessionInit](env)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.init = init
		c.mu.Unlock()
		c.ghosts.SetSelf(init.SocketID)

	case protocol.EventChatHistory:
		history, err := protocol.DecodeData[[]domain.ChatMessage](env)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.chat = history
		c.mu.Unlock()
		c.readyOnce.Do(func() { close(c.ready) })

	case protocol.EventChatMessage:
		msg, err := protocol.DecodeData[domain.ChatMessage](env)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.chat = append(c.chat, msg)
		if over := len(c.chat) - chatMirrorLimit; over > 0 {
			c.chat = append([]domain.ChatMessage(nil), c.chat[over:]...)
		}
		c.mu.Unlock()

	case protocol.EventChatReact:
		change, err := protocol.DecodeData[protocol.ReactionsChanged](env)
		if err != nil {
			return err
		}
		c.mu.Lock()
		for i := range c.chat {
			if c.chat[i].ID == change.MessageID {
				c.chat[i].Reactions = change.Reactions.Clone()
				break
			}
		}
		c.mu.Unlock()

	case protocol.EventPlayerJoin:
		joined, err := protocol.DecodeData[protocol.PlayerJoined](env)
		if err != nil {
			return err
		}
		c.ghosts.Join(joined.SocketID, joined.PlayerName)

	case protocol.EventPlayerUpdate:
		u, err := protocol.DecodeData[domain.GhostUpdate](env)
		if err != nil {
			return err
		}
		c.ghosts.Apply(u)

	case protocol.EventPlayerLeave:
		id, err := protocol.DecodeData[domain.ConnID](env)
		if err != nil {
			return err
		}
		c.ghosts.Remove(id)

	case protocol.EventPlayersCount, protocol.EventPlayerCountAlias:
		n, err := protocol.DecodeData[int](env)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.playerCount = n
		c.mu.Unlock()

	case protocol.EventObstacleSpawn:
		o, err := protocol.DecodeData[domain.Obstacle](env)
		if err != nil {
			return err
		}
		select {
		case c.obstacles <- o:
		default:
			c.logger.Debug("obstacle buffer full", "obstacle_id", o.ID)
		}

	case protocol.EventLeaderboardUpdate:
		entries, err := protocol.DecodeData[[]domain.LeaderboardEntry](env)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.leaderboard = entries
		c.mu.Unlock()

	case protocol.EventScoreNew:
		s, err := protocol.DecodeData[domain.ScoreAnnouncement](env)
		if err != nil {
			return err
		}
		c.logger.Info("new score", "player_name", s.PlayerName, "score", s.Score)

	case protocol.EventError:
		p, err := protocol.DecodeData[protocol.ErrorPayload](env)
		if err != nil {
			return err
		}
		c.logger.Warn("server rejected message", "error", p.Error)

	default:
		c.logger.Debug("unknown event", "event", env.Event)
	}
	return nil
}
