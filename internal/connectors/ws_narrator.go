// Package connectors holds the client-side adapters that connect the game
// engine to a deployment narrator: a websocket connector for a remote
// service and an in-process one for tests and offline play.
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mittens-dev/pipeline-panic/internal/domain"
)

// Handler receives the narrator's stream. The game engine implements it.
type Handler interface {
	HandleLog(entry domain.DeploymentLog)
	HandleComplete(outcome domain.DeploymentComplete)
	HandleDisconnect(err error)
}

// WSNarrator talks the narrator event contract over a websocket.
type WSNarrator struct {
	log     *zap.Logger
	handler Handler

	mu     sync.Mutex
	sock   *websocket.Conn
	closed int32
}

// DialNarrator connects to a narrator service with backoff and starts the
// read pump. The handler gets HandleDisconnect if the connection later
// drops.
func DialNarrator(ctx context.Context, url string, handler Handler, logger *zap.Logger) (*WSNarrator, error) {
	c := &WSNarrator{
		log:     logger.Named("ws-narrator"),
		handler: handler,
	}

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
	)
	err := r.Do(func() error {
		sock, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			c.log.Warn("narrator dial failed, retrying", zap.Error(err))
			return err
		}
		c.sock = sock
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dial narrator at %s: %w", url, err)
	}

	c.log.Info("connected to narrator", zap.String("url", url))
	go c.readPump()
	return c, nil
}

func (c *WSNarrator) readPump() {
	for {
		var env domain.Envelope
		if err := c.sock.ReadJSON(&env); err != nil {
			if atomic.LoadInt32(&c.closed) == 1 {
				return
			}
			c.handler.HandleDisconnect(err)
			return
		}

		switch env.Type {
		case domain.EventDeploymentLog:
			var entry domain.DeploymentLog
			if err := json.Unmarshal(env.Data, &entry); err != nil {
				c.log.Warn("malformed deployment-log", zap.Error(err))
				continue
			}
			c.handler.HandleLog(entry)

		case domain.EventDeploymentComplete:
			var outcome domain.DeploymentComplete
			if err := json.Unmarshal(env.Data, &outcome); err != nil {
				c.log.Warn("malformed deployment-complete", zap.Error(err))
				continue
			}
			c.handler.HandleComplete(outcome)

		case domain.EventPong:
			c.log.Debug("pong received")

		default:
			c.log.Debug("unknown event from narrator", zap.String("type", env.Type))
		}
	}
}

func (c *WSNarrator) send(eventType string, payload any) error {
	env, err := domain.NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.WriteJSON(env)
}

// StartDeployment implements the engine's Narrator interface.
func (c *WSNarrator) StartDeployment(req domain.StartDeployment) error {
	return c.send(domain.EventStartDeployment, req)
}

// Ping sends a liveness probe.
func (c *WSNarrator) Ping(message string) error {
	return c.send(domain.EventPing, domain.Ping{Message: message, Timestamp: time.Now()})
}

// ReportScore submits a finished session's score to the leaderboard.
func (c *WSNarrator) ReportScore(player string, score int) error {
	return c.send(domain.EventScoreReport, domain.ScoreReport{
		Player:    player,
		Score:     score,
		Timestamp: time.Now(),
	})
}

// Close shuts the connection down without a disconnect callback.
func (c *WSNarrator) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	return c.sock.Close()
}
