package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mittens-dev/pipeline-panic/internal/domain"
	"github.com/mittens-dev/pipeline-panic/internal/history"
	"github.com/mittens-dev/pipeline-panic/internal/leaderboard"
)

var upgrader = websocket.Upgrader{
	// The game is served from arbitrary origins (itch pages, localhost).
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn wraps one client connection. Gorilla allows a single concurrent
// writer, so every outbound frame goes through the mutex.
type wsConn struct {
	id   string
	sock *websocket.Conn
	mu   sync.Mutex
	log  *zap.Logger
}

func (c *wsConn) send(eventType string, payload any) error {
	env, err := domain.NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.sock.WriteJSON(env); err != nil {
		c.log.Debug("websocket write failed", zap.Error(err))
		return err
	}
	return nil
}

// Log and Complete make wsConn a narrator.Sink.
func (c *wsConn) Log(entry domain.DeploymentLog) error {
	return c.send(domain.EventDeploymentLog, entry)
}

func (c *wsConn) Complete(outcome domain.DeploymentComplete) error {
	return c.send(domain.EventDeploymentComplete, outcome)
}

// rejectStart tells the client a start request was refused, as an
// error-level log line. No completion follows a rejection: the in-flight
// run (if any) keeps its exactly-one-completion guarantee.
func (c *wsConn) rejectStart(message string) {
	_ = c.send(domain.EventDeploymentLog, domain.DeploymentLog{
		Message:   message,
		Timestamp: time.Now(),
		Level:     domain.LevelError,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer sock.Close()

	conn := &wsConn{
		id:   uuid.NewString(),
		sock: sock,
	}
	conn.log = s.log.With(zap.String("conn_id", conn.id))
	conn.log.Info("websocket client connected")

	s.metrics.connections.Inc()
	defer s.metrics.connections.Dec()

	// The narrator is stateless across requests; the only per-connection
	// state is "a script is playing right now" plus the start-rate budget.
	var running int32
	perMin := s.cfg.StartRate
	if perMin <= 0 {
		perMin = 10
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		var env domain.Envelope
		if err := sock.ReadJSON(&env); err != nil {
			conn.log.Info("websocket client disconnected", zap.Error(err))
			return
		}

		switch env.Type {
		case domain.EventPing:
			s.handlePing(conn, env.Data)

		case domain.EventStartDeployment:
			s.handleStart(ctx, conn, env.Data, &running, limiter)

		case domain.EventScoreReport:
			s.handleScoreReport(ctx, conn, env.Data)

		default:
			conn.log.Debug("unknown event type", zap.String("type", env.Type))
		}
	}
}

func (s *Server) handlePing(conn *wsConn, data json.RawMessage) {
	var ping domain.Ping
	if err := json.Unmarshal(data, &ping); err != nil {
		conn.log.Debug("malformed ping", zap.Error(err))
		return
	}
	_ = conn.send(domain.EventPong, domain.Pong{
		Message:      "pong",
		Timestamp:    time.Now(),
		OriginalData: ping,
	})
}

func (s *Server) handleStart(
	ctx context.Context,
	conn *wsConn,
	data json.RawMessage,
	running *int32,
	limiter *rate.Limiter,
) {
	var req domain.StartDeployment
	if err := json.Unmarshal(data, &req); err != nil {
		conn.log.Warn("malformed start-deployment", zap.Error(err))
		conn.rejectStart("Malformed deployment request.")
		s.metrics.rejected.WithLabelValues("malformed").Inc()
		return
	}
	if !limiter.Allow() {
		conn.log.Warn("start-deployment rate limited")
		conn.rejectStart("Too many deployments, slow down.")
		s.metrics.rejected.WithLabelValues("rate_limited").Inc()
		return
	}
	if !atomic.CompareAndSwapInt32(running, 0, 1) {
		conn.log.Warn("start-deployment while a run is playing")
		conn.rejectStart("A deployment is already playing on this connection.")
		s.metrics.rejected.WithLabelValues("busy").Inc()
		return
	}

	go func() {
		defer atomic.StoreInt32(running, 0)

		outcome, err := s.narrator.Run(ctx, req, conn)
		if err != nil {
			conn.log.Warn("scripted run aborted", zap.Error(err))
			s.metrics.runs.WithLabelValues("aborted").Inc()
			return
		}

		result := "failure"
		if outcome.Success {
			result = "success"
		}
		s.metrics.runs.WithLabelValues(result).Inc()

		s.recorder.Record(history.Record{
			ID:            uuid.NewString(),
			ConnID:        conn.id,
			ForceFailure:  req.ForceFailure,
			FailureChance: req.FailureChance,
			Success:       outcome.Success,
			TotalSteps:    outcome.TotalSteps,
			DurationMS:    outcome.DurationMS,
			Timestamp:     time.Now(),
		})
	}()
}

func (s *Server) handleScoreReport(ctx context.Context, conn *wsConn, data json.RawMessage) {
	var report domain.ScoreReport
	if err := json.Unmarshal(data, &report); err != nil {
		conn.log.Debug("malformed score report", zap.Error(err))
		return
	}
	if s.lb == nil {
		return
	}
	if err := s.lb.Submit(ctx, report.Player, report.Score); err != nil {
		if !errors.Is(err, leaderboard.ErrDisabled) {
			conn.log.Warn("score submit failed", zap.Error(err))
		}
	}
}
