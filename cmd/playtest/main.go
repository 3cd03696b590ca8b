// Command playtest plays the sabotage game headlessly against a narrator
// service. It fills slots with human-ish delays, buys emergency fixes when
// it can afford them, deploys when the pipeline is full, and reports the
// final score to the leaderboard. Useful for soak-testing a narrator and
// for eyeballing game balance.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mittens-dev/pipeline-panic/internal/connectors"
	"github.com/mittens-dev/pipeline-panic/internal/domain"
	"github.com/mittens-dev/pipeline-panic/internal/game"
)

// narratorProxy breaks the construction cycle: the engine needs a narrator
// before the connector (which needs the engine as its handler) exists.
type narratorProxy struct {
	conn atomic.Pointer[connectors.WSNarrator]
}

func (p *narratorProxy) StartDeployment(req domain.StartDeployment) error {
	c := p.conn.Load()
	if c == nil {
		return errors.New("narrator not connected")
	}
	return c.StartDeployment(req)
}

func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/ws", "narrator websocket URL")
		player = flag.String("player", "playtest-bot", "leaderboard handle")
		rounds = flag.Int("rounds", 3, "deployment rounds to play")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proxy := &narratorProxy{}
	eng := game.NewEngine(logger, proxy, game.Options{})

	conn, err := connectors.DialNarrator(ctx, *url, eng, logger)
	if err != nil {
		logger.Fatal("cannot reach narrator", zap.Error(err))
	}
	defer conn.Close()
	proxy.conn.Store(conn)

	eng.Start()
	defer eng.Stop()

	// Keep the connection warm while thinking.
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.Ping("still here")
			case <-ctx.Done():
				return
			}
		}
	}()

	for round := 1; round <= *rounds; round++ {
		logger.Info("round starting", zap.Int("round", round))
		if err := playRound(eng, logger); err != nil {
			logger.Fatal("round failed", zap.Int("round", round), zap.Error(err))
		}
	}

	stats := eng.Stats()
	logger.Info("playtest finished",
		zap.Int("score", stats.Score),
		zap.Int("deployments", stats.Deployments),
		zap.Int("failed", stats.FailedDeployments),
		zap.Int("sabotages", stats.Sabotages))

	if err := conn.ReportScore(*player, stats.Score); err != nil {
		logger.Warn("score report failed", zap.Error(err))
	}
	// Give the report a moment to flush before the connection drops.
	time.Sleep(200 * time.Millisecond)
}

// playRound keeps the pipeline filled until a deployment goes through and
// the post-deployment reset lands.
func playRound(eng *game.Engine, logger *zap.Logger) error {
	deadline := time.Now().Add(5 * time.Minute)

	for time.Now().Before(deadline) {
		snap := eng.Snapshot()

		if snap.DeployLive {
			time.Sleep(250 * time.Millisecond)
			continue
		}

		// Save warned slots when affordable; the engine rejects harmlessly
		// when the warning resolved in between.
		if warned(snap) > 0 && snap.Stats.Score >= 10 {
			if err := eng.EmergencyFix(); err != nil &&
				!errors.Is(err, game.ErrNothingPending) &&
				!errors.Is(err, game.ErrInsufficientScore) {
				return err
			}
		}

		filled := 0
		for _, id := range domain.AllSlots {
			view := snap.Slots[id]
			if view.Filled {
				filled++
				continue
			}
			think()
			err := eng.Drop(string(id), id)
			switch {
			case err == nil, errors.Is(err, game.ErrSlotOccupied):
				filled++
			case errors.Is(err, game.ErrDeploymentInFlight):
				// raced a completion event; try again next pass
			default:
				return err
			}
		}
		if filled < len(domain.AllSlots) {
			continue
		}

		err := eng.RequestDeployment()
		switch {
		case err == nil:
			if err := awaitReset(eng); err != nil {
				return err
			}
			return nil
		case errors.Is(err, game.ErrPipelineNotReady):
			// a knockoff landed between filling and deploying; keep going
		case errors.Is(err, game.ErrDeploymentInFlight):
			time.Sleep(250 * time.Millisecond)
		default:
			return err
		}
	}
	return errors.New("round timed out")
}

// awaitReset waits out the scripted run and the slot reset that follows.
func awaitReset(eng *game.Engine) error {
	deadline := time.Now().Add(time.Minute)
	sawLive := false
	for time.Now().Before(deadline) {
		snap := eng.Snapshot()
		if snap.DeployLive {
			sawLive = true
		} else if sawLive && allEmpty(snap) {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return errors.New("deployment never resolved")
}

func warned(snap game.Snapshot) int {
	n := 0
	for _, v := range snap.Slots {
		if v.Phase == domain.PhaseWarned {
			n++
		}
	}
	return n
}

func allEmpty(snap game.Snapshot) bool {
	for _, v := range snap.Slots {
		if v.Filled {
			return false
		}
	}
	return true
}

func think() {
	time.Sleep(time.Duration(300+rand.IntN(600)) * time.Millisecond)
}
