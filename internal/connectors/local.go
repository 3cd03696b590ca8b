package connectors

import (
	"context"

	"github.com/mittens-dev/pipeline-panic/internal/domain"
	"github.com/mittens-dev/pipeline-panic/internal/narrator"
)

// LocalNarrator runs scripted playback in-process, no server involved. The
// event flow is identical to the websocket path: logs and the completion
// arrive asynchronously on the handler.
type LocalNarrator struct {
	n       *narrator.Narrator
	handler Handler
}

func NewLocalNarrator(n *narrator.Narrator, handler Handler) *LocalNarrator {
	return &LocalNarrator{n: n, handler: handler}
}

// StartDeployment implements the engine's Narrator interface.
func (l *LocalNarrator) StartDeployment(req domain.StartDeployment) error {
	go func() {
		sink := handlerSink{h: l.handler}
		if _, err := l.n.Run(context.Background(), req, sink); err != nil {
			l.handler.HandleDisconnect(err)
		}
	}()
	return nil
}

type handlerSink struct {
	h Handler
}

func (s handlerSink) Log(entry domain.DeploymentLog) error {
	s.h.HandleLog(entry)
	return nil
}

func (s handlerSink) Complete(outcome domain.DeploymentComplete) error {
	s.h.HandleComplete(outcome)
	return nil
}
