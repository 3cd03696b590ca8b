package domain

import (
	"encoding/json"
	"time"
)

// Event type tags used on the wire between the game client and the narrator.
const (
	EventStartDeployment    = "start-deployment"
	EventDeploymentLog      = "deployment-log"
	EventDeploymentComplete = "deployment-complete"
	EventPing               = "ping"
	EventPong               = "pong"
	EventScoreReport        = "score-report"
)

// LogLevel classifies one narrator log line.
type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelSuccess LogLevel = "success"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// Envelope wraps every websocket message; Data holds the event payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an Envelope of the given type.
func NewEnvelope(eventType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Data: raw}, nil
}

// StartDeployment asks the narrator to play a scripted run. The outcome is
// decided by the client before the request is sent; the narrator only picks
// which script to read from it.
type StartDeployment struct {
	Timestamp     time.Time `json:"timestamp"`
	ForceFailure  bool      `json:"forceFailure"`
	FailureChance float64   `json:"failureChance"`
}

// DeploymentLog is one line of a scripted pipeline run.
type DeploymentLog struct {
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Level      LogLevel  `json:"level"`
	Step       int       `json:"step"`
	TotalSteps int       `json:"totalSteps"`
}

// DeploymentComplete is the single terminal event of a scripted run.
type DeploymentComplete struct {
	Success    bool      `json:"success"`
	Timestamp  time.Time `json:"timestamp"`
	TotalSteps int       `json:"totalSteps"`
	DurationMS int64     `json:"duration"`
}

// Ping is a client liveness probe; Pong echoes it back.
type Ping struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type Pong struct {
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	OriginalData Ping      `json:"originalData"`
}

// ScoreReport submits a finished session's score under a player handle.
type ScoreReport struct {
	Player    string    `json:"player"`
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}
