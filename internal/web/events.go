package web

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/blockedby/tg-export/internal/collector"
)

// WebSocket event types
const (
	EventRunProgress = "run.progress"
	EventRunLog      = "run.log"
	EventRunFinished = "run.finished"

	EventAuthQR      = "auth.qr"
	EventAuthSuccess = "auth.success"
	EventAuthError   = "auth.error"
)

// WSEvent represents a structured WebSocket message
type WSEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ProgressPayload is the payload for EventRunProgress
type ProgressPayload struct {
	RunID    string  `json:"run_id"`
	Progress float64 `json:"progress"`
}

// LogPayload is the payload for EventRunLog
type LogPayload struct {
	RunID string `json:"run_id"`
	Line  string `json:"line"`
}

// FinishedPayload is the payload for EventRunFinished
type FinishedPayload struct {
	RunID         string `json:"run_id"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	TotalChannels int    `json:"total_channels"`
	TotalMessages int    `json:"total_messages"`
}

// AuthPayload is the payload for the auth events
type AuthPayload struct {
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

func encodeEvent(eventType string, payload interface{}) []byte {
	b, _ := json.Marshal(WSEvent{Type: eventType, Payload: payload})
	return b
}

// ProgressEvent creates a JSON message for run progress
func ProgressEvent(runID uuid.UUID, fraction float64) []byte {
	return encodeEvent(EventRunProgress, ProgressPayload{RunID: runID.String(), Progress: fraction})
}

// LogEvent creates a JSON message carrying one log line
func LogEvent(runID uuid.UUID, line string) []byte {
	return encodeEvent(EventRunLog, LogPayload{RunID: runID.String(), Line: line})
}

// FinishedEvent creates a JSON message for a finished run
func FinishedEvent(run collector.Run) []byte {
	payload := FinishedPayload{
		RunID:  run.ID.String(),
		Status: string(run.Status),
		Error:  run.Error,
	}
	if run.Report != nil {
		payload.TotalChannels = run.Report.TotalChannels
		payload.TotalMessages = run.Report.TotalMessages
	}
	return encodeEvent(EventRunFinished, payload)
}

// Notifier forwards run progress to websocket clients
type Notifier struct {
	hub *Hub
}

// NewNotifier creates a collector.RunObserver broadcasting through hub
func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

// RunProgress implements collector.RunObserver
func (n *Notifier) RunProgress(runID uuid.UUID, fraction float64) {
	n.hub.Broadcast(ProgressEvent(runID, fraction))
}

// RunLog implements collector.RunObserver
func (n *Notifier) RunLog(runID uuid.UUID, line string) {
	n.hub.Broadcast(LogEvent(runID, line))
}

// RunFinished implements collector.RunObserver
func (n *Notifier) RunFinished(run collector.Run) {
	n.hub.Broadcast(FinishedEvent(run))
}

// AuthQR implements collector.AuthObserver
func (n *Notifier) AuthQR(url string) {
	n.hub.Broadcast(encodeEvent(EventAuthQR, AuthPayload{URL: url}))
}

// AuthSucceeded implements collector.AuthObserver
func (n *Notifier) AuthSucceeded() {
	n.hub.Broadcast(encodeEvent(EventAuthSuccess, AuthPayload{}))
}

// AuthFailed implements collector.AuthObserver
func (n *Notifier) AuthFailed(err error) {
	n.hub.Broadcast(encodeEvent(EventAuthError, AuthPayload{Error: err.Error()}))
}
