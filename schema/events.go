package schema

import "time"

// OperationStatus describes the lifecycle stage of an operation.
type OperationStatus string

const (
	// OperationStarted is emitted before the first service call.
	OperationStarted OperationStatus = "started"
	// OperationSucceeded is emitted when every step completed.
	OperationSucceeded OperationStatus = "succeeded"
	// OperationFailed is emitted with the first error encountered.
	OperationFailed OperationStatus = "failed"
)

// OperationEvent is published by the engine for observers such as the SSE hub.
type OperationEvent struct {
	ID        string          `json:"id"`
	Operation Operation       `json:"operation"`
	WindowID  WindowID        `json:"windowId"`
	Status    OperationStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
	Duration  time.Duration   `json:"durationNs,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
