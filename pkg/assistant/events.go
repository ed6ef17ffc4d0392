package assistant

import "time"

// EventType classifies pipeline events.
type EventType string

const (
	EventStarted       EventType = "started"
	EventStageStarted  EventType = "stage_started"
	EventStageFinished EventType = "stage_finished"
	EventCompleted     EventType = "completed"
	EventFailed        EventType = "failed"
)

// Event is a progress notification for one Describe call.
type Event struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id"`
	Stage     Stage     `json:"stage,omitempty"`

	// Caption is set once the caption stage has finished.
	Caption string `json:"caption,omitempty"`

	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Time       time.Time `json:"time"`
}

// Observer receives pipeline events. It is called synchronously from the
// pipeline goroutine and must not block.
type Observer func(Event)

// Observers fans one event out to several observers.
func Observers(obs ...Observer) Observer {
	return func(e Event) {
		for _, o := range obs {
			if o != nil {
				o(e)
			}
		}
	}
}
