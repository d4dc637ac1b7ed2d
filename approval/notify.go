package approval

import (
	"context"

	"github.com/rs/zerolog"
)

// =============================================================================
// NOTIFICATIONS - Fire-and-forget lifecycle events
// =============================================================================

// EventType names a notification-worthy lifecycle event.
type EventType string

const (
	EventSubmitted     EventType = "request.submitted"
	EventStageApproved EventType = "request.stage_approved"
	EventApproved      EventType = "request.approved"
	EventRejected      EventType = "request.rejected"
)

// Event is handed to the notification sink after a state change has
// committed. Recipient is who should hear about it: the next approver
// for submissions and stage approvals, the requester for terminal
// outcomes.
type Event struct {
	Type      EventType
	Request   *Request
	Recipient EmployeeID
	ActorID   EmployeeID
	Reason    string // rejection reason, when applicable
}

// NotificationSink delivers events. Delivery failures must never fail
// the state change that produced the event; the engine logs and moves
// on. Implementations are expected to be fast or to queue internally.
type NotificationSink interface {
	Notify(ctx context.Context, e Event) error
}

// =============================================================================
// LOG SINK - The default sink; writes events to the structured log
// =============================================================================

// LogSink logs every event instead of delivering it anywhere. Used in
// tests and as the default until a real channel (email, chat webhook)
// is configured.
type LogSink struct {
	Log zerolog.Logger
}

func (s *LogSink) Notify(_ context.Context, e Event) error {
	s.Log.Info().
		Str("event", string(e.Type)).
		Str("request_id", string(e.Request.ID)).
		Str("request_number", e.Request.Number).
		Str("kind", string(e.Request.Kind)).
		Str("recipient", string(e.Recipient)).
		Str("actor", string(e.ActorID)).
		Msg("notification")
	return nil
}

// MultiSink fans an event out to several sinks. The first error is
// returned after every sink has been tried.
type MultiSink []NotificationSink

func (m MultiSink) Notify(ctx context.Context, e Event) error {
	var first error
	for _, s := range m {
		if err := s.Notify(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
