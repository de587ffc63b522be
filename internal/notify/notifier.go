// Package notify is the outbound event port of the task core. Mutations
// publish named events here after commit; delivery (websockets, email, queues)
// is a downstream collaborator attached as a Sink. Publishing never blocks,
// so a slow subscriber cannot stall a task mutation.
package notify

import "log/slog"

// Event names emitted by the core.
const (
	EventTaskCreated        = "task.created"
	EventTaskUpdated        = "task.updated"
	EventTaskDeleted        = "task.deleted"
	EventTaskAssigned       = "task.assigned"
	EventTaskCompleted      = "task.completed"
	EventScopeBlockProgress = "scopeBlock.progress"
	EventProgressUpdated    = "progress.updated"
)

// GlobalRoom is the room key for the global stream.
const GlobalRoom = "global"

// TrackRoom returns the room key for a track.
func TrackRoom(trackID string) string {
	return "track:" + trackID
}

// UserRoom returns the room key for a single user.
func UserRoom(userID string) string {
	return "user:" + userID
}

// Event is an outbound notification: a name, a routing room, and enough
// context (track id, entity id) for the transport to route it.
type Event struct {
	Name     string
	Room     string
	TrackID  string
	EntityID string
	Payload  map[string]any
}

// Notifier is the port mutations publish through.
type Notifier interface {
	Publish(event Event)
}

// Sink receives dispatched events. Implementations belong to the transport
// collaborator; a slog-backed sink is provided for development.
type Sink interface {
	Deliver(event Event)
}

// Dispatcher fans events out to sinks from a buffered queue. Publish drops
// the event with a warning when the queue is full rather than blocking the
// mutation path.
type Dispatcher struct {
	queue chan Event
	done  chan struct{}
}

// NewDispatcher starts a dispatcher draining to the given sinks.
func NewDispatcher(buffer int, sinks ...Sink) *Dispatcher {
	d := &Dispatcher{
		queue: make(chan Event, buffer),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(d.done)
		for event := range d.queue {
			for _, sink := range sinks {
				sink.Deliver(event)
			}
		}
	}()
	return d
}

// Publish enqueues an event without blocking.
func (d *Dispatcher) Publish(event Event) {
	select {
	case d.queue <- event:
	default:
		slog.Warn("notification queue full, event dropped",
			"event", event.Name,
			"room", event.Room,
			"entity_id", event.EntityID,
		)
	}
}

// Close stops the dispatcher after draining queued events.
func (d *Dispatcher) Close() {
	close(d.queue)
	<-d.done
}

// LogSink logs delivered events. Stands in for the real-time transport in
// development and tests.
type LogSink struct{}

// Deliver implements Sink.
func (LogSink) Deliver(event Event) {
	slog.Info("event delivered",
		"event", event.Name,
		"room", event.Room,
		"track_id", event.TrackID,
		"entity_id", event.EntityID,
	)
}
