package session

// Event represents a session lifecycle event.
// Minimal and stable: name + model path and optional fields via key/values.
type Event struct {
	Name   string
	Model  string
	Fields map[string]any
}

// Event names.
const (
	EventLoadStart        = "load_start"
	EventModelLoaded      = "model_loaded"
	EventModelLoadFailed  = "model_load_failed"
	EventContextResized   = "context_resized"
	EventIngestDone       = "ingest_done"
	EventGenerationDone   = "generation_done"
	EventGenerationFailed = "generation_failed"
	EventStopRequested    = "stop_requested"
)

// EventPublisher receives events from the session. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// SetEventPublisher replaces the publisher. nil restores the no-op default.
func (s *Session) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	s.pub = p
}

func (s *Session) publish(name string, fields map[string]any) {
	s.pub.Publish(Event{Name: name, Model: s.path, Fields: fields})
}
