package session

// Sink receives each newly generated text fragment. The slice is only valid
// for the duration of the call.
type Sink interface {
	Accept(fragment []byte)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(fragment []byte)

func (f SinkFunc) Accept(fragment []byte) { f(fragment) }
