package log

// Logger receives protocol events. Implementations are called from read
// loops, so they must be safe for concurrent use and return quickly.
type Logger interface {
	Log(event Event)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Event)

// Log calls f.
func (f LoggerFunc) Log(event Event) { f(event) }

// NoopLogger discards every event.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(Event) {}

// MultiLogger fans events out to several loggers. Nil entries are skipped.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Log sends the event to every logger in order.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// FilterLogger forwards only the events matching a Filter, e.g. database
// point events to the console while the capture file gets everything.
type FilterLogger struct {
	next   Logger
	filter Filter
}

// NewFilterLogger wraps next.
func NewFilterLogger(next Logger, filter Filter) *FilterLogger {
	return &FilterLogger{next: next, filter: filter}
}

// Log forwards event when it matches.
func (f *FilterLogger) Log(event Event) {
	if f.filter.Match(event) {
		f.next.Log(event)
	}
}

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
	_ Logger = (*MultiLogger)(nil)
	_ Logger = (*FilterLogger)(nil)
)
