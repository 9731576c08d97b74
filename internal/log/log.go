package log

// Kv is a helper type for structured logging fields usage.
type Kv = map[string]interface{}

// Logger is the interface that the loggers used by the library will implement.
type Logger interface {
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	WithValues(values map[string]interface{}) Logger
}

// Noop logger doesn't log anything.
const Noop = noop(0)

type noop int

func (noop) Infof(format string, args ...interface{})    {}
func (noop) Warningf(format string, args ...interface{}) {}
func (noop) Errorf(format string, args ...interface{})   {}
func (noop) Debugf(format string, args ...interface{})   {}
func (noop) WithValues(map[string]interface{}) Logger    { return Noop }
