package logger

// NullLogger discards everything. It is the default when a component is
// constructed without a logger, so evaluators never nil-check before
// emitting.
type NullLogger struct{}

func NewNullLogger() *NullLogger { return &NullLogger{} }

func (NullLogger) Error(string, ...any) {}
func (NullLogger) Info(string, ...any)  {}
func (NullLogger) Debug(string, ...any) {}
