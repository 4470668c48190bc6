package publishers

// Logger defines the logging surface sinks rely on. It matches the
// runtime logger so a single zap adapter serves every package.
type Logger interface {
	InfoObj(msg, key string, obj any)
	DebugObj(msg, key string, obj any)
	WarnObj(msg, key string, obj any)
	ErrorObj(msg, key string, obj any)
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, any)  {}
func (noopLogger) DebugObj(string, string, any) {}
func (noopLogger) WarnObj(string, string, any)  {}
func (noopLogger) ErrorObj(string, string, any) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}

// logFields describes a delivery attempt without the snapshot payload.
func logFields(publisherID string, evt Event, extra map[string]any) map[string]any {
	out := map[string]any{
		"publisher_id": publisherID,
		"event_id":     evt.ID,
		"job_id":       evt.JobID,
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
