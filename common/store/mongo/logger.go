package mongo

import "github.com/rs/zerolog"

// logSink forwards driver log records to zerolog. The driver uses level 1
// for info and 2 for debug.
type logSink struct {
	log zerolog.Logger
}

func newLogSink(l zerolog.Logger) *logSink {
	return &logSink{log: l.With().Str("component", "mongo").Logger()}
}

func (l *logSink) Info(level int, message string, keysAndValues ...any) {
	var event *zerolog.Event
	switch level {
	case 1:
		event = l.log.Info()
	case 2:
		event = l.log.Debug()
	default:
		return
	}
	l.withFields(event, keysAndValues...).Msg(message)
}

func (l *logSink) Error(err error, message string, keysAndValues ...any) {
	l.withFields(l.log.Error().Err(err), keysAndValues...).Msg(message)
}

func (l *logSink) withFields(event *zerolog.Event, keysAndValues ...any) *zerolog.Event {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			event = event.Interface(key, keysAndValues[i+1])
		}
	}
	return event
}
