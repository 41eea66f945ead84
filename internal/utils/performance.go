package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// slowOperation is the duration above which a timed operation is logged at warn level
const slowOperation = 10 * time.Second

// Timer measures how long a ledger operation took and logs it on Stop
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
}

// NewTimer creates a new timer with the given name
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
		log:   log,
	}
}

// Stop logs the elapsed duration and returns it
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)

	event := t.log.Debug()
	msg := "Performance measurement"
	if duration > slowOperation {
		event = t.log.Warn()
		msg = "Slow operation detected"
	}
	event.
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Msg(msg)

	return duration
}
