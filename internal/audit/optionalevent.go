package audit

import (
	"time"

	"github.com/rs/zerolog"
)

// OptionalEvent is a zerolog dictionary that is only written to its parent
// when at least one field was added, so empty sections are left out of the
// audit entry.
type OptionalEvent struct {
	ev       *zerolog.Event
	modified bool
}

func NewOptionalEvent() *OptionalEvent {
	return &OptionalEvent{ev: zerolog.Dict()}
}

// Set writes the dictionary to parent under key if it has any fields.
func (oe *OptionalEvent) Set(parent *zerolog.Event, key string) bool {
	if !oe.modified {
		return false
	}
	parent.Dict(key, oe.ev)
	return true
}

func (oe *OptionalEvent) Str(key, val string) *OptionalEvent {
	if val == "" {
		return oe
	}
	oe.ev.Str(key, val)
	oe.modified = true
	return oe
}

func (oe *OptionalEvent) Strs(key string, vals []string) *OptionalEvent {
	if len(vals) == 0 {
		return oe
	}
	oe.ev.Strs(key, vals)
	oe.modified = true
	return oe
}

func (oe *OptionalEvent) Time(key string, val time.Time) *OptionalEvent {
	if val.IsZero() {
		return oe
	}
	oe.ev.Time(key, val)
	oe.modified = true
	return oe
}
