// Package clock provides the monotonic millisecond clock collaborator the
// production engine uses for timeout evaluation (now_millis() in the base
// spec's §6). The core never calls time.Now directly so tests can control
// the passage of time deterministically.
package clock

import "time"

// Clock reports monotonic milliseconds since some fixed, unspecified
// reference point. Only differences between two calls are meaningful.
type Clock interface {
	NowMillis() uint64
}

// System is the production Clock, backed by the Go runtime's monotonic
// clock reading (time.Since against a start time fixed at construction).
type System struct {
	start time.Time
}

// NewSystem creates a System clock anchored to the current instant.
func NewSystem() *System {
	return &System{start: time.Now()}
}

// NowMillis returns milliseconds elapsed since the System clock was created.
func (c *System) NowMillis() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}

// Fake is a deterministic test clock: NowMillis returns whatever value was
// last set with Set or Advance.
type Fake struct {
	millis uint64
}

// NewFake creates a Fake clock reading startMillis.
func NewFake(startMillis uint64) *Fake {
	return &Fake{millis: startMillis}
}

// NowMillis returns the clock's current fake reading.
func (c *Fake) NowMillis() uint64 { return c.millis }

// Set pins the clock to an absolute millisecond value.
func (c *Fake) Set(millis uint64) { c.millis = millis }

// Advance moves the clock forward by the given number of milliseconds.
func (c *Fake) Advance(deltaMillis uint64) { c.millis += deltaMillis }
