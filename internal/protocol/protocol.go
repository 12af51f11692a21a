// Package protocol implements the Protocol Stepper: a cooperative
// step-index trampoline that lets a protocol body read like a sequential
// narrative ("perform this, expect these events, then advance") while
// actually being invoked once per production completion, with no
// goroutine or native coroutine behind it.
//
// Grounded on protocol.h/protocol.cpp's PROTOCOL/BEGIN_PROTOCOL/
// RUN_PRODUCTION/RUN_PRODUCTION_AND_REPEAT_IF/ABORT_PROTOCOL/END_PROTOCOL
// macro family: the step_index/compare_counter trick described there is
// reproduced here as an explicit Step slice plus a cursor, instead of a
// static local variable captured by macro expansion.
package protocol

import (
	"log/slog"

	"github.com/dohiam/BLE-protocols/internal/production"
)

// MaxNameLength bounds the debug name recorded for a Protocol, matching
// MAX_PROTOCOL_STRING_SIZE in the base implementation.
const MaxNameLength = 40

// Yield describes how a Step's return value should move the cursor.
type Yield int

const (
	// Advance moves to the next step on the next invocation. Used after
	// a step that configures a one-shot production.
	Advance Yield = iota
	// Repeat keeps the cursor on the current step, for loop bodies
	// driven by RUN_PRODUCTION_AND_REPEAT_IF's repeat condition.
	Repeat
	// Abort sets the protocol-failed flag and ends the protocol now.
	Abort
)

// Context is handed to each Step and carries the Engine the step
// configures. A step that needs ABORT_PROTOCOL semantics returns Abort;
// the protocol-success flag lives on the Protocol, not here.
type Context struct {
	Engine *production.Engine
}

// Step configures (at most) one production and reports how the cursor
// should move. It is called at most once per Protocol.Advance call.
type Step func(ctx *Context) Yield

// Protocol is an ordered list of Steps plus the step_index/working-flag
// state that survives across calls, standing in for the static local
// variables the macro-based original captures per protocol function.
type Protocol struct {
	Name  string
	steps []Step

	stepIndex int
	working   bool
	done      bool
}

// New builds a Protocol from its ordered steps. A name longer than
// MaxNameLength is truncated, matching the original's fixed debug buffer.
func New(name string, steps ...Step) *Protocol {
	if len(name) > MaxNameLength {
		name = name[:MaxNameLength]
	}
	return &Protocol{Name: name, steps: steps, working: true}
}

// Done reports whether this Protocol has run its terminal step (or
// aborted) and should be cleared by the Dispatcher.
func (p *Protocol) Done() bool { return p.done }

// Working reports the protocol-success flag as of the last Advance.
func (p *Protocol) Working() bool { return p.working }

// Advance runs exactly the step at the current cursor and moves the
// cursor per its Yield, mirroring BEGIN_PROTOCOL..END_PROTOCOL: each
// call does one step's worth of work and returns. It is the function
// the Dispatcher re-invokes each time the current production reaches
// Done.
//
// Once the protocol has reached its terminal step or aborted on a
// previous call, Advance runs no step and returns the protocol-success
// flag: true after a clean finish, false after an abort.
func (p *Protocol) Advance(eng *production.Engine, logger *slog.Logger) bool {
	if p.done || p.stepIndex >= len(p.steps) {
		p.done = true
		return p.working
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx := &Context{Engine: eng}
	yield := p.steps[p.stepIndex](ctx)

	switch yield {
	case Abort:
		logger.Warn("protocol step aborted", "protocol", p.Name, "step", p.stepIndex)
		p.working = false
		p.done = true
		return false
	case Repeat:
		// cursor unchanged: the same step configures the next production too.
	default: // Advance
		p.stepIndex++
	}

	if p.stepIndex >= len(p.steps) {
		p.done = true
	}
	return true
}

// RunProductionStep is the building block for a step body that performs
// an action then waits on a one-shot (non-repeating) production, the
// direct analog of the RUN_PRODUCTION macro. Call it as the entire body
// of a Step.
func RunProductionStep(eng *production.Engine) Yield {
	if !eng.RunPerform() {
		return Abort
	}
	return Advance
}

// RunProductionAndRepeatIf is the analog of RUN_PRODUCTION_AND_REPEAT_IF:
// the step's production is configured by the caller before invoking
// this, and cond is evaluated after the perform runs to decide whether
// the same step fires again on the next call.
func RunProductionAndRepeatIf(eng *production.Engine, cond func() bool) Yield {
	if !eng.RunPerform() {
		return Abort
	}
	if cond() {
		return Repeat
	}
	return Advance
}
