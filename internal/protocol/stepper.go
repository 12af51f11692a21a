package protocol

// StepperStep is one step of a generic Stepper: plain work with no
// production/rule coupling, the analog of the STEP_FUNCTION macro
// family (FIRST_STEP/NEXT_STEP/REPEAT_STEP_WHILE/RETURN_STEP).
type StepperStep func()

// Stepper runs a sequence of plain steps one per call, using the same
// step_index/compare_counter trick as Protocol but without a
// production.Engine dependency. Useful for host-side polling loops that
// want "do a little work each call" semantics without their own state
// machine (e.g. examples.NewProtocolChainStepper, which installs several
// Protocols one after another).
type Stepper struct {
	steps     []StepperStep
	skipIf    func() bool
	repeatAt  int
	repeatIf  func() bool
	stepIndex int
	done      bool
}

// NewStepper builds a Stepper from its ordered steps.
func NewStepper(steps ...StepperStep) *Stepper {
	return &Stepper{steps: steps, repeatAt: -1}
}

// SkipIf installs a guard checked at the start of every Run call; when
// it returns true the call returns immediately without advancing or
// running any step, the analog of SKIP_STEPS_IF.
func (s *Stepper) SkipIf(guard func() bool) *Stepper {
	s.skipIf = guard
	return s
}

// RepeatWhile marks the step at the given index (0-based, in the order
// passed to NewStepper) as repeating while cond holds, the analog of
// REPEAT_STEP_WHILE attached to a NEXT_STEP block.
func (s *Stepper) RepeatWhile(stepIndex int, cond func() bool) *Stepper {
	s.repeatAt = stepIndex
	s.repeatIf = cond
	return s
}

// Done reports whether the Stepper has run past its last step.
func (s *Stepper) Done() bool { return s.done }

// Reset rewinds the Stepper to its first step, for re-running a
// completed sequence.
func (s *Stepper) Reset() { s.stepIndex = 0; s.done = false }

// ForceNextStep skips directly to the next step on the following Run
// call, regardless of any repeat condition — the analog of calling
// RETURN_STEP from inside step logic to force advancement.
func (s *Stepper) ForceNextStep() {
	if s.stepIndex == s.repeatAt {
		s.stepIndex++
	}
}

// Run executes exactly the current step and advances, unless SkipIf's
// guard holds or the step is mid-repeat.
func (s *Stepper) Run() {
	if s.done || len(s.steps) == 0 {
		s.done = true
		return
	}
	if s.skipIf != nil && s.skipIf() {
		return
	}

	s.steps[s.stepIndex]()

	if s.stepIndex == s.repeatAt && s.repeatIf != nil && s.repeatIf() {
		return
	}
	s.stepIndex++
	if s.stepIndex >= len(s.steps) {
		s.done = true
	}
}
