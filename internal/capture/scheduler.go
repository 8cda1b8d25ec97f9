package capture

// SamplingConfig is immutable for the lifetime of a session.
type SamplingConfig struct {
	Enabled      bool
	Exposure     float32 // (0,1]
	TimePerSample float64
	TimePerFrame  float64
}

// NewSamplingConfig derives Enabled from the multiplier/exposure rule:
// enabled = multiplier > 1 && exposure > 0.
func NewSamplingConfig(multiplier int, exposure float32, fps int) SamplingConfig {
	cfg := SamplingConfig{
		Exposure: exposure,
	}
	cfg.Enabled = multiplier > 1 && exposure > 0
	if fps > 0 {
		cfg.TimePerFrame = 1.0 / float64(fps)
	}
	if cfg.Enabled && multiplier > 0 {
		cfg.TimePerSample = cfg.TimePerFrame / float64(multiplier)
	} else {
		cfg.TimePerSample = cfg.TimePerFrame
	}
	return cfg
}

// shutterClose is 1 - exposure, the point in normalized frame time where
// accumulation stops.
func (c SamplingConfig) shutterClose() float32 {
	return 1 - c.Exposure
}

// SamplingState is the per-stream carry of the scheduler: remainder and the
// first-captured-frame flag.
type SamplingState struct {
	Remainder  float64
	FirstFrame bool
}

// NewSamplingState returns a state ready for a session's first tick.
func NewSamplingState() SamplingState {
	return SamplingState{FirstFrame: true}
}

// Action is the scheduler's per-tick decision.
type Action int

const (
	// ActionNone means the shutter is still closed; nothing to do.
	ActionNone Action = iota
	// ActionPartial means an open-shutter partial weighted_add, no emit.
	ActionPartial
	// ActionComplete means a final weighted_add followed by emit (and
	// possibly additional duplicate emits and a trailing partial add
	// into the cleared buffer), see Decide's Result for the details.
	ActionComplete
	// ActionPassThrough means sampling is disabled: one pass + emit.
	ActionPassThrough
)

// Result is everything CaptureOrchestrator needs to drive
// SamplingAccumulator and the emit path for one tick.
type Result struct {
	Action Action

	// Weight is the weighted_add argument for ActionPartial and the first
	// weighted_add of ActionComplete. Unused for ActionNone/ActionPassThrough.
	Weight float32

	// Emit is true when this tick produces one conversion+enqueue.
	Emit bool

	// AdditionalCopies is the number of extra duplicate frames to emit
	// (literal duplication of the same converted output, per the
	// resolved "additional full copies" semantics) beyond the first
	// emit, when ActionComplete and remainder is still >= 1 after
	// subtracting 1 (i.e. it had reached 2 or more).
	AdditionalCopies int

	// ClearAfterEmit is true when the work buffer must be zeroed after
	// the emit(s) above, before any TrailingWeight add.
	ClearAfterEmit bool

	// TrailingWeight, when nonzero (HasTrailingAdd true), is a further
	// weighted_add into the now-cleared buffer carrying over the portion
	// of this tick's delta that falls after the clear.
	HasTrailingAdd bool
	TrailingWeight float32
}

// Decide implements §4.F's decision table. state is mutated in place to
// carry Remainder forward across ticks; cfg is immutable for the session.
//
// All comparisons against 1.0 are made on the float32 cast of the float64
// remainder, matching the original's load-bearing float-cast rule: comparing
// the double directly produces visible off-by-one emission glitches from
// values like 0.999999999999998 that should have compared equal to 1.0.
func Decide(state *SamplingState, cfg SamplingConfig) Result {
	if !cfg.Enabled {
		return Result{Action: ActionPassThrough, Emit: true}
	}

	shutterClose := cfg.shutterClose()
	old := state.Remainder
	state.Remainder += cfg.TimePerSample / cfg.TimePerFrame

	asFloat := float32(state.Remainder)

	switch {
	case asFloat <= shutterClose:
		return Result{Action: ActionNone}

	case asFloat < 1.0:
		oldFloor := old
		if float64(shutterClose) > oldFloor {
			oldFloor = float64(shutterClose)
		}
		weight := (float32(state.Remainder) - float32(oldFloor)) / cfg.Exposure
		return Result{Action: ActionPartial, Weight: weight}

	default:
		oldFloor := old
		if float64(shutterClose) > oldFloor {
			oldFloor = float64(shutterClose)
		}
		weight := (1 - float32(oldFloor)) / cfg.Exposure

		result := Result{Action: ActionComplete, Weight: weight, Emit: true}

		state.Remainder -= 1.0
		additional := int(state.Remainder)
		if additional > 0 {
			result.AdditionalCopies = additional
			state.Remainder -= float64(additional)
		}
		result.ClearAfterEmit = true

		const epsilon = 1e-9
		if state.Remainder > epsilon && float32(state.Remainder) > shutterClose {
			result.HasTrailingAdd = true
			result.TrailingWeight = (float32(state.Remainder) - shutterClose) / cfg.Exposure
		}

		return result
	}
}
