// Package envelope provides an amplitude envelope for shaping
// instrument voices.
package envelope

import "math"

// Stage represents the current envelope stage.
type Stage int

const (
	// StageIdle represents envelope idle state.
	StageIdle Stage = iota
	// StageAttack represents envelope attack phase.
	StageAttack
	// StageDecay represents envelope decay phase.
	StageDecay
	// StageSustain represents envelope sustain phase.
	StageSustain
	// StageRelease represents envelope release phase.
	StageRelease
)

// ADSR is an exponential attack-decay-sustain-release envelope.
type ADSR struct {
	sampleRate float64

	sustain     float64
	attackCoef  float64
	decayCoef   float64
	releaseCoef float64

	stage  Stage
	value  float64
	target float64
}

// New creates an ADSR with moderate defaults: 10 ms attack, 100 ms
// decay, 70% sustain, 300 ms release.
func New(sampleRate float64) *ADSR {
	env := &ADSR{sampleRate: sampleRate}
	env.Set(0.01, 0.1, 0.7, 0.3)
	return env
}

// Set configures all four parameters: attack, decay and release in
// seconds (floored at 1 ms), sustain as a level in [0, 1].
func (e *ADSR) Set(attack, decay, sustain, release float64) {
	e.sustain = math.Min(1.0, math.Max(0.0, sustain))
	e.attackCoef = coef(math.Max(0.001, attack), e.sampleRate)
	e.decayCoef = coef(math.Max(0.001, decay), e.sampleRate)
	e.releaseCoef = coef(math.Max(0.001, release), e.sampleRate)
}

// coef computes the one-pole coefficient reaching ~63% of the target
// in timeSeconds.
func coef(timeSeconds, sampleRate float64) float64 {
	return math.Exp(-1.0 / (timeSeconds * sampleRate))
}

// Trigger starts the attack stage (note on).
func (e *ADSR) Trigger() {
	e.stage = StageAttack
	e.target = 1.0
}

// Release starts the release stage (note off).
func (e *ADSR) Release() {
	if e.stage != StageIdle {
		e.stage = StageRelease
		e.target = 0.0
	}
}

// Reset immediately returns the envelope to idle silence.
func (e *ADSR) Reset() {
	e.stage = StageIdle
	e.value = 0.0
	e.target = 0.0
}

// Active reports whether the envelope is producing output.
func (e *ADSR) Active() bool {
	return e.stage != StageIdle
}

// CurrentStage returns the current envelope stage.
func (e *ADSR) CurrentStage() Stage {
	return e.stage
}

// Next generates the next envelope value.
func (e *ADSR) Next() float32 {
	switch e.stage {
	case StageAttack:
		e.value = e.target + (e.value-e.target)*e.attackCoef
		if e.value >= 0.999 {
			e.value = 1.0
			e.stage = StageDecay
			e.target = e.sustain
		}
	case StageDecay:
		e.value = e.target + (e.value-e.target)*e.decayCoef
		if e.value <= e.sustain+0.001 {
			e.value = e.sustain
			e.stage = StageSustain
		}
	case StageSustain:
		e.value = e.sustain
	case StageRelease:
		e.value = e.target + (e.value-e.target)*e.releaseCoef
		if e.value <= 0.0001 {
			e.value = 0.0
			e.stage = StageIdle
		}
	default:
		return 0
	}
	return float32(e.value)
}
