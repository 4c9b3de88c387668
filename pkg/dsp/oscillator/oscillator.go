// Package oscillator provides phase-accumulating waveform generators
// for building instrument voices.
package oscillator

import "math"

// Waveform selects the generated shape.
type Waveform int

const (
	Sine Waveform = iota
	Saw
	Square
	Triangle
)

// Oscillator generates one periodic waveform with a normalized phase
// in [0, 1). Frequency changes take effect on the next sample, which
// is what per-note pitch-bend curves need.
type Oscillator struct {
	sampleRate float64
	phase      float64
	phaseInc   float64
}

// New creates an oscillator at the given sample rate with zero
// frequency: its phase stays at 0 until a frequency is set, so Sine
// outputs 0 while the other waveforms output their constant phase-0
// value.
func New(sampleRate float64) *Oscillator {
	return &Oscillator{sampleRate: sampleRate}
}

// SetFrequency sets the oscillator frequency in Hz.
func (o *Oscillator) SetFrequency(freq float64) {
	o.phaseInc = freq / o.sampleRate
}

// SetPitch sets the frequency from a MIDI note number plus a bend in
// semitones, with A4 (note 69) at 440 Hz.
func (o *Oscillator) SetPitch(note uint8, bendSemitones float64) {
	o.SetFrequency(440.0 * math.Exp2((float64(note)+bendSemitones-69.0)/12.0))
}

// Reset returns the phase to 0 so a retriggered voice starts
// identically to a fresh one.
func (o *Oscillator) Reset() {
	o.phase = 0
}

// Advance moves the phase forward n samples without generating
// output, for voices skipped while quiescent.
func (o *Oscillator) Advance(n int) {
	o.phase += o.phaseInc * float64(n)
	o.phase -= math.Floor(o.phase)
}

// Next generates one sample of the selected waveform and advances the
// phase.
func (o *Oscillator) Next(w Waveform) float32 {
	var sample float32
	switch w {
	case Saw:
		sample = float32(2.0*o.phase - 1.0)
	case Square:
		if o.phase < 0.5 {
			sample = 1.0
		} else {
			sample = -1.0
		}
	case Triangle:
		if o.phase < 0.5 {
			sample = float32(4.0*o.phase - 1.0)
		} else {
			sample = float32(3.0 - 4.0*o.phase)
		}
	default:
		sample = float32(math.Sin(2.0 * math.Pi * o.phase))
	}
	o.phase += o.phaseInc
	if o.phase >= 1.0 {
		o.phase -= math.Floor(o.phase)
	}
	return sample
}

// Process fills buffer with the selected waveform.
func (o *Oscillator) Process(w Waveform, buffer []float32) {
	for i := range buffer {
		buffer[i] = o.Next(w)
	}
}
