// Package component defines the surface a plug-in author implements:
// ParameterInfos/CreateProcessor at the component level, plus the
// Synth/Effect DSP object contracts the runtime drives every buffer.
package component

import (
	"github.com/blackboxaudio/vstcore/pkg/bus"
	"github.com/blackboxaudio/vstcore/pkg/events"
	"github.com/blackboxaudio/vstcore/pkg/expression"
	"github.com/blackboxaudio/vstcore/pkg/param"
	"github.com/blackboxaudio/vstcore/pkg/paramview"
)

// ProcessingMode distinguishes realtime playback from the prefetch and
// fully-offline rendering modes a host may request.
type ProcessingMode int

const (
	ModeRealtime ProcessingMode = iota
	ModePrefetch
	ModeOffline
)

// HostInfo is whatever ambient information the host makes available at
// instantiation time, passed to ParameterInfos so a component can vary
// its parameter set. Kept explicit rather than global: everything a
// component learns about its host arrives through arguments.
type HostInfo struct {
	Name    string
	Version string
}

// ProcessingEnvironment is passed once, at CreateProcessor time,
// describing the conditions the returned DSP object will run under.
type ProcessingEnvironment struct {
	SampleRate              float64
	MaxFramesPerProcessCall int32
	Buses                   *bus.Configuration
	Mode                    ProcessingMode
}

// ProcessData is the per-buffer argument to a DSP object's Process
// call. Input is nil for synths. Output and (when present) Input carry
// one slice per channel, each sized to NumFrames, matching the channel
// layout declared in ProcessingEnvironment.Buses. Expression is the
// per-note carry-over state; a synth hands it to its voice scheduler,
// which builds each voice's per-buffer expression curves from it.
type ProcessData struct {
	Events     []events.Event
	Params     paramview.BufferStates
	Expression *expression.Tracker
	Input      [][]float32
	Output     [][]float32
	NumFrames  int
}

// DSPProcessor is the behavior shared by every DSP object a component
// creates, regardless of synth/effect variant.
type DSPProcessor interface {
	// SetProcessing is called on bypass/resume. Implementations MUST
	// reset all internal state to silence when passed false, so that
	// resuming behaves exactly like a freshly constructed processor.
	SetProcessing(active bool)
}

// Synth is the component-level contract for an instrument: it reports
// its own parameters and builds a SynthProcessor per instantiation.
type Synth interface {
	// ParameterInfos is called once per instantiation; its result must
	// be stable for the instance's lifetime.
	ParameterInfos(host HostInfo) []param.Info
	CreateProcessor(env ProcessingEnvironment) SynthProcessor
}

// SynthProcessor is the per-instance DSP object for a Synth.
type SynthProcessor interface {
	DSPProcessor
	// HandleEvents consumes zero-offset events delivered outside the
	// audio callback.
	HandleEvents(evs []events.Event)
	// Process renders one buffer. data.Events is sorted by sample
	// offset.
	Process(data ProcessData)
}

// Effect is the component-level contract for a processing effect. It
// must declare a bypass parameter id at construction; that parameter
// must be registered as a switch defaulting to off.
type Effect interface {
	ParameterInfos(host HostInfo) []param.Info
	CreateProcessor(env ProcessingEnvironment) EffectProcessor
	BypassParamID() string
}

// EffectProcessor is the per-instance DSP object for an Effect.
type EffectProcessor interface {
	DSPProcessor
	Process(data ProcessData)
}
