package plugin

import (
	"github.com/blackboxaudio/vstcore/pkg/bus"
	"github.com/blackboxaudio/vstcore/pkg/component"
	"github.com/blackboxaudio/vstcore/pkg/debug"
	"github.com/blackboxaudio/vstcore/pkg/events"
	"github.com/blackboxaudio/vstcore/pkg/expression"
	"github.com/blackboxaudio/vstcore/pkg/param"
	"github.com/blackboxaudio/vstcore/pkg/paramstore"
	"github.com/blackboxaudio/vstcore/pkg/paramview"
	"github.com/blackboxaudio/vstcore/pkg/snapshot"
)

// ProcessData is the per-buffer payload a host hands to Process:
// audio buffers, the sorted input event list, and the per-parameter
// change queues.
type ProcessData struct {
	Inputs       [][]float32
	Outputs      [][]float32
	NumFrames    int
	InputEvents  []events.Event
	ParamChanges paramview.ChangeQueue
}

// mergedEventCap sizes the wrapper's reusable merged event list; the
// slice grows past it only under extreme event density.
const mergedEventCap = 1024

// wrapperCore carries the state shared by the synth and effect
// wrappers: lifecycle flags, the registry/store pair, and the
// expression translation machinery.
type wrapperCore struct {
	info  Info
	buses *bus.Configuration
	log   *debug.Logger

	initialized bool
	active      bool
	processing  bool

	host     component.HostInfo
	registry *param.Registry
	store    *paramstore.Store
	main     *paramstore.MainHandle
	audio    *paramstore.AudioHandle

	sampleRate float64
	maxFrames  int32
	mode       component.ProcessingMode

	tracker *expression.Tracker
	quirk   *expression.Translator
	merged  []events.Event
}

// initialize builds the registry and store over the component's
// parameters plus the framework-reserved MPE-quirk cells. Called
// exactly once; a second call is a host error.
func (w *wrapperCore) initialize(host component.HostInfo, componentInfos []param.Info) error {
	if w.initialized {
		return ErrAlreadyInitialized
	}
	infos := make([]param.Info, 0, len(componentInfos)+3*expression.MaxMpeChannels)
	infos = append(infos, componentInfos...)
	infos = append(infos, expression.ReservedParamInfos()...)

	registry, err := param.NewRegistry(infos)
	if err != nil {
		return err
	}
	w.host = host
	w.registry = registry
	w.store = paramstore.New(registry)
	w.main = w.store.Main()
	w.audio = w.store.Audio()
	w.audio.Scratch()
	w.tracker = expression.NewTracker()
	w.quirk = expression.NewTranslator(registry)
	w.merged = make([]events.Event, 0, mergedEventCap)
	w.initialized = true
	w.log.Info("%s: initialized for host %q", w.info.Name, host.Name)
	return nil
}

// Setup records the processing conditions the host will run under.
// Must be called before activation.
func (w *wrapperCore) Setup(sampleRate float64, maxFrames int32, mode component.ProcessingMode) error {
	if !w.initialized {
		return ErrNotInitialized
	}
	if w.active {
		return ErrInvalidArgument
	}
	if sampleRate <= 0 || maxFrames <= 0 {
		return ErrInvalidArgument
	}
	w.sampleRate = sampleRate
	w.maxFrames = maxFrames
	w.mode = mode
	return nil
}

// SetBusArrangement accepts or rejects a host-proposed channel layout.
func (w *wrapperCore) SetBusArrangement(inputChannels, outputChannels int) error {
	if !w.initialized {
		return ErrNotInitialized
	}
	if !w.buses.Matches(inputChannels, outputChannels) {
		return ErrUnsupportedArrangement
	}
	return nil
}

// Registry exposes the parameter metadata to the edit-controller glue.
func (w *wrapperCore) Registry() *param.Registry { return w.registry }

// Main exposes the store's main-thread handle to the edit-controller
// glue. Never call its methods from the audio callback.
func (w *wrapperCore) Main() *paramstore.MainHandle { return w.main }

func (w *wrapperCore) env() component.ProcessingEnvironment {
	return component.ProcessingEnvironment{
		SampleRate:              w.sampleRate,
		MaxFramesPerProcessCall: w.maxFrames,
		Buses:                   w.buses,
		Mode:                    w.mode,
	}
}

// validateBuffers checks a process call's payload against the declared
// layout before any state changes.
func (w *wrapperCore) validateBuffers(data ProcessData) error {
	if data.NumFrames <= 0 || int32(data.NumFrames) > w.maxFrames {
		return ErrInvalidArgument
	}
	if len(data.Inputs) != w.buses.ChannelCount(bus.DirectionInput) ||
		len(data.Outputs) != w.buses.ChannelCount(bus.DirectionOutput) {
		return ErrInvalidArgument
	}
	for _, ch := range data.Inputs {
		if len(ch) < data.NumFrames {
			return ErrInvalidArgument
		}
	}
	for _, ch := range data.Outputs {
		if len(ch) < data.NumFrames {
			return ErrInvalidArgument
		}
	}
	if !events.CheckInvariants(data.InputEvents, data.NumFrames) {
		return ErrInvalidArgument
	}
	return nil
}

// prepareBuffer runs the top-of-callback sequence shared by both
// wrapper kinds: drain pending snapshots, then turn the host change
// queue into per-buffer curves.
func (w *wrapperCore) prepareBuffer(data ProcessData) (paramview.BufferStates, error) {
	w.audio.DrainPendingSnapshots()
	states, err := w.audio.ApplyChangeQueue(data.ParamChanges, data.NumFrames)
	if err != nil {
		return nil, ErrInvalidArgument
	}
	return states, nil
}

// translateEvents merges the host's native event stream with the
// synthetic expression events derived from the MPE-quirk parameters,
// producing one offset-sorted stream. Expression values are not
// applied to the tracker here: the scheduler does that after reading
// each voice's carry-over, so curves start from the previous buffer's
// state. The returned slice is reused across buffers.
func (w *wrapperCore) translateEvents(in []events.Event, states paramview.BufferStates) []events.Event {
	w.merged = w.merged[:0]
	for _, ev := range in {
		switch ev.Kind {
		case events.EventNoteOn:
			w.tracker.NoteOn(ev.Note.ID)
			w.merged = append(w.merged, ev)
		case events.EventNoteOff:
			w.tracker.NoteOff(ev.Note.ID)
			w.merged = append(w.merged, ev)
		case events.EventNoteExpression:
			w.merged = append(w.merged, expression.NativeToInternal(ev))
		}
	}
	w.merged = append(w.merged, w.quirk.Derive(states)...)
	events.SortByOffset(w.merged)
	return w.merged
}

// getState serializes the current user-visible snapshot to the host
// stream.
func (w *wrapperCore) getState(stream Stream) error {
	if !w.initialized {
		return ErrNotInitialized
	}
	blob, err := snapshot.Encode(w.main.CurrentSnapshot())
	if err != nil {
		return err
	}
	return writeBlob(stream, blob)
}

// setState decodes a snapshot from the host stream and applies it.
// The application is all-or-nothing: a value out of range for current
// metadata resets every parameter to its default and reports the
// failure, and structural corruption changes nothing.
func (w *wrapperCore) setState(stream Stream) error {
	if !w.initialized {
		return ErrNotInitialized
	}
	blob, err := readBlob(stream)
	if err != nil {
		return &snapshot.CorruptedError{Err: err}
	}
	values, err := snapshot.Decode(blob, w.registry)
	if err != nil {
		if _, tooNew := err.(*snapshot.VersionTooNewError); tooNew {
			w.log.Warn("%s: snapshot from a newer version, reverting to defaults", w.info.Name)
			if applyErr := w.main.ApplySnapshot(w.defaults()); applyErr != nil {
				return applyErr
			}
		}
		return err
	}
	return w.main.ApplySnapshot(values)
}

// defaults builds the all-defaults snapshot for every user-visible
// parameter.
func (w *wrapperCore) defaults() map[string]param.Value {
	out := make(map[string]param.Value, len(w.registry.VisibleIDs()))
	for _, id := range w.registry.VisibleIDs() {
		info, _ := w.registry.InfoByID(id)
		out[id] = info.Default()
	}
	return out
}

// SynthWrapper hosts a component.Synth behind the processor contract.
type SynthWrapper struct {
	wrapperCore
	synth     component.Synth
	processor component.SynthProcessor
}

// NewSynthWrapper wraps a synth component. buses defaults to the
// instrument layout (stereo out, event in) when nil.
func NewSynthWrapper(info Info, synth component.Synth, buses *bus.Configuration) *SynthWrapper {
	if buses == nil {
		buses = bus.NewGeneratorConfiguration()
	}
	return &SynthWrapper{
		wrapperCore: wrapperCore{info: info, buses: buses, log: debug.Default()},
		synth:       synth,
	}
}

// Initialize builds the parameter registry and store. Called once.
func (w *SynthWrapper) Initialize(host component.HostInfo) error {
	return w.initialize(host, w.synth.ParameterInfos(host))
}

// SetActive constructs the DSP processor on activation and releases it
// on deactivation.
func (w *SynthWrapper) SetActive(active bool) error {
	if !w.initialized {
		return ErrNotInitialized
	}
	if active {
		if w.sampleRate == 0 {
			return ErrInvalidArgument
		}
		w.processor = w.synth.CreateProcessor(w.env())
	} else {
		w.processing = false
		w.processor = nil
	}
	w.active = active
	return nil
}

// SetProcessing transitions the DSP to or from the audio-live state.
// Leaving the live state resets the processor and all expression
// carry-over, so resuming is indistinguishable from a fresh start.
func (w *SynthWrapper) SetProcessing(on bool) error {
	if !w.active {
		return ErrNotActive
	}
	if !on {
		w.processor.SetProcessing(false)
		w.tracker.Reset()
		w.quirk.Reset()
	} else {
		w.processor.SetProcessing(true)
	}
	w.processing = on
	return nil
}

// HandleEvents consumes zero-offset events delivered through a
// non-audio code path. No curves are built on this path, so the
// wrapper records expression carry-over directly.
func (w *SynthWrapper) HandleEvents(evs []events.Event) error {
	if !w.active {
		return ErrNotActive
	}
	w.merged = w.merged[:0]
	for _, ev := range evs {
		switch ev.Kind {
		case events.EventNoteOn:
			w.tracker.NoteOn(ev.Note.ID)
			w.merged = append(w.merged, ev)
		case events.EventNoteOff:
			w.tracker.NoteOff(ev.Note.ID)
			w.merged = append(w.merged, ev)
		case events.EventNoteExpression:
			w.merged = append(w.merged, expression.NativeToInternal(ev))
		}
	}
	w.tracker.ApplyEvents(w.merged)
	w.processor.HandleEvents(w.merged)
	return nil
}

// Process renders one buffer through the component.
func (w *SynthWrapper) Process(data ProcessData) error {
	if !w.processing {
		return ErrNotActive
	}
	if err := w.validateBuffers(data); err != nil {
		return err
	}
	states, err := w.prepareBuffer(data)
	if err != nil {
		return err
	}
	merged := w.translateEvents(data.InputEvents, states)
	w.processor.Process(component.ProcessData{
		Events:     merged,
		Params:     states,
		Expression: w.tracker,
		Output:     data.Outputs,
		NumFrames:  data.NumFrames,
	})
	return nil
}

// GetState serializes the persisted snapshot to the host stream.
func (w *SynthWrapper) GetState(stream Stream) error { return w.getState(stream) }

// SetState loads a persisted snapshot from the host stream.
func (w *SynthWrapper) SetState(stream Stream) error { return w.setState(stream) }
