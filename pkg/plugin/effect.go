package plugin

import (
	"fmt"

	"github.com/blackboxaudio/vstcore/pkg/bus"
	"github.com/blackboxaudio/vstcore/pkg/component"
	"github.com/blackboxaudio/vstcore/pkg/debug"
	"github.com/blackboxaudio/vstcore/pkg/param"
)

// BypassErrorKind enumerates the ways an effect's mandatory bypass
// declaration can be invalid. All of these abort instance creation.
type BypassErrorKind int

const (
	// BypassErrMissing means the declared bypass id is not in the
	// effect's parameter list.
	BypassErrMissing BypassErrorKind = iota
	// BypassErrNotSwitch means the bypass parameter is not a switch.
	BypassErrNotSwitch
	// BypassErrDefaultOn means the bypass switch defaults to on, which
	// would instantiate the effect bypassed.
	BypassErrDefaultOn
)

// BypassError reports an invalid bypass declaration.
type BypassError struct {
	Kind BypassErrorKind
	ID   string
}

func (e *BypassError) Error() string {
	switch e.Kind {
	case BypassErrMissing:
		return fmt.Sprintf("plugin: bypass parameter %q not declared", e.ID)
	case BypassErrNotSwitch:
		return fmt.Sprintf("plugin: bypass parameter %q is not a switch", e.ID)
	case BypassErrDefaultOn:
		return fmt.Sprintf("plugin: bypass parameter %q must default to off", e.ID)
	default:
		return fmt.Sprintf("plugin: bypass parameter %q invalid", e.ID)
	}
}

// EffectWrapper hosts a component.Effect behind the processor
// contract.
type EffectWrapper struct {
	wrapperCore
	effect    component.Effect
	processor component.EffectProcessor
}

// NewEffectWrapper wraps an effect component. buses defaults to
// stereo in/out when nil.
func NewEffectWrapper(info Info, effect component.Effect, buses *bus.Configuration) *EffectWrapper {
	if buses == nil {
		buses = bus.NewStereoConfiguration()
	}
	return &EffectWrapper{
		wrapperCore: wrapperCore{info: info, buses: buses, log: debug.Default()},
		effect:      effect,
	}
}

// Initialize builds the parameter registry and store, and verifies
// the declared bypass parameter: it must exist and be a switch
// defaulting to off. A bad bypass declaration aborts instance
// creation.
func (w *EffectWrapper) Initialize(host component.HostInfo) error {
	infos := w.effect.ParameterInfos(host)
	if err := validateBypass(w.effect.BypassParamID(), infos); err != nil {
		return err
	}
	return w.initialize(host, infos)
}

func validateBypass(bypassID string, infos []param.Info) error {
	for _, info := range infos {
		if info.ID != bypassID {
			continue
		}
		if info.Kind != param.KindSwitch {
			return &BypassError{Kind: BypassErrNotSwitch, ID: bypassID}
		}
		if info.Switch.Default {
			return &BypassError{Kind: BypassErrDefaultOn, ID: bypassID}
		}
		return nil
	}
	return &BypassError{Kind: BypassErrMissing, ID: bypassID}
}

// SetActive constructs the DSP processor on activation and releases it
// on deactivation.
func (w *EffectWrapper) SetActive(active bool) error {
	if !w.initialized {
		return ErrNotInitialized
	}
	if active {
		if w.sampleRate == 0 {
			return ErrInvalidArgument
		}
		w.processor = w.effect.CreateProcessor(w.env())
	} else {
		w.processing = false
		w.processor = nil
	}
	w.active = active
	return nil
}

// SetProcessing transitions the DSP to or from the audio-live state;
// leaving it resets the processor to silence.
func (w *EffectWrapper) SetProcessing(on bool) error {
	if !w.active {
		return ErrNotActive
	}
	w.processor.SetProcessing(on)
	w.processing = on
	return nil
}

// Process runs one buffer through the effect.
func (w *EffectWrapper) Process(data ProcessData) error {
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
	w.processor.Process(component.ProcessData{
		Params:    states,
		Input:     data.Inputs,
		Output:    data.Outputs,
		NumFrames: data.NumFrames,
	})
	return nil
}

// GetState serializes the persisted snapshot to the host stream.
func (w *EffectWrapper) GetState(stream Stream) error { return w.getState(stream) }

// SetState loads a persisted snapshot from the host stream.
func (w *EffectWrapper) SetState(stream Stream) error { return w.setState(stream) }
