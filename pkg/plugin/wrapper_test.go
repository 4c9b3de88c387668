package plugin

import (
	"errors"
	"math"
	"testing"

	"github.com/blackboxaudio/vstcore/pkg/component"
	"github.com/blackboxaudio/vstcore/pkg/events"
	"github.com/blackboxaudio/vstcore/pkg/expression"
	"github.com/blackboxaudio/vstcore/pkg/param"
	"github.com/blackboxaudio/vstcore/pkg/paramview"
	"github.com/blackboxaudio/vstcore/pkg/snapshot"
)

// testSynth is a deterministic one-oscillator synth: while a note is
// held it emits a sine keyed to a running sample counter, so two
// processors that saw the same inputs produce bit-identical output.
type testSynth struct{}

func (testSynth) ParameterInfos(component.HostInfo) []param.Info {
	return []param.Info{
		{ID: "volume", Title: "Volume", Kind: param.KindNumeric, Automatable: true,
			Numeric: param.NumericInfo{Min: 0, Max: 1, Default: 0.8}},
		{ID: "wave", Title: "Wave", Kind: param.KindEnum,
			Enum: param.EnumInfo{Labels: []string{"sine", "saw"}}},
	}
}

func (testSynth) CreateProcessor(env component.ProcessingEnvironment) component.SynthProcessor {
	return &testSynthProcessor{}
}

type testSynthProcessor struct {
	n       uint64
	holding bool
	seen    []events.Event
}

func (p *testSynthProcessor) SetProcessing(active bool) {
	if !active {
		p.n = 0
		p.holding = false
	}
}

func (p *testSynthProcessor) HandleEvents(evs []events.Event) {
	p.seen = append(p.seen, evs...)
}

func (p *testSynthProcessor) Process(data component.ProcessData) {
	p.seen = append(p.seen, data.Events...)
	cursor := 0
	for i := 0; i < data.NumFrames; i++ {
		for cursor < len(data.Events) && data.Events[cursor].SampleOffset == i {
			switch data.Events[cursor].Kind {
			case events.EventNoteOn:
				p.holding = true
			case events.EventNoteOff:
				p.holding = false
			}
			cursor++
		}
		var sample float32
		if p.holding {
			sample = float32(math.Sin(float64(p.n) * 0.1))
		}
		for _, ch := range data.Output {
			ch[i] = sample
		}
		p.n++
	}
}

func newActiveSynth(t *testing.T) *SynthWrapper {
	t.Helper()
	w := NewSynthWrapper(Info{ID: "test.synth", Name: "Test Synth"}, testSynth{}, nil)
	if err := w.Initialize(component.HostInfo{Name: "testhost"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := w.Setup(48000, 128, component.ModeRealtime); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := w.SetActive(true); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := w.SetProcessing(true); err != nil {
		t.Fatalf("SetProcessing: %v", err)
	}
	return w
}

func synthBuffers(frames int) [][]float32 {
	return [][]float32{make([]float32, frames), make([]float32, frames)}
}

func TestInitializeTwiceFails(t *testing.T) {
	w := NewSynthWrapper(Info{ID: "test.synth"}, testSynth{}, nil)
	if err := w.Initialize(component.HostInfo{}); err != nil {
		t.Fatalf("first Initialize: %v", err)
	}
	if err := w.Initialize(component.HostInfo{}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestProcessRequiresProcessingState(t *testing.T) {
	w := NewSynthWrapper(Info{ID: "test.synth"}, testSynth{}, nil)
	if err := w.Initialize(component.HostInfo{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	err := w.Process(ProcessData{Outputs: synthBuffers(32), NumFrames: 32})
	if !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive before SetProcessing, got %v", err)
	}
}

func TestProcessRejectsBadBuffers(t *testing.T) {
	w := newActiveSynth(t)

	// Too many frames for the declared maximum.
	err := w.Process(ProcessData{Outputs: synthBuffers(4096), NumFrames: 4096})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for oversized buffer, got %v", err)
	}

	// Wrong channel count.
	err = w.Process(ProcessData{Outputs: [][]float32{make([]float32, 32)}, NumFrames: 32})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for mono output on stereo bus, got %v", err)
	}

	// Events out of order.
	id := events.NoteIDFromPitchValue(60)
	err = w.Process(ProcessData{
		Outputs:   synthBuffers(32),
		NumFrames: 32,
		InputEvents: []events.Event{
			events.NoteOn(10, events.NoteData{ID: id, Pitch: 60}),
			events.NoteOff(5, events.NoteData{ID: id, Pitch: 60}),
		},
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unsorted events, got %v", err)
	}
}

func TestSetBusArrangement(t *testing.T) {
	w := NewSynthWrapper(Info{ID: "test.synth"}, testSynth{}, nil)
	if err := w.Initialize(component.HostInfo{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := w.SetBusArrangement(0, 2); err != nil {
		t.Errorf("expected 0-in/2-out accepted for instrument, got %v", err)
	}
	if err := w.SetBusArrangement(2, 2); !errors.Is(err, ErrUnsupportedArrangement) {
		t.Errorf("expected ErrUnsupportedArrangement, got %v", err)
	}
}

func TestStateRoundTrip(t *testing.T) {
	w := newActiveSynth(t)
	volHash, _ := w.Registry().HashOf("volume")
	if err := w.Main().Set(volHash, param.NumericValue(0.25)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	stream := NewBufferStream()
	if err := w.GetState(stream); err != nil {
		t.Fatalf("GetState: %v", err)
	}

	w2 := newActiveSynth(t)
	if err := w2.SetState(NewBufferStreamFrom(stream.Bytes())); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	v, ok := w2.Main().Get(volHash)
	if !ok || v.Numeric != 0.25 {
		t.Errorf("expected volume 0.25 after state load, got %+v ok=%v", v, ok)
	}
}

func TestSetStateVersionTooNewRevertsToDefaults(t *testing.T) {
	// A snapshot holding a value outside the current range must reset
	// every parameter to its default, not keep old values.
	blob, err := snapshot.Encode(map[string]param.Value{
		"volume": param.NumericValue(4),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	stream := NewBufferStream()
	if err := writeBlob(stream, blob); err != nil {
		t.Fatalf("writeBlob: %v", err)
	}

	w := newActiveSynth(t)
	volHash, _ := w.Registry().HashOf("volume")
	if err := w.Main().Set(volHash, param.NumericValue(0.1)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	err = w.SetState(NewBufferStreamFrom(stream.Bytes()))
	var tooNew *snapshot.VersionTooNewError
	if !errors.As(err, &tooNew) {
		t.Fatalf("expected VersionTooNewError, got %v", err)
	}
	v, _ := w.Main().Get(volHash)
	if v.Numeric != 0.8 {
		t.Errorf("expected default 0.8 after failed load, got %v", v.Numeric)
	}
}

func TestSetStateCorruptedLeavesStateUntouched(t *testing.T) {
	w := newActiveSynth(t)
	volHash, _ := w.Registry().HashOf("volume")
	if err := w.Main().Set(volHash, param.NumericValue(0.3)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	stream := NewBufferStream()
	if err := writeBlob(stream, []byte{0xff, 0x01}); err != nil {
		t.Fatalf("writeBlob: %v", err)
	}
	err := w.SetState(NewBufferStreamFrom(stream.Bytes()))
	var corrupted *snapshot.CorruptedError
	if !errors.As(err, &corrupted) {
		t.Fatalf("expected CorruptedError, got %v", err)
	}
	v, _ := w.Main().Get(volHash)
	if v.Numeric != 0.3 {
		t.Errorf("expected value untouched after corrupt load, got %v", v.Numeric)
	}
}

func TestQuirkParameterChangeReachesProcessorAsExpression(t *testing.T) {
	w := newActiveSynth(t)
	pitchHash, _ := w.Registry().HashOf(expression.ReservedParamID(expression.QuirkPitch, 1))

	id := events.NoteIDFromChannel(1)
	err := w.Process(ProcessData{
		Outputs:   synthBuffers(32),
		NumFrames: 32,
		InputEvents: []events.Event{
			events.NoteOn(0, events.NoteData{ID: id, Pitch: 60, Velocity: 1}),
		},
		ParamChanges: paramview.ChangeQueue{
			{ID: pitchHash, Points: []paramview.NormalizedPoint{{SampleOffset: 0, Normalized: 1}}},
		},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	proc := w.processor.(*testSynthProcessor)
	found := false
	for _, ev := range proc.seen {
		if ev.Kind == events.EventNoteExpression &&
			ev.Expression.ID == id &&
			ev.Expression.Kind == events.ExpressionPitchBend {
			found = true
			if ev.Expression.Value != 120 {
				t.Errorf("expected +120 semitones, got %v", ev.Expression.Value)
			}
		}
	}
	if !found {
		t.Error("expected a synthetic pitch-bend expression event from the quirk parameter")
	}
}

func TestSetProcessingFalseMakesResumeBitIdentical(t *testing.T) {
	run := func(w *SynthWrapper) []float32 {
		t.Helper()
		out := synthBuffers(64)
		id := events.NoteIDFromPitchValue(60)
		err := w.Process(ProcessData{
			Outputs:   out,
			NumFrames: 64,
			InputEvents: []events.Event{
				events.NoteOn(0, events.NoteData{ID: id, Pitch: 60, Velocity: 1}),
			},
		})
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		return out[0]
	}

	fresh := newActiveSynth(t)
	want := run(fresh)

	w := newActiveSynth(t)
	run(w) // dirty the processor state
	if err := w.SetProcessing(false); err != nil {
		t.Fatalf("SetProcessing(false): %v", err)
	}
	if err := w.SetProcessing(true); err != nil {
		t.Fatalf("SetProcessing(true): %v", err)
	}
	got := run(w)

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d differs after processing reset: %v vs %v", i, got[i], want[i])
		}
	}
}
