package voice

import (
	"testing"

	"github.com/blackboxaudio/vstcore/pkg/events"
	"github.com/blackboxaudio/vstcore/pkg/expression"
	"github.com/blackboxaudio/vstcore/pkg/paramview"
)

type fakeVoice struct {
	handled  []events.Event
	rendered []events.Event
	curves   []expression.VoiceCurves
	reset    bool
	skipped  int
	active   bool
}

func (f *fakeVoice) HandleEvent(ev events.Event) { f.handled = append(f.handled, ev) }

func (f *fakeVoice) Render(evs []events.Event, expr expression.VoiceCurves, _ paramview.BufferStates, _ any, output []float32) {
	f.rendered = append(f.rendered, evs...)
	f.curves = append(f.curves, expr)
	for _, ev := range evs {
		switch ev.Kind {
		case events.EventNoteOn:
			f.active = true
		case events.EventNoteOff:
			f.active = false
		}
	}
	for i := range output {
		if f.active {
			output[i] = 1
		}
	}
}

func (f *fakeVoice) Quiescent() bool { return !f.active }
func (f *fakeVoice) SkipSamples(n int) { f.skipped += n }
func (f *fakeVoice) Reset()            { f.reset = true; f.active = false }

func newFakeVoices(n int) []Voice {
	out := make([]Voice, n)
	for i := range out {
		out[i] = &fakeVoice{}
	}
	return out
}

func TestNoteOnAssignsIdleVoice(t *testing.T) {
	voices := newFakeVoices(2)
	p := NewPoly(voices, 32)
	noteID := events.NoteIDFromPitchValue(60)

	evs := []events.Event{events.NoteOn(0, events.NoteData{ID: noteID, Pitch: 60, Velocity: 1})}
	out := make([][]float32, 1)
	out[0] = make([]float32, 32)
	p.Process(evs, nil, nil, nil, out)

	if !voices[0].(*fakeVoice).active && !voices[1].(*fakeVoice).active {
		t.Fatal("expected one voice to become active")
	}
}

func TestNoteOnRetriggersSameVoiceForReArticulation(t *testing.T) {
	voices := newFakeVoices(2)
	p := NewPoly(voices, 32)
	noteID := events.NoteIDFromPitchValue(60)
	out := [][]float32{make([]float32, 32)}

	p.Process([]events.Event{events.NoteOn(0, events.NoteData{ID: noteID, Pitch: 60, Velocity: 1})}, nil, nil, nil, out)
	firstActive := -1
	for i, v := range voices {
		if v.(*fakeVoice).active {
			firstActive = i
		}
	}

	p.Process([]events.Event{events.NoteOn(0, events.NoteData{ID: noteID, Pitch: 60, Velocity: 0.5})}, nil, nil, nil, out)
	count := 0
	for _, v := range voices {
		if v.(*fakeVoice).active {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one active voice after re-articulation, got %d", count)
	}
	if !voices[firstActive].(*fakeVoice).active {
		t.Error("expected re-articulation to land on the same voice")
	}
}

func TestStealingSynthesizesNoteOffForOldestVoice(t *testing.T) {
	voices := newFakeVoices(1)
	p := NewPoly(voices, 32)
	out := [][]float32{make([]float32, 32)}

	first := events.NoteIDFromPitchValue(60)
	second := events.NoteIDFromPitchValue(64)

	p.Process([]events.Event{events.NoteOn(0, events.NoteData{ID: first, Pitch: 60, Velocity: 1})}, nil, nil, nil, out)
	p.Process([]events.Event{events.NoteOn(0, events.NoteData{ID: second, Pitch: 64, Velocity: 1})}, nil, nil, nil, out)

	fv := voices[0].(*fakeVoice)
	if len(fv.rendered) < 3 {
		t.Fatalf("expected stolen voice to see synthetic NoteOff then NoteOn, got %d events", len(fv.rendered))
	}
	last3 := fv.rendered[len(fv.rendered)-2:]
	if last3[0].Kind != events.EventNoteOff || last3[1].Kind != events.EventNoteOn {
		t.Errorf("expected [NoteOff, NoteOn] sequence at steal, got %v", last3)
	}
}

func TestNoteOffIdlesVoice(t *testing.T) {
	voices := newFakeVoices(1)
	p := NewPoly(voices, 32)
	out := [][]float32{make([]float32, 32)}
	noteID := events.NoteIDFromPitchValue(60)

	p.Process([]events.Event{events.NoteOn(0, events.NoteData{ID: noteID, Pitch: 60, Velocity: 1})}, nil, nil, nil, out)
	p.Process([]events.Event{events.NoteOff(0, events.NoteData{ID: noteID, Pitch: 60})}, nil, nil, nil, out)

	if voices[0].(*fakeVoice).active {
		t.Error("expected voice to become idle after NoteOff")
	}
}

func TestResetClearsAllVoices(t *testing.T) {
	voices := newFakeVoices(2)
	p := NewPoly(voices, 32)
	p.Reset()
	for i, v := range voices {
		if !v.(*fakeVoice).reset {
			t.Errorf("voice %d not reset", i)
		}
	}
}

func TestQuiescentVoiceIsSkippedNotRendered(t *testing.T) {
	voices := newFakeVoices(1)
	p := NewPoly(voices, 32)
	out := [][]float32{make([]float32, 32)}
	p.Process(nil, nil, nil, nil, out)
	fv := voices[0].(*fakeVoice)
	if fv.skipped != 32 {
		t.Errorf("expected SkipSamples(32), got %d", fv.skipped)
	}
	if len(fv.rendered) != 0 {
		t.Error("expected Render not called for quiescent voice with no events")
	}
}

func TestTwoNotesTwoVoicesExactRouting(t *testing.T) {
	voices := newFakeVoices(2)
	p := NewPoly(voices, 32)
	out := [][]float32{make([]float32, 32)}

	first := events.NoteIDFromPitchValue(60)
	second := events.NoteIDFromPitchValue(61)
	p.Process([]events.Event{
		events.NoteOn(0, events.NoteData{ID: first, Pitch: 60, Velocity: 1}),
		events.NoteOn(1, events.NoteData{ID: second, Pitch: 61, Velocity: 1}),
		events.NoteOff(2, events.NoteData{ID: first, Pitch: 60}),
		events.NoteOff(3, events.NoteData{ID: second, Pitch: 61}),
	}, nil, nil, nil, out)

	a := p.VoiceEvents(0)
	b := p.VoiceEvents(1)
	if len(a) != 2 || len(b) != 2 {
		t.Fatalf("expected 2 events per voice, got %d and %d", len(a), len(b))
	}
	if a[0].Kind != events.EventNoteOn || a[0].SampleOffset != 0 || a[1].Kind != events.EventNoteOff || a[1].SampleOffset != 2 {
		t.Errorf("voice 0 routing wrong: %+v", a)
	}
	if b[0].Kind != events.EventNoteOn || b[0].SampleOffset != 1 || b[1].Kind != events.EventNoteOff || b[1].SampleOffset != 3 {
		t.Errorf("voice 1 routing wrong: %+v", b)
	}
}

func TestOverflowNoteOnStealsOldestWithSingleSyntheticNoteOff(t *testing.T) {
	voices := newFakeVoices(2)
	p := NewPoly(voices, 32)
	out := [][]float32{make([]float32, 32)}

	p.Process([]events.Event{
		events.NoteOn(0, events.NoteData{ID: events.NoteIDFromPitchValue(60), Pitch: 60, Velocity: 1}),
		events.NoteOn(1, events.NoteData{ID: events.NoteIDFromPitchValue(61), Pitch: 61, Velocity: 1}),
		events.NoteOn(2, events.NoteData{ID: events.NoteIDFromPitchValue(62), Pitch: 62, Velocity: 1}),
	}, nil, nil, nil, out)

	// The oldest note (60, on voice 0) is the victim: its voice sees a
	// synthetic NoteOff at the steal offset, then the new NoteOn.
	a := p.VoiceEvents(0)
	if len(a) != 3 {
		t.Fatalf("expected stolen voice to see 3 events, got %d", len(a))
	}
	if a[1].Kind != events.EventNoteOff || a[1].SampleOffset != 2 || a[1].Note.Pitch != 60 {
		t.Errorf("expected synthetic NoteOff(60)@2, got %+v", a[1])
	}
	if a[2].Kind != events.EventNoteOn || a[2].SampleOffset != 2 || a[2].Note.Pitch != 62 {
		t.Errorf("expected NoteOn(62)@2 after steal, got %+v", a[2])
	}

	offs := 0
	for i := 0; i < p.NumVoices(); i++ {
		for _, ev := range p.VoiceEvents(i) {
			if ev.Kind == events.EventNoteOff {
				offs++
			}
		}
	}
	if offs != 1 {
		t.Errorf("expected exactly one synthetic NoteOff, got %d", offs)
	}

	if id, ok := p.NoteFor(0); !ok || id != events.NoteIDFromPitchValue(62) {
		t.Errorf("expected voice 0 to hold note 62, got %v ok=%v", id, ok)
	}
}

func TestExpressionEventRoutesToHoldingVoice(t *testing.T) {
	voices := newFakeVoices(2)
	p := NewPoly(voices, 32)
	out := [][]float32{make([]float32, 32)}
	id := events.NoteIDFromChannel(4)

	p.Process([]events.Event{
		events.NoteOn(0, events.NoteData{ID: id, Pitch: 60, Velocity: 1}),
		events.NoteExpression(5, events.NoteExpressionData{ID: id, Kind: events.ExpressionTimbre, Value: 0.5}),
	}, nil, nil, nil, out)

	a := p.VoiceEvents(0)
	if len(a) != 2 || a[1].Kind != events.EventNoteExpression {
		t.Errorf("expected expression event on holding voice, got %+v", a)
	}
	if len(p.VoiceEvents(1)) != 0 {
		t.Errorf("expected no events on idle voice")
	}
}

func TestOrderValuesCompactAfterEveryBuffer(t *testing.T) {
	voices := newFakeVoices(4)
	p := NewPoly(voices, 32)
	out := [][]float32{make([]float32, 32)}

	// A churn of on/offs leaves a mix of idle and playing slots.
	ids := []events.NoteID{
		events.NoteIDFromPitchValue(60),
		events.NoteIDFromPitchValue(61),
		events.NoteIDFromPitchValue(62),
		events.NoteIDFromPitchValue(63),
	}
	p.Process([]events.Event{
		events.NoteOn(0, events.NoteData{ID: ids[0], Pitch: 60, Velocity: 1}),
		events.NoteOn(1, events.NoteData{ID: ids[1], Pitch: 61, Velocity: 1}),
		events.NoteOn(2, events.NoteData{ID: ids[2], Pitch: 62, Velocity: 1}),
		events.NoteOff(3, events.NoteData{ID: ids[0], Pitch: 60}),
		events.NoteOn(4, events.NoteData{ID: ids[3], Pitch: 63, Velocity: 1}),
		events.NoteOff(5, events.NoteData{ID: ids[2], Pitch: 62}),
	}, nil, nil, nil, out)

	for _, playing := range []bool{false, true} {
		seen := map[int]bool{}
		count := 0
		for _, s := range p.slots {
			if s.playing != playing {
				continue
			}
			count++
			if seen[s.order] {
				t.Errorf("duplicate order %d in group playing=%v", s.order, playing)
			}
			seen[s.order] = true
		}
		for o := 0; o < count; o++ {
			if !seen[o] {
				t.Errorf("group playing=%v missing order %d (orders not compacted to 0..%d)", playing, o, count-1)
			}
		}
	}
}

func TestRenderedVoiceReceivesExpressionCurveWithCarryOver(t *testing.T) {
	voices := newFakeVoices(1)
	p := NewPoly(voices, 32)
	out := [][]float32{make([]float32, 32)}
	tracker := expression.NewTracker()
	id := events.NoteIDFromPitchValue(60)
	fv := voices[0].(*fakeVoice)

	// First buffer: note on, then two timbre points sharing offset 10.
	p.Process([]events.Event{
		events.NoteOn(0, events.NoteData{ID: id, Pitch: 60, Velocity: 1}),
		events.NoteExpression(10, events.NoteExpressionData{ID: id, Kind: events.ExpressionTimbre, Value: 0.2}),
		events.NoteExpression(10, events.NoteExpressionData{ID: id, Kind: events.ExpressionTimbre, Value: 0.6}),
	}, nil, tracker, nil, out)

	got := fv.curves[len(fv.curves)-1]
	if len(got.Timbre.Points) != 2 {
		t.Fatalf("expected carry point + collapsed point, got %d points", len(got.Timbre.Points))
	}
	if got.Timbre.Points[0].SampleOffset != 0 || got.Timbre.Points[0].Value.Numeric != 0 {
		t.Errorf("expected fresh note to carry 0 at offset 0, got %+v", got.Timbre.Points[0])
	}
	if got.Timbre.Points[1].SampleOffset != 10 || got.Timbre.Points[1].Value.Numeric != 0.6 {
		t.Errorf("expected same-offset points collapsed to last (0.6), got %+v", got.Timbre.Points[1])
	}

	// Second buffer: no events. The curve must be constant at the
	// previous buffer's final value.
	p.Process(nil, nil, tracker, nil, out)
	got = fv.curves[len(fv.curves)-1]
	v, constant := got.Timbre.ConstantValue()
	if !constant || v.Numeric != 0.6 {
		t.Errorf("expected constant carry-over 0.6 in next buffer, got %+v constant=%v", v, constant)
	}
}
