// Package expression translates the two input conventions for
// per-note expression (native note-expression events, and the
// 45-parameter "MPE-quirk" channel mapping) into one output model: a
// per-voice, per-buffer expression curve.
package expression

import (
	"fmt"

	"github.com/blackboxaudio/vstcore/pkg/events"
	"github.com/blackboxaudio/vstcore/pkg/param"
	"github.com/blackboxaudio/vstcore/pkg/paramid"
	"github.com/blackboxaudio/vstcore/pkg/paramview"
)

// MaxMpeChannels is the number of MPE member channels (1..15); channel
// 0 is reserved for the common/master channel and carries no per-note
// data of its own.
const MaxMpeChannels = 15

// TrackerCapacity is the pre-sized capacity of the per-note state map
// before the translator falls back to allocating.
const TrackerCapacity = 256

// QuirkKind is one of the three MPE-quirk reserved parameter kinds.
type QuirkKind int

const (
	QuirkPitch QuirkKind = iota
	QuirkTimbre
	QuirkAftertouch
)

func (k QuirkKind) name() string {
	switch k {
	case QuirkPitch:
		return "pitch"
	case QuirkTimbre:
		return "timbre"
	case QuirkAftertouch:
		return "aftertouch"
	default:
		return "?"
	}
}

func (k QuirkKind) toExpressionKind() events.ExpressionKind {
	switch k {
	case QuirkPitch:
		return events.ExpressionPitchBend
	case QuirkTimbre:
		return events.ExpressionTimbre
	default:
		return events.ExpressionAftertouch
	}
}

// ReservedParamID returns the framework-reserved parameter id for one
// of the 45 {pitch,aftertouch,timbre} x {1..15} MPE-quirk cells.
// Channel must be in [1, MaxMpeChannels].
func ReservedParamID(kind QuirkKind, channel int) string {
	return fmt.Sprintf("%smpe_%s_%d", param.ReservedPrefix, kind.name(), channel)
}

// ReservedParamInfos builds the metadata for all 45 MPE-quirk cells,
// for registration alongside the component's own parameters. They are
// non-automatable and excluded from param.Registry.VisibleIDs (and so
// from snapshots) by param.IsReserved; the edit controller still
// reports them to the host, marked Hidden.
func ReservedParamInfos() []param.Info {
	kinds := []QuirkKind{QuirkPitch, QuirkTimbre, QuirkAftertouch}
	infos := make([]param.Info, 0, len(kinds)*MaxMpeChannels)
	for _, k := range kinds {
		for ch := 1; ch <= MaxMpeChannels; ch++ {
			infos = append(infos, param.Info{
				ID:          ReservedParamID(k, ch),
				Title:       ReservedParamID(k, ch),
				Kind:        param.KindNumeric,
				Automatable: false,
				Numeric:     param.NumericInfo{Min: 0, Max: 1, Default: 0.5},
			})
		}
	}
	return infos
}

// PitchBendSemitones maps a normalized 0..1 pitch-bend value to
// ±120 semitones, the convention shared by native and MPE-quirk input:
// 0.5 is no bend, 0 is -120, 1 is +120.
func PitchBendSemitones(normalized float32) float32 {
	return (normalized - 0.5) * 240
}

// PerNoteState is the translator's carry-over state for one active
// note: the last value seen for each of the three expression channels.
type PerNoteState struct {
	PitchBend  float32
	Timbre     float32
	Aftertouch float32

	internalID    uint64
	releaseQueued bool
}

// Carry returns the carry-over value for one expression channel.
func (s *PerNoteState) Carry(kind events.ExpressionKind) float32 { return s.get(kind) }

func (s *PerNoteState) get(kind events.ExpressionKind) float32 {
	switch kind {
	case events.ExpressionPitchBend:
		return s.PitchBend
	case events.ExpressionTimbre:
		return s.Timbre
	default:
		return s.Aftertouch
	}
}

func (s *PerNoteState) set(kind events.ExpressionKind, v float32) {
	switch kind {
	case events.ExpressionPitchBend:
		s.PitchBend = v
	case events.ExpressionTimbre:
		s.Timbre = v
	default:
		s.Aftertouch = v
	}
}

type releaseEntry struct {
	id         events.NoteID
	internalID uint64
}

// Tracker owns the bounded per-note state map: a slot per active or
// recently-released note, with least-recently-released eviction once
// the capacity budget is exhausted. Beyond that budget it falls back
// to plain allocation rather than dropping a live note's state.
type Tracker struct {
	states       map[events.NoteID]*PerNoteState
	releaseOrder []releaseEntry
	nextID       uint64
}

// NewTracker builds a Tracker pre-sized to TrackerCapacity entries.
func NewTracker() *Tracker {
	return &Tracker{
		states:       make(map[events.NoteID]*PerNoteState, TrackerCapacity),
		releaseOrder: make([]releaseEntry, 0, TrackerCapacity),
	}
}

// NoteOn allocates (or returns the existing) state slot for id,
// evicting the oldest released note if the tracker is full.
func (t *Tracker) NoteOn(id events.NoteID) *PerNoteState {
	if s, ok := t.states[id]; ok {
		s.releaseQueued = false
		return s
	}
	if len(t.states) >= TrackerCapacity {
		t.evictOneReleased()
	}
	s := &PerNoteState{internalID: t.nextID}
	t.nextID++
	t.states[id] = s
	return s
}

// NoteOff marks id's slot eligible for eviction, without removing it
// immediately, since carry-over state must still answer for this
// buffer.
func (t *Tracker) NoteOff(id events.NoteID) {
	s, ok := t.states[id]
	if !ok {
		return
	}
	s.releaseQueued = true
	t.releaseOrder = append(t.releaseOrder, releaseEntry{id: id, internalID: s.internalID})
}

// evictOneReleased pops the least-recently-released entry from the
// front of the queue, skipping stale entries (a note that was
// released then re-triggered, replacing its slot's internalID).
func (t *Tracker) evictOneReleased() {
	for len(t.releaseOrder) > 0 {
		e := t.releaseOrder[0]
		t.releaseOrder = t.releaseOrder[1:]
		s, ok := t.states[e.id]
		if !ok || s.internalID != e.internalID || !s.releaseQueued {
			continue
		}
		delete(t.states, e.id)
		return
	}
	// Nothing eligible to evict: permit the map to exceed capacity
	// rather than discard a live note's expression state.
}

// Apply updates the tracked carry-over value for a translated
// expression event.
func (t *Tracker) Apply(id events.NoteID, kind events.ExpressionKind, value float32) {
	s, ok := t.states[id]
	if !ok {
		s = t.NoteOn(id)
	}
	s.set(kind, value)
}

// ApplyEvents records every expression event's value as the new
// carry-over for its note. The scheduler calls this once per voice
// per buffer, after reading that voice's carry.
func (t *Tracker) ApplyEvents(evs []events.Event) {
	for _, ev := range evs {
		if ev.Kind == events.EventNoteExpression {
			t.Apply(ev.Expression.ID, ev.Expression.Kind, ev.Expression.Value)
		}
	}
}

// State returns the current carry-over state for id, if tracked.
func (t *Tracker) State(id events.NoteID) (PerNoteState, bool) {
	s, ok := t.states[id]
	if !ok {
		return PerNoteState{}, false
	}
	return *s, true
}

// Reset clears all tracked per-note state.
func (t *Tracker) Reset() {
	t.states = make(map[events.NoteID]*PerNoteState, TrackerCapacity)
	t.releaseOrder = t.releaseOrder[:0]
	t.nextID = 0
}

// NativeToInternal rewrites a native NoteExpression event's value into
// the component-facing scale. It does not touch any carry-over state:
// the scheduler applies dispatched events to the Tracker after it has
// read each voice's carry, so a curve's offset-0 point reflects the
// previous buffer, not this one. Native events use id-tagged NoteIDs
// (Explicit or FromPitch); channel-tagged events are produced
// separately by Translator, never through this path. The two streams
// stay disjoint even when both are present for the same conceptual
// note.
func NativeToInternal(ev events.Event) events.Event {
	data := ev.Expression
	value := data.Value
	if data.Kind == events.ExpressionPitchBend {
		value = PitchBendSemitones(value)
	}
	return events.NoteExpression(ev.SampleOffset, events.NoteExpressionData{ID: data.ID, Kind: data.Kind, Value: value})
}

// Translator materializes synthetic expression events from the
// MPE-quirk reserved parameters' per-buffer curves. It owns a small
// change-detection cache and a reusable output list, so Derive does
// not allocate once warmed up.
type Translator struct {
	hash    [3][MaxMpeChannels + 1]paramid.Hash // index 0 unused (channel 0 has no per-note cells)
	prev    [3][MaxMpeChannels + 1]float32
	seen    [3][MaxMpeChannels + 1]bool
	scratch []events.Event
}

// NewTranslator resolves every reserved id against registry. It panics
// if a reserved id is missing, since ReservedParamInfos must always
// have been included in the component's parameter set.
func NewTranslator(registry *param.Registry) *Translator {
	kinds := []QuirkKind{QuirkPitch, QuirkTimbre, QuirkAftertouch}
	tr := &Translator{
		scratch: make([]events.Event, 0, 3*MaxMpeChannels*4),
	}
	for ki, k := range kinds {
		for ch := 1; ch <= MaxMpeChannels; ch++ {
			h, ok := registry.HashOf(ReservedParamID(k, ch))
			if !ok {
				panic("expression: reserved MPE parameter missing from registry: " + ReservedParamID(k, ch))
			}
			tr.hash[ki][ch] = h
		}
	}
	return tr
}

// Derive scans the MPE-quirk reserved parameters' curves for this
// buffer and materializes a synthetic NoteExpression event at each
// point whose value differs from the last one seen, tagging events
// with the channel-derived NoteID. Like NativeToInternal, it leaves
// carry-over state to the scheduler. The returned slice is valid
// until the next Derive call.
func (tr *Translator) Derive(states paramview.BufferStates) []events.Event {
	kinds := []QuirkKind{QuirkPitch, QuirkTimbre, QuirkAftertouch}
	tr.scratch = tr.scratch[:0]
	for ki, k := range kinds {
		for ch := 1; ch <= MaxMpeChannels; ch++ {
			curve, ok := states.Get(tr.hash[ki][ch])
			if !ok {
				continue
			}
			for _, pt := range curve.Points {
				normalized := pt.Value.Numeric
				if tr.seen[ki][ch] && tr.prev[ki][ch] == normalized {
					continue
				}
				tr.seen[ki][ch] = true
				tr.prev[ki][ch] = normalized

				expr := k.toExpressionKind()
				value := normalized
				if k == QuirkPitch {
					value = PitchBendSemitones(normalized)
				}
				id := events.NoteIDFromChannel(int16(ch))
				tr.scratch = append(tr.scratch, events.NoteExpression(pt.SampleOffset, events.NoteExpressionData{ID: id, Kind: expr, Value: value}))
			}
		}
	}
	return tr.scratch
}

// Reset clears the change-detection cache, e.g. when processing stops.
func (tr *Translator) Reset() {
	tr.prev = [3][MaxMpeChannels + 1]float32{}
	tr.seen = [3][MaxMpeChannels + 1]bool{}
	tr.scratch = tr.scratch[:0]
}

// VoiceCurves is one voice's per-buffer expression output: one curve
// per expression channel, each starting at offset 0 with the voice's
// carry-over value and possibly constant.
type VoiceCurves struct {
	PitchBend  paramview.Curve
	Timbre     paramview.Curve
	Aftertouch paramview.Curve
}

// CurveScratch is the reusable backing storage for one voice's
// curves, owned by the scheduler so curve assembly does not allocate
// once warmed up.
type CurveScratch struct {
	pitchBend  []paramview.Point
	timbre     []paramview.Point
	aftertouch []paramview.Point
}

// BuildVoiceCurves assembles all three of a voice's expression curves
// from its carry-over state and its share of the event stream.
func BuildVoiceCurves(carry PerNoteState, evs []events.Event, scratch *CurveScratch) VoiceCurves {
	vc := VoiceCurves{
		PitchBend:  BuildVoiceCurve(carry.PitchBend, events.ExpressionPitchBend, evs, scratch.pitchBend[:0]),
		Timbre:     BuildVoiceCurve(carry.Timbre, events.ExpressionTimbre, evs, scratch.timbre[:0]),
		Aftertouch: BuildVoiceCurve(carry.Aftertouch, events.ExpressionAftertouch, evs, scratch.aftertouch[:0]),
	}
	scratch.pitchBend = vc.PitchBend.Points
	scratch.timbre = vc.Timbre.Points
	scratch.aftertouch = vc.Aftertouch.Points
	return vc
}

// BuildVoiceCurve assembles a single voice's per-buffer expression
// curve for one channel: carry begins the curve at offset 0, and evs
// (already filtered to this voice by the scheduler) contributes any
// further points, with points sharing an offset collapsing to the
// last. pts is the caller-owned backing storage, reused across
// buffers; pass pts[:0] of a pre-sized slice to avoid allocation.
func BuildVoiceCurve(carry float32, kind events.ExpressionKind, evs []events.Event, pts []paramview.Point) paramview.Curve {
	pts = append(pts, paramview.Point{SampleOffset: 0, Value: param.NumericValue(carry)})
	for _, ev := range evs {
		if ev.Kind != events.EventNoteExpression || ev.Expression.Kind != kind {
			continue
		}
		p := paramview.Point{SampleOffset: ev.SampleOffset, Value: param.NumericValue(ev.Expression.Value)}
		if pts[len(pts)-1].SampleOffset == p.SampleOffset {
			pts[len(pts)-1] = p
		} else {
			pts = append(pts, p)
		}
	}
	shape := paramview.Constant
	if len(pts) > 1 {
		shape = paramview.PiecewiseLinear
	}
	return paramview.Curve{Kind: param.KindNumeric, Shape: shape, Points: pts}
}
