// Package voice implements the fixed-pool polyphonic scheduler:
// voice assignment with least-recently-released reuse, oldest-note
// stealing, per-buffer order compaction, and per-voice expression
// curves carried across buffer boundaries.
package voice

import (
	"github.com/blackboxaudio/vstcore/pkg/events"
	"github.com/blackboxaudio/vstcore/pkg/expression"
	"github.com/blackboxaudio/vstcore/pkg/paramview"
)

// Voice is a single slot in the pool. Implementations own their own
// DSP state; the scheduler only ever calls these methods.
type Voice interface {
	// HandleEvent is called for a zero-offset event dispatched outside
	// the audio callback.
	HandleEvent(ev events.Event)
	// Render renders into output (already pre-sized to the buffer's
	// sample count), given this voice's share of the event stream and
	// its per-buffer expression curves.
	Render(evs []events.Event, expr expression.VoiceCurves, params paramview.BufferStates, shared any, output []float32)
	// Quiescent reports whether the voice is producing silence and has
	// no pending internal state that needs per-sample processing.
	Quiescent() bool
	// SkipSamples advances any phase-tracking state by n samples
	// without rendering, called in place of Render when a quiescent
	// voice receives no events this buffer.
	SkipSamples(n int)
	// Reset returns the voice to its initial silent state.
	Reset()
}

// slotState tracks one slot's assignment: idle (playing=false) or
// holding a note. order is a monotonic sequence number used both for
// least-recently-released reuse among idle slots and oldest-note
// stealing among playing slots; compactOrder keeps it bounded. id and
// pitch survive the transition to idle so a voice's release tail can
// still look up its note's expression carry-over.
type slotState struct {
	playing bool
	order   int
	id      events.NoteID
	pitch   uint8
}

// Poly is the fixed pool of voices behind a polyphonic synth. The pool
// size is set at construction and never changes.
type Poly struct {
	voices   []Voice
	slots    []slotState
	scratch  []float32
	perVoice [][]events.Event
	curves   []expression.CurveScratch
	order    []orderEntry
}

type orderEntry struct {
	index int
	order int
}

// perVoiceEventCap sizes each voice's reusable event list. Exceeding
// it grows the slice, which allocates; hosts do not send hundreds of
// events per voice per buffer in practice.
const perVoiceEventCap = 32

// NewPoly builds a pool over the given voices, all initially idle.
// maxSamplesPerCall pre-sizes the internal mixing scratch buffer and
// per-voice event lists so Process never allocates.
func NewPoly(voices []Voice, maxSamplesPerCall int) *Poly {
	slots := make([]slotState, len(voices))
	perVoice := make([][]events.Event, len(voices))
	for i := range slots {
		slots[i] = slotState{order: i}
		perVoice[i] = make([]events.Event, 0, perVoiceEventCap)
	}
	return &Poly{
		voices:   voices,
		slots:    slots,
		scratch:  make([]float32, maxSamplesPerCall),
		perVoice: perVoice,
		curves:   make([]expression.CurveScratch, len(voices)),
		order:    make([]orderEntry, 0, len(voices)),
	}
}

// HandleEvents consumes zero-offset events outside the audio
// callback, recording expression values in tracker (which may be nil)
// so the next buffer's curves start from them.
func (p *Poly) HandleEvents(evs []events.Event, tracker *expression.Tracker) {
	p.dispatchAll(evs)
	for idx, list := range p.perVoice {
		for _, ev := range list {
			p.voices[idx].HandleEvent(ev)
		}
		if tracker != nil {
			tracker.ApplyEvents(list)
		}
	}
	p.compactOrder()
}

// Process dispatches events and calls each voice's Render, mixing
// into output with a fixed per-voice gain of 1/V. Each rendered voice
// receives its per-buffer expression curves: the concatenation of its
// carry-over state at offset 0 (read from tracker, which may be nil)
// with the expression events dispatched to it, same-offset points
// collapsing to the last. output holds one slice per channel, each
// already sized to the buffer's frame count. The scheduler sums
// voices and never normalizes dynamically; components that want
// active-voice normalization apply it themselves.
func (p *Poly) Process(evs []events.Event, params paramview.BufferStates, tracker *expression.Tracker, shared any, output [][]float32) {
	bufferSize := 0
	if len(output) > 0 {
		bufferSize = len(output[0])
	}
	p.dispatchAll(evs)
	voiceScale := float32(1) / float32(len(p.voices))
	mixed := false

	for idx, v := range p.voices {
		voiceEvents := p.perVoice[idx]
		if len(voiceEvents) == 0 && v.Quiescent() {
			v.SkipSamples(bufferSize)
			continue
		}

		var carry expression.PerNoteState
		if tracker != nil {
			if s, ok := tracker.State(p.slots[idx].id); ok {
				carry = s
			}
		}
		curves := expression.BuildVoiceCurves(carry, voiceEvents, &p.curves[idx])
		if tracker != nil {
			tracker.ApplyEvents(voiceEvents)
		}

		scratch := p.scratch[:bufferSize]
		for i := range scratch {
			scratch[i] = 0
		}
		v.Render(voiceEvents, curves, params, shared, scratch)
		for i := range scratch {
			scratch[i] *= voiceScale
		}

		if mixed {
			for _, channel := range output {
				for i := range channel {
					channel[i] += scratch[i]
				}
			}
		} else {
			for _, channel := range output {
				copy(channel, scratch)
			}
			mixed = true
		}
	}

	if !mixed {
		for _, channel := range output {
			for i := range channel {
				channel[i] = 0
			}
		}
	}
	p.compactOrder()
}

// Reset sets every voice to Idle and clears voice-local state.
func (p *Poly) Reset() {
	for _, v := range p.voices {
		v.Reset()
	}
	for i := range p.slots {
		p.slots[i] = slotState{order: i}
		p.perVoice[i] = p.perVoice[i][:0]
	}
}

// dispatchAll routes events into the reusable per-voice lists in a
// single sequential pass, mutating slot state as it goes.
func (p *Poly) dispatchAll(evs []events.Event) {
	for i := range p.perVoice {
		p.perVoice[i] = p.perVoice[i][:0]
	}
	for _, ev := range evs {
		p.dispatchSingle(ev)
	}
}

func (p *Poly) dispatchSingle(ev events.Event) {
	switch ev.Kind {
	case events.EventNoteOn:
		p.dispatchNoteOn(ev)
	case events.EventNoteOff:
		p.dispatchNoteOff(ev)
	case events.EventNoteExpression:
		for i, s := range p.slots {
			if s.playing && s.id == ev.Expression.ID {
				p.perVoice[i] = append(p.perVoice[i], ev)
				return
			}
		}
	}
}

// dispatchNoteOn picks the target slot for an incoming note: the slot
// already holding the same note id (re-articulation), else the idle
// slot with the lowest order (least recently released), else the
// playing slot with the lowest order (oldest note), which is stolen.
// Stealing delivers a synthetic NoteOff for the victim's note at the
// same offset, immediately before the new NoteOn.
func (p *Poly) dispatchNoteOn(ev events.Event) {
	noteID := ev.Note.ID

	openIndex, openOrder := -1, 0
	oldIndex, oldOrder := -1, 0
	newOrder := -1

	for i, s := range p.slots {
		if !s.playing {
			if openIndex == -1 || s.order < openOrder {
				openIndex, openOrder = i, s.order
			}
			continue
		}
		if s.id == noteID {
			p.perVoice[i] = append(p.perVoice[i], ev)
			return
		}
		if oldIndex == -1 || s.order < oldOrder {
			oldIndex, oldOrder = i, s.order
		}
		if s.order > newOrder {
			newOrder = s.order
		}
	}

	target := openIndex
	if target == -1 {
		victim := p.slots[oldIndex]
		off := events.NoteOff(ev.SampleOffset, events.NoteData{
			ID:    victim.id,
			Pitch: victim.pitch,
		})
		p.perVoice[oldIndex] = append(p.perVoice[oldIndex], off)
		target = oldIndex
	}

	p.slots[target] = slotState{playing: true, order: newOrder + 1, id: noteID, pitch: ev.Note.Pitch}
	p.perVoice[target] = append(p.perVoice[target], ev)
}

// dispatchNoteOff releases the matching slot, giving it the highest
// idle order so the most recently released voice is the last reused.
// The note id stays on the slot for the release tail's curve lookups.
func (p *Poly) dispatchNoteOff(ev events.Event) {
	maxIdle := -1
	for _, s := range p.slots {
		if !s.playing && s.order > maxIdle {
			maxIdle = s.order
		}
	}

	for i, s := range p.slots {
		if s.playing && s.id == ev.Note.ID {
			p.slots[i] = slotState{order: maxIdle + 1, id: s.id, pitch: s.pitch}
			p.perVoice[i] = append(p.perVoice[i], ev)
			return
		}
	}
}

// VoiceEvents returns the events dispatched to voice idx by the most
// recent HandleEvents/Process call, for inspecting routing (Process
// builds each voice's curves itself); the slice is valid until the
// next call.
func (p *Poly) VoiceEvents(idx int) []events.Event { return p.perVoice[idx] }

// NoteFor reports the note id currently held by voice idx.
func (p *Poly) NoteFor(idx int) (events.NoteID, bool) {
	s := p.slots[idx]
	if !s.playing {
		return events.NoteID{}, false
	}
	return s.id, true
}

// NumVoices returns the fixed pool size.
func (p *Poly) NumVoices() int { return len(p.voices) }

// compactOrder reassigns order values to 0..k-1 within each group
// (idle, playing), preserving relative order, so they stay bounded by
// the pool size. Runs after every HandleEvents/Process call.
func (p *Poly) compactOrder() {
	p.compactGroup(false)
	p.compactGroup(true)
}

func (p *Poly) compactGroup(playing bool) {
	p.order = p.order[:0]
	for i, s := range p.slots {
		if s.playing == playing {
			p.order = append(p.order, orderEntry{index: i, order: s.order})
		}
	}
	// In-place insertion sort: this runs on the audio thread, the group
	// holds at most V entries, and the input is already nearly sorted.
	for i := 1; i < len(p.order); i++ {
		e := p.order[i]
		j := i - 1
		for j >= 0 && p.order[j].order > e.order {
			p.order[j+1] = p.order[j]
			j--
		}
		p.order[j+1] = e
	}
	for newOrder, entry := range p.order {
		p.slots[entry.index].order = newOrder
	}
}
