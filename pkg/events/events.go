// Package events defines the event and per-note identity model shared
// by the polyphonic scheduler (pkg/voice) and the expression translator
// (pkg/expression).
package events

import "fmt"

// NoteIDKind distinguishes the three ways a note can be addressed.
type NoteIDKind uint8

const (
	// NoteIDExplicit carries a host-assigned note identifier (e.g. a
	// VST3 note id), used when the host disambiguates notes itself.
	NoteIDExplicit NoteIDKind = iota
	// NoteIDFromPitch derives identity from MIDI pitch alone, used by
	// hosts that only send channel-voice MIDI with no note id.
	NoteIDFromPitch
	// NoteIDFromMpeChannel derives identity from an MPE member channel
	// (1..15); see pkg/expression for the MPE-quirk routing this feeds.
	NoteIDFromMpeChannel
)

// NoteID is an opaque per-note identifier. Two NoteIDs of different
// Kind are never equal even if their payload happens to match.
type NoteID struct {
	Kind    NoteIDKind
	ID      int32
	Pitch   uint8
	Channel int16
}

// NoteIDFromExplicitID builds a NoteID from a host-assigned id.
func NoteIDFromExplicitID(id int32) NoteID { return NoteID{Kind: NoteIDExplicit, ID: id} }

// NoteIDFromPitchValue builds a NoteID identified only by pitch.
func NoteIDFromPitchValue(pitch uint8) NoteID { return NoteID{Kind: NoteIDFromPitch, Pitch: pitch} }

// NoteIDFromChannel builds a NoteID identified by MPE member channel.
func NoteIDFromChannel(channel int16) NoteID {
	return NoteID{Kind: NoteIDFromMpeChannel, Channel: channel}
}

func (n NoteID) String() string {
	switch n.Kind {
	case NoteIDExplicit:
		return fmt.Sprintf("NoteID(id=%d)", n.ID)
	case NoteIDFromPitch:
		return fmt.Sprintf("NoteID(pitch=%d)", n.Pitch)
	case NoteIDFromMpeChannel:
		return fmt.Sprintf("NoteID(channel=%d)", n.Channel)
	default:
		return "NoteID(?)"
	}
}

// NoteData is the payload common to NoteOn and NoteOff events.
type NoteData struct {
	ID       NoteID
	Pitch    uint8
	Velocity float32 // 0..1
	Tuning   float32 // microtuning, in cents
}

// ExpressionKind enumerates the three per-note expression channels.
type ExpressionKind uint8

const (
	ExpressionPitchBend ExpressionKind = iota
	ExpressionTimbre
	ExpressionAftertouch
)

// NoteExpressionData is the payload of an Event carrying per-note
// expression, native or translated from MPE-quirk input.
type NoteExpressionData struct {
	ID    NoteID
	Kind  ExpressionKind
	Value float32
}

// EventKind discriminates an Event's payload.
type EventKind uint8

const (
	EventNoteOn EventKind = iota
	EventNoteOff
	EventNoteExpression
)

// Event is one timestamped occurrence within a buffer. Exactly one of
// Note / Expression is meaningful, selected by Kind.
type Event struct {
	SampleOffset int
	Kind         EventKind
	Note         NoteData
	Expression   NoteExpressionData
}

// NoteOn builds a NoteOn event.
func NoteOn(sampleOffset int, data NoteData) Event {
	return Event{SampleOffset: sampleOffset, Kind: EventNoteOn, Note: data}
}

// NoteOff builds a NoteOff event.
func NoteOff(sampleOffset int, data NoteData) Event {
	return Event{SampleOffset: sampleOffset, Kind: EventNoteOff, Note: data}
}

// NoteExpression builds a NoteExpression event.
func NoteExpression(sampleOffset int, data NoteExpressionData) Event {
	return Event{SampleOffset: sampleOffset, Kind: EventNoteExpression, Expression: data}
}

// SortByOffset sorts events by non-decreasing SampleOffset, in place
// and without allocating, preserving the relative order of events at
// equal offsets. Insertion sort: callers merge short, mostly-sorted
// streams on the audio thread, where the stdlib sort's closure and
// swapper allocations are off limits.
func SortByOffset(events []Event) {
	for i := 1; i < len(events); i++ {
		e := events[i]
		j := i - 1
		for j >= 0 && events[j].SampleOffset > e.SampleOffset {
			events[j+1] = events[j]
			j--
		}
		events[j+1] = e
	}
}

// CheckInvariants reports whether events are sorted by non-decreasing
// SampleOffset and every offset lies within [0, bufferSize).
func CheckInvariants(events []Event, bufferSize int) bool {
	last := -1
	for _, e := range events {
		if e.SampleOffset < 0 || e.SampleOffset >= bufferSize {
			return false
		}
		if e.SampleOffset < last {
			return false
		}
		last = e.SampleOffset
	}
	return true
}
