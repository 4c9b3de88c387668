package midi

import (
	"github.com/blackboxaudio/vstcore/pkg/events"
	"github.com/blackboxaudio/vstcore/pkg/expression"
	"github.com/blackboxaudio/vstcore/pkg/param"
	"github.com/blackboxaudio/vstcore/pkg/paramid"
	"github.com/blackboxaudio/vstcore/pkg/paramview"
)

// Translation is the per-buffer result of Translate: note events for
// the scheduler, plus change-queue entries for the MPE-quirk reserved
// parameters carrying the continuous per-channel dimensions.
type Translation struct {
	Events  []events.Event
	Changes paramview.ChangeQueue
}

// Translator converts raw channel MIDI into the runtime's input model.
// Notes on member channels 1..15 are identified by their channel, so
// the per-channel bend/pressure/CC74 streams can follow them; notes on
// the common channel 0 are identified by pitch.
type Translator struct {
	pitch      [expression.MaxMpeChannels + 1]paramid.Hash
	timbre     [expression.MaxMpeChannels + 1]paramid.Hash
	aftertouch [expression.MaxMpeChannels + 1]paramid.Hash
}

// NewTranslator resolves the reserved quirk parameter hashes against
// registry. The registry must include expression.ReservedParamInfos.
func NewTranslator(registry *param.Registry) *Translator {
	t := &Translator{}
	for ch := 1; ch <= expression.MaxMpeChannels; ch++ {
		var ok [3]bool
		t.pitch[ch], ok[0] = registry.HashOf(expression.ReservedParamID(expression.QuirkPitch, ch))
		t.timbre[ch], ok[1] = registry.HashOf(expression.ReservedParamID(expression.QuirkTimbre, ch))
		t.aftertouch[ch], ok[2] = registry.HashOf(expression.ReservedParamID(expression.QuirkAftertouch, ch))
		if !ok[0] || !ok[1] || !ok[2] {
			panic("midi: reserved MPE parameters missing from registry")
		}
	}
	return t
}

// noteID picks the identity convention for a note: channel-tagged for
// MPE member channels, pitch-tagged for the common channel.
func noteID(channel uint8, note uint8) events.NoteID {
	if channel >= 1 && int(channel) <= expression.MaxMpeChannels {
		return events.NoteIDFromChannel(int16(channel))
	}
	return events.NoteIDFromPitchValue(note)
}

// Translate converts one buffer's worth of raw MIDI into note events
// and quirk parameter changes. Input events must already be sorted by
// sample offset; the outputs preserve that order.
func (t *Translator) Translate(in []Event) Translation {
	var out Translation
	for _, ev := range in {
		ch := ev.Channel()
		offset := int(ev.SampleOffset())
		switch e := ev.(type) {
		case NoteOnEvent:
			// Velocity-zero note-on is a note-off in disguise.
			if e.Velocity == 0 {
				out.Events = append(out.Events, events.NoteOff(offset, events.NoteData{
					ID:    noteID(ch, e.NoteNumber),
					Pitch: e.NoteNumber,
				}))
				continue
			}
			out.Events = append(out.Events, events.NoteOn(offset, events.NoteData{
				ID:       noteID(ch, e.NoteNumber),
				Pitch:    e.NoteNumber,
				Velocity: float32(e.Velocity) / 127.0,
			}))
		case NoteOffEvent:
			out.Events = append(out.Events, events.NoteOff(offset, events.NoteData{
				ID:       noteID(ch, e.NoteNumber),
				Pitch:    e.NoteNumber,
				Velocity: float32(e.Velocity) / 127.0,
			}))
		case PitchBendEvent:
			t.appendChange(&out, t.pitch, ch, offset, e.Normalized())
		case ChannelPressureEvent:
			t.appendChange(&out, t.aftertouch, ch, offset, float32(e.Pressure)/127.0)
		case ControlChangeEvent:
			if e.Controller == CCTimbre {
				t.appendChange(&out, t.timbre, ch, offset, float32(e.Value)/127.0)
			}
		case PolyPressureEvent:
			// Poly pressure is already per-note; route it as channel
			// aftertouch when the note is channel-tagged.
			t.appendChange(&out, t.aftertouch, ch, offset, float32(e.Pressure)/127.0)
		}
	}
	return out
}

// appendChange records a quirk parameter point, merging consecutive
// points for the same parameter into one queue entry.
func (t *Translator) appendChange(out *Translation, hashes [expression.MaxMpeChannels + 1]paramid.Hash, ch uint8, offset int, normalized float32) {
	if ch < 1 || int(ch) > expression.MaxMpeChannels {
		// Common-channel continuous data has no per-note meaning here.
		return
	}
	h := hashes[ch]
	pt := paramview.NormalizedPoint{SampleOffset: offset, Normalized: normalized}
	for i := range out.Changes {
		if out.Changes[i].ID == h {
			out.Changes[i].Points = append(out.Changes[i].Points, pt)
			return
		}
	}
	out.Changes = append(out.Changes, paramview.ParamChange{ID: h, Points: []paramview.NormalizedPoint{pt}})
}
