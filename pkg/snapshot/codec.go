package snapshot

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/blackboxaudio/vstcore/pkg/param"
)

// wireKind tags a stored value's kind on the wire as a small integer so
// the encoding is stable even if param.Kind's own iota ordering ever
// shifts; it is never exposed outside this package.
type wireKind uint8

const (
	wireNumeric wireKind = iota
	wireEnum
	wireSwitch
)

func toWireKind(k param.Kind) wireKind {
	switch k {
	case param.KindEnum:
		return wireEnum
	case param.KindSwitch:
		return wireSwitch
	default:
		return wireNumeric
	}
}

// taggedValue is one parameter's entry in the encoded map: a kind tag
// plus whichever payload field that kind uses. Enum values are stored
// by label, not by index, so reordering the label list of a
// non-automatable enum between versions still round-trips the saved
// choice.
type taggedValue struct {
	Kind    wireKind `msgpack:"k"`
	Numeric float32  `msgpack:"n,omitempty"`
	Enum    string   `msgpack:"e,omitempty"`
	Switch  bool     `msgpack:"s,omitempty"`
}

// wireSnapshot is the top-level self-describing container. Unknown ids
// in an incoming blob are ignored; ids missing from the blob decode to
// their current defaults. That is the entire versioning story: there is
// no explicit version number.
type wireSnapshot struct {
	Values map[string]taggedValue `msgpack:"v"`
}

// Encode serializes the given user-visible parameter values. Reserved
// (framework-owned) ids are never included, even if present in values.
// Enum values must carry their label (EnumName); the parameter store's
// MainHandle.CurrentSnapshot fills it in when producing snapshots.
func Encode(values map[string]param.Value) ([]byte, error) {
	out := wireSnapshot{Values: make(map[string]taggedValue, len(values))}
	for id, v := range values {
		if param.IsReserved(id) {
			continue
		}
		tv := taggedValue{Kind: toWireKind(v.Kind)}
		switch v.Kind {
		case param.KindNumeric:
			tv.Numeric = v.Numeric
		case param.KindEnum:
			tv.Enum = v.EnumName
		case param.KindSwitch:
			tv.Switch = v.Switch
		}
		out.Values[id] = tv
	}
	return msgpack.Marshal(&out)
}

// Decode parses bytes produced by Encode against the current registry,
// producing a value for every user-visible id in registry: the decoded
// value where present and compatible, the registered default otherwise.
//
// Decode returns *IncompatibleKindError if a stored value's kind no
// longer matches current metadata, or *VersionTooNewError if a stored
// value falls outside the current valid range (or names an enum label
// unknown to current metadata); in both cases the caller must treat
// this as a whole failure, not apply anything partially.
func Decode(data []byte, registry *param.Registry) (map[string]param.Value, error) {
	var wire wireSnapshot
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return nil, &CorruptedError{Err: err}
	}

	out := make(map[string]param.Value, len(registry.VisibleIDs()))
	for _, id := range registry.VisibleIDs() {
		info, ok := registry.InfoByID(id)
		if !ok {
			continue
		}
		stored, present := wire.Values[id]
		if !present {
			out[id] = info.Default()
			continue
		}

		v, err := resolve(info, stored)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

func resolve(info param.Info, stored taggedValue) (param.Value, error) {
	if toWireKind(info.Kind) != stored.Kind {
		return param.Value{}, &IncompatibleKindError{ID: info.ID}
	}
	switch info.Kind {
	case param.KindNumeric:
		if stored.Numeric < info.Numeric.Min || stored.Numeric > info.Numeric.Max {
			return param.Value{}, &VersionTooNewError{ID: info.ID}
		}
		return param.NumericValue(stored.Numeric), nil
	case param.KindEnum:
		for idx, label := range info.Enum.Labels {
			if label == stored.Enum {
				return param.Value{Kind: param.KindEnum, EnumIdx: uint32(idx), EnumName: label}, nil
			}
		}
		return param.Value{}, &VersionTooNewError{ID: info.ID}
	case param.KindSwitch:
		return param.SwitchValue(stored.Switch), nil
	default:
		return param.Value{}, &IncompatibleKindError{ID: info.ID}
	}
}
