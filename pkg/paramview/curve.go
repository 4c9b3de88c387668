// Package paramview translates a host change queue plus the current
// parameter store into per-buffer curves: the BufferStates consumed
// directly by component code in the audio callback.
package paramview

import (
	"github.com/blackboxaudio/vstcore/pkg/param"
	"github.com/blackboxaudio/vstcore/pkg/paramid"
)

// Shape distinguishes how a Curve's points should be read between
// offsets.
type Shape int

const (
	// Constant means the parameter did not change during this buffer;
	// Points holds exactly one entry at offset 0.
	Constant Shape = iota
	// PiecewiseLinear means consecutive points are linearly
	// interpolated (numeric parameters only).
	PiecewiseLinear
	// Stepwise means the value holds at the last point's value until
	// the next point (enum / switch parameters).
	Stepwise
)

// Point is one knot in a Curve.
type Point struct {
	SampleOffset int
	Value        param.Value
}

// Curve is a per-buffer view of one parameter's value over time.
//
// Invariants: the first point has offset 0, offsets strictly increase,
// and every value lies within the parameter's valid range.
type Curve struct {
	Kind   param.Kind
	Shape  Shape
	Points []Point
}

// ConstantValue returns the curve's value and true if the curve is
// Constant; otherwise it returns the zero Value and false.
func (c Curve) ConstantValue() (param.Value, bool) {
	if c.Shape == Constant && len(c.Points) > 0 {
		return c.Points[0].Value, true
	}
	return param.Value{}, false
}

// At returns the value of the curve at the given sample offset.
// Numeric piecewise-linear curves interpolate; stepwise curves hold
// the last point's value.
func (c Curve) At(sampleOffset int) param.Value {
	if len(c.Points) == 0 {
		return param.Value{}
	}
	// Find the last point with SampleOffset <= sampleOffset.
	lo := 0
	for i := 1; i < len(c.Points); i++ {
		if c.Points[i].SampleOffset > sampleOffset {
			break
		}
		lo = i
	}
	if c.Shape != PiecewiseLinear || lo == len(c.Points)-1 {
		return c.Points[lo].Value
	}
	next := c.Points[lo+1]
	if next.SampleOffset == c.Points[lo].SampleOffset {
		return next.Value
	}
	span := float32(next.SampleOffset - c.Points[lo].SampleOffset)
	frac := float32(sampleOffset-c.Points[lo].SampleOffset) / span
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	a := c.Points[lo].Value.Numeric
	b := next.Value.Numeric
	return param.NumericValue(a + (b-a)*frac)
}

// Cursor supports a tight, allocation-free per-sample loop over a
// Curve: an initial value plus stepwise advancement. Callers advance
// it once per sample in increasing order.
type Cursor struct {
	curve    Curve
	nextIdx  int
	curValue param.Value
}

// NewCursor creates a Cursor starting at sample 0.
func (c Curve) NewCursor() Cursor {
	cur := Cursor{curve: c}
	if len(c.Points) > 0 {
		cur.curValue = c.Points[0].Value
		cur.nextIdx = 1
	}
	return cur
}

// Next returns the value at the next sample and advances the cursor by
// one sample. sampleIndex must increase by exactly 1 between calls,
// starting at 0.
func (cu *Cursor) Next(sampleIndex int) param.Value {
	pts := cu.curve.Points
	for cu.nextIdx < len(pts) && pts[cu.nextIdx].SampleOffset <= sampleIndex {
		cu.curValue = pts[cu.nextIdx].Value
		cu.nextIdx++
	}
	if cu.curve.Shape != PiecewiseLinear || cu.nextIdx >= len(pts) {
		return cu.curValue
	}
	prevIdx := cu.nextIdx - 1
	prev := pts[prevIdx]
	next := pts[cu.nextIdx]
	if next.SampleOffset == prev.SampleOffset {
		return next.Value
	}
	span := float32(next.SampleOffset - prev.SampleOffset)
	frac := float32(sampleIndex-prev.SampleOffset) / span
	a := prev.Value.Numeric
	b := next.Value.Numeric
	return param.NumericValue(a + (b-a)*frac)
}

// BufferStates is the read-only view a component's process call
// receives: one Curve per parameter for the current buffer.
type BufferStates interface {
	// Get returns the Curve for a parameter hash, and whether that
	// parameter is known to this view.
	Get(h paramid.Hash) (Curve, bool)
}

// staticStates is a trivial BufferStates useful for tests and for
// handle_events-style calls that occur outside a real audio buffer,
// where every parameter is simply constant at its current value.
type staticStates struct {
	values map[paramid.Hash]param.Value
}

// NewConstantStates builds a BufferStates where every parameter is
// constant at the given value for the whole buffer.
func NewConstantStates(values map[paramid.Hash]param.Value) BufferStates {
	return staticStates{values: values}
}

func (s staticStates) Get(h paramid.Hash) (Curve, bool) {
	v, ok := s.values[h]
	if !ok {
		return Curve{}, false
	}
	return Curve{
		Kind:   v.Kind,
		Shape:  Constant,
		Points: []Point{{SampleOffset: 0, Value: v}},
	}, true
}

// ConstantStates is a reusable BufferStates for control-rate audio
// paths: every parameter reports a Constant curve at its last Set
// value. All backing storage (the value map and one point slot per
// hash) is allocated at construction, so Set and Get are
// allocation-free on a fixed hash set. A Curve returned by Get is
// valid until the next Get for the same hash.
type ConstantStates struct {
	values map[paramid.Hash]param.Value
	slots  map[paramid.Hash]*[1]Point
}

// NewConstantStatesScratch pre-allocates a ConstantStates for a known,
// fixed set of parameter hashes.
func NewConstantStatesScratch(hashes []paramid.Hash) *ConstantStates {
	cs := &ConstantStates{
		values: make(map[paramid.Hash]param.Value, len(hashes)),
		slots:  make(map[paramid.Hash]*[1]Point, len(hashes)),
	}
	for _, h := range hashes {
		cs.slots[h] = new([1]Point)
	}
	return cs
}

// Set records the current value for h. Overwriting an existing key of
// a pre-sized map does not allocate.
func (s *ConstantStates) Set(h paramid.Hash, v param.Value) {
	s.values[h] = v
}

func (s *ConstantStates) Get(h paramid.Hash) (Curve, bool) {
	v, ok := s.values[h]
	if !ok {
		return Curve{}, false
	}
	slot, ok := s.slots[h]
	if !ok {
		return Curve{Kind: v.Kind, Shape: Constant, Points: []Point{{SampleOffset: 0, Value: v}}}, true
	}
	slot[0] = Point{SampleOffset: 0, Value: v}
	return Curve{Kind: v.Kind, Shape: Constant, Points: slot[:]}, true
}
