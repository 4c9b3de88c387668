// Package paramstore implements the dual-ended, lock-free parameter
// store: one handle used from the main thread, one used only from the
// real-time audio callback, sharing a fixed set of atomic cells plus a
// bounded queue that ferries full snapshots from main to audio.
package paramstore

import (
	"math"
	"sync/atomic"

	"github.com/blackboxaudio/vstcore/pkg/param"
)

// cell holds one parameter's current value as a single atomic word.
// Numeric values are stored bitwise as float32 bits, enum as a uint32
// index, switch as 0/1. Cross-thread ordering for bulk snapshot
// application is carried separately by the generation counters in
// Store; the word itself needs no stronger ordering.
type cell struct {
	kind param.Kind
	bits atomic.Uint32
}

func newCell(kind param.Kind, initial param.Value) *cell {
	c := &cell{kind: kind}
	c.store(initial)
	return c
}

func (c *cell) load() param.Value {
	raw := c.bits.Load()
	switch c.kind {
	case param.KindNumeric:
		return param.NumericValue(math.Float32frombits(raw))
	case param.KindEnum:
		return param.Value{Kind: param.KindEnum, EnumIdx: raw}
	case param.KindSwitch:
		return param.SwitchValue(raw != 0)
	default:
		return param.Value{}
	}
}

func (c *cell) store(v param.Value) {
	switch c.kind {
	case param.KindNumeric:
		c.bits.Store(math.Float32bits(v.Numeric))
	case param.KindEnum:
		c.bits.Store(v.EnumIdx)
	case param.KindSwitch:
		var raw uint32
		if v.Switch {
			raw = 1
		}
		c.bits.Store(raw)
	}
}
