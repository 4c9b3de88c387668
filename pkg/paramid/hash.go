// Package paramid computes the stable 31-bit identifier hash used to
// address parameters from the real-time audio path without string
// comparisons.
package paramid

import (
	"github.com/OneOfOne/xxhash"
)

// Hash is a 31-bit parameter identifier. Bit 31 is always clear, leaving
// it free for host-framework flags (VST3 reserves the high bits of a
// ParamID for exactly this purpose).
type Hash uint32

// topBit is the bit that must stay clear in every Hash.
const topBit = uint32(1) << 31

// Of computes the stable hash of a parameter id string.
//
// The concrete hash family (xxhash32) must never change for the lifetime
// of a plug-in family: doing so silently breaks every persisted snapshot
// and every host automation lane keyed on the numeric id.
func Of(id string) Hash {
	h := xxhash.ChecksumString32(id)
	return Hash(h &^ topBit)
}

// Table maps hashes to the id strings that produced them, and detects
// collisions at construction time.
type Table struct {
	toID map[Hash]string
}

// NewTable builds a hash table from a set of id strings, in order.
// It returns a *CollisionError naming the colliding ids if two distinct
// ids hash to the same value.
func NewTable(ids []string) (*Table, error) {
	t := &Table{toID: make(map[Hash]string, len(ids))}
	for _, id := range ids {
		h := Of(id)
		if existing, ok := t.toID[h]; ok && existing != id {
			return nil, &CollisionError{First: existing, Second: id, Hash: h}
		}
		t.toID[h] = id
	}
	return t, nil
}

// ID returns the id string that produced h, if any.
func (t *Table) ID(h Hash) (string, bool) {
	id, ok := t.toID[h]
	return id, ok
}

// Len returns the number of distinct ids in the table.
func (t *Table) Len() int {
	return len(t.toID)
}

// CollisionError reports that two distinct parameter ids hashed equal.
// Construction must abort when this occurs; proceeding would leave two
// parameters answering to one numeric id.
type CollisionError struct {
	First  string
	Second string
	Hash   Hash
}

func (e *CollisionError) Error() string {
	return "paramid: hash collision between " + e.First + " and " + e.Second
}
