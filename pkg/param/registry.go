package param

import (
	"github.com/blackboxaudio/vstcore/pkg/paramid"
)

// Registry is the read-only { hash -> metadata } mapping built once at
// component construction. It is immutable after NewRegistry returns
// successfully; there is deliberately no Add method, because the id
// set must be fixed before the dual-ended store is created over it.
type Registry struct {
	order   []paramid.Hash
	byHash  map[paramid.Hash]Info
	byID    map[string]paramid.Hash
	visible []string // ids restricted to user-visible (non-reserved) parameters
}

// NewRegistry builds an immutable registry from an ordered list of
// parameter infos. It validates every Info and aborts with an error on
// the first problem, including a *paramid.CollisionError if two ids
// hash equal.
func NewRegistry(infos []Info) (*Registry, error) {
	r := &Registry{
		byHash: make(map[paramid.Hash]Info, len(infos)),
		byID:   make(map[string]paramid.Hash, len(infos)),
	}
	for _, info := range infos {
		if err := info.Validate(); err != nil {
			return nil, err
		}
		h := paramid.Of(info.ID)
		if existingID, ok := r.idForHash(h); ok && existingID != info.ID {
			return nil, &paramid.CollisionError{First: existingID, Second: info.ID, Hash: h}
		}
		if _, dup := r.byHash[h]; dup {
			return nil, &ConstructionError{Kind: ConstructionErrDuplicateID, ID: info.ID}
		}
		r.byHash[h] = info
		r.byID[info.ID] = h
		r.order = append(r.order, h)
		if !IsReserved(info.ID) {
			r.visible = append(r.visible, info.ID)
		}
	}
	return r, nil
}

func (r *Registry) idForHash(h paramid.Hash) (string, bool) {
	info, ok := r.byHash[h]
	if !ok {
		return "", false
	}
	return info.ID, true
}

// Len returns the total number of registered parameters (including
// framework-reserved ones).
func (r *Registry) Len() int { return len(r.order) }

// Hashes returns the registered hashes in registration order.
func (r *Registry) Hashes() []paramid.Hash {
	out := make([]paramid.Hash, len(r.order))
	copy(out, r.order)
	return out
}

// VisibleIDs returns the ids of every non-reserved (user-visible)
// parameter, in registration order. Only needed on the main thread for
// snapshot emission.
func (r *Registry) VisibleIDs() []string {
	out := make([]string, len(r.visible))
	copy(out, r.visible)
	return out
}

// Info looks up metadata by hash.
func (r *Registry) Info(h paramid.Hash) (Info, bool) {
	info, ok := r.byHash[h]
	return info, ok
}

// InfoByID looks up metadata by id string.
func (r *Registry) InfoByID(id string) (Info, bool) {
	h, ok := r.byID[id]
	if !ok {
		return Info{}, false
	}
	return r.Info(h)
}

// HashOf returns the hash for a registered id.
func (r *Registry) HashOf(id string) (paramid.Hash, bool) {
	h, ok := r.byID[id]
	return h, ok
}
