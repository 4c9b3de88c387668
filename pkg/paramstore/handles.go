package paramstore

import (
	"github.com/blackboxaudio/vstcore/pkg/param"
	"github.com/blackboxaudio/vstcore/pkg/paramid"
	"github.com/blackboxaudio/vstcore/pkg/paramview"
)

// MainHandle is used by the edit controller and UI thread. It may
// allocate; none of its operations block.
type MainHandle struct {
	store *Store
}

// Get returns a parameter's current value. While a snapshot is pending
// acknowledgement from the audio thread, Get answers from the cached
// pending snapshot rather than the (not-yet-updated) cells, so a caller
// never observes a snapshot only half-applied.
func (h *MainHandle) Get(id paramid.Hash) (param.Value, bool) {
	c, ok := h.store.cells[id]
	if !ok {
		return param.Value{}, false
	}
	if h.store.audioGen.Load() < h.store.mainGen.Load() {
		h.store.pendingMu.Lock()
		v, pending := h.store.pendingSnapshot[id]
		h.store.pendingMu.Unlock()
		if pending {
			return v, true
		}
	}
	return c.load(), true
}

// Set writes a single parameter value directly to its atomic cell.
// This is an immediate edit, independent of any in-flight snapshot.
func (h *MainHandle) Set(id paramid.Hash, v param.Value) error {
	info, ok := h.store.info(id)
	if !ok {
		return &SetError{Kind: SetErrNotFound}
	}
	if v.Kind != info.Kind {
		return &SetError{Kind: SetErrWrongKind}
	}
	switch info.Kind {
	case param.KindNumeric:
		if v.Numeric < info.Numeric.Min || v.Numeric > info.Numeric.Max {
			return &SetError{Kind: SetErrOutOfRange}
		}
	case param.KindEnum:
		if int(v.EnumIdx) >= len(info.Enum.Labels) {
			return &SetError{Kind: SetErrOutOfRange}
		}
	}
	h.store.cells[id].store(v)
	return nil
}

// CurrentSnapshot returns the current value of every user-visible
// parameter, keyed by id string, for the snapshot codec to serialize.
// Reserved (framework-owned) ids are excluded.
func (h *MainHandle) CurrentSnapshot() map[string]param.Value {
	ids := h.store.registry.VisibleIDs()
	out := make(map[string]param.Value, len(ids))
	for _, id := range ids {
		hash, _ := h.store.registry.HashOf(id)
		v, _ := h.Get(hash)
		if v.Kind == param.KindEnum {
			// Cells carry only the index; the codec stores enums by
			// label, so resolve it here.
			if info, ok := h.store.info(hash); ok && int(v.EnumIdx) < len(info.Enum.Labels) {
				v.EnumName = info.Enum.Labels[v.EnumIdx]
			}
		}
		out[id] = v
	}
	return out
}

// ApplySnapshot enqueues a fully-decoded set of values (one per
// user-visible id, already resolved against current metadata by the
// snapshot codec) to be applied atomically by the audio thread at the
// top of its next callback. It returns immediately; a full queue
// yields SnapshotErrQueueFull and leaves the store unchanged.
func (h *MainHandle) ApplySnapshot(values map[string]param.Value) error {
	byHash := make(map[paramid.Hash]param.Value, len(values))
	for id, v := range values {
		hash, ok := h.store.registry.HashOf(id)
		if !ok {
			continue // id no longer exists in this version; drop it.
		}
		byHash[hash] = v
	}

	// Recycle a returned snapshot map if the audio thread has handed
	// one back, instead of always allocating fresh (still main-thread
	// only, so allocation would be acceptable, but reuse is cheap).
	recycled := map[paramid.Hash]param.Value(nil)
	if msg, err := h.store.garbage.Dequeue(); err == nil {
		clear(msg.values)
		recycled = msg.values
	}
	if recycled == nil {
		recycled = make(map[paramid.Hash]param.Value, len(byHash))
	}
	for k, v := range byHash {
		recycled[k] = v
	}

	gen := h.store.mainGen.Load() + 1
	msg := fullSnapshot{gen: gen, values: recycled}
	if err := h.store.toAudio.Enqueue(&msg); err != nil {
		return &SnapshotError{Kind: SnapshotErrQueueFull}
	}

	h.store.pendingMu.Lock()
	h.store.pendingSnapshot = recycled
	h.store.pendingMu.Unlock()
	h.store.mainGen.Store(gen)
	return nil
}

// AudioHandle is used only from the real-time audio callback. None of
// its operations allocate or block.
type AudioHandle struct {
	store   *Store
	scratch *paramview.Scratch
	states  *paramview.ConstantStates
}

// Scratch returns the pre-sized scratch table used by ApplyChangeQueue,
// creating it on first use. Call this once before the first process
// call so no allocation happens inside the audio path.
func (h *AudioHandle) Scratch() *paramview.Scratch {
	if h.scratch == nil {
		h.scratch = paramview.NewScratch()
		h.scratch.Reserve(h.store.registry.Hashes())
	}
	return h.scratch
}

// DrainPendingSnapshots applies at most one pending full snapshot to
// the live cells. Call this at the top of every audio callback.
func (h *AudioHandle) DrainPendingSnapshots() {
	msg, err := h.store.toAudio.Dequeue()
	if err != nil {
		return
	}
	for hash, v := range msg.values {
		if c, ok := h.store.cells[hash]; ok {
			c.store(v)
		}
	}
	h.store.audioGen.Store(msg.gen)
	// Hand the backing map back to main for recycling; never block.
	_ = h.store.garbage.Enqueue(msg)
}

// ApplyChangeQueue converts a host-supplied per-buffer change queue
// into a BufferStates, committing each touched parameter's final value
// to its cell.
func (h *AudioHandle) ApplyChangeQueue(queue paramview.ChangeQueue, bufferSize int) (paramview.BufferStates, error) {
	return paramview.Apply(queue, bufferSize, audioCellAccess{h.store}, audioCellAccess{h.store}, h.Scratch())
}

// States returns an instantaneous, control-rate view of every
// parameter's current value, each reported as a Constant curve. Like
// Scratch, the backing storage is created on first use and refreshed
// in place after that; call once before the first process call so no
// allocation happens inside the audio path.
func (h *AudioHandle) States() paramview.BufferStates {
	if h.states == nil {
		h.states = paramview.NewConstantStatesScratch(h.store.registry.Hashes())
	}
	for hash, c := range h.store.cells {
		h.states.Set(hash, c.load())
	}
	return h.states
}

// audioCellAccess adapts Store to paramview's CellReader/CellWriter.
type audioCellAccess struct{ store *Store }

func (a audioCellAccess) Current(h paramid.Hash) (param.Value, bool) {
	c, ok := a.store.cells[h]
	if !ok {
		return param.Value{}, false
	}
	return c.load(), true
}

func (a audioCellAccess) Info(h paramid.Hash) (param.Info, bool) {
	return a.store.info(h)
}

func (a audioCellAccess) CommitFinal(h paramid.Hash, v param.Value) {
	if c, ok := a.store.cells[h]; ok {
		c.store(v)
	}
}
