package paramstore

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/lfq"

	"github.com/blackboxaudio/vstcore/pkg/param"
	"github.com/blackboxaudio/vstcore/pkg/paramid"
)

// DefaultSnapshotQueueCapacity is the bounded capacity of the
// main->audio (and audio->main garbage) snapshot queues.
const DefaultSnapshotQueueCapacity = 50

// fullSnapshot is a mapping from hash to value for every user-visible
// parameter, the unit ferried across the snapshot queue. Reserved
// (framework-owned) parameters are never included: they are never part
// of a persisted snapshot.
type fullSnapshot struct {
	gen    uint64
	values map[paramid.Hash]param.Value
}

// Store is the shared inner state behind both a MainHandle and an
// AudioHandle. It is constructed once, before either handle is used,
// from an immutable parameter registry.
type Store struct {
	registry *param.Registry
	cells    map[paramid.Hash]*cell

	toAudio  *lfq.SPSC[fullSnapshot]
	garbage  *lfq.SPSC[fullSnapshot]
	mainGen  atomic.Uint64
	audioGen atomic.Uint64

	pendingMu       sync.Mutex
	pendingSnapshot map[paramid.Hash]param.Value
}

// New builds a Store with one atomic cell per registered parameter,
// each initialized to its metadata default, and a bounded snapshot
// queue of DefaultSnapshotQueueCapacity.
func New(registry *param.Registry) *Store {
	return NewWithQueueCapacity(registry, DefaultSnapshotQueueCapacity)
}

// NewWithQueueCapacity is like New but allows overriding the snapshot
// queue capacity (rounded up to a power of two by lfq, which requires
// at least 2 slots).
func NewWithQueueCapacity(registry *param.Registry, queueCapacity int) *Store {
	if queueCapacity < 2 {
		queueCapacity = 2
	}
	s := &Store{
		registry: registry,
		cells:    make(map[paramid.Hash]*cell, registry.Len()),
		toAudio:  lfq.NewSPSC[fullSnapshot](queueCapacity),
		garbage:  lfq.NewSPSC[fullSnapshot](queueCapacity),
	}
	for _, h := range registry.Hashes() {
		info, _ := registry.Info(h)
		s.cells[h] = newCell(info.Kind, info.Default())
	}
	return s
}

// Main returns the handle used by the edit controller and UI thread.
func (s *Store) Main() *MainHandle { return &MainHandle{store: s} }

// Audio returns the handle used only from the real-time callback.
func (s *Store) Audio() *AudioHandle { return &AudioHandle{store: s} }

func (s *Store) info(h paramid.Hash) (param.Info, bool) { return s.registry.Info(h) }
