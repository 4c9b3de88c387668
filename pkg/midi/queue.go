package midi

import (
	"sort"
	"sync"
)

// EventQueue accumulates MIDI events delivered outside the audio
// callback (a host's non-realtime event path, or a test harness) and
// hands them out sorted and windowed by sample offset. It is safe for
// concurrent producers; the consumer drains it from one goroutine.
type EventQueue struct {
	mu     sync.Mutex
	events []Event
	sorted bool
}

func NewEventQueue() *EventQueue {
	return &EventQueue{
		events: make([]Event, 0, 128),
		sorted: true,
	}
}

func (q *EventQueue) Add(event Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.events = append(q.events, event)
	q.sorted = false
}

func (q *EventQueue) AddMultiple(events []Event) {
	if len(events) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.events = append(q.events, events...)
	q.sorted = false
}

// EventsInRange returns a copy of the events with offsets in
// [startSample, endSample), in offset order.
func (q *EventQueue) EventsInRange(startSample, endSample int32) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.sortEvents()
	if len(q.events) == 0 {
		return nil
	}

	startIdx := sort.Search(len(q.events), func(i int) bool {
		return q.events[i].SampleOffset() >= startSample
	})

	endIdx := startIdx
	for endIdx < len(q.events) && q.events[endIdx].SampleOffset() < endSample {
		endIdx++
	}

	if startIdx == endIdx {
		return nil
	}

	result := make([]Event, endIdx-startIdx)
	copy(result, q.events[startIdx:endIdx])
	return result
}

// Drain returns every queued event in offset order and empties the
// queue.
func (q *EventQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.sortEvents()
	if len(q.events) == 0 {
		return nil
	}
	result := make([]Event, len(q.events))
	copy(result, q.events)
	q.events = q.events[:0]
	return result
}

// RemoveProcessed discards events with offsets <= upToSample.
func (q *EventQueue) RemoveProcessed(upToSample int32) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.sortEvents()
	keepIdx := sort.Search(len(q.events), func(i int) bool {
		return q.events[i].SampleOffset() > upToSample
	})

	if keepIdx > 0 {
		copy(q.events, q.events[keepIdx:])
		q.events = q.events[:len(q.events)-keepIdx]
	}
}

func (q *EventQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.events = q.events[:0]
	q.sorted = true
}

func (q *EventQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// sortEvents must be called with the lock held.
func (q *EventQueue) sortEvents() {
	if q.sorted {
		return
	}
	sort.SliceStable(q.events, func(i, j int) bool {
		return q.events[i].SampleOffset() < q.events[j].SampleOffset()
	})
	q.sorted = true
}
