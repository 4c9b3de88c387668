package paramview

import (
	"fmt"

	"github.com/blackboxaudio/vstcore/pkg/param"
	"github.com/blackboxaudio/vstcore/pkg/paramid"
)

// NormalizedPoint is one entry in a host-supplied per-parameter change
// queue: an offset within [0, bufferSize) and a normalized value in
// [0, 1].
type NormalizedPoint struct {
	SampleOffset int
	Normalized   float32
}

// ParamChange is the per-parameter point sequence that makes up one
// entry of a per-buffer ChangeQueue.
type ParamChange struct {
	ID     paramid.Hash
	Points []NormalizedPoint
}

// ChangeQueue is the host's full per-buffer parameter change queue.
type ChangeQueue []ParamChange

// CellReader is the minimal read access the builder needs into the
// parameter store: the value a cell held before this buffer's changes
// were applied (used to synthesize a point at offset 0 when the queue
// has no entry there) and the metadata needed to convert normalized
// points into kind-specific values.
type CellReader interface {
	Current(h paramid.Hash) (param.Value, bool)
	Info(h paramid.Hash) (param.Info, bool)
}

// CellWriter receives the final (last) value written for each touched
// parameter, so the store can commit it to the live atomic cell.
type CellWriter interface {
	CommitFinal(h paramid.Hash, v param.Value)
}

// Scratch is a pre-allocated, reusable table the audio thread owns
// exclusively. Apply fills it without allocating once its backing
// slices have grown to their working size.
type Scratch struct {
	curves map[paramid.Hash]Curve
	points map[paramid.Hash][]Point
	consts map[paramid.Hash]*[1]Point
}

// NewScratch creates an empty Scratch. Call Reserve with the full set
// of registered hashes once, at construction time, so the backing maps
// never grow during audio processing.
func NewScratch() *Scratch {
	return &Scratch{
		curves: make(map[paramid.Hash]Curve),
		points: make(map[paramid.Hash][]Point),
		consts: make(map[paramid.Hash]*[1]Point),
	}
}

// Reserve pre-sizes the scratch table's backing storage for a known,
// fixed set of parameter hashes, including the one-point slots that
// back synthesized Constant curves for untouched parameters.
func (s *Scratch) Reserve(hashes []paramid.Hash) {
	for _, h := range hashes {
		if _, ok := s.points[h]; !ok {
			s.points[h] = make([]Point, 0, 8)
		}
		if _, ok := s.consts[h]; !ok {
			s.consts[h] = new([1]Point)
		}
	}
}

// ValidationError reports a host change queue entry that violates the
// change-queue invariants.
type ValidationError struct {
	Hash   paramid.Hash
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("paramview: invalid change queue entry for %d: %s", e.Hash, e.Reason)
}

// Apply validates and converts a host change queue into curves stored
// in scratch, committing the final value of each touched parameter via
// writer. It returns a BufferStates backed by scratch, valid only
// until the next call to Apply, matching the store's per-buffer
// lifetime.
//
// Validation performed: offsets non-negative, < bufferSize, and
// strictly increasing within a queue entry; point values in [0, 1];
// parameter exists. Kind checking is implicit: a hash's points are
// only ever interpreted using its own registered Info.
//
// Two points at the same offset are rejected, not collapsed: a host
// change queue is declared input, and a duplicate offset is a
// malformed queue. Collapsing to the last point is reserved for
// derived curves (expression.BuildVoiceCurve), where same-offset
// points arise legitimately from event translation.
func Apply(queue ChangeQueue, bufferSize int, reader CellReader, writer CellWriter, scratch *Scratch) (BufferStates, error) {
	clear(scratch.curves)
	for _, change := range queue {
		info, ok := reader.Info(change.ID)
		if !ok {
			return nil, &ValidationError{Hash: change.ID, Reason: "unknown parameter"}
		}
		if len(change.Points) == 0 {
			continue
		}
		pts := scratch.points[change.ID][:0]
		if change.Points[0].SampleOffset != 0 {
			prev, ok := reader.Current(change.ID)
			if !ok {
				prev = info.Default()
			}
			pts = append(pts, Point{SampleOffset: 0, Value: prev})
		}
		lastOffsetSeen := -1
		for _, p := range change.Points {
			if p.SampleOffset < 0 || p.SampleOffset >= bufferSize {
				return nil, &ValidationError{Hash: change.ID, Reason: "sample offset out of range"}
			}
			if p.SampleOffset <= lastOffsetSeen {
				return nil, &ValidationError{Hash: change.ID, Reason: "offsets not strictly increasing"}
			}
			lastOffsetSeen = p.SampleOffset
			if p.Normalized < 0 || p.Normalized > 1 {
				return nil, &ValidationError{Hash: change.ID, Reason: "normalized value outside [0,1]"}
			}
			value := info.Denormalize(p.Normalized)
			pts = append(pts, Point{SampleOffset: p.SampleOffset, Value: value})
		}
		shape := Stepwise
		if info.Kind == param.KindNumeric {
			shape = PiecewiseLinear
		}
		if len(pts) == 1 {
			shape = Constant
		}
		curve := Curve{Kind: info.Kind, Shape: shape, Points: pts}
		scratch.points[change.ID] = pts
		scratch.curves[change.ID] = curve
	}
	// Commit only after every entry has validated, so a rejected queue
	// leaves the live cells untouched.
	for h, curve := range scratch.curves {
		writer.CommitFinal(h, curve.Points[len(curve.Points)-1].Value)
	}
	return &scratchStates{scratch: scratch, reader: reader}, nil
}

// scratchStates is the BufferStates returned by Apply. For parameters
// that had no change queue entry this buffer, it synthesizes a
// Constant curve from the current cell value.
type scratchStates struct {
	scratch *Scratch
	reader  CellReader
}

func (s *scratchStates) Get(h paramid.Hash) (Curve, bool) {
	if c, ok := s.scratch.curves[h]; ok {
		return c, true
	}
	v, ok := s.reader.Current(h)
	if !ok {
		return Curve{}, false
	}
	if slot, ok := s.scratch.consts[h]; ok {
		slot[0] = Point{SampleOffset: 0, Value: v}
		return Curve{Kind: v.Kind, Shape: Constant, Points: slot[:]}, true
	}
	return Curve{Kind: v.Kind, Shape: Constant, Points: []Point{{SampleOffset: 0, Value: v}}}, true
}
