package paramstore

import (
	"testing"

	"github.com/blackboxaudio/vstcore/pkg/param"
	"github.com/blackboxaudio/vstcore/pkg/paramid"
	"github.com/blackboxaudio/vstcore/pkg/paramview"
)

func testRegistry(t *testing.T) (*param.Registry, paramid.Hash) {
	t.Helper()
	reg, err := param.NewRegistry([]param.Info{
		{
			ID:          "gain",
			Kind:        param.KindNumeric,
			Automatable: true,
			Numeric:     param.NumericInfo{Min: 0, Max: 1, Default: 0.5},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	h, _ := reg.HashOf("gain")
	return reg, h
}

func TestNewInitializesCellsToDefault(t *testing.T) {
	reg, h := testRegistry(t)
	store := New(reg)
	v, ok := store.Main().Get(h)
	if !ok {
		t.Fatal("expected gain to be found")
	}
	if v.Numeric != 0.5 {
		t.Errorf("expected default 0.5, got %v", v.Numeric)
	}
}

func TestMainSetRejectsOutOfRange(t *testing.T) {
	reg, h := testRegistry(t)
	store := New(reg)
	err := store.Main().Set(h, param.NumericValue(2))
	if err == nil {
		t.Fatal("expected error for out-of-range set")
	}
	var setErr *SetError
	if !asSetError(err, &setErr) || setErr.Kind != SetErrOutOfRange {
		t.Errorf("expected SetErrOutOfRange, got %v", err)
	}
}

func TestMainSetThenAudioApplyChangeQueueSeesNewValue(t *testing.T) {
	reg, h := testRegistry(t)
	store := New(reg)
	if err := store.Main().Set(h, param.NumericValue(0.75)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	states, err := store.Audio().ApplyChangeQueue(nil, 64)
	if err != nil {
		t.Fatalf("ApplyChangeQueue: %v", err)
	}
	curve, ok := states.Get(h)
	if !ok {
		t.Fatal("expected curve for gain")
	}
	v, _ := curve.ConstantValue()
	if v.Numeric != 0.75 {
		t.Errorf("expected 0.75, got %v", v.Numeric)
	}
}

func TestApplySnapshotDeliversToAudioThreadOnDrain(t *testing.T) {
	reg, h := testRegistry(t)
	store := New(reg)

	if err := store.Main().ApplySnapshot(map[string]param.Value{"gain": param.NumericValue(0.1)}); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}

	// Before drain, the audio-side cell is still untouched, but Main.Get
	// must answer from the pending snapshot so it never observes a
	// half-applied state.
	v, ok := store.Main().Get(h)
	if !ok || v.Numeric != 0.1 {
		t.Errorf("expected pending snapshot value 0.1 visible from Main, got %+v ok=%v", v, ok)
	}

	store.Audio().DrainPendingSnapshots()

	v, ok = store.Audio().States().Get(h)
	if !ok {
		t.Fatal("expected gain curve after drain")
	}
	cv, _ := v.ConstantValue()
	if cv.Numeric != 0.1 {
		t.Errorf("expected audio cell updated to 0.1 after drain, got %v", cv.Numeric)
	}
}

func TestApplySnapshotQueueFullReturnsError(t *testing.T) {
	reg, _ := testRegistry(t)
	store := NewWithQueueCapacity(reg, 2)
	values := map[string]param.Value{"gain": param.NumericValue(0.2)}

	// Fill both slots without draining.
	for i := 0; i < 2; i++ {
		if err := store.Main().ApplySnapshot(values); err != nil {
			t.Fatalf("ApplySnapshot %d: %v", i, err)
		}
	}
	err := store.Main().ApplySnapshot(values)
	if err == nil {
		t.Fatal("expected queue-full error once both slots are pending")
	}
	var snapErr *SnapshotError
	if !asSnapshotError(err, &snapErr) || snapErr.Kind != SnapshotErrQueueFull {
		t.Errorf("expected SnapshotErrQueueFull, got %v", err)
	}
}

func TestAudioStatesReflectsAllParametersAsConstant(t *testing.T) {
	reg, h := testRegistry(t)
	store := New(reg)
	states := store.Audio().States()
	curve, ok := states.Get(h)
	if !ok {
		t.Fatal("expected gain in states")
	}
	if curve.Shape != paramview.Constant {
		t.Errorf("expected Constant shape, got %v", curve.Shape)
	}
}

func asSetError(err error, target **SetError) bool {
	se, ok := err.(*SetError)
	if ok {
		*target = se
	}
	return ok
}

func asSnapshotError(err error, target **SnapshotError) bool {
	se, ok := err.(*SnapshotError)
	if ok {
		*target = se
	}
	return ok
}
