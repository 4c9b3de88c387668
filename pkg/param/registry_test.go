package param

import (
	"errors"
	"testing"
)

func TestNewRegistryBuildsLookups(t *testing.T) {
	infos := []Info{numericInfo(), enumInfo(), switchInfo()}
	r, err := NewRegistry(infos)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Len() != 3 {
		t.Errorf("expected 3 params, got %d", r.Len())
	}
	h, ok := r.HashOf("gain")
	if !ok {
		t.Fatal("expected gain to be registered")
	}
	info, ok := r.Info(h)
	if !ok || info.ID != "gain" {
		t.Errorf("Info(HashOf(gain)) round trip failed: %+v, %v", info, ok)
	}
}

func TestNewRegistryRejectsInvalidInfo(t *testing.T) {
	bad := Info{ID: "bad", Kind: KindEnum, Enum: EnumInfo{Labels: []string{"only"}}}
	if _, err := NewRegistry([]Info{bad}); err == nil {
		t.Error("expected validation error to propagate")
	}
}

func TestNewRegistryRejectsDuplicateID(t *testing.T) {
	dup := numericInfo()
	_, err := NewRegistry([]Info{numericInfo(), dup})
	var cerr *ConstructionError
	if !errors.As(err, &cerr) || cerr.Kind != ConstructionErrDuplicateID {
		t.Errorf("expected ConstructionErrDuplicateID, got %v", err)
	}
}

func TestVisibleIDsExcludesReserved(t *testing.T) {
	reserved := Info{ID: ReservedPrefix + "pitch_bend_1", Kind: KindNumeric, Numeric: NumericInfo{Min: -1, Max: 1}}
	r, err := NewRegistry([]Info{numericInfo(), reserved})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	visible := r.VisibleIDs()
	if len(visible) != 1 || visible[0] != "gain" {
		t.Errorf("expected only gain visible, got %v", visible)
	}
}
