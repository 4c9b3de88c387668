package param

import "fmt"

// ConstructionErrorKind enumerates the ways parameter metadata can be
// invalid at construction time. All of these abort instance creation.
type ConstructionErrorKind int

const (
	// ConstructionErrEmptyID means a parameter has no id string.
	ConstructionErrEmptyID ConstructionErrorKind = iota
	// ConstructionErrRangeInverted means a numeric max is below min.
	ConstructionErrRangeInverted
	// ConstructionErrDefaultOutOfRange means a default value falls
	// outside its own declared range or label list.
	ConstructionErrDefaultOutOfRange
	// ConstructionErrEnumTooFewLabels means an enum has fewer than two
	// labels.
	ConstructionErrEnumTooFewLabels
	// ConstructionErrEnumTooManyLabels means an enum's label count
	// does not fit the host's i32 step count.
	ConstructionErrEnumTooManyLabels
	// ConstructionErrUnknownKind means the Kind tag is not one of the
	// three defined kinds.
	ConstructionErrUnknownKind
	// ConstructionErrDuplicateID means the same id string was
	// registered twice.
	ConstructionErrDuplicateID
)

// ConstructionError reports invalid parameter metadata. ID names the
// offending parameter.
type ConstructionError struct {
	Kind ConstructionErrorKind
	ID   string
}

func (e *ConstructionError) Error() string {
	switch e.Kind {
	case ConstructionErrEmptyID:
		return "param: empty id"
	case ConstructionErrRangeInverted:
		return fmt.Sprintf("param %s: max < min", e.ID)
	case ConstructionErrDefaultOutOfRange:
		return fmt.Sprintf("param %s: default out of range", e.ID)
	case ConstructionErrEnumTooFewLabels:
		return fmt.Sprintf("param %s: enum needs at least 2 labels", e.ID)
	case ConstructionErrEnumTooManyLabels:
		return fmt.Sprintf("param %s: too many enum labels to fit in i32", e.ID)
	case ConstructionErrUnknownKind:
		return fmt.Sprintf("param %s: unknown kind", e.ID)
	case ConstructionErrDuplicateID:
		return fmt.Sprintf("param: duplicate parameter id %q", e.ID)
	default:
		return fmt.Sprintf("param %s: invalid metadata", e.ID)
	}
}
