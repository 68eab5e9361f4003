package overlaykv

import "errors"

// Sentinel errors returned by NewVolumeChild. Every other documented
// failure mode in this package (detach, mount, unmount, lookup) reports
// failure as a plain bool or a nil handle, per the engine's no-out-of-band
// error contract; construction is the one operation that distinguishes
// more than one cause, so it returns these sentinels instead.
var (
	// ErrInvalidName is returned when a child name is empty or contains
	// the path separator.
	ErrInvalidName = errors.New("overlaykv: invalid child name")

	// ErrDuplicateChild is returned when the parent already has a child
	// by that name.
	ErrDuplicateChild = errors.New("overlaykv: duplicate child name")
)
