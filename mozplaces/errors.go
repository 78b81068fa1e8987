package mozplaces

import "errors"

// Error kinds returned by this package. Wrap with fmt.Errorf("%w: ...") at
// the detection site; callers discriminate with errors.Is.
var (
	// ErrNotFound indicates no records matched a strict-mode query.
	ErrNotFound = errors.New("no matching places records")
)
