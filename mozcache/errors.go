package mozcache

import "errors"

// Error kinds returned by this package. Wrap with fmt.Errorf("%w: ...") at
// the detection site; callers discriminate with errors.Is.
var (
	// ErrMalformedKey indicates a cache-key tag grammar violation.
	ErrMalformedKey = errors.New("malformed cache key")
	// ErrBadVersion indicates a metadata version field other than 3.
	ErrBadVersion = errors.New("unsupported cache entry metadata version")
	// ErrMalformedMetadata indicates a missing NUL terminator, odd
	// elements count, or other metadata-block structural violation.
	ErrMalformedMetadata = errors.New("malformed cache entry metadata")
	// ErrNotFound indicates no entries matched a strict-mode query.
	ErrNotFound = errors.New("no matching cache entries")
)
