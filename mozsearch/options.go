package mozsearch

// Options tunes iteration behavior shared by the cache, storage, and places
// query surfaces, independent of which Search predicate is in play. The
// zero value is the strict default: terminate on the first decode failure,
// succeed silently when nothing matches.
type Options struct {
	// SkipCorrupt, when true, skips records that fail to decode instead of
	// terminating iteration with the decode error. Iterators with no
	// comparable per-record decode step ignore this field.
	SkipCorrupt bool

	// RaiseOnNoResult, when true, causes an iterator that matches nothing
	// to return a package's ErrNotFound instead of succeeding silently.
	RaiseOnNoResult bool
}
