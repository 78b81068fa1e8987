package mozclone

import (
	"bytes"
	"io"
	"time"
)

func newByteReadSeeker(b []byte) io.ReadSeeker {
	return bytes.NewReader(b)
}

func newByteReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// epochMillis converts a JS Date's milliseconds-since-epoch double to a UTC
// time.Time.
func epochMillis(ms float64) time.Time {
	epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	return epoch.Add(time.Duration(ms * float64(time.Millisecond)))
}
