package mozplaces

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeEncodeUnixMicrosRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	us := encodeUnixMicros(at)
	require.True(t, decodeUnixMicros(us).Equal(at))
}

func TestDecodeUnixMicrosEpoch(t *testing.T) {
	t.Parallel()

	require.True(t, decodeUnixMicros(0).Equal(unixEpoch))
}

func TestDecodeUnixMillis(t *testing.T) {
	t.Parallel()

	got := decodeUnixMillis(1700000000123)
	require.Equal(t, int64(1700000000123), got.Sub(unixEpoch).Milliseconds())
}

func TestHistoryRecordHasParent(t *testing.T) {
	t.Parallel()

	withParent := HistoryRecord{FromVisitID: 7}
	require.True(t, withParent.HasParent())

	withoutParent := HistoryRecord{FromVisitID: 0}
	require.False(t, withoutParent.HasParent())
}

func TestHistoryRecordParentReturnsNilWithoutParent(t *testing.T) {
	t.Parallel()

	rec := HistoryRecord{FromVisitID: 0}
	parent, err := rec.Parent(nil)
	require.NoError(t, err)
	require.Nil(t, parent)
}

func TestDownloadEmbedsHistoryRecord(t *testing.T) {
	t.Parallel()

	dl := Download{
		HistoryRecord: HistoryRecord{URL: "https://example.com/file.zip"},
		State:         DownloadFinished,
		FileSize:      1024,
		HasFileSize:   true,
	}
	require.Equal(t, "https://example.com/file.zip", dl.URL)
	require.Equal(t, DownloadFinished, dl.State)
}

func TestVisitTypeConstants(t *testing.T) {
	t.Parallel()

	require.Equal(t, VisitType(1), VisitLink)
	require.Equal(t, VisitType(7), VisitDownload)
}

func TestDownloadStateGapsAreIntentional(t *testing.T) {
	t.Parallel()

	require.Equal(t, DownloadState(6), DownloadBlockedParental)
	require.Equal(t, DownloadState(8), DownloadDirty)
}
