// Package mozplaces reads a profile's places.sqlite: browsing history and
// the downloads recorded as history visits annotated with download
// metadata.
package mozplaces

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dfirkit/mozreader/internal/sqliteutil"
	"github.com/dfirkit/mozreader/mozsearch"
)

// VisitType mirrors nsINavHistoryService.idl's transition type constants.
// There is no value 0; the IDL's enumeration starts at link=1.
type VisitType int

const (
	VisitLink               VisitType = 1
	VisitTyped              VisitType = 2
	VisitBookmark           VisitType = 3
	VisitEmbed              VisitType = 4
	VisitRedirectPermanent  VisitType = 5
	VisitRedirectTemporary  VisitType = 6
	VisitDownload           VisitType = 7
	VisitFramedLink         VisitType = 8
	VisitReload             VisitType = 9
)

// DownloadState mirrors DownloadHistory.sys.mjs's state constants. The gaps
// at 5 and 7 are intentional: those values are not assigned in the source
// enum.
type DownloadState int

const (
	DownloadUnknown         DownloadState = 0
	DownloadFinished        DownloadState = 1
	DownloadFailed          DownloadState = 2
	DownloadCancelled       DownloadState = 3
	DownloadPaused          DownloadState = 4
	DownloadBlockedParental DownloadState = 6
	DownloadDirty           DownloadState = 8
)

// HistoryRecord is one row of moz_historyvisits joined to its moz_places
// entry.
type HistoryRecord struct {
	ID          int64
	PlaceID     int64
	URL         string
	Title       string
	VisitTime   time.Time
	Transition  VisitType
	FromVisitID int64

	owner *Database
}

// HasParent reports whether this visit's from_visit references another
// visit.
func (r HistoryRecord) HasParent() bool { return r.FromVisitID != 0 }

// Parent fetches the visit record referenced by FromVisitID, if any.
func (r HistoryRecord) Parent(ctx context.Context) (*HistoryRecord, error) {
	if !r.HasParent() {
		return nil, nil
	}
	return r.owner.recordByVisitID(ctx, r.FromVisitID)
}

// Children fetches every visit whose from_visit references this record.
func (r HistoryRecord) Children(ctx context.Context, fn func(HistoryRecord) error) error {
	_, err := r.owner.iterHistory(ctx, `"moz_historyvisits"."from_visit" = ?`, []any{r.ID}, nil, fn)
	return err
}

// Download is a history record for a download, with the annotation data
// Firefox attaches to it.
type Download struct {
	HistoryRecord
	DownloadedLocation string
	Deleted            bool
	EndTime            time.Time
	FileSize           int64
	HasFileSize        bool
	State              DownloadState
}

// Database wraps a read-only copy of places.sqlite.
type Database struct {
	db      *sql.DB
	closeFn func() error
}

// Open opens the places.sqlite database at path.
func Open(path string) (*Database, error) {
	conn, closeFn, err := sqliteutil.Open(path)
	if err != nil {
		return nil, err
	}
	return &Database{db: conn, closeFn: closeFn}, nil
}

// Close releases the database's sqlite handle.
func (d *Database) Close() error {
	return d.closeFn()
}

const historyQuery = `
	SELECT
		"moz_historyvisits"."id",
		"moz_places"."url",
		"moz_places"."title",
		"moz_places"."id" AS "place_id",
		"moz_historyvisits"."visit_date",
		"moz_historyvisits"."visit_type",
		"moz_historyvisits"."from_visit"
	FROM "moz_historyvisits"
	LEFT JOIN "moz_places" ON "moz_historyvisits"."place_id" = "moz_places"."id"
`

// IterHistory walks every history visit matching url (nil matches all),
// optionally windowed to [earliest, latest] (zero Time means unbounded).
// An Exact or Set url search is pushed into the SQL predicate; a Regex or
// Predicate search is applied after each row is scanned, since neither
// maps onto a portable SQL clause without registering a custom SQLite
// function.
// opts.RaiseOnNoResult reports ErrNotFound if nothing matched;
// opts.SkipCorrupt has no effect here, since every scanned column maps onto
// a plain Go value with no further decode step that can fail independently.
func (d *Database) IterHistory(ctx context.Context, url mozsearch.Search, earliest, latest time.Time, opts mozsearch.Options, fn func(HistoryRecord) error) error {
	var predicates []string
	var args []any

	switch u := url.(type) {
	case nil:
	case mozsearch.Exact:
		predicates = append(predicates, `"moz_places"."url" = ?`)
		args = append(args, string(u))
	case mozsearch.Set:
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(u)), ",")
		predicates = append(predicates, fmt.Sprintf(`"moz_places"."url" IN (%s)`, placeholders))
		for _, v := range u {
			args = append(args, v)
		}
	}

	if !earliest.IsZero() {
		predicates = append(predicates, `"moz_historyvisits"."visit_date" >= ?`)
		args = append(args, encodeUnixMicros(earliest))
	}
	if !latest.IsZero() {
		predicates = append(predicates, `"moz_historyvisits"."visit_date" <= ?`)
		args = append(args, encodeUnixMicros(latest))
	}

	var postFilter mozsearch.Search
	switch url.(type) {
	case mozsearch.Regex, mozsearch.Predicate:
		postFilter = url
	}

	matched, err := d.iterHistory(ctx, strings.Join(predicates, " AND "), args, postFilter, fn)
	if err != nil {
		return err
	}
	if !matched && opts.RaiseOnNoResult {
		return fmt.Errorf("%w: no history visits matched", ErrNotFound)
	}
	return nil
}

func (d *Database) iterHistory(ctx context.Context, where string, args []any, postFilter mozsearch.Search, fn func(HistoryRecord) error) (bool, error) {
	query := historyQuery
	if where != "" {
		query += " WHERE " + where
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	matched := false
	for rows.Next() {
		rec, err := d.scanHistoryRow(rows)
		if err != nil {
			return matched, err
		}
		if postFilter != nil && !mozsearch.Hit(postFilter, rec.URL) {
			continue
		}
		matched = true
		if err := fn(rec); err != nil {
			return matched, err
		}
	}
	return matched, rows.Err()
}

func (d *Database) scanHistoryRow(rows *sql.Rows) (HistoryRecord, error) {
	var rec HistoryRecord
	var url, title sql.NullString
	var placeID sql.NullInt64
	var visitDate int64
	var visitType int
	var fromVisit int64

	if err := rows.Scan(&rec.ID, &url, &title, &placeID, &visitDate, &visitType, &fromVisit); err != nil {
		return HistoryRecord{}, fmt.Errorf("scanning history row: %w", err)
	}

	rec.URL = url.String
	rec.Title = title.String
	rec.PlaceID = placeID.Int64
	rec.VisitTime = decodeUnixMicros(visitDate)
	rec.Transition = VisitType(visitType)
	rec.FromVisitID = fromVisit
	rec.owner = d
	return rec, nil
}

func (d *Database) recordByVisitID(ctx context.Context, visitID int64) (*HistoryRecord, error) {
	var rec *HistoryRecord
	_, err := d.iterHistory(ctx, `"moz_historyvisits"."id" = ?`, []any{visitID}, nil, func(r HistoryRecord) error {
		rec = &r
		return nil
	})
	return rec, err
}

const downloadAttributesQuery = `
	SELECT
		"moz_anno_attributes"."name",
		"moz_annos"."content"
	FROM "moz_annos"
	INNER JOIN "moz_anno_attributes"
	ON "moz_annos"."anno_attribute_id" = "moz_anno_attributes"."id"
	WHERE "moz_annos"."place_id" = ?;
`

const downloadDestinationFileURIKey = "downloads/destinationFileURI"
const downloadMetadataKey = "downloads/metaData"

type downloadMetadata struct {
	Deleted bool  `json:"deleted"`
	EndTime int64 `json:"endTime"`
	// FileSize is a pointer so an absent JSON field is distinguishable from
	// an explicit 0.
	FileSize *int64 `json:"fileSize"`
	State    int    `json:"state"`
}

// IterDownloads walks every history visit whose transition type is
// VisitDownload, joined to its download annotations. opts.SkipCorrupt skips
// downloads whose metadata annotation fails to parse instead of
// terminating iteration with the decode error; opts.RaiseOnNoResult
// reports ErrNotFound if nothing matched.
func (d *Database) IterDownloads(ctx context.Context, opts mozsearch.Options, fn func(Download) error) error {
	query := historyQuery + fmt.Sprintf(` WHERE "moz_historyvisits"."visit_type" = %d`, VisitDownload)
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("querying downloads: %w", err)
	}
	defer rows.Close()

	matched := false
	for rows.Next() {
		rec, err := d.scanHistoryRow(rows)
		if err != nil {
			return err
		}

		attrs, err := d.downloadAttributes(ctx, rec.PlaceID)
		if err != nil {
			return fmt.Errorf("reading download attributes for place %d: %w", rec.PlaceID, err)
		}

		var meta downloadMetadata
		if raw, ok := attrs[downloadMetadataKey]; ok && raw != "" {
			if err := json.Unmarshal([]byte(raw), &meta); err != nil {
				if opts.SkipCorrupt {
					continue
				}
				return fmt.Errorf("parsing download metadata for place %d: %w", rec.PlaceID, err)
			}
		}

		dl := Download{
			HistoryRecord:      rec,
			DownloadedLocation: attrs[downloadDestinationFileURIKey],
			Deleted:            meta.Deleted,
			EndTime:            decodeUnixMillis(meta.EndTime),
			State:              DownloadState(meta.State),
		}
		if meta.FileSize != nil {
			dl.FileSize = *meta.FileSize
			dl.HasFileSize = true
		}

		matched = true
		if err := fn(dl); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if !matched && opts.RaiseOnNoResult {
		return fmt.Errorf("%w: no downloads matched", ErrNotFound)
	}
	return nil
}

func (d *Database) downloadAttributes(ctx context.Context, placeID int64) (map[string]string, error) {
	rows, err := d.db.QueryContext(ctx, downloadAttributesQuery, placeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, content sql.NullString
		if err := rows.Scan(&name, &content); err != nil {
			return nil, err
		}
		out[name.String] = content.String
	}
	return out, rows.Err()
}

var unixEpoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

func decodeUnixMicros(us int64) time.Time {
	return unixEpoch.Add(time.Duration(us) * time.Microsecond)
}

func encodeUnixMicros(t time.Time) int64 {
	return t.Sub(unixEpoch).Microseconds()
}

func decodeUnixMillis(ms int64) time.Time {
	return unixEpoch.Add(time.Duration(ms) * time.Millisecond)
}
