package records

import (
	"math"
	"time"
)

// NormalizeSong canonicalizes the empty values of a song record: a zero year,
// an empty artist location and non-finite coordinates all become nil.
func NormalizeSong(rec SongRecord) SongRecord {
	if rec.Year != nil && *rec.Year == 0 {
		rec.Year = nil
	}
	if rec.ArtistLocation != nil && *rec.ArtistLocation == "" {
		rec.ArtistLocation = nil
	}
	rec.ArtistLatitude = finiteOrNil(rec.ArtistLatitude)
	rec.ArtistLongitude = finiteOrNil(rec.ArtistLongitude)
	return rec
}

func finiteOrNil(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

// ExpandTime converts the epoch-millisecond timestamp of a log record into a
// UTC time and derives its calendar fields.
func ExpandTime(rec LogRecord) PlayEvent {
	ts := time.UnixMilli(rec.TS).UTC()
	_, week := ts.ISOWeek()

	return PlayEvent{
		LogRecord: rec,
		StartTime: ts,
		Hour:      ts.Hour(),
		Day:       ts.Day(),
		Week:      week,
		Month:     int(ts.Month()),
		Year:      ts.Year(),
		Weekday:   (int(ts.Weekday()) + 6) % 7,
	}
}

// FilterNextSong returns the records whose page is NextSong, in input order.
func FilterNextSong(recs []LogRecord) []LogRecord {
	out := make([]LogRecord, 0, len(recs))
	for _, r := range recs {
		if r.Page == PageNextSong {
			out = append(out, r)
		}
	}
	return out
}

// ExpandAll applies ExpandTime to every record, preserving order.
func ExpandAll(recs []LogRecord) []PlayEvent {
	out := make([]PlayEvent, len(recs))
	for i, r := range recs {
		out[i] = ExpandTime(r)
	}
	return out
}
