// Package records defines the raw song and log records read from the input
// trees and the pure functions that clean and reshape them before loading.
package records

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ErrMalformedInput is returned when an input file cannot be decoded.
var ErrMalformedInput = errors.New("malformed input")

// PageNextSong is the log page value that marks an actual song playback.
const PageNextSong = "NextSong"

// SongRecord is one entry of the song metadata dataset.
type SongRecord struct {
	SongID          string   `json:"song_id"`
	Title           string   `json:"title"`
	ArtistID        string   `json:"artist_id"`
	ArtistName      string   `json:"artist_name"`
	ArtistLocation  *string  `json:"artist_location"`  // nullable
	ArtistLatitude  *float64 `json:"artist_latitude"`  // nullable
	ArtistLongitude *float64 `json:"artist_longitude"` // nullable
	Year            *int     `json:"year"`             // nullable, 0 means unknown
	Duration        float64  `json:"duration"`
	NumSongs        int      `json:"num_songs"`
}

// LogRecord is one line of the application event log.
type LogRecord struct {
	Artist        *string  `json:"artist"` // nullable on non-playback events
	Auth          string   `json:"auth"`
	FirstName     string   `json:"firstName"`
	Gender        string   `json:"gender"`
	ItemInSession int      `json:"itemInSession"`
	LastName      string   `json:"lastName"`
	Length        *float64 `json:"length"` // nullable on non-playback events
	Level         string   `json:"level"`
	Location      string   `json:"location"`
	Method        string   `json:"method"`
	Page          string   `json:"page"`
	SessionID     int64    `json:"sessionId"`
	Song          *string  `json:"song"` // nullable on non-playback events
	Status        int      `json:"status"`
	TS            int64    `json:"ts"` // epoch milliseconds
	UserAgent     string   `json:"userAgent"`
	UserID        UserID   `json:"userId"`
}

// UserID accepts both numeric and string encodings of a user id. Logged-out
// events carry an empty string, which decodes to zero.
type UserID int64

// UnmarshalJSON implements json.Unmarshaler.
func (u *UserID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*u = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
		if s == "" {
			*u = 0
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid userId %s: %w", data, err)
	}
	*u = UserID(n)
	return nil
}

var _ json.Unmarshaler = (*UserID)(nil)

// PlayEvent is a NextSong log record with its timestamp decomposed into the
// calendar fields stored in the time dimension.
type PlayEvent struct {
	LogRecord
	StartTime time.Time
	Hour      int
	Day       int
	Week      int // ISO 8601 week number
	Month     int
	Year      int
	Weekday   int // Monday = 0
}
