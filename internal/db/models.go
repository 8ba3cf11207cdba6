package db

import (
	"time"
)

// Artist is a row of the artists dimension.
type Artist struct {
	ID        string
	Name      string
	Location  *string  // nullable
	Latitude  *float64 // nullable
	Longitude *float64 // nullable
}

// Song is a row of the songs dimension.
type Song struct {
	ID       string
	Title    string
	ArtistID string
	Year     *int // nullable
	Duration float64
}

// User is a row of the users dimension. Level is the only attribute expected
// to change between loads.
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Gender    string
	Level     string
}

// TimeBucket is a row of the time dimension, derived from StartTime.
type TimeBucket struct {
	StartTime time.Time
	Hour      int
	Day       int
	Week      int
	Month     int
	Year      int
	Weekday   int
}

// Songplay is a row of the songplays fact table.
type Songplay struct {
	ID        int64 // assigned on insert
	StartTime time.Time
	UserID    int64
	Level     string
	SongID    *string // nullable
	ArtistID  *string // nullable
	SessionID int64
	Location  string
	UserAgent string
}

// SongMatch is a candidate catalog link for a play event.
type SongMatch struct {
	SongID   string
	ArtistID string
}
