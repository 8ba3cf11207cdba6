package etl

import (
	"context"
	"fmt"

	"github.com/justestif/go-sparkify-etl/internal/db"
	"github.com/justestif/go-sparkify-etl/internal/records"
)

// matchProbe is how many candidates are fetched when resolving a play. Two
// is enough to tell a unique match from an ambiguous one.
const matchProbe = 2

// Loader writes normalized records into the dimension and fact tables.
type Loader struct {
	store      Store
	userPolicy Policy
}

// NewLoader creates a Loader writing to store. userPolicy decides which
// occurrence of a repeated user within one batch is written.
func NewLoader(store Store, userPolicy Policy) *Loader {
	if userPolicy == "" {
		userPolicy = KeepFirst
	}
	return &Loader{store: store, userPolicy: userPolicy}
}

// SongplayStats summarizes a LoadSongplays call.
type SongplayStats struct {
	Inserted int
	Matched  int // rows bound to a song and artist
}

// LoadArtists upserts each artist, overwriting existing attributes.
func (l *Loader) LoadArtists(ctx context.Context, batch []db.Artist) error {
	for i := range batch {
		if err := l.store.UpsertArtist(ctx, &batch[i]); err != nil {
			return fmt.Errorf("loading artist %s: %w", batch[i].ID, err)
		}
	}
	return nil
}

// LoadSongs upserts each song, overwriting existing attributes.
func (l *Loader) LoadSongs(ctx context.Context, batch []db.Song) error {
	for i := range batch {
		if err := l.store.UpsertSong(ctx, &batch[i]); err != nil {
			return fmt.Errorf("loading song %s: %w", batch[i].ID, err)
		}
	}
	return nil
}

// LoadTimes writes the time bucket of every event. Events sharing a start
// time collapse to the first one, and buckets already stored are kept. It
// returns the number of new rows.
func (l *Loader) LoadTimes(ctx context.Context, events []records.PlayEvent) (int64, error) {
	buckets := make([]db.TimeBucket, len(events))
	for i, ev := range events {
		buckets[i] = TimeBucketFromEvent(ev)
	}
	buckets = Dedupe(buckets, func(t db.TimeBucket) int64 { return t.StartTime.UnixMilli() }, KeepFirst)

	n, err := l.store.InsertTimes(ctx, buckets)
	if err != nil {
		return 0, fmt.Errorf("loading times: %w", err)
	}
	return n, nil
}

// LoadUsers upserts the user of every event after collapsing repeated user
// IDs with the loader's policy. It returns the number of distinct users.
func (l *Loader) LoadUsers(ctx context.Context, events []records.PlayEvent) (int, error) {
	users := make([]db.User, len(events))
	for i, ev := range events {
		users[i] = UserFromEvent(ev)
	}
	users = Dedupe(users, func(u db.User) int64 { return u.ID }, l.userPolicy)

	if err := l.store.UpsertUsers(ctx, users); err != nil {
		return 0, fmt.Errorf("loading users: %w", err)
	}
	return len(users), nil
}

// LoadSongplays inserts one songplay per event in order, each bound to its
// catalog match when exactly one exists.
func (l *Loader) LoadSongplays(ctx context.Context, events []records.PlayEvent) (SongplayStats, error) {
	var stats SongplayStats
	for _, ev := range events {
		match, err := l.Resolve(ctx, ev)
		if err != nil {
			return stats, err
		}

		sp := SongplayFromEvent(ev, match)
		if err := l.store.InsertSongplay(ctx, &sp); err != nil {
			return stats, fmt.Errorf("loading songplay at %s: %w", ev.StartTime.Format("2006-01-02T15:04:05.000"), err)
		}
		stats.Inserted++
		if match != nil {
			stats.Matched++
		}
	}
	return stats, nil
}

// Resolve finds the song and artist an event played. It returns nil when the
// event names no song, when nothing matches, or when several songs match.
func (l *Loader) Resolve(ctx context.Context, ev records.PlayEvent) (*db.SongMatch, error) {
	if ev.Song == nil || ev.Artist == nil || ev.Length == nil {
		return nil, nil
	}

	matches, err := l.store.MatchSong(ctx, *ev.Song, *ev.Artist, *ev.Length, matchProbe)
	if err != nil {
		return nil, fmt.Errorf("resolving song %q by %q: %w", *ev.Song, *ev.Artist, err)
	}
	if len(matches) != 1 {
		return nil, nil
	}
	return &matches[0], nil
}

// ArtistFromSong extracts the artist dimension row of a song record.
func ArtistFromSong(rec records.SongRecord) db.Artist {
	return db.Artist{
		ID:        rec.ArtistID,
		Name:      rec.ArtistName,
		Location:  rec.ArtistLocation,
		Latitude:  rec.ArtistLatitude,
		Longitude: rec.ArtistLongitude,
	}
}

// SongFromRecord extracts the song dimension row of a song record.
func SongFromRecord(rec records.SongRecord) db.Song {
	return db.Song{
		ID:       rec.SongID,
		Title:    rec.Title,
		ArtistID: rec.ArtistID,
		Year:     rec.Year,
		Duration: rec.Duration,
	}
}

// TimeBucketFromEvent extracts the time dimension row of an event.
func TimeBucketFromEvent(ev records.PlayEvent) db.TimeBucket {
	return db.TimeBucket{
		StartTime: ev.StartTime,
		Hour:      ev.Hour,
		Day:       ev.Day,
		Week:      ev.Week,
		Month:     ev.Month,
		Year:      ev.Year,
		Weekday:   ev.Weekday,
	}
}

// UserFromEvent extracts the user dimension row of an event.
func UserFromEvent(ev records.PlayEvent) db.User {
	return db.User{
		ID:        int64(ev.UserID),
		FirstName: ev.FirstName,
		LastName:  ev.LastName,
		Gender:    ev.Gender,
		Level:     ev.Level,
	}
}

// SongplayFromEvent builds the fact row of an event. A nil match leaves both
// song and artist unset.
func SongplayFromEvent(ev records.PlayEvent, match *db.SongMatch) db.Songplay {
	sp := db.Songplay{
		StartTime: ev.StartTime,
		UserID:    int64(ev.UserID),
		Level:     ev.Level,
		SessionID: ev.SessionID,
		Location:  ev.Location,
		UserAgent: ev.UserAgent,
	}
	if match != nil {
		songID, artistID := match.SongID, match.ArtistID
		sp.SongID = &songID
		sp.ArtistID = &artistID
	}
	return sp
}
