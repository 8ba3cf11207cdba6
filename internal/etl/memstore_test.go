package etl

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/justestif/go-sparkify-etl/internal/db"
)

// memStore is an in-memory Storage with the conflict policies of the star
// schema: artists, songs and users upsert, time inserts unless present and
// songplays append. A failed unit of work is rolled back.
type memStore struct {
	artists   map[string]db.Artist
	songs     map[string]db.Song
	users     map[int64]db.User
	times     map[int64]db.TimeBucket
	songplays []db.Songplay
	nextID    int64

	// failOn makes the named method return failErr.
	failOn  string
	failErr error

	txCount     int
	rolledBack  int
	matchCalls  int
	userBatches [][]db.User
}

func newMemStore() *memStore {
	return &memStore{
		artists: make(map[string]db.Artist),
		songs:   make(map[string]db.Song),
		users:   make(map[int64]db.User),
		times:   make(map[int64]db.TimeBucket),
	}
}

type memSnapshot struct {
	artists   map[string]db.Artist
	songs     map[string]db.Song
	users     map[int64]db.User
	times     map[int64]db.TimeBucket
	songplays []db.Songplay
	nextID    int64
}

func (m *memStore) InTx(ctx context.Context, fn func(Store) error) error {
	m.txCount++
	snap := memSnapshot{
		artists:   maps.Clone(m.artists),
		songs:     maps.Clone(m.songs),
		users:     maps.Clone(m.users),
		times:     maps.Clone(m.times),
		songplays: slices.Clone(m.songplays),
		nextID:    m.nextID,
	}
	if err := fn(m); err != nil {
		m.artists, m.songs, m.users, m.times = snap.artists, snap.songs, snap.users, snap.times
		m.songplays, m.nextID = snap.songplays, snap.nextID
		m.rolledBack++
		return err
	}
	return nil
}

func (m *memStore) fail(method string) error {
	if m.failOn == method {
		return m.failErr
	}
	return nil
}

func (m *memStore) UpsertArtist(ctx context.Context, artist *db.Artist) error {
	if err := m.fail("UpsertArtist"); err != nil {
		return err
	}
	m.artists[artist.ID] = *artist
	return nil
}

func (m *memStore) UpsertSong(ctx context.Context, song *db.Song) error {
	if err := m.fail("UpsertSong"); err != nil {
		return err
	}
	m.songs[song.ID] = *song
	return nil
}

func (m *memStore) InsertTimes(ctx context.Context, times []db.TimeBucket) (int64, error) {
	if err := m.fail("InsertTimes"); err != nil {
		return 0, err
	}
	var n int64
	for _, t := range times {
		k := t.StartTime.UnixMilli()
		if _, ok := m.times[k]; ok {
			continue
		}
		m.times[k] = t
		n++
	}
	return n, nil
}

func (m *memStore) UpsertUsers(ctx context.Context, users []db.User) error {
	if err := m.fail("UpsertUsers"); err != nil {
		return err
	}
	seen := make(map[int64]bool, len(users))
	for _, u := range users {
		if seen[u.ID] {
			// Postgres rejects a batch upsert touching the same row twice.
			return fmt.Errorf("%w: ON CONFLICT DO UPDATE command cannot affect row a second time", db.ErrConstraintViolation)
		}
		seen[u.ID] = true
	}
	m.userBatches = append(m.userBatches, slices.Clone(users))
	for _, u := range users {
		m.users[u.ID] = u
	}
	return nil
}

func (m *memStore) MatchSong(ctx context.Context, title, artist string, duration float64, limit int) ([]db.SongMatch, error) {
	m.matchCalls++
	if err := m.fail("MatchSong"); err != nil {
		return nil, err
	}
	var out []db.SongMatch
	for _, s := range m.songs {
		a, ok := m.artists[s.ArtistID]
		if !ok {
			continue
		}
		if strings.EqualFold(s.Title, title) && strings.EqualFold(a.Name, artist) && s.Duration == duration {
			out = append(out, db.SongMatch{SongID: s.ID, ArtistID: a.ID})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SongID > out[j].SongID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) InsertSongplay(ctx context.Context, sp *db.Songplay) error {
	if err := m.fail("InsertSongplay"); err != nil {
		return err
	}
	if sp.Level == "" {
		return fmt.Errorf("%w: null value in column \"level\"", db.ErrConstraintViolation)
	}
	m.nextID++
	sp.ID = m.nextID
	m.songplays = append(m.songplays, *sp)
	return nil
}
