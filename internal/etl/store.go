package etl

import (
	"context"

	"github.com/justestif/go-sparkify-etl/internal/db"
)

// Store is the set of writes and lookups the loaders need from the star
// schema.
type Store interface {
	UpsertArtist(ctx context.Context, artist *db.Artist) error
	UpsertSong(ctx context.Context, song *db.Song) error
	InsertTimes(ctx context.Context, times []db.TimeBucket) (int64, error)
	UpsertUsers(ctx context.Context, users []db.User) error
	MatchSong(ctx context.Context, title, artist string, duration float64, limit int) ([]db.SongMatch, error)
	InsertSongplay(ctx context.Context, sp *db.Songplay) error
}

// Storage opens units of work against a Store. Everything fn writes is
// committed together when it returns nil and discarded otherwise.
type Storage interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// PostgresStorage adapts db.DB to Storage.
type PostgresStorage struct {
	db *db.DB
}

// NewPostgresStorage creates a Storage backed by database.
func NewPostgresStorage(database *db.DB) *PostgresStorage {
	return &PostgresStorage{db: database}
}

// InTx implements Storage with one database transaction per call.
func (s *PostgresStorage) InTx(ctx context.Context, fn func(Store) error) error {
	return s.db.InTx(ctx, func(r db.Repos) error {
		return fn(repoStore{r: r})
	})
}

// repoStore implements Store over a set of repositories.
type repoStore struct {
	r db.Repos
}

func (s repoStore) UpsertArtist(ctx context.Context, artist *db.Artist) error {
	return s.r.Artists.Upsert(ctx, artist)
}

func (s repoStore) UpsertSong(ctx context.Context, song *db.Song) error {
	return s.r.Songs.Upsert(ctx, song)
}

func (s repoStore) InsertTimes(ctx context.Context, times []db.TimeBucket) (int64, error) {
	return s.r.Times.InsertBatch(ctx, times)
}

func (s repoStore) UpsertUsers(ctx context.Context, users []db.User) error {
	return s.r.Users.UpsertBatch(ctx, users)
}

func (s repoStore) MatchSong(ctx context.Context, title, artist string, duration float64, limit int) ([]db.SongMatch, error) {
	return s.r.Songs.Match(ctx, title, artist, duration, limit)
}

func (s repoStore) InsertSongplay(ctx context.Context, sp *db.Songplay) error {
	return s.r.Songplays.Insert(ctx, sp)
}
