package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SongRepository handles song database operations.
type SongRepository struct {
	q querier
}

// Upsert creates a song or overwrites all attributes of an existing one.
func (r *SongRepository) Upsert(ctx context.Context, song *Song) error {
	query := `
		INSERT INTO songs (song_id, title, artist_id, year, duration)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (song_id) DO UPDATE SET
			title = EXCLUDED.title,
			artist_id = EXCLUDED.artist_id,
			year = EXCLUDED.year,
			duration = EXCLUDED.duration
	`
	_, err := r.q.Exec(ctx, query,
		song.ID,
		song.Title,
		song.ArtistID,
		song.Year,
		song.Duration,
	)
	if err != nil {
		return fmt.Errorf("upserting song: %w", Classify(err))
	}
	return nil
}

// Get retrieves a song by ID.
func (r *SongRepository) Get(ctx context.Context, id string) (*Song, error) {
	query := `
		SELECT song_id, title, artist_id, year, duration
		FROM songs
		WHERE song_id = $1
	`
	var song Song
	err := r.q.QueryRow(ctx, query, id).Scan(
		&song.ID,
		&song.Title,
		&song.ArtistID,
		&song.Year,
		&song.Duration,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying song: %w", Classify(err))
	}
	return &song, nil
}

// Match returns up to limit (song, artist) pairs whose title and artist name
// equal the given ones case-insensitively and whose duration equals duration
// exactly, ordered by song_id descending.
func (r *SongRepository) Match(ctx context.Context, title, artist string, duration float64, limit int) ([]SongMatch, error) {
	query := `
		SELECT songs.song_id, artists.artist_id
		FROM songs
		JOIN artists ON artists.artist_id = songs.artist_id
		WHERE LOWER(songs.title) = LOWER($1)
		AND LOWER(artists.name) = LOWER($2)
		AND songs.duration = $3
		ORDER BY songs.song_id DESC
		LIMIT $4
	`
	rows, err := r.q.Query(ctx, query, title, artist, duration, limit)
	if err != nil {
		return nil, fmt.Errorf("querying song matches: %w", Classify(err))
	}
	defer rows.Close()

	var matches []SongMatch
	for rows.Next() {
		var m SongMatch
		if err := rows.Scan(&m.SongID, &m.ArtistID); err != nil {
			return nil, fmt.Errorf("scanning song match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating song matches: %w", Classify(err))
	}
	return matches, nil
}
