package db

import (
	"context"
	"fmt"
)

// SongplayRepository handles songplay fact operations. Songplays have no
// natural key and are never updated.
type SongplayRepository struct {
	q querier
}

// Insert appends a songplay and sets its generated ID.
func (r *SongplayRepository) Insert(ctx context.Context, sp *Songplay) error {
	query := `
		INSERT INTO songplays (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING songplay_id
	`
	err := r.q.QueryRow(ctx, query,
		sp.StartTime,
		sp.UserID,
		sp.Level,
		sp.SongID,
		sp.ArtistID,
		sp.SessionID,
		sp.Location,
		sp.UserAgent,
	).Scan(&sp.ID)
	if err != nil {
		return fmt.Errorf("inserting songplay: %w", Classify(err))
	}
	return nil
}

// ListForUser retrieves a user's songplays in insertion order.
func (r *SongplayRepository) ListForUser(ctx context.Context, userID int64) ([]Songplay, error) {
	query := `
		SELECT songplay_id, start_time, user_id, level, song_id, artist_id, session_id, location, user_agent
		FROM songplays
		WHERE user_id = $1
		ORDER BY songplay_id
	`
	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying songplays: %w", Classify(err))
	}
	defer rows.Close()

	var plays []Songplay
	for rows.Next() {
		var sp Songplay
		if err := rows.Scan(
			&sp.ID,
			&sp.StartTime,
			&sp.UserID,
			&sp.Level,
			&sp.SongID,
			&sp.ArtistID,
			&sp.SessionID,
			&sp.Location,
			&sp.UserAgent,
		); err != nil {
			return nil, fmt.Errorf("scanning songplay: %w", err)
		}
		plays = append(plays, sp)
	}
	return plays, rows.Err()
}

// Count returns the number of songplay rows.
func (r *SongplayRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM songplays`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting songplays: %w", Classify(err))
	}
	return n, nil
}
