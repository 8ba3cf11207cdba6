package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UserRepository handles user database operations.
type UserRepository struct {
	q querier
}

// Upsert creates a user or overwrites all attributes of an existing one.
func (r *UserRepository) Upsert(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (user_id, first_name, last_name, gender, level)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			gender = EXCLUDED.gender,
			level = EXCLUDED.level
	`
	_, err := r.q.Exec(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Gender,
		user.Level,
	)
	if err != nil {
		return fmt.Errorf("upserting user: %w", Classify(err))
	}
	return nil
}

// UpsertBatch inserts or updates multiple users in one statement. The batch
// must not contain the same user ID twice.
func (r *UserRepository) UpsertBatch(ctx context.Context, users []User) error {
	if len(users) == 0 {
		return nil
	}

	query := `
		INSERT INTO users (user_id, first_name, last_name, gender, level)
		SELECT * FROM unnest($1::bigint[], $2::text[], $3::text[], $4::text[], $5::text[])
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			gender = EXCLUDED.gender,
			level = EXCLUDED.level
	`

	ids := make([]int64, len(users))
	firstNames := make([]string, len(users))
	lastNames := make([]string, len(users))
	genders := make([]string, len(users))
	levels := make([]string, len(users))

	for i, u := range users {
		ids[i] = u.ID
		firstNames[i] = u.FirstName
		lastNames[i] = u.LastName
		genders[i] = u.Gender
		levels[i] = u.Level
	}

	_, err := r.q.Exec(ctx, query, ids, firstNames, lastNames, genders, levels)
	if err != nil {
		return fmt.Errorf("batch upserting users: %w", Classify(err))
	}
	return nil
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT user_id, first_name, last_name, gender, level
		FROM users
		WHERE user_id = $1
	`
	var user User
	err := r.q.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Gender,
		&user.Level,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", Classify(err))
	}
	return &user, nil
}
