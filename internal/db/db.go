// Package db provides PostgreSQL access to the Sparkify star schema.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")
)

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", Classify(err))
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", Classify(err))
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying connection pool for advanced operations.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Repos groups the table repositories bound to one transaction.
type Repos struct {
	Artists   *ArtistRepository
	Songs     *SongRepository
	Users     *UserRepository
	Times     *TimeRepository
	Songplays *SongplayRepository
}

func newRepos(q querier) Repos {
	return Repos{
		Artists:   &ArtistRepository{q: q},
		Songs:     &SongRepository{q: q},
		Users:     &UserRepository{q: q},
		Times:     &TimeRepository{q: q},
		Songplays: &SongplayRepository{q: q},
	}
}

// Artists returns an ArtistRepository.
func (db *DB) Artists() *ArtistRepository {
	return &ArtistRepository{q: db.pool}
}

// Songs returns a SongRepository.
func (db *DB) Songs() *SongRepository {
	return &SongRepository{q: db.pool}
}

// Users returns a UserRepository.
func (db *DB) Users() *UserRepository {
	return &UserRepository{q: db.pool}
}

// Times returns a TimeRepository.
func (db *DB) Times() *TimeRepository {
	return &TimeRepository{q: db.pool}
}

// Songplays returns a SongplayRepository.
func (db *DB) Songplays() *SongplayRepository {
	return &SongplayRepository{q: db.pool}
}

// InTx runs fn inside a single transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (db *DB) InTx(ctx context.Context, fn func(Repos) error) error {
	err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		return fn(newRepos(tx))
	})
	if err != nil {
		return Classify(err)
	}
	return nil
}
