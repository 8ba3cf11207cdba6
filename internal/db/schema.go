package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const songplaysSchema = `
CREATE TABLE songplays (
    songplay_id SERIAL PRIMARY KEY,
    start_time TIMESTAMP NOT NULL,
    user_id BIGINT NOT NULL,
    level TEXT NOT NULL,
    song_id TEXT DEFAULT NULL,
    artist_id TEXT DEFAULT NULL,
    session_id INT NOT NULL,
    location TEXT NOT NULL,
    user_agent TEXT NOT NULL
);
`

const usersSchema = `
CREATE TABLE users (
    user_id BIGINT PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    gender TEXT NOT NULL,
    level TEXT NOT NULL
);
`

const songsSchema = `
CREATE TABLE songs (
    song_id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    artist_id TEXT NOT NULL,
    year SMALLINT DEFAULT NULL,
    duration NUMERIC DEFAULT NULL
);
`

const artistsSchema = `
CREATE TABLE artists (
    artist_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    location TEXT DEFAULT NULL,
    latitude NUMERIC DEFAULT NULL,
    longitude NUMERIC DEFAULT NULL
);
`

const timeSchema = `
CREATE TABLE time (
    start_time TIMESTAMP PRIMARY KEY,
    hour SMALLINT NOT NULL,
    day SMALLINT NOT NULL,
    week SMALLINT NOT NULL,
    month SMALLINT NOT NULL,
    year SMALLINT NOT NULL,
    weekday SMALLINT NULL
);
`

// Tables lists the star schema tables in creation order.
var Tables = []string{"songplays", "users", "songs", "artists", "time"}

var tableSchemas = map[string]string{
	"songplays": songplaysSchema,
	"users":     usersSchema,
	"songs":     songsSchema,
	"artists":   artistsSchema,
	"time":      timeSchema,
}

// Reset drops and recreates every table of the star schema. All loaded data
// is lost.
func (db *DB) Reset(ctx context.Context) error {
	for _, table := range Tables {
		drop := "DROP TABLE IF EXISTS " + pgx.Identifier{table}.Sanitize()
		if _, err := db.pool.Exec(ctx, drop); err != nil {
			return fmt.Errorf("dropping table %s: %w", table, Classify(err))
		}
		if _, err := db.pool.Exec(ctx, tableSchemas[table]); err != nil {
			return fmt.Errorf("creating table %s: %w", table, Classify(err))
		}
	}
	return nil
}

// CreateDatabase connects with adminURL and drops and recreates the database
// named by targetURL. It returns the database name.
func CreateDatabase(ctx context.Context, adminURL, targetURL string) (string, error) {
	target, err := pgx.ParseConfig(targetURL)
	if err != nil {
		return "", fmt.Errorf("parsing target database URL: %w", err)
	}
	name := target.Database
	if name == "" {
		return "", fmt.Errorf("target database URL has no database name")
	}

	conn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return "", fmt.Errorf("connecting to admin database: %w", Classify(err))
	}
	defer conn.Close(ctx)

	ident := pgx.Identifier{name}.Sanitize()
	if _, err := conn.Exec(ctx, "DROP DATABASE IF EXISTS "+ident); err != nil {
		return "", fmt.Errorf("dropping database %s: %w", name, Classify(err))
	}
	create := "CREATE DATABASE " + ident + " WITH ENCODING 'utf8' TEMPLATE template0"
	if _, err := conn.Exec(ctx, create); err != nil {
		return "", fmt.Errorf("creating database %s: %w", name, Classify(err))
	}
	return name, nil
}
