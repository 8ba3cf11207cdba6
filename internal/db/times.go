package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// TimeRepository handles time dimension operations. Rows are insert-only:
// the first row written for a start_time wins.
type TimeRepository struct {
	q querier
}

// Insert adds a time bucket unless one already exists for its start time.
// It reports whether a row was written.
func (r *TimeRepository) Insert(ctx context.Context, t *TimeBucket) (bool, error) {
	query := `
		INSERT INTO time (start_time, hour, day, week, month, year, weekday)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (start_time) DO NOTHING
	`
	tag, err := r.q.Exec(ctx, query,
		t.StartTime,
		t.Hour,
		t.Day,
		t.Week,
		t.Month,
		t.Year,
		t.Weekday,
	)
	if err != nil {
		return false, fmt.Errorf("inserting time: %w", Classify(err))
	}
	return tag.RowsAffected() == 1, nil
}

// InsertBatch adds multiple time buckets in one statement, skipping start
// times that already exist. It returns the number of rows written.
func (r *TimeRepository) InsertBatch(ctx context.Context, times []TimeBucket) (int64, error) {
	if len(times) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO time (start_time, hour, day, week, month, year, weekday)
		SELECT * FROM unnest($1::timestamp[], $2::smallint[], $3::smallint[], $4::smallint[], $5::smallint[], $6::smallint[], $7::smallint[])
		ON CONFLICT (start_time) DO NOTHING
	`

	startTimes := make([]time.Time, len(times))
	hours := make([]int16, len(times))
	days := make([]int16, len(times))
	weeks := make([]int16, len(times))
	months := make([]int16, len(times))
	years := make([]int16, len(times))
	weekdays := make([]int16, len(times))

	for i, t := range times {
		startTimes[i] = t.StartTime
		hours[i] = int16(t.Hour)
		days[i] = int16(t.Day)
		weeks[i] = int16(t.Week)
		months[i] = int16(t.Month)
		years[i] = int16(t.Year)
		weekdays[i] = int16(t.Weekday)
	}

	tag, err := r.q.Exec(ctx, query, startTimes, hours, days, weeks, months, years, weekdays)
	if err != nil {
		return 0, fmt.Errorf("batch inserting times: %w", Classify(err))
	}
	return tag.RowsAffected(), nil
}

// Get retrieves the time bucket for a start time.
func (r *TimeRepository) Get(ctx context.Context, startTime time.Time) (*TimeBucket, error) {
	query := `
		SELECT start_time, hour, day, week, month, year, weekday
		FROM time
		WHERE start_time = $1
	`
	var t TimeBucket
	err := r.q.QueryRow(ctx, query, startTime).Scan(
		&t.StartTime,
		&t.Hour,
		&t.Day,
		&t.Week,
		&t.Month,
		&t.Year,
		&t.Weekday,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying time: %w", Classify(err))
	}
	return &t, nil
}
