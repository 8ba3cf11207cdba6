package db

import (
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error kinds reported by Classify.
var (
	// ErrConstraintViolation is returned when a write violates a NOT NULL,
	// foreign key, unique or check constraint.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrConnectionFailure is returned when the database cannot be reached
	// or drops the connection.
	ErrConnectionFailure = errors.New("connection failure")
)

// Classify wraps err with ErrConstraintViolation or ErrConnectionFailure when
// it recognizes the failure, and returns it unchanged otherwise.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConstraintViolation) || errors.Is(err, ErrConnectionFailure) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23":
			return fmt.Errorf("%w: %w", ErrConstraintViolation, err)
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08",
			pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03":
			return fmt.Errorf("%w: %w", ErrConnectionFailure, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", ErrConnectionFailure, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrConnectionFailure, err)
	}
	return err
}
