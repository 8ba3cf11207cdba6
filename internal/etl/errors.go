package etl

import (
	"fmt"

	"github.com/justestif/go-sparkify-etl/internal/db"
	"github.com/justestif/go-sparkify-etl/internal/records"
)

// Error kinds that abort a file. None of them are retried.
var (
	ErrMalformedInput      = records.ErrMalformedInput
	ErrConstraintViolation = db.ErrConstraintViolation
	ErrConnectionFailure   = db.ErrConnectionFailure
)

// FileKind identifies the dataset a file belongs to.
type FileKind string

const (
	// KindSong is a song metadata file.
	KindSong FileKind = "song"
	// KindLog is an event log file.
	KindLog FileKind = "log"
)

// FileError reports the file whose processing failed.
type FileError struct {
	Path string
	Kind FileKind
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("processing %s file %s: %v", e.Kind, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
