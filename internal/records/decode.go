package records

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
)

// maxLineSize bounds a single log line.
const maxLineSize = 1 << 20

// DecodeSongFile reads the song record held in a song file. Song files carry
// exactly one JSON object; anything after the first object is ignored.
func DecodeSongFile(r io.Reader) (SongRecord, error) {
	var rec SongRecord
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return SongRecord{}, fmt.Errorf("%w: empty song file", ErrMalformedInput)
		}
		return SongRecord{}, fmt.Errorf("%w: decoding song: %w", ErrMalformedInput, err)
	}
	return rec, nil
}

// DecodeLogFile reads a newline-delimited JSON log file. Records are returned
// in file order and blank lines are skipped.
func DecodeLogFile(r io.Reader) ([]LogRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var out []LogRecord
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		var rec LogRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedInput, line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading log: %w", ErrMalformedInput, err)
	}
	return out, nil
}

// ReadSongFile opens path and decodes its song record.
func ReadSongFile(path string) (SongRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return SongRecord{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rec, err := DecodeSongFile(f)
	if err != nil {
		return SongRecord{}, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// ReadLogFile opens path and decodes its log records.
func ReadLogFile(path string) ([]LogRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	recs, err := DecodeLogFile(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}
