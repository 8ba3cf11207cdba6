// Package etl loads the Sparkify song and log datasets into the star schema.
//
// Song files are processed first, each one writing an artist and a song.
// Log files follow, each one writing the time buckets, users and songplays of
// its NextSong events. Every file is loaded in its own unit of work, so a
// failure leaves earlier files committed and the failing file untouched. The
// run stops at the first failure; re-running is safe for the dimensions but
// appends duplicate songplays for files that were already loaded.
package etl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/justestif/go-sparkify-etl/internal/db"
	"github.com/justestif/go-sparkify-etl/internal/files"
	"github.com/justestif/go-sparkify-etl/internal/records"
	"github.com/justestif/go-sparkify-etl/internal/telemetry"
)

// Pipeline runs a full load over a song-data root and a log-data root.
type Pipeline struct {
	storage    Storage
	songDir    string
	logDir     string
	userPolicy Policy
	logger     *slog.Logger
	tel        *telemetry.Telemetry
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithUserPolicy sets which occurrence of a user repeated within one log
// file is written. The default is KeepFirst.
func WithUserPolicy(p Policy) Option {
	return func(pl *Pipeline) {
		pl.userPolicy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(pl *Pipeline) {
		pl.logger = l
	}
}

// WithTelemetry sets the tracer and metric instruments.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(pl *Pipeline) {
		pl.tel = t
	}
}

// New creates a pipeline that reads songDir and logDir and writes to storage.
func New(storage Storage, songDir, logDir string, opts ...Option) *Pipeline {
	p := &Pipeline{
		storage:    storage,
		songDir:    songDir,
		logDir:     logDir,
		userPolicy: KeepFirst,
		logger:     slog.Default(),
		tel:        telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result contains the outcome of a run. Counts cover committed files only.
type Result struct {
	RunID            string
	SongFiles        int
	LogFiles         int
	Artists          int64
	Songs            int64
	Times            int64 // new time rows; existing start times are not counted
	Users            int64
	Songplays        int64
	MatchedSongplays int64
	Elapsed          time.Duration
}

// Run processes every song file and then every log file, stopping at the
// first file that fails. The partial Result is returned alongside the error.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", res.RunID)

	ctx, span := p.tel.Start(ctx, "etl.Run", attribute.String("run_id", res.RunID))
	defer span.End()

	err := p.run(ctx, logger, res)
	res.Elapsed = time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("load failed", "error", err, "song_files", res.SongFiles, "log_files", res.LogFiles)
		return res, err
	}

	logger.Info("load complete",
		"song_files", res.SongFiles,
		"log_files", res.LogFiles,
		"artists", res.Artists,
		"songs", res.Songs,
		"times", res.Times,
		"users", res.Users,
		"songplays", res.Songplays,
		"matched_songplays", res.MatchedSongplays,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, res *Result) error {
	songPaths, err := files.FindJSON(p.songDir)
	if err != nil {
		return fmt.Errorf("finding song files: %w", err)
	}
	logger.Info("found song files", "count", len(songPaths), "root", p.songDir)

	for _, path := range songPaths {
		if err := p.ProcessSongFile(ctx, path, res); err != nil {
			return err
		}
		logger.Debug("loaded song file", "path", path)
	}

	logPaths, err := files.FindJSON(p.logDir)
	if err != nil {
		return fmt.Errorf("finding log files: %w", err)
	}
	logger.Info("found log files", "count", len(logPaths), "root", p.logDir)

	for _, path := range logPaths {
		if err := p.ProcessLogFile(ctx, path, res); err != nil {
			return err
		}
		logger.Debug("loaded log file", "path", path)
	}
	return nil
}

// ProcessSongFile loads the artist and then the song of one song file.
func (p *Pipeline) ProcessSongFile(ctx context.Context, path string, res *Result) (err error) {
	ctx, span := p.tel.Start(ctx, "etl.ProcessSongFile", attribute.String("path", path))
	defer func() {
		p.finishFile(ctx, span, KindSong, err)
	}()

	rec, err := records.ReadSongFile(path)
	if err != nil {
		return &FileError{Path: path, Kind: KindSong, Err: err}
	}
	rec = records.NormalizeSong(rec)

	err = p.storage.InTx(ctx, func(s Store) error {
		l := NewLoader(s, p.userPolicy)
		// artist first: songs reference artist_id
		if err := l.LoadArtists(ctx, []db.Artist{ArtistFromSong(rec)}); err != nil {
			return err
		}
		return l.LoadSongs(ctx, []db.Song{SongFromRecord(rec)})
	})
	if err != nil {
		return &FileError{Path: path, Kind: KindSong, Err: err}
	}

	res.SongFiles++
	res.Artists++
	res.Songs++
	p.tel.AddRows(ctx, "artists", 1)
	p.tel.AddRows(ctx, "songs", 1)
	return nil
}

// ProcessLogFile loads the time buckets, users and songplays of the NextSong
// events in one log file, in that order.
func (p *Pipeline) ProcessLogFile(ctx context.Context, path string, res *Result) (err error) {
	ctx, span := p.tel.Start(ctx, "etl.ProcessLogFile", attribute.String("path", path))
	defer func() {
		p.finishFile(ctx, span, KindLog, err)
	}()

	recs, err := records.ReadLogFile(path)
	if err != nil {
		return &FileError{Path: path, Kind: KindLog, Err: err}
	}
	events := records.ExpandAll(records.FilterNextSong(recs))
	span.SetAttributes(
		attribute.Int("records", len(recs)),
		attribute.Int("events", len(events)),
	)

	if len(events) == 0 {
		res.LogFiles++
		return nil
	}

	var (
		times int64
		users int
		plays SongplayStats
	)
	err = p.storage.InTx(ctx, func(s Store) error {
		l := NewLoader(s, p.userPolicy)
		var err error
		if times, err = l.LoadTimes(ctx, events); err != nil {
			return err
		}
		if users, err = l.LoadUsers(ctx, events); err != nil {
			return err
		}
		plays, err = l.LoadSongplays(ctx, events)
		return err
	})
	if err != nil {
		return &FileError{Path: path, Kind: KindLog, Err: err}
	}

	res.LogFiles++
	res.Times += times
	res.Users += int64(users)
	res.Songplays += int64(plays.Inserted)
	res.MatchedSongplays += int64(plays.Matched)
	p.tel.AddRows(ctx, "time", times)
	p.tel.AddRows(ctx, "users", int64(users))
	p.tel.AddRows(ctx, "songplays", int64(plays.Inserted))
	return nil
}

func (p *Pipeline) finishFile(ctx context.Context, span trace.Span, kind FileKind, err error) {
	p.tel.AddFile(ctx, string(kind), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
