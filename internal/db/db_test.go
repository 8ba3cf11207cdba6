package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

// testDB connects to the database named by SPARKIFY_TEST_DSN and resets the
// star schema. Tests are skipped when it is unset. The database is wiped.
func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("SPARKIFY_TEST_DSN")
	if dsn == "" {
		t.Skip("SPARKIFY_TEST_DSN not set")
	}

	ctx := context.Background()
	d, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(d.Close)

	if err := d.Reset(ctx); err != nil {
		t.Fatalf("resetting schema: %v", err)
	}
	return d
}

func ptr[T any](v T) *T { return &v }

func seed(t *testing.T, d *DB) {
	t.Helper()
	ctx := context.Background()
	artists := []Artist{
		{ID: "A1", Name: "Bar"},
		{ID: "A2", Name: "Twin"},
	}
	for i := range artists {
		if err := d.Artists().Upsert(ctx, &artists[i]); err != nil {
			t.Fatalf("upserting artist: %v", err)
		}
	}
	songs := []Song{
		{ID: "S1", Title: "Foo", ArtistID: "A1", Duration: 123.4},
		{ID: "S2", Title: "Same", ArtistID: "A2", Duration: 200},
		{ID: "S3", Title: "Same", ArtistID: "A2", Duration: 200},
	}
	for i := range songs {
		if err := d.Songs().Upsert(ctx, &songs[i]); err != nil {
			t.Fatalf("upserting song: %v", err)
		}
	}
}

func TestArtistRepository_Upsert(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	first := Artist{ID: "A1", Name: "Old", Location: ptr("Paris"), Latitude: ptr(48.85), Longitude: ptr(2.35)}
	if err := d.Artists().Upsert(ctx, &first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	second := Artist{ID: "A1", Name: "New"}
	if err := d.Artists().Upsert(ctx, &second); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := d.Artists().Get(ctx, "A1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "New" || got.Location != nil || got.Latitude != nil || got.Longitude != nil {
		t.Errorf("Get() = %+v, want second load attributes", got)
	}

	if _, err := d.Artists().Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSongRepository_UpsertAndGet(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	song := Song{ID: "S1", Title: "Foo", ArtistID: "A1", Duration: 123.4}
	if err := d.Songs().Upsert(ctx, &song); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	song.Year = ptr(2001)
	if err := d.Songs().Upsert(ctx, &song); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := d.Songs().Get(ctx, "S1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Year == nil || *got.Year != 2001 {
		t.Errorf("Year = %v, want 2001", got.Year)
	}
	if got.Duration != 123.4 {
		t.Errorf("Duration = %v, want 123.4", got.Duration)
	}
}

func TestSongRepository_Match(t *testing.T) {
	d := testDB(t)
	seed(t, d)
	ctx := context.Background()

	tests := []struct {
		name     string
		title    string
		artist   string
		duration float64
		want     []SongMatch
	}{
		{name: "exact", title: "Foo", artist: "Bar", duration: 123.4, want: []SongMatch{{SongID: "S1", ArtistID: "A1"}}},
		{name: "case insensitive", title: "fOO", artist: "BAR", duration: 123.4, want: []SongMatch{{SongID: "S1", ArtistID: "A1"}}},
		{name: "duration mismatch", title: "Foo", artist: "Bar", duration: 999.9, want: nil},
		{name: "ambiguous", title: "Same", artist: "Twin", duration: 200, want: []SongMatch{{SongID: "S3", ArtistID: "A2"}, {SongID: "S2", ArtistID: "A2"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Songs().Match(ctx, tt.title, tt.artist, tt.duration, 2)
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Match() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Match()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestUserRepository_UpsertBatch(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	users := []User{
		{ID: 7, FirstName: "Lily", LastName: "Koch", Gender: "F", Level: "free"},
		{ID: 9, FirstName: "Wyatt", LastName: "Scott", Gender: "M", Level: "free"},
	}
	if err := d.Users().UpsertBatch(ctx, users); err != nil {
		t.Fatalf("UpsertBatch() error = %v", err)
	}
	if err := d.Users().Upsert(ctx, &User{ID: 7, FirstName: "Lily", LastName: "Koch", Gender: "F", Level: "paid"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := d.Users().Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Level != "paid" {
		t.Errorf("Level = %q, want paid", got.Level)
	}

	if err := d.Users().UpsertBatch(ctx, nil); err != nil {
		t.Errorf("UpsertBatch(nil) error = %v", err)
	}
}

func TestTimeRepository_FirstWriterWins(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	start := time.UnixMilli(1541903636796).UTC()
	first := TimeBucket{StartTime: start, Hour: 2, Day: 11, Week: 45, Month: 11, Year: 2018, Weekday: 6}

	n, err := d.Times().InsertBatch(ctx, []TimeBucket{first})
	if err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	if n != 1 {
		t.Errorf("InsertBatch() = %d, want 1", n)
	}

	changed := first
	changed.Hour = 23
	written, err := d.Times().Insert(ctx, &changed)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if written {
		t.Error("Insert() wrote a row for an existing start time")
	}

	got, err := d.Times().Get(ctx, start)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Hour != 2 {
		t.Errorf("Hour = %d, want 2", got.Hour)
	}
	if !got.StartTime.Equal(start) {
		t.Errorf("StartTime = %v, want %v", got.StartTime, start)
	}
}

func TestSongplayRepository_Insert(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	sp := Songplay{
		StartTime: time.UnixMilli(1541903636796).UTC(),
		UserID:    7,
		Level:     "paid",
		SongID:    ptr("S1"),
		ArtistID:  ptr("A1"),
		SessionID: 818,
		Location:  "Chicago-Naperville-Elgin, IL-IN-WI",
		UserAgent: "Mozilla/5.0",
	}
	for i := 0; i < 2; i++ {
		row := sp
		if err := d.Songplays().Insert(ctx, &row); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		if row.ID == 0 {
			t.Error("Insert() did not set ID")
		}
	}

	count, err := d.Songplays().Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}

	plays, err := d.Songplays().ListForUser(ctx, 7)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(plays) != 2 || plays[0].ID >= plays[1].ID {
		t.Errorf("ListForUser() = %+v, want two rows in insertion order", plays)
	}
}

func TestInTx_RollsBackOnError(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := d.InTx(ctx, func(r Repos) error {
		return r.Artists.Upsert(ctx, &Artist{ID: "A1", Name: "Bar"})
	}); err != nil {
		t.Fatalf("InTx() error = %v", err)
	}

	err := d.InTx(ctx, func(r Repos) error {
		if err := r.Artists.Upsert(ctx, &Artist{ID: "A2", Name: "Twin"}); err != nil {
			return err
		}
		// one statement cannot upsert the same user twice
		return r.Users.UpsertBatch(ctx, []User{{ID: 7, Level: "free"}, {ID: 7, Level: "paid"}})
	})
	if err == nil {
		t.Fatal("InTx() expected error for repeated user in batch")
	}
	if _, err := d.Artists().Get(ctx, "A2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected artist A2 rolled back, got %v", err)
	}
	if _, err := d.Artists().Get(ctx, "A1"); err != nil {
		t.Errorf("expected artist A1 committed, got %v", err)
	}
}

func TestClassify_UniqueViolation(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := d.Users().Upsert(ctx, &User{ID: 7, Level: "free"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	_, err := d.Pool().Exec(ctx, "INSERT INTO users (user_id, first_name, last_name, gender, level) VALUES (7, '', '', '', 'paid')")
	if !errors.Is(Classify(err), ErrConstraintViolation) {
		t.Errorf("Classify() = %v, want ErrConstraintViolation", Classify(err))
	}
}
