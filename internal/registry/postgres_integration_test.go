//go:build integration

package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/trailsync/internal/domain"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)

	store := NewPostgresStore(pool, "trails_moderate", "trails_moderate")

	rec := domain.TrailRecord{
		ID:              "42",
		Name:            "Monte Cavo loop",
		Lat:             "41.73360",
		Lon:             "012.7011",
		Difficulty:      "Moderate",
		Length:          "9km",
		Timing:          "3h",
		Distance:        "25km from the city",
		WebsiteLink:     "https://example.com/trails/42",
		MaxParticipants: 15,
		Notes:           "bring water",
	}

	created, err := store.Upsert(ctx, rec)
	require.NoError(t, err)
	require.True(t, created, "first upsert must append")

	row, err := store.FindRow(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, domain.FirstDataRow, row.Num, "first data row lands at row 2")

	// Coordinates must come back byte for byte, trailing and leading
	// zeros included.
	require.Equal(t, "41.73360", row.Record.Lat)
	require.Equal(t, "012.7011", row.Record.Lon)
	require.Equal(t, rec, row.Record)

	rec.Notes = "bring more water"
	created, err = store.Upsert(ctx, rec)
	require.NoError(t, err)
	require.False(t, created, "second upsert must update in place")

	again, err := store.FindRow(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, row.Num, again.Num, "update must not move the row")
	require.Equal(t, "bring more water", again.Record.Notes)

	byRow, err := store.ReadRow(ctx, row.Num)
	require.NoError(t, err)
	require.Equal(t, again.Record, byRow)
}

func TestPostgresStoreRowNumbersGrowMonotonically(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)

	store := NewPostgresStore(pool, "trails_easy", "trails_easy")

	for i, id := range []string{"a", "b", "c"} {
		created, err := store.Upsert(ctx, domain.TrailRecord{ID: id, Name: "trail " + id})
		require.NoError(t, err)
		require.True(t, created)

		row, err := store.FindRow(ctx, id)
		require.NoError(t, err)
		require.Equal(t, domain.FirstDataRow+int64(i), row.Num)
	}

	deleted, err := store.Delete(ctx, "b")
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = store.Delete(ctx, "b")
	require.NoError(t, err)
	require.False(t, deleted, "second delete finds nothing")

	// Appending after a delete continues past the high-water mark rather
	// than reusing the freed row number.
	created, err := store.Upsert(ctx, domain.TrailRecord{ID: "d", Name: "trail d"})
	require.NoError(t, err)
	require.True(t, created)

	row, err := store.FindRow(ctx, "d")
	require.NoError(t, err)
	require.Equal(t, domain.FirstDataRow+3, row.Num)

	count, err := store.RowCount(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}

func TestPostgresStoreMissingTableIsUnavailable(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)

	store := NewPostgresStore(pool, "trails_missing", "trails_missing")

	_, err := store.RowCount(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnavailable), "missing relation must map to ErrUnavailable, got %v", err)

	_, err = store.Delete(ctx, "42")
	require.True(t, errors.Is(err, ErrUnavailable))
}

func startPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("trails"),
		postgrescontainer.WithUsername("trailsync"),
		postgrescontainer.WithPassword("trailsync"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))
	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../db/postgres/migrations/0001_init.up.sql",
		"../../db/postgres/migrations/0002_relocation_log.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
