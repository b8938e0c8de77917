package reconciler

import (
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/trailsync/internal/domain"
	"example.com/trailsync/internal/events"
	"example.com/trailsync/internal/registry"
)

const masterSheet = "TrailsMaster"

type fixture struct {
	set        *registry.Set
	master     *registry.MemoryStore
	categories map[domain.Difficulty]*registry.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	master := registry.NewMemoryStore(masterSheet)
	categories := make(map[domain.Difficulty]*registry.MemoryStore)
	stores := make(map[domain.Difficulty]registry.Store)
	for _, tier := range domain.Tiers() {
		store := registry.NewMemoryStore("Trails" + tier.String())
		categories[tier] = store
		stores[tier] = store
	}

	set, err := registry.NewSet(master, stores)
	require.NoError(t, err)

	return &fixture{set: set, master: master, categories: categories}
}

func (f *fixture) newReconciler(t *testing.T, opts ...Option) *Reconciler {
	t.Helper()
	opts = append([]Option{WithLogger(log.New(testWriter{t}, "", 0))}, opts...)
	return New(f.set, masterSheet, opts...)
}

func monteCavo(difficulty string) domain.TrailRecord {
	return domain.TrailRecord{
		ID:              "42",
		Name:            "Monte Cavo",
		Lat:             "41.7336",
		Lon:             "12.7011",
		Difficulty:      difficulty,
		Length:          "12.5",
		Timing:          "4h30",
		Distance:        "55",
		WebsiteLink:     "https://example.org/monte-cavo",
		MaxParticipants: 20,
		Notes:           "Bring water",
	}
}

func (f *fixture) countHolders(t *testing.T, trailID string) []string {
	t.Helper()
	var holders []string
	for _, tier := range domain.Tiers() {
		if _, err := f.categories[tier].FindRow(context.Background(), trailID); err == nil {
			holders = append(holders, tier.String())
		}
	}
	return holders
}

func TestDifficultyChangeRelocatesRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Previously classified as Easy; master now says Moderate.
	_, err := f.categories[domain.DifficultyEasy].Upsert(ctx, monteCavo("Easy"))
	require.NoError(t, err)
	_, err = f.master.Upsert(ctx, monteCavo("Moderate"))
	require.NoError(t, err)

	r := f.newReconciler(t)
	outcome, err := r.HandleEdit(ctx, domain.EditNotification{
		Sheet: masterSheet, Row: domain.FirstDataRow, Column: domain.ColumnDifficulty,
	})
	require.NoError(t, err)
	require.Equal(t, ActionRelocated, outcome.Action)
	require.Equal(t, "Easy", outcome.FromTier)
	require.Equal(t, "Moderate", outcome.ToTier)

	require.Equal(t, []string{"Moderate"}, f.countHolders(t, "42"))

	row, err := f.categories[domain.DifficultyModerate].FindRow(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, "Monte Cavo", row.Record.Name)
	require.Equal(t, "Moderate", row.Record.Difficulty)
	require.Equal(t, "41.7336", row.Record.Lat)
	require.Equal(t, "12.7011", row.Record.Lon)
}

func TestPassIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.master.Upsert(ctx, monteCavo("moderate"))
	require.NoError(t, err)

	r := f.newReconciler(t)
	edit := domain.EditNotification{Sheet: masterSheet, Row: domain.FirstDataRow, Column: domain.ColumnDifficulty}

	_, err = r.HandleEdit(ctx, edit)
	require.NoError(t, err)
	first, err := f.categories[domain.DifficultyModerate].List(ctx)
	require.NoError(t, err)

	_, err = r.HandleEdit(ctx, edit)
	require.NoError(t, err)
	second, err := f.categories[domain.DifficultyModerate].List(ctx)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, []string{"Moderate"}, f.countHolders(t, "42"))
}

func TestRemovalHealsDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// A prior partial failure left the id in two registries.
	_, err := f.categories[domain.DifficultyEasy].Upsert(ctx, monteCavo("Easy"))
	require.NoError(t, err)
	_, err = f.categories[domain.DifficultyDifficult].Upsert(ctx, monteCavo("Difficult"))
	require.NoError(t, err)
	_, err = f.master.Upsert(ctx, monteCavo("Intermediate"))
	require.NoError(t, err)

	r := f.newReconciler(t)
	_, err = r.HandleEdit(ctx, domain.EditNotification{
		Sheet: masterSheet, Row: domain.FirstDataRow, Column: domain.ColumnName,
	})
	require.NoError(t, err)

	require.Equal(t, []string{"Intermediate"}, f.countHolders(t, "42"))
}

func TestUnsupportedDifficultyLeavesRecordUnplaced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	recorder := &stubRecorder{}
	_, err := f.categories[domain.DifficultyEasy].Upsert(ctx, monteCavo("Easy"))
	require.NoError(t, err)
	_, err = f.master.Upsert(ctx, monteCavo("Hard"))
	require.NoError(t, err)

	r := f.newReconciler(t, WithEventRecorder(recorder))
	outcome, err := r.HandleEdit(ctx, domain.EditNotification{
		Sheet: masterSheet, Row: domain.FirstDataRow, Column: domain.ColumnDifficulty,
	})
	require.NoError(t, err)
	require.Equal(t, ActionUnclassified, outcome.Action)
	require.Equal(t, "Easy", outcome.FromTier)

	// Removed from its prior registry, placed nowhere.
	require.Empty(t, f.countHolders(t, "42"))

	require.Len(t, recorder.unclassified, 1)
	require.Equal(t, "Hard", recorder.unclassified[0].Difficulty)
	require.Equal(t, "Easy", recorder.unclassified[0].RemovedFrom)
}

func TestUnsupportedDifficultyOnUnplacedRecordTouchesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.master.Upsert(ctx, monteCavo("Hard"))
	require.NoError(t, err)

	r := f.newReconciler(t)
	outcome, err := r.HandleEdit(ctx, domain.EditNotification{
		Sheet: masterSheet, Row: domain.FirstDataRow, Column: domain.ColumnDifficulty,
	})
	require.NoError(t, err)
	require.Equal(t, ActionUnclassified, outcome.Action)
	require.Empty(t, outcome.FromTier)

	for _, tier := range domain.Tiers() {
		count, err := f.categories[tier].RowCount(ctx)
		require.NoError(t, err)
		require.Zero(t, count, "registry %s should be untouched", tier)
	}
}

func TestIncidentalEditOnUnplacedRecordIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.master.Upsert(ctx, monteCavo("Moderate"))
	require.NoError(t, err)

	r := f.newReconciler(t)
	outcome, err := r.HandleEdit(ctx, domain.EditNotification{
		Sheet: masterSheet, Row: domain.FirstDataRow, Column: domain.ColumnNotes,
	})
	require.NoError(t, err)
	require.Equal(t, ActionSkipped, outcome.Action)
	require.Empty(t, f.countHolders(t, "42"))
}

func TestEditOnOtherSheetIsIgnored(t *testing.T) {
	f := newFixture(t)
	r := f.newReconciler(t)

	outcome, err := r.HandleEdit(context.Background(), domain.EditNotification{
		Sheet: "Registrations", Row: 5, Column: 3,
	})
	require.NoError(t, err)
	require.Equal(t, ActionIgnored, outcome.Action)
}

func TestHeaderRowEditIsIgnored(t *testing.T) {
	f := newFixture(t)
	r := f.newReconciler(t)

	outcome, err := r.HandleEdit(context.Background(), domain.EditNotification{
		Sheet: masterSheet, Row: domain.HeaderRow, Column: domain.ColumnDifficulty,
	})
	require.NoError(t, err)
	require.Equal(t, ActionIgnored, outcome.Action)
}

func TestUnavailableRegistryIsSkippedNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.categories[domain.DifficultyVeryEasy].SetOpenError(errors.New("document missing"))
	_, err := f.categories[domain.DifficultyEasy].Upsert(ctx, monteCavo("Easy"))
	require.NoError(t, err)
	_, err = f.master.Upsert(ctx, monteCavo("Moderate"))
	require.NoError(t, err)

	r := f.newReconciler(t)
	outcome, err := r.HandleEdit(ctx, domain.EditNotification{
		Sheet: masterSheet, Row: domain.FirstDataRow, Column: domain.ColumnDifficulty,
	})
	require.NoError(t, err)
	require.Equal(t, ActionRelocated, outcome.Action)

	row, err := f.categories[domain.DifficultyModerate].FindRow(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, "Moderate", row.Record.Difficulty)
}

func TestTargetRegistryWriteFailurePropagates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Previously Easy; master reclassifies to Moderate, but the Moderate
	// registry cannot be opened at write time.
	_, err := f.categories[domain.DifficultyEasy].Upsert(ctx, monteCavo("Easy"))
	require.NoError(t, err)
	_, err = f.master.Upsert(ctx, monteCavo("Moderate"))
	require.NoError(t, err)
	f.categories[domain.DifficultyModerate].SetOpenError(errors.New("document missing"))

	r := f.newReconciler(t)
	_, err = r.HandleEdit(ctx, domain.EditNotification{
		Sheet: masterSheet, Row: domain.FirstDataRow, Column: domain.ColumnDifficulty,
	})
	require.Error(t, err)

	// The pass aborted between removal and insert: the id is gone from the
	// Easy registry and placed nowhere. The record stays in the master, so
	// a later pass or repair run re-places it.
	require.Empty(t, f.countHolders(t, "42"))

	f.categories[domain.DifficultyModerate].SetOpenError(nil)
	outcome, err := r.HandleEdit(ctx, domain.EditNotification{
		Sheet: masterSheet, Row: domain.FirstDataRow, Column: domain.ColumnDifficulty,
	})
	require.NoError(t, err)
	require.Equal(t, ActionRelocated, outcome.Action)
	require.Equal(t, []string{"Moderate"}, f.countHolders(t, "42"))
}

func TestCoordinatesRoundTripAsText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rec := monteCavo("Moderate")
	rec.Lat = "41.73360" // trailing zero must survive
	rec.Lon = "012.7011" // leading zero must survive
	_, err := f.master.Upsert(ctx, rec)
	require.NoError(t, err)

	r := f.newReconciler(t)
	edit := domain.EditNotification{Sheet: masterSheet, Row: domain.FirstDataRow, Column: domain.ColumnDifficulty}

	for i := 0; i < 3; i++ {
		if _, err := r.HandleEdit(ctx, edit); err != nil {
			t.Fatalf("pass %d failed: %v", i+1, err)
		}
	}

	row, err := f.categories[domain.DifficultyModerate].FindRow(ctx, "42")
	require.NoError(t, err)
	if row.Record.Lat != "41.73360" {
		t.Fatalf("lat corrupted: %q", row.Record.Lat)
	}
	if row.Record.Lon != "012.7011" {
		t.Fatalf("lon corrupted: %q", row.Record.Lon)
	}
}

func TestDifficultyNormalizedForDisplay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.master.Upsert(ctx, monteCavo("vErY eAsY"))
	require.NoError(t, err)

	r := f.newReconciler(t)
	outcome, err := r.HandleEdit(ctx, domain.EditNotification{
		Sheet: masterSheet, Row: domain.FirstDataRow, Column: domain.ColumnDifficulty,
	})
	require.NoError(t, err)
	require.Equal(t, "Very easy", outcome.ToTier)

	row, err := f.categories[domain.DifficultyVeryEasy].FindRow(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, "Very easy", row.Record.Difficulty)
}

type stubRecorder struct {
	relocated    []events.TrailRelocated
	unclassified []events.TrailUnclassified
	err          error
}

func (s *stubRecorder) TrailRelocated(_ context.Context, ev events.TrailRelocated) error {
	s.relocated = append(s.relocated, ev)
	return s.err
}

func (s *stubRecorder) TrailUnclassified(_ context.Context, ev events.TrailUnclassified) error {
	s.unclassified = append(s.unclassified, ev)
	return s.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
