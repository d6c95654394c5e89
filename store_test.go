package nutrilens

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestNewStore_CreatesAllTables verifies that NewStore creates the required tables.
func TestNewStore_CreatesAllTables(t *testing.T) {
	store := newTestStore(t)

	for _, table := range []string{"metadata", "user_ingredients", "correction_logs"} {
		var name string
		err := store.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

// TestNewStore_EnablesWAL verifies that WAL mode is enabled after initialization.
func TestNewStore_EnablesWAL(t *testing.T) {
	store := newTestStore(t)

	var journalMode string
	if err := store.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected journal_mode=wal, got %q", journalMode)
	}
}

func TestNewStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	e := &UserIngredient{UserID: "u1", IngredientName: "Rice", NormalizedName: "rice"}
	if err := s.SaveIngredient(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	if _, err := s2.FindByUserAndNormalizedName(context.Background(), "u1", "rice"); err != nil {
		t.Errorf("entry lost across reopen: %v", err)
	}
}

func TestStore_SaveIngredientRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := &UserIngredient{
		UserID:          "u1",
		IngredientName:  "Idly",
		NormalizedName:  "idli",
		SampleSize:      2,
		ConfidenceScore: 0.33,
		TypicalQuantity: ptr(3),
		TypicalUnit:     "piece",
		LastUsed:        time.Date(2025, 1, 2, 3, 4, 5, 600, time.UTC),
	}
	e.Calories.Add(130)
	e.Calories.Add(140)
	e.Protein.Add(4)

	if err := store.SaveIngredient(ctx, e); err != nil {
		t.Fatalf("SaveIngredient() error: %v", err)
	}
	if e.ID == "" || e.Version != 1 {
		t.Fatalf("after insert ID=%q Version=%d", e.ID, e.Version)
	}

	got, err := store.FindByUserAndNormalizedName(ctx, "u1", "idli")
	if err != nil {
		t.Fatalf("FindByUserAndNormalizedName() error: %v", err)
	}
	if got.Calories != e.Calories || got.Protein != e.Protein || got.Fat.N != 0 {
		t.Errorf("stats = %+v / %+v, want %+v / %+v", got.Calories, got.Protein, e.Calories, e.Protein)
	}
	if got.TypicalQuantity == nil || *got.TypicalQuantity != 3 || got.TypicalUnit != "piece" {
		t.Errorf("typical = %v %q", got.TypicalQuantity, got.TypicalUnit)
	}
	if !got.LastUsed.Equal(e.LastUsed) {
		t.Errorf("LastUsed = %v, want %v", got.LastUsed, e.LastUsed)
	}
	if got.Version != 1 || got.SampleSize != 2 || got.IngredientName != "Idly" {
		t.Errorf("got %+v", got)
	}
}

func TestStore_FindNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.FindByUserAndNormalizedName(context.Background(), "u1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestStore_VersionConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := &UserIngredient{UserID: "u1", IngredientName: "rice", NormalizedName: "rice"}
	if err := store.SaveIngredient(ctx, e); err != nil {
		t.Fatal(err)
	}

	a, _ := store.FindByUserAndNormalizedName(ctx, "u1", "rice")
	b, _ := store.FindByUserAndNormalizedName(ctx, "u1", "rice")

	a.SampleSize = 5
	if err := store.SaveIngredient(ctx, a); err != nil {
		t.Fatalf("first update error: %v", err)
	}
	if a.Version != 2 {
		t.Errorf("Version after update = %d, want 2", a.Version)
	}

	b.SampleSize = 9
	if err := store.SaveIngredient(ctx, b); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("stale update error = %v, want ErrVersionConflict", err)
	}

	got, _ := store.FindByUserAndNormalizedName(ctx, "u1", "rice")
	if got.SampleSize != 5 {
		t.Errorf("SampleSize = %d, want 5 (stale write must not land)", got.SampleSize)
	}
}

func TestStore_DuplicateInsertConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveIngredient(ctx, &UserIngredient{UserID: "u1", NormalizedName: "dosa"}); err != nil {
		t.Fatal(err)
	}
	err := store.SaveIngredient(ctx, &UserIngredient{UserID: "u1", NormalizedName: "dosa"})
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("duplicate insert error = %v, want ErrVersionConflict", err)
	}
	// same name for another user is fine
	if err := store.SaveIngredient(ctx, &UserIngredient{UserID: "u2", NormalizedName: "dosa"}); err != nil {
		t.Errorf("insert for other user: %v", err)
	}
}

func TestStore_LibraryOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, e := range []UserIngredient{
		{UserID: "u1", NormalizedName: "rice", ConfidenceScore: 0.2},
		{UserID: "u1", NormalizedName: "dal", ConfidenceScore: 0.9},
		{UserID: "u1", NormalizedName: "curd", ConfidenceScore: 0.2},
		{UserID: "u2", NormalizedName: "roti", ConfidenceScore: 1},
	} {
		e := e
		if err := store.SaveIngredient(ctx, &e); err != nil {
			t.Fatal(err)
		}
	}

	lib, err := store.FindByUserOrderByConfidenceDesc(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"dal", "curd", "rice"}
	if len(lib) != len(want) {
		t.Fatalf("len = %d, want %d", len(lib), len(want))
	}
	for i, name := range want {
		if lib[i].NormalizedName != name {
			t.Errorf("lib[%d] = %q, want %q", i, lib[i].NormalizedName, name)
		}
	}
}

func TestStore_DeleteIngredient(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := &UserIngredient{UserID: "u1", NormalizedName: "rice"}
	if err := store.SaveIngredient(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteIngredient(ctx, "u2", e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete by other user = %v, want ErrNotFound", err)
	}
	if err := store.DeleteIngredient(ctx, "u1", e.ID); err != nil {
		t.Errorf("DeleteIngredient() error: %v", err)
	}
	if _, err := store.FindByUserAndNormalizedName(ctx, "u1", "rice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("entry still present: %v", err)
	}
}

func TestStore_Corrections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	analyzed := base.Add(-time.Minute)

	recs := []struct {
		field, user, loc string
		conf             *float64
	}{
		{FieldCalories, "u1", "restaurant", ptr(0.95)},
		{FieldCalories, "u2", "", ptr(0.5)},
		{FieldProtein, "u1", "home", nil},
	}
	for i, r := range recs {
		rec, err := NewCorrectionRecord(r.field, ptr(500), ptr(650), CorrectionContext{
			UserID:          r.user,
			LocationType:    r.loc,
			ConfidenceScore: r.conf,
			AIAnalyzedAt:    &analyzed,
			CorrectedAt:     base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := store.AppendCorrection(ctx, rec); err != nil {
			t.Fatalf("AppendCorrection() error: %v", err)
		}
	}

	tests := []struct {
		name string
		q    CorrectionQuery
		want int
	}{
		{"all", CorrectionQuery{}, 3},
		{"by user", CorrectionQuery{UserID: "u1"}, 2},
		{"by field", CorrectionQuery{FieldName: FieldCalories}, 2},
		{"with location", CorrectionQuery{RequireLocation: true}, 2},
		{"min confidence", CorrectionQuery{MinConfidence: ptr(0.9)}, 1},
		{"combined", CorrectionQuery{UserID: "u1", FieldName: FieldProtein}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Corrections(ctx, tt.q)
			if err != nil {
				t.Fatalf("Corrections() error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}

	all, _ := store.Corrections(ctx, CorrectionQuery{})
	first := all[0]
	if first.FieldName != FieldCalories || first.UserID != "u1" || first.LocationType != "restaurant" {
		t.Errorf("first = %+v", first)
	}
	if first.PercentError == nil || *first.PercentError != 23.08 || *first.AbsoluteError != 150 {
		t.Errorf("derived errors not persisted: %v %v", first.PercentError, first.AbsoluteError)
	}
	if first.AIAnalyzedAt == nil || !first.AIAnalyzedAt.Equal(analyzed) {
		t.Errorf("AIAnalyzedAt = %v, want %v", first.AIAnalyzedAt, analyzed)
	}
	if all[2].ConfidenceScore != nil {
		t.Errorf("nil confidence came back as %v", *all[2].ConfidenceScore)
	}
}

func TestStore_Stats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.SaveIngredient(ctx, &UserIngredient{UserID: "u1", NormalizedName: "rice"})
	_ = store.SaveIngredient(ctx, &UserIngredient{UserID: "u2", NormalizedName: "rice"})
	rec, _ := NewCorrectionRecord(FieldFat, ptr(1), ptr(2), CorrectionContext{})
	_ = store.AppendCorrection(ctx, rec)

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.IngredientCount != 2 || st.CorrectionCount != 1 || st.UserCount != 2 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestStore_Stats_SchemaVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.SchemaVersion != schemaVersion {
		t.Errorf("SchemaVersion = %q, want %q", st.SchemaVersion, schemaVersion)
	}

	if _, err := store.db.Exec("DELETE FROM metadata WHERE key = 'schema_version'"); err != nil {
		t.Fatal(err)
	}
	st, err = store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() without a version row: %v", err)
	}
	if st.SchemaVersion != "" {
		t.Errorf("SchemaVersion = %q, want empty", st.SchemaVersion)
	}

	if _, err := store.db.Exec("DROP TABLE metadata"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Stats(ctx); err == nil {
		t.Error("Stats() with an unreadable metadata table returned nil error")
	}
}

func TestStore_Closed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}

	if _, err := store.FindByUserOrderByConfidenceDesc(ctx, "u1"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Find after close = %v", err)
	}
	if err := store.SaveIngredient(ctx, &UserIngredient{UserID: "u1"}); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Save after close = %v", err)
	}
	if err := store.AppendCorrection(ctx, &CorrectionRecord{FieldName: "x"}); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Append after close = %v", err)
	}
	if _, err := store.Stats(ctx); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Stats after close = %v", err)
	}
}

func TestStore_ConcurrentAppends(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, _ := NewCorrectionRecord(FieldCalories, ptr(100), ptr(110), CorrectionContext{})
			if err := store.AppendCorrection(ctx, rec); err != nil {
				t.Errorf("AppendCorrection() error: %v", err)
			}
		}()
	}
	wg.Wait()

	st, _ := store.Stats(ctx)
	if st.CorrectionCount != 20 {
		t.Errorf("CorrectionCount = %d, want 20", st.CorrectionCount)
	}
}
