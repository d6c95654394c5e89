package nutrilens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/anantham/nutrilens/internal/store/migrations"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const schemaVersion = "1"

// Store is the SQLite-backed ingredient library and correction log.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

var (
	_ IngredientLibrary = (*Store)(nil)
	_ CorrectionStore   = (*Store)(nil)
)

// NewStore opens or creates a store at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, schemaVersion)
	return err
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

const ingredientColumns = `
	id, user_id, ingredient_name, normalized_name,
	calories_n, calories_mean, calories_m2,
	protein_n, protein_mean, protein_m2,
	fat_n, fat_mean, fat_m2,
	carbs_n, carbs_mean, carbs_m2,
	sample_size, confidence_score, typical_quantity, typical_unit,
	last_used, created_at, updated_at, version`

// FindByUserOrderByConfidenceDesc returns a user's library, most confident
// first. Ties are broken by normalized name.
func (s *Store) FindByUserOrderByConfidenceDesc(ctx context.Context, userID string) ([]UserIngredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+ingredientColumns+`
		FROM user_ingredients
		WHERE user_id = ?
		ORDER BY confidence_score DESC, normalized_name ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: query library: %w", err)
	}
	defer rows.Close()

	var results []UserIngredient
	for rows.Next() {
		entry, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *entry)
	}
	return results, rows.Err()
}

// FindByUserAndNormalizedName returns ErrNotFound when the user has no entry
// under that name.
func (s *Store) FindByUserAndNormalizedName(ctx context.Context, userID, normalizedName string) (*UserIngredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+ingredientColumns+`
		FROM user_ingredients
		WHERE user_id = ? AND normalized_name = ?
	`, userID, normalizedName)
	return scanIngredient(row)
}

// SaveIngredient inserts or version-checks and updates entry.
func (s *Store) SaveIngredient(ctx context.Context, entry *UserIngredient) error {
	if entry == nil {
		return errors.New("store: nil ingredient")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	now := time.Now().UTC()
	if entry.Version == 0 {
		return s.insertIngredient(ctx, entry, now)
	}
	return s.updateIngredient(ctx, entry, now)
}

func (s *Store) insertIngredient(ctx context.Context, e *UserIngredient, now time.Time) error {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.LastUsed.IsZero() {
		e.LastUsed = now
	}
	e.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_ingredients (`+ingredientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`,
		e.ID, e.UserID, e.IngredientName, e.NormalizedName,
		e.Calories.N, e.Calories.Mean, e.Calories.M2,
		e.Protein.N, e.Protein.Mean, e.Protein.M2,
		e.Fat.N, e.Fat.Mean, e.Fat.M2,
		e.Carbohydrates.N, e.Carbohydrates.Mean, e.Carbohydrates.M2,
		e.SampleSize, e.ConfidenceScore, e.TypicalQuantity, nullString(e.TypicalUnit),
		formatTime(e.LastUsed), formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("store: insert ingredient: %w", err)
	}
	e.Version = 1
	return nil
}

func (s *Store) updateIngredient(ctx context.Context, e *UserIngredient, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_ingredients SET
			ingredient_name = ?, normalized_name = ?,
			calories_n = ?, calories_mean = ?, calories_m2 = ?,
			protein_n = ?, protein_mean = ?, protein_m2 = ?,
			fat_n = ?, fat_mean = ?, fat_m2 = ?,
			carbs_n = ?, carbs_mean = ?, carbs_m2 = ?,
			sample_size = ?, confidence_score = ?, typical_quantity = ?, typical_unit = ?,
			last_used = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`,
		e.IngredientName, e.NormalizedName,
		e.Calories.N, e.Calories.Mean, e.Calories.M2,
		e.Protein.N, e.Protein.Mean, e.Protein.M2,
		e.Fat.N, e.Fat.Mean, e.Fat.M2,
		e.Carbohydrates.N, e.Carbohydrates.Mean, e.Carbohydrates.M2,
		e.SampleSize, e.ConfidenceScore, e.TypicalQuantity, nullString(e.TypicalUnit),
		formatTime(e.LastUsed), formatTime(now),
		e.ID, e.Version,
	)
	if isUniqueViolation(err) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("store: update ingredient: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update ingredient: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	e.Version++
	e.UpdatedAt = now
	return nil
}

// DeleteIngredient removes one entry from a user's library.
func (s *Store) DeleteIngredient(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM user_ingredients WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("store: delete ingredient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendCorrection appends rec to the correction log, assigning an ID if
// it has none.
func (s *Store) AppendCorrection(ctx context.Context, rec *CorrectionRecord) error {
	if rec == nil {
		return errors.New("store: nil correction")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.CorrectedAt.IsZero() {
		rec.CorrectedAt = time.Now().UTC()
	}

	var analyzedAt *string
	if rec.AIAnalyzedAt != nil {
		v := formatTime(*rec.AIAnalyzedAt)
		analyzedAt = &v
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO correction_logs (
			id, user_id, meal_id, field_name, ai_value, user_value,
			percent_error, absolute_error, confidence_score,
			location_type, meal_type, meal_description, ai_analyzed_at, corrected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, nullString(rec.UserID), nullString(rec.MealID), rec.FieldName,
		rec.AIValue, rec.UserValue, rec.PercentError, rec.AbsoluteError, rec.ConfidenceScore,
		nullString(rec.LocationType), nullString(rec.MealType), nullString(rec.MealDescription),
		analyzedAt, formatTime(rec.CorrectedAt),
	)
	if err != nil {
		return fmt.Errorf("store: insert correction: %w", err)
	}
	return nil
}

// Corrections returns the records matching q in the order they were
// corrected.
func (s *Store) Corrections(ctx context.Context, q CorrectionQuery) ([]CorrectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var (
		where []string
		args  []any
	)
	if q.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, q.UserID)
	}
	if q.FieldName != "" {
		where = append(where, "field_name = ?")
		args = append(args, q.FieldName)
	}
	if q.RequireLocation {
		where = append(where, "location_type IS NOT NULL AND location_type != ''")
	}
	if q.MinConfidence != nil {
		where = append(where, "confidence_score IS NOT NULL AND confidence_score >= ?")
		args = append(args, *q.MinConfidence)
	}

	query := `SELECT id, user_id, meal_id, field_name, ai_value, user_value,
		percent_error, absolute_error, confidence_score,
		location_type, meal_type, meal_description, ai_analyzed_at, corrected_at
		FROM correction_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY corrected_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query corrections: %w", err)
	}
	defer rows.Close()

	var results []CorrectionRecord
	for rows.Next() {
		rec, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}
	return results, rows.Err()
}

// Stats returns store statistics.
func (s *Store) Stats(ctx context.Context) (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var st StoreStats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_ingredients").Scan(&st.IngredientCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM correction_logs").Scan(&st.CorrectionCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM (
		SELECT user_id FROM user_ingredients
		UNION
		SELECT user_id FROM correction_logs WHERE user_id IS NOT NULL AND user_id != ''
	)`).Scan(&st.UserCount); err != nil {
		return nil, err
	}
	var version sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: read schema version: %w", err)
	}
	st.SchemaVersion = version.String
	return &st, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// scanner abstracts the Scan method shared by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanIngredient returns ErrNotFound only for sql.ErrNoRows from *sql.Row.
func scanIngredient(sc scanner) (*UserIngredient, error) {
	var (
		e           UserIngredient
		typicalQty  sql.NullFloat64
		typicalUnit sql.NullString
		lastUsed    string
		createdAt   string
		updatedAt   string
	)
	err := sc.Scan(
		&e.ID, &e.UserID, &e.IngredientName, &e.NormalizedName,
		&e.Calories.N, &e.Calories.Mean, &e.Calories.M2,
		&e.Protein.N, &e.Protein.Mean, &e.Protein.M2,
		&e.Fat.N, &e.Fat.Mean, &e.Fat.M2,
		&e.Carbohydrates.N, &e.Carbohydrates.Mean, &e.Carbohydrates.M2,
		&e.SampleSize, &e.ConfidenceScore, &typicalQty, &typicalUnit,
		&lastUsed, &createdAt, &updatedAt, &e.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan ingredient: %w", err)
	}

	if typicalQty.Valid {
		v := typicalQty.Float64
		e.TypicalQuantity = &v
	}
	e.TypicalUnit = typicalUnit.String
	e.LastUsed = parseTime(lastUsed)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func scanCorrection(sc scanner) (*CorrectionRecord, error) {
	var (
		r               CorrectionRecord
		userID          sql.NullString
		mealID          sql.NullString
		aiValue         sql.NullFloat64
		userValue       sql.NullFloat64
		percentError    sql.NullFloat64
		absoluteError   sql.NullFloat64
		confidence      sql.NullFloat64
		locationType    sql.NullString
		mealType        sql.NullString
		mealDescription sql.NullString
		analyzedAt      sql.NullString
		correctedAt     string
	)
	err := sc.Scan(
		&r.ID, &userID, &mealID, &r.FieldName, &aiValue, &userValue,
		&percentError, &absoluteError, &confidence,
		&locationType, &mealType, &mealDescription, &analyzedAt, &correctedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store: scan correction: %w", err)
	}

	r.UserID = userID.String
	r.MealID = mealID.String
	r.AIValue = nullFloat(aiValue)
	r.UserValue = nullFloat(userValue)
	r.PercentError = nullFloat(percentError)
	r.AbsoluteError = nullFloat(absoluteError)
	r.ConfidenceScore = nullFloat(confidence)
	r.LocationType = locationType.String
	r.MealType = mealType.String
	r.MealDescription = mealDescription.String
	if analyzedAt.Valid {
		t := parseTime(analyzedAt.String)
		r.AIAnalyzedAt = &t
	}
	r.CorrectedAt = parseTime(correctedAt)
	return &r, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// timeLayout is RFC 3339 with a fixed-width fraction so stored timestamps
// sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
