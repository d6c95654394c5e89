package nutrilens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anantham/nutrilens/internal/lock"
	"go.uber.org/zap"
)

// Reasons reported on skipped learn results.
const (
	SkipNoObservation = "no observation"
	SkipNoQuantity    = "quantity missing"
	SkipNoUnit        = "unit missing"
	SkipNoUser        = "user missing"
	SkipBlankName     = "name blank after normalization"
	SkipNoMass        = "quantity not convertible to grams"
	SkipNoNutrients   = "no nutrient values"
)

// typicalQuantityWeight is the share of history kept when averaging a
// typical quantity.
const typicalQuantityWeight = 0.7

// Learner folds ingredient observations into per-user ingredient profiles.
// Each user's read-modify-write cycle runs under that user's lock and is
// retried from the fetch when the library reports a version conflict.
type Learner struct {
	library    IngredientLibrary
	normalizer *Normalizer
	locker     Locker
	model      ConfidenceModel
	threshold  int
	maxRetries int
	logger     *zap.Logger
	metrics    *Metrics
	now        func() time.Time
}

// LearnerOption configures a Learner.
type LearnerOption func(*Learner)

// WithNormalizer sets the name normalizer.
func WithNormalizer(n *Normalizer) LearnerOption {
	return func(l *Learner) { l.normalizer = n }
}

// WithLocker sets the per-user lock.
func WithLocker(lk Locker) LearnerOption {
	return func(l *Learner) { l.locker = lk }
}

// WithConfidenceModel sets the confidence tuning.
func WithConfidenceModel(m ConfidenceModel) LearnerOption {
	return func(l *Learner) { l.model = m }
}

// WithMatchThreshold sets the maximum edit distance for a fuzzy match.
func WithMatchThreshold(threshold int) LearnerOption {
	return func(l *Learner) { l.threshold = threshold }
}

// WithMaxRetries sets how many fetch-match-save attempts are made before
// giving up on version conflicts.
func WithMaxRetries(n int) LearnerOption {
	return func(l *Learner) { l.maxRetries = n }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LearnerOption {
	return func(l *Learner) { l.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) LearnerOption {
	return func(l *Learner) { l.metrics = m }
}

// WithClock overrides the time source used for LastUsed.
func WithClock(now func() time.Time) LearnerOption {
	return func(l *Learner) { l.now = now }
}

// NewLearner creates a Learner over library.
func NewLearner(library IngredientLibrary, opts ...LearnerOption) *Learner {
	l := &Learner{
		library:    library,
		normalizer: DefaultNormalizer,
		locker:     lock.NewKeyedMutex(),
		model:      DefaultConfidenceModel(),
		threshold:  DefaultMatchThreshold,
		maxRetries: DefaultMaxRetries,
		logger:     zap.NewNop(),
		metrics:    DefaultMetrics(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.maxRetries < 1 {
		l.maxRetries = 1
	}
	return l
}

// sample is an observation reduced to per-100 g values.
type sample struct {
	normalized    string
	displayName   string
	quantity      float64
	unit          string
	calories      *float64
	protein       *float64
	fat           *float64
	carbohydrates *float64
}

// LearnFromCorrection is the lenient entry point: failures are logged and
// reported on the result, never returned.
func (l *Learner) LearnFromCorrection(ctx context.Context, obs *IngredientObservation, userID string) *LearnResult {
	res, err := l.Learn(ctx, obs, userID)
	if err != nil {
		l.logger.Error("ingredient learning failed",
			zap.String("user_id", userID),
			zap.String("ingredient", observationName(obs)),
			zap.Error(err),
		)
	}
	return res
}

// Learn folds obs into userID's library. Malformed observations are skipped
// without touching the library. The returned error is non-nil only for
// lock, store, or exhausted-retry failures; the result is always non-nil.
func (l *Learner) Learn(ctx context.Context, obs *IngredientObservation, userID string) (*LearnResult, error) {
	s, reason := l.prepare(obs, userID)
	if reason != "" {
		l.logger.Debug("ingredient learning skipped",
			zap.String("user_id", userID),
			zap.String("ingredient", observationName(obs)),
			zap.String("reason", reason),
		)
		l.metrics.RecordLearn(ctx, LearnSkipped)
		return &LearnResult{Action: LearnSkipped, Reason: reason}, nil
	}

	unlock, err := l.locker.Lock(ctx, userID)
	if err != nil {
		return l.fail(ctx, fmt.Errorf("learn: lock user %q: %w", userID, err))
	}
	defer unlock()

	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		res, err := l.apply(ctx, s, userID)
		if errors.Is(err, ErrVersionConflict) {
			l.metrics.RecordConflict(ctx)
			l.logger.Info("ingredient version conflict, retrying",
				zap.String("user_id", userID),
				zap.String("ingredient", s.normalized),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return l.fail(ctx, err)
		}
		l.metrics.RecordLearn(ctx, res.Action)
		l.logger.Debug("ingredient learned",
			zap.String("user_id", userID),
			zap.String("ingredient", res.Entry.NormalizedName),
			zap.String("action", string(res.Action)),
			zap.Int("sample_size", res.Entry.SampleSize),
			zap.Float64("confidence", res.Entry.ConfidenceScore),
		)
		return res, nil
	}
	return l.fail(ctx, fmt.Errorf("learn: %d attempts: %w", l.maxRetries, ErrVersionConflict))
}

func (l *Learner) fail(ctx context.Context, err error) (*LearnResult, error) {
	l.metrics.RecordLearn(ctx, LearnFailed)
	return &LearnResult{Action: LearnFailed, Reason: err.Error()}, err
}

// prepare validates obs and converts it to per-100 g values. A non-empty
// reason means the observation must be skipped.
func (l *Learner) prepare(obs *IngredientObservation, userID string) (sample, string) {
	switch {
	case obs == nil:
		return sample{}, SkipNoObservation
	case obs.Quantity == nil:
		return sample{}, SkipNoQuantity
	case strings.TrimSpace(obs.Unit) == "":
		return sample{}, SkipNoUnit
	case strings.TrimSpace(userID) == "":
		return sample{}, SkipNoUser
	}

	normalized := l.normalizer.Normalize(obs.Name)
	if normalized == "" {
		return sample{}, SkipBlankName
	}
	grams, ok := GramsFor(normalized, *obs.Quantity, obs.Unit)
	if !ok {
		return sample{}, SkipNoMass
	}

	s := sample{
		normalized:    normalized,
		displayName:   strings.TrimSpace(obs.Name),
		quantity:      *obs.Quantity,
		unit:          NormalizeUnit(obs.Unit),
		calories:      Per100g(obs.Calories, grams),
		protein:       Per100g(obs.ProteinG, grams),
		fat:           Per100g(obs.FatG, grams),
		carbohydrates: Per100g(obs.CarbohydratesG, grams),
	}
	if s.calories == nil && s.protein == nil && s.fat == nil && s.carbohydrates == nil {
		return sample{}, SkipNoNutrients
	}
	return s, ""
}

// apply runs one fetch-match-update-save cycle.
func (l *Learner) apply(ctx context.Context, s sample, userID string) (*LearnResult, error) {
	entries, err := l.library.FindByUserOrderByConfidenceDesc(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("learn: load library: %w", err)
	}

	candidates := make([]Candidate, len(entries))
	for i, e := range entries {
		candidates[i] = Candidate{ID: e.ID, NormalizedName: e.NormalizedName, Confidence: e.ConfidenceScore}
	}

	now := l.now()
	match, ok := MatchNormalized(s.normalized, candidates, l.threshold)
	if !ok {
		entry := l.newEntry(s, userID, now)
		if err := l.library.SaveIngredient(ctx, entry); err != nil {
			return nil, err
		}
		return &LearnResult{Action: LearnCreated, Entry: entry}, nil
	}

	var entry *UserIngredient
	for i := range entries {
		if entries[i].ID == match.ID {
			entry = &entries[i]
			break
		}
	}
	l.update(entry, s, now)
	if err := l.library.SaveIngredient(ctx, entry); err != nil {
		return nil, err
	}
	return &LearnResult{Action: LearnUpdated, Entry: entry}, nil
}

func (l *Learner) newEntry(s sample, userID string, now time.Time) *UserIngredient {
	e := &UserIngredient{
		UserID:         userID,
		IngredientName: s.displayName,
		NormalizedName: s.normalized,
		LastUsed:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	l.fold(e, s)
	q := s.quantity
	e.TypicalQuantity = &q
	e.TypicalUnit = s.unit
	return e
}

func (l *Learner) update(e *UserIngredient, s sample, now time.Time) {
	l.fold(e, s)
	if s.displayName != "" {
		e.IngredientName = s.displayName
	}
	e.LastUsed = now

	switch {
	case e.TypicalUnit == "" || e.TypicalQuantity == nil:
		q := s.quantity
		e.TypicalQuantity = &q
		e.TypicalUnit = s.unit
	case NormalizeUnit(e.TypicalUnit) == s.unit:
		q := typicalQuantityWeight*(*e.TypicalQuantity) + (1-typicalQuantityWeight)*s.quantity
		e.TypicalQuantity = &q
	default:
		// Quantities in different units cannot be averaged; keep the old serving.
		l.logger.Debug("typical quantity kept, unit differs",
			zap.String("ingredient", e.NormalizedName),
			zap.String("typical_unit", e.TypicalUnit),
			zap.String("observed_unit", s.unit),
		)
	}
}

// fold adds one sample to the running statistics and rescores confidence.
func (l *Learner) fold(e *UserIngredient, s sample) {
	e.Calories.AddPtr(s.calories)
	e.Protein.AddPtr(s.protein)
	e.Fat.AddPtr(s.fat)
	e.Carbohydrates.AddPtr(s.carbohydrates)
	e.SampleSize++
	e.ConfidenceScore = l.model.Score(e.SampleSize, e.StdDevCalories())
}

func observationName(obs *IngredientObservation) string {
	if obs == nil {
		return ""
	}
	return obs.Name
}
