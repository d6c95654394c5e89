package nutrilens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anantham/nutrilens/internal/lock"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Client ties validation, correction logging, ingredient learning and
// accuracy reporting to one store.
type Client struct {
	store      *Store
	learner    *Learner
	aggregator *AccuracyAggregator
	normalizer *Normalizer
	config     Config
	logger     *zap.Logger
	metrics    *Metrics
	redis      *redis.Client
}

// New creates a nutrilens client.
func New(cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		var err error
		if logger, err = NewLogger(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("client: %w", err)
		}
	}

	metrics := DefaultMetrics()
	if cfg.MeterProvider != nil {
		var err error
		if metrics, err = NewMetrics(cfg.MeterProvider); err != nil {
			return nil, fmt.Errorf("client: metrics: %w", err)
		}
	}

	normalizer := DefaultNormalizer
	if cfg.AliasFile != "" {
		extra, err := LoadAliasFile(cfg.AliasFile)
		if err != nil {
			return nil, fmt.Errorf("client: %w", err)
		}
		normalizer = NewNormalizer(extra)
		logger.Debug("loaded ingredient aliases", zap.String("path", cfg.AliasFile), zap.Int("count", len(extra)))
	}

	st, err := NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	c := &Client{
		store:      st,
		normalizer: normalizer,
		config:     cfg,
		logger:     logger,
		metrics:    metrics,
	}

	locker := cfg.Locker
	if locker == nil && cfg.RedisAddr != "" {
		c.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		rl := lock.NewRedisLocker(c.redis, "", 0, 0)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rl.Ping(pingCtx); err != nil {
			c.Close()
			return nil, fmt.Errorf("client: redis %s: %w", cfg.RedisAddr, err)
		}
		locker = rl
		logger.Info("using redis for learning locks", zap.String("addr", cfg.RedisAddr))
	}
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}

	c.learner = NewLearner(st,
		WithNormalizer(normalizer),
		WithLocker(locker),
		WithConfidenceModel(cfg.ConfidenceModel()),
		WithMatchThreshold(*cfg.MatchThreshold),
		WithMaxRetries(cfg.MaxRetries),
		WithLogger(logger.Named("learner")),
		WithMetrics(metrics),
	)
	c.aggregator = NewAccuracyAggregator(st, *cfg.CalibrationMinConfidence)

	logger.Debug("client ready", zap.String("store", cfg.Store), zap.String("db_path", cfg.DBPath))
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// Validate checks an AI estimate for plausibility. Callers must reject the
// meal when the result is not valid.
func (c *Client) Validate(ctx context.Context, est NutritionEstimate) ValidationResult {
	res := Validate(est)
	c.metrics.RecordValidation(ctx, res)
	for _, issue := range res.Issues {
		fields := []zap.Field{zap.String("field", issue.Field), zap.String("message", issue.Message)}
		if issue.ActualValue != nil {
			fields = append(fields, zap.Float64("actual", *issue.ActualValue))
		}
		if issue.Severity == SeverityError {
			c.logger.Info("implausible nutrition estimate", fields...)
		} else {
			c.logger.Debug("unusual nutrition estimate", fields...)
		}
	}
	return res
}

// RecordCorrection derives and appends one correction record. Callers only
// record fields the user actually changed.
func (c *Client) RecordCorrection(ctx context.Context, fieldName string, aiValue, userValue *float64, cc CorrectionContext) (*CorrectionRecord, error) {
	rec, err := NewCorrectionRecord(fieldName, aiValue, userValue, cc)
	if err != nil {
		return nil, err
	}
	if err := c.store.AppendCorrection(ctx, rec); err != nil {
		return nil, fmt.Errorf("record correction: %w", err)
	}
	c.metrics.RecordCorrection(ctx, rec.FieldName)
	return rec, nil
}

// RecordEstimateCorrections records one correction for every field that
// differs between the AI estimate and the user's version.
func (c *Client) RecordEstimateCorrections(ctx context.Context, ai, user NutritionEstimate, cc CorrectionContext) ([]CorrectionRecord, error) {
	if cc.CorrectedAt.IsZero() {
		cc.CorrectedAt = time.Now().UTC()
	}
	var recs []CorrectionRecord
	for _, f := range ChangedFields(ai, user) {
		rec, err := c.RecordCorrection(ctx, f, ai.FieldValue(f), user.FieldValue(f), cc)
		if err != nil {
			return recs, err
		}
		recs = append(recs, *rec)
	}
	return recs, nil
}

// LearnFromCorrection folds an ingredient observation into the user's
// library. It never fails; the result says what happened.
func (c *Client) LearnFromCorrection(ctx context.Context, obs *IngredientObservation, userID string) *LearnResult {
	return c.learner.LearnFromCorrection(ctx, obs, userID)
}

// Learn is LearnFromCorrection with store and lock failures returned.
func (c *Client) Learn(ctx context.Context, obs *IngredientObservation, userID string) (*LearnResult, error) {
	return c.learner.Learn(ctx, obs, userID)
}

// Library returns a user's learned ingredients, most confident first.
func (c *Client) Library(ctx context.Context, userID string) ([]UserIngredient, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	return c.store.FindByUserOrderByConfidenceDesc(ctx, userID)
}

// Forget deletes one of a user's library entries.
func (c *Client) Forget(ctx context.Context, userID, id string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if err := c.store.DeleteIngredient(ctx, userID, id); err != nil {
		return err
	}
	c.logger.Debug("ingredient forgotten", zap.String("user_id", userID), zap.String("id", id))
	return nil
}

// Lookup finds the library entry a name would be learned into: an exact
// normalized match, else the best fuzzy match.
func (c *Client) Lookup(ctx context.Context, userID, name string) (*UserIngredient, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	normalized := c.normalizer.Normalize(name)
	if normalized == "" {
		return nil, ErrNotFound
	}

	entry, err := c.store.FindByUserAndNormalizedName(ctx, userID, normalized)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	entries, err := c.store.FindByUserOrderByConfidenceDesc(ctx, userID)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, len(entries))
	for i, e := range entries {
		candidates[i] = Candidate{ID: e.ID, NormalizedName: e.NormalizedName, Confidence: e.ConfidenceScore}
	}
	match, ok := MatchNormalized(normalized, candidates, *c.config.MatchThreshold)
	if !ok {
		return nil, ErrNotFound
	}
	for i := range entries {
		if entries[i].ID == match.ID {
			return &entries[i], nil
		}
	}
	return nil, ErrNotFound
}

// Autocomplete returns up to limit library entries whose normalized name
// starts with the cleaned prefix, most confident first. A limit of zero or
// less means no limit.
func (c *Client) Autocomplete(ctx context.Context, userID, prefix string, limit int) ([]UserIngredient, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	p := cleanName(prefix)
	entries, err := c.store.FindByUserOrderByConfidenceDesc(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]UserIngredient, 0)
	for _, e := range entries {
		if p != "" && !strings.HasPrefix(e.NormalizedName, p) && !strings.HasPrefix(cleanName(e.IngredientName), p) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Accuracy returns the accuracy aggregator over this client's corrections.
func (c *Client) Accuracy() *AccuracyAggregator {
	return c.aggregator
}

// Report renders the accuracy report.
func (c *Client) Report(ctx context.Context) (string, error) {
	return c.aggregator.GenerateReport(ctx)
}

// Stats returns store statistics.
func (c *Client) Stats(ctx context.Context) (*StoreStats, error) {
	return c.store.Stats(ctx)
}

// Close releases the store and any Redis connection.
func (c *Client) Close() error {
	var errs []error
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	errs = append(errs, c.store.Close())
	_ = c.logger.Sync()
	return errors.Join(errs...)
}
