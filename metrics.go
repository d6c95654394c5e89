package nutrilens

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/anantham/nutrilens"

// Metrics holds the OpenTelemetry instruments for validation, correction
// logging and ingredient learning.
type Metrics struct {
	// Verdicts counts validations. Attribute: verdict (valid|invalid).
	Verdicts metric.Int64Counter

	// Issues counts validation issues. Attributes: severity, field.
	Issues metric.Int64Counter

	// Corrections counts recorded corrections. Attribute: field.
	Corrections metric.Int64Counter

	// LearningOutcomes counts learn calls. Attribute: outcome (a LearnAction).
	LearningOutcomes metric.Int64Counter

	// LearningConflicts counts version conflicts that forced a retry.
	LearningConflicts metric.Int64Counter
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Verdicts, err = m.Int64Counter("nutrilens.validation.verdicts",
		metric.WithDescription("Nutrition estimates validated, by verdict."),
	); err != nil {
		return nil, err
	}
	if met.Issues, err = m.Int64Counter("nutrilens.validation.issues",
		metric.WithDescription("Validation issues raised, by severity and field."),
	); err != nil {
		return nil, err
	}
	if met.Corrections, err = m.Int64Counter("nutrilens.corrections.recorded",
		metric.WithDescription("User corrections appended to the log, by field."),
	); err != nil {
		return nil, err
	}
	if met.LearningOutcomes, err = m.Int64Counter("nutrilens.learning.outcomes",
		metric.WithDescription("Ingredient learning calls, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.LearningConflicts, err = m.Int64Counter("nutrilens.learning.conflicts",
		metric.WithDescription("Optimistic version conflicts hit while learning."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level Metrics bound to the global
// meter provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("nutrilens: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordValidation counts one verdict and each of its issues.
func (m *Metrics) RecordValidation(ctx context.Context, res ValidationResult) {
	verdict := "valid"
	if !res.Valid {
		verdict = "invalid"
	}
	m.Verdicts.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", verdict)))
	for _, issue := range res.Issues {
		m.Issues.Add(ctx, 1, metric.WithAttributes(
			attribute.String("severity", string(issue.Severity)),
			attribute.String("field", issue.Field),
		))
	}
}

// RecordCorrection counts one appended correction.
func (m *Metrics) RecordCorrection(ctx context.Context, field string) {
	m.Corrections.Add(ctx, 1, metric.WithAttributes(attribute.String("field", field)))
}

// RecordLearn counts one learning outcome.
func (m *Metrics) RecordLearn(ctx context.Context, action LearnAction) {
	m.LearningOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(action))))
}

// RecordConflict counts one version conflict.
func (m *Metrics) RecordConflict(ctx context.Context) {
	m.LearningConflicts.Add(ctx, 1)
}
