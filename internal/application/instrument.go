package application

import (
	"context"
	"strconv"
	"time"

	"github.com/gabrielmiguelok/kycform/pkg/logging"
	"github.com/gabrielmiguelok/kycform/pkg/metrics"
	"github.com/gabrielmiguelok/kycform/pkg/tracing"
)

// InstrumentedSubmitter decorates a Submitter with logs, metrics and a span.
type InstrumentedSubmitter struct {
	next    Submitter
	logger  logging.Logger
	metrics *metrics.Metrics
	tracer  *tracing.Tracer
}

// Instrument wraps next. Nil dependencies fall back to no-op implementations.
func Instrument(next Submitter, logger logging.Logger, m *metrics.Metrics, tracer *tracing.Tracer) *InstrumentedSubmitter {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	if m == nil {
		m = metrics.Nop()
	}
	if tracer == nil {
		tracer = tracing.NewTracer("kycform")
	}
	return &InstrumentedSubmitter{next: next, logger: logger, metrics: m, tracer: tracer}
}

// Submit delegates to the wrapped submitter. Personal identifiers are never
// logged; only the presence of the nominee section is recorded.
func (s *InstrumentedSubmitter) Submit(ctx context.Context, d Draft) (Receipt, error) {
	ctx, span := s.tracer.StartSpan(ctx, "application.submit")
	defer span.End()

	s.metrics.SubmissionsInFlight.Inc()
	defer s.metrics.SubmissionsInFlight.Dec()

	start := time.Now()
	receipt, err := s.next.Submit(ctx, d)
	elapsed := time.Since(start)
	s.metrics.SubmissionDuration.Observe(elapsed.Seconds())

	if err != nil {
		span.SetError(err)
		s.metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("application submission failed",
			logging.Err(err),
			logging.Duration("duration", elapsed),
		)
		return Receipt{}, err
	}

	span.SetTag("application.reference", receipt.Reference)
	span.AddEvent("application.accepted", map[string]string{
		"nominee": strconv.FormatBool(d.AddNominee),
	})
	s.metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()

	fields := []logging.Field{
		logging.String("reference", receipt.Reference),
		logging.Bool("nominee", d.AddNominee),
		logging.Duration("duration", elapsed),
	}
	if id := span.TraceID(); id != "" {
		fields = append(fields, logging.String("trace_id", id))
	}
	s.logger.Info("application submitted", fields...)
	return receipt, nil
}
