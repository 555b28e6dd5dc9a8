// Package worker turns reconcile requests consumed from Kafka into pipeline
// runs and publishes their outcome as result events.
package worker

import (
	"context"
	"time"

	"github.com/turtacn/NERRecon/internal/application/reconciliation"
	"github.com/turtacn/NERRecon/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// ServiceName is the envelope source of every event the worker publishes.
const ServiceName = "nerrecon-worker"

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, in *reconciliation.RunInput) (*reconciliation.RunResult, error)
}

// Handler processes reconcile requests.
type Handler struct {
	runner      Runner
	publisher   kafka.Publisher
	resultTopic string
	timeout     time.Duration
	metrics     *prometheus.AppMetrics
	logger      logging.Logger
}

// HandlerConfig configures NewHandler.
type HandlerConfig struct {
	ResultTopic string
	// Timeout bounds one run; zero leaves it to the service.
	Timeout time.Duration
}

// NewHandler returns a Handler.  metrics may be nil.
func NewHandler(runner Runner, publisher kafka.Publisher, cfg HandlerConfig, metrics *prometheus.AppMetrics, logger logging.Logger) *Handler {
	if cfg.ResultTopic == "" {
		cfg.ResultTopic = kafka.TopicReconcileResults
	}
	if metrics == nil {
		metrics = prometheus.NewNoopMetrics()
	}
	return &Handler{
		runner:      runner,
		publisher:   publisher,
		resultTopic: cfg.ResultTopic,
		timeout:     cfg.Timeout,
		metrics:     metrics,
		logger:      logging.OrNop(logger).Named("worker"),
	}
}

// Handle is a kafka.MessageHandler.  Undecodable messages and transient
// failures are returned so the consumer retries and eventually dead-letters
// them.  A request that fails on its own merits (bad policy, missing
// source) is answered with a failed result event instead.
func (h *Handler) Handle(ctx context.Context, msg *kafka.Message) (err error) {
	start := time.Now()
	defer func() { h.metrics.RecordMessage(msg.Topic, err, time.Since(start)) }()

	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		return err
	}
	if env.EventType != kafka.EventReconcileRequested {
		h.logger.Debug("ignoring event", logging.String("event_type", env.EventType))
		return nil
	}
	var req kafka.ReconcileRequestPayload
	if err := env.DecodePayload(&req); err != nil {
		return err
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	in := &reconciliation.RunInput{
		Sources:    req.Sources,
		RawSources: req.RawSources,
		Output:     req.Output,
	}
	if req.Policy != "" {
		in.Policies = []string{req.Policy}
	}
	if req.StripMetadata {
		strip := true
		in.StripMetadata = &strip
	}

	log := h.logger.With(logging.String("request_id", req.RequestID))
	res, runErr := h.runner.Run(ctx, in)
	if runErr != nil && Retryable(runErr) {
		log.Warn("run failed, will retry", logging.Err(runErr))
		return runErr
	}
	if runErr != nil {
		log.Warn("run rejected", logging.Err(runErr))
	}
	return h.publish(ctx, env.TraceID, &req, res, runErr)
}

func (h *Handler) publish(ctx context.Context, traceID string, req *kafka.ReconcileRequestPayload, res *reconciliation.RunResult, runErr error) error {
	payload := kafka.ReconcileResultPayload{
		RequestID:  req.RequestID,
		Policy:     req.Policy,
		Output:     req.Output,
		Status:     prometheus.StatusSucceeded,
		FinishedAt: time.Now().UTC(),
	}
	eventType := kafka.EventReconcileCompleted
	if res != nil && res.Run != nil {
		payload.RunID = res.Run.ID.String()
		payload.Policy = res.Run.Policy
		payload.Documents = res.Run.Documents
		payload.Entities = res.Run.Entities
		payload.Stats = res.Run.Stats
	}
	if runErr != nil {
		eventType = kafka.EventReconcileFailed
		payload.Status = prometheus.StatusFailed
		payload.Error = runErr.Error()
	}

	env, err := kafka.NewEventEnvelope(eventType, ServiceName, payload)
	if err != nil {
		return err
	}
	env.TraceID = traceID
	out, err := env.ToMessage(h.resultTopic, req.RequestID)
	if err != nil {
		return err
	}
	return h.publisher.Publish(ctx, out)
}

// Retryable reports whether err is worth another attempt.  Infrastructure
// failures, errors without a code and a held output lock are retried.  Input
// and policy errors are not.
func Retryable(err error) bool {
	switch errors.GetCode(err) {
	case errors.ErrCodeStorageError,
		errors.ErrCodeDatabaseError,
		errors.ErrCodeCacheError,
		errors.ErrCodeExternalService,
		errors.ErrCodeMessagingError,
		errors.ErrCodeServiceUnavailable,
		errors.ErrCodeTimeout,
		errors.ErrCodeRunInProgress,
		errors.ErrCodeInternal,
		errors.CodeUnknown:
		return true
	}
	return false
}

//Personal.AI order the ending
