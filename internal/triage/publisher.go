package triage

import (
	"context"
	"fmt"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// Publisher enqueues triage jobs for asynchronous processing.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("triage: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueStart publishes a StartSession job.
func (p *Publisher) EnqueueStart(ctx context.Context, jobID string) error {
	return p.enqueue(ctx, jobTypeStart, jobID, AnalysisRequest{})
}

// EnqueueAnalyze publishes a symptom analysis job.
func (p *Publisher) EnqueueAnalyze(ctx context.Context, jobID string, req AnalysisRequest) error {
	return p.enqueue(ctx, jobTypeAnalyze, jobID, req)
}

func (p *Publisher) enqueue(ctx context.Context, kind jobType, jobID string, analyze AnalysisRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, body, err := encodePayload(kind, jobID, analyze)
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("triage: failed to enqueue job: %w", err)
	}

	p.logger.Debug("triage job enqueued", "job_id", payload.ID, "kind", kind)
	return nil
}
