package triage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

// Worker consumes triage jobs from the queue and invokes the processor.
type Worker struct {
	processor Processor
	queue     queueClient
	jobs      JobUpdater
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// NewWorker constructs a queue consumer around the provided processor.
func NewWorker(processor Processor, queue queueClient, jobs JobUpdater, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if processor == nil {
		panic("triage: processor cannot be nil")
	}
	if queue == nil {
		panic("triage: queue cannot be nil")
	}
	if jobs == nil {
		panic("triage: job store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		processor: processor,
		queue:     queue,
		jobs:      jobs,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("triage worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("triage worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive triage jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode triage job", "error", err)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	w.logger.Info("worker processing job", "job_id", payload.ID, "kind", payload.Kind, "msg_id", msg.ID)

	var (
		resp *Response
		err  error
	)
	switch payload.Kind {
	case jobTypeStart:
		resp, err = w.processor.StartSession(ctx)
	case jobTypeAnalyze:
		resp, err = w.processor.Analyze(ctx, payload.Analyze)
	default:
		w.logger.Error("unknown triage job kind", "kind", payload.Kind, "job_id", payload.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	if err != nil {
		w.logger.Error("triage job failed", "error", err, "job_id", payload.ID, "kind", payload.Kind)
		if storeErr := w.jobs.MarkFailed(ctx, payload.ID, err.Error()); storeErr != nil {
			w.logger.Error("failed to update job status", "error", storeErr, "job_id", payload.ID)
		}
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	sessionID := ""
	if resp != nil {
		sessionID = resp.SessionID
	}
	if storeErr := w.jobs.MarkCompleted(ctx, payload.ID, resp, sessionID); storeErr != nil {
		w.logger.Error("failed to record job completion", "error", storeErr, "job_id", payload.ID)
	}

	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Warn("failed to delete triage job message", "error", err)
	}
}
