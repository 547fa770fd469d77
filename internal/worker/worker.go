package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/ai-tutor/internal/ai"
	"github.com/suPer8Hu/ai-tutor/internal/content"
	"github.com/suPer8Hu/ai-tutor/internal/observability"
	"github.com/suPer8Hu/ai-tutor/internal/store/rabbitmq"
)

type JobStore interface {
	UpdateJobStatusRunning(ctx context.Context, id string) error
	GetJobByID(ctx context.Context, id string) (*content.GenerationJob, error)
	MarkJobSucceeded(ctx context.Context, id string, contentCount int) error
	MarkJobFailed(ctx context.Context, id string, errMsg string) error
	RequeueJob(ctx context.Context, id string, errMsg string) error
}

type ContentGenerator interface {
	Generate(ctx context.Context, userID string, topics []string) ([]content.Content, error)
}

// Retrier parks a job for a delayed redelivery.
type Retrier interface {
	PublishRetry(ctx context.Context, jobID string, attempt int, delay time.Duration) error
}

// RetryPolicy bounds redeliveries of transiently failed jobs. The delay
// doubles with every attempt.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

func (r RetryPolicy) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return r.Delay << (attempt - 1)
}

type Processor struct {
	jobs    JobStore
	gen     ContentGenerator
	log     *logrus.Logger
	retrier Retrier
	policy  RetryPolicy
}

func NewProcessor(jobs JobStore, gen ContentGenerator, log *logrus.Logger) *Processor {
	return &Processor{jobs: jobs, gen: gen, log: log}
}

// WithRetry enables delayed retries of generation failures that are not
// permanent (no topics, no configured provider).
func (p *Processor) WithRetry(r Retrier, policy RetryPolicy) *Processor {
	p.retrier = r
	p.policy = policy
	return p
}

// Handle runs one generation job and records its outcome. attempt is the
// number of retries already made. A returned error means the delivery
// should be dead-lettered; a scheduled retry returns nil.
func (p *Processor) Handle(ctx context.Context, jobID string, attempt int) error {
	start := time.Now()

	if err := p.jobs.UpdateJobStatusRunning(ctx, jobID); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	j, err := p.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	var topics []string
	if err := json.Unmarshal([]byte(j.Topics), &topics); err != nil {
		return p.fail(ctx, jobID, fmt.Errorf("decode topics: %w", err))
	}

	created, err := p.gen.Generate(ctx, j.UserID, topics)
	if err != nil {
		if p.retryable(err, attempt) {
			return p.scheduleRetry(ctx, jobID, attempt+1, err)
		}
		return p.fail(ctx, jobID, err)
	}

	if err := p.jobs.MarkJobSucceeded(ctx, jobID, len(created)); err != nil {
		return fmt.Errorf("mark succeeded: %w", err)
	}
	observability.Default().GenerationJobsTotal.WithLabelValues(string(content.JobSucceeded)).Inc()

	p.log.WithFields(logrus.Fields{
		"job_id":   jobID,
		"user_id":  j.UserID,
		"contents": len(created),
		"cost":     time.Since(start).String(),
	}).Info("generation job finished")
	return nil
}

func (p *Processor) retryable(err error, attempt int) bool {
	if p.retrier == nil || attempt >= p.policy.MaxRetries {
		return false
	}
	return !errors.Is(err, content.ErrNoTopics) && !errors.Is(err, ai.ErrNotConfigured)
}

func (p *Processor) scheduleRetry(ctx context.Context, jobID string, attempt int, cause error) error {
	delay := p.policy.backoff(attempt)
	if err := p.jobs.RequeueJob(ctx, jobID, cause.Error()); err != nil {
		p.log.WithError(err).WithField("job_id", jobID).Error("requeue job")
		return p.fail(ctx, jobID, cause)
	}
	if err := p.retrier.PublishRetry(ctx, jobID, attempt, delay); err != nil {
		p.log.WithError(err).WithField("job_id", jobID).Error("publish retry")
		return p.fail(ctx, jobID, cause)
	}
	observability.Default().GenerationJobsTotal.WithLabelValues("retried").Inc()

	p.log.WithError(cause).WithFields(logrus.Fields{
		"job_id":  jobID,
		"attempt": attempt,
		"delay":   delay.String(),
	}).Warn("generation job retry scheduled")
	return nil
}

func (p *Processor) fail(ctx context.Context, jobID string, cause error) error {
	observability.Default().GenerationJobsTotal.WithLabelValues(string(content.JobFailed)).Inc()
	if err := p.jobs.MarkJobFailed(ctx, jobID, cause.Error()); err != nil {
		p.log.WithError(err).WithField("job_id", jobID).Error("mark job failed")
	}
	return cause
}

// ParseDelivery extracts the job id from a delivery body.
func ParseDelivery(body []byte) (string, error) {
	var m rabbitmq.JobMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return "", err
	}
	if m.JobID == "" {
		return "", errors.New("missing job_id")
	}
	return m.JobID, nil
}

// Acknowledger is the part of amqp.Delivery the pool needs.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Run dispatches deliveries to a fixed pool of workers until ctx is done or
// the delivery channel closes, then waits for in-flight jobs.
func (p *Processor) Run(ctx context.Context, deliveries <-chan amqp.Delivery, concurrency int) {
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				p.handleDelivery(ctx, workerID, d.Body, d.Headers, &d)
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("worker shutting down")
			return
		case d, ok := <-deliveries:
			if !ok {
				p.log.Warn("delivery channel closed")
				return
			}
			jobs <- d
		}
	}
}

func (p *Processor) handleDelivery(ctx context.Context, workerID int, body []byte, headers amqp.Table, ack Acknowledger) {
	jobID, err := ParseDelivery(body)
	if err != nil {
		p.log.WithError(err).WithField("worker", workerID).Warn("bad message")
		_ = ack.Nack(false, false)
		return
	}

	if err := p.Handle(ctx, jobID, rabbitmq.RetryCount(headers)); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"worker": workerID,
			"job_id": jobID,
		}).Error("generation job failed")
		_ = ack.Nack(false, false)
		return
	}
	if err := ack.Ack(false); err != nil {
		p.log.WithError(err).WithField("job_id", jobID).Warn("ack failed")
	}
}
