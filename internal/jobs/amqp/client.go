// Package amqp runs the job queue on a RabbitMQ broker so the API and the
// worker can live in separate processes.
package amqp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/dvloznov/budget-companion/internal/jobs"
	"github.com/dvloznov/budget-companion/internal/logger"
)

const publishTimeout = 5 * time.Second

// Client publishes and consumes process-file jobs through a durable direct
// exchange bound to a single queue.
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	consumerTag  string
	workers      int
	store        jobs.JobStore

	pubMu sync.Mutex
	wg    sync.WaitGroup
}

var _ jobs.Publisher = (*Client)(nil)
var _ jobs.Consumer = (*Client)(nil)

// NewClient dials url and declares the exchange, queue and binding. store
// may be nil when job state does not need to be tracked.
func NewClient(url, exchangeName, queueName string, workers int, store jobs.JobStore) (*Client, error) {
	if workers < 1 {
		workers = 1
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("NewClient: dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("NewClient: open channel: %w", err)
	}

	c := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		consumerTag:  "budget-companion-" + uuid.NewString()[:8],
		workers:      workers,
		store:        store,
	}

	if err := c.setup(); err != nil {
		c.Close()
		return nil, fmt.Errorf("NewClient: setup exchange and queue: %w", err)
	}
	return c, nil
}

func (c *Client) setup() error {
	if err := c.channel.ExchangeDeclare(c.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := c.channel.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// Routing key is the queue name.
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishProcessFile implements jobs.Publisher.
func (c *Client) PublishProcessFile(ctx context.Context, job *jobs.ProcessFileJob) error {
	jobs.Prepare(job, uuid.NewString, time.Now())

	if c.store != nil {
		if err := c.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("PublishProcessFile: save job: %w", err)
		}
	}

	msg, err := newPublishing(job, time.Now())
	if err != nil {
		return fmt.Errorf("PublishProcessFile: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.pubMu.Lock()
	err = c.channel.PublishWithContext(pubCtx, c.exchangeName, c.queueName, false, false, msg)
	c.pubMu.Unlock()
	if err != nil {
		return fmt.Errorf("PublishProcessFile: publish message: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("job_id", job.JobID).
		Str("exchange", c.exchangeName).
		Str("queue", c.queueName).
		Msg("Published process-file job")
	return nil
}

// Start implements jobs.Consumer. Deliveries are acknowledged manually once
// the handler outcome is recorded; undecodable messages are dropped.
func (c *Client) Start(ctx context.Context, handler jobs.JobHandler) error {
	if err := c.channel.Qos(c.workers, 0, false); err != nil {
		return fmt.Errorf("Start: set qos: %w", err)
	}

	deliveries, err := c.channel.Consume(c.queueName, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("Start: start consuming: %w", err)
	}

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, deliveries, handler)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("queue", c.queueName).Int("workers", c.workers).Msg("AMQP consumer started")
	return nil
}

func (c *Client) worker(ctx context.Context, deliveries <-chan amqp091.Delivery, handler jobs.JobHandler) {
	defer c.wg.Done()
	log := logger.FromContext(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}

			job, err := decodeJob(d.Body)
			if err != nil {
				log.Error().Err(err).Str("message_id", d.MessageId).Msg("Dropping undecodable message")
				d.Nack(false, false)
				continue
			}

			c.processJob(ctx, job, handler)
			if err := d.Ack(false); err != nil {
				log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to ack message")
			}
		}
	}
}

// processJob runs the handler and republishes the job while retries remain.
func (c *Client) processJob(ctx context.Context, job *jobs.ProcessFileJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx)

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.CompletedAt = nil
	c.save(ctx, job)

	err := handler(ctx, job)
	retry := jobs.Finish(job, err, time.Now())
	c.save(ctx, job)

	if err != nil {
		log.Error().Err(err).Str("job_id", job.JobID).Int("retry_count", job.RetryCount).Bool("retry", retry).Msg("Job failed")
	}
	if !retry {
		return
	}

	job.Status = jobs.JobStatusPending
	job.StartedAt = nil
	job.CompletedAt = nil
	if err := c.PublishProcessFile(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to republish job")
	}
}

func (c *Client) save(ctx context.Context, job *jobs.ProcessFileJob) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop implements jobs.Consumer. It cancels the consumer so the broker stops
// delivering and waits for in-flight jobs.
func (c *Client) Stop(ctx context.Context) error {
	if err := c.channel.Cancel(c.consumerTag, false); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Failed to cancel consumer")
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements jobs.Publisher.
func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
