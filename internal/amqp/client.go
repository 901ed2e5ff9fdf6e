// Package amqp is the receipt inbox: receipt images published to a RabbitMQ
// queue and consumed by the receipt worker.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"expensetracker/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures     = 5
	openTimeout     = 30 * time.Second
	maxBackoff      = 30 * time.Second
	maxDialAttempts = 5
	publishTimeout  = 5 * time.Second
)

var (
	// ErrReject marks handler errors that must not be retried. The message
	// is dropped (or dead-lettered) instead of requeued.
	ErrReject = errors.New("reject message")

	// ErrStop marks handler errors that no later message can recover from.
	// The message is requeued and ConsumeReceiptUploads returns the error.
	ErrStop = errors.New("stop consuming")

	ErrCircuitOpen = errors.New("circuit breaker is open")

	errDeliveriesClosed = fmt.Errorf("deliveries channel closed: %w", amqp091.ErrClosed)
)

// Reject wraps err so the consumer drops the message instead of requeueing it.
func Reject(err error) error {
	return fmt.Errorf("%w: %w", ErrReject, err)
}

// Stop wraps err so the consumer requeues the message and stops.
func Stop(err error) error {
	return fmt.Errorf("%w: %w", ErrStop, err)
}

// Handler processes one message. Returning nil acks it.
type Handler func(ctx context.Context, msg *ReceiptUploadMessage) error

type Client struct {
	url          string
	exchangeName string
	queueName    string
	prefetch     int
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

type Option func(*Client)

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithPrefetch limits unacknowledged deliveries per consumer.
func WithPrefetch(n int) Option {
	return func(c *Client) {
		c.prefetch = n
	}
}

// NewClient dials the broker, retrying with exponential backoff, and
// declares the exchange, queue and binding.
func NewClient(ctx context.Context, url, exchangeName, queueName string, opts ...Option) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		prefetch:     1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.log().WithComponent(log.ComponentAMQP)

	var err error
	for attempt := 0; attempt < maxDialAttempts; attempt++ {
		if err = c.connect(); err == nil {
			return c, nil
		}
		wait := exponentialBackoff(attempt)
		c.log().Warn("AMQP connection failed, retrying",
			log.FieldAttempt, attempt+1, log.FieldError, err, "retry_in", wait.String())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connect to AMQP after %d attempts: %w", maxDialAttempts, err)
}

func (c *Client) log() *log.Logger {
	if c.logger == nil {
		return log.Nop()
	}
	return c.logger
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if c.prefetch > 0 {
		if err := channel.Qos(c.prefetch, 0, false); err != nil {
			conn.Close()
			return fmt.Errorf("set prefetch: %w", err)
		}
	}

	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

func setup(channel *amqp091.Channel, exchangeName, queueName string) error {
	err := channel.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = channel.QueueBind(
		queueName,    // queue name
		queueName,    // routing key (same as queue name for direct exchange)
		exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// liveChannel returns the open channel, reconnecting if it was closed.
func (c *Client) liveChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch != nil && !ch.IsClosed() {
		return ch, nil
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel, nil
}

// PublishReceiptUpload publishes msg to the receipt inbox.
func (c *Client) PublishReceiptUpload(ctx context.Context, msg *ReceiptUploadMessage) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish receipt upload: %w", ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	channel, err := c.liveChannel()
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish receipt upload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.ID.String(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.log().InfoContext(ctx, "Published receipt upload",
		log.FieldMessageID, msg.ID.String(),
		log.FieldFileName, msg.FileName,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

// ConsumeReceiptUploads delivers inbox messages to handler until ctx is
// cancelled, reconnecting after connection loss.
func (c *Client) ConsumeReceiptUploads(ctx context.Context, handler Handler) error {
	attempt := 0
	for {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			c.log().InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if errors.Is(err, ErrStop) || !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		c.log().Warn("AMQP connection lost, reconnecting",
			log.FieldError, err, log.FieldAttempt, attempt, "retry_in", wait.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if err := c.connect(); err != nil {
			c.log().Error("AMQP reconnect failed", log.FieldError, err)
			continue
		}
		attempt = 0
	}
}

func (c *Client) consume(ctx context.Context, handler Handler) error {
	channel, err := c.liveChannel()
	if err != nil {
		return err
	}

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.log().InfoContext(ctx, "Started consuming receipt uploads", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}
			if err := c.handleDelivery(ctx, delivery, handler); err != nil {
				return err
			}
		}
	}
}

// handleDelivery acks or nacks one delivery. It returns an error only when
// the handler asked the consumer to stop.
func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler Handler) error {
	msg, err := ReceiptUploadMessageFromJSON(delivery.Body)
	if err != nil {
		c.log().ErrorContext(ctx, "Failed to decode receipt upload", log.FieldError, err)
		_ = delivery.Nack(false, false)
		return nil
	}

	logger := c.log().With(log.FieldMessageID, msg.ID.String(), log.FieldFileName, msg.FileName)
	logger.InfoContext(ctx, "Processing receipt upload")

	if err := handler(ctx, msg); err != nil {
		requeue := shouldRequeue(err, delivery.Redelivered)
		logger.ErrorContext(ctx, "Failed to handle receipt upload",
			log.FieldError, err, "requeue", requeue)
		_ = delivery.Nack(false, requeue)
		if errors.Is(err, ErrStop) {
			return err
		}
		return nil
	}

	_ = delivery.Ack(false)
	logger.InfoContext(ctx, "Successfully processed receipt upload")
	return nil
}

// shouldRequeue retries a failed message once unless the handler rejected it.
// Messages that stop the consumer always go back to the queue.
func shouldRequeue(err error, redelivered bool) bool {
	if err == nil || errors.Is(err, ErrReject) {
		return false
	}
	if errors.Is(err, ErrStop) {
		return true
	}
	return !redelivered
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection", "EOF", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.log().Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}
