// Package amqp publishes transaction change events to a RabbitMQ topic
// exchange.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fintrack/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxRetries     = 3
	publishTimeout = 5 * time.Second
	dialTimeout    = 5 * time.Second
	maxBackoff     = 30 * time.Second

	// DefaultQueueSize bounds the events waiting for delivery.
	DefaultQueueSize = 256
	drainTimeout     = 5 * time.Second
)

var (
	ErrCircuitOpen  = errors.New("circuit breaker is open")
	ErrQueueFull    = errors.New("event queue is full")
	ErrClientClosed = errors.New("amqp client is closed")
)

// channel is the subset of *amqp091.Channel the client uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

type dialFunc func(url string) (io.Closer, channel, error)

type Client struct {
	url          string
	exchangeName string
	logger       *log.Logger

	dial    dialFunc
	backoff func(attempt int) time.Duration

	// queue is drained by a single worker goroutine, which owns delivery,
	// reconnects and backoff.
	queueMu sync.RWMutex
	queue   chan TransactionEvent
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	conn    io.Closer
	channel channel

	failureCount int64
	state        int32
	lastFailure  time.Time
}

// NewClient returns a publisher for exchangeName and starts its delivery
// worker. The broker is dialed on the first delivery and redialed after
// connection errors. Close stops the worker.
func NewClient(url, exchangeName string, logger *log.Logger) *Client {
	return newClient(url, exchangeName, logger, DefaultQueueSize, dialBroker)
}

func newClient(url, exchangeName string, logger *log.Logger, queueSize int, dial dialFunc) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		logger:       logger.WithComponent(log.ComponentAMQP),
		dial:         dial,
		backoff:      exponentialBackoff,
		queue:        make(chan TransactionEvent, queueSize),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	go c.run()
	return c
}

func dialBroker(url string) (io.Closer, channel, error) {
	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Dial: amqp091.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return conn, ch, nil
}

// Publish queues evt for delivery and returns without waiting for the
// broker. It fails with ErrQueueFull when the worker has fallen behind and
// with ErrClientClosed after Close.
func (c *Client) Publish(_ context.Context, evt TransactionEvent) error {
	c.queueMu.RLock()
	defer c.queueMu.RUnlock()
	if c.closed {
		return fmt.Errorf("publish %s: %w", evt.Type, ErrClientClosed)
	}
	select {
	case c.queue <- evt:
		return nil
	default:
		return fmt.Errorf("publish %s: %w", evt.Type, ErrQueueFull)
	}
}

func (c *Client) run() {
	defer close(c.done)
	for evt := range c.queue {
		if err := c.deliver(c.ctx, evt); err != nil {
			errType := log.ErrorTypeInternal
			if isConnectionError(err) || errors.Is(err, ErrCircuitOpen) {
				errType = log.ErrorTypeNetwork
			}
			c.logger.Error("Dropped transaction event",
				log.FieldOperation, log.OpPublish,
				log.FieldErrorType, errType,
				log.FieldRoutingKey, string(evt.Type),
				log.FieldTransactionID, evt.TransactionID,
				log.FieldUserID, evt.UserID,
				log.FieldError, err)
		}
	}
}

func (c *Client) ensureChannel() (channel, error) {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch != nil {
		return ch, nil
	}

	// Only the worker dials, so the lock is not held across the network.
	conn, ch, err := c.dial(c.url)
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(
		c.exchangeName, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, ch
	c.mu.Unlock()
	c.logger.Info("Connected to AMQP broker", "exchange", c.exchangeName)
	return ch, nil
}

func (c *Client) resetConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// deliver sends evt to the exchange with the event type as routing key.
// Connection errors are retried with exponential backoff; repeated failures
// open the circuit breaker and later calls fail fast until it half-opens.
func (c *Client) deliver(ctx context.Context, evt TransactionEvent) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", evt.Type, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := evt.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		lastErr = c.publishOnce(ctx, string(evt.Type), body)
		if lastErr == nil {
			c.recordSuccess()
			c.logger.DebugContext(ctx, "Delivered transaction event",
				log.FieldRoutingKey, string(evt.Type),
				log.FieldTransactionID, evt.TransactionID,
				log.FieldUserID, evt.UserID)
			return nil
		}
		if !isConnectionError(lastErr) {
			break
		}
		c.resetConnection()
		c.logger.WarnContext(ctx, "AMQP publish failed, retrying",
			"attempt", attempt+1,
			log.FieldError, lastErr)
	}

	c.recordFailure()
	return fmt.Errorf("publish %s: %w", evt.Type, lastErr)
}

func (c *Client) publishOnce(ctx context.Context, routingKey string, body []byte) error {
	ch, err := c.ensureChannel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
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
	// A failure while half-open reopens immediately.
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.logger.Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at 30s.
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
	var amqpErr *amqp091.Error
	if errors.As(err, &amqpErr) && amqpErr.Recover {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection refused", "connection closed", "EOF", "broken pipe", "use of closed network connection", "connection reset"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Close stops accepting events and gives the worker drainTimeout to deliver
// what is queued. Events still pending after that are dropped.
func (c *Client) Close() error {
	c.queueMu.Lock()
	if c.closed {
		c.queueMu.Unlock()
		return nil
	}
	c.closed = true
	close(c.queue)
	c.queueMu.Unlock()

	select {
	case <-c.done:
	case <-time.After(drainTimeout):
		c.logger.Warn("Event drain timed out", log.FieldCount, len(c.queue))
		c.cancel()
		<-c.done
	}
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
