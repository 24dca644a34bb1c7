// Package amqp carries commands to the orchestrator and its pushed events
// back to the station.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures = 5
	openTimeout = 30 * time.Second
	maxBackoff  = 30 * time.Second
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrDrop tells the consume loop to discard a message instead of
	// requeueing it.
	ErrDrop = errors.New("drop message")
)

type Config struct {
	URL          string
	Exchange     string
	CommandQueue string
	EventQueue   string
	DeviceID     string
}

// Handler processes one consumed envelope. Returning an error requeues it.
type Handler func(ctx context.Context, env Envelope) error

type Client struct {
	url          string
	exchangeName string
	commandQueue string
	eventQueue   string
	deviceID     string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		url:          cfg.URL,
		exchangeName: cfg.Exchange,
		commandQueue: cfg.CommandQueue,
		eventQueue:   cfg.EventQueue,
		deviceID:     cfg.DeviceID,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.exchangeName, c.commandQueue, c.eventQueue); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}
	c.conn = conn
	c.channel = channel
	return nil
}

// setup declares a durable direct exchange and binds each queue under its
// own name as routing key.
func setup(ch *amqp091.Channel, exchange string, queues ...string) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	for _, q := range queues {
		if q == "" {
			continue
		}
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := ch.QueueBind(q, q, exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

// openChannel returns a live channel, reconnecting if the previous one died.
func (c *Client) openChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && !c.channel.IsClosed() && c.conn != nil && !c.conn.IsClosed() {
		return c.channel, nil
	}
	if c.conn != nil {
		c.conn.Close()
	}
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	slog.Info("Reconnected to AMQP broker", "exchange", c.exchangeName)
	return c.channel, nil
}

// PublishCommand wraps payload in an envelope and sends it to the command
// queue.
func (c *Client) PublishCommand(ctx context.Context, msgType string, payload any) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", msgType, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	env, err := NewEnvelope(msgType, c.deviceID, payload)
	if err != nil {
		return err
	}
	body, err := env.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.openChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(
		pubCtx,
		c.exchangeName,
		c.commandQueue,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    env.Timestamp,
			Type:         msgType,
			Body:         body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			c.recordFailure()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	slog.DebugContext(ctx, "Published command",
		"message_type", msgType,
		"exchange", c.exchangeName,
		"queue", c.commandQueue)
	return nil
}

// ConsumeEvents delivers orchestrator events to handler until ctx ends,
// reconnecting with exponential backoff when the broker goes away.
func (c *Client) ConsumeEvents(ctx context.Context, handler Handler) error {
	for attempt := 0; ; attempt++ {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil || !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP consumer disconnected, retrying",
			"error", err,
			"attempt", attempt+1,
			"backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler Handler) error {
	ch, err := c.openChannel()
	if err != nil {
		return err
	}
	msgs, err := ch.Consume(
		c.eventQueue,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming orchestrator events", "queue", c.eventQueue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			handleDelivery(ctx, delivery, handler)
		}
	}
}

// acknowledger is the part of amqp091.Delivery the consume loop needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(ctx context.Context, d amqp091.Delivery, handler Handler) {
	dispatch(ctx, d.Body, d, handler)
}

// dispatch decodes one message body and settles it. Malformed messages and
// ErrDrop are discarded; other handler failures are requeued.
func dispatch(ctx context.Context, body []byte, ack acknowledger, handler Handler) {
	env, err := EnvelopeFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		ack.Nack(false, false)
		return
	}
	if err := handler(ctx, env); err != nil {
		requeue := !errors.Is(err, ErrDrop)
		slog.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			"message_type", env.Type,
			"requeue", requeue)
		ack.Nack(false, requeue)
		return
	}
	ack.Ack(false)
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
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff doubles from one second and caps at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
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
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel closed", "dial"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
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
