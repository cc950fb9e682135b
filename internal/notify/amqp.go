package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Reconnect backoff after the broker drops the connection.
const (
	minRedialBackoff = 1 * time.Second
	maxRedialBackoff = 30 * time.Second
)

// ErrBrokerUnavailable is returned by Publish while waiting out the redial backoff.
var ErrBrokerUnavailable = errors.New("rabbitmq unavailable")

// AMQPPublisher publishes events to a durable topic exchange, one routing key per event type.
// A dropped connection is redialled on the next Publish, backing off between failed attempts.
type AMQPPublisher struct {
	url      string
	exchange string

	mu       sync.Mutex // guards everything below
	conn     *amqp.Connection
	ch       *amqp.Channel
	backoff  time.Duration
	retryAt  time.Time
	closed   bool
	dialFunc func(url string) (*amqp.Connection, error)
}

// DialAMQP connects to the broker at url and declares exchange.
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, exchange: exchange, dialFunc: amqp.Dial}
	if err := p.connectAndDeclare(); err != nil {
		return nil, err
	}
	return p, nil
}

// connectAndDeclare replaces any old connection. Caller holds mu (or owns p).
func (p *AMQPPublisher) connectAndDeclare() error {
	p.closeConn()

	conn, err := p.dialFunc(p.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange %q: %w", p.exchange, err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *AMQPPublisher) closeConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// ensureChannel redials when the connection or channel has gone away. Caller holds mu.
func (p *AMQPPublisher) ensureChannel(now time.Time) error {
	if p.closed {
		return amqp.ErrClosed
	}
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	if now.Before(p.retryAt) {
		return ErrBrokerUnavailable
	}

	if err := p.connectAndDeclare(); err != nil {
		p.backoff = nextBackoff(p.backoff)
		p.retryAt = now.Add(p.backoff)
		log.Error().Err(err).Dur("backoff", p.backoff).Msg("RabbitMQ reconnect failed; retrying")
		return err
	}
	p.backoff, p.retryAt = 0, time.Time{}
	log.Info().Str("exchange", p.exchange).Msg("RabbitMQ reconnected")
	return nil
}

// nextBackoff doubles prev, starting at minRedialBackoff and capped at maxRedialBackoff.
func nextBackoff(prev time.Duration) time.Duration {
	if prev < minRedialBackoff {
		return minRedialBackoff
	}
	return min(prev*2, maxRedialBackoff)
}

// Publish implements Publisher.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.ID.String(),
		Type:         ev.Type,
		AppId:        "league-registration",
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureChannel(time.Now()); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, ev.Type, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close shuts the channel and connection. Publish fails afterwards.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var errs []error
	if p.ch != nil && !p.ch.IsClosed() {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	p.ch, p.conn = nil, nil
	return errors.Join(errs...)
}
