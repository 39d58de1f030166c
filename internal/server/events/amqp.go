package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// confirmPublisher publishes one message and waits for the broker's confirm.
// IsClosed reports a connection or channel the broker has shut.
type confirmPublisher interface {
	PublishConfirmed(ctx context.Context, exchange, key string, msg amqp.Publishing) (bool, error)
	IsClosed() bool
	Close() error
}

type amqpChannel struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed atomic.Bool
}

// watch flips closed once either the connection or the channel goes away.
func (c *amqpChannel) watch() {
	connClosed := c.conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := c.ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		select {
		case <-connClosed:
		case <-chClosed:
		}
		c.closed.Store(true)
	}()
}

func (c *amqpChannel) IsClosed() bool {
	return c.closed.Load() || c.ch.IsClosed()
}

func (c *amqpChannel) PublishConfirmed(ctx context.Context, exchange, key string, msg amqp.Publishing) (bool, error) {
	dc, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return false, err
	}
	return dc.WaitContext(ctx)
}

func (c *amqpChannel) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

var dialAMQP = func(url, exchange string) (confirmPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp confirm mode: %w", err)
	}
	c := &amqpChannel{conn: conn, ch: ch}
	c.watch()
	return c, nil
}

// AMQPPublisher publishes persistent JSON messages to a durable topic
// exchange with publisher confirms. A nack is reported as accepted=false.
//
// A connection lost to a broker restart is redialled on the next Publish;
// each Publish makes a single attempt.
type AMQPPublisher struct {
	url      string
	exchange string

	mu   sync.Mutex
	pub  confirmPublisher
	shut bool
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	pub, err := dialAMQP(url, exchange)
	if err != nil {
		return nil, err
	}
	return &AMQPPublisher{url: url, exchange: exchange, pub: pub}, nil
}

// channel returns a live publisher, dialling a new one if the current one
// was closed.
func (p *AMQPPublisher) channel() (confirmPublisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shut {
		return nil, amqp.ErrClosed
	}
	if p.pub != nil && !p.pub.IsClosed() {
		return p.pub, nil
	}
	if p.pub != nil {
		_ = p.pub.Close()
		p.pub = nil
	}

	pub, err := dialAMQP(p.url, p.exchange)
	if err != nil {
		return nil, err
	}
	p.pub = pub
	return pub, nil
}

// drop forgets pub so the next Publish redials.
func (p *AMQPPublisher) drop(pub confirmPublisher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pub == pub {
		_ = pub.Close()
		p.pub = nil
	}
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload []byte) (bool, error) {
	pub, err := p.channel()
	if err != nil {
		return false, fmt.Errorf("amqp publish %s: %w", routingKey, err)
	}

	msg := amqp.Publishing{
		MessageId:    uuid.NewString(),
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         routingKey,
		Body:         payload,
	}
	ok, err := pub.PublishConfirmed(ctx, p.exchange, routingKey, msg)
	if err != nil {
		if errors.Is(err, amqp.ErrClosed) || pub.IsClosed() {
			p.drop(pub)
		}
		return false, fmt.Errorf("amqp publish %s: %w", routingKey, err)
	}
	return ok, nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shut = true
	if p.pub == nil {
		return nil
	}
	err := p.pub.Close()
	p.pub = nil
	return err
}
