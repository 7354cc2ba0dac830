package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	// ErrBrokerUnavailable is returned while the circuit breaker is open.
	ErrBrokerUnavailable = errors.New("event broker unavailable")
	// ErrQueueFull is returned when events arrive faster than the broker takes them.
	ErrQueueFull = errors.New("event queue full")
)

const (
	queueSize    = 1024
	writeTimeout = 5 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic from a background worker, so
// Publish never waits on the broker. A circuit breaker stops the worker from
// stalling on a broker that keeps failing.
type KafkaPublisher struct {
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger

	queue chan Event
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: writeTimeout,
	}
	return newKafkaPublisher(w, log)
}

func newKafkaPublisher(w messageWriter, log *zap.Logger) *KafkaPublisher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-events",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})
	p := &KafkaPublisher{
		writer:  w,
		breaker: cb,
		log:     log,
		queue:   make(chan Event, queueSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

var _ Publisher = (*KafkaPublisher)(nil)

// Publish queues e for delivery. It only fails when the queue is full or the
// publisher is closed.
func (p *KafkaPublisher) Publish(_ context.Context, e Event) error {
	select {
	case <-p.quit:
		return ErrBrokerUnavailable
	default:
	}
	select {
	case p.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close flushes queued events and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.once.Do(func() { close(p.quit) })
	<-p.done
	return p.writer.Close()
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	for {
		select {
		case e := <-p.queue:
			p.deliver(e)
		case <-p.quit:
			for {
				select {
				case e := <-p.queue:
					p.deliver(e)
				default:
					return
				}
			}
		}
	}
}

func (p *KafkaPublisher) deliver(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := p.write(ctx, e); err != nil {
		p.log.Warn("write event failed", zap.String("type", e.Type), zap.Error(err))
	}
}

func (p *KafkaPublisher) write(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.writer.WriteMessages(ctx, kafkago.Message{
			Key:   []byte(e.Key()),
			Value: b,
			Time:  e.OccurredAt,
		})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrBrokerUnavailable
	}
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}
