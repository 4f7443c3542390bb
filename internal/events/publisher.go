package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fjod/med_store/internal/cart"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "cart-events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type eventItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type CartChangedEvent struct {
	CartKey    string      `json:"cart_key"`
	Op         cart.Op     `json:"op"`
	Items      []eventItem `json:"entries"`
	Count      int         `json:"count"`
	Total      string      `json:"total"`
	Persisted  bool        `json:"persisted"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Publisher forwards cart changes to Kafka. Handle never blocks the cart:
// events are queued and written by Run; a full queue drops the event.
type Publisher struct {
	writer  messageWriter
	queue   chan kafka.Message
	timeout time.Duration
	logger  *slog.Logger
}

func NewPublisher(topic string, logger *slog.Logger, brokers ...string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, logger)
}

func newPublisher(w messageWriter, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		writer:  w,
		queue:   make(chan kafka.Message, 1024),
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Handle is a cart.Listener.
func (p *Publisher) Handle(change cart.Change) {
	msg, err := toMessage(change)
	if err != nil {
		p.logger.Error("failed to encode cart event", "cart", change.Key, "error", err)
		return
	}

	select {
	case p.queue <- msg:
	default:
		p.logger.Warn("cart event queue full, dropping event", "cart", change.Key, "op", change.Op)
	}
}

// Run writes queued events until ctx is done, then flushes whatever is
// still queued within one publish timeout. Writes are bounded by the
// publish timeout, not by ctx.
func (p *Publisher) Run(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	for {
		select {
		case msg := <-p.queue:
			p.publish(base, msg)
		case <-ctx.Done():
			p.drain(base)
			return
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	flushed := 0
	for {
		select {
		case msg := <-p.queue:
			if ctx.Err() != nil {
				p.logger.Warn("cart event flush timed out", "flushed", flushed, "dropped", len(p.queue)+1)
				return
			}
			p.publish(ctx, msg)
			flushed++
		default:
			if flushed > 0 {
				p.logger.Info("flushed queued cart events", "count", flushed)
			}
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, msg kafka.Message) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish cart event", "cart", string(msg.Key), "error", err)
	}
}

func (p *Publisher) Close() {
	if err := p.writer.Close(); err != nil {
		p.logger.Error("error closing kafka writer", "error", err)
	}
}

func toMessage(change cart.Change) (kafka.Message, error) {
	event := CartChangedEvent{
		CartKey:    change.Key,
		Op:         change.Op,
		Items:      make([]eventItem, 0, len(change.Entries)),
		Count:      change.Count,
		Total:      change.Total.StringFixed(2),
		Persisted:  change.PersistErr == nil,
		OccurredAt: time.Now().UTC(),
	}
	for _, e := range change.Entries {
		event.Items = append(event.Items, eventItem{
			ProductID: e.Product.ID,
			Name:      e.Product.Name,
			Quantity:  e.Quantity,
			UnitPrice: e.Product.Price.StringFixed(2),
		})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(change.Key),
		Value: payload,
	}, nil
}
