package sensor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by the ingester.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Subscriber is the part of the MQTT client the ingester needs.
// *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Ingester feeds MQTT state messages into sensors.
type Ingester struct {
	registry *Registry
	logger   Logger
	qos      byte

	mu     sync.Mutex
	topics []string
}

// NewIngester creates an ingester for the given registry.
func NewIngester(registry *Registry, qos byte) *Ingester {
	return &Ingester{
		registry: registry,
		logger:   noopLogger{},
		qos:      qos,
	}
}

// SetLogger sets the logger for the ingester.
func (in *Ingester) SetLogger(logger Logger) {
	in.logger = logger
}

// Start subscribes to the state topic of every sensor that has one.
// Sensors sharing a topic all receive the message.
//
// Returns:
//   - error: The first subscription failure, wrapped
func (in *Ingester) Start(sub Subscriber) error {
	byTopic := make(map[string][]Sensor)
	var topics []string
	for _, s := range in.registry.List() {
		if s.Topic() == "" {
			continue
		}
		if _, ok := byTopic[s.Topic()]; !ok {
			topics = append(topics, s.Topic())
		}
		byTopic[s.Topic()] = append(byTopic[s.Topic()], s)
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	for _, topic := range topics {
		if err := sub.Subscribe(topic, in.qos, in.handler(byTopic[topic])); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		in.topics = append(in.topics, topic)
		in.logger.Debug("subscribed to sensor topic", "topic", topic, "sensors", len(byTopic[topic]))
	}

	in.logger.Info("sensor ingest started", "topics", len(topics))
	return nil
}

// Stop unsubscribes every topic Start subscribed, including those of a
// Start that failed part way. Sensors keep their last state.
//
// Returns:
//   - error: Every unsubscribe failure, joined
func (in *Ingester) Stop(sub Subscriber) error {
	in.mu.Lock()
	topics := in.topics
	in.topics = nil
	in.mu.Unlock()

	var errs []error
	for _, topic := range topics {
		if err := sub.Unsubscribe(topic); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribing from %s: %w", topic, err))
		}
	}
	in.logger.Info("sensor ingest stopped", "topics", len(topics))
	return errors.Join(errs...)
}

func (in *Ingester) handler(sensors []Sensor) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		var errs []error
		for _, s := range sensors {
			if err := s.Update(payload); err != nil {
				in.logger.Warn("dropping sensor payload", "sensor", s.ID(), "topic", topic, "error", err)
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
