package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/gradebook-service/internal/events"
)

const (
	PublisherKafka = "kafka"
	PublisherMock  = "mock"
)

// EventConfig selects where grade events go
type EventConfig struct {
	Enabled      bool
	Publisher    string
	KafkaBrokers string
	GradeTopic   string
}

// GetKafkaBrokers splits the comma separated broker list, skipping blanks
func (c *EventConfig) GetKafkaBrokers() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// CreateEventPublisher returns the in-memory publisher when events are
// disabled or the mock is requested. A kafka publisher needs at least one
// broker and a topic.
func (c *EventConfig) CreateEventPublisher(logger *slog.Logger) (events.EventPublisher, error) {
	if !c.Enabled {
		logger.Info("Grade events disabled, keeping them in memory")
		return events.NewMockEventPublisher(logger), nil
	}

	switch c.Publisher {
	case PublisherKafka:
		brokers := c.GetKafkaBrokers()
		if len(brokers) == 0 {
			return nil, fmt.Errorf("KAFKA_BROKERS is empty")
		}
		if c.GradeTopic == "" {
			return nil, fmt.Errorf("GRADE_EVENTS_TOPIC is empty")
		}

		logger.Info("Publishing grade events to Kafka", "brokers", brokers, "topic", c.GradeTopic)
		return events.NewKafkaEventPublisher(events.PublisherConfig{
			KafkaBrokers: brokers,
			TopicName:    c.GradeTopic,
			Logger:       logger,
		})
	case PublisherMock:
		return events.NewMockEventPublisher(logger), nil
	default:
		return nil, fmt.Errorf("unsupported EVENTS_PUBLISHER %q", c.Publisher)
	}
}
