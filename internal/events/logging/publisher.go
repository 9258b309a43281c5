// Package logging publishes events to a slog logger. The server uses it when
// no Kafka brokers are configured.
package logging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"
	interfaces "github.com/sheikh-saqib/dao-treasury-ledger/internal/interfaces"
)

type Publisher struct {
	logger *slog.Logger
}

// NewPublisher writes every event at info level through logger.
func NewPublisher(logger *slog.Logger) *Publisher {
	return &Publisher{logger: logger}
}

// Publish logs the topic and the JSON form of event. Nothing is retained.
func (p *Publisher) Publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "encode %s event", topic)
	}
	p.logger.InfoContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("payload", string(payload)),
	)
	return nil
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
