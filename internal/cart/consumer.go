package cart

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dmtri/stylehub-backend/pkg/db/models"
	"github.com/dmtri/stylehub-backend/pkg/enums"
	"github.com/dmtri/stylehub-backend/pkg/logger"
	"github.com/dmtri/stylehub-backend/pkg/outbox"
	"github.com/dmtri/stylehub-backend/pkg/outbox/payloads"
)

// Consumer drains order.placed events and clears the ordered variants from
// the customer's cart. Cleanup is best effort; a failed event is retried by
// the worker and never affects the committed order.
type Consumer struct {
	repo Repository
	logg *logger.Logger
}

func NewConsumer(repo Repository, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, errors.New("cart repository required")
	}
	return &Consumer{repo: repo, logg: logg}, nil
}

// Handles reports whether the consumer processes the given event type.
func (c *Consumer) Handles(eventType enums.OutboxEventType) bool {
	return eventType == enums.EventOrderPlaced
}

// Consume decodes the enveloped payload and deletes the ordered cart lines.
func (c *Consumer) Consume(ctx context.Context, row models.OutboxEvent) error {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		return err
	}
	var event payloads.OrderPlacedEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		return err
	}

	removed, err := c.repo.DeleteLines(ctx, event.CustomerID, event.VariantIDs)
	if err != nil {
		return err
	}
	if c.logg != nil {
		logCtx := c.logg.WithOrderID(ctx, event.OrderID.String())
		logCtx = c.logg.WithCustomerID(logCtx, event.CustomerID.String())
		logCtx = c.logg.WithFields(logCtx, map[string]any{"removed": removed})
		c.logg.Info(logCtx, "cart lines cleared after checkout")
	}
	return nil
}
