package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/ilp3"
	"github.com/totegamma/ilp3/internal/clock"
	"github.com/totegamma/ilp3/internal/domain"
	"github.com/totegamma/ilp3/receiver"
)

var tracer = otel.Tracer("settlement")

const thanksMessage = "thanks for the money!"

type Publisher interface {
	Publish(ctx context.Context, channel string, event domain.SettlementEvent) error
}

// SettlementService fulfills transfers whose condition appears in a fixed
// table. It stands in for a real payout policy when running the receiver
// on its own.
type SettlementService struct {
	fulfillments map[string]string
	publisher    Publisher
	channel      string
	clock        clock.Clock
}

func NewSettlementService(
	fulfillments map[string]string,
	publisher Publisher,
	channel string,
	clk clock.Clock,
) *SettlementService {
	if clk == nil {
		clk = clock.Real()
	}
	return &SettlementService{
		fulfillments: fulfillments,
		publisher:    publisher,
		channel:      channel,
		clock:        clk,
	}
}

func (s *SettlementService) Settle(ctx context.Context, account string, transfer *ilp3.Transfer) (receiver.Outcome, error) {
	ctx, span := tracer.Start(ctx, "Settlement.Service.Settle")
	defer span.End()

	// The body is opaque here, but it must be drained so a streamed
	// request completes.
	if _, err := transfer.Data.ReadAll(); err != nil {
		span.RecordError(err)
		return receiver.Outcome{}, err
	}

	slog.InfoContext(ctx, "receiver got payment",
		slog.String("account", account),
		slog.String("amount", ilp3.FormatAmount(transfer.Amount)),
	)

	now := s.clock.Now()
	fulfillment, known := s.fulfillments[transfer.Condition]
	fulfilled := known && now.Before(transfer.Expiry)
	span.SetAttributes(attribute.Bool("ilp.fulfilled", fulfilled))

	s.publish(ctx, domain.SettlementEvent{
		Account:     account,
		Amount:      ilp3.FormatAmount(transfer.Amount),
		Expiry:      ilp3.FormatExpiry(transfer.Expiry),
		Condition:   transfer.Condition,
		Destination: transfer.Destination,
		Fulfilled:   fulfilled,
		SettledAt:   now,
	})

	if !fulfilled {
		return receiver.Outcome{}, nil
	}
	return receiver.Outcome{
		Fulfillment: fulfillment,
		Data:        ilp3.NewBufferedData([]byte(thanksMessage)),
	}, nil
}

func (s *SettlementService) publish(ctx context.Context, event domain.SettlementEvent) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, s.channel, event)
	if err != nil {
		slog.WarnContext(ctx, "failed to publish settlement event", slog.Any("error", err))
	}
}
