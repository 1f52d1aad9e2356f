package services

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"

	"storefront/internal/domain"
	rabbit "storefront/internal/infra/rabbitmq"
	"storefront/internal/telemetry"
)

// OrderCache is a read-through cache for order detail views.
type OrderCache interface {
	GetOrLoad(ctx context.Context, id uint64, load func(context.Context) (*domain.Order, error)) (*domain.Order, error)
	Invalidate(ctx context.Context, id uint64)
}

// OrderFinalizer confirms a pending order once its payment is accepted.
type OrderFinalizer interface {
	FinalizeOrder(ctx context.Context, orderID uint64) error
}

type noCache struct{}

func (noCache) GetOrLoad(ctx context.Context, _ uint64, load func(context.Context) (*domain.Order, error)) (*domain.Order, error) {
	return load(ctx)
}

func (noCache) Invalidate(context.Context, uint64) {}

var tracer = otel.Tracer(telemetry.InstrumentationName)

// publishEvent runs after commit. Delivery failures are logged, never returned.
func publishEvent(ctx context.Context, pub rabbit.PublisherInterface, log *slog.Logger, pattern string, data any) {
	if err := pub.Publish(ctx, pattern, data); err != nil {
		log.WarnContext(ctx, "event publish failed", "pattern", pattern, "error", err)
	}
}
