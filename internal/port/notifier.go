package port

import (
	"context"

	"github.com/rl1809/rocket-cart/internal/core/domain"
)

// Notifier delivers user-facing messages. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, message string, kind domain.NotificationKind)
}

// CartObserver is called after every committed mutation.
type CartObserver interface {
	CartChanged(ctx context.Context, cart domain.Cart)
}
