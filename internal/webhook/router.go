package webhook

import (
	"context"
	"fmt"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/dkolesni/billing-sync/pkg/logger"
)

// Reconciler is the state-transition side of the pipeline. The router
// depends only on this narrow contract, never on storage.
type Reconciler interface {
	// ApplyCheckout записывает результат завершенного checkout в аккаунт
	ApplyCheckout(ctx context.Context, eventID string, data domain.CheckoutCompletedData) error

	// ApplyStatusChange применяет провайдерский статус подписки к аккаунту
	ApplyStatusChange(ctx context.Context, eventID string, data domain.SubscriptionStatusData) error
}

// Router dispatches decoded events to the reconciler. Pure dispatch
// table: adding a kind costs one case plus one handler.
type Router struct {
	reconciler Reconciler
	log        *logger.Logger
}

// NewRouter создает новый роутер вебхук-событий
func NewRouter(reconciler Reconciler, log *logger.Logger) *Router {
	return &Router{
		reconciler: reconciler,
		log:        log,
	}
}

// Route dispatches strictly on event.Kind. Unconsumed kinds succeed
// without side effects so the delivery gets acknowledged.
func (r *Router) Route(ctx context.Context, event domain.Event) error {
	switch event.Kind {
	case domain.EventCheckoutCompleted:
		return r.reconciler.ApplyCheckout(ctx, event.ID, *event.Checkout)

	case domain.EventSubscriptionUpdated:
		return r.reconciler.ApplyStatusChange(ctx, event.ID, *event.Subscription)

	case domain.EventSubscriptionDeleted:
		// A deleted subscription is canceled no matter what status the
		// payload reports.
		data := *event.Subscription
		data.Status = string(domain.SubscriptionStatusCanceled)
		return r.reconciler.ApplyStatusChange(ctx, event.ID, data)

	case domain.EventOther:
		r.log.Debugw("Ignoring unconsumed webhook event", "event_id", event.ID)
		return nil

	default:
		// Unreachable as long as the decoder only emits the closed kind
		// set above.
		return fmt.Errorf("webhook: unroutable event kind %q", event.Kind)
	}
}
