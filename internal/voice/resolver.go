package voice

import (
	"context"
	"fmt"
	"time"

	"github.com/glintcart/glintbot/internal/backend"
	"github.com/glintcart/glintbot/internal/domain"
	"github.com/glintcart/glintbot/internal/logging"
)

// ConfirmationStore is the pending-confirmation ledger. Delete reports
// whether an entry was actually removed so resolution can be made
// exactly-once under replayed events.
type ConfirmationStore interface {
	Put(ctx context.Context, pc domain.PendingConfirmation) error
	ListPending(ctx context.Context) ([]domain.PendingConfirmation, error)
	Delete(ctx context.Context, orderID string) (bool, error)
}

// Resolver turns a completed confirmation call into an order outcome.
// It matches the call against the pending ledger, classifies the
// transcript, consumes the ledger entry, and notifies the storefront.
type Resolver struct {
	confirmations ConfirmationStore
	classifier    TranscriptClassifier
	notifier      backend.OutboundNotifier
	log           *logging.Logger
	now           func() time.Time
}

func NewResolver(confirmations ConfirmationStore, classifier TranscriptClassifier, notifier backend.OutboundNotifier, log *logging.Logger) *Resolver {
	return &Resolver{
		confirmations: confirmations,
		classifier:    classifier,
		notifier:      notifier,
		log:           log.Sub("resolver"),
		now:           time.Now,
	}
}

// Resolve decides the confirmation outcome for a finished call. It
// returns nil when no pending confirmation matches the call, which is
// also the replay case: once an entry is consumed, the same call event
// resolves nothing further.
//
// Matching scans every pending entry and picks the first whose phone
// matches the caller's. There is no stored call-to-order mapping, so
// two simultaneous confirmation calls to the same customer cannot be
// told apart; a known limitation carried over deliberately.
func (r *Resolver) Resolve(ctx context.Context, call *domain.CallRecord, transcript string) (*domain.ConfirmationOutcome, error) {
	pending, err := r.confirmations.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending confirmations: %w", err)
	}

	// Sweep expired entries first so they can never match.
	now := r.now()
	live := pending[:0]
	for _, pc := range pending {
		if pc.Expired(now) {
			if _, derr := r.confirmations.Delete(ctx, pc.OrderID); derr != nil {
				r.log.Error().Err(derr).Str("order_id", pc.OrderID).Msg("removing expired confirmation failed")
			}
			continue
		}
		live = append(live, pc)
	}

	var match *domain.PendingConfirmation
	for i := range live {
		if domain.SamePhone(live[i].CustomerPhone, call.Phone) {
			match = &live[i]
			break
		}
	}
	if match == nil {
		r.log.Debug().Str("call_id", call.ID).Msg("no pending confirmation matches call")
		return nil, nil
	}

	outcome := r.classify(call, transcript, match.OrderID)

	removed, err := r.confirmations.Delete(ctx, match.OrderID)
	if err != nil {
		return nil, fmt.Errorf("consuming confirmation for order %s: %w", match.OrderID, err)
	}
	if !removed {
		// Another delivery consumed it between our scan and delete.
		r.log.Debug().Str("order_id", match.OrderID).Msg("confirmation already consumed")
		return nil, nil
	}

	r.log.Info().
		Str("order_id", outcome.OrderID).
		Str("call_id", call.ID).
		Bool("confirmed", outcome.Confirmed).
		Str("notes", outcome.Notes).
		Msg("order confirmation resolved")

	if r.notifier != nil {
		if err := r.notifier.ConfirmOrder(ctx, outcome.OrderID, outcome.Confirmed, outcome.Notes); err != nil {
			// The ledger entry is gone either way; the outcome stands and
			// the failure is left to the storefront's reconciliation.
			r.log.Error().Err(err).Str("order_id", outcome.OrderID).Msg("notifying storefront failed")
		}
	}
	return outcome, nil
}

func (r *Resolver) classify(call *domain.CallRecord, transcript, orderID string) *domain.ConfirmationOutcome {
	if !Connected(call.Status) {
		return &domain.ConfirmationOutcome{OrderID: orderID, Confirmed: false, Notes: "not answered"}
	}
	switch r.classifier.Classify(transcript) {
	case TranscriptConfirmed:
		return &domain.ConfirmationOutcome{OrderID: orderID, Confirmed: true, Notes: "confirmed on call"}
	case TranscriptRejected:
		return &domain.ConfirmationOutcome{OrderID: orderID, Confirmed: false, Notes: "rejected on call"}
	default:
		return &domain.ConfirmationOutcome{OrderID: orderID, Confirmed: false, Notes: "unclear"}
	}
}
