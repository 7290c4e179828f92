package delivery

import (
	"time"

	"github.com/pos/backend/internal/domain/integration"
)

// Just Eat acceptance windows by how far ahead the order is due
var (
	justEatSameDayDeadline = integration.AcceptanceDeadline{Timeout: 10, Unit: integration.DeadlineUnitMinutes}
	justEatNextDayDeadline = integration.AcceptanceDeadline{Timeout: 2, Unit: integration.DeadlineUnitHours}
	justEatFurtherDeadline = integration.AcceptanceDeadline{Timeout: 24, Unit: integration.DeadlineUnitHours}
)

// ComputeAcceptanceDeadline returns the Just Eat acceptance window for an order placed at
// placedAt and due at deliverAt. Calendar days are compared in placedAt's location.
// A zero deliverAt, or one before placedAt, uses the same-day window.
func ComputeAcceptanceDeadline(placedAt, deliverAt time.Time) integration.AcceptanceDeadline {
	if deliverAt.IsZero() || deliverAt.Before(placedAt) {
		return justEatSameDayDeadline
	}
	deliverAt = deliverAt.In(placedAt.Location())

	switch {
	case sameDate(placedAt, deliverAt):
		return justEatSameDayDeadline
	case sameDate(placedAt.AddDate(0, 0, 1), deliverAt):
		return justEatNextDayDeadline
	default:
		return justEatFurtherDeadline
	}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
