package orders

import (
	"time"

	"github.com/labtrace/lims/pkg/types"
)

// IsOverdue reports whether an in-flight order has exceeded its test's
// expected duration window. Orders in a finished or cancelled state are never
// overdue. A nil catalog entry means the duration is unknown; the evaluator
// fails open and returns false rather than flagging the order.
func IsOverdue(order *types.LabOrder, entry *types.TestCatalogEntry, now time.Time) bool {
	switch order.Status {
	case types.StatusCompleted, types.StatusVerified, types.StatusCancelled:
		return false
	}

	if entry == nil || entry.ExpectedDurationMinutes <= 0 {
		return false
	}

	deadline := order.RequestedAt.Add(time.Duration(entry.ExpectedDurationMinutes) * time.Minute)
	return now.After(deadline)
}
