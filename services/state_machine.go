package services

import (
	apperrors "order-core/errors"
	"order-core/models"
)

// TransitionTable maps each order status to its allowed next statuses. It is
// built once at startup and injected wherever transitions are evaluated;
// nothing mutates it afterwards.
type TransitionTable map[models.OrderStatus][]models.OrderStatus

// NewTransitionTable builds the allowed-next table.
func NewTransitionTable() TransitionTable {
	return TransitionTable{
		models.StatusPending:    {models.StatusConfirmed, models.StatusCanceled, models.StatusFailed},
		models.StatusConfirmed:  {models.StatusProcessing, models.StatusCanceled},
		models.StatusProcessing: {models.StatusShipping, models.StatusCanceled},
		models.StatusShipping:   {models.StatusDelivered, models.StatusFailed},
		models.StatusDelivered:  {models.StatusCompleted, models.StatusRefunded},
		models.StatusCompleted:  {models.StatusRefunded},
		models.StatusPaid:       {models.StatusConfirmed},
		models.StatusFailed:     {models.StatusPending, models.StatusCanceled},
		models.StatusRefunded:   {},
		models.StatusCanceled:   {},
	}
}

// Validate fails with InvalidTransitionError when next is not in the
// allowed-next set of current. The error enumerates the legal targets.
func (t TransitionTable) Validate(current, next models.OrderStatus) *apperrors.InvalidTransitionError {
	for _, allowed := range t[current] {
		if allowed == next {
			return nil
		}
	}
	return &apperrors.InvalidTransitionError{
		From:    current,
		To:      next,
		Allowed: t[current],
	}
}

// IsTerminal reports whether a status has no outgoing transitions.
func (t TransitionTable) IsTerminal(status models.OrderStatus) bool {
	return len(t[status]) == 0
}

// RestoresStock reports whether landing on status returns every order
// item's quantity to the variant's stock counter.
func RestoresStock(status models.OrderStatus) bool {
	switch status {
	case models.StatusCanceled, models.StatusRefunded, models.StatusFailed:
		return true
	}
	return false
}

// CanCustomerCancel is the stricter customer-facing predicate: cancellation
// is forbidden once fulfilment has started. Administrators are bound only by
// the base table.
func CanCustomerCancel(current models.OrderStatus) bool {
	switch current {
	case models.StatusShipping, models.StatusDelivered, models.StatusCompleted,
		models.StatusRefunded, models.StatusCanceled:
		return false
	}
	return true
}

// AwaitsPayment reports whether a remote payment confirmation may still
// settle the order. Anything past PENDING (or a retryable FAILED) has either
// been paid already or left the payment window, and a replayed confirmation
// must be a no-op.
func AwaitsPayment(current models.OrderStatus) bool {
	return current == models.StatusPending || current == models.StatusFailed
}
