package order

import (
	"errors"
	"strings"
)

type Status string
type PaymentStatus string

const (
	StatusPending    Status = "pending"    // placed, awaiting confirmation
	StatusConfirmed  Status = "confirmed"  // confirmed, usually after payment
	StatusProcessing Status = "processing" // being packed
	StatusShipped    Status = "shipped"    // out for delivery
	StatusDelivered  Status = "delivered"  // customer received the items
	StatusCancelled  Status = "cancelled"  // cancelled while still pending
	StatusReturned   Status = "returned"   // driven by the returns collaborator
	StatusRefunded   Status = "refunded"   // driven by the payment collaborator

	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// rank orders the forward fulfillment chain. Terminal side states are not
// part of the chain.
var rank = map[Status]int{
	StatusPending:    0,
	StatusConfirmed:  1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusDelivered:  4,
}

func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(s)) {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusReturned, StatusRefunded:
		return Status(strings.ToLower(s)), nil
	}
	return "", errors.New("invalid order status")
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(strings.ToLower(s)) {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return PaymentStatus(strings.ToLower(s)), nil
	}
	return "", errors.New("invalid payment status")
}

// CanTransition reports whether moving from s to next is allowed. Any
// forward move along the fulfillment chain is accepted (stock was already
// committed at placement); cancellation only from pending; returns only
// after delivery; refunds only after a return or a cancellation.
func (s Status) CanTransition(next Status) bool {
	switch next {
	case StatusCancelled:
		return s == StatusPending
	case StatusReturned:
		return s == StatusDelivered
	case StatusRefunded:
		return s == StatusReturned || s == StatusCancelled
	}
	from, okFrom := rank[s]
	to, okTo := rank[next]
	return okFrom && okTo && to > from
}
