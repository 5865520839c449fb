package booking

// RefundTier identifies which cancellation tier applied.
type RefundTier string

const (
	RefundTierFull    RefundTier = "full_refund_48h"
	RefundTierPartial RefundTier = "partial_refund_50p"
	RefundTierNone    RefundTier = "none"
)

// Cancellation lead-time cutoffs, in hours before start.
const (
	fullRefundCutoffHours    = 48
	partialRefundCutoffHours = 2
)

// Refund is the outcome of the cancellation refund policy.
type Refund struct {
	AmountCents int64      `json:"amount_cents"`
	Tier        RefundTier `json:"tier"`
}

// ComputeRefund applies the tiered cancellation policy. Tiers are evaluated
// in order, first match wins: >=48h before start refunds everything, >=2h
// refunds half (floored), anything closer refunds nothing.
//
// hoursUntilStart must be non-negative; cancellations of already-started
// bookings are rejected before pricing the refund.
func ComputeRefund(totalAmountCents int64, hoursUntilStart float64) Refund {
	switch {
	case hoursUntilStart >= fullRefundCutoffHours:
		return Refund{AmountCents: totalAmountCents, Tier: RefundTierFull}
	case hoursUntilStart >= partialRefundCutoffHours:
		return Refund{AmountCents: totalAmountCents / 2, Tier: RefundTierPartial}
	default:
		return Refund{AmountCents: 0, Tier: RefundTierNone}
	}
}
