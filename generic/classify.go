package generic

// IsEarnedTransaction reports whether tx counts toward points earned in a cycle.
//
//	purchase, event, adjustment: earned iff amount > 0
//	transfer:                    never (moves points between members, creates none)
//	redemption, unknown:         never
//
// Negative adjustments are excluded, not subtracted.
func IsEarnedTransaction(tx Transaction) bool {
	switch tx.Type {
	case TxPurchase, TxEvent, TxAdjustment:
		return tx.Amount > 0
	case TxTransfer, TxRedemption:
		return false
	default: // TxUnknown
		return false
	}
}
