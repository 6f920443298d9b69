package rewards

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/club-loyalty/generic"
)

// =============================================================================
// PURCHASE EARNING
// =============================================================================

// PointsPerDollar is the base purchase rate before the tier multiplier.
var PointsPerDollar = decimal.NewFromInt(1)

// PointsForPurchase converts a purchase amount into whole points, applying
// the tier's multiplier. Fractions are floored; refunds (negative amounts)
// earn nothing.
func PointsForPurchase(amount decimal.Decimal, tier generic.TierKey) generic.Points {
	if !amount.IsPositive() {
		return 0
	}
	pts := amount.Mul(PointsPerDollar).Mul(PerksFor(tier).PointsMultiplier).Floor()
	return generic.Points(pts.IntPart())
}

// PurchaseTransaction builds the ledger credit for a purchase.
func PurchaseTransaction(memberID generic.MemberID, orderID string, amount decimal.Decimal, tier generic.TierKey, at time.Time) generic.Transaction {
	return generic.Transaction{
		ID:          generic.TransactionID("tx-purchase-" + orderID),
		MemberID:    memberID,
		Type:        generic.TxPurchase,
		Amount:      PointsForPurchase(amount, tier),
		OccurredAt:  at,
		Reason:      fmt.Sprintf("Purchase $%s", amount.StringFixed(2)),
		ReferenceID: orderID,
	}
}

// =============================================================================
// EVENT EARNING
// =============================================================================

// ClubEvent is an event members earn points for attending.
type ClubEvent struct {
	ID     string
	Name   string
	Points generic.Points
}

var (
	EventWelcomeSocial = ClubEvent{ID: "welcome-social", Name: "Welcome Social", Points: 100}
	EventWorkshop      = ClubEvent{ID: "workshop", Name: "Skills Workshop", Points: 250}
	EventVolunteerDay  = ClubEvent{ID: "volunteer-day", Name: "Volunteer Day", Points: 500}
	EventGala          = ClubEvent{ID: "gala", Name: "End-of-Year Gala", Points: 1000}
)

// AttendanceTransaction builds the ledger credit for attending ev.
func AttendanceTransaction(memberID generic.MemberID, ev ClubEvent, at time.Time) generic.Transaction {
	return generic.Transaction{
		ID:          generic.TransactionID(fmt.Sprintf("tx-event-%s-%s-%s", ev.ID, memberID, at.Format("20060102"))),
		MemberID:    memberID,
		Type:        generic.TxEvent,
		Amount:      ev.Points,
		OccurredAt:  at,
		Reason:      ev.Name,
		ReferenceID: ev.ID,
	}
}

// TransferTransactions builds the matching sender debit and receiver credit.
// Neither side counts as earned.
func TransferTransactions(transferID string, from, to generic.MemberID, amount generic.Points, at time.Time) (debit, credit generic.Transaction) {
	debit = generic.Transaction{
		ID:          generic.TransactionID("tx-transfer-out-" + transferID),
		MemberID:    from,
		Type:        generic.TxTransfer,
		Amount:      -amount,
		OccurredAt:  at,
		Reason:      fmt.Sprintf("Transfer to %s", to),
		ReferenceID: transferID,
	}
	credit = generic.Transaction{
		ID:          generic.TransactionID("tx-transfer-in-" + transferID),
		MemberID:    to,
		Type:        generic.TxTransfer,
		Amount:      amount,
		OccurredAt:  at,
		Reason:      fmt.Sprintf("Transfer from %s", from),
		ReferenceID: transferID,
	}
	return debit, credit
}
