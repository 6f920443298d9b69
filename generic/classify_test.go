package generic_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/club-loyalty/generic"
)

func TestIsEarnedTransaction(t *testing.T) {
	// GIVEN: Every transaction type with positive, zero and negative amounts
	// WHEN: Classifying
	// THEN: Only positive purchase, event and adjustment entries are earned;
	//       unknown and out-of-range types never are

	earning := map[generic.TransactionType]bool{
		generic.TxPurchase:   true,
		generic.TxEvent:      true,
		generic.TxAdjustment: true,
	}
	types := append(generic.TransactionTypes(), generic.TxUnknown, generic.TransactionType(200))

	for _, typ := range types {
		for _, amount := range []generic.Points{250, 1, 0, -1, -250} {
			t.Run(fmt.Sprintf("%s/%d", typ, amount), func(t *testing.T) {
				tx := generic.Transaction{Type: typ, Amount: amount}
				want := earning[typ] && amount > 0
				assert.Equal(t, want, generic.IsEarnedTransaction(tx))
			})
		}
	}
}

func TestParseTransactionType(t *testing.T) {
	// GIVEN: Wire names in various cases
	// WHEN: Parsing
	// THEN: Known names round-trip, anything else is TxUnknown

	for _, typ := range generic.TransactionTypes() {
		got, ok := generic.ParseTransactionType(typ.String())
		assert.True(t, ok)
		assert.Equal(t, typ, got)
	}

	got, ok := generic.ParseTransactionType("  Purchase ")
	assert.True(t, ok)
	assert.Equal(t, generic.TxPurchase, got)

	got, ok = generic.ParseTransactionType("cashback")
	assert.False(t, ok)
	assert.Equal(t, generic.TxUnknown, got)
	assert.Equal(t, "unknown", generic.TransactionType(200).String())
}
