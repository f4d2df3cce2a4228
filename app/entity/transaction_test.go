package entity

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{TransactionStatusPending, TransactionStatusPaid, true},
		{TransactionStatusPending, TransactionStatusExpired, true},
		{TransactionStatusPending, TransactionStatusRefunded, true},
		{TransactionStatusPaid, TransactionStatusRefunded, true},
		{TransactionStatusPaid, TransactionStatusExpired, false},
		{TransactionStatusExpired, TransactionStatusPaid, false},
		{TransactionStatusRefunded, TransactionStatusPaid, false},
		{TransactionStatusPaid, TransactionStatusPending, false},
		{TransactionStatusPending, "UNKNOWN", false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTransactionPatchMergeOverridesSetFields(t *testing.T) {
	paidAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	method := "bank_transfer"

	base := StatusPatch(TransactionStatusPending)
	merged := base.Merge(TransactionPatch{PaymentMethod: &method}).Merge(StatusPatch(TransactionStatusPaid)).Merge(TransactionPatch{PaidAt: &paidAt})

	if *merged.Status != TransactionStatusPaid {
		t.Fatalf("expected status PAID, got %s", *merged.Status)
	}
	if *merged.PaymentMethod != method || !merged.PaidAt.Equal(paidAt) {
		t.Fatalf("unexpected merged patch: %+v", merged)
	}
	if *base.Status != TransactionStatusPending {
		t.Fatal("merge must not modify the receiver")
	}
}

func TestTransactionPatchApplyDefaultPaymentMethod(t *testing.T) {
	now := time.Now().UTC()
	sentinel := PaymentMethodExpired
	patch := StatusPatch(TransactionStatusExpired).Merge(TransactionPatch{DefaultPaymentMethod: &sentinel})

	fresh := patch.Apply(Transaction{Status: TransactionStatusPending}, now)
	if fresh.Status != TransactionStatusExpired || fresh.PaymentMethod == nil || *fresh.PaymentMethod != PaymentMethodExpired {
		t.Fatalf("unexpected result: %+v", fresh)
	}

	existing := "gopay"
	withMethod := patch.Apply(Transaction{Status: TransactionStatusPending, PaymentMethod: &existing}, now)
	if *withMethod.PaymentMethod != "gopay" {
		t.Fatalf("default payment method must not override a recorded one, got %s", *withMethod.PaymentMethod)
	}
	if !withMethod.UpdatedAt.Equal(now) {
		t.Fatal("expected updated_at to be set")
	}
}

func TestTransactionPatchIsEmpty(t *testing.T) {
	if !(TransactionPatch{}).IsEmpty() {
		t.Fatal("expected empty patch")
	}
	if StatusPatch(TransactionStatusPaid).IsEmpty() {
		t.Fatal("expected non-empty patch")
	}
}
