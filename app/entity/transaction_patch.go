package entity

import "time"

// TransactionPatch is a partial update of a transaction's mutable state.
// Nil fields are left untouched. DefaultPaymentMethod only applies when no
// payment method has been recorded yet.
type TransactionPatch struct {
	Status               *string
	PaymentMethod        *string
	DefaultPaymentMethod *string
	PaidAt               *time.Time
}

func (p TransactionPatch) IsEmpty() bool {
	return p.Status == nil && p.PaymentMethod == nil && p.DefaultPaymentMethod == nil && p.PaidAt == nil
}

// Merge returns a patch where fields set in next override those in p.
func (p TransactionPatch) Merge(next TransactionPatch) TransactionPatch {
	out := p
	if next.Status != nil {
		out.Status = next.Status
	}
	if next.PaymentMethod != nil {
		out.PaymentMethod = next.PaymentMethod
	}
	if next.DefaultPaymentMethod != nil {
		out.DefaultPaymentMethod = next.DefaultPaymentMethod
	}
	if next.PaidAt != nil {
		out.PaidAt = next.PaidAt
	}
	return out
}

// Apply returns a copy of tx with the patch applied. tx itself is not modified.
func (p TransactionPatch) Apply(tx Transaction, now time.Time) Transaction {
	out := tx
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.PaymentMethod != nil {
		method := *p.PaymentMethod
		out.PaymentMethod = &method
	} else if p.DefaultPaymentMethod != nil && out.PaymentMethod == nil {
		method := *p.DefaultPaymentMethod
		out.PaymentMethod = &method
	}
	if p.PaidAt != nil {
		paidAt := *p.PaidAt
		out.PaidAt = &paidAt
	}
	out.UpdatedAt = now
	return out
}

func StatusPatch(status string) TransactionPatch {
	return TransactionPatch{Status: &status}
}
