package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-course-checkout/app/entity"
)

var (
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionAlreadyExists = errors.New("transaction already exists")
	ErrEmptyPatch               = errors.New("transaction patch is empty")
)

const transactionColumns = `
	id, order_id, student_id, course_id, customer_name, customer_email,
	base_price, tax_amount, tax_rate, platform_fee, platform_fee_rate, mentor_net_amount, gross_amount,
	gateway_session_token, gateway_redirect_url,
	status, payment_method, paid_at, expired_at,
	transaction_date, created_at, updated_at
`

type TransactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *entity.Transaction) error {
	query := `
		INSERT INTO transactions (
			order_id, student_id, course_id, customer_name, customer_email,
			base_price, tax_amount, tax_rate, platform_fee, platform_fee_rate, mentor_net_amount, gross_amount,
			gateway_session_token, gateway_redirect_url,
			status, payment_method, paid_at, expired_at,
			transaction_date, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		tx.OrderID,
		tx.StudentID,
		tx.CourseID,
		tx.CustomerName,
		tx.CustomerEmail,
		tx.BasePrice,
		tx.TaxAmount,
		tx.TaxRate,
		tx.PlatformFee,
		tx.PlatformFeeRate,
		tx.MentorNetAmount,
		tx.GrossAmount,
		tx.GatewaySessionToken,
		tx.GatewayRedirectURL,
		tx.Status,
		nullableStringValue(tx.PaymentMethod),
		nullableTimeValue(tx.PaidAt),
		tx.ExpiredAt,
		tx.TransactionDate,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrTransactionAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	tx.ID = uint64(id)
	return nil
}

func (r *TransactionRepository) FindByOrderID(ctx context.Context, orderID string) (*entity.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE order_id = ? LIMIT 1`

	tx := &entity.Transaction{}
	if err := scanTransaction(r.db.QueryRowContext(ctx, query, orderID), tx); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return tx, nil
}

// UpdateIfStatus applies patch only while the row is still in one of the expected statuses.
// It reports whether a row was changed; false means another writer moved the transaction first.
func (r *TransactionRepository) UpdateIfStatus(ctx context.Context, id uint64, expected []string, patch entity.TransactionPatch, now time.Time) (bool, error) {
	if patch.IsEmpty() {
		return false, ErrEmptyPatch
	}
	if len(expected) == 0 {
		return false, nil
	}

	sets := make([]string, 0, 5)
	args := make([]interface{}, 0, 6+len(expected))

	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.PaymentMethod != nil {
		sets = append(sets, "payment_method = ?")
		args = append(args, *patch.PaymentMethod)
	} else if patch.DefaultPaymentMethod != nil {
		sets = append(sets, "payment_method = COALESCE(payment_method, ?)")
		args = append(args, *patch.DefaultPaymentMethod)
	}
	if patch.PaidAt != nil {
		sets = append(sets, "paid_at = ?")
		args = append(args, *patch.PaidAt)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now)

	query := `UPDATE transactions SET ` + strings.Join(sets, ", ") +
		` WHERE id = ? AND status IN (` + placeholders(len(expected)) + `)`
	args = append(args, id)
	for _, status := range expected {
		args = append(args, status)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *TransactionRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int32) ([]*entity.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = ?
		  AND expired_at <= ?
		ORDER BY expired_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.TransactionStatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Transaction, 0)
	for rows.Next() {
		item := &entity.Transaction{}
		if err := scanTransaction(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func scanTransaction(scan rowScanner, tx *entity.Transaction) error {
	var paymentMethod sql.NullString
	var paidAt sql.NullTime

	err := scan.Scan(
		&tx.ID,
		&tx.OrderID,
		&tx.StudentID,
		&tx.CourseID,
		&tx.CustomerName,
		&tx.CustomerEmail,
		&tx.BasePrice,
		&tx.TaxAmount,
		&tx.TaxRate,
		&tx.PlatformFee,
		&tx.PlatformFeeRate,
		&tx.MentorNetAmount,
		&tx.GrossAmount,
		&tx.GatewaySessionToken,
		&tx.GatewayRedirectURL,
		&tx.Status,
		&paymentMethod,
		&paidAt,
		&tx.ExpiredAt,
		&tx.TransactionDate,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return err
	}

	tx.PaymentMethod = stringPtrFromNull(paymentMethod)
	tx.PaidAt = timePtrFromNull(paidAt)
	return nil
}
