package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-course-checkout/app/entity"
)

type EnrollmentRepository struct {
	db TxBeginner
}

func NewEnrollmentRepository(db TxBeginner) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM enrollments WHERE student_id = ? AND course_id = ? LIMIT 1`,
		studentID, courseID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateForPurchase inserts the enrollment and bumps the course's student counter in one
// database transaction. It returns false without error when the (student, course) pair is
// already enrolled, relying on the unique key rather than a prior read.
func (r *EnrollmentRepository) CreateForPurchase(ctx context.Context, enrollment *entity.Enrollment) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO enrollments (student_id, course_id, transaction_id, enrolled_at) VALUES (?, ?, ?, ?)`,
		enrollment.StudentID,
		enrollment.CourseID,
		enrollment.TransactionID,
		enrollment.EnrolledAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return false, nil
		}
		return false, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE courses SET total_students = total_students + 1 WHERE id = ?`,
		enrollment.CourseID,
	); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	enrollment.ID = uint64(id)
	return true, nil
}
