package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-course-checkout/app/entity"
)

// CourseRepository reads the catalog-owned courses table.
type CourseRepository struct {
	db DBTX
}

func NewCourseRepository(db DBTX) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) FindByID(ctx context.Context, id uint64) (*entity.Course, error) {
	course := &entity.Course{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, price, mentor_id, total_students FROM courses WHERE id = ?`,
		id,
	).Scan(&course.ID, &course.Title, &course.Price, &course.MentorID, &course.TotalStudents)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return course, nil
}
