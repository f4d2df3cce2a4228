package entity

import "time"

type Enrollment struct {
	ID            uint64
	StudentID     uint64
	CourseID      uint64
	TransactionID uint64
	EnrolledAt    time.Time
}

type Course struct {
	ID            uint64
	Title         string
	Price         int64
	MentorID      uint64
	TotalStudents int64
}

// Buyer is the authenticated student placing an order.
type Buyer struct {
	ID    uint64
	Name  string
	Email string
}
