package models

import "time"

// Query is a student question raised in a class. The teacher resolves it by
// posting an answer.
type Query struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"classId"`
	StudentID string    `db:"student_id" json:"studentId"`
	Question  string    `db:"question" json:"question"`
	Answer    *string   `db:"answer" json:"answer,omitempty"`
	Resolved  bool      `db:"resolved" json:"resolved"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
