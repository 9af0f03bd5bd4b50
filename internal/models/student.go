package models

import "time"

// Student is the read-only view of a learner needed to scope requirements.
type Student struct {
	ID         string    `db:"id" json:"id"`
	NIS        string    `db:"nis" json:"nis"`
	FullName   string    `db:"full_name" json:"full_name"`
	Population string    `db:"population" json:"population"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter narrows active-student listings.
type StudentFilter struct {
	Page     int
	PageSize int
}
