package entity

import (
	"database/sql"
	"time"
)

type Application struct {
	ID              uint64
	Company         string
	Position        string
	Website         sql.NullString
	ApplicationType string
	CreatedBy       uint64
	Deleted         bool
	DeletedAt       sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ApplicationStatus rows are append-only: the current stage of an
// application is the row with the greatest (created_at, id), and no row is
// ever updated or removed independently of its parent application.
type ApplicationStatus struct {
	ID            uint64
	ApplicationID uint64
	StatusType    string
	CreatedBy     uint64
	TestType      sql.NullString
	InterviewType sql.NullString
	Notes         sql.NullString
	CreatedAt     time.Time
}
