package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type JobStatus string

const (
	JobStatusNew        JobStatus = "new"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusArchived   JobStatus = "archived"
)

// Job is a writing assignment. Jobs are soft deleted only.
type Job struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	CustomerJobID    string          `json:"customerJobId" gorm:"column:job_id_customer;size:64;uniqueIndex;not null"`
	SystemID         string          `json:"systemId" gorm:"size:32;uniqueIndex;not null"`
	Instruction      string          `json:"instruction" gorm:"type:text;not null"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	ExpectedDeadline time.Time       `json:"expectedDeadline" gorm:"not null"`
	StrictDeadline   time.Time       `json:"strictDeadline" gorm:"not null"`
	Status           JobStatus       `json:"status" gorm:"size:32;not null;index"`
	CreatedByID      uint            `json:"createdById" gorm:"not null;index"`
	UpdatedByID      *uint           `json:"updatedById,omitempty"`

	IsSuperadminApproved bool       `json:"isSuperadminApproved" gorm:"not null;index"`
	ApprovedAt           *time.Time `json:"approvedAt,omitempty"`

	IsDeleted     bool       `json:"isDeleted" gorm:"not null;index"`
	DeletedByID   *uint      `json:"deletedById,omitempty"`
	DeletedOn     *time.Time `json:"deletedAt,omitempty" gorm:"column:deleted_on"`
	DeletionNotes string     `json:"deletionNotes,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	CreatedBy *User               `json:"createdBy,omitempty" gorm:"foreignKey:CreatedByID;references:ID"`
	Sections  []JobContentSection `json:"sections,omitempty" gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
}

func (Job) TableName() string {
	return "jobs"
}

// Holiday is a blocked calendar date. Date is stored as YYYY-MM-DD.
type Holiday struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Date      string    `json:"date" gorm:"size:10;uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"size:120"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Holiday) TableName() string {
	return "holidays"
}

// HolidayDateLayout is the storage layout of Holiday.Date.
const HolidayDateLayout = "2006-01-02"
