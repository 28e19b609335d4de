package models

import "time"

type SectionType string

const (
	SectionSummary     SectionType = "summary"
	SectionStructure   SectionType = "structure"
	SectionContent     SectionType = "content"
	SectionReferencing SectionType = "referencing"
	SectionPlagReport  SectionType = "plag_report"
	SectionAIReport    SectionType = "ai_report"
	SectionFullContent SectionType = "full_content"
)

// SectionCount is the number of stages in a job pipeline.
const SectionCount = 7

// SectionSequence is the fixed processing order of a job's sections.
var SectionSequence = [SectionCount]SectionType{
	SectionSummary,
	SectionStructure,
	SectionContent,
	SectionReferencing,
	SectionPlagReport,
	SectionAIReport,
	SectionFullContent,
}

var sectionLabels = [SectionCount]string{
	"Job Summary",
	"Job Structure",
	"Content",
	"Referencing",
	"Plag Report",
	"AI Report",
	"Full Content",
}

// Index returns the position of t in SectionSequence, or -1.
func (t SectionType) Index() int {
	for i, s := range SectionSequence {
		if s == t {
			return i
		}
	}
	return -1
}

func (t SectionType) Valid() bool {
	return t.Index() >= 0
}

// IsReport is true for the stubbed report stages, which are never sent to
// the LLM.
func (t SectionType) IsReport() bool {
	return t == SectionPlagReport || t == SectionAIReport
}

// Previous returns the stage before t. ok is false for the first stage.
func (t SectionType) Previous() (prev SectionType, ok bool) {
	i := t.Index()
	if i <= 0 {
		return "", false
	}
	return SectionSequence[i-1], true
}

func (t SectionType) Label() string {
	if i := t.Index(); i >= 0 {
		return sectionLabels[i]
	}
	return string(t)
}

type SectionStatus string

const (
	SectionWaiting   SectionStatus = "waiting"
	SectionGenerated SectionStatus = "generated"
	// SectionPendingReview marks freshly (re)generated content awaiting
	// approval. Older records store it as "regenerate".
	SectionPendingReview SectionStatus = "pending_review"
	SectionApproved      SectionStatus = "approved"

	legacyPendingReview SectionStatus = "regenerate"
)

// Normalize maps legacy status values onto the current names.
func (s SectionStatus) Normalize() SectionStatus {
	if s == legacyPendingReview {
		return SectionPendingReview
	}
	return s
}

// MaxRegenerations caps the attempts a section may consume.
const MaxRegenerations = 3

// JobContentSection holds one stage of a job. Version is bumped on every
// write and used as the compare-and-swap token.
type JobContentSection struct {
	ID                uint          `json:"id" gorm:"primaryKey"`
	JobID             uint          `json:"jobId" gorm:"not null;uniqueIndex:idx_job_section_type"`
	SectionType       SectionType   `json:"sectionType" gorm:"size:32;not null;uniqueIndex:idx_job_section_type"`
	Content           string        `json:"content" gorm:"type:text"`
	Status            SectionStatus `json:"status" gorm:"size:32;not null"`
	RegenerationCount int           `json:"regenerationCount" gorm:"not null"`
	Version           int           `json:"-" gorm:"not null"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

func (JobContentSection) TableName() string {
	return "job_content_sections"
}

// CanRegenerate reports whether another attempt is allowed.
func (s *JobContentSection) CanRegenerate() bool {
	return s.RegenerationCount < MaxRegenerations
}

type HistoryAction string

const (
	HistoryRegenerate HistoryAction = "regenerate"
	HistoryApprove    HistoryAction = "approve"
	HistoryMonster    HistoryAction = "monster"
)

// SectionHistory is a write-once snapshot of section content taken right
// before it was overwritten.
type SectionHistory struct {
	ID          uint          `json:"id" gorm:"primaryKey"`
	SectionID   uint          `json:"sectionId" gorm:"not null;index"`
	Action      HistoryAction `json:"action" gorm:"size:32;not null"`
	Content     string        `json:"content" gorm:"type:text;not null"`
	CreatedByID *uint         `json:"createdById,omitempty"`
	CreatedAt   time.Time     `json:"createdAt" gorm:"index"`

	Section *JobContentSection `json:"-" gorm:"foreignKey:SectionID;references:ID;constraint:OnDelete:CASCADE"`
}

func (SectionHistory) TableName() string {
	return "job_section_history"
}
