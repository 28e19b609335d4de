package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/clicktoassignment/backend/internal/logger"
	"github.com/clicktoassignment/backend/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MinDeadlineGap is the minimum distance between the expected and the
// strict deadline of a job.
const MinDeadlineGap = 24 * time.Hour

// JobInput is the editable shape of a job.
type JobInput struct {
	CustomerJobID    string          `json:"customerJobId" validate:"required,max=64"`
	Instruction      string          `json:"instruction" validate:"required"`
	Amount           decimal.Decimal `json:"amount"`
	ExpectedDeadline time.Time       `json:"expectedDeadline" validate:"required"`
	StrictDeadline   time.Time       `json:"strictDeadline" validate:"required"`
}

func (in *JobInput) check() error {
	if strings.TrimSpace(in.CustomerJobID) == "" {
		return fmt.Errorf("%w: customerJobId is required", ErrValidation)
	}
	if strings.TrimSpace(in.Instruction) == "" {
		return fmt.Errorf("%w: instruction is required", ErrValidation)
	}
	if in.Amount.IsNegative() {
		return fmt.Errorf("%w: amount cannot be negative", ErrValidation)
	}
	if in.StrictDeadline.Sub(in.ExpectedDeadline) < MinDeadlineGap {
		return fmt.Errorf("%w: strict deadline must be at least 24 hours after the expected deadline", ErrValidation)
	}
	return nil
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	PendingOnly    bool
	IncludeDeleted bool
	Page           int
	PageSize       int
}

type JobService struct {
	db   *gorm.DB
	node *snowflake.Node
	now  func() time.Time
}

func NewJobService(db *gorm.DB, node *snowflake.Node) *JobService {
	return &JobService{db: db, node: node, now: time.Now}
}

// NewSnowflakeNode returns the id generator for job system ids.
func NewSnowflakeNode(id int64) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(id)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", id, err)
	}
	return node, nil
}

func (js *JobService) systemID() string {
	return "JN-" + js.node.Generate().String()
}

// holidayOn reports whether one of the given deadlines falls on a holiday.
// Deadlines are compared by their UTC calendar day.
func holidayOn(tx *gorm.DB, deadlines ...time.Time) (*models.Holiday, error) {
	dates := make([]string, 0, len(deadlines))
	for _, d := range deadlines {
		dates = append(dates, d.UTC().Format(models.HolidayDateLayout))
	}
	var holiday models.Holiday
	err := tx.Where("date IN ?", dates).First(&holiday).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check holidays: %w", err)
	}
	return &holiday, nil
}

func (js *JobService) checkDeadlines(tx *gorm.DB, in *JobInput) error {
	holiday, err := holidayOn(tx, in.ExpectedDeadline, in.StrictDeadline)
	if err != nil {
		return err
	}
	if holiday != nil {
		return fmt.Errorf("%w: %s is a holiday (%s)", ErrValidation, holiday.Date, holiday.Name)
	}
	return nil
}

func customerIDTaken(tx *gorm.DB, customerID string, exceptID uint) (bool, error) {
	var n int64
	if err := tx.Model(&models.Job{}).
		Where("job_id_customer = ? AND id <> ?", strings.TrimSpace(customerID), exceptID).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check customer job id: %w", err)
	}
	return n > 0, nil
}

// CreateJob stores a new job together with its seven waiting sections.
func (js *JobService) CreateJob(ctx context.Context, creatorID uint, in JobInput) (*models.Job, error) {
	if err := in.check(); err != nil {
		return nil, err
	}

	job := models.Job{
		CustomerJobID:    strings.TrimSpace(in.CustomerJobID),
		SystemID:         js.systemID(),
		Instruction:      strings.TrimSpace(in.Instruction),
		Amount:           in.Amount.Round(2),
		ExpectedDeadline: in.ExpectedDeadline.UTC(),
		StrictDeadline:   in.StrictDeadline.UTC(),
		Status:           models.JobStatusNew,
		CreatedByID:      creatorID,
	}

	err := js.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := js.checkDeadlines(tx, &in); err != nil {
			return err
		}
		taken, err := customerIDTaken(tx, job.CustomerJobID, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateJob
		}
		if err := tx.Create(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateJob
			}
			return fmt.Errorf("failed to create job: %w", err)
		}
		return ensureSectionsTx(tx, job.ID)
	})
	if err != nil {
		return nil, err
	}

	logger.WithJob(job.ID, "create").WithField("system_id", job.SystemID).Info("Job created")
	return js.GetJob(ctx, job.ID)
}

// UpdateJob replaces the editable fields of a job.
func (js *JobService) UpdateJob(ctx context.Context, id, actorID uint, in JobInput) (*models.Job, error) {
	if err := in.check(); err != nil {
		return nil, err
	}

	err := js.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := loadActiveJob(tx, id)
		if err != nil {
			return err
		}
		if err := js.checkDeadlines(tx, &in); err != nil {
			return err
		}
		taken, err := customerIDTaken(tx, in.CustomerJobID, job.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateJob
		}

		actor := actorID
		if err := tx.Model(&models.Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"job_id_customer":   strings.TrimSpace(in.CustomerJobID),
			"instruction":       strings.TrimSpace(in.Instruction),
			"amount":            in.Amount.Round(2),
			"expected_deadline": in.ExpectedDeadline.UTC(),
			"strict_deadline":   in.StrictDeadline.UTC(),
			"updated_by_id":     &actor,
		}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateJob
			}
			return fmt.Errorf("failed to update job: %w", err)
		}
		return ensureSectionsTx(tx, job.ID)
	})
	if err != nil {
		return nil, err
	}

	logger.WithJob(id, "update").Info("Job updated")
	return js.GetJob(ctx, id)
}

// EnsureSections creates any of the seven sections the job is missing.
// Existing sections are left untouched.
func (js *JobService) EnsureSections(ctx context.Context, jobID uint) error {
	return js.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return ensureSectionsTx(tx, jobID)
	})
}

func ensureSectionsTx(tx *gorm.DB, jobID uint) error {
	sections := make([]models.JobContentSection, 0, models.SectionCount)
	for _, st := range models.SectionSequence {
		sections = append(sections, models.JobContentSection{
			JobID:       jobID,
			SectionType: st,
			Status:      models.SectionWaiting,
		})
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "section_type"}},
		DoNothing: true,
	}).Create(&sections).Error; err != nil {
		return fmt.Errorf("failed to create job sections: %w", err)
	}
	return nil
}

// GetJob returns a job with its sections in sequence order.
func (js *JobService) GetJob(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	if err := js.db.WithContext(ctx).Preload("Sections").Preload("CreatedBy").First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	sortSections(job.Sections)
	return &job, nil
}

// GetJobFor returns the job if actor may see it.
func (js *JobService) GetJobFor(ctx context.Context, id uint, actor Actor) (*models.Job, error) {
	job, err := js.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.IsDeleted && !actor.Role.IsSuperAdmin() {
		return nil, ErrNotFound
	}
	if !canView(actor, job) {
		return nil, ErrForbidden
	}
	return job, nil
}

func sortSections(sections []models.JobContentSection) {
	for i := 1; i < len(sections); i++ {
		for j := i; j > 0 && sections[j].SectionType.Index() < sections[j-1].SectionType.Index(); j-- {
			sections[j], sections[j-1] = sections[j-1], sections[j]
		}
	}
	for i := range sections {
		sections[i].Status = sections[i].Status.Normalize()
	}
}

// ListJobs returns the jobs visible to actor, newest first. Super admins see
// every job; other roles see the jobs they created.
func (js *JobService) ListJobs(ctx context.Context, actor Actor, filter JobFilter) ([]models.Job, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	query := js.db.WithContext(ctx).Model(&models.Job{})
	if !actor.Role.IsSuperAdmin() {
		query = query.Where("created_by_id = ?", actor.ID)
	}
	if !(filter.IncludeDeleted && actor.Role.IsSuperAdmin()) {
		query = query.Where("is_deleted = ?", false)
	}
	if filter.PendingOnly {
		query = query.Where("is_superadmin_approved = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	var jobs []models.Job
	if err := query.Order("created_at desc").Order("id desc").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, total, nil
}

// SoftDelete marks the job deleted. Deleted jobs reject section actions.
func (js *JobService) SoftDelete(ctx context.Context, id, actorID uint, notes string) error {
	now := js.now()
	actor := actorID
	res := js.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{
			"is_deleted":     true,
			"deleted_by_id":  &actor,
			"deleted_on":     &now,
			"deletion_notes": strings.TrimSpace(notes),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to delete job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	logger.WithJob(id, "delete").WithField("actor_id", actorID).Info("Job soft deleted")
	return nil
}

// Restore clears the deletion stamp of a job.
func (js *JobService) Restore(ctx context.Context, id, actorID uint) error {
	res := js.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND is_deleted = ?", id, true).
		Updates(map[string]interface{}{
			"is_deleted":     false,
			"deleted_by_id":  nil,
			"deleted_on":     nil,
			"deletion_notes": "",
			"updated_by_id":  &actorID,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to restore job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	logger.WithJob(id, "restore").WithField("actor_id", actorID).Info("Job restored")
	return nil
}

// ArchiveJob moves an active job to the archived status.
func (js *JobService) ArchiveJob(ctx context.Context, id, actorID uint) error {
	res := js.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{
			"status":        models.JobStatusArchived,
			"updated_by_id": &actorID,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to archive job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	logger.WithJob(id, "archive").Info("Job archived")
	return nil
}

// HolidayInput is the payload for AddHoliday.
type HolidayInput struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Name string `json:"name" validate:"max=120"`
}

// AddHoliday blocks a date. It fails with ErrHolidayConflict when an active
// job already has a deadline on that date.
func (js *JobService) AddHoliday(ctx context.Context, in HolidayInput) (*models.Holiday, error) {
	day, err := time.Parse(models.HolidayDateLayout, strings.TrimSpace(in.Date))
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}

	holiday := models.Holiday{Date: day.Format(models.HolidayDateLayout), Name: strings.TrimSpace(in.Name)}
	err = js.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		start, end := day, day.Add(24*time.Hour)
		var n int64
		if err := tx.Model(&models.Job{}).
			Where("is_deleted = ? AND status <> ?", false, models.JobStatusArchived).
			Where("(expected_deadline >= ? AND expected_deadline < ?) OR (strict_deadline >= ? AND strict_deadline < ?)", start, end, start, end).
			Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check job deadlines: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %d job(s) due on %s", ErrHolidayConflict, n, holiday.Date)
		}
		if err := tx.Create(&holiday).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s is already a holiday", ErrValidation, holiday.Date)
			}
			return fmt.Errorf("failed to create holiday: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Holiday added", map[string]interface{}{"date": holiday.Date})
	return &holiday, nil
}

func (js *JobService) ListHolidays(ctx context.Context) ([]models.Holiday, error) {
	var holidays []models.Holiday
	if err := js.db.WithContext(ctx).Order("date asc").Find(&holidays).Error; err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	return holidays, nil
}

func (js *JobService) DeleteHoliday(ctx context.Context, id uint) error {
	res := js.db.WithContext(ctx).Delete(&models.Holiday{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete holiday: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
