package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clicktoassignment/backend/internal/logger"
	"github.com/clicktoassignment/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionRegenerate = "regenerate"
	ActionApprove    = "approve"
	ActionMonster    = "monster"
)

// Actor is the authenticated user performing a pipeline action.
type Actor struct {
	ID   uint
	Role models.UserRole
}

func (a Actor) idPtr() *uint {
	id := a.ID
	return &id
}

// ActionOptions carries optional inputs of a section action.
type ActionOptions struct {
	CouponCode string
	// ContextText replaces the upstream section as generator input for the
	// structure and content stages.
	ContextText string
}

// ActionResult describes the state after a successful action.
type ActionResult struct {
	Section     *models.JobContentSection  `json:"section,omitempty"`
	Sections    []models.JobContentSection `json:"sections,omitempty"`
	Message     string                     `json:"message"`
	Charge      *SpendReceipt              `json:"charge,omitempty"`
	JobApproved bool                       `json:"jobApproved"`
}

// PipelineService drives the ordered section workflow of a job.
type PipelineService struct {
	db         *gorm.DB
	ledger     *LedgerService
	coupons    *CouponService
	pricing    *PricingService
	generator  Generator
	genTimeout time.Duration
	now        func() time.Time
}

func NewPipelineService(db *gorm.DB, ledger *LedgerService, coupons *CouponService, pricing *PricingService, generator Generator, genTimeout time.Duration) *PipelineService {
	if genTimeout <= 0 {
		genTimeout = 5 * time.Minute
	}
	return &PipelineService{
		db:         db,
		ledger:     ledger,
		coupons:    coupons,
		pricing:    pricing,
		generator:  generator,
		genTimeout: genTimeout,
		now:        time.Now,
	}
}

// Action dispatches an inbound section action.
func (ps *PipelineService) Action(ctx context.Context, sectionID uint, actor Actor, action string, opts ActionOptions) (*ActionResult, error) {
	switch action {
	case ActionRegenerate:
		return ps.Regenerate(ctx, sectionID, actor, opts)
	case ActionApprove:
		return ps.Approve(ctx, sectionID, actor, opts)
	case ActionMonster:
		var section models.JobContentSection
		if err := ps.db.WithContext(ctx).First(&section, sectionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to load section: %w", err)
		}
		return ps.Monster(ctx, section.JobID, actor, opts.CouponCode)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
}

func canOperate(actor Actor, job *models.Job) bool {
	if actor.Role.IsSuperAdmin() {
		return true
	}
	return actor.Role.IsMetered() && job.CreatedByID == actor.ID
}

func canView(actor Actor, job *models.Job) bool {
	return actor.Role.IsSuperAdmin() || job.CreatedByID == actor.ID
}

func loadActiveJob(tx *gorm.DB, jobID uint) (*models.Job, error) {
	var job models.Job
	if err := tx.Where("id = ? AND is_deleted = ?", jobID, false).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return &job, nil
}

func (ps *PipelineService) loadSection(tx *gorm.DB, sectionID uint, actor Actor) (*models.JobContentSection, *models.Job, error) {
	var section models.JobContentSection
	if err := tx.First(&section, sectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to load section: %w", err)
	}
	section.Status = section.Status.Normalize()

	job, err := loadActiveJob(tx, section.JobID)
	if err != nil {
		return nil, nil, err
	}
	if !canOperate(actor, job) {
		return nil, nil, ErrForbidden
	}
	return &section, job, nil
}

func loadJobSections(tx *gorm.DB, jobID uint) ([]models.JobContentSection, error) {
	var sections []models.JobContentSection
	if err := tx.Where("job_id = ?", jobID).Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("failed to load sections: %w", err)
	}
	for i := range sections {
		sections[i].Status = sections[i].Status.Normalize()
	}
	return sections, nil
}

func byType(sections []models.JobContentSection) map[models.SectionType]*models.JobContentSection {
	out := make(map[models.SectionType]*models.JobContentSection, len(sections))
	for i := range sections {
		out[sections[i].SectionType] = &sections[i]
	}
	return out
}

// checkOrder fails with ErrOutOfOrder unless the preceding stage is approved.
func checkOrder(tx *gorm.DB, section *models.JobContentSection) error {
	prev, ok := section.SectionType.Previous()
	if !ok {
		return nil
	}
	var before models.JobContentSection
	err := tx.Select("id", "status").
		Where("job_id = ? AND section_type = ?", section.JobID, prev).
		First(&before).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s has no %s section", ErrOutOfOrder, section.SectionType, prev)
	}
	if err != nil {
		return fmt.Errorf("failed to load previous section: %w", err)
	}
	if before.Status.Normalize() != models.SectionApproved {
		return fmt.Errorf("%w: %s is not approved", ErrOutOfOrder, prev)
	}
	return nil
}

// Regenerate produces a new attempt for the section.
func (ps *PipelineService) Regenerate(ctx context.Context, sectionID uint, actor Actor, opts ActionOptions) (*ActionResult, error) {
	db := ps.db.WithContext(ctx)
	section, job, err := ps.loadSection(db, sectionID, actor)
	if err != nil {
		return nil, err
	}
	if err := checkOrder(db, section); err != nil {
		return nil, err
	}
	log := logger.WithSection(section.ID, string(section.SectionType)).WithField("action", ActionRegenerate)

	if section.SectionType.IsReport() {
		updated, approved, err := ps.commit(ctx, job, actor, section, sectionWrite{
			content: ReportPlaceholder,
			status:  models.SectionPendingReview,
			count:   section.RegenerationCount,
		})
		if err != nil {
			return nil, err
		}
		log.Info("Report section reset to placeholder")
		return &ActionResult{Section: updated, Message: ReportPlaceholder, JobApproved: approved}, nil
	}

	if !section.CanRegenerate() {
		return nil, fmt.Errorf("%w: %d of %d attempts used", ErrRegenerationLimitExceeded, section.RegenerationCount, models.MaxRegenerations)
	}

	receipt, err := ps.chargeFor(ctx, actor, job, section, opts.CouponCode)
	if err != nil {
		return nil, err
	}

	content, err := ps.generateFor(ctx, job, section, opts.ContextText, models.HistoryRegenerate)
	if err != nil {
		ps.refund(ctx, actor, receipt, "generation aborted")
		return nil, err
	}

	updated, approved, err := ps.commit(ctx, job, actor, section, sectionWrite{
		content: content,
		status:  models.SectionPendingReview,
		count:   section.RegenerationCount + 1,
		history: models.HistoryRegenerate,
	})
	if err != nil {
		ps.refundAfterConflict(ctx, actor, receipt, err)
		return nil, err
	}

	log.WithField("attempt", updated.RegenerationCount).Info("Section regenerated")
	return &ActionResult{
		Section:     updated,
		Message:     fmt.Sprintf("Section regenerated. (attempt %d of %d)", updated.RegenerationCount, models.MaxRegenerations),
		Charge:      receipt,
		JobApproved: approved,
	}, nil
}

// Approve marks the section approved, generating content first when empty.
func (ps *PipelineService) Approve(ctx context.Context, sectionID uint, actor Actor, opts ActionOptions) (*ActionResult, error) {
	db := ps.db.WithContext(ctx)
	section, job, err := ps.loadSection(db, sectionID, actor)
	if err != nil {
		return nil, err
	}
	if err := checkOrder(db, section); err != nil {
		return nil, err
	}
	log := logger.WithSection(section.ID, string(section.SectionType)).WithField("action", ActionApprove)

	if section.Status == models.SectionApproved {
		return &ActionResult{Section: section, Message: "Section already approved.", JobApproved: job.IsSuperadminApproved}, nil
	}

	if section.SectionType.IsReport() {
		updated, approved, err := ps.commit(ctx, job, actor, section, sectionWrite{
			content: section.Content,
			status:  models.SectionApproved,
			count:   section.RegenerationCount,
		})
		if err != nil {
			return nil, err
		}
		log.Info("Report section approved")
		return &ActionResult{Section: updated, Message: "Section approved.", JobApproved: approved}, nil
	}

	write := sectionWrite{
		content: section.Content,
		status:  models.SectionApproved,
		count:   section.RegenerationCount,
		history: models.HistoryApprove,
	}

	var receipt *SpendReceipt
	if strings.TrimSpace(section.Content) == "" {
		// First generation happens on approval; it counts as attempt 1.
		receipt, err = ps.chargeFor(ctx, actor, job, section, opts.CouponCode)
		if err != nil {
			return nil, err
		}
		content, err := ps.generateFor(ctx, job, section, opts.ContextText, models.HistoryApprove)
		if err != nil {
			ps.refund(ctx, actor, receipt, "generation aborted")
			return nil, err
		}
		write.content = content
		if write.count == 0 {
			write.count = 1
		}
	}

	updated, approved, err := ps.commit(ctx, job, actor, section, write)
	if err != nil {
		ps.refundAfterConflict(ctx, actor, receipt, err)
		return nil, err
	}

	log.Info("Section approved")
	return &ActionResult{Section: updated, Message: "Section approved.", Charge: receipt, JobApproved: approved}, nil
}

// Monster runs every stage of the job once for a flat fee. It skips the
// approval gate and does not refund the fee when a stage fails to generate.
func (ps *PipelineService) Monster(ctx context.Context, jobID uint, actor Actor, couponCode string) (*ActionResult, error) {
	if !actor.Role.IsMetered() {
		return nil, fmt.Errorf("%w: monster runs are only available to global users", ErrForbidden)
	}

	db := ps.db.WithContext(ctx)
	job, err := loadActiveJob(db, jobID)
	if err != nil {
		return nil, err
	}
	if !canOperate(actor, job) {
		return nil, ErrForbidden
	}
	if err := ensureSectionsTx(db, job.ID); err != nil {
		return nil, err
	}
	sections, err := loadJobSections(db, job.ID)
	if err != nil {
		return nil, err
	}
	current := byType(sections)
	log := logger.WithJob(job.ID, ActionMonster)

	cost, err := ps.pricing.Cost(ctx, models.TaskMonster)
	if err != nil {
		return nil, err
	}
	receipt, err := ps.coupons.Spend(ctx, SpendRequest{
		UserID:     actor.ID,
		TaskKey:    models.TaskMonster,
		Cost:       cost,
		CouponCode: couponCode,
		Reason:     fmt.Sprintf("Monster run for job %s", job.SystemID),
		ActorID:    actor.idPtr(),
	})
	if err != nil {
		return nil, err
	}

	generated := make(map[models.SectionType]string, models.SectionCount)
	src := func(st models.SectionType) string {
		if c, ok := generated[st]; ok {
			return c
		}
		if s, ok := current[st]; ok {
			return s.Content
		}
		return ""
	}

	writes := make([]sectionWrite, 0, models.SectionCount)
	summary := datatypes.JSONMap{}
	for _, st := range models.SectionSequence {
		section := current[st]
		if st.IsReport() {
			generated[st] = ReportPlaceholder
			writes = append(writes, sectionWrite{
				content: ReportPlaceholder,
				status:  models.SectionPendingReview,
				count:   section.RegenerationCount,
			})
			summary[string(st)] = "placeholder"
			continue
		}

		content := ps.generate(ctx, job, section, BuildContext(job, st, src, ""), models.HistoryMonster)
		generated[st] = content
		writes = append(writes, sectionWrite{
			content: content,
			status:  models.SectionPendingReview,
			count:   clampAttempts(section.RegenerationCount),
			history: models.HistoryMonster,
		})
		summary[string(st)] = "generated"
	}

	persistCtx := context.WithoutCancel(ctx)
	var updated []models.JobContentSection
	var approved bool
	err = ps.db.WithContext(persistCtx).Transaction(func(tx *gorm.DB) error {
		for i, st := range models.SectionSequence {
			u, err := ps.writeSectionTx(tx, actor, current[st], writes[i])
			if err != nil {
				return err
			}
			updated = append(updated, *u)
		}
		a, err := ps.afterMutationTx(tx, job.ID)
		if err != nil {
			return err
		}
		approved = a

		run := models.MonsterRun{
			JobID:    job.ID,
			UserID:   actor.ID,
			Cost:     receipt.Quote.Cost,
			Discount: receipt.Quote.Discount,
			Sections: summary,
		}
		if receipt.Quote.Coupon != nil {
			run.CouponCode = receipt.Quote.Coupon.Code
		}
		return tx.Create(&run).Error
	})
	if err != nil {
		if errors.Is(err, ErrConcurrentUpdate) {
			ps.refund(ctx, actor, receipt, "concurrent update")
		}
		return nil, err
	}

	log.WithField("net_cost", receipt.Quote.NetCost.String()).Info("Monster run completed")
	return &ActionResult{
		Sections:    updated,
		Message:     "All sections generated.",
		Charge:      receipt,
		JobApproved: approved,
	}, nil
}

func clampAttempts(n int) int {
	if n < 1 {
		return 1
	}
	if n > models.MaxRegenerations {
		return models.MaxRegenerations
	}
	return n
}

// chargeFor debits a metered actor for the first generation of a section.
// Later attempts and other roles are not charged.
func (ps *PipelineService) chargeFor(ctx context.Context, actor Actor, job *models.Job, section *models.JobContentSection, couponCode string) (*SpendReceipt, error) {
	if !actor.Role.IsMetered() || section.RegenerationCount > 0 {
		return nil, nil
	}
	cost, err := ps.pricing.Cost(ctx, string(section.SectionType))
	if err != nil {
		return nil, err
	}
	return ps.coupons.Spend(ctx, SpendRequest{
		UserID:     actor.ID,
		TaskKey:    string(section.SectionType),
		Cost:       cost,
		CouponCode: couponCode,
		Reason:     fmt.Sprintf("%s generation for job %s", section.SectionType.Label(), job.SystemID),
		ActorID:    actor.idPtr(),
	})
}

// refundAfterConflict refunds receipt when the commit lost a race.
func (ps *PipelineService) refundAfterConflict(ctx context.Context, actor Actor, receipt *SpendReceipt, err error) {
	switch {
	case errors.Is(err, ErrConcurrentUpdate):
		ps.refund(ctx, actor, receipt, "concurrent update")
	case errors.Is(err, ErrOutOfOrder):
		ps.refund(ctx, actor, receipt, "previous section reopened")
	}
}

// refund returns the gems of receipt after a write that did not happen.
func (ps *PipelineService) refund(ctx context.Context, actor Actor, receipt *SpendReceipt, why string) {
	if receipt == nil || receipt.Transaction == nil {
		return
	}
	amount := receipt.Transaction.Amount.Neg()
	if _, err := ps.ledger.Credit(context.WithoutCancel(ctx), actor.ID, amount, "Refund: "+why, nil); err != nil {
		logger.WithError(err, "pipeline").WithField("user_id", actor.ID).Error("Failed to refund gems")
	}
}

// generateFor builds the context from the job's stored sections and
// generates content for section.
func (ps *PipelineService) generateFor(ctx context.Context, job *models.Job, section *models.JobContentSection, override string, trigger models.HistoryAction) (string, error) {
	sections, err := loadJobSections(ps.db.WithContext(ctx), job.ID)
	if err != nil {
		return "", err
	}
	stored := byType(sections)
	src := func(st models.SectionType) string {
		if s, ok := stored[st]; ok {
			return s.Content
		}
		return ""
	}
	return ps.generate(ctx, job, section, BuildContext(job, section.SectionType, src, override), trigger), nil
}

// generate calls the generator under the configured timeout. Failures are
// returned as content.
func (ps *PipelineService) generate(ctx context.Context, job *models.Job, section *models.JobContentSection, contextText string, trigger models.HistoryAction) string {
	if section.SectionType.IsReport() {
		return ReportPlaceholder
	}

	genCtx, cancel := context.WithTimeout(ctx, ps.genTimeout)
	defer cancel()

	start := time.Now()
	content, err := ps.generator.Generate(genCtx, GenerationRequest{
		JobID:       job.ID,
		SectionType: section.SectionType,
		Context:     contextText,
	})
	elapsed := time.Since(start)
	if err == nil && strings.TrimSpace(content) == "" {
		err = errors.New("empty response")
	}

	ps.recordGeneration(ctx, job, section, trigger, contextText, elapsed, err)
	if err != nil {
		logger.WithSection(section.ID, string(section.SectionType)).WithField("error", err.Error()).Warn("Generation failed, storing failure content")
		return generationFailedContent(err)
	}
	return content
}

func (ps *PipelineService) recordGeneration(ctx context.Context, job *models.Job, section *models.JobContentSection, trigger models.HistoryAction, contextText string, elapsed time.Duration, genErr error) {
	entry := models.GenerationLog{
		CallID:      uuid.NewString(),
		JobID:       job.ID,
		SectionID:   &section.ID,
		SectionType: section.SectionType,
		Trigger:     trigger,
		Succeeded:   genErr == nil,
		DurationMs:  elapsed.Milliseconds(),
		Metadata: datatypes.JSONMap{
			"context_length": len(contextText),
			"timeout_ms":     ps.genTimeout.Milliseconds(),
			"timed_out":      errors.Is(genErr, context.DeadlineExceeded),
		},
	}
	if genErr != nil {
		entry.Error = genErr.Error()
	}
	if err := ps.db.WithContext(context.WithoutCancel(ctx)).Create(&entry).Error; err != nil {
		logger.WithError(err, "pipeline").Warn("Failed to record generation log")
	}
}

type sectionWrite struct {
	content string
	status  models.SectionStatus
	count   int
	// history, when set, snapshots the prior non-empty content.
	history models.HistoryAction
}

// commit persists one section write and recomputes the job aggregate.
func (ps *PipelineService) commit(ctx context.Context, job *models.Job, actor Actor, observed *models.JobContentSection, w sectionWrite) (*models.JobContentSection, bool, error) {
	var updated *models.JobContentSection
	var approved bool
	err := ps.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		// The predecessor may have been reopened since the action started.
		if err := checkOrder(forUpdate(tx), observed); err != nil {
			return err
		}
		u, err := ps.writeSectionTx(tx, actor, observed, w)
		if err != nil {
			return err
		}
		updated = u
		approved, err = ps.afterMutationTx(tx, job.ID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return updated, approved, nil
}

// writeSectionTx applies w if the section still has the version that was
// observed, and snapshots the observed content first.
func (ps *PipelineService) writeSectionTx(tx *gorm.DB, actor Actor, observed *models.JobContentSection, w sectionWrite) (*models.JobContentSection, error) {
	if w.count > models.MaxRegenerations {
		w.count = models.MaxRegenerations
	}

	res := tx.Model(&models.JobContentSection{}).
		Where("id = ? AND version = ?", observed.ID, observed.Version).
		Updates(map[string]interface{}{
			"content":            w.content,
			"status":             w.status,
			"regeneration_count": w.count,
			"version":            observed.Version + 1,
			"updated_at":         ps.now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update section: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrConcurrentUpdate
	}

	if w.history != "" && strings.TrimSpace(observed.Content) != "" {
		snapshot := models.SectionHistory{
			SectionID:   observed.ID,
			Action:      w.history,
			Content:     observed.Content,
			CreatedByID: actor.idPtr(),
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return nil, fmt.Errorf("failed to record section history: %w", err)
		}
	}

	updated := *observed
	updated.Content = w.content
	updated.Status = w.status
	updated.RegenerationCount = w.count
	updated.Version = observed.Version + 1
	return &updated, nil
}

// afterMutationTx recomputes the approval aggregate and moves the job
// lifecycle forward.
func (ps *PipelineService) afterMutationTx(tx *gorm.DB, jobID uint) (bool, error) {
	approved, err := ps.syncTx(tx, jobID)
	if err != nil {
		return false, err
	}

	var job models.Job
	if err := tx.Select("id", "status").First(&job, jobID).Error; err != nil {
		return false, fmt.Errorf("failed to load job: %w", err)
	}

	next := job.Status
	switch {
	case job.Status == models.JobStatusArchived:
	case approved:
		next = models.JobStatusCompleted
	case job.Status == models.JobStatusNew || job.Status == models.JobStatusCompleted:
		next = models.JobStatusInProgress
	}
	if next != job.Status {
		if err := tx.Model(&models.Job{}).Where("id = ?", jobID).Update("status", next).Error; err != nil {
			return false, fmt.Errorf("failed to update job status: %w", err)
		}
	}
	return approved, nil
}

// SyncApproval recomputes the job's approval flag: true only when every
// stage exists and is approved.
func (ps *PipelineService) SyncApproval(ctx context.Context, jobID uint) (bool, error) {
	var approved bool
	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := ps.syncTx(tx, jobID)
		approved = a
		return err
	})
	return approved, err
}

func (ps *PipelineService) syncTx(tx *gorm.DB, jobID uint) (bool, error) {
	var sections []models.JobContentSection
	if err := tx.Select("section_type", "status").Where("job_id = ?", jobID).Find(&sections).Error; err != nil {
		return false, fmt.Errorf("failed to load sections: %w", err)
	}

	approvedTypes := make(map[models.SectionType]bool, len(sections))
	for _, s := range sections {
		if s.Status.Normalize() == models.SectionApproved {
			approvedTypes[s.SectionType] = true
		}
	}
	allApproved := len(sections) > 0 && len(sections) == len(approvedTypes)
	for _, st := range models.SectionSequence {
		if !approvedTypes[st] {
			allApproved = false
			break
		}
	}

	var job models.Job
	if err := tx.Select("id", "is_superadmin_approved", "approved_at").First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("failed to load job: %w", err)
	}

	updates := map[string]interface{}{"is_superadmin_approved": allApproved}
	switch {
	case allApproved && job.ApprovedAt == nil:
		updates["approved_at"] = ps.now()
	case !allApproved:
		updates["approved_at"] = nil
	}
	if err := tx.Model(&models.Job{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
		return false, fmt.Errorf("failed to update job approval: %w", err)
	}
	return allApproved, nil
}

// SectionView is the caller-facing status of one stage.
type SectionView struct {
	ID                uint                 `json:"id"`
	SectionType       models.SectionType   `json:"sectionType"`
	Label             string               `json:"label"`
	Status            models.SectionStatus `json:"status"`
	Content           string               `json:"content"`
	RegenerationCount int                  `json:"regenerationCount"`
	CanRegenerate     bool                 `json:"canRegenerate"`
	Locked            bool                 `json:"locked"`
	// Attempts holds attempts 1 to 3 followed by the approved content.
	Attempts  [models.MaxRegenerations + 1]string `json:"attempts"`
	UpdatedAt time.Time                           `json:"updatedAt"`
}

type PipelineView struct {
	JobID                uint             `json:"jobId"`
	SystemID             string           `json:"systemId"`
	Status               models.JobStatus `json:"status"`
	IsSuperadminApproved bool             `json:"isSuperadminApproved"`
	ApprovedAt           *time.Time       `json:"approvedAt,omitempty"`
	Sections             []SectionView    `json:"sections"`
}

// Pipeline returns the job's stages in sequence order.
func (ps *PipelineService) Pipeline(ctx context.Context, jobID uint, actor Actor) (*PipelineView, error) {
	db := ps.db.WithContext(ctx)
	job, err := loadActiveJob(db, jobID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, job) {
		return nil, ErrForbidden
	}

	sections, err := loadJobSections(db, job.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(sections))
	for _, s := range sections {
		ids = append(ids, s.ID)
	}

	var history []models.SectionHistory
	if len(ids) > 0 {
		if err := db.Where("section_id IN ?", ids).Order("created_at asc").Order("id asc").Find(&history).Error; err != nil {
			return nil, fmt.Errorf("failed to load section history: %w", err)
		}
	}
	historyBySection := make(map[uint][]models.SectionHistory)
	for _, h := range history {
		historyBySection[h.SectionID] = append(historyBySection[h.SectionID], h)
	}

	current := byType(sections)
	view := &PipelineView{
		JobID:                job.ID,
		SystemID:             job.SystemID,
		Status:               job.Status,
		IsSuperadminApproved: job.IsSuperadminApproved,
		ApprovedAt:           job.ApprovedAt,
	}
	prevApproved := true
	for _, st := range models.SectionSequence {
		s, ok := current[st]
		if !ok {
			prevApproved = false
			continue
		}
		view.Sections = append(view.Sections, SectionView{
			ID:                s.ID,
			SectionType:       st,
			Label:             st.Label(),
			Status:            s.Status,
			Content:           s.Content,
			RegenerationCount: s.RegenerationCount,
			CanRegenerate:     st.IsReport() || s.CanRegenerate(),
			Locked:            !prevApproved,
			Attempts:          attemptSlots(s, historyBySection[s.ID]),
			UpdatedAt:         s.UpdatedAt,
		})
		prevApproved = s.Status == models.SectionApproved
	}
	return view, nil
}

// attemptSlots maps attempts 1..count onto the first three slots and the
// approved content onto the fourth. history must be oldest first. The
// snapshot taken before attempt n+1 holds attempt n, so the latest count-1
// generation snapshots fill the slots before the current content.
func attemptSlots(s *models.JobContentSection, history []models.SectionHistory) [models.MaxRegenerations + 1]string {
	var slots [models.MaxRegenerations + 1]string

	var generations []string
	for _, h := range history {
		if h.Action != models.HistoryApprove {
			generations = append(generations, h.Content)
		}
	}

	count := s.RegenerationCount
	if count > models.MaxRegenerations {
		count = models.MaxRegenerations
	}
	if count > 0 {
		prior := count - 1
		if prior > len(generations) {
			prior = len(generations)
		}
		start := count - 1 - prior
		for i, c := range generations[len(generations)-prior:] {
			slots[start+i] = c
		}
		slots[count-1] = s.Content
	}
	if s.Status == models.SectionApproved {
		slots[models.MaxRegenerations] = s.Content
	}
	return slots
}

// History lists the snapshots of a section, newest first.
func (ps *PipelineService) History(ctx context.Context, sectionID uint, actor Actor) ([]models.SectionHistory, error) {
	db := ps.db.WithContext(ctx)
	var section models.JobContentSection
	if err := db.First(&section, sectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load section: %w", err)
	}
	job, err := loadActiveJob(db, section.JobID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, job) {
		return nil, ErrForbidden
	}

	var rows []models.SectionHistory
	if err := db.Where("section_id = ?", sectionID).Order("created_at desc").Order("id desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load section history: %w", err)
	}
	return rows, nil
}

// SpentOn sums what a receipt charged, zero for nil.
func SpentOn(receipt *SpendReceipt) decimal.Decimal {
	if receipt == nil || receipt.Transaction == nil {
		return decimal.Zero
	}
	return receipt.Transaction.Amount.Neg()
}
