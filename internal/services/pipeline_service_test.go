package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/clicktoassignment/backend/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestApproveRequiresPreviousSectionApproved(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, f.global, "CUST-1")
	structure := f.section(t, job.ID, models.SectionStructure)

	for _, action := range []string{ActionApprove, ActionRegenerate} {
		_, err := f.pipeline.Action(context.Background(), structure.ID, actorOf(f.global), action, ActionOptions{})
		expectErr(t, err, ErrOutOfOrder)
	}

	if f.gen.callCount() != 0 {
		t.Errorf("Expected no generation for out of order actions, got %d", f.gen.callCount())
	}
	expectDecimal(t, "balance", f.balance(t, f.global.ID), "50")
	if s := f.section(t, job.ID, models.SectionStructure); s.Status != models.SectionWaiting {
		t.Errorf("Expected structure to stay waiting, got %s", s.Status)
	}
}

func TestApproveGeneratesEmptySectionAndCharges(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, f.global, "CUST-1")
	summary := f.section(t, job.ID, models.SectionSummary)

	result, err := f.pipeline.Approve(context.Background(), summary.ID, actorOf(f.global), ActionOptions{})
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if result.Section.Content != "summary v1" {
		t.Errorf("Expected generated content, got %q", result.Section.Content)
	}
	if result.Section.Status != models.SectionApproved {
		t.Errorf("Expected approved, got %s", result.Section.Status)
	}
	if result.Section.RegenerationCount != 1 {
		t.Errorf("Expected first generation to count as attempt 1, got %d", result.Section.RegenerationCount)
	}
	if f.historyCount(t, summary.ID) != 0 {
		t.Error("Expected no snapshot of empty content")
	}
	expectDecimal(t, "charged", SpentOn(result.Charge), "2")
	expectDecimal(t, "balance", f.balance(t, f.global.ID), "48")

	if f.gen.calls[0].Context != job.Instruction {
		t.Errorf("Expected the instruction as summary context, got %q", f.gen.calls[0].Context)
	}

	var stored models.Job
	f.db.First(&stored, job.ID)
	if stored.Status != models.JobStatusInProgress {
		t.Errorf("Expected job in_progress after first action, got %s", stored.Status)
	}
}

func TestApproveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, f.global, "CUST-1")
	summary := f.section(t, job.ID, models.SectionSummary)
	actor := actorOf(f.admin)

	for i := 0; i < 2; i++ {
		if _, err := f.pipeline.Approve(context.Background(), summary.ID, actor, ActionOptions{}); err != nil {
			t.Fatalf("Approve %d failed: %v", i, err)
		}
	}
	if f.gen.callCount() != 1 {
		t.Errorf("Expected a single generation, got %d", f.gen.callCount())
	}
	if n := f.historyCount(t, summary.ID); n != 0 {
		t.Errorf("Expected no history, got %d", n)
	}
}

func TestRegenerateHistoryAndLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, f.global, "CUST-1")
	summary := f.section(t, job.ID, models.SectionSummary)
	actor := actorOf(f.admin)

	if _, err := f.pipeline.Approve(ctx, summary.ID, actor, ActionOptions{}); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	for attempt := 2; attempt <= models.MaxRegenerations; attempt++ {
		result, err := f.pipeline.Regenerate(ctx, summary.ID, actor, ActionOptions{})
		if err != nil {
			t.Fatalf("Regenerate attempt %d failed: %v", attempt, err)
		}
		if result.Section.Status != models.SectionPendingReview {
			t.Errorf("Expected pending_review, got %s", result.Section.Status)
		}
		if result.Section.RegenerationCount != attempt {
			t.Errorf("Expected count %d, got %d", attempt, result.Section.RegenerationCount)
		}
		if !strings.Contains(result.Message, "of 3") {
			t.Errorf("Unexpected message %q", result.Message)
		}
	}
	if n := f.historyCount(t, summary.ID); n != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", n)
	}

	before := f.section(t, job.ID, models.SectionSummary)
	_, err := f.pipeline.Regenerate(ctx, summary.ID, actor, ActionOptions{})
	expectErr(t, err, ErrRegenerationLimitExceeded)

	after := f.section(t, job.ID, models.SectionSummary)
	if after.Content != before.Content || after.RegenerationCount != 3 || after.Version != before.Version {
		t.Errorf("Expected section unchanged after limit, got %+v", after)
	}
	if n := f.historyCount(t, summary.ID); n != 2 {
		t.Errorf("Expected history unchanged after limit, got %d", n)
	}

	if _, err := f.pipeline.Approve(ctx, summary.ID, actor, ActionOptions{}); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	history, err := f.pipeline.History(ctx, summary.ID, actor)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 || history[0].Action != models.HistoryApprove {
		t.Fatalf("Expected approve snapshot first of 3, got %+v", history)
	}

	view, err := f.pipeline.Pipeline(ctx, job.ID, actor)
	if err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}
	got := view.Sections[0].Attempts
	want := [4]string{"summary v1", "summary v2", "summary v3", "summary v3"}
	if got != want {
		t.Errorf("Expected attempts %v, got %v", want, got)
	}
	if view.Sections[0].CanRegenerate {
		t.Error("Expected summary to be out of regenerations")
	}
	if view.Sections[1].Locked {
		t.Error("Expected structure to be unlocked")
	}
	if !view.Sections[2].Locked {
		t.Error("Expected content to be locked")
	}
}

func TestReportSectionsUsePlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, f.global, "CUST-1")
	actor := actorOf(f.admin)

	f.approveThrough(t, job, actor, models.SectionReferencing)
	plag := f.section(t, job.ID, models.SectionPlagReport)

	result, err := f.pipeline.Regenerate(ctx, plag.ID, actor, ActionOptions{})
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	if result.Section.Content != ReportPlaceholder {
		t.Errorf("Expected placeholder, got %q", result.Section.Content)
	}
	if result.Section.Status != models.SectionPendingReview {
		t.Errorf("Expected pending_review, got %s", result.Section.Status)
	}
	if f.gen.callCount() != 4 {
		t.Errorf("Expected reports to skip the generator, got %d calls", f.gen.callCount())
	}

	ai := f.section(t, job.ID, models.SectionAIReport)
	_, err = f.pipeline.Approve(ctx, ai.ID, actor, ActionOptions{})
	expectErr(t, err, ErrOutOfOrder)

	if _, err := f.pipeline.Approve(ctx, plag.ID, actor, ActionOptions{}); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	result, err = f.pipeline.Approve(ctx, ai.ID, actor, ActionOptions{})
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if result.Section.Content != "" || result.Section.Status != models.SectionApproved {
		t.Errorf("Expected approve to keep the empty report, got %+v", result.Section)
	}
	if plag := f.section(t, job.ID, models.SectionPlagReport); plag.Content != ReportPlaceholder {
		t.Errorf("Expected approve to keep the placeholder, got %q", plag.Content)
	}
}

func TestJobApprovalFollowsSections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, f.global, "CUST-1")
	actor := actorOf(f.admin)

	f.approveThrough(t, job, actor, models.SectionFullContent)

	var stored models.Job
	f.db.First(&stored, job.ID)
	if !stored.IsSuperadminApproved || stored.ApprovedAt == nil {
		t.Fatalf("Expected job approved, got %+v", stored)
	}
	if stored.Status != models.JobStatusCompleted {
		t.Errorf("Expected completed, got %s", stored.Status)
	}

	full := f.section(t, job.ID, models.SectionFullContent)
	if !strings.Contains(f.gen.calls[len(f.gen.calls)-1].Context, "=== REFERENCES ===\nreferencing v1") {
		t.Errorf("Expected full content context to carry the references, got %q", f.gen.calls[len(f.gen.calls)-1].Context)
	}

	result, err := f.pipeline.Regenerate(ctx, full.ID, actor, ActionOptions{})
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	if result.JobApproved {
		t.Error("Expected job approval to be cleared")
	}
	var after models.Job
	f.db.First(&after, job.ID)
	if after.IsSuperadminApproved || after.ApprovedAt != nil {
		t.Errorf("Expected approval cleared, got %+v", after)
	}
	if after.Status != models.JobStatusInProgress {
		t.Errorf("Expected in_progress, got %s", after.Status)
	}
}

func TestSyncApprovalRequiresEverySection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, f.global, "CUST-1")

	f.db.Model(&models.JobContentSection{}).Where("job_id = ?", job.ID).Update("status", models.SectionApproved)
	approved, err := f.pipeline.SyncApproval(ctx, job.ID)
	if err != nil || !approved {
		t.Fatalf("Expected approved, got %v, %v", approved, err)
	}

	f.db.Where("job_id = ? AND section_type = ?", job.ID, models.SectionAIReport).Delete(&models.JobContentSection{})
	approved, err = f.pipeline.SyncApproval(ctx, job.ID)
	if err != nil || approved {
		t.Fatalf("Expected not approved with a missing section, got %v, %v", approved, err)
	}

	f.db.Model(&models.JobContentSection{}).Where("job_id = ?", job.ID).Update("status", "regenerate")
	approved, _ = f.pipeline.SyncApproval(ctx, job.ID)
	if approved {
		t.Error("Expected legacy status to count as not approved")
	}
}

func TestMonsterRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, f.global, "CUST-1")
	actor := actorOf(f.global)

	result, err := f.pipeline.Monster(ctx, job.ID, actor, "")
	if err != nil {
		t.Fatalf("Monster failed: %v", err)
	}
	if len(result.Sections) != models.SectionCount {
		t.Fatalf("Expected %d sections, got %d", models.SectionCount, len(result.Sections))
	}
	for _, s := range result.Sections {
		if s.Status != models.SectionPendingReview {
			t.Errorf("%s: expected pending_review, got %s", s.SectionType, s.Status)
		}
		if s.SectionType.IsReport() {
			if s.Content != ReportPlaceholder {
				t.Errorf("%s: expected placeholder, got %q", s.SectionType, s.Content)
			}
			continue
		}
		if s.Content != string(s.SectionType)+" v1" || s.RegenerationCount != 1 {
			t.Errorf("%s: unexpected state %q count %d", s.SectionType, s.Content, s.RegenerationCount)
		}
	}
	if f.gen.calls[1].Context != "summary v1" {
		t.Errorf("Expected structure to be generated from the fresh summary, got %q", f.gen.calls[1].Context)
	}
	expectDecimal(t, "balance", f.balance(t, f.global.ID), "40")

	var runs []models.MonsterRun
	f.db.Where("job_id = ?", job.ID).Find(&runs)
	if len(runs) != 1 {
		t.Fatalf("Expected 1 monster run, got %d", len(runs))
	}
	expectDecimal(t, "run cost", runs[0].Cost, "10")

	// A second run goes through the action endpoint, snapshots prior content
	// and does not use up an attempt.
	summary := f.section(t, job.ID, models.SectionSummary)
	if _, err := f.pipeline.Action(ctx, summary.ID, actor, ActionMonster, ActionOptions{}); err != nil {
		t.Fatalf("Monster action failed: %v", err)
	}
	summary = f.section(t, job.ID, models.SectionSummary)
	if summary.RegenerationCount != 1 || summary.Content != "summary v2" {
		t.Errorf("Unexpected summary after second run: %q count %d", summary.Content, summary.RegenerationCount)
	}
	var snapshot models.SectionHistory
	f.db.Where("section_id = ?", summary.ID).First(&snapshot)
	if snapshot.Action != models.HistoryMonster || snapshot.Content != "summary v1" {
		t.Errorf("Unexpected snapshot %+v", snapshot)
	}
	plag := f.section(t, job.ID, models.SectionPlagReport)
	if n := f.historyCount(t, plag.ID); n != 0 {
		t.Errorf("Expected no report snapshots, got %d", n)
	}
	expectDecimal(t, "balance", f.balance(t, f.global.ID), "30")
}

func TestMonsterRequiresGlobalUser(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, f.global, "CUST-1")

	_, err := f.pipeline.Monster(context.Background(), job.ID, actorOf(f.admin), "")
	expectErr(t, err, ErrForbidden)
	if f.gen.callCount() != 0 {
		t.Errorf("Expected no generation, got %d", f.gen.callCount())
	}
}

// Gems are charged before the generator runs and are kept when it fails.
func TestFailedGenerationStillCharges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, f.global, "CUST-1")
	actor := actorOf(f.global)
	summary := f.section(t, job.ID, models.SectionSummary)

	f.gen.err = errors.New("boom")
	result, err := f.pipeline.Regenerate(ctx, summary.ID, actor, ActionOptions{})
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	if result.Section.Content != "Generation failed: boom" {
		t.Errorf("Expected failure content, got %q", result.Section.Content)
	}
	if result.Section.RegenerationCount != 1 {
		t.Errorf("Expected failed attempt to count, got %d", result.Section.RegenerationCount)
	}
	expectDecimal(t, "charged", SpentOn(result.Charge), "2")
	expectDecimal(t, "balance", f.balance(t, f.global.ID), "48")

	f.gen.err = nil
	if _, err := f.pipeline.Regenerate(ctx, summary.ID, actor, ActionOptions{}); err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}

	var logs []models.GenerationLog
	f.db.Where("job_id = ?", job.ID).Order("id asc").Find(&logs)
	if len(logs) != 2 {
		t.Fatalf("Expected 2 generation logs, got %d", len(logs))
	}
	if logs[0].Succeeded || logs[0].Error != "boom" || !logs[1].Succeeded {
		t.Errorf("Unexpected generation logs %+v", logs)
	}
}

func TestOnlyFirstGenerationIsCharged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, f.global, "CUST-1")
	actor := actorOf(f.global)
	summary := f.section(t, job.ID, models.SectionSummary)

	result, err := f.pipeline.Regenerate(ctx, summary.ID, actor, ActionOptions{})
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	expectDecimal(t, "charged", SpentOn(result.Charge), "2")
	expectDecimal(t, "balance", f.balance(t, f.global.ID), "48")

	for attempt := 2; attempt <= models.MaxRegenerations; attempt++ {
		result, err := f.pipeline.Regenerate(ctx, summary.ID, actor, ActionOptions{})
		if err != nil {
			t.Fatalf("Regenerate %d failed: %v", attempt, err)
		}
		if result.Charge != nil {
			t.Errorf("attempt %d: expected no charge, got %+v", attempt, result.Charge)
		}
		if result.Section.RegenerationCount != attempt {
			t.Errorf("attempt %d: count = %d", attempt, result.Section.RegenerationCount)
		}
	}
	expectDecimal(t, "balance", f.balance(t, f.global.ID), "48")

	// Approving a generated section is free as well.
	if _, err := f.pipeline.Approve(ctx, summary.ID, actor, ActionOptions{}); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	expectDecimal(t, "balance", f.balance(t, f.global.ID), "48")

	var n int64
	f.db.Model(&models.GemTransaction{}).Where("user_id = ? AND amount < 0", f.global.ID).Count(&n)
	if n != 1 {
		t.Errorf("Expected a single debit, got %d", n)
	}
}

func TestMonsterKeepsUsedAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, f.global, "CUST-1")
	actor := actorOf(f.global)
	summary := f.section(t, job.ID, models.SectionSummary)

	for i := 0; i < 2; i++ {
		if _, err := f.pipeline.Regenerate(ctx, summary.ID, actor, ActionOptions{}); err != nil {
			t.Fatalf("Regenerate %d failed: %v", i, err)
		}
	}
	if _, err := f.pipeline.Monster(ctx, job.ID, actor, ""); err != nil {
		t.Fatalf("Monster failed: %v", err)
	}
	summary = f.section(t, job.ID, models.SectionSummary)
	if summary.RegenerationCount != 2 {
		t.Errorf("Expected monster to leave the attempt count at 2, got %d", summary.RegenerationCount)
	}
	if structure := f.section(t, job.ID, models.SectionStructure); structure.RegenerationCount != 1 {
		t.Errorf("Expected an untouched section to count a single attempt, got %d", structure.RegenerationCount)
	}

	result, err := f.pipeline.Regenerate(ctx, summary.ID, actor, ActionOptions{})
	if err != nil {
		t.Fatalf("Expected the last attempt to remain after monster: %v", err)
	}
	if result.Section.RegenerationCount != models.MaxRegenerations {
		t.Errorf("count = %d, want %d", result.Section.RegenerationCount, models.MaxRegenerations)
	}
}

func TestChargeFailuresAbortBeforeGeneration(t *testing.T) {
	tests := []struct {
		name   string
		prep   func(t *testing.T, f *fixture)
		coupon string
		want   error
	}{
		{
			name: "insufficient balance",
			prep: func(t *testing.T, f *fixture) {
				if _, err := f.ledger.Charge(context.Background(), f.global.ID, decimal.NewFromInt(49), "drain", nil); err != nil {
					t.Fatalf("Charge failed: %v", err)
				}
			},
			want: ErrInsufficientBalance,
		},
		{
			name:   "unknown coupon",
			prep:   func(*testing.T, *fixture) {},
			coupon: "NOPE",
			want:   ErrCouponNotApplicable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			job := f.createJob(t, f.global, "CUST-1")
			summary := f.section(t, job.ID, models.SectionSummary)
			tt.prep(t, f)

			_, err := f.pipeline.Approve(context.Background(), summary.ID, actorOf(f.global), ActionOptions{CouponCode: tt.coupon})
			expectErr(t, err, tt.want)
			if f.gen.callCount() != 0 {
				t.Errorf("Expected no generation, got %d", f.gen.callCount())
			}
			if s := f.section(t, job.ID, models.SectionSummary); s.Status != models.SectionWaiting || s.Content != "" {
				t.Errorf("Expected untouched section, got %+v", s)
			}
		})
	}
}

func TestActionAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, f.global, "CUST-1")
	summary := f.section(t, job.ID, models.SectionSummary)

	floor := createUser(t, f.db, "floor", models.RoleFloor)
	stranger := createUser(t, f.db, "stranger", models.RoleGlobal)

	for _, u := range []*models.User{floor, stranger} {
		_, err := f.pipeline.Approve(ctx, summary.ID, actorOf(u), ActionOptions{})
		expectErr(t, err, ErrForbidden)
	}

	_, err := f.pipeline.Action(ctx, summary.ID, actorOf(f.admin), "publish", ActionOptions{})
	expectErr(t, err, ErrInvalidAction)

	_, err = f.pipeline.Approve(ctx, 9999, actorOf(f.admin), ActionOptions{})
	expectErr(t, err, ErrNotFound)

	if err := f.jobs.SoftDelete(ctx, job.ID, f.admin.ID, "duplicate order"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	_, err = f.pipeline.Approve(ctx, summary.ID, actorOf(f.admin), ActionOptions{})
	expectErr(t, err, ErrNotFound)
}

func TestStructureAcceptsContextOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, f.global, "CUST-1")
	actor := actorOf(f.admin)
	f.approveThrough(t, job, actor, models.SectionSummary)

	structure := f.section(t, job.ID, models.SectionStructure)
	if _, err := f.pipeline.Regenerate(ctx, structure.ID, actor, ActionOptions{ContextText: "  custom brief  "}); err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	if got := f.gen.calls[len(f.gen.calls)-1].Context; got != "custom brief" {
		t.Errorf("Expected override context, got %q", got)
	}
}

func TestWriteSectionDetectsConcurrentUpdate(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, f.global, "CUST-1")
	stale := f.section(t, job.ID, models.SectionSummary)

	f.db.Model(&models.JobContentSection{}).Where("id = ?", stale.ID).Update("version", stale.Version+1)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.pipeline.writeSectionTx(tx, actorOf(f.admin), stale, sectionWrite{
			content: "late write",
			status:  models.SectionPendingReview,
			count:   1,
		})
		return err
	})
	expectErr(t, err, ErrConcurrentUpdate)

	if s := f.section(t, job.ID, models.SectionSummary); s.Content != "" {
		t.Errorf("Expected stale write to be rejected, got %q", s.Content)
	}
}

func TestCommitRechecksPredecessor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, f.global, "CUST-1")
	actor := actorOf(f.global)
	f.approveThrough(t, job, actor, models.SectionSummary)
	summary := f.section(t, job.ID, models.SectionSummary)
	structure := f.section(t, job.ID, models.SectionStructure)
	expectDecimal(t, "balance", f.balance(t, f.global.ID), "48")

	// Summary is reopened while structure is being generated.
	f.gen.during = func(req GenerationRequest) {
		if req.SectionType == models.SectionStructure {
			f.db.Model(&models.JobContentSection{}).Where("id = ?", summary.ID).Update("status", models.SectionPendingReview)
		}
	}
	_, err := f.pipeline.Regenerate(ctx, structure.ID, actor, ActionOptions{})
	expectErr(t, err, ErrOutOfOrder)

	after := f.section(t, job.ID, models.SectionStructure)
	if after.Version != structure.Version || after.Content != "" || after.RegenerationCount != 0 {
		t.Errorf("Expected structure untouched, got %+v", after)
	}
	if n := f.historyCount(t, structure.ID); n != 0 {
		t.Errorf("Expected no history, got %d", n)
	}
	expectDecimal(t, "balance", f.balance(t, f.global.ID), "48")
}

func TestAttemptSlots(t *testing.T) {
	tests := []struct {
		name    string
		section models.JobContentSection
		history []models.SectionHistory
		want    [4]string
	}{
		{
			name:    "untouched",
			section: models.JobContentSection{Status: models.SectionWaiting},
		},
		{
			name:    "first attempt",
			section: models.JobContentSection{Content: "a1", RegenerationCount: 1, Status: models.SectionPendingReview},
			want:    [4]string{"a1", "", "", ""},
		},
		{
			name:    "second attempt approved",
			section: models.JobContentSection{Content: "a2", RegenerationCount: 2, Status: models.SectionApproved},
			history: []models.SectionHistory{
				{Action: models.HistoryRegenerate, Content: "a1"},
				{Action: models.HistoryApprove, Content: "a2"},
			},
			want: [4]string{"a1", "a2", "", "a2"},
		},
		{
			name:    "monster runs past the cap keep the latest three",
			section: models.JobContentSection{Content: "m4", RegenerationCount: 3, Status: models.SectionPendingReview},
			history: []models.SectionHistory{
				{Action: models.HistoryMonster, Content: "m1"},
				{Action: models.HistoryMonster, Content: "m2"},
				{Action: models.HistoryMonster, Content: "m3"},
			},
			want: [4]string{"m2", "m3", "m4", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := attemptSlots(&tt.section, tt.history)
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
