package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/clicktoassignment/backend/internal/db"
	"github.com/clicktoassignment/backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB returns a migrated in-memory database. The pool holds a single
// connection so every query sees the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return gdb
}

func createUser(t *testing.T, gdb *gorm.DB, username string, role models.UserRole) *models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		FullName: username,
		Role:     role,
		IsActive: true,
	}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return &user
}

// fakeGenerator returns "<section> v<n>" where n counts calls per section.
type fakeGenerator struct {
	mu    sync.Mutex
	calls []GenerationRequest
	err   error
	// during runs before each generation, outside the lock.
	during func(GenerationRequest)
}

func (f *fakeGenerator) Generate(_ context.Context, req GenerationRequest) (string, error) {
	if f.during != nil {
		f.during(req)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	n := 0
	for _, c := range f.calls {
		if c.SectionType == req.SectionType {
			n++
		}
	}
	return fmt.Sprintf("%s v%d", req.SectionType, n), nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fixture struct {
	db       *gorm.DB
	ledger   *LedgerService
	coupons  *CouponService
	pricing  *PricingService
	jobs     *JobService
	pipeline *PipelineService
	gen      *fakeGenerator

	admin  *models.User
	global *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb := newTestDB(t)
	node, err := NewSnowflakeNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	f := &fixture{db: gdb, gen: &fakeGenerator{}}
	f.ledger = NewLedgerService(gdb, decimal.NewFromInt(50))
	f.coupons = NewCouponService(gdb, f.ledger)
	f.pricing = NewPricingService(gdb, decimal.NewFromInt(10))
	f.jobs = NewJobService(gdb, node)
	f.pipeline = NewPipelineService(gdb, f.ledger, f.coupons, f.pricing, f.gen, time.Minute)
	f.admin = createUser(t, gdb, "admin", models.RoleSuperAdmin)
	f.global = createUser(t, gdb, "global", models.RoleGlobal)
	return f
}

func actorOf(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

var testExpected = time.Date(2030, 1, 10, 10, 0, 0, 0, time.UTC)

func (f *fixture) createJob(t *testing.T, owner *models.User, customerID string) *models.Job {
	t.Helper()
	job, err := f.jobs.CreateJob(context.Background(), owner.ID, JobInput{
		CustomerJobID:    customerID,
		Instruction:      "Write a 1500 word report on urban heat islands.",
		Amount:           decimal.NewFromInt(120),
		ExpectedDeadline: testExpected,
		StrictDeadline:   testExpected.Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	return job
}

func (f *fixture) section(t *testing.T, jobID uint, st models.SectionType) *models.JobContentSection {
	t.Helper()
	var s models.JobContentSection
	if err := f.db.Where("job_id = ? AND section_type = ?", jobID, st).First(&s).Error; err != nil {
		t.Fatalf("failed to load %s section: %v", st, err)
	}
	return &s
}

func (f *fixture) balance(t *testing.T, userID uint) decimal.Decimal {
	t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	return b
}

func (f *fixture) historyCount(t *testing.T, sectionID uint) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.SectionHistory{}).Where("section_id = ?", sectionID).Count(&n).Error; err != nil {
		t.Fatalf("failed to count history: %v", err)
	}
	return n
}

// approveThrough approves every section up to and including last as actor.
func (f *fixture) approveThrough(t *testing.T, job *models.Job, actor Actor, last models.SectionType) {
	t.Helper()
	for _, st := range models.SectionSequence {
		s := f.section(t, job.ID, st)
		if _, err := f.pipeline.Approve(context.Background(), s.ID, actor, ActionOptions{}); err != nil {
			t.Fatalf("approve %s failed: %v", st, err)
		}
		if st == last {
			return
		}
	}
}

func expectErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("Expected error %v, got %v", target, err)
	}
}

func expectDecimal(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("Expected %s %s, got %s", what, want, got.String())
	}
}
