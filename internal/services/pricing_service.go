package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/clicktoassignment/backend/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// defaultSectionCosts are used when no GemCostRule overrides a key.
var defaultSectionCosts = map[string]int64{
	string(models.SectionSummary):     2,
	string(models.SectionStructure):   2,
	string(models.SectionContent):     4,
	string(models.SectionReferencing): 1,
	string(models.SectionPlagReport):  3,
	string(models.SectionAIReport):    3,
	string(models.SectionFullContent): 5,
}

type CostEntry struct {
	Key        string          `json:"key"`
	Cost       decimal.Decimal `json:"cost"`
	Overridden bool            `json:"overridden"`
}

// PricingService resolves the gem price of a task key.
type PricingService struct {
	db          *gorm.DB
	monsterCost decimal.Decimal
}

func NewPricingService(db *gorm.DB, monsterCost decimal.Decimal) *PricingService {
	return &PricingService{db: db, monsterCost: monsterCost}
}

func (ps *PricingService) defaultCost(key string) (decimal.Decimal, bool) {
	if key == models.TaskMonster {
		return ps.monsterCost, true
	}
	if c, ok := defaultSectionCosts[key]; ok {
		return decimal.NewFromInt(c), true
	}
	return decimal.Zero, false
}

// Cost returns the configured price for key.
func (ps *PricingService) Cost(ctx context.Context, key string) (decimal.Decimal, error) {
	return ps.costTx(ps.db.WithContext(ctx), key)
}

func (ps *PricingService) costTx(tx *gorm.DB, key string) (decimal.Decimal, error) {
	var rule models.GemCostRule
	err := tx.Where("rule_key = ?", key).First(&rule).Error
	if err == nil {
		return rule.Cost, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, fmt.Errorf("failed to load cost rule: %w", err)
	}
	if c, ok := ps.defaultCost(key); ok {
		return c, nil
	}
	return decimal.Zero, fmt.Errorf("%w: unknown cost key %q", ErrValidation, key)
}

// ListCosts returns every known key with its effective price.
func (ps *PricingService) ListCosts(ctx context.Context) ([]CostEntry, error) {
	var rules []models.GemCostRule
	if err := ps.db.WithContext(ctx).Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list cost rules: %w", err)
	}

	entries := map[string]CostEntry{}
	for key := range defaultSectionCosts {
		c, _ := ps.defaultCost(key)
		entries[key] = CostEntry{Key: key, Cost: c}
	}
	entries[models.TaskMonster] = CostEntry{Key: models.TaskMonster, Cost: ps.monsterCost}
	for _, r := range rules {
		entries[r.Key] = CostEntry{Key: r.Key, Cost: r.Cost, Overridden: true}
	}

	out := make([]CostEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// SetCost upserts the price of key.
func (ps *PricingService) SetCost(ctx context.Context, key string, cost decimal.Decimal) (*models.GemCostRule, error) {
	if _, known := ps.defaultCost(key); !known {
		return nil, fmt.Errorf("%w: unknown cost key %q", ErrValidation, key)
	}
	if cost.IsNegative() {
		return nil, fmt.Errorf("%w: cost must not be negative", ErrValidation)
	}

	rule := models.GemCostRule{Key: key, Cost: cost.Round(2)}
	err := ps.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "rule_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"cost", "updated_at"}),
	}).Create(&rule).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save cost rule: %w", err)
	}
	return &rule, nil
}
