package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Job{},
		&Holiday{},
		&JobContentSection{},
		&SectionHistory{},
		&GemsAccount{},
		&GemTransaction{},
		&GemCostRule{},
		&Coupon{},
		&CouponRedemption{},
		&GenerationLog{},
		&MonsterRun{},
	}
}
