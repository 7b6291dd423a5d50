package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/pos-backend/pkg/logger"
)

type couponPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type CouponPurgeJobParams struct {
	Logger  *logger.Logger
	Coupons couponPurger
}

// NewCouponPurgeJob removes coupons whose expiry has passed.
func NewCouponPurgeJob(params CouponPurgeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	return &couponPurgeJob{
		logg:    params.Logger,
		coupons: params.Coupons,
		now:     time.Now,
	}, nil
}

type couponPurgeJob struct {
	logg    *logger.Logger
	coupons couponPurger
	now     func() time.Time
}

func (j *couponPurgeJob) Name() string { return "coupon-purge" }

func (j *couponPurgeJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	deleted, err := j.coupons.PurgeExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("purge expired coupons: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"now":             now,
		"coupons_deleted": deleted,
	})
	j.logg.Info(logCtx, "expired coupons purged")
	return nil
}
