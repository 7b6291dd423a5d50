package coupons

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
)

// Repository persists coupons and their combo product links.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, coupon *models.Coupon) error
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	List(ctx context.Context, includeExpired bool, now time.Time) ([]models.Coupon, error)
	ExpiredCodes(ctx context.Context, now time.Time) ([]string, error)
	DeleteByCodes(ctx context.Context, codes []string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a coupon repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the coupon and its combo rows. Associations are written
// explicitly so a code collision surfaces on the coupon insert itself.
func (r *repository) Create(ctx context.Context, coupon *models.Coupon) error {
	combos := coupon.ComboProducts
	if err := r.db.WithContext(ctx).Omit("ComboProducts", "TargetProduct").Create(coupon).Error; err != nil {
		return err
	}
	if len(combos) == 0 {
		return nil
	}
	for i := range combos {
		combos[i].CouponCode = coupon.Code
	}
	return r.db.WithContext(ctx).Omit("Product").Create(&combos).Error
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Preload("TargetProduct").
		Preload("ComboProducts.Product").
		Where("code = ?", code).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) List(ctx context.Context, includeExpired bool, now time.Time) ([]models.Coupon, error) {
	q := r.db.WithContext(ctx).
		Preload("TargetProduct").
		Preload("ComboProducts.Product")
	if !includeExpired {
		q = q.Where("expires_at > ?", now)
	}
	var rows []models.Coupon
	if err := q.Order("expires_at ASC").Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ExpiredCodes(ctx context.Context, now time.Time) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("expires_at <= ?", now).
		Order("code ASC").
		Pluck("code", &codes).Error
	return codes, err
}

func (r *repository) DeleteByCodes(ctx context.Context, codes []string) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	if err := r.db.WithContext(ctx).
		Where("coupon_code IN ?", codes).
		Delete(&models.CouponComboProduct{}).Error; err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).Where("code IN ?", codes).Delete(&models.Coupon{})
	return res.RowsAffected, res.Error
}
