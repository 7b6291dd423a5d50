package coupons

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/internal/changelog"
	"github.com/angelmondragon/pos-backend/internal/pricing"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
)

const maxCodeAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	ProductsByJAN(ctx context.Context, tx *gorm.DB, jans []string) (map[string]models.Product, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CreateInput describes a new coupon. Which fields are required depends on Type.
type CreateInput struct {
	Type               enums.CouponType `json:"type" validate:"required"`
	ExpiresAt          time.Time        `json:"expires_at" validate:"required"`
	DiscountValue      decimal.Decimal  `json:"discount_value"`
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	TargetJAN          string           `json:"target_jan,omitempty" validate:"omitempty,jan"`
	MinQuantity        int              `json:"min_quantity,omitempty" validate:"gte=0"`
	ComboJANs          []string         `json:"combo_jans,omitempty" validate:"omitempty,dive,jan"`
}

// Service manages coupons.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Coupon, error)
	Get(ctx context.Context, code string) (*models.Coupon, error)
	List(ctx context.Context, includeExpired bool) ([]models.Coupon, error)
	Redeemable(ctx context.Context, tx *gorm.DB, code string, now time.Time) (*models.Coupon, pricing.Policy, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	products productLoader
	recorder changelog.Recorder
	outbox   outboxPublisher
	rnd      io.Reader
	now      func() time.Time
}

// Option customises the coupon service.
type Option func(*service)

// WithRandom replaces the entropy source used for code generation.
func WithRandom(r io.Reader) Option {
	return func(s *service) {
		if r != nil {
			s.rnd = r
		}
	}
}

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the coupon service.
func NewService(repo Repository, tx txRunner, products productLoader, recorder changelog.Recorder, publisher outboxPublisher, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("changelog recorder required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	s := &service{
		repo:     repo,
		tx:       tx,
		products: products,
		recorder: recorder,
		outbox:   publisher,
		rnd:      rand.Reader,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Coupon, error) {
	if err := validateInput(input, s.now()); err != nil {
		return nil, err
	}

	var created *models.Coupon
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := GenerateCode(input.Type, s.rnd)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate coupon code")
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			coupon, err := s.build(ctx, tx, code, input)
			if err != nil {
				return err
			}
			if err := s.repo.WithTx(tx).Create(ctx, coupon); err != nil {
				return err
			}
			if _, err := s.recorder.Record(ctx, tx, changelog.Entry{
				Entity:   enums.ChangeEntityCoupon,
				EntityID: coupon.Code,
				Action:   enums.ChangeActionCreated,
				Snapshot: coupon,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon change")
			}
			created = coupon
			return nil
		})
		if err == nil {
			break
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		if db.IsUniqueViolation(err, "coupons_pkey") {
			if attempt == maxCodeAttempts {
				return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "could not allocate a unique coupon code")
			}
			continue
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert coupon")
	}
	return s.Get(ctx, created.Code)
}

func (s *service) build(ctx context.Context, tx *gorm.DB, code string, input CreateInput) (*models.Coupon, error) {
	coupon := &models.Coupon{
		Code:               code,
		Type:               input.Type,
		ExpiresAt:          input.ExpiresAt.UTC(),
		DiscountValue:      input.DiscountValue,
		DiscountPercentage: input.DiscountPercentage,
		MinQuantity:        input.MinQuantity,
	}

	jans := append([]string{}, input.ComboJANs...)
	if input.Type.NeedsTargetProduct() {
		jans = append(jans, input.TargetJAN)
	}
	if len(jans) == 0 {
		return coupon, nil
	}
	products, err := s.products.ProductsByJAN(ctx, tx, jans)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, jan := range jans {
		if _, ok := products[jan]; !ok {
			missing = append(missing, jan)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"jans": missing})
	}

	if input.Type.NeedsTargetProduct() {
		target := products[input.TargetJAN]
		coupon.TargetProductID = &target.ID
		coupon.TargetProduct = &target
	}
	seen := map[uuid.UUID]bool{}
	for _, jan := range input.ComboJANs {
		product := products[jan]
		if seen[product.ID] {
			continue
		}
		seen[product.ID] = true
		coupon.ComboProducts = append(coupon.ComboProducts, models.CouponComboProduct{ProductID: product.ID, Product: &product})
	}
	return coupon, nil
}

func validateInput(input CreateInput, now time.Time) error {
	if !input.Type.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown coupon type %q", input.Type)
	}
	if !input.ExpiresAt.After(now) {
		return pkgerrors.New(pkgerrors.CodeValidation, "expires_at must be in the future")
	}
	if input.DiscountValue.IsNegative() || input.DiscountPercentage.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount must not be negative")
	}

	switch input.Type {
	case enums.CouponTypePercent:
		if input.DiscountPercentage.IsZero() || input.DiscountPercentage.GreaterThan(decimal.NewFromInt(100)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount_percentage must be between 0 and 100")
		}
	case enums.CouponTypeCombo:
		if len(input.ComboJANs) < 2 {
			return pkgerrors.New(pkgerrors.CodeValidation, "combo coupons need at least two products")
		}
	case enums.CouponTypeMulti:
		if input.MinQuantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "min_quantity must be positive")
		}
	}
	if input.Type.NeedsTargetProduct() && strings.TrimSpace(input.TargetJAN) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "target_jan is required")
	}
	if input.Type != enums.CouponTypePercent && input.DiscountValue.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_value is required")
	}
	return nil
}

func (s *service) Get(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := s.repo.FindByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found").
				WithDetails(map[string]any{"code": code})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load coupon")
	}
	return coupon, nil
}

func (s *service) List(ctx context.Context, includeExpired bool) ([]models.Coupon, error) {
	rows, err := s.repo.List(ctx, includeExpired, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list coupons")
	}
	return rows, nil
}

// Redeemable loads a coupon for use at now and resolves its discount policy.
func (s *service) Redeemable(ctx context.Context, tx *gorm.DB, code string, now time.Time) (*models.Coupon, pricing.Policy, error) {
	coupon, err := s.repo.WithTx(tx).FindByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found").
				WithDetails(map[string]any{"coupon_code": code})
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load coupon")
	}
	if coupon.Expired(now) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon has expired").
			WithDetails(map[string]any{"coupon_code": code, "expires_at": coupon.ExpiresAt})
	}
	policy, err := PolicyFor(coupon)
	if err != nil {
		return nil, nil, err
	}
	return coupon, policy, nil
}

// PolicyFor maps a stored coupon onto its discount policy.
func PolicyFor(coupon *models.Coupon) (pricing.Policy, error) {
	targetJAN := ""
	if coupon.TargetProduct != nil {
		targetJAN = coupon.TargetProduct.JAN
	}

	switch coupon.Type {
	case enums.CouponTypePercent:
		return pricing.PercentPolicy{Percentage: coupon.DiscountPercentage}, nil
	case enums.CouponTypeAmount:
		return pricing.AmountPolicy{Value: coupon.DiscountValue}, nil
	case enums.CouponTypeProduct:
		if targetJAN == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon target product is missing")
		}
		return pricing.ProductPolicy{Value: coupon.DiscountValue, TargetJAN: targetJAN}, nil
	case enums.CouponTypeMulti:
		if targetJAN == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon target product is missing")
		}
		return pricing.MultiPolicy{Value: coupon.DiscountValue, TargetJAN: targetJAN, MinQuantity: coupon.MinQuantity}, nil
	case enums.CouponTypeCombo:
		jans := make([]string, 0, len(coupon.ComboProducts))
		for _, combo := range coupon.ComboProducts {
			if combo.Product != nil {
				jans = append(jans, combo.Product.JAN)
			}
		}
		if len(jans) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "combo coupon has no products")
		}
		return pricing.ComboPolicy{Value: coupon.DiscountValue, JANs: jans}, nil
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown coupon type %q", coupon.Type)
}

// PurgeExpired deletes every coupon expired at now and queues a
// coupons_purged event listing them.
func (s *service) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		codes, err := repo.ExpiredCodes(ctx, now.UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list expired coupons")
		}
		if len(codes) == 0 {
			return nil
		}
		deleted, err = repo.DeleteByCodes(ctx, codes)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete expired coupons")
		}
		for _, code := range codes {
			if _, err := s.recorder.Record(ctx, tx, changelog.Entry{
				Entity:   enums.ChangeEntityCoupon,
				EntityID: code,
				Action:   enums.ChangeActionDeleted,
				Snapshot: map[string]any{"code": code, "purged_at": now.UTC()},
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon change")
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCouponsPurged,
			AggregateType: enums.AggregateCoupon,
			AggregateID:   now.UTC().Format(time.RFC3339),
			Actor:         &outbox.ActorRef{Name: changelog.ActorFromContext(ctx)},
			Data:          payloads.CouponsPurgedEvent{Codes: codes, PurgedAt: now.UTC()},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return 0, err
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge expired coupons")
	}
	return deleted, nil
}
