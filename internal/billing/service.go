package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reelforge/studio/backend/internal/pricing"
)

const defaultCurrency = "INR"

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	// ErrInvalidCredits indicates a quote or order for a non-positive quantity.
	ErrInvalidCredits = errors.New("billing: credits must be positive")
	// ErrOrderNotFound indicates the referenced payment order does not exist.
	ErrOrderNotFound = errors.New("billing: order not found")
	// ErrOrderNotPending indicates a settle attempt on an already settled or failed order.
	ErrOrderNotPending = errors.New("billing: order is not pending")
	noOpLogger         = zap.NewNop()
)

// ServiceError wraps a failure with an operation-scoped code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code exposes the machine-readable failure code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew   = "billing.service.new"
	opQuote        = "billing.quote"
	opCreateOrder  = "billing.create_order"
	opSettleOrder  = "billing.settle_order"
	opBalance      = "billing.balance"
	opReplaceTiers = "billing.replace_tiers"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues identifiers for orders and balance transactions.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig bundles the dependencies of the billing service.
type ServiceConfig struct {
	Database   *gorm.DB
	Cache      *TierCache
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service quotes credit purchases against the persisted tier table, manages
// payment orders, and keeps the per-user credit ledger.
type Service struct {
	db         *gorm.DB
	cache      *TierCache
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		cache:      cfg.Cache,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// LoadTierTable returns the active tier table, preferring the redis cache and
// falling back to the database. A missing table returns nil, which the
// calculator resolves to the standard rate.
func (s *Service) LoadTierTable(ctx context.Context) (*pricing.TierTable, error) {
	if cached := s.cache.Get(ctx); cached != nil {
		return cached, nil
	}

	var tiers []TierRecord
	if err := s.db.WithContext(ctx).Order("position ASC").Find(&tiers).Error; err != nil {
		return nil, newServiceError(opQuote, "tier_query_failed", err)
	}
	if len(tiers) == 0 {
		return nil, nil
	}

	var rate RateConfig
	err := s.db.WithContext(ctx).Take(&rate).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newServiceError(opQuote, "rate_query_failed", err)
	}

	table := &pricing.TierTable{
		BasePricePerCredit: rate.BasePricePerCredit,
		Tiers:              make([]pricing.Tier, 0, len(tiers)),
	}
	for _, tier := range tiers {
		table.Tiers = append(table.Tiers, pricing.Tier{
			MinCredits:      tier.MinCredits,
			MaxCredits:      tier.MaxCredits,
			DiscountPercent: tier.DiscountPercent,
			Name:            tier.Name,
		})
	}

	s.cache.Set(ctx, table)
	return table, nil
}

// ReplaceTierTable swaps the persisted tier rows and base rate, then drops the
// cache so the next quote sees the new table.
func (s *Service) ReplaceTierTable(ctx context.Context, table pricing.TierTable, currency string) error {
	if currency == "" {
		currency = defaultCurrency
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&TierRecord{}).Error; err != nil {
			return newServiceError(opReplaceTiers, "tier_delete_failed", err)
		}
		for position, tier := range table.Tiers {
			record := TierRecord{
				Position:        position + 1,
				MinCredits:      tier.MinCredits,
				MaxCredits:      tier.MaxCredits,
				DiscountPercent: tier.DiscountPercent,
				Name:            tier.Name,
			}
			if err := tx.Create(&record).Error; err != nil {
				return newServiceError(opReplaceTiers, "tier_insert_failed", err)
			}
		}
		rate := RateConfig{ID: 1, BasePricePerCredit: table.BasePricePerCredit, Currency: currency}
		if err := tx.Save(&rate).Error; err != nil {
			return newServiceError(opReplaceTiers, "rate_save_failed", err)
		}
		return nil
	})
	if txErr != nil {
		s.logError(opReplaceTiers, txErr, "")
		return txErr
	}

	s.cache.Invalidate(ctx)
	return nil
}

// EnsureRateConfig seeds the base-rate row on first startup and leaves an
// existing row untouched.
func (s *Service) EnsureRateConfig(ctx context.Context, basePricePerCredit float64, currency string) error {
	if currency == "" {
		currency = defaultCurrency
	}

	var rate RateConfig
	err := s.db.WithContext(ctx).Take(&rate).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return newServiceError(opReplaceTiers, "rate_query_failed", err)
	}

	rate = RateConfig{ID: 1, BasePricePerCredit: basePricePerCredit, Currency: currency}
	if err := s.db.WithContext(ctx).Create(&rate).Error; err != nil {
		return newServiceError(opReplaceTiers, "rate_seed_failed", err)
	}
	return nil
}

// Quote prices the requested quantity against the active tier table.
func (s *Service) Quote(ctx context.Context, credits int64) (pricing.Result, error) {
	if credits <= 0 {
		return pricing.Result{}, newServiceError(opQuote, "invalid_credits", ErrInvalidCredits)
	}

	table, err := s.LoadTierTable(ctx)
	if err != nil {
		s.logError(opQuote, err, "")
		return pricing.Result{}, err
	}

	return pricing.Price(credits, table), nil
}

// CreateOrder quotes the purchase and persists a pending payment order whose
// amount is the rounded quote price.
func (s *Service) CreateOrder(ctx context.Context, userID string, credits int64) (*PaymentOrder, error) {
	quote, err := s.Quote(ctx, credits)
	if err != nil {
		return nil, err
	}

	orderID, err := s.idProvider.NewID()
	if err != nil {
		wrapped := newServiceError(opCreateOrder, "id_generation_failed", err)
		s.logError(opCreateOrder, wrapped, userID)
		return nil, wrapped
	}

	currency := defaultCurrency
	var rate RateConfig
	if err := s.db.WithContext(ctx).Take(&rate).Error; err == nil && rate.Currency != "" {
		currency = rate.Currency
	}

	order := PaymentOrder{
		OrderID:          orderID,
		UserID:           userID,
		Credits:          credits,
		Amount:           quote.Price,
		Currency:         currency,
		DiscountPercent:  quote.DiscountPercent,
		TierName:         quote.TierName,
		Status:           OrderStatusPending,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		wrapped := newServiceError(opCreateOrder, "order_insert_failed", err)
		s.logError(opCreateOrder, wrapped, userID)
		return nil, wrapped
	}

	return &order, nil
}

// SettleOrder marks a pending order paid and credits the purchased quantity to
// the user's balance in one transaction. Orders are only addressable by their
// owner; any other caller gets ErrOrderNotFound so order IDs stay opaque. A
// second settle of the same order fails with ErrOrderNotPending.
func (s *Service) SettleOrder(ctx context.Context, userID, orderID, gatewayRef string) (*PaymentOrder, error) {
	now := s.clock().UTC().Unix()

	var settled PaymentOrder
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order PaymentOrder
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ?", orderID).Take(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opSettleOrder, "order_not_found", ErrOrderNotFound)
		}
		if err != nil {
			return newServiceError(opSettleOrder, "order_select_failed", err)
		}
		if order.UserID != userID {
			return newServiceError(opSettleOrder, "order_not_found", ErrOrderNotFound)
		}
		if order.Status != OrderStatusPending {
			return newServiceError(opSettleOrder, "order_not_pending", ErrOrderNotPending)
		}

		order.Status = OrderStatusPaid
		order.GatewayRef = gatewayRef
		order.SettledAtSeconds = &now
		if err := tx.Save(&order).Error; err != nil {
			return newServiceError(opSettleOrder, "order_save_failed", err)
		}

		var balance CreditBalance
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", order.UserID).Take(&balance).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			balance = CreditBalance{UserID: order.UserID}
		} else if err != nil {
			return newServiceError(opSettleOrder, "balance_select_failed", err)
		}

		balance.Credits += order.Credits
		balance.UpdatedAtSeconds = now
		if err := tx.Save(&balance).Error; err != nil {
			return newServiceError(opSettleOrder, "balance_save_failed", err)
		}

		transactionID, err := s.idProvider.NewID()
		if err != nil {
			return newServiceError(opSettleOrder, "id_generation_failed", err)
		}
		movement := CreditTransaction{
			TransactionID:    transactionID,
			UserID:           order.UserID,
			AmountCredits:    order.Credits,
			BalanceAfter:     balance.Credits,
			Kind:             TransactionTopup,
			ReferenceID:      order.OrderID,
			CreatedAtSeconds: now,
		}
		if err := tx.Create(&movement).Error; err != nil {
			return newServiceError(opSettleOrder, "transaction_insert_failed", err)
		}

		settled = order
		return nil
	})
	if txErr != nil {
		s.logError(opSettleOrder, txErr, userID)
		return nil, txErr
	}

	return &settled, nil
}

// Statement bundles a balance with its most recent transactions.
type Statement struct {
	Balance      CreditBalance
	Transactions []CreditTransaction
}

// Balance returns the user's credit balance and up to limit recent
// transactions, newest first. An unseen user reports a zero balance.
func (s *Service) Balance(ctx context.Context, userID string, limit int) (Statement, error) {
	if limit <= 0 {
		limit = 20
	}

	var balance CreditBalance
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		balance = CreditBalance{UserID: userID}
	} else if err != nil {
		wrapped := newServiceError(opBalance, "balance_query_failed", err)
		s.logError(opBalance, wrapped, userID)
		return Statement{}, wrapped
	}

	var transactions []CreditTransaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at_s DESC, transaction_id DESC").
		Limit(limit).
		Find(&transactions).Error; err != nil {
		wrapped := newServiceError(opBalance, "transaction_query_failed", err)
		s.logError(opBalance, wrapped, userID)
		return Statement{}, wrapped
	}

	return Statement{Balance: balance, Transactions: transactions}, nil
}

func (s *Service) logError(operation string, err error, userID string) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.Error(err),
	}
	if userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	s.logger.Error("billing service error", fields...)
}
