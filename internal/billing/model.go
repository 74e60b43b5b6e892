package billing

// Order status labels.
const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
	OrderStatusFailed  = "failed"
)

// Transaction kinds recorded against a credit balance.
const (
	TransactionTopup     = "topup"
	TransactionDeduction = "deduction"
)

// TierRecord is one persisted discount tier row. Position fixes the match
// order the calculator relies on; the last position doubles as the open-ended
// ceiling tier for overflow quantities.
type TierRecord struct {
	Position        int     `gorm:"column:position;primaryKey;not null"`
	MinCredits      int64   `gorm:"column:min_credits;not null"`
	MaxCredits      int64   `gorm:"column:max_credits;not null"`
	DiscountPercent float64 `gorm:"column:discount_percent;not null"`
	Name            string  `gorm:"column:name;size:190;not null"`
}

// TableName provides the explicit table binding for GORM.
func (TierRecord) TableName() string {
	return "pricing_tiers"
}

// RateConfig holds the singleton base-rate row the tier table is priced from.
type RateConfig struct {
	ID                 int     `gorm:"column:id;primaryKey"`
	BasePricePerCredit float64 `gorm:"column:base_price_per_credit;not null"`
	Currency           string  `gorm:"column:currency;size:8;not null;default:'INR'"`
}

// TableName provides the explicit table binding for GORM.
func (RateConfig) TableName() string {
	return "pricing_rate_config"
}

// CreditBalance is the current prepaid credit balance of one user.
type CreditBalance struct {
	UserID           string `gorm:"column:user_id;primaryKey;size:190;not null"`
	Credits          int64  `gorm:"column:credits;not null;default:0"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (CreditBalance) TableName() string {
	return "credit_balances"
}

// CreditTransaction is one append-only movement on a balance, with the balance
// snapshot after the movement for auditability.
type CreditTransaction struct {
	TransactionID    string `gorm:"column:transaction_id;primaryKey;size:190;not null"`
	UserID           string `gorm:"column:user_id;size:190;not null;index:idx_credit_tx_user_time,priority:1"`
	AmountCredits    int64  `gorm:"column:amount_credits;not null"`
	BalanceAfter     int64  `gorm:"column:balance_after;not null"`
	Kind             string `gorm:"column:kind;size:32;not null"`
	ReferenceID      string `gorm:"column:reference_id;size:190"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_credit_tx_user_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

// PaymentOrder is a quoted purchase handed to the external payment gateway.
// Amount is the rounded quote price; the gateway treats it as opaque.
type PaymentOrder struct {
	OrderID          string  `gorm:"column:order_id;primaryKey;size:190;not null"`
	UserID           string  `gorm:"column:user_id;size:190;not null;index"`
	Credits          int64   `gorm:"column:credits;not null"`
	Amount           int64   `gorm:"column:amount;not null"`
	Currency         string  `gorm:"column:currency;size:8;not null"`
	DiscountPercent  float64 `gorm:"column:discount_percent;not null"`
	TierName         string  `gorm:"column:tier_name;size:190"`
	Status           string  `gorm:"column:status;size:32;not null;default:'pending'"`
	GatewayRef       string  `gorm:"column:gateway_ref;size:190"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null"`
	SettledAtSeconds *int64  `gorm:"column:settled_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (PaymentOrder) TableName() string {
	return "payment_orders"
}
