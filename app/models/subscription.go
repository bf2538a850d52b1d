package models

import (
	"time"

	"gorm.io/gorm"
)

// SubscriptionMode distinguishes invoice-generating subscriptions from
// direct-pay subscriptions settled by the subscriber wallet each interval.
type SubscriptionMode string

const (
	SubscriptionModeInvoice SubscriptionMode = "invoice"
	SubscriptionModeDirect  SubscriptionMode = "direct"
)

// Valid reports whether m is a known subscription mode.
func (m SubscriptionMode) Valid() bool {
	return m == SubscriptionModeInvoice || m == SubscriptionModeDirect
}

// Subscription mirrors one on-chain subscription record. Cancellation is
// terminal and irreversible.
type Subscription struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	IDHex             string           `gorm:"type:char(64);not null;uniqueIndex" json:"id_hex" validate:"required,len=64,lowercase,hexadecimal"`
	StoreID           uint             `gorm:"not null;index" json:"store_id"`
	Store             *Store           `gorm:"foreignKey:StoreID" json:"-"`
	MerchantPrincipal string           `gorm:"type:varchar(128);not null" json:"merchant_principal"`
	Subscriber        string           `gorm:"type:varchar(128);not null;index" json:"subscriber" validate:"required"`
	AmountSats        uint64           `gorm:"not null" json:"amount_sats" validate:"required,gt=0"`
	IntervalBlocks    uint64           `gorm:"not null" json:"interval_blocks" validate:"required,gt=0"`
	Mode              SubscriptionMode `gorm:"type:varchar(16);not null;default:'invoice'" json:"mode"`
	Active            bool             `gorm:"default:true;index" json:"active"`
	NextInvoiceAt     uint64           `gorm:"not null;default:0" json:"next_invoice_at"` // block height
	CanceledAt        *time.Time       `json:"canceled_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	DeletedAt         gorm.DeletedAt   `gorm:"index" json:"-"`
}

// Due reports whether a direct payment is currently due at tipHeight.
func (s *Subscription) Due(tipHeight uint64) bool {
	return tipHeight >= s.NextInvoiceAt
}

// Cancel marks the subscription inactive. The operation is idempotent; the
// first cancellation timestamp is preserved.
func (s *Subscription) Cancel() {
	if !s.Active && s.CanceledAt != nil {
		return
	}
	s.Active = false
	if s.CanceledAt == nil {
		now := time.Now()
		s.CanceledAt = &now
	}
}
