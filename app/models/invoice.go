package models

import (
	"time"

	"gorm.io/gorm"
)

// InvoiceStatus is the closed set of invoice states. Terminal states never
// transition again; the resolver and pollers are the only writers after creation.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid            InvoiceStatus = "unpaid"
	InvoiceStatusPending           InvoiceStatus = "pending"
	InvoiceStatusPaid              InvoiceStatus = "paid"
	InvoiceStatusPartiallyRefunded InvoiceStatus = "partially_refunded"
	InvoiceStatusRefunded          InvoiceStatus = "refunded"
	InvoiceStatusCanceled          InvoiceStatus = "canceled"
	InvoiceStatusExpired           InvoiceStatus = "expired"
)

// IsTerminal reports whether no further status transition is permitted.
func (s InvoiceStatus) IsTerminal() bool {
	switch s {
	case InvoiceStatusPaid, InvoiceStatusPartiallyRefunded, InvoiceStatusRefunded,
		InvoiceStatusCanceled, InvoiceStatusExpired:
		return true
	case InvoiceStatusUnpaid, InvoiceStatusPending:
		return false
	}
	return false
}

// IsPayable reports whether a pay-invoice call may still be assembled locally.
func (s InvoiceStatus) IsPayable() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPending:
		return true
	}
	return false
}

// Valid reports whether s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPending, InvoiceStatusPaid,
		InvoiceStatusPartiallyRefunded, InvoiceStatusRefunded,
		InvoiceStatusCanceled, InvoiceStatusExpired:
		return true
	}
	return false
}

// Invoice mirrors one on-chain invoice record. Rows are never deleted, only
// marked terminal. AmountSats and QuoteExpiresAt are fixed at creation.
type Invoice struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	IDHex             string         `gorm:"type:char(64);not null;uniqueIndex" json:"id_hex" validate:"required,len=64,lowercase,hexadecimal"`
	StoreID           uint           `gorm:"not null;index" json:"store_id"`
	Store             *Store         `gorm:"foreignKey:StoreID" json:"-"`
	MerchantPrincipal string         `gorm:"type:varchar(128);not null" json:"merchant_principal"`
	AmountSats        uint64         `gorm:"not null" json:"amount_sats" validate:"required,gt=0"`
	RefundAmount      uint64         `gorm:"not null;default:0" json:"refund_amount"`
	Status            InvoiceStatus  `gorm:"type:varchar(32);not null;default:'unpaid';index" json:"status"`
	QuoteExpiresAt    int64          `gorm:"not null" json:"quote_expires_at"` // ms epoch, immutable
	Memo              string         `gorm:"type:varchar(255)" json:"memo"`
	WebhookURL        string         `gorm:"type:varchar(512)" json:"webhook_url"`
	PaidAtHeight      *uint64        `json:"paid_at_height,omitempty"`
	PollCount         uint64         `gorm:"default:0" json:"poll_count"`
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// QuoteExpired reports whether the quote window has passed at nowMs.
func (i *Invoice) QuoteExpired(nowMs int64) bool {
	return nowMs > i.QuoteExpiresAt
}

// CanTransitionTo enforces monotone movement toward a terminal state.
// Refund states are reachable only from paid (or a prior partial refund).
func (i *Invoice) CanTransitionTo(next InvoiceStatus) bool {
	if i.Status == next {
		return false
	}
	switch i.Status {
	case InvoiceStatusUnpaid, InvoiceStatusPending:
		switch next {
		case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusCanceled, InvoiceStatusExpired:
			return true
		}
		return false
	case InvoiceStatusPaid:
		return next == InvoiceStatusPartiallyRefunded || next == InvoiceStatusRefunded
	case InvoiceStatusPartiallyRefunded:
		return next == InvoiceStatusRefunded
	}
	// refunded, canceled, expired: terminal
	return false
}

// ApplyRefund records an additional refunded amount, keeping RefundAmount
// monotone and capped at AmountSats.
func (i *Invoice) ApplyRefund(amountSats uint64) bool {
	if amountSats == 0 || i.RefundAmount+amountSats > i.AmountSats {
		return false
	}
	i.RefundAmount += amountSats
	if i.RefundAmount == i.AmountSats {
		i.Status = InvoiceStatusRefunded
	} else {
		i.Status = InvoiceStatusPartiallyRefunded
	}
	return true
}
