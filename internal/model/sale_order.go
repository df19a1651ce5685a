package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SaleOrder status enum constants
const (
	OrderDraft     = "DRAFT"
	OrderConfirmed = "CONFIRMED"
	OrderDone      = "DONE"
	OrderCancelled = "CANCELLED"
)

// ConfirmedEquivalentStates are the statuses counted against a contract's
// ceiling. CONFIRMED and DONE both consume headroom; DRAFT and CANCELLED
// never do.
var ConfirmedEquivalentStates = []string{OrderConfirmed, OrderDone}

// IsConfirmedEquivalent reports whether status counts as committed for
// balance purposes.
func IsConfirmedEquivalent(status string) bool {
	return status == OrderConfirmed || status == OrderDone
}

// SaleOrder is a commercial transaction whose confirmation consumes part of a
// contract's ceiling. The contract reference is optional unless the order or
// the company settings require one.
type SaleOrder struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNo         string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"order_no"`
	PartnerID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"partner_id"`
	Partner         *Partner        `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`
	ContractID      *uuid.UUID      `gorm:"type:uuid;index" json:"contract_id"`
	Contract        *Contract       `gorm:"foreignKey:ContractID" json:"contract,omitempty"`
	AmountTotal     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"amount_total"`
	Status          string          `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	RequireContract bool            `gorm:"default:false" json:"require_contract"`
	Note            string          `gorm:"type:text" json:"note"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}
