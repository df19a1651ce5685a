package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ApprovalState enum constants
const (
	ContractDraft    = "DRAFT"
	ContractPending  = "PENDING"
	ContractApproved = "APPROVED"
	ContractRejected = "REJECTED"
)

// ActivationState enum constants. Activation is orthogonal to the approval
// state: an approved contract only consumes headroom while it is OPEN.
const (
	ActivationNotOpen = "NOT_OPEN"
	ActivationOpen    = "OPEN"
	ActivationClosed  = "CLOSED"
)

// ReferencePlaceholder is the pre-persistence value of Reference; the
// sequence replaces it before the row is ever written.
const ReferencePlaceholder = "New"

// Contract is a pre-approved spending ceiling tied to a partner. Confirmed
// sale orders consume the ceiling; UsedAmount and RemainingAmount are derived
// from current order rows on every read, never maintained as counters.
type Contract struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Reference       string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"reference"`
	Title           string          `gorm:"type:varchar(255);not null" json:"title"`
	PartnerID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"partner_id"`
	Partner         *Partner        `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`
	CurrencyCode    string          `gorm:"type:varchar(3);not null;default:'USD'" json:"currency_code"`
	ContractAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"contract_amount"`
	ApprovalTeamID  *uuid.UUID      `gorm:"type:uuid;index" json:"approval_team_id"`
	ApprovalTeam    *ApprovalTeam   `gorm:"foreignKey:ApprovalTeamID" json:"approval_team,omitempty"`
	ApprovalState   string          `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"approval_state"`
	ActivationState string          `gorm:"type:varchar(20);not null;default:'NOT_OPEN'" json:"activation_state"`
	ApprovedByID    *uuid.UUID      `gorm:"type:uuid" json:"approved_by_id"`
	ApprovedBy      *User           `gorm:"foreignKey:ApprovedByID" json:"approved_by,omitempty"`
	ApprovedDate    *time.Time      `json:"approved_date"`
	RejectionReason string          `gorm:"type:text" json:"rejection_reason"`
	StartDate       *time.Time      `gorm:"type:date" json:"start_date"`
	EndDate         *time.Time      `gorm:"type:date" json:"end_date"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

// Balance is a contract's derived spending position at a point in time.
type Balance struct {
	UsedAmount      decimal.Decimal `json:"used_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
}

// BalanceFrom derives the balance from the sum of confirmed-equivalent order
// totals. Pure arithmetic so the invariant remaining == amount - used cannot
// drift from missed increment or decrement events.
func (c *Contract) BalanceFrom(usedAmount decimal.Decimal) Balance {
	return Balance{
		UsedAmount:      usedAmount,
		RemainingAmount: c.ContractAmount.Sub(usedAmount),
	}
}
