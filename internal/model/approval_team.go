package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"contractflow/pkg/apperr"
)

// ApprovalTeam is a named group of approvers. Each member carries an amount
// band; a contract assigned to the team can only be approved by a member whose
// band covers the contract amount. When LeaderOverride is enabled the team
// leader may approve any amount without holding a band.
type ApprovalTeam struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name           string         `gorm:"type:varchar(255);not null" json:"name"`
	LeaderID       uuid.UUID      `gorm:"type:uuid;not null" json:"leader_id"`
	Leader         *User          `gorm:"foreignKey:LeaderID" json:"leader,omitempty"`
	LeaderOverride bool           `gorm:"default:false" json:"leader_override"`
	Active         bool           `gorm:"default:true" json:"active"`
	Bands          []ApproverBand `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"bands"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// ApproverBand grants one user approval authority within [MinAmount, MaxAmount].
// An unbounded maximum is expressed with NoUpperLimit; a MaxAmount of zero
// without the flag is a literal zero ceiling.
type ApproverBand struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TeamID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_band_team_user,unique" json:"team_id"`
	UserID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_band_team_user,unique" json:"user_id"`
	User         *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	RoleLabel    string          `gorm:"type:varchar(100)" json:"role_label"`
	Sequence     int             `gorm:"default:10" json:"sequence"`
	MinAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"min_amount"`
	MaxAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"max_amount"`
	NoUpperLimit bool            `gorm:"default:false" json:"no_upper_limit"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Covers reports whether amount falls inside the band's approval range.
func (b ApproverBand) Covers(amount decimal.Decimal) bool {
	if amount.LessThan(b.MinAmount) {
		return false
	}
	if b.NoUpperLimit {
		return true
	}
	return amount.LessThanOrEqual(b.MaxAmount)
}

// BandFor returns the first band belonging to userID, scanning in band order.
// The (team, user) uniqueness constraint keeps duplicates out, so first match
// is the only match.
func (t *ApprovalTeam) BandFor(userID uuid.UUID) *ApproverBand {
	for i := range t.Bands {
		if t.Bands[i].UserID == userID {
			return &t.Bands[i]
		}
	}
	return nil
}

// AuthorizeApproval decides whether userID may approve a contract of the given
// amount. Band members must hold a band covering the amount; the team leader
// passes without an amount restriction when LeaderOverride is on.
func (t *ApprovalTeam) AuthorizeApproval(userID uuid.UUID, amount decimal.Decimal) error {
	band := t.BandFor(userID)
	if band == nil {
		if t.LeaderOverride && userID == t.LeaderID {
			return nil
		}
		return apperr.Policy("NOT_TEAM_APPROVER",
			"you are not authorized to approve or reject contracts for this team")
	}
	if amount.LessThan(band.MinAmount) {
		return apperr.Policy("AMOUNT_BELOW_BAND", fmt.Sprintf(
			"the contract amount (%s) is below your minimum approval amount (%s)",
			amount.StringFixed(2), band.MinAmount.StringFixed(2)))
	}
	if !band.Covers(amount) {
		return apperr.Policy("AMOUNT_ABOVE_BAND", fmt.Sprintf(
			"the contract amount (%s) exceeds your approval limit (%s)",
			amount.StringFixed(2), band.MaxAmount.StringFixed(2)))
	}
	return nil
}

// AuthorizeRejection decides whether userID may reject a contract. Any band
// member or the team leader may reject; the amount band restricts what a
// member can commit the company to, not what they can refuse.
func (t *ApprovalTeam) AuthorizeRejection(userID uuid.UUID) error {
	if t.BandFor(userID) != nil || userID == t.LeaderID {
		return nil
	}
	return apperr.Policy("NOT_TEAM_APPROVER",
		"you are not authorized to approve or reject contracts for this team")
}

// Validate enforces the structural invariants of the band set: at least one
// band, min <= max on every bounded band, no duplicate user within the team.
func (t *ApprovalTeam) Validate() error {
	if len(t.Bands) == 0 {
		return apperr.Validation("BANDS_REQUIRED",
			"at least one approver band must be defined for the approval team")
	}
	seen := make(map[uuid.UUID]bool, len(t.Bands))
	for i, band := range t.Bands {
		if band.UserID == uuid.Nil {
			return apperr.Validation("BAND_USER_REQUIRED",
				fmt.Sprintf("bands[%d]: approver user is required", i))
		}
		if seen[band.UserID] {
			return apperr.Validation("BAND_USER_DUPLICATE",
				"an approver can only be added once per team")
		}
		seen[band.UserID] = true
		if band.MinAmount.IsNegative() {
			return apperr.Validation("BAND_MIN_NEGATIVE",
				fmt.Sprintf("bands[%d]: minimum amount cannot be negative", i))
		}
		if !band.NoUpperLimit && band.MinAmount.GreaterThan(band.MaxAmount) {
			return apperr.Validation("BAND_RANGE_INVALID",
				fmt.Sprintf("bands[%d]: minimum amount cannot be greater than maximum amount", i))
		}
	}
	return nil
}
