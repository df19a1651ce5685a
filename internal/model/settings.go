package model

import "time"

// CompanySettings is a single-row table of company-wide toggles. When
// RequireContractForOrders is on, every sale order must be linked to an
// approved, running contract before it can be confirmed.
type CompanySettings struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	RequireContractForOrders bool      `gorm:"default:false" json:"require_contract_for_orders"`
	UpdatedAt                time.Time `json:"updated_at"`
}
