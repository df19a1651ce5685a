package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContractUtilization ranks a contract by how much of its ceiling is consumed.
type ContractUtilization struct {
	ContractID     uuid.UUID       `json:"contract_id"`
	Reference      string          `json:"reference"`
	Title          string          `json:"title"`
	ContractAmount decimal.Decimal `json:"contract_amount"`
	UsedAmount     decimal.Decimal `json:"used_amount"`
	UtilizationPct decimal.Decimal `json:"utilization_pct"`
}

// ContractStatistics aggregates the contract portfolio for dashboards.
type ContractStatistics struct {
	CountByApprovalState map[string]int64      `json:"count_by_approval_state"`
	TotalCeiling         decimal.Decimal       `json:"total_ceiling"`
	TotalUsed            decimal.Decimal       `json:"total_used"`
	TotalRemaining       decimal.Decimal       `json:"total_remaining"`
	TopUtilized          []ContractUtilization `json:"top_utilized"`
}
