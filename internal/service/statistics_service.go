package service

import (
	"context"
	"fmt"

	"contractflow/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatisticsService interface {
	GetContractStatistics(ctx context.Context) (model.ContractStatistics, error)
}

type statisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetContractStatistics aggregates the contract portfolio for dashboards:
// counts per approval state, total ceiling versus consumption, and the top
// contracts by utilization. Used amounts come from the same
// confirmed-equivalent sum the balance engine derives, so the dashboard and
// the guard can never disagree.
func (s *statisticsService) GetContractStatistics(ctx context.Context) (model.ContractStatistics, error) {
	stats := model.ContractStatistics{
		CountByApprovalState: make(map[string]int64),
		TotalCeiling:         decimal.Zero,
		TotalUsed:            decimal.Zero,
		TotalRemaining:       decimal.Zero,
	}

	var stateCounts []struct {
		ApprovalState string
		Count         int64
	}
	if err := s.db.WithContext(ctx).Model(&model.Contract{}).
		Select("approval_state, COUNT(*) as count").
		Group("approval_state").
		Scan(&stateCounts).Error; err != nil {
		return stats, fmt.Errorf("failed to count contracts by state: %w", err)
	}
	for _, row := range stateCounts {
		stats.CountByApprovalState[row.ApprovalState] = row.Count
	}

	var totals struct {
		Ceiling decimal.Decimal
		Used    decimal.Decimal
	}
	if err := s.db.WithContext(ctx).Table("contracts").
		Select(`COALESCE(SUM(contracts.contract_amount), 0) as ceiling,
			COALESCE((SELECT SUM(amount_total) FROM sale_orders
				WHERE sale_orders.contract_id IS NOT NULL
				AND sale_orders.status IN ?
				AND sale_orders.deleted_at IS NULL), 0) as used`,
			model.ConfirmedEquivalentStates).
		Where("contracts.deleted_at IS NULL").
		Scan(&totals).Error; err != nil {
		return stats, fmt.Errorf("failed to aggregate contract totals: %w", err)
	}
	stats.TotalCeiling = totals.Ceiling
	stats.TotalUsed = totals.Used
	stats.TotalRemaining = totals.Ceiling.Sub(totals.Used)

	var top []model.ContractUtilization
	if err := s.db.WithContext(ctx).Table("contracts").
		Select(`contracts.id as contract_id, contracts.reference, contracts.title,
			contracts.contract_amount,
			COALESCE(SUM(sale_orders.amount_total), 0) as used_amount,
			CASE WHEN contracts.contract_amount > 0
				THEN ROUND(COALESCE(SUM(sale_orders.amount_total), 0) / contracts.contract_amount * 100, 2)
				ELSE 0 END as utilization_pct`).
		Joins(`LEFT JOIN sale_orders ON sale_orders.contract_id = contracts.id
			AND sale_orders.status IN ? AND sale_orders.deleted_at IS NULL`,
			model.ConfirmedEquivalentStates).
		Where("contracts.deleted_at IS NULL AND contracts.approval_state = ?", model.ContractApproved).
		Group("contracts.id, contracts.reference, contracts.title, contracts.contract_amount").
		Order("utilization_pct DESC").
		Limit(5).
		Scan(&top).Error; err != nil {
		return stats, fmt.Errorf("failed to rank contract utilization: %w", err)
	}
	stats.TopUtilized = top

	return stats, nil
}
