package repository

import (
	"context"
	"fmt"
	"time"

	"contractflow/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContractFilter narrows contract listings.
type ContractFilter struct {
	ApprovalState string
	PartnerID     *uuid.UUID
	Search        string
	Page          int
	Limit         int
}

type ContractRepository interface {
	Create(ctx context.Context, contract *model.Contract) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Contract, error)
	// FindByIDForUpdate takes a row-level lock on the contract so the
	// caller's check-then-commit sequence is serialized against concurrent
	// confirmations.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Contract, error)
	List(ctx context.Context, filter ContractFilter) ([]model.Contract, int64, error)
	Update(ctx context.Context, contract *model.Contract) error
	// SumConfirmedOrders returns the total of confirmed-equivalent orders
	// linked to the contract, excluding excludeOrderID when non-nil.
	SumConfirmedOrders(ctx context.Context, contractID uuid.UUID, excludeOrderID *uuid.UUID) (decimal.Decimal, error)
	CountOrders(ctx context.Context, contractID uuid.UUID) (int64, error)
	NextReference(ctx context.Context) (string, error)
}

type contractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) ContractRepository {
	return &contractRepository{db: db}
}

func (r *contractRepository) Create(ctx context.Context, contract *model.Contract) error {
	return GetDB(ctx, r.db).Create(contract).Error
}

func (r *contractRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	if err := GetDB(ctx, r.db).
		Preload("Partner").
		Preload("ApprovalTeam").
		Preload("ApprovalTeam.Bands").
		Preload("ApprovedBy").
		First(&contract, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&contract, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepository) List(ctx context.Context, filter ContractFilter) ([]model.Contract, int64, error) {
	db := GetDB(ctx, r.db)

	query := db.Model(&model.Contract{})
	if filter.ApprovalState != "" {
		query = query.Where("approval_state = ?", filter.ApprovalState)
	}
	if filter.PartnerID != nil {
		query = query.Where("partner_id = ?", *filter.PartnerID)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("reference ILIKE ? OR title ILIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	var contracts []model.Contract
	if err := query.
		Preload("Partner").
		Preload("ApprovalTeam").
		Preload("ApprovedBy").
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&contracts).Error; err != nil {
		return nil, 0, err
	}

	return contracts, total, nil
}

func (r *contractRepository) Update(ctx context.Context, contract *model.Contract) error {
	return GetDB(ctx, r.db).Save(contract).Error
}

func (r *contractRepository) SumConfirmedOrders(ctx context.Context, contractID uuid.UUID, excludeOrderID *uuid.UUID) (decimal.Decimal, error) {
	query := GetDB(ctx, r.db).Model(&model.SaleOrder{}).
		Where("contract_id = ? AND status IN ?", contractID, model.ConfirmedEquivalentStates)
	if excludeOrderID != nil {
		query = query.Where("id <> ?", *excludeOrderID)
	}

	var row struct {
		Total decimal.Decimal
	}
	if err := query.Select("COALESCE(SUM(amount_total), 0) as total").Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func (r *contractRepository) CountOrders(ctx context.Context, contractID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.SaleOrder{}).
		Where("contract_id = ?", contractID).
		Count(&count).Error
	return count, err
}

// NextReference produces the next human-readable contract reference, e.g.
// CTR-20260901-00042. A per-prefix advisory lock keeps concurrent creations
// from drawing the same number.
func (r *contractRepository) NextReference(ctx context.Context) (string, error) {
	db := GetDB(ctx, r.db)

	prefix := "CTR-" + time.Now().Format("20060102") + "-"
	db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix)

	var count int64
	if err := db.Model(&model.Contract{}).
		Where("reference LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}
