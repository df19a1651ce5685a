package repository

import (
	"context"
	"fmt"
	"time"

	"contractflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderFilter narrows sale order listings.
type OrderFilter struct {
	Status     string
	ContractID *uuid.UUID
	PartnerID  *uuid.UUID
	Page       int
	Limit      int
}

type OrderRepository interface {
	Create(ctx context.Context, order *model.SaleOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.SaleOrder, error)
	List(ctx context.Context, filter OrderFilter) ([]model.SaleOrder, int64, error)
	Update(ctx context.Context, order *model.SaleOrder) error
	NextOrderNo(ctx context.Context) (string, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.SaleOrder) error {
	return GetDB(ctx, r.db).Create(order).Error
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.SaleOrder, error) {
	var order model.SaleOrder
	if err := GetDB(ctx, r.db).
		Preload("Partner").
		Preload("Contract").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]model.SaleOrder, int64, error) {
	db := GetDB(ctx, r.db)

	query := db.Model(&model.SaleOrder{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ContractID != nil {
		query = query.Where("contract_id = ?", *filter.ContractID)
	}
	if filter.PartnerID != nil {
		query = query.Where("partner_id = ?", *filter.PartnerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	var orders []model.SaleOrder
	if err := query.
		Preload("Partner").
		Preload("Contract").
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *orderRepository) Update(ctx context.Context, order *model.SaleOrder) error {
	return GetDB(ctx, r.db).Save(order).Error
}

// NextOrderNo mirrors the contract reference generator with an SO prefix.
func (r *orderRepository) NextOrderNo(ctx context.Context) (string, error) {
	db := GetDB(ctx, r.db)

	prefix := "SO-" + time.Now().Format("20060102") + "-"
	db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix)

	var count int64
	if err := db.Model(&model.SaleOrder{}).
		Where("order_no LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}
