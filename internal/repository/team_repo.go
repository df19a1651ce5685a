package repository

import (
	"context"

	"contractflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TeamRepository interface {
	Create(ctx context.Context, team *model.ApprovalTeam) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalTeam, error)
	List(ctx context.Context, page, limit int) ([]model.ApprovalTeam, int64, error)
	Update(ctx context.Context, team *model.ApprovalTeam) error
	ReplaceBands(ctx context.Context, team *model.ApprovalTeam, bands []model.ApproverBand) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountContracts(ctx context.Context, teamID uuid.UUID) (int64, error)
}

type teamRepository struct {
	db *gorm.DB
}

func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) Create(ctx context.Context, team *model.ApprovalTeam) error {
	// Bands ride along through the association.
	return GetDB(ctx, r.db).Create(team).Error
}

func (r *teamRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalTeam, error) {
	var team model.ApprovalTeam
	if err := GetDB(ctx, r.db).
		Preload("Bands", func(db *gorm.DB) *gorm.DB { return db.Order("sequence, created_at") }).
		Preload("Bands.User").
		Preload("Leader").
		First(&team, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *teamRepository) List(ctx context.Context, page, limit int) ([]model.ApprovalTeam, int64, error) {
	var teams []model.ApprovalTeam
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.ApprovalTeam{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.
		Preload("Bands", func(db *gorm.DB) *gorm.DB { return db.Order("sequence, created_at") }).
		Preload("Bands.User").
		Preload("Leader").
		Order("name").
		Offset(offset).Limit(limit).
		Find(&teams).Error; err != nil {
		return nil, 0, err
	}

	return teams, total, nil
}

func (r *teamRepository) Update(ctx context.Context, team *model.ApprovalTeam) error {
	return GetDB(ctx, r.db).Save(team).Error
}

// ReplaceBands swaps the team's whole band set in one shot. Callers validate
// the new set before handing it over.
func (r *teamRepository) ReplaceBands(ctx context.Context, team *model.ApprovalTeam, bands []model.ApproverBand) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("team_id = ?", team.ID).Delete(&model.ApproverBand{}).Error; err != nil {
		return err
	}
	for i := range bands {
		bands[i].TeamID = team.ID
	}
	if len(bands) > 0 {
		if err := db.Create(&bands).Error; err != nil {
			return err
		}
	}
	team.Bands = bands
	return nil
}

func (r *teamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Delete(&model.ApprovalTeam{}, "id = ?", id).Error
}

// CountContracts reports how many contracts still reference the team. Teams
// with live references must not be deleted.
func (r *teamRepository) CountContracts(ctx context.Context, teamID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Contract{}).
		Where("approval_team_id = ?", teamID).
		Count(&count).Error
	return count, err
}
