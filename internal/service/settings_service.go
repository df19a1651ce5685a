package service

import (
	"context"
	"encoding/json"
	"fmt"

	"contractflow/internal/model"
	"contractflow/internal/repository"

	"github.com/google/uuid"
)

type SettingsResponse struct {
	RequireContractForOrders bool `json:"require_contract_for_orders"`
}

type UpdateSettingsRequest struct {
	RequireContractForOrders *bool `json:"require_contract_for_orders"`
}

// SettingsService exposes the company-wide configuration toggles. Only
// administrators may change them; the order confirmation guard reads them.
type SettingsService interface {
	GetSettings(ctx context.Context) (SettingsResponse, error)
	UpdateSettings(ctx context.Context, actorID string, req UpdateSettingsRequest) (SettingsResponse, error)
}

type settingsService struct {
	settingsRepo repository.SettingsRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
}

func NewSettingsService(settingsRepo repository.SettingsRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) SettingsService {
	return &settingsService{settingsRepo: settingsRepo, auditRepo: auditRepo, txManager: txManager}
}

func (s *settingsService) GetSettings(ctx context.Context) (SettingsResponse, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return SettingsResponse{}, fmt.Errorf("failed to read company settings: %w", err)
	}
	return SettingsResponse{RequireContractForOrders: settings.RequireContractForOrders}, nil
}

func (s *settingsService) UpdateSettings(ctx context.Context, actorID string, req UpdateSettingsRequest) (SettingsResponse, error) {
	var updated *model.CompanySettings
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		settings, getErr := s.settingsRepo.Get(txCtx)
		if getErr != nil {
			return fmt.Errorf("failed to read company settings: %w", getErr)
		}

		if req.RequireContractForOrders != nil {
			settings.RequireContractForOrders = *req.RequireContractForOrders
		}

		if saveErr := s.settingsRepo.Save(txCtx, settings); saveErr != nil {
			return fmt.Errorf("failed to save company settings: %w", saveErr)
		}
		updated = settings

		var userID *uuid.UUID
		if parsed, parseErr := uuid.Parse(actorID); parseErr == nil {
			userID = &parsed
		}
		details, _ := json.Marshal(map[string]interface{}{
			"require_contract_for_orders": settings.RequireContractForOrders,
		})
		return s.auditRepo.Create(txCtx, &model.AuditLog{
			UserID:   userID,
			Action:   model.ActionUpdateSettings,
			EntityID: "company_settings",
			Details:  string(details),
		})
	})
	if err != nil {
		return SettingsResponse{}, err
	}

	return SettingsResponse{RequireContractForOrders: updated.RequireContractForOrders}, nil
}
