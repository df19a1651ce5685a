package service

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"contractflow/internal/model"
	"contractflow/internal/repository"
	"contractflow/pkg/apperr"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreatePartnerRequest struct {
	Name          string `json:"name" binding:"required"`
	TaxCode       string `json:"tax_code"`
	CompanyName   string `json:"company_name"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Address       string `json:"address"`
}

type UpdatePartnerRequest struct {
	Name          *string `json:"name"`
	TaxCode       *string `json:"tax_code"`
	CompanyName   *string `json:"company_name"`
	ContactPerson *string `json:"contact_person"`
	Phone         *string `json:"phone"`
	Email         *string `json:"email"`
	Address       *string `json:"address"`
	IsActive      *bool   `json:"is_active"`
}

type PartnerResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	TaxCode       string    `json:"tax_code"`
	CompanyName   string    `json:"company_name"`
	ContactPerson string    `json:"contact_person"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email"`
	Address       string    `json:"address"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// --- Interface ---

type PartnerService interface {
	CreatePartner(ctx context.Context, req CreatePartnerRequest) (PartnerResponse, error)
	UpdatePartner(ctx context.Context, id string, req UpdatePartnerRequest) (PartnerResponse, error)
	GetPartners(ctx context.Context, search string, page, limit int) ([]PartnerResponse, int64, error)
	DeletePartner(ctx context.Context, id string) error
}

type partnerService struct {
	partnerRepo repository.PartnerRepository
}

func NewPartnerService(partnerRepo repository.PartnerRepository) PartnerService {
	return &partnerService{partnerRepo: partnerRepo}
}

// --- Implementation ---

func toPartnerResponse(p model.Partner) PartnerResponse {
	return PartnerResponse{
		ID:            p.ID,
		Name:          p.Name,
		TaxCode:       p.TaxCode,
		CompanyName:   p.CompanyName,
		ContactPerson: p.ContactPerson,
		Phone:         p.Phone,
		Email:         p.Email,
		Address:       p.Address,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (s *partnerService) CreatePartner(ctx context.Context, req CreatePartnerRequest) (PartnerResponse, error) {
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return PartnerResponse{}, apperr.Validation("EMAIL_INVALID", "invalid email format")
		}
	}

	partner := &model.Partner{
		Name:          req.Name,
		TaxCode:       req.TaxCode,
		CompanyName:   req.CompanyName,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
		IsActive:      true,
	}
	if err := s.partnerRepo.Create(ctx, partner); err != nil {
		return PartnerResponse{}, fmt.Errorf("failed to create partner: %w", err)
	}

	return toPartnerResponse(*partner), nil
}

func (s *partnerService) UpdatePartner(ctx context.Context, id string, req UpdatePartnerRequest) (PartnerResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return PartnerResponse{}, apperr.Validation("PARTNER_ID_INVALID", "invalid partner id")
	}

	partner, err := s.partnerRepo.FindByID(ctx, uid)
	if err != nil {
		return PartnerResponse{}, fmt.Errorf("partner not found: %w", err)
	}

	if req.Name != nil {
		partner.Name = *req.Name
	}
	if req.TaxCode != nil {
		partner.TaxCode = *req.TaxCode
	}
	if req.CompanyName != nil {
		partner.CompanyName = *req.CompanyName
	}
	if req.ContactPerson != nil {
		partner.ContactPerson = *req.ContactPerson
	}
	if req.Phone != nil {
		partner.Phone = *req.Phone
	}
	if req.Email != nil {
		if *req.Email != "" {
			if _, mailErr := mail.ParseAddress(*req.Email); mailErr != nil {
				return PartnerResponse{}, apperr.Validation("EMAIL_INVALID", "invalid email format")
			}
		}
		partner.Email = *req.Email
	}
	if req.Address != nil {
		partner.Address = *req.Address
	}
	if req.IsActive != nil {
		partner.IsActive = *req.IsActive
	}

	if err := s.partnerRepo.Update(ctx, partner); err != nil {
		return PartnerResponse{}, fmt.Errorf("failed to update partner: %w", err)
	}

	return toPartnerResponse(*partner), nil
}

func (s *partnerService) GetPartners(ctx context.Context, search string, page, limit int) ([]PartnerResponse, int64, error) {
	partners, total, err := s.partnerRepo.List(ctx, search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list partners: %w", err)
	}

	result := make([]PartnerResponse, 0, len(partners))
	for _, p := range partners {
		result = append(result, toPartnerResponse(p))
	}
	return result, total, nil
}

func (s *partnerService) DeletePartner(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("PARTNER_ID_INVALID", "invalid partner id")
	}
	if err := s.partnerRepo.Delete(ctx, uid); err != nil {
		return fmt.Errorf("failed to delete partner: %w", err)
	}
	return nil
}
