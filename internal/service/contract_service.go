package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"contractflow/internal/model"
	"contractflow/internal/repository"
	"contractflow/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Notifier pushes lifecycle events to connected clients. The websocket hub
// implements it; services tolerate a nil notifier.
type Notifier interface {
	BroadcastEvent(event string, payload interface{})
}

// --- DTOs ---

type CreateContractRequest struct {
	Title          string          `json:"title" binding:"required"`
	PartnerID      string          `json:"partner_id" binding:"required"`
	CurrencyCode   string          `json:"currency_code"`
	ContractAmount decimal.Decimal `json:"contract_amount"`
	ApprovalTeamID string          `json:"approval_team_id"`
	StartDate      *time.Time      `json:"start_date"`
	EndDate        *time.Time      `json:"end_date"`
}

type UpdateContractRequest struct {
	Title          *string          `json:"title"`
	ContractAmount *decimal.Decimal `json:"contract_amount"`
	ApprovalTeamID *string          `json:"approval_team_id"` // empty string clears the team
	StartDate      *time.Time       `json:"start_date"`
	EndDate        *time.Time       `json:"end_date"`
}

type RejectContractRequest struct {
	Reason string `json:"reason"`
}

type ContractResponse struct {
	ID              uuid.UUID       `json:"id"`
	Reference       string          `json:"reference"`
	Title           string          `json:"title"`
	PartnerID       uuid.UUID       `json:"partner_id"`
	PartnerName     string          `json:"partner_name,omitempty"`
	CurrencyCode    string          `json:"currency_code"`
	ContractAmount  decimal.Decimal `json:"contract_amount"`
	UsedAmount      decimal.Decimal `json:"used_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	ApprovalTeamID  *uuid.UUID      `json:"approval_team_id"`
	ApprovalState   string          `json:"approval_state"`
	ActivationState string          `json:"activation_state"`
	ApprovedByID    *uuid.UUID      `json:"approved_by_id"`
	ApprovedByName  string          `json:"approved_by_name,omitempty"`
	ApprovedDate    *time.Time      `json:"approved_date"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	StartDate       *time.Time      `json:"start_date"`
	EndDate         *time.Time      `json:"end_date"`
	OrderCount      int64           `json:"order_count"`
	CreatedAt       time.Time       `json:"created_at"`
}

// --- Interface ---

type ContractService interface {
	CreateContract(ctx context.Context, actorID string, req CreateContractRequest) (ContractResponse, error)
	UpdateContract(ctx context.Context, actorID, id string, req UpdateContractRequest) (ContractResponse, error)
	GetContract(ctx context.Context, id string) (ContractResponse, error)
	ListContracts(ctx context.Context, filter repository.ContractFilter) ([]ContractResponse, int64, error)
	SubmitForApproval(ctx context.Context, actorID, id string) (ContractResponse, error)
	Approve(ctx context.Context, actorID, id string) (ContractResponse, error)
	Reject(ctx context.Context, actorID, id string, reason string) (ContractResponse, error)
	ResetToDraft(ctx context.Context, actorID, id string) (ContractResponse, error)
	Close(ctx context.Context, actorID, id string) (ContractResponse, error)
}

type contractService struct {
	contractRepo repository.ContractRepository
	teamRepo     repository.TeamRepository
	partnerRepo  repository.PartnerRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	notifier     Notifier
}

func NewContractService(
	contractRepo repository.ContractRepository,
	teamRepo repository.TeamRepository,
	partnerRepo repository.PartnerRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier Notifier,
) ContractService {
	return &contractService{
		contractRepo: contractRepo,
		teamRepo:     teamRepo,
		partnerRepo:  partnerRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		notifier:     notifier,
	}
}

// --- Helpers ---

func (s *contractService) toResponse(ctx context.Context, c *model.Contract) (ContractResponse, error) {
	// The balance is always re-derived from current confirmed order rows;
	// no stored counter is trusted.
	used, err := s.contractRepo.SumConfirmedOrders(ctx, c.ID, nil)
	if err != nil {
		return ContractResponse{}, fmt.Errorf("failed to compute used amount: %w", err)
	}
	balance := c.BalanceFrom(used)

	orderCount, err := s.contractRepo.CountOrders(ctx, c.ID)
	if err != nil {
		return ContractResponse{}, fmt.Errorf("failed to count orders: %w", err)
	}

	resp := ContractResponse{
		ID:              c.ID,
		Reference:       c.Reference,
		Title:           c.Title,
		PartnerID:       c.PartnerID,
		CurrencyCode:    c.CurrencyCode,
		ContractAmount:  c.ContractAmount,
		UsedAmount:      balance.UsedAmount,
		RemainingAmount: balance.RemainingAmount,
		ApprovalTeamID:  c.ApprovalTeamID,
		ApprovalState:   c.ApprovalState,
		ActivationState: c.ActivationState,
		ApprovedByID:    c.ApprovedByID,
		ApprovedDate:    c.ApprovedDate,
		RejectionReason: c.RejectionReason,
		StartDate:       c.StartDate,
		EndDate:         c.EndDate,
		OrderCount:      orderCount,
		CreatedAt:       c.CreatedAt,
	}
	if c.Partner != nil {
		resp.PartnerName = c.Partner.Name
	}
	if c.ApprovedBy != nil {
		resp.ApprovedByName = c.ApprovedBy.Username
	}
	return resp, nil
}

func (s *contractService) audit(ctx context.Context, actorID, action string, c *model.Contract, details map[string]interface{}) error {
	var userID *uuid.UUID
	if parsed, err := uuid.Parse(actorID); err == nil {
		userID = &parsed
	}
	payload, _ := json.Marshal(details)
	return s.auditRepo.Create(ctx, &model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   c.ID.String(),
		EntityName: c.Reference,
		Details:    string(payload),
	})
}

func (s *contractService) broadcast(event string, c *model.Contract) {
	if s.notifier == nil {
		return
	}
	s.notifier.BroadcastEvent(event, map[string]interface{}{
		"contract_id":    c.ID.String(),
		"reference":      c.Reference,
		"approval_state": c.ApprovalState,
	})
}

// --- CRUD ---

func (s *contractService) CreateContract(ctx context.Context, actorID string, req CreateContractRequest) (ContractResponse, error) {
	partnerID, err := uuid.Parse(req.PartnerID)
	if err != nil {
		return ContractResponse{}, apperr.Validation("PARTNER_ID_INVALID", "invalid partner id")
	}
	if req.ContractAmount.IsNegative() {
		return ContractResponse{}, apperr.Validation("AMOUNT_NEGATIVE", "contract amount cannot be negative")
	}

	var teamID *uuid.UUID
	if req.ApprovalTeamID != "" {
		parsed, parseErr := uuid.Parse(req.ApprovalTeamID)
		if parseErr != nil {
			return ContractResponse{}, apperr.Validation("TEAM_ID_INVALID", "invalid approval team id")
		}
		teamID = &parsed
	}

	currency := req.CurrencyCode
	if currency == "" {
		currency = "USD"
	}

	contract := &model.Contract{
		Reference:       model.ReferencePlaceholder,
		Title:           req.Title,
		PartnerID:       partnerID,
		CurrencyCode:    currency,
		ContractAmount:  req.ContractAmount,
		ApprovalTeamID:  teamID,
		ApprovalState:   model.ContractDraft,
		ActivationState: model.ActivationNotOpen,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, findErr := s.partnerRepo.FindByID(txCtx, partnerID); findErr != nil {
			return fmt.Errorf("partner not found: %w", findErr)
		}
		if teamID != nil {
			if _, findErr := s.teamRepo.FindByID(txCtx, *teamID); findErr != nil {
				return fmt.Errorf("approval team not found: %w", findErr)
			}
		}

		// Reference is unique; a failed sequence must abort the whole
		// transaction instead of persisting the placeholder.
		ref, seqErr := s.contractRepo.NextReference(txCtx)
		if seqErr != nil {
			return fmt.Errorf("failed to allocate contract reference: %w", seqErr)
		}
		contract.Reference = ref

		if createErr := s.contractRepo.Create(txCtx, contract); createErr != nil {
			return fmt.Errorf("failed to create contract: %w", createErr)
		}
		return s.audit(txCtx, actorID, model.ActionCreateContract, contract,
			map[string]interface{}{"amount": contract.ContractAmount.StringFixed(4)})
	})
	if err != nil {
		return ContractResponse{}, err
	}

	return s.GetContract(ctx, contract.ID.String())
}

func (s *contractService) UpdateContract(ctx context.Context, actorID, id string, req UpdateContractRequest) (ContractResponse, error) {
	contractID, err := uuid.Parse(id)
	if err != nil {
		return ContractResponse{}, apperr.Validation("CONTRACT_ID_INVALID", "invalid contract id")
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		contract, findErr := s.contractRepo.FindByIDForUpdate(txCtx, contractID)
		if findErr != nil {
			return fmt.Errorf("contract not found: %w", findErr)
		}

		if req.Title != nil {
			contract.Title = *req.Title
		}
		if req.ContractAmount != nil {
			if req.ContractAmount.IsNegative() {
				return apperr.Validation("AMOUNT_NEGATIVE", "contract amount cannot be negative")
			}
			contract.ContractAmount = *req.ContractAmount
		}
		if req.ApprovalTeamID != nil {
			if *req.ApprovalTeamID == "" {
				contract.ApprovalTeamID = nil
			} else {
				teamID, parseErr := uuid.Parse(*req.ApprovalTeamID)
				if parseErr != nil {
					return apperr.Validation("TEAM_ID_INVALID", "invalid approval team id")
				}
				if _, teamErr := s.teamRepo.FindByID(txCtx, teamID); teamErr != nil {
					return fmt.Errorf("approval team not found: %w", teamErr)
				}
				contract.ApprovalTeamID = &teamID
			}
		}
		if req.StartDate != nil {
			contract.StartDate = req.StartDate
		}
		if req.EndDate != nil {
			contract.EndDate = req.EndDate
		}

		if saveErr := s.contractRepo.Update(txCtx, contract); saveErr != nil {
			return fmt.Errorf("failed to update contract: %w", saveErr)
		}
		return nil
	})
	if err != nil {
		return ContractResponse{}, err
	}

	return s.GetContract(ctx, id)
}

func (s *contractService) GetContract(ctx context.Context, id string) (ContractResponse, error) {
	contractID, err := uuid.Parse(id)
	if err != nil {
		return ContractResponse{}, apperr.Validation("CONTRACT_ID_INVALID", "invalid contract id")
	}
	contract, err := s.contractRepo.FindByID(ctx, contractID)
	if err != nil {
		return ContractResponse{}, fmt.Errorf("contract not found: %w", err)
	}
	return s.toResponse(ctx, contract)
}

func (s *contractService) ListContracts(ctx context.Context, filter repository.ContractFilter) ([]ContractResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	contracts, total, err := s.contractRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contracts: %w", err)
	}

	result := make([]ContractResponse, 0, len(contracts))
	for i := range contracts {
		resp, respErr := s.toResponse(ctx, &contracts[i])
		if respErr != nil {
			return nil, 0, respErr
		}
		result = append(result, resp)
	}
	return result, total, nil
}

// --- State machine ---

// SubmitForApproval moves a contract to PENDING. A team must be assigned and
// the ceiling must be positive. Re-submitting while pending re-sets pending;
// a rejected contract re-enters the same path.
func (s *contractService) SubmitForApproval(ctx context.Context, actorID, id string) (ContractResponse, error) {
	contractID, err := uuid.Parse(id)
	if err != nil {
		return ContractResponse{}, apperr.Validation("CONTRACT_ID_INVALID", "invalid contract id")
	}

	var submitted *model.Contract
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		contract, findErr := s.contractRepo.FindByIDForUpdate(txCtx, contractID)
		if findErr != nil {
			return fmt.Errorf("contract not found: %w", findErr)
		}

		if contract.ApprovalTeamID == nil {
			return apperr.Policy("TEAM_REQUIRED",
				"please assign an approval team before submitting for approval")
		}
		if !contract.ContractAmount.IsPositive() {
			return apperr.Policy("AMOUNT_NOT_POSITIVE",
				"contract amount must be greater than zero")
		}

		contract.ApprovalState = model.ContractPending
		if saveErr := s.contractRepo.Update(txCtx, contract); saveErr != nil {
			return fmt.Errorf("failed to submit contract: %w", saveErr)
		}

		submitted = contract
		return s.audit(txCtx, actorID, model.ActionSubmitContract, contract, nil)
	})
	if err != nil {
		return ContractResponse{}, err
	}

	s.broadcast("contract.submitted", submitted)
	return s.GetContract(ctx, id)
}

// Approve stamps the acting user as approver after the team authorization and
// amount-band checks pass, then opens the contract for consumption. Nothing is
// written unless every check passes.
func (s *contractService) Approve(ctx context.Context, actorID, id string) (ContractResponse, error) {
	contractID, err := uuid.Parse(id)
	if err != nil {
		return ContractResponse{}, apperr.Validation("CONTRACT_ID_INVALID", "invalid contract id")
	}
	approverID, err := uuid.Parse(actorID)
	if err != nil {
		return ContractResponse{}, apperr.Validation("USER_ID_INVALID", "invalid acting user id")
	}

	var approved *model.Contract
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		contract, findErr := s.contractRepo.FindByIDForUpdate(txCtx, contractID)
		if findErr != nil {
			return fmt.Errorf("contract not found: %w", findErr)
		}

		if contract.ApprovalTeamID == nil {
			return apperr.Policy("TEAM_REQUIRED", "no approval team assigned to this contract")
		}
		team, teamErr := s.teamRepo.FindByID(txCtx, *contract.ApprovalTeamID)
		if teamErr != nil {
			return fmt.Errorf("approval team not found: %w", teamErr)
		}

		if authErr := team.AuthorizeApproval(approverID, contract.ContractAmount); authErr != nil {
			return authErr
		}

		now := time.Now()
		contract.ApprovalState = model.ContractApproved
		contract.ActivationState = model.ActivationOpen
		contract.ApprovedByID = &approverID
		contract.ApprovedDate = &now

		if saveErr := s.contractRepo.Update(txCtx, contract); saveErr != nil {
			return fmt.Errorf("failed to approve contract: %w", saveErr)
		}

		approved = contract
		return s.audit(txCtx, actorID, model.ActionApproveContract, contract,
			map[string]interface{}{"amount": contract.ContractAmount.StringFixed(4)})
	})
	if err != nil {
		return ContractResponse{}, err
	}

	s.broadcast("contract.approved", approved)
	return s.GetContract(ctx, id)
}

// Reject requires team membership or leadership but not an amount-band match,
// and stores the optional free-text reason alongside the REJECTED state.
func (s *contractService) Reject(ctx context.Context, actorID, id string, reason string) (ContractResponse, error) {
	contractID, err := uuid.Parse(id)
	if err != nil {
		return ContractResponse{}, apperr.Validation("CONTRACT_ID_INVALID", "invalid contract id")
	}
	approverID, err := uuid.Parse(actorID)
	if err != nil {
		return ContractResponse{}, apperr.Validation("USER_ID_INVALID", "invalid acting user id")
	}

	var rejected *model.Contract
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		contract, findErr := s.contractRepo.FindByIDForUpdate(txCtx, contractID)
		if findErr != nil {
			return fmt.Errorf("contract not found: %w", findErr)
		}

		if contract.ApprovalTeamID == nil {
			return apperr.Policy("TEAM_REQUIRED", "no approval team assigned to this contract")
		}
		team, teamErr := s.teamRepo.FindByID(txCtx, *contract.ApprovalTeamID)
		if teamErr != nil {
			return fmt.Errorf("approval team not found: %w", teamErr)
		}

		if authErr := team.AuthorizeRejection(approverID); authErr != nil {
			return authErr
		}

		contract.ApprovalState = model.ContractRejected
		contract.RejectionReason = reason

		if saveErr := s.contractRepo.Update(txCtx, contract); saveErr != nil {
			return fmt.Errorf("failed to reject contract: %w", saveErr)
		}

		rejected = contract
		return s.audit(txCtx, actorID, model.ActionRejectContract, contract,
			map[string]interface{}{"reason": reason})
	})
	if err != nil {
		return ContractResponse{}, err
	}

	s.broadcast("contract.rejected", rejected)
	return s.GetContract(ctx, id)
}

// ResetToDraft is unconditional: it clears the approval metadata from any
// state. Activation state and the order history stay untouched, so a reset
// contract keeps reporting its true used amount.
func (s *contractService) ResetToDraft(ctx context.Context, actorID, id string) (ContractResponse, error) {
	contractID, err := uuid.Parse(id)
	if err != nil {
		return ContractResponse{}, apperr.Validation("CONTRACT_ID_INVALID", "invalid contract id")
	}

	var reset *model.Contract
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		contract, findErr := s.contractRepo.FindByIDForUpdate(txCtx, contractID)
		if findErr != nil {
			return fmt.Errorf("contract not found: %w", findErr)
		}

		contract.ApprovalState = model.ContractDraft
		contract.ApprovedByID = nil
		contract.ApprovedDate = nil
		contract.RejectionReason = ""

		if saveErr := s.contractRepo.Update(txCtx, contract); saveErr != nil {
			return fmt.Errorf("failed to reset contract: %w", saveErr)
		}

		reset = contract
		return s.audit(txCtx, actorID, model.ActionResetContract, contract, nil)
	})
	if err != nil {
		return ContractResponse{}, err
	}

	s.broadcast("contract.reset", reset)
	return s.GetContract(ctx, id)
}

// Close stops further consumption without touching the approval state.
func (s *contractService) Close(ctx context.Context, actorID, id string) (ContractResponse, error) {
	contractID, err := uuid.Parse(id)
	if err != nil {
		return ContractResponse{}, apperr.Validation("CONTRACT_ID_INVALID", "invalid contract id")
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		contract, findErr := s.contractRepo.FindByIDForUpdate(txCtx, contractID)
		if findErr != nil {
			return fmt.Errorf("contract not found: %w", findErr)
		}

		contract.ActivationState = model.ActivationClosed
		if saveErr := s.contractRepo.Update(txCtx, contract); saveErr != nil {
			return fmt.Errorf("failed to close contract: %w", saveErr)
		}
		return s.audit(txCtx, actorID, model.ActionCloseContract, contract, nil)
	})
	if err != nil {
		return ContractResponse{}, err
	}

	return s.GetContract(ctx, id)
}
