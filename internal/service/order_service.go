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

// --- DTOs ---

type CreateOrderRequest struct {
	PartnerID       string          `json:"partner_id" binding:"required"`
	ContractID      string          `json:"contract_id"`
	AmountTotal     decimal.Decimal `json:"amount_total"`
	RequireContract *bool           `json:"require_contract"` // nil = inherit company setting
	Note            string          `json:"note"`
}

type UpdateOrderRequest struct {
	ContractID  *string          `json:"contract_id"` // empty string unlinks
	AmountTotal *decimal.Decimal `json:"amount_total"`
	Note        *string          `json:"note"`
}

type OrderResponse struct {
	ID                uuid.UUID       `json:"id"`
	OrderNo           string          `json:"order_no"`
	PartnerID         uuid.UUID       `json:"partner_id"`
	PartnerName       string          `json:"partner_name,omitempty"`
	ContractID        *uuid.UUID      `json:"contract_id"`
	ContractReference string          `json:"contract_reference,omitempty"`
	AmountTotal       decimal.Decimal `json:"amount_total"`
	Status            string          `json:"status"`
	RequireContract   bool            `json:"require_contract"`
	Note              string          `json:"note,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// --- Interface ---

type OrderService interface {
	CreateOrder(ctx context.Context, actorID string, req CreateOrderRequest) (OrderResponse, error)
	UpdateOrder(ctx context.Context, actorID, id string, req UpdateOrderRequest) (OrderResponse, error)
	GetOrder(ctx context.Context, id string) (OrderResponse, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]OrderResponse, int64, error)
	ConfirmOrder(ctx context.Context, actorID, id string) (OrderResponse, error)
	CancelOrder(ctx context.Context, actorID, id string) (OrderResponse, error)
}

type orderService struct {
	orderRepo    repository.OrderRepository
	contractRepo repository.ContractRepository
	settingsRepo repository.SettingsRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	notifier     Notifier
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	contractRepo repository.ContractRepository,
	settingsRepo repository.SettingsRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier Notifier,
) OrderService {
	return &orderService{
		orderRepo:    orderRepo,
		contractRepo: contractRepo,
		settingsRepo: settingsRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		notifier:     notifier,
	}
}

// --- Confirmation guard ---

// checkContractGate is the pre-confirmation guard. It must run inside the
// caller's transaction with a row lock already held on the contract, so the
// headroom read and the order's status write commit atomically.
//
// The headroom is always recomputed as contract amount minus the sum of the
// OTHER confirmed orders. A stored remaining value is never consulted: it
// could include or double-count the order under evaluation depending on when
// it was last derived.
func (s *orderService) checkContractGate(ctx context.Context, order *model.SaleOrder) error {
	required := order.RequireContract
	if !required {
		settings, err := s.settingsRepo.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to read company settings: %w", err)
		}
		required = settings.RequireContractForOrders
	}

	if order.ContractID == nil {
		if required {
			return apperr.Policy("CONTRACT_REQUIRED",
				"cannot confirm sale order without an approved contract; please link a contract to this order")
		}
		return nil
	}

	contract, err := s.contractRepo.FindByIDForUpdate(ctx, *order.ContractID)
	if err != nil {
		return fmt.Errorf("contract not found: %w", err)
	}

	if contract.ApprovalState != model.ContractApproved {
		return apperr.Policy("CONTRACT_NOT_APPROVED", fmt.Sprintf(
			"the linked contract is not approved yet (current state: %s)", contract.ApprovalState))
	}
	if contract.ActivationState != model.ActivationOpen {
		return apperr.Policy("CONTRACT_NOT_OPEN",
			"the linked contract is not running; please ensure the contract is open")
	}

	otherUsed, err := s.contractRepo.SumConfirmedOrders(ctx, contract.ID, &order.ID)
	if err != nil {
		return fmt.Errorf("failed to compute contract usage: %w", err)
	}

	// Boundary is inclusive: consuming the ceiling exactly is allowed.
	if otherUsed.Add(order.AmountTotal).GreaterThan(contract.ContractAmount) {
		return apperr.Policy("CONTRACT_LIMIT_EXCEEDED", fmt.Sprintf(
			"this sale order amount (%s) would exceed the contract limit; contract amount: %s, already used: %s, available: %s",
			order.AmountTotal.StringFixed(2),
			contract.ContractAmount.StringFixed(2),
			otherUsed.StringFixed(2),
			contract.ContractAmount.Sub(otherUsed).StringFixed(2)))
	}

	return nil
}

// --- Helpers ---

func toOrderResponse(o model.SaleOrder) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		OrderNo:         o.OrderNo,
		PartnerID:       o.PartnerID,
		ContractID:      o.ContractID,
		AmountTotal:     o.AmountTotal,
		Status:          o.Status,
		RequireContract: o.RequireContract,
		Note:            o.Note,
		CreatedAt:       o.CreatedAt,
	}
	if o.Partner != nil {
		resp.PartnerName = o.Partner.Name
	}
	if o.Contract != nil {
		resp.ContractReference = o.Contract.Reference
	}
	return resp
}

func (s *orderService) audit(ctx context.Context, actorID, action string, o *model.SaleOrder, details map[string]interface{}) error {
	var userID *uuid.UUID
	if parsed, err := uuid.Parse(actorID); err == nil {
		userID = &parsed
	}
	payload, _ := json.Marshal(details)
	return s.auditRepo.Create(ctx, &model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   o.ID.String(),
		EntityName: o.OrderNo,
		Details:    string(payload),
	})
}

// --- Operations ---

func (s *orderService) CreateOrder(ctx context.Context, actorID string, req CreateOrderRequest) (OrderResponse, error) {
	partnerID, err := uuid.Parse(req.PartnerID)
	if err != nil {
		return OrderResponse{}, apperr.Validation("PARTNER_ID_INVALID", "invalid partner id")
	}
	if req.AmountTotal.IsNegative() {
		return OrderResponse{}, apperr.Validation("AMOUNT_NEGATIVE", "order amount cannot be negative")
	}

	var contractID *uuid.UUID
	if req.ContractID != "" {
		parsed, parseErr := uuid.Parse(req.ContractID)
		if parseErr != nil {
			return OrderResponse{}, apperr.Validation("CONTRACT_ID_INVALID", "invalid contract id")
		}
		contractID = &parsed
	}

	order := &model.SaleOrder{
		PartnerID:   partnerID,
		ContractID:  contractID,
		AmountTotal: req.AmountTotal,
		Status:      model.OrderDraft,
		Note:        req.Note,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if req.RequireContract != nil {
			order.RequireContract = *req.RequireContract
		} else {
			settings, setErr := s.settingsRepo.Get(txCtx)
			if setErr != nil {
				return fmt.Errorf("failed to read company settings: %w", setErr)
			}
			order.RequireContract = settings.RequireContractForOrders
		}

		if contractID != nil {
			if _, findErr := s.contractRepo.FindByID(txCtx, *contractID); findErr != nil {
				return fmt.Errorf("contract not found: %w", findErr)
			}
		}

		orderNo, seqErr := s.orderRepo.NextOrderNo(txCtx)
		if seqErr != nil {
			return fmt.Errorf("failed to generate order number: %w", seqErr)
		}
		order.OrderNo = orderNo

		if createErr := s.orderRepo.Create(txCtx, order); createErr != nil {
			return fmt.Errorf("failed to create sale order: %w", createErr)
		}
		return s.audit(txCtx, actorID, model.ActionCreateOrder, order,
			map[string]interface{}{"amount": order.AmountTotal.StringFixed(4)})
	})
	if err != nil {
		return OrderResponse{}, err
	}

	return s.GetOrder(ctx, order.ID.String())
}

// UpdateOrder applies field edits. When the order is already in a
// confirmed-equivalent state and the edit touches the amount or the contract
// link, the guard re-runs against the new values before anything commits.
func (s *orderService) UpdateOrder(ctx context.Context, actorID, id string, req UpdateOrderRequest) (OrderResponse, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return OrderResponse{}, apperr.Validation("ORDER_ID_INVALID", "invalid order id")
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, findErr := s.orderRepo.FindByID(txCtx, orderID)
		if findErr != nil {
			return fmt.Errorf("sale order not found: %w", findErr)
		}

		guardRelevant := false
		if req.AmountTotal != nil {
			if req.AmountTotal.IsNegative() {
				return apperr.Validation("AMOUNT_NEGATIVE", "order amount cannot be negative")
			}
			if !req.AmountTotal.Equal(order.AmountTotal) {
				guardRelevant = true
			}
			order.AmountTotal = *req.AmountTotal
		}
		if req.ContractID != nil {
			guardRelevant = true
			if *req.ContractID == "" {
				order.ContractID = nil
			} else {
				contractID, parseErr := uuid.Parse(*req.ContractID)
				if parseErr != nil {
					return apperr.Validation("CONTRACT_ID_INVALID", "invalid contract id")
				}
				if _, contractErr := s.contractRepo.FindByID(txCtx, contractID); contractErr != nil {
					return fmt.Errorf("contract not found: %w", contractErr)
				}
				order.ContractID = &contractID
			}
		}
		if req.Note != nil {
			order.Note = *req.Note
		}

		if guardRelevant && model.IsConfirmedEquivalent(order.Status) {
			if guardErr := s.checkContractGate(txCtx, order); guardErr != nil {
				return guardErr
			}
		}

		if saveErr := s.orderRepo.Update(txCtx, order); saveErr != nil {
			return fmt.Errorf("failed to update sale order: %w", saveErr)
		}
		return nil
	})
	if err != nil {
		return OrderResponse{}, err
	}

	return s.GetOrder(ctx, id)
}

func (s *orderService) GetOrder(ctx context.Context, id string) (OrderResponse, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return OrderResponse{}, apperr.Validation("ORDER_ID_INVALID", "invalid order id")
	}
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("sale order not found: %w", err)
	}
	return toOrderResponse(*order), nil
}

func (s *orderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]OrderResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sale orders: %w", err)
	}

	result := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		result = append(result, toOrderResponse(o))
	}
	return result, total, nil
}

// ConfirmOrder runs the contract gate and, only when every check passes,
// commits the status transition. Gate and transition share one transaction
// and the contract row lock, so two in-flight confirmations of the same
// contract serialize and cannot jointly overshoot the ceiling.
func (s *orderService) ConfirmOrder(ctx context.Context, actorID, id string) (OrderResponse, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return OrderResponse{}, apperr.Validation("ORDER_ID_INVALID", "invalid order id")
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, findErr := s.orderRepo.FindByID(txCtx, orderID)
		if findErr != nil {
			return fmt.Errorf("sale order not found: %w", findErr)
		}

		if order.Status != model.OrderDraft {
			return apperr.Policy("ORDER_NOT_DRAFT", fmt.Sprintf(
				"only draft orders can be confirmed (current status: %s)", order.Status))
		}

		if guardErr := s.checkContractGate(txCtx, order); guardErr != nil {
			return guardErr
		}

		order.Status = model.OrderConfirmed
		if saveErr := s.orderRepo.Update(txCtx, order); saveErr != nil {
			return fmt.Errorf("failed to confirm sale order: %w", saveErr)
		}
		return s.audit(txCtx, actorID, model.ActionConfirmOrder, order,
			map[string]interface{}{"amount": order.AmountTotal.StringFixed(4)})
	})
	if err != nil {
		return OrderResponse{}, err
	}

	if s.notifier != nil {
		s.notifier.BroadcastEvent("order.confirmed", map[string]interface{}{"order_id": id})
	}
	return s.GetOrder(ctx, id)
}

// CancelOrder releases the order's headroom; the contract balance reflects it
// on the next read because the balance is derived, not counted.
func (s *orderService) CancelOrder(ctx context.Context, actorID, id string) (OrderResponse, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return OrderResponse{}, apperr.Validation("ORDER_ID_INVALID", "invalid order id")
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, findErr := s.orderRepo.FindByID(txCtx, orderID)
		if findErr != nil {
			return fmt.Errorf("sale order not found: %w", findErr)
		}

		if order.Status == model.OrderCancelled {
			return nil
		}
		if order.Status == model.OrderDone {
			return apperr.Policy("ORDER_DONE", "a completed order cannot be cancelled")
		}

		order.Status = model.OrderCancelled
		if saveErr := s.orderRepo.Update(txCtx, order); saveErr != nil {
			return fmt.Errorf("failed to cancel sale order: %w", saveErr)
		}
		return s.audit(txCtx, actorID, model.ActionCancelOrder, order, nil)
	})
	if err != nil {
		return OrderResponse{}, err
	}

	return s.GetOrder(ctx, id)
}
