package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"contractflow/internal/model"

	"github.com/google/uuid"
)

func TestConfirmWithinLimitAtBoundary(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	contractID := f.addContract(partnerID, nil, "1000", model.ContractApproved, model.ActivationOpen)
	f.addOrder(partnerID, &contractID, "600", model.OrderConfirmed)
	orderID := f.addOrder(partnerID, &contractID, "400", model.OrderDraft)

	resp, err := f.orders.ConfirmOrder(context.Background(), uuid.NewString(), orderID.String())
	if err != nil {
		t.Fatalf("confirm at exact remaining balance: %v", err)
	}
	if resp.Status != model.OrderConfirmed {
		t.Errorf("status = %q, want CONFIRMED", resp.Status)
	}
}

func TestConfirmExceedsLimit(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	contractID := f.addContract(partnerID, nil, "1000", model.ContractApproved, model.ActivationOpen)
	f.addOrder(partnerID, &contractID, "600", model.OrderConfirmed)
	orderID := f.addOrder(partnerID, &contractID, "500", model.OrderDraft)

	_, err := f.orders.ConfirmOrder(context.Background(), uuid.NewString(), orderID.String())
	if got := policyCode(t, err); got != "CONTRACT_LIMIT_EXCEEDED" {
		t.Errorf("code = %q, want CONTRACT_LIMIT_EXCEEDED", got)
	}
	if !strings.Contains(err.Error(), "available: 400.00") {
		t.Errorf("error does not report the available balance: %v", err)
	}
	if f.store.orders[orderID].Status != model.OrderDraft {
		t.Errorf("failed confirmation mutated the order status")
	}
}

func TestConfirmContractNotApproved(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	contractID := f.addContract(partnerID, nil, "1000", model.ContractPending, model.ActivationNotOpen)
	orderID := f.addOrder(partnerID, &contractID, "100", model.OrderDraft)

	_, err := f.orders.ConfirmOrder(context.Background(), uuid.NewString(), orderID.String())
	if got := policyCode(t, err); got != "CONTRACT_NOT_APPROVED" {
		t.Errorf("code = %q, want CONTRACT_NOT_APPROVED", got)
	}
	if !strings.Contains(err.Error(), model.ContractPending) {
		t.Errorf("error does not name the contract state: %v", err)
	}
}

func TestConfirmContractClosed(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	contractID := f.addContract(partnerID, nil, "1000", model.ContractApproved, model.ActivationClosed)
	orderID := f.addOrder(partnerID, &contractID, "100", model.OrderDraft)

	_, err := f.orders.ConfirmOrder(context.Background(), uuid.NewString(), orderID.String())
	if got := policyCode(t, err); got != "CONTRACT_NOT_OPEN" {
		t.Errorf("code = %q, want CONTRACT_NOT_OPEN", got)
	}
}

func TestConfirmWithoutContract(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()

	t.Run("not required passes", func(t *testing.T) {
		orderID := f.addOrder(partnerID, nil, "100", model.OrderDraft)
		resp, err := f.orders.ConfirmOrder(context.Background(), uuid.NewString(), orderID.String())
		if err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if resp.Status != model.OrderConfirmed {
			t.Errorf("status = %q, want CONFIRMED", resp.Status)
		}
	})

	t.Run("order-level requirement blocks", func(t *testing.T) {
		orderID := f.addOrder(partnerID, nil, "100", model.OrderDraft)
		f.store.orders[orderID].RequireContract = true
		_, err := f.orders.ConfirmOrder(context.Background(), uuid.NewString(), orderID.String())
		if got := policyCode(t, err); got != "CONTRACT_REQUIRED" {
			t.Errorf("code = %q, want CONTRACT_REQUIRED", got)
		}
	})

	t.Run("company-level requirement blocks", func(t *testing.T) {
		f.store.settings.RequireContractForOrders = true
		defer func() { f.store.settings.RequireContractForOrders = false }()
		orderID := f.addOrder(partnerID, nil, "100", model.OrderDraft)
		_, err := f.orders.ConfirmOrder(context.Background(), uuid.NewString(), orderID.String())
		if got := policyCode(t, err); got != "CONTRACT_REQUIRED" {
			t.Errorf("code = %q, want CONTRACT_REQUIRED", got)
		}
	})
}

func TestConfirmNonDraft(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	orderID := f.addOrder(partnerID, nil, "100", model.OrderConfirmed)

	_, err := f.orders.ConfirmOrder(context.Background(), uuid.NewString(), orderID.String())
	if got := policyCode(t, err); got != "ORDER_NOT_DRAFT" {
		t.Errorf("code = %q, want ORDER_NOT_DRAFT", got)
	}
}

// Editing a confirmed order re-runs the gate against the new amount. The
// headroom check excludes the order being edited, so growing it up to the
// remaining balance plus its own current amount is allowed.
func TestUpdateConfirmedOrderRechecksLimit(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	contractID := f.addContract(partnerID, nil, "1000", model.ContractApproved, model.ActivationOpen)
	f.addOrder(partnerID, &contractID, "300", model.OrderConfirmed)
	orderID := f.addOrder(partnerID, &contractID, "600", model.OrderConfirmed)

	grow := dec("700") // 300 + 700 = 1000, exactly at the ceiling
	resp, err := f.orders.UpdateOrder(context.Background(), uuid.NewString(), orderID.String(),
		UpdateOrderRequest{AmountTotal: &grow})
	if err != nil {
		t.Fatalf("grow to ceiling: %v", err)
	}
	if !resp.AmountTotal.Equal(grow) {
		t.Errorf("amount = %s, want 700", resp.AmountTotal)
	}

	over := dec("701")
	_, err = f.orders.UpdateOrder(context.Background(), uuid.NewString(), orderID.String(),
		UpdateOrderRequest{AmountTotal: &over})
	if got := policyCode(t, err); got != "CONTRACT_LIMIT_EXCEEDED" {
		t.Errorf("code = %q, want CONTRACT_LIMIT_EXCEEDED", got)
	}
	if !f.store.orders[orderID].AmountTotal.Equal(grow) {
		t.Errorf("failed update mutated the stored amount: %s", f.store.orders[orderID].AmountTotal)
	}
}

func TestUpdateDraftOrderSkipsGate(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	contractID := f.addContract(partnerID, nil, "1000", model.ContractPending, model.ActivationNotOpen)
	orderID := f.addOrder(partnerID, &contractID, "100", model.OrderDraft)

	// A draft order may carry any amount against an unapproved contract; the
	// gate only runs at confirmation time.
	amount := dec("99999")
	if _, err := f.orders.UpdateOrder(context.Background(), uuid.NewString(), orderID.String(),
		UpdateOrderRequest{AmountTotal: &amount}); err != nil {
		t.Fatalf("draft update: %v", err)
	}
}

func TestCancelReleasesHeadroom(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	contractID := f.addContract(partnerID, nil, "1000", model.ContractApproved, model.ActivationOpen)
	firstID := f.addOrder(partnerID, &contractID, "600", model.OrderConfirmed)
	secondID := f.addOrder(partnerID, &contractID, "1000", model.OrderDraft)

	if _, err := f.orders.ConfirmOrder(context.Background(), uuid.NewString(), secondID.String()); err == nil {
		t.Fatalf("confirm should fail while the first order holds 600")
	}

	if _, err := f.orders.CancelOrder(context.Background(), uuid.NewString(), firstID.String()); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	resp, err := f.orders.ConfirmOrder(context.Background(), uuid.NewString(), secondID.String())
	if err != nil {
		t.Fatalf("confirm after cancel: %v", err)
	}
	if resp.Status != model.OrderConfirmed {
		t.Errorf("status = %q, want CONFIRMED", resp.Status)
	}
}

func TestCancelCompletedOrder(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	orderID := f.addOrder(partnerID, nil, "100", model.OrderDone)

	_, err := f.orders.CancelOrder(context.Background(), uuid.NewString(), orderID.String())
	if got := policyCode(t, err); got != "ORDER_DONE" {
		t.Errorf("code = %q, want ORDER_DONE", got)
	}
}

// Two confirmations racing for the same contract balance must serialize: the
// check and the status write share one transaction, so the loser sees the
// winner's committed order and fails the headroom check.
func TestConcurrentConfirmationsSerialize(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	contractID := f.addContract(partnerID, nil, "1000", model.ContractApproved, model.ActivationOpen)
	firstID := f.addOrder(partnerID, &contractID, "600", model.OrderDraft)
	secondID := f.addOrder(partnerID, &contractID, "600", model.OrderDraft)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{firstID, secondID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.orders.ConfirmOrder(context.Background(), uuid.NewString(), id.String())
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if got := policyCode(t, err); got != "CONTRACT_LIMIT_EXCEEDED" {
			t.Errorf("loser failed with %q, want CONTRACT_LIMIT_EXCEEDED", got)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d confirmations succeeded, want exactly 1", succeeded)
	}

	confirmed := 0
	for _, o := range f.store.orders {
		if o.Status == model.OrderConfirmed {
			confirmed++
		}
	}
	if confirmed != 1 {
		t.Errorf("%d orders confirmed in store, want 1", confirmed)
	}
}
