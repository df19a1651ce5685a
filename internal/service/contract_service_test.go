package service

import (
	"context"
	"errors"
	"testing"

	"contractflow/internal/model"
	"contractflow/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func policyCode(t *testing.T, err error) string {
	t.Helper()
	var pe apperr.PolicyError
	if !errors.As(err, &pe) {
		t.Fatalf("expected a policy error, got %v", err)
	}
	return pe.Code
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSubmitWithoutTeam(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	contractID := f.addContract(partnerID, nil, "1000", model.ContractDraft, model.ActivationNotOpen)

	_, err := f.contracts.SubmitForApproval(context.Background(), uuid.NewString(), contractID.String())
	if got := policyCode(t, err); got != "TEAM_REQUIRED" {
		t.Errorf("code = %q, want TEAM_REQUIRED", got)
	}
	if f.store.contracts[contractID].ApprovalState != model.ContractDraft {
		t.Errorf("contract left draft state on failed submit")
	}
}

func TestSubmitNonPositiveAmount(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	teamID := f.addTeam(uuid.New(), false, model.ApproverBand{UserID: uuid.New(), MinAmount: dec("0"), MaxAmount: dec("5000")})
	contractID := f.addContract(partnerID, &teamID, "0", model.ContractDraft, model.ActivationNotOpen)

	_, err := f.contracts.SubmitForApproval(context.Background(), uuid.NewString(), contractID.String())
	if got := policyCode(t, err); got != "AMOUNT_NOT_POSITIVE" {
		t.Errorf("code = %q, want AMOUNT_NOT_POSITIVE", got)
	}
}

func TestSubmitMovesToPending(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	teamID := f.addTeam(uuid.New(), false, model.ApproverBand{UserID: uuid.New(), MinAmount: dec("0"), MaxAmount: dec("5000")})
	contractID := f.addContract(partnerID, &teamID, "1000", model.ContractDraft, model.ActivationNotOpen)

	resp, err := f.contracts.SubmitForApproval(context.Background(), uuid.NewString(), contractID.String())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.ApprovalState != model.ContractPending {
		t.Errorf("state = %q, want PENDING", resp.ApprovalState)
	}
	if resp.ActivationState != model.ActivationNotOpen {
		t.Errorf("activation changed on submit: %q", resp.ActivationState)
	}
}

func TestApproveByBandMember(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	approver := uuid.New()
	teamID := f.addTeam(uuid.New(), false, model.ApproverBand{UserID: approver, MinAmount: dec("0"), MaxAmount: dec("5000")})
	contractID := f.addContract(partnerID, &teamID, "1000", model.ContractPending, model.ActivationNotOpen)

	resp, err := f.contracts.Approve(context.Background(), approver.String(), contractID.String())
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if resp.ApprovalState != model.ContractApproved {
		t.Errorf("state = %q, want APPROVED", resp.ApprovalState)
	}
	if resp.ActivationState != model.ActivationOpen {
		t.Errorf("activation = %q, want OPEN", resp.ActivationState)
	}
	if resp.ApprovedByID == nil || *resp.ApprovedByID != approver {
		t.Errorf("approver not stamped: %v", resp.ApprovedByID)
	}
	if resp.ApprovedDate == nil {
		t.Errorf("approved date not stamped")
	}
	if len(f.store.audits) == 0 {
		t.Errorf("no audit entry written")
	}
	found := false
	for _, e := range f.notifier.events {
		if e == "contract.approved" {
			found = true
		}
	}
	if !found {
		t.Errorf("contract.approved event not broadcast, got %v", f.notifier.events)
	}
}

func TestApproveByOutsider(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	teamID := f.addTeam(uuid.New(), false, model.ApproverBand{UserID: uuid.New(), MinAmount: dec("0"), MaxAmount: dec("5000")})
	contractID := f.addContract(partnerID, &teamID, "1000", model.ContractPending, model.ActivationNotOpen)

	_, err := f.contracts.Approve(context.Background(), uuid.NewString(), contractID.String())
	if got := policyCode(t, err); got != "NOT_TEAM_APPROVER" {
		t.Errorf("code = %q, want NOT_TEAM_APPROVER", got)
	}
	stored := f.store.contracts[contractID]
	if stored.ApprovalState != model.ContractPending || stored.ApprovedByID != nil {
		t.Errorf("failed approval mutated the contract: state=%q approvedBy=%v",
			stored.ApprovalState, stored.ApprovedByID)
	}
}

func TestApproveAboveBand(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	approver := uuid.New()
	teamID := f.addTeam(uuid.New(), false, model.ApproverBand{UserID: approver, MinAmount: dec("0"), MaxAmount: dec("500")})
	contractID := f.addContract(partnerID, &teamID, "1000", model.ContractPending, model.ActivationNotOpen)

	_, err := f.contracts.Approve(context.Background(), approver.String(), contractID.String())
	if got := policyCode(t, err); got != "AMOUNT_ABOVE_BAND" {
		t.Errorf("code = %q, want AMOUNT_ABOVE_BAND", got)
	}
}

func TestLeaderOverrideApproval(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	leader := uuid.New()
	teamID := f.addTeam(leader, true, model.ApproverBand{UserID: uuid.New(), MinAmount: dec("0"), MaxAmount: dec("500")})
	contractID := f.addContract(partnerID, &teamID, "100000", model.ContractPending, model.ActivationNotOpen)

	resp, err := f.contracts.Approve(context.Background(), leader.String(), contractID.String())
	if err != nil {
		t.Fatalf("leader approve: %v", err)
	}
	if resp.ApprovalState != model.ContractApproved {
		t.Errorf("state = %q, want APPROVED", resp.ApprovalState)
	}
}

func TestRejectStoresReasonAndAllowsResubmit(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	approver := uuid.New()
	teamID := f.addTeam(uuid.New(), false, model.ApproverBand{UserID: approver, MinAmount: dec("0"), NoUpperLimit: true})
	contractID := f.addContract(partnerID, &teamID, "1000", model.ContractPending, model.ActivationNotOpen)

	resp, err := f.contracts.Reject(context.Background(), approver.String(), contractID.String(), "missing signed annex")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if resp.ApprovalState != model.ContractRejected {
		t.Errorf("state = %q, want REJECTED", resp.ApprovalState)
	}
	if resp.RejectionReason != "missing signed annex" {
		t.Errorf("reason = %q", resp.RejectionReason)
	}

	resp, err = f.contracts.SubmitForApproval(context.Background(), uuid.NewString(), contractID.String())
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resp.ApprovalState != model.ContractPending {
		t.Errorf("state after resubmit = %q, want PENDING", resp.ApprovalState)
	}
}

// A member may refuse a contract their band could never approve; the amount
// band limits what they can commit to, not what they can turn down.
func TestRejectAboveMemberBand(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	approver := uuid.New()
	teamID := f.addTeam(uuid.New(), false, model.ApproverBand{UserID: approver, MinAmount: dec("0"), MaxAmount: dec("500")})
	contractID := f.addContract(partnerID, &teamID, "1000", model.ContractPending, model.ActivationNotOpen)

	resp, err := f.contracts.Reject(context.Background(), approver.String(), contractID.String(), "budget withdrawn")
	if err != nil {
		t.Fatalf("reject above band: %v", err)
	}
	if resp.ApprovalState != model.ContractRejected {
		t.Errorf("state = %q, want REJECTED", resp.ApprovalState)
	}

	// Approving the same contract stays out of reach for that member.
	f.store.contracts[contractID].ApprovalState = model.ContractPending
	_, err = f.contracts.Approve(context.Background(), approver.String(), contractID.String())
	if got := policyCode(t, err); got != "AMOUNT_ABOVE_BAND" {
		t.Errorf("code = %q, want AMOUNT_ABOVE_BAND", got)
	}
}

// References carry a unique index, so creation must abort when the sequence
// cannot hand one out rather than persist a colliding placeholder.
func TestCreateFailsWhenReferenceUnavailable(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	seqErr := errors.New("sequence unavailable")
	f.store.refSeqErr = seqErr

	_, err := f.contracts.CreateContract(context.Background(), uuid.NewString(), CreateContractRequest{
		Title:          "Maintenance retainer",
		PartnerID:      partnerID.String(),
		ContractAmount: dec("1000"),
	})
	if !errors.Is(err, seqErr) {
		t.Fatalf("err = %v, want wrapped sequence error", err)
	}
	if len(f.store.contracts) != 0 {
		t.Errorf("contracts persisted = %d, want none", len(f.store.contracts))
	}
}

func TestResetClearsApprovalMetadata(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	approver := uuid.New()
	teamID := f.addTeam(uuid.New(), false, model.ApproverBand{UserID: approver, MinAmount: dec("0"), NoUpperLimit: true})
	contractID := f.addContract(partnerID, &teamID, "1000", model.ContractApproved, model.ActivationOpen)
	f.store.contracts[contractID].ApprovedByID = &approver
	f.addOrder(partnerID, &contractID, "600", model.OrderConfirmed)

	resp, err := f.contracts.ResetToDraft(context.Background(), uuid.NewString(), contractID.String())
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if resp.ApprovalState != model.ContractDraft {
		t.Errorf("state = %q, want DRAFT", resp.ApprovalState)
	}
	if resp.ApprovedByID != nil || resp.ApprovedDate != nil || resp.RejectionReason != "" {
		t.Errorf("approval metadata not cleared: %+v", resp)
	}
	// The order history stays untouched, so the derived balance still reflects it.
	if !resp.UsedAmount.Equal(dec("600")) {
		t.Errorf("used = %s, want 600", resp.UsedAmount)
	}
	if !resp.RemainingAmount.Equal(dec("400")) {
		t.Errorf("remaining = %s, want 400", resp.RemainingAmount)
	}
}

func TestBalanceDerivedFromConfirmedOrders(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	contractID := f.addContract(partnerID, nil, "1000", model.ContractApproved, model.ActivationOpen)
	f.addOrder(partnerID, &contractID, "300", model.OrderConfirmed)
	f.addOrder(partnerID, &contractID, "200", model.OrderDone)
	f.addOrder(partnerID, &contractID, "100", model.OrderDraft)
	f.addOrder(partnerID, &contractID, "50", model.OrderCancelled)

	resp, err := f.contracts.GetContract(context.Background(), contractID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Only confirmed and done orders count against the ceiling.
	if !resp.UsedAmount.Equal(dec("500")) {
		t.Errorf("used = %s, want 500", resp.UsedAmount)
	}
	if !resp.RemainingAmount.Equal(dec("500")) {
		t.Errorf("remaining = %s, want 500", resp.RemainingAmount)
	}
	if resp.OrderCount != 4 {
		t.Errorf("order count = %d, want 4", resp.OrderCount)
	}
}

func TestCloseStopsActivation(t *testing.T) {
	f := newFixture()
	partnerID := f.addPartner()
	contractID := f.addContract(partnerID, nil, "1000", model.ContractApproved, model.ActivationOpen)

	resp, err := f.contracts.Close(context.Background(), uuid.NewString(), contractID.String())
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if resp.ActivationState != model.ActivationClosed {
		t.Errorf("activation = %q, want CLOSED", resp.ActivationState)
	}
	if resp.ApprovalState != model.ContractApproved {
		t.Errorf("approval state changed on close: %q", resp.ApprovalState)
	}
}
