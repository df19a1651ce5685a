package service

import (
	"context"
	"fmt"
	"sync"

	"contractflow/internal/model"
	"contractflow/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// In-memory doubles for the repository layer. The fake transaction manager
// holds one store-wide lock for the duration of RunInTx, which models the
// serialization the production path gets from the contract row lock.

type fakeTxKey struct{}

type fakeStore struct {
	mu        sync.Mutex
	teams     map[uuid.UUID]*model.ApprovalTeam
	contracts map[uuid.UUID]*model.Contract
	orders    map[uuid.UUID]*model.SaleOrder
	partners  map[uuid.UUID]*model.Partner
	settings  model.CompanySettings
	audits    []model.AuditLog
	refSeq    int
	orderSeq  int

	// refSeqErr makes NextReference fail, simulating a broken sequence.
	refSeqErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		teams:     make(map[uuid.UUID]*model.ApprovalTeam),
		contracts: make(map[uuid.UUID]*model.Contract),
		orders:    make(map[uuid.UUID]*model.SaleOrder),
		partners:  make(map[uuid.UUID]*model.Partner),
		settings:  model.CompanySettings{ID: 1},
	}
}

// lock acquires the store lock unless the context already runs inside a fake
// transaction that holds it.
func (s *fakeStore) lock(ctx context.Context) func() {
	if ctx.Value(fakeTxKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type fakeTxManager struct {
	store *fakeStore
}

func (t *fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return fn(context.WithValue(ctx, fakeTxKey{}, true))
}

// --- Team repository ---

type fakeTeamRepo struct {
	store *fakeStore
}

func (r *fakeTeamRepo) Create(ctx context.Context, team *model.ApprovalTeam) error {
	defer r.store.lock(ctx)()
	if team.ID == uuid.Nil {
		team.ID = uuid.New()
	}
	for i := range team.Bands {
		team.Bands[i].TeamID = team.ID
	}
	cp := *team
	r.store.teams[team.ID] = &cp
	return nil
}

func (r *fakeTeamRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalTeam, error) {
	defer r.store.lock(ctx)()
	team, ok := r.store.teams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *team
	cp.Bands = append([]model.ApproverBand(nil), team.Bands...)
	return &cp, nil
}

func (r *fakeTeamRepo) List(ctx context.Context, page, limit int) ([]model.ApprovalTeam, int64, error) {
	defer r.store.lock(ctx)()
	teams := make([]model.ApprovalTeam, 0, len(r.store.teams))
	for _, t := range r.store.teams {
		teams = append(teams, *t)
	}
	return teams, int64(len(teams)), nil
}

func (r *fakeTeamRepo) Update(ctx context.Context, team *model.ApprovalTeam) error {
	defer r.store.lock(ctx)()
	cp := *team
	r.store.teams[team.ID] = &cp
	return nil
}

func (r *fakeTeamRepo) ReplaceBands(ctx context.Context, team *model.ApprovalTeam, bands []model.ApproverBand) error {
	defer r.store.lock(ctx)()
	stored, ok := r.store.teams[team.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range bands {
		bands[i].TeamID = team.ID
	}
	stored.Bands = append([]model.ApproverBand(nil), bands...)
	team.Bands = bands
	return nil
}

func (r *fakeTeamRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.store.lock(ctx)()
	delete(r.store.teams, id)
	return nil
}

func (r *fakeTeamRepo) CountContracts(ctx context.Context, teamID uuid.UUID) (int64, error) {
	defer r.store.lock(ctx)()
	var count int64
	for _, c := range r.store.contracts {
		if c.ApprovalTeamID != nil && *c.ApprovalTeamID == teamID {
			count++
		}
	}
	return count, nil
}

// --- Contract repository ---

type fakeContractRepo struct {
	store *fakeStore
}

func (r *fakeContractRepo) Create(ctx context.Context, contract *model.Contract) error {
	defer r.store.lock(ctx)()
	if contract.ID == uuid.Nil {
		contract.ID = uuid.New()
	}
	cp := *contract
	r.store.contracts[contract.ID] = &cp
	return nil
}

func (r *fakeContractRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	defer r.store.lock(ctx)()
	contract, ok := r.store.contracts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *contract
	return &cp, nil
}

func (r *fakeContractRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeContractRepo) List(ctx context.Context, filter repository.ContractFilter) ([]model.Contract, int64, error) {
	defer r.store.lock(ctx)()
	contracts := make([]model.Contract, 0, len(r.store.contracts))
	for _, c := range r.store.contracts {
		if filter.ApprovalState != "" && c.ApprovalState != filter.ApprovalState {
			continue
		}
		contracts = append(contracts, *c)
	}
	return contracts, int64(len(contracts)), nil
}

func (r *fakeContractRepo) Update(ctx context.Context, contract *model.Contract) error {
	defer r.store.lock(ctx)()
	if _, ok := r.store.contracts[contract.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *contract
	r.store.contracts[contract.ID] = &cp
	return nil
}

func (r *fakeContractRepo) SumConfirmedOrders(ctx context.Context, contractID uuid.UUID, excludeOrderID *uuid.UUID) (decimal.Decimal, error) {
	defer r.store.lock(ctx)()
	sum := decimal.Zero
	for _, o := range r.store.orders {
		if o.ContractID == nil || *o.ContractID != contractID {
			continue
		}
		if excludeOrderID != nil && o.ID == *excludeOrderID {
			continue
		}
		if model.IsConfirmedEquivalent(o.Status) {
			sum = sum.Add(o.AmountTotal)
		}
	}
	return sum, nil
}

func (r *fakeContractRepo) CountOrders(ctx context.Context, contractID uuid.UUID) (int64, error) {
	defer r.store.lock(ctx)()
	var count int64
	for _, o := range r.store.orders {
		if o.ContractID != nil && *o.ContractID == contractID {
			count++
		}
	}
	return count, nil
}

func (r *fakeContractRepo) NextReference(ctx context.Context) (string, error) {
	defer r.store.lock(ctx)()
	if r.store.refSeqErr != nil {
		return "", r.store.refSeqErr
	}
	r.store.refSeq++
	return fmt.Sprintf("CTR-%05d", r.store.refSeq), nil
}

// --- Order repository ---

type fakeOrderRepo struct {
	store *fakeStore
}

func (r *fakeOrderRepo) Create(ctx context.Context, order *model.SaleOrder) error {
	defer r.store.lock(ctx)()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	cp := *order
	r.store.orders[order.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.SaleOrder, error) {
	defer r.store.lock(ctx)()
	order, ok := r.store.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *order
	return &cp, nil
}

func (r *fakeOrderRepo) List(ctx context.Context, filter repository.OrderFilter) ([]model.SaleOrder, int64, error) {
	defer r.store.lock(ctx)()
	orders := make([]model.SaleOrder, 0, len(r.store.orders))
	for _, o := range r.store.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.ContractID != nil && (o.ContractID == nil || *o.ContractID != *filter.ContractID) {
			continue
		}
		orders = append(orders, *o)
	}
	return orders, int64(len(orders)), nil
}

func (r *fakeOrderRepo) Update(ctx context.Context, order *model.SaleOrder) error {
	defer r.store.lock(ctx)()
	if _, ok := r.store.orders[order.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *order
	r.store.orders[order.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) NextOrderNo(ctx context.Context) (string, error) {
	defer r.store.lock(ctx)()
	r.store.orderSeq++
	return fmt.Sprintf("SO-%05d", r.store.orderSeq), nil
}

// --- Partner repository ---

type fakePartnerRepo struct {
	store *fakeStore
}

func (r *fakePartnerRepo) Create(ctx context.Context, partner *model.Partner) error {
	defer r.store.lock(ctx)()
	if partner.ID == uuid.Nil {
		partner.ID = uuid.New()
	}
	cp := *partner
	r.store.partners[partner.ID] = &cp
	return nil
}

func (r *fakePartnerRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Partner, error) {
	defer r.store.lock(ctx)()
	partner, ok := r.store.partners[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *partner
	return &cp, nil
}

func (r *fakePartnerRepo) List(ctx context.Context, search string, page, limit int) ([]model.Partner, int64, error) {
	defer r.store.lock(ctx)()
	partners := make([]model.Partner, 0, len(r.store.partners))
	for _, p := range r.store.partners {
		partners = append(partners, *p)
	}
	return partners, int64(len(partners)), nil
}

func (r *fakePartnerRepo) Update(ctx context.Context, partner *model.Partner) error {
	defer r.store.lock(ctx)()
	cp := *partner
	r.store.partners[partner.ID] = &cp
	return nil
}

func (r *fakePartnerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.store.lock(ctx)()
	delete(r.store.partners, id)
	return nil
}

// --- Settings repository ---

type fakeSettingsRepo struct {
	store *fakeStore
}

func (r *fakeSettingsRepo) Get(ctx context.Context) (*model.CompanySettings, error) {
	defer r.store.lock(ctx)()
	cp := r.store.settings
	return &cp, nil
}

func (r *fakeSettingsRepo) Save(ctx context.Context, settings *model.CompanySettings) error {
	defer r.store.lock(ctx)()
	r.store.settings = *settings
	return nil
}

// --- Audit repository ---

type fakeAuditRepo struct {
	store *fakeStore
}

func (r *fakeAuditRepo) Create(ctx context.Context, entry *model.AuditLog) error {
	defer r.store.lock(ctx)()
	r.store.audits = append(r.store.audits, *entry)
	return nil
}

func (r *fakeAuditRepo) List(ctx context.Context, filter repository.AuditFilter) ([]model.AuditLog, int64, error) {
	defer r.store.lock(ctx)()
	return append([]model.AuditLog(nil), r.store.audits...), int64(len(r.store.audits)), nil
}

// --- Notifier ---

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) BroadcastEvent(event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

// --- Fixture ---

type fixture struct {
	store     *fakeStore
	notifier  *fakeNotifier
	teams     TeamService
	contracts ContractService
	orders    OrderService
}

func newFixture() *fixture {
	store := newFakeStore()
	txm := &fakeTxManager{store: store}
	teamRepo := &fakeTeamRepo{store: store}
	contractRepo := &fakeContractRepo{store: store}
	orderRepo := &fakeOrderRepo{store: store}
	partnerRepo := &fakePartnerRepo{store: store}
	settingsRepo := &fakeSettingsRepo{store: store}
	auditRepo := &fakeAuditRepo{store: store}
	notifier := &fakeNotifier{}

	return &fixture{
		store:     store,
		notifier:  notifier,
		teams:     NewTeamService(teamRepo, auditRepo, txm),
		contracts: NewContractService(contractRepo, teamRepo, partnerRepo, auditRepo, txm, notifier),
		orders:    NewOrderService(orderRepo, contractRepo, settingsRepo, auditRepo, txm, notifier),
	}
}

func (f *fixture) addPartner() uuid.UUID {
	p := &model.Partner{ID: uuid.New(), Name: "Acme Trading", IsActive: true}
	f.store.partners[p.ID] = p
	return p.ID
}

func (f *fixture) addTeam(leaderID uuid.UUID, override bool, bands ...model.ApproverBand) uuid.UUID {
	t := &model.ApprovalTeam{
		ID:             uuid.New(),
		Name:           "Finance Approvals",
		LeaderID:       leaderID,
		LeaderOverride: override,
		Active:         true,
	}
	for i := range bands {
		bands[i].TeamID = t.ID
	}
	t.Bands = bands
	f.store.teams[t.ID] = t
	return t.ID
}

func (f *fixture) addContract(partnerID uuid.UUID, teamID *uuid.UUID, amount, approvalState, activationState string) uuid.UUID {
	c := &model.Contract{
		ID:              uuid.New(),
		Reference:       fmt.Sprintf("CTR-TEST-%d", len(f.store.contracts)+1),
		Title:           "Supply agreement",
		PartnerID:       partnerID,
		CurrencyCode:    "USD",
		ContractAmount:  decimal.RequireFromString(amount),
		ApprovalTeamID:  teamID,
		ApprovalState:   approvalState,
		ActivationState: activationState,
	}
	f.store.contracts[c.ID] = c
	return c.ID
}

func (f *fixture) addOrder(partnerID uuid.UUID, contractID *uuid.UUID, amount, status string) uuid.UUID {
	o := &model.SaleOrder{
		ID:          uuid.New(),
		OrderNo:     fmt.Sprintf("SO-TEST-%d", len(f.store.orders)+1),
		PartnerID:   partnerID,
		ContractID:  contractID,
		AmountTotal: decimal.RequireFromString(amount),
		Status:      status,
	}
	f.store.orders[o.ID] = o
	return o.ID
}
