package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/salon-comanda/internal/commission"
	"github.com/mmeshcher/salon-comanda/internal/model"
	"github.com/mmeshcher/salon-comanda/internal/repository"
)

// memRepo реализует хранилище в памяти с теми же гарантиями, что и PostgreSQL:
// закрытие комманды и смены выполняется целиком под одной блокировкой.
type memRepo struct {
	mu sync.Mutex

	staff    map[string]model.Staff
	clients  map[string]model.Client
	catalog  map[string]model.CatalogItem
	comandas map[string]*model.Comanda

	finalizations []model.Finalization
	commissions   []model.Commission
	daily         map[string]*model.DailyRevenue
	history       map[string][]model.HistoryItem

	sessions  map[string]*model.CashierSession
	movements map[string][]model.CashMovement
}

func newMemRepo() *memRepo {
	return &memRepo{
		staff:     make(map[string]model.Staff),
		clients:   make(map[string]model.Client),
		catalog:   make(map[string]model.CatalogItem),
		comandas:  make(map[string]*model.Comanda),
		daily:     make(map[string]*model.DailyRevenue),
		history:   make(map[string][]model.HistoryItem),
		sessions:  make(map[string]*model.CashierSession),
		movements: make(map[string][]model.CashMovement),
	}
}

func (r *memRepo) Close() error { return nil }

func (r *memRepo) GetStaff(ctx context.Context, id string) (*model.Staff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.staff[id]
	if !ok || !s.Active {
		return nil, repository.ErrStaffNotFound
	}
	return &s, nil
}

func (r *memRepo) CreateStaff(ctx context.Context, s model.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staff[s.ID] = s
	return nil
}

func (r *memRepo) GetClient(ctx context.Context, id string) (*model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, repository.ErrClientNotFound
	}
	return &c, nil
}

func (r *memRepo) CreateClient(ctx context.Context, c model.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
	return nil
}

func (r *memRepo) GetCatalogItem(ctx context.Context, itemType model.LineType, id string) (*model.CatalogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.catalog[id]
	if !ok || item.Type != itemType {
		return nil, repository.ErrCatalogItemNotFound
	}
	return &item, nil
}

func (r *memRepo) CreateCatalogItem(ctx context.Context, item model.CatalogItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalog[item.ID] = item
	return nil
}

func (r *memRepo) CreateComanda(ctx context.Context, c model.Comanda) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.comandas {
		if existing.ClientID == c.ClientID && existing.Status == model.ComandaStatusOpen {
			return repository.ErrOpenComandaExists
		}
	}
	c.Lines = []model.Line{}
	r.comandas[c.ID] = &c
	return nil
}

func (r *memRepo) GetComanda(ctx context.Context, id string) (*model.Comanda, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comandas[id]
	if !ok {
		return nil, repository.ErrComandaNotFound
	}
	cp := *c
	cp.Lines = append([]model.Line{}, c.Lines...)
	return &cp, nil
}

func (r *memRepo) ListComandas(ctx context.Context, status model.ComandaStatus) ([]model.Comanda, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Comanda
	for _, c := range r.comandas {
		if c.Status == status {
			res = append(res, *c)
		}
	}
	return res, nil
}

func (r *memRepo) AddLine(ctx context.Context, comandaID string, l model.Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comandas[comandaID]
	if !ok {
		return repository.ErrComandaNotFound
	}
	if c.Status != model.ComandaStatusOpen {
		return repository.ErrComandaFinalized
	}
	c.Lines = append(c.Lines, l)
	return nil
}

func (r *memRepo) RemoveLine(ctx context.Context, comandaID, lineID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comandas[comandaID]
	if !ok {
		return repository.ErrComandaNotFound
	}
	if c.Status != model.ComandaStatusOpen {
		return repository.ErrComandaFinalized
	}
	for i, l := range c.Lines {
		if l.ID == lineID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return nil
		}
	}
	return repository.ErrLineNotFound
}

func (r *memRepo) FinalizeComanda(ctx context.Context, comandaID string, settle repository.SettleFunc) (*model.Finalization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.comandas[comandaID]
	if !ok {
		return nil, repository.ErrComandaNotFound
	}
	if c.Status != model.ComandaStatusOpen {
		return nil, repository.ErrComandaFinalized
	}
	client, ok := r.clients[c.ClientID]
	if !ok {
		return nil, repository.ErrClientNotFound
	}

	snapshot := *c
	snapshot.Lines = append([]model.Line{}, c.Lines...)
	s, err := settle(&snapshot, &client)
	if err != nil {
		return nil, err
	}
	f := s.Finalization

	if client.CreditBalance.LessThan(f.CreditAmount) {
		return nil, repository.ErrInsufficientCredit
	}

	c.Status = model.ComandaStatusFinalized
	c.Subtotal = &f.Subtotal
	c.Discount = &f.Discount
	c.ValorFinal = &f.ValorFinal
	c.PaymentMethod = &f.PaymentMethod
	c.FinalizedAt = &f.FinalizedAt

	r.finalizations = append(r.finalizations, f)

	d, ok := r.daily[f.BusinessDay]
	if !ok {
		d = &model.DailyRevenue{Day: f.BusinessDay}
		r.daily[f.BusinessDay] = d
	}
	d.Revenue = d.Revenue.Add(commission.Round(f.ValorFinal))
	d.Commission = d.Commission.Add(commission.Round(f.TotalComissao))
	d.Count++

	for _, lc := range f.Commissions {
		r.commissions = append(r.commissions, model.Commission{
			ID:             lc.LineID + "-c",
			ComandaID:      f.ComandaID,
			FinalizationID: f.ID,
			LineID:         lc.LineID,
			Type:           lc.Type,
			ItemName:       lc.ItemName,
			Gross:          lc.Gross,
			Amount:         lc.Amount,
			StaffID:        lc.StaffID,
			Status:         model.CommissionPending,
			BusinessDay:    f.BusinessDay,
			CreatedAt:      f.FinalizedAt,
		})
	}

	client.VisitCount++
	client.LifetimeSpend = client.LifetimeSpend.Add(f.ValorFinal)
	client.CreditBalance = client.CreditBalance.Sub(f.CreditAmount)
	r.clients[client.ID] = client
	r.history[client.ID] = append(r.history[client.ID], s.HistoryItems...)

	return &f, nil
}

func (r *memRepo) GetDaily(ctx context.Context, day string) (*model.DailyRevenue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.daily[day]; ok {
		cp := *d
		return &cp, nil
	}
	return &model.DailyRevenue{Day: day}, nil
}

func (r *memRepo) RebuildDaily(ctx context.Context, day string) (*model.DailyRevenue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := &model.DailyRevenue{Day: day}
	for _, f := range r.finalizations {
		if f.BusinessDay == day {
			d.Revenue = d.Revenue.Add(f.ValorFinal)
			d.Commission = d.Commission.Add(f.TotalComissao)
			d.Count++
		}
	}
	if d.Count == 0 {
		delete(r.daily, day)
	} else {
		r.daily[day] = d
	}
	cp := *d
	return &cp, nil
}

func (r *memRepo) ListFinalizationsByDay(ctx context.Context, day string) ([]model.Finalization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Finalization
	for _, f := range r.finalizations {
		if f.BusinessDay == day {
			res = append(res, f)
		}
	}
	return res, nil
}

func (r *memRepo) OpenSession(ctx context.Context, s model.CashierSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.StaffID == s.StaffID && existing.Status == model.SessionOpen {
			return repository.ErrSessionOpen
		}
	}
	r.sessions[s.ID] = &s
	return nil
}

func (r *memRepo) GetSession(ctx context.Context, id string) (*model.CashierSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) ListSessions(ctx context.Context, status model.SessionStatus) ([]model.CashierSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.CashierSession
	for _, s := range r.sessions {
		if s.Status == status {
			res = append(res, *s)
		}
	}
	return res, nil
}

func (r *memRepo) AddMovement(ctx context.Context, m model.CashMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[m.SessionID]
	if !ok {
		return repository.ErrSessionNotFound
	}
	if s.Status != model.SessionOpen {
		return repository.ErrSessionClosed
	}
	r.movements[m.SessionID] = append(r.movements[m.SessionID], m)
	return nil
}

func (r *memRepo) ListMovements(ctx context.Context, sessionID string) ([]model.CashMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return nil, repository.ErrSessionNotFound
	}
	return append([]model.CashMovement{}, r.movements[sessionID]...), nil
}

func (r *memRepo) CloseSession(ctx context.Context, id, notes string, now func() time.Time, summarize repository.SummarizeFunc) (*model.CashierSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	closedAt := now()

	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	if s.Status != model.SessionOpen {
		return nil, repository.ErrSessionClosed
	}

	payments := make(map[model.PaymentMethod]decimal.Decimal)
	for _, f := range r.finalizations {
		if !f.FinalizedAt.Before(s.OpenedAt) && f.FinalizedAt.Before(closedAt) {
			payments[f.PaymentMethod] = payments[f.PaymentMethod].Add(f.AmountPaid)
		}
	}

	snapshot := *s
	summary, err := summarize(&snapshot, append([]model.CashMovement{}, r.movements[id]...), payments)
	if err != nil {
		return nil, err
	}

	s.Status = model.SessionClosed
	s.ClosedAt = &closedAt
	s.Notes = notes
	s.Summary = summary
	cp := *s
	return &cp, nil
}

func (r *memRepo) CommissionReport(ctx context.Context, from, to string, staffID *string) ([]model.StaffCommissionTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byStaff := make(map[string]*model.StaffCommissionTotals)
	for _, c := range r.commissions {
		if c.BusinessDay < from || c.BusinessDay > to {
			continue
		}
		if staffID != nil && c.StaffID != *staffID {
			continue
		}
		t, ok := byStaff[c.StaffID]
		if !ok {
			t = &model.StaffCommissionTotals{StaffID: c.StaffID, StaffName: r.staff[c.StaffID].Name}
			byStaff[c.StaffID] = t
		}
		if c.Type == model.LineTypeService {
			t.ServiceTotal = t.ServiceTotal.Add(c.Amount)
		} else {
			t.ProductTotal = t.ProductTotal.Add(c.Amount)
		}
		if c.Status == model.CommissionPaid {
			t.Paid = t.Paid.Add(c.Amount)
		} else {
			t.Pending = t.Pending.Add(c.Amount)
		}
		t.Total = t.Total.Add(c.Amount)
		t.Count++
	}

	res := make([]model.StaffCommissionTotals, 0, len(byStaff))
	for _, t := range byStaff {
		res = append(res, *t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StaffName < res[j].StaffName })
	return res, nil
}

func (r *memRepo) ListCommissionsByComanda(ctx context.Context, comandaID string) ([]model.Commission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := []model.Commission{}
	for _, c := range r.commissions {
		if c.ComandaID == comandaID {
			res = append(res, c)
		}
	}
	return res, nil
}

func (r *memRepo) MarkCommissionsPaid(ctx context.Context, staffID, from, to string, paidAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.commissions {
		c := &r.commissions[i]
		if c.StaffID == staffID && c.Status == model.CommissionPending && c.BusinessDay >= from && c.BusinessDay <= to {
			c.Status = model.CommissionPaid
			at := paidAt
			c.PaidAt = &at
			n++
		}
	}
	return n, nil
}
