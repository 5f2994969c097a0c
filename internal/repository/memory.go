package repository

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/segyhp/credit-engine/internal/domain"
	customError "github.com/segyhp/credit-engine/pkg/errors"
)

// MemoryStore keeps everything in process. Transactions stage their writes and
// publish them atomically on commit; GetForUpdate takes a per-entity lock held until
// the transaction ends, so two transactions on the same loan run one after another
// while different loans proceed in parallel.
type MemoryStore struct {
	mu           sync.RWMutex
	clients      map[uuid.UUID]*domain.Client
	loans        map[uuid.UUID]*domain.Loan
	installments map[uuid.UUID]*domain.Installment
	payments     map[uuid.UUID]*domain.Payment

	locks *lockTable
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:      make(map[uuid.UUID]*domain.Client),
		loans:        make(map[uuid.UUID]*domain.Loan),
		installments: make(map[uuid.UUID]*domain.Installment),
		payments:     make(map[uuid.UUID]*domain.Payment),
		locks:        &lockTable{held: make(map[uuid.UUID]chan struct{})},
	}
}

func (s *MemoryStore) Clients() ClientRepository   { return memClients{s.autocommit()} }
func (s *MemoryStore) Loans() LoanRepository       { return memLoans{s.autocommit()} }
func (s *MemoryStore) Payments() PaymentRepository { return memPayments{s.autocommit()} }

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := s.begin()
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

var errReadOnly = errors.New("write in a read-only transaction")

// ReadInTx runs fn against a copy of the committed state taken under the read lock.
// Stored entities are replaced on commit and never mutated in place, so copying the
// maps is enough for a stable view. Entity locks are neither taken nor awaited.
func (s *MemoryStore) ReadInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := s.snapshot().begin()
	tx.readOnly = true
	return fn(ctx, tx)
}

func (s *MemoryStore) snapshot() *MemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := NewMemoryStore()
	for id, c := range s.clients {
		snap.clients[id] = c
	}
	for id, l := range s.loans {
		snap.loans[id] = l
	}
	for id, i := range s.installments {
		snap.installments[id] = i
	}
	for id, p := range s.payments {
		snap.payments[id] = p
	}
	return snap
}

func (s *MemoryStore) begin() *memTx {
	return &memTx{
		store:        s,
		clients:      make(map[uuid.UUID]*domain.Client),
		loans:        make(map[uuid.UUID]*domain.Loan),
		installments: make(map[uuid.UUID]*domain.Installment),
		payments:     make(map[uuid.UUID]*domain.Payment),
		held:         make(map[uuid.UUID]bool),
	}
}

func (s *MemoryStore) autocommit() *memTx {
	tx := s.begin()
	tx.auto = true
	return tx
}

// lockTable hands out one lock per entity id. Locks are channels so that waiting
// can be abandoned when the context ends.
type lockTable struct {
	mu   sync.Mutex
	held map[uuid.UUID]chan struct{}
}

func (l *lockTable) acquire(ctx context.Context, id uuid.UUID) error {
	l.mu.Lock()
	ch, ok := l.held[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.held[id] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return customError.WrapDatabaseError(ctx.Err())
	}
}

func (l *lockTable) release(id uuid.UUID) {
	l.mu.Lock()
	ch := l.held[id]
	l.mu.Unlock()
	<-ch
}

type memTx struct {
	store    *MemoryStore
	auto     bool
	readOnly bool

	clients      map[uuid.UUID]*domain.Client
	loans        map[uuid.UUID]*domain.Loan
	installments map[uuid.UUID]*domain.Installment
	payments     map[uuid.UUID]*domain.Payment

	held map[uuid.UUID]bool
}

func (t *memTx) Clients() ClientRepository   { return memClients{t} }
func (t *memTx) Loans() LoanRepository       { return memLoans{t} }
func (t *memTx) Payments() PaymentRepository { return memPayments{t} }

func (t *memTx) lock(ctx context.Context, id uuid.UUID) error {
	if t.readOnly {
		return customError.WrapDatabaseError(errReadOnly)
	}
	if t.auto || t.held[id] {
		return nil
	}
	if err := t.store.locks.acquire(ctx, id); err != nil {
		return err
	}
	t.held[id] = true
	return nil
}

func (t *memTx) release() {
	for id := range t.held {
		t.store.locks.release(id)
	}
	t.held = map[uuid.UUID]bool{}
}

// written flushes an autocommit write immediately.
func (t *memTx) written() error {
	if t.readOnly {
		return customError.WrapDatabaseError(errReadOnly)
	}
	if !t.auto {
		return nil
	}
	err := t.commit()
	t.clients = make(map[uuid.UUID]*domain.Client)
	t.loans = make(map[uuid.UUID]*domain.Loan)
	t.installments = make(map[uuid.UUID]*domain.Installment)
	t.payments = make(map[uuid.UUID]*domain.Payment)
	return err
}

func (t *memTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := t.checkUnique(); err != nil {
		return err
	}
	for id, c := range t.clients {
		s.clients[id] = c
	}
	for id, l := range t.loans {
		s.loans[id] = l
	}
	for id, i := range t.installments {
		s.installments[id] = i
	}
	for id, p := range t.payments {
		s.payments[id] = p
	}
	return nil
}

// checkUnique enforces the same unique keys as the relational schema. Called with
// the store write lock held.
func (t *memTx) checkUnique() error {
	s := t.store

	docs := make(map[string]uuid.UUID)
	for id, c := range s.clients {
		if _, staged := t.clients[id]; !staged {
			docs[string(c.DocumentType)+"/"+c.DocumentNumber] = id
		}
	}
	for id, c := range t.clients {
		key := string(c.DocumentType) + "/" + c.DocumentNumber
		if other, ok := docs[key]; ok && other != id {
			return customError.WrapAlreadyExists("client", key)
		}
		docs[key] = id
	}

	codes := make(map[string]uuid.UUID)
	for id, l := range s.loans {
		if _, staged := t.loans[id]; !staged {
			codes[l.Code] = id
		}
	}
	for id, l := range t.loans {
		if other, ok := codes[l.Code]; ok && other != id {
			return customError.WrapAlreadyExists("loan", l.Code)
		}
		codes[l.Code] = id
	}

	numbers := make(map[string]uuid.UUID)
	numberKey := func(i *domain.Installment) string {
		return i.LoanID.String() + "#" + strconv.Itoa(i.InstallmentNumber)
	}
	for id, i := range s.installments {
		if _, staged := t.installments[id]; !staged {
			numbers[numberKey(i)] = id
		}
	}
	for id, i := range t.installments {
		if other, ok := numbers[numberKey(i)]; ok && other != id {
			return customError.WrapAlreadyExists("installment", numberKey(i))
		}
		numbers[numberKey(i)] = id
	}

	paymentCodes := make(map[string]uuid.UUID)
	requests := make(map[string]uuid.UUID)
	for id, p := range s.payments {
		if _, staged := t.payments[id]; staged {
			continue
		}
		paymentCodes[p.Code] = id
		if p.RequestID != nil {
			requests[*p.RequestID] = id
		}
	}
	for id, p := range t.payments {
		if other, ok := paymentCodes[p.Code]; ok && other != id {
			return customError.WrapAlreadyExists("payment", p.Code)
		}
		paymentCodes[p.Code] = id
		if p.RequestID != nil {
			if other, ok := requests[*p.RequestID]; ok && other != id {
				return customError.WrapDuplicateRequest(*p.RequestID, other)
			}
			requests[*p.RequestID] = id
		}
	}
	return nil
}

type memClients struct{ tx *memTx }

func (r memClients) Create(_ context.Context, client *domain.Client) error {
	if _, err := r.find(client.ID); err == nil {
		return customError.WrapAlreadyExists("client", client.ID.String())
	}
	r.tx.clients[client.ID] = client.Clone()
	return r.tx.written()
}

func (r memClients) find(id uuid.UUID) (*domain.Client, error) {
	if c, ok := r.tx.clients[id]; ok {
		return c.Clone(), nil
	}
	r.tx.store.mu.RLock()
	defer r.tx.store.mu.RUnlock()
	if c, ok := r.tx.store.clients[id]; ok && c.DeletedAt == nil {
		return c.Clone(), nil
	}
	return nil, customError.WrapNotFound("client", id)
}

func (r memClients) GetByID(_ context.Context, id uuid.UUID) (*domain.Client, error) {
	return r.find(id)
}

func (r memClients) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	if err := r.tx.lock(ctx, id); err != nil {
		return nil, err
	}
	return r.find(id)
}

func (r memClients) Update(_ context.Context, client *domain.Client) error {
	if _, err := r.find(client.ID); err != nil {
		return err
	}
	r.tx.clients[client.ID] = client.Clone()
	return r.tx.written()
}

func (r memClients) List(context.Context) ([]*domain.Client, error) {
	r.tx.store.mu.RLock()
	defer r.tx.store.mu.RUnlock()

	out := make([]*domain.Client, 0, len(r.tx.store.clients))
	for _, c := range r.tx.store.clients {
		if c.DeletedAt == nil {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memLoans struct{ tx *memTx }

func (r memLoans) Create(_ context.Context, loan *domain.Loan) error {
	if _, err := r.find(loan.ID); err == nil {
		return customError.WrapAlreadyExists("loan", loan.ID.String())
	}
	r.tx.loans[loan.ID] = loan.Clone()
	return r.tx.written()
}

func (r memLoans) find(id uuid.UUID) (*domain.Loan, error) {
	if l, ok := r.tx.loans[id]; ok {
		return l.Clone(), nil
	}
	r.tx.store.mu.RLock()
	defer r.tx.store.mu.RUnlock()
	if l, ok := r.tx.store.loans[id]; ok {
		return l.Clone(), nil
	}
	return nil, customError.WrapNotFound("loan", id)
}

func (r memLoans) GetByID(_ context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.find(id)
}

func (r memLoans) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	if err := r.tx.lock(ctx, id); err != nil {
		return nil, err
	}
	return r.find(id)
}

func (r memLoans) Update(_ context.Context, loan *domain.Loan) error {
	if _, err := r.find(loan.ID); err != nil {
		return err
	}
	r.tx.loans[loan.ID] = loan.Clone()
	return r.tx.written()
}

func (r memLoans) list(keep func(*domain.Loan) bool) []*domain.Loan {
	r.tx.store.mu.RLock()
	defer r.tx.store.mu.RUnlock()

	out := make([]*domain.Loan, 0)
	for id, l := range r.tx.store.loans {
		if staged, ok := r.tx.loans[id]; ok {
			l = staged
		}
		if keep(l) {
			out = append(out, l.Clone())
		}
	}
	for id, l := range r.tx.loans {
		if _, committed := r.tx.store.loans[id]; !committed && keep(l) {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r memLoans) ListByClient(_ context.Context, clientID uuid.UUID) ([]*domain.Loan, error) {
	return r.list(func(l *domain.Loan) bool { return l.ClientID == clientID }), nil
}

func (r memLoans) ListByStatus(_ context.Context, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	return r.list(func(l *domain.Loan) bool {
		for _, s := range statuses {
			if l.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (r memLoans) CreateSchedule(_ context.Context, installments []*domain.Installment) error {
	for _, inst := range installments {
		r.tx.installments[inst.ID] = inst.Clone()
	}
	return r.tx.written()
}

func (r memLoans) GetScheduleByLoanID(_ context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	r.tx.store.mu.RLock()
	out := make([]*domain.Installment, 0)
	for id, inst := range r.tx.store.installments {
		if _, staged := r.tx.installments[id]; !staged && inst.LoanID == loanID {
			out = append(out, inst.Clone())
		}
	}
	r.tx.store.mu.RUnlock()

	for _, inst := range r.tx.installments {
		if inst.LoanID == loanID {
			out = append(out, inst.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstallmentNumber < out[j].InstallmentNumber })
	return out, nil
}

func (r memLoans) GetInstallment(_ context.Context, id uuid.UUID) (*domain.Installment, error) {
	if inst, ok := r.tx.installments[id]; ok {
		return inst.Clone(), nil
	}
	r.tx.store.mu.RLock()
	defer r.tx.store.mu.RUnlock()
	if inst, ok := r.tx.store.installments[id]; ok {
		return inst.Clone(), nil
	}
	return nil, customError.WrapNotFound("installment", id)
}

func (r memLoans) UpdateInstallments(ctx context.Context, installments []*domain.Installment) error {
	for _, inst := range installments {
		if _, err := r.GetInstallment(ctx, inst.ID); err != nil {
			return err
		}
		r.tx.installments[inst.ID] = inst.Clone()
	}
	return r.tx.written()
}

type memPayments struct{ tx *memTx }

func (r memPayments) Create(_ context.Context, payment *domain.Payment) error {
	if _, err := r.find(payment.ID); err == nil {
		return customError.WrapAlreadyExists("payment", payment.ID.String())
	}
	for _, line := range payment.Allocations {
		line.PaymentID = payment.ID
	}
	r.tx.payments[payment.ID] = payment.Clone()
	return r.tx.written()
}

func (r memPayments) find(id uuid.UUID) (*domain.Payment, error) {
	if p, ok := r.tx.payments[id]; ok {
		return p.Clone(), nil
	}
	r.tx.store.mu.RLock()
	defer r.tx.store.mu.RUnlock()
	if p, ok := r.tx.store.payments[id]; ok {
		return p.Clone(), nil
	}
	return nil, customError.WrapNotFound("payment", id)
}

func (r memPayments) GetByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	return r.find(id)
}

func (r memPayments) GetByRequestID(_ context.Context, requestID string) (*domain.Payment, error) {
	for _, p := range r.tx.payments {
		if p.RequestID != nil && *p.RequestID == requestID {
			return p.Clone(), nil
		}
	}
	r.tx.store.mu.RLock()
	defer r.tx.store.mu.RUnlock()
	for _, p := range r.tx.store.payments {
		if p.RequestID != nil && *p.RequestID == requestID {
			return p.Clone(), nil
		}
	}
	return nil, customError.WrapNotFound("payment", stringID(requestID))
}

func (r memPayments) GetByLoanID(_ context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	r.tx.store.mu.RLock()
	out := make([]*domain.Payment, 0)
	for id, p := range r.tx.store.payments {
		if _, staged := r.tx.payments[id]; !staged && p.LoanID == loanID {
			out = append(out, p.Clone())
		}
	}
	r.tx.store.mu.RUnlock()

	for _, p := range r.tx.payments {
		if p.LoanID == loanID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].PaymentDate.Before(out[j].PaymentDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r memPayments) Update(_ context.Context, payment *domain.Payment) error {
	if _, err := r.find(payment.ID); err != nil {
		return err
	}
	for _, line := range payment.Allocations {
		line.PaymentID = payment.ID
	}
	r.tx.payments[payment.ID] = payment.Clone()
	return r.tx.written()
}
