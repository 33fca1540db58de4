package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
)

var errInjected = errors.New("injected failure")

func testIdentity(b byte) domain.Identity {
	var id domain.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

// fakeStore 可注入失敗的記憶體 store
type fakeStore struct {
	mu         sync.Mutex
	accounts   map[domain.Address]*domain.BankAccount
	refs       map[uuid.UUID]domain.Address
	failUpdate bool
	failCreate bool
	updates    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[domain.Address]*domain.BankAccount),
		refs:     make(map[uuid.UUID]domain.Address),
	}
}

func (s *fakeStore) Create(_ context.Context, a *domain.BankAccount, refID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errInjected
	}
	if _, ok := s.accounts[a.Address]; ok {
		return domain.ErrAccountAlreadyExists
	}
	s.accounts[a.Address] = a.Clone()
	s.markApplied(refID, a.Address)
	return nil
}

func (s *fakeStore) markApplied(refID uuid.UUID, addr domain.Address) {
	if refID != uuid.Nil {
		s.refs[refID] = addr
	}
}

func (s *fakeStore) Get(_ context.Context, addr domain.Address) (*domain.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[addr]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (s *fakeStore) Update(_ context.Context, a *domain.BankAccount, refID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate {
		return errInjected
	}
	if _, ok := s.accounts[a.Address]; !ok {
		return domain.ErrAccountNotFound
	}
	s.updates++
	s.accounts[a.Address] = a.Clone()
	s.markApplied(refID, a.Address)
	return nil
}

func (s *fakeStore) List(context.Context) ([]*domain.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.BankAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (s *fakeStore) AppliedRefs(context.Context) (map[uuid.UUID]domain.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]domain.Address, len(s.refs))
	for k, v := range s.refs {
		out[k] = v
	}
	return out, nil
}

type move struct {
	from, to domain.Address
	amount   uint64
}

// fakeLedger 記錄所有移轉，可在指定次數後失敗
type fakeLedger struct {
	mu       sync.Mutex
	holdings map[domain.Address]uint64
	moves    []move
	failMove bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{holdings: make(map[domain.Address]uint64)}
}

func (l *fakeLedger) fund(holder domain.Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holdings[holder] += amount
}

func (l *fakeLedger) Move(_ context.Context, from, to domain.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failMove {
		return errInjected
	}
	if from == to {
		return domain.ErrSelfTransfer
	}
	if l.holdings[from] < amount {
		return domain.ErrInsufficientValue
	}
	l.holdings[from] -= amount
	l.holdings[to] += amount
	l.moves = append(l.moves, move{from: from, to: to, amount: amount})
	return nil
}

func (l *fakeLedger) BackingValue(_ context.Context, holder domain.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holdings[holder], nil
}

func (l *fakeLedger) value(holder domain.Address) uint64 {
	v, _ := l.BackingValue(context.Background(), holder)
	return v
}

// fixedReserve 固定保留金，可被修改以模擬費率變動
type fixedReserve struct {
	mu     sync.Mutex
	amount uint64
	calls  int
}

func (r *fixedReserve) MinimumBalance(context.Context, uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.amount, nil
}

func (r *fixedReserve) set(amount uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.amount = amount
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.Transaction
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, tran *domain.Transaction, _ *domain.BankAccount) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errInjected
	}
	copied := *tran
	p.events = append(p.events, &copied)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
