package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/usecase"
)

const defaultSize = 4096

// AccountStore 在任一 AccountStore 前加一層 LRU (read-through / write-through)
//
// 寫入先寫到底層 store，成功後才更新快取；失敗時把該筆移出快取。
type AccountStore struct {
	next   usecase.AccountStore
	recent *lru.Cache // domain.Address -> *domain.BankAccount
}

// NewAccountStore size <= 0 時使用預設大小
func NewAccountStore(next usecase.AccountStore, size int) (*AccountStore, error) {
	if size <= 0 {
		size = defaultSize
	}
	recent, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create account cache: %w", err)
	}
	return &AccountStore{next: next, recent: recent}, nil
}

func (s *AccountStore) Create(ctx context.Context, account *domain.BankAccount, refID uuid.UUID) error {
	if err := s.next.Create(ctx, account, refID); err != nil {
		if !errors.Is(err, domain.ErrAccountAlreadyExists) {
			s.recent.Remove(account.Address)
		}
		return err
	}
	s.recent.Add(account.Address, account.Clone())
	return nil
}

func (s *AccountStore) Get(ctx context.Context, address domain.Address) (*domain.BankAccount, error) {
	if v, ok := s.recent.Get(address); ok {
		return v.(*domain.BankAccount).Clone(), nil
	}
	account, err := s.next.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	s.recent.Add(address, account.Clone())
	return account, nil
}

func (s *AccountStore) Update(ctx context.Context, account *domain.BankAccount, refID uuid.UUID) error {
	if err := s.next.Update(ctx, account, refID); err != nil {
		s.recent.Remove(account.Address)
		return err
	}
	s.recent.Add(account.Address, account.Clone())
	return nil
}

// List 一律讀底層 store
func (s *AccountStore) List(ctx context.Context) ([]*domain.BankAccount, error) {
	return s.next.List(ctx)
}

// AppliedRefs 不快取，直接讀底層 store
func (s *AccountStore) AppliedRefs(ctx context.Context) (map[uuid.UUID]domain.Address, error) {
	return s.next.AppliedRefs(ctx)
}

// Len 快取中的筆數
func (s *AccountStore) Len() int {
	return s.recent.Len()
}

var _ usecase.AccountStore = (*AccountStore)(nil)
