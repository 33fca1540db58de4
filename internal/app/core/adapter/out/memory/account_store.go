package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/usecase"
	"github.com/JoeShih716/go-custody-bank/pkg/wal"
)

// accountEntry 寫入 WAL 的紀錄，Data 是 domain.EncodeAccount 的固定 layout
// RefID 是造成這次寫入的操作 (uuid.Nil 表示沒有)
type accountEntry struct {
	Address domain.Address `json:"address"`
	Data    []byte         `json:"data"`
	RefID   uuid.UUID      `json:"ref_id"`
}

// AccountStore 是一個使用 Mutex 保護的記憶體帳戶儲存
//
// 結構:
//
//	accounts: 帳戶資料 Map
//	refs: 已套用的操作 -> 帳戶位址
//	mu: RWMutex 用於保護帳戶資料
//	wal: Write-Ahead Log 實例 (nil 表示純記憶體)
type AccountStore struct {
	accounts map[domain.Address]*domain.BankAccount
	refs     map[uuid.UUID]domain.Address
	mu       sync.RWMutex
	wal      *wal.WAL
}

// NewAccountStore 建立一個新的 AccountStore 實例
//
// 參數:
//
//	wal: Write-Ahead Log 實例，可為 nil
//
// 回傳:
//
//	*AccountStore: AccountStore 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewAccountStore(wal *wal.WAL) (*AccountStore, error) {
	store := &AccountStore{
		accounts: make(map[domain.Address]*domain.BankAccount),
		refs:     make(map[uuid.UUID]domain.Address),
		wal:      wal,
	}
	if wal == nil {
		return store, nil
	}
	if err := store.recoverFromWAL(); err != nil {
		return nil, err
	}
	return store, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳戶狀態，同一位址以最後一筆為準
// 只有 NewAccountStore 呼叫，無需 Lock (單執行緒)
func (s *AccountStore) recoverFromWAL() error {
	return s.wal.ReadAll(func(jsonRaw []byte) error {
		var entry accountEntry
		if err := json.Unmarshal(jsonRaw, &entry); err != nil {
			return err
		}
		account, err := domain.DecodeAccount(entry.Data)
		if err != nil {
			return err
		}
		if account.Address != entry.Address {
			return domain.ErrCorruptRecord
		}
		s.accounts[account.Address] = account
		s.markApplied(entry.RefID, account.Address)
		return nil
	})
}

func (s *AccountStore) markApplied(refID uuid.UUID, address domain.Address) {
	if refID != uuid.Nil {
		s.refs[refID] = address
	}
}

// persist 先寫 WAL 再更新 Map (Critical Path)
func (s *AccountStore) persist(account *domain.BankAccount, refID uuid.UUID) error {
	if s.wal == nil {
		return nil
	}
	data, err := domain.EncodeAccount(account)
	if err != nil {
		return err
	}
	if err := s.wal.Append(accountEntry{Address: account.Address, Data: data, RefID: refID}); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWALWriteFailed, err)
	}
	return nil
}

// Create 新增帳戶，refID 與紀錄寫在同一筆 WAL entry
func (s *AccountStore) Create(ctx context.Context, account *domain.BankAccount, refID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.Address]; ok {
		return domain.ErrAccountAlreadyExists
	}
	if err := s.persist(account, refID); err != nil {
		return err
	}
	s.accounts[account.Address] = account.Clone()
	s.markApplied(refID, account.Address)
	return nil
}

// Get 取得帳戶複本
func (s *AccountStore) Get(ctx context.Context, address domain.Address) (*domain.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[address]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// Update 覆寫既有帳戶
func (s *AccountStore) Update(ctx context.Context, account *domain.BankAccount, refID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.Address]; !ok {
		return domain.ErrAccountNotFound
	}
	if err := s.persist(account, refID); err != nil {
		return err
	}
	s.accounts[account.Address] = account.Clone()
	s.markApplied(refID, account.Address)
	return nil
}

// List 依位址排序列出所有帳戶
func (s *AccountStore) List(ctx context.Context) ([]*domain.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.BankAccount, 0, len(s.accounts))
	for _, account := range s.accounts {
		out = append(out, account.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out, nil
}

// AppliedRefs 回傳所有已套用操作的複本
func (s *AccountStore) AppliedRefs(ctx context.Context) (map[uuid.UUID]domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]domain.Address, len(s.refs))
	for refID, address := range s.refs {
		out[refID] = address
	}
	return out, nil
}

var _ usecase.AccountStore = (*AccountStore)(nil)
