package leveldb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/usecase"
)

// accountPrefix 帳戶紀錄的 key 前綴: "acct/" + address(32 bytes)
var accountPrefix = []byte("acct/")

// refPrefix 已套用操作的 key 前綴: "ref/" + ref_id(16 bytes)，value 為帳戶位址
var refPrefix = []byte("ref/")

func accountKey(address domain.Address) []byte {
	key := make([]byte, 0, len(accountPrefix)+len(address))
	key = append(key, accountPrefix...)
	return append(key, address[:]...)
}

func refKey(refID uuid.UUID) []byte {
	key := make([]byte, 0, len(refPrefix)+len(refID))
	key = append(key, refPrefix...)
	return append(key, refID[:]...)
}

// AccountStore 以 LevelDB 保存固定 layout 的帳戶紀錄
type AccountStore struct {
	db *leveldb.DB
	// 保護 Create 的 Has + Put
	mu sync.Mutex
}

// Open 開啟 (或建立) path 上的 LevelDB
func Open(path string) (*AccountStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		OpenFilesCacheCapacity: 16,
		BlockCacheCapacity:     8 * opt.MiB,
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &AccountStore{db: db}, nil
}

// OpenMemory 建立記憶體中的 LevelDB (測試用)
func OpenMemory() (*AccountStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &AccountStore{db: db}, nil
}

// Close 關閉資料庫
func (s *AccountStore) Close() error {
	return s.db.Close()
}

// put 以同一個 Batch 寫入紀錄與 ref，兩者一起落地
func (s *AccountStore) put(account *domain.BankAccount, refID uuid.UUID) error {
	data, err := domain.EncodeAccount(account)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Put(accountKey(account.Address), data)
	if refID != uuid.Nil {
		batch.Put(refKey(refID), account.Address[:])
	}
	return s.db.Write(batch, &opt.WriteOptions{Sync: true})
}

// Create 新增帳戶
func (s *AccountStore) Create(ctx context.Context, account *domain.BankAccount, refID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exists, err := s.db.Has(accountKey(account.Address), nil)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrAccountAlreadyExists
	}
	return s.put(account, refID)
}

// Get 取得帳戶
func (s *AccountStore) Get(ctx context.Context, address domain.Address) (*domain.BankAccount, error) {
	data, err := s.db.Get(accountKey(address), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return domain.DecodeAccount(data)
}

// Update 覆寫既有帳戶
func (s *AccountStore) Update(ctx context.Context, account *domain.BankAccount, refID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exists, err := s.db.Has(accountKey(account.Address), nil)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrAccountNotFound
	}
	return s.put(account, refID)
}

// List 依 key 順序 (即位址順序) 列出所有帳戶
func (s *AccountStore) List(ctx context.Context) ([]*domain.BankAccount, error) {
	iter := s.db.NewIterator(util.BytesPrefix(accountPrefix), nil)
	defer iter.Release()

	var out []*domain.BankAccount
	for iter.Next() {
		account, err := domain.DecodeAccount(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("key %x: %w", iter.Key(), err)
		}
		out = append(out, account)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// AppliedRefs 掃描 ref 前綴，重建已套用操作
func (s *AccountStore) AppliedRefs(ctx context.Context) (map[uuid.UUID]domain.Address, error) {
	iter := s.db.NewIterator(util.BytesPrefix(refPrefix), nil)
	defer iter.Release()

	out := make(map[uuid.UUID]domain.Address)
	for iter.Next() {
		refID, err := uuid.FromBytes(iter.Key()[len(refPrefix):])
		if err != nil {
			return nil, fmt.Errorf("key %x: %w", iter.Key(), err)
		}
		if len(iter.Value()) != len(domain.Address{}) {
			return nil, fmt.Errorf("key %x: %w", iter.Key(), domain.ErrCorruptRecord)
		}
		var address domain.Address
		copy(address[:], iter.Value())
		out[refID] = address
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ usecase.AccountStore = (*AccountStore)(nil)
