package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/usecase"
	"github.com/JoeShih716/go-custody-bank/pkg/mysql"
)

// sqlAccount 對應資料庫的 bank_accounts 表
type sqlAccount struct {
	Address   []byte `gorm:"primaryKey;type:binary(32)"`
	Owner     []byte `gorm:"type:binary(32);uniqueIndex"`
	Name      string `gorm:"type:varchar(204)"`
	Balance   uint64 `gorm:"type:bigint unsigned"`
	Space     uint64 `gorm:"type:bigint unsigned"`
	CreatedAt int64  `gorm:"autoCreateTime:milli"` // 自動寫入時間
	UpdatedAt int64  `gorm:"autoUpdateTime:milli"` // 自動更新時間
}

func (*sqlAccount) TableName() string {
	return "bank_accounts"
}

// sqlAppliedOperation 對應 applied_operations 表，與帳戶在同一個交易內寫入
type sqlAppliedOperation struct {
	RefID     []byte `gorm:"primaryKey;type:binary(16)"`
	Address   []byte `gorm:"type:binary(32)"`
	CreatedAt int64  `gorm:"autoCreateTime:milli"`
}

func (*sqlAppliedOperation) TableName() string {
	return "applied_operations"
}

// recordApplied 寫入 ref，uuid.Nil 不寫
func recordApplied(tx *gorm.DB, refID uuid.UUID, address domain.Address) error {
	if refID == uuid.Nil {
		return nil
	}
	return tx.Create(&sqlAppliedOperation{RefID: refID[:], Address: address[:]}).Error
}

func toSQLAccount(a *domain.BankAccount) *sqlAccount {
	return &sqlAccount{
		Address: a.Address[:],
		Owner:   a.Owner[:],
		Name:    a.Name,
		Balance: a.Balance,
		Space:   a.Space,
	}
}

func (r *sqlAccount) toDomain() (*domain.BankAccount, error) {
	if len(r.Address) != domain.IdentityLength || len(r.Owner) != domain.IdentityLength {
		return nil, domain.ErrCorruptRecord
	}
	a := &domain.BankAccount{
		Name:    r.Name,
		Balance: r.Balance,
		Space:   r.Space,
	}
	copy(a.Address[:], r.Address)
	copy(a.Owner[:], r.Owner)
	if domain.DeriveAddress(a.Owner) != a.Address {
		return nil, fmt.Errorf("%w: address does not match owner", domain.ErrCorruptRecord)
	}
	return a, nil
}

// AccountStore 以 MySQL (GORM) 保存帳戶
type AccountStore struct {
	client *mysql.Client
}

func NewAccountStore(client *mysql.Client) *AccountStore {
	return &AccountStore{
		client: client,
	}
}

// Migrate 建立資料表
func (s *AccountStore) Migrate(ctx context.Context) error {
	return s.client.DB().WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlAppliedOperation{})
}

// Create 新增帳戶，主鍵衝突視為已存在
func (s *AccountStore) Create(ctx context.Context, account *domain.BankAccount, refID uuid.UUID) error {
	return s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Create(toSQLAccount(account)).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAccountAlreadyExists
		}
		if err != nil {
			return err
		}
		return recordApplied(tx, refID, account.Address)
	})
}

// Get 取得帳戶
func (s *AccountStore) Get(ctx context.Context, address domain.Address) (*domain.BankAccount, error) {
	var row sqlAccount
	err := s.client.DB().WithContext(ctx).Where("address = ?", address[:]).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return row.toDomain()
}

// Update 只更新餘額，name / owner / space 建立後不可變
func (s *AccountStore) Update(ctx context.Context, account *domain.BankAccount, refID uuid.UUID) error {
	return s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&sqlAccount{}).
			Where("address = ?", account.Address[:]).
			Update("balance", account.Balance)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// MySQL 在值沒變時回報 0 rows，再確認一次是否存在
			var count int64
			if err := tx.Model(&sqlAccount{}).
				Where("address = ?", account.Address[:]).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrAccountNotFound
			}
		}
		return recordApplied(tx, refID, account.Address)
	})
}

// List 依位址排序列出所有帳戶
func (s *AccountStore) List(ctx context.Context) ([]*domain.BankAccount, error) {
	var rows []sqlAccount
	if err := s.client.DB().WithContext(ctx).Order("address").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.BankAccount, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// AppliedRefs 讀出所有已套用操作
func (s *AccountStore) AppliedRefs(ctx context.Context) (map[uuid.UUID]domain.Address, error) {
	var rows []sqlAppliedOperation
	if err := s.client.DB().WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]domain.Address, len(rows))
	for i := range rows {
		refID, err := uuid.FromBytes(rows[i].RefID)
		if err != nil || len(rows[i].Address) != domain.IdentityLength {
			return nil, fmt.Errorf("%w: applied operation %x", domain.ErrCorruptRecord, rows[i].RefID)
		}
		var address domain.Address
		copy(address[:], rows[i].Address)
		out[refID] = address
	}
	return out, nil
}

var _ usecase.AccountStore = (*AccountStore)(nil)
