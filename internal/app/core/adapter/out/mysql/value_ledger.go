package mysql

import (
	"context"
	"errors"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/usecase"
	"github.com/JoeShih716/go-custody-bank/pkg/mysql"
)

// sqlHolder 對應資料庫的 value_holders 表
type sqlHolder struct {
	Address   []byte `gorm:"primaryKey;type:binary(32)"`
	Value     uint64 `gorm:"type:bigint unsigned"`
	UpdatedAt int64  `gorm:"autoUpdateTime:milli"`
}

func (*sqlHolder) TableName() string {
	return "value_holders"
}

// sqlGenesisMint 對應 genesis_mints 表，每個 holder 最多一筆
type sqlGenesisMint struct {
	Holder    []byte `gorm:"primaryKey;type:binary(32)"`
	Amount    uint64 `gorm:"type:bigint unsigned"`
	CreatedAt int64  `gorm:"autoCreateTime:milli"`
}

func (*sqlGenesisMint) TableName() string {
	return "genesis_mints"
}

// errAlreadyMinted 讓 MintOnce 的交易回滾
var errAlreadyMinted = errors.New("genesis already minted")

// ValueLedger 以 MySQL 交易實作的價值移轉
type ValueLedger struct {
	client *mysql.Client
}

func NewValueLedger(client *mysql.Client) *ValueLedger {
	return &ValueLedger{
		client: client,
	}
}

// Migrate 建立資料表
func (l *ValueLedger) Migrate(ctx context.Context) error {
	return l.client.DB().WithContext(ctx).AutoMigrate(&sqlHolder{}, &sqlGenesisMint{})
}

// lockHolders 依排序後的位址取得悲觀鎖，不存在的 holder 以 0 建立
func lockHolders(tx *gorm.DB, ids []domain.Address) (map[domain.Address]*sqlHolder, error) {
	keys := make([][]byte, 0, len(ids))
	for i := range ids {
		keys = append(keys, ids[i][:])
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&sqlHolder{Address: ids[i][:]}).Error; err != nil {
			return nil, err
		}
	}

	var rows []sqlHolder
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address IN ?", keys).
		Order("address").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	holders := make(map[domain.Address]*sqlHolder, len(rows))
	for i := range rows {
		var addr domain.Address
		copy(addr[:], rows[i].Address)
		holders[addr] = &rows[i]
	}
	return holders, nil
}

// Move 在單一 DB 交易內扣款與入帳，from 與 to 相同時回傳 ErrSelfTransfer
func (l *ValueLedger) Move(ctx context.Context, from, to domain.Address, amount uint64) error {
	if from == to {
		return domain.ErrSelfTransfer
	}
	return l.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 取得鎖定帳號 以及lockID 悲觀鎖
		holders, err := lockHolders(tx, domain.LockAddresses(from, to))
		if err != nil {
			return err
		}
		src, dst := holders[from], holders[to]
		if src == nil || dst == nil {
			return errors.New("value holder missing after lock")
		}
		if src.Value < amount {
			return domain.ErrInsufficientValue
		}
		if dst.Value > math.MaxUint64-amount {
			return domain.ErrBalanceOverflow
		}
		src.Value -= amount
		dst.Value += amount
		if err := tx.Save(src).Error; err != nil {
			return err
		}
		return tx.Save(dst).Error
	})
}

// Mint 憑空增加 holder 的價值 (genesis 用)
func (l *ValueLedger) Mint(ctx context.Context, holder domain.Address, amount uint64) error {
	return l.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return mintLocked(tx, holder, amount)
	})
}

func mintLocked(tx *gorm.DB, holder domain.Address, amount uint64) error {
	holders, err := lockHolders(tx, []domain.Address{holder})
	if err != nil {
		return err
	}
	h := holders[holder]
	if h == nil {
		return errors.New("value holder missing after lock")
	}
	if h.Value > math.MaxUint64-amount {
		return domain.ErrBalanceOverflow
	}
	h.Value += amount
	return tx.Save(h).Error
}

// MintOnce 與 Mint 相同，但 genesis_mints 已有 holder 時不做任何事
//
// 回傳:
//
//	bool: 這次是否真的 mint
//	error: 資料庫錯誤
func (l *ValueLedger) MintOnce(ctx context.Context, holder domain.Address, amount uint64) (bool, error) {
	err := l.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Create(&sqlGenesisMint{Holder: holder[:], Amount: amount}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errAlreadyMinted
		}
		if err != nil {
			return err
		}
		return mintLocked(tx, holder, amount)
	})
	if errors.Is(err, errAlreadyMinted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// BackingValue 目前持有的價值，不存在的 holder 為 0
func (l *ValueLedger) BackingValue(ctx context.Context, holder domain.Address) (uint64, error) {
	var row sqlHolder
	err := l.client.DB().WithContext(ctx).Where("address = ?", holder[:]).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.Value, nil
}

var _ usecase.ValueLedger = (*ValueLedger)(nil)
