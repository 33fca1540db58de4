package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
)

// AccountStore 是帳戶紀錄的持久化介面
// Get 回傳的是複本，修改後必須透過 Update 寫回
//
// Create / Update 的 refID 與紀錄在同一次寫入中落地 (uuid.Nil 表示不記錄)，
// 重啟後由 AppliedRefs 重建冪等紀錄。
type AccountStore interface {
	// Create 新增紀錄，位址已被佔用回傳 domain.ErrAccountAlreadyExists
	Create(ctx context.Context, account *domain.BankAccount, refID uuid.UUID) error
	// Get 取得紀錄，不存在回傳 domain.ErrAccountNotFound
	Get(ctx context.Context, address domain.Address) (*domain.BankAccount, error)
	// Update 覆寫既有紀錄
	Update(ctx context.Context, account *domain.BankAccount, refID uuid.UUID) error
	// List 列出所有紀錄
	List(ctx context.Context) ([]*domain.BankAccount, error)
	// AppliedRefs 所有已套用操作的 ref id -> 帳戶位址
	AppliedRefs(ctx context.Context) (map[uuid.UUID]domain.Address, error)
}

// ValueLedger 是價值移轉的外部服務 (Transfer Primitive)
// Move 必須是全有或全無，且結果對後續呼叫立即可見
type ValueLedger interface {
	// Move 從 from 移轉 amount 到 to，來源不足回傳 domain.ErrInsufficientValue，
	// from == to 回傳 domain.ErrSelfTransfer
	Move(ctx context.Context, from, to domain.Address, amount uint64) error
	// BackingValue 目前 holder 持有的價值
	BackingValue(ctx context.Context, holder domain.Address) (uint64, error)
}

// EventPublisher 發布成功操作的事件
type EventPublisher interface {
	Publish(ctx context.Context, tran *domain.Transaction, account *domain.BankAccount) error
}

// ReserveCalculator 計算紀錄維持有效所需的最低保留金
type ReserveCalculator interface {
	MinimumBalance(ctx context.Context, dataLen uint64) (uint64, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, *domain.Transaction, *domain.BankAccount) error {
	return nil
}

// NopPublisher 不發布任何事件
var NopPublisher EventPublisher = nopPublisher{}
