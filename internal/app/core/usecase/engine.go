package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
)

// Engine 是帳戶的狀態轉移引擎
//
// 每個操作假設在同一筆紀錄上是序列化執行的 (由 BankUseCase 保證)。
// 所有操作都遵守同一個順序：先檢查、再移轉價值、最後才更新帳面餘額，
// 任何一步失敗都不會留下部分修改。
type Engine struct {
	store   AccountStore
	values  ValueLedger
	reserve ReserveCalculator
	logger  *zap.Logger
}

// NewEngine 建立引擎
func NewEngine(store AccountStore, values ValueLedger, reserve ReserveCalculator, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   store,
		values:  values,
		reserve: reserve,
		logger:  logger,
	}
}

// IsAuthorized 只有紀錄上的 owner 可以提款
func IsAuthorized(account *domain.BankAccount, caller domain.Identity) bool {
	return account.Owner == caller
}

// Create 開戶
//
// 參數:
//
//	refID: 操作的外部追蹤號，與紀錄一起寫入 store
//	owner: 建立者，同時支付紀錄的保留金
//	name: 顯示名稱
//
// 回傳:
//
//	*domain.BankAccount: 新帳戶 (balance = 0)
//	error: ErrNameTooLong / ErrAccountAlreadyExists / ErrAllocationFailed
func (e *Engine) Create(ctx context.Context, refID uuid.UUID, owner domain.Identity, name string) (*domain.BankAccount, error) {
	account, err := domain.NewBankAccount(owner, name)
	if err != nil {
		return nil, err
	}

	_, err = e.store.Get(ctx, account.Address)
	if err == nil {
		return nil, domain.ErrAccountAlreadyExists
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	reserve, err := e.reserve.MinimumBalance(ctx, account.Space)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAllocationFailed, err)
	}
	if err := e.values.Move(ctx, owner.Address(), account.Address, reserve); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAllocationFailed, err)
	}

	if err := e.store.Create(ctx, account, refID); err != nil {
		e.compensate(ctx, account.Address, owner.Address(), reserve)
		return nil, err
	}
	return account.Clone(), nil
}

// Deposit 存款，任何身分都可以存入任何帳戶
//
// 參數:
//
//	refID: 操作的外部追蹤號
//	address: 帳戶位址
//	depositor: 存款人
//	amount: 金額
//
// 回傳:
//
//	*domain.BankAccount: 更新後的帳戶
//	error: ErrInvalidAmount / ErrAccountNotFound / ErrBalanceOverflow / ErrTransferFailed
func (e *Engine) Deposit(ctx context.Context, refID uuid.UUID, address domain.Address, depositor domain.Identity, amount uint64) (*domain.BankAccount, error) {
	if amount == 0 {
		return nil, domain.ErrInvalidAmount
	}
	account, err := e.store.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	if account.Balance > math.MaxUint64-amount {
		return nil, domain.ErrBalanceOverflow
	}

	// 1. 先移轉價值
	if err := e.values.Move(ctx, depositor.Address(), account.Address, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}

	// 2. 成功後才更新帳面
	account.Balance += amount
	if err := e.store.Update(ctx, account, refID); err != nil {
		e.compensate(ctx, account.Address, depositor.Address(), amount)
		return nil, err
	}
	return account, nil
}

// Withdraw 提款，只有 owner 可以呼叫
//
// 參數:
//
//	refID: 操作的外部追蹤號
//	address: 帳戶位址
//	caller: 呼叫者，必須是 owner
//	amount: 金額
//
// 回傳:
//
//	*domain.BankAccount: 更新後的帳戶
//	error: ErrAccountNotFound / ErrNotOwner / ErrInvalidAmount / ErrInsufficientFunds / ErrTransferFailed
func (e *Engine) Withdraw(ctx context.Context, refID uuid.UUID, address domain.Address, caller domain.Identity, amount uint64) (*domain.BankAccount, error) {
	account, err := e.store.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	// 權限檢查一定在任何價值移動之前
	if !IsAuthorized(account, caller) {
		return nil, domain.ErrNotOwner
	}
	if amount == 0 {
		return nil, domain.ErrInvalidAmount
	}

	// 保留金每次都重新查詢，費率可能在開戶後改變
	reserve, err := e.reserve.MinimumBalance(ctx, account.Space)
	if err != nil {
		return nil, err
	}
	backing, err := e.values.BackingValue(ctx, account.Address)
	if err != nil {
		return nil, err
	}
	var available uint64
	if backing > reserve {
		available = backing - reserve
	}
	if available < amount || account.Balance < amount {
		return nil, domain.ErrInsufficientFunds
	}

	if err := e.values.Move(ctx, account.Address, caller.Address(), amount); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}

	account.Balance -= amount
	if err := e.store.Update(ctx, account, refID); err != nil {
		e.compensate(ctx, caller.Address(), account.Address, amount)
		return nil, err
	}
	return account, nil
}

// compensate 帳面寫入失敗時把已經移轉的價值退回
func (e *Engine) compensate(ctx context.Context, from, to domain.Address, amount uint64) {
	if err := e.values.Move(ctx, from, to, amount); err != nil {
		e.logger.Error("compensating transfer failed, value and balance out of sync",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
			zap.Uint64("amount", amount),
			zap.Error(err),
		)
	}
}
