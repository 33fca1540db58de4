package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
)

// ErrStopped 核心已停止，不再接受操作
var ErrStopped = errors.New("bank core stopped")

// operationRequest 操作請求包裝 channel，讓 Submit 可以等待結果
type operationRequest struct {
	Tx     *domain.Transaction
	Result chan operationResult // 讓 Submit 等這個 channel
}

type operationResult struct {
	Account *domain.BankAccount
	Err     error
}

// BankUseCase 是核心業務邏輯層
//
// 所有修改操作都送進同一條輸送帶，由單一 goroutine 依序執行，
// 因此同一筆紀錄永遠不會同時被兩個操作修改。
type BankUseCase struct {
	engine    *Engine
	store     AccountStore
	publisher EventPublisher
	logger    *zap.Logger

	// 輸送帶 負責接收操作
	requests chan *operationRequest
	// Pool 減少 GC 壓力
	requestPool sync.Pool
	// 已處理過的操作 -> 目標帳戶
	processed map[uuid.UUID]domain.Address
	sequence  uint64
	done      chan struct{}
	now       func() time.Time
}

// NewBankUseCase 建立一個新的 BankUseCase 實例，需呼叫 Start 才會開始處理
func NewBankUseCase(engine *Engine, store AccountStore, publisher EventPublisher, logger *zap.Logger) *BankUseCase {
	if publisher == nil {
		publisher = NopPublisher
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BankUseCase{
		engine:    engine,
		store:     store,
		publisher: publisher,
		logger:    logger,
		requests:  make(chan *operationRequest, 1000), // Buffer 1000
		requestPool: sync.Pool{
			New: func() interface{} {
				return &operationRequest{
					Result: make(chan operationResult, 1),
				}
			},
		},
		processed: make(map[uuid.UUID]domain.Address),
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

// Start 從 store 重建冪等紀錄後啟動核心引擎 (非同步)，
// ctx 取消後會把剩下的操作處理完再結束
func (c *BankUseCase) Start(ctx context.Context) error {
	applied, err := c.store.AppliedRefs(ctx)
	if err != nil {
		return fmt.Errorf("recover applied operations: %w", err)
	}
	for refID, addr := range applied {
		c.processed[refID] = addr
	}
	c.logger.Info("bank core started", zap.Int("applied_operations", len(applied)))
	go c.run(ctx)
	return nil
}

// Done 核心停止後關閉
func (c *BankUseCase) Done() <-chan struct{} {
	return c.done
}

func (c *BankUseCase) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			// 收到關閉信號，把剩下的操作處理完
			c.drain()
			return
		case req := <-c.requests:
			c.process(req)
		}
	}
}

func (c *BankUseCase) drain() {
	for {
		select {
		case req := <-c.requests:
			c.process(req)
		default:
			return
		}
	}
}

// Submit 送出一筆操作並等待結果
//
// 參數:
//
//	ctx: 上下文 (只控制等待，不會中斷已開始執行的操作)
//	tran: 操作
//
// 回傳:
//
//	*domain.BankAccount: 操作後的帳戶狀態
//	error: 處理錯誤
func (c *BankUseCase) Submit(ctx context.Context, tran *domain.Transaction) (*domain.BankAccount, error) {
	req := c.requestPool.Get().(*operationRequest)
	req.Tx = tran
	// 清空 Channel
	select {
	case <-req.Result:
	default:
	}

	select {
	case <-c.done:
		c.requestPool.Put(req)
		return nil, ErrStopped
	default:
	}

	select {
	case c.requests <- req:
	case <-c.done:
		c.requestPool.Put(req)
		return nil, ErrStopped
	case <-ctx.Done():
		c.requestPool.Put(req)
		return nil, ctx.Err()
	}

	select {
	case res := <-req.Result:
		c.requestPool.Put(req)
		return res.Account, res.Err
	case <-c.done:
		// run 結束前已寫入的結果一定看得到
		select {
		case res := <-req.Result:
			c.requestPool.Put(req)
			return res.Account, res.Err
		default:
			return nil, ErrStopped
		}
	case <-ctx.Done():
		// 結果還沒回來，req 仍在輸送帶上，不能放回 Pool
		return nil, ctx.Err()
	}
}

// process 處理單筆操作並回傳結果
func (c *BankUseCase) process(req *operationRequest) {
	tran := req.Tx
	ctx := context.Background()

	// 0. 冪等檢查
	if addr, ok := c.processed[tran.TransactionID]; ok {
		account, err := c.store.Get(ctx, addr)
		req.Result <- operationResult{Account: account, Err: err}
		return
	}

	c.sequence++
	tran.Sequence = c.sequence
	tran.CreatedAt = c.now().UnixNano()

	// 1. 執行業務邏輯
	var (
		account *domain.BankAccount
		err     error
	)
	switch tran.Type {
	case domain.TransactionTypeCreate:
		account, err = c.engine.Create(ctx, tran.TransactionID, tran.Signer, tran.Name)
	case domain.TransactionTypeDeposit:
		account, err = c.engine.Deposit(ctx, tran.TransactionID, tran.Account, tran.Signer, tran.Amount)
	case domain.TransactionTypeWithdraw:
		account, err = c.engine.Withdraw(ctx, tran.TransactionID, tran.Account, tran.Signer, tran.Amount)
	default:
		err = domain.ErrUnknownOperation
	}

	log := c.logger.With(
		zap.String("ref_id", tran.TransactionID.String()),
		zap.Uint64("sequence", tran.Sequence),
		zap.Stringer("type", tran.Type),
		zap.Stringer("account", tran.Account),
	)
	if err != nil {
		log.Info("operation rejected", zap.Error(err))
		req.Result <- operationResult{Err: err}
		return
	}

	// 2. 更新冪等紀錄 (store 已經跟著紀錄一起落地)
	c.processed[tran.TransactionID] = account.Address
	log.Info("operation applied", zap.Uint64("balance", account.Balance))

	// 3. 發布事件 (失敗不影響已完成的操作)
	if err := c.publisher.Publish(ctx, tran, account); err != nil {
		log.Warn("publish event failed", zap.Error(err))
	}

	// 4. 回傳結果
	req.Result <- operationResult{Account: account}
}

// CreateAccount 開戶
func (c *BankUseCase) CreateAccount(ctx context.Context, refID uuid.UUID, owner domain.Identity, name string) (*domain.BankAccount, error) {
	return c.Submit(ctx, domain.NewCreateTransaction(refID, owner, name))
}

// Deposit 存款 (不需要授權)
func (c *BankUseCase) Deposit(ctx context.Context, refID uuid.UUID, account domain.Address, depositor domain.Identity, amount uint64) (*domain.BankAccount, error) {
	return c.Submit(ctx, domain.NewDepositTransaction(refID, account, depositor, amount))
}

// Withdraw 提款 (caller 必須是 owner)
func (c *BankUseCase) Withdraw(ctx context.Context, refID uuid.UUID, account domain.Address, caller domain.Identity, amount uint64) (*domain.BankAccount, error) {
	return c.Submit(ctx, domain.NewWithdrawTransaction(refID, account, caller, amount))
}

// GetAccount 取得帳戶
func (c *BankUseCase) GetAccount(ctx context.Context, address domain.Address) (*domain.BankAccount, error) {
	return c.store.Get(ctx, address)
}

// GetAccountByOwner 依 owner 推導位址後取得帳戶
func (c *BankUseCase) GetAccountByOwner(ctx context.Context, owner domain.Identity) (*domain.BankAccount, error) {
	return c.store.Get(ctx, domain.DeriveAddress(owner))
}

// ListAccounts 列出所有帳戶
func (c *BankUseCase) ListAccounts(ctx context.Context) ([]*domain.BankAccount, error) {
	return c.store.List(ctx)
}
