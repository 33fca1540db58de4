package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/usecase"
	"github.com/JoeShih716/go-custody-bank/pkg/wal"
)

type valueOp uint8

const (
	valueOpMove valueOp = 1
	valueOpMint valueOp = 2
)

// valueEntry 寫入 WAL 的價值異動
// Once 標記這筆 mint 只能對同一 holder 發生一次
type valueEntry struct {
	Op     valueOp        `json:"op"`
	From   domain.Address `json:"from"`
	To     domain.Address `json:"to"`
	Amount uint64         `json:"amount"`
	Once   bool           `json:"once,omitempty"`
}

// ValuePool 記憶體中的價值帳本 (Transfer Primitive 的實作)
// 每次 Move 都在同一把鎖內完成檢查與扣加，因此是全有或全無
type ValuePool struct {
	mu       sync.RWMutex
	holdings map[domain.Address]uint64
	minted   map[domain.Address]bool
	wal      *wal.WAL
}

// NewValuePool 建立價值帳本，wal 可為 nil
func NewValuePool(wal *wal.WAL) (*ValuePool, error) {
	p := &ValuePool{
		holdings: make(map[domain.Address]uint64),
		minted:   make(map[domain.Address]bool),
		wal:      wal,
	}
	if wal == nil {
		return p, nil
	}
	err := wal.ReadAll(func(jsonRaw []byte) error {
		var entry valueEntry
		if err := json.Unmarshal(jsonRaw, &entry); err != nil {
			return err
		}
		return p.apply(entry)
	})
	if err != nil {
		return nil, fmt.Errorf("recover value pool: %w", err)
	}
	return p, nil
}

// apply 套用一筆異動，呼叫端須持有鎖
func (p *ValuePool) apply(entry valueEntry) error {
	switch entry.Op {
	case valueOpMint:
		if p.holdings[entry.To] > math.MaxUint64-entry.Amount {
			return domain.ErrBalanceOverflow
		}
		p.holdings[entry.To] += entry.Amount
		if entry.Once {
			p.minted[entry.To] = true
		}
	case valueOpMove:
		if entry.From == entry.To {
			return domain.ErrSelfTransfer
		}
		if p.holdings[entry.From] < entry.Amount {
			return domain.ErrInsufficientValue
		}
		if p.holdings[entry.To] > math.MaxUint64-entry.Amount {
			return domain.ErrBalanceOverflow
		}
		p.holdings[entry.From] -= entry.Amount
		p.holdings[entry.To] += entry.Amount
	default:
		return fmt.Errorf("unknown value op %d", entry.Op)
	}
	return nil
}

// check 與 apply 相同的檢查，但不修改
func (p *ValuePool) check(entry valueEntry) error {
	switch entry.Op {
	case valueOpMint:
		if p.holdings[entry.To] > math.MaxUint64-entry.Amount {
			return domain.ErrBalanceOverflow
		}
	case valueOpMove:
		if entry.From == entry.To {
			return domain.ErrSelfTransfer
		}
		if p.holdings[entry.From] < entry.Amount {
			return domain.ErrInsufficientValue
		}
		if p.holdings[entry.To] > math.MaxUint64-entry.Amount {
			return domain.ErrBalanceOverflow
		}
	}
	return nil
}

// commit 檢查 -> 寫 WAL -> 套用
func (p *ValuePool) commit(entry valueEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commitLocked(entry)
}

func (p *ValuePool) commitLocked(entry valueEntry) error {
	if err := p.check(entry); err != nil {
		return err
	}
	if p.wal != nil {
		if err := p.wal.Append(entry); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrWALWriteFailed, err)
		}
	}
	return p.apply(entry)
}

// Move 原子地移轉價值，from 與 to 相同時回傳 ErrSelfTransfer
func (p *ValuePool) Move(ctx context.Context, from, to domain.Address, amount uint64) error {
	return p.commit(valueEntry{Op: valueOpMove, From: from, To: to, Amount: amount})
}

// Mint 憑空增加 holder 的價值 (genesis / 測試用)
func (p *ValuePool) Mint(ctx context.Context, holder domain.Address, amount uint64) error {
	return p.commit(valueEntry{Op: valueOpMint, To: holder, Amount: amount})
}

// MintOnce 與 Mint 相同，但同一 holder 只會成功一次 (重啟後依然成立)
//
// 回傳:
//
//	bool: 這次是否真的 mint
//	error: 寫入錯誤
func (p *ValuePool) MintOnce(ctx context.Context, holder domain.Address, amount uint64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.minted[holder] {
		return false, nil
	}
	if err := p.commitLocked(valueEntry{Op: valueOpMint, To: holder, Amount: amount, Once: true}); err != nil {
		return false, err
	}
	return true, nil
}

// BackingValue 目前持有的價值
func (p *ValuePool) BackingValue(ctx context.Context, holder domain.Address) (uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.holdings[holder], nil
}

// Total 所有持有者價值總和 (用於守恆檢查)
func (p *ValuePool) Total() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var total uint64
	for _, v := range p.holdings {
		total += v
	}
	return total
}

var _ usecase.ValueLedger = (*ValuePool)(nil)
