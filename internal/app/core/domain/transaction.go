package domain

import (
	"bytes"

	"github.com/google/uuid"
)

// TransactionType 操作類型
// 為了節省記憶體，使用 uint8
type TransactionType uint8

const (
	// 開戶
	TransactionTypeCreate TransactionType = 1
	// 存款
	TransactionTypeDeposit TransactionType = 2
	// 提款
	TransactionTypeWithdraw TransactionType = 3
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeCreate:
		return "create"
	case TransactionTypeDeposit:
		return "deposit"
	case TransactionTypeWithdraw:
		return "withdraw"
	default:
		return "unknown"
	}
}

// Transaction 對單一帳戶的一次操作 注意欄位排序以避免 Padding
type Transaction struct {
	// Sequence: 全局唯一的順序號 (由核心引擎分配，1, 2, 3...)
	Sequence uint64
	// Amount: 金額 (Create 不使用)
	Amount uint64
	// CreatedAt: 操作時間 (UnixNano)
	CreatedAt int64
	// TransactionID: 外部追蹤號 (UUID)，用於冪等
	TransactionID uuid.UUID
	// Account: 目標帳戶位址 (Create 時由 Signer 推導)
	Account Address
	// Signer: Create 為 owner，Deposit 為存款人，Withdraw 為呼叫者
	Signer Identity
	// Name: 只有 Create 使用
	Name string
	// Type: 放到最後面，利用 Padding 空間
	Type TransactionType
}

// NewCreateTransaction 開戶操作
func NewCreateTransaction(refID uuid.UUID, owner Identity, name string) *Transaction {
	return &Transaction{
		TransactionID: refID,
		Account:       DeriveAddress(owner),
		Signer:        owner,
		Name:          name,
		Type:          TransactionTypeCreate,
	}
}

// NewDepositTransaction 存款操作
func NewDepositTransaction(refID uuid.UUID, account Address, depositor Identity, amount uint64) *Transaction {
	return &Transaction{
		TransactionID: refID,
		Account:       account,
		Signer:        depositor,
		Amount:        amount,
		Type:          TransactionTypeDeposit,
	}
}

// NewWithdrawTransaction 提款操作
func NewWithdrawTransaction(refID uuid.UUID, account Address, caller Identity, amount uint64) *Transaction {
	return &Transaction{
		TransactionID: refID,
		Account:       account,
		Signer:        caller,
		Amount:        amount,
		Type:          TransactionTypeWithdraw,
	}
}

// LockAddresses 回傳一次價值移轉需要鎖定的位址，並確保順序以避免死鎖
func LockAddresses(from, to Address) []Address {
	ids := make([]Address, 0, 2)
	switch c := bytes.Compare(from[:], to[:]); {
	case c == 0:
		ids = append(ids, from)
	case c < 0:
		ids = append(ids, from, to)
	default:
		ids = append(ids, to, from)
	}
	return ids
}
