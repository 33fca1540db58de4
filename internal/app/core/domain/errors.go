package domain

import "errors"

var (
	// ErrAccountAlreadyExists 帳戶已存在 (同一個 owner 推導出的位址已被佔用)
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrAllocationFailed 建立者無法支付帳戶的保留金
	ErrAllocationFailed = errors.New("account allocation failed")

	// ErrNotOwner 呼叫者不是帳戶擁有者
	ErrNotOwner = errors.New("caller is not the account owner")

	// ErrInsufficientFunds 提款會跌破保留金
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransferFailed 外部價值移轉被拒絕
	ErrTransferFailed = errors.New("value transfer failed")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAmount 金額必須大於 0
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrNameTooLong 名稱超過配置空間
	ErrNameTooLong = errors.New("account name exceeds capacity")

	// ErrInvalidName 名稱不是合法的 UTF-8
	ErrInvalidName = errors.New("account name is not valid utf-8")

	// ErrBalanceOverflow 餘額溢位
	ErrBalanceOverflow = errors.New("balance overflow")

	// ErrInsufficientValue 價值來源不足 (Transfer Primitive 回報)
	ErrInsufficientValue = errors.New("insufficient value")

	// ErrSelfTransfer 來源與目的相同的價值移轉
	ErrSelfTransfer = errors.New("value transfer to the same holder")

	// ErrInvalidSignature 簽章驗證失敗
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidIdentity 身分/位址格式錯誤
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrCorruptRecord 紀錄資料損毀
	ErrCorruptRecord = errors.New("corrupt account record")

	// ErrWALWriteFailed 寫入 WAL 失敗
	ErrWALWriteFailed = errors.New("wal write failed")
)

// ErrUnknownOperation 不支援的操作類型
var ErrUnknownOperation = errors.New("unknown operation type")
