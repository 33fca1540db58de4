// Package proto 定義 bank.BankService 的訊息與服務描述
//
// 訊息以 JSON codec (content-subtype "json") 傳輸，身分與位址都是 64 字元 hex 字串。
// 修改類請求的 Signature 是身分 (ed25519 公鑰) 對操作摘要的 128 字元 hex 簽章。
package proto

type CreateAccountRequest struct {
	RefId     string `json:"ref_id"`
	Owner     string `json:"owner"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
}

type DepositRequest struct {
	RefId     string `json:"ref_id"`
	Account   string `json:"account"`
	Depositor string `json:"depositor"`
	Amount    uint64 `json:"amount"`
	Signature string `json:"signature"`
}

type WithdrawRequest struct {
	RefId     string `json:"ref_id"`
	Account   string `json:"account"`
	Caller    string `json:"caller"`
	Amount    uint64 `json:"amount"`
	Signature string `json:"signature"`
}

// GetAccountRequest Account 與 Owner 擇一
type GetAccountRequest struct {
	Account string `json:"account,omitempty"`
	Owner   string `json:"owner,omitempty"`
}

type ListAccountsRequest struct{}

type Account struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Name    string `json:"name"`
	Balance uint64 `json:"balance"`
	Space   uint64 `json:"space"`
}

type AccountResponse struct {
	Account *Account `json:"account"`
}

type ListAccountsResponse struct {
	Accounts []*Account `json:"accounts"`
}

func (x *AccountResponse) GetAccount() *Account {
	if x != nil {
		return x.Account
	}
	return nil
}

func (x *Account) GetBalance() uint64 {
	if x != nil {
		return x.Balance
	}
	return 0
}
