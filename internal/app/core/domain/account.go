package domain

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/sha3"
)

const (
	// AccountSpace 建立帳戶時配置的固定空間 (bytes)
	AccountSpace = 256

	discriminatorLength = 8
	nameLenLength       = 4
	balanceLength       = 8

	// NameCapacity 名稱可用的最大 bytes
	NameCapacity = AccountSpace - discriminatorLength - nameLenLength - balanceLength - IdentityLength
)

// accountDiscriminator 紀錄開頭的型別標記，用來辨識資料是不是 BankAccount
var accountDiscriminator = func() [discriminatorLength]byte {
	var d [discriminatorLength]byte
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("account:BankAccount"))
	copy(d[:], h.Sum(nil))
	return d
}()

// BankAccount 銀行帳戶紀錄
type BankAccount struct {
	// Balance: 帳面餘額 (不含保留金)
	Balance uint64
	// Space: 建立時配置的儲存空間，之後不變
	Space uint64
	// Address: 紀錄的儲存位置，由 Owner 推導
	Address Address
	// Owner: 建立者，唯一可以提款的身分
	Owner Identity
	// Name: 顯示名稱，不檢查唯一性
	Name string
}

// NewBankAccount 建立餘額為 0 的新帳戶
func NewBankAccount(owner Identity, name string) (*BankAccount, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &BankAccount{
		Address: DeriveAddress(owner),
		Owner:   owner,
		Name:    name,
		Space:   AccountSpace,
	}, nil
}

// ValidateName 名稱超過固定空間直接拒絕，不做截斷；非 UTF-8 回傳 ErrInvalidName
func ValidateName(name string) error {
	if len(name) > NameCapacity {
		return fmt.Errorf("%w: %d bytes, capacity %d", ErrNameTooLong, len(name), NameCapacity)
	}
	if !utf8.ValidString(name) {
		return ErrInvalidName
	}
	return nil
}

// Clone 回傳複本，避免呼叫端直接改到 store 內的資料
func (a *BankAccount) Clone() *BankAccount {
	c := *a
	return &c
}

// EncodeAccount 將帳戶序列化成固定長度的 layout
//
//	[0:8]      discriminator
//	[8:12]     name length (LE)
//	[12:12+n]  name
//	[+8]       balance (LE)
//	[+32]      owner
//
// 剩餘空間補 0
func EncodeAccount(a *BankAccount) ([]byte, error) {
	if err := ValidateName(a.Name); err != nil {
		return nil, err
	}
	space := a.Space
	if space == 0 {
		space = AccountSpace
	}
	need := uint64(discriminatorLength + nameLenLength + len(a.Name) + balanceLength + IdentityLength)
	if need > space {
		return nil, fmt.Errorf("%w: record needs %d bytes, space %d", ErrNameTooLong, need, space)
	}

	buf := make([]byte, space)
	off := copy(buf, accountDiscriminator[:])
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(a.Name)))
	off += nameLenLength
	off += copy(buf[off:], a.Name)
	binary.LittleEndian.PutUint64(buf[off:], a.Balance)
	off += balanceLength
	copy(buf[off:], a.Owner[:])
	return buf, nil
}

// DecodeAccount 反序列化 EncodeAccount 的結果，Address 由 Owner 重新推導
func DecodeAccount(data []byte) (*BankAccount, error) {
	if len(data) < discriminatorLength+nameLenLength+balanceLength+IdentityLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptRecord, len(data))
	}
	if [discriminatorLength]byte(data[:discriminatorLength]) != accountDiscriminator {
		return nil, fmt.Errorf("%w: bad discriminator", ErrCorruptRecord)
	}
	off := discriminatorLength
	nameLen := int(binary.LittleEndian.Uint32(data[off:]))
	off += nameLenLength
	if nameLen > len(data)-off-balanceLength-IdentityLength {
		return nil, fmt.Errorf("%w: name length %d", ErrCorruptRecord, nameLen)
	}
	name := string(data[off : off+nameLen])
	off += nameLen
	balance := binary.LittleEndian.Uint64(data[off:])
	off += balanceLength
	var owner Identity
	copy(owner[:], data[off:off+IdentityLength])

	return &BankAccount{
		Address: DeriveAddress(owner),
		Owner:   owner,
		Name:    name,
		Balance: balance,
		Space:   uint64(len(data)),
	}, nil
}
