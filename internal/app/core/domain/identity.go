package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// IdentityLength 身分與位址的位元組長度
const IdentityLength = 32

const (
	// addressSeed 帳戶紀錄位址推導用的種子前綴
	addressSeed = "bank/user"
	// holderSeed 身分錢包位址推導用的種子前綴，與 addressSeed 分開
	// 讓帳戶紀錄與身分錢包永遠落在不同的位址
	holderSeed = "bank/holder"
)

// Identity 帳戶擁有者 / 呼叫者的身分 (ed25519 公鑰)
type Identity [IdentityLength]byte

// Address 價值持有者的位址 (帳戶紀錄的儲存位置，或身分的錢包)
type Address [IdentityLength]byte

// ParseIdentity 解析 64 字元 hex 字串 (可帶 0x 前綴)
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	raw, err := decodeHex32(s)
	if err != nil {
		return id, err
	}
	copy(id[:], raw)
	return id, nil
}

// ParseAddress 解析 64 字元 hex 字串 (可帶 0x 前綴)
func ParseAddress(s string) (Address, error) {
	var addr Address
	raw, err := decodeHex32(s)
	if err != nil {
		return addr, err
	}
	copy(addr[:], raw)
	return addr, nil
}

func decodeHex32(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if len(raw) != IdentityLength {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidIdentity, IdentityLength, len(raw))
	}
	return raw, nil
}

// String 回傳 hex 編碼
func (id Identity) String() string { return hex.EncodeToString(id[:]) }

// IsZero 是否為空身分
func (id Identity) IsZero() bool { return id == Identity{} }

// Address 身分錢包的位址，由 holderSeed 推導
func (id Identity) Address() Address { return keccakAddress(holderSeed, id) }

// String 回傳 hex 編碼
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// DeriveAddress 由擁有者身分推導帳戶紀錄的位址
// 同一個 owner 永遠得到同一個位址，因此每個 owner 最多一個帳戶
func DeriveAddress(owner Identity) Address { return keccakAddress(addressSeed, owner) }

func keccakAddress(seed string, id Identity) Address {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(seed))
	h.Write(id[:])
	var addr Address
	copy(addr[:], h.Sum(nil))
	return addr
}

// MarshalText JSON / YAML 以 hex 字串表示
func (id Identity) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText 解析 hex 字串
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalText JSON / YAML 以 hex 字串表示
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText 解析 hex 字串
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
