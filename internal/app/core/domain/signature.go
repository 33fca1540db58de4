package domain

import (
	"crypto/ed25519"
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// SignatureLength ed25519 簽章長度
const SignatureLength = ed25519.SignatureSize

// operationTag 簽章內容的前綴，避免與其他用途的簽章混用
const operationTag = "bank/op/v1"

// Digest 操作的簽章摘要
//
//	keccak256(tag || type || ref_id || account || amount(LE) || name)
//
// Create 的 account 是由 owner 推導的位址
func (t *Transaction) Digest() [32]byte {
	var amount [8]byte
	binary.LittleEndian.PutUint64(amount[:], t.Amount)

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(operationTag))
	h.Write([]byte{byte(t.Type)})
	h.Write(t.TransactionID[:])
	h.Write(t.Account[:])
	h.Write(amount[:])
	h.Write([]byte(t.Name))

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// Sign 以私鑰簽署操作
func (t *Transaction) Sign(key ed25519.PrivateKey) []byte {
	digest := t.Digest()
	return ed25519.Sign(key, digest[:])
}

// VerifySignature 確認 sig 是 Signer 對這筆操作的簽章
func (t *Transaction) VerifySignature(sig []byte) error {
	if len(sig) != SignatureLength {
		return ErrInvalidSignature
	}
	digest := t.Digest()
	if !ed25519.Verify(ed25519.PublicKey(t.Signer[:]), digest[:], sig) {
		return ErrInvalidSignature
	}
	return nil
}

// IdentityFromKey 取得私鑰對應的身分 (公鑰)
func IdentityFromKey(key ed25519.PrivateKey) Identity {
	var id Identity
	copy(id[:], key.Public().(ed25519.PublicKey))
	return id
}
