package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/usecase"
)

const uniqueViolation = "23505"

// AccountStore 以 PostgreSQL 保存帳戶
//
// balance 欄位是 NUMERIC(20,0)，完整容納 uint64
type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

// withTx 在單一交易內執行 fn，fn 回傳錯誤時回滾
func (s *AccountStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// recordApplied 在同一個交易內寫入 ref，uuid.Nil 不寫
func recordApplied(ctx context.Context, tx *sql.Tx, refID uuid.UUID, address domain.Address) error {
	if refID == uuid.Nil {
		return nil
	}
	query := `
		INSERT INTO applied_operations (ref_id, address)
		VALUES ($1, $2)
	`
	if _, err := tx.ExecContext(ctx, query, refID[:], address[:]); err != nil {
		return fmt.Errorf("failed to record operation %s: %w", refID, err)
	}
	return nil
}

func (s *AccountStore) Create(ctx context.Context, account *domain.BankAccount, refID uuid.UUID) error {
	query := `
		INSERT INTO bank_accounts (address, owner, name, balance, space)
		VALUES ($1, $2, $3, $4, $5)
	`
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			account.Address[:],
			account.Owner[:],
			account.Name,
			strconv.FormatUint(account.Balance, 10),
			int64(account.Space),
		)
		if err != nil {
			var pgErr *pq.Error
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return domain.ErrAccountAlreadyExists
			}
			return fmt.Errorf("failed to create account %s: %w", account.Address, err)
		}
		return recordApplied(ctx, tx, refID, account.Address)
	})
}

func (s *AccountStore) Get(ctx context.Context, address domain.Address) (*domain.BankAccount, error) {
	query := `
		SELECT address, owner, name, balance, space
		FROM bank_accounts
		WHERE address = $1
	`
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, address[:]))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account %s: %w", address, err)
	}
	return account, nil
}

func (s *AccountStore) Update(ctx context.Context, account *domain.BankAccount, refID uuid.UUID) error {
	query := `
		UPDATE bank_accounts
		SET balance = $1, updated_at = NOW()
		WHERE address = $2
	`
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, strconv.FormatUint(account.Balance, 10), account.Address[:])
		if err != nil {
			return fmt.Errorf("failed to update account %s: %w", account.Address, err)
		}
		rowsAffected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return domain.ErrAccountNotFound
		}
		return recordApplied(ctx, tx, refID, account.Address)
	})
}

func (s *AccountStore) List(ctx context.Context) ([]*domain.BankAccount, error) {
	query := `
		SELECT address, owner, name, balance, space
		FROM bank_accounts
		ORDER BY address
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []*domain.BankAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

// AppliedRefs 讀出所有已套用操作
func (s *AccountStore) AppliedRefs(ctx context.Context) (map[uuid.UUID]domain.Address, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ref_id, address FROM applied_operations`)
	if err != nil {
		return nil, fmt.Errorf("failed to list applied operations: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]domain.Address)
	for rows.Next() {
		var refBytes, address []byte
		if err := rows.Scan(&refBytes, &address); err != nil {
			return nil, err
		}
		refID, err := uuid.FromBytes(refBytes)
		if err != nil || len(address) != domain.IdentityLength {
			return nil, fmt.Errorf("%w: applied operation %x", domain.ErrCorruptRecord, refBytes)
		}
		var addr domain.Address
		copy(addr[:], address)
		out[refID] = addr
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.BankAccount, error) {
	var (
		address, owner []byte
		name, balance  string
		space          int64
	)
	if err := row.Scan(&address, &owner, &name, &balance, &space); err != nil {
		return nil, err
	}
	if len(address) != domain.IdentityLength || len(owner) != domain.IdentityLength {
		return nil, domain.ErrCorruptRecord
	}
	value, err := strconv.ParseUint(balance, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: balance %q: %v", domain.ErrCorruptRecord, balance, err)
	}
	account := &domain.BankAccount{
		Name:    name,
		Balance: value,
		Space:   uint64(space),
	}
	copy(account.Address[:], address)
	copy(account.Owner[:], owner)
	if domain.DeriveAddress(account.Owner) != account.Address {
		return nil, fmt.Errorf("%w: address does not match owner", domain.ErrCorruptRecord)
	}
	return account, nil
}

var _ usecase.AccountStore = (*AccountStore)(nil)
