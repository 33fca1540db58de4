package mysql

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
)

var (
	insertHolder = regexp.QuoteMeta("INSERT INTO `value_holders`")
	updateHolder = regexp.QuoteMeta("UPDATE `value_holders` SET `value`=?,`updated_at`=? WHERE `address` = ?")
	lockTwo      = regexp.QuoteMeta("SELECT * FROM `value_holders` WHERE address IN (?,?) ORDER BY address FOR UPDATE")
	lockOne      = regexp.QuoteMeta("SELECT * FROM `value_holders` WHERE address IN (?) ORDER BY address FOR UPDATE")
)

func holderRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"address", "value", "updated_at"})
}

func TestValueLedgerMoveLocksInAddressOrder(t *testing.T) {
	client, mock := newMockClient(t)
	ledger := NewValueLedger(client)
	low, high := domain.Address{0x01}, domain.Address{0x02}

	mock.ExpectBegin()
	mock.ExpectExec(insertHolder).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(insertHolder).WillReturnResult(sqlmock.NewResult(0, 0))
	// 不論移轉方向，一律依位址排序上鎖
	mock.ExpectQuery(lockTwo).
		WithArgs(low[:], high[:]).
		WillReturnRows(holderRows().
			AddRow(low[:], int64(0), int64(0)).
			AddRow(high[:], int64(100), int64(0)))
	mock.ExpectExec(updateHolder).
		WithArgs(int64(70), sqlmock.AnyArg(), high[:]).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(updateHolder).
		WithArgs(int64(30), sqlmock.AnyArg(), low[:]).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, ledger.Move(context.Background(), high, low, 30))
}

func TestValueLedgerMoveInsufficient(t *testing.T) {
	client, mock := newMockClient(t)
	ledger := NewValueLedger(client)
	low, high := domain.Address{0x01}, domain.Address{0x02}

	mock.ExpectBegin()
	mock.ExpectExec(insertHolder).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(insertHolder).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockTwo).
		WithArgs(low[:], high[:]).
		WillReturnRows(holderRows().
			AddRow(low[:], int64(10), int64(0)).
			AddRow(high[:], int64(0), int64(0)))
	mock.ExpectRollback()

	err := ledger.Move(context.Background(), low, high, 11)
	assert.ErrorIs(t, err, domain.ErrInsufficientValue)
}

func TestValueLedgerMoveSelf(t *testing.T) {
	client, _ := newMockClient(t)
	ledger := NewValueLedger(client)

	// 不會開交易
	err := ledger.Move(context.Background(), domain.Address{0x05}, domain.Address{0x05}, 1)
	assert.ErrorIs(t, err, domain.ErrSelfTransfer)
}

func TestValueLedgerMint(t *testing.T) {
	client, mock := newMockClient(t)
	ledger := NewValueLedger(client)
	holder := domain.Address{0x03}

	mock.ExpectBegin()
	mock.ExpectExec(insertHolder).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(lockOne).
		WithArgs(holder[:]).
		WillReturnRows(holderRows().AddRow(holder[:], int64(5), int64(0)))
	mock.ExpectExec(updateHolder).
		WithArgs(int64(15), sqlmock.AnyArg(), holder[:]).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, ledger.Mint(context.Background(), holder, 10))
}

func TestValueLedgerMintOnce(t *testing.T) {
	client, mock := newMockClient(t)
	ledger := NewValueLedger(client)
	holder := domain.Address{0x04}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `genesis_mints`")).
		WithArgs(holder[:], int64(50), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertHolder).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(lockOne).
		WithArgs(holder[:]).
		WillReturnRows(holderRows().AddRow(holder[:], int64(0), int64(0)))
	mock.ExpectExec(updateHolder).
		WithArgs(int64(50), sqlmock.AnyArg(), holder[:]).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	minted, err := ledger.MintOnce(context.Background(), holder, 50)
	require.NoError(t, err)
	assert.True(t, minted)

	// 第二次: genesis_mints 主鍵衝突，整筆交易回滾
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `genesis_mints`")).
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	minted, err = ledger.MintOnce(context.Background(), holder, 50)
	require.NoError(t, err)
	assert.False(t, minted)
}
