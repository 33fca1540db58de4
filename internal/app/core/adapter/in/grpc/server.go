package grpc

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/usecase"
	pb "github.com/JoeShih716/go-custody-bank/proto"
)

type GrpcServer struct {
	pb.UnimplementedBankServiceServer
	core *usecase.BankUseCase
}

func NewGrpcServer(core *usecase.BankUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) CreateAccount(ctx context.Context, req *pb.CreateAccountRequest) (*pb.AccountResponse, error) {
	// 1. 解析參數
	refID, err := parseRefID(req.RefId)
	if err != nil {
		return nil, err
	}
	owner, err := parseIdentity("owner", req.Owner)
	if err != nil {
		return nil, err
	}

	// 2. 驗證 owner 簽章
	tran := domain.NewCreateTransaction(refID, owner, req.Name)
	if err := verify(tran, req.Signature); err != nil {
		return nil, err
	}

	// 3. 執行操作
	account, err := s.core.Submit(ctx, tran)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.AccountResponse{Account: toAccount(account)}, nil
}

func (s *GrpcServer) Deposit(ctx context.Context, req *pb.DepositRequest) (*pb.AccountResponse, error) {
	refID, err := parseRefID(req.RefId)
	if err != nil {
		return nil, err
	}
	address, err := parseAddress(req.Account)
	if err != nil {
		return nil, err
	}
	depositor, err := parseIdentity("depositor", req.Depositor)
	if err != nil {
		return nil, err
	}

	tran := domain.NewDepositTransaction(refID, address, depositor, req.Amount)
	if err := verify(tran, req.Signature); err != nil {
		return nil, err
	}

	account, err := s.core.Submit(ctx, tran)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.AccountResponse{Account: toAccount(account)}, nil
}

func (s *GrpcServer) Withdraw(ctx context.Context, req *pb.WithdrawRequest) (*pb.AccountResponse, error) {
	refID, err := parseRefID(req.RefId)
	if err != nil {
		return nil, err
	}
	address, err := parseAddress(req.Account)
	if err != nil {
		return nil, err
	}
	caller, err := parseIdentity("caller", req.Caller)
	if err != nil {
		return nil, err
	}

	tran := domain.NewWithdrawTransaction(refID, address, caller, req.Amount)
	if err := verify(tran, req.Signature); err != nil {
		return nil, err
	}

	account, err := s.core.Submit(ctx, tran)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.AccountResponse{Account: toAccount(account)}, nil
}

// GetAccount 依帳戶位址或 owner 查詢，兩者擇一
func (s *GrpcServer) GetAccount(ctx context.Context, req *pb.GetAccountRequest) (*pb.AccountResponse, error) {
	var (
		account *domain.BankAccount
		err     error
	)
	switch {
	case req.Account != "" && req.Owner != "":
		return nil, status.Error(codes.InvalidArgument, "account and owner are mutually exclusive")
	case req.Account != "":
		address, perr := parseAddress(req.Account)
		if perr != nil {
			return nil, perr
		}
		account, err = s.core.GetAccount(ctx, address)
	case req.Owner != "":
		owner, perr := parseIdentity("owner", req.Owner)
		if perr != nil {
			return nil, perr
		}
		account, err = s.core.GetAccountByOwner(ctx, owner)
	default:
		return nil, status.Error(codes.InvalidArgument, "account or owner is required")
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.AccountResponse{Account: toAccount(account)}, nil
}

func (s *GrpcServer) ListAccounts(ctx context.Context, _ *pb.ListAccountsRequest) (*pb.ListAccountsResponse, error) {
	accounts, err := s.core.ListAccounts(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &pb.ListAccountsResponse{Accounts: make([]*pb.Account, 0, len(accounts))}
	for _, account := range accounts {
		resp.Accounts = append(resp.Accounts, toAccount(account))
	}
	return resp, nil
}

// verify 確認請求由操作的身分簽署，失敗回傳 Unauthenticated
func verify(tran *domain.Transaction, raw string) error {
	sig, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return status.Error(codes.Unauthenticated, "invalid signature encoding")
	}
	if err := tran.VerifySignature(sig); err != nil {
		return toStatus(err)
	}
	return nil
}

func parseRefID(raw string) (uuid.UUID, error) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "invalid ref_id: "+err.Error())
	}
	return u, nil
}

func parseIdentity(field, raw string) (domain.Identity, error) {
	id, err := domain.ParseIdentity(raw)
	if err != nil {
		return domain.Identity{}, status.Errorf(codes.InvalidArgument, "invalid %s: %v", field, err)
	}
	return id, nil
}

func parseAddress(raw string) (domain.Address, error) {
	addr, err := domain.ParseAddress(raw)
	if err != nil {
		return domain.Address{}, status.Errorf(codes.InvalidArgument, "invalid account: %v", err)
	}
	return addr, nil
}

func toAccount(a *domain.BankAccount) *pb.Account {
	return &pb.Account{
		Address: a.Address.String(),
		Owner:   a.Owner.String(),
		Name:    a.Name,
		Balance: a.Balance,
		Space:   a.Space,
	}
}

// toStatus 把 domain 錯誤轉成 gRPC 狀態碼
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrAccountAlreadyExists):
		code = codes.AlreadyExists
	case errors.Is(err, domain.ErrAccountNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrInvalidSignature):
		code = codes.Unauthenticated
	case errors.Is(err, domain.ErrNotOwner):
		code = codes.PermissionDenied
	case errors.Is(err, domain.ErrInsufficientFunds):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrAllocationFailed):
		code = codes.ResourceExhausted
	case errors.Is(err, domain.ErrTransferFailed):
		code = codes.Aborted
	case errors.Is(err, domain.ErrBalanceOverflow):
		code = codes.OutOfRange
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrNameTooLong),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidIdentity),
		errors.Is(err, domain.ErrUnknownOperation):
		code = codes.InvalidArgument
	case errors.Is(err, usecase.ErrStopped):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
