package grpc

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	pb "github.com/JoeShih716/go-custody-bank/proto"
)

// Pool 依 target 快取 bank 服務的連線，同一個 target 只保留一條
//
// 每條連線都帶 JSON codec 與 client 端日誌攔截器，
// 呼叫端拿到的 BankServiceClient 可以直接使用。
type Pool struct {
	mu       sync.Mutex
	conns    map[string]*grpc.ClientConn
	log      *zap.Logger
	dialOpts []grpc.DialOption
}

// PoolOption Pool 的設定
type PoolOption func(*Pool)

// WithLogger 失敗的呼叫寫到 log
func WithLogger(log *zap.Logger) PoolOption {
	return func(p *Pool) {
		p.log = log
	}
}

// WithDialOptions 附加在預設選項之後 (例如測試用的 bufconn dialer)
func WithDialOptions(opts ...grpc.DialOption) PoolOption {
	return func(p *Pool) {
		p.dialOpts = append(p.dialOpts, opts...)
	}
}

// NewPool 建立連線池
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		conns: make(map[string]*grpc.ClientConn),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Conn 取得 target 的連線，已關閉的連線會重建
//
// 參數:
//
//	target: string - 服務地址 (e.g., "localhost:50051")
//
// 回傳值:
//
//	*grpc.ClientConn: 連線 (lazy，第一次呼叫時才真正連線)
//	error: 建立失敗
func (p *Pool) Conn(target string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[target]; ok {
		if conn.GetState() != connectivity.Shutdown {
			return conn, nil
		}
		delete(p.conns, target)
	}

	opts := []grpc.DialOption{
		// 內部網路，不走 TLS
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
		grpc.WithChainUnaryInterceptor(UnaryClientLogger(p.log)),
	}
	opts = append(opts, p.dialOpts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for target %s: %w", target, err)
	}
	p.conns[target] = conn
	return conn, nil
}

// BankClient 取得 target 上的 BankServiceClient
func (p *Pool) BankClient(target string) (pb.BankServiceClient, error) {
	conn, err := p.Conn(target)
	if err != nil {
		return nil, err
	}
	return pb.NewBankServiceClient(conn), nil
}

// Close 關閉所有連線，回傳第一個錯誤
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for target, conn := range p.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, target)
	}
	return firstErr
}
