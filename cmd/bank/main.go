package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	grpc_adapter "github.com/JoeShih716/go-custody-bank/internal/app/core/adapter/in/grpc"
	cache_adapter "github.com/JoeShih716/go-custody-bank/internal/app/core/adapter/out/cache"
	kafka_adapter "github.com/JoeShih716/go-custody-bank/internal/app/core/adapter/out/kafka"
	leveldb_adapter "github.com/JoeShih716/go-custody-bank/internal/app/core/adapter/out/leveldb"
	memory_adapter "github.com/JoeShih716/go-custody-bank/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-custody-bank/internal/app/core/adapter/out/mysql"
	postgres_adapter "github.com/JoeShih716/go-custody-bank/internal/app/core/adapter/out/postgres"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/reserve"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/usecase"
	grpcpkg "github.com/JoeShih716/go-custody-bank/pkg/grpc"
	"github.com/JoeShih716/go-custody-bank/pkg/logger"
	"github.com/JoeShih716/go-custody-bank/pkg/mysql"
	"github.com/JoeShih716/go-custody-bank/pkg/postgres"
	"github.com/JoeShih716/go-custody-bank/pkg/wal"
	pb "github.com/JoeShih716/go-custody-bank/proto"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to the yaml config file",
		Value:   "config/config.yaml",
		EnvVars: []string{"BANK_CONFIG"},
	}
	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "override log.level (debug, info, warn, error)",
		EnvVars: []string{"BANK_LOG_LEVEL"},
	}
)

func main() {
	app := &cli.App{
		Name:   "bank",
		Usage:  "custody bank account service",
		Flags:  []cli.Flag{configFlag, logLevelFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// valueMinter 可以發放 genesis 價值的帳本，每個 holder 只發一次
type valueMinter interface {
	usecase.ValueLedger
	MintOnce(ctx context.Context, holder domain.Address, amount uint64) (bool, error)
}

// closers 依建立的相反順序關閉
type closers []io.Closer

func (c *closers) add(closer io.Closer) { *c = append(*c, closer) }

func (c closers) closeAll(log *zap.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			log.Error("close resource failed", zap.Error(err))
		}
	}
}

func run(c *cli.Context) error {
	// 1. 載入設定
	cfg, err := loadConfig(c.String(configFlag.Name))
	if err != nil {
		return err
	}
	if c.IsSet(logLevelFlag.Name) {
		cfg.Log.Level = c.String(logLevelFlag.Name)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()
	log.Info("bank service starting",
		zap.String("store", cfg.Store.Driver),
		zap.String("value", cfg.Value.Driver))

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	var resources closers
	defer resources.closeAll(log)

	// 2. 初始化基礎設施
	var (
		mysqlClient *mysql.Client
		pgClient    *postgres.Client
	)
	if cfg.Store.Driver == StoreDriverMySQL || cfg.Value.Driver == ValueDriverMySQL {
		mysqlClient, err = mysql.NewClient(cfg.MySQL, log.With(zap.String("component", "mysql")))
		if err != nil {
			return err
		}
		resources.add(mysqlClient)
		log.Info("connected to mysql")
	}
	if cfg.Store.Driver == StoreDriverPostgres {
		pgClient, err = postgres.NewClient(ctx, cfg.Postgres, log.With(zap.String("component", "postgres")))
		if err != nil {
			return err
		}
		resources.add(pgClient)
		if err := pgClient.Migrate(); err != nil {
			return err
		}
		log.Info("connected to postgres")
	}

	// 3. 帳戶紀錄 & 價值帳本
	store, err := newAccountStore(ctx, cfg, mysqlClient, pgClient, &resources)
	if err != nil {
		return err
	}
	values, err := newValueLedger(ctx, cfg, mysqlClient, &resources)
	if err != nil {
		return err
	}
	if err := mintGenesis(ctx, values, cfg.Genesis, log); err != nil {
		return err
	}

	// 4. 事件輸出
	var publisher usecase.EventPublisher = usecase.NopPublisher
	if cfg.Kafka.Enabled {
		kp := kafka_adapter.NewPublisher(cfg.Kafka, log.With(zap.String("component", "kafka")))
		resources.add(kp)
		publisher = kp
		log.Info("kafka publisher enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// 5. 初始化 UseCase
	rate := reserve.NewAdjustableRate(cfg.Reserve.CostPerByte)
	engine := usecase.NewEngine(store, values, reserve.NewCalculator(rate), log.With(zap.String("component", "engine")))
	core := usecase.NewBankUseCase(engine, store, publisher, log.With(zap.String("component", "core")))
	coreCtx, stopCore := context.WithCancel(context.Background())
	defer stopCore()
	if err := core.Start(coreCtx); err != nil {
		return err
	}

	// 6. 啟動 gRPC Server
	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcpkg.UnaryServerLogger(log.With(zap.String("component", "grpc")))))
	pb.RegisterBankServiceServer(s, grpc_adapter.NewGrpcServer(core))

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting grpc server", zap.String("addr", cfg.Server.Addr))
		serveErr <- s.Serve(lis)
	}()

	// 7. Graceful Shutdown，SIGHUP 重新載入儲存費率
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sig)
loop:
	for {
		select {
		case received := <-sig:
			if received == syscall.SIGHUP {
				reloadRate(c.String(configFlag.Name), rate, log)
				continue
			}
			log.Info("shutting down server", zap.Stringer("signal", received))
			break loop
		case err := <-serveErr:
			if err != nil {
				log.Error("grpc server stopped", zap.Error(err))
			}
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(cfg.Server.ShutdownTimeout):
		log.Warn("graceful stop timed out, forcing")
		s.Stop()
	}

	// 輸送帶上剩下的操作處理完才關閉儲存
	stopCore()
	<-core.Done()
	log.Info("server exited")
	return nil
}

func newAccountStore(ctx context.Context, cfg Config, mysqlClient *mysql.Client, pgClient *postgres.Client, resources *closers) (usecase.AccountStore, error) {
	var store usecase.AccountStore
	switch cfg.Store.Driver {
	case StoreDriverMemory:
		var w *wal.WAL
		if cfg.Store.WALPath != "" {
			var err error
			if w, err = wal.NewWAL(cfg.Store.WALPath); err != nil {
				return nil, fmt.Errorf("failed to init account wal: %w", err)
			}
			resources.add(w)
		}
		s, err := memory_adapter.NewAccountStore(w)
		if err != nil {
			return nil, err
		}
		store = s
	case StoreDriverLevelDB:
		s, err := leveldb_adapter.Open(cfg.Store.LevelDBPath)
		if err != nil {
			return nil, err
		}
		resources.add(s)
		store = s
	case StoreDriverMySQL:
		s := mysql_adapter.NewAccountStore(mysqlClient)
		if err := s.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate bank_accounts: %w", err)
		}
		store = s
	case StoreDriverPostgres:
		store = postgres_adapter.NewAccountStore(pgClient.DB())
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Store.CacheSize > 0 {
		return cache_adapter.NewAccountStore(store, cfg.Store.CacheSize)
	}
	return store, nil
}

func newValueLedger(ctx context.Context, cfg Config, mysqlClient *mysql.Client, resources *closers) (valueMinter, error) {
	switch cfg.Value.Driver {
	case ValueDriverMemory:
		var w *wal.WAL
		if cfg.Value.WALPath != "" {
			var err error
			if w, err = wal.NewWAL(cfg.Value.WALPath); err != nil {
				return nil, fmt.Errorf("failed to init value wal: %w", err)
			}
			resources.add(w)
		}
		return memory_adapter.NewValuePool(w)
	case ValueDriverMySQL:
		l := mysql_adapter.NewValueLedger(mysqlClient)
		if err := l.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate value_holders: %w", err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown value driver %q", cfg.Value.Driver)
	}
}

// mintGenesis 每個 holder 只發放一次，發放紀錄跟著帳本一起保存，
// holder 花光後重啟也不會再發
func mintGenesis(ctx context.Context, values valueMinter, allocs []GenesisAlloc, log *zap.Logger) error {
	for _, alloc := range allocs {
		holder := alloc.Holder.Address()
		minted, err := values.MintOnce(ctx, holder, alloc.Amount)
		if err != nil {
			return fmt.Errorf("genesis: mint %s: %w", holder, err)
		}
		if minted {
			log.Info("genesis value minted", zap.Stringer("holder", holder), zap.Uint64("amount", alloc.Amount))
		}
	}
	return nil
}

func reloadRate(path string, rate *reserve.AdjustableRate, log *zap.Logger) {
	cfg, err := loadConfig(path)
	if err != nil {
		log.Error("reload config failed", zap.Error(err))
		return
	}
	rate.Set(cfg.Reserve.CostPerByte)
	log.Info("storage cost reloaded", zap.Uint64("cost_per_byte", cfg.Reserve.CostPerByte))
}
