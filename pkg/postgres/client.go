package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Client 封裝 *sql.DB (lib/pq)
type Client struct {
	db  *sql.DB
	cfg Config
	log *zap.Logger
}

// NewClient 連線 PostgreSQL，失敗時依設定重試
//
// 參數:
//
//	ctx: 上下文 (取消時停止重試)
//	cfg: Config - 連線設定
//	log: *zap.Logger - 日誌 (可為 nil)
//
// 回傳值:
//
//	*Client: 客戶端
//	error: 重試用盡仍失敗時回傳錯誤
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.SetDefaults()

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	for i := 0; i < cfg.MaxRetries; i++ {
		if err = db.PingContext(ctx); err == nil {
			return &Client{db: db, cfg: cfg, log: log}, nil
		}
		log.Warn("failed to connect to postgres, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_retries", cfg.MaxRetries),
			zap.Duration("retry_in", cfg.RetryInterval),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(cfg.RetryInterval):
		}
	}
	db.Close()
	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", cfg.MaxRetries, err)
}

// DB 回傳底層 *sql.DB
func (c *Client) DB() *sql.DB {
	return c.db
}

// Migrate 執行 MigrationsPath 下的所有 up migration
func (c *Client) Migrate() error {
	if c.cfg.MigrationsPath == "" {
		return nil
	}
	m, err := migrate.New(c.cfg.MigrationsPath, c.cfg.MigrationURL())
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	c.log.Info("database migrations completed", zap.String("source", c.cfg.MigrationsPath))
	return nil
}

// Close 關閉連線
func (c *Client) Close() error {
	return c.db.Close()
}
