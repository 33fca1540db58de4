package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/usecase"
)

// Config Kafka 事件輸出設定
type Config struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AccountEvent 每筆成功操作輸出的事件
type AccountEvent struct {
	RefID     uuid.UUID       `json:"ref_id"`
	Sequence  uint64          `json:"sequence"`
	Type      string          `json:"type"`
	Account   domain.Address  `json:"account"`
	Owner     domain.Identity `json:"owner"`
	Signer    domain.Identity `json:"signer"`
	Amount    uint64          `json:"amount"`
	Balance   uint64          `json:"balance"`
	CreatedAt int64           `json:"created_at"`
}

// messageWriter 方便測試替換 kafka.Writer
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher 把帳戶事件寫入 Kafka，key 為帳戶位址，同一帳戶的事件落在同一 partition
type Publisher struct {
	writer  messageWriter
	timeout time.Duration
	logger  *zap.Logger
}

func NewPublisher(cfg Config, logger *zap.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return newPublisher(writer, cfg.WriteTimeout, logger)
}

func newPublisher(writer messageWriter, timeout time.Duration, logger *zap.Logger) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: writer, timeout: timeout, logger: logger}
}

// newMessage 組出事件訊息
func newMessage(tran *domain.Transaction, account *domain.BankAccount) (kafka.Message, error) {
	event := AccountEvent{
		RefID:     tran.TransactionID,
		Sequence:  tran.Sequence,
		Type:      tran.Type.String(),
		Account:   account.Address,
		Owner:     account.Owner,
		Signer:    tran.Signer,
		Amount:    tran.Amount,
		Balance:   account.Balance,
		CreatedAt: tran.CreatedAt,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal account event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(account.Address.String()),
		Value: value,
		Time:  time.Unix(0, tran.CreatedAt),
	}, nil
}

// Publish 實作 usecase.EventPublisher
func (p *Publisher) Publish(ctx context.Context, tran *domain.Transaction, account *domain.BankAccount) error {
	msg, err := newMessage(tran, account)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish account event",
			zap.Stringer("account", account.Address),
			zap.Uint64("sequence", tran.Sequence),
			zap.Error(err))
		return fmt.Errorf("failed to publish account event: %w", err)
	}
	p.logger.Debug("published account event", zap.Uint64("sequence", tran.Sequence))
	return nil
}

func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}

var _ usecase.EventPublisher = (*Publisher)(nil)
