package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 日誌設定
type Config struct {
	Level    string `yaml:"level"`    // debug / info / warn / error
	Encoding string `yaml:"encoding"` // json / console
}

// New 建立 production 風格的 zap logger
//
// 參數:
//
//	cfg: Config - 日誌等級與輸出格式
//
// 回傳值:
//
//	*zap.Logger: 日誌實例
//	error: 等級或格式無法解析時回傳錯誤
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	if cfg.Encoding != "" {
		zapConfig.Encoding = cfg.Encoding
	}
	return zapConfig.Build()
}
