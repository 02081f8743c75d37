// Package logging 构造全局使用的 zap logger
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 按级别构造 logger。file 非空时日志写入该文件（TUI 模式下避免污染终端）。
// 非法级别退回 info 并返回错误供调用方提示。
func New(level, file string) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.Encoding = "console"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var levelErr error
	logLevel := zap.InfoLevel
	if level != "" {
		if err := logLevel.UnmarshalText([]byte(level)); err != nil {
			levelErr = fmt.Errorf("invalid log level %q, using info: %w", level, err)
			logLevel = zap.InfoLevel
		}
	}
	zapConfig.Level = zap.NewAtomicLevelAt(logLevel)

	if file != "" {
		zapConfig.OutputPaths = []string{file}
		zapConfig.ErrorOutputPaths = []string{file}
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		return zap.NewNop(), fmt.Errorf("build logger: %w", err)
	}
	return logger, levelErr
}
