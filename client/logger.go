package client

import (
	"go.uber.org/zap"
)

// zapLogger 基于 zap 的 Logger 实现
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger 用现有的 zap.Logger 包装出 Logger
func NewZapLogger(l *zap.Logger) Logger {
	return &zapLogger{sugar: l.Sugar()}
}

// NewDevelopmentLogger 创建开发模式日志器（人类可读输出，Debug 级别）
func NewDevelopmentLogger() (Logger, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(l), nil
}

// NewProductionLogger 创建生产模式日志器（JSON 输出，Info 级别）
func NewProductionLogger() (Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(l), nil
}

func (z *zapLogger) Debug(msg string, args ...interface{}) { z.sugar.Debugw(msg, args...) }
func (z *zapLogger) Info(msg string, args ...interface{})  { z.sugar.Infow(msg, args...) }
func (z *zapLogger) Warn(msg string, args ...interface{})  { z.sugar.Warnw(msg, args...) }
func (z *zapLogger) Error(msg string, args ...interface{}) { z.sugar.Errorw(msg, args...) }

// nopLogger 丢弃所有日志
type nopLogger struct{}

// NopLogger 返回空日志器
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
