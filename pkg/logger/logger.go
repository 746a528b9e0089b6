// Package logger 提供基于 slog 的结构化日志。
//
// 核心功能:
//   - Init() 配置默认日志器 (JSON/彩色文本)
//   - FromContext() 上下文感知日志
//   - 包级便捷方法 (Info/Error/Warn/Debug/Fatal)
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/lmittmann/tint"
)

var defaultLogger atomic.Pointer[slog.Logger]

// exitFunc 由测试替换, 以拦截 Fatal 的 os.Exit。
var exitFunc = os.Exit

func init() {
	defaultLogger.Store(newLogger(false))
}

func newLogger(development bool) *slog.Logger {
	if development {
		// development 模式下用 tint 输出彩色、人类可读的文本日志
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			AddSource:  true,
			TimeFormat: "15:04:05.000",
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Init 初始化日志配置。env: "development"/"dev" 或 "production" (默认)。
func Init(env string) {
	dev := env == "development" || env == "dev"
	defaultLogger.Store(newLogger(dev))
}

// ========================================
// Context 感知日志
// ========================================

type ctxKey struct{}

// WithContext 将日志器注入 context。
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext 从 context 提取日志器，若不存在则返回默认日志器。
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return Get()
}

// ========================================
// 包级便捷方法
// ========================================

// Info/Error/Warn/Debug 记录结构化日志。args 为 key-value 对。
func Info(msg string, args ...any)  { Get().Info(msg, args...) }
func Error(msg string, args ...any) { Get().Error(msg, args...) }
func Warn(msg string, args ...any)  { Get().Warn(msg, args...) }
func Debug(msg string, args ...any) { Get().Debug(msg, args...) }

// Infof/Errorf/Warnf/Debugf 记录格式化日志。
func Infof(format string, args ...any)  { Get().Info(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { Get().Error(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { Get().Warn(fmt.Sprintf(format, args...)) }
func Debugf(format string, args ...any) { Get().Debug(fmt.Sprintf(format, args...)) }

// Fatal 记录致命错误并退出。
func Fatal(msg string, args ...any) {
	Get().Error(msg, args...)
	exitFunc(1)
}

// Infow/Warnw/Errorw/Debugw 等同于 Info/Warn/Error/Debug (兼容别名)。
func Infow(msg string, keysAndValues ...any)  { Get().Info(msg, keysAndValues...) }
func Warnw(msg string, keysAndValues ...any)  { Get().Warn(msg, keysAndValues...) }
func Errorw(msg string, keysAndValues ...any) { Get().Error(msg, keysAndValues...) }
func Debugw(msg string, keysAndValues ...any) { Get().Debug(msg, keysAndValues...) }

// With 返回带附加上下文的日志器。
func With(args ...any) *slog.Logger { return Get().With(args...) }

// Get 返回当前默认的 slog.Logger。
func Get() *slog.Logger { return defaultLogger.Load() }

// Attr 类型别名 (避免调用方直接 import slog)。
type Attr = slog.Attr

// Any 创建任意类型属性。
func Any(key string, value any) Attr { return slog.Any(key, value) }

// 预留字段常量 — MUST 使用常量键名，勿硬编码。
const (
	FieldTraceID   = "trace_id"
	FieldAgentID   = "agent_id"
	FieldAgentType = "agent_type"
	FieldEventType = "event_type"
	FieldRequestID = "request_id"
	FieldComponent = "component"
	FieldModule    = "module"
	FieldError     = "error"
	FieldStatus    = "status"
	FieldLatencyMS = "latency_ms"
	FieldCount     = "count"
	FieldHandler   = "handler"
	FieldTopic     = "topic"
)
