// Package log 提供 ransomcare 的结构化日志封装
package log

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置
type Config struct {
	Level      string // 日志级别: debug, info, warn, error
	Output     string // 输出方式: console, file, both
	FilePath   string // 日志文件路径
	MaxSizeMB  int    // 单文件最大大小(MB)
	MaxBackups int    // 最大保留文件数
	MaxAgeDays int    // 最大保留天数
}

// Logger 封装 zap.Logger，所有模块共享同一个 AtomicLevel
type Logger struct {
	zap   *zap.Logger
	level zap.AtomicLevel
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// NewLogger 根据配置创建 Logger
func NewLogger(cfg Config) (*Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zapcore.InfoLevel)
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	// 交互提示会写到 stdout，日志默认走 stderr 避免混在一起
	var writeSyncer zapcore.WriteSyncer
	switch cfg.Output {
	case "file":
		writeSyncer = rotatingWriter(cfg)
	case "both":
		writeSyncer = zapcore.NewMultiWriteSyncer(zapcore.Lock(os.Stderr), rotatingWriter(cfg))
	default:
		writeSyncer = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), writeSyncer, level)
	return &Logger{
		zap:   zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
		level: level,
	}, nil
}

// NewNop 返回丢弃所有输出的 Logger，主要用于测试
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// FromZap 包装已有的 zap.Logger（测试中配合 zaptest/observer 使用）
func FromZap(z *zap.Logger) *Logger {
	return &Logger{zap: z.WithOptions(zap.AddCallerSkip(1)), level: zap.NewAtomicLevel()}
}

// rotatingWriter 创建带轮转的文件输出
func rotatingWriter(cfg Config) zapcore.WriteSyncer {
	if dir := filepath.Dir(cfg.FilePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			// lumberjack 写入时会再次尝试创建目录
			_, _ = os.Stderr.WriteString("Warning: failed to create log directory: " + err.Error() + "\n")
		}
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	})
}

// SetLevel 动态调整日志级别
func (l *Logger) SetLevel(level string) error {
	return l.level.UnmarshalText([]byte(level))
}

// GetLevel 获取当前日志级别
func (l *Logger) GetLevel() string {
	return l.level.Level().String()
}

// WithModule 创建带模块名的子 Logger
func (l *Logger) WithModule(module string) *Logger {
	return &Logger{zap: l.zap.With(zap.String("module", module)), level: l.level}
}

// With 创建附带固定字段的子 Logger
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...), level: l.level}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.zap.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.zap.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...zap.Field) { l.zap.Fatal(msg, fields...) }

// Sync 刷新日志缓冲区
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Init 初始化全局 Logger
func Init(cfg Config) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
	return nil
}

// Global 获取全局 Logger，未初始化时返回 info 级别的控制台 Logger
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalLogger == nil {
		logger, _ := NewLogger(Config{Level: "info", Output: "console"})
		return logger
	}
	return globalLogger
}

// SetGlobalLevel 设置全局日志级别
func SetGlobalLevel(level string) error {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalLogger == nil {
		return nil
	}
	return globalLogger.SetLevel(level)
}
