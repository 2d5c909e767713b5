package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "shelfline-loyalty"

// Options 日志输出配置；Dir 为空时写入工作目录下的 logs/
type Options struct {
	Level      string
	Dir        string
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Stdout 生产模式下同时输出到标准输出（容器部署）
	Stdout bool
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.Dir) == "" {
		o.Dir = "logs"
	}
	if strings.TrimSpace(o.Filename) == "" {
		o.Filename = "loyalty.log"
	}
	if o.MaxSizeMB <= 0 {
		o.MaxSizeMB = 100
	}
	if o.MaxBackups <= 0 {
		o.MaxBackups = 7
	}
	if o.MaxAgeDays <= 0 {
		o.MaxAgeDays = 30
	}
	return o
}

// L 全局结构化日志实例，Init 之前为 nil
var L *zap.Logger

var stdout = sync.OnceValue(func() *zap.Logger {
	return newLogger(zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stdout), zap.InfoLevel))
})

// Init 初始化全局日志并替换 zap 全局实例
func Init(mode string, options Options) *zap.Logger {
	L = New(mode, options)
	zap.ReplaceGlobals(L)
	return L
}

// New debug 模式输出彩色控制台日志；其余模式写 JSON 滚动文件
// 文件无法创建时退回标准输出，不阻止启动
func New(mode string, options Options) *zap.Logger {
	options = options.withDefaults()
	debug := strings.EqualFold(strings.TrimSpace(mode), "debug")
	level := levelFor(options.Level, debug)

	if debug {
		cfg := encoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return newLogger(zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stdout), level))
	}

	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig())
	sink, err := rollingFile(options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log file unavailable, writing to stdout: %v\n", err)
		return newLogger(zapcore.NewCore(jsonEncoder, zapcore.Lock(os.Stdout), level))
	}
	core := zapcore.NewCore(jsonEncoder, sink, level)
	if options.Stdout {
		core = zapcore.NewTee(core, zapcore.NewCore(jsonEncoder.Clone(), zapcore.Lock(os.Stdout), level))
	}
	return newLogger(core)
}

// levelFor 显式配置优先，否则 debug 模式为 debug，其余为 info
func levelFor(value string, debug bool) zapcore.Level {
	if level, err := zapcore.ParseLevel(strings.TrimSpace(value)); err == nil && strings.TrimSpace(value) != "" {
		return level
	}
	if debug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func newLogger(core zapcore.Core) *zap.Logger {
	return zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", serviceName)),
	)
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.MessageKey = "event"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.MillisDurationEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return cfg
}

func rollingFile(options Options) (zapcore.WriteSyncer, error) {
	dir, err := filepath.Abs(options.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve log dir failed: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir failed: %w", err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, options.Filename),
		MaxSize:    options.MaxSizeMB,
		MaxBackups: options.MaxBackups,
		MaxAge:     options.MaxAgeDays,
		Compress:   options.Compress,
	}), nil
}

func current() *zap.Logger {
	if L != nil {
		return L
	}
	return stdout()
}

// StdLogger 兼容标准库 log 的 logger，用于启动阶段的致命错误
func StdLogger() *log.Logger {
	return zap.NewStdLog(current())
}

// S 返回可用的 SugaredLogger
func S() *zap.SugaredLogger {
	return current().Sugar()
}

// SW 附带固定字段的 SugaredLogger
func SW(kv ...interface{}) *zap.SugaredLogger {
	return S().With(kv...)
}

func Debugw(event string, kv ...interface{}) { S().Debugw(event, kv...) }

func Infow(event string, kv ...interface{}) { S().Infow(event, kv...) }

func Warnw(event string, kv ...interface{}) { S().Warnw(event, kv...) }

func Errorw(event string, kv ...interface{}) { S().Errorw(event, kv...) }

// Sync 刷新缓冲日志；标准输出在部分平台上 Sync 会报错，忽略即可
func Sync() {
	_ = current().Sync()
}
