package app

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/shelfline-next/internal/config"
	"github.com/shelfline-next/internal/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 启动模式：all 同时运行接口与 worker
const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"
)

// ParseMode 规范化启动模式，空值视为 all
func ParseMode(value string) (string, error) {
	switch mode := strings.ToLower(strings.TrimSpace(value)); mode {
	case "":
		return ModeAll, nil
	case ModeAll, ModeAPI, ModeWorker:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown run mode %q (want all, api or worker)", value)
	}
}

// ServesAPI 该模式是否对外提供 HTTP 接口
func ServesAPI(mode string) bool {
	return mode == ModeAll || mode == ModeAPI
}

func runsWorker(mode string) bool {
	return mode == ModeAll || mode == ModeWorker
}

// Options 应用启动选项，零值字段由 normalizeOptions 补齐
type Options struct {
	Config          *config.Config
	DB              *gorm.DB
	Logger          *zap.SugaredLogger
	Signals         []os.Signal
	ShutdownTimeout time.Duration
	Mode            string
}

func normalizeOptions(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.Signals == nil {
		opts.Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	if opts.ShutdownTimeout <= 0 && opts.Config != nil {
		opts.ShutdownTimeout = time.Duration(opts.Config.Server.ShutdownTimeoutSeconds) * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultStopTimeout
	}
	if mode, err := ParseMode(opts.Mode); err == nil {
		opts.Mode = mode
	}
	return opts
}
