package app

import (
	"errors"

	"github.com/shelfline-next/internal/config"
	"github.com/shelfline-next/internal/provider"
	"github.com/shelfline-next/internal/router"
	"github.com/shelfline-next/internal/worker"

	"gorm.io/gorm"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, db *gorm.DB, mode string) (*Runner, *provider.Container, error) {
	if cfg == nil {
		return nil, nil, errors.New("config is nil")
	}

	mode, err := ParseMode(mode)
	if err != nil {
		return nil, nil, err
	}
	container, err := provider.NewContainer(cfg, db)
	if err != nil {
		return nil, nil, err
	}

	var services []Service

	// 初始化 HTTP 服务
	if ServesAPI(mode) {
		engine := router.SetupRouter(cfg, container)
		services = append(services, NewHTTPService(cfg.Server, engine))
	}

	// 初始化 Worker 服务
	if runsWorker(mode) {
		consumer := worker.NewConsumer(container)
		workerService, err := worker.NewService(cfg, consumer)
		if err != nil {
			container.Close()
			return nil, nil, err
		}
		services = append(services, workerService)
	}

	return NewRunner(services...), container, nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}
	if opts.DB == nil {
		return errors.New("db is nil")
	}

	runner, container, err := BuildRunner(opts.Config, opts.DB, opts.Mode)
	if err != nil {
		return err
	}
	defer container.Close()

	opts.Logger.Infow("app_start", "addr", opts.Config.Server.Addr(), "mode", opts.Mode, "services", runner.Names())
	return RunWithOptions(runner, opts)
}
