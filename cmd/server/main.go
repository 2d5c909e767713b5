package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/shelfline-next/internal/app"
	"github.com/shelfline-next/internal/config"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/migration"
	"github.com/shelfline-next/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	ansiReset     = "\033[0m"
	ansiBold      = "\033[1m"
	ansiDim       = "\033[2m"
	ansiGreen     = "\033[32m"
	ansiCyan      = "\033[36m"
	ansiBrightMag = "\033[95m"
)

func main() {
	// 解析命令行参数
	var mode string
	var skipMigrate bool
	var configPath string
	flag.StringVar(&mode, "mode", app.ModeAll, "启动模式: all (默认), api, worker")
	flag.BoolVar(&skipMigrate, "skip-migrate", false, "跳过启动时的数据库迁移")
	flag.StringVar(&configPath, "config", "", "配置文件路径，默认查找 ./config.yml")
	flag.Parse()

	printStartupBanner()

	// 加载配置
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		logger.StdLogger().Fatalf("配置加载失败: %v", err)
	}
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()
	stdLog := logger.StdLogger()

	runMode, err := app.ParseMode(mode)
	if err != nil {
		stdLog.Fatalf("启动参数错误: %v", err)
	}
	warnings, err := cfg.Check(app.ServesAPI(runMode))
	if err != nil {
		stdLog.Fatalf("配置检查失败: %v", err)
	}
	for _, warning := range warnings {
		logger.Warnw("config_check_warning", "detail", warning)
	}

	// 初始化数据库
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, stdLog); err != nil {
		stdLog.Fatalf("数据库初始化失败: %v", err)
	}

	defer func() {
		if err := models.CloseDB(); err != nil {
			stdLog.Printf("警告: 关闭数据库失败: %v", err)
		}
	}()

	// 版本化迁移
	if !skipMigrate {
		if err := migration.Run(models.DB); err != nil {
			stdLog.Fatalf("数据库迁移失败: %v", err)
		}
	}

	// 设置 Gin 模式
	if cfg.Server.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := app.Run(app.Options{
		Config: cfg,
		DB:     models.DB,
		Logger: logger.S(),
		Mode:   runMode,
	}); err != nil {
		stdLog.Printf("服务运行失败: %v", err)
		os.Exit(1)
	}
}

func printStartupBanner() {
	fmt.Println(ansiBrightMag + "╔══════════════════════════════════════════════════════════════╗" + ansiReset)
	fmt.Println(ansiBrightMag + "║                 Shelfline 常客奖励服务启动中                 ║" + ansiReset)
	fmt.Println(ansiBrightMag + "╚══════════════════════════════════════════════════════════════╝" + ansiReset)
	fmt.Println(ansiCyan + "  ___ _        _  __ _ _          " + ansiReset)
	fmt.Println(ansiCyan + " / __| |_  ___| |/ _| (_)_ _  ___ " + ansiReset)
	fmt.Println(ansiCyan + " \\__ \\ ' \\/ -_) |  _| | | ' \\/ -_)" + ansiReset)
	fmt.Println(ansiCyan + " |___/_||_\\___|_|_| |_|_|_||_\\___|" + ansiReset)
	fmt.Println(ansiGreen + ansiBold + "Frequent buyer accrual / reward engine" + ansiReset)
	fmt.Println(ansiDim + "--------------------------------------------------------------" + ansiReset)
}
