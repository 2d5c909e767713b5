package main

import (
	"fmt"
	"os"

	"github.com/shelfline-next/internal/config"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/models"
	"github.com/shelfline-next/internal/provider"

	"github.com/spf13/cobra"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "loyaltyctl",
		Short:         "常客奖励对账与运维工具",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径，默认查找 ./config.yml")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(summariesCmd())
	rootCmd.AddCommand(discountsCmd())
	rootCmd.AddCommand(outboxCmd())
	rootCmd.AddCommand(authzCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig 加载配置并初始化日志与数据库
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, logger.StdLogger()); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	return cfg, nil
}

// withContainer 构建容器执行命令，结束后释放连接
func withContainer(fn func(c *provider.Container) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() {
		_ = models.CloseDB()
		logger.Sync()
	}()
	c, err := provider.NewContainer(cfg, models.DB)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}
