package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shelfline-next/internal/authz"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/migration"
	"github.com/shelfline-next/internal/models"
	"github.com/shelfline-next/internal/provider"
	"github.com/shelfline-next/internal/worker"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var rollbackLast bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "执行版本化数据库迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			defer func() { _ = models.CloseDB() }()
			if rollbackLast {
				if err := migration.RollbackLast(models.DB); err != nil {
					return fmt.Errorf("rollback: %w", err)
				}
				fmt.Println("rolled back last migration")
				return nil
			}
			if err := migration.Run(models.DB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Printf("applied %d migrations\n", len(migration.All()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&rollbackLast, "rollback-last", false, "回滚最近一次迁移")
	return cmd
}

func summariesCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "summaries",
		Short: "客户汇总维护",
	}

	var merchantID, customerID string
	var offerID uint
	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "按事件重算客户汇总",
		Long: `按已记录的购买事件与奖励重算客户汇总。

指定 --customer 与 --offer 时只重算一位客户，否则重算商户下全部客户。

Examples:
  loyaltyctl summaries rebuild --merchant M1
  loyaltyctl summaries rebuild --merchant M1 --customer C9 --offer 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *provider.Container) error {
				if strings.TrimSpace(customerID) != "" || offerID != 0 {
					summary, err := c.LoyaltyService.RebuildSummary(merchantID, customerID, offerID)
					if err != nil {
						return err
					}
					return printJSON(summary)
				}
				count, err := c.LoyaltyService.RebuildAllSummaries(merchantID)
				if err != nil {
					return err
				}
				fmt.Printf("rebuilt %d summaries\n", count)
				return nil
			})
		},
	}
	rebuild.Flags().StringVar(&merchantID, "merchant", "", "商户 ID")
	rebuild.Flags().StringVar(&customerID, "customer", "", "客户 ID")
	rebuild.Flags().UintVar(&offerID, "offer", 0, "活动 ID")
	_ = rebuild.MarkFlagRequired("merchant")
	root.AddCommand(rebuild)
	return root
}

func discountsCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "discounts",
		Short: "奖励折扣维护",
	}

	var merchantID string
	var limit int
	reissue := &cobra.Command{
		Use:   "reissue",
		Short: "为缺少折扣引用的已达成奖励重新登记发放",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *provider.Container) error {
				count, err := c.DiscountService.ReissueMissing(merchantID, limit)
				if err != nil {
					return err
				}
				fmt.Printf("enqueued %d discount issuances\n", count)
				return nil
			})
		},
	}
	reissue.Flags().StringVar(&merchantID, "merchant", "", "商户 ID")
	reissue.Flags().IntVar(&limit, "limit", 0, "最多处理条数（0 为默认）")
	_ = reissue.MarkFlagRequired("merchant")
	root.AddCommand(reissue)
	return root
}

func outboxCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "outbox",
		Short: "投递队列维护",
	}

	var merchantID string
	retry := &cobra.Command{
		Use:   "retry-failed",
		Short: "将失败的投递重新置为待投递",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *provider.Container) error {
				count, err := c.OutboxService.RetryFailed(merchantID)
				if err != nil {
					return err
				}
				fmt.Printf("reset %d failed messages\n", count)
				return nil
			})
		},
	}
	retry.Flags().StringVar(&merchantID, "merchant", "", "商户 ID")
	_ = retry.MarkFlagRequired("merchant")

	var batch int
	drain := &cobra.Command{
		Use:   "drain",
		Short: "立即执行一轮投递",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *provider.Container) error {
				// 不经过队列，直接在当前进程处理
				relay := worker.NewOutboxRelay(c.OutboxService, nil, 0, batch)
				ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
				defer cancel()
				processed := relay.RunOnce(ctx)
				logger.Infow("loyaltyctl_outbox_drained", "processed", processed)
				fmt.Printf("processed %d messages\n", processed)
				return nil
			})
		},
	}
	drain.Flags().IntVar(&batch, "batch", 100, "本轮最多处理条数")

	root.AddCommand(retry, drain)
	return root
}

func authzCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "authz",
		Short: "后台角色与策略",
	}

	roles := &cobra.Command{
		Use:   "roles",
		Short: "列出角色及其策略",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *provider.Container) error {
				infos, err := c.AuthzService.DescribeRoles()
				if err != nil {
					return err
				}
				return printJSON(infos)
			})
		},
	}

	grant := &cobra.Command{
		Use:   "grant [role] [object] [action]",
		Short: "为角色授予策略",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *provider.Container) error {
				return c.AuthzService.GrantRolePolicy(args[0], args[1], args[2])
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke [role] [object] [action]",
		Short: "撤销角色策略",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *provider.Container) error {
				return c.AuthzService.RevokeRolePolicy(args[0], args[1], args[2])
			})
		},
	}

	root.AddCommand(roles, grant, revoke)
	return root
}

func tokenCmd() *cobra.Command {
	var merchantID, adminID string
	var roles []string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发后台访问令牌（本地调试）",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = models.CloseDB() }()
			token, err := authz.SignAdminToken(cfg.AdminJWT.SecretKey, cfg.AdminJWT.Issuer, authz.AdminClaims{
				MerchantID: merchantID,
				AdminID:    adminID,
				Roles:      roles,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&merchantID, "merchant", "", "商户 ID")
	cmd.Flags().StringVar(&adminID, "admin", "ops", "操作人 ID")
	cmd.Flags().StringSliceVar(&roles, "role", []string{"loyalty_viewer"}, "角色，可重复")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "有效期")
	_ = cmd.MarkFlagRequired("merchant")
	return cmd
}

func printJSON(value interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
