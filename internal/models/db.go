package models

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB 进程级数据库连接
var DB *gorm.DB

const (
	slowQueryThreshold = 500 * time.Millisecond
	sqlitePragmas      = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
)

// DBPoolConfig 数据库连接池配置，0 表示沿用驱动默认值
type DBPoolConfig struct {
	MaxOpenConns           int
	MaxIdleConns           int
	ConnMaxLifetimeSeconds int
	ConnMaxIdleTimeSeconds int
}

// InitDB 打开数据库连接并应用连接池配置
// SQL 日志只记录慢查询与错误，输出到 sqlLog（为 nil 时用标准库 log）
func InitDB(driver, dsn string, pool DBPoolConfig, sqlLog *log.Logger) error {
	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return err
	}
	writer := sqlLog
	if writer == nil {
		writer = log.Default()
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(writer, gormlogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return fmt.Errorf("open %s database failed: %w", dialector.Name(), err)
	}
	if err := applyPool(db, pool); err != nil {
		return err
	}
	DB = db
	return nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		return sqlite.Open(withSQLitePragmas(dsn)), nil
	case "postgres", "postgresql":
		return postgres.Open(strings.TrimSpace(dsn)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func applyPool(db *gorm.DB, pool DBPoolConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetimeSeconds > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetimeSeconds) * time.Second)
	}
	if pool.ConnMaxIdleTimeSeconds > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(pool.ConnMaxIdleTimeSeconds) * time.Second)
	}
	return nil
}

// withSQLitePragmas 文件库补充忙等待、外键与 WAL；内存库与已自带 pragma 的 DSN 原样返回
func withSQLitePragmas(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" || strings.Contains(dsn, "_pragma=") || strings.Contains(dsn, "mode=memory") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqlitePragmas
	}
	return dsn + "?" + sqlitePragmas
}

// CloseDB 关闭数据库连接，可重复调用
func CloseDB() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	DB = nil
	return sqlDB.Close()
}
