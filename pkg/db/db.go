package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sharesphere/internal/model"
	"sharesphere/pkg/config"
	"sharesphere/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// 所有需要自动迁移的模型
var models = []interface{}{
	&model.User{},
	&model.Group{},
	&model.GroupMember{},
	&model.GroupRequest{},
	&model.File{},
	&model.FileShare{},
	&model.Notification{},
}

func dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "sqlite", "":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn is empty")
		}
		if dir := filepath.Dir(cfg.DSN); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// 初始化数据库连接
func InitDB() error {
	cfg := config.GlobalConfig.Database
	d, err := dialector(cfg)
	if err != nil {
		return err
	}

	DB, err = gorm.Open(d, &gorm.Config{
		// 唯一约束冲突转换为 gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// 自动迁移模式
	if err := DB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.L.Info("Database connected and migrated successfully", zap.String("driver", cfg.Driver))
	return nil
}

// 关闭数据库连接
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitTestDB 加载测试配置并在 dir 下创建独立的 sqlite 数据库
func InitTestDB(dir string) error {
	if err := config.InitTest(); err != nil {
		return err
	}
	config.GlobalConfig.Database.Driver = "sqlite"
	config.GlobalConfig.Database.DSN = filepath.Join(dir, "test.db")
	return InitDB()
}
