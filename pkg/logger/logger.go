package logger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 日志文件名，位于配置的日志目录下
const LogFileName = "app.log"

// 全局日志记录器实例。初始化前为 Nop，避免测试中出现空指针
var L = zap.NewNop()

// 当前日志文件路径，未配置日志目录时为空
var filePath string

// `level`可以是“debug”、“info”、“warn”、“error”、“fatal”、“panic”。
// `isProduction`确定日志记录器是否使用JSON格式(生产)或控制台格式(开发)。
// `folder`非空时，日志同时写入 folder/app.log。
func InitLogger(level string, isProduction bool, folder string) error {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel // 如果解析失败，则默认为Info级别
		fmt.Fprintf(os.Stderr, "Warning: Invalid log level '%s', using default 'info'. Error: %v\n", level, err)
	}

	var config zap.Config
	if isProduction {
		// 生产日志记录器：JSON格式
		config = zap.NewProductionConfig()
	} else {
		// 开发日志记录器：人类可读的控制台格式
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder // 彩色级别输出
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	filePath = ""
	if folder != "" {
		if err := os.MkdirAll(folder, 0755); err != nil {
			return fmt.Errorf("failed to create log folder: %w", err)
		}
		filePath = filepath.Join(folder, LogFileName)
		config.OutputPaths = append(config.OutputPaths, filePath)
		if !isProduction {
			// 文件中不写入颜色控制符
			config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	}

	l, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("failed to initialize zap logger: %w", err)
	}
	L = l

	L.Info("Zap logger initialized",
		zap.String("level", zapLevel.String()),
		zap.Bool("productionMode", isProduction),
		zap.String("file", filePath))
	return nil
}

// Tail 返回日志文件最后 n 行。未配置日志文件或文件不存在时返回空切片
func Tail(n int) ([]string, error) {
	if filePath == "" || n <= 0 {
		return []string{}, nil
	}
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	// 环形缓冲保留最后 n 行
	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return ring, nil
}

// Sync刷新任何缓冲的日志条目。
// 建议在应用程序退出之前调用它。
func Sync() {
	if L != nil {
		_ = L.Sync()
	}
}
