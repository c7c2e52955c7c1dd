package websocket

import (
	"context"
	"fmt"

	"sharesphere/internal/interfaces"
	"sharesphere/pkg/config"
	"sharesphere/pkg/logger"

	"go.uber.org/zap"
)

// CreateHub 按 messaging.provider 选择推送中心
func CreateHub(cfg config.MessagingConfig, presence interfaces.PresenceHandler) (interfaces.PushHub, error) {
	logger.L.Info("Creating notification hub", zap.String("provider", cfg.Provider))
	switch cfg.Provider {
	case "channel", "":
		return NewHub(presence), nil
	case "kafka":
		return NewKafkaHub(cfg.Kafka, presence)
	default:
		return nil, fmt.Errorf("unsupported messaging provider %q", cfg.Provider)
	}
}

// RunHub 阻塞运行推送中心直到 ctx 结束
func RunHub(ctx context.Context, hub interfaces.PushHub) error {
	switch h := hub.(type) {
	case *Hub:
		h.Run(ctx)
		return nil
	case *KafkaHub:
		return h.Run(ctx)
	default:
		return fmt.Errorf("unsupported hub type %T", hub)
	}
}
