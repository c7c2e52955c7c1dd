package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"sharesphere/internal/interfaces"
	"sharesphere/pkg/config"
	"sharesphere/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const consumeRetryDelay = 5 * time.Second

var ErrHubClosed = errors.New("hub is closed")

// kafkaFrame 转发给其他实例的通知帧
type kafkaFrame struct {
	Origin string          `json:"origin"`
	UserID uint            `json:"user_id"`
	Frame  json.RawMessage `json:"frame"`
}

// KafkaHub 多实例部署时使用。用户不在本实例在线时，通知帧写入 Kafka，
// 每个实例使用独立的消费者组读取全部帧，并投递给自己持有的连接
type KafkaHub struct {
	reg        *registry
	producer   sarama.AsyncProducer
	consumer   sarama.ConsumerGroup
	topic      string
	instanceID string

	// 保护 producer.Input()，关闭后不再写入
	closeMu sync.RWMutex
	closed  bool
}

func NewKafkaHub(cfg config.KafkaConfig, presence interfaces.PresenceHandler) (*KafkaHub, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	instanceID := uuid.NewString()

	kConfig := sarama.NewConfig()
	kConfig.Producer.RequiredAcks = sarama.WaitForAll
	kConfig.Producer.Return.Successes = false
	kConfig.Producer.Return.Errors = true
	kConfig.Producer.Retry.Max = 3
	kConfig.Consumer.Return.Errors = true
	// 历史通知已保存在数据库中，只需要新帧
	kConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	kConfig.Version = sarama.V2_8_0_0

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, kConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to start Kafka producer: %w", err)
	}

	group := fmt.Sprintf("%s-%s", cfg.ConsumerGroup, instanceID)
	consumer, err := sarama.NewConsumerGroup(cfg.Brokers, group, kConfig)
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("failed to start Kafka consumer group: %w", err)
	}

	logger.L.Info("Kafka hub created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("consumerGroup", group))
	return newKafkaHub(producer, consumer, cfg.TopicPrefix, instanceID, presence), nil
}

func newKafkaHub(producer sarama.AsyncProducer, consumer sarama.ConsumerGroup, topicPrefix, instanceID string, presence interfaces.PresenceHandler) *KafkaHub {
	return &KafkaHub{
		reg:        newRegistry(presence),
		producer:   producer,
		consumer:   consumer,
		topic:      topicPrefix + "_notifications",
		instanceID: instanceID,
	}
}

func (h *KafkaHub) Register(client interfaces.Client) {
	h.reg.add(client)
}

func (h *KafkaHub) Unregister(client interfaces.Client) {
	h.reg.remove(client)
}

func (h *KafkaHub) SetPresenceHandler(handler interfaces.PresenceHandler) {
	h.reg.setPresence(handler)
}

func (h *KafkaHub) IsClientConnected(userID uint) bool {
	_, ok := h.reg.get(userID)
	return ok
}

// PushToUser 本地在线直接投递，否则交给异步生产者转发到 Kafka。
// 生产者输入队列已满时丢弃该帧，不阻塞调用方
func (h *KafkaHub) PushToUser(userID uint, data []byte) (bool, error) {
	if client, ok := h.reg.get(userID); ok {
		if err := client.QueueBytes(data); err != nil {
			return false, fmt.Errorf("failed to queue notification frame: %w", err)
		}
		return true, nil
	}

	value, err := json.Marshal(&kafkaFrame{Origin: h.instanceID, UserID: userID, Frame: data})
	if err != nil {
		return false, fmt.Errorf("failed to marshal kafka frame: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: h.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(userID), 10)),
		Value: sarama.ByteEncoder(value),
	}

	h.closeMu.RLock()
	defer h.closeMu.RUnlock()
	if h.closed {
		return false, ErrHubClosed
	}
	select {
	case h.producer.Input() <- msg:
		return false, nil
	default:
		logger.L.Warn("Kafka producer queue full, dropping notification frame", zap.Uint("userID", userID))
		return false, ErrQueueFull
	}
}

// drainErrors 记录异步发送失败，直到生产者关闭
func (h *KafkaHub) drainErrors() {
	for perr := range h.producer.Errors() {
		logger.L.Error("Failed to publish notification frame", zap.String("topic", perr.Msg.Topic), zap.Error(perr.Err))
	}
}

// handleFrame 处理其他实例转发过来的帧
func (h *KafkaHub) handleFrame(value []byte) {
	var f kafkaFrame
	if err := json.Unmarshal(value, &f); err != nil {
		logger.L.Warn("Dropping malformed kafka frame", zap.Error(err))
		return
	}
	if f.Origin == h.instanceID {
		return
	}
	client, ok := h.reg.get(f.UserID)
	if !ok {
		return
	}
	if err := client.QueueBytes(f.Frame); err != nil {
		logger.L.Warn("Failed to queue forwarded frame", zap.Uint("userID", f.UserID), zap.Error(err))
	}
}

// Run 消费 Kafka 直到 ctx 结束，然后关闭所有连接和生产者、消费者
func (h *KafkaHub) Run(ctx context.Context) error {
	go h.drainErrors()

	handler := &kafkaConsumerHandler{hub: h}
	for ctx.Err() == nil {
		if err := h.consumer.Consume(ctx, []string{h.topic}, handler); err != nil {
			logger.L.Error("Kafka consumer error", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(consumeRetryDelay):
			}
		}
	}

	for _, client := range h.reg.all() {
		h.reg.remove(client)
	}
	return h.close()
}

func (h *KafkaHub) close() error {
	h.closeMu.Lock()
	h.closed = true
	h.closeMu.Unlock()

	var firstErr error
	if h.consumer != nil {
		if err := h.consumer.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close Kafka consumer group: %w", err)
		}
	}
	if h.producer != nil {
		if err := h.producer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close Kafka producer: %w", err)
		}
	}
	logger.L.Info("Kafka hub stopped")
	return firstErr
}

type kafkaConsumerHandler struct {
	hub *KafkaHub
}

func (h *kafkaConsumerHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *kafkaConsumerHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *kafkaConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.hub.handleFrame(message.Value)
		session.MarkMessage(message, "")
	}
	return nil
}
