package websocket

import (
	"errors"
	"sync"
	"time"

	"sharesphere/internal/interfaces"
	"sharesphere/pkg/config"
	"sharesphere/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultWriteWait      = 10 * time.Second // 写超时
	defaultPongWait       = 60 * time.Second // 等待pong的最大时间
	defaultMaxMessageSize = 512              // 消息最大长度
	sendBufferSize        = 256
)

var (
	ErrSendBufferFull = errors.New("client send buffer is full")
	ErrClientClosed   = errors.New("client is closed")
)

type Client struct {
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte
	// Close 时关闭；Send 本身从不关闭，发送方可以并发调用 QueueBytes
	done    chan struct{}
	mu      sync.Mutex
	once    sync.Once
	handler interfaces.FrameHandler
	manager interfaces.PushHub

	writeWait      time.Duration
	pongWait       time.Duration
	maxMessageSize int64
}

func NewClient(userID uint, conn *websocket.Conn, handler interfaces.FrameHandler, manager interfaces.PushHub) *Client {
	wsConfig := config.GlobalConfig.WebSocket

	writeWait := time.Duration(wsConfig.WriteWaitSeconds) * time.Second
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	pongWait := time.Duration(wsConfig.PongWaitSeconds) * time.Second
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	maxMessageSize := int64(wsConfig.MaxMessageSize)
	if maxMessageSize <= 0 {
		maxMessageSize = defaultMaxMessageSize
	}

	return &Client{
		UserID:         userID,
		Conn:           conn,
		Send:           make(chan []byte, sendBufferSize),
		done:           make(chan struct{}),
		handler:        handler,
		manager:        manager,
		writeWait:      writeWait,
		pongWait:       pongWait,
		maxMessageSize: maxMessageSize,
	}
}

func (c *Client) GetUserID() uint {
	return c.UserID
}

// QueueBytes 非阻塞地放入发送队列
func (c *Client) QueueBytes(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.Send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSendBufferFull
	}
}

// Close 通知 WritePump 关闭连接。可重复调用
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *Client) ReadPump() {
	defer func() {
		c.manager.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		messageType, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.L.Warn("Unexpected websocket close", zap.Uint("userID", c.UserID), zap.Error(err))
			} else {
				logger.L.Debug("Websocket read finished", zap.Uint("userID", c.UserID), zap.Error(err))
			}
			break
		}

		if messageType == websocket.TextMessage {
			c.handler.HandleMessage(messageBytes, c.UserID)
		} else {
			logger.L.Warn("Ignoring non-text websocket message",
				zap.Uint("userID", c.UserID),
				zap.Int("messageType", messageType))
		}
	}
}

func (c *Client) WritePump() {
	pingPeriod := (c.pongWait * 9) / 10 // 发送ping的周期
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.mu.Lock()
			c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			c.mu.Unlock()
			return

		case messageBytes := <-c.Send:
			c.mu.Lock()
			c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, messageBytes); err != nil {
				c.mu.Unlock()
				logger.L.Warn("Failed to write websocket message", zap.Uint("userID", c.UserID), zap.Error(err))
				return
			}

			// 顺带写出已排队的消息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					c.mu.Unlock()
					logger.L.Warn("Failed to write batched websocket message", zap.Uint("userID", c.UserID), zap.Error(err))
					return
				}
			}
			c.mu.Unlock()

		case <-ticker.C:
			c.mu.Lock()
			c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			err := c.Conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				logger.L.Debug("Failed to send ping", zap.Uint("userID", c.UserID), zap.Error(err))
				return
			}
		}
	}
}
