package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sharesphere/pkg/config"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 记录上行消息
type recordingHandler struct {
	mu       sync.Mutex
	messages []string
}

func (h *recordingHandler) HandleMessage(message []byte, senderID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, string(message))
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// 记录上线/下线事件
type recordingPresence struct {
	mu           sync.Mutex
	connected    []uint
	disconnected []uint
}

func (p *recordingPresence) HandleUserConnected(userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = append(p.connected, userID)
}

func (p *recordingPresence) HandleUserDisconnected(userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnected = append(p.disconnected, userID)
}

func (p *recordingPresence) connectedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.connected)
}

func (p *recordingPresence) disconnectedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.disconnected)
}

// 内存中的客户端
type fakeClient struct {
	id     uint
	mu     sync.Mutex
	data   [][]byte
	closed bool
	// 模拟读得很慢、发送缓冲已满的客户端
	full bool
}

func (c *fakeClient) GetUserID() uint { return c.id }

func (c *fakeClient) QueueBytes(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return ErrSendBufferFull
	}
	c.data = append(c.data, data)
	return nil
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.data...)
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func setupTestWebsocket(t *testing.T) {
	config.GlobalConfig.WebSocket = config.WebSocketConfig{
		QueueSize:        16,
		WriteWaitSeconds: 2,
		PongWaitSeconds:  5,
		MaxMessageSize:   512,
	}
}

// 测试服务器设置
func setupTestServer(t *testing.T, hub *Hub, handler *recordingHandler, userID uint) string {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}

		client := NewClient(userID, conn, handler, hub)
		hub.Register(client)

		go client.ReadPump()
		go client.WritePump()
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	// 将 http:// 替换为 ws://
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func connectWebSocket(t *testing.T, url string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestWebSocketPushAndReceive(t *testing.T) {
	setupTestWebsocket(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	handler := &recordingHandler{}
	wsURL := setupTestServer(t, hub, handler, 1)

	conn := connectWebSocket(t, wsURL)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.IsClientConnected(1) }, 2*time.Second, 10*time.Millisecond)

	payload, _ := json.Marshal(map[string]string{"type": "notification", "content": "hello"})
	sent, err := hub.PushToUser(1, payload)
	require.NoError(t, err)
	assert.True(t, sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, messageType)
	assert.JSONEq(t, string(payload), string(data))

	// 上行文本消息交给处理器
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"mark_read"}`)))
	assert.Eventually(t, func() bool { return handler.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	// 断开后自动注销
	conn.Close()
	assert.Eventually(t, func() bool { return !hub.IsClientConnected(1) }, 2*time.Second, 10*time.Millisecond)
}

func TestHubOfflineUser(t *testing.T) {
	setupTestWebsocket(t)
	hub := NewHub(nil)

	delivered, err := hub.PushToUser(42, []byte("{}"))
	assert.NoError(t, err)
	assert.False(t, delivered)
}

func TestHubReplaceConnection(t *testing.T) {
	setupTestWebsocket(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	presence := &recordingPresence{}
	hub := NewHub(presence)
	go hub.Run(ctx)

	a := &fakeClient{id: 1}
	b := &fakeClient{id: 2}
	hub.Register(a)
	hub.Register(b)
	assert.Eventually(t, func() bool { return presence.connectedCount() == 2 }, time.Second, 10*time.Millisecond)

	delivered, err := hub.PushToUser(2, []byte("to-b"))
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.Eventually(t, func() bool { return len(b.received()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, a.received())

	// 同一用户的新连接替换旧连接
	a2 := &fakeClient{id: 1}
	hub.Register(a2)
	assert.Eventually(t, a.isClosed, time.Second, 10*time.Millisecond)

	// 旧连接注销不影响新连接
	hub.Unregister(a)
	_, err = hub.PushToUser(1, []byte("direct"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return len(a2.received()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, a.received())
	assert.True(t, hub.IsClientConnected(1))

	hub.Unregister(a2)
	assert.Eventually(t, func() bool { return presence.disconnectedCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHubQueueFull(t *testing.T) {
	setupTestWebsocket(t)
	config.GlobalConfig.WebSocket.QueueSize = 1
	hub := NewHub(nil)
	// 未运行 Run，直接登记
	hub.reg.add(&fakeClient{id: 3})

	delivered, err := hub.PushToUser(3, []byte("1"))
	require.NoError(t, err)
	assert.True(t, delivered)

	delivered, err = hub.PushToUser(3, []byte("2"))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.False(t, delivered)
}

func TestHubStopClosesClients(t *testing.T) {
	setupTestWebsocket(t)
	ctx, cancel := context.WithCancel(context.Background())

	hub := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := &fakeClient{id: 7}
	hub.Register(c)
	cancel()
	<-stopped

	assert.True(t, c.isClosed())
	// Run 退出后注销不会阻塞
	hub.Unregister(c)
	hub.Register(&fakeClient{id: 8})
	assert.False(t, hub.IsClientConnected(8))
}

func TestKafkaHubForwardedFrames(t *testing.T) {
	setupTestWebsocket(t)
	hub := newKafkaHub(nil, nil, "test", "instance-a", nil)
	assert.Equal(t, "test_notifications", hub.topic)

	a := &fakeClient{id: 1}
	b := &fakeClient{id: 2}
	hub.Register(a)
	hub.Register(b)
	assert.True(t, hub.IsClientConnected(1))

	frame := func(origin string, userID uint, payload string) []byte {
		data, err := json.Marshal(&kafkaFrame{Origin: origin, UserID: userID, Frame: json.RawMessage(payload)})
		require.NoError(t, err)
		return data
	}

	hub.handleFrame(frame("instance-b", 2, `{"x":1}`))
	// 自己发出的帧已经在本地处理过
	hub.handleFrame(frame("instance-a", 2, `{"x":2}`))
	// 不在本实例在线的用户
	hub.handleFrame(frame("instance-b", 9, `{"x":3}`))
	hub.handleFrame([]byte("not json"))

	require.Len(t, b.received(), 1)
	assert.JSONEq(t, `{"x":1}`, string(b.received()[0]))
	assert.Empty(t, a.received())

	// 本地在线用户直接投递，不经过 Kafka
	delivered, err := hub.PushToUser(1, []byte(`{"local":true}`))
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.Len(t, a.received(), 1)

	hub.Unregister(a)
	assert.False(t, hub.IsClientConnected(1))
	assert.True(t, a.isClosed())
}

func TestCreateHub(t *testing.T) {
	setupTestWebsocket(t)

	hub, err := CreateHub(config.MessagingConfig{Provider: "channel"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Hub{}, hub)

	_, err = CreateHub(config.MessagingConfig{Provider: "kafka"}, nil)
	assert.Error(t, err)

	_, err = CreateHub(config.MessagingConfig{Provider: "nats"}, nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, RunHub(ctx, hub))
}

func TestHubDropsSlowClient(t *testing.T) {
	setupTestWebsocket(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	slow := &fakeClient{id: 1, full: true}
	fast := &fakeClient{id: 2}
	hub.Register(slow)
	hub.Register(fast)
	require.Eventually(t, func() bool {
		return hub.IsClientConnected(1) && hub.IsClientConnected(2)
	}, time.Second, 5*time.Millisecond)

	start := time.Now()
	_, err := hub.PushToUser(1, []byte("to-slow"))
	require.NoError(t, err)
	_, err = hub.PushToUser(2, []byte("to-fast"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(fast.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Eventually(t, slow.isClosed, time.Second, 5*time.Millisecond)
	assert.False(t, hub.IsClientConnected(1))
	assert.True(t, hub.IsClientConnected(2))
}

func TestClientQueueAndClose(t *testing.T) {
	setupTestWebsocket(t)

	c := NewClient(1, nil, nil, nil)
	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, c.QueueBytes([]byte("x")))
	}
	assert.ErrorIs(t, c.QueueBytes([]byte("x")), ErrSendBufferFull)

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.QueueBytes([]byte("x")), ErrClientClosed)
}

func TestClientConcurrentQueueAndClose(t *testing.T) {
	setupTestWebsocket(t)

	for round := 0; round < 20; round++ {
		c := NewClient(1, nil, nil, nil)
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					err := c.QueueBytes([]byte("x"))
					if err != nil && !errors.Is(err, ErrSendBufferFull) && !errors.Is(err, ErrClientClosed) {
						t.Errorf("unexpected error: %v", err)
					}
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close()
		}()
		wg.Wait()
		assert.ErrorIs(t, c.QueueBytes([]byte("x")), ErrClientClosed)
	}
}

// 异步生产者，只实现用到的方法
type fakeProducer struct {
	sarama.AsyncProducer
	input  chan *sarama.ProducerMessage
	closed bool
}

func (p *fakeProducer) Input() chan<- *sarama.ProducerMessage { return p.input }

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

func TestKafkaHubPublishDoesNotBlock(t *testing.T) {
	setupTestWebsocket(t)
	producer := &fakeProducer{input: make(chan *sarama.ProducerMessage, 3)}
	hub := newKafkaHub(producer, nil, "test", "instance-a", nil)

	// 10 个不在本实例在线的用户，生产者队列只能容纳 3 条
	start := time.Now()
	dropped := 0
	for id := uint(1); id <= 10; id++ {
		delivered, err := hub.PushToUser(id, []byte(`{"n":1}`))
		assert.False(t, delivered)
		if err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
			dropped++
		}
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 7, dropped)
	require.Len(t, producer.input, 3)

	msg := <-producer.input
	assert.Equal(t, "test_notifications", msg.Topic)
	key, err := msg.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "1", string(key))
	value, err := msg.Value.Encode()
	require.NoError(t, err)
	var f kafkaFrame
	require.NoError(t, json.Unmarshal(value, &f))
	assert.Equal(t, "instance-a", f.Origin)
	assert.Equal(t, uint(1), f.UserID)
	assert.JSONEq(t, `{"n":1}`, string(f.Frame))

	// 关闭后不再写入生产者
	require.NoError(t, hub.close())
	assert.True(t, producer.closed)
	_, err = hub.PushToUser(4, []byte(`{}`))
	assert.ErrorIs(t, err, ErrHubClosed)
}
