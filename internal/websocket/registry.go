package websocket

import (
	"sync"

	"sharesphere/internal/interfaces"
	"sharesphere/pkg/logger"

	"go.uber.org/zap"
)

// registry 本实例上的在线连接，每个用户最多保留一个
type registry struct {
	mu       sync.RWMutex
	clients  map[uint]interfaces.Client
	presence interfaces.PresenceHandler
}

func newRegistry(presence interfaces.PresenceHandler) *registry {
	return &registry{
		clients:  make(map[uint]interfaces.Client),
		presence: presence,
	}
}

func (r *registry) setPresence(handler interfaces.PresenceHandler) {
	r.mu.Lock()
	r.presence = handler
	r.mu.Unlock()
}

// add 同一用户的新连接替换旧连接
func (r *registry) add(client interfaces.Client) {
	userID := client.GetUserID()
	r.mu.Lock()
	old, exists := r.clients[userID]
	r.clients[userID] = client
	presence := r.presence
	r.mu.Unlock()

	if exists && old != client {
		old.Close()
	}
	logger.L.Info("Client registered", zap.Uint("userID", userID))
	if presence != nil {
		go presence.HandleUserConnected(userID)
	}
}

// remove 只移除仍在登记中的那个连接，被替换的旧连接只会被关闭
func (r *registry) remove(client interfaces.Client) {
	userID := client.GetUserID()
	r.mu.Lock()
	current, ok := r.clients[userID]
	owned := ok && current == client
	if owned {
		delete(r.clients, userID)
	}
	presence := r.presence
	r.mu.Unlock()

	client.Close()
	if !owned {
		return
	}
	logger.L.Info("Client unregistered", zap.Uint("userID", userID))
	if presence != nil {
		go presence.HandleUserDisconnected(userID)
	}
}

func (r *registry) get(userID uint) (interfaces.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[userID]
	return c, ok
}

func (r *registry) all() []interfaces.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]interfaces.Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}
