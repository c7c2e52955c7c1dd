package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"sharesphere/internal/authz"
	"sharesphere/internal/interfaces"
	"sharesphere/internal/model"
	"sharesphere/pkg/db"
	"sharesphere/pkg/storage"

	"github.com/stretchr/testify/require"
)

// 记录推送的 Hub
type fakeHub struct {
	mu     sync.Mutex
	pushed map[uint][]PushEvent
}

func newFakeHub() *fakeHub {
	return &fakeHub{pushed: map[uint][]PushEvent{}}
}

func (h *fakeHub) Register(client interfaces.Client)                     {}
func (h *fakeHub) Unregister(client interfaces.Client)                   {}
func (h *fakeHub) IsClientConnected(userID uint) bool                    { return true }
func (h *fakeHub) SetPresenceHandler(handler interfaces.PresenceHandler) {}

func (h *fakeHub) PushToUser(userID uint, data []byte) (bool, error) {
	var ev PushEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return false, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pushed[userID] = append(h.pushed[userID], ev)
	return true, nil
}

func (h *fakeHub) events(userID uint) []PushEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]PushEvent(nil), h.pushed[userID]...)
}

type testEnv struct {
	store  *storage.BlobStore
	hub    *fakeHub
	policy *authz.Policy

	auth   *AuthService
	groups *GroupService
	shares *FileShareService
	files  *FileService
	admin  *AdminService
	notify *NotificationService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	require.NoError(t, db.InitTestDB(t.TempDir()))
	t.Cleanup(func() { _ = db.Close() })

	store, err := storage.NewBlobStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	hub := newFakeHub()
	svc := NewServices(hub, store, 1024)

	return &testEnv{
		store:  store,
		hub:    hub,
		policy: svc.Policy,
		auth:   svc.Auth,
		groups: svc.Groups,
		shares: svc.Shares,
		files:  svc.Files,
		admin:  svc.Admin,
		notify: svc.Notifications,
	}
}

func password(username string) string {
	return "password-" + username
}

// 创建用户并返回其会话
func (e *testEnv) user(t *testing.T, username string, isAdmin bool) *Session {
	t.Helper()
	u, err := e.auth.CreateAccount(context.Background(), username, password(username), isAdmin)
	require.NoError(t, err)
	return &Session{UserID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}
}

func fileIDs(files []model.File) []uint {
	ids := make([]uint, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	return ids
}
