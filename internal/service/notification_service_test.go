package service

import (
	"context"
	"encoding/json"
	"testing"

	"sharesphere/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_NotifyAndList(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	alice := env.user(t, "alice", false)
	bob := env.user(t, "bob", false)

	env.notify.Notify(ctx, []uint{alice.UserID, bob.UserID}, model.NotifyFileShared, "first", map[string]interface{}{"file_id": 1})
	env.notify.Notify(ctx, []uint{alice.UserID}, model.NotifyFileDownloaded, "second", nil)

	list, err := env.notify.List(ctx, alice, false, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Content)
	assert.Equal(t, "first", list[1].Content)
	assert.EqualValues(t, 1, list[1].Payload["file_id"])

	n, err := env.notify.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// 推送的事件携带当时的未读数量
	events := env.hub.events(alice.UserID)
	require.Len(t, events, 2)
	assert.Equal(t, EventNotification, events[0].Type)
	assert.EqualValues(t, 1, events[0].Unread)
	assert.EqualValues(t, 2, events[1].Unread)

	bobList, err := env.notify.List(ctx, bob, false, 0, 0)
	require.NoError(t, err)
	assert.Len(t, bobList, 1)

	// 空接收者不做任何事
	env.notify.Notify(ctx, nil, model.NotifyFileShared, "nobody", nil)
	assert.Len(t, env.hub.events(alice.UserID), 2)
}

func TestNotificationService_MarkRead(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	alice := env.user(t, "alice", false)
	for _, c := range []string{"a", "b", "c"} {
		env.notify.Notify(ctx, []uint{alice.UserID}, model.NotifyFileShared, c, nil)
	}

	list, err := env.notify.List(ctx, alice, true, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)

	marked, err := env.notify.MarkRead(ctx, alice, []uint{list[0].ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, marked)

	events := env.hub.events(alice.UserID)
	last := events[len(events)-1]
	assert.Equal(t, EventUnread, last.Type)
	assert.EqualValues(t, 2, last.Unread)

	unread, err := env.notify.List(ctx, alice, true, 0, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	// 其他用户不能标记 alice 的通知
	bob := env.user(t, "bob", false)
	marked, err = env.notify.MarkRead(ctx, bob, []uint{unread[0].ID})
	require.NoError(t, err)
	assert.Zero(t, marked)

	marked, err = env.notify.MarkRead(ctx, alice, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, marked)

	n, err := env.notify.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNotificationService_Pagination(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	alice := env.user(t, "alice", false)
	for i := 0; i < 5; i++ {
		env.notify.Notify(ctx, []uint{alice.UserID}, model.NotifyFileShared, "n", nil)
	}

	page, err := env.notify.List(ctx, alice, false, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = env.notify.List(ctx, alice, false, 2, 4)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	page, err = env.notify.List(ctx, alice, false, 1000, -1)
	require.NoError(t, err)
	assert.Len(t, page, 5)
}

func TestNotificationService_WebSocketHandlers(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	alice := env.user(t, "alice", false)
	env.notify.Notify(ctx, []uint{alice.UserID}, model.NotifyFileShared, "x", nil)

	env.notify.HandleUserConnected(alice.UserID)
	events := env.hub.events(alice.UserID)
	require.Len(t, events, 2)
	assert.Equal(t, EventUnread, events[1].Type)
	assert.EqualValues(t, 1, events[1].Unread)

	cmd, err := json.Marshal(ClientCommand{Type: "mark_read"})
	require.NoError(t, err)
	env.notify.HandleMessage(cmd, alice.UserID)

	n, err := env.notify.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, n)

	// 无法解析或未知的命令被忽略
	before := len(env.hub.events(alice.UserID))
	env.notify.HandleMessage([]byte("not json"), alice.UserID)
	env.notify.HandleMessage([]byte(`{"type":"delete_all"}`), alice.UserID)
	env.notify.HandleUserDisconnected(alice.UserID)
	assert.Len(t, env.hub.events(alice.UserID), before)
}
