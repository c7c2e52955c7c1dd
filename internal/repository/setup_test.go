package repository

import (
	"context"
	"fmt"
	"testing"

	"sharesphere/internal/model"
	"sharesphere/pkg/db"

	"github.com/stretchr/testify/require"
)

// 每个测试使用独立的 sqlite 数据库
func setupTestDB(t *testing.T) {
	t.Helper()
	if err := db.InitTestDB(t.TempDir()); err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
}

func createUser(t *testing.T, username string) *model.User {
	t.Helper()
	user := &model.User{Username: username, Password: "hash"}
	require.NoError(t, NewUserRepository().Create(context.Background(), user))
	return user
}

func createGroup(t *testing.T, name string, members ...*model.User) *model.Group {
	t.Helper()
	group := &model.Group{Name: name}
	require.NoError(t, NewGroupRepository().Create(context.Background(), group))
	for _, m := range members {
		require.NoError(t, NewGroupMemberRepository().AddMember(context.Background(), group.ID, m.ID))
	}
	return group
}

func createFile(t *testing.T, owner *model.User, name string) *model.File {
	t.Helper()
	file := &model.File{
		Filename:    name,
		StoragePath: fmt.Sprintf("%s/%s", owner.Username, name),
		OwnerID:     owner.ID,
		Size:        1,
	}
	require.NoError(t, NewFileRepository().Create(context.Background(), file))
	return file
}
